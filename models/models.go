package models

import (
	"time"
)

// Role controls which views and actions a user may reach.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleDataEntry Role = "data_entry"
	RoleViewer    Role = "viewer"
)

// Capability tags carried in UserRecord.Permissions.
const (
	PermView        = "view"
	PermEdit        = "edit"
	PermSync        = "sync"
	PermManageUsers = "manage_users"
)

// UserRecord represents one account in the credential store.
// Username is the unique key of the store.
type UserRecord struct {
	Username    string    `json:"username"`
	Password    string    `json:"password"` // Plain text, or a bcrypt hash ($2a$...). See DESIGN.md.
	Role        Role      `json:"role"`
	Permissions []string  `json:"permissions"`
	FullName    string    `json:"full_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"` // UTC
}

// HasPermission reports whether the record carries the given capability tag.
func (u UserRecord) HasPermission(tag string) bool {
	for _, p := range u.Permissions {
		if p == tag {
			return true
		}
	}
	return false
}

// SessionRecord represents one entry in the session registry. The username
// keys the registry and is not guaranteed to still exist in the credential
// store. LoginTime is set exactly when Active flips to true and cleared when
// it flips back to false.
type SessionRecord struct {
	Username  string     `json:"username"`
	Active    bool       `json:"active"`
	LoginTime *time.Time `json:"login_time,omitempty"` // UTC, present iff Active
}

// UserFile is the JSON shape of the persisted credential store.
type UserFile struct {
	Users map[string]UserRecord `json:"users"` // Keyed by username
}

// SessionFile is the JSON shape of the persisted session registry.
type SessionFile struct {
	Sessions map[string]SessionRecord `json:"sessions"` // Keyed by username
}
