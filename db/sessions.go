package db

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"sheetboard/errs"
	"sheetboard/models"
)

// SessionRegistry tracks which users hold a time-bounded login and enforces
// the global concurrency cap. Entries outlive individual sessions; the
// registry file is never torn down.
type SessionRegistry interface {
	// Cleanup flips every entry whose session window has elapsed to inactive.
	// It is idempotent and must run before any session-dependent decision.
	Cleanup(now time.Time) error
	// Remaining returns the time left in the user's session window. The
	// second return is false when the user is inactive or the window has
	// elapsed; callers treat that as "session expired, force logout".
	Remaining(username string, now time.Time) (time.Duration, bool)
	// Login validates credentials and activates a session, enforcing the
	// single-session rule and the capacity cap for non-exempt users.
	Login(username, password string, now time.Time) (models.UserRecord, error)
	// Logout deactivates the user's session. Callers must also discard all
	// session-scoped process state (tokens, cached roles).
	Logout(username string) error
	// ActiveCount returns the number of currently active users.
	ActiveCount() int
}

// FileSessionRegistry is the JSON-file-backed SessionRegistry. Credential
// checks are delegated to the injected CredentialStore.
type FileSessionRegistry struct {
	mu       sync.RWMutex
	path     string
	backup   bool
	creds    CredentialStore
	duration time.Duration
	cap      int
	// adminExempt controls whether admin-role accounts bypass the
	// single-session and capacity rules.
	adminExempt bool
	sessions    map[string]models.SessionRecord
}

// NewFileSessionRegistry loads the session registry from path. A missing file
// yields an empty registry; an unparseable one is recovered by starting empty
// (logged, previous state lost).
func NewFileSessionRegistry(path string, backup bool, creds CredentialStore, duration time.Duration, cap int, adminExempt bool) (*FileSessionRegistry, error) {
	r := &FileSessionRegistry{
		path:        path,
		backup:      backup,
		creds:       creds,
		duration:    duration,
		cap:         cap,
		adminExempt: adminExempt,
		sessions:    make(map[string]models.SessionRecord),
	}

	fileData, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("ERROR: Failed to read session registry '%s': %v", path, err)
			return nil, fmt.Errorf("%w: %v", errs.ErrIOError, err)
		}
		log.Printf("INFO: Session registry '%s' not found. Starting empty.", path)
		return r, nil
	}

	var file models.SessionFile
	if err := json.Unmarshal(fileData, &file); err != nil || file.Sessions == nil {
		log.Printf("WARN: Session registry '%s' is unreadable (%v). Starting empty; previous state is lost.", path, err)
		return r, nil
	}

	r.sessions = file.Sessions
	log.Printf("INFO: Loaded session registry from %s. Entries: %d", path, len(r.sessions))
	return r, nil
}

// persist rewrites the whole registry file. Callers must hold the lock.
func (r *FileSessionRegistry) persist() error {
	jsonData, err := json.MarshalIndent(models.SessionFile{Sessions: r.sessions}, "", "  ")
	if err != nil {
		log.Printf("ERROR: Failed to marshal session registry: %v", err)
		return fmt.Errorf("%w: %v", errs.ErrIOError, err)
	}
	if err := writeFileAtomic(r.path, jsonData, r.backup); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrIOError, err)
	}
	return nil
}

// expired reports whether an active record's window has elapsed at now.
func (r *FileSessionRegistry) expired(rec models.SessionRecord, now time.Time) bool {
	return rec.Active && rec.LoginTime != nil && now.Sub(*rec.LoginTime) >= r.duration
}

// isExempt reports whether username bypasses the session limits.
func (r *FileSessionRegistry) isExempt(username string) bool {
	if !r.adminExempt {
		return false
	}
	rec, found := r.creds.Get(username)
	return found && rec.Role == models.RoleAdmin
}

func (r *FileSessionRegistry) Cleanup(now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	changed := false
	for username, rec := range r.sessions {
		if r.expired(rec, now) {
			rec.Active = false
			rec.LoginTime = nil
			r.sessions[username] = rec
			changed = true
			log.Printf("INFO: Session expired for user '%s'", username)
		}
	}
	if !changed {
		return nil
	}
	return r.persist()
}

func (r *FileSessionRegistry) Remaining(username string, now time.Time) (time.Duration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, found := r.sessions[username]
	if !found || !rec.Active || rec.LoginTime == nil {
		return 0, false
	}
	remaining := r.duration - now.Sub(*rec.LoginTime)
	if remaining <= 0 {
		// Stale entry a missed cleanup window left behind. Indistinguishable
		// from an already-cleaned one as far as callers are concerned.
		return 0, false
	}
	return remaining, true
}

func (r *FileSessionRegistry) Login(username, password string, now time.Time) (models.UserRecord, error) {
	// Sweep expired sessions first so a stale entry never blocks a login or
	// inflates the active count.
	if err := r.Cleanup(now); err != nil {
		log.Printf("WARN: Session cleanup before login failed: %v", err)
	}

	user, err := r.creds.Authenticate(username, password)
	if err != nil {
		return models.UserRecord{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	exempt := r.isExempt(username)

	if rec, found := r.sessions[username]; found && rec.Active && !exempt {
		return models.UserRecord{}, errs.ErrAlreadyActive
	}

	if !exempt {
		activeOthers := 0
		for name, rec := range r.sessions {
			if name == username || !rec.Active {
				continue
			}
			if !r.isExempt(name) {
				activeOthers++
			}
		}
		if activeOthers >= r.cap {
			return models.UserRecord{}, errs.ErrCapacityExceeded
		}
	}

	loginTime := now.UTC()
	r.sessions[username] = models.SessionRecord{
		Username:  username,
		Active:    true,
		LoginTime: &loginTime,
	}
	if err := r.persist(); err != nil {
		return models.UserRecord{}, err
	}

	log.Printf("INFO: User '%s' logged in (role %s, exempt %t)", username, user.Role, exempt)
	return user, nil
}

func (r *FileSessionRegistry) Logout(username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[username] = models.SessionRecord{
		Username: username,
		Active:   false,
	}
	if err := r.persist(); err != nil {
		return err
	}
	log.Printf("INFO: User '%s' logged out", username)
	return nil
}

func (r *FileSessionRegistry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, rec := range r.sessions {
		if rec.Active {
			count++
		}
	}
	return count
}
