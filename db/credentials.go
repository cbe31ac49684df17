package db

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"sheetboard/errs"
	"sheetboard/models"
)

// CredentialStore is the repository interface over persisted user records.
// It is injected into the session registry and the API handlers so tests can
// substitute in-memory fakes.
type CredentialStore interface {
	Get(username string) (models.UserRecord, bool)
	All() []models.UserRecord
	Put(record models.UserRecord) error
	Delete(username string) error
	Authenticate(username, password string) (models.UserRecord, error)
}

// Default accounts seeded on first run or after a malformed store file.
const (
	DefaultAdminUser     = "admin"
	defaultAdminPassword = "admin123"
	DefaultEntryUser     = "entry"
	defaultEntryPassword = "entry123"
)

// FileCredentialStore keeps user records in memory, backed by a single
// human-readable JSON file rewritten in full on every save.
type FileCredentialStore struct {
	mu     sync.RWMutex
	path   string
	backup bool
	users  map[string]models.UserRecord
}

// NewFileCredentialStore loads the credential store from path. If the file is
// absent, two default accounts are seeded and persisted before returning. An
// unparseable file is recovered by reseeding the defaults rather than
// crashing; that trade-off loses the old contents and is logged loudly.
func NewFileCredentialStore(path string, backup bool) (*FileCredentialStore, error) {
	s := &FileCredentialStore{
		path:   path,
		backup: backup,
		users:  make(map[string]models.UserRecord),
	}

	fileData, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("ERROR: Failed to read credential store '%s': %v", path, err)
			return nil, fmt.Errorf("%w: %v", errs.ErrIOError, err)
		}
		log.Printf("INFO: Credential store '%s' not found. Seeding default accounts.", path)
		s.users = seedDefaultUsers()
		if err := s.persist(); err != nil {
			return nil, err
		}
		return s, nil
	}

	var file models.UserFile
	if err := json.Unmarshal(fileData, &file); err != nil || file.Users == nil {
		log.Printf("WARN: Credential store '%s' is unreadable (%v). Reseeding defaults; previous contents are lost.", path, err)
		s.users = seedDefaultUsers()
		if err := s.persist(); err != nil {
			return nil, err
		}
		return s, nil
	}

	s.users = file.Users
	log.Printf("INFO: Loaded credential store from %s. Users: %d", path, len(s.users))
	return s, nil
}

func seedDefaultUsers() map[string]models.UserRecord {
	now := time.Now().UTC()
	return map[string]models.UserRecord{
		DefaultAdminUser: {
			Username:    DefaultAdminUser,
			Password:    defaultAdminPassword,
			Role:        models.RoleAdmin,
			Permissions: []string{models.PermView, models.PermEdit, models.PermSync, models.PermManageUsers},
			FullName:    "Administrator",
			CreatedAt:   now,
		},
		DefaultEntryUser: {
			Username:    DefaultEntryUser,
			Password:    defaultEntryPassword,
			Role:        models.RoleDataEntry,
			Permissions: []string{models.PermView, models.PermEdit},
			FullName:    "Data Entry",
			CreatedAt:   now,
		},
	}
}

// persist rewrites the whole store file. Callers must hold at least a read lock.
func (s *FileCredentialStore) persist() error {
	jsonData, err := json.MarshalIndent(models.UserFile{Users: s.users}, "", "  ")
	if err != nil {
		log.Printf("ERROR: Failed to marshal credential store: %v", err)
		return fmt.Errorf("%w: %v", errs.ErrIOError, err)
	}
	if err := writeFileAtomic(s.path, jsonData, s.backup); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrIOError, err)
	}
	return nil
}

// Get returns the record for username, if present.
func (s *FileCredentialStore) Get(username string) (models.UserRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, found := s.users[username]
	return rec, found
}

// All returns every user record in the store.
func (s *FileCredentialStore) All() []models.UserRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]models.UserRecord, 0, len(s.users))
	for _, rec := range s.users {
		records = append(records, rec)
	}
	return records
}

// Put creates or replaces a user record and persists the store.
func (s *FileCredentialStore) Put(record models.UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.Username == "" {
		return fmt.Errorf("user record must have a username")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	s.users[record.Username] = record
	log.Printf("INFO: Stored user record: %s (role %s)", record.Username, record.Role)
	return s.persist()
}

// Delete removes a user record and persists the store. Session registry
// entries for the deleted user are intentionally left behind.
func (s *FileCredentialStore) Delete(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, found := s.users[username]; !found {
		return fmt.Errorf("user '%s' not found", username)
	}
	delete(s.users, username)
	log.Printf("INFO: Deleted user record: %s", username)
	return s.persist()
}

// Authenticate checks username/password and returns the matching record.
//
// Passwords are stored and compared in plain text. A stored value that looks
// like a bcrypt hash is verified with bcrypt instead, so a store can be
// upgraded account by account (see DESIGN.md).
func (s *FileCredentialStore) Authenticate(username, password string) (models.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, found := s.users[username]
	if !found {
		return models.UserRecord{}, errs.ErrBadCredential
	}
	if isBcryptHash(rec.Password) {
		if bcrypt.CompareHashAndPassword([]byte(rec.Password), []byte(password)) != nil {
			return models.UserRecord{}, errs.ErrBadCredential
		}
		return rec, nil
	}
	if rec.Password != password {
		return models.UserRecord{}, errs.ErrBadCredential
	}
	return rec, nil
}

func isBcryptHash(stored string) bool {
	return strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$")
}
