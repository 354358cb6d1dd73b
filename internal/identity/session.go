package identity

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hearthkeep/hearth/pkg/types"
)

// SessionFileName is the credentials file inside the data directory.
const SessionFileName = "session.json"

type sessionFile struct {
	Token       string    `json:"token"`
	HouseholdID string    `json:"householdId"`
	UserID      string    `json:"userId"`
	DeviceID    string    `json:"deviceId"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// FileSession implements types.SessionProvider over a credentials file
// written at login. A missing file means logged out; an expired token
// reads as unauthenticated without being deleted, so the UI can prompt
// for a fresh login.
type FileSession struct {
	path string

	mu        sync.RWMutex
	creds     types.Credentials
	expiresAt time.Time
}

// LoadSession reads the session file under dataDir. A missing or
// unreadable file yields a logged-out session, not an error.
func LoadSession(dataDir string) *FileSession {
	s := &FileSession{path: filepath.Join(dataDir, SessionFileName)}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return s
	}
	var file sessionFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return s
	}
	s.creds = types.Credentials{
		Token:       file.Token,
		HouseholdID: file.HouseholdID,
		UserID:      file.UserID,
		DeviceID:    file.DeviceID,
	}
	s.expiresAt = file.ExpiresAt
	return s
}

// Save persists fresh credentials and makes them current.
func (s *FileSession) Save(creds types.Credentials, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.MarshalIndent(sessionFile{
		Token:       creds.Token,
		HouseholdID: creds.HouseholdID,
		UserID:      creds.UserID,
		DeviceID:    creds.DeviceID,
		ExpiresAt:   expiresAt,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("writing session file: %w", err)
	}

	s.creds = creds
	s.expiresAt = expiresAt
	return nil
}

// Clear logs out by removing the session file.
func (s *FileSession) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing session file: %w", err)
	}
	s.creds = types.Credentials{}
	s.expiresAt = time.Time{}
	return nil
}

// Authenticated reports whether a non-expired token is on hand.
func (s *FileSession) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.Token != "" && time.Now().Before(s.expiresAt)
}

// Credentials returns the current session context for outgoing requests.
func (s *FileSession) Credentials() (types.Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.creds.Token == "" || !time.Now().Before(s.expiresAt) {
		return types.Credentials{}, types.ErrNotAuthenticated
	}
	return s.creds, nil
}
