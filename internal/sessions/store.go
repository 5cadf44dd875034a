package sessions

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/SamiESK/insta-scrapper/internal/models"
)

// ErrNotFound is returned when no usable session exists for the account.
// A corrupt session file maps to this too: the caller should re-login, not
// crash the run.
var ErrNotFound = errors.New("sessions: not found")

// Store keeps one JSON cookie file per account under a configured directory
type Store struct {
	dir    string
	logger arbor.ILogger
}

// NewStore creates a session store rooted at dir
func NewStore(dir string, logger arbor.ILogger) *Store {
	return &Store{dir: dir, logger: logger}
}

// Path returns the session file path for an account
func (s *Store) Path(accountID int) string {
	return filepath.Join(s.dir, fmt.Sprintf("account_%d.json", accountID))
}

// Exists reports whether a session file is present for the account
func (s *Store) Exists(accountID int) bool {
	_, err := os.Stat(s.Path(accountID))
	return err == nil
}

// Load reads the saved session blob for an account
func (s *Store) Load(accountID int) (*models.SessionBlob, error) {
	data, err := os.ReadFile(s.Path(accountID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var blob models.SessionBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		if s.logger != nil {
			s.logger.Warn().
				Int("account_id", accountID).
				Err(err).
				Msg("Session file is corrupt - treating as missing")
		}
		return nil, ErrNotFound
	}

	return &blob, nil
}

// Save overwrites the session blob for an account. Directory creation is
// idempotent.
func (s *Store) Save(accountID int, cookies []models.Cookie) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create sessions directory: %w", err)
	}

	blob := models.SessionBlob{
		AccountID: accountID,
		Cookies:   cookies,
		SavedAt:   time.Now(),
	}

	data, err := json.MarshalIndent(&blob, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}

	if err := os.WriteFile(s.Path(accountID), data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}

	return nil
}

// Delete removes the saved session for an account. Missing files are fine.
func (s *Store) Delete(accountID int) error {
	err := os.Remove(s.Path(accountID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session file: %w", err)
	}
	return nil
}
