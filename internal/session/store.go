// Package session persists the authenticated session between runs.
package session

import (
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"

	"github.com/eduramiba/auth0-pkce-login/pkg/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const fileName = "session.json"

// Store reads and writes the session file inside a directory.
type Store struct {
	path string
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{path: filepath.Join(dir, fileName)}
}

// Path returns the session file location.
func (s *Store) Path() string {
	return s.path
}

// Load returns the stored session, or nil when no usable session exists. A
// missing or unreadable file is not an error: the caller falls back to a
// fresh login.
func (s *Store) Load() (*types.Session, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("unable to read session file: %w", err)
	}

	var session types.Session
	if err := json.Unmarshal(data, &session); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("discarding corrupt session file")
		return nil, nil
	}
	if !session.Valid() {
		log.Warn().Str("path", s.path).Msg("discarding incomplete session file")
		return nil, nil
	}
	return &session, nil
}

// Save writes the session with owner-only permissions, creating the
// directory if needed.
func (s *Store) Save(session *types.Session) error {
	if !session.Valid() {
		return fmt.Errorf("refusing to save an incomplete session")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("unable to create session directory: %w", err)
	}
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("unable to encode session: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("unable to write session file: %w", err)
	}
	return nil
}

// Clear removes the session file. Clearing an absent session is a no-op.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("unable to remove session file: %w", err)
	}
	return nil
}
