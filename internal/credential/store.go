// Package credential persists the server auth token for the client.
package credential

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// ErrTokenExpired is returned by Token when the stored token is a JWT whose
// exp claim has passed.
var ErrTokenExpired = errors.New("stored token has expired")

// File is the on-disk credential format.
type File struct {
	Version   string    `yaml:"version"`
	ServerURL string    `yaml:"server_url,omitempty"`
	Token     string    `yaml:"token,omitempty"`
	SavedAt   time.Time `yaml:"saved_at,omitempty"`
}

// Store manages the auth token with in-memory caching and file persistence.
// An empty path keeps the token in memory only.
type Store struct {
	mu     sync.RWMutex
	cred   File
	path   string
	now    func() time.Time
	logger zerolog.Logger
}

// DefaultPath returns ~/.pilotdeck/credentials.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".pilotdeck", "credentials.yaml"), nil
}

// NewStore creates a store and loads path if it exists.
func NewStore(path string, logger zerolog.Logger) (*Store, error) {
	s := &Store{
		path:   path,
		now:    time.Now,
		logger: logger.With().Str("component", "credential").Logger(),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file, or "" for an in-memory store.
func (s *Store) Path() string {
	return s.path
}

// Token returns the stored token, or "" when none is stored. A JWT whose
// expiry has passed yields ErrTokenExpired; opaque tokens are returned as is.
func (s *Store) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.RLock()
	token := s.cred.Token
	s.mu.RUnlock()

	if token == "" {
		return "", nil
	}
	if exp, ok := ExpiresAt(token); ok && !s.now().Before(exp) {
		return "", fmt.Errorf("%w (expired %s)", ErrTokenExpired, exp.Format(time.RFC3339))
	}
	return token, nil
}

// ServerURL returns the server the token was issued by.
func (s *Store) ServerURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred.ServerURL
}

// Set stores a token and persists it.
func (s *Store) Set(serverURL, token string) error {
	if token == "" {
		return errors.New("token cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.cred
	s.cred = File{
		Version:   "1",
		ServerURL: serverURL,
		Token:     token,
		SavedAt:   s.now().UTC(),
	}
	if err := s.saveLocked(); err != nil {
		s.cred = prev
		return fmt.Errorf("failed to persist token: %w", err)
	}
	return nil
}

// Clear forgets the token, keeping the server URL. Clearing an empty store
// is a no-op.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cred.Token == "" {
		return nil
	}
	prev := s.cred
	s.cred.Token = ""
	s.cred.SavedAt = s.now().UTC()
	if err := s.saveLocked(); err != nil {
		s.cred = prev
		return fmt.Errorf("failed to persist token removal: %w", err)
	}
	s.logger.Info().Msg("Stored token cleared")
	return nil
}

// Reload re-reads the backing file. A missing file means no credential.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.mu.Lock()
			s.cred = File{}
			s.mu.Unlock()
			return nil
		}
		return fmt.Errorf("failed to read credentials file: %w", err)
	}

	var cred File
	if err := yaml.Unmarshal(data, &cred); err != nil {
		return fmt.Errorf("failed to parse credentials file: %w", err)
	}

	s.mu.Lock()
	s.cred = cred
	s.mu.Unlock()
	return nil
}

func (s *Store) saveLocked() error {
	if s.path == "" {
		return nil
	}

	data, err := yaml.Marshal(s.cred)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}

	// Write to a temp file and rename so watchers never see a partial file.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace credentials file: %w", err)
	}
	return nil
}

// ExpiresAt reads the exp claim of a JWT without verifying its signature.
// The server is the authority on validity; this only avoids connecting with
// a token that is known to be stale. ok is false for non-JWT tokens and JWTs
// without exp.
func ExpiresAt(token string) (time.Time, bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
