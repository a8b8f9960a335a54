// Package credentials decides where the provider account lives:
// durable storage across restarts, or session storage for this process only.
package credentials

import (
	"errors"
	"fmt"
	"sync"

	"github.com/user/proxydeck/internal/model"
)

// Storage keys. Session keys carry the same logical values as the durable ones.
const (
	UsernameKey        = "smartproxyUsername"
	PasswordKey        = "smartproxyPassword"
	SessionUsernameKey = "session." + UsernameKey
	SessionPasswordKey = "session." + PasswordKey
)

// KV is the storage primitive the store is written against.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// Store holds the current credentials and applies the persistence policy.
type Store struct {
	mu      sync.Mutex
	durable KV
	session KV
	current model.Credentials
}

// NewStore creates a store. Call Load once at startup.
func NewStore(durable, session KV) *Store {
	return &Store{durable: durable, session: session}
}

// Load restores credentials. Durable storage wins when it holds both values.
func (s *Store) Load() (model.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, pass, err := readPair(s.durable, UsernameKey, PasswordKey)
	if err != nil {
		return s.current, fmt.Errorf("failed to load durable credentials: %w", err)
	}
	if user != "" && pass != "" {
		s.current = model.Credentials{Username: user, Password: pass, Persist: true}
		return s.current, nil
	}

	user, pass, err = readPair(s.session, SessionUsernameKey, SessionPasswordKey)
	if err != nil {
		return s.current, fmt.Errorf("failed to load session credentials: %w", err)
	}
	s.current = model.Credentials{Username: user, Password: pass}
	return s.current, nil
}

// Get returns the in-memory credentials.
func (s *Store) Get() model.Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Set records c and writes it to the backend chosen by c.Persist.
// Turning persistence off writes the session copy before erasing the durable one.
func (s *Store) Set(c model.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = c

	if c.Persist {
		if err := writePair(s.durable, UsernameKey, PasswordKey, c); err != nil {
			return fmt.Errorf("failed to persist credentials: %w", err)
		}
		if err := deletePair(s.session, SessionUsernameKey, SessionPasswordKey); err != nil {
			return fmt.Errorf("failed to drop session credentials: %w", err)
		}
		return nil
	}

	if err := writePair(s.session, SessionUsernameKey, SessionPasswordKey, c); err != nil {
		return fmt.Errorf("failed to store session credentials: %w", err)
	}
	if err := deletePair(s.durable, UsernameKey, PasswordKey); err != nil {
		return fmt.Errorf("failed to erase durable credentials: %w", err)
	}
	return nil
}

// Clear removes the pair from both backends and resets memory.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = model.Credentials{}

	return errors.Join(
		deletePair(s.durable, UsernameKey, PasswordKey),
		deletePair(s.session, SessionUsernameKey, SessionPasswordKey),
	)
}

func readPair(kv KV, userKey, passKey string) (string, string, error) {
	user, _, err := kv.Get(userKey)
	if err != nil {
		return "", "", err
	}
	pass, _, err := kv.Get(passKey)
	if err != nil {
		return "", "", err
	}
	return user, pass, nil
}

func writePair(kv KV, userKey, passKey string, c model.Credentials) error {
	if err := kv.Set(userKey, c.Username); err != nil {
		return err
	}
	return kv.Set(passKey, c.Password)
}

func deletePair(kv KV, userKey, passKey string) error {
	return errors.Join(kv.Delete(userKey), kv.Delete(passKey))
}
