package storage

import (
	"database/sql"
	"fmt"
)

// KVStorage is a string key/value table used as durable storage.
type KVStorage struct {
	db *DB
}

// NewKVStorage creates a new KV storage handler.
func NewKVStorage(db *DB) *KVStorage {
	return &KVStorage{db: db}
}

// Get returns the value for key and whether it was present.
func (s *KVStorage) Get(key string) (string, bool, error) {
	var value string
	err := s.db.WithRLock(func() error {
		return s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	})
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read key %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (s *KVStorage) Set(key, value string) error {
	query := `INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
			  ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`

	return s.db.WithLock(func() error {
		if _, err := s.db.Exec(query, key, value); err != nil {
			return fmt.Errorf("failed to write key %s: %w", key, err)
		}
		return nil
	})
}

// Delete removes key. Deleting a missing key is not an error.
func (s *KVStorage) Delete(key string) error {
	return s.db.WithLock(func() error {
		if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
			return fmt.Errorf("failed to delete key %s: %w", key, err)
		}
		return nil
	})
}

// Keys returns all stored keys. Values are not returned.
func (s *KVStorage) Keys() ([]string, error) {
	var keys []string
	err := s.db.WithRLock(func() error {
		rows, err := s.db.Query(`SELECT key FROM kv ORDER BY key`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var k string
			if err := rows.Scan(&k); err != nil {
				return err
			}
			keys = append(keys, k)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	return keys, nil
}
