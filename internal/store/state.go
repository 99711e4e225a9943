package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// GetState returns the value stored under key, or (nil, nil) when the key
// has never been set. Values are opaque to the store.
func (s *Store) GetState(key string) ([]byte, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	var value []byte
	err = db.QueryRow("SELECT value FROM sync_state WHERE key = ?", key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading state %s: %w", key, err)
	}
	return value, nil
}

// SetState stores value under key, replacing any previous value. A nil
// value deletes the key, which is how a partition cursor is reset to force
// a full re-fetch.
func (s *Store) SetState(key string, value []byte) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	if value == nil {
		if _, err := db.Exec("DELETE FROM sync_state WHERE key = ?", key); err != nil {
			return fmt.Errorf("clearing state %s: %w", key, err)
		}
		return nil
	}
	_, err = db.Exec(
		"INSERT INTO sync_state (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("writing state %s: %w", key, err)
	}
	return nil
}
