package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mesh-intelligence/fleetsync/pkg/types"
)

// insertTombstone records a pending remote deletion inside the caller's
// transaction. Objects that were never synced have no remote record to
// delete, so a zero identity writes nothing.
func insertTombstone(tx *sql.Tx, ri types.RemoteIdentity, kind types.Kind, zone types.Zone, at time.Time) error {
	if ri.RecordName == "" {
		return nil
	}
	_, err := tx.Exec(
		"INSERT OR IGNORE INTO tombstones (record_name, kind, zone, created_at, acked) VALUES (?, ?, ?, ?, 0)",
		ri.RecordName, kind, zone, toNano(at),
	)
	if err != nil {
		return fmt.Errorf("inserting tombstone for %s: %w", ri.RecordName, err)
	}
	return nil
}

// PendingTombstones returns every tombstone that has not been swept, oldest
// first. Acked rows are included; they stay visible until the sweeper runs.
func (s *Store) PendingTombstones() ([]*types.Tombstone, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(
		"SELECT record_name, kind, zone, created_at, acked FROM tombstones ORDER BY created_at ASC",
	)
	if err != nil {
		return nil, fmt.Errorf("querying tombstones: %w", err)
	}
	defer rows.Close()

	var result []*types.Tombstone
	for rows.Next() {
		var t types.Tombstone
		var createdAt int64
		var acked int
		if err := rows.Scan(&t.RecordName, &t.Kind, &t.Zone, &createdAt, &acked); err != nil {
			return nil, fmt.Errorf("hydrating tombstone: %w", err)
		}
		t.CreatedAt = fromNano(createdAt)
		t.Acked = acked != 0
		result = append(result, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tombstones: %w", err)
	}
	return result, nil
}

// AckTombstone marks a tombstone's remote deletion as acknowledged, making
// the row eligible for the sweeper. Acking an absent row is a no-op: the
// delete may have been issued for a record the server already lost.
func (s *Store) AckTombstone(recordName string) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	if _, err := db.Exec("UPDATE tombstones SET acked = 1 WHERE record_name = ?", recordName); err != nil {
		return fmt.Errorf("acking tombstone %s: %w", recordName, err)
	}
	return nil
}

// SweepAckedTombstones deletes every acknowledged tombstone and returns how
// many were removed.
func (s *Store) SweepAckedTombstones() (int, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	res, err := db.Exec("DELETE FROM tombstones WHERE acked = 1")
	if err != nil {
		return 0, fmt.Errorf("sweeping tombstones: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
