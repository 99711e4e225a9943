// Package store implements the local persistent object store on SQLite.
// It owns the vehicles, notes, tombstones and sync_state tables, hands out
// typed entities from pkg/types, and publishes change notifications after
// every committed mutation so presentation collaborators can refresh.
package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/fleetsync/pkg/types"
)

//go:embed schema.sql
var schemaSQL string

// Store is the SQLite-backed local object store. It is safe for concurrent
// use; writes are serialized by the database and notifications are published
// outside the transaction that produced them.
type Store struct {
	mu     sync.RWMutex
	open   bool
	config types.Config
	db     *sql.DB
	log    *slog.Logger

	subMu sync.Mutex
	subs  map[int]chan ChangeSet
	nextS int
}

// New creates an unopened store. Call Open with a Config to initialize.
func New(log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		log:  log,
		subs: make(map[int]chan ChangeSet),
	}
}

// Open creates the data directory if needed, opens the database and applies
// the schema. Returns ErrAlreadyOpen if called while open.
func (s *Store) Open(config types.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open {
		return types.ErrAlreadyOpen
	}
	if err := config.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(config.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	dbPath := filepath.Join(config.DataDir, "fleetsync.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return fmt.Errorf("applying schema: %w", err)
	}

	s.db = db
	s.config = config
	s.open = true
	s.log.Debug("store opened", "path", dbPath)
	return nil
}

// Close releases the database. Idempotent: closing a closed store succeeds.
// After Close, operations return ErrStoreClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return err
	}
	s.db = nil
	s.open = false
	return nil
}

// conn returns the database handle, or ErrStoreClosed.
func (s *Store) conn() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.open {
		return nil, types.ErrStoreClosed
	}
	return s.db, nil
}

// newID generates a UUID v7 entity ID, falling back to v4 if the clock-based
// generator fails.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// identityColumns maps a RemoteIdentity to nullable column values.
func identityColumns(ri types.RemoteIdentity) (recordName any, recordID any) {
	if ri.RecordName != "" {
		recordName = ri.RecordName
	}
	if len(ri.RecordID) > 0 {
		recordID = ri.RecordID
	}
	return recordName, recordID
}

// identityFromColumns rebuilds a RemoteIdentity from nullable columns.
func identityFromColumns(recordName sql.NullString, recordID []byte) types.RemoteIdentity {
	var ri types.RemoteIdentity
	if recordName.Valid {
		ri.RecordName = recordName.String
	}
	if len(recordID) > 0 {
		ri.RecordID = append([]byte(nil), recordID...)
	}
	return ri
}
