package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mesh-intelligence/fleetsync/pkg/types"
)

// noteColumns selects note fields plus the owner's record name, so every
// hydrated note knows its owner's remote identifier without a second query.
const noteColumns = `n.note_id, n.text, n.added, n.last_update, n.owner_id,
	n.record_name, n.record_id, v.record_name AS owner_record_name`

const noteFrom = " FROM notes n JOIN vehicles v ON v.vehicle_id = n.owner_id"

// SaveNote creates or updates a note through the local-edit path. A new note
// must reference an existing owner vehicle; LastUpdate is advanced to now.
// Returns the actual ID used.
func (s *Store) SaveNote(n *types.Note) (string, error) {
	db, err := s.conn()
	if err != nil {
		return "", err
	}
	if n.OwnerID == "" {
		return "", types.ErrNoteWithoutOwner
	}
	if _, err := s.GetVehicle(n.OwnerID); err != nil {
		return "", fmt.Errorf("resolving note owner: %w", err)
	}

	now := time.Now().UTC()
	isCreate := n.ID == ""
	if isCreate {
		n.ID = newID()
		n.Added = now
	}
	n.LastUpdate = now

	recordName, recordID := identityColumns(n.Remote)

	if isCreate {
		_, err = db.Exec(
			"INSERT INTO notes (note_id, text, added, last_update, owner_id, record_name, record_id) VALUES (?, ?, ?, ?, ?, ?, ?)",
			n.ID, n.Text, toNano(n.Added), toNano(n.LastUpdate), n.OwnerID, recordName, recordID,
		)
	} else {
		var res sql.Result
		res, err = db.Exec(
			"UPDATE notes SET text = ?, last_update = ?, record_name = ?, record_id = ? WHERE note_id = ?",
			n.Text, toNano(n.LastUpdate), recordName, recordID, n.ID,
		)
		if err == nil {
			if affected, _ := res.RowsAffected(); affected == 0 {
				return "", types.ErrNotFound
			}
		}
	}
	if err != nil {
		return "", fmt.Errorf("persisting note: %w", err)
	}

	ref := ObjectRef{Kind: types.KindNote, ID: n.ID, RecordName: n.Remote.RecordName}
	if isCreate {
		s.publish(ChangeSet{Inserted: []ObjectRef{ref}})
	} else {
		s.publish(ChangeSet{Updated: []ObjectRef{ref}})
	}
	return n.ID, nil
}

// GetNote retrieves a note by ID.
func (s *Store) GetNote(id string) (*types.Note, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, types.ErrInvalidID
	}
	row := db.QueryRow("SELECT "+noteColumns+noteFrom+" WHERE n.note_id = ?", id)
	n, err := scanNote(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("getting note %s: %w", id, err)
	}
	return n, nil
}

// ListNotes returns all notes owned by the given vehicle, oldest first.
func (s *Store) ListNotes(ownerID string) ([]*types.Note, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(
		"SELECT "+noteColumns+noteFrom+" WHERE n.owner_id = ? ORDER BY n.added ASC", ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}
	defer rows.Close()
	return collectNotes(rows)
}

// NotesChangedSince returns notes whose last_update is strictly after the
// watermark.
func (s *Store) NotesChangedSince(watermark time.Time) ([]*types.Note, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(
		"SELECT "+noteColumns+noteFrom+" WHERE n.last_update > ? ORDER BY n.added ASC",
		toNano(watermark),
	)
	if err != nil {
		return nil, fmt.Errorf("querying changed notes: %w", err)
	}
	defer rows.Close()
	return collectNotes(rows)
}

// FindNoteByRecordName looks a note up by its record name. Returns
// ErrNotFound when absent and ErrDuplicateRecord on local corruption.
func (s *Store) FindNoteByRecordName(recordName string) (*types.Note, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(
		"SELECT "+noteColumns+noteFrom+" WHERE n.record_name = ? LIMIT 2", recordName,
	)
	if err != nil {
		return nil, fmt.Errorf("finding note by record name: %w", err)
	}
	defer rows.Close()

	found, err := collectNotes(rows)
	if err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, types.ErrNotFound
	case 1:
		return found[0], nil
	default:
		return nil, types.ErrDuplicateRecord
	}
}

// StampNoteIdentity records the remote identity assigned to a note by an
// acknowledged push, without touching last_update.
func (s *Store) StampNoteIdentity(id string, ri types.RemoteIdentity) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	recordName, recordID := identityColumns(ri)
	res, err := db.Exec(
		"UPDATE notes SET record_name = ?, record_id = ? WHERE note_id = ?",
		recordName, recordID, id,
	)
	if err != nil {
		return fmt.Errorf("stamping note identity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return types.ErrNotFound
	}
	return nil
}

// DeleteNote removes a note, writing its tombstone in the same transaction
// when the note has been synced.
func (s *Store) DeleteNote(id string) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	n, err := s.GetNote(id)
	if err != nil {
		return err
	}

	// A synced note has a synced owner, so the owner's record name is
	// present and gives the zone its tombstone belongs to.
	var zone types.Zone
	if n.Remote.RecordName != "" {
		ownerKind, err := types.KindFromRecordName(n.OwnerName)
		if err != nil {
			return fmt.Errorf("deriving zone for note tombstone: %w", err)
		}
		if zone, err = types.ZoneForKind(ownerKind); err != nil {
			return fmt.Errorf("deriving zone for note tombstone: %w", err)
		}
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM notes WHERE note_id = ?", id); err != nil {
		return fmt.Errorf("deleting note: %w", err)
	}
	if err := insertTombstone(tx, n.Remote, types.KindNote, zone, time.Now().UTC()); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing note deletion: %w", err)
	}

	s.publish(ChangeSet{Deleted: []ObjectRef{{Kind: types.KindNote, ID: n.ID, RecordName: n.Remote.RecordName}}})
	return nil
}

// scanNote hydrates one joined row into a *types.Note.
func scanNote(row scanner) (*types.Note, error) {
	var n types.Note
	var added, lastUpdate int64
	var recordName, ownerName sql.NullString
	var recordID []byte
	if err := row.Scan(&n.ID, &n.Text, &added, &lastUpdate, &n.OwnerID, &recordName, &recordID, &ownerName); err != nil {
		return nil, err
	}
	n.Added = fromNano(added)
	n.LastUpdate = fromNano(lastUpdate)
	n.Remote = identityFromColumns(recordName, recordID)
	if ownerName.Valid {
		n.OwnerName = ownerName.String
	}
	return &n, nil
}

// collectNotes drains rows into a slice of notes.
func collectNotes(rows *sql.Rows) ([]*types.Note, error) {
	var result []*types.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("hydrating note: %w", err)
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating notes: %w", err)
	}
	return result, nil
}
