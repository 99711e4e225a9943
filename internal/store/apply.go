package store

import (
	"errors"
	"fmt"

	"github.com/mesh-intelligence/fleetsync/pkg/types"
)

// This file is the remote-apply path: upserts and deletes that originate on
// the server. Unlike the local-edit path it preserves the record's own
// timestamps, writes no tombstones (a remote-initiated delete must not echo
// back to the server), and stamps remote identities directly.

// ApplyRecord upserts a fetched record into the local store, looking the
// target up by record name within the record's kind. Inserting a note
// resolves its owner by the parent record name; a parent that cannot be
// found locally is corruption and fails the apply.
func (s *Store) ApplyRecord(rec *types.TransferRecord) (ObjectRef, error) {
	if err := rec.Validate(); err != nil {
		return ObjectRef{}, fmt.Errorf("validating record %s: %w", rec.RecordName, err)
	}
	if rec.Kind == types.KindNote {
		return s.applyNoteRecord(rec)
	}
	return s.applyVehicleRecord(rec)
}

func (s *Store) applyVehicleRecord(rec *types.TransferRecord) (ObjectRef, error) {
	db, err := s.conn()
	if err != nil {
		return ObjectRef{}, err
	}

	v, err := s.FindVehicleByRecordName(rec.RecordName)
	switch {
	case err == nil:
		if err := v.ApplyRecord(rec); err != nil {
			return ObjectRef{}, fmt.Errorf("applying record %s: %w", rec.RecordName, err)
		}
		recordName, recordID := identityColumns(v.Remote)
		_, err = db.Exec(
			"UPDATE vehicles SET name = ?, added = ?, last_update = ?, record_name = ?, record_id = ? WHERE vehicle_id = ?",
			v.Name, toNano(v.Added), toNano(v.LastUpdate), recordName, recordID, v.ID,
		)
		if err != nil {
			return ObjectRef{}, fmt.Errorf("updating vehicle from record: %w", err)
		}
		ref := ObjectRef{Kind: v.Kind, ID: v.ID, RecordName: rec.RecordName}
		s.publish(ChangeSet{Updated: []ObjectRef{ref}})
		return ref, nil

	case errors.Is(err, types.ErrNotFound):
		v = &types.Vehicle{ID: newID(), Kind: rec.Kind}
		if err := v.ApplyRecord(rec); err != nil {
			return ObjectRef{}, fmt.Errorf("applying record %s: %w", rec.RecordName, err)
		}
		recordName, recordID := identityColumns(v.Remote)
		_, err = db.Exec(
			"INSERT INTO vehicles ("+vehicleColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
			v.ID, v.Kind, v.Name, toNano(v.Added), toNano(v.LastUpdate), recordName, recordID,
		)
		if err != nil {
			return ObjectRef{}, fmt.Errorf("inserting vehicle from record: %w", err)
		}
		ref := ObjectRef{Kind: v.Kind, ID: v.ID, RecordName: rec.RecordName}
		s.publish(ChangeSet{Inserted: []ObjectRef{ref}})
		return ref, nil

	default:
		return ObjectRef{}, err
	}
}

func (s *Store) applyNoteRecord(rec *types.TransferRecord) (ObjectRef, error) {
	db, err := s.conn()
	if err != nil {
		return ObjectRef{}, err
	}

	owner, err := s.FindVehicleByRecordName(rec.Parent)
	if err != nil {
		return ObjectRef{}, fmt.Errorf("resolving owner %s for note %s: %w", rec.Parent, rec.RecordName, err)
	}

	n, err := s.FindNoteByRecordName(rec.RecordName)
	switch {
	case err == nil:
		if err := n.ApplyRecord(rec); err != nil {
			return ObjectRef{}, fmt.Errorf("applying record %s: %w", rec.RecordName, err)
		}
		recordName, recordID := identityColumns(n.Remote)
		_, err = db.Exec(
			"UPDATE notes SET text = ?, added = ?, last_update = ?, owner_id = ?, record_name = ?, record_id = ? WHERE note_id = ?",
			n.Text, toNano(n.Added), toNano(n.LastUpdate), owner.ID, recordName, recordID, n.ID,
		)
		if err != nil {
			return ObjectRef{}, fmt.Errorf("updating note from record: %w", err)
		}
		ref := ObjectRef{Kind: types.KindNote, ID: n.ID, RecordName: rec.RecordName}
		s.publish(ChangeSet{Updated: []ObjectRef{ref}})
		return ref, nil

	case errors.Is(err, types.ErrNotFound):
		n = &types.Note{ID: newID(), OwnerID: owner.ID}
		if err := n.ApplyRecord(rec); err != nil {
			return ObjectRef{}, fmt.Errorf("applying record %s: %w", rec.RecordName, err)
		}
		recordName, recordID := identityColumns(n.Remote)
		_, err = db.Exec(
			"INSERT INTO notes (note_id, text, added, last_update, owner_id, record_name, record_id) VALUES (?, ?, ?, ?, ?, ?, ?)",
			n.ID, n.Text, toNano(n.Added), toNano(n.LastUpdate), owner.ID, recordName, recordID,
		)
		if err != nil {
			return ObjectRef{}, fmt.Errorf("inserting note from record: %w", err)
		}
		ref := ObjectRef{Kind: types.KindNote, ID: n.ID, RecordName: rec.RecordName}
		s.publish(ChangeSet{Inserted: []ObjectRef{ref}})
		return ref, nil

	default:
		return ObjectRef{}, err
	}
}

// ApplyDelete removes the object carrying the given record name, deriving
// the kind from the name's prefix. Deleting a root cascades to its notes.
// Absence is not an error: the object is already gone.
func (s *Store) ApplyDelete(recordName string) (bool, error) {
	db, err := s.conn()
	if err != nil {
		return false, err
	}
	kind, err := types.KindFromRecordName(recordName)
	if err != nil {
		return false, fmt.Errorf("deriving kind for delete of %s: %w", recordName, err)
	}

	if kind == types.KindNote {
		n, err := s.FindNoteByRecordName(recordName)
		if errors.Is(err, types.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if _, err := db.Exec("DELETE FROM notes WHERE note_id = ?", n.ID); err != nil {
			return false, fmt.Errorf("deleting note from record: %w", err)
		}
		s.publish(ChangeSet{Deleted: []ObjectRef{{Kind: types.KindNote, ID: n.ID, RecordName: recordName}}})
		return true, nil
	}

	v, err := s.FindVehicleByRecordName(recordName)
	if errors.Is(err, types.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	notes, err := s.ListNotes(v.ID)
	if err != nil {
		return false, err
	}

	tx, err := db.Begin()
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.Exec("DELETE FROM notes WHERE owner_id = ?", v.ID); err != nil {
		return false, fmt.Errorf("deleting notes for vehicle: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM vehicles WHERE vehicle_id = ?", v.ID); err != nil {
		return false, fmt.Errorf("deleting vehicle from record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing delete: %w", err)
	}

	deleted := []ObjectRef{{Kind: v.Kind, ID: v.ID, RecordName: recordName}}
	for _, n := range notes {
		deleted = append(deleted, ObjectRef{Kind: types.KindNote, ID: n.ID, RecordName: n.Remote.RecordName})
	}
	s.publish(ChangeSet{Deleted: deleted})
	return true, nil
}
