package types

import "time"

// Note is the child syncable entity. Every note belongs to exactly one root
// vehicle, referenced by OwnerID in the local store; it is deleted when its
// owner is deleted. On the wire a note travels in its owner's zone with a
// Parent reference carrying the owner's record name.
type Note struct {
	ID         string    // UUID v7, generated on creation.
	Text       string    // Note body.
	Added      time.Time // Timestamp of creation.
	LastUpdate time.Time // Timestamp of last modification.
	OwnerID    string    // Local ID of the owning vehicle.
	OwnerName  string    // Owner's record name; populated by store queries, empty if the owner was never synced.
	Remote     RemoteIdentity
}

// Compile-time interface check: Note must implement Syncable.
var _ Syncable = (*Note)(nil)

// RecordKind returns KindNote.
func (n *Note) RecordKind() Kind { return KindNote }

// Identity returns the note's remote identity; zero if never synced.
func (n *Note) Identity() RemoteIdentity { return n.Remote }

// SetIdentity stamps the note's remote identity.
func (n *Note) SetIdentity(ri RemoteIdentity) { n.Remote = ri }

// LastUpdated returns the last-modification timestamp.
func (n *Note) LastUpdated() time.Time { return n.LastUpdate }

// ToRecord materializes a push payload for the note. The record is placed in
// the owner's zone, derived from the owner's record name. A note whose owner
// has never been synced cannot be pushed yet; it returns ErrNoteWithoutOwner
// and stays pending until the owner's record exists.
func (n *Note) ToRecord(existing *TransferRecord) (*TransferRecord, error) {
	if n.Added.IsZero() || n.LastUpdate.IsZero() {
		return nil, ErrMissingField
	}

	var rec *TransferRecord
	if existing != nil {
		rec = existing.Clone()
	} else {
		if n.OwnerName == "" {
			return nil, ErrNoteWithoutOwner
		}
		ownerKind, err := KindFromRecordName(n.OwnerName)
		if err != nil {
			return nil, err
		}
		zone, err := ZoneForKind(ownerKind)
		if err != nil {
			return nil, err
		}
		name := n.Remote.RecordName
		if name == "" {
			name = NewRecordName(KindNote)
			n.Remote.RecordName = name
		}
		rec = &TransferRecord{
			RecordName: name,
			RecordID:   append([]byte(nil), n.Remote.RecordID...),
			Kind:       KindNote,
			Zone:       zone,
			Parent:     n.OwnerName,
		}
	}

	rec.Text = n.Text
	rec.Added = n.Added
	rec.LastUpdate = n.LastUpdate
	return rec, nil
}

// ApplyRecord overwrites the note's fields from a fetched record and updates
// its remote identity. The owner reference arrives as a record name; the
// store resolves it to a local OwnerID when applying, so only OwnerName is
// set here.
func (n *Note) ApplyRecord(rec *TransferRecord) error {
	if rec.Kind != KindNote {
		return ErrKindMismatch
	}
	if rec.Parent == "" {
		return ErrNoteWithoutOwner
	}
	if rec.Added.IsZero() || rec.LastUpdate.IsZero() {
		return ErrMissingField
	}
	n.Text = rec.Text
	n.Added = rec.Added
	n.LastUpdate = rec.LastUpdate
	n.OwnerName = rec.Parent
	n.Remote = RemoteIdentity{
		RecordName: rec.RecordName,
		RecordID:   append([]byte(nil), rec.RecordID...),
	}
	return nil
}
