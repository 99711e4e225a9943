package types

import "time"

// TransferRecord is the wire representation of a syncable object: the shape
// pushed to and fetched from the remote store. Name is set for root kinds,
// Text and Parent for notes. RecordID is the server's opaque identifier and
// is never interpreted locally.
type TransferRecord struct {
	RecordName string
	RecordID   []byte
	Kind       Kind
	Zone       Zone
	Name       string
	Text       string
	Parent     string
	Added      time.Time
	LastUpdate time.Time
}

// Validate checks the structural invariants of a record: a parseable record
// name whose kind prefix matches Kind, a zone, timestamps, and the required
// per-kind fields. A note record must carry a parent reference.
func (r *TransferRecord) Validate() error {
	kind, err := KindFromRecordName(r.RecordName)
	if err != nil {
		return err
	}
	if kind != r.Kind {
		return ErrKindMismatch
	}
	if r.Zone == "" || !r.Zone.Valid() {
		return ErrUnknownZone
	}
	if r.Added.IsZero() || r.LastUpdate.IsZero() {
		return ErrMissingField
	}
	if r.Kind == KindNote {
		if r.Parent == "" {
			return ErrNoteWithoutOwner
		}
		return nil
	}
	if r.Name == "" {
		return ErrMissingField
	}
	return nil
}

// Clone returns a deep copy of the record.
func (r *TransferRecord) Clone() *TransferRecord {
	c := *r
	if r.RecordID != nil {
		c.RecordID = append([]byte(nil), r.RecordID...)
	}
	return &c
}

// Syncable is implemented by every local entity that maps to a remote record.
// ToRecord materializes a push payload, building on top of the server's
// current copy when one was pre-fetched; ApplyRecord overwrites the entity's
// fields from a fetched record. Both report mapping failures as errors
// rather than asserting.
type Syncable interface {
	RecordKind() Kind
	Identity() RemoteIdentity
	SetIdentity(RemoteIdentity)
	LastUpdated() time.Time
	ToRecord(existing *TransferRecord) (*TransferRecord, error)
	ApplyRecord(rec *TransferRecord) error
}

// RemoteIdentity links a local object to its remote record: the
// human-readable record name used for lookups plus the server's opaque
// record identifier. A never-synced object has a zero RemoteIdentity.
type RemoteIdentity struct {
	RecordName string
	RecordID   []byte
}

// IsZero reports whether the object has never been assigned a remote record.
func (ri RemoteIdentity) IsZero() bool {
	return ri.RecordName == "" && len(ri.RecordID) == 0
}
