package types

import "time"

// Vehicle is a root syncable entity. Car, Truck and Bus share this shape and
// differ only in Kind, which decides the remote zone the vehicle syncs to.
type Vehicle struct {
	ID         string    // UUID v7, generated on creation.
	Kind       Kind      // One of the root kinds.
	Name       string    // Human-readable name (required, non-empty).
	Added      time.Time // Timestamp of creation.
	LastUpdate time.Time // Timestamp of last modification; drives conflict resolution.
	Remote     RemoteIdentity
}

// Compile-time interface check: Vehicle must implement Syncable.
var _ Syncable = (*Vehicle)(nil)

// RecordKind returns the vehicle's kind.
func (v *Vehicle) RecordKind() Kind { return v.Kind }

// Identity returns the vehicle's remote identity; zero if never synced.
func (v *Vehicle) Identity() RemoteIdentity { return v.Remote }

// SetIdentity stamps the vehicle's remote identity.
func (v *Vehicle) SetIdentity(ri RemoteIdentity) { v.Remote = ri }

// LastUpdated returns the last-modification timestamp.
func (v *Vehicle) LastUpdated() time.Time { return v.LastUpdate }

// ToRecord materializes a push payload for the vehicle. When the server's
// current copy was pre-fetched it is used as the base so unrelated server
// fields survive the overwrite; otherwise a fresh record is built, minting a
// record name for a vehicle that has never been synced. The minted name is
// kept on the in-memory entity; the durable identity stamp happens only once
// the push is acknowledged.
func (v *Vehicle) ToRecord(existing *TransferRecord) (*TransferRecord, error) {
	if !v.Kind.IsRoot() {
		return nil, ErrInvalidKind
	}
	if v.Name == "" || v.Added.IsZero() || v.LastUpdate.IsZero() {
		return nil, ErrMissingField
	}
	zone, err := ZoneForKind(v.Kind)
	if err != nil {
		return nil, err
	}

	var rec *TransferRecord
	if existing != nil {
		rec = existing.Clone()
	} else {
		name := v.Remote.RecordName
		if name == "" {
			name = NewRecordName(v.Kind)
			v.Remote.RecordName = name
		}
		rec = &TransferRecord{
			RecordName: name,
			RecordID:   append([]byte(nil), v.Remote.RecordID...),
			Kind:       v.Kind,
			Zone:       zone,
		}
	}

	rec.Name = v.Name
	rec.Added = v.Added
	rec.LastUpdate = v.LastUpdate
	return rec, nil
}

// ApplyRecord overwrites the vehicle's fields from a fetched record and
// updates its remote identity.
func (v *Vehicle) ApplyRecord(rec *TransferRecord) error {
	if rec.Kind != v.Kind {
		return ErrKindMismatch
	}
	if rec.Name == "" || rec.Added.IsZero() || rec.LastUpdate.IsZero() {
		return ErrMissingField
	}
	v.Name = rec.Name
	v.Added = rec.Added
	v.LastUpdate = rec.LastUpdate
	v.Remote = RemoteIdentity{
		RecordName: rec.RecordName,
		RecordID:   append([]byte(nil), rec.RecordID...),
	}
	return nil
}
