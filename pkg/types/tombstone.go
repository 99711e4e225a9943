package types

import "time"

// Tombstone is a durable marker for a local deletion that has not yet been
// propagated to the remote store. It is created in the same transaction as
// the delete and destroyed only after the remote push of that deletion has
// been acknowledged; a lingering tombstone costs one redundant delete
// attempt and nothing more.
type Tombstone struct {
	RecordName string    // Record name of the deleted object.
	Kind       Kind      // Kind of the deleted object.
	Zone       Zone      // Remote zone holding the record; a note inherits its owner's zone.
	CreatedAt  time.Time // When the local delete happened.
	Acked      bool      // Set once the remote delete is acknowledged; makes the row sweepable.
}
