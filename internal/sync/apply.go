package sync

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/mesh-intelligence/fleetsync/internal/store"
	"github.com/mesh-intelligence/fleetsync/pkg/types"
)

// Applier writes the remote winners of a run into the local store.
type Applier struct {
	store *store.Store
	log   *slog.Logger
}

// NewApplier returns an applier over the given store.
func NewApplier(st *store.Store, log *slog.Logger) *Applier {
	return &Applier{store: st, log: log}
}

// Apply upserts and deletes remote changes locally. Root records are applied
// before note records, so a note arriving together with its new owner finds
// the owner already present. A record that fails validation or references an
// owner that does not exist is corruption: the apply stops there, the stage
// fails, and the zone's cursor is not advanced.
func (a *Applier) Apply(upserts []*types.TransferRecord, deletes []string) error {
	var roots, notes []*types.TransferRecord
	for _, rec := range upserts {
		if rec.Kind == types.KindNote {
			notes = append(notes, rec)
		} else {
			roots = append(roots, rec)
		}
	}

	applied := 0
	for _, rec := range append(roots, notes...) {
		if _, err := a.store.ApplyRecord(rec); err != nil {
			if isStructural(err) {
				return &CorruptionError{RecordName: rec.RecordName, Err: err}
			}
			return fmt.Errorf("applying %s: %w", rec.RecordName, err)
		}
		applied++
	}

	removed := 0
	for _, name := range deletes {
		found, err := a.store.ApplyDelete(name)
		if err != nil {
			if isStructural(err) {
				return &CorruptionError{RecordName: name, Err: err}
			}
			return fmt.Errorf("applying delete of %s: %w", name, err)
		}
		if found {
			removed++
		}
	}

	a.log.Info("apply complete", "applied", applied, "removed", removed)
	return nil
}

// isStructural reports whether the error means the data itself is broken
// rather than the store misbehaving.
func isStructural(err error) bool {
	return errors.Is(err, types.ErrInvalidRecordName) ||
		errors.Is(err, types.ErrKindMismatch) ||
		errors.Is(err, types.ErrUnknownZone) ||
		errors.Is(err, types.ErrMissingField) ||
		errors.Is(err, types.ErrNoteWithoutOwner) ||
		errors.Is(err, types.ErrDuplicateRecord) ||
		errors.Is(err, types.ErrNotFound)
}
