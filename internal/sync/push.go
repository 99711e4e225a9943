package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mesh-intelligence/fleetsync/internal/remote"
	"github.com/mesh-intelligence/fleetsync/internal/store"
	"github.com/mesh-intelligence/fleetsync/pkg/types"
)

// Pusher sends the local winners of a run to the remote store and records
// the acknowledgments: server-assigned identities are stamped onto the
// objects that were saved, and tombstones whose deletions were accepted are
// acked for the sweeper.
type Pusher struct {
	store  *store.Store
	client remote.Client
	log    *slog.Logger
}

// NewPusher returns a pusher over the given store and client.
func NewPusher(st *store.Store, client remote.Client, log *slog.Logger) *Pusher {
	return &Pusher{store: st, client: client, log: log}
}

// Push uploads upserts and deletes in one batch. Before overwriting a record
// the server already has, its current copy is fetched and used as the base,
// so fields this device does not model survive the write.
//
// Individual record failures do not abort the batch: the successes are
// committed (identities stamped, tombstones acked) and the failures are
// joined into the returned error so the run does not advance its watermark
// past them. A batch-level failure commits nothing.
func (p *Pusher) Push(ctx context.Context, upserts []types.Syncable, deletes []string) error {
	if len(upserts) == 0 && len(deletes) == 0 {
		return nil
	}

	var known []string
	for _, obj := range upserts {
		if name := obj.Identity().RecordName; name != "" {
			known = append(known, name)
		}
	}
	existing := make(map[string]*types.TransferRecord)
	if len(known) > 0 {
		var err error
		existing, err = p.client.FetchRecords(ctx, known)
		if err != nil {
			return fmt.Errorf("prefetching server copies: %w", err)
		}
	}

	var itemErrs []error
	var saves []*types.TransferRecord
	sources := make(map[string]types.Syncable, len(upserts))

	// Vehicles are materialized first: a new vehicle mints its record name
	// here, and the minted names are what new notes reference as owners.
	minted := make(map[string]string)
	var notes []*types.Note
	for _, obj := range upserts {
		n, ok := obj.(*types.Note)
		if ok {
			notes = append(notes, n)
			continue
		}
		rec, err := obj.ToRecord(existing[obj.Identity().RecordName])
		if err != nil {
			itemErrs = append(itemErrs, fmt.Errorf("materializing %s record: %w", obj.RecordKind(), err))
			continue
		}
		if v, ok := obj.(*types.Vehicle); ok {
			minted[v.ID] = rec.RecordName
		}
		saves = append(saves, rec)
		sources[rec.RecordName] = obj
	}
	for _, n := range notes {
		if n.OwnerName == "" {
			n.OwnerName = minted[n.OwnerID]
		}
		rec, err := n.ToRecord(existing[n.Remote.RecordName])
		if err != nil {
			itemErrs = append(itemErrs, fmt.Errorf("materializing note %s record: %w", n.ID, err))
			continue
		}
		saves = append(saves, rec)
		sources[rec.RecordName] = n
	}

	result, err := p.client.Modify(ctx, saves, deletes)
	if err != nil {
		return fmt.Errorf("pushing batch: %w", err)
	}

	for _, rec := range result.Saved {
		obj, ok := sources[rec.RecordName]
		if !ok {
			continue
		}
		ri := types.RemoteIdentity{RecordName: rec.RecordName, RecordID: rec.RecordID}
		obj.SetIdentity(ri)
		if err := p.stampIdentity(obj, ri); err != nil {
			itemErrs = append(itemErrs, err)
		}
	}
	for _, name := range result.Deleted {
		if err := p.store.AckTombstone(name); err != nil {
			itemErrs = append(itemErrs, err)
		}
	}
	for name, err := range result.Failed {
		p.log.Warn("record push rejected", "record", name, "error", err)
		itemErrs = append(itemErrs, fmt.Errorf("pushing %s: %w", name, err))
	}

	p.log.Info("push complete",
		"saved", len(result.Saved), "deleted", len(result.Deleted), "failed", len(result.Failed))
	return errors.Join(itemErrs...)
}

func (p *Pusher) stampIdentity(obj types.Syncable, ri types.RemoteIdentity) error {
	switch o := obj.(type) {
	case *types.Vehicle:
		if err := p.store.StampVehicleIdentity(o.ID, ri); err != nil {
			return fmt.Errorf("stamping vehicle %s: %w", o.ID, err)
		}
	case *types.Note:
		if err := p.store.StampNoteIdentity(o.ID, ri); err != nil {
			return fmt.Errorf("stamping note %s: %w", o.ID, err)
		}
	default:
		return fmt.Errorf("stamping %s: unknown syncable %T", ri.RecordName, obj)
	}
	return nil
}
