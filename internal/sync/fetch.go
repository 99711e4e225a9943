package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/fleetsync/internal/remote"
	"github.com/mesh-intelligence/fleetsync/internal/store"
	"github.com/mesh-intelligence/fleetsync/pkg/types"
)

// ZoneFetch is the outcome of one zone's incremental remote fetch.
type ZoneFetch struct {
	Zone    types.Zone
	Changed []*types.TransferRecord
	Deleted []string
}

// FetchZone fetches everything changed in the zone since its persisted
// cursor and persists the new cursor. The cursor advances on fetch success
// and never reverts, even when a later stage of the same run fails. A cursor
// the server no longer recognizes is discarded and the fetch restarts from
// the zone's full contents; incremental sync degrades to a full fetch, never
// to missed changes.
func FetchZone(ctx context.Context, client remote.Client, tokens *TokenStore, zone types.Zone) (*ZoneFetch, error) {
	cursor, err := tokens.Cursor(zone)
	if err != nil {
		return nil, fmt.Errorf("loading cursor for %s: %w", zone, err)
	}

	delta, err := client.FetchZoneChanges(ctx, zone, cursor)
	if errors.Is(err, remote.ErrBadCursor) && cursor != nil {
		if err := tokens.ResetCursor(zone); err != nil {
			return nil, fmt.Errorf("resetting cursor for %s: %w", zone, err)
		}
		delta, err = client.FetchZoneChanges(ctx, zone, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching changes for %s: %w", zone, err)
	}
	if err := tokens.SetCursor(zone, delta.Cursor); err != nil {
		return nil, fmt.Errorf("storing cursor for %s: %w", zone, err)
	}

	return &ZoneFetch{
		Zone:    zone,
		Changed: delta.Changed,
		Deleted: delta.Deleted,
	}, nil
}

// LocalDelta is everything changed locally since the watermark: edited or
// created objects plus the tombstones of local deletions still awaiting
// remote acknowledgment.
type LocalDelta struct {
	Changed    []types.Syncable
	Tombstones []*types.Tombstone
}

// FetchLocal collects the local change set. Vehicles come before notes so a
// later push can mint owner record names before the notes that reference
// them are materialized.
func FetchLocal(st *store.Store, settings *Settings) (*LocalDelta, error) {
	watermark, err := settings.Watermark()
	if err != nil {
		return nil, fmt.Errorf("loading watermark: %w", err)
	}

	var delta LocalDelta
	for _, kind := range types.RootKinds() {
		vehicles, err := st.VehiclesChangedSince(kind, watermark)
		if err != nil {
			return nil, fmt.Errorf("collecting changed %s vehicles: %w", kind, err)
		}
		for _, v := range vehicles {
			delta.Changed = append(delta.Changed, v)
		}
	}

	notes, err := st.NotesChangedSince(watermark)
	if err != nil {
		return nil, fmt.Errorf("collecting changed notes: %w", err)
	}
	for _, n := range notes {
		delta.Changed = append(delta.Changed, n)
	}

	tombstones, err := st.PendingTombstones()
	if err != nil {
		return nil, fmt.Errorf("collecting tombstones: %w", err)
	}
	for _, t := range tombstones {
		// An acked tombstone is already deleted remotely and just waits
		// for the sweeper; pushing it again would be a wasted delete.
		if !t.Acked {
			delta.Tombstones = append(delta.Tombstones, t)
		}
	}
	return &delta, nil
}
