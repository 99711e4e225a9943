package sync

import (
	"fmt"

	"github.com/mesh-intelligence/fleetsync/internal/store"
	"github.com/mesh-intelligence/fleetsync/pkg/types"
)

// TokenStore persists the per-zone change cursors across runs. Cursors are
// opaque to the engine: they are handed back to the remote store verbatim on
// the next fetch. Losing one is safe, it only forces a full re-fetch of the
// zone.
type TokenStore struct {
	store *store.Store
}

// NewTokenStore returns a token store backed by st's key-value state table.
func NewTokenStore(st *store.Store) *TokenStore {
	return &TokenStore{store: st}
}

func cursorKey(zone types.Zone) string {
	return fmt.Sprintf("zone:%s:cursor", zone)
}

// Cursor returns the persisted cursor for the zone, nil when the zone has
// never completed a fetch.
func (t *TokenStore) Cursor(zone types.Zone) ([]byte, error) {
	return t.store.GetState(cursorKey(zone))
}

// SetCursor persists the zone's cursor, recording the fetch that just
// succeeded.
func (t *TokenStore) SetCursor(zone types.Zone, cursor []byte) error {
	return t.store.SetState(cursorKey(zone), cursor)
}

// ResetCursor clears the zone's cursor, forcing the next fetch to return
// the zone's full contents.
func (t *TokenStore) ResetCursor(zone types.Zone) error {
	return t.store.SetState(cursorKey(zone), nil)
}
