// Package remote defines the contract between the sync engine and the remote
// record store, together with an in-memory implementation used by the CLI and
// the tests. The engine only ever talks through the Client interface, so a
// hosted backend can be swapped in without touching the sync pipeline.
package remote

import (
	"context"
	"errors"

	"github.com/mesh-intelligence/fleetsync/pkg/types"
)

// Availability describes whether the remote account can be used for syncing.
type Availability int

const (
	// Available means the account is signed in and usable.
	Available Availability = iota
	// Restricted means the account exists but access is denied.
	Restricted
	// NoAccount means no account is configured on this device.
	NoAccount
	// StatusUnknown means the status check itself failed.
	StatusUnknown
)

// String returns a human-readable name for the availability state.
func (a Availability) String() string {
	switch a {
	case Available:
		return "available"
	case Restricted:
		return "restricted"
	case NoAccount:
		return "no account"
	}
	return "unknown"
}

var (
	// ErrUnavailable is returned by operations attempted while the remote
	// store cannot be reached or the account is unusable.
	ErrUnavailable = errors.New("remote store unavailable")

	// ErrZoneNotFound is returned when an operation targets a zone the
	// server does not have.
	ErrZoneNotFound = errors.New("zone not found")

	// ErrBadCursor is returned when a change cursor is not one this server
	// issued. The caller should reset the cursor and re-fetch from scratch.
	ErrBadCursor = errors.New("change cursor not recognized")
)

// ZoneDelta is the result of one incremental fetch against a zone: every
// record changed since the cursor, the names of records deleted since the
// cursor, and the new cursor to persist once the delta has been applied.
type ZoneDelta struct {
	Changed []*types.TransferRecord
	Deleted []string
	Cursor  []byte
}

// ModifyResult reports the outcome of a batch modify. Saved holds the
// server's copy of each accepted record, with the server-assigned record ID
// filled in. Deleted lists the record names whose deletion was acknowledged,
// including names the server had already lost. Failed maps record names to
// their individual errors; a record absent from all three was never sent.
type ModifyResult struct {
	Saved   []*types.TransferRecord
	Deleted []string
	Failed  map[string]error
}

// Subscription registers interest in changes to one zone. The server calls
// the notification hook with the subscription's ID whenever a record in the
// zone changes.
type Subscription struct {
	ID   string
	Zone types.Zone
}

// Notification is the payload delivered when a subscribed zone changes.
type Notification struct {
	SubscriptionID string
	Zone           types.Zone
}

// Client is the engine's view of the remote record store.
//
// FetchZoneChanges with a nil cursor returns the zone's full contents.
// Modify is atomic per record, not per batch: individual failures appear in
// ModifyResult.Failed while the rest of the batch proceeds.
type Client interface {
	// AccountStatus reports whether the remote account is usable. The
	// error is non-nil only when the check itself could not run.
	AccountStatus(ctx context.Context) (Availability, error)

	// FetchZoneChanges returns everything changed in the zone since the
	// cursor. Returns ErrBadCursor for a cursor the server did not issue.
	FetchZoneChanges(ctx context.Context, zone types.Zone, cursor []byte) (*ZoneDelta, error)

	// FetchRecords returns the server's current copy of the named records.
	// Names the server does not have are simply absent from the result.
	FetchRecords(ctx context.Context, names []string) (map[string]*types.TransferRecord, error)

	// Modify saves and deletes records in one batch.
	Modify(ctx context.Context, saves []*types.TransferRecord, deletes []string) (*ModifyResult, error)

	// Zones lists the custom zones present on the server. The default
	// zone is never included.
	Zones(ctx context.Context) ([]types.Zone, error)

	// CreateZones creates the given zones. Creating an existing zone is
	// a no-op.
	CreateZones(ctx context.Context, zones []types.Zone) error

	// DeleteZones deletes the given zones and their records.
	DeleteZones(ctx context.Context, zones []types.Zone) error

	// Subscriptions lists the change subscriptions present on the server.
	Subscriptions(ctx context.Context) ([]Subscription, error)

	// CreateSubscriptions registers change subscriptions.
	CreateSubscriptions(ctx context.Context, subs []Subscription) error

	// DeleteSubscriptions removes subscriptions by ID.
	DeleteSubscriptions(ctx context.Context, ids []string) error
}

// SubscriptionID returns the canonical subscription identifier for a zone.
func SubscriptionID(zone types.Zone) string {
	return string(zone) + ".changes"
}
