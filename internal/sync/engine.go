package sync

import (
	"context"
	"fmt"
	"log/slog"
	stdsync "sync"
	"time"

	"github.com/mesh-intelligence/fleetsync/internal/remote"
	"github.com/mesh-intelligence/fleetsync/internal/store"
	"github.com/mesh-intelligence/fleetsync/pkg/types"
)

// Engine coordinates sync runs between the local store and the remote
// store. Runs never overlap: Sync and SyncZone block until the current run
// finishes, while the best-effort PushLocalChanges skips with ErrSyncBusy
// since the active run pushes the same changes anyway.
type Engine struct {
	store    *store.Store
	client   remote.Client
	tokens   *TokenStore
	settings *Settings
	pusher   *Pusher
	applier  *Applier
	log      *slog.Logger

	runMu         stdsync.Mutex
	onUnavailable func(remote.Availability)
}

// NewEngine wires an engine over the given store and remote client.
func NewEngine(st *store.Store, client remote.Client, log *slog.Logger) *Engine {
	return &Engine{
		store:    st,
		client:   client,
		tokens:   NewTokenStore(st),
		settings: NewSettings(st),
		pusher:   NewPusher(st, client, log),
		applier:  NewApplier(st, log),
		log:      log,
	}
}

// OnUnavailable installs the hook invoked at most once per outage when the
// remote account turns out to be unusable. The UI shows its prompt here.
func (e *Engine) OnUnavailable(fn func(remote.Availability)) {
	e.onUnavailable = fn
}

// Settings exposes the engine's durable flags for callers that surface them.
func (e *Engine) Settings() *Settings { return e.settings }

// Initialize brings the engine up: it verifies the account, reconciles the
// remote zones and subscriptions, and re-enables syncing after an outage.
// An unusable account disables syncing and returns an UnavailableError; the
// local store keeps working without sync either way.
func (e *Engine) Initialize(ctx context.Context) error {
	if err := e.checkAccount(ctx); err != nil {
		return err
	}
	if err := e.settings.SetSyncEnabled(true); err != nil {
		return err
	}
	if err := ReconcileZones(ctx, e.client, e.log); err != nil {
		return err
	}
	return ReconcileSubscriptions(ctx, e.client, e.log)
}

// Enable turns syncing on.
func (e *Engine) Enable() error { return e.settings.SetSyncEnabled(true) }

// Disable turns syncing off. Local editing continues; changes accumulate
// against the watermark until syncing is enabled again.
func (e *Engine) Disable() error { return e.settings.SetSyncEnabled(false) }

// Sync runs a full bidirectional sync across every zone. Zones fail
// independently: one zone's fetch or apply failure cancels only its own
// downstream stages, while the other zones fetch, push and apply. The
// watermark moves only when the whole run succeeds, so anything a failed
// zone skipped is retried next run. Concurrent calls serialize.
func (e *Engine) Sync(ctx context.Context) error {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	if err := e.gate(ctx); err != nil {
		return err
	}
	return e.run(ctx, types.AllZones(), true)
}

// SyncZone runs a sync restricted to one zone, typically in response to a
// change notification. The watermark does not advance: a zone-scoped run
// has not looked at the rest of the world.
func (e *Engine) SyncZone(ctx context.Context, zone types.Zone) error {
	if !zone.Valid() {
		return types.ErrUnknownZone
	}
	e.runMu.Lock()
	defer e.runMu.Unlock()

	if err := e.gate(ctx); err != nil {
		return err
	}
	return e.run(ctx, []types.Zone{zone}, false)
}

// HandleNotification reacts to a change notification by syncing the zone it
// names.
func (e *Engine) HandleNotification(ctx context.Context, n remote.Notification) error {
	e.log.Debug("change notification", "zone", n.Zone, "subscription", n.SubscriptionID)
	return e.SyncZone(ctx, n.Zone)
}

// PushLocalChanges uploads everything changed locally since the watermark
// without fetching the remote side first. It is the cheap push that follows
// a local save; the next full run still reconciles properly. If a run is
// already active it returns ErrSyncBusy instead of waiting: the active run
// carries the same changes.
func (e *Engine) PushLocalChanges(ctx context.Context) error {
	if !e.runMu.TryLock() {
		return types.ErrSyncBusy
	}
	defer e.runMu.Unlock()

	if err := e.gate(ctx); err != nil {
		return err
	}
	local, err := FetchLocal(e.store, e.settings)
	if err != nil {
		return err
	}
	var deletes []string
	for _, t := range local.Tombstones {
		deletes = append(deletes, t.RecordName)
	}
	return e.pusher.Push(ctx, local.Changed, deletes)
}

// Status is a snapshot of the engine's durable state for display.
type Status struct {
	Enabled        bool
	Availability   remote.Availability
	LastSync       time.Time
	PendingDeletes int
}

// Status reports the engine's current state.
func (e *Engine) Status(ctx context.Context) (*Status, error) {
	enabled, err := e.settings.SyncEnabled()
	if err != nil {
		return nil, err
	}
	watermark, err := e.settings.Watermark()
	if err != nil {
		return nil, err
	}
	tombstones, err := e.store.PendingTombstones()
	if err != nil {
		return nil, err
	}
	availability, err := e.client.AccountStatus(ctx)
	if err != nil {
		availability = remote.StatusUnknown
	}
	return &Status{
		Enabled:        enabled,
		Availability:   availability,
		LastSync:       watermark,
		PendingDeletes: len(tombstones),
	}, nil
}

// gate rejects a run while syncing is disabled and verifies the account.
func (e *Engine) gate(ctx context.Context) error {
	enabled, err := e.settings.SyncEnabled()
	if err != nil {
		return err
	}
	if !enabled {
		return types.ErrSyncDisabled
	}
	return e.checkAccount(ctx)
}

// checkAccount verifies the remote account. An unusable account disables
// syncing and fires the unavailable hook, once: the suppression flag keeps
// repeated runs during one outage from prompting again. A usable account
// clears the flag so the next outage prompts anew.
func (e *Engine) checkAccount(ctx context.Context) error {
	status, err := e.client.AccountStatus(ctx)
	if err != nil {
		return e.accountUnusable(status, err)
	}
	if status != remote.Available {
		return e.accountUnusable(status, nil)
	}
	if err := e.settings.SetErrorSuppressed(false); err != nil {
		return err
	}
	return nil
}

func (e *Engine) accountUnusable(status remote.Availability, cause error) error {
	e.log.Warn("remote account unusable, disabling sync", "status", status)
	if err := e.settings.SetSyncEnabled(false); err != nil {
		return err
	}
	suppressed, err := e.settings.ErrorSuppressed()
	if err != nil {
		return err
	}
	if !suppressed {
		if e.onUnavailable != nil {
			e.onUnavailable(status)
		}
		if err := e.settings.SetErrorSuppressed(true); err != nil {
			return err
		}
	}
	return &UnavailableError{Status: status, Err: cause}
}

// zonePart is the slice of the local delta belonging to one zone.
type zonePart struct {
	changed    []types.Syncable
	tombstones []*types.Tombstone
}

// run assembles and executes the suspended stage graph for the given zones.
// advance controls whether success sweeps tombstones and moves the
// watermark.
func (e *Engine) run(ctx context.Context, zones []types.Zone, advance bool) error {
	started := time.Now().UTC()
	p := NewPipeline(e.log)

	var parts map[types.Zone]*zonePart

	sZones := p.Add("reconcile-zones", func(ctx context.Context) error {
		return ReconcileZones(ctx, e.client, e.log)
	})
	sSubs := p.Add("reconcile-subscriptions", func(ctx context.Context) error {
		return ReconcileSubscriptions(ctx, e.client, e.log)
	}, sZones)
	sLocal := p.Add("fetch-local", func(ctx context.Context) error {
		local, err := FetchLocal(e.store, e.settings)
		if err != nil {
			return err
		}
		parts, err = e.partition(local)
		return err
	})

	finals := []*Stage{sSubs}
	for _, zone := range zones {
		zone := zone
		name := string(zone)
		var fetched *ZoneFetch
		var res Resolution

		sFetch := p.Add("fetch-"+name, func(ctx context.Context) error {
			var err error
			fetched, err = FetchZone(ctx, e.client, e.tokens, zone)
			return err
		}, sZones)
		sResolve := p.Add("resolve-"+name, func(ctx context.Context) error {
			part := parts[zone]
			if part == nil {
				part = &zonePart{}
			}
			res = Resolve(part.changed, part.tombstones, fetched.Changed, fetched.Deleted)
			return nil
		}, sFetch, sLocal)
		sPush := p.Add("push-"+name, func(ctx context.Context) error {
			return e.pusher.Push(ctx, res.PushUpserts, res.PushDeletes)
		}, sResolve)
		sApply := p.Add("apply-"+name, func(ctx context.Context) error {
			return e.applier.Apply(res.ApplyUpserts, res.ApplyDeletes)
		}, sResolve)
		finals = append(finals, sPush, sApply)
	}

	if advance {
		p.Add("finish", func(ctx context.Context) error {
			// Sweeping is housekeeping: a failure here is retried next run
			// and must not hold the watermark back.
			swept, err := e.store.SweepAckedTombstones()
			if err != nil {
				e.log.Warn("tombstone sweep failed", "error", err)
			} else if swept > 0 {
				e.log.Debug("swept tombstones", "count", swept)
			}
			return e.settings.SetWatermark(started)
		}, finals...)
	}

	err := p.Run(ctx)
	if err != nil {
		e.log.Warn("sync run finished with failures", "error", err)
		return err
	}
	e.log.Info("sync run complete", "zones", len(zones), "duration", time.Since(started))
	return nil
}

// partition splits the local delta by the zone each change travels in. A
// vehicle's zone follows its kind; a note inherits its owner's zone, looked
// up locally when the owner has never been synced.
func (e *Engine) partition(local *LocalDelta) (map[types.Zone]*zonePart, error) {
	parts := make(map[types.Zone]*zonePart)
	part := func(zone types.Zone) *zonePart {
		if parts[zone] == nil {
			parts[zone] = &zonePart{}
		}
		return parts[zone]
	}

	for _, obj := range local.Changed {
		zone, err := e.zoneOf(obj)
		if err != nil {
			return nil, err
		}
		p := part(zone)
		p.changed = append(p.changed, obj)
	}
	for _, t := range local.Tombstones {
		p := part(t.Zone)
		p.tombstones = append(p.tombstones, t)
	}
	return parts, nil
}

func (e *Engine) zoneOf(obj types.Syncable) (types.Zone, error) {
	switch o := obj.(type) {
	case *types.Vehicle:
		return types.ZoneForKind(o.Kind)
	case *types.Note:
		if o.OwnerName != "" {
			kind, err := types.KindFromRecordName(o.OwnerName)
			if err != nil {
				return "", err
			}
			return types.ZoneForKind(kind)
		}
		owner, err := e.store.GetVehicle(o.OwnerID)
		if err != nil {
			return "", fmt.Errorf("resolving zone for note %s: %w", o.ID, err)
		}
		return types.ZoneForKind(owner.Kind)
	}
	return "", fmt.Errorf("unknown syncable %T", obj)
}
