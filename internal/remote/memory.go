package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/fleetsync/pkg/types"
)

// Memory is an in-process implementation of Client. Each zone keeps its own
// change sequence, so cursors are zone-scoped and one zone's history never
// leaks into another's. A zone also carries a generation number that changes
// when the zone is recreated, invalidating cursors issued against the old
// incarnation.
//
// Memory can persist itself to a JSON snapshot file, which lets two separate
// processes share one "server" the way two devices share an account.
type Memory struct {
	mu           sync.Mutex
	availability Availability
	zones        map[types.Zone]*memoryZone
	subs         map[string]types.Zone
	notify       func(Notification)

	// failZones and failRecords inject errors for tests: a matching fetch
	// or per-record modify returns the configured error.
	failZones   map[types.Zone]error
	failRecords map[string]error
}

type memoryZone struct {
	Generation int64                    `json:"generation"`
	Seq        int64                    `json:"seq"`
	Records    map[string]*storedRecord `json:"records"`
	Deleted    map[string]int64         `json:"deleted"`
}

type storedRecord struct {
	Seq    int64                 `json:"seq"`
	Record *types.TransferRecord `json:"record"`
}

// NewMemory returns an empty available server with no zones.
func NewMemory() *Memory {
	return &Memory{
		availability: Available,
		zones:        make(map[types.Zone]*memoryZone),
		subs:         make(map[string]types.Zone),
		failZones:    make(map[types.Zone]error),
		failRecords:  make(map[string]error),
	}
}

// SetAvailability overrides the account status reported by AccountStatus.
// Every other operation also starts failing with ErrUnavailable while the
// server is not Available.
func (m *Memory) SetAvailability(a Availability) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.availability = a
}

// FailZone makes fetches against the zone return err until cleared with a
// nil err.
func (m *Memory) FailZone(zone types.Zone, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failZones, zone)
		return
	}
	m.failZones[zone] = err
}

// FailRecord makes modifies of the named record fail with err until cleared
// with a nil err.
func (m *Memory) FailRecord(recordName string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failRecords, recordName)
		return
	}
	m.failRecords[recordName] = err
}

// OnNotification installs the hook invoked when a subscribed zone changes.
// The hook runs synchronously under the server's lock and must not call back
// into the server.
func (m *Memory) OnNotification(fn func(Notification)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notify = fn
}

func (m *Memory) AccountStatus(ctx context.Context) (Availability, error) {
	if err := ctx.Err(); err != nil {
		return StatusUnknown, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.availability, nil
}

// checkUsable must be called with the lock held.
func (m *Memory) checkUsable() error {
	if m.availability != Available {
		return fmt.Errorf("%w: account %s", ErrUnavailable, m.availability)
	}
	return nil
}

func (m *Memory) FetchZoneChanges(ctx context.Context, zone types.Zone, cursor []byte) (*ZoneDelta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkUsable(); err != nil {
		return nil, err
	}
	if err, ok := m.failZones[zone]; ok {
		return nil, err
	}
	z, ok := m.zones[zone]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrZoneNotFound, zone)
	}

	since := int64(0)
	if cursor != nil {
		gen, seq, err := decodeCursor(cursor)
		if err != nil {
			return nil, err
		}
		if gen != z.Generation {
			return nil, ErrBadCursor
		}
		since = seq
	}

	delta := &ZoneDelta{Cursor: encodeCursor(z.Generation, z.Seq)}
	for _, sr := range z.Records {
		if sr.Seq > since {
			delta.Changed = append(delta.Changed, sr.Record.Clone())
		}
	}
	for name, seq := range z.Deleted {
		if seq > since {
			delta.Deleted = append(delta.Deleted, name)
		}
	}
	return delta, nil
}

func (m *Memory) FetchRecords(ctx context.Context, names []string) (map[string]*types.TransferRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkUsable(); err != nil {
		return nil, err
	}

	result := make(map[string]*types.TransferRecord, len(names))
	for _, name := range names {
		for _, z := range m.zones {
			if sr, ok := z.Records[name]; ok {
				result[name] = sr.Record.Clone()
				break
			}
		}
	}
	return result, nil
}

func (m *Memory) Modify(ctx context.Context, saves []*types.TransferRecord, deletes []string) (*ModifyResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkUsable(); err != nil {
		return nil, err
	}

	result := &ModifyResult{Failed: make(map[string]error)}
	touched := make(map[types.Zone]bool)

	for _, rec := range saves {
		if err, ok := m.failRecords[rec.RecordName]; ok {
			result.Failed[rec.RecordName] = err
			continue
		}
		z, ok := m.zones[rec.Zone]
		if !ok {
			result.Failed[rec.RecordName] = fmt.Errorf("%w: %s", ErrZoneNotFound, rec.Zone)
			continue
		}
		saved := rec.Clone()
		if len(saved.RecordID) == 0 {
			id := uuid.New()
			saved.RecordID = id[:]
		}
		z.Seq++
		z.Records[saved.RecordName] = &storedRecord{Seq: z.Seq, Record: saved.Clone()}
		delete(z.Deleted, saved.RecordName)
		result.Saved = append(result.Saved, saved)
		touched[rec.Zone] = true
	}

	for _, name := range deletes {
		if err, ok := m.failRecords[name]; ok {
			result.Failed[name] = err
			continue
		}
		for zone, z := range m.zones {
			if _, ok := z.Records[name]; ok {
				z.Seq++
				delete(z.Records, name)
				z.Deleted[name] = z.Seq
				touched[zone] = true
				break
			}
		}
		// Deleting a record the server never had still acknowledges, so
		// the caller can retire its tombstone.
		result.Deleted = append(result.Deleted, name)
	}

	if m.notify != nil {
		for zone := range touched {
			for id, subZone := range m.subs {
				if subZone == zone {
					m.notify(Notification{SubscriptionID: id, Zone: zone})
				}
			}
		}
	}
	return result, nil
}

func (m *Memory) Zones(ctx context.Context) ([]types.Zone, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkUsable(); err != nil {
		return nil, err
	}
	var zones []types.Zone
	for zone := range m.zones {
		if zone == types.DefaultZone {
			continue
		}
		zones = append(zones, zone)
	}
	return zones, nil
}

func (m *Memory) CreateZones(ctx context.Context, zones []types.Zone) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkUsable(); err != nil {
		return err
	}
	for _, zone := range zones {
		if _, ok := m.zones[zone]; ok {
			continue
		}
		m.zones[zone] = newMemoryZone()
	}
	return nil
}

func (m *Memory) DeleteZones(ctx context.Context, zones []types.Zone) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkUsable(); err != nil {
		return err
	}
	for _, zone := range zones {
		delete(m.zones, zone)
	}
	return nil
}

func (m *Memory) Subscriptions(ctx context.Context) ([]Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkUsable(); err != nil {
		return nil, err
	}
	var subs []Subscription
	for id, zone := range m.subs {
		subs = append(subs, Subscription{ID: id, Zone: zone})
	}
	return subs, nil
}

func (m *Memory) CreateSubscriptions(ctx context.Context, subs []Subscription) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkUsable(); err != nil {
		return err
	}
	for _, sub := range subs {
		m.subs[sub.ID] = sub.Zone
	}
	return nil
}

func (m *Memory) DeleteSubscriptions(ctx context.Context, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkUsable(); err != nil {
		return err
	}
	for _, id := range ids {
		delete(m.subs, id)
	}
	return nil
}

func newMemoryZone() *memoryZone {
	// A fresh generation per incarnation. Cursors issued against a zone
	// that was deleted and recreated stop matching and force a re-fetch.
	return &memoryZone{
		Generation: int64(uuid.New().ID()),
		Records:    make(map[string]*storedRecord),
		Deleted:    make(map[string]int64),
	}
}

func encodeCursor(gen, seq int64) []byte {
	return fmt.Appendf(nil, "%d.%d", gen, seq)
}

func decodeCursor(cursor []byte) (gen, seq int64, err error) {
	if _, err := fmt.Sscanf(string(cursor), "%d.%d", &gen, &seq); err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadCursor, cursor)
	}
	return gen, seq, nil
}

// memorySnapshot is the JSON shape of a persisted server.
type memorySnapshot struct {
	Zones map[types.Zone]*memoryZone `json:"zones"`
	Subs  map[string]types.Zone      `json:"subscriptions"`
}

// LoadFile replaces the server's contents with the snapshot at path. A
// missing file leaves the server empty, so a first run starts from nothing.
func (m *Memory) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading remote snapshot: %w", err)
	}
	var snap memorySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decoding remote snapshot: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.zones = snap.Zones
	if m.zones == nil {
		m.zones = make(map[types.Zone]*memoryZone)
	}
	for _, z := range m.zones {
		if z.Records == nil {
			z.Records = make(map[string]*storedRecord)
		}
		if z.Deleted == nil {
			z.Deleted = make(map[string]int64)
		}
	}
	m.subs = snap.Subs
	if m.subs == nil {
		m.subs = make(map[string]types.Zone)
	}
	return nil
}

// SaveFile writes the server's contents to path as a JSON snapshot.
func (m *Memory) SaveFile(path string) error {
	m.mu.Lock()
	snap := memorySnapshot{Zones: m.zones, Subs: m.subs}
	data, err := json.MarshalIndent(&snap, "", "  ")
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("encoding remote snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing remote snapshot: %w", err)
	}
	return nil
}
