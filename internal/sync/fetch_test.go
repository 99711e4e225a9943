package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/fleetsync/internal/remote"
	"github.com/mesh-intelligence/fleetsync/pkg/types"
)

func TestFetchZonePersistsCursor(t *testing.T) {
	ctx := context.Background()
	m := remote.NewMemory()
	eng, _ := newTestEngine(t, m)
	require.NoError(t, m.CreateZones(ctx, []types.Zone{types.ZoneCar}))

	rec := remoteCar(types.NewRecordName(types.KindCar), "Civic", time.Now().UTC())
	_, err := m.Modify(ctx, []*types.TransferRecord{rec}, nil)
	require.NoError(t, err)

	fetched, err := FetchZone(ctx, m, eng.tokens, types.ZoneCar)
	require.NoError(t, err)
	require.Len(t, fetched.Changed, 1)

	cursor, err := eng.tokens.Cursor(types.ZoneCar)
	require.NoError(t, err)
	require.NotNil(t, cursor)

	// The cursor advanced with the fetch, so the next one is empty.
	fetched, err = FetchZone(ctx, m, eng.tokens, types.ZoneCar)
	require.NoError(t, err)
	assert.Empty(t, fetched.Changed)
	assert.Empty(t, fetched.Deleted)
}

func TestFetchZoneRecoversFromStaleCursor(t *testing.T) {
	ctx := context.Background()
	m := remote.NewMemory()
	eng, _ := newTestEngine(t, m)
	require.NoError(t, m.CreateZones(ctx, []types.Zone{types.ZoneCar}))

	rec := remoteCar(types.NewRecordName(types.KindCar), "Civic", time.Now().UTC())
	_, err := m.Modify(ctx, []*types.TransferRecord{rec}, nil)
	require.NoError(t, err)
	_, err = FetchZone(ctx, m, eng.tokens, types.ZoneCar)
	require.NoError(t, err)

	// Recreating the zone invalidates cursors issued against the old
	// incarnation; the fetch degrades to a full one instead of failing.
	require.NoError(t, m.DeleteZones(ctx, []types.Zone{types.ZoneCar}))
	require.NoError(t, m.CreateZones(ctx, []types.Zone{types.ZoneCar}))
	rec = remoteCar(types.NewRecordName(types.KindCar), "Accord", time.Now().UTC())
	_, err = m.Modify(ctx, []*types.TransferRecord{rec}, nil)
	require.NoError(t, err)

	fetched, err := FetchZone(ctx, m, eng.tokens, types.ZoneCar)
	require.NoError(t, err)
	require.Len(t, fetched.Changed, 1)
	assert.Equal(t, "Accord", fetched.Changed[0].Name)
}

func TestFetchLocalSkipsAckedTombstones(t *testing.T) {
	m := remote.NewMemory()
	eng, st := newTestEngine(t, m)

	carID, err := st.SaveVehicle(&types.Vehicle{Kind: types.KindCar, Name: "Civic"})
	require.NoError(t, err)
	name := types.NewRecordName(types.KindCar)
	require.NoError(t, st.StampVehicleIdentity(carID, types.RemoteIdentity{RecordName: name, RecordID: []byte{1}}))
	require.NoError(t, st.DeleteVehicle(carID))

	local, err := FetchLocal(st, eng.settings)
	require.NoError(t, err)
	require.Len(t, local.Tombstones, 1)

	// Once acked, the deletion no longer travels; the tombstone just waits
	// for the sweeper.
	require.NoError(t, st.AckTombstone(name))
	local, err = FetchLocal(st, eng.settings)
	require.NoError(t, err)
	assert.Empty(t, local.Tombstones)
}
