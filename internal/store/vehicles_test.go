package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/fleetsync/pkg/types"
)

func TestSaveVehicleCreateAndUpdate(t *testing.T) {
	s := newTestStore(t)

	v := &types.Vehicle{Kind: types.KindCar, Name: "Civic"}
	id, err := s.SaveVehicle(v)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := s.GetVehicle(id)
	require.NoError(t, err)
	assert.Equal(t, "Civic", got.Name)
	assert.False(t, got.Added.IsZero())
	assert.False(t, got.LastUpdate.IsZero())
	assert.True(t, got.Remote.IsZero())

	got.Name = "Civic LX"
	_, err = s.SaveVehicle(got)
	require.NoError(t, err)

	updated, err := s.GetVehicle(id)
	require.NoError(t, err)
	assert.Equal(t, "Civic LX", updated.Name)
	assert.Equal(t, got.Added, updated.Added)
	assert.False(t, updated.LastUpdate.Before(got.Added))
}

func TestSaveVehicleValidation(t *testing.T) {
	s := newTestStore(t)

	_, err := s.SaveVehicle(&types.Vehicle{Kind: types.KindNote, Name: "x"})
	assert.ErrorIs(t, err, types.ErrInvalidKind)

	_, err = s.SaveVehicle(&types.Vehicle{Kind: types.KindCar})
	assert.ErrorIs(t, err, types.ErrInvalidData)

	_, err = s.SaveVehicle(&types.Vehicle{ID: "missing", Kind: types.KindCar, Name: "x"})
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestListVehiclesByKind(t *testing.T) {
	s := newTestStore(t)

	_, err := s.SaveVehicle(&types.Vehicle{Kind: types.KindCar, Name: "Civic"})
	require.NoError(t, err)
	_, err = s.SaveVehicle(&types.Vehicle{Kind: types.KindTruck, Name: "F-150"})
	require.NoError(t, err)

	cars, err := s.ListVehicles(types.KindCar)
	require.NoError(t, err)
	require.Len(t, cars, 1)
	assert.Equal(t, "Civic", cars[0].Name)

	all, err := s.ListVehicles("")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = s.ListVehicles(types.KindNote)
	assert.ErrorIs(t, err, types.ErrInvalidKind)
}

func TestVehiclesChangedSince(t *testing.T) {
	s := newTestStore(t)

	v := &types.Vehicle{Kind: types.KindBus, Name: "School bus"}
	_, err := s.SaveVehicle(v)
	require.NoError(t, err)

	changed, err := s.VehiclesChangedSince(types.KindBus, time.Time{})
	require.NoError(t, err)
	assert.Len(t, changed, 1)

	// Strictly-after semantics: the exact watermark excludes the change.
	changed, err = s.VehiclesChangedSince(types.KindBus, v.LastUpdate)
	require.NoError(t, err)
	assert.Empty(t, changed)
}

func TestStampVehicleIdentity(t *testing.T) {
	s := newTestStore(t)

	v := &types.Vehicle{Kind: types.KindCar, Name: "Civic"}
	id, err := s.SaveVehicle(v)
	require.NoError(t, err)
	before, err := s.GetVehicle(id)
	require.NoError(t, err)

	ri := types.RemoteIdentity{RecordName: types.NewRecordName(types.KindCar), RecordID: []byte{1, 2}}
	require.NoError(t, s.StampVehicleIdentity(id, ri))

	after, err := s.GetVehicle(id)
	require.NoError(t, err)
	assert.Equal(t, ri, after.Remote)
	// Stamping is not an edit.
	assert.Equal(t, before.LastUpdate, after.LastUpdate)

	found, err := s.FindVehicleByRecordName(ri.RecordName)
	require.NoError(t, err)
	assert.Equal(t, id, found.ID)

	assert.ErrorIs(t, s.StampVehicleIdentity("missing", ri), types.ErrNotFound)
	_, err = s.FindVehicleByRecordName("Car.nope")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestDeleteVehicleCascadesAndWritesTombstones(t *testing.T) {
	s := newTestStore(t)

	v := &types.Vehicle{Kind: types.KindTruck, Name: "F-150"}
	vid, err := s.SaveVehicle(v)
	require.NoError(t, err)
	require.NoError(t, s.StampVehicleIdentity(vid, types.RemoteIdentity{
		RecordName: types.NewRecordName(types.KindTruck),
	}))

	n := &types.Note{OwnerID: vid, Text: "new tires"}
	nid, err := s.SaveNote(n)
	require.NoError(t, err)
	require.NoError(t, s.StampNoteIdentity(nid, types.RemoteIdentity{
		RecordName: types.NewRecordName(types.KindNote),
	}))

	// A second, never-synced note must not leave a tombstone.
	_, err = s.SaveNote(&types.Note{OwnerID: vid, Text: "unsynced"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteVehicle(vid))

	_, err = s.GetVehicle(vid)
	assert.ErrorIs(t, err, types.ErrNotFound)
	notes, err := s.ListNotes(vid)
	require.NoError(t, err)
	assert.Empty(t, notes)

	tombstones, err := s.PendingTombstones()
	require.NoError(t, err)
	require.Len(t, tombstones, 2)
	for _, ts := range tombstones {
		assert.Equal(t, types.ZoneTruck, ts.Zone)
		assert.False(t, ts.Acked)
	}
}

func TestTombstoneAckAndSweep(t *testing.T) {
	s := newTestStore(t)

	vid, err := s.SaveVehicle(&types.Vehicle{Kind: types.KindCar, Name: "Civic"})
	require.NoError(t, err)
	recordName := types.NewRecordName(types.KindCar)
	require.NoError(t, s.StampVehicleIdentity(vid, types.RemoteIdentity{RecordName: recordName}))
	require.NoError(t, s.DeleteVehicle(vid))

	// Sweeping before the ack removes nothing.
	swept, err := s.SweepAckedTombstones()
	require.NoError(t, err)
	assert.Zero(t, swept)

	require.NoError(t, s.AckTombstone(recordName))
	// Acking an unknown record name is a no-op.
	require.NoError(t, s.AckTombstone("Car.unknown"))

	swept, err = s.SweepAckedTombstones()
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	tombstones, err := s.PendingTombstones()
	require.NoError(t, err)
	assert.Empty(t, tombstones)
}
