package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/fleetsync/pkg/types"
)

func TestSaveNoteRequiresOwner(t *testing.T) {
	s := newTestStore(t)

	_, err := s.SaveNote(&types.Note{Text: "orphan"})
	assert.ErrorIs(t, err, types.ErrNoteWithoutOwner)

	_, err = s.SaveNote(&types.Note{OwnerID: "missing", Text: "orphan"})
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestNoteCarriesOwnerRecordName(t *testing.T) {
	s := newTestStore(t)

	vid, err := s.SaveVehicle(&types.Vehicle{Kind: types.KindBus, Name: "School bus"})
	require.NoError(t, err)
	nid, err := s.SaveNote(&types.Note{OwnerID: vid, Text: "route 12"})
	require.NoError(t, err)

	// Owner never synced: no owner record name yet.
	n, err := s.GetNote(nid)
	require.NoError(t, err)
	assert.Empty(t, n.OwnerName)

	ownerName := types.NewRecordName(types.KindBus)
	require.NoError(t, s.StampVehicleIdentity(vid, types.RemoteIdentity{RecordName: ownerName}))

	n, err = s.GetNote(nid)
	require.NoError(t, err)
	assert.Equal(t, ownerName, n.OwnerName)
	assert.Equal(t, vid, n.OwnerID)
}

func TestNotesChangedSinceAndList(t *testing.T) {
	s := newTestStore(t)

	vid, err := s.SaveVehicle(&types.Vehicle{Kind: types.KindCar, Name: "Civic"})
	require.NoError(t, err)
	first := &types.Note{OwnerID: vid, Text: "first"}
	_, err = s.SaveNote(first)
	require.NoError(t, err)
	second := &types.Note{OwnerID: vid, Text: "second"}
	_, err = s.SaveNote(second)
	require.NoError(t, err)

	notes, err := s.ListNotes(vid)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "first", notes[0].Text)

	changed, err := s.NotesChangedSince(first.LastUpdate)
	require.NoError(t, err)
	require.Len(t, changed, 1)
	assert.Equal(t, "second", changed[0].Text)
}

func TestDeleteNoteWritesTombstoneInOwnersZone(t *testing.T) {
	s := newTestStore(t)

	vid, err := s.SaveVehicle(&types.Vehicle{Kind: types.KindTruck, Name: "F-150"})
	require.NoError(t, err)
	require.NoError(t, s.StampVehicleIdentity(vid, types.RemoteIdentity{
		RecordName: types.NewRecordName(types.KindTruck),
	}))

	nid, err := s.SaveNote(&types.Note{OwnerID: vid, Text: "synced"})
	require.NoError(t, err)
	noteName := types.NewRecordName(types.KindNote)
	require.NoError(t, s.StampNoteIdentity(nid, types.RemoteIdentity{RecordName: noteName}))

	require.NoError(t, s.DeleteNote(nid))
	_, err = s.GetNote(nid)
	assert.ErrorIs(t, err, types.ErrNotFound)

	tombstones, err := s.PendingTombstones()
	require.NoError(t, err)
	require.Len(t, tombstones, 1)
	assert.Equal(t, noteName, tombstones[0].RecordName)
	assert.Equal(t, types.KindNote, tombstones[0].Kind)
	assert.Equal(t, types.ZoneTruck, tombstones[0].Zone)
}

func TestDeleteUnsyncedNoteLeavesNoTombstone(t *testing.T) {
	s := newTestStore(t)

	vid, err := s.SaveVehicle(&types.Vehicle{Kind: types.KindCar, Name: "Civic"})
	require.NoError(t, err)
	nid, err := s.SaveNote(&types.Note{OwnerID: vid, Text: "draft"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteNote(nid))

	tombstones, err := s.PendingTombstones()
	require.NoError(t, err)
	assert.Empty(t, tombstones)
}
