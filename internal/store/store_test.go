package store

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/fleetsync/pkg/types"
)

// newTestStore opens a store on a temporary directory and closes it when the
// test ends.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, s.Open(types.Config{DataDir: t.TempDir()}))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenClose(t *testing.T) {
	s := New(nil)
	cfg := types.Config{DataDir: t.TempDir()}

	require.NoError(t, s.Open(cfg))
	assert.ErrorIs(t, s.Open(cfg), types.ErrAlreadyOpen)
	require.NoError(t, s.Close())
	// Idempotent close.
	require.NoError(t, s.Close())

	_, err := s.GetVehicle("missing")
	assert.ErrorIs(t, err, types.ErrStoreClosed)

	// Reopening finds the same database.
	require.NoError(t, s.Open(cfg))
	require.NoError(t, s.Close())
}

func TestOpenRejectsBadConfig(t *testing.T) {
	s := New(nil)
	assert.ErrorIs(t, s.Open(types.Config{}), types.ErrDataDirEmpty)
}

func TestStateRoundTrip(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetState("zone:CarZone:cursor")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.SetState("zone:CarZone:cursor", []byte("abc")))
	got, err = s.GetState("zone:CarZone:cursor")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)

	require.NoError(t, s.SetState("zone:CarZone:cursor", []byte("def")))
	got, err = s.GetState("zone:CarZone:cursor")
	require.NoError(t, err)
	assert.Equal(t, []byte("def"), got)

	// A nil value clears the key.
	require.NoError(t, s.SetState("zone:CarZone:cursor", nil))
	got, err = s.GetState("zone:CarZone:cursor")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSubscribeReceivesChanges(t *testing.T) {
	s := newTestStore(t)
	ch, cancel := s.Subscribe()
	defer cancel()

	id, err := s.SaveVehicle(&types.Vehicle{Kind: types.KindCar, Name: "Civic"})
	require.NoError(t, err)

	cs := <-ch
	require.Len(t, cs.Inserted, 1)
	assert.Equal(t, id, cs.Inserted[0].ID)
	assert.Equal(t, types.KindCar, cs.Inserted[0].Kind)
}
