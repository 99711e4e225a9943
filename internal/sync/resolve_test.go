package sync

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/fleetsync/pkg/types"
)

func localCar(recordName, name string, lastUpdate time.Time) *types.Vehicle {
	return &types.Vehicle{
		ID:         "local-" + name,
		Kind:       types.KindCar,
		Name:       name,
		Added:      lastUpdate.Add(-time.Hour),
		LastUpdate: lastUpdate,
		Remote:     types.RemoteIdentity{RecordName: recordName},
	}
}

func remoteCar(recordName, name string, lastUpdate time.Time) *types.TransferRecord {
	return &types.TransferRecord{
		RecordName: recordName,
		Kind:       types.KindCar,
		Zone:       types.ZoneCar,
		Name:       name,
		Added:      lastUpdate.Add(-time.Hour),
		LastUpdate: lastUpdate,
	}
}

func TestResolveRemoteDeleteBeatsLocalEdit(t *testing.T) {
	now := time.Now().UTC()
	name := types.NewRecordName(types.KindCar)
	// The local edit is newer than the deletion could ever be compared
	// against; deletions still win unconditionally.
	local := localCar(name, "Civic LX", now)

	res := Resolve([]types.Syncable{local}, nil, nil, []string{name})

	assert.Empty(t, res.PushUpserts)
	assert.Empty(t, res.PushDeletes)
	assert.Empty(t, res.ApplyUpserts)
	assert.Equal(t, []string{name}, res.ApplyDeletes)
}

func TestResolveLocalDeleteBeatsRemoteEdit(t *testing.T) {
	now := time.Now().UTC()
	name := types.NewRecordName(types.KindCar)
	tomb := &types.Tombstone{RecordName: name, Kind: types.KindCar, Zone: types.ZoneCar, CreatedAt: now}

	res := Resolve(nil, []*types.Tombstone{tomb}, []*types.TransferRecord{remoteCar(name, "Civic", now)}, nil)

	assert.Empty(t, res.ApplyUpserts)
	assert.Empty(t, res.ApplyDeletes)
	assert.Empty(t, res.PushUpserts)
	assert.Equal(t, []string{name}, res.PushDeletes)
}

func TestResolveLastWriterWins(t *testing.T) {
	now := time.Now().UTC()
	name := types.NewRecordName(types.KindCar)

	t.Run("local newer pushes", func(t *testing.T) {
		local := localCar(name, "Civic LX", now.Add(time.Minute))
		res := Resolve([]types.Syncable{local}, nil, []*types.TransferRecord{remoteCar(name, "Civic", now)}, nil)

		require.Len(t, res.PushUpserts, 1)
		assert.Same(t, local, res.PushUpserts[0])
		assert.Empty(t, res.ApplyUpserts)
	})

	t.Run("remote newer applies", func(t *testing.T) {
		local := localCar(name, "Civic", now)
		rec := remoteCar(name, "Civic LX", now.Add(time.Minute))
		res := Resolve([]types.Syncable{local}, nil, []*types.TransferRecord{rec}, nil)

		assert.Empty(t, res.PushUpserts)
		require.Len(t, res.ApplyUpserts, 1)
		assert.Equal(t, "Civic LX", res.ApplyUpserts[0].Name)
	})

	t.Run("identical timestamps drop both", func(t *testing.T) {
		local := localCar(name, "Civic", now)
		res := Resolve([]types.Syncable{local}, nil, []*types.TransferRecord{remoteCar(name, "Civic", now)}, nil)

		assert.Empty(t, res.PushUpserts)
		assert.Empty(t, res.ApplyUpserts)
	})
}

func TestResolveNeverSyncedAlwaysPushes(t *testing.T) {
	now := time.Now().UTC()
	fresh := &types.Vehicle{ID: "v1", Kind: types.KindCar, Name: "Civic", Added: now, LastUpdate: now}

	res := Resolve([]types.Syncable{fresh}, nil, nil, []string{types.NewRecordName(types.KindCar)})

	require.Len(t, res.PushUpserts, 1)
	assert.Same(t, fresh, res.PushUpserts[0])
}

func TestResolveDisjointChangesPassThrough(t *testing.T) {
	now := time.Now().UTC()
	localName := types.NewRecordName(types.KindCar)
	remoteName := types.NewRecordName(types.KindCar)
	tombName := types.NewRecordName(types.KindCar)

	local := localCar(localName, "Civic", now)
	rec := remoteCar(remoteName, "Accord", now)
	tomb := &types.Tombstone{RecordName: tombName, Kind: types.KindCar, Zone: types.ZoneCar, CreatedAt: now}

	res := Resolve([]types.Syncable{local}, []*types.Tombstone{tomb}, []*types.TransferRecord{rec}, nil)

	require.Len(t, res.PushUpserts, 1)
	require.Len(t, res.ApplyUpserts, 1)
	assert.Equal(t, []string{tombName}, res.PushDeletes)
	assert.Empty(t, res.ApplyDeletes)
}

func TestResolveIsOrderIndependent(t *testing.T) {
	now := time.Now().UTC()

	var locals []types.Syncable
	var remotes []*types.TransferRecord
	var tombs []*types.Tombstone
	var remoteDeletes []string

	for i := 0; i < 8; i++ {
		name := types.NewRecordName(types.KindCar)
		locals = append(locals, localCar(name, "local", now.Add(time.Duration(i)*time.Second)))
		remotes = append(remotes, remoteCar(name, "remote", now.Add(time.Duration(8-i)*time.Second)))
	}
	for i := 0; i < 4; i++ {
		tombs = append(tombs, &types.Tombstone{
			RecordName: types.NewRecordName(types.KindCar),
			Kind:       types.KindCar, Zone: types.ZoneCar, CreatedAt: now,
		})
		remoteDeletes = append(remoteDeletes, types.NewRecordName(types.KindCar))
	}

	baseline := Resolve(locals, tombs, remotes, remoteDeletes)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 10; i++ {
		l := append([]types.Syncable(nil), locals...)
		r := append([]*types.TransferRecord(nil), remotes...)
		tb := append([]*types.Tombstone(nil), tombs...)
		rd := append([]string(nil), remoteDeletes...)
		rng.Shuffle(len(l), func(i, j int) { l[i], l[j] = l[j], l[i] })
		rng.Shuffle(len(r), func(i, j int) { r[i], r[j] = r[j], r[i] })
		rng.Shuffle(len(tb), func(i, j int) { tb[i], tb[j] = tb[j], tb[i] })
		rng.Shuffle(len(rd), func(i, j int) { rd[i], rd[j] = rd[j], rd[i] })

		shuffled := Resolve(l, tb, r, rd)
		assert.Equal(t, baseline, shuffled)
	}
}
