package sync

import (
	"sort"

	"github.com/mesh-intelligence/fleetsync/pkg/types"
)

// Resolution is the outcome of conflict resolution: two queues to apply
// against the local store and two to push to the remote store. Slices are
// sorted by record name, so the same inputs always produce the same output
// regardless of arrival order.
type Resolution struct {
	ApplyUpserts []*types.TransferRecord // remote wins, write locally
	ApplyDeletes []string                // remote deletions, remove locally
	PushUpserts  []types.Syncable        // local wins, send to the server
	PushDeletes  []string                // local deletions, send to the server
}

// Resolve reconciles the four change sets of a run into the four output
// queues. The rules, in order of precedence:
//
//  1. A remote deletion beats a local edit of the same record: the local
//     edit is discarded and the deletion is applied.
//  2. A local deletion beats a remote edit of the same record: the remote
//     edit is discarded and the deletion is pushed.
//  3. When both sides edited the same record, the newer LastUpdate wins.
//     Identical timestamps mean identical content by assumption, so both
//     copies are dropped and neither side is touched.
//
// Local objects that have never been synced carry no record name and cannot
// conflict with anything; they always push.
func Resolve(
	localChanged []types.Syncable,
	localDeleted []*types.Tombstone,
	remoteChanged []*types.TransferRecord,
	remoteDeleted []string,
) Resolution {
	remoteByName := make(map[string]*types.TransferRecord, len(remoteChanged))
	for _, rec := range remoteChanged {
		remoteByName[rec.RecordName] = rec
	}
	remoteDeletes := make(map[string]bool, len(remoteDeleted))
	for _, name := range remoteDeleted {
		remoteDeletes[name] = true
	}
	localDeletes := make(map[string]bool, len(localDeleted))
	for _, t := range localDeleted {
		localDeletes[t.RecordName] = true
	}

	var res Resolution
	dropRemote := make(map[string]bool)

	for _, obj := range localChanged {
		name := obj.Identity().RecordName
		if name == "" {
			res.PushUpserts = append(res.PushUpserts, obj)
			continue
		}
		if remoteDeletes[name] {
			// Rule 1: the remote deletion wins; the edit dies here and
			// the delete falls through to ApplyDeletes below.
			continue
		}
		rec, both := remoteByName[name]
		if !both {
			res.PushUpserts = append(res.PushUpserts, obj)
			continue
		}
		// Rule 3: both sides edited; last writer wins.
		switch {
		case obj.LastUpdated().After(rec.LastUpdate):
			res.PushUpserts = append(res.PushUpserts, obj)
			dropRemote[name] = true
		case rec.LastUpdate.After(obj.LastUpdated()):
			// The remote copy stays in ApplyUpserts.
		default:
			dropRemote[name] = true
		}
	}

	for _, rec := range remoteChanged {
		if dropRemote[rec.RecordName] {
			continue
		}
		if localDeletes[rec.RecordName] {
			// Rule 2: the local deletion wins over the remote edit.
			continue
		}
		res.ApplyUpserts = append(res.ApplyUpserts, rec)
	}

	for _, t := range localDeleted {
		res.PushDeletes = append(res.PushDeletes, t.RecordName)
	}
	res.ApplyDeletes = append(res.ApplyDeletes, remoteDeleted...)

	sort.Slice(res.ApplyUpserts, func(i, j int) bool {
		return res.ApplyUpserts[i].RecordName < res.ApplyUpserts[j].RecordName
	})
	sort.Strings(res.ApplyDeletes)
	sort.Slice(res.PushUpserts, func(i, j int) bool {
		return pushKey(res.PushUpserts[i]) < pushKey(res.PushUpserts[j])
	})
	sort.Strings(res.PushDeletes)
	return res
}

// pushKey orders push upserts deterministically: synced objects by record
// name, never-synced ones by the minted name they will get later, which does
// not exist yet, so their kind plus last-update stands in. Ordering only
// needs to be stable, not meaningful.
func pushKey(obj types.Syncable) string {
	if name := obj.Identity().RecordName; name != "" {
		return name
	}
	return string(obj.RecordKind()) + "\x00" + obj.LastUpdated().Format("20060102150405.000000000")
}
