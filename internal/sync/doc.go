// Package sync implements the bidirectional reconciliation engine between
// the local store and the remote record store.
//
// A run is a pipeline of stages executed strictly one at a time: reconcile
// zones and subscriptions, fetch remote changes per zone, fetch local
// changes since the watermark, resolve conflicts, push the local winners,
// apply the remote winners, and finally sweep acknowledged tombstones and
// advance the watermark. A stage failure cancels every stage depending on
// it while independent stages keep their progress.
package sync
