// Package types defines the domain model for the fleetsync engine: syncable
// kinds and their remote zones, the Vehicle and Note entities, transfer
// records, tombstones, configuration, and standard errors shared by the
// store, the remote client, and the sync pipeline.
package types
