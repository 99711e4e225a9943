package types

import "errors"

// Config holds the construction-time settings passed into the store and the
// engine. Durable runtime state (cursors, watermark, flags) lives in the
// store's key-value table instead.
type Config struct {
	// DataDir is where the local store keeps its database.
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// RemoteFile is an optional snapshot path for the in-memory remote
	// store, letting separate CLI invocations share one simulated server.
	RemoteFile string `json:"remote_file" yaml:"remote_file"`

	// SyncEnabled is the initial enabled state; the engine flips the
	// durable flag off when the remote service reports unavailable.
	SyncEnabled bool `json:"sync_enabled" yaml:"sync_enabled"`
}

// Config validation errors.
var (
	ErrDataDirEmpty = errors.New("data_dir must not be empty")
)

// Validate checks that the Config is well-formed.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return ErrDataDirEmpty
	}
	return nil
}
