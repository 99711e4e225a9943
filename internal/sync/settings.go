package sync

import (
	"strconv"
	"time"

	"github.com/mesh-intelligence/fleetsync/internal/store"
)

// State keys. Kept short and stable: they live in user databases.
const (
	keyWatermark  = "last_sync_at"
	keyEnabled    = "sync_enabled"
	keySuppressed = "suppress_sync_error"
)

// Settings persists the engine's durable flags and the sync watermark in the
// store's key-value state table.
type Settings struct {
	store *store.Store
}

// NewSettings returns a settings view backed by st.
func NewSettings(st *store.Store) *Settings {
	return &Settings{store: st}
}

// Watermark returns the timestamp of the last fully successful sync run, or
// the zero time when no run has completed. Local changes are detected as
// anything modified strictly after the watermark.
func (s *Settings) Watermark() (time.Time, error) {
	raw, err := s.store.GetState(keyWatermark)
	if err != nil {
		return time.Time{}, err
	}
	if raw == nil {
		return time.Time{}, nil
	}
	nanos, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		// An unreadable watermark degrades to a full comparison run,
		// not a failure.
		return time.Time{}, nil
	}
	return time.Unix(0, nanos).UTC(), nil
}

// SetWatermark advances the watermark. Called only after a run completes
// with every stage succeeded.
func (s *Settings) SetWatermark(t time.Time) error {
	return s.store.SetState(keyWatermark, strconv.AppendInt(nil, t.UTC().UnixNano(), 10))
}

// SyncEnabled reports whether syncing is currently enabled. Defaults to
// true until explicitly disabled.
func (s *Settings) SyncEnabled() (bool, error) {
	return s.boolFlag(keyEnabled, true)
}

// SetSyncEnabled persists the enabled flag.
func (s *Settings) SetSyncEnabled(enabled bool) error {
	return s.setBoolFlag(keyEnabled, enabled)
}

// ErrorSuppressed reports whether the unavailable-account prompt has already
// been shown and acknowledged. Defaults to false.
func (s *Settings) ErrorSuppressed() (bool, error) {
	return s.boolFlag(keySuppressed, false)
}

// SetErrorSuppressed persists the suppression flag so the prompt fires at
// most once per outage.
func (s *Settings) SetErrorSuppressed(suppressed bool) error {
	return s.setBoolFlag(keySuppressed, suppressed)
}

func (s *Settings) boolFlag(key string, def bool) (bool, error) {
	raw, err := s.store.GetState(key)
	if err != nil {
		return def, err
	}
	if raw == nil {
		return def, nil
	}
	return string(raw) == "1", nil
}

func (s *Settings) setBoolFlag(key string, value bool) error {
	v := []byte("0")
	if value {
		v = []byte("1")
	}
	return s.store.SetState(key, v)
}
