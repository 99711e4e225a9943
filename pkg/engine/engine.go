// Package engine provides the public entry point for a fleetsync instance:
// one call opens the local store, connects the remote store and wires the
// sync engine between them. Implementation details stay internal.
package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mesh-intelligence/fleetsync/internal/remote"
	"github.com/mesh-intelligence/fleetsync/internal/store"
	"github.com/mesh-intelligence/fleetsync/internal/sync"
	"github.com/mesh-intelligence/fleetsync/pkg/types"
)

// Service bundles a running instance: the local store, the remote store and
// the sync engine between them. Create one with Open and release it with
// Close.
type Service struct {
	Store  *store.Store
	Remote *remote.Memory
	Sync   *sync.Engine

	config types.Config
	log    *slog.Logger
}

// Open validates the configuration, opens the local store and connects the
// remote store. When the configuration names a remote snapshot file it is
// loaded, so separate processes pointed at the same file behave like two
// devices sharing one account.
func Open(cfg types.Config, log *slog.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}

	st := store.New(log)
	if err := st.Open(cfg); err != nil {
		return nil, err
	}

	rm := remote.NewMemory()
	if cfg.RemoteFile != "" {
		if err := rm.LoadFile(cfg.RemoteFile); err != nil {
			st.Close()
			return nil, err
		}
	}

	s := &Service{
		Store:  st,
		Remote: rm,
		Sync:   sync.NewEngine(st, rm, log),
		config: cfg,
		log:    log,
	}
	if !cfg.SyncEnabled {
		if err := s.Sync.Disable(); err != nil {
			st.Close()
			return nil, err
		}
	}
	return s, nil
}

// Close persists the remote snapshot when one is configured and closes the
// local store.
func (s *Service) Close() error {
	var errs []error
	if s.config.RemoteFile != "" {
		if err := s.Remote.SaveFile(s.config.RemoteFile); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.Store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SaveVehicle persists a vehicle and pushes the change remotely when syncing
// is possible. The push is best effort; a failure is logged and the change
// simply waits for the next sync run.
func (s *Service) SaveVehicle(ctx context.Context, v *types.Vehicle) (string, error) {
	id, err := s.Store.SaveVehicle(v)
	if err != nil {
		return "", err
	}
	s.pushAfterSave(ctx)
	return id, nil
}

// SaveNote persists a note and pushes the change remotely, best effort.
func (s *Service) SaveNote(ctx context.Context, n *types.Note) (string, error) {
	id, err := s.Store.SaveNote(n)
	if err != nil {
		return "", err
	}
	s.pushAfterSave(ctx)
	return id, nil
}

// DeleteVehicle deletes a vehicle and its notes, then pushes the deletions
// remotely, best effort.
func (s *Service) DeleteVehicle(ctx context.Context, id string) error {
	if err := s.Store.DeleteVehicle(id); err != nil {
		return err
	}
	s.pushAfterSave(ctx)
	return nil
}

// DeleteNote deletes a note and pushes the deletion remotely, best effort.
func (s *Service) DeleteNote(ctx context.Context, id string) error {
	if err := s.Store.DeleteNote(id); err != nil {
		return err
	}
	s.pushAfterSave(ctx)
	return nil
}

func (s *Service) pushAfterSave(ctx context.Context) {
	err := s.Sync.PushLocalChanges(ctx)
	switch {
	case err == nil:
	case errors.Is(err, types.ErrSyncDisabled), errors.Is(err, types.ErrSyncBusy):
		// Expected while offline or mid-run; the change stays pending.
	default:
		s.log.Warn("push after save failed", "error", err)
	}
}
