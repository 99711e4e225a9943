package sync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mesh-intelligence/fleetsync/internal/remote"
	"github.com/mesh-intelligence/fleetsync/pkg/types"
)

// ReconcileZones drives the server's custom zones to the expected set:
// missing zones are created, unexpected ones are deleted. The server's
// default zone is left alone no matter what the listing returns. The whole
// operation is idempotent; converged state produces no requests at all.
func ReconcileZones(ctx context.Context, client remote.Client, log *slog.Logger) error {
	existing, err := client.Zones(ctx)
	if err != nil {
		return fmt.Errorf("listing zones: %w", err)
	}

	have := make(map[types.Zone]bool, len(existing))
	for _, zone := range existing {
		have[zone] = true
	}

	var missing []types.Zone
	for _, zone := range types.AllZones() {
		if !have[zone] {
			missing = append(missing, zone)
		}
		delete(have, zone)
	}
	var unexpected []types.Zone
	for zone := range have {
		if zone == types.DefaultZone {
			continue
		}
		unexpected = append(unexpected, zone)
	}

	if len(missing) > 0 {
		log.Info("creating zones", "zones", missing)
		if err := client.CreateZones(ctx, missing); err != nil {
			return fmt.Errorf("creating zones: %w", err)
		}
	}
	if len(unexpected) > 0 {
		log.Info("deleting zones", "zones", unexpected)
		if err := client.DeleteZones(ctx, unexpected); err != nil {
			return fmt.Errorf("deleting zones: %w", err)
		}
	}
	return nil
}

// ReconcileSubscriptions drives the server's change subscriptions to one per
// expected zone, removing any it does not recognize. Idempotent, like
// ReconcileZones.
func ReconcileSubscriptions(ctx context.Context, client remote.Client, log *slog.Logger) error {
	existing, err := client.Subscriptions(ctx)
	if err != nil {
		return fmt.Errorf("listing subscriptions: %w", err)
	}

	have := make(map[string]bool, len(existing))
	for _, sub := range existing {
		have[sub.ID] = true
	}

	var missing []remote.Subscription
	for _, zone := range types.AllZones() {
		id := remote.SubscriptionID(zone)
		if !have[id] {
			missing = append(missing, remote.Subscription{ID: id, Zone: zone})
		}
		delete(have, id)
	}
	var unexpected []string
	for id := range have {
		unexpected = append(unexpected, id)
	}

	if len(missing) > 0 {
		log.Info("creating subscriptions", "count", len(missing))
		if err := client.CreateSubscriptions(ctx, missing); err != nil {
			return fmt.Errorf("creating subscriptions: %w", err)
		}
	}
	if len(unexpected) > 0 {
		log.Info("deleting subscriptions", "ids", unexpected)
		if err := client.DeleteSubscriptions(ctx, unexpected); err != nil {
			return fmt.Errorf("deleting subscriptions: %w", err)
		}
	}
	return nil
}
