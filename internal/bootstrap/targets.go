package bootstrap

import (
	"context"
	"fmt"

	"github.com/global-data-controller/emuseed/internal/bigtableseed"
	"github.com/global-data-controller/emuseed/internal/config"
	"github.com/global-data-controller/emuseed/internal/datastoreseed"
	"github.com/global-data-controller/emuseed/internal/emulator"
	"github.com/global-data-controller/emuseed/internal/firestoreseed"
	"github.com/global-data-controller/emuseed/internal/pubsubseed"
	"github.com/global-data-controller/emuseed/internal/seed"
	"github.com/global-data-controller/emuseed/internal/spannerseed"
	"github.com/global-data-controller/emuseed/internal/ydbseed"
)

// Targets resolves seeder names into runner targets. Without names, every enabled
// seeder of seed.order is returned; a named seeder runs even when disabled.
func (b *Bootstrap) Targets(names ...string) ([]seed.Target, error) {
	explicit := len(names) > 0
	if !explicit {
		names = b.Config.Seed.Order
	}

	targets := make([]seed.Target, 0, len(names))
	for _, name := range names {
		tc, ok := b.Config.Target(name)
		if !ok {
			return nil, fmt.Errorf("unknown seeder %q", name)
		}
		if !explicit && !tc.Enabled {
			continue
		}

		open, err := b.opener(name)
		if err != nil {
			return nil, err
		}
		targets = append(targets, seed.Target{
			Name:     name,
			Required: tc.Required,
			Open:     open,
		})
	}
	return targets, nil
}

func (b *Bootstrap) opener(name string) (seed.Opener, error) {
	cfg := b.Config
	f := b.Fixtures
	policy := emulator.ConflictPolicy(cfg.Seed.OnConflict)
	logger := b.Logger.Named(name)

	switch name {
	case config.Bigtable:
		return func(ctx context.Context) (seed.Seeder, error) {
			return bigtableseed.New(ctx, bigtableseed.Config{
				ProjectID:    cfg.ProjectID,
				InstanceID:   cfg.Bigtable.InstanceID,
				EmulatorHost: cfg.Bigtable.EmulatorHost,
				OnConflict:   policy,
			}, f.Bigtable, logger)
		}, nil

	case config.Datastore:
		return func(ctx context.Context) (seed.Seeder, error) {
			return datastoreseed.New(ctx, datastoreseed.Config{
				ProjectID:    cfg.ProjectID,
				DatabaseID:   cfg.Datastore.DatabaseID,
				EmulatorHost: cfg.Datastore.EmulatorHost,
			}, f.Datastore, logger)
		}, nil

	case config.Firestore:
		return func(ctx context.Context) (seed.Seeder, error) {
			return firestoreseed.New(ctx, firestoreseed.Config{
				ProjectID:    cfg.ProjectID,
				DatabaseID:   cfg.Firestore.DatabaseID,
				EmulatorHost: cfg.Firestore.EmulatorHost,
			}, f.Firestore, logger)
		}, nil

	case config.PubSub:
		return func(ctx context.Context) (seed.Seeder, error) {
			return pubsubseed.New(ctx, pubsubseed.Config{
				ProjectID:    cfg.ProjectID,
				EmulatorHost: cfg.PubSub.EmulatorHost,
				OnConflict:   policy,
			}, f.PubSub, logger)
		}, nil

	case config.Spanner:
		return func(ctx context.Context) (seed.Seeder, error) {
			return spannerseed.New(ctx, spannerseed.Config{
				ProjectID:        cfg.ProjectID,
				InstanceID:       cfg.Spanner.InstanceID,
				InstanceConfig:   cfg.Spanner.InstanceConfig,
				DatabaseID:       cfg.Spanner.DatabaseID,
				EmulatorHost:     cfg.Spanner.EmulatorHost,
				OperationTimeout: cfg.Spanner.OperationTimeout,
				OnConflict:       policy,
			}, f.Relational, logger)
		}, nil

	case config.YDB:
		return func(ctx context.Context) (seed.Seeder, error) {
			if cfg.YDB.DSN == "" {
				return nil, fmt.Errorf("ydb.dsn is not set")
			}
			return ydbseed.New(ctx, ydbseed.Config{
				DSN:        cfg.YDB.DSN,
				OnConflict: policy,
			}, f.Relational, logger)
		}, nil
	}

	return nil, fmt.Errorf("unknown seeder %q", name)
}
