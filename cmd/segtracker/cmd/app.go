package cmd

import (
	"context"
	"time"

	"segmentation-tracker/cmd/segtracker/config"
	"segmentation-tracker/internal/batches"
	"segmentation-tracker/internal/metrics"
	"segmentation-tracker/internal/parsers"
	"segmentation-tracker/internal/reconciler"
	"segmentation-tracker/internal/roster"
	"segmentation-tracker/internal/store"
	"segmentation-tracker/internal/store/memstore"
	"segmentation-tracker/internal/store/mongostore"
	"segmentation-tracker/pkg/logger"
)

// stores are the three logical stores plus their shutdown hooks
type stores struct {
	batches store.BatchStore
	catalog store.FileCatalog
	roster  store.RosterStore
	pingers map[string]store.Pinger
	closers []func(context.Context) error
}

// openStores builds the configured backend. Tests replace it to share
// in-memory stores across command runs.
var openStores = func(cfg *config.Config) (*stores, error) {
	if cfg.Store.Driver == config.DriverMemory {
		return memoryStores(memstore.NewBatchStore(), memstore.NewFileCatalog(), memstore.NewRosterStore()), nil
	}

	batchStore, err := mongostore.NewBatchStore(cfg.Stores.Batches)
	if err != nil {
		return nil, err
	}
	catalog, err := mongostore.NewFileCatalog(cfg.Stores.Catalog)
	if err != nil {
		return nil, err
	}
	rosterStore, err := mongostore.NewRosterStore(cfg.Stores.Roster)
	if err != nil {
		return nil, err
	}

	return &stores{
		batches: batchStore,
		catalog: catalog,
		roster:  rosterStore,
		pingers: map[string]store.Pinger{
			store.BatchStoreName:  batchStore,
			store.CatalogName:     catalog,
			store.RosterStoreName: rosterStore,
		},
		closers: []func(context.Context) error{batchStore.Close, catalog.Close, rosterStore.Close},
	}, nil
}

func memoryStores(b *memstore.BatchStore, c *memstore.FileCatalog, r *memstore.RosterStore) *stores {
	return &stores{
		batches: b,
		catalog: c,
		roster:  r,
		pingers: map[string]store.Pinger{
			store.BatchStoreName:  b,
			store.CatalogName:     c,
			store.RosterStoreName: r,
		},
	}
}

// app holds the services every command works with
type app struct {
	cfg        *config.Config
	stores     *stores
	batches    *batches.Service
	metrics    *metrics.Service
	roster     *roster.Service
	reconciler *reconciler.ReconciliationService
	sync       *reconciler.SyncOrchestrator
	seed       *parsers.SeedParser
	logger     logger.Logger
}

func newApp(cfg *config.Config) (*app, error) {
	s, err := openStores(cfg)
	if err != nil {
		return nil, err
	}

	rosterSvc, err := roster.NewService(s.roster, &cfg.Roster)
	if err != nil {
		return nil, err
	}
	batchSvc, err := batches.NewService(s.batches, rosterSvc, &cfg.Batches.Config)
	if err != nil {
		return nil, err
	}
	metricsSvc, err := metrics.NewService(s.batches, rosterSvc, &cfg.Metrics)
	if err != nil {
		return nil, err
	}
	recon, err := reconciler.NewReconciliationService(s.batches, s.catalog, cfg.MatchingConfig(), cfg.ReconcilerConfig())
	if err != nil {
		return nil, err
	}
	recon.WithRoster(rosterSvc)

	seed, err := parsers.NewSeedParser(nil)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:        cfg,
		stores:     s,
		batches:    batchSvc,
		metrics:    metricsSvc,
		roster:     rosterSvc,
		reconciler: recon,
		sync:       reconciler.NewSyncOrchestrator(recon),
		seed:       seed,
		logger:     logger.WithComponent("cli"),
	}, nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, closeFn := range a.stores.closers {
		if err := closeFn(ctx); err != nil {
			a.logger.WithError(err).Warn("Failed to close store")
		}
	}
}

// withApp builds the services, runs fn and releases the stores
func withApp(fn func(a *app) error) error {
	a, err := newApp(appConfig)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a)
}
