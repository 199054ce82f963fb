package main

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/hrygo/mintmaths/internal/profile"
	"github.com/hrygo/mintmaths/plugin/pdf"
	"github.com/hrygo/mintmaths/server/service/practice"
	"github.com/hrygo/mintmaths/store"
	"github.com/hrygo/mintmaths/store/cache"
	"github.com/hrygo/mintmaths/store/db"
)

const historyFileName = "used_questions.json"

// app holds the wired generator for one command invocation.
type app struct {
	profile *profile.Profile
	catalog *store.Catalog
	store   *store.Store // nil without a persistent driver
	docs    *cache.DocumentCache
	history *store.UsageHistory
	service *practice.Service
}

type appOptions struct {
	includeSolutions bool
	useHistory       bool
}

func newApp(ctx context.Context, p *profile.Profile, opts appOptions) (*app, error) {
	catalog, err := store.LoadCatalog(p.CatalogPath)
	if err != nil {
		return nil, err
	}

	a := &app{profile: p, catalog: catalog}
	cfg := cache.Config{
		Capacity:        p.CacheCapacity,
		TTL:             p.CacheTTL,
		CleanupInterval: p.CacheCleanupInterval,
	}
	if p.HasPersistentCache() {
		if a.store, err = openStore(ctx, p); err != nil {
			return nil, err
		}
		cfg.Persister = a.store
	}
	a.docs = cache.New(cfg)

	builder := pdf.NewBuilder(
		pdf.NewSource(pdf.SourceOptions{
			Root:     p.SourceRoot,
			Timeout:  p.FetchTimeout,
			RetryMax: p.FetchRetryMax,

			RequestsPerSecond: p.FetchRate,
			Burst:             p.FetchBurst,
		}),
		pdf.WithSolutions(opts.includeSolutions),
	)

	slog.Debug("document builder ready",
		slog.String("sourceRoot", p.SourceRoot),
		slog.Bool("solutions", builder.IncludesSolutions()),
		slog.Bool("persistent", a.store != nil))

	serviceOpts := []practice.Option{
		practice.WithMaxConcurrentBuilds(p.MaxConcurrentBuilds),
		practice.WithLogger(slog.Default().With(slog.String("component", "practice"))),
	}
	if opts.useHistory {
		if a.history, err = store.OpenUsageHistory(filepath.Join(p.Data, historyFileName)); err != nil {
			a.Close()
			return nil, err
		}
		serviceOpts = append(serviceOpts, practice.WithHistory(a.history))
	}
	a.service = practice.New(catalog, a.docs, builder, serviceOpts...)
	return a, nil
}

// logStats reports cache and request counters for this invocation.
func (a *app) logStats() {
	cs := a.docs.Stats()
	ms := a.service.Metrics().Snapshot()
	slog.Debug("generator stats",
		slog.Int("cached", cs.Size),
		slog.Int64("hits", cs.Hits),
		slog.Int64("persistentHits", cs.PersistentHits),
		slog.Int64("builds", cs.Builds),
		slog.Int64("buildFailures", cs.BuildFailures),
		slog.Int64("requests", ms.RequestTotal),
		slog.Int64("failedRequests", ms.RequestFailed),
		slog.Duration("p95", ms.P95))
}

func openStore(ctx context.Context, p *profile.Profile) (*store.Store, error) {
	driver, err := db.NewDBDriver(p)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	s := store.New(driver, p)
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, errors.Wrap(err, "failed to migrate")
	}
	return s, nil
}

func (a *app) Close() {
	if a.docs != nil {
		a.docs.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			slog.Warn("failed to close store", slog.String("error", err.Error()))
		}
	}
}
