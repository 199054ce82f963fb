package cache

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"golang.org/x/sync/singleflight"

	apperrors "github.com/hrygo/mintmaths/internal/errors"
	"github.com/hrygo/mintmaths/store"
)

// BuildFunc produces the document body for a key on a miss.
type BuildFunc func(ctx context.Context) ([]byte, error)

// Persister is the optional second tier shared across processes.
// *store.Store implements it.
type Persister interface {
	GetDocument(ctx context.Context, key string) (*store.Document, error)
	CreateDocument(ctx context.Context, create *store.Document) (*store.Document, error)
	DeleteDocuments(ctx context.Context, delete *store.DeleteDocument) (int64, error)
}

// Config configures the document cache.
type Config struct {
	Capacity        int           // Maximum in-memory documents (default: 128)
	TTL             time.Duration // Document lifetime (default: 24h)
	CleanupInterval time.Duration // Prune period; <= 0 disables the cleanup loop
	Persister       Persister     // Optional; nil keeps documents in memory only
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		Capacity:        128,
		TTL:             24 * time.Hour,
		CleanupInterval: 10 * time.Minute,
	}
}

// Stats is a snapshot of cache activity.
type Stats struct {
	Size           int
	Hits           int64
	PersistentHits int64
	Misses         int64
	Builds         int64
	BuildFailures  int64
}

// PruneResult reports what a prune removed from each tier.
type PruneResult struct {
	Memory     int
	Persistent int64
}

// DocumentCache maps cache keys to built documents. Concurrent misses for the
// same key share a single build; different keys build in parallel.
type DocumentCache struct {
	lru       *lru
	persister Persister
	ttl       time.Duration
	now       func() time.Time
	group     singleflight.Group

	hits           atomic.Int64
	persistentHits atomic.Int64
	misses         atomic.Int64
	builds         atomic.Int64
	buildFailures  atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a document cache and starts its cleanup loop.
func New(cfg Config) *DocumentCache {
	return newWithClock(cfg, time.Now)
}

func newWithClock(cfg Config, now func() time.Time) *DocumentCache {
	defaults := DefaultConfig()
	if cfg.Capacity <= 0 {
		cfg.Capacity = defaults.Capacity
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaults.TTL
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &DocumentCache{
		lru:       newLRU(cfg.Capacity, cfg.TTL, now),
		persister: cfg.Persister,
		ttl:       cfg.TTL,
		now:       now,
		ctx:       ctx,
		cancel:    cancel,
	}

	if cfg.CleanupInterval > 0 {
		c.wg.Add(1)
		go c.cleanupLoop(cfg.CleanupInterval)
	}
	return c
}

// Close stops the cleanup loop.
func (c *DocumentCache) Close() {
	c.cancel()
	c.wg.Wait()
}

// Get returns the cached document for key, or nil if neither tier has it.
func (c *DocumentCache) Get(ctx context.Context, key string) (*store.Document, error) {
	if doc, ok := c.lru.get(key); ok {
		c.hits.Add(1)
		return doc, nil
	}
	if c.persister == nil {
		return nil, nil
	}
	doc, err := c.persister.GetDocument(ctx, key)
	if err != nil {
		return nil, apperrors.StoreFailure("failed to read cached document", err)
	}
	if doc == nil {
		return nil, nil
	}
	c.persistentHits.Add(1)
	return c.lru.add(doc), nil
}

// GetOrCreate returns the document cached under key, invoking build at most
// once across concurrent callers when it is missing. A failed build is
// returned to every waiter as BUILD_FAILED and nothing is cached.
//
// The build runs detached from ctx so one caller giving up does not fail the
// others; a caller whose ctx ends stops waiting and gets ctx.Err().
func (c *DocumentCache) GetOrCreate(ctx context.Context, key string, build BuildFunc) (*store.Document, error) {
	if doc, ok := c.lru.get(key); ok {
		c.hits.Add(1)
		return doc, nil
	}

	buildCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		return c.load(buildCtx, key, build)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*store.Document), nil
	}
}

// load runs inside the per-key flight.
func (c *DocumentCache) load(ctx context.Context, key string, build BuildFunc) (*store.Document, error) {
	// A flight that just finished may have filled the entry.
	if doc, ok := c.lru.get(key); ok {
		c.hits.Add(1)
		return doc, nil
	}

	if c.persister != nil {
		doc, err := c.persister.GetDocument(ctx, key)
		if err != nil {
			slog.Warn("persistent cache read failed, rebuilding",
				slog.String("key", key), slog.String("error", err.Error()))
		} else if doc != nil {
			c.persistentHits.Add(1)
			return c.lru.add(doc), nil
		}
	}

	c.misses.Add(1)
	c.builds.Add(1)
	start := c.now()
	body, err := build(ctx)
	if err != nil {
		c.buildFailures.Add(1)
		slog.Error("document build failed", slog.String("key", key), slog.String("error", err.Error()))
		if apperrors.IsCode(err, apperrors.ErrCodeBuildFailed) {
			return nil, err
		}
		return nil, apperrors.BuildFailure("failed to build document", err)
	}

	doc := &store.Document{
		Key:       key,
		UID:       shortuuid.New(),
		Body:      body,
		Size:      int64(len(body)),
		CreatedTs: c.now().Unix(),
	}
	slog.Info("document built",
		slog.String("key", key),
		slog.String("uid", doc.UID),
		slog.Int64("bytes", doc.Size),
		slog.Duration("duration", c.now().Sub(start)))

	if c.persister != nil {
		// Another process may have stored this key first; its row wins.
		stored, err := c.persister.CreateDocument(ctx, doc)
		if err != nil {
			slog.Warn("persistent cache write failed, keeping document in memory",
				slog.String("key", key), slog.String("error", err.Error()))
		} else {
			doc = stored
		}
	}
	return c.lru.add(doc), nil
}

// Stats returns a snapshot of the cache counters.
func (c *DocumentCache) Stats() Stats {
	return Stats{
		Size:           c.lru.len(),
		Hits:           c.hits.Load(),
		PersistentHits: c.persistentHits.Load(),
		Misses:         c.misses.Load(),
		Builds:         c.builds.Load(),
		BuildFailures:  c.buildFailures.Load(),
	}
}

// Prune drops expired in-memory documents and persisted documents older than the TTL.
func (c *DocumentCache) Prune(ctx context.Context) (PruneResult, error) {
	result := PruneResult{Memory: c.lru.cleanupExpired()}
	if c.persister == nil {
		return result, nil
	}

	cutoff := c.now().Add(-c.ttl).Unix()
	deleted, err := c.persister.DeleteDocuments(ctx, &store.DeleteDocument{CreatedBefore: &cutoff})
	if err != nil {
		return result, apperrors.StoreFailure("failed to prune persisted documents", err)
	}
	result.Persistent = deleted
	return result, nil
}

func (c *DocumentCache) cleanupLoop(interval time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			result, err := c.Prune(c.ctx)
			if err != nil {
				slog.Warn("cache prune failed", slog.String("error", err.Error()))
				continue
			}
			if result.Memory > 0 || result.Persistent > 0 {
				slog.Debug("cache pruned",
					slog.Int("memory", result.Memory),
					slog.Int64("persistent", result.Persistent))
			}
		}
	}
}
