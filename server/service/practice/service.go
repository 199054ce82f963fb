// Package practice generates practice documents: it draws questions with the
// selector and returns the cached document for the draw, building it on a
// miss.
//
// Builds are bounded by a weighted semaphore; cache hits never wait on it.
package practice

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	apperrors "github.com/hrygo/mintmaths/internal/errors"
	"github.com/hrygo/mintmaths/server/internal/observability"
	"github.com/hrygo/mintmaths/server/service/selector"
	"github.com/hrygo/mintmaths/store"
	"github.com/hrygo/mintmaths/store/cache"
)

const (
	// DefaultMaxConcurrentBuilds is the default number of builds allowed to run at once.
	DefaultMaxConcurrentBuilds = 3

	operationGenerate = "generate"
	operationReplace  = "replace"
	operationRebuild  = "rebuild"
)

// Selector draws questions.
type Selector interface {
	Select(ctx context.Context, filter store.Filter, count int) (store.Selection, error)
	Replace(ctx context.Context, filter store.Filter, selection store.Selection, index int, used func(id string) bool) (store.Selection, bool, error)
	SelectUnused(ctx context.Context, filter store.Filter, count int, used func(id string) bool) (store.Selection, bool, error)
}

// History remembers questions already handed out. *store.UsageHistory
// implements it.
type History interface {
	Used(id string) bool
	Record(ids ...string) error
	Reset() error
}

// DocumentCache returns the document for a key, building it at most once.
type DocumentCache interface {
	GetOrCreate(ctx context.Context, key string, build cache.BuildFunc) (*store.Document, error)
}

// Builder renders a selection into a document. Variant identifies the
// settings that shape the output; it is part of the cache key.
type Builder interface {
	Build(ctx context.Context, selection store.Selection) ([]byte, error)
	Variant() string
}

// Request describes one generate call.
type Request struct {
	Filter store.Filter
	Count  int
	// SortForDisplay orders the drawn questions by year and paper before
	// the document is laid out.
	SortForDisplay bool
}

// Result is a generated document and the questions in it.
type Result struct {
	RequestID string
	Selection store.Selection
	Key       string
	Document  *store.Document
}

// Service composes selection, caching and building.
type Service struct {
	catalog  *store.Catalog
	selector Selector
	cache    DocumentCache
	builder  Builder
	history  History
	sem      *semaphore.Weighted
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithSelector replaces the default selector over the catalog.
func WithSelector(s Selector) Option {
	return func(svc *Service) {
		svc.selector = s
	}
}

// WithHistory makes Generate prefer questions not handed out before and
// records every generated selection.
func WithHistory(h History) Option {
	return func(svc *Service) {
		svc.history = h
	}
}

// WithMaxConcurrentBuilds bounds concurrent builds; n <= 0 keeps the default.
func WithMaxConcurrentBuilds(n int64) Option {
	return func(svc *Service) {
		if n > 0 {
			svc.sem = semaphore.NewWeighted(n)
		}
	}
}

// WithLogger sets the logger used for request logs.
func WithLogger(l *slog.Logger) Option {
	return func(svc *Service) {
		svc.logger = l
	}
}

// New creates a practice service.
func New(catalog *store.Catalog, docs DocumentCache, builder Builder, opts ...Option) *Service {
	svc := &Service{
		catalog: catalog,
		cache:   docs,
		builder: builder,
		sem:     semaphore.NewWeighted(DefaultMaxConcurrentBuilds),
		metrics: observability.NewMetrics(1000),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.selector == nil {
		svc.selector = selector.New(catalog)
	}
	return svc
}

// Metrics returns the service metrics.
func (s *Service) Metrics() *observability.Metrics {
	return s.metrics
}

// Facets returns the filter values offered by the catalog.
func (s *Service) Facets() store.Facets {
	return s.catalog.Facets()
}

// Generate draws req.Count questions matching req.Filter and returns their document.
func (s *Service) Generate(ctx context.Context, req Request) (*Result, error) {
	rc := s.begin(operationGenerate, slog.String("filter", req.Filter.String()), slog.Int("count", req.Count))

	selection, err := s.selectQuestions(ctx, rc, req)
	if err != nil {
		return nil, s.fail(rc, err)
	}
	if req.SortForDisplay {
		selection = selection.SortedForDisplay()
	}
	res, err := s.finish(ctx, rc, req.Filter, selection)
	if err != nil {
		return nil, err
	}
	s.remember(rc, selection.IDs()...)
	return res, nil
}

func (s *Service) selectQuestions(ctx context.Context, rc *observability.RequestContext, req Request) (store.Selection, error) {
	if s.history == nil {
		return s.selector.Select(ctx, req.Filter, req.Count)
	}

	selection, exhausted, err := s.selector.SelectUnused(ctx, req.Filter, req.Count, s.history.Used)
	if err != nil {
		return nil, err
	}
	if exhausted {
		s.resetHistory(rc)
	}
	return selection, nil
}

func (s *Service) usedQuestions() func(id string) bool {
	if s.history == nil {
		return nil
	}
	return s.history.Used
}

func (s *Service) resetHistory(rc *observability.RequestContext) {
	rc.Warn("not enough unused questions left, resetting history")
	if err := s.history.Reset(); err != nil {
		rc.Error("failed to reset question history", err)
	}
}

// remember records handed-out questions; a history write failure does not
// fail the request.
func (s *Service) remember(rc *observability.RequestContext, ids ...string) {
	if s.history == nil {
		return
	}
	if err := s.history.Record(ids...); err != nil {
		rc.Error("failed to record question history", err)
	}
}

// Replace swaps the question at index for another matching one and returns
// the document for the new selection. With a history, questions handed out
// before are avoided; the history is reset once none are left.
func (s *Service) Replace(ctx context.Context, filter store.Filter, selection store.Selection, index int) (*Result, error) {
	rc := s.begin(operationReplace, slog.String("filter", filter.String()), slog.Int("index", index))

	replaced, exhausted, err := s.selector.Replace(ctx, filter, selection, index, s.usedQuestions())
	if err != nil {
		return nil, s.fail(rc, err)
	}
	if exhausted {
		s.resetHistory(rc)
	}
	res, err := s.finish(ctx, rc, filter, replaced)
	if err != nil {
		return nil, err
	}
	s.remember(rc, replaced[index].ID)
	return res, nil
}

// Rebuild returns the document for questions chosen earlier, given by ID in
// layout order. filter is the one the questions were drawn with; it is part
// of the cache key.
func (s *Service) Rebuild(ctx context.Context, filter store.Filter, ids []string) (*Result, error) {
	rc := s.begin(operationRebuild, slog.Int(observability.LogFieldQuestions, len(ids)))

	selection, err := s.Resolve(ids)
	if err != nil {
		return nil, s.fail(rc, err)
	}
	return s.finish(ctx, rc, filter, selection)
}

// Resolve looks up questions by ID, keeping the given order. Nothing is built.
func (s *Service) Resolve(ids []string) (store.Selection, error) {
	if len(ids) == 0 {
		return nil, apperrors.InvalidFilter("no question ids given")
	}
	selection := make(store.Selection, 0, len(ids))
	for _, id := range ids {
		q, ok := s.catalog.Get(id)
		if !ok {
			return nil, apperrors.InvalidFilterf("unknown question id %q", id)
		}
		if selection.Contains(id) {
			return nil, apperrors.InvalidFilterf("question id %q given twice", id)
		}
		selection = append(selection, q)
	}
	return selection, nil
}

func (s *Service) begin(operation string, attrs ...slog.Attr) *observability.RequestContext {
	rc := observability.NewRequestContext(s.logger, operation)
	s.metrics.RecordRequest(operation)
	rc.Debug("request started", attrs...)
	return rc
}

func (s *Service) finish(ctx context.Context, rc *observability.RequestContext, filter store.Filter, selection store.Selection) (*Result, error) {
	key := cache.Key(filter, selection, s.builder.Variant())
	ctx = observability.WithRequestContext(ctx, rc)
	doc, err := s.cache.GetOrCreate(ctx, key, func(ctx context.Context) ([]byte, error) {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer s.sem.Release(1)
		// The build may outlive the request that started it; its logs keep that request's id.
		if leader, ok := observability.FromContext(ctx); ok {
			leader.Debug("building document", slog.String(observability.LogFieldCacheKey, key))
		}
		return s.builder.Build(ctx, selection)
	})
	if err != nil {
		return nil, s.fail(rc, err, slog.String(observability.LogFieldCacheKey, key))
	}

	s.metrics.RecordDuration(rc.Operation, rc.Duration())
	rc.Info("document ready",
		slog.String(observability.LogFieldCacheKey, key),
		slog.String("uid", doc.UID),
		slog.Int(observability.LogFieldQuestions, len(selection)),
		slog.Int64(observability.LogFieldDuration, rc.Duration().Milliseconds()))
	return &Result{
		RequestID: rc.RequestID,
		Selection: selection,
		Key:       key,
		Document:  doc,
	}, nil
}

func (s *Service) fail(rc *observability.RequestContext, err error, attrs ...slog.Attr) error {
	code := apperrors.GetCodeFromError(err, "UNKNOWN")
	s.metrics.RecordFailure(rc.Operation, string(code))
	s.metrics.RecordDuration(rc.Operation, rc.Duration())
	var coded *apperrors.Error
	if errors.As(err, &coded) && len(coded.Context) > 0 {
		attrs = append(attrs, slog.Any("details", coded.Context))
	}
	attrs = append(attrs,
		slog.String(observability.LogFieldErrorCode, string(code)),
		slog.Int64(observability.LogFieldDuration, rc.Duration().Milliseconds()))
	if code == apperrors.ErrCodeInvalidFilter {
		rc.Warn("request rejected", append(attrs, slog.String("error", err.Error()))...)
	} else {
		rc.Error("request failed", err, attrs...)
	}
	return err
}
