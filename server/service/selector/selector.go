// Package selector draws random, non-repeating sets of questions from a catalog.
package selector

import (
	"context"
	"math/rand/v2"
	"slices"
	"sync"

	apperrors "github.com/hrygo/mintmaths/internal/errors"
	"github.com/hrygo/mintmaths/store"
)

// Catalog is the read side of the question store used by the selector.
type Catalog interface {
	Query(filter store.Filter) ([]*store.Question, error)
}

// Selector picks questions uniformly at random without replacement.
// It is safe for concurrent use.
type Selector struct {
	catalog Catalog

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Selector.
type Option func(*Selector)

// WithSource makes draws reproducible; production selectors seed from entropy.
func WithSource(src rand.Source) Option {
	return func(s *Selector) {
		s.rng = rand.New(src)
	}
}

// New creates a selector over catalog.
func New(catalog Catalog, opts ...Option) *Selector {
	s := &Selector{
		catalog: catalog,
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select draws count distinct questions matching filter. The result is in
// draw order.
func (s *Selector) Select(ctx context.Context, filter store.Filter, count int) (store.Selection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, apperrors.InvalidFilterf("number of questions must be positive, got %d", count)
	}

	candidates, err := s.candidates(filter)
	if err != nil {
		return nil, err
	}
	if count > len(candidates) {
		return nil, apperrors.InvalidFilterf("requested %d questions but only %d match %s", count, len(candidates), filter).
			WithContext("requested", count).
			WithContext("matched", len(candidates))
	}

	return s.draw(candidates, count), nil
}

// SelectUnused draws like Select but skips questions for which used returns
// true. When fewer than count unused questions remain it draws from every
// match instead and reports exhausted, so the caller can reset its history.
func (s *Selector) SelectUnused(ctx context.Context, filter store.Filter, count int, used func(id string) bool) (selection store.Selection, exhausted bool, err error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if count <= 0 {
		return nil, false, apperrors.InvalidFilterf("number of questions must be positive, got %d", count)
	}

	candidates, err := s.candidates(filter)
	if err != nil {
		return nil, false, err
	}
	if count > len(candidates) {
		return nil, false, apperrors.InvalidFilterf("requested %d questions but only %d match %s", count, len(candidates), filter).
			WithContext("requested", count).
			WithContext("matched", len(candidates))
	}

	unused := slices.DeleteFunc(slices.Clone(candidates), func(q *store.Question) bool {
		return used(q.ID)
	})
	if len(unused) < count {
		return s.draw(candidates, count), true, nil
	}
	return s.draw(unused, count), false, nil
}

// draw shuffles the first count slots of candidates (partial Fisher-Yates)
// and returns them.
func (s *Selector) draw(candidates []*store.Question, count int) store.Selection {
	s.mu.Lock()
	for i := 0; i < count; i++ {
		j := i + s.rng.IntN(len(candidates)-i)
		candidates[i], candidates[j] = candidates[j], candidates[i]
	}
	s.mu.Unlock()

	return store.Selection(slices.Clip(candidates[:count]))
}

// Replace returns a copy of selection with the question at index swapped for
// a random matching question that is not already selected. When used is not
// nil, questions it reports are avoided while any other candidate remains;
// exhausted is true when the pick had to fall back to a used question.
func (s *Selector) Replace(ctx context.Context, filter store.Filter, selection store.Selection, index int, used func(id string) bool) (replaced store.Selection, exhausted bool, err error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if index < 0 || index >= len(selection) {
		return nil, false, apperrors.InvalidFilterf("question index %d out of range [0, %d)", index, len(selection))
	}

	candidates, err := s.candidates(filter)
	if err != nil {
		return nil, false, err
	}
	available := slices.DeleteFunc(candidates, func(q *store.Question) bool {
		return selection.Contains(q.ID)
	})
	if len(available) == 0 {
		return nil, false, apperrors.InvalidFilterf("no other questions match %s", filter)
	}

	pool := available
	if used != nil {
		pool = slices.DeleteFunc(slices.Clone(available), func(q *store.Question) bool {
			return used(q.ID)
		})
		if len(pool) == 0 {
			pool, exhausted = available, true
		}
	}

	s.mu.Lock()
	pick := pool[s.rng.IntN(len(pool))]
	s.mu.Unlock()

	out := slices.Clone(selection)
	out[index] = pick
	return out, exhausted, nil
}

func (s *Selector) candidates(filter store.Filter) ([]*store.Question, error) {
	candidates, err := s.catalog.Query(filter)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, apperrors.InvalidFilterf("no questions match %s", filter)
	}
	return candidates, nil
}
