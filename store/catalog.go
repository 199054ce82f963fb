package store

import (
	"slices"
	"strings"

	apperrors "github.com/hrygo/mintmaths/internal/errors"
)

// Catalog is the read-only collection of loaded questions.
// It is safe for concurrent use; nothing mutates it after NewCatalog returns.
type Catalog struct {
	questions []*Question
	byID      map[string]*Question
	source    string
}

// NewCatalog builds a catalog from already-parsed questions.
// IDs must be unique.
func NewCatalog(source string, questions []*Question) (*Catalog, error) {
	byID := make(map[string]*Question, len(questions))
	for _, q := range questions {
		if _, ok := byID[q.ID]; ok {
			return nil, apperrors.DataLoadf("duplicate question id %q in %s", q.ID, source)
		}
		byID[q.ID] = q
	}
	return &Catalog{
		questions: slices.Clone(questions),
		byID:      byID,
		source:    source,
	}, nil
}

// Source returns where the catalog was loaded from.
func (c *Catalog) Source() string {
	return c.source
}

// Len returns the number of questions.
func (c *Catalog) Len() int {
	return len(c.questions)
}

// Get returns the question with the given ID.
func (c *Catalog) Get(id string) (*Question, bool) {
	q, ok := c.byID[id]
	return q, ok
}

// Query returns all questions matching the filter, in load order.
// The returned slice is owned by the caller.
func (c *Catalog) Query(filter Filter) ([]*Question, error) {
	var matcher *exprMatcher
	if expr := strings.TrimSpace(filter.Expr); expr != "" {
		m, err := compileExpr(expr)
		if err != nil {
			return nil, apperrors.InvalidFilterf("invalid filter expression %q: %v", expr, err)
		}
		matcher = m
	}

	out := make([]*Question, 0, len(c.questions))
	for _, q := range c.questions {
		if !filter.matchFields(q) {
			continue
		}
		if matcher != nil {
			ok, err := matcher.match(q)
			if err != nil {
				return nil, apperrors.InvalidFilterf("filter expression failed: %v", err)
			}
			if !ok {
				continue
			}
		}
		out = append(out, q)
	}
	return out, nil
}

// Facets lists the distinct values offered as filter choices.
type Facets struct {
	Years  []int
	Papers []string
	Topics []string
}

// Facets returns the sorted distinct years, papers and topics.
func (c *Catalog) Facets() Facets {
	years := map[int]struct{}{}
	papers := map[string]struct{}{}
	topics := map[string]struct{}{}
	for _, q := range c.questions {
		years[q.Year] = struct{}{}
		if q.Paper != "" {
			papers[q.Paper] = struct{}{}
		}
		if q.Topic != "" {
			topics[q.Topic] = struct{}{}
		}
	}

	f := Facets{}
	for y := range years {
		f.Years = append(f.Years, y)
	}
	for p := range papers {
		f.Papers = append(f.Papers, p)
	}
	for t := range topics {
		f.Topics = append(f.Topics, t)
	}
	slices.Sort(f.Years)
	slices.Sort(f.Papers)
	slices.Sort(f.Topics)
	return f
}
