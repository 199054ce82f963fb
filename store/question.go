package store

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// Question is the object representing one exam question in the catalog.
type Question struct {
	ID    string
	Year  int
	Topic string
	// Paper is the paper type, e.g. "P1" (non-calculator) or "P2" (calculator).
	Paper string

	// QuestionRef and SolutionRef point at the source PDFs, either a path
	// relative to the source root or an http(s) URL.
	QuestionRef string
	SolutionRef string
	// QuestionPages and SolutionPages are page specs such as "2-4,6".
	QuestionPages string
	SolutionPages string
}

// Number returns the short question label, e.g. "Q12" for "2022_P1_Q12".
func (q *Question) Number() string {
	parts := strings.Split(q.ID, "_")
	return strings.ToUpper(parts[len(parts)-1])
}

// Title returns the line used on cover pages and listings.
func (q *Question) Title() string {
	return fmt.Sprintf("%s - %d %s - %s", q.Number(), q.Year, q.Paper, q.Topic)
}

// Filter narrows the catalog. Zero values match everything.
type Filter struct {
	Year  int
	Topic string
	Paper string
	// Expr is an optional CEL expression over id, year, topic and paper.
	Expr string
}

// IsEmpty reports whether the filter matches every question.
func (f Filter) IsEmpty() bool {
	return f.Year == 0 && strings.TrimSpace(f.Topic) == "" && strings.TrimSpace(f.Paper) == "" && strings.TrimSpace(f.Expr) == ""
}

// String describes the non-empty filter fields, e.g. "year=2021 topic=Geometry".
func (f Filter) String() string {
	var parts []string
	if f.Year != 0 {
		parts = append(parts, fmt.Sprintf("year=%d", f.Year))
	}
	if topic := strings.TrimSpace(f.Topic); topic != "" {
		parts = append(parts, "topic="+topic)
	}
	if paper := strings.TrimSpace(f.Paper); paper != "" {
		parts = append(parts, "paper="+paper)
	}
	if expr := strings.TrimSpace(f.Expr); expr != "" {
		parts = append(parts, fmt.Sprintf("where=%q", expr))
	}
	if len(parts) == 0 {
		return "all questions"
	}
	return strings.Join(parts, " ")
}

// matchFields applies the field filters. Expr is evaluated by the catalog.
func (f Filter) matchFields(q *Question) bool {
	if f.Year != 0 && q.Year != f.Year {
		return false
	}
	if topic := strings.TrimSpace(f.Topic); topic != "" && !strings.EqualFold(q.Topic, topic) {
		return false
	}
	if paper := strings.TrimSpace(f.Paper); paper != "" && !strings.EqualFold(q.Paper, paper) {
		return false
	}
	return true
}

// Selection is the ordered set of questions chosen for one document.
type Selection []*Question

// IDs returns the question identifiers in selection order.
func (s Selection) IDs() []string {
	ids := make([]string, len(s))
	for i, q := range s {
		ids[i] = q.ID
	}
	return ids
}

// Contains reports whether a question with the given ID is selected.
func (s Selection) Contains(id string) bool {
	return slices.ContainsFunc(s, func(q *Question) bool { return q.ID == id })
}

// SortedForDisplay returns a copy ordered by year, then paper (P1 before
// P2, anything else last), then ID.
func (s Selection) SortedForDisplay() Selection {
	out := slices.Clone(s)
	slices.SortStableFunc(out, func(a, b *Question) int {
		if c := cmp.Compare(a.Year, b.Year); c != 0 {
			return c
		}
		if c := cmp.Compare(paperRank(a.Paper), paperRank(b.Paper)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func paperRank(paper string) int {
	switch strings.ToUpper(strings.TrimSpace(paper)) {
	case "P1":
		return 1
	case "P2":
		return 2
	default:
		return 3
	}
}
