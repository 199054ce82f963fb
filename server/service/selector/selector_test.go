package selector

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/hrygo/mintmaths/internal/errors"
	"github.com/hrygo/mintmaths/store"
)

func testCatalog(t *testing.T) *store.Catalog {
	t.Helper()
	qs := []*store.Question{
		{ID: "2019_P2_Q1", Year: 2019, Topic: "Algebra", Paper: "calculator"},
		{ID: "2019_P1_Q2", Year: 2019, Topic: "Number", Paper: "non-calculator"},
		{ID: "2021_P1_Q3", Year: 2021, Topic: "Geometry", Paper: "non-calculator"},
		{ID: "2021_P1_Q7", Year: 2021, Topic: "Geometry", Paper: "non-calculator"},
		{ID: "2021_P2_Q4", Year: 2021, Topic: "Geometry", Paper: "calculator"},
	}
	for i := 0; i < 20; i++ {
		qs = append(qs, &store.Question{ID: fmt.Sprintf("2022_P1_Q%d", i+1), Year: 2022, Topic: "Ratio", Paper: "P1"})
	}
	c, err := store.NewCatalog("test", qs)
	require.NoError(t, err)
	return c
}

func seeded(seed uint64) Option {
	return WithSource(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func TestSelect_ReturnsDistinctMatchingQuestions(t *testing.T) {
	ctx := context.Background()
	s := New(testCatalog(t), seeded(1))

	tests := []struct {
		name   string
		filter store.Filter
		count  int
	}{
		{"Year", store.Filter{Year: 2022}, 7},
		{"AllMatches", store.Filter{Topic: "Geometry"}, 3},
		{"Single", store.Filter{Year: 2019, Topic: "Algebra"}, 1},
		{"Expr", store.Filter{Expr: `year < 2022`}, 4},
		{"Everything", store.Filter{}, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := s.Select(ctx, tt.filter, tt.count)
			require.NoError(t, err)
			require.Len(t, sel, tt.count)

			seen := map[string]bool{}
			for _, q := range sel {
				assert.False(t, seen[q.ID], "duplicate %s", q.ID)
				seen[q.ID] = true
			}

			matches, err := testCatalog(t).Query(tt.filter)
			require.NoError(t, err)
			allowed := store.Selection(matches)
			for _, q := range sel {
				assert.True(t, allowed.Contains(q.ID), "%s does not match %s", q.ID, tt.filter)
			}
		})
	}
}

func TestSelect_GeometryScenario(t *testing.T) {
	s := New(testCatalog(t))

	sel, err := s.Select(context.Background(), store.Filter{Year: 2021, Topic: "Geometry"}, 3)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"2021_P1_Q3", "2021_P1_Q7", "2021_P2_Q4"}, sel.IDs())
}

func TestSelect_InvalidFilter(t *testing.T) {
	s := New(testCatalog(t))
	ctx := context.Background()

	tests := []struct {
		name   string
		filter store.Filter
		count  int
	}{
		{"ZeroCount", store.Filter{}, 0},
		{"NegativeCount", store.Filter{}, -2},
		{"TooMany", store.Filter{Topic: "Geometry"}, 4},
		{"NoMatch", store.Filter{Year: 1999}, 1},
		{"BadExpr", store.Filter{Expr: "year >"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Select(ctx, tt.filter, tt.count)
			require.Error(t, err)
			assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidFilter), err.Error())
		})
	}
}

func TestSelect_TooManyCarriesCounts(t *testing.T) {
	_, err := New(testCatalog(t)).Select(context.Background(), store.Filter{Topic: "Geometry"}, 4)
	require.Error(t, err)

	var coded *apperrors.Error
	require.ErrorAs(t, err, &coded)
	assert.Equal(t, map[string]interface{}{"requested": 4, "matched": 3}, coded.Context)
}

func TestSelect_EveryCandidateIsDrawn(t *testing.T) {
	s := New(testCatalog(t), seeded(42))
	filter := store.Filter{Year: 2022}

	counts := map[string]int{}
	const draws = 2000
	for i := 0; i < draws; i++ {
		sel, err := s.Select(context.Background(), filter, 2)
		require.NoError(t, err)
		for _, q := range sel {
			counts[q.ID]++
		}
	}

	require.Len(t, counts, 20)
	// Expected 200 picks each; allow a wide band.
	for id, n := range counts {
		assert.Greater(t, n, 120, id)
		assert.Less(t, n, 280, id)
	}
}

func TestSelect_SeededIsReproducible(t *testing.T) {
	c := testCatalog(t)
	a, err := New(c, seeded(7)).Select(context.Background(), store.Filter{}, 10)
	require.NoError(t, err)
	b, err := New(c, seeded(7)).Select(context.Background(), store.Filter{}, 10)
	require.NoError(t, err)
	assert.Equal(t, a.IDs(), b.IDs())
}

func TestSelect_DoesNotReorderCatalog(t *testing.T) {
	c := testCatalog(t)
	before, err := c.Query(store.Filter{})
	require.NoError(t, err)

	_, err = New(c, seeded(3)).Select(context.Background(), store.Filter{}, 25)
	require.NoError(t, err)

	after, err := c.Query(store.Filter{})
	require.NoError(t, err)
	assert.Equal(t, store.Selection(before).IDs(), store.Selection(after).IDs())
}

func TestSelect_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(testCatalog(t)).Select(ctx, store.Filter{}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReplace(t *testing.T) {
	ctx := context.Background()
	s := New(testCatalog(t), seeded(9))
	filter := store.Filter{Year: 2022}

	sel, err := s.Select(ctx, filter, 5)
	require.NoError(t, err)

	replaced, exhausted, err := s.Replace(ctx, filter, sel, 2, nil)
	require.NoError(t, err)
	assert.False(t, exhausted)
	require.Len(t, replaced, 5)

	assert.False(t, sel.Contains(replaced[2].ID), "replacement must be a new question")
	assert.Equal(t, 2022, replaced[2].Year)
	for i := range sel {
		if i != 2 {
			assert.Same(t, sel[i], replaced[i])
		}
	}
	// The input selection is left untouched.
	assert.NotEqual(t, sel[2].ID, replaced[2].ID)
}

func TestReplace_Errors(t *testing.T) {
	ctx := context.Background()
	s := New(testCatalog(t))
	filter := store.Filter{Topic: "Geometry"}

	sel, err := s.Select(ctx, filter, 3)
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter store.Filter
		index  int
	}{
		{"Exhausted", filter, 0},
		{"IndexTooLarge", store.Filter{}, 3},
		{"NegativeIndex", store.Filter{}, -1},
		{"NoMatch", store.Filter{Year: 1999}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := s.Replace(ctx, tt.filter, sel, tt.index, nil)
			require.Error(t, err)
			assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidFilter), err.Error())
		})
	}
}

func TestReplace_AvoidsUsedQuestions(t *testing.T) {
	ctx := context.Background()
	filter := store.Filter{Topic: "Geometry"}
	sel := store.Selection{{ID: "2021_P1_Q3", Year: 2021, Topic: "Geometry"}}
	used := map[string]bool{"2021_P1_Q7": true}

	// Only 2021_P2_Q4 is both unselected and unused; it must win every time.
	for i := 0; i < 50; i++ {
		s := New(testCatalog(t), seeded(uint64(i)))
		replaced, exhausted, err := s.Replace(ctx, filter, sel, 0, func(id string) bool { return used[id] })
		require.NoError(t, err)
		assert.False(t, exhausted)
		assert.Equal(t, "2021_P2_Q4", replaced[0].ID)
	}

	// With every other candidate used, the pick falls back to a used one.
	used["2021_P2_Q4"] = true
	replaced, exhausted, err := New(testCatalog(t), seeded(3)).Replace(ctx, filter, sel, 0, func(id string) bool { return used[id] })
	require.NoError(t, err)
	assert.True(t, exhausted)
	assert.Contains(t, []string{"2021_P1_Q7", "2021_P2_Q4"}, replaced[0].ID)
}

func TestSelectUnused(t *testing.T) {
	ctx := context.Background()
	s := New(testCatalog(t), seeded(5))
	filter := store.Filter{Topic: "Geometry"}
	used := map[string]bool{"2021_P1_Q3": true}
	isUsed := func(id string) bool { return used[id] }

	sel, exhausted, err := s.SelectUnused(ctx, filter, 2, isUsed)
	require.NoError(t, err)
	assert.False(t, exhausted)
	assert.ElementsMatch(t, []string{"2021_P1_Q7", "2021_P2_Q4"}, sel.IDs())

	used["2021_P1_Q7"] = true
	sel, exhausted, err = s.SelectUnused(ctx, filter, 2, isUsed)
	require.NoError(t, err)
	assert.True(t, exhausted)
	assert.Len(t, sel, 2)

	_, _, err = s.SelectUnused(ctx, filter, 4, isUsed)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidFilter))
}
