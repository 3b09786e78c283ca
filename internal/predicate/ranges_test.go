package predicate

import (
	"math/rand"
	"testing"

	"github.com/fiapx/fiapx-sampling-service/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveWithoutPredicate(t *testing.T) {
	got, err := Resolve(nil, 0, 99)
	require.NoError(t, err)
	assert.Equal(t, []entity.Range{{Begin: 0, End: 99}}, got)

	got, err = Resolve(nil, 0, -1)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResolveComparisons(t *testing.T) {
	cases := []struct {
		name string
		expr Expression
		want []entity.Range
	}{
		{"equal", Compare("id", OpEqual, 5), []entity.Range{{Begin: 5, End: 5}}},
		{"equal outside domain", Compare("id", OpEqual, 500), nil},
		{"not equal", Compare("id", OpNotEqual, 5), []entity.Range{{Begin: 0, End: 4}, {Begin: 6, End: 99}}},
		{"not equal at edge", Compare("id", OpNotEqual, 0), []entity.Range{{Begin: 1, End: 99}}},
		{"less", Compare("id", OpLess, 10), []entity.Range{{Begin: 0, End: 9}}},
		{"less equal", Compare("id", OpLessEqual, 10), []entity.Range{{Begin: 0, End: 10}}},
		{"greater", Compare("id", OpGreater, 10), []entity.Range{{Begin: 11, End: 99}}},
		{"greater equal", Compare("id", OpGreaterEqual, 50), []entity.Range{{Begin: 50, End: 99}}},
		{"greater equal below domain", Compare("id", OpGreaterEqual, -20), []entity.Range{{Begin: 0, End: 99}}},
		{"less than zero", Compare("id", OpLess, 0), nil},
		{
			"constant first",
			Comparison{Op: OpLess, Left: Constant{Value: 90}, Right: Column{Name: "id"}},
			[]entity.Range{{Begin: 91, End: 99}},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Resolve(tc.expr, 0, 99)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolveLogical(t *testing.T) {
	between := And(Compare("id", OpGreaterEqual, 2), Compare("id", OpLessEqual, 8))
	got, err := Resolve(between, 0, 99)
	require.NoError(t, err)
	assert.Equal(t, []entity.Range{{Begin: 2, End: 8}}, got)

	twoSpans := Or(Compare("id", OpLess, 10), Compare("id", OpGreater, 90))
	got, err = Resolve(twoSpans, 0, 99)
	require.NoError(t, err)
	assert.Equal(t, []entity.Range{{Begin: 0, End: 9}, {Begin: 91, End: 99}}, got)

	disjointAnd := And(Compare("id", OpLess, 10), Compare("id", OpGreater, 90))
	got, err = Resolve(disjointAnd, 0, 99)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResolveMergesAdjacentRanges(t *testing.T) {
	expr := Or(
		Or(Compare("id", OpLessEqual, 10), Compare("id", OpEqual, 11)),
		And(Compare("id", OpGreaterEqual, 12), Compare("id", OpLess, 20)),
	)
	got, err := Resolve(expr, 0, 99)
	require.NoError(t, err)
	assert.Equal(t, []entity.Range{{Begin: 0, End: 19}}, got)
}

func TestResolveUnsupported(t *testing.T) {
	cases := map[string]Expression{
		"two columns":      And(Compare("id", OpGreater, 1), Compare("seconds", OpLess, 5)),
		"unknown operator": Compare("id", Op("LIKE"), 3),
		"unknown logical":  Logical{Op: Op("XOR"), Left: Compare("id", OpLess, 1), Right: Compare("id", OpGreater, 5)},
		"column to column": Comparison{Op: OpEqual, Left: Column{Name: "id"}, Right: Column{Name: "id"}},
		"bare column":      Column{Name: "id"},
		"missing operand":  And(Compare("id", OpLess, 1), nil),
	}
	for name, expr := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Resolve(expr, 0, 99)
			assert.ErrorIs(t, err, ErrUnsupportedPredicate)
		})
	}
}

func TestMerge(t *testing.T) {
	got := Merge([]entity.Range{{Begin: 20, End: 30}, {Begin: 0, End: 5}, {Begin: 6, End: 8}, {Begin: 25, End: 40}, {Begin: 50, End: 50}})
	assert.Equal(t, []entity.Range{{Begin: 0, End: 8}, {Begin: 20, End: 40}, {Begin: 50, End: 50}}, got)
	assert.Nil(t, Merge(nil))
}

// TestResolveMatchesBruteForce checks random trees: the union of the ranges
// must equal the satisfying subset of the domain, and the ranges must be
// ascending, disjoint and maximal.
func TestResolveMatchesBruteForce(t *testing.T) {
	const domain = 64
	rng := rand.New(rand.NewSource(7))
	ops := []Op{OpEqual, OpNotEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual}

	var gen func(depth int) Expression
	gen = func(depth int) Expression {
		if depth == 0 || rng.Intn(3) == 0 {
			return Compare("id", ops[rng.Intn(len(ops))], rng.Intn(domain+10)-5)
		}
		if rng.Intn(2) == 0 {
			return And(gen(depth-1), gen(depth-1))
		}
		return Or(gen(depth-1), gen(depth-1))
	}

	for i := 0; i < 500; i++ {
		expr := gen(4)
		got, err := Resolve(expr, 0, domain-1)
		require.NoError(t, err, expr.String())

		for k := 1; k < len(got); k++ {
			require.Greater(t, got[k].Begin, got[k-1].End+1, "ranges not maximal for %s: %v", expr, got)
		}

		for v := 0; v < domain; v++ {
			want, err := Match(expr, v)
			require.NoError(t, err)
			in := false
			for _, r := range got {
				if r.Contains(v) {
					in = true
					break
				}
			}
			require.Equal(t, want, in, "value %d for %s: %v", v, expr, got)
		}
	}
}
