package predicate

import (
	"math"
	"sort"

	"github.com/fiapx/fiapx-sampling-service/internal/domain/entity"
)

// Resolve returns the ascending, disjoint and maximal ranges of integers in
// [begin, end] that satisfy expr. A nil expr selects the whole domain.
func Resolve(expr Expression, begin, end int) ([]entity.Range, error) {
	if expr == nil {
		if end < begin {
			return nil, nil
		}
		return []entity.Range{{Begin: begin, End: end}}, nil
	}
	if err := Validate(expr); err != nil {
		return nil, err
	}
	if end < begin {
		return nil, nil
	}
	return ranges(expr, begin, end), nil
}

// ranges assumes expr has been validated.
func ranges(expr Expression, lo, hi int) []entity.Range {
	switch n := expr.(type) {
	case Comparison:
		b, _ := n.bound()
		return comparisonRanges(b, lo, hi)
	case Logical:
		left := ranges(n.Left, lo, hi)
		right := ranges(n.Right, lo, hi)
		if n.Op == OpAnd {
			return intersect(left, right)
		}
		return union(left, right)
	}
	return nil
}

func comparisonRanges(b bound, lo, hi int) []entity.Range {
	v := b.value
	var out []entity.Range
	switch b.op {
	case OpEqual:
		out = clip(lo, hi, entity.Range{Begin: v, End: v})
	case OpNotEqual:
		out = clip(lo, hi, entity.Range{Begin: lo, End: dec(v)}, entity.Range{Begin: inc(v), End: hi})
	case OpLess:
		out = clip(lo, hi, entity.Range{Begin: lo, End: dec(v)})
	case OpLessEqual:
		out = clip(lo, hi, entity.Range{Begin: lo, End: v})
	case OpGreater:
		out = clip(lo, hi, entity.Range{Begin: inc(v), End: hi})
	case OpGreaterEqual:
		out = clip(lo, hi, entity.Range{Begin: v, End: hi})
	}
	return out
}

func clip(lo, hi int, rs ...entity.Range) []entity.Range {
	var out []entity.Range
	for _, r := range rs {
		r.Begin = max(r.Begin, lo)
		r.End = min(r.End, hi)
		if r.Begin <= r.End {
			out = append(out, r)
		}
	}
	return out
}

func intersect(a, b []entity.Range) []entity.Range {
	var out []entity.Range
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		begin := max(a[i].Begin, b[j].Begin)
		end := min(a[i].End, b[j].End)
		if begin <= end {
			out = append(out, entity.Range{Begin: begin, End: end})
		}
		if a[i].End < b[j].End {
			i++
		} else {
			j++
		}
	}
	return out
}

func union(a, b []entity.Range) []entity.Range {
	all := make([]entity.Range, 0, len(a)+len(b))
	all = append(all, a...)
	all = append(all, b...)
	return Merge(all)
}

// Merge sorts rs and coalesces overlapping or adjacent ranges.
func Merge(rs []entity.Range) []entity.Range {
	if len(rs) == 0 {
		return nil
	}
	sorted := make([]entity.Range, len(rs))
	copy(sorted, rs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Begin < sorted[j].Begin
	})

	out := []entity.Range{sorted[0]}
	for _, r := range sorted[1:] {
		last := &out[len(out)-1]
		if r.Begin <= inc(last.End) {
			last.End = max(last.End, r.End)
			continue
		}
		out = append(out, r)
	}
	return out
}

// inc and dec saturate so that bounds near the int limits don't wrap.
func inc(v int) int {
	if v == math.MaxInt {
		return v
	}
	return v + 1
}

func dec(v int) int {
	if v == math.MinInt {
		return v
	}
	return v - 1
}
