package predicate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// node is the wire form of an expression. Comparisons may be written either
// as {"op":">=","column":"id","value":10} or with explicit operands
// {"op":"<","left":{"value":5},"right":{"column":"id"}}.
type node struct {
	Op     string `json:"op,omitempty"`
	Column string `json:"column,omitempty"`
	Value  *int   `json:"value,omitempty"`
	Left   *node  `json:"left,omitempty"`
	Right  *node  `json:"right,omitempty"`
}

// Parse decodes a JSON predicate. Empty input and JSON null yield a nil
// Expression, meaning "no predicate".
func Parse(data []byte) (Expression, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var n node
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&n); err != nil {
		return nil, fmt.Errorf("decode predicate: %w", err)
	}

	expr, err := n.expression()
	if err != nil {
		return nil, err
	}
	if err := Validate(expr); err != nil {
		return nil, err
	}
	return expr, nil
}

func (n *node) expression() (Expression, error) {
	if n == nil {
		return nil, fmt.Errorf("%w: missing operand", ErrUnsupportedPredicate)
	}

	op := normalizeOp(n.Op)
	switch {
	case op == "":
		return n.operand()
	case op.isLogical():
		left, err := n.Left.expression()
		if err != nil {
			return nil, err
		}
		right, err := n.Right.expression()
		if err != nil {
			return nil, err
		}
		return Logical{Op: op, Left: left, Right: right}, nil
	case op.isComparison():
		if n.Left == nil && n.Right == nil {
			if n.Column == "" || n.Value == nil {
				return nil, fmt.Errorf("%w: comparison %q needs column and value", ErrUnsupportedPredicate, n.Op)
			}
			return Compare(n.Column, op, *n.Value), nil
		}
		left, err := n.Left.expression()
		if err != nil {
			return nil, err
		}
		right, err := n.Right.expression()
		if err != nil {
			return nil, err
		}
		return Comparison{Op: op, Left: left, Right: right}, nil
	}
	return nil, fmt.Errorf("%w: operator %q", ErrUnsupportedPredicate, n.Op)
}

func (n *node) operand() (Expression, error) {
	switch {
	case n.Column != "" && n.Value == nil:
		return Column{Name: n.Column}, nil
	case n.Value != nil && n.Column == "":
		return Constant{Value: *n.Value}, nil
	}
	return nil, fmt.Errorf("%w: operand must be a column or a value", ErrUnsupportedPredicate)
}

func normalizeOp(s string) Op {
	op := Op(strings.ToUpper(strings.TrimSpace(s)))
	switch op {
	case "==":
		return OpEqual
	case "<>":
		return OpNotEqual
	}
	return op
}
