// Package predicate models filter expressions over a single integer column
// and translates them into inclusive frame-index ranges.
package predicate

import (
	"errors"
	"fmt"
)

// ErrUnsupportedPredicate is returned for predicates that cannot be reduced
// to ranges: more than one column, an unknown operator or node shape.
var ErrUnsupportedPredicate = errors.New("unsupported predicate kind")

type Op string

const (
	OpEqual        Op = "="
	OpNotEqual     Op = "!="
	OpLess         Op = "<"
	OpLessEqual    Op = "<="
	OpGreater      Op = ">"
	OpGreaterEqual Op = ">="

	OpAnd Op = "AND"
	OpOr  Op = "OR"
)

func (op Op) isComparison() bool {
	switch op {
	case OpEqual, OpNotEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		return true
	}
	return false
}

func (op Op) isLogical() bool {
	return op == OpAnd || op == OpOr
}

// flip mirrors a comparison so that "c op col" can be read as "col op' c".
func (op Op) flip() Op {
	switch op {
	case OpLess:
		return OpGreater
	case OpLessEqual:
		return OpGreaterEqual
	case OpGreater:
		return OpLess
	case OpGreaterEqual:
		return OpLessEqual
	}
	return op
}

type Expression interface {
	String() string
}

type Column struct {
	Name string
}

func (c Column) String() string { return c.Name }

type Constant struct {
	Value int
}

func (c Constant) String() string { return fmt.Sprintf("%d", c.Value) }

type Comparison struct {
	Op    Op
	Left  Expression
	Right Expression
}

func (c Comparison) String() string {
	return fmt.Sprintf("%s %s %s", c.Left, c.Op, c.Right)
}

type Logical struct {
	Op    Op
	Left  Expression
	Right Expression
}

func (l Logical) String() string {
	return fmt.Sprintf("(%s %s %s)", l.Left, l.Op, l.Right)
}

// Compare builds "column op value".
func Compare(column string, op Op, value int) Comparison {
	return Comparison{Op: op, Left: Column{Name: column}, Right: Constant{Value: value}}
}

func And(left, right Expression) Logical {
	return Logical{Op: OpAnd, Left: left, Right: right}
}

func Or(left, right Expression) Logical {
	return Logical{Op: OpOr, Left: left, Right: right}
}

// bound is a comparison normalised to "column op value".
type bound struct {
	column string
	op     Op
	value  int
}

func (c Comparison) bound() (bound, error) {
	if !c.Op.isComparison() {
		return bound{}, fmt.Errorf("%w: comparison operator %q", ErrUnsupportedPredicate, c.Op)
	}
	switch l := c.Left.(type) {
	case Column:
		if r, ok := c.Right.(Constant); ok {
			return bound{column: l.Name, op: c.Op, value: r.Value}, nil
		}
	case Constant:
		if r, ok := c.Right.(Column); ok {
			return bound{column: r.Name, op: c.Op.flip(), value: l.Value}, nil
		}
	}
	return bound{}, fmt.Errorf("%w: %s must compare a column with a constant", ErrUnsupportedPredicate, c)
}

// Validate checks that expr is a tree of comparisons against constants joined
// by AND/OR and that every comparison references the same column.
func Validate(expr Expression) error {
	_, err := column(expr)
	return err
}

func column(expr Expression) (string, error) {
	var name string
	var walk func(Expression) error
	walk = func(e Expression) error {
		switch n := e.(type) {
		case Comparison:
			b, err := n.bound()
			if err != nil {
				return err
			}
			if name != "" && b.column != name {
				return fmt.Errorf("%w: columns %q and %q", ErrUnsupportedPredicate, name, b.column)
			}
			name = b.column
			return nil
		case Logical:
			if !n.Op.isLogical() {
				return fmt.Errorf("%w: logical operator %q", ErrUnsupportedPredicate, n.Op)
			}
			if err := walk(n.Left); err != nil {
				return err
			}
			return walk(n.Right)
		case nil:
			return fmt.Errorf("%w: empty operand", ErrUnsupportedPredicate)
		default:
			return fmt.Errorf("%w: %T", ErrUnsupportedPredicate, e)
		}
	}
	if err := walk(expr); err != nil {
		return "", err
	}
	return name, nil
}

// Match evaluates expr for a single column value.
func Match(expr Expression, value int) (bool, error) {
	switch n := expr.(type) {
	case Comparison:
		b, err := n.bound()
		if err != nil {
			return false, err
		}
		switch b.op {
		case OpEqual:
			return value == b.value, nil
		case OpNotEqual:
			return value != b.value, nil
		case OpLess:
			return value < b.value, nil
		case OpLessEqual:
			return value <= b.value, nil
		case OpGreater:
			return value > b.value, nil
		default:
			return value >= b.value, nil
		}
	case Logical:
		left, err := Match(n.Left, value)
		if err != nil {
			return false, err
		}
		right, err := Match(n.Right, value)
		if err != nil {
			return false, err
		}
		switch n.Op {
		case OpAnd:
			return left && right, nil
		case OpOr:
			return left || right, nil
		}
		return false, fmt.Errorf("%w: logical operator %q", ErrUnsupportedPredicate, n.Op)
	}
	return false, fmt.Errorf("%w: %T", ErrUnsupportedPredicate, expr)
}
