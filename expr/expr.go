/*
Package expr is typed expression tree used for WHERE predicate and SET assignment.

Expressions refer to columns by name. Bind resolves the names to column indexes of the table
once, then the bound expression is evaluated for every row without looking up names again.
*/
package expr

import (
	"fmt"
	"strings"

	"github.com/jimingkang/mini-pg/storage/tuple"
)

// Op is operator
type Op int

const (
	AddOp Op = iota
	AndOp
	DivideOp
	EqualOp
	GreaterEqualOp
	GreaterThanOp
	LessEqualOp
	LessThanOp
	MultiplyOp
	NegateOp
	NotEqualOp
	NotOp
	OrOp
	SubtractOp
)

var ops = [...]struct {
	name       string
	precedence int
}{
	AddOp:          {"+", 7},
	AndOp:          {"AND", 2},
	DivideOp:       {"/", 8},
	EqualOp:        {"=", 4},
	GreaterEqualOp: {">=", 5},
	GreaterThanOp:  {">", 5},
	LessEqualOp:    {"<=", 5},
	LessThanOp:     {"<", 5},
	MultiplyOp:     {"*", 8},
	NegateOp:       {"-", 9},
	NotEqualOp:     {"!=", 4},
	NotOp:          {"NOT", 3},
	OrOp:           {"OR", 1},
	SubtractOp:     {"-", 7},
}

// Precedence returns the binding power of the operator. larger binds tighter
func (op Op) Precedence() int {
	return ops[op].precedence
}

func (op Op) String() string {
	return ops[op].name
}

// isComparison checks whether the operator compares two values
func (op Op) isComparison() bool {
	switch op {
	case EqualOp, NotEqualOp, LessThanOp, LessEqualOp, GreaterThanOp, GreaterEqualOp:
		return true
	}
	return false
}

// Expr is expression
type Expr interface {
	fmt.Stringer
	bind(s Schema) (Expr, error)
	eval(row []tuple.Value) (tuple.Value, error)
}

// Literal is constant value
type Literal struct {
	Value tuple.Value
}

func (l *Literal) String() string {
	switch l.Value.Type() {
	case tuple.TypeText, tuple.TypeDate:
		return "'" + strings.ReplaceAll(l.Value.String(), "'", "''") + "'"
	}
	return l.Value.String()
}

// ColumnRef is reference to the column
type ColumnRef struct {
	Name string
	// index is the column index resolved by Bind. -1 means unbound
	index int
}

// Column returns unbound column reference
func Column(name string) *ColumnRef {
	return &ColumnRef{Name: name, index: -1}
}

func (c *ColumnRef) String() string {
	return c.Name
}

// Index returns the column index. -1 when the reference is not bound
func (c *ColumnRef) Index() int {
	return c.index
}

// Unary is unary operation (NOT, -)
type Unary struct {
	Op   Op
	Expr Expr
}

func (u *Unary) String() string {
	if u.Op == NotOp {
		return fmt.Sprintf("(NOT %s)", u.Expr)
	}
	return fmt.Sprintf("(%s%s)", u.Op, u.Expr)
}

// Binary is binary operation
type Binary struct {
	Op    Op
	Left  Expr
	Right Expr
}

func (b *Binary) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left, b.Op, b.Right)
}

// Assignment is `column = expr` of update
type Assignment struct {
	Column string
	Value  Expr
	index  int
}

func (a Assignment) String() string {
	return fmt.Sprintf("%s = %s", a.Column, a.Value)
}

// Lit returns literal of the value
func Lit(v tuple.Value) *Literal {
	return &Literal{Value: v}
}

// Compare returns comparison `column op value`, which is the most common predicate
func Compare(column string, op Op, v tuple.Value) Expr {
	return &Binary{Op: op, Left: Column(column), Right: Lit(v)}
}

// And joins the predicates with AND
func And(exprs ...Expr) Expr {
	var e Expr
	for _, x := range exprs {
		if e == nil {
			e = x
			continue
		}
		e = &Binary{Op: AndOp, Left: e, Right: x}
	}
	return e
}

// Set returns assignment `column = v`
func Set(column string, v Expr) Assignment {
	return Assignment{Column: column, Value: v, index: -1}
}
