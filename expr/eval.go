package expr

import (
	"github.com/jimingkang/mini-pg/common"
	"github.com/jimingkang/mini-pg/storage/tuple"
	"github.com/pkg/errors"
)

// Schema resolves column names
type Schema interface {
	ColumnIndex(name string) (int, error)
}

// Bind resolves the column references. nil expression stays nil (matches every row)
func Bind(s Schema, e Expr) (Expr, error) {
	if e == nil {
		return nil, nil
	}
	return e.bind(s)
}

// Eval evaluates the bound expression on the row
func Eval(e Expr, row []tuple.Value) (tuple.Value, error) {
	return e.eval(row)
}

// Matches evaluates the bound predicate on the row. nil predicate matches every row
func Matches(e Expr, row []tuple.Value) (bool, error) {
	if e == nil {
		return true, nil
	}
	v, err := e.eval(row)
	if err != nil {
		return false, err
	}
	if v.Type() != tuple.TypeBool {
		return false, errors.Wrapf(common.ErrTypeMismatch, "predicate %s is %s, not bool", e, v.Type())
	}
	return v.Bool(), nil
}

// BindAssignments resolves the columns of the assignments
func BindAssignments(s Schema, as []Assignment) ([]Assignment, error) {
	if len(as) == 0 {
		return nil, errors.New("no assignment")
	}
	bound := make([]Assignment, len(as))
	seen := make(map[int]struct{}, len(as))
	for i, a := range as {
		idx, err := s.ColumnIndex(a.Column)
		if err != nil {
			return nil, errors.Wrapf(err, "column %s", a.Column)
		}
		if _, ok := seen[idx]; ok {
			return nil, errors.Wrapf(common.ErrDuplicateName, "column %s is assigned twice", a.Column)
		}
		seen[idx] = struct{}{}
		v, err := a.Value.bind(s)
		if err != nil {
			return nil, err
		}
		bound[i] = Assignment{Column: a.Column, Value: v, index: idx}
	}
	return bound, nil
}

// Apply returns the copy of the row with the bound assignments applied.
// every assignment is evaluated on the original row
func Apply(as []Assignment, row []tuple.Value) ([]tuple.Value, error) {
	out := make([]tuple.Value, len(row))
	copy(out, row)
	for _, a := range as {
		if a.index < 0 || a.index >= len(row) {
			return nil, errors.Errorf("assignment %s is not bound", a)
		}
		v, err := a.Value.eval(row)
		if err != nil {
			return nil, err
		}
		out[a.index] = v
	}
	return out, nil
}

func (l *Literal) bind(s Schema) (Expr, error) {
	return l, nil
}

func (l *Literal) eval(row []tuple.Value) (tuple.Value, error) {
	return l.Value, nil
}

func (c *ColumnRef) bind(s Schema) (Expr, error) {
	idx, err := s.ColumnIndex(c.Name)
	if err != nil {
		return nil, errors.Wrapf(err, "column %s", c.Name)
	}
	return &ColumnRef{Name: c.Name, index: idx}, nil
}

func (c *ColumnRef) eval(row []tuple.Value) (tuple.Value, error) {
	if c.index < 0 || c.index >= len(row) {
		return tuple.Value{}, errors.Wrapf(common.ErrColumnNotFound, "column %s is not bound", c.Name)
	}
	return row[c.index], nil
}

func (u *Unary) bind(s Schema) (Expr, error) {
	e, err := u.Expr.bind(s)
	if err != nil {
		return nil, err
	}
	return &Unary{Op: u.Op, Expr: e}, nil
}

func (u *Unary) eval(row []tuple.Value) (tuple.Value, error) {
	v, err := u.Expr.eval(row)
	if err != nil {
		return tuple.Value{}, err
	}
	switch u.Op {
	case NotOp:
		if v.Type() != tuple.TypeBool {
			return tuple.Value{}, errors.Wrapf(common.ErrTypeMismatch, "NOT %s", v.Type())
		}
		return tuple.Bool(!v.Bool()), nil
	case NegateOp:
		switch v.Type() {
		case tuple.TypeInt4:
			return tuple.Int4(-v.Int()), nil
		case tuple.TypeFloat:
			return tuple.Float(-v.Float()), nil
		}
		return tuple.Value{}, errors.Wrapf(common.ErrTypeMismatch, "-%s", v.Type())
	}
	return tuple.Value{}, errors.Errorf("unexpected unary operator %s", u.Op)
}

func (b *Binary) bind(s Schema) (Expr, error) {
	l, err := b.Left.bind(s)
	if err != nil {
		return nil, err
	}
	r, err := b.Right.bind(s)
	if err != nil {
		return nil, err
	}
	return &Binary{Op: b.Op, Left: l, Right: r}, nil
}

func (b *Binary) eval(row []tuple.Value) (tuple.Value, error) {
	l, err := b.Left.eval(row)
	if err != nil {
		return tuple.Value{}, err
	}

	switch b.Op {
	case AndOp, OrOp:
		if l.Type() != tuple.TypeBool {
			return tuple.Value{}, errors.Wrapf(common.ErrTypeMismatch, "%s %s", l.Type(), b.Op)
		}
		if b.Op == AndOp && !l.Bool() {
			return tuple.Bool(false), nil
		}
		if b.Op == OrOp && l.Bool() {
			return tuple.Bool(true), nil
		}
		r, err := b.Right.eval(row)
		if err != nil {
			return tuple.Value{}, err
		}
		if r.Type() != tuple.TypeBool {
			return tuple.Value{}, errors.Wrapf(common.ErrTypeMismatch, "%s %s", b.Op, r.Type())
		}
		return r, nil
	}

	r, err := b.Right.eval(row)
	if err != nil {
		return tuple.Value{}, err
	}
	if b.Op.isComparison() {
		return compare(b.Op, l, r)
	}
	return arithmetic(b.Op, l, r)
}

// compare compares the values. text literal is converted to the type of the other side
func compare(op Op, l, r tuple.Value) (tuple.Value, error) {
	var err error
	if l.Type() != r.Type() {
		if r.Type() == tuple.TypeText {
			r, err = r.Coerce(l.Type())
		} else if l.Type() == tuple.TypeText {
			l, err = l.Coerce(r.Type())
		}
		if err != nil {
			return tuple.Value{}, err
		}
	}
	c, err := l.Compare(r)
	if err != nil {
		return tuple.Value{}, err
	}
	var ok bool
	switch op {
	case EqualOp:
		ok = c == 0
	case NotEqualOp:
		ok = c != 0
	case LessThanOp:
		ok = c < 0
	case LessEqualOp:
		ok = c <= 0
	case GreaterThanOp:
		ok = c > 0
	case GreaterEqualOp:
		ok = c >= 0
	}
	return tuple.Bool(ok), nil
}

func arithmetic(op Op, l, r tuple.Value) (tuple.Value, error) {
	if l.Type() == tuple.TypeInt4 && r.Type() == tuple.TypeInt4 {
		a, b := l.Int(), r.Int()
		switch op {
		case AddOp:
			return tuple.Int4(a + b), nil
		case SubtractOp:
			return tuple.Int4(a - b), nil
		case MultiplyOp:
			return tuple.Int4(a * b), nil
		case DivideOp:
			if b == 0 {
				return tuple.Value{}, errors.New("division by zero")
			}
			return tuple.Int4(a / b), nil
		}
		return tuple.Value{}, errors.Errorf("unexpected binary operator %s", op)
	}

	lf, err := l.Coerce(tuple.TypeFloat)
	if err != nil || l.Type() == tuple.TypeText {
		return tuple.Value{}, errors.Wrapf(common.ErrTypeMismatch, "%s %s %s", l.Type(), op, r.Type())
	}
	rf, err := r.Coerce(tuple.TypeFloat)
	if err != nil || r.Type() == tuple.TypeText {
		return tuple.Value{}, errors.Wrapf(common.ErrTypeMismatch, "%s %s %s", l.Type(), op, r.Type())
	}
	a, b := lf.Float(), rf.Float()
	switch op {
	case AddOp:
		return tuple.Float(a + b), nil
	case SubtractOp:
		return tuple.Float(a - b), nil
	case MultiplyOp:
		return tuple.Float(a * b), nil
	case DivideOp:
		if b == 0 {
			return tuple.Value{}, errors.New("division by zero")
		}
		return tuple.Float(a / b), nil
	}
	return tuple.Value{}, errors.Errorf("unexpected binary operator %s", op)
}
