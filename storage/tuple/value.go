package tuple

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jimingkang/mini-pg/common"
	"github.com/pkg/errors"
)

// Type is column data type. this is stored as one-byte type tag in tuple
type Type uint8

const (
	TypeInt4 Type = iota
	TypeFloat
	TypeBool
	TypeText
	TypeDate
)

// DateLayout is the text format of date value
const DateLayout = "2006-01-02"

func (t Type) String() string {
	switch t {
	case TypeInt4:
		return "int"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	case TypeText:
		return "text"
	case TypeDate:
		return "date"
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// IsValid checks whether the type tag is known
func (t Type) IsValid() bool {
	return t <= TypeDate
}

// ParseType parses type name
func ParseType(s string) (Type, error) {
	switch strings.ToLower(s) {
	case "int", "int4", "integer":
		return TypeInt4, nil
	case "float", "float4", "real":
		return TypeFloat, nil
	case "bool", "boolean":
		return TypeBool, nil
	case "text", "varchar", "string":
		return TypeText, nil
	case "date":
		return TypeDate, nil
	}
	return 0, errors.Wrapf(common.ErrTypeMismatch, "unknown type %q", s)
}

// Value is typed column value
// int4 and date share the 4 byte integer (date is unix seconds)
type Value struct {
	typ Type
	i   int32
	f   float32
	b   bool
	s   string
}

// Int4 returns int4 value
func Int4(v int32) Value { return Value{typ: TypeInt4, i: v} }

// Float returns float value
func Float(v float32) Value { return Value{typ: TypeFloat, f: v} }

// Bool returns bool value
func Bool(v bool) Value { return Value{typ: TypeBool, b: v} }

// Text returns text value
func Text(v string) Value { return Value{typ: TypeText, s: v} }

// Date returns date value of the unix seconds
func Date(sec int32) Value { return Value{typ: TypeDate, i: sec} }

// DateOf returns date value of the time
func DateOf(t time.Time) Value { return Date(int32(t.Unix())) }

// Type returns the type of the value
func (v Value) Type() Type { return v.typ }

// Int returns int4 or date value
func (v Value) Int() int32 { return v.i }

// Float returns float value
func (v Value) Float() float32 { return v.f }

// Bool returns bool value
func (v Value) Bool() bool { return v.b }

// Text returns text value
func (v Value) Text() string { return v.s }

// Time returns date value as time
func (v Value) Time() time.Time { return time.Unix(int64(v.i), 0).UTC() }

func (v Value) String() string {
	switch v.typ {
	case TypeInt4:
		return strconv.FormatInt(int64(v.i), 10)
	case TypeFloat:
		return strconv.FormatFloat(float64(v.f), 'g', -1, 32)
	case TypeBool:
		return strconv.FormatBool(v.b)
	case TypeText:
		return v.s
	case TypeDate:
		return v.Time().Format(DateLayout)
	}
	return "?"
}

// ParseValue parses text into the value of the type
func ParseValue(t Type, s string) (Value, error) {
	switch t {
	case TypeInt4:
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return Value{}, errors.Wrapf(common.ErrTypeMismatch, "%q is not int: %v", s, err)
		}
		return Int4(int32(n)), nil
	case TypeFloat:
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return Value{}, errors.Wrapf(common.ErrTypeMismatch, "%q is not float: %v", s, err)
		}
		return Float(float32(f)), nil
	case TypeBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return Value{}, errors.Wrapf(common.ErrTypeMismatch, "%q is not bool: %v", s, err)
		}
		return Bool(b), nil
	case TypeText:
		return Text(s), nil
	case TypeDate:
		d, err := time.Parse(DateLayout, s)
		if err != nil {
			return Value{}, errors.Wrapf(common.ErrTypeMismatch, "%q is not date: %v", s, err)
		}
		return DateOf(d), nil
	}
	return Value{}, errors.Wrapf(common.ErrTypeMismatch, "unknown type %d", t)
}

// Coerce converts the value to the type
// int4 -> float and text -> any type are allowed
func (v Value) Coerce(t Type) (Value, error) {
	if v.typ == t {
		return v, nil
	}
	switch {
	case v.typ == TypeInt4 && t == TypeFloat:
		return Float(float32(v.i)), nil
	case v.typ == TypeText:
		return ParseValue(t, v.s)
	}
	return Value{}, errors.Wrapf(common.ErrTypeMismatch, "%s value %s cannot be used as %s", v.typ, v, t)
}

// Compare compares two values. int4 and float are compared as numbers
// returns -1, 0 or 1
func (v Value) Compare(o Value) (int, error) {
	if v.typ != o.typ {
		if isNumeric(v.typ) && isNumeric(o.typ) {
			return compareFloat(v.number(), o.number()), nil
		}
		return 0, errors.Wrapf(common.ErrTypeMismatch, "cannot compare %s with %s", v.typ, o.typ)
	}
	switch v.typ {
	case TypeInt4, TypeDate:
		return compareInt(v.i, o.i), nil
	case TypeFloat:
		return compareFloat(float64(v.f), float64(o.f)), nil
	case TypeBool:
		return compareInt(boolInt(v.b), boolInt(o.b)), nil
	case TypeText:
		return strings.Compare(v.s, o.s), nil
	}
	return 0, errors.Wrapf(common.ErrTypeMismatch, "unknown type %d", v.typ)
}

func isNumeric(t Type) bool {
	return t == TypeInt4 || t == TypeFloat
}

func (v Value) number() float64 {
	if v.typ == TypeFloat {
		return float64(v.f)
	}
	return float64(v.i)
}

func compareInt(a, b int32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	case math.IsNaN(a) || math.IsNaN(b):
		return -1
	}
	return 0
}

func boolInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
