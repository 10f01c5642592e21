package tuple

import (
	"testing"

	"github.com/jimingkang/mini-pg/common"
	"github.com/stretchr/testify/assert"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		name     string
		typ      Type
		in       string
		expected Value
		wantErr  bool
	}{
		{name: "int", typ: TypeInt4, in: "20", expected: Int4(20)},
		{name: "negative int", typ: TypeInt4, in: "-3", expected: Int4(-3)},
		{name: "int overflow", typ: TypeInt4, in: "4294967296", wantErr: true},
		{name: "float", typ: TypeFloat, in: "2.5", expected: Float(2.5)},
		{name: "bool", typ: TypeBool, in: "true", expected: Bool(true)},
		{name: "text", typ: TypeText, in: "Tom", expected: Text("Tom")},
		{name: "date", typ: TypeDate, in: "1970-01-02", expected: Date(86400)},
		{name: "invalid date", typ: TypeDate, in: "yesterday", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseValue(tt.typ, tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, common.ErrTypeMismatch)
				return
			}
			assert.Nil(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name     string
		a        Value
		b        Value
		expected int
		wantErr  bool
	}{
		{name: "int less", a: Int4(1), b: Int4(2), expected: -1},
		{name: "int equal", a: Int4(2), b: Int4(2), expected: 0},
		{name: "int and float", a: Int4(3), b: Float(2.5), expected: 1},
		{name: "text", a: Text("Amy"), b: Text("Tom"), expected: -1},
		{name: "bool", a: Bool(true), b: Bool(false), expected: 1},
		{name: "date", a: Date(10), b: Date(10), expected: 0},
		{name: "text and int", a: Text("1"), b: Int4(1), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.a.Compare(tt.b)
			if tt.wantErr {
				assert.ErrorIs(t, err, common.ErrTypeMismatch)
				return
			}
			assert.Nil(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestCoerce(t *testing.T) {
	v, err := Int4(2).Coerce(TypeFloat)
	assert.Nil(t, err)
	assert.Equal(t, Float(2), v)

	v, err = Text("21").Coerce(TypeInt4)
	assert.Nil(t, err)
	assert.Equal(t, Int4(21), v)

	_, err = Bool(true).Coerce(TypeInt4)
	assert.ErrorIs(t, err, common.ErrTypeMismatch)
}

func TestParseType(t *testing.T) {
	typ, err := ParseType("INT")
	assert.Nil(t, err)
	assert.Equal(t, TypeInt4, typ)
	typ, err = ParseType("text")
	assert.Nil(t, err)
	assert.Equal(t, TypeText, typ)
	_, err = ParseType("blob")
	assert.ErrorIs(t, err, common.ErrTypeMismatch)
}
