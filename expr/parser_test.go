package expr

import (
	"testing"

	"github.com/jimingkang/mini-pg/storage/tuple"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		expected string
	}{
		{
			name:     "comparison",
			src:      "age > 20",
			expected: "(age > 20)",
		},
		{
			name:     "and binds tighter than or",
			src:      "a = 1 OR b = 2 and c <> 'x'",
			expected: "((a = 1) OR ((b = 2) AND (c != 'x')))",
		},
		{
			name:     "arithmetic precedence",
			src:      "a + b * 2 >= 10",
			expected: "((a + (b * 2)) >= 10)",
		},
		{
			name:     "left associative",
			src:      "a - 1 - 2 = 0",
			expected: "(((a - 1) - 2) = 0)",
		},
		{
			name:     "not",
			src:      "NOT active AND id != -3",
			expected: "((NOT active) AND (id != -3))",
		},
		{
			name:     "parenthesis",
			src:      "(a = 1 OR b = 2) AND c == TRUE",
			expected: "(((a = 1) OR (b = 2)) AND (c = true))",
		},
		{
			name:     "quoted text",
			src:      `name = 'O''Brien' OR name = "Tom"`,
			expected: "((name = 'O''Brien') OR (name = 'Tom'))",
		},
		{
			name:     "float",
			src:      "score <= 1.5",
			expected: "(score <= 1.5)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := Parse(tt.src)
			require.Nil(t, err)
			assert.Equal(t, tt.expected, e.String())
		})
	}
}

func TestParseEmpty(t *testing.T) {
	e, err := Parse("  ")
	assert.Nil(t, err)
	assert.Nil(t, e)
}

func TestParseError(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{name: "missing operand", src: "a ="},
		{name: "unclosed parenthesis", src: "(a = 1"},
		{name: "unterminated text", src: "a = 'x"},
		{name: "trailing token", src: "a = 1 2"},
		{name: "unknown character", src: "a = 1 ; b"},
		{name: "integer out of range", src: "a = 99999999999"},
		{name: "keyword as value", src: "a = AND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			assert.Error(t, err)
		})
	}
}

func TestParseAssignments(t *testing.T) {
	as, err := ParseAssignments("age = age + 1, name = 'Bob'")
	require.Nil(t, err)
	require.Len(t, as, 2)
	assert.Equal(t, "age = (age + 1)", as[0].String())
	assert.Equal(t, "name = 'Bob'", as[1].String())

	_, err = ParseAssignments("age + 1")
	assert.Error(t, err)
	_, err = ParseAssignments("")
	assert.Error(t, err)
}

func TestParseValues(t *testing.T) {
	values, err := ParseValues("1, 'Tom', -2.5, true, 3 * 4")
	require.Nil(t, err)
	assert.Equal(t, []tuple.Value{
		tuple.Int4(1),
		tuple.Text("Tom"),
		tuple.Float(-2.5),
		tuple.Bool(true),
		tuple.Int4(12),
	}, values)

	_, err = ParseValues("1, name")
	assert.Error(t, err)
}
