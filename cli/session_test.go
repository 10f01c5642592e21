package cli

import (
	"bytes"
	"io"
	"testing"

	"github.com/jimingkang/mini-pg/common"
	"github.com/jimingkang/mini-pg/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptReader returns the lines one by one, then io.EOF
type scriptReader struct {
	lines []string
}

func (sr *scriptReader) Prompt(prompt string) (string, error) {
	if len(sr.lines) == 0 {
		return "", io.EOF
	}
	line := sr.lines[0]
	sr.lines = sr.lines[1:]
	return line, nil
}

func newTestingSession(t *testing.T) (*session, *bytes.Buffer) {
	e, _ := engine.TestingNewEngine(t)
	var buf bytes.Buffer
	return newSession(e, &buf), &buf
}

func TestSplitKeyword(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		before string
		after  string
		found  bool
	}{
		{
			name:   "keyword",
			src:    "age = 1 where name = 'Tom'",
			before: "age = 1",
			after:  "name = 'Tom'",
			found:  true,
		},
		{
			name:   "keyword in quoted text",
			src:    "name = 'a where b'",
			before: "name = 'a where b'",
		},
		{
			name:   "part of identifier",
			src:    "somewhere = 1",
			before: "somewhere = 1",
		},
		{
			name:   "upper case",
			src:    "age = 1 WHERE id = 2",
			before: "age = 1",
			after:  "id = 2",
			found:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, after, found := splitKeyword(tt.src, "where")
			assert.Equal(t, tt.before, before)
			assert.Equal(t, tt.after, after)
			assert.Equal(t, tt.found, found)
		})
	}
}

func TestParseColumns(t *testing.T) {
	cols, err := parseColumns([]string{"id:int", "name:text", "born:date"})
	require.Nil(t, err)
	require.Len(t, cols, 3)
	assert.Equal(t, "born", cols[2].Name)

	_, err = parseColumns([]string{"id"})
	assert.NotNil(t, err)
	_, err = parseColumns([]string{"id:decimal"})
	assert.ErrorIs(t, err, common.ErrTypeMismatch)
}

func TestREPL(t *testing.T) {
	s, buf := newTestingSession(t)
	err := repl(s, &scriptReader{lines: []string{
		"create users id:int name:text age:int",
		"insert users 1, 'Tom', 20",
		"insert users 2, 'Bob', 30;",
		"begin",
		"update users set age = age + 1 where name = 'Tom'",
		"delete users where id = 2",
		"commit",
		"select users where age > 0",
		"frobnicate",
	}})
	require.Nil(t, err)

	out := buf.String()
	assert.Contains(t, out, "table users created (oid 1000)")
	assert.Contains(t, out, "1 row inserted (oid 2)")
	assert.Contains(t, out, "1 rows updated")
	assert.Contains(t, out, "1 rows deleted")
	assert.Contains(t, out, "COMMIT")
	assert.Contains(t, out, "21")
	assert.NotContains(t, out, "Bob |")
	assert.Contains(t, out, "(1 rows)")
	assert.Contains(t, out, `error: unknown statement "frobnicate"`)
}

func TestREPLAbortsOpenTransaction(t *testing.T) {
	s, buf := newTestingSession(t)
	err := repl(s, &scriptReader{lines: []string{
		"create users id:int name:text age:int",
		"begin",
		"insert users 1, 'Tom', 20",
	}})
	require.Nil(t, err)
	assert.False(t, s.xid.IsValid())

	buf.Reset()
	quit, err := s.exec("select users")
	require.Nil(t, err)
	assert.False(t, quit)
	assert.Contains(t, buf.String(), "(0 rows)")
}

func TestExecErrors(t *testing.T) {
	s, _ := newTestingSession(t)
	tests := []struct {
		name string
		line string
	}{
		{name: "commit without begin", line: "commit"},
		{name: "update without set", line: "update users age = 1"},
		{name: "select unknown table", line: "select items"},
		{name: "insert without values", line: "insert users"},
		{name: "broken predicate", line: "delete users where id ="},
		{name: "select without where", line: "select users id = 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.exec(tt.line)
			assert.NotNil(t, err)
		})
	}

	quit, err := s.exec("quit")
	assert.Nil(t, err)
	assert.True(t, quit)
}
