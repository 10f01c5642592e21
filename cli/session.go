package cli

import (
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/jimingkang/mini-pg/catalog"
	"github.com/jimingkang/mini-pg/common"
	"github.com/jimingkang/mini-pg/engine"
	"github.com/jimingkang/mini-pg/expr"
	"github.com/jimingkang/mini-pg/storage/tuple"
	"github.com/jimingkang/mini-pg/transaction/txid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const shellHelp = `statements:
  begin | commit | abort
  create <table> <column:type>...
  insert <table> <value>, ...
  select <table> [where <predicate>]
  update <table> set <column> = <expr>, ... [where <predicate>]
  delete <table> [where <predicate>]
  checkpoint | status | help | quit
types: int, float, bool, text, date ('2006-01-02')
without begin, every statement runs in its own transaction
`

// session runs statements on the engine.
// xid is the transaction started with begin, statements outside of it are autocommitted
type session struct {
	e   *engine.Engine
	w   io.Writer
	xid txid.TxID
}

func newSession(e *engine.Engine, w io.Writer) *session {
	return &session{e: e, w: w}
}

// inTx runs fn in the open transaction, or in new transaction which is committed after fn
func (s *session) inTx(fn func(xid txid.TxID) error) error {
	if s.xid.IsValid() {
		return fn(s.xid)
	}
	xid, err := s.e.Begin()
	if err != nil {
		return err
	}
	if err := fn(xid); err != nil {
		if aerr := s.e.Abort(xid); aerr != nil {
			log.WithError(aerr).WithField("xid", xid).Warn("abort failed")
		}
		return err
	}
	return s.e.Commit(xid)
}

func (s *session) begin() error {
	if s.xid.IsValid() {
		return errors.Errorf("transaction %d is in progress", s.xid)
	}
	xid, err := s.e.Begin()
	if err != nil {
		return err
	}
	s.xid = xid
	fmt.Fprintf(s.w, "BEGIN %d\n", xid)
	return nil
}

// finish commits or aborts the open transaction
func (s *session) finish(commit bool) error {
	if !s.xid.IsValid() {
		return errors.WithStack(common.ErrNoActiveTransaction)
	}
	var err error
	if commit {
		err = s.e.Commit(s.xid)
	} else {
		err = s.e.Abort(s.xid)
	}
	// the transaction cannot be used anymore when it is not found or not active
	if err == nil || common.IsKind(err, common.KindNotFound) || common.IsKind(err, common.KindInvalidState) {
		xid := s.xid
		s.xid = txid.InvalidTxID
		if err == nil {
			if commit {
				fmt.Fprintf(s.w, "COMMIT %d\n", xid)
			} else {
				fmt.Fprintf(s.w, "ABORT %d\n", xid)
			}
		}
	}
	return err
}

// parseColumns parses `name:type` definitions
func parseColumns(defs []string) ([]catalog.Column, error) {
	cols := make([]catalog.Column, 0, len(defs))
	for _, def := range defs {
		name, typ, ok := strings.Cut(def, ":")
		if !ok {
			return nil, errors.Errorf("column %q must be name:type", def)
		}
		t, err := tuple.ParseType(typ)
		if err != nil {
			return nil, err
		}
		cols = append(cols, catalog.Column{Name: name, Type: t})
	}
	return cols, nil
}

func (s *session) createTable(table string, defs []string) error {
	cols, err := parseColumns(defs)
	if err != nil {
		return err
	}
	return s.inTx(func(xid txid.TxID) error {
		oid, err := s.e.CreateTable(xid, table, cols)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.w, "table %s created (oid %d)\n", table, oid)
		return nil
	})
}

func (s *session) insert(table, src string) error {
	values, err := expr.ParseValues(src)
	if err != nil {
		return err
	}
	return s.inTx(func(xid txid.TxID) error {
		oid, err := s.e.Insert(xid, table, values)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.w, "1 row inserted (oid %d)\n", oid)
		return nil
	})
}

func (s *session) selectRows(table, where string) error {
	pred, err := expr.Parse(where)
	if err != nil {
		return err
	}
	cols, err := s.e.Table(table)
	if err != nil {
		return err
	}
	return s.inTx(func(xid txid.TxID) error {
		tuples, err := s.e.Select(xid, table, pred)
		if err != nil {
			return err
		}
		printTuples(s.w, cols, tuples)
		return nil
	})
}

func (s *session) update(table, set, where string) error {
	as, err := expr.ParseAssignments(set)
	if err != nil {
		return err
	}
	pred, err := expr.Parse(where)
	if err != nil {
		return err
	}
	return s.inTx(func(xid txid.TxID) error {
		n, err := s.e.Update(xid, table, pred, as)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.w, "%d rows updated\n", n)
		return nil
	})
}

func (s *session) delete(table, where string) error {
	pred, err := expr.Parse(where)
	if err != nil {
		return err
	}
	return s.inTx(func(xid txid.TxID) error {
		n, err := s.e.Delete(xid, table, pred)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.w, "%d rows deleted\n", n)
		return nil
	})
}

func (s *session) checkpoint() error {
	if err := s.e.Checkpoint(); err != nil {
		return err
	}
	fmt.Fprintln(s.w, "CHECKPOINT")
	return nil
}

func (s *session) status() error {
	st, err := s.e.Status()
	if err != nil {
		return err
	}
	printStatus(s.w, st)
	return nil
}

// exec runs one statement of the shell. quit is true when the session should end
func (s *session) exec(line string) (quit bool, err error) {
	line = strings.TrimSuffix(strings.TrimSpace(line), ";")
	if line == "" {
		return false, nil
	}
	word, rest := splitWord(line)
	switch strings.ToLower(word) {
	case "quit", "exit", `\q`:
		return true, nil
	case "help", `\?`:
		fmt.Fprint(s.w, shellHelp)
		return false, nil
	case "begin":
		return false, s.begin()
	case "commit":
		return false, s.finish(true)
	case "abort", "rollback":
		return false, s.finish(false)
	case "checkpoint":
		return false, s.checkpoint()
	case "status":
		return false, s.status()
	case "create":
		table, defs := splitWord(rest)
		if table == "" || defs == "" {
			return false, errors.New("usage: create <table> <column:type>...")
		}
		return false, s.createTable(table, strings.Fields(defs))
	case "insert":
		table, values := splitWord(rest)
		if table == "" || values == "" {
			return false, errors.New("usage: insert <table> <value>, ...")
		}
		return false, s.insert(table, values)
	case "select":
		table, tail := splitWord(rest)
		if table == "" {
			return false, errors.New("usage: select <table> [where <predicate>]")
		}
		where, err := whereClause(tail)
		if err != nil {
			return false, err
		}
		return false, s.selectRows(table, where)
	case "update":
		table, tail := splitWord(rest)
		kw, tail := splitWord(tail)
		if table == "" || !strings.EqualFold(kw, "set") {
			return false, errors.New("usage: update <table> set <column> = <expr>, ... [where <predicate>]")
		}
		set, where, _ := splitKeyword(tail, "where")
		return false, s.update(table, set, where)
	case "delete":
		table, tail := splitWord(rest)
		if table == "" {
			return false, errors.New("usage: delete <table> [where <predicate>]")
		}
		where, err := whereClause(tail)
		if err != nil {
			return false, err
		}
		return false, s.delete(table, where)
	}
	return false, errors.Errorf("unknown statement %q, try help", word)
}

// close aborts the open transaction
func (s *session) close() {
	if !s.xid.IsValid() {
		return
	}
	if err := s.e.Abort(s.xid); err != nil {
		log.WithError(err).WithField("xid", s.xid).Warn("abort on exit failed")
	}
	s.xid = txid.InvalidTxID
}

// splitWord splits the first word
func splitWord(s string) (string, string) {
	s = strings.TrimSpace(s)
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}

// whereClause returns the predicate of `where <predicate>`
func whereClause(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	kw, rest := splitWord(s)
	if !strings.EqualFold(kw, "where") {
		return "", errors.Errorf("expected where but got %q", kw)
	}
	return rest, nil
}

// splitKeyword splits s at the keyword which is a separate word outside of quoted text
func splitKeyword(s, kw string) (string, string, bool) {
	quoted := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\'' {
			quoted = !quoted
			continue
		}
		if quoted || i+len(kw) > len(s) || !strings.EqualFold(s[i:i+len(kw)], kw) {
			continue
		}
		before := i == 0 || s[i-1] == ' ' || s[i-1] == '\t'
		after := i+len(kw) == len(s) || s[i+len(kw)] == ' ' || s[i+len(kw)] == '\t'
		if before && after {
			return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+len(kw):]), true
		}
	}
	return strings.TrimSpace(s), "", false
}
