package expr

import (
	"fmt"
	"strconv"
	"strings"
	"text/scanner"

	"github.com/jimingkang/mini-pg/storage/tuple"
	"github.com/pkg/errors"
)

/*
The grammar is the WHERE/SET subset of SQL:

	expr       = unary { binary-op expr }      (precedence climbing, see Op.Precedence)
	unary      = NOT expr | - unary | primary
	primary    = integer | float | 'text' | "text" | TRUE | FALSE | column | ( expr )
	assignment = column = expr { , column = expr }
	values     = expr { , expr }               (constant expressions)
*/

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenIdent
	tokenInt
	tokenFloat
	tokenString
	tokenOp
	tokenLParen
	tokenRParen
	tokenComma
)

type token struct {
	kind tokenKind
	text string
	op   Op
	pos  scanner.Position
}

func (t token) String() string {
	if t.kind == tokenEOF {
		return "end of input"
	}
	return fmt.Sprintf("%q", t.text)
}

// binaryOp returns the binary operator of the token
func (t token) binaryOp() (Op, bool) {
	if t.kind == tokenOp && t.op != NotOp {
		return t.op, true
	}
	if t.kind == tokenIdent {
		switch strings.ToUpper(t.text) {
		case "AND":
			return AndOp, true
		case "OR":
			return OrOp, true
		}
	}
	return 0, false
}

type parseError struct {
	err error
}

type parser struct {
	scanner scanner.Scanner
	tok     token
	peeked  bool
}

func newParser(src string) *parser {
	p := &parser{}
	p.scanner.Init(strings.NewReader(src))
	p.scanner.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanFloats | scanner.ScanStrings
	p.scanner.Error = func(s *scanner.Scanner, msg string) {
		p.error("%s at %s", msg, s.Position)
	}
	return p
}

func (p *parser) error(format string, args ...interface{}) {
	panic(parseError{err: errors.Errorf("parse: "+format, args...)})
}

// run runs the parse function and converts the panic of parse error into error
func run(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			pe, ok := r.(parseError)
			if !ok {
				panic(r)
			}
			err = pe.err
		}
	}()
	fn()
	return nil
}

func (p *parser) next() token {
	if p.peeked {
		p.peeked = false
		return p.tok
	}
	p.tok = p.scan()
	return p.tok
}

func (p *parser) peek() token {
	if !p.peeked {
		p.tok = p.scan()
		p.peeked = true
	}
	return p.tok
}

func (p *parser) scan() token {
	r := p.scanner.Scan()
	pos := p.scanner.Position
	t := token{pos: pos, text: p.scanner.TokenText()}
	switch r {
	case scanner.EOF:
		t.kind = tokenEOF
	case scanner.Ident:
		t.kind = tokenIdent
	case scanner.Int:
		t.kind = tokenInt
	case scanner.Float:
		t.kind = tokenFloat
	case scanner.String:
		s, err := strconv.Unquote(t.text)
		if err != nil {
			p.error("invalid string %s at %s", t.text, pos)
		}
		t.kind = tokenString
		t.text = s
	case '\'':
		t.kind = tokenString
		t.text = p.scanQuoted()
	case '(':
		t.kind = tokenLParen
	case ')':
		t.kind = tokenRParen
	case ',':
		t.kind = tokenComma
	case '=':
		t.kind, t.op = tokenOp, EqualOp
		if p.scanner.Peek() == '=' {
			p.scanner.Next()
		}
	case '!':
		if p.scanner.Peek() != '=' {
			p.error("unexpected '!' at %s", pos)
		}
		p.scanner.Next()
		t.kind, t.op = tokenOp, NotEqualOp
	case '<':
		t.kind, t.op = tokenOp, LessThanOp
		switch p.scanner.Peek() {
		case '=':
			p.scanner.Next()
			t.op = LessEqualOp
		case '>':
			p.scanner.Next()
			t.op = NotEqualOp
		}
	case '>':
		t.kind, t.op = tokenOp, GreaterThanOp
		if p.scanner.Peek() == '=' {
			p.scanner.Next()
			t.op = GreaterEqualOp
		}
	case '+':
		t.kind, t.op = tokenOp, AddOp
	case '-':
		t.kind, t.op = tokenOp, SubtractOp
	case '*':
		t.kind, t.op = tokenOp, MultiplyOp
	case '/':
		t.kind, t.op = tokenOp, DivideOp
	default:
		p.error("unexpected %q at %s", t.text, pos)
	}
	if t.kind == tokenOp {
		t.text = t.op.String()
	}
	return t
}

// scanQuoted reads single quoted text. two quotes in a row are one quote in the text
func (p *parser) scanQuoted() string {
	var sb strings.Builder
	for {
		r := p.scanner.Next()
		switch r {
		case scanner.EOF:
			p.error("unterminated text literal")
		case '\'':
			if p.scanner.Peek() != '\'' {
				return sb.String()
			}
			p.scanner.Next()
		}
		sb.WriteRune(r)
	}
}

func (p *parser) expect(kind tokenKind, what string) token {
	t := p.next()
	if t.kind != kind {
		p.error("expected %s but got %s at %s", what, t, t.pos)
	}
	return t
}

func (p *parser) expectEOF() {
	if t := p.next(); t.kind != tokenEOF {
		p.error("unexpected %s at %s", t, t.pos)
	}
}

func (p *parser) parseExpr(minPrec int) Expr {
	left := p.parseUnary()
	for {
		op, ok := p.peek().binaryOp()
		if !ok || op.Precedence() < minPrec {
			return left
		}
		p.next()
		right := p.parseExpr(op.Precedence() + 1)
		left = &Binary{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseUnary() Expr {
	t := p.peek()
	if t.kind == tokenIdent && strings.EqualFold(t.text, "NOT") {
		p.next()
		return &Unary{Op: NotOp, Expr: p.parseExpr(NotOp.Precedence())}
	}
	if t.kind == tokenOp && t.op == SubtractOp {
		p.next()
		e := p.parseUnary()
		// fold negative number literal
		if l, ok := e.(*Literal); ok {
			switch l.Value.Type() {
			case tuple.TypeInt4:
				return Lit(tuple.Int4(-l.Value.Int()))
			case tuple.TypeFloat:
				return Lit(tuple.Float(-l.Value.Float()))
			}
		}
		return &Unary{Op: NegateOp, Expr: e}
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() Expr {
	t := p.next()
	switch t.kind {
	case tokenInt:
		n, err := strconv.ParseInt(t.text, 10, 32)
		if err != nil {
			p.error("integer %s is out of range at %s", t.text, t.pos)
		}
		return Lit(tuple.Int4(int32(n)))
	case tokenFloat:
		f, err := strconv.ParseFloat(t.text, 32)
		if err != nil {
			p.error("invalid float %s at %s", t.text, t.pos)
		}
		return Lit(tuple.Float(float32(f)))
	case tokenString:
		return Lit(tuple.Text(t.text))
	case tokenIdent:
		switch strings.ToUpper(t.text) {
		case "TRUE":
			return Lit(tuple.Bool(true))
		case "FALSE":
			return Lit(tuple.Bool(false))
		case "AND", "OR", "NOT":
			p.error("unexpected %s at %s", t, t.pos)
		}
		return Column(t.text)
	case tokenLParen:
		e := p.parseExpr(0)
		p.expect(tokenRParen, "closing parenthesis")
		return e
	}
	p.error("expected a value or column but got %s at %s", t, t.pos)
	return nil
}

// Parse parses the predicate. empty input returns nil expression which matches every row
func Parse(src string) (Expr, error) {
	if strings.TrimSpace(src) == "" {
		return nil, nil
	}
	var e Expr
	p := newParser(src)
	err := run(func() {
		e = p.parseExpr(0)
		p.expectEOF()
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ParseAssignments parses `column = expr, ...`
func ParseAssignments(src string) ([]Assignment, error) {
	var as []Assignment
	p := newParser(src)
	err := run(func() {
		for {
			col := p.expect(tokenIdent, "column name")
			eq := p.next()
			if eq.kind != tokenOp || eq.op != EqualOp {
				p.error("expected = but got %s at %s", eq, eq.pos)
			}
			as = append(as, Set(col.text, p.parseExpr(0)))
			if p.peek().kind != tokenComma {
				break
			}
			p.next()
		}
		p.expectEOF()
	})
	if err != nil {
		return nil, err
	}
	return as, nil
}

// ParseValues parses comma separated constant expressions into values
func ParseValues(src string) ([]tuple.Value, error) {
	var exprs []Expr
	p := newParser(src)
	err := run(func() {
		for {
			exprs = append(exprs, p.parseExpr(0))
			if p.peek().kind != tokenComma {
				break
			}
			p.next()
		}
		p.expectEOF()
	})
	if err != nil {
		return nil, err
	}
	values := make([]tuple.Value, len(exprs))
	for i, e := range exprs {
		v, err := e.eval(nil)
		if err != nil {
			return nil, errors.Wrapf(err, "value %d is not constant", i+1)
		}
		values[i] = v
	}
	return values, nil
}
