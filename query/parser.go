package query

import (
	"fmt"

	msierrors "github.com/FocuswithJustin/msigo/errors"
)

// Parser is a recursive-descent parser for the query dialect.
type Parser struct {
	lex   *Lexer
	input string
	tok   Token
	peek  Token
}

// NewParser creates a Parser over input.
func NewParser(input string) (*Parser, error) {
	p := &Parser{lex: NewLexer(input), input: input}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Parser) advance() error {
	p.tok = p.peek
	tok, err := p.lex.NextToken()
	if err != nil {
		return err
	}
	p.peek = tok
	return nil
}

func (p *Parser) errorf(format string, args ...interface{}) error {
	return msierrors.NewQuery(p.input, p.tok.Pos, fmt.Sprintf(format, args...))
}

func (p *Parser) expect(tt TokenType, what string) (Token, error) {
	if p.tok.Type != tt {
		return Token{}, p.errorf("expected %s, got %q", what, p.tok.Lexeme)
	}
	tok := p.tok
	if err := p.advance(); err != nil {
		return Token{}, err
	}
	return tok, nil
}

// ParseStatement parses a single statement followed by an optional
// trailing `;` and EOF.
func ParseStatement(input string) (Statement, error) {
	p, err := NewParser(input)
	if err != nil {
		return nil, err
	}
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	if p.tok.Type == TK_SEMI {
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if p.tok.Type != TK_EOF {
		return nil, p.errorf("unexpected trailing input %q", p.tok.Lexeme)
	}
	return stmt, nil
}

func (p *Parser) parseStatement() (Statement, error) {
	switch p.tok.Type {
	case TK_SELECT:
		return p.parseSelect()
	case TK_INSERT:
		return p.parseInsert()
	case TK_UPDATE:
		return p.parseUpdate()
	case TK_DELETE:
		return p.parseDelete()
	default:
		return nil, p.errorf("expected SELECT, INSERT, UPDATE, or DELETE, got %q", p.tok.Lexeme)
	}
}

func (p *Parser) parseSelect() (*Select, error) {
	if _, err := p.expect(TK_SELECT, "SELECT"); err != nil {
		return nil, err
	}
	items, err := p.parseSelectList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TK_FROM, "FROM"); err != nil {
		return nil, err
	}
	table, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	sel := &Select{Columns: items, Table: table}
	for p.tok.Type == TK_INNER || p.tok.Type == TK_LEFT || p.tok.Type == TK_JOIN {
		join, err := p.parseJoin()
		if err != nil {
			return nil, err
		}
		sel.Joins = append(sel.Joins, join)
	}
	if p.tok.Type == TK_WHERE {
		if err := p.advance(); err != nil {
			return nil, err
		}
		where, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		sel.Where = where
	}
	return sel, nil
}

func (p *Parser) parseSelectList() ([]SelectItem, error) {
	var items []SelectItem
	for {
		if p.tok.Type == TK_STAR {
			if err := p.advance(); err != nil {
				return nil, err
			}
			items = append(items, SelectItem{Star: true})
		} else {
			expr, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			items = append(items, SelectItem{Expr: expr})
		}
		if p.tok.Type != TK_COMMA {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func (p *Parser) parseJoin() (Join, error) {
	kind := InnerJoin
	switch p.tok.Type {
	case TK_LEFT:
		kind = LeftJoin
		if err := p.advance(); err != nil {
			return Join{}, err
		}
	case TK_INNER:
		if err := p.advance(); err != nil {
			return Join{}, err
		}
	}
	if _, err := p.expect(TK_JOIN, "JOIN"); err != nil {
		return Join{}, err
	}
	table, err := p.parseIdent()
	if err != nil {
		return Join{}, err
	}
	if _, err := p.expect(TK_ON, "ON"); err != nil {
		return Join{}, err
	}
	on, err := p.parseExpr()
	if err != nil {
		return Join{}, err
	}
	return Join{Kind: kind, Table: table, On: on}, nil
}

func (p *Parser) parseInsert() (*Insert, error) {
	if _, err := p.expect(TK_INSERT, "INSERT"); err != nil {
		return nil, err
	}
	if _, err := p.expect(TK_INTO, "INTO"); err != nil {
		return nil, err
	}
	table, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	ins := &Insert{Table: table}
	if p.tok.Type == TK_LP {
		if err := p.advance(); err != nil {
			return nil, err
		}
		for {
			col, err := p.parseIdent()
			if err != nil {
				return nil, err
			}
			ins.Columns = append(ins.Columns, col)
			if p.tok.Type != TK_COMMA {
				break
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		if _, err := p.expect(TK_RP, ")"); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(TK_VALUES, "VALUES"); err != nil {
		return nil, err
	}
	if _, err := p.expect(TK_LP, "("); err != nil {
		return nil, err
	}
	for {
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		ins.Values = append(ins.Values, v)
		if p.tok.Type != TK_COMMA {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(TK_RP, ")"); err != nil {
		return nil, err
	}
	return ins, nil
}

func (p *Parser) parseUpdate() (*Update, error) {
	if _, err := p.expect(TK_UPDATE, "UPDATE"); err != nil {
		return nil, err
	}
	table, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TK_SET, "SET"); err != nil {
		return nil, err
	}
	upd := &Update{Table: table}
	for {
		col, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TK_EQ, "="); err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		upd.Assignments = append(upd.Assignments, Assignment{Column: col, Value: val})
		if p.tok.Type != TK_COMMA {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if p.tok.Type == TK_WHERE {
		if err := p.advance(); err != nil {
			return nil, err
		}
		where, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		upd.Where = where
	}
	return upd, nil
}

func (p *Parser) parseDelete() (*Delete, error) {
	if _, err := p.expect(TK_DELETE, "DELETE"); err != nil {
		return nil, err
	}
	if _, err := p.expect(TK_FROM, "FROM"); err != nil {
		return nil, err
	}
	table, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	del := &Delete{Table: table}
	if p.tok.Type == TK_WHERE {
		if err := p.advance(); err != nil {
			return nil, err
		}
		where, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		del.Where = where
	}
	return del, nil
}

func (p *Parser) parseIdent() (string, error) {
	tok, err := p.expect(TK_ID, "identifier")
	if err != nil {
		return "", err
	}
	return tok.Lexeme, nil
}

// parseExpr parses a full expression: OR, AND, NOT, comparison (in
// increasing precedence), then bitwise OR/AND, shift, add/sub,
// mul/div, unary, primary.
func (p *Parser) parseExpr() (Expr, error) { return p.parseOr() }

func (p *Parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.tok.Type == TK_OR {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: TK_OR, L: left, R: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.tok.Type == TK_AND {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: TK_AND, L: left, R: right}
	}
	return left, nil
}

func (p *Parser) parseNot() (Expr, error) {
	if p.tok.Type == TK_NOT {
		if err := p.advance(); err != nil {
			return nil, err
		}
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: TK_NOT, X: x}, nil
	}
	return p.parseComparison()
}

func isComparisonOp(tt TokenType) bool {
	switch tt {
	case TK_EQ, TK_NE, TK_LT, TK_LE, TK_GT, TK_GE:
		return true
	default:
		return false
	}
}

// parseComparison enforces non-associativity: `x = 1 = 2` is a parse
// error, not a left-to-right chain.
func (p *Parser) parseComparison() (Expr, error) {
	left, err := p.parseBitOr()
	if err != nil {
		return nil, err
	}
	if isComparisonOp(p.tok.Type) {
		op := p.tok.Type
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseBitOr()
		if err != nil {
			return nil, err
		}
		if isComparisonOp(p.tok.Type) {
			return nil, p.errorf("comparison operators do not associate")
		}
		left = &Binary{Op: op, L: left, R: right}
	}
	if p.tok.Type == TK_IS {
		if err := p.advance(); err != nil {
			return nil, err
		}
		not := false
		if p.tok.Type == TK_NOT {
			not = true
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		if _, err := p.expect(TK_NULL, "NULL"); err != nil {
			return nil, err
		}
		left = &IsNull{X: left, Not: not}
	}
	return left, nil
}

func (p *Parser) parseBitOr() (Expr, error) {
	left, err := p.parseBitAnd()
	if err != nil {
		return nil, err
	}
	for p.tok.Type == TK_PIPE {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseBitAnd()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: TK_PIPE, L: left, R: right}
	}
	return left, nil
}

func (p *Parser) parseBitAnd() (Expr, error) {
	left, err := p.parseShift()
	if err != nil {
		return nil, err
	}
	for p.tok.Type == TK_AMP {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseShift()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: TK_AMP, L: left, R: right}
	}
	return left, nil
}

func (p *Parser) parseShift() (Expr, error) {
	left, err := p.parseAddSub()
	if err != nil {
		return nil, err
	}
	for p.tok.Type == TK_SHL || p.tok.Type == TK_SHR {
		op := p.tok.Type
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAddSub()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, L: left, R: right}
	}
	return left, nil
}

func (p *Parser) parseAddSub() (Expr, error) {
	left, err := p.parseMulDiv()
	if err != nil {
		return nil, err
	}
	for p.tok.Type == TK_PLUS || p.tok.Type == TK_MINUS {
		op := p.tok.Type
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseMulDiv()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, L: left, R: right}
	}
	return left, nil
}

func (p *Parser) parseMulDiv() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.tok.Type == TK_STAR || p.tok.Type == TK_SLASH || p.tok.Type == TK_PERCENT {
		op := p.tok.Type
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, L: left, R: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (Expr, error) {
	if p.tok.Type == TK_MINUS || p.tok.Type == TK_TILDE {
		op := p.tok.Type
		if err := p.advance(); err != nil {
			return nil, err
		}
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: op, X: x}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (Expr, error) {
	switch p.tok.Type {
	case TK_NULL:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return NullLit{}, nil
	case TK_TRUE:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return IntLit{Value: 1}, nil
	case TK_FALSE:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return IntLit{Value: 0}, nil
	case TK_INTEGER:
		tok := p.tok
		if err := p.advance(); err != nil {
			return nil, err
		}
		n, err := parseInt32(tok.Lexeme)
		if err != nil {
			return nil, p.errorf("%v", err)
		}
		return IntLit{Value: n}, nil
	case TK_STRING:
		tok := p.tok
		if err := p.advance(); err != nil {
			return nil, err
		}
		return StrLit{Value: tok.Lexeme}, nil
	case TK_ID:
		name, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		if p.tok.Type == TK_DOT {
			if err := p.advance(); err != nil {
				return nil, err
			}
			col, err := p.parseIdent()
			if err != nil {
				return nil, err
			}
			return ColumnRef{Table: name, Column: col}, nil
		}
		return ColumnRef{Column: name}, nil
	case TK_LP:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TK_RP, ")"); err != nil {
			return nil, err
		}
		return inner, nil
	default:
		return nil, p.errorf("unexpected token %q", p.tok.Lexeme)
	}
}

func parseInt32(s string) (int32, error) {
	var n int64
	for _, ch := range s {
		n = n*10 + int64(ch-'0')
		if n > 1<<32 {
			return 0, fmt.Errorf("integer literal %q out of range", s)
		}
	}
	if n > 1<<31-1 {
		return 0, fmt.Errorf("integer literal %q out of range", s)
	}
	return int32(n), nil
}
