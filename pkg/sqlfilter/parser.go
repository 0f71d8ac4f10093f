package sqlfilter

import (
	"fmt"

	"github.com/leapstack-labs/metriq/pkg/sqlplan"
)

// Parse parses a boolean filter expression ("ds = '2020-01-01' AND
// is_instant") into the sqlplan expression AST.
func Parse(input string) (sqlplan.Expr, error) {
	p := newParser(input)
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.cur.typ != tokenEOF {
		return nil, p.errorf("unexpected %q", p.cur.lit)
	}
	return expr, nil
}

// ParseValueExpr parses a value expression (measure or dimension expr such
// as "1", "booking_value", "price * quantity").
func ParseValueExpr(input string) (sqlplan.Expr, error) {
	p := newParser(input)
	expr, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if p.cur.typ != tokenEOF {
		return nil, p.errorf("unexpected %q", p.cur.lit)
	}
	return expr, nil
}

type parser struct {
	input string
	lex   *lexer
	cur   tok
	peek  tok
}

func newParser(input string) *parser {
	p := &parser{input: input, lex: newLexer(input)}
	p.cur = p.lex.next()
	p.peek = p.lex.next()
	return p
}

func (p *parser) advance() {
	p.cur = p.peek
	p.peek = p.lex.next()
}

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{Input: p.input, Pos: p.cur.pos, Msg: fmt.Sprintf(format, args...)}
}

// parseOr handles OR chains (lowest precedence).
func (p *parser) parseOr() (sqlplan.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	if p.cur.typ != tokenOr {
		return left, nil
	}
	operands := []sqlplan.Expr{left}
	for p.cur.typ == tokenOr {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		operands = append(operands, right)
	}
	return &sqlplan.Logical{Op: sqlplan.LogicalOr, Operands: operands}, nil
}

func (p *parser) parseAnd() (sqlplan.Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	if p.cur.typ != tokenAnd {
		return left, nil
	}
	operands := []sqlplan.Expr{left}
	for p.cur.typ == tokenAnd {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		operands = append(operands, right)
	}
	return &sqlplan.Logical{Op: sqlplan.LogicalAnd, Operands: operands}, nil
}

func (p *parser) parseNot() (sqlplan.Expr, error) {
	if p.cur.typ == tokenNot {
		p.advance()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &sqlplan.Not{Operand: operand}, nil
	}
	return p.parsePredicate()
}

// parsePredicate parses a comparison, IN list, BETWEEN, IS NULL, or a
// bare boolean expression.
func (p *parser) parsePredicate() (sqlplan.Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	switch p.cur.typ {
	case tokenEq, tokenNe, tokenLt, tokenLe, tokenGt, tokenGe:
		op := compareOpFor(p.cur.typ)
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &sqlplan.Comparison{Left: left, Op: op, Right: right}, nil

	case tokenIn:
		p.advance()
		return p.parseInList(left, false)

	case tokenNot:
		// NOT IN
		if p.peek.typ != tokenIn {
			return nil, p.errorf("expected IN after NOT")
		}
		p.advance()
		p.advance()
		return p.parseInList(left, true)

	case tokenIs:
		p.advance()
		negated := false
		if p.cur.typ == tokenNot {
			negated = true
			p.advance()
		}
		if p.cur.typ != tokenNull {
			return nil, p.errorf("expected NULL after IS")
		}
		p.advance()
		return &sqlplan.IsNull{Target: left, Negated: negated}, nil

	case tokenBetween:
		p.advance()
		low, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		if p.cur.typ != tokenAnd {
			return nil, p.errorf("expected AND in BETWEEN")
		}
		p.advance()
		high, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &sqlplan.BetweenRange{Target: left, Low: low, High: high}, nil
	}

	return left, nil
}

func (p *parser) parseInList(target sqlplan.Expr, negated bool) (sqlplan.Expr, error) {
	if p.cur.typ != tokenLParen {
		return nil, p.errorf("expected ( after IN")
	}
	p.advance()
	var values []sqlplan.Expr
	for {
		v, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		if p.cur.typ == tokenComma {
			p.advance()
			continue
		}
		break
	}
	if p.cur.typ != tokenRParen {
		return nil, p.errorf("expected ) to close IN list")
	}
	p.advance()
	return &sqlplan.InList{Target: target, Values: values, Negated: negated}, nil
}

func (p *parser) parseAdditive() (sqlplan.Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.cur.typ == tokenPlus || p.cur.typ == tokenMinus {
		op := sqlplan.ArithAdd
		if p.cur.typ == tokenMinus {
			op = sqlplan.ArithSub
		}
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &sqlplan.Arithmetic{Left: left, Op: op, Right: right}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (sqlplan.Expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.cur.typ == tokenStar || p.cur.typ == tokenSlash {
		op := sqlplan.ArithMul
		if p.cur.typ == tokenSlash {
			op = sqlplan.ArithDiv
		}
		p.advance()
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		left = &sqlplan.Arithmetic{Left: left, Op: op, Right: right}
	}
	return left, nil
}

func (p *parser) parsePrimary() (sqlplan.Expr, error) {
	switch p.cur.typ {
	case tokenNumber:
		lit := &sqlplan.Literal{Type: sqlplan.LiteralNumber, Value: p.cur.lit}
		p.advance()
		return lit, nil
	case tokenString:
		lit := &sqlplan.Literal{Type: sqlplan.LiteralString, Value: p.cur.lit}
		p.advance()
		return lit, nil
	case tokenTrue:
		p.advance()
		return &sqlplan.Literal{Type: sqlplan.LiteralBool, Value: "true"}, nil
	case tokenFalse:
		p.advance()
		return &sqlplan.Literal{Type: sqlplan.LiteralBool, Value: "false"}, nil
	case tokenNull:
		p.advance()
		return sqlplan.Null(), nil
	case tokenMinus:
		p.advance()
		inner, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return &sqlplan.Arithmetic{
			Left:  &sqlplan.Literal{Type: sqlplan.LiteralNumber, Value: "0"},
			Op:    sqlplan.ArithSub,
			Right: inner,
		}, nil
	case tokenLParen:
		p.advance()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.cur.typ != tokenRParen {
			return nil, p.errorf("expected )")
		}
		p.advance()
		return inner, nil
	case tokenIdent:
		name := p.cur.lit
		p.advance()
		if p.cur.typ == tokenDot {
			p.advance()
			if p.cur.typ != tokenIdent {
				return nil, p.errorf("expected identifier after .")
			}
			col := p.cur.lit
			p.advance()
			return &sqlplan.ColumnRef{Table: name, Column: col}, nil
		}
		return &sqlplan.ColumnRef{Column: name}, nil
	}
	return nil, p.errorf("unexpected %q", p.cur.lit)
}

func compareOpFor(t tokenType) sqlplan.CompareOp {
	switch t {
	case tokenNe:
		return sqlplan.CompareNe
	case tokenLt:
		return sqlplan.CompareLt
	case tokenLe:
		return sqlplan.CompareLe
	case tokenGt:
		return sqlplan.CompareGt
	case tokenGe:
		return sqlplan.CompareGe
	default:
		return sqlplan.CompareEq
	}
}
