// Package sqlfilter parses user-supplied filter and element expressions
// into the sqlplan expression AST. The grammar covers what where filters
// and measure/dimension exprs need: comparisons, AND/OR/NOT, IN lists,
// BETWEEN, IS NULL, arithmetic, literals and (qualified) identifiers.
package sqlfilter

import (
	"fmt"
	"strings"
)

// tokenType identifies a lexical token.
type tokenType int

const (
	tokenEOF tokenType = iota
	tokenIllegal
	tokenIdent
	tokenNumber
	tokenString

	tokenEq     // =
	tokenNe     // != or <>
	tokenLt     // <
	tokenLe     // <=
	tokenGt     // >
	tokenGe     // >=
	tokenPlus   // +
	tokenMinus  // -
	tokenStar   // *
	tokenSlash  // /
	tokenDot    // .
	tokenComma  // ,
	tokenLParen // (
	tokenRParen // )

	tokenAnd
	tokenOr
	tokenNot
	tokenIn
	tokenIs
	tokenNull
	tokenTrue
	tokenFalse
	tokenBetween
)

var keywords = map[string]tokenType{
	"AND":     tokenAnd,
	"OR":      tokenOr,
	"NOT":     tokenNot,
	"IN":      tokenIn,
	"IS":      tokenIs,
	"NULL":    tokenNull,
	"TRUE":    tokenTrue,
	"FALSE":   tokenFalse,
	"BETWEEN": tokenBetween,
}

// tok is a single lexical token.
type tok struct {
	typ tokenType
	lit string
	pos int
}

// lexer tokenizes filter input.
type lexer struct {
	input   string
	pos     int
	readPos int
	ch      byte
}

func newLexer(input string) *lexer {
	l := &lexer{input: input}
	l.readChar()
	return l
}

func (l *lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

func (l *lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

func (l *lexer) next() tok {
	l.skipWhitespace()

	pos := l.pos
	switch l.ch {
	case 0:
		return tok{typ: tokenEOF, pos: pos}
	case '=':
		l.readChar()
		return tok{typ: tokenEq, lit: "=", pos: pos}
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return tok{typ: tokenNe, lit: "!=", pos: pos}
		}
		l.readChar()
		return tok{typ: tokenIllegal, lit: "!", pos: pos}
	case '<':
		switch l.peekChar() {
		case '=':
			l.readChar()
			l.readChar()
			return tok{typ: tokenLe, lit: "<=", pos: pos}
		case '>':
			l.readChar()
			l.readChar()
			return tok{typ: tokenNe, lit: "<>", pos: pos}
		}
		l.readChar()
		return tok{typ: tokenLt, lit: "<", pos: pos}
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return tok{typ: tokenGe, lit: ">=", pos: pos}
		}
		l.readChar()
		return tok{typ: tokenGt, lit: ">", pos: pos}
	case '+':
		l.readChar()
		return tok{typ: tokenPlus, lit: "+", pos: pos}
	case '-':
		l.readChar()
		return tok{typ: tokenMinus, lit: "-", pos: pos}
	case '*':
		l.readChar()
		return tok{typ: tokenStar, lit: "*", pos: pos}
	case '/':
		l.readChar()
		return tok{typ: tokenSlash, lit: "/", pos: pos}
	case '.':
		l.readChar()
		return tok{typ: tokenDot, lit: ".", pos: pos}
	case ',':
		l.readChar()
		return tok{typ: tokenComma, lit: ",", pos: pos}
	case '(':
		l.readChar()
		return tok{typ: tokenLParen, lit: "(", pos: pos}
	case ')':
		l.readChar()
		return tok{typ: tokenRParen, lit: ")", pos: pos}
	case '\'':
		return l.readString(pos)
	}

	if isDigit(l.ch) {
		return l.readNumber(pos)
	}
	if isIdentStart(l.ch) {
		return l.readIdent(pos)
	}

	ch := l.ch
	l.readChar()
	return tok{typ: tokenIllegal, lit: string(ch), pos: pos}
}

// readString reads a single-quoted string literal. Doubled quotes escape.
func (l *lexer) readString(pos int) tok {
	var sb strings.Builder
	l.readChar() // consume opening quote
	for {
		if l.ch == 0 {
			return tok{typ: tokenIllegal, lit: "unterminated string", pos: pos}
		}
		if l.ch == '\'' {
			if l.peekChar() == '\'' {
				sb.WriteByte('\'')
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar() // consume closing quote
			break
		}
		sb.WriteByte(l.ch)
		l.readChar()
	}
	return tok{typ: tokenString, lit: sb.String(), pos: pos}
}

func (l *lexer) readNumber(pos int) tok {
	start := l.pos
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return tok{typ: tokenNumber, lit: l.input[start:l.pos], pos: pos}
}

func (l *lexer) readIdent(pos int) tok {
	start := l.pos
	for isIdentPart(l.ch) {
		l.readChar()
	}
	lit := l.input[start:l.pos]
	if kw, ok := keywords[strings.ToUpper(lit)]; ok {
		return tok{typ: kw, lit: lit, pos: pos}
	}
	return tok{typ: tokenIdent, lit: lit, pos: pos}
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch byte) bool { return isIdentStart(ch) || isDigit(ch) }

// ParseError describes a filter parse failure with its input position.
type ParseError struct {
	Input string
	Pos   int
	Msg   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse filter %q at offset %d: %s", e.Input, e.Pos, e.Msg)
}
