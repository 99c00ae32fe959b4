package expr

import (
	"fmt"
	"strconv"

	"github.com/quiverdata/quiver/internal/errors"
)

// TokenType represents the type of an expression token.
type TokenType int

const (
	// EOF represents end of input.
	EOF TokenType = iota
	ILLEGAL

	// IDENT represents column names and function names.
	IDENT
	INT    // integers
	FLOAT  // floating point numbers
	STRING // string literals

	TRUE
	FALSE
	NULL

	// EQ represents the equality operator (==).
	EQ
	NE    // !=
	LT    // <
	LE    // <=
	GT    // >
	GE    // >=
	PLUS  // +
	MINUS // -
	MULT  // *
	DIV   // /
	MOD   // %
	AND   // &&
	OR    // ||
	NOT   // !

	COMMA    // ,
	LPAREN   // (
	RPAREN   // )
	QUESTION // ?
	COLON    // :
)

// Token represents a single expression token.
type Token struct {
	Type     TokenType
	Literal  string
	Position int
}

// Lexer tokenizes expression input.
type Lexer struct {
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           byte // current char under examination
}

// NewLexer creates a new lexer instance.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0 // ASCII NUL represents "EOF"
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
}

func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

// NextToken scans the input and returns the next token.
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	pos := l.position
	var tok Token

	switch l.ch {
	case '=':
		if l.peekChar() == '=' {
			l.readChar()
			tok = Token{Type: EQ, Literal: "==", Position: pos}
		} else {
			tok = Token{Type: ILLEGAL, Literal: "=", Position: pos}
		}
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			tok = Token{Type: NE, Literal: "!=", Position: pos}
		} else {
			tok = Token{Type: NOT, Literal: "!", Position: pos}
		}
	case '<':
		if l.peekChar() == '=' {
			l.readChar()
			tok = Token{Type: LE, Literal: "<=", Position: pos}
		} else {
			tok = Token{Type: LT, Literal: "<", Position: pos}
		}
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			tok = Token{Type: GE, Literal: ">=", Position: pos}
		} else {
			tok = Token{Type: GT, Literal: ">", Position: pos}
		}
	case '&':
		if l.peekChar() == '&' {
			l.readChar()
			tok = Token{Type: AND, Literal: "&&", Position: pos}
		} else {
			tok = Token{Type: ILLEGAL, Literal: "&", Position: pos}
		}
	case '|':
		if l.peekChar() == '|' {
			l.readChar()
			tok = Token{Type: OR, Literal: "||", Position: pos}
		} else {
			tok = Token{Type: ILLEGAL, Literal: "|", Position: pos}
		}
	case '+':
		tok = Token{Type: PLUS, Literal: "+", Position: pos}
	case '-':
		tok = Token{Type: MINUS, Literal: "-", Position: pos}
	case '*':
		tok = Token{Type: MULT, Literal: "*", Position: pos}
	case '/':
		tok = Token{Type: DIV, Literal: "/", Position: pos}
	case '%':
		tok = Token{Type: MOD, Literal: "%", Position: pos}
	case ',':
		tok = Token{Type: COMMA, Literal: ",", Position: pos}
	case '(':
		tok = Token{Type: LPAREN, Literal: "(", Position: pos}
	case ')':
		tok = Token{Type: RPAREN, Literal: ")", Position: pos}
	case '?':
		tok = Token{Type: QUESTION, Literal: "?", Position: pos}
	case ':':
		tok = Token{Type: COLON, Literal: ":", Position: pos}
	case '\'', '"':
		return l.tokenizeString()
	case 0:
		tok = Token{Type: EOF, Literal: "", Position: pos}
	default:
		if isLetter(l.ch) {
			return l.tokenizeIdentifier()
		}
		if isDigit(l.ch) {
			return l.tokenizeNumber()
		}
		tok = Token{Type: ILLEGAL, Literal: string(l.ch), Position: pos}
	}

	l.readChar()
	return tok
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

func (l *Lexer) tokenizeIdentifier() Token {
	pos := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	literal := l.input[pos:l.position]
	switch literal {
	case "true":
		return Token{Type: TRUE, Literal: literal, Position: pos}
	case "false":
		return Token{Type: FALSE, Literal: literal, Position: pos}
	case "null":
		return Token{Type: NULL, Literal: literal, Position: pos}
	}
	return Token{Type: IDENT, Literal: literal, Position: pos}
}

func (l *Lexer) tokenizeNumber() Token {
	pos := l.position
	tokType := INT
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		tokType = FLOAT
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return Token{Type: tokType, Literal: l.input[pos:l.position], Position: pos}
}

func (l *Lexer) tokenizeString() Token {
	quote := l.ch
	pos := l.position
	l.readChar()
	start := l.position
	for l.ch != quote && l.ch != 0 {
		l.readChar()
	}
	if l.ch == 0 {
		return Token{Type: ILLEGAL, Literal: l.input[start:], Position: pos}
	}
	literal := l.input[start:l.position]
	l.readChar() // consume closing quote
	return Token{Type: STRING, Literal: literal, Position: pos}
}

func isLetter(ch byte) bool {
	return ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z') || ch == '_'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

// allowedFunctions is the closed set of callable functions. Anything
// outside this set is rejected at parse time.
var allowedFunctions = map[string]int{
	"abs":   1,
	"sqrt":  1,
	"floor": 1,
	"ceil":  1,
	"round": 1,
	"log":   1,
	"min":   2,
	"max":   2,
	"pow":   2,
}

// Parser builds an Expr AST from a token stream using precedence climbing.
type Parser struct {
	lexer   *Lexer
	current Token
	peek    Token
}

// Operator precedence levels, lowest first.
const (
	precLowest  = iota
	precTernary // ?:
	precOr      // ||
	precAnd     // &&
	precCompare // == != < <= > >=
	precSum     // + -
	precProduct // * / %
	precPrefix  // -x !x
)

var precedences = map[TokenType]int{
	QUESTION: precTernary,
	OR:       precOr,
	AND:      precAnd,
	EQ:       precCompare,
	NE:       precCompare,
	LT:       precCompare,
	LE:       precCompare,
	GT:       precCompare,
	GE:       precCompare,
	PLUS:     precSum,
	MINUS:    precSum,
	MULT:     precProduct,
	DIV:      precProduct,
	MOD:      precProduct,
}

var binaryOps = map[TokenType]BinaryOp{
	OR: OpOr, AND: OpAnd,
	EQ: OpEq, NE: OpNe, LT: OpLt, LE: OpLe, GT: OpGt, GE: OpGe,
	PLUS: OpAdd, MINUS: OpSub, MULT: OpMul, DIV: OpDiv, MOD: OpMod,
}

// Parse parses src into an expression AST. Identifiers resolve to column
// references; only the fixed function allow-list is callable, so a parsed
// expression can never execute arbitrary host code.
func Parse(src string) (Expr, error) {
	p := &Parser{lexer: NewLexer(src)}
	p.advance()
	p.advance()

	e, err := p.parseExpr(precLowest)
	if err != nil {
		return nil, err
	}
	if p.current.Type != EOF {
		return nil, errors.NewValidation("ParseExpr",
			fmt.Sprintf("unexpected token %q at position %d", p.current.Literal, p.current.Position))
	}
	return e, nil
}

func (p *Parser) advance() {
	p.current = p.peek
	p.peek = p.lexer.NextToken()
}

func (p *Parser) parseExpr(minPrec int) (Expr, error) {
	left, err := p.parsePrefix()
	if err != nil {
		return nil, err
	}

	for {
		prec, ok := precedences[p.current.Type]
		if !ok || prec <= minPrec {
			return left, nil
		}

		if p.current.Type == QUESTION {
			left, err = p.parseTernary(left)
			if err != nil {
				return nil, err
			}
			continue
		}

		op := binaryOps[p.current.Type]
		p.advance()
		right, err := p.parseExpr(prec)
		if err != nil {
			return nil, err
		}
		left = Binary(left, op, right)
	}
}

func (p *Parser) parseTernary(cond Expr) (Expr, error) {
	p.advance() // consume '?'
	then, err := p.parseExpr(precLowest)
	if err != nil {
		return nil, err
	}
	if p.current.Type != COLON {
		return nil, errors.NewValidation("ParseExpr",
			fmt.Sprintf("expected ':' in conditional at position %d", p.current.Position))
	}
	p.advance() // consume ':'
	els, err := p.parseExpr(precTernary - 1)
	if err != nil {
		return nil, err
	}
	return If(cond, then, els), nil
}

func (p *Parser) parsePrefix() (Expr, error) {
	switch p.current.Type {
	case MINUS:
		p.advance()
		operand, err := p.parseExpr(precPrefix)
		if err != nil {
			return nil, err
		}
		return Neg(operand), nil
	case NOT:
		p.advance()
		operand, err := p.parseExpr(precPrefix)
		if err != nil {
			return nil, err
		}
		return Not(operand), nil
	case INT:
		v, err := strconv.ParseInt(p.current.Literal, 10, 64)
		if err != nil {
			return nil, errors.NewValidation("ParseExpr", "invalid integer literal: "+p.current.Literal)
		}
		p.advance()
		return Lit(v), nil
	case FLOAT:
		v, err := strconv.ParseFloat(p.current.Literal, 64)
		if err != nil {
			return nil, errors.NewValidation("ParseExpr", "invalid float literal: "+p.current.Literal)
		}
		p.advance()
		return Lit(v), nil
	case STRING:
		v := p.current.Literal
		p.advance()
		return Lit(v), nil
	case TRUE:
		p.advance()
		return Lit(true), nil
	case FALSE:
		p.advance()
		return Lit(false), nil
	case NULL:
		p.advance()
		return Lit(nil), nil
	case LPAREN:
		p.advance()
		inner, err := p.parseExpr(precLowest)
		if err != nil {
			return nil, err
		}
		if p.current.Type != RPAREN {
			return nil, errors.NewValidation("ParseExpr",
				fmt.Sprintf("expected ')' at position %d", p.current.Position))
		}
		p.advance()
		return inner, nil
	case IDENT:
		name := p.current.Literal
		if p.peek.Type == LPAREN {
			return p.parseCall(name)
		}
		p.advance()
		return Col(name), nil
	case EOF:
		return nil, errors.NewValidation("ParseExpr", "unexpected end of expression")
	default:
		return nil, errors.NewValidation("ParseExpr",
			fmt.Sprintf("unexpected token %q at position %d", p.current.Literal, p.current.Position))
	}
}

func (p *Parser) parseCall(name string) (Expr, error) {
	arity, ok := allowedFunctions[name]
	if !ok {
		return nil, errors.NewValidation("ParseExpr", fmt.Sprintf("unknown function %q", name))
	}

	p.advance() // consume name
	p.advance() // consume '('

	var args []Expr
	if p.current.Type != RPAREN {
		for {
			arg, err := p.parseExpr(precLowest)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.current.Type != COMMA {
				break
			}
			p.advance()
		}
	}
	if p.current.Type != RPAREN {
		return nil, errors.NewValidation("ParseExpr",
			fmt.Sprintf("expected ')' after arguments to %q", name))
	}
	p.advance()

	if len(args) != arity {
		return nil, errors.NewValidation("ParseExpr",
			fmt.Sprintf("function %q expects %d argument(s), got %d", name, arity, len(args)))
	}
	return Call(name, args...), nil
}
