// Package expr provides a restricted expression grammar for derived
// columns and filter predicates. Expressions are plain ASTs evaluated by a
// tree-walking interpreter; there is no path from an expression string to
// host code execution.
package expr

import (
	"fmt"
	"strings"
)

// ExprType represents the type of expression
type ExprType int

const (
	ExprColumn ExprType = iota
	ExprLiteral
	ExprBinary
	ExprUnary
	ExprTernary
	ExprCall
)

// Expr represents an expression node
type Expr interface {
	Type() ExprType
	String() string
}

// ColumnExpr represents a column reference
type ColumnExpr struct {
	name string
}

func (c *ColumnExpr) Type() ExprType { return ExprColumn }

func (c *ColumnExpr) String() string { return fmt.Sprintf("col(%s)", c.name) }

func (c *ColumnExpr) Name() string { return c.name }

// LiteralExpr represents a literal value (float64, int64, string, bool or nil)
type LiteralExpr struct {
	value any
}

func (l *LiteralExpr) Type() ExprType { return ExprLiteral }

func (l *LiteralExpr) String() string { return fmt.Sprintf("lit(%v)", l.value) }

func (l *LiteralExpr) Value() any { return l.value }

// BinaryOp represents binary operations
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
)

var binaryOpNames = map[BinaryOp]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpMod: "%",
	OpEq: "==", OpNe: "!=", OpLt: "<", OpLe: "<=", OpGt: ">", OpGe: ">=",
	OpAnd: "&&", OpOr: "||",
}

// BinaryExpr represents a binary operation
type BinaryExpr struct {
	left  Expr
	op    BinaryOp
	right Expr
}

func (b *BinaryExpr) Type() ExprType { return ExprBinary }

func (b *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", b.left.String(), binaryOpNames[b.op], b.right.String())
}

func (b *BinaryExpr) Left() Expr   { return b.left }
func (b *BinaryExpr) Op() BinaryOp { return b.op }
func (b *BinaryExpr) Right() Expr  { return b.right }

// UnaryOp represents unary operations
type UnaryOp int

const (
	UnaryNeg UnaryOp = iota
	UnaryNot
)

// UnaryExpr represents a unary operation
type UnaryExpr struct {
	op      UnaryOp
	operand Expr
}

func (u *UnaryExpr) Type() ExprType { return ExprUnary }

func (u *UnaryExpr) String() string {
	if u.op == UnaryNeg {
		return fmt.Sprintf("(-%s)", u.operand.String())
	}
	return fmt.Sprintf("(!%s)", u.operand.String())
}

func (u *UnaryExpr) Op() UnaryOp   { return u.op }
func (u *UnaryExpr) Operand() Expr { return u.operand }

// TernaryExpr represents a conditional expression cond ? then : else
type TernaryExpr struct {
	cond Expr
	then Expr
	els  Expr
}

func (t *TernaryExpr) Type() ExprType { return ExprTernary }

func (t *TernaryExpr) String() string {
	return fmt.Sprintf("(%s ? %s : %s)", t.cond.String(), t.then.String(), t.els.String())
}

func (t *TernaryExpr) Cond() Expr { return t.cond }
func (t *TernaryExpr) Then() Expr { return t.then }
func (t *TernaryExpr) Else() Expr { return t.els }

// CallExpr represents a call to an allow-listed function
type CallExpr struct {
	name string
	args []Expr
}

func (c *CallExpr) Type() ExprType { return ExprCall }

func (c *CallExpr) String() string {
	parts := make([]string, len(c.args))
	for i, a := range c.args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", c.name, strings.Join(parts, ", "))
}

func (c *CallExpr) Name() string { return c.name }
func (c *CallExpr) Args() []Expr { return c.args }

// Constructor functions

// Col creates a column expression
func Col(name string) *ColumnExpr {
	return &ColumnExpr{name: name}
}

// Lit creates a literal expression
func Lit(value any) *LiteralExpr {
	return &LiteralExpr{value: value}
}

// Call creates a function call expression
func Call(name string, args ...Expr) *CallExpr {
	return &CallExpr{name: name, args: args}
}

// If creates a conditional expression
func If(cond, then, els Expr) *TernaryExpr {
	return &TernaryExpr{cond: cond, then: then, els: els}
}

// Neg creates a numeric negation expression
func Neg(operand Expr) *UnaryExpr {
	return &UnaryExpr{op: UnaryNeg, operand: operand}
}

// Not creates a boolean negation expression
func Not(operand Expr) *UnaryExpr {
	return &UnaryExpr{op: UnaryNot, operand: operand}
}

// Binary creates a binary expression
func Binary(left Expr, op BinaryOp, right Expr) *BinaryExpr {
	return &BinaryExpr{left: left, op: op, right: right}
}

// Binary operations on column expressions for fluent construction

func (c *ColumnExpr) Add(other Expr) *BinaryExpr { return Binary(c, OpAdd, other) }
func (c *ColumnExpr) Sub(other Expr) *BinaryExpr { return Binary(c, OpSub, other) }
func (c *ColumnExpr) Mul(other Expr) *BinaryExpr { return Binary(c, OpMul, other) }
func (c *ColumnExpr) Div(other Expr) *BinaryExpr { return Binary(c, OpDiv, other) }
func (c *ColumnExpr) Eq(other Expr) *BinaryExpr  { return Binary(c, OpEq, other) }
func (c *ColumnExpr) Ne(other Expr) *BinaryExpr  { return Binary(c, OpNe, other) }
func (c *ColumnExpr) Lt(other Expr) *BinaryExpr  { return Binary(c, OpLt, other) }
func (c *ColumnExpr) Le(other Expr) *BinaryExpr  { return Binary(c, OpLe, other) }
func (c *ColumnExpr) Gt(other Expr) *BinaryExpr  { return Binary(c, OpGt, other) }
func (c *ColumnExpr) Ge(other Expr) *BinaryExpr  { return Binary(c, OpGe, other) }

func (b *BinaryExpr) Add(other Expr) *BinaryExpr { return Binary(b, OpAdd, other) }
func (b *BinaryExpr) Sub(other Expr) *BinaryExpr { return Binary(b, OpSub, other) }
func (b *BinaryExpr) Mul(other Expr) *BinaryExpr { return Binary(b, OpMul, other) }
func (b *BinaryExpr) Div(other Expr) *BinaryExpr { return Binary(b, OpDiv, other) }
func (b *BinaryExpr) And(other Expr) *BinaryExpr { return Binary(b, OpAnd, other) }
func (b *BinaryExpr) Or(other Expr) *BinaryExpr  { return Binary(b, OpOr, other) }

// Columns returns the distinct column names referenced by an expression,
// in first-reference order.
func Columns(e Expr) []string {
	var out []string
	seen := make(map[string]bool)
	var walk func(Expr)
	walk = func(e Expr) {
		switch x := e.(type) {
		case *ColumnExpr:
			if !seen[x.name] {
				seen[x.name] = true
				out = append(out, x.name)
			}
		case *BinaryExpr:
			walk(x.left)
			walk(x.right)
		case *UnaryExpr:
			walk(x.operand)
		case *TernaryExpr:
			walk(x.cond)
			walk(x.then)
			walk(x.els)
		case *CallExpr:
			for _, a := range x.args {
				walk(a)
			}
		}
	}
	walk(e)
	return out
}
