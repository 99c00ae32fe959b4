package expr

import (
	"fmt"
	"math"

	"github.com/quiverdata/quiver/internal/errors"
)

// Row is a read-only view over one table row. Value returns the cell for
// the named column, with nil meaning null.
type Row interface {
	Value(column string) (any, error)
	Index() int
}

// Eval evaluates an expression against a single row. The result is one of
// int64, float64, string, bool or nil (null). Nulls propagate through
// arithmetic and comparisons; division by zero yields null.
func Eval(e Expr, row Row) (any, error) {
	switch x := e.(type) {
	case *LiteralExpr:
		return normalizeLiteral(x.value), nil
	case *ColumnExpr:
		return row.Value(x.name)
	case *UnaryExpr:
		return evalUnary(x, row)
	case *BinaryExpr:
		return evalBinary(x, row)
	case *TernaryExpr:
		return evalTernary(x, row)
	case *CallExpr:
		return evalCall(x, row)
	default:
		return nil, errors.NewValidation("EvalExpr", fmt.Sprintf("unsupported expression node %T", e))
	}
}

// normalizeLiteral widens small integer literal types so the arithmetic
// paths only see int64 and float64.
func normalizeLiteral(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}

func evalUnary(u *UnaryExpr, row Row) (any, error) {
	v, err := Eval(u.operand, row)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}

	switch u.op {
	case UnaryNeg:
		switch n := v.(type) {
		case int64:
			return -n, nil
		case float64:
			return -n, nil
		}
		return nil, errors.NewValidation("EvalExpr", fmt.Sprintf("cannot negate %T", v))
	case UnaryNot:
		b, ok := v.(bool)
		if !ok {
			return nil, errors.NewValidation("EvalExpr", fmt.Sprintf("cannot apply ! to %T", v))
		}
		return !b, nil
	}
	return nil, errors.NewValidation("EvalExpr", "unknown unary operator")
}

func evalBinary(b *BinaryExpr, row Row) (any, error) {
	// Boolean connectives short-circuit before the right side is touched.
	if b.op == OpAnd || b.op == OpOr {
		return evalLogical(b, row)
	}

	left, err := Eval(b.left, row)
	if err != nil {
		return nil, err
	}
	right, err := Eval(b.right, row)
	if err != nil {
		return nil, err
	}
	if left == nil || right == nil {
		return nil, nil
	}

	switch b.op {
	case OpAdd, OpSub, OpMul, OpDiv, OpMod:
		return evalArithmetic(b.op, left, right)
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return evalComparison(b.op, left, right)
	}
	return nil, errors.NewValidation("EvalExpr", "unknown binary operator")
}

func evalLogical(b *BinaryExpr, row Row) (any, error) {
	left, err := Eval(b.left, row)
	if err != nil {
		return nil, err
	}
	lb, lok := left.(bool)
	if left != nil && !lok {
		return nil, errors.NewValidation("EvalExpr", fmt.Sprintf("logical operand must be boolean, got %T", left))
	}

	if b.op == OpAnd && lok && !lb {
		return false, nil
	}
	if b.op == OpOr && lok && lb {
		return true, nil
	}

	right, err := Eval(b.right, row)
	if err != nil {
		return nil, err
	}
	rb, rok := right.(bool)
	if right != nil && !rok {
		return nil, errors.NewValidation("EvalExpr", fmt.Sprintf("logical operand must be boolean, got %T", right))
	}
	if left == nil || right == nil {
		return nil, nil
	}
	if b.op == OpAnd {
		return lb && rb, nil
	}
	return lb || rb, nil
}

func evalArithmetic(op BinaryOp, left, right any) (any, error) {
	li, lInt := left.(int64)
	ri, rInt := right.(int64)
	if lInt && rInt {
		switch op {
		case OpAdd:
			return li + ri, nil
		case OpSub:
			return li - ri, nil
		case OpMul:
			return li * ri, nil
		case OpDiv:
			if ri == 0 {
				return nil, nil
			}
			return li / ri, nil
		case OpMod:
			if ri == 0 {
				return nil, nil
			}
			return li % ri, nil
		}
	}

	lf, lok := toFloat(left)
	rf, rok := toFloat(right)
	if !lok || !rok {
		return nil, errors.NewValidation("EvalExpr",
			fmt.Sprintf("arithmetic requires numeric operands, got %T and %T", left, right))
	}
	switch op {
	case OpAdd:
		return lf + rf, nil
	case OpSub:
		return lf - rf, nil
	case OpMul:
		return lf * rf, nil
	case OpDiv:
		if rf == 0 {
			return nil, nil
		}
		return lf / rf, nil
	case OpMod:
		if rf == 0 {
			return nil, nil
		}
		return math.Mod(lf, rf), nil
	}
	return nil, errors.NewValidation("EvalExpr", "unknown arithmetic operator")
}

func evalComparison(op BinaryOp, left, right any) (any, error) {
	if lf, lok := toFloat(left); lok {
		rf, rok := toFloat(right)
		if !rok {
			return nil, errors.NewValidation("EvalExpr",
				fmt.Sprintf("cannot compare %T with %T", left, right))
		}
		return compareOrdered(op, lf, rf), nil
	}

	if ls, ok := left.(string); ok {
		rs, rok := right.(string)
		if !rok {
			return nil, errors.NewValidation("EvalExpr",
				fmt.Sprintf("cannot compare %T with %T", left, right))
		}
		return compareOrdered(op, ls, rs), nil
	}

	if lb, ok := left.(bool); ok {
		rb, rok := right.(bool)
		if !rok || (op != OpEq && op != OpNe) {
			return nil, errors.NewValidation("EvalExpr", "booleans support only == and !=")
		}
		if op == OpEq {
			return lb == rb, nil
		}
		return lb != rb, nil
	}

	return nil, errors.NewValidation("EvalExpr", fmt.Sprintf("cannot compare values of type %T", left))
}

func compareOrdered[T float64 | string](op BinaryOp, l, r T) bool {
	switch op {
	case OpEq:
		return l == r
	case OpNe:
		return l != r
	case OpLt:
		return l < r
	case OpLe:
		return l <= r
	case OpGt:
		return l > r
	case OpGe:
		return l >= r
	}
	return false
}

func evalTernary(t *TernaryExpr, row Row) (any, error) {
	cond, err := Eval(t.cond, row)
	if err != nil {
		return nil, err
	}
	if cond == nil {
		return nil, nil
	}
	b, ok := cond.(bool)
	if !ok {
		return nil, errors.NewValidation("EvalExpr",
			fmt.Sprintf("conditional requires a boolean condition, got %T", cond))
	}
	if b {
		return Eval(t.then, row)
	}
	return Eval(t.els, row)
}

func evalCall(c *CallExpr, row Row) (any, error) {
	args := make([]float64, len(c.args))
	for i, a := range c.args {
		v, err := Eval(a, row)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, nil
		}
		f, ok := toFloat(v)
		if !ok {
			return nil, errors.NewValidation("EvalExpr",
				fmt.Sprintf("function %q requires numeric arguments, got %T", c.name, v))
		}
		args[i] = f
	}

	switch c.name {
	case "abs":
		return math.Abs(args[0]), nil
	case "sqrt":
		if args[0] < 0 {
			return nil, nil
		}
		return math.Sqrt(args[0]), nil
	case "floor":
		return math.Floor(args[0]), nil
	case "ceil":
		return math.Ceil(args[0]), nil
	case "round":
		return math.Round(args[0]), nil
	case "log":
		if args[0] <= 0 {
			return nil, nil
		}
		return math.Log(args[0]), nil
	case "min":
		return math.Min(args[0], args[1]), nil
	case "max":
		return math.Max(args[0], args[1]), nil
	case "pow":
		return math.Pow(args[0], args[1]), nil
	}
	return nil, errors.NewValidation("EvalExpr", fmt.Sprintf("unknown function %q", c.name))
}

// EvalBool evaluates a predicate expression; null counts as false.
func EvalBool(e Expr, row Row) (bool, error) {
	v, err := Eval(e, row)
	if err != nil {
		return false, err
	}
	if v == nil {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, errors.NewValidation("EvalExpr",
			fmt.Sprintf("predicate must evaluate to boolean, got %T", v))
	}
	return b, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
