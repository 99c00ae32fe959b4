package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapRow backs the evaluator with a plain map for tests.
type mapRow map[string]any

func (m mapRow) Value(column string) (any, error) {
	v, ok := m[column]
	if !ok {
		return nil, assert.AnError
	}
	return v, nil
}

func (m mapRow) Index() int { return 0 }

func evalSrc(t *testing.T, src string, row mapRow) any {
	t.Helper()
	e, err := Parse(src)
	require.NoError(t, err)
	v, err := Eval(e, row)
	require.NoError(t, err)
	return v
}

func TestEval_Arithmetic(t *testing.T) {
	row := mapRow{"a": int64(7), "b": int64(2), "f": 1.5}

	assert.Equal(t, int64(9), evalSrc(t, "a + b", row))
	assert.Equal(t, int64(5), evalSrc(t, "a - b", row))
	assert.Equal(t, int64(14), evalSrc(t, "a * b", row))
	assert.Equal(t, int64(3), evalSrc(t, "a / b", row))
	assert.Equal(t, int64(1), evalSrc(t, "a % b", row))
	// Mixed int and float widens to float.
	assert.Equal(t, 8.5, evalSrc(t, "a + f", row))
}

func TestEval_DivisionByZero(t *testing.T) {
	row := mapRow{"a": int64(1), "z": int64(0), "fz": 0.0}

	assert.Nil(t, evalSrc(t, "a / z", row))
	assert.Nil(t, evalSrc(t, "a % z", row))
	assert.Nil(t, evalSrc(t, "1.0 / fz", row))
}

func TestEval_NullPropagation(t *testing.T) {
	row := mapRow{"a": int64(1), "n": nil}

	assert.Nil(t, evalSrc(t, "a + n", row))
	assert.Nil(t, evalSrc(t, "n * 2", row))
	assert.Nil(t, evalSrc(t, "a > n", row))
	assert.Nil(t, evalSrc(t, "-n", row))
}

func TestEval_Comparison(t *testing.T) {
	row := mapRow{"a": int64(3), "b": 3.0, "s": "abc"}

	assert.Equal(t, true, evalSrc(t, "a == b", row))
	assert.Equal(t, false, evalSrc(t, "a < b", row))
	assert.Equal(t, true, evalSrc(t, `s == "abc"`, row))
	assert.Equal(t, true, evalSrc(t, `s < "abd"`, row))
	assert.Equal(t, true, evalSrc(t, "a != 4", row))
}

func TestEval_LogicShortCircuit(t *testing.T) {
	// The right side references a missing column; short-circuiting means
	// it is never evaluated.
	row := mapRow{"t": true, "f": false}

	e, err := Parse("f && missing")
	require.NoError(t, err)
	v, err := Eval(e, row)
	require.NoError(t, err)
	assert.Equal(t, false, v)

	e, err = Parse("t || missing")
	require.NoError(t, err)
	v, err = Eval(e, row)
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

func TestEval_Not(t *testing.T) {
	row := mapRow{"t": true, "n": nil}

	assert.Equal(t, false, evalSrc(t, "!t", row))
	assert.Nil(t, evalSrc(t, "!n", row))
}

func TestEval_Ternary(t *testing.T) {
	row := mapRow{"a": int64(-5)}

	assert.Equal(t, int64(5), evalSrc(t, "a < 0 ? -a : a", row))
	assert.Equal(t, int64(-5), evalSrc(t, "a > 0 ? -a : a", row))
	// A null condition yields null, not either branch.
	assert.Nil(t, evalSrc(t, `a == null ? "yes" : "no"`, row))
}

func TestEval_Functions(t *testing.T) {
	row := mapRow{"x": -4.0, "a": int64(3), "b": int64(8)}

	assert.Equal(t, 4.0, evalSrc(t, "abs(x)", row))
	assert.Equal(t, 2.0, evalSrc(t, "sqrt(4)", row))
	assert.Equal(t, 3.0, evalSrc(t, "floor(3.7)", row))
	assert.Equal(t, 4.0, evalSrc(t, "ceil(3.2)", row))
	assert.Equal(t, 4.0, evalSrc(t, "round(3.5)", row))
	assert.Equal(t, 3.0, evalSrc(t, "min(a, b)", row))
	assert.Equal(t, 8.0, evalSrc(t, "max(a, b)", row))
	assert.Equal(t, 64.0, evalSrc(t, "pow(2, 6)", row))
}

func TestEval_FunctionNullArgument(t *testing.T) {
	row := mapRow{"n": nil}
	assert.Nil(t, evalSrc(t, "abs(n)", row))
}

func TestEvalBool(t *testing.T) {
	row := mapRow{"a": int64(5), "n": nil}

	e, err := Parse("a > 3")
	require.NoError(t, err)
	ok, err := EvalBool(e, row)
	require.NoError(t, err)
	assert.True(t, ok)

	// Null predicate results count as false.
	e, err = Parse("n > 3")
	require.NoError(t, err)
	ok, err = EvalBool(e, row)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEval_FluentConstructors(t *testing.T) {
	row := mapRow{"price": 100.0}

	e := Col("price").Mul(Lit(0.9))
	v, err := Eval(e, row)
	require.NoError(t, err)
	assert.Equal(t, 90.0, v)
}
