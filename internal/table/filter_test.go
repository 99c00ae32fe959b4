package table

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiverdata/quiver/internal/errors"
	"github.com/quiverdata/quiver/internal/expr"
)

func TestFilter_Comparison(t *testing.T) {
	mem := memory.NewGoAllocator()
	tbl := mkTable(t,
		NewInt64Column("age", []int64{25, 30, 35, 40}, nil, mem),
		NewStringColumn("name", []string{"a", "b", "c", "d"}, nil, mem),
	)

	out, err := tbl.Filter(expr.Col("age").Gt(expr.Lit(30)))
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, []any{"c", "d"}, colValues(t, out, "name"))
}

func TestFilter_ParsedExpression(t *testing.T) {
	mem := memory.NewGoAllocator()
	tbl := mkTable(t,
		NewFloat64Column("price", []float64{50, 150, 250}, nil, mem),
		NewStringColumn("region", []string{"eu", "eu", "us"}, nil, mem),
	)

	predicate, err := expr.Parse(`price > 100 && region == "eu"`)
	require.NoError(t, err)

	out, err := tbl.Filter(predicate)
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, 1, out.NumRows())
	assert.Equal(t, []any{150.0}, colValues(t, out, "price"))
}

func TestFilter_NullPredicateDropsRow(t *testing.T) {
	mem := memory.NewGoAllocator()
	tbl := mkTable(t,
		NewInt64Column("v", []int64{1, 0, 3}, []bool{true, false, true}, mem),
	)

	// A null comparison result is treated as false.
	out, err := tbl.Filter(expr.Col("v").Gt(expr.Lit(0)))
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, []any{int64(1), int64(3)}, colValues(t, out, "v"))
}

func TestFilter_InputUnchanged(t *testing.T) {
	mem := memory.NewGoAllocator()
	tbl := mkTable(t, NewInt64Column("v", []int64{1, 2, 3}, nil, mem))

	out, err := tbl.Filter(expr.Col("v").Ge(expr.Lit(3)))
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, 3, tbl.NumRows())
	assert.Equal(t, 1, out.NumRows())
}

func TestFilter_UnknownColumn(t *testing.T) {
	mem := memory.NewGoAllocator()
	tbl := mkTable(t, NewInt64Column("v", []int64{1}, nil, mem))

	_, err := tbl.Filter(expr.Col("missing").Gt(expr.Lit(0)))
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestFilter_NilPredicate(t *testing.T) {
	mem := memory.NewGoAllocator()
	tbl := mkTable(t, NewInt64Column("v", []int64{1}, nil, mem))

	_, err := tbl.Filter(nil)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestCompute_DerivedColumn(t *testing.T) {
	mem := memory.NewGoAllocator()
	tbl := mkTable(t, NewFloat64Column("price", []float64{100, 200}, nil, mem))

	out, err := tbl.Compute("discounted", expr.Col("price").Mul(expr.Lit(0.9)))
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, []any{90.0, 180.0}, colValues(t, out, "discounted"))
	// Source columns are shared, not copied, and the input keeps its shape.
	assert.Equal(t, 1, tbl.NumCols())
	assert.Equal(t, 2, out.NumCols())
}

func TestCompute_NullPropagates(t *testing.T) {
	mem := memory.NewGoAllocator()
	tbl := mkTable(t,
		NewInt64Column("a", []int64{1, 0}, []bool{true, false}, mem),
	)

	out, err := tbl.Compute("b", expr.Col("a").Add(expr.Lit(1)))
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, []any{int64(2), nil}, colValues(t, out, "b"))
}

func TestCompute_DivisionByZeroYieldsNull(t *testing.T) {
	mem := memory.NewGoAllocator()
	tbl := mkTable(t,
		NewInt64Column("n", []int64{10, 10}, nil, mem),
		NewInt64Column("d", []int64{2, 0}, nil, mem),
	)

	out, err := tbl.Compute("q", expr.Col("n").Div(expr.Col("d")))
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, []any{int64(5), nil}, colValues(t, out, "q"))
}

func TestCompute_Errors(t *testing.T) {
	mem := memory.NewGoAllocator()
	tbl := mkTable(t, NewInt64Column("v", []int64{1}, nil, mem))

	_, err := tbl.Compute("", expr.Col("v"))
	assert.True(t, errors.IsValidation(err))

	_, err = tbl.Compute("v", expr.Col("v"))
	assert.True(t, errors.IsValidation(err))

	_, err = tbl.Compute("w", nil)
	assert.True(t, errors.IsValidation(err))

	_, err = tbl.Compute("w", expr.Col("missing"))
	assert.True(t, errors.IsValidation(err))
}
