package quiver

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndToEnd_FilterComputeSort(t *testing.T) {
	mem := memory.NewGoAllocator()
	tbl, err := NewTable(
		NewStringColumn("region", []string{"eu", "us", "eu", "apac"}, nil, mem),
		NewFloat64Column("revenue", []float64{100, 250, 80, 300}, nil, mem),
	)
	require.NoError(t, err)
	defer tbl.Release()

	predicate, err := ParseExpr("revenue >= 100")
	require.NoError(t, err)

	filtered, err := tbl.Filter(predicate)
	require.NoError(t, err)
	defer filtered.Release()

	derived, err := filtered.Compute("discounted", Col("revenue").Mul(Lit(0.9)))
	require.NoError(t, err)
	defer derived.Release()

	sorted, err := derived.Sort(SortKey{Column: "discounted", Descending: true})
	require.NoError(t, err)
	defer sorted.Release()

	require.Equal(t, 3, sorted.NumRows())
	v, err := sorted.Value("region", 0)
	require.NoError(t, err)
	assert.Equal(t, "apac", v)
}

func TestEndToEnd_PlanThenExecute(t *testing.T) {
	mem := memory.NewGoAllocator()
	tbl, err := NewTable(
		NewStringColumn("region", []string{"eu", "us", "eu"}, nil, mem),
		NewInt64Column("qty", []int64{5, 7, 11}, nil, mem),
	)
	require.NoError(t, err)
	defer tbl.Release()

	plan, err := NewOptimizer().Optimize([]Operation{
		{Type: OpSort, Sort: &SortParams{Keys: []SortKey{{Column: "qty"}}}},
		{Type: OpFilter, Filter: &FilterParams{Column: "region", Operator: CmpEq, Value: "eu"}},
	}, TableMetadata{RowCount: 3, ColumnCount: 2})
	require.NoError(t, err)

	// The filter is hoisted ahead of the sort.
	require.Len(t, plan.Operations, 2)
	assert.Equal(t, OpFilter, plan.Operations[0].Type)
}

func TestErrorPredicatesExported(t *testing.T) {
	mem := memory.NewGoAllocator()
	tbl, err := NewTable(NewInt64Column("v", []int64{1}, nil, mem))
	require.NoError(t, err)
	defer tbl.Release()

	_, err = tbl.Sort(SortKey{Column: "missing"})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.False(t, IsFormatError(err))
}

func TestSampleExported(t *testing.T) {
	mem := memory.NewGoAllocator()
	vals := make([]int64, 100)
	for i := range vals {
		vals[i] = int64(i)
	}
	tbl, err := NewTable(NewInt64Column("v", vals, nil, mem))
	require.NoError(t, err)
	defer tbl.Release()

	out, err := Sample(tbl, SampleOptions{Strategy: SampleSystematic, SampleSize: 10})
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, 10, out.NumRows())
}

func TestQuadtreeExported(t *testing.T) {
	q := NewQuadtree(Bounds{X: 0, Y: 0, Width: 10, Height: 10}, 4)
	require.True(t, q.Insert(Point{X: 1, Y: 1, Data: "hit"}))

	p, ok := q.FindNearest(1.5, 1.5, 2)
	require.True(t, ok)
	assert.Equal(t, "hit", p.Data)
}
