package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiverdata/quiver/internal/errors"
	"github.com/quiverdata/quiver/internal/table"
)

func testMeta() TableMetadata {
	return TableMetadata{
		RowCount:    10_000,
		ColumnCount: 4,
		Columns: map[string]ColumnStats{
			"price":  {Min: 0, Max: 1000, DistinctCount: 500},
			"region": {DistinctCount: 4},
			"ts":     {Min: 0, Max: 86400, DistinctCount: 10_000},
			"qty":    {Min: 1, Max: 100, DistinctCount: 100},
		},
	}
}

func filterOp(column string, op CompareOp, value any) Operation {
	return Operation{Type: OpFilter, Filter: &FilterParams{Column: column, Operator: op, Value: value}}
}

func sortOp(column string) Operation {
	return Operation{Type: OpSort, Sort: &SortParams{Keys: []table.SortKey{{Column: column}}}}
}

func TestOptimize_EmptyPipeline(t *testing.T) {
	plan, err := New().Optimize(nil, testMeta())
	require.NoError(t, err)

	assert.Empty(t, plan.Operations)
	assert.Zero(t, plan.EstimatedCost)
	assert.Equal(t, int64(10_000), plan.EstimatedRows)
}

func TestOptimize_FilterPushedPastSort(t *testing.T) {
	ops := []Operation{
		sortOp("ts"),
		filterOp("region", CmpEq, "eu"),
	}

	plan, err := New().Optimize(ops, testMeta())
	require.NoError(t, err)

	require.Len(t, plan.Operations, 2)
	assert.Equal(t, OpFilter, plan.Operations[0].Type)
	assert.Equal(t, OpSort, plan.Operations[1].Type)
}

func TestOptimize_FilterNotPushedPastCompute(t *testing.T) {
	ops := []Operation{
		{Type: OpCompute, Compute: &ComputeParams{Name: "total", Expression: "price * qty"}},
		filterOp("total", CmpGt, 100),
	}

	plan, err := New().Optimize(ops, testMeta())
	require.NoError(t, err)

	assert.Equal(t, OpCompute, plan.Operations[0].Type)
	assert.Equal(t, OpFilter, plan.Operations[1].Type)
}

func TestOptimize_FilterPushedPastAggregateOnGroupKey(t *testing.T) {
	agg := Operation{Type: OpAggregate, Aggregate: &AggregateParams{
		GroupBy:      []string{"region"},
		Aggregations: []table.Aggregation{{Column: "price", Func: table.AggSum}},
	}}

	plan, err := New().Optimize([]Operation{agg, filterOp("region", CmpEq, "eu")}, testMeta())
	require.NoError(t, err)
	assert.Equal(t, OpFilter, plan.Operations[0].Type)

	// A filter on a non-key column stays after the aggregate.
	plan, err = New().Optimize([]Operation{agg, filterOp("price_sum", CmpGt, 10)}, testMeta())
	require.NoError(t, err)
	assert.Equal(t, OpAggregate, plan.Operations[0].Type)
}

func TestOptimize_AdjacentRangeFiltersMerge(t *testing.T) {
	ops := []Operation{
		filterOp("price", CmpGt, 100),
		filterOp("price", CmpLt, 500),
	}

	plan, err := New().Optimize(ops, testMeta())
	require.NoError(t, err)

	require.Len(t, plan.Operations, 1)
	f := plan.Operations[0].Filter
	assert.Equal(t, CmpBetween, f.Operator)
	assert.Equal(t, 100, f.Value)
	assert.Equal(t, 500, f.High)
	// Strict bounds survive the merge so x=100 and x=500 stay excluded.
	assert.True(t, f.LowExclusive)
	assert.True(t, f.HighExclusive)
}

func TestOptimize_InclusiveRangeFiltersMergeInclusive(t *testing.T) {
	ops := []Operation{
		filterOp("price", CmpGe, 100),
		filterOp("price", CmpLe, 500),
	}

	plan, err := New().Optimize(ops, testMeta())
	require.NoError(t, err)

	require.Len(t, plan.Operations, 1)
	f := plan.Operations[0].Filter
	assert.Equal(t, CmpBetween, f.Operator)
	assert.False(t, f.LowExclusive)
	assert.False(t, f.HighExclusive)
}

func TestOptimize_SameDirectionFiltersDoNotMerge(t *testing.T) {
	ops := []Operation{
		filterOp("price", CmpGt, 100),
		filterOp("price", CmpGt, 200),
	}

	plan, err := New().Optimize(ops, testMeta())
	require.NoError(t, err)
	assert.Len(t, plan.Operations, 2)
}

func TestOptimize_OperationCeiling(t *testing.T) {
	ops := make([]Operation, 10_000)
	for i := range ops {
		ops[i] = filterOp("price", CmpGt, i)
	}

	_, err := New().Optimize(ops, testMeta())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrTooManyOperations)
	assert.True(t, errors.IsResourceLimit(err))
}

func TestOptimize_ComputeCycleRejected(t *testing.T) {
	ops := []Operation{
		{Type: OpCompute, Compute: &ComputeParams{Name: "a", Expression: "b + 1"}},
		{Type: OpCompute, Compute: &ComputeParams{Name: "b", Expression: "a + 1"}},
	}

	_, err := New().Optimize(ops, testMeta())
	require.Error(t, err)
	assert.True(t, errors.IsCyclicDependency(err))
}

func TestOptimize_SelfReferenceRejected(t *testing.T) {
	ops := []Operation{
		{Type: OpCompute, Compute: &ComputeParams{Name: "a", Expression: "a * 2"}},
	}

	_, err := New().Optimize(ops, testMeta())
	require.Error(t, err)
	assert.True(t, errors.IsCyclicDependency(err))
}

func TestOptimize_AcyclicComputeChainAccepted(t *testing.T) {
	ops := []Operation{
		{Type: OpCompute, Compute: &ComputeParams{Name: "a", Expression: "price * 2"}},
		{Type: OpCompute, Compute: &ComputeParams{Name: "b", Expression: "a + qty"}},
	}

	_, err := New().Optimize(ops, testMeta())
	assert.NoError(t, err)
}

func TestOptimize_KeylessJoinRejected(t *testing.T) {
	ops := []Operation{{Type: OpJoin, Join: &JoinParams{LeftKey: "id"}}}

	_, err := New().Optimize(ops, testMeta())
	require.Error(t, err)
	assert.True(t, errors.IsCyclicDependency(err))
}

func TestOptimize_ExpensiveJoinThreshold(t *testing.T) {
	o := New()
	o.ExpensiveJoinThreshold = 100

	ops := []Operation{{Type: OpJoin, Join: &JoinParams{LeftKey: "id", RightKey: "id"}}}
	_, err := o.Optimize(ops, testMeta())
	require.Error(t, err)
	assert.True(t, errors.IsResourceLimit(err))

	// Zero threshold disables the check.
	_, err = New().Optimize(ops, testMeta())
	assert.NoError(t, err)
}

func TestOptimize_SelectivityEquality(t *testing.T) {
	plan, err := New().Optimize([]Operation{filterOp("region", CmpEq, "eu")}, testMeta())
	require.NoError(t, err)

	// 10000 rows / 4 distinct regions.
	assert.Equal(t, int64(2500), plan.EstimatedRows)
	assert.Equal(t, 10_000.0, plan.EstimatedCost)
}

func TestOptimize_SelectivityRange(t *testing.T) {
	plan, err := New().Optimize([]Operation{
		filterOp("price", CmpLt, 250),
	}, testMeta())
	require.NoError(t, err)

	// [0,250) covers a quarter of [0,1000].
	assert.Equal(t, int64(2500), plan.EstimatedRows)
}

func TestOptimize_RowEstimateNeverBelowOne(t *testing.T) {
	ops := []Operation{
		filterOp("ts", CmpEq, 1),
		filterOp("region", CmpEq, "eu"),
	}
	plan, err := New().Optimize(ops, testMeta())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, plan.EstimatedRows, int64(1))
}

func TestOptimize_AggregateCardinality(t *testing.T) {
	ops := []Operation{{Type: OpAggregate, Aggregate: &AggregateParams{
		GroupBy:      []string{"region"},
		Aggregations: []table.Aggregation{{Column: "price", Func: table.AggAvg}},
	}}}

	plan, err := New().Optimize(ops, testMeta())
	require.NoError(t, err)
	assert.Equal(t, int64(4), plan.EstimatedRows)
}

func TestOptimize_UnknownColumnWithStats(t *testing.T) {
	_, err := New().Optimize([]Operation{filterOp("missing", CmpEq, 1)}, testMeta())
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestOptimize_NoStatsSkipsColumnCheck(t *testing.T) {
	meta := TableMetadata{RowCount: 100, ColumnCount: 2}
	_, err := New().Optimize([]Operation{filterOp("anything", CmpEq, 1)}, meta)
	assert.NoError(t, err)
}

func TestOptimize_InvalidMetadata(t *testing.T) {
	_, err := New().Optimize(nil, TableMetadata{RowCount: -1, ColumnCount: 1})
	assert.True(t, errors.IsValidation(err))

	_, err = New().Optimize(nil, TableMetadata{RowCount: 1, ColumnCount: 0})
	assert.True(t, errors.IsValidation(err))
}

func TestOptimize_BadComputeExpressionRejected(t *testing.T) {
	ops := []Operation{
		{Type: OpCompute, Compute: &ComputeParams{Name: "x", Expression: "system('rm')"}},
	}
	_, err := New().Optimize(ops, testMeta())
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestPlanString(t *testing.T) {
	plan, err := New().Optimize([]Operation{
		filterOp("price", CmpGt, 10),
		sortOp("ts"),
	}, testMeta())
	require.NoError(t, err)

	s := plan.String()
	assert.Contains(t, s, "filter(price gt 10)")
	assert.Contains(t, s, "sort(ts asc)")
}
