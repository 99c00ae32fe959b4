package optimizer

import (
	"fmt"
	"math"

	"github.com/quiverdata/quiver/internal/errors"
	"github.com/quiverdata/quiver/internal/expr"
)

// Default limits. The expensive-join threshold is a heuristic knob, not a
// correctness boundary; zero disables it.
const (
	DefaultMaxOperations = 1000

	defaultSelectivity   = 0.5
	defaultJoinMatches   = 2.0
	minEstimatedRows     = 1
	sortCostFloorRows    = 2 // log2 of fewer rows would go non-positive
)

// Optimizer validates operation pipelines and produces execution plans in
// a single bounded linear pass. No plan-space search is performed, so
// optimization terminates deterministically within the operation ceiling.
type Optimizer struct {
	// MaxOperations caps the pipeline length as a resource-exhaustion
	// guard.
	MaxOperations int
	// ExpensiveJoinThreshold rejects plans whose estimated join cost
	// exceeds it. Zero disables the check.
	ExpensiveJoinThreshold float64
	// JoinMatchesPerKey is the assumed average fan-out per join key.
	JoinMatchesPerKey float64
}

// New creates an optimizer with default limits.
func New() *Optimizer {
	return &Optimizer{
		MaxOperations:     DefaultMaxOperations,
		JoinMatchesPerKey: defaultJoinMatches,
	}
}

// Optimize validates the pipeline against the table metadata, reorders it,
// and returns a plan with cost and cardinality estimates. A nil operation
// slice is an empty pipeline and yields an empty zero-cost plan.
func (o *Optimizer) Optimize(ops []Operation, meta TableMetadata) (*QueryPlan, error) {
	if err := o.validate(ops, meta); err != nil {
		return nil, err
	}

	reordered := reorder(ops)
	merged := mergeAdjacentFilters(reordered)

	cost, rows, err := o.estimate(merged, meta)
	if err != nil {
		return nil, err
	}
	return &QueryPlan{Operations: merged, EstimatedCost: cost, EstimatedRows: rows}, nil
}

// validate fails fast on malformed metadata, unknown operation kinds,
// missing required parameters, pipelines above the operation ceiling and
// compute alias cycles.
func (o *Optimizer) validate(ops []Operation, meta TableMetadata) error {
	if meta.RowCount < 0 {
		return errors.NewValidation("Optimize", fmt.Sprintf("row count must be non-negative, got %d", meta.RowCount))
	}
	if meta.ColumnCount <= 0 {
		return errors.NewValidation("Optimize", fmt.Sprintf("column count must be positive, got %d", meta.ColumnCount))
	}
	maxOps := o.MaxOperations
	if maxOps <= 0 {
		maxOps = DefaultMaxOperations
	}
	if len(ops) > maxOps {
		return errors.ErrTooManyOperations
	}

	// Column existence is only checkable when per-column stats were
	// provided; columns introduced by earlier operations count.
	available := make(map[string]bool, len(meta.Columns))
	checkColumns := len(meta.Columns) > 0
	for name := range meta.Columns {
		available[name] = true
	}
	requireColumn := func(op, name string) error {
		if checkColumns && !available[name] {
			return errors.NewColumnNotFound(op, name)
		}
		return nil
	}

	for i, op := range ops {
		switch op.Type {
		case OpFilter:
			if op.Filter == nil || op.Filter.Column == "" {
				return errors.NewValidation("Optimize", fmt.Sprintf("operation %d: filter requires a column", i))
			}
			switch op.Filter.Operator {
			case CmpEq, CmpNe, CmpLt, CmpLe, CmpGt, CmpGe:
				if op.Filter.Value == nil {
					return errors.NewValidation("Optimize", fmt.Sprintf("operation %d: filter requires a value", i))
				}
			case CmpBetween:
				if op.Filter.Value == nil || op.Filter.High == nil {
					return errors.NewValidation("Optimize", fmt.Sprintf("operation %d: between filter requires both bounds", i))
				}
			default:
				return errors.NewValidation("Optimize",
					fmt.Sprintf("operation %d: unknown filter operator %q", i, op.Filter.Operator))
			}
			if err := requireColumn("Optimize", op.Filter.Column); err != nil {
				return err
			}
		case OpSort:
			if op.Sort == nil || len(op.Sort.Keys) == 0 {
				return errors.NewValidation("Optimize", fmt.Sprintf("operation %d: sort requires at least one key", i))
			}
			for _, key := range op.Sort.Keys {
				if key.Column == "" {
					return errors.NewValidation("Optimize", fmt.Sprintf("operation %d: sort key requires a column", i))
				}
				if err := requireColumn("Optimize", key.Column); err != nil {
					return err
				}
			}
		case OpAggregate:
			if op.Aggregate == nil || len(op.Aggregate.Aggregations) == 0 {
				return errors.NewValidation("Optimize",
					fmt.Sprintf("operation %d: aggregate requires at least one aggregation", i))
			}
			for _, agg := range op.Aggregate.Aggregations {
				if agg.Column == "" {
					return errors.NewValidation("Optimize",
						fmt.Sprintf("operation %d: aggregation requires a column", i))
				}
				if err := requireColumn("Optimize", agg.Column); err != nil {
					return err
				}
				alias := agg.Alias
				if alias == "" {
					alias = fmt.Sprintf("%s_%s", agg.Column, agg.Func)
				}
				available[alias] = true
			}
			for _, col := range op.Aggregate.GroupBy {
				if err := requireColumn("Optimize", col); err != nil {
					return err
				}
			}
		case OpCompute:
			if op.Compute == nil || op.Compute.Name == "" {
				return errors.NewValidation("Optimize", fmt.Sprintf("operation %d: compute requires a column name", i))
			}
			if _, err := expr.Parse(op.Compute.Expression); err != nil {
				return err
			}
			available[op.Compute.Name] = true
		case OpJoin:
			// A join without both keys degenerates into an unbounded
			// cartesian product, so absence is rejected outright.
			if op.Join == nil || op.Join.LeftKey == "" || op.Join.RightKey == "" {
				return errors.NewCyclicDependency("Optimize",
					fmt.Sprintf("operation %d: join requires both leftKey and rightKey", i))
			}
		default:
			return errors.NewValidation("Optimize", fmt.Sprintf("operation %d: unknown operation type %q", i, op.Type))
		}
	}

	return detectComputeCycles(ops)
}

// detectComputeCycles rejects compute pipelines whose aliases depend on
// each other cyclically (a = b + 1, b = a + 1). Detection is Kahn's
// algorithm over the alias dependency graph.
func detectComputeCycles(ops []Operation) error {
	deps := make(map[string][]string)
	for _, op := range ops {
		if op.Type != OpCompute {
			continue
		}
		parsed, err := expr.Parse(op.Compute.Expression)
		if err != nil {
			return err
		}
		deps[op.Compute.Name] = expr.Columns(parsed)
	}
	if len(deps) == 0 {
		return nil
	}

	indegree := make(map[string]int, len(deps))
	dependents := make(map[string][]string)
	for name, refs := range deps {
		if _, ok := indegree[name]; !ok {
			indegree[name] = 0
		}
		for _, ref := range refs {
			if _, isAlias := deps[ref]; !isAlias {
				continue
			}
			if ref == name {
				return errors.NewCyclicDependency("Optimize",
					fmt.Sprintf("compute column %q references itself", name))
			}
			indegree[name]++
			dependents[ref] = append(dependents[ref], name)
		}
	}

	queue := make([]string, 0, len(indegree))
	for name, deg := range indegree {
		if deg == 0 {
			queue = append(queue, name)
		}
	}
	resolved := 0
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		resolved++
		for _, dep := range dependents[name] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}
	if resolved != len(indegree) {
		return errors.NewCyclicDependency("Optimize", "compute columns form a dependency cycle")
	}
	return nil
}

// reorder pushes filters earlier in a single left-to-right pass. A filter
// may bubble past Sort, other Filters, and Aggregates that keep its column
// as a group key. It never moves past Compute or Join: those may produce
// the filtered column, and dependency preservation takes priority.
func reorder(ops []Operation) []Operation {
	out := make([]Operation, 0, len(ops))
	for _, op := range ops {
		if op.Type != OpFilter {
			out = append(out, op)
			continue
		}

		insert := len(out)
		for insert > 0 && filterMayPrecede(op.Filter, out[insert-1]) {
			insert--
		}
		out = append(out, Operation{})
		copy(out[insert+1:], out[insert:])
		out[insert] = op
	}
	return out
}

func filterMayPrecede(f *FilterParams, prev Operation) bool {
	switch prev.Type {
	case OpSort:
		return true
	case OpFilter:
		// Keep relative order of filters on the same column so adjacent
		// range predicates merge predictably.
		return prev.Filter.Column != f.Column
	case OpAggregate:
		for _, col := range prev.Aggregate.GroupBy {
			if col == f.Column {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// mergeAdjacentFilters fuses two adjacent filters on the same column into
// one range predicate when one bounds from below (gt/ge) and the other
// from above (lt/le).
func mergeAdjacentFilters(ops []Operation) []Operation {
	out := make([]Operation, 0, len(ops))
	for _, op := range ops {
		if op.Type == OpFilter && len(out) > 0 {
			last := out[len(out)-1]
			if last.Type == OpFilter && last.Filter.Column == op.Filter.Column {
				if merged, ok := mergeRange(last.Filter, op.Filter); ok {
					out[len(out)-1] = Operation{Type: OpFilter, Filter: merged}
					continue
				}
			}
		}
		out = append(out, op)
	}
	return out
}

func mergeRange(a, b *FilterParams) (*FilterParams, bool) {
	lower, upper := a, b
	if !isLowerBound(lower.Operator) {
		lower, upper = upper, lower
	}
	if !isLowerBound(lower.Operator) || !isUpperBound(upper.Operator) {
		return nil, false
	}
	return &FilterParams{
		Column:        a.Column,
		Operator:      CmpBetween,
		Value:         lower.Value,
		High:          upper.Value,
		LowExclusive:  lower.Operator == CmpGt,
		HighExclusive: upper.Operator == CmpLt,
	}, true
}

func isLowerBound(op CompareOp) bool { return op == CmpGt || op == CmpGe }
func isUpperBound(op CompareOp) bool { return op == CmpLt || op == CmpLe }

// estimate walks the plan once, accumulating cost and propagating the row
// estimate multiplicatively.
func (o *Optimizer) estimate(ops []Operation, meta TableMetadata) (float64, int64, error) {
	rows := float64(meta.RowCount)
	var cost float64

	matches := o.JoinMatchesPerKey
	if matches <= 0 {
		matches = defaultJoinMatches
	}

	for _, op := range ops {
		switch op.Type {
		case OpFilter:
			cost += rows
			rows *= selectivity(op.Filter, meta)
		case OpSort:
			n := math.Max(rows, sortCostFloorRows)
			cost += n * math.Log2(n)
		case OpAggregate:
			cost += rows
			rows = estimateGroups(op.Aggregate, meta, rows)
		case OpCompute:
			cost += rows
		case OpJoin:
			joinCost := rows * matches
			cost += joinCost
			rows *= matches
			if o.ExpensiveJoinThreshold > 0 && joinCost > o.ExpensiveJoinThreshold {
				return 0, 0, errors.NewResourceLimit("Optimize",
					fmt.Sprintf("estimated join cost %.0f exceeds threshold %.0f", joinCost, o.ExpensiveJoinThreshold))
			}
		}
	}

	outRows := int64(math.Round(rows))
	if meta.RowCount > 0 && outRows < minEstimatedRows {
		outRows = minEstimatedRows
	}
	return cost, outRows, nil
}

// selectivity estimates the fraction of rows a filter retains from column
// stats: equality uses 1/distinct, range predicates use the covered
// fraction of [min,max], and anything without stats defaults to 0.5.
func selectivity(f *FilterParams, meta TableMetadata) float64 {
	stats, ok := meta.Columns[f.Column]
	if !ok {
		return defaultSelectivity
	}

	switch f.Operator {
	case CmpEq:
		if stats.DistinctCount > 0 {
			return clamp01(1 / float64(stats.DistinctCount))
		}
	case CmpNe:
		if stats.DistinctCount > 0 {
			return clamp01(1 - 1/float64(stats.DistinctCount))
		}
	case CmpLt, CmpLe:
		if v, ok := asFloat(f.Value); ok {
			return rangeFraction(stats.Min, v, stats)
		}
	case CmpGt, CmpGe:
		if v, ok := asFloat(f.Value); ok {
			return rangeFraction(v, stats.Max, stats)
		}
	case CmpBetween:
		lo, lok := asFloat(f.Value)
		hi, hok := asFloat(f.High)
		if lok && hok {
			return rangeFraction(lo, hi, stats)
		}
	}
	return defaultSelectivity
}

func rangeFraction(lo, hi float64, stats ColumnStats) float64 {
	width := stats.Max - stats.Min
	if width <= 0 {
		return defaultSelectivity
	}
	lo = math.Max(lo, stats.Min)
	hi = math.Min(hi, stats.Max)
	if hi <= lo {
		return 0
	}
	return clamp01((hi - lo) / width)
}

// estimateGroups predicts the output cardinality of an aggregation from
// the group column's distinct count when stats are available.
func estimateGroups(p *AggregateParams, meta TableMetadata, rows float64) float64 {
	if len(p.GroupBy) == 0 {
		return 1
	}
	groups := 1.0
	known := false
	for _, col := range p.GroupBy {
		if stats, ok := meta.Columns[col]; ok && stats.DistinctCount > 0 {
			groups *= float64(stats.DistinctCount)
			known = true
		}
	}
	if !known {
		groups = rows / 2
	}
	return math.Max(1, math.Min(groups, rows))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
