// Package optimizer validates and reorders declarative operation pipelines
// into cost-estimated execution plans. The optimizer never executes
// operations; a caller runs the returned plan through the table operators
// in order.
package optimizer

import (
	"fmt"
	"strings"

	"github.com/quiverdata/quiver/internal/table"
)

// OpType identifies an operation kind.
type OpType string

const (
	OpFilter    OpType = "filter"
	OpSort      OpType = "sort"
	OpAggregate OpType = "aggregate"
	OpCompute   OpType = "compute"
	OpJoin      OpType = "join"
)

// CompareOp names a filter comparison.
type CompareOp string

const (
	CmpEq      CompareOp = "eq"
	CmpNe      CompareOp = "ne"
	CmpLt      CompareOp = "lt"
	CmpLe      CompareOp = "le"
	CmpGt      CompareOp = "gt"
	CmpGe      CompareOp = "ge"
	CmpBetween CompareOp = "between"
)

// FilterParams filters rows on a single column.
type FilterParams struct {
	Column   string
	Operator CompareOp
	Value    any
	// High is the upper bound for between predicates.
	High any
	// LowExclusive and HighExclusive mark strict bounds on a between
	// predicate, so merging gt/lt filters loses no boundary semantics.
	// Both bounds are inclusive when false.
	LowExclusive  bool
	HighExclusive bool
}

// SortParams permutes rows by a priority-ordered key list.
type SortParams struct {
	Keys []table.SortKey
}

// AggregateParams groups and aggregates.
type AggregateParams struct {
	GroupBy      []string
	Aggregations []table.Aggregation
}

// ComputeParams appends a derived column. Expression uses the restricted
// grammar from the expr package.
type ComputeParams struct {
	Name       string
	Expression string
}

// JoinParams joins against another table on a single key pair. Both keys
// are required; a keyless join would be an unbounded cartesian product.
type JoinParams struct {
	LeftKey  string
	RightKey string
}

// Operation is a tagged variant over the supported operation kinds. Exactly
// the params struct matching Type must be set.
type Operation struct {
	Type      OpType
	Filter    *FilterParams
	Sort      *SortParams
	Aggregate *AggregateParams
	Compute   *ComputeParams
	Join      *JoinParams
}

// String renders the operation for plan explanation.
func (o Operation) String() string {
	switch o.Type {
	case OpFilter:
		if o.Filter == nil {
			return "filter(?)"
		}
		if o.Filter.Operator == CmpBetween {
			lo, hi := ">=", "<="
			if o.Filter.LowExclusive {
				lo = ">"
			}
			if o.Filter.HighExclusive {
				hi = "<"
			}
			return fmt.Sprintf("filter(%s %s %v and %s %v)", o.Filter.Column, lo, o.Filter.Value, hi, o.Filter.High)
		}
		return fmt.Sprintf("filter(%s %s %v)", o.Filter.Column, o.Filter.Operator, o.Filter.Value)
	case OpSort:
		if o.Sort == nil {
			return "sort(?)"
		}
		keys := make([]string, len(o.Sort.Keys))
		for i, k := range o.Sort.Keys {
			dir := "asc"
			if k.Descending {
				dir = "desc"
			}
			keys[i] = k.Column + " " + dir
		}
		return fmt.Sprintf("sort(%s)", strings.Join(keys, ", "))
	case OpAggregate:
		if o.Aggregate == nil {
			return "aggregate(?)"
		}
		return fmt.Sprintf("aggregate(by %s)", strings.Join(o.Aggregate.GroupBy, ", "))
	case OpCompute:
		if o.Compute == nil {
			return "compute(?)"
		}
		return fmt.Sprintf("compute(%s = %s)", o.Compute.Name, o.Compute.Expression)
	case OpJoin:
		if o.Join == nil {
			return "join(?)"
		}
		return fmt.Sprintf("join(%s = %s)", o.Join.LeftKey, o.Join.RightKey)
	default:
		return string(o.Type)
	}
}

// ColumnStats carries per-column statistics feeding the cost model.
type ColumnStats struct {
	Min           float64
	Max           float64
	NullCount     int64
	DistinctCount int64
}

// TableMetadata describes the input table for planning.
type TableMetadata struct {
	RowCount    int64
	ColumnCount int
	Columns     map[string]ColumnStats
}

// QueryPlan is a validated, reordered operation sequence with cost and
// cardinality estimates.
type QueryPlan struct {
	Operations    []Operation
	EstimatedCost float64
	EstimatedRows int64
}

// String renders the plan, one operation per line.
func (p *QueryPlan) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "QueryPlan[cost=%.1f rows=%d]", p.EstimatedCost, p.EstimatedRows)
	for i, op := range p.Operations {
		fmt.Fprintf(&sb, "\n  %d: %s", i, op.String())
	}
	return sb.String()
}
