// Package quiver is an in-process columnar data engine for interactive
// visualization backends: immutable Arrow-backed tables with pure
// operators, a cost-based query planner, downsampling strategies,
// untrusted-input parsers for Arrow IPC and Parquet, a size-classed
// buffer pool, and a quadtree for spatial picking.
//
// This package is the sole public API; it re-exports the internal
// engine packages.
package quiver

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/quiverdata/quiver/internal/colio"
	"github.com/quiverdata/quiver/internal/config"
	"github.com/quiverdata/quiver/internal/errors"
	"github.com/quiverdata/quiver/internal/expr"
	"github.com/quiverdata/quiver/internal/optimizer"
	"github.com/quiverdata/quiver/internal/pool"
	"github.com/quiverdata/quiver/internal/quadtree"
	"github.com/quiverdata/quiver/internal/sampler"
	"github.com/quiverdata/quiver/internal/table"
)

// Core table types.
type (
	Table       = table.Table
	Column      = table.Column
	SortKey     = table.SortKey
	Aggregation = table.Aggregation
	AggFunc     = table.AggFunc
)

// Aggregation functions.
const (
	AggCount    = table.AggCount
	AggSum      = table.AggSum
	AggAvg      = table.AggAvg
	AggMin      = table.AggMin
	AggMax      = table.AggMax
	AggStddev   = table.AggStddev
	AggVariance = table.AggVariance
	AggFirst    = table.AggFirst
	AggLast     = table.AggLast
)

// NewTable builds a table from columns, validating that names are unique
// and lengths agree.
func NewTable(columns ...*Column) (*Table, error) {
	return table.New(columns...)
}

// Column constructors. A nil valid slice means no nulls.
func NewInt64Column(name string, values []int64, valid []bool, mem memory.Allocator) *Column {
	return table.NewInt64Column(name, values, valid, mem)
}

func NewFloat64Column(name string, values []float64, valid []bool, mem memory.Allocator) *Column {
	return table.NewFloat64Column(name, values, valid, mem)
}

func NewStringColumn(name string, values []string, valid []bool, mem memory.Allocator) *Column {
	return table.NewStringColumn(name, values, valid, mem)
}

func NewBoolColumn(name string, values []bool, valid []bool, mem memory.Allocator) *Column {
	return table.NewBoolColumn(name, values, valid, mem)
}

// Expression building. Expressions come either from the fluent
// constructors (Col, Lit) or from ParseExpr, which accepts a restricted
// arithmetic grammar and never executes host code.
type Expr = expr.Expr

// Col references a column in an expression.
func Col(name string) *expr.ColumnExpr { return expr.Col(name) }

// Lit wraps a literal value in an expression.
func Lit(value any) *expr.LiteralExpr { return expr.Lit(value) }

// ParseExpr parses an expression string such as "price * 0.9" or
// "a > 1 && b < 2 ? x : y". Unknown functions and identifiers outside the
// allow list are rejected at parse time.
func ParseExpr(src string) (Expr, error) { return expr.Parse(src) }

// ExprColumns returns the distinct column names an expression reads, in
// first-reference order.
func ExprColumns(e Expr) []string { return expr.Columns(e) }

// Query optimization.
type (
	Optimizer       = optimizer.Optimizer
	Operation       = optimizer.Operation
	QueryPlan       = optimizer.QueryPlan
	TableMetadata   = optimizer.TableMetadata
	ColumnStats     = optimizer.ColumnStats
	FilterParams    = optimizer.FilterParams
	SortParams      = optimizer.SortParams
	AggregateParams = optimizer.AggregateParams
	ComputeParams   = optimizer.ComputeParams
	JoinParams      = optimizer.JoinParams
)

// Operation kinds.
const (
	OpFilter    = optimizer.OpFilter
	OpSort      = optimizer.OpSort
	OpAggregate = optimizer.OpAggregate
	OpCompute   = optimizer.OpCompute
	OpJoin      = optimizer.OpJoin
)

// Filter comparisons.
const (
	CmpEq      = optimizer.CmpEq
	CmpNe      = optimizer.CmpNe
	CmpLt      = optimizer.CmpLt
	CmpLe      = optimizer.CmpLe
	CmpGt      = optimizer.CmpGt
	CmpGe      = optimizer.CmpGe
	CmpBetween = optimizer.CmpBetween
)

// NewOptimizer returns an optimizer with default limits.
func NewOptimizer() *Optimizer { return optimizer.New() }

// Sampling.
type (
	SampleOptions  = sampler.Options
	SampleStrategy = sampler.Strategy
)

const (
	SampleRandom     = sampler.Random
	SampleStratified = sampler.Stratified
	SampleSystematic = sampler.Systematic
	SampleLTTB       = sampler.LTTB
	SampleAdaptive   = sampler.Adaptive
)

// Sample downsamples a table; output rows are always a subset of input
// rows.
func Sample(t *Table, opts SampleOptions) (*Table, error) {
	return sampler.Sample(t, opts)
}

// Buffer pooling.
type (
	BufferPool = pool.BufferPool
	PoolStats  = pool.Stats
)

// NewBufferPool creates a buffer pool with default limits. Pools are
// explicit: pass the instance to the components that should share it.
func NewBufferPool(opts ...pool.Option) *BufferPool { return pool.New(opts...) }

// Parsing.
type (
	ParseOptions = colio.Options
	ParseResult  = colio.Result
)

// ParseArrowIPC decodes an Arrow IPC buffer (file or stream format).
func ParseArrowIPC(buf []byte, opts ParseOptions) (*ParseResult, error) {
	return colio.ParseArrowIPC(buf, opts)
}

// ParseParquet decodes a Parquet buffer.
func ParseParquet(ctx context.Context, buf []byte, opts ParseOptions) (*ParseResult, error) {
	return colio.ParseParquet(ctx, buf, opts)
}

// StreamArrowIPC decodes an Arrow IPC buffer one record batch at a time.
func StreamArrowIPC(buf []byte, opts ParseOptions, fn func(*Table) error) error {
	return colio.StreamArrowIPC(buf, opts, fn)
}

// Spatial indexing.
type (
	Quadtree = quadtree.Quadtree
	Point    = quadtree.Point
	Bounds   = quadtree.Bounds
)

// NewQuadtree creates a quadtree over the given bounds.
func NewQuadtree(bounds Bounds, capacity int) *Quadtree {
	return quadtree.New(bounds, capacity)
}

// Configuration.
type Config = config.Config

// DefaultConfig returns engine limits at their defaults.
func DefaultConfig() Config { return config.Default() }

// LoadConfig loads engine limits from a YAML or JSON file.
func LoadConfig(path string) (Config, error) { return config.LoadFromFile(path) }

// Error classification. All engine errors carry one of four kinds;
// these predicates match through wrapping.
var (
	IsValidationError       = errors.IsValidation
	IsResourceLimitError    = errors.IsResourceLimit
	IsCyclicDependencyError = errors.IsCyclicDependency
	IsFormatError           = errors.IsFormat
)
