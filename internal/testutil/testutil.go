// Package testutil provides shared helpers for building test tables,
// consolidating the allocator setup and column plumbing that every
// package test would otherwise repeat.
package testutil

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"

	"github.com/quiverdata/quiver/internal/table"
)

// Allocator returns the allocator used across tests.
func Allocator(tb testing.TB) memory.Allocator {
	tb.Helper()
	return memory.NewGoAllocator()
}

// MakeTable builds a table from column builders, failing the test on
// construction errors and registering cleanup.
func MakeTable(tb testing.TB, cols ...*table.Column) *table.Table {
	tb.Helper()
	t, err := table.New(cols...)
	require.NoError(tb, err)
	tb.Cleanup(t.Release)
	return t
}

// Int64Col builds an int64 column with no nulls.
func Int64Col(tb testing.TB, name string, values ...int64) *table.Column {
	tb.Helper()
	return table.NewInt64Column(name, values, nil, Allocator(tb))
}

// Int64ColNulls builds an int64 column with a validity mask.
func Int64ColNulls(tb testing.TB, name string, values []int64, valid []bool) *table.Column {
	tb.Helper()
	return table.NewInt64Column(name, values, valid, Allocator(tb))
}

// Float64Col builds a float64 column with no nulls.
func Float64Col(tb testing.TB, name string, values ...float64) *table.Column {
	tb.Helper()
	return table.NewFloat64Column(name, values, nil, Allocator(tb))
}

// Float64ColNulls builds a float64 column with a validity mask.
func Float64ColNulls(tb testing.TB, name string, values []float64, valid []bool) *table.Column {
	tb.Helper()
	return table.NewFloat64Column(name, values, valid, Allocator(tb))
}

// StringCol builds a string column with no nulls.
func StringCol(tb testing.TB, name string, values ...string) *table.Column {
	tb.Helper()
	return table.NewStringColumn(name, values, nil, Allocator(tb))
}

// BoolCol builds a bool column with no nulls.
func BoolCol(tb testing.TB, name string, values ...bool) *table.Column {
	tb.Helper()
	return table.NewBoolColumn(name, values, nil, Allocator(tb))
}

// ColumnValues collects a column's cells as a []any, nil for nulls.
func ColumnValues(tb testing.TB, t *table.Table, name string) []any {
	tb.Helper()
	col, ok := t.Column(name)
	require.True(tb, ok, "column %q not found", name)
	out := make([]any, col.Len())
	for i := range out {
		out[i] = col.Value(i)
	}
	return out
}
