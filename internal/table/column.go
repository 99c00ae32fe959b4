// Package table provides the immutable columnar value container and the
// row/column operators built on it. Columns are backed by Apache Arrow
// arrays; every operator returns a new Table and shares unmodified columns
// by reference.
package table

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Column is a named, typed, nullable data series backed by an Arrow array.
type Column struct {
	name  string
	array arrow.Array
}

// NewColumn wraps an Arrow array as a column, retaining a reference.
func NewColumn(name string, arr arrow.Array) *Column {
	arr.Retain()
	return &Column{name: name, array: arr}
}

// NewInt64Column builds an int64 column. A nil valid slice means all
// values are non-null.
func NewInt64Column(name string, values []int64, valid []bool, mem memory.Allocator) *Column {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	builder := array.NewInt64Builder(mem)
	defer builder.Release()
	builder.AppendValues(values, valid)
	return &Column{name: name, array: builder.NewArray()}
}

// NewFloat64Column builds a float64 column.
func NewFloat64Column(name string, values []float64, valid []bool, mem memory.Allocator) *Column {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	builder := array.NewFloat64Builder(mem)
	defer builder.Release()
	builder.AppendValues(values, valid)
	return &Column{name: name, array: builder.NewArray()}
}

// NewStringColumn builds a string column.
func NewStringColumn(name string, values []string, valid []bool, mem memory.Allocator) *Column {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	builder := array.NewStringBuilder(mem)
	defer builder.Release()
	builder.AppendValues(values, valid)
	return &Column{name: name, array: builder.NewArray()}
}

// NewBoolColumn builds a boolean column.
func NewBoolColumn(name string, values []bool, valid []bool, mem memory.Allocator) *Column {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	builder := array.NewBooleanBuilder(mem)
	defer builder.Release()
	builder.AppendValues(values, valid)
	return &Column{name: name, array: builder.NewArray()}
}

// Name returns the column name
func (c *Column) Name() string { return c.name }

// Len returns the number of rows in the column
func (c *Column) Len() int { return c.array.Len() }

// DataType returns the Arrow data type
func (c *Column) DataType() arrow.DataType { return c.array.DataType() }

// IsNull checks if the value at index is null
func (c *Column) IsNull(index int) bool { return c.array.IsNull(index) }

// NullCount returns the number of null values
func (c *Column) NullCount() int { return c.array.NullN() }

// Value returns the value at index as one of int64, float64, string, bool
// or nil for null. Narrow numeric types widen to int64/float64.
func (c *Column) Value(index int) any {
	if index < 0 || index >= c.array.Len() || c.array.IsNull(index) {
		return nil
	}

	switch arr := c.array.(type) {
	case *array.Int64:
		return arr.Value(index)
	case *array.Int32:
		return int64(arr.Value(index))
	case *array.Int16:
		return int64(arr.Value(index))
	case *array.Int8:
		return int64(arr.Value(index))
	case *array.Uint32:
		return int64(arr.Value(index))
	case *array.Float64:
		return arr.Value(index)
	case *array.Float32:
		return float64(arr.Value(index))
	case *array.String:
		return arr.Value(index)
	case *array.Boolean:
		return arr.Value(index)
	case *array.Timestamp:
		return int64(arr.Value(index))
	default:
		return nil
	}
}

// Float64 returns the value at index coerced to float64. The second
// result is false when the value is null or not numeric.
func (c *Column) Float64(index int) (float64, bool) {
	v := c.Value(index)
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// IsNumeric reports whether the column holds a numeric Arrow type.
func (c *Column) IsNumeric() bool {
	switch c.array.DataType().ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64,
		arrow.FLOAT32, arrow.FLOAT64, arrow.TIMESTAMP:
		return true
	default:
		return false
	}
}

// Array returns the underlying Arrow array (retains a reference)
func (c *Column) Array() arrow.Array {
	if c.array != nil {
		c.array.Retain()
		return c.array
	}
	return nil
}

// Retain increments the reference count of the underlying array
func (c *Column) Retain() {
	if c.array != nil {
		c.array.Retain()
	}
}

// Release releases the underlying Arrow memory
func (c *Column) Release() {
	if c.array != nil {
		c.array.Release()
	}
}

// String returns a string representation of the column
func (c *Column) String() string {
	return fmt.Sprintf("Column[%s]: %s (len=%d)", c.array.DataType(), c.name, c.Len())
}

// share returns a column sharing this column's array, with a fresh
// reference for the new owner.
func (c *Column) share() *Column {
	c.array.Retain()
	return &Column{name: c.name, array: c.array}
}
