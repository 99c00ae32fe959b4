package table

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/quiverdata/quiver/internal/errors"
)

// Table represents an immutable set of uniquely-named, equal-length
// columns. Operators never mutate a table; they return new tables that
// share unmodified columns by reference.
type Table struct {
	columns []*Column
	byName  map[string]int
	numRows int
}

// New creates a table from columns, validating unique names and uniform
// length. The table takes ownership of the given columns.
func New(columns ...*Column) (*Table, error) {
	byName := make(map[string]int, len(columns))
	numRows := 0

	for i, col := range columns {
		if _, dup := byName[col.Name()]; dup {
			return nil, errors.NewValidation("NewTable",
				fmt.Sprintf("duplicate column name %q", col.Name()))
		}
		byName[col.Name()] = i
		if i == 0 {
			numRows = col.Len()
		} else if col.Len() != numRows {
			return nil, errors.ErrMismatchedLength
		}
	}

	return &Table{columns: columns, byName: byName, numRows: numRows}, nil
}

// NumRows returns the number of rows
func (t *Table) NumRows() int { return t.numRows }

// NumCols returns the number of columns
func (t *Table) NumCols() int { return len(t.columns) }

// ColumnNames returns the column names in order
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, col := range t.columns {
		names[i] = col.Name()
	}
	return names
}

// Column returns the column with the given name
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.byName[name]
	if !ok {
		return nil, false
	}
	return t.columns[i], true
}

// ColumnAt returns the column at position i
func (t *Table) ColumnAt(i int) *Column { return t.columns[i] }

// HasColumn checks if a column exists
func (t *Table) HasColumn(name string) bool {
	_, ok := t.byName[name]
	return ok
}

// Schema returns the ordered field list
func (t *Table) Schema() []arrow.Field {
	fields := make([]arrow.Field, len(t.columns))
	for i, col := range t.columns {
		fields[i] = arrow.Field{
			Name:     col.Name(),
			Type:     col.DataType(),
			Nullable: col.NullCount() > 0,
		}
	}
	return fields
}

// Value returns the cell at (column, row); nil means null.
func (t *Table) Value(column string, row int) (any, error) {
	col, ok := t.Column(column)
	if !ok {
		return nil, errors.NewColumnNotFound("Value", column)
	}
	if row < 0 || row >= t.numRows {
		return nil, errors.NewValidation("Value", fmt.Sprintf("row %d out of range [0,%d)", row, t.numRows))
	}
	return col.Value(row), nil
}

// Select returns a new table with only the named columns, in the given
// order, sharing column data with the receiver.
func (t *Table) Select(names ...string) (*Table, error) {
	cols := make([]*Column, 0, len(names))
	for _, name := range names {
		col, ok := t.Column(name)
		if !ok {
			releaseColumns(cols)
			return nil, errors.NewColumnNotFound("Select", name)
		}
		cols = append(cols, col.share())
	}
	return New(cols...)
}

// Slice returns a new table with rows from start (inclusive) to end
// (exclusive). Out-of-range bounds clamp; an inverted range is empty.
func (t *Table) Slice(start, end int) (*Table, error) {
	if start < 0 {
		start = 0
	}
	if end > t.numRows {
		end = t.numRows
	}
	if start >= end {
		return t.takeRows(nil)
	}
	indices := make([]int, 0, end-start)
	for i := start; i < end; i++ {
		indices = append(indices, i)
	}
	return t.takeRows(indices)
}

// String returns a string representation of the table
func (t *Table) String() string {
	if len(t.columns) == 0 {
		return "Table[empty]"
	}
	parts := []string{fmt.Sprintf("Table[%dx%d]", t.NumRows(), t.NumCols())}
	for _, col := range t.columns {
		parts = append(parts, fmt.Sprintf("  %s: %s", col.Name(), col.DataType()))
	}
	return strings.Join(parts, "\n")
}

// Release releases all underlying Arrow memory
func (t *Table) Release() {
	for _, col := range t.columns {
		col.Release()
	}
}

// Row returns a read-only view over one row, usable as an expression
// evaluation context.
func (t *Table) Row(index int) *RowView {
	return &RowView{table: t, index: index}
}

// RowView is a read-only view over a single table row.
type RowView struct {
	table *Table
	index int
}

// Value returns the cell for the named column; nil means null.
func (r *RowView) Value(column string) (any, error) {
	col, ok := r.table.Column(column)
	if !ok {
		return nil, errors.NewColumnNotFound("Row", column)
	}
	return col.Value(r.index), nil
}

// Index returns the row's position in the table.
func (r *RowView) Index() int { return r.index }

// takeRows builds a new table containing exactly the given source rows,
// in the given order. Nulls are preserved.
func (t *Table) takeRows(indices []int) (*Table, error) {
	mem := memory.NewGoAllocator()
	cols := make([]*Column, 0, len(t.columns))

	for _, src := range t.columns {
		col, err := takeColumn(src, indices, mem)
		if err != nil {
			releaseColumns(cols)
			return nil, err
		}
		cols = append(cols, col)
	}
	return New(cols...)
}

// takeColumn materializes the selected rows of one column.
func takeColumn(src *Column, indices []int, mem memory.Allocator) (*Column, error) {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	switch arr := src.array.(type) {
	case *array.Int64:
		builder := array.NewInt64Builder(mem)
		defer builder.Release()
		for _, i := range indices {
			if arr.IsNull(i) {
				builder.AppendNull()
			} else {
				builder.Append(arr.Value(i))
			}
		}
		out := builder.NewArray()
		defer out.Release()
		return NewColumn(src.name, out), nil
	case *array.Float64:
		builder := array.NewFloat64Builder(mem)
		defer builder.Release()
		for _, i := range indices {
			if arr.IsNull(i) {
				builder.AppendNull()
			} else {
				builder.Append(arr.Value(i))
			}
		}
		out := builder.NewArray()
		defer out.Release()
		return NewColumn(src.name, out), nil
	case *array.String:
		builder := array.NewStringBuilder(mem)
		defer builder.Release()
		for _, i := range indices {
			if arr.IsNull(i) {
				builder.AppendNull()
			} else {
				builder.Append(arr.Value(i))
			}
		}
		out := builder.NewArray()
		defer out.Release()
		return NewColumn(src.name, out), nil
	case *array.Boolean:
		builder := array.NewBooleanBuilder(mem)
		defer builder.Release()
		for _, i := range indices {
			if arr.IsNull(i) {
				builder.AppendNull()
			} else {
				builder.Append(arr.Value(i))
			}
		}
		out := builder.NewArray()
		defer out.Release()
		return NewColumn(src.name, out), nil
	case *array.Int32:
		builder := array.NewInt32Builder(mem)
		defer builder.Release()
		for _, i := range indices {
			if arr.IsNull(i) {
				builder.AppendNull()
			} else {
				builder.Append(arr.Value(i))
			}
		}
		out := builder.NewArray()
		defer out.Release()
		return NewColumn(src.name, out), nil
	case *array.Float32:
		builder := array.NewFloat32Builder(mem)
		defer builder.Release()
		for _, i := range indices {
			if arr.IsNull(i) {
				builder.AppendNull()
			} else {
				builder.Append(arr.Value(i))
			}
		}
		out := builder.NewArray()
		defer out.Release()
		return NewColumn(src.name, out), nil
	default:
		return nil, errors.NewValidation("takeRows",
			fmt.Sprintf("unsupported column type %s", src.DataType()))
	}
}

// TakeRows returns a new table containing the given source rows in order.
// Every output row is an exact copy of an input row.
func (t *Table) TakeRows(indices []int) (*Table, error) {
	for _, i := range indices {
		if i < 0 || i >= t.numRows {
			return nil, errors.NewValidation("TakeRows",
				fmt.Sprintf("row index %d out of range [0,%d)", i, t.numRows))
		}
	}
	return t.takeRows(indices)
}

func releaseColumns(cols []*Column) {
	for _, c := range cols {
		c.Release()
	}
}
