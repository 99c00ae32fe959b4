package table

import (
	"fmt"

	"github.com/quiverdata/quiver/internal/errors"
	"github.com/quiverdata/quiver/internal/expr"
)

// Compute returns a new table with one derived column appended. The
// expression is evaluated once per row against a read-only row view; the
// original columns are shared, not copied.
func (t *Table) Compute(name string, e expr.Expr) (*Table, error) {
	if name == "" {
		return nil, errors.NewValidation("Compute", "derived column name must not be empty")
	}
	if t.HasColumn(name) {
		return nil, errors.NewValidation("Compute",
			fmt.Sprintf("column %q already exists", name))
	}
	if e == nil {
		return nil, errors.NewValidation("Compute", "expression must not be nil")
	}
	for _, ref := range expr.Columns(e) {
		if !t.HasColumn(ref) {
			return nil, errors.NewColumnNotFound("Compute", ref)
		}
	}

	values := make([]any, t.numRows)
	for i := 0; i < t.numRows; i++ {
		v, err := expr.Eval(e, t.Row(i))
		if err != nil {
			return nil, err
		}
		values[i] = v
	}

	derived, err := columnFromValues(name, values, nil)
	if err != nil {
		return nil, err
	}

	cols := make([]*Column, 0, len(t.columns)+1)
	for _, col := range t.columns {
		cols = append(cols, col.share())
	}
	cols = append(cols, derived)
	return New(cols...)
}
