package table

import (
	"github.com/quiverdata/quiver/internal/errors"
	"github.com/quiverdata/quiver/internal/expr"
)

// Filter returns a new table containing the rows for which the predicate
// evaluates to true, preserving row order. Predicates referencing unknown
// columns fail before any row is scanned.
func (t *Table) Filter(predicate expr.Expr) (*Table, error) {
	if predicate == nil {
		return nil, errors.NewValidation("Filter", "predicate must not be nil")
	}
	for _, name := range expr.Columns(predicate) {
		if !t.HasColumn(name) {
			return nil, errors.NewColumnNotFound("Filter", name)
		}
	}

	indices := make([]int, 0, t.numRows)
	for i := 0; i < t.numRows; i++ {
		keep, err := expr.EvalBool(predicate, t.Row(i))
		if err != nil {
			return nil, err
		}
		if keep {
			indices = append(indices, i)
		}
	}
	return t.takeRows(indices)
}
