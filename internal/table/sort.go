package table

import (
	"container/heap"
	"sort"

	"golang.org/x/exp/constraints"

	"github.com/quiverdata/quiver/internal/errors"
)

// SortKey names one sort column and its direction.
type SortKey struct {
	Column     string
	Descending bool
}

// Sort returns a new table with rows permuted into sorted order. The sort
// is stable (equal keys keep their original relative order) and nulls sort
// last regardless of direction. Sorting by a missing column is an error,
// never a no-op.
func (t *Table) Sort(keys ...SortKey) (*Table, error) {
	cols, err := t.sortColumns(keys)
	if err != nil {
		return nil, err
	}

	indices := make([]int, t.numRows)
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(a, b int) bool {
		return compareRows(cols, keys, indices[a], indices[b]) < 0
	})
	return t.takeRows(indices)
}

// TopK returns the first k rows of the sorted order without sorting the
// whole table, using a bounded max-heap of size k.
func (t *Table) TopK(k int, keys ...SortKey) (*Table, error) {
	if k < 0 {
		return nil, errors.NewValidation("TopK", "k must be non-negative")
	}
	cols, err := t.sortColumns(keys)
	if err != nil {
		return nil, err
	}
	if k >= t.numRows {
		return t.Sort(keys...)
	}

	// The heap root is the worst row currently kept, so each incoming row
	// is compared against the root only.
	h := &rowHeap{cols: cols, keys: keys}
	for i := 0; i < t.numRows; i++ {
		if h.Len() < k {
			heap.Push(h, i)
			continue
		}
		if compareRows(cols, keys, i, h.indices[0]) < 0 {
			h.indices[0] = i
			heap.Fix(h, 0)
		}
	}

	indices := append([]int(nil), h.indices...)
	sort.SliceStable(indices, func(a, b int) bool {
		if c := compareRows(cols, keys, indices[a], indices[b]); c != 0 {
			return c < 0
		}
		// The heap visits rows in input order, so original index breaks
		// ties to keep the stable-sort prefix property.
		return indices[a] < indices[b]
	})
	return t.takeRows(indices)
}

func (t *Table) sortColumns(keys []SortKey) ([]*Column, error) {
	if len(keys) == 0 {
		return nil, errors.NewValidation("Sort", "at least one sort key is required")
	}
	cols := make([]*Column, len(keys))
	for i, key := range keys {
		col, ok := t.Column(key.Column)
		if !ok {
			return nil, errors.NewColumnNotFound("Sort", key.Column)
		}
		cols[i] = col
	}
	return cols, nil
}

// compareRows compares two rows under the given keys. Nulls compare after
// every non-null value in both directions.
func compareRows(cols []*Column, keys []SortKey, a, b int) int {
	for i, col := range cols {
		aNull := col.IsNull(a)
		bNull := col.IsNull(b)
		if aNull || bNull {
			if aNull && bNull {
				continue
			}
			if aNull {
				return 1
			}
			return -1
		}

		c := compareValues(col.Value(a), col.Value(b))
		if c == 0 {
			continue
		}
		if keys[i].Descending {
			return -c
		}
		return c
	}
	return 0
}

// compareValues orders two non-null cells of the same column.
func compareValues(a, b any) int {
	switch av := a.(type) {
	case int64:
		switch bv := b.(type) {
		case int64:
			return compareOrdered(av, bv)
		case float64:
			return compareOrdered(float64(av), bv)
		}
	case float64:
		switch bv := b.(type) {
		case float64:
			return compareOrdered(av, bv)
		case int64:
			return compareOrdered(av, float64(bv))
		}
	case string:
		if bv, ok := b.(string); ok {
			return compareOrdered(av, bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			default:
				return 1
			}
		}
	}
	return 0
}

func compareOrdered[T constraints.Ordered](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// rowHeap is a max-heap of row indices under the sort keys: the root is
// the largest (worst) kept row.
type rowHeap struct {
	indices []int
	cols    []*Column
	keys    []SortKey
}

func (h *rowHeap) Len() int { return len(h.indices) }

func (h *rowHeap) Less(i, j int) bool {
	if c := compareRows(h.cols, h.keys, h.indices[i], h.indices[j]); c != 0 {
		return c > 0
	}
	// Among equal keys the later original row is worse, so it gets
	// evicted first.
	return h.indices[i] > h.indices[j]
}

func (h *rowHeap) Swap(i, j int) { h.indices[i], h.indices[j] = h.indices[j], h.indices[i] }

func (h *rowHeap) Push(x any) { h.indices = append(h.indices, x.(int)) }

func (h *rowHeap) Pop() any {
	old := h.indices
	n := len(old)
	x := old[n-1]
	h.indices = old[:n-1]
	return x
}
