// Package sampler reduces a table's row count for visualization. Every
// strategy selects row indices from the input, so output rows are always
// an exact subset of input rows; values are never synthesized.
package sampler

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/quiverdata/quiver/internal/errors"
	"github.com/quiverdata/quiver/internal/table"
)

// Strategy names a downsampling algorithm.
type Strategy string

const (
	Random     Strategy = "random"
	Stratified Strategy = "stratified"
	Systematic Strategy = "systematic"
	LTTB       Strategy = "lttb"
	Adaptive   Strategy = "adaptive"
)

// Options configures a sampling run.
type Options struct {
	Strategy   Strategy
	SampleSize int
	// StratifyColumn partitions rows for the stratified strategy.
	StratifyColumn string
	// XColumn and YColumn are the numeric series for LTTB.
	XColumn string
	YColumn string
	// Seed makes the random strategy deterministic when non-zero.
	Seed int64
}

// Sample returns a table with at most opts.SampleSize rows. When the
// input is already small enough the input rows are returned unchanged.
func Sample(t *table.Table, opts Options) (*table.Table, error) {
	if opts.SampleSize <= 0 {
		return nil, errors.NewValidation("Sample", "sample size must be positive")
	}

	indices, err := sampleIndices(t, opts)
	if err != nil {
		return nil, err
	}
	return t.TakeRows(indices)
}

// sampleIndices picks the kept row indices for a strategy. All strategies
// return indices in ascending order except LTTB, which is already ordered
// by construction.
func sampleIndices(t *table.Table, opts Options) ([]int, error) {
	n := t.NumRows()
	if opts.SampleSize >= n {
		return identity(n), nil
	}

	switch opts.Strategy {
	case Random:
		return randomIndices(n, opts.SampleSize, opts.Seed), nil
	case Stratified:
		return stratifiedIndices(t, opts)
	case Systematic:
		return systematicIndices(n, opts.SampleSize), nil
	case LTTB:
		return lttbIndices(t, opts)
	case Adaptive:
		return adaptiveIndices(t, opts)
	default:
		return nil, errors.NewValidation("Sample", fmt.Sprintf("unknown strategy %q", opts.Strategy))
	}
}

func identity(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// randomIndices picks size distinct indices uniformly, returned ascending.
// A non-zero seed gives a deterministic draw.
func randomIndices(n, size int, seed int64) []int {
	rng := rand.New(rand.NewSource(seed))
	if seed == 0 {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}

	perm := rng.Perm(n)[:size]
	sort.Ints(perm)
	return perm
}

// stratifiedIndices partitions rows by the stratify column's distinct
// values and allocates each group a share proportional to its size, with
// a minimum of one row per non-empty group. Overshoot from the minimum
// guarantee is trimmed back to exactly the requested size.
func stratifiedIndices(t *table.Table, opts Options) ([]int, error) {
	col, ok := t.Column(opts.StratifyColumn)
	if !ok {
		return nil, errors.NewColumnNotFound("Sample", opts.StratifyColumn)
	}

	n := t.NumRows()
	var order []string
	groups := make(map[string][]int)
	for i := 0; i < n; i++ {
		key := stratumKey(col, i)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	if opts.Seed == 0 {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}

	var picked []int
	for _, key := range order {
		rows := groups[key]
		share := opts.SampleSize * len(rows) / n
		if share < 1 {
			share = 1
		}
		if share > len(rows) {
			share = len(rows)
		}
		sub := rng.Perm(len(rows))[:share]
		for _, j := range sub {
			picked = append(picked, rows[j])
		}
	}

	// The per-group minimum can overshoot the requested size.
	if len(picked) > opts.SampleSize {
		rng.Shuffle(len(picked), func(i, j int) { picked[i], picked[j] = picked[j], picked[i] })
		picked = picked[:opts.SampleSize]
	}
	sort.Ints(picked)
	return picked, nil
}

// stratumKey encodes one row's stratify value. The type tag keeps the
// null stratum distinct from any real value, including the string "null".
func stratumKey(col *table.Column, row int) string {
	if col.IsNull(row) {
		return "n|"
	}
	v := col.Value(row)
	return fmt.Sprintf("%T:%v", v, v)
}

// systematicIndices takes every stride-th row starting from index 0.
func systematicIndices(n, size int) []int {
	stride := n / size
	if stride < 1 {
		stride = 1
	}
	out := make([]int, 0, size)
	for i := 0; i < n && len(out) < size; i += stride {
		out = append(out, i)
	}
	return out
}

// lttbIndices implements Largest-Triangle-Three-Buckets downsampling: the
// first and last rows are always kept, the remainder is split into
// near-equal buckets, and each bucket keeps the point forming the largest
// triangle with the previously selected point and the next bucket's
// centroid.
func lttbIndices(t *table.Table, opts Options) ([]int, error) {
	xs, err := numericValues(t, opts.XColumn)
	if err != nil {
		return nil, err
	}
	ys, err := numericValues(t, opts.YColumn)
	if err != nil {
		return nil, err
	}

	n := t.NumRows()
	size := opts.SampleSize
	if size < 3 {
		// Too few output points for interior buckets; keep endpoints.
		if size == 1 || n == 1 {
			return []int{0}, nil
		}
		return []int{0, n - 1}, nil
	}

	out := make([]int, 0, size)
	out = append(out, 0)
	prev := 0

	buckets := size - 2
	interior := float64(n-2) / float64(buckets)

	for b := 0; b < buckets; b++ {
		start := int(float64(b)*interior) + 1
		end := int(float64(b+1)*interior) + 1
		if end >= n-1 {
			end = n - 1
		}

		// Centroid of the following bucket (or the final point).
		nextStart := end
		nextEnd := int(float64(b+2)*interior) + 1
		if b == buckets-1 || nextEnd > n-1 {
			nextEnd = n - 1
		}
		var cx, cy float64
		count := 0
		for i := nextStart; i <= nextEnd && i < n; i++ {
			cx += xs[i]
			cy += ys[i]
			count++
		}
		if count > 0 {
			cx /= float64(count)
			cy /= float64(count)
		}

		best := start
		bestArea := -1.0
		for i := start; i < end; i++ {
			// Twice the triangle area via the 2-D cross product.
			area := abs((xs[prev]-cx)*(ys[i]-ys[prev]) - (xs[prev]-xs[i])*(cy-ys[prev]))
			if area > bestArea {
				bestArea = area
				best = i
			}
		}
		out = append(out, best)
		prev = best
	}

	out = append(out, n-1)
	return out, nil
}

// adaptiveIndices is a no-op for small tables, prefers LTTB when a column
// name looks time-like and another numeric column exists, and otherwise
// falls back to random sampling.
func adaptiveIndices(t *table.Table, opts Options) ([]int, error) {
	n := t.NumRows()
	if n <= opts.SampleSize {
		return identity(n), nil
	}

	if x, y, ok := timeSeriesColumns(t); ok {
		lttbOpts := opts
		lttbOpts.XColumn = x
		lttbOpts.YColumn = y
		return lttbIndices(t, lttbOpts)
	}
	return randomIndices(n, opts.SampleSize, opts.Seed), nil
}

// timeSeriesColumns looks for a numeric column whose name suggests a time
// axis, paired with the first other numeric column.
func timeSeriesColumns(t *table.Table) (x, y string, ok bool) {
	for _, name := range t.ColumnNames() {
		col, _ := t.Column(name)
		if !col.IsNumeric() || !looksTimeLike(name) {
			continue
		}
		for _, other := range t.ColumnNames() {
			if other == name {
				continue
			}
			otherCol, _ := t.Column(other)
			if otherCol.IsNumeric() {
				return name, other, true
			}
		}
	}
	return "", "", false
}

func looksTimeLike(name string) bool {
	lower := strings.ToLower(name)
	for _, hint := range []string{"time", "date", "timestamp", "epoch"} {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return strings.HasSuffix(lower, "_at") || lower == "ts" || lower == "t"
}

func numericValues(t *table.Table, name string) ([]float64, error) {
	if name == "" {
		return nil, errors.NewValidation("Sample", "lttb requires x and y columns")
	}
	col, ok := t.Column(name)
	if !ok {
		return nil, errors.NewColumnNotFound("Sample", name)
	}
	if !col.IsNumeric() {
		return nil, errors.NewValidation("Sample",
			fmt.Sprintf("lttb requires numeric columns, %q is %s", name, col.DataType()))
	}
	out := make([]float64, col.Len())
	for i := range out {
		if v, ok := col.Float64(i); ok {
			out[i] = v
		}
	}
	return out, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
