package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	xxhash "github.com/cespare/xxhash/v2"

	"github.com/quiverdata/quiver/internal/errors"
)

// AggFunc names a supported aggregation function.
type AggFunc string

const (
	AggSum      AggFunc = "sum"
	AggAvg      AggFunc = "avg"
	AggCount    AggFunc = "count"
	AggMin      AggFunc = "min"
	AggMax      AggFunc = "max"
	AggStddev   AggFunc = "stddev"
	AggVariance AggFunc = "variance"
	AggFirst    AggFunc = "first"
	AggLast     AggFunc = "last"
)

var aggFuncs = map[AggFunc]bool{
	AggSum: true, AggAvg: true, AggCount: true, AggMin: true, AggMax: true,
	AggStddev: true, AggVariance: true, AggFirst: true, AggLast: true,
}

// Aggregation describes one aggregated output column.
type Aggregation struct {
	Column string
	Func   AggFunc
	Alias  string
}

// group collects the row indices of one distinct key tuple.
type group struct {
	key  string
	rows []int
}

// Aggregate returns a new table with one row per distinct groupBy key
// tuple, in first-seen order. Null is its own distinct key. Output columns
// are the groupBy columns followed by one column per aggregation alias.
// An empty groupBy aggregates the whole table into a single row.
func (t *Table) Aggregate(groupBy []string, aggs []Aggregation) (*Table, error) {
	if len(aggs) == 0 {
		return nil, errors.NewValidation("Aggregate", "at least one aggregation is required")
	}
	keyCols := make([]*Column, len(groupBy))
	for i, name := range groupBy {
		col, ok := t.Column(name)
		if !ok {
			return nil, errors.NewColumnNotFound("Aggregate", name)
		}
		keyCols[i] = col
	}
	aggCols := make([]*Column, len(aggs))
	seen := make(map[string]bool, len(groupBy)+len(aggs))
	for _, name := range groupBy {
		seen[name] = true
	}
	for i, agg := range aggs {
		if !aggFuncs[agg.Func] {
			return nil, errors.NewValidation("Aggregate",
				fmt.Sprintf("unknown aggregation function %q", agg.Func))
		}
		col, ok := t.Column(agg.Column)
		if !ok {
			return nil, errors.NewColumnNotFound("Aggregate", agg.Column)
		}
		alias := agg.Alias
		if alias == "" {
			alias = fmt.Sprintf("%s_%s", agg.Column, agg.Func)
		}
		if seen[alias] {
			return nil, errors.NewValidation("Aggregate",
				fmt.Sprintf("duplicate output column %q", alias))
		}
		seen[alias] = true
		aggCols[i] = col
	}

	groups := t.groupRows(keyCols)

	out := make([]*Column, 0, len(groupBy)+len(aggs))
	// Key columns are only materialized for a non-empty groupBy, where
	// every group holds at least one row. The whole-table group of an
	// empty table has none; its aggregations yield null (count 0).
	if len(keyCols) > 0 {
		firstRows := make([]int, len(groups))
		for i, g := range groups {
			firstRows[i] = g.rows[0]
		}
		for _, col := range keyCols {
			keyed, err := takeColumn(col, firstRows, nil)
			if err != nil {
				releaseColumns(out)
				return nil, err
			}
			out = append(out, keyed)
		}
	}

	for i, agg := range aggs {
		alias := agg.Alias
		if alias == "" {
			alias = fmt.Sprintf("%s_%s", agg.Column, agg.Func)
		}
		values := make([]any, len(groups))
		for gi, g := range groups {
			values[gi] = applyAggregation(agg.Func, aggCols[i], g.rows)
		}
		col, err := columnFromValues(alias, values, nil)
		if err != nil {
			releaseColumns(out)
			return nil, err
		}
		out = append(out, col)
	}

	return New(out...)
}

// groupRows partitions row indices by key tuple, keeping first-seen order.
// Buckets are keyed by an xxhash of the encoded tuple with exact-key
// chaining for collisions.
func (t *Table) groupRows(keyCols []*Column) []*group {
	if len(keyCols) == 0 {
		all := make([]int, t.numRows)
		for i := range all {
			all[i] = i
		}
		return []*group{{rows: all}}
	}

	var ordered []*group
	buckets := make(map[uint64][]*group)
	var sb strings.Builder

	for row := 0; row < t.numRows; row++ {
		sb.Reset()
		encodeGroupKey(&sb, keyCols, row)
		key := sb.String()
		hash := xxhash.Sum64String(key)

		var found *group
		for _, g := range buckets[hash] {
			if g.key == key {
				found = g
				break
			}
		}
		if found == nil {
			found = &group{key: key}
			buckets[hash] = append(buckets[hash], found)
			ordered = append(ordered, found)
		}
		found.rows = append(found.rows, row)
	}
	return ordered
}

// encodeGroupKey writes a collision-free encoding of the row's key tuple.
// The type tag keeps int64(1) distinct from "1" and from true.
func encodeGroupKey(sb *strings.Builder, keyCols []*Column, row int) {
	for _, col := range keyCols {
		if col.IsNull(row) {
			sb.WriteString("n|")
			continue
		}
		switch v := col.Value(row).(type) {
		case int64:
			sb.WriteString("i")
			sb.WriteString(strconv.FormatInt(v, 10))
		case float64:
			sb.WriteString("f")
			sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		case string:
			sb.WriteString("s")
			sb.WriteString(strconv.Itoa(len(v)))
			sb.WriteString(":")
			sb.WriteString(v)
		case bool:
			if v {
				sb.WriteString("b1")
			} else {
				sb.WriteString("b0")
			}
		}
		sb.WriteString("|")
	}
}

// applyAggregation computes one aggregate over the group's rows. Nulls are
// excluded from the value set; an empty set yields null, except count
// which yields 0.
func applyAggregation(fn AggFunc, col *Column, rows []int) any {
	switch fn {
	case AggCount:
		var n int64
		for _, row := range rows {
			if !col.IsNull(row) {
				n++
			}
		}
		return n
	case AggFirst:
		for _, row := range rows {
			if !col.IsNull(row) {
				return col.Value(row)
			}
		}
		return nil
	case AggLast:
		for i := len(rows) - 1; i >= 0; i-- {
			if !col.IsNull(rows[i]) {
				return col.Value(rows[i])
			}
		}
		return nil
	case AggMin, AggMax:
		var best any
		for _, row := range rows {
			if col.IsNull(row) {
				continue
			}
			v := col.Value(row)
			if best == nil {
				best = v
				continue
			}
			c := compareValues(v, best)
			if (fn == AggMin && c < 0) || (fn == AggMax && c > 0) {
				best = v
			}
		}
		return best
	}

	// The remaining functions are numeric.
	values := make([]float64, 0, len(rows))
	allInt := true
	for _, row := range rows {
		if col.IsNull(row) {
			continue
		}
		switch v := col.Value(row).(type) {
		case int64:
			values = append(values, float64(v))
		case float64:
			allInt = false
			values = append(values, v)
		default:
			return nil
		}
	}
	if len(values) == 0 {
		return nil
	}

	var sum float64
	for _, v := range values {
		sum += v
	}

	switch fn {
	case AggSum:
		if allInt {
			return int64(sum)
		}
		return sum
	case AggAvg:
		return sum / float64(len(values))
	case AggVariance, AggStddev:
		mean := sum / float64(len(values))
		var ss float64
		for _, v := range values {
			d := v - mean
			ss += d * d
		}
		// Population statistics, not sample.
		variance := ss / float64(len(values))
		if fn == AggVariance {
			return variance
		}
		return math.Sqrt(variance)
	}
	return nil
}
