// Package colio decodes columnar wire formats (Arrow IPC, Parquet) from
// opaque byte buffers into tables. Decoders validate magic bytes before
// touching the payload, enforce a hard input-size ceiling, and guard
// against decompression bombs, so an ingestion layer can hand untrusted
// buffers straight in.
package colio

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/quiverdata/quiver/internal/errors"
	"github.com/quiverdata/quiver/internal/table"
)

// Default limits for untrusted input.
const (
	// DefaultMaxBufferSize is the hard ceiling on input buffer length.
	DefaultMaxBufferSize = 1 << 30 // 1 GiB
	// DefaultMaxDecompressionRatio rejects buffers whose decoded size is
	// suspiciously larger than their encoded size.
	DefaultMaxDecompressionRatio = 100.0
)

// Options configures a decode.
type Options struct {
	// Columns restricts decoding to a subset of columns; nil decodes all.
	Columns []string
	// MaxBufferSize overrides the input-size ceiling; zero means default.
	MaxBufferSize int64
	// MaxDecompressionRatio overrides the bomb guard; zero means default.
	MaxDecompressionRatio float64
	// Allocator is the Arrow allocator for decoded arrays.
	Allocator memory.Allocator
}

// DefaultOptions returns decode options with default limits.
func DefaultOptions() Options {
	return Options{
		MaxBufferSize:         DefaultMaxBufferSize,
		MaxDecompressionRatio: DefaultMaxDecompressionRatio,
	}
}

func (o Options) maxBufferSize() int64 {
	if o.MaxBufferSize > 0 {
		return o.MaxBufferSize
	}
	return DefaultMaxBufferSize
}

func (o Options) maxRatio() float64 {
	if o.MaxDecompressionRatio > 0 {
		return o.MaxDecompressionRatio
	}
	return DefaultMaxDecompressionRatio
}

func (o Options) allocator() memory.Allocator {
	if o.Allocator != nil {
		return o.Allocator
	}
	return memory.NewGoAllocator()
}

// Result is a decoded table plus shape and file metadata.
type Result struct {
	Table       *table.Table
	RowCount    int
	ColumnCount int
	Metadata    map[string]string
}

// checkSize enforces the input-size ceiling before any decoding work.
func checkSize(buf []byte, opts Options) error {
	if int64(len(buf)) > opts.maxBufferSize() {
		return errors.ErrBufferTooLarge
	}
	return nil
}

// checkRatio guards against decompression bombs: decoded bytes may not
// exceed the encoded input by more than the configured ratio.
func checkRatio(op string, encoded int, decoded int64, opts Options) error {
	if encoded == 0 {
		return nil
	}
	ratio := float64(decoded) / float64(encoded)
	if ratio > opts.maxRatio() {
		return errors.NewResourceLimit(op,
			fmt.Sprintf("decompression ratio %.0f exceeds guard of %.0f", ratio, opts.maxRatio()))
	}
	return nil
}

// decodedSize sums the physical buffer bytes behind an array, the basis
// for the bomb guard.
func decodedSize(arr arrow.Array) int64 {
	var total int64
	for _, buf := range arr.Data().Buffers() {
		if buf != nil {
			total += int64(buf.Len())
		}
	}
	return total
}

// tableFromRecord converts one Arrow record batch into a table, keeping
// only the requested columns. Column access stays zero-copy: the new
// columns retain the record's arrays rather than copying them.
func tableFromRecord(rec arrow.Record, columns []string) (*table.Table, error) {
	want := columnSet(columns)
	cols := make([]*table.Column, 0, rec.NumCols())
	schema := rec.Schema()
	for i := 0; i < int(rec.NumCols()); i++ {
		name := schema.Field(i).Name
		if want != nil && !want[name] {
			continue
		}
		cols = append(cols, table.NewColumn(name, rec.Column(i)))
	}
	if want != nil && len(cols) != len(want) {
		for _, c := range cols {
			c.Release()
		}
		return nil, missingColumnsError("ParseArrowIPC", schema, columns)
	}
	return table.New(cols...)
}

// tableFromArrowTable converts a chunked Arrow table into a table,
// concatenating multi-chunk columns.
func tableFromArrowTable(src arrow.Table, columns []string, mem memory.Allocator) (*table.Table, error) {
	want := columnSet(columns)
	cols := make([]*table.Column, 0, src.NumCols())
	for i := 0; i < int(src.NumCols()); i++ {
		col := src.Column(i)
		name := col.Name()
		if want != nil && !want[name] {
			continue
		}
		arr, err := chunksToArray(col.Data().Chunks(), col.DataType(), mem)
		if err != nil {
			for _, c := range cols {
				c.Release()
			}
			return nil, err
		}
		cols = append(cols, table.NewColumn(name, arr))
		arr.Release()
	}
	if want != nil && len(cols) != len(want) {
		for _, c := range cols {
			c.Release()
		}
		return nil, missingColumnsError("ParseParquet", src.Schema(), columns)
	}
	return table.New(cols...)
}

func chunksToArray(chunks []arrow.Array, dt arrow.DataType, mem memory.Allocator) (arrow.Array, error) {
	switch len(chunks) {
	case 0:
		return array.MakeArrayOfNull(mem, dt, 0), nil
	case 1:
		chunks[0].Retain()
		return chunks[0], nil
	default:
		return array.Concatenate(chunks, mem)
	}
}

func columnSet(columns []string) map[string]bool {
	if columns == nil {
		return nil
	}
	set := make(map[string]bool, len(columns))
	for _, name := range columns {
		set[name] = true
	}
	return set
}

func missingColumnsError(op string, schema *arrow.Schema, requested []string) error {
	have := make(map[string]bool, schema.NumFields())
	for i := 0; i < schema.NumFields(); i++ {
		have[schema.Field(i).Name] = true
	}
	for _, name := range requested {
		if !have[name] {
			return errors.NewColumnNotFound(op, name)
		}
	}
	return errors.NewValidation(op, "requested columns not found")
}
