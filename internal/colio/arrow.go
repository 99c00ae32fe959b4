package colio

import (
	"bytes"
	"errors"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"

	qerrors "github.com/quiverdata/quiver/internal/errors"
	"github.com/quiverdata/quiver/internal/table"
)

// arrowFileMagic opens (and closes) the Arrow IPC file format.
var arrowFileMagic = []byte("ARROW1")

// arrowStreamMarker is the encapsulated-message continuation marker that
// opens the Arrow IPC stream format.
var arrowStreamMarker = []byte{0xFF, 0xFF, 0xFF, 0xFF}

// ParseArrowIPC decodes an Arrow IPC buffer, accepting both the file
// format (ARROW1 magic) and the stream format (continuation marker). The
// magic bytes are checked before any payload decoding. Multi-batch inputs
// are concatenated into a single table.
func ParseArrowIPC(buf []byte, opts Options) (*Result, error) {
	const op = "ParseArrowIPC"
	if err := checkSize(buf, opts); err != nil {
		return nil, err
	}

	var decoded int64
	var metadata map[string]string
	var tables []*table.Table
	defer func() {
		for _, t := range tables {
			t.Release()
		}
	}()

	err := eachBatch(op, buf, opts, func(rec arrow.Record) error {
		decoded += recordSize(rec)
		if err := checkRatio(op, len(buf), decoded, opts); err != nil {
			return err
		}
		if metadata == nil {
			metadata = schemaMetadata(rec.Schema())
		}
		t, err := tableFromRecord(rec, opts.Columns)
		if err != nil {
			return err
		}
		tables = append(tables, t)
		return nil
	})
	if err != nil {
		return nil, err
	}

	out, err := mergeTables(tables, opts)
	if err != nil {
		return nil, err
	}
	return &Result{
		Table:       out,
		RowCount:    out.NumRows(),
		ColumnCount: out.NumCols(),
		Metadata:    metadata,
	}, nil
}

// StreamArrowIPC decodes an Arrow IPC buffer one record batch at a time,
// invoking fn with a table per batch. The callback's table is released
// after fn returns; fn must not retain it. A non-nil error from fn stops
// the stream and is returned unchanged.
func StreamArrowIPC(buf []byte, opts Options, fn func(*table.Table) error) error {
	const op = "StreamArrowIPC"
	if fn == nil {
		return qerrors.NewValidation(op, "callback must not be nil")
	}
	if err := checkSize(buf, opts); err != nil {
		return err
	}

	var decoded int64
	return eachBatch(op, buf, opts, func(rec arrow.Record) error {
		decoded += recordSize(rec)
		if err := checkRatio(op, len(buf), decoded, opts); err != nil {
			return err
		}
		t, err := tableFromRecord(rec, opts.Columns)
		if err != nil {
			return err
		}
		defer t.Release()
		return fn(t)
	})
}

// eachBatch validates the magic bytes, picks the file or stream decoder,
// and yields each record batch to fn. Decode failures after a valid magic
// surface as format errors; errors from fn pass through untouched.
func eachBatch(op string, buf []byte, opts Options, fn func(arrow.Record) error) error {
	switch {
	case bytes.HasPrefix(buf, arrowFileMagic):
		return eachFileBatch(op, buf, opts, fn)
	case bytes.HasPrefix(buf, arrowStreamMarker):
		return eachStreamBatch(op, buf, opts, fn)
	default:
		return qerrors.NewFormat(op, "missing ARROW1 magic or stream continuation marker")
	}
}

func eachFileBatch(op string, buf []byte, opts Options, fn func(arrow.Record) error) error {
	if len(buf) < 2*len(arrowFileMagic) || !bytes.HasSuffix(buf, arrowFileMagic) {
		return qerrors.NewFormat(op, "truncated file: missing trailing magic")
	}
	r, err := ipc.NewFileReader(bytes.NewReader(buf), ipc.WithAllocator(opts.allocator()))
	if err != nil {
		return qerrors.NewFormatCause(op, "decoding file footer", err)
	}
	defer r.Close()

	for i := 0; i < r.NumRecords(); i++ {
		rec, err := r.RecordAt(i)
		if err != nil {
			return qerrors.NewFormatCause(op, "decoding record batch", err)
		}
		if err := fn(rec); err != nil {
			rec.Release()
			return err
		}
		rec.Release()
	}
	return nil
}

func eachStreamBatch(op string, buf []byte, opts Options, fn func(arrow.Record) error) error {
	r, err := ipc.NewReader(bytes.NewReader(buf), ipc.WithAllocator(opts.allocator()))
	if err != nil {
		return qerrors.NewFormatCause(op, "decoding stream schema", err)
	}
	defer r.Release()

	for r.Next() {
		if err := fn(r.Record()); err != nil {
			return err
		}
	}
	if err := r.Err(); err != nil && !errors.Is(err, io.EOF) {
		return qerrors.NewFormatCause(op, "decoding stream", err)
	}
	return nil
}

// mergeTables concatenates per-batch tables column by column. The input
// tables stay owned by the caller.
func mergeTables(tables []*table.Table, opts Options) (*table.Table, error) {
	if len(tables) == 0 {
		return table.New()
	}
	if len(tables) == 1 {
		return tables[0].Slice(0, tables[0].NumRows())
	}

	first := tables[0]
	mem := opts.allocator()
	cols := make([]*table.Column, 0, first.NumCols())
	for _, name := range first.ColumnNames() {
		chunks := make([]arrow.Array, 0, len(tables))
		for _, t := range tables {
			col, ok := t.Column(name)
			if !ok {
				for _, c := range cols {
					c.Release()
				}
				return nil, qerrors.NewFormat("ParseArrowIPC", "record batches disagree on schema")
			}
			chunks = append(chunks, col.Array())
		}
		merged, err := array.Concatenate(chunks, mem)
		if err != nil {
			for _, c := range cols {
				c.Release()
			}
			return nil, qerrors.NewFormatCause("ParseArrowIPC", "concatenating batches", err)
		}
		cols = append(cols, table.NewColumn(name, merged))
		merged.Release()
	}
	return table.New(cols...)
}

func recordSize(rec arrow.Record) int64 {
	var total int64
	for i := 0; i < int(rec.NumCols()); i++ {
		total += decodedSize(rec.Column(i))
	}
	return total
}

func schemaMetadata(schema *arrow.Schema) map[string]string {
	md := schema.Metadata()
	if md.Len() == 0 {
		return nil
	}
	out := make(map[string]string, md.Len())
	keys, values := md.Keys(), md.Values()
	for i := range keys {
		out[keys[i]] = values[i]
	}
	return out
}
