package colio

import (
	"bytes"
	"context"
	"encoding/binary"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	qerrors "github.com/quiverdata/quiver/internal/errors"
)

// parquetMagic opens and closes every Parquet file.
var parquetMagic = []byte("PAR1")

// parquetMinSize is head magic + footer length + tail magic.
const parquetMinSize = 12

// ParseParquet decodes a Parquet buffer. The head and tail magic and the
// footer length are validated before the decoder touches the payload, and
// the decoded column data is checked against the decompression-ratio
// guard, since Parquet pages are compressed on disk.
func ParseParquet(ctx context.Context, buf []byte, opts Options) (*Result, error) {
	const op = "ParseParquet"
	if err := checkSize(buf, opts); err != nil {
		return nil, err
	}
	if err := checkParquetFraming(op, buf); err != nil {
		return nil, err
	}

	pqReader, err := file.NewParquetReader(bytes.NewReader(buf))
	if err != nil {
		return nil, qerrors.NewFormatCause(op, "decoding file metadata", err)
	}
	defer pqReader.Close()

	mem := opts.allocator()
	fr, err := pqarrow.NewFileReader(pqReader, pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, qerrors.NewFormatCause(op, "decoding schema", err)
	}

	src, err := readParquetTable(ctx, op, pqReader, fr, opts)
	if err != nil {
		return nil, err
	}
	defer src.Release()

	if err := checkRatio(op, len(buf), arrowTableSize(src), opts); err != nil {
		return nil, err
	}

	out, err := tableFromArrowTable(src, opts.Columns, mem)
	if err != nil {
		return nil, err
	}
	return &Result{
		Table:       out,
		RowCount:    out.NumRows(),
		ColumnCount: out.NumCols(),
		Metadata:    schemaMetadata(src.Schema()),
	}, nil
}

// checkParquetFraming validates magic bytes and the footer length field
// without decoding any Thrift metadata.
func checkParquetFraming(op string, buf []byte) error {
	if len(buf) < parquetMinSize {
		return qerrors.NewFormat(op, "buffer too small to be a parquet file")
	}
	if !bytes.HasPrefix(buf, parquetMagic) {
		return qerrors.NewFormat(op, "missing PAR1 head magic")
	}
	if !bytes.HasSuffix(buf, parquetMagic) {
		return qerrors.NewFormat(op, "missing PAR1 tail magic")
	}
	footerLen := binary.LittleEndian.Uint32(buf[len(buf)-8 : len(buf)-4])
	if int64(footerLen)+parquetMinSize > int64(len(buf)) {
		return qerrors.NewFormat(op, "footer length exceeds file size")
	}
	return nil
}

// readParquetTable reads either the whole file or only the projected
// columns. Projection happens at the decoder so unrequested column chunks
// are never decompressed.
func readParquetTable(ctx context.Context, op string, pqReader *file.Reader, fr *pqarrow.FileReader, opts Options) (arrow.Table, error) {
	if opts.Columns == nil {
		src, err := fr.ReadTable(ctx)
		if err != nil {
			return nil, qerrors.NewFormatCause(op, "decoding column data", err)
		}
		return src, nil
	}

	schema, err := fr.Schema()
	if err != nil {
		return nil, qerrors.NewFormatCause(op, "decoding schema", err)
	}
	indices := make([]int, 0, len(opts.Columns))
	for _, name := range opts.Columns {
		idx := schema.FieldIndices(name)
		if len(idx) == 0 {
			return nil, qerrors.NewColumnNotFound(op, name)
		}
		indices = append(indices, idx[0])
	}

	groups := make([]int, pqReader.NumRowGroups())
	for i := range groups {
		groups[i] = i
	}
	src, err := fr.ReadRowGroups(ctx, indices, groups)
	if err != nil {
		return nil, qerrors.NewFormatCause(op, "decoding column data", err)
	}
	return src, nil
}

func arrowTableSize(src arrow.Table) int64 {
	var total int64
	for i := 0; i < int(src.NumCols()); i++ {
		for _, chunk := range src.Column(i).Data().Chunks() {
			total += decodedSize(chunk)
		}
	}
	return total
}
