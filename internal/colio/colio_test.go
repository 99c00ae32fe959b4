package colio

import (
	"bytes"
	"context"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiverdata/quiver/internal/errors"
	"github.com/quiverdata/quiver/internal/table"
)

var testSchema = arrow.NewSchema([]arrow.Field{
	{Name: "id", Type: arrow.PrimitiveTypes.Int64},
	{Name: "score", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "label", Type: arrow.BinaryTypes.String},
}, nil)

// testRecord builds one three-column record batch with a null in score.
func testRecord(t *testing.T, mem memory.Allocator, offset int64) arrow.Record {
	t.Helper()
	b := array.NewRecordBuilder(mem, testSchema)
	defer b.Release()

	b.Field(0).(*array.Int64Builder).AppendValues([]int64{offset, offset + 1, offset + 2}, nil)
	b.Field(1).(*array.Float64Builder).AppendValues([]float64{1.5, 0, 3.5}, []bool{true, false, true})
	b.Field(2).(*array.StringBuilder).AppendValues([]string{"a", "b", "c"}, nil)
	return b.NewRecord()
}

func arrowFileBytes(t *testing.T, batches int) []byte {
	t.Helper()
	mem := memory.NewGoAllocator()
	var buf bytes.Buffer

	w, err := ipc.NewFileWriter(&buf, ipc.WithSchema(testSchema), ipc.WithAllocator(mem))
	require.NoError(t, err)
	for i := 0; i < batches; i++ {
		rec := testRecord(t, mem, int64(i*3))
		require.NoError(t, w.Write(rec))
		rec.Release()
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func arrowStreamBytes(t *testing.T, batches int) []byte {
	t.Helper()
	mem := memory.NewGoAllocator()
	var buf bytes.Buffer

	w := ipc.NewWriter(&buf, ipc.WithSchema(testSchema), ipc.WithAllocator(mem))
	for i := 0; i < batches; i++ {
		rec := testRecord(t, mem, int64(i*3))
		require.NoError(t, w.Write(rec))
		rec.Release()
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func parquetBytes(t *testing.T) []byte {
	t.Helper()
	mem := memory.NewGoAllocator()
	var buf bytes.Buffer

	w, err := pqarrow.NewFileWriter(testSchema, &buf,
		parquet.NewWriterProperties(),
		pqarrow.NewArrowWriterProperties(pqarrow.WithAllocator(mem)))
	require.NoError(t, err)

	rec := testRecord(t, mem, 0)
	require.NoError(t, w.Write(rec))
	rec.Release()
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestParseArrowIPC_FileFormat(t *testing.T) {
	res, err := ParseArrowIPC(arrowFileBytes(t, 1), DefaultOptions())
	require.NoError(t, err)
	defer res.Table.Release()

	assert.Equal(t, 3, res.RowCount)
	assert.Equal(t, 3, res.ColumnCount)
	assert.Equal(t, []string{"id", "score", "label"}, res.Table.ColumnNames())

	score, ok := res.Table.Column("score")
	require.True(t, ok)
	assert.True(t, score.IsNull(1), "nulls survive decoding")
	assert.Equal(t, 3.5, score.Value(2))
}

func TestParseArrowIPC_StreamFormat(t *testing.T) {
	res, err := ParseArrowIPC(arrowStreamBytes(t, 1), DefaultOptions())
	require.NoError(t, err)
	defer res.Table.Release()

	assert.Equal(t, 3, res.RowCount)

	id, ok := res.Table.Column("id")
	require.True(t, ok)
	assert.Equal(t, int64(2), id.Value(2))
}

func TestParseArrowIPC_MultipleBatchesConcatenated(t *testing.T) {
	res, err := ParseArrowIPC(arrowFileBytes(t, 3), DefaultOptions())
	require.NoError(t, err)
	defer res.Table.Release()

	require.Equal(t, 9, res.RowCount)
	id, _ := res.Table.Column("id")
	assert.Equal(t, int64(0), id.Value(0))
	assert.Equal(t, int64(8), id.Value(8))
}

func TestParseArrowIPC_ColumnProjection(t *testing.T) {
	opts := DefaultOptions()
	opts.Columns = []string{"id", "label"}

	res, err := ParseArrowIPC(arrowFileBytes(t, 1), opts)
	require.NoError(t, err)
	defer res.Table.Release()

	assert.Equal(t, []string{"id", "label"}, res.Table.ColumnNames())

	opts.Columns = []string{"id", "missing"}
	_, err = ParseArrowIPC(arrowFileBytes(t, 1), opts)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestParseArrowIPC_RejectsBadMagic(t *testing.T) {
	for _, buf := range [][]byte{
		nil,
		{},
		[]byte("not arrow data at all"),
		[]byte("PAR1 is parquet, not arrow"),
	} {
		_, err := ParseArrowIPC(buf, DefaultOptions())
		require.Error(t, err)
		assert.True(t, errors.IsFormat(err))
	}
}

func TestParseArrowIPC_TruncatedFile(t *testing.T) {
	full := arrowFileBytes(t, 1)
	truncated := full[:len(full)-10]

	_, err := ParseArrowIPC(truncated, DefaultOptions())
	require.Error(t, err)
	assert.True(t, errors.IsFormat(err))
}

func TestParseArrowIPC_SizeCeiling(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxBufferSize = 16

	_, err := ParseArrowIPC(arrowFileBytes(t, 1), opts)
	require.Error(t, err)
	assert.True(t, errors.IsResourceLimit(err))
	assert.ErrorIs(t, err, errors.ErrBufferTooLarge)
}

func TestStreamArrowIPC_PerBatchCallback(t *testing.T) {
	var batches, rows int
	err := StreamArrowIPC(arrowStreamBytes(t, 4), DefaultOptions(), func(t *table.Table) error {
		batches++
		rows += t.NumRows()
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 4, batches)
	assert.Equal(t, 12, rows)
}

func TestStreamArrowIPC_CallbackErrorStops(t *testing.T) {
	calls := 0
	err := StreamArrowIPC(arrowStreamBytes(t, 4), DefaultOptions(), func(*table.Table) error {
		calls++
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, calls)
}

func TestStreamArrowIPC_NilCallback(t *testing.T) {
	err := StreamArrowIPC(arrowStreamBytes(t, 1), DefaultOptions(), nil)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestParseParquet_RoundTrip(t *testing.T) {
	res, err := ParseParquet(context.Background(), parquetBytes(t), DefaultOptions())
	require.NoError(t, err)
	defer res.Table.Release()

	assert.Equal(t, 3, res.RowCount)
	assert.Equal(t, 3, res.ColumnCount)

	score, ok := res.Table.Column("score")
	require.True(t, ok)
	assert.True(t, score.IsNull(1))

	label, ok := res.Table.Column("label")
	require.True(t, ok)
	assert.Equal(t, "c", label.Value(2))
}

func TestParseParquet_ColumnProjection(t *testing.T) {
	opts := DefaultOptions()
	opts.Columns = []string{"label"}

	res, err := ParseParquet(context.Background(), parquetBytes(t), opts)
	require.NoError(t, err)
	defer res.Table.Release()

	assert.Equal(t, []string{"label"}, res.Table.ColumnNames())

	opts.Columns = []string{"nope"}
	_, err = ParseParquet(context.Background(), parquetBytes(t), opts)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestParseParquet_RejectsBadFraming(t *testing.T) {
	for _, buf := range [][]byte{
		nil,
		[]byte("PAR1"),
		[]byte("not parquet but long enough to pass the size check"),
		[]byte("PAR1 body without trailing magic..."),
	} {
		_, err := ParseParquet(context.Background(), buf, DefaultOptions())
		require.Error(t, err)
		assert.True(t, errors.IsFormat(err))
	}
}

func TestParseParquet_FooterLengthSanity(t *testing.T) {
	// Valid head and tail magic but an absurd footer length.
	buf := []byte("PAR1")
	buf = append(buf, 0xFF, 0xFF, 0xFF, 0x7F)
	buf = append(buf, []byte("PAR1")...)

	_, err := ParseParquet(context.Background(), buf, DefaultOptions())
	require.Error(t, err)
	assert.True(t, errors.IsFormat(err))
}

func TestParseParquet_SizeCeiling(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxBufferSize = 16

	_, err := ParseParquet(context.Background(), parquetBytes(t), opts)
	require.Error(t, err)
	assert.True(t, errors.IsResourceLimit(err))
	assert.ErrorIs(t, err, errors.ErrBufferTooLarge)
}
