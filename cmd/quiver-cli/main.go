// Command quiver-cli inspects columnar files from the terminal: it decodes
// a Parquet or Arrow IPC file, optionally filters, samples, and limits the
// rows, and renders the result as an ASCII table.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/quiverdata/quiver"
	"github.com/quiverdata/quiver/internal/config"
	"github.com/quiverdata/quiver/internal/pool"
	"github.com/quiverdata/quiver/internal/version"
)

func customUsage() {
	fmt.Fprintf(os.Stderr, "quiver-cli: inspect Parquet and Arrow IPC files\n\n")
	fmt.Fprintf(os.Stderr, "Usage: quiver-cli [options] <file>\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
}

func main() {
	columnsFlag := flag.String("columns", "", "Comma-separated column subset to decode")
	filterFlag := flag.String("filter", "", "Row filter expression (e.g. \"price > 100 && region == 'eu'\")")
	sampleFlag := flag.Int("sample", 0, "Downsample to at most N rows (0 = no sampling)")
	strategyFlag := flag.String("strategy", "random", "Sampling strategy: random, stratified, systematic, lttb, adaptive")
	stratifyFlag := flag.String("stratify", "", "Stratify column for the stratified strategy")
	xFlag := flag.String("x", "", "X column for the lttb strategy")
	yFlag := flag.String("y", "", "Y column for the lttb strategy")
	seedFlag := flag.Int64("seed", 0, "Random seed (0 = nondeterministic)")
	limitFlag := flag.Int("limit", 20, "Max rows to print (0 = unlimited)")
	versionFlag := flag.Bool("version", false, "Print version information and exit")

	flag.Usage = customUsage
	flag.Parse()

	if *versionFlag {
		fmt.Print(version.Info().String())
		return
	}

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	if err := run(flag.Arg(0), options{
		columns:  splitColumns(*columnsFlag),
		filter:   *filterFlag,
		sample:   *sampleFlag,
		strategy: quiver.SampleStrategy(*strategyFlag),
		stratify: *stratifyFlag,
		x:        *xFlag,
		y:        *yFlag,
		seed:     *seedFlag,
		limit:    *limitFlag,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	columns  []string
	filter   string
	sample   int
	strategy quiver.SampleStrategy
	stratify string
	x, y     string
	seed     int64
	limit    int
}

func run(path string, opts options) error {
	cfg, err := config.Default().FromEnv()
	if err != nil {
		return err
	}

	bufs := pool.New(
		pool.WithMaxPerClass(cfg.PoolMaxPerClass),
		pool.WithMaxTotalMemory(cfg.PoolMaxTotalMemory),
	)
	buf, err := readFile(path, bufs)
	if err != nil {
		return err
	}
	defer bufs.Release(buf.data)

	result, err := decode(path, buf.data[:buf.n], cfg, opts.columns)
	if err != nil {
		return err
	}
	t := result.Table
	defer t.Release()

	if opts.filter != "" {
		predicate, err := quiver.ParseExpr(opts.filter)
		if err != nil {
			return err
		}
		filtered, err := t.Filter(predicate)
		if err != nil {
			return err
		}
		t.Release()
		t = filtered
	}

	if opts.sample > 0 {
		sampled, err := quiver.Sample(t, quiver.SampleOptions{
			Strategy:       opts.strategy,
			SampleSize:     opts.sample,
			StratifyColumn: opts.stratify,
			XColumn:        opts.x,
			YColumn:        opts.y,
			Seed:           opts.seed,
		})
		if err != nil {
			return err
		}
		t.Release()
		t = sampled
	}

	render(os.Stdout, t, opts.limit)
	fmt.Printf("%d rows x %d columns (file: %d rows)\n", t.NumRows(), t.NumCols(), result.RowCount)
	return nil
}

type fileBuf struct {
	data []byte
	n    int
}

// readFile loads a file into a pooled buffer sized to the file length.
func readFile(path string, bufs *pool.BufferPool) (fileBuf, error) {
	f, err := os.Open(path)
	if err != nil {
		return fileBuf{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fileBuf{}, err
	}

	buf := bufs.Acquire(int(info.Size()))
	n, err := io.ReadFull(f, buf[:info.Size()])
	if err != nil {
		bufs.Release(buf)
		return fileBuf{}, err
	}
	return fileBuf{data: buf, n: n}, nil
}

// decode picks the decoder from the file extension, falling back to
// Parquet for unknown extensions.
func decode(path string, data []byte, cfg config.Config, columns []string) (*quiver.ParseResult, error) {
	popts := quiver.ParseOptions{
		Columns:               columns,
		MaxBufferSize:         cfg.MaxBufferSize,
		MaxDecompressionRatio: cfg.MaxDecompressionRatio,
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".arrow", ".arrows", ".ipc", ".feather":
		return quiver.ParseArrowIPC(data, popts)
	default:
		return quiver.ParseParquet(context.Background(), data, popts)
	}
}

func render(w io.Writer, t *quiver.Table, limit int) {
	rows := t.NumRows()
	if limit > 0 && rows > limit {
		rows = limit
	}

	names := t.ColumnNames()
	table := tablewriter.NewWriter(w)
	table.SetHeader(names)
	for i := 0; i < rows; i++ {
		record := make([]string, len(names))
		for j, name := range names {
			v, err := t.Value(name, i)
			switch {
			case err != nil:
				record[j] = "?"
			case v == nil:
				record[j] = "null"
			default:
				record[j] = fmt.Sprintf("%v", v)
			}
		}
		table.Append(record)
	}
	table.Render()

	if limit > 0 && t.NumRows() > limit {
		fmt.Fprintf(w, "... %d more rows\n", t.NumRows()-limit)
	}
}

func splitColumns(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
