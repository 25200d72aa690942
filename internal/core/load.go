package core

// load.go implements the chunked bulk load.
//
// The flow for one file:
//
//  1. Open the source and read up to InferSize rows into memory
//  2. Pin one type per column from that sample
//  3. Create the table if absent, otherwise take the types of the
//     existing columns
//  4. Stream the sample and the rest of the file in ChunkSize batches,
//     each written with COPY in its own transaction
//
// Row i of chunk k gets index start + ChunkSize*k + i, where start is
// max(index)+1 of the table before the load (0 for a new table). A failed
// chunk rolls back alone; chunks already committed stay.

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/tabload/internal/logging"
	"github.com/JonMunkholm/tabload/internal/metrics"
	"github.com/JonMunkholm/tabload/internal/source"
)

// LoadTable loads the file at path into a table, creating it if needed.
// It holds the writer lock for the whole load.
func (s *Service) LoadTable(ctx context.Context, path string, opts LoadOptions) (*LoadResult, error) {
	if opts.Table == "" {
		opts.Table = source.TableName(path)
	}
	if opts.InferSize <= 0 {
		opts.InferSize = s.opts.InferSize
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = s.opts.ChunkSize
	}
	if err := validateTableName(opts.Table); err != nil {
		return nil, err
	}

	if err := s.writer.Acquire(ctx, "load"); err != nil {
		return nil, err
	}
	defer s.writer.Release()

	ctx, cancel := context.WithTimeout(ctx, s.opts.LoadTimeout)
	defer cancel()

	loadID := uuid.New().String()
	log := logging.WithFields(ctx, "load_id", loadID, "table", opts.Table, "file", path)
	log.Info("loading table",
		"infer_size", opts.InferSize,
		"chunk_size", opts.ChunkSize,
	)

	start := time.Now()
	result, err := s.load(ctx, log, path, opts)
	elapsed := time.Since(start)

	metrics.LoadDuration.WithLabelValues(opts.Table).Observe(elapsed.Seconds())
	if err != nil {
		metrics.Loads.WithLabelValues(opts.Table, metrics.StatusFailed).Inc()
		log.Error("load failed", "error", err, "duration", elapsed)
		return nil, err
	}
	metrics.Loads.WithLabelValues(opts.Table, metrics.StatusSuccess).Inc()

	result.LoadID = loadID
	result.Duration = elapsed
	log.Info("load complete",
		"rows", result.Rows,
		"chunks", result.Chunks,
		"duration", elapsed,
	)
	return result, nil
}

func (s *Service) load(ctx context.Context, log *slog.Logger, path string, opts LoadOptions) (*LoadResult, error) {
	r, err := source.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	header := r.Header()
	if len(header) == 0 {
		return nil, fmt.Errorf("%w: no columns", source.ErrEmptyFile)
	}

	sample, lines, err := readSample(r, opts.InferSize)
	if err != nil {
		return nil, err
	}

	types, created, err := s.prepareTable(ctx, opts.Table, header, inferTypes(header, sample))
	if err != nil {
		return nil, err
	}
	if created {
		log.Info("created table", "columns", len(header))
	}

	first, err := s.nextIndex(ctx, opts.Table)
	if err != nil {
		return nil, err
	}

	result := &LoadResult{
		Table:      opts.Table,
		Created:    created,
		FirstIndex: first,
		Columns:    make([]ColumnDef, len(header)),
	}
	for i, name := range header {
		result.Columns[i] = ColumnDef{Name: name, Type: types[i]}
	}

	w := &chunkWriter{
		svc:     s,
		table:   opts.Table,
		columns: append([]string{IndexColumn}, header...),
		size:    opts.ChunkSize,
	}

	feed := &rowFeed{sample: sample, lines: lines, r: r}
	for {
		cells, line, err := feed.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		row, err := convertRow(first+result.Rows, header, types, cells, int64(line))
		if err != nil {
			return nil, err
		}
		result.Rows++

		if w.add(row) {
			if err := w.flush(ctx); err != nil {
				return nil, err
			}
			read, total := r.Progress()
			log.Debug("chunk written", "chunk", w.chunks, "rows", result.Rows, "read", read, "total", total)
		}
	}
	if err := w.flush(ctx); err != nil {
		return nil, err
	}

	result.Chunks = w.chunks
	result.LastIndex = first + result.Rows - 1
	metrics.RowsLoaded.WithLabelValues(opts.Table).Add(float64(result.Rows))

	if err := s.RefreshTables(ctx); err != nil {
		return nil, err
	}

	if opts.Index {
		names, err := s.indexTable(ctx, opts.Table, opts.CaseInsensitive)
		if err != nil {
			return nil, err
		}
		result.Indexes = names
	}

	return result, nil
}

// readSample reads up to n rows for type inference, with the source line
// of each.
func readSample(r source.RowReader, n int) ([][]string, []int, error) {
	sample := make([][]string, 0, n)
	lines := make([]int, 0, n)
	for len(sample) < n {
		row, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		sample = append(sample, row)
		lines = append(lines, r.Line())
	}
	return sample, lines, nil
}

// rowFeed replays the sample before reading on from the source.
type rowFeed struct {
	sample [][]string
	lines  []int
	pos    int
	r      source.RowReader
}

// next returns the next row and the source line it came from.
func (f *rowFeed) next() ([]string, int, error) {
	if f.pos < len(f.sample) {
		row, line := f.sample[f.pos], f.lines[f.pos]
		f.sample[f.pos] = nil
		f.pos++
		return row, line, nil
	}
	row, err := f.r.Next()
	if err != nil {
		return nil, 0, err
	}
	return row, f.r.Line(), nil
}

// chunkWriter buffers converted rows and writes them one chunk at a time.
type chunkWriter struct {
	svc     *Service
	table   string
	columns []string
	size    int
	rows    [][]any
	chunks  int
}

// add buffers row and reports whether the chunk is full.
func (w *chunkWriter) add(row []any) bool {
	w.rows = append(w.rows, row)
	return len(w.rows) >= w.size
}

// flush writes the buffered rows, if any.
func (w *chunkWriter) flush(ctx context.Context) error {
	if len(w.rows) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("load cancelled before chunk %d: %w", w.chunks+1, err)
	}
	if err := w.svc.writeChunk(ctx, w.table, w.columns, w.rows); err != nil {
		return fmt.Errorf("chunk %d: %w", w.chunks+1, err)
	}
	w.chunks++
	metrics.ChunksWritten.WithLabelValues(w.table).Inc()
	w.rows = w.rows[:0]
	return nil
}

// writeChunk copies rows into table inside one transaction.
func (s *Service) writeChunk(ctx context.Context, table string, columns []string, rows [][]any) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	n, err := tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	if n != int64(len(rows)) {
		return fmt.Errorf("copy: wrote %d of %d rows", n, len(rows))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const tableColumnsSQL = `
SELECT column_name::text, data_type::text
FROM information_schema.columns
WHERE table_schema = current_schema() AND table_name = $1`

// prepareTable creates table when it does not exist and returns the types
// cells are converted to. For an existing table those are the types of its
// columns, and every header column must already be present.
func (s *Service) prepareTable(ctx context.Context, table string, header []string, inferred []ColumnType) ([]ColumnType, bool, error) {
	existing, err := s.tableColumns(ctx, table)
	if err != nil {
		return nil, false, err
	}

	if len(existing) == 0 {
		if _, err := s.db.Exec(ctx, createTableSQL(table, header, inferred)); err != nil {
			return nil, false, fmt.Errorf("create table %s: %w", table, err)
		}
		return inferred, true, nil
	}

	if _, ok := existing[IndexColumn]; !ok {
		return nil, false, fmt.Errorf("table %s has no %q column", table, IndexColumn)
	}
	types := make([]ColumnType, len(header))
	for i, name := range header {
		dataType, ok := existing[name]
		if !ok {
			return nil, false, fmt.Errorf("%w: %q is not in table %s", ErrUnknownColumn, name, table)
		}
		types[i] = typeFromDataType(dataType)
	}
	return types, false, nil
}

func (s *Service) tableColumns(ctx context.Context, table string) (map[string]string, error) {
	rows, err := s.db.Query(ctx, tableColumnsSQL, table)
	if err != nil {
		return nil, fmt.Errorf("read columns of %s: %w", table, err)
	}
	defer rows.Close()

	columns := make(map[string]string)
	for rows.Next() {
		var name, dataType string
		if err := rows.Scan(&name, &dataType); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns[name] = dataType
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read columns of %s: %w", table, err)
	}
	return columns, nil
}

// createTableSQL builds the DDL for a new table: the row index primary key
// followed by one column per header entry.
func createTableSQL(table string, header []string, types []ColumnType) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(quoteIdentifier(table))
	b.WriteString(" (")
	b.WriteString(quoteIdentifier(IndexColumn))
	b.WriteString(" BIGINT PRIMARY KEY")
	for i, name := range header {
		b.WriteString(", ")
		b.WriteString(quoteIdentifier(name))
		b.WriteString(" ")
		b.WriteString(string(types[i]))
	}
	b.WriteString(")")
	return b.String()
}

// nextIndex returns the first free row index of table.
func (s *Service) nextIndex(ctx context.Context, table string) (int64, error) {
	q := fmt.Sprintf("SELECT COALESCE(MAX(%s) + 1, 0) FROM %s",
		quoteIdentifier(IndexColumn), quoteIdentifier(table))

	var next int64
	if err := s.db.QueryRow(ctx, q).Scan(&next); err != nil {
		return 0, fmt.Errorf("read next index of %s: %w", table, err)
	}
	return next, nil
}
