package sink

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"osm2pgsql-flex/internal/core"
)

// DefaultWatermark is the default byte-size threshold at which a
// staging buffer is flushed via COPY (§4.6: "a few MiB").
const DefaultWatermark = 4 << 20

// rowEstimateOverhead is a per-row fixed cost folded into the byte
// estimate, covering COPY wire-format framing that a naive sum of value
// sizes would miss.
const rowEstimateOverhead = 16

// stagingBuffer is the in-memory, per-table byte-bounded queue of rows
// awaiting a COPY flush.
type stagingBuffer struct {
	columns   []string
	rows      [][]any
	byteCount int
}

func newStagingBuffer(columns []string) *stagingBuffer {
	return &stagingBuffer{columns: columns}
}

func (b *stagingBuffer) add(row map[string]any) {
	values := make([]any, len(b.columns))
	b.byteCount += rowEstimateOverhead
	for i, col := range b.columns {
		values[i] = row[col]
		b.byteCount += estimateSize(row[col])
	}
	b.rows = append(b.rows, values)
}

func estimateSize(v any) int {
	switch t := v.(type) {
	case nil:
		return 1
	case string:
		return len(t)
	case []byte:
		return len(t)
	default:
		return 8
	}
}

func (b *stagingBuffer) empty() bool { return len(b.rows) == 0 }

func (b *stagingBuffer) reset() {
	b.rows = b.rows[:0]
	b.byteCount = 0
}

// copySource adapts a stagingBuffer's buffered rows to pgx.CopyFromSource.
type copySource struct {
	rows [][]any
	pos  int
}

func (s *copySource) Next() bool {
	s.pos++
	return s.pos <= len(s.rows)
}

func (s *copySource) Values() ([]any, error) {
	return s.rows[s.pos-1], nil
}

func (s *copySource) Err() error { return nil }

// TableWriter buffers rows for one user table and flushes them via pgx's
// COPY protocol. In import mode it flushes once the buffered byte estimate
// crosses Options.Watermark, copying into a staging table that the commit
// protocol later renames into place; in update mode there is no staging
// table and rows stay buffered until the commit protocol's deletes have
// run, then are copied straight into the live table. Write/Flush are called from
// the dispatcher's concurrent Propagate phase, so mu guards buf.
type TableWriter struct {
	conn      *pgx.Conn
	table     *core.Table
	schema    string
	mode      Mode
	staging   string // "<table>__staging_<uuid>", set only in import mode
	watermark int

	mu  sync.Mutex
	buf *stagingBuffer
}

func newTableWriter(conn *pgx.Conn, schema string, t *core.Table, watermark int, mode Mode) *TableWriter {
	if watermark <= 0 {
		watermark = DefaultWatermark
	}
	columns := t.Names()
	if t.IDCol.Kind != "" {
		columns = append([]string{t.IDCol.TypeColumnName(), t.IDCol.NumColumnName()}, columns...)
	}
	w := &TableWriter{
		conn:      conn,
		table:     t,
		schema:    schema,
		mode:      mode,
		watermark: watermark,
		buf:       newStagingBuffer(columns),
	}
	if mode == ModeImport {
		w.staging = fmt.Sprintf("%s__staging_%s", t.Name, uuid.NewString())
	}
	return w
}

// CreateStaging creates this writer's staging table.
func (w *TableWriter) CreateStaging(ctx context.Context) error {
	stmt, err := generateCreateTable(w.table, w.schema, w.staging)
	if err != nil {
		return &core.ConfigError{Subject: w.table.Name, Err: err}
	}
	if _, err := w.conn.Exec(ctx, stmt); err != nil {
		return &core.DatabaseError{Op: "create staging table", Err: err}
	}
	return nil
}

// Write buffers row, flushing in import mode if the watermark is crossed.
// It returns the number of rows flushed (0 when nothing was flushed).
func (w *TableWriter) Write(ctx context.Context, row map[string]any) (int64, error) {
	w.mu.Lock()
	w.buf.add(row)
	crossed := w.mode == ModeImport && w.buf.byteCount >= w.watermark
	w.mu.Unlock()
	if crossed {
		return w.Flush(ctx)
	}
	return 0, nil
}

// Flush copies any buffered rows into the write target (the staging
// table in import mode, the live table in update mode) and resets the
// buffer, returning the number of rows copied. It is a no-op when the
// buffer is empty.
func (w *TableWriter) Flush(ctx context.Context) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.empty() {
		return 0, nil
	}
	n := int64(len(w.buf.rows))
	src := &copySource{rows: w.buf.rows}
	target := w.writeIdentifier()
	_, err := w.conn.CopyFrom(ctx, target, w.buf.columns, src)
	if err != nil {
		return 0, &core.DatabaseError{Op: fmt.Sprintf("copy into %s", target.Sanitize()), Err: err}
	}
	w.buf.reset()
	return n, nil
}

// StagingName returns the staging table's name, for plan construction.
// Only meaningful in import mode.
func (w *TableWriter) StagingName() string { return w.staging }

// writeIdentifier returns the table Flush copies rows into: the staging
// table in import mode, the live table in update mode.
func (w *TableWriter) writeIdentifier() pgx.Identifier {
	name := w.staging
	if w.mode != ModeImport {
		name = w.table.Name
	}
	if w.schema == "" {
		return pgx.Identifier{name}
	}
	return pgx.Identifier{w.schema, name}
}
