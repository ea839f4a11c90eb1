package sink

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"

	"osm2pgsql-flex/internal/core"
	"osm2pgsql-flex/internal/stats"
)

// Mode selects which commit protocol Commit runs: Import builds staging
// tables and swaps them in; Update deletes then re-inserts rows directly
// against the live tables (§4.6).
type Mode string

const (
	ModeImport Mode = "import"
	ModeUpdate Mode = "update"
)

// Options configures a Sink.
type Options struct {
	Schema    string
	Mode      Mode
	Watermark int // bytes; 0 uses DefaultWatermark
}

// Sink owns one TableWriter per user table, plus — in update mode — the
// pending-delete id set each table's rows are refreshed against before
// new rows are inserted. InsertRow and MarkChanged are called from the
// dispatcher's concurrent Propagate phase, so mu guards pendingDeletes.
type Sink struct {
	conn    *pgx.Conn
	db      *core.Database
	opts    Options
	writers map[string]*TableWriter

	mu sync.Mutex
	// pendingDeletes is the update-mode auxiliary delete-id set (§3.4):
	// for each table, the (idType, idNum) pairs whose rows must be
	// deleted before the refreshed rows are inserted.
	pendingDeletes map[string][]deleteKey
	stats          *stats.Counters
}

type deleteKey struct {
	idType string
	idNum  int64
}

// New constructs a Sink bound to a live connection and a validated
// database schema. counters may be nil; a nil Counters is treated as a
// no-op sink for run statistics.
func New(conn *pgx.Conn, db *core.Database, opts Options, counters *stats.Counters) (*Sink, error) {
	if counters == nil {
		counters = &stats.Counters{}
	}
	s := &Sink{
		conn:           conn,
		db:             db,
		opts:           opts,
		writers:        make(map[string]*TableWriter, len(db.Tables)),
		pendingDeletes: make(map[string][]deleteKey),
		stats:          counters,
	}
	for i := range db.Tables {
		t := &db.Tables[i]
		schema := t.Options.Schema
		if schema == "" {
			schema = opts.Schema
		}
		s.writers[t.Name] = newTableWriter(conn, schema, t, opts.Watermark, opts.Mode)
	}
	return s, nil
}

// Prepare creates every table's staging area (import mode) so COPY can
// begin as soon as the dispatcher starts emitting rows. In update mode
// there is no staging table to create; rows flow straight to the live
// tables.
func (s *Sink) Prepare(ctx context.Context) error {
	if s.opts.Schema != "" {
		if _, err := s.conn.Exec(ctx, generateCreateSchema(s.opts.Schema)); err != nil {
			return &core.DatabaseError{Op: "create schema", Err: err}
		}
	}
	if s.opts.Mode != ModeImport {
		return nil
	}
	for _, w := range s.writers {
		if err := w.CreateStaging(ctx); err != nil {
			return err
		}
	}
	return nil
}

// InsertRow implements dispatcher.RowSink and evaluator.RowSink: it
// buffers row for table, flushing on watermark.
func (s *Sink) InsertRow(table string, row map[string]any) error {
	w, ok := s.writers[table]
	if !ok {
		return &core.EvaluationError{Table: table, Err: fmt.Errorf("no writer registered")}
	}
	n, err := w.Write(context.Background(), row)
	s.stats.RowsFlushed.Add(n)
	return err
}

// MarkChanged records that every table's previous rows for (idType,
// idNum) must be removed before the refreshed rows are committed (update
// mode only). The dispatcher calls this once per primitive it processes,
// before emitting its rows, and once per deleted primitive — conservative, since a table's
// previous run may or may not have inserted a row for this id, but a
// delete against a (idType, idNum) pair the table never held is a no-op.
func (s *Sink) MarkChanged(idType string, idNum int64) {
	if s.opts.Mode != ModeUpdate {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for table := range s.writers {
		s.pendingDeletes[table] = append(s.pendingDeletes[table], deleteKey{idType, idNum})
	}
}

// FlushAll flushes every table's staging buffer.
func (s *Sink) FlushAll(ctx context.Context) error {
	for _, w := range s.writers {
		n, err := w.Flush(ctx)
		s.stats.RowsFlushed.Add(n)
		if err != nil {
			return err
		}
	}
	return nil
}

// Commit runs the commit protocol appropriate to Options.Mode and
// returns the executed Plan for logging. On the first failed operation,
// the remaining plan is abandoned and the error is returned; staging
// tables (import mode) or partially-applied deletes (update mode) are
// left as-is for operator inspection (§4.6, §7).
func (s *Sink) Commit(ctx context.Context) (*Plan, error) {
	switch s.opts.Mode {
	case ModeImport:
		return s.commitImport(ctx)
	case ModeUpdate:
		return s.commitUpdate(ctx)
	default:
		return nil, fmt.Errorf("sink: unknown mode %q", s.opts.Mode)
	}
}

func (s *Sink) commitImport(ctx context.Context) (*Plan, error) {
	if err := s.FlushAll(ctx); err != nil {
		return nil, err
	}
	plan, err := s.buildImportPlan()
	if err != nil {
		return nil, err
	}
	if err := s.execute(ctx, plan); err != nil {
		return plan, err
	}
	return plan, nil
}

// commitUpdate deletes each reprocessed primitive's previous rows before
// flushing its refreshed rows into the live tables, so a row this run
// just inserted for a given (idType, idNum) is not then wiped out by the
// same run's own stale-row cleanup.
func (s *Sink) commitUpdate(ctx context.Context) (*Plan, error) {
	plan, err := s.buildUpdatePlan()
	if err != nil {
		return nil, err
	}
	if err := s.execute(ctx, plan); err != nil {
		return plan, err
	}
	if err := s.FlushAll(ctx); err != nil {
		return plan, err
	}
	return plan, nil
}

func (s *Sink) buildImportPlan() (*Plan, error) {
	plan := &Plan{}
	for i := range s.db.Tables {
		t := &s.db.Tables[i]
		w := s.writers[t.Name]
		schema := w.schema
		for _, idx := range t.Indexes {
			stmt, err := generateCreateIndex(t, schema, w.StagingName(), idx)
			if err != nil {
				return nil, &core.ConfigError{Subject: t.Name, Err: err}
			}
			plan.AddCreateIndex(t.Name, stmt)
		}
		if shouldCluster(t) && len(t.Indexes) > 0 {
			plan.AddCluster(t.Name, generateCluster(t, schema, w.StagingName(), t.Indexes[0]))
		}
		plan.AddAnalyze(t.Name, generateAnalyze(schema, w.StagingName()))
		plan.AddRename(t.Name, generateRename(schema, w.StagingName(), t.Name))
	}
	return plan, nil
}

func shouldCluster(t *core.Table) bool {
	switch t.Options.Cluster {
	case core.ClusterYes:
		return true
	case core.ClusterNo:
		return false
	default: // ClusterAuto, validated to require a geometry column
		return t.HasGeometryColumn()
	}
}

func (s *Sink) buildUpdatePlan() (*Plan, error) {
	plan := &Plan{}
	for i := range s.db.Tables {
		t := &s.db.Tables[i]
		keys := s.pendingDeletes[t.Name]
		if len(keys) == 0 || t.IDCol.Kind == "" { // no id columns to delete by
			continue
		}
		w := s.writers[t.Name]
		byType := make(map[string][]int64)
		for _, k := range keys {
			byType[k.idType] = append(byType[k.idType], k.idNum)
		}
		for idType, ids := range byType {
			plan.AddDeleteWhere(t.Name, generateDeleteWhere(t, w.schema, t.Name), idType, ids)
		}
	}
	return plan, nil
}

func (s *Sink) execute(ctx context.Context, plan *Plan) error {
	for _, op := range plan.Operations {
		tag, err := s.conn.Exec(ctx, op.SQL, op.Args...)
		if err != nil {
			return &core.DatabaseError{Op: fmt.Sprintf("%s on %s", op.Kind, op.Table), Err: err}
		}
		if op.Kind == OpDeleteWhere {
			s.stats.RowsDeleted.Add(tag.RowsAffected())
		}
	}
	return nil
}

// Close does nothing and returns nil; it does not close the connection
// passed to New, which stays with the caller.
func (s *Sink) Close() error { return nil }
