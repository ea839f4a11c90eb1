package evaluator

import (
	"fmt"
	"sync"

	"osm2pgsql-flex/internal/core"
	"osm2pgsql-flex/internal/geometry"
	"osm2pgsql-flex/internal/osm"
)

// phase tracks which operations are currently legal: Table and the As*
// geometry builders are an error until BeginProcessing has been called.
// Tables come from the schema passed to NewBridge; the Bridge has no
// define_table operation, so there is no table declaration to guard.
type phase int

const (
	phaseConfiguring phase = iota // Table and As* return an error
	phaseProcessing               // Table and As* are legal
)

// RowSink receives a finished row destined for a table, the seam Bridge
// hands rows to the sink through.
type RowSink interface {
	InsertRow(table string, row map[string]any) error
}

// Bridge is the concrete RowEmitter and table-handle registry
// implementation. It owns the configuration-vs-processing phase guard,
// the type-coercion table, and automatic id-column fill-in (§4.4).
type Bridge struct {
	mu     sync.Mutex
	phase  phase
	db     *core.Database
	sink   RowSink
	object ObjectHandle
	ref    osm.Ref
	builder geometry.Builder
	nodeExp geometry.Expansion
}

// NewBridge constructs a Bridge bound to a validated database schema and
// a row sink. It starts in the configuring phase.
func NewBridge(db *core.Database, sink RowSink) *Bridge {
	return &Bridge{db: db, sink: sink, phase: phaseConfiguring, builder: geometry.NewBuilder()}
}

// BeginProcessing transitions the bridge from configuring to processing.
// Calling it twice, or calling it before any table has been declared, is
// not itself an error — the dispatcher calls it once per run after the
// schema is loaded.
func (b *Bridge) BeginProcessing() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.phase = phaseProcessing
}

// BeginObject sets the primitive currently being processed and its
// resolved member expansion, called by the dispatcher immediately before
// invoking the Evaluator for that primitive.
func (b *Bridge) BeginObject(ref osm.Ref, obj ObjectHandle, exp geometry.Expansion) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ref = ref
	b.object = obj
	b.nodeExp = exp
}

func (b *Bridge) Object() ObjectHandle {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.object
}

func (b *Bridge) requireProcessing(op string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.phase != phaseProcessing {
		return &core.EvaluationError{Err: fmt.Errorf("%s called outside the processing phase", op)}
	}
	return nil
}

func (b *Bridge) AsPoint(opts GeomOptions) (GeometryHandle, error) {
	if err := b.requireProcessing("as_point"); err != nil {
		return nil, err
	}
	g, err := b.builder.BuildPoint(b.nodeExp)
	if err != nil {
		return nil, &core.GeometryError{Kind: "point", Err: err}
	}
	return geomHandle{g}, nil
}

func (b *Bridge) AsLineString(opts GeomOptions) (GeometryHandle, error) {
	if err := b.requireProcessing("as_linestring"); err != nil {
		return nil, err
	}
	g, err := b.builder.BuildLineString(b.nodeExp)
	if err != nil {
		return nil, &core.GeometryError{Kind: "linestring", Err: err}
	}
	return geomHandle{g}, nil
}

func (b *Bridge) AsPolygon(opts GeomOptions) (GeometryHandle, error) {
	if err := b.requireProcessing("as_polygon"); err != nil {
		return nil, err
	}
	g, err := b.builder.BuildPolygon(b.nodeExp)
	if err != nil {
		return nil, &core.GeometryError{Kind: "polygon", Err: err}
	}
	return geomHandle{g}, nil
}

func (b *Bridge) AsMultiPolygon(opts GeomOptions) (GeometryHandle, error) {
	if err := b.requireProcessing("as_multipolygon"); err != nil {
		return nil, err
	}
	g, err := b.builder.BuildMultiPolygon(b.nodeExp)
	if err != nil {
		return nil, &core.GeometryError{Kind: "multipolygon", Err: err}
	}
	return geomHandle{g}, nil
}

func (b *Bridge) AsGeometryCollection(opts GeomOptions) (GeometryHandle, error) {
	if err := b.requireProcessing("as_geometrycollection"); err != nil {
		return nil, err
	}
	g, err := b.builder.BuildGeometryCollection(b.nodeExp)
	if err != nil {
		return nil, &core.GeometryError{Kind: "geometrycollection", Err: err}
	}
	return geomHandle{g}, nil
}

func (b *Bridge) Table(name string) (TableHandle, error) {
	if err := b.requireProcessing("table"); err != nil {
		return nil, err
	}
	t, ok := b.db.FindTable(name)
	if !ok {
		return nil, &core.EvaluationError{Table: name, Err: fmt.Errorf("no such table")}
	}
	return &tableHandle{bridge: b, table: t}, nil
}

type tableHandle struct {
	bridge *Bridge
	table  *core.Table
}

// Insert coerces row against the table's declared column types, fills in
// the id columns automatically from the primitive currently being
// processed, rejects not-null violations, and forwards the finished row
// to the sink.
func (h *tableHandle) Insert(row map[string]any) error {
	h.bridge.mu.Lock()
	ref := h.bridge.ref
	h.bridge.mu.Unlock()

	out := make(map[string]any, len(row)+2)
	for k, v := range row {
		col, ok := h.table.FindColumn(k)
		if !ok {
			return &core.EvaluationError{Table: h.table.Name, Err: fmt.Errorf("unknown column %q", k)}
		}
		coerced, err := coerce(col, v)
		if err != nil {
			return &core.EvaluationError{Table: h.table.Name, Err: fmt.Errorf("column %q: %w", k, err)}
		}
		out[k] = coerced
	}
	if h.table.IDCol.Kind != "" {
		fillIDColumns(h.table, ref, out)
	}
	for _, col := range h.table.Columns {
		if col.NotNull {
			if v, ok := out[col.Name]; !ok || v == nil {
				return &core.EvaluationError{Table: h.table.Name, Err: fmt.Errorf("column %q: not-null violation", col.Name)}
			}
		}
	}
	return h.bridge.sink.InsertRow(h.table.Name, out)
}

func fillIDColumns(t *core.Table, ref osm.Ref, row map[string]any) {
	typeCol := t.IDCol.TypeColumnName()
	numCol := t.IDCol.NumColumnName()
	if _, ok := row[typeCol]; !ok {
		row[typeCol] = idTypeLetter(ref.Type)
	}
	if _, ok := row[numCol]; !ok {
		row[numCol] = int64(ref.ID)
	}
}

func idTypeLetter(t osm.Type) string {
	switch t {
	case osm.TypeNode:
		return "N"
	case osm.TypeWay:
		return "W"
	case osm.TypeRelation:
		return "R"
	default:
		return "?"
	}
}
