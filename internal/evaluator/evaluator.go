// Package evaluator defines the row emitter / evaluator bridge: the host
// contract a scripting runtime (out of scope here) uses to declare tables
// and emit rows while processing OSM primitives.
package evaluator

import (
	"context"

	"osm2pgsql-flex/internal/geometry"
)

// GeomOptions carries the options a RowEmitter accepts when asked to
// build a geometry (§6.2: as_point/as_linestring/as_polygon/...).
type GeomOptions struct {
	SRID int
}

// ObjectHandle exposes the currently-processed primitive's identity and
// tags to an Evaluator (§6.2 `object` hook).
type ObjectHandle interface {
	Type() string // "node", "way", or "relation"
	ID() int64
	Tags() map[string]string
}

// GeometryHandle wraps a built geometry so it can be attached to a row
// without the evaluator needing to import package geometry directly.
type GeometryHandle interface {
	WKB() []byte
}

type geomHandle struct{ g geometry.Geometry }

func (h geomHandle) WKB() []byte { return h.g.WKB() }

// TableHandle is the per-table insert hook (§6.2 `<table>:insert(row)`).
type TableHandle interface {
	Insert(row map[string]any) error
}

// RowEmitter is the per-primitive context an Evaluator uses to build
// geometries and insert rows while processing one node/way/relation.
type RowEmitter interface {
	Object() ObjectHandle
	AsPoint(opts GeomOptions) (GeometryHandle, error)
	AsLineString(opts GeomOptions) (GeometryHandle, error)
	AsPolygon(opts GeomOptions) (GeometryHandle, error)
	AsMultiPolygon(opts GeomOptions) (GeometryHandle, error)
	AsGeometryCollection(opts GeomOptions) (GeometryHandle, error)
	Table(name string) (TableHandle, error)
}

// Evaluator is the scripting-runtime contract the dispatcher drives. Any
// real embedded-language evaluator plugs in behind this interface without
// the dispatcher or Bridge changing.
type Evaluator interface {
	ProcessNode(ctx context.Context, emit RowEmitter) error
	ProcessWay(ctx context.Context, emit RowEmitter) error
	ProcessRelation(ctx context.Context, emit RowEmitter) error
}
