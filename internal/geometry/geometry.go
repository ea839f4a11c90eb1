// Package geometry builds OGC geometries from OSM primitives and encodes
// them as Well-Known Binary for the bulk-load sink's COPY stream.
package geometry

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrUnclosedRing is returned by ring assembly when a multipolygon or
// boundary relation's way members do not close into rings.
var ErrUnclosedRing = errors.New("geometry: way members do not close into a ring")

// ErrMissingMember is returned when a referenced member was not found in
// the middle store (a dangling way or node reference).
var ErrMissingMember = errors.New("geometry: referenced member is missing")

// ErrEmpty is returned when too few coordinates remain after
// degenerate-segment collapse (fewer than 2 for a linestring, fewer than 4
// for a polygon) or when a collection ends up with no parts.
var ErrEmpty = errors.New("geometry: too few coordinates remain after collapse")

// Point is a single coordinate pair in projected (degree) units.
type Point struct {
	X float64
	Y float64
}

// Kind discriminates the geometry sum type.
type Kind uint8

const (
	KindPoint Kind = iota
	KindLineString
	KindPolygon
	KindMultiPoint
	KindMultiLineString
	KindMultiPolygon
	KindGeometryCollection
)

// Ring is a closed sequence of points, first == last.
type Ring []Point

// Geometry is a small sum type covering every shape the builder produces.
// Only the fields relevant to Kind are populated.
type Geometry struct {
	Kind     Kind
	Point    Point
	Line     []Point
	Rings    []Ring   // polygon: [0] outer, [1:] holes
	Polygons [][]Ring // multipolygon: one ring-set per polygon
	Lines    [][]Point
	Points   []Point
	Parts    []Geometry // geometrycollection
}

const (
	wkbNDR             = 1
	wkbTypePoint       = 1
	wkbTypeLineString  = 2
	wkbTypePolygon     = 3
	wkbTypeMultiPoint  = 4
	wkbTypeMultiLine   = 5
	wkbTypeMultiPoly   = 6
	wkbTypeGeomCollect = 7
)

// WKB encodes the geometry in little-endian (NDR) Well-Known Binary,
// the subset pgx's COPY binary format expects for a `geometry` column.
func (g Geometry) WKB() []byte {
	buf := make([]byte, 0, 64)
	return g.appendWKB(buf)
}

func (g Geometry) appendWKB(buf []byte) []byte {
	switch g.Kind {
	case KindPoint:
		buf = appendHeader(buf, wkbTypePoint)
		buf = appendPoint(buf, g.Point)
	case KindLineString:
		buf = appendHeader(buf, wkbTypeLineString)
		buf = appendPoints(buf, g.Line)
	case KindPolygon:
		buf = appendHeader(buf, wkbTypePolygon)
		buf = appendRings(buf, g.Rings)
	case KindMultiPoint:
		buf = appendHeader(buf, wkbTypeMultiPoint)
		buf = le32(buf, uint32(len(g.Points)))
		for _, p := range g.Points {
			buf = appendHeader(buf, wkbTypePoint)
			buf = appendPoint(buf, p)
		}
	case KindMultiLineString:
		buf = appendHeader(buf, wkbTypeMultiLine)
		buf = le32(buf, uint32(len(g.Lines)))
		for _, line := range g.Lines {
			buf = appendHeader(buf, wkbTypeLineString)
			buf = appendPoints(buf, line)
		}
	case KindMultiPolygon:
		buf = appendHeader(buf, wkbTypeMultiPoly)
		buf = le32(buf, uint32(len(g.Polygons)))
		for _, rings := range g.Polygons {
			buf = appendHeader(buf, wkbTypePolygon)
			buf = appendRings(buf, rings)
		}
	case KindGeometryCollection:
		buf = appendHeader(buf, wkbTypeGeomCollect)
		buf = le32(buf, uint32(len(g.Parts)))
		for _, part := range g.Parts {
			buf = part.appendWKB(buf)
		}
	}
	return buf
}

func appendHeader(buf []byte, wkbType uint32) []byte {
	buf = append(buf, wkbNDR)
	return le32(buf, wkbType)
}

func le32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func le64f(buf []byte, v float64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v))
	return append(buf, tmp[:]...)
}

func appendPoint(buf []byte, p Point) []byte {
	buf = le64f(buf, p.X)
	buf = le64f(buf, p.Y)
	return buf
}

func appendPoints(buf []byte, pts []Point) []byte {
	buf = le32(buf, uint32(len(pts)))
	for _, p := range pts {
		buf = appendPoint(buf, p)
	}
	return buf
}

func appendRings(buf []byte, rings []Ring) []byte {
	buf = le32(buf, uint32(len(rings)))
	for _, r := range rings {
		buf = appendPoints(buf, []Point(r))
	}
	return buf
}
