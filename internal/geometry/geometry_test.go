package geometry

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWKBPointHeader(t *testing.T) {
	g := Geometry{Kind: KindPoint, Point: Point{X: 1.5, Y: -2.25}}
	b := g.WKB()

	require.Len(t, b, 1+4+8+8)
	assert.Equal(t, byte(1), b[0], "NDR byte-order flag")
	assert.Equal(t, uint32(wkbTypePoint), binary.LittleEndian.Uint32(b[1:5]))
	assert.Equal(t, 1.5, math.Float64frombits(binary.LittleEndian.Uint64(b[5:13])))
	assert.Equal(t, -2.25, math.Float64frombits(binary.LittleEndian.Uint64(b[13:21])))
}

func TestWKBLineString(t *testing.T) {
	g := Geometry{Kind: KindLineString, Line: []Point{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 0}}}
	b := g.WKB()

	assert.Equal(t, uint32(wkbTypeLineString), binary.LittleEndian.Uint32(b[1:5]))
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(b[5:9]))
	assert.Len(t, b, 1+4+4+3*16)
}

func TestWKBPolygonRingCount(t *testing.T) {
	outer := Ring{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 0, Y: 0}}
	hole := Ring{{X: 0.1, Y: 0.1}, {X: 0.1, Y: 0.2}, {X: 0.2, Y: 0.2}, {X: 0.1, Y: 0.1}}
	g := Geometry{Kind: KindPolygon, Rings: []Ring{outer, hole}}
	b := g.WKB()

	assert.Equal(t, uint32(wkbTypePolygon), binary.LittleEndian.Uint32(b[1:5]))
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(b[5:9]))
}

func TestWKBMultiPolygonNesting(t *testing.T) {
	outer := Ring{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 0, Y: 0}}
	g := Geometry{Kind: KindMultiPolygon, Polygons: [][]Ring{{outer}, {outer}}}
	b := g.WKB()

	assert.Equal(t, uint32(wkbTypeMultiPoly), binary.LittleEndian.Uint32(b[1:5]))
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(b[5:9]))
	// Each part starts with its own NDR byte + wkbTypePolygon.
	assert.Equal(t, byte(1), b[9])
	assert.Equal(t, uint32(wkbTypePolygon), binary.LittleEndian.Uint32(b[10:14]))
}

func TestWKBGeometryCollectionRecurses(t *testing.T) {
	pt := Geometry{Kind: KindPoint, Point: Point{X: 1, Y: 2}}
	line := Geometry{Kind: KindLineString, Line: []Point{{X: 0, Y: 0}, {X: 1, Y: 1}}}
	g := Geometry{Kind: KindGeometryCollection, Parts: []Geometry{pt, line}}
	b := g.WKB()

	assert.Equal(t, uint32(wkbTypeGeomCollect), binary.LittleEndian.Uint32(b[1:5]))
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(b[5:9]))
}
