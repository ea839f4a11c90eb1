package geometry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPointPassesCoordinatesThrough(t *testing.T) {
	b := NewBuilder()
	g, err := b.BuildPoint(Expansion{NodePoint: Point{X: 10, Y: 20}})
	require.NoError(t, err)
	assert.Equal(t, KindPoint, g.Kind)
	assert.Equal(t, Point{X: 10, Y: 20}, g.Point)
}

func TestBuildLineStringCollapsesDuplicates(t *testing.T) {
	b := NewBuilder()
	pts := []Point{{X: 0, Y: 0}, {X: 0, Y: 0}, {X: 1, Y: 1}}
	g, err := b.BuildLineString(Expansion{WayPoints: pts})
	require.NoError(t, err)
	assert.Len(t, g.Line, 2)
}

func TestBuildLineStringTooFewPointsIsEmpty(t *testing.T) {
	b := NewBuilder()
	_, err := b.BuildLineString(Expansion{WayPoints: []Point{{X: 0, Y: 0}}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmpty))
}

func TestBuildPolygonRequiresClosedRing(t *testing.T) {
	b := NewBuilder()
	open := []Point{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}}
	_, err := b.BuildPolygon(Expansion{WayPoints: open})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnclosedRing))

	closedRing := append(open, open[0])
	g, err := b.BuildPolygon(Expansion{WayPoints: closedRing})
	require.NoError(t, err)
	assert.Equal(t, KindPolygon, g.Kind)
	assert.Len(t, g.Rings, 1)
}

func TestBuildMultiPolygonWrapsAssembleRingsErrors(t *testing.T) {
	b := NewBuilder()
	members := []MemberWay{
		{Role: "outer", Points: []Point{{X: 0, Y: 0}, {X: 1, Y: 1}}}, // never closes
	}
	_, err := b.BuildMultiPolygon(Expansion{Members: members})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnclosedRing))
}

func TestBuildGeometryCollectionMixesPolygonsAndLines(t *testing.T) {
	b := NewBuilder()
	square := []Point{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}, {X: 0, Y: 0}}
	line := []Point{{X: 5, Y: 5}, {X: 6, Y: 6}}
	g, err := b.BuildGeometryCollection(Expansion{Members: []MemberWay{
		{Points: square},
		{Points: line},
	}})
	require.NoError(t, err)
	require.Len(t, g.Parts, 2)
	assert.Equal(t, KindPolygon, g.Parts[0].Kind)
	assert.Equal(t, KindLineString, g.Parts[1].Kind)
}

func TestBuildGeometryCollectionAllDegenerateIsEmpty(t *testing.T) {
	b := NewBuilder()
	_, err := b.BuildGeometryCollection(Expansion{Members: []MemberWay{
		{Points: []Point{{X: 1, Y: 1}}},
	}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmpty))
}
