package geometry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(x0, y0, size float64) []Point {
	return []Point{
		{X: x0, Y: y0},
		{X: x0, Y: y0 + size},
		{X: x0 + size, Y: y0 + size},
		{X: x0 + size, Y: y0},
		{X: x0, Y: y0},
	}
}

func TestAssembleRingsSingleOuterByRole(t *testing.T) {
	members := []MemberWay{{Role: "outer", Points: square(0, 0, 1)}}
	polys, err := AssembleRings(members)
	require.NoError(t, err)
	require.Len(t, polys, 1)
	assert.Len(t, polys[0], 1)
}

func TestAssembleRingsNestsHoleUnderRole(t *testing.T) {
	members := []MemberWay{
		{Role: "outer", Points: square(0, 0, 10)},
		{Role: "inner", Points: square(2, 2, 1)},
	}
	polys, err := AssembleRings(members)
	require.NoError(t, err)
	require.Len(t, polys, 1)
	assert.Len(t, polys[0], 2, "outer + one hole")
}

func TestAssembleRingsAreaSignFallbackForUntaggedRoles(t *testing.T) {
	members := []MemberWay{
		{Points: square(0, 0, 10)}, // no role: larger area -> outer
		{Points: square(2, 2, 1)},  // no role: smaller area -> hole
	}
	polys, err := AssembleRings(members)
	require.NoError(t, err)
	require.Len(t, polys, 1)
	assert.Len(t, polys[0], 2)
}

func TestAssembleRingsConcatenatesSplitSegments(t *testing.T) {
	full := square(0, 0, 1)
	// Split the ring into two way segments sharing endpoints.
	members := []MemberWay{
		{Role: "outer", Points: full[:3]},
		{Role: "outer", Points: append([]Point{full[2]}, full[3:]...)},
	}
	polys, err := AssembleRings(members)
	require.NoError(t, err)
	require.Len(t, polys, 1)
	assert.True(t, closed(Ring(polys[0][0])))
}

func TestAssembleRingsUnclosedIsError(t *testing.T) {
	members := []MemberWay{
		{Role: "outer", Points: []Point{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 0}}},
	}
	_, err := AssembleRings(members)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnclosedRing))
}

func TestAssembleRingsMultipleOutersNestByNearestCentroid(t *testing.T) {
	members := []MemberWay{
		{Role: "outer", Points: square(0, 0, 10)},
		{Role: "outer", Points: square(100, 100, 10)},
		{Role: "inner", Points: square(2, 2, 1)}, // close to first outer
	}
	polys, err := AssembleRings(members)
	require.NoError(t, err)
	require.Len(t, polys, 2)

	withHole := 0
	for _, p := range polys {
		if len(p) == 2 {
			withHole++
		}
	}
	assert.Equal(t, 1, withHole)
}

func TestSignedAreaWindingSign(t *testing.T) {
	cw := Ring(square(0, 0, 1))
	ccw := Ring(reversed(square(0, 0, 1)))
	assert.Less(t, signedArea(cw), 0.0)
	assert.Greater(t, signedArea(ccw), 0.0)
}
