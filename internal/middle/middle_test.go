package middle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"osm2pgsql-flex/internal/osm"
)

func TestNewUnknownModeIsError(t *testing.T) {
	_, err := New(Mode("bogus"), Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestImportStorePutIsIdempotentOnVersion(t *testing.T) {
	s, err := New(ModeImport, Options{})
	require.NoError(t, err)

	n1 := osm.Node{ID: 1, Version: 2, Coord: osm.CoordFromDegrees(1, 2)}
	n2 := osm.Node{ID: 1, Version: 1, Coord: osm.CoordFromDegrees(99, 99)}

	require.NoError(t, s.PutNode(n1))
	require.NoError(t, s.PutNode(n2)) // older version: no-op

	p, ok, err := s.NodeCoords(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1.0, p.X)
	assert.Equal(t, 2.0, p.Y)
}

func TestImportStoreReverseIndexesAreEmptyStubs(t *testing.T) {
	s, err := New(ModeImport, Options{})
	require.NoError(t, err)

	ways, err := s.WaysUsingNode(1)
	require.NoError(t, err)
	assert.Empty(t, ways)

	rels, err := s.RelationsUsingRelation(1)
	require.NoError(t, err)
	assert.Empty(t, rels)
}

func TestUpdateStoreWayReverseIndex(t *testing.T) {
	s, err := New(ModeUpdate, Options{})
	require.NoError(t, err)

	w := osm.Way{ID: 10, Version: 1, Refs: []osm.ID{1, 2, 3}}
	require.NoError(t, s.PutWay(w))

	ways, err := s.WaysUsingNode(2)
	require.NoError(t, err)
	assert.ElementsMatch(t, []osm.ID{10}, ways)
}

func TestUpdateStoreWayReindexOnRefsChange(t *testing.T) {
	s, err := New(ModeUpdate, Options{})
	require.NoError(t, err)

	require.NoError(t, s.PutWay(osm.Way{ID: 10, Version: 1, Refs: []osm.ID{1, 2}}))
	require.NoError(t, s.PutWay(osm.Way{ID: 10, Version: 2, Refs: []osm.ID{2, 3}}))

	ways, err := s.WaysUsingNode(1)
	require.NoError(t, err)
	assert.Empty(t, ways, "node 1 is no longer referenced by way 10")

	ways, err = s.WaysUsingNode(3)
	require.NoError(t, err)
	assert.ElementsMatch(t, []osm.ID{10}, ways)
}

func TestUpdateStoreRelationMemberIndexesByType(t *testing.T) {
	s, err := New(ModeUpdate, Options{})
	require.NoError(t, err)

	r := osm.Relation{ID: 100, Version: 1, Members: []osm.Member{
		{Type: osm.TypeNode, Ref: 1, Role: "label"},
		{Type: osm.TypeWay, Ref: 2, Role: "outer"},
		{Type: osm.TypeRelation, Ref: 3, Role: ""},
	}}
	require.NoError(t, s.PutRelation(r))

	byNode, err := s.RelationsUsingNode(1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []osm.ID{100}, byNode)

	byWay, err := s.RelationsUsingWay(2)
	require.NoError(t, err)
	assert.ElementsMatch(t, []osm.ID{100}, byWay)

	byRel, err := s.RelationsUsingRelation(3)
	require.NoError(t, err)
	assert.ElementsMatch(t, []osm.ID{100}, byRel)
}

func TestUpdateStoreDeleteRelationCleansUpIndexes(t *testing.T) {
	s, err := New(ModeUpdate, Options{})
	require.NoError(t, err)

	r := osm.Relation{ID: 100, Version: 1, Members: []osm.Member{
		{Type: osm.TypeRelation, Ref: 3},
	}}
	require.NoError(t, s.PutRelation(r))
	require.NoError(t, s.DeleteRelation(100))

	byRel, err := s.RelationsUsingRelation(3)
	require.NoError(t, err)
	assert.Empty(t, byRel)

	_, ok, err := s.Relation(100)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdateStoreDeleteWayUnindexesNodes(t *testing.T) {
	s, err := New(ModeUpdate, Options{})
	require.NoError(t, err)

	require.NoError(t, s.PutWay(osm.Way{ID: 10, Version: 1, Refs: []osm.ID{1, 2}}))
	require.NoError(t, s.DeleteWay(10))

	ways, err := s.WaysUsingNode(1)
	require.NoError(t, err)
	assert.Empty(t, ways)
}

func TestUpdateStoreDeleteNodePreservesDependentsOfItsOwnID(t *testing.T) {
	s, err := New(ModeUpdate, Options{})
	require.NoError(t, err)

	require.NoError(t, s.PutWay(osm.Way{ID: 10, Version: 1, Refs: []osm.ID{1, 2}}))
	r := osm.Relation{ID: 100, Version: 1, Members: []osm.Member{{Type: osm.TypeNode, Ref: 1}}}
	require.NoError(t, s.PutRelation(r))

	require.NoError(t, s.DeleteNode(1))

	ways, err := s.WaysUsingNode(1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []osm.ID{10}, ways, "way 10's dependency on the deleted node must still be discoverable so Propagate can re-evaluate it")

	rels, err := s.RelationsUsingNode(1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []osm.ID{100}, rels)
}

func TestUpdateStoreDeleteWayPreservesRelationDependentsOfItsOwnID(t *testing.T) {
	s, err := New(ModeUpdate, Options{})
	require.NoError(t, err)

	require.NoError(t, s.PutWay(osm.Way{ID: 10, Version: 1, Refs: []osm.ID{1, 2}}))
	r := osm.Relation{ID: 100, Version: 1, Members: []osm.Member{{Type: osm.TypeWay, Ref: 10}}}
	require.NoError(t, s.PutRelation(r))

	require.NoError(t, s.DeleteWay(10))

	rels, err := s.RelationsUsingWay(10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []osm.ID{100}, rels, "relation 100's dependency on the deleted way must still be discoverable so Propagate can re-evaluate it")

	// The way itself is gone, and its own membership in waysByNode is
	// unindexed, so it no longer shows up as a dependent of its member nodes.
	ways, err := s.WaysUsingNode(1)
	require.NoError(t, err)
	assert.Empty(t, ways)
}
