package sink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"osm2pgsql-flex/internal/core"
	"osm2pgsql-flex/internal/stats"
)

func testDatabase() *core.Database {
	return &core.Database{
		Schema: "public",
		Tables: []core.Table{
			{
				Name:  "points",
				IDCol: core.IDColumn{Kind: core.IDKindNode},
				Columns: []core.Column{
					{Name: "name", Type: core.TypeText},
					{Name: "geom", Type: core.TypePoint},
				},
				Indexes: []core.Index{{Name: "idx_points_geom", Columns: []string{"geom"}}},
			},
		},
	}
}

func TestNewBuildsOneWriterPerTable(t *testing.T) {
	db := testDatabase()
	s, err := New(nil, db, Options{Schema: "public", Mode: ModeImport}, nil)
	require.NoError(t, err)
	assert.Contains(t, s.writers, "points")
	assert.NotNil(t, s.stats, "a nil Counters is replaced with a usable zero value")
}

func TestShouldClusterAutoRequiresGeometryColumn(t *testing.T) {
	withGeom := &core.Table{Columns: []core.Column{{Name: "geom", Type: core.TypePoint}}, Options: core.TableOptions{Cluster: core.ClusterAuto}}
	withoutGeom := &core.Table{Columns: []core.Column{{Name: "name", Type: core.TypeText}}, Options: core.TableOptions{Cluster: core.ClusterAuto}}
	assert.True(t, shouldCluster(withGeom))
	assert.False(t, shouldCluster(withoutGeom))

	forcedOff := &core.Table{Columns: []core.Column{{Name: "geom", Type: core.TypePoint}}, Options: core.TableOptions{Cluster: core.ClusterNo}}
	assert.False(t, shouldCluster(forcedOff))
}

func TestBuildImportPlanOrdersIndexClusterAnalyzeRename(t *testing.T) {
	db := testDatabase()
	s, err := New(nil, db, Options{Schema: "public", Mode: ModeImport}, &stats.Counters{})
	require.NoError(t, err)

	plan, err := s.buildImportPlan()
	require.NoError(t, err)
	require.Len(t, plan.Operations, 4) // create_index, cluster (geometry column present), analyze, rename
	assert.Equal(t, OpCreateIndex, plan.Operations[0].Kind)
	assert.Equal(t, OpCluster, plan.Operations[1].Kind)
	assert.Equal(t, OpAnalyze, plan.Operations[2].Kind)
	assert.Equal(t, OpRename, plan.Operations[3].Kind)
}

func TestMarkChangedIsNoopOutsideUpdateMode(t *testing.T) {
	db := testDatabase()
	s, err := New(nil, db, Options{Mode: ModeImport}, nil)
	require.NoError(t, err)
	s.MarkChanged("N", 1)
	assert.Empty(t, s.pendingDeletes["points"])
}

func TestBuildUpdatePlanGroupsDeletesByIDType(t *testing.T) {
	db := testDatabase()
	s, err := New(nil, db, Options{Schema: "public", Mode: ModeUpdate}, nil)
	require.NoError(t, err)

	s.MarkChanged("N", 1)
	s.MarkChanged("N", 2)
	s.MarkChanged("W", 3)

	plan, err := s.buildUpdatePlan()
	require.NoError(t, err)
	require.Len(t, plan.Operations, 2)
	for _, op := range plan.Operations {
		assert.Equal(t, OpDeleteWhere, op.Kind)
		assert.Len(t, op.Args, 2)
	}
}

func TestBuildUpdatePlanSkipsUntouchedTables(t *testing.T) {
	db := testDatabase()
	s, err := New(nil, db, Options{Mode: ModeUpdate}, nil)
	require.NoError(t, err)

	plan, err := s.buildUpdatePlan()
	require.NoError(t, err)
	assert.Empty(t, plan.Operations)
}
