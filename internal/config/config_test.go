package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"osm2pgsql-flex/internal/core"
)

const sampleSchema = `
[database]
schema = "public"

[[tables]]
name = "points"
updatable = true

[tables.id_column]
kind = "node"

[[tables.columns]]
name = "name"
type = "text"
not_null = true

[[tables.columns]]
name = "geom"
type = "point"
srid = 3857

[[tables.indexes]]
name = "idx_points_geom"
columns = ["geom"]

[tables.options]
cluster = "yes"
`

func TestParseDecodesTablesColumnsAndIndexes(t *testing.T) {
	db, err := Parse(strings.NewReader(sampleSchema))
	require.NoError(t, err)

	assert.Equal(t, "public", db.Schema)
	require.Len(t, db.Tables, 1)

	tbl := db.Tables[0]
	assert.Equal(t, "points", tbl.Name)
	assert.True(t, tbl.Updatable)
	assert.Equal(t, core.IDKindNode, tbl.IDCol.Kind)
	assert.Equal(t, core.ClusterYes, tbl.Options.Cluster)

	require.Len(t, tbl.Columns, 2)
	assert.Equal(t, core.TypeText, tbl.Columns[0].Type)
	assert.True(t, tbl.Columns[0].NotNull)
	assert.Equal(t, 3857, tbl.Columns[1].ProjectionSRID)

	require.Len(t, tbl.Indexes, 1)
	assert.Equal(t, []string{"geom"}, tbl.Indexes[0].Columns)
}

func TestParseRejectsMalformedTOML(t *testing.T) {
	_, err := Parse(strings.NewReader("not = [valid"))
	require.Error(t, err)
	var cfgErr *core.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestParseFileMissingPathIsError(t *testing.T) {
	_, err := ParseFile("/nonexistent/schema.toml")
	assert.Error(t, err)
}

func TestClusterModeDefaultsToAutoOnUnknownValue(t *testing.T) {
	assert.Equal(t, core.ClusterAuto, clusterMode("bogus"))
	assert.Equal(t, core.ClusterYes, clusterMode("yes"))
	assert.Equal(t, core.ClusterNo, clusterMode("no"))
}
