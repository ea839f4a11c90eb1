package sink

import (
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"

	"osm2pgsql-flex/internal/core"
)

func TestStagingBufferAddTracksColumnOrderAndByteCount(t *testing.T) {
	b := newStagingBuffer([]string{"osm_type", "osm_id", "name"})
	b.add(map[string]any{"osm_type": "N", "osm_id": int64(1), "name": "Cafe"})

	assert.False(t, b.empty())
	assert.Equal(t, []any{"N", int64(1), "Cafe"}, b.rows[0])
	assert.Greater(t, b.byteCount, 0)
}

func TestStagingBufferResetClearsRowsAndBytes(t *testing.T) {
	b := newStagingBuffer([]string{"name"})
	b.add(map[string]any{"name": "x"})
	require := assert.New(t)
	require.False(b.empty())

	b.reset()
	require.True(b.empty())
	require.Equal(0, b.byteCount)
}

func TestEstimateSizeByType(t *testing.T) {
	assert.Equal(t, 1, estimateSize(nil))
	assert.Equal(t, 3, estimateSize("abc"))
	assert.Equal(t, 4, estimateSize([]byte{1, 2, 3, 4}))
	assert.Equal(t, 8, estimateSize(int64(5)))
}

func TestCopySourceIteratesAllRows(t *testing.T) {
	src := &copySource{rows: [][]any{{1}, {2}, {3}}}
	var seen []any
	for src.Next() {
		vals, err := src.Values()
		assert.NoError(t, err)
		seen = append(seen, vals[0])
	}
	assert.Equal(t, []any{1, 2, 3}, seen)
	assert.NoError(t, src.Err())
}

func TestTableWriterWriteIdentifierImportTargetsStagingTable(t *testing.T) {
	w := newTableWriter(nil, "public", &core.Table{Name: "points"}, 0, ModeImport)
	got := w.writeIdentifier()
	assert.Equal(t, pgx.Identifier{"public", w.StagingName()}, got)
	assert.Contains(t, w.StagingName(), "points__staging_")
}

func TestTableWriterWriteIdentifierUpdateTargetsLiveTable(t *testing.T) {
	w := newTableWriter(nil, "public", &core.Table{Name: "points"}, 0, ModeUpdate)
	got := w.writeIdentifier()
	assert.Equal(t, pgx.Identifier{"public", "points"}, got)
	assert.Empty(t, w.StagingName(), "update mode never allocates a staging table name")
}
