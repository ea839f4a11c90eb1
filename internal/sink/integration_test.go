package sink

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"osm2pgsql-flex/internal/core"
	"osm2pgsql-flex/internal/stats"
)

// TestSinkImportCommitIntegration exercises the full import commit
// protocol — staging table, watermark-triggered COPY flush, index/analyze/
// rename — against a real PostgreSQL server (§8 Scenario 6).
func TestSinkImportCommitIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	dsn := setupPostgres(t, ctx)

	conn, err := pgx.Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(ctx) })

	db := &core.Database{
		Schema: "public",
		Tables: []core.Table{
			{
				Name:  "points",
				IDCol: core.IDColumn{Kind: core.IDKindNode},
				Columns: []core.Column{
					{Name: "name", Type: core.TypeText, NotNull: true},
				},
			},
		},
	}

	counters := &stats.Counters{}
	// A 1-byte watermark forces every Write call past Prepare to flush
	// immediately, exercising the COPY path on every row rather than once
	// at Commit time.
	s, err := New(conn, db, Options{Schema: "public", Mode: ModeImport, Watermark: 1}, counters)
	require.NoError(t, err)

	require.NoError(t, s.Prepare(ctx))

	for i := 0; i < 5; i++ {
		row := map[string]any{
			"osm_type": "N",
			"osm_id":   int64(i),
			"name":     fmt.Sprintf("node-%d", i),
		}
		require.NoError(t, s.InsertRow("points", row))
	}

	plan, err := s.Commit(ctx)
	require.NoError(t, err)
	require.NotNil(t, plan)

	var count int
	err = conn.QueryRow(ctx, `SELECT count(*) FROM public.points`).Scan(&count)
	require.NoError(t, err)
	require.Equal(t, 5, count)

	require.EqualValues(t, 5, counters.Snapshot().RowsFlushed)
}

// TestSinkUpdateCommitIntegration exercises the update commit protocol —
// delete-then-insert against the live table, no staging table involved —
// against a real PostgreSQL server. It re-processes an id within the same
// run that deletes its previous rows, which only survives if Commit runs
// the deletes before flushing the refreshed insert (§4.6).
func TestSinkUpdateCommitIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	dsn := setupPostgres(t, ctx)

	conn, err := pgx.Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(ctx) })

	db := &core.Database{
		Schema: "public",
		Tables: []core.Table{
			{
				Name:  "points",
				IDCol: core.IDColumn{Kind: core.IDKindNode},
				Columns: []core.Column{
					{Name: "name", Type: core.TypeText, NotNull: true},
				},
			},
		},
	}

	_, err = conn.Exec(ctx, `CREATE TABLE public.points (osm_type text, osm_id bigint, name text NOT NULL)`)
	require.NoError(t, err)
	_, err = conn.Exec(ctx, `INSERT INTO public.points (osm_type, osm_id, name) VALUES ('N', 1, 'old-name')`)
	require.NoError(t, err)

	counters := &stats.Counters{}
	s, err := New(conn, db, Options{Schema: "public", Mode: ModeUpdate}, counters)
	require.NoError(t, err)
	require.NoError(t, s.Prepare(ctx))

	s.MarkChanged("N", 1)
	require.NoError(t, s.InsertRow("points", map[string]any{
		"osm_type": "N",
		"osm_id":   int64(1),
		"name":     "new-name",
	}))

	plan, err := s.Commit(ctx)
	require.NoError(t, err)
	require.NotNil(t, plan)

	var count int
	err = conn.QueryRow(ctx, `SELECT count(*) FROM public.points WHERE osm_id = 1`).Scan(&count)
	require.NoError(t, err)
	require.Equal(t, 1, count, "the refreshed row must survive this run's own stale-row cleanup")

	var name string
	err = conn.QueryRow(ctx, `SELECT name FROM public.points WHERE osm_id = 1`).Scan(&name)
	require.NoError(t, err)
	require.Equal(t, "new-name", name)
}

func setupPostgres(t *testing.T, ctx context.Context) string {
	t.Helper()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("osm2pgsql_flex_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
	)
	require.NoError(t, err, "failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")
	return dsn
}
