package sink

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"osm2pgsql-flex/internal/core"
)

// ProbeCapabilities checks that every tablespace and schema the database
// description references actually exists before any DDL runs against it.
// A failure is returned as a *core.ConfigError naming the offending
// identifier and the DDL statement needed to create it.
func ProbeCapabilities(ctx context.Context, conn *pgx.Conn, db *core.Database) error {
	schemas := map[string]bool{}
	tablespaces := map[string]bool{}
	if db.Schema != "" {
		schemas[db.Schema] = true
	}
	for _, t := range db.Tables {
		if t.Options.Schema != "" {
			schemas[t.Options.Schema] = true
		}
		if t.Options.Tablespace != "" {
			tablespaces[t.Options.Tablespace] = true
		}
		for _, idx := range t.Indexes {
			if idx.Tablespace != "" {
				tablespaces[idx.Tablespace] = true
			}
		}
	}
	for name := range schemas {
		exists, err := rowExists(ctx, conn, "SELECT 1 FROM pg_namespace WHERE nspname = $1", name)
		if err != nil {
			return &core.DatabaseError{Op: "probe schema", Err: err}
		}
		if !exists {
			return &core.ConfigError{Subject: name, Err: fmt.Errorf("schema does not exist; run: %s", generateCreateSchema(name))}
		}
	}
	for name := range tablespaces {
		exists, err := rowExists(ctx, conn, "SELECT 1 FROM pg_tablespace WHERE spcname = $1", name)
		if err != nil {
			return &core.DatabaseError{Op: "probe tablespace", Err: err}
		}
		if !exists {
			return &core.ConfigError{Subject: name, Err: fmt.Errorf("tablespace does not exist; run: CREATE TABLESPACE %s LOCATION '...'", QuoteIdentifier(name))}
		}
	}
	return nil
}

func rowExists(ctx context.Context, conn *pgx.Conn, query string, args ...any) (bool, error) {
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	return rows.Next(), rows.Err()
}
