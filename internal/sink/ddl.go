package sink

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"osm2pgsql-flex/internal/core"
)

// QuoteIdentifier double-quotes name the way PostgreSQL requires,
// delegating to pgx.Identifier.Sanitize so identifiers are never
// string-concatenated by hand (§6.3).
func QuoteIdentifier(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// qualifiedTable returns schema-qualified, quoted "schema"."table".
func qualifiedTable(schema, table string) string {
	if schema == "" {
		return QuoteIdentifier(table)
	}
	return fmt.Sprintf("%s.%s", QuoteIdentifier(schema), QuoteIdentifier(table))
}

// pgType maps a flex logical DataType to its PostgreSQL column type.
func pgType(t core.DataType) (string, error) {
	switch t {
	case core.TypeText:
		return "text", nil
	case core.TypeBool:
		return "boolean", nil
	case core.TypeInt2:
		return "smallint", nil
	case core.TypeInt4, core.TypeIDNum:
		return "integer", nil
	case core.TypeInt8:
		return "bigint", nil
	case core.TypeReal:
		return "real", nil
	case core.TypeNumeric, core.TypeArea:
		return "numeric", nil
	case core.TypeHstore:
		return "hstore", nil
	case core.TypeJSONB:
		return "jsonb", nil
	case core.TypeDirection:
		return "smallint", nil
	case core.TypeIDType:
		return "char(1)", nil
	case core.TypeGeometry:
		return "geometry", nil
	case core.TypePoint:
		return "geometry(Point)", nil
	case core.TypeLineString:
		return "geometry(LineString)", nil
	case core.TypePolygon:
		return "geometry(Polygon)", nil
	case core.TypeMultiPolygon:
		return "geometry(MultiPolygon)", nil
	case core.TypeGeometryCollect:
		return "geometry(GeometryCollection)", nil
	default:
		return "", fmt.Errorf("sink: no PostgreSQL type mapping for %q", t)
	}
}

func pgTypeWithSRID(c core.Column) (string, error) {
	base, err := pgType(c.Type)
	if err != nil {
		return "", err
	}
	if c.Type.IsGeometry() && c.ProjectionSRID != 0 {
		if c.Type == core.TypeGeometry {
			return fmt.Sprintf("geometry(Geometry,%d)", c.ProjectionSRID), nil
		}
		return strings.TrimSuffix(base, ")") + fmt.Sprintf(",%d)", c.ProjectionSRID), nil
	}
	return base, nil
}

// generateCreateTable emits a CREATE TABLE statement for name against t's
// declared id-column policy and columns, targeting schema (which may
// differ from t's final name, used for staging tables — §4.6).
func generateCreateTable(t *core.Table, schema, name string) (string, error) {
	var cols []string
	if t.IDCol.Kind != "" {
		cols = append(cols, fmt.Sprintf("%s char(1) NOT NULL", QuoteIdentifier(t.IDCol.TypeColumnName())))
		cols = append(cols, fmt.Sprintf("%s bigint NOT NULL", QuoteIdentifier(t.IDCol.NumColumnName())))
	}
	for _, c := range t.Columns {
		colType, err := pgTypeWithSRID(c)
		if err != nil {
			return "", err
		}
		def := fmt.Sprintf("%s %s", QuoteIdentifier(c.Name), colType)
		if c.NotNull {
			def += " NOT NULL"
		}
		cols = append(cols, def)
	}
	if len(cols) == 0 {
		return "", fmt.Errorf("sink: table %q has no columns to create", t.Name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n    %s\n)", qualifiedTable(schema, name), strings.Join(cols, ",\n    "))
	if t.Options.Tablespace != "" {
		fmt.Fprintf(&b, " TABLESPACE %s", QuoteIdentifier(t.Options.Tablespace))
	}
	return b.String(), nil
}

// generateCreateIndex emits a CREATE INDEX statement for idx on table
// schema.name, defaulting to USING gist on geometry columns and btree
// otherwise, and to fillfactor=100 when t is not Updatable (§4.6).
func generateCreateIndex(t *core.Table, schema, name string, idx core.Index) (string, error) {
	method := idx.Method
	if method == "" {
		method = defaultIndexMethod(t, idx)
	}
	cols := make([]string, len(idx.Columns))
	for i, c := range idx.Columns {
		cols[i] = QuoteIdentifier(c)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE INDEX %s ON %s USING %s (%s)",
		QuoteIdentifier(idx.Name), qualifiedTable(schema, name), method, strings.Join(cols, ", "))
	fillfactor := idx.Fillfactor
	if fillfactor == 0 && !t.Updatable {
		fillfactor = 100
	}
	if fillfactor > 0 {
		fmt.Fprintf(&b, " WITH (fillfactor=%d)", fillfactor)
	}
	if idx.Tablespace != "" {
		fmt.Fprintf(&b, " TABLESPACE %s", QuoteIdentifier(idx.Tablespace))
	}
	if idx.Where != "" {
		fmt.Fprintf(&b, " WHERE %s", idx.Where)
	}
	return b.String(), nil
}

func defaultIndexMethod(t *core.Table, idx core.Index) string {
	for _, colName := range idx.Columns {
		if col, ok := t.FindColumn(colName); ok && col.Type.IsGeometry() {
			return "gist"
		}
	}
	return "btree"
}

func generateCluster(t *core.Table, schema, name string, idx core.Index) string {
	return fmt.Sprintf("CLUSTER %s USING %s", qualifiedTable(schema, name), QuoteIdentifier(idx.Name))
}

func generateAnalyze(schema, name string) string {
	return fmt.Sprintf("ANALYZE %s", qualifiedTable(schema, name))
}

func generateRename(schema, from, to string) string {
	return fmt.Sprintf("ALTER TABLE %s RENAME TO %s", qualifiedTable(schema, from), QuoteIdentifier(to))
}

func generateDeleteWhere(t *core.Table, schema, name string) string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = $1 AND %s = ANY($2)",
		qualifiedTable(schema, name), QuoteIdentifier(t.IDCol.TypeColumnName()), QuoteIdentifier(t.IDCol.NumColumnName()))
}

func generateCreateSchema(schema string) string {
	return fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", QuoteIdentifier(schema))
}
