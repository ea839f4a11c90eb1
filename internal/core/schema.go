// Package core defines the flex output table schema model: the set of
// tables, columns, and indexes a user declares to describe how OSM data is
// materialized into PostgreSQL, and the error taxonomy used throughout the
// pipeline.
package core

import "fmt"

// DataType enumerates the flex column logical types. There is exactly
// one output dialect (PostgreSQL), so the vocabulary is the flex-specific
// logical set rather than a cross-dialect lowest common denominator.
type DataType string

const (
	TypeText             DataType = "text"
	TypeBool             DataType = "bool"
	TypeInt2             DataType = "int2"
	TypeInt4             DataType = "int4"
	TypeInt8             DataType = "int8"
	TypeReal             DataType = "real"
	TypeNumeric          DataType = "numeric"
	TypeHstore           DataType = "hstore"
	TypeJSONB            DataType = "jsonb"
	TypeDirection        DataType = "direction" // -1, 0, 1 (yes/no/reversed tag vocabulary)
	TypeIDType           DataType = "id_type"   // 'N'/'W'/'R' discriminator
	TypeIDNum            DataType = "id_num"    // the numeric half of an id
	TypeArea             DataType = "area"      // computed polygon area, numeric
	TypeGeometry         DataType = "geometry"
	TypePoint            DataType = "point"
	TypeLineString       DataType = "linestring"
	TypePolygon          DataType = "polygon"
	TypeMultiPolygon     DataType = "multipolygon"
	TypeGeometryCollect  DataType = "geometrycollection"
)

// IsGeometry reports whether t is one of the spatial logical types. A
// projection (SRID) attribute may be attached to these and to TypeArea.
func (t DataType) IsGeometry() bool {
	switch t {
	case TypeGeometry, TypePoint, TypeLineString, TypePolygon, TypeMultiPolygon, TypeGeometryCollect:
		return true
	default:
		return false
	}
}

// IDColumnKind selects which OSM primitive types populate the implicit id
// columns of a table (§3.3: id-column policy).
type IDColumnKind string

const (
	IDKindNode     IDColumnKind = "node"
	IDKindWay      IDColumnKind = "way"
	IDKindRelation IDColumnKind = "relation"
	IDKindArea     IDColumnKind = "area" // ways and multipolygon relations
	IDKindAny      IDColumnKind = "any"
)

// IDColumn describes a table's id-column policy: which primitive kinds may
// populate it, and the column names used for the type/num pair.
type IDColumn struct {
	Kind       IDColumnKind
	TypeColumn string // defaults to "osm_type" if empty
	NumColumn  string // defaults to "osm_id" if empty
}

// TypeColumnName returns the configured id-type column name, defaulting
// to "osm_type".
func (c IDColumn) TypeColumnName() string {
	if c.TypeColumn != "" {
		return c.TypeColumn
	}
	return "osm_type"
}

// NumColumnName returns the configured id-num column name, defaulting to
// "osm_id".
func (c IDColumn) NumColumnName() string {
	if c.NumColumn != "" {
		return c.NumColumn
	}
	return "osm_id"
}

// Column describes a single user-declared output column.
type Column struct {
	Name        string
	Type        DataType
	NotNull     bool
	ProjectionSRID int // 0 means "unset"; only valid when Type.IsGeometry() or Type is TypeArea
}

// Index describes a declared index on a table.
type Index struct {
	Name       string
	Method     string // "btree", "gist", "gin", ... — empty defaults to "btree" ("gist" for geometry)
	Columns    []string
	Tablespace string
	Fillfactor int // 0 means "unset": 100 if the table is not Updatable, else PostgreSQL's default
	Where      string
}

// TableOptions carries storage-placement and maintenance knobs for a table.
type TableOptions struct {
	Schema     string
	Tablespace string
	Cluster    ClusterMode
}

// ClusterMode controls whether the commit protocol runs CLUSTER on a table
// after its indexes are built.
type ClusterMode string

const (
	ClusterAuto ClusterMode = "auto" // cluster iff the table has a geometry column
	ClusterYes  ClusterMode = "yes"
	ClusterNo   ClusterMode = "no"
)

// Table is a single user-declared output table: its id-column policy,
// columns, indexes, and storage options.
type Table struct {
	Name    string
	IDCol   IDColumn
	Columns []Column
	Indexes []Index
	Options TableOptions
	Updatable bool // selects the index fillfactor default; update-mode delete-then-insert runs on every table regardless
}

// FindColumn returns the column named name, or false if none exists.
func (t *Table) FindColumn(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// FindIndex returns the index named name, or false if none exists.
func (t *Table) FindIndex(name string) (Index, bool) {
	for _, idx := range t.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return Index{}, false
}

// HasGeometryColumn reports whether the table declares any spatial column.
func (t *Table) HasGeometryColumn() bool {
	for _, c := range t.Columns {
		if c.Type.IsGeometry() {
			return true
		}
	}
	return false
}

// Names returns the table's column names in declaration order.
func (t *Table) Names() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// String implements fmt.Stringer for debug output.
func (t *Table) String() string {
	return fmt.Sprintf("Table(%s, %d columns, %d indexes)", t.Name, len(t.Columns), len(t.Indexes))
}

// Database is the full, validated set of tables the flex pipeline will
// materialize.
type Database struct {
	Schema string // default schema for tables that don't override it
	Tables []Table
}

// FindTable returns the table named name, or false if none exists.
func (d *Database) FindTable(name string) (*Table, bool) {
	for i := range d.Tables {
		if d.Tables[i].Name == name {
			return &d.Tables[i], true
		}
	}
	return nil, false
}
