// Package config loads the TOML table-schema description used to declare
// output tables outside of a live scripting runtime, and provides a
// TOML-driven reference Evaluator implementation.
package config

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"

	"osm2pgsql-flex/internal/core"
)

// schemaFile is the top-level TOML document: [database] plus a list of
// [[tables]], each with a list of [[tables.columns]] and [[tables.indexes]].
type schemaFile struct {
	Database tomlDatabase `toml:"database"`
	Tables   []tomlTable  `toml:"tables"`
}

type tomlDatabase struct {
	Schema string `toml:"schema"`
}

type tomlIDColumn struct {
	Kind       string `toml:"kind"`
	TypeColumn string `toml:"type_column"`
	NumColumn  string `toml:"num_column"`
}

type tomlColumn struct {
	Name           string `toml:"name"`
	Type           string `toml:"type"`
	NotNull        bool   `toml:"not_null"`
	ProjectionSRID int    `toml:"srid"`
}

type tomlIndex struct {
	Name       string   `toml:"name"`
	Method     string   `toml:"method"`
	Columns    []string `toml:"columns"`
	Tablespace string   `toml:"tablespace"`
	Fillfactor int      `toml:"fillfactor"`
	Where      string   `toml:"where"`
}

type tomlTableOptions struct {
	Schema     string `toml:"schema"`
	Tablespace string `toml:"tablespace"`
	Cluster    string `toml:"cluster"`
}

type tomlTable struct {
	Name      string           `toml:"name"`
	IDColumn  tomlIDColumn     `toml:"id_column"`
	Columns   []tomlColumn     `toml:"columns"`
	Indexes   []tomlIndex      `toml:"indexes"`
	Options   tomlTableOptions `toml:"options"`
	Updatable bool             `toml:"updatable"`
}

// ParseFile opens path and decodes it as a table-schema TOML document.
func ParseFile(path string) (*core.Database, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes r as a table-schema TOML document into a core.Database.
// The caller is still responsible for calling (*core.Database).Validate.
func Parse(r io.Reader) (*core.Database, error) {
	var sf schemaFile
	if _, err := toml.NewDecoder(r).Decode(&sf); err != nil {
		return nil, &core.ConfigError{Subject: "schema file", Err: fmt.Errorf("decode: %w", err)}
	}
	return convert(&sf)
}

func convert(sf *schemaFile) (*core.Database, error) {
	db := &core.Database{
		Schema: sf.Database.Schema,
		Tables: make([]core.Table, 0, len(sf.Tables)),
	}
	for i := range sf.Tables {
		t, err := convertTable(&sf.Tables[i])
		if err != nil {
			return nil, &core.ConfigError{Subject: sf.Tables[i].Name, Err: err}
		}
		db.Tables = append(db.Tables, t)
	}
	return db, nil
}

func convertTable(tt *tomlTable) (core.Table, error) {
	t := core.Table{
		Name:      tt.Name,
		Updatable: tt.Updatable,
		Options: core.TableOptions{
			Schema:     tt.Options.Schema,
			Tablespace: tt.Options.Tablespace,
			Cluster:    clusterMode(tt.Options.Cluster),
		},
	}
	if tt.IDColumn.Kind != "" {
		t.IDCol = core.IDColumn{
			Kind:       core.IDColumnKind(tt.IDColumn.Kind),
			TypeColumn: tt.IDColumn.TypeColumn,
			NumColumn:  tt.IDColumn.NumColumn,
		}
	}
	for _, tc := range tt.Columns {
		t.Columns = append(t.Columns, core.Column{
			Name:           tc.Name,
			Type:           core.DataType(tc.Type),
			NotNull:        tc.NotNull,
			ProjectionSRID: tc.ProjectionSRID,
		})
	}
	for _, ti := range tt.Indexes {
		t.Indexes = append(t.Indexes, core.Index{
			Name:       ti.Name,
			Method:     ti.Method,
			Columns:    ti.Columns,
			Tablespace: ti.Tablespace,
			Fillfactor: ti.Fillfactor,
			Where:      ti.Where,
		})
	}
	return t, nil
}

func clusterMode(raw string) core.ClusterMode {
	switch core.ClusterMode(raw) {
	case core.ClusterYes, core.ClusterNo, core.ClusterAuto:
		return core.ClusterMode(raw)
	default:
		return core.ClusterAuto
	}
}
