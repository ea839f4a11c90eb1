package core

import (
	"fmt"
	"regexp"
)

// snakeCaseRe is the conservative identifier grammar every table, column,
// and index name must satisfy: a lowercase letter followed by lowercase
// letters, digits, or underscores.
var snakeCaseRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

func validateName(kind, name string) error {
	if name == "" {
		return fmt.Errorf("%s name must not be empty", kind)
	}
	if !snakeCaseRe.MatchString(name) {
		return fmt.Errorf("%s name %q must match %s", kind, name, snakeCaseRe.String())
	}
	return nil
}

// Validate runs the full validation pipeline over the database: required
// fields, table-name uniqueness, per-table structural checks,
// cross-reference checks, and flex-specific semantic rules. It returns the
// first error encountered, wrapped as a *ConfigError naming the offending
// table.
func (d *Database) Validate() error {
	if err := d.validateRequiredFields(); err != nil {
		return err
	}
	if err := d.validateTableUniqueness(); err != nil {
		return err
	}
	for i := range d.Tables {
		t := &d.Tables[i]
		if err := t.validateStructure(); err != nil {
			return &ConfigError{Subject: t.Name, Err: err}
		}
		if err := t.validateIndexes(); err != nil {
			return &ConfigError{Subject: t.Name, Err: err}
		}
		if err := t.validateSemanticRules(); err != nil {
			return &ConfigError{Subject: t.Name, Err: err}
		}
	}
	return nil
}

func (d *Database) validateRequiredFields() error {
	if len(d.Tables) == 0 {
		return &ConfigError{Subject: "database", Err: fmt.Errorf("at least one table must be declared")}
	}
	if d.Schema != "" {
		if err := validateName("schema", d.Schema); err != nil {
			return &ConfigError{Subject: "database", Err: err}
		}
	}
	return nil
}

func (d *Database) validateTableUniqueness() error {
	seen := make(map[string]bool, len(d.Tables))
	for _, t := range d.Tables {
		if seen[t.Name] {
			return &ConfigError{Subject: t.Name, Err: fmt.Errorf("duplicate table name")}
		}
		seen[t.Name] = true
	}
	return nil
}

// validateStructure checks name grammar, column presence, duplicate
// column names, and known column types — the per-table structural pass.
func (t *Table) validateStructure() error {
	if err := validateName("table", t.Name); err != nil {
		return err
	}
	if len(t.Columns) == 0 && t.IDCol.Kind == "" {
		return fmt.Errorf("table must declare at least one column or an id column")
	}
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if err := validateName("column", c.Name); err != nil {
			return err
		}
		if seen[c.Name] {
			return fmt.Errorf("duplicate column name %q", c.Name)
		}
		seen[c.Name] = true
		if c.Type == "" {
			return fmt.Errorf("column %q: type must not be empty", c.Name)
		}
		switch c.Type {
		case TypeText, TypeBool, TypeInt2, TypeInt4, TypeInt8, TypeReal, TypeNumeric,
			TypeHstore, TypeJSONB, TypeDirection, TypeIDType, TypeIDNum, TypeArea,
			TypeGeometry, TypePoint, TypeLineString, TypePolygon, TypeMultiPolygon, TypeGeometryCollect:
		default:
			return fmt.Errorf("column %q: unknown type %q", c.Name, c.Type)
		}
	}
	return nil
}

// validateIndexes checks index name grammar, duplicate index names,
// referenced-column existence, and the fillfactor range — the
// cross-reference pass. The index method is not checked.
func (t *Table) validateIndexes() error {
	seen := make(map[string]bool, len(t.Indexes))
	for _, idx := range t.Indexes {
		if err := validateName("index", idx.Name); err != nil {
			return err
		}
		if seen[idx.Name] {
			return fmt.Errorf("duplicate index name %q", idx.Name)
		}
		seen[idx.Name] = true
		if len(idx.Columns) == 0 {
			return fmt.Errorf("index %q: must reference at least one column", idx.Name)
		}
		for _, col := range idx.Columns {
			if _, ok := t.FindColumn(col); !ok {
				return fmt.Errorf("index %q: references unknown column %q", idx.Name, col)
			}
		}
		if idx.Fillfactor < 0 || idx.Fillfactor > 100 {
			return fmt.Errorf("index %q: fillfactor must be in [0,100]", idx.Name)
		}
	}
	return nil
}

// validateSemanticRules enforces flex-specific rules not expressible as
// plain structural checks: projection attributes only on geometry or area
// columns, and cluster=auto requiring a geometry column.
func (t *Table) validateSemanticRules() error {
	for _, c := range t.Columns {
		if c.ProjectionSRID != 0 && !c.Type.IsGeometry() && c.Type != TypeArea {
			return fmt.Errorf("column %q: projection attribute only valid on geometry/area columns, got %s", c.Name, c.Type)
		}
	}
	if t.Options.Cluster == ClusterAuto && !t.HasGeometryColumn() {
		return fmt.Errorf("cluster=auto requires a geometry column")
	}
	return nil
}
