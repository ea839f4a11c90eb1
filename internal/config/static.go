package config

import (
	"context"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"osm2pgsql-flex/internal/evaluator"
)

// GeometryKind selects which RowEmitter geometry hook a rule invokes.
type GeometryKind string

const (
	GeomPoint              GeometryKind = "point"
	GeomLineString         GeometryKind = "linestring"
	GeomPolygon            GeometryKind = "polygon"
	GeomMultiPolygon       GeometryKind = "multipolygon"
	GeomGeometryCollection GeometryKind = "geometrycollection"
)

// rowMappingFile is the TOML document driving StaticEvaluator: a flat list
// of rules, each naming the table it inserts into, the tags required to
// match a primitive, and a column-name -> tag-key mapping.
type rowMappingFile struct {
	Rules []tomlRule `toml:"rule"`
}

type tomlRule struct {
	Table       string            `toml:"table"`
	AppliesTo   []string          `toml:"applies_to"` // "node", "way", "relation"
	RequireTags map[string]string `toml:"require_tags"`
	Geometry    string            `toml:"geometry"`
	Columns     map[string]string `toml:"columns"` // output column -> tag key
}

// rule is a compiled tomlRule.
type rule struct {
	table       string
	appliesTo   map[string]bool
	requireTags map[string]string
	geometry    GeometryKind
	columns     map[string]string
}

// StaticEvaluator is the TOML-driven reference Evaluator: it requires no
// embedded scripting runtime and exercises the Evaluator/RowEmitter
// contract end to end from a declarative rule file (§4.4).
type StaticEvaluator struct {
	rules []rule
}

// LoadStaticEvaluator reads path as a row-mapping TOML document.
func LoadStaticEvaluator(path string) (*StaticEvaluator, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open row-mapping file %q: %w", path, err)
	}
	defer f.Close()
	var rmf rowMappingFile
	if _, err := toml.NewDecoder(f).Decode(&rmf); err != nil {
		return nil, fmt.Errorf("config: decode row-mapping file: %w", err)
	}
	se := &StaticEvaluator{}
	for _, tr := range rmf.Rules {
		applies := make(map[string]bool, len(tr.AppliesTo))
		for _, a := range tr.AppliesTo {
			applies[a] = true
		}
		se.rules = append(se.rules, rule{
			table:       tr.Table,
			appliesTo:   applies,
			requireTags: tr.RequireTags,
			geometry:    GeometryKind(tr.Geometry),
			columns:     tr.Columns,
		})
	}
	return se, nil
}

func (se *StaticEvaluator) process(ctx context.Context, primType string, emit evaluator.RowEmitter) error {
	obj := emit.Object()
	tags := obj.Tags()
	for _, r := range se.rules {
		if len(r.appliesTo) > 0 && !r.appliesTo[primType] {
			continue
		}
		if !matchesTags(tags, r.requireTags) {
			continue
		}
		if err := se.applyRule(r, emit, tags); err != nil {
			return err
		}
	}
	return nil
}

func matchesTags(tags map[string]string, require map[string]string) bool {
	for k, v := range require {
		got, ok := tags[k]
		if !ok {
			return false
		}
		if v != "*" && got != v {
			return false
		}
	}
	return true
}

func (se *StaticEvaluator) applyRule(r rule, emit evaluator.RowEmitter, tags map[string]string) error {
	row := make(map[string]any, len(r.columns)+1)
	for col, tagKey := range r.columns {
		if v, ok := tags[tagKey]; ok {
			row[col] = v
		}
	}
	if r.geometry != "" {
		geomCol, handle, err := buildGeometry(emit, r.geometry)
		if err != nil {
			return err
		}
		row[geomCol] = handle
	}
	table, err := emit.Table(r.table)
	if err != nil {
		return err
	}
	return table.Insert(row)
}

func buildGeometry(emit evaluator.RowEmitter, kind GeometryKind) (string, evaluator.GeometryHandle, error) {
	const geomColumn = "geom"
	var (
		h   evaluator.GeometryHandle
		err error
	)
	switch kind {
	case GeomPoint:
		h, err = emit.AsPoint(evaluator.GeomOptions{})
	case GeomLineString:
		h, err = emit.AsLineString(evaluator.GeomOptions{})
	case GeomPolygon:
		h, err = emit.AsPolygon(evaluator.GeomOptions{})
	case GeomMultiPolygon:
		h, err = emit.AsMultiPolygon(evaluator.GeomOptions{})
	case GeomGeometryCollection:
		h, err = emit.AsGeometryCollection(evaluator.GeomOptions{})
	default:
		return "", nil, fmt.Errorf("config: unknown geometry kind %q", kind)
	}
	return geomColumn, h, err
}

func (se *StaticEvaluator) ProcessNode(ctx context.Context, emit evaluator.RowEmitter) error {
	return se.process(ctx, "node", emit)
}

func (se *StaticEvaluator) ProcessWay(ctx context.Context, emit evaluator.RowEmitter) error {
	return se.process(ctx, "way", emit)
}

func (se *StaticEvaluator) ProcessRelation(ctx context.Context, emit evaluator.RowEmitter) error {
	return se.process(ctx, "relation", emit)
}
