package evaluator

import (
	"fmt"

	"osm2pgsql-flex/internal/core"
)

// boolVocabulary is the accepted spelling set for TypeBool inputs, the
// vocabulary §4.4 specifies for tag-derived booleans.
var boolVocabulary = map[string]bool{
	"yes": true, "true": true, "1": true,
	"no": false, "false": false, "0": false,
}

// directionVocabulary maps the OSM oneway-style tag vocabulary to the
// normalized -1/0/1 direction encoding.
var directionVocabulary = map[string]int{
	"yes": 1, "1": 1, "true": 1,
	"-1": -1, "reverse": -1,
	"no": 0, "0": 0, "false": 0,
}

// coerce converts v into the Go representation appropriate for col's
// declared type: a handful of narrow-purpose conversions rather than a
// generic reflective converter.
func coerce(col core.Column, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch col.Type {
	case core.TypeText, core.TypeHstore, core.TypeJSONB:
		return coerceText(v)
	case core.TypeBool:
		return coerceBool(v)
	case core.TypeInt2, core.TypeInt4, core.TypeInt8, core.TypeIDNum:
		return coerceInt(v)
	case core.TypeReal, core.TypeNumeric, core.TypeArea:
		return coerceFloat(v)
	case core.TypeDirection:
		return coerceDirection(v)
	case core.TypeIDType:
		return coerceText(v)
	default:
		if col.Type.IsGeometry() {
			if h, ok := v.(GeometryHandle); ok {
				return h.WKB(), nil
			}
			return nil, fmt.Errorf("expected a geometry handle, got %T", v)
		}
		return nil, fmt.Errorf("unsupported column type %q", col.Type)
	}
}

func coerceText(v any) (any, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case fmt.Stringer:
		return t.String(), nil
	default:
		return fmt.Sprintf("%v", t), nil
	}
}

func coerceBool(v any) (any, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		b, ok := boolVocabulary[t]
		if !ok {
			return nil, fmt.Errorf("%q is not a recognized boolean value", t)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("cannot coerce %T to bool", v)
	}
}

func coerceInt(v any) (any, error) {
	switch t := v.(type) {
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case int64:
		return t, nil
	case float64:
		return int64(t), nil
	case string:
		var n int64
		if _, err := fmt.Sscanf(t, "%d", &n); err != nil {
			return nil, fmt.Errorf("%q is not an integer", t)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("cannot coerce %T to integer", v)
	}
}

func coerceFloat(v any) (any, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		var f float64
		if _, err := fmt.Sscanf(t, "%g", &f); err != nil {
			return nil, fmt.Errorf("%q is not numeric", t)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("cannot coerce %T to numeric", v)
	}
}

func coerceDirection(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		if n, ok := v.(int); ok {
			return n, nil
		}
		return nil, fmt.Errorf("cannot coerce %T to direction", v)
	}
	d, ok := directionVocabulary[s]
	if !ok {
		return nil, fmt.Errorf("%q is not a recognized direction value", s)
	}
	return d, nil
}
