package geometry

import (
	"fmt"
)

// MemberWay pairs a relation member's role with its resolved node
// coordinates, the shape the dispatcher hands to the builder after
// resolving way references through the middle store.
type MemberWay struct {
	Role   string
	Points []Point
}

// Expansion carries every member coordinate the builder needs, already
// resolved by the caller (the dispatcher, via the middle store) so the
// builder itself never touches storage and stays safe for concurrent use.
type Expansion struct {
	// NodePoint is populated when building a point geometry from a node.
	NodePoint Point
	// WayPoints is populated when building a linestring/polygon from a
	// single way's node refs.
	WayPoints []Point
	// Members is populated when building a multipolygon/geometrycollection
	// from a relation's way members.
	Members []MemberWay
}

// BuildConfig carries the per-table geometry options relevant to
// construction (currently just the target projection; SRID reprojection
// itself is delegated to the database via ST_Transform and is therefore
// not performed here).
type BuildConfig struct {
	SRID int
}

// Builder constructs geometries from resolved OSM primitive expansions. It
// holds no state and is safe to call concurrently, including from
// Propagate-phase workers.
type Builder struct{}

// NewBuilder returns a stateless Builder.
func NewBuilder() Builder { return Builder{} }

// BuildPoint constructs a point geometry from a node's coordinates.
func (Builder) BuildPoint(exp Expansion) (Geometry, error) {
	return Geometry{Kind: KindPoint, Point: exp.NodePoint}, nil
}

// BuildLineString constructs a linestring from a way's resolved node
// points, collapsing consecutive duplicate points (zero-length segments).
func (Builder) BuildLineString(exp Expansion) (Geometry, error) {
	pts := collapseDuplicates(exp.WayPoints)
	if len(pts) < 2 {
		return Geometry{}, &wrapErr{"linestring", ErrEmpty}
	}
	return Geometry{Kind: KindLineString, Line: pts}, nil
}

// BuildPolygon constructs a polygon from a single closed way.
func (Builder) BuildPolygon(exp Expansion) (Geometry, error) {
	pts := collapseDuplicates(exp.WayPoints)
	if len(pts) < 4 {
		return Geometry{}, &wrapErr{"polygon", ErrEmpty}
	}
	if !closed(pts) {
		return Geometry{}, &wrapErr{"polygon", ErrUnclosedRing}
	}
	return Geometry{Kind: KindPolygon, Rings: []Ring{Ring(pts)}}, nil
}

// BuildMultiPolygon assembles a multipolygon from a relation's way
// members, using role hints with an area-sign fallback (§4.3).
func (b Builder) BuildMultiPolygon(exp Expansion) (Geometry, error) {
	polys, err := AssembleRings(exp.Members)
	if err != nil {
		return Geometry{}, &wrapErr{"multipolygon", err}
	}
	return Geometry{Kind: KindMultiPolygon, Polygons: polys}, nil
}

// BuildGeometryCollection wraps each member way as its own linestring or
// polygon part, falling back to a linestring when a member does not close.
func (b Builder) BuildGeometryCollection(exp Expansion) (Geometry, error) {
	parts := make([]Geometry, 0, len(exp.Members))
	for _, m := range exp.Members {
		pts := collapseDuplicates(m.Points)
		if len(pts) < 2 {
			continue
		}
		if closed(pts) && len(pts) >= 4 {
			parts = append(parts, Geometry{Kind: KindPolygon, Rings: []Ring{Ring(pts)}})
		} else {
			parts = append(parts, Geometry{Kind: KindLineString, Line: pts})
		}
	}
	if len(parts) == 0 {
		return Geometry{}, &wrapErr{"geometrycollection", ErrEmpty}
	}
	return Geometry{Kind: KindGeometryCollection, Parts: parts}, nil
}

func collapseDuplicates(pts []Point) []Point {
	if len(pts) == 0 {
		return nil
	}
	out := make([]Point, 0, len(pts))
	out = append(out, pts[0])
	for _, p := range pts[1:] {
		if p != out[len(out)-1] {
			out = append(out, p)
		}
	}
	return out
}

func closed(pts []Point) bool {
	return len(pts) > 0 && pts[0] == pts[len(pts)-1]
}

type wrapErr struct {
	kind string
	err  error
}

func (e *wrapErr) Error() string { return fmt.Sprintf("%s: %v", e.kind, e.err) }
func (e *wrapErr) Unwrap() error { return e.err }
