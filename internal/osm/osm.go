// Package osm defines the primitive OSM data types (nodes, ways, relations)
// and the change-event stream shape the dispatcher consumes.
package osm

import "fmt"

// ID identifies a single OSM primitive within its type namespace. Node, way,
// and relation ids are independent namespaces in OSM, so an ID is only
// meaningful together with a Type.
type ID int64

// Type enumerates the three primitive kinds, in their fixed processing
// order (Node < Way < Relation).
type Type uint8

const (
	TypeNode Type = iota
	TypeWay
	TypeRelation
)

func (t Type) String() string {
	switch t {
	case TypeNode:
		return "node"
	case TypeWay:
		return "way"
	case TypeRelation:
		return "relation"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// Ref pairs a Type with an ID, the key under which the middle store and the
// dispatcher's visited-set track a primitive.
type Ref struct {
	Type Type
	ID   ID
}

func (r Ref) String() string { return fmt.Sprintf("%s/%d", r.Type, r.ID) }

// Tags is a string-to-string tag map, shared by all three primitive kinds.
type Tags map[string]string

// Coord is a fixed-point coordinate pair. Units are 1e-7 degrees (the
// conventional OSM integer encoding), stored as int32 so a coordinate pair
// is 8 bytes and two primitives with identical input compare equal by value.
type Coord struct {
	LonE7 int32
	LatE7 int32
}

// Lon returns the coordinate's longitude in degrees.
func (c Coord) Lon() float64 { return float64(c.LonE7) / 1e7 }

// Lat returns the coordinate's latitude in degrees.
func (c Coord) Lat() float64 { return float64(c.LatE7) / 1e7 }

// CoordFromDegrees builds a Coord from floating-point degrees.
func CoordFromDegrees(lon, lat float64) Coord {
	return Coord{LonE7: int32(lon * 1e7), LatE7: int32(lat * 1e7)}
}

// Node is a point primitive.
type Node struct {
	ID      ID
	Version int
	Visible bool
	Tags    Tags
	Coord   Coord
}

// Way is an ordered list of node references.
type Way struct {
	ID      ID
	Version int
	Visible bool
	Tags    Tags
	Refs    []ID
}

// Member is one entry of a relation's member list; Type is the member's
// type (node, way, or relation).
type Member struct {
	Type Type
	Ref  ID
	Role string
}

// Relation is an ordered list of typed, roled members.
type Relation struct {
	ID      ID
	Version int
	Visible bool
	Tags    Tags
	Members []Member
}

// IsMultipolygon reports whether the relation is tagged as a multipolygon
// or boundary relation (§4.3 ring-assembly rule).
func (r Relation) IsMultipolygon() bool {
	t := r.Tags["type"]
	return t == "multipolygon" || t == "boundary"
}
