package geometry

import "math"

// AssembleRings groups a multipolygon/boundary relation's way members into
// closed rings, classifies each as outer or inner by role hint with an
// area-sign fallback, and nests each outer ring with the holes it
// contains. Each stage (concatenate, then classify, then nest) runs as a
// separate pass over the slice so it stays independently testable.
func AssembleRings(members []MemberWay) ([][]Ring, error) {
	rings, err := concatenateSegments(members)
	if err != nil {
		return nil, err
	}
	outers, inners := classifyRings(rings)
	return nestRings(outers, inners), nil
}

type classifiedRing struct {
	points Ring
	role   string // "outer", "inner", or "" when unroled
}

// concatenateSegments joins way segments that share an endpoint into
// closed rings. Segments are consumed greedily in input order; a segment
// set that never closes is reported as ErrUnclosedRing.
func concatenateSegments(members []MemberWay) ([]classifiedRing, error) {
	type segment struct {
		points []Point
		role   string
		used   bool
	}
	segs := make([]segment, 0, len(members))
	for _, m := range members {
		if len(m.Points) == 0 {
			continue
		}
		segs = append(segs, segment{points: m.Points, role: m.Role})
	}

	var rings []classifiedRing
	for i := range segs {
		if segs[i].used {
			continue
		}
		segs[i].used = true
		chain := append([]Point(nil), segs[i].points...)
		role := segs[i].role

		for !closed(chain) {
			progressed := false
			for j := range segs {
				if segs[j].used {
					continue
				}
				head := chain[len(chain)-1]
				switch {
				case segs[j].points[0] == head:
					chain = append(chain, segs[j].points[1:]...)
				case segs[j].points[len(segs[j].points)-1] == head:
					chain = append(chain, reversed(segs[j].points)[1:]...)
				default:
					continue
				}
				segs[j].used = true
				if role == "" {
					role = segs[j].role
				}
				progressed = true
				break
			}
			if !progressed {
				return nil, ErrUnclosedRing
			}
		}
		rings = append(rings, classifiedRing{points: Ring(chain), role: role})
	}
	return rings, nil
}

func reversed(pts []Point) []Point {
	out := make([]Point, len(pts))
	for i, p := range pts {
		out[len(pts)-1-i] = p
	}
	return out
}

// classifyRings separates rings into outer/inner sets, honoring explicit
// role tags and falling back to "largest absolute area is outer" for
// untagged or contradictory rings.
func classifyRings(rings []classifiedRing) (outers, inners []Ring) {
	var untagged []classifiedRing
	for _, r := range rings {
		switch r.role {
		case "outer":
			outers = append(outers, r.points)
		case "inner":
			inners = append(inners, r.points)
		default:
			untagged = append(untagged, r)
		}
	}
	if len(untagged) == 0 {
		return outers, inners
	}
	// Fallback: the untagged ring with the largest absolute signed area is
	// treated as outer; any remaining untagged rings are holes of it.
	best := 0
	bestArea := math.Abs(signedArea(untagged[0].points))
	for i := 1; i < len(untagged); i++ {
		a := math.Abs(signedArea(untagged[i].points))
		if a > bestArea {
			best, bestArea = i, a
		}
	}
	for i, r := range untagged {
		if i == best {
			outers = append(outers, r.points)
		} else {
			inners = append(inners, r.points)
		}
	}
	return outers, inners
}

// nestRings assigns each inner ring (hole) to the outer ring whose
// centroid is nearest to the hole's centroid, producing one ring-set per
// polygon. No containment test is made, so a hole is never dropped, even
// one that lies inside no outer ring.
func nestRings(outers, inners []Ring) [][]Ring {
	if len(outers) == 0 {
		return nil
	}
	polys := make([][]Ring, len(outers))
	for i, o := range outers {
		polys[i] = []Ring{o}
	}
	for _, hole := range inners {
		idx := 0
		if len(outers) > 1 {
			idx = nearestOuter(outers, hole)
		}
		polys[idx] = append(polys[idx], hole)
	}
	return polys
}

func nearestOuter(outers []Ring, hole Ring) int {
	hc := centroid(hole)
	best, bestDist := 0, math.Inf(1)
	for i, o := range outers {
		oc := centroid(o)
		dx, dy := hc.X-oc.X, hc.Y-oc.Y
		d := dx*dx + dy*dy
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func centroid(r Ring) Point {
	var sx, sy float64
	for _, p := range r {
		sx += p.X
		sy += p.Y
	}
	n := float64(len(r))
	if n == 0 {
		return Point{}
	}
	return Point{X: sx / n, Y: sy / n}
}

// signedArea computes the shoelace-formula signed area; sign indicates
// winding direction, magnitude is used only for the largest-ring fallback.
func signedArea(r Ring) float64 {
	var sum float64
	for i := 0; i < len(r)-1; i++ {
		sum += r[i].X*r[i+1].Y - r[i+1].X*r[i].Y
	}
	return sum / 2
}
