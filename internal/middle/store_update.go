package middle

import (
	"sync"

	"osm2pgsql-flex/internal/geometry"
	"osm2pgsql-flex/internal/osm"
)

// updateStore layers reverse indexes (node -> ways, node -> relations,
// way -> relations) on top of the same forward maps importStore uses, so
// Propagate can find a changed primitive's dependents (§4.5, §5: "the
// middle must therefore support concurrent readers").
type updateStore struct {
	mu        sync.RWMutex
	nodes     map[osm.ID]osm.Node
	ways      map[osm.ID]osm.Way
	relations map[osm.ID]osm.Relation

	waysByNode          map[osm.ID]map[osm.ID]struct{}
	relationsByNode     map[osm.ID]map[osm.ID]struct{}
	relationsByWay      map[osm.ID]map[osm.ID]struct{}
	relationsByRelation map[osm.ID]map[osm.ID]struct{}
}

func newUpdateStore(Options) (Store, error) {
	return &updateStore{
		nodes:               make(map[osm.ID]osm.Node),
		ways:                 make(map[osm.ID]osm.Way),
		relations:            make(map[osm.ID]osm.Relation),
		waysByNode:           make(map[osm.ID]map[osm.ID]struct{}),
		relationsByNode:      make(map[osm.ID]map[osm.ID]struct{}),
		relationsByWay:       make(map[osm.ID]map[osm.ID]struct{}),
		relationsByRelation:  make(map[osm.ID]map[osm.ID]struct{}),
	}, nil
}

func addIndex(idx map[osm.ID]map[osm.ID]struct{}, key, val osm.ID) {
	set, ok := idx[key]
	if !ok {
		set = make(map[osm.ID]struct{})
		idx[key] = set
	}
	set[val] = struct{}{}
}

func removeIndex(idx map[osm.ID]map[osm.ID]struct{}, key, val osm.ID) {
	set, ok := idx[key]
	if !ok {
		return
	}
	delete(set, val)
	if len(set) == 0 {
		delete(idx, key)
	}
}

func (s *updateStore) PutNode(n osm.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.nodes[n.ID]; ok && existing.Version >= n.Version {
		return nil
	}
	s.nodes[n.ID] = n
	return nil
}

func (s *updateStore) PutWay(w osm.Way) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.ways[w.ID]; ok {
		if existing.Version >= w.Version {
			return nil
		}
		for _, ref := range existing.Refs {
			removeIndex(s.waysByNode, ref, w.ID)
		}
	}
	s.ways[w.ID] = w
	for _, ref := range w.Refs {
		addIndex(s.waysByNode, ref, w.ID)
	}
	return nil
}

func (s *updateStore) PutRelation(r osm.Relation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.relations[r.ID]; ok {
		if existing.Version >= r.Version {
			return nil
		}
		s.unindexRelationMembers(existing)
	}
	s.relations[r.ID] = r
	for _, m := range r.Members {
		switch m.Type {
		case osm.TypeNode:
			addIndex(s.relationsByNode, m.Ref, r.ID)
		case osm.TypeWay:
			addIndex(s.relationsByWay, m.Ref, r.ID)
		case osm.TypeRelation:
			addIndex(s.relationsByRelation, m.Ref, r.ID)
		}
	}
	return nil
}

func (s *updateStore) unindexRelationMembers(r osm.Relation) {
	for _, m := range r.Members {
		switch m.Type {
		case osm.TypeNode:
			removeIndex(s.relationsByNode, m.Ref, r.ID)
		case osm.TypeWay:
			removeIndex(s.relationsByWay, m.Ref, r.ID)
		case osm.TypeRelation:
			removeIndex(s.relationsByRelation, m.Ref, r.ID)
		}
	}
}

func (s *updateStore) NodeCoords(id osm.ID) (geometry.Point, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return geometry.Point{}, false, nil
	}
	return geometry.Point{X: n.Coord.Lon(), Y: n.Coord.Lat()}, true, nil
}

func (s *updateStore) Way(id osm.ID) (osm.Way, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.ways[id]
	return w, ok, nil
}

func (s *updateStore) Relation(id osm.ID) (osm.Relation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.relations[id]
	return r, ok, nil
}

func setToSlice(set map[osm.ID]struct{}) []osm.ID {
	out := make([]osm.ID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

func (s *updateStore) WaysUsingNode(id osm.ID) ([]osm.ID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return setToSlice(s.waysByNode[id]), nil
}

func (s *updateStore) RelationsUsingNode(id osm.ID) ([]osm.ID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return setToSlice(s.relationsByNode[id]), nil
}

func (s *updateStore) RelationsUsingWay(id osm.ID) ([]osm.ID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return setToSlice(s.relationsByWay[id]), nil
}

func (s *updateStore) RelationsUsingRelation(id osm.ID) ([]osm.ID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return setToSlice(s.relationsByRelation[id]), nil
}

// DeleteNode removes the node's own payload but leaves waysByNode[id] and
// relationsByNode[id] in place: those entries record which ways/relations
// reference this node id, which is exactly what Propagate still needs to
// look up (via WaysUsingNode/RelationsUsingNode) to find this node's
// dependents after the delete has already been applied. They get pruned
// naturally once the referencing way/relation is itself updated or
// deleted.
func (s *updateStore) DeleteNode(id osm.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nodes, id)
	return nil
}

// DeleteWay removes the way's own payload and unindexes it from
// waysByNode (keyed by the member nodes it referenced), but leaves
// relationsByWay[id] in place for the same reason DeleteNode leaves
// relationsByNode[id]: Propagate still needs RelationsUsingWay(id) to
// find this way's dependents.
func (s *updateStore) DeleteWay(id osm.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.ways[id]; ok {
		for _, ref := range w.Refs {
			removeIndex(s.waysByNode, ref, id)
		}
	}
	delete(s.ways, id)
	return nil
}

// DeleteRelation removes the relation's own payload and unindexes it from
// the member-keyed indexes, but leaves relationsByRelation[id] in place
// for the same reason: a still-live relation-of-relation lookup against
// this id must keep working for the rest of the run.
func (s *updateStore) DeleteRelation(id osm.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.relations[id]; ok {
		s.unindexRelationMembers(r)
	}
	delete(s.relations, id)
	return nil
}

func (s *updateStore) Close() error { return nil }
