package middle

import (
	"sync"

	"osm2pgsql-flex/internal/geometry"
	"osm2pgsql-flex/internal/osm"
)

// importStore is the import-mode backend: primitives arrive once, in
// increasing id order within each phase, and are never deleted. It keeps
// no reverse index — geometry construction during import only ever walks
// forward (relation -> way -> node), so WaysUsingNode/RelationsUsing* are
// answered from empty results rather than a maintained index.
type importStore struct {
	mu        sync.RWMutex
	nodes     map[osm.ID]osm.Node
	ways      map[osm.ID]osm.Way
	relations map[osm.ID]osm.Relation
}

func newImportStore(Options) (Store, error) {
	return &importStore{
		nodes:     make(map[osm.ID]osm.Node),
		ways:      make(map[osm.ID]osm.Way),
		relations: make(map[osm.ID]osm.Relation),
	}, nil
}

func (s *importStore) PutNode(n osm.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.nodes[n.ID]; ok && existing.Version >= n.Version {
		return nil
	}
	s.nodes[n.ID] = n
	return nil
}

func (s *importStore) PutWay(w osm.Way) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.ways[w.ID]; ok && existing.Version >= w.Version {
		return nil
	}
	s.ways[w.ID] = w
	return nil
}

func (s *importStore) PutRelation(r osm.Relation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.relations[r.ID]; ok && existing.Version >= r.Version {
		return nil
	}
	s.relations[r.ID] = r
	return nil
}

func (s *importStore) NodeCoords(id osm.ID) (geometry.Point, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return geometry.Point{}, false, nil
	}
	return geometry.Point{X: n.Coord.Lon(), Y: n.Coord.Lat()}, true, nil
}

func (s *importStore) Way(id osm.ID) (osm.Way, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.ways[id]
	return w, ok, nil
}

func (s *importStore) Relation(id osm.ID) (osm.Relation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.relations[id]
	return r, ok, nil
}

func (s *importStore) WaysUsingNode(osm.ID) ([]osm.ID, error)      { return nil, nil }
func (s *importStore) RelationsUsingNode(osm.ID) ([]osm.ID, error) { return nil, nil }
func (s *importStore) RelationsUsingWay(osm.ID) ([]osm.ID, error) { return nil, nil }
func (s *importStore) RelationsUsingRelation(osm.ID) ([]osm.ID, error) { return nil, nil }

func (s *importStore) DeleteNode(id osm.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nodes, id)
	return nil
}

func (s *importStore) DeleteWay(id osm.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ways, id)
	return nil
}

func (s *importStore) DeleteRelation(id osm.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.relations, id)
	return nil
}

func (s *importStore) Close() error { return nil }
