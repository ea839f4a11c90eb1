// Package middle is the object store: it keeps every node, way, and
// relation needed to resolve a later primitive's geometry, plus the
// reverse indexes (ways using a node, relations using a node or way)
// needed to re-evaluate dependents during update-mode propagation.
package middle

import (
	"errors"
	"fmt"
	"sync"

	"osm2pgsql-flex/internal/core"
	"osm2pgsql-flex/internal/geometry"
	"osm2pgsql-flex/internal/osm"
)

// Mode selects the storage layout: Import keeps id-keyed maps with no
// reverse index; Update carries the reverse indexes needed
// to find and re-evaluate dependents of a changed primitive.
type Mode string

const (
	ModeImport Mode = "import"
	ModeUpdate Mode = "update"
)

// Store is the object store contract (§4.1). PutNode/PutWay/PutRelation
// are idempotent on (id, version): storing the same version twice is a
// no-op, not an error. Lookups return (zero, false, nil) for a miss —
// only a genuine I/O or corruption failure returns a non-nil error.
type Store interface {
	PutNode(n osm.Node) error
	PutWay(w osm.Way) error
	PutRelation(r osm.Relation) error

	NodeCoords(id osm.ID) (geometry.Point, bool, error)
	Way(id osm.ID) (osm.Way, bool, error)
	Relation(id osm.ID) (osm.Relation, bool, error)

	WaysUsingNode(id osm.ID) ([]osm.ID, error)
	RelationsUsingNode(id osm.ID) ([]osm.ID, error)
	RelationsUsingWay(id osm.ID) ([]osm.ID, error)
	RelationsUsingRelation(id osm.ID) ([]osm.ID, error)

	DeleteNode(id osm.ID) error
	DeleteWay(id osm.ID) error
	DeleteRelation(id osm.ID) error

	Close() error
}

// Options configures a Store at construction time.
type Options struct {
	Path string // on-disk directory for the header/manifest (§6.4)
}

// Constructor builds a Store for a given Mode.
type Constructor func(Options) (Store, error)

var (
	registryMu sync.Mutex
	registry   = map[Mode]Constructor{}
)

// Register adds a named backend constructor to the registry. Panics on a
// duplicate mode.
func Register(mode Mode, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[mode]; exists {
		panic(fmt.Sprintf("middle: mode %q already registered", mode))
	}
	registry[mode] = ctor
}

// ErrUnknownMode is returned by New for a mode with no registered backend.
var ErrUnknownMode = errors.New("middle: unknown mode")

// New constructs a Store for the given mode using its registered
// constructor, writing the on-disk header (§6.4) as a side effect.
func New(mode Mode, opts Options) (Store, error) {
	registryMu.Lock()
	ctor, ok := registry[mode]
	registryMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMode, mode)
	}
	store, err := ctor(opts)
	if err != nil {
		return nil, &core.StorageError{Op: fmt.Sprintf("new %s store", mode), Err: err}
	}
	if opts.Path != "" {
		if err := writeHeader(opts.Path, mode); err != nil {
			return nil, &core.StorageError{Op: "write header", Err: err}
		}
	}
	return store, nil
}

func init() {
	Register(ModeImport, newImportStore)
	Register(ModeUpdate, newUpdateStore)
}
