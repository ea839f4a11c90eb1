// Package dispatcher drives the two-phase state machine that turns an
// input event stream into middle-store writes and evaluator calls: Import
// (Start -> NodesPhase -> WaysPhase -> RelationsPhase -> Stop) and Update
// (Start -> Apply -> Propagate -> Stop).
package dispatcher

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"osm2pgsql-flex/internal/evaluator"
	"osm2pgsql-flex/internal/geometry"
	"osm2pgsql-flex/internal/middle"
	"osm2pgsql-flex/internal/osm"
	"osm2pgsql-flex/internal/stats"
)

// RunState is the dispatcher's current state, shared between the Import
// and Update state machines.
type RunState int

const (
	StateIdle RunState = iota
	StateStart
	StateNodesPhase
	StateWaysPhase
	StateRelationsPhase
	StateApply
	StatePropagate
	StateStop
)

func (s RunState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStart:
		return "start"
	case StateNodesPhase:
		return "nodes"
	case StateWaysPhase:
		return "ways"
	case StateRelationsPhase:
		return "relations"
	case StateApply:
		return "apply"
	case StatePropagate:
		return "propagate"
	case StateStop:
		return "stop"
	default:
		return "unknown"
	}
}

// Reader is the external event-stream collaborator (§6.1); the dispatcher
// depends only on this interface, never on a concrete decoder.
type Reader interface {
	Next(ctx context.Context) (Event, error) // io.EOF when exhausted
}

// EventKind discriminates the event stream's primitive/operation pairs.
type EventKind string

const (
	NodeAdd        EventKind = "NodeAdd"
	NodeModify     EventKind = "NodeModify"
	NodeDelete     EventKind = "NodeDelete"
	WayAdd         EventKind = "WayAdd"
	WayModify      EventKind = "WayModify"
	WayDelete      EventKind = "WayDelete"
	RelationAdd    EventKind = "RelationAdd"
	RelationModify EventKind = "RelationModify"
	RelationDelete EventKind = "RelationDelete"
)

// Event is one entry in the input stream (§6.1).
type Event struct {
	Kind     EventKind
	Node     *osm.Node
	Way      *osm.Way
	Relation *osm.Relation
	DeleteID osm.ID
}

// RowSink is the seam the dispatcher hands finished rows through; the
// sink package implements it.
type RowSink interface {
	InsertRow(table string, row map[string]any) error
	// MarkChanged records that a primitive is about to be (re)processed or
	// has been deleted, so the update commit protocol deletes its previous rows before the
	// refreshed ones are inserted (§4.6). A no-op outside update mode.
	MarkChanged(idType string, idNum int64)
}

// Options configures a Dispatcher run.
type Options struct {
	// MaxPropagationDepth bounds relation-of-relation propagation during
	// Update runs; 0 disables the bound (propagate until the frontier is
	// empty).
	MaxPropagationDepth int
	// Workers bounds the Propagate phase's concurrency; 0 defaults to
	// runtime.GOMAXPROCS(0).
	Workers int
}

// Dispatcher owns the run state machine. It is not safe for concurrent
// use by multiple goroutines calling Run methods, matching the
// single-writer pipeline guarantee (§5); only Propagate fans work out
// internally, so the visited set it shares with that fan-out carries its
// own lock.
type Dispatcher struct {
	store   middle.Store
	builder geometry.Builder
	eval    evaluator.Evaluator
	bridge  *evaluator.Bridge
	sink    RowSink
	opts    Options
	stats   *stats.Counters

	state     RunState
	visitedMu sync.Mutex
	visited   map[osm.Ref]bool
	pending   *Event // one event read ahead across an import phase boundary
}

// New constructs a Dispatcher wired to a middle store, an evaluator
// bridge, and a row sink. counters may be nil; a nil Counters is
// treated as a no-op sink for run statistics.
func New(store middle.Store, eval evaluator.Evaluator, bridge *evaluator.Bridge, sink RowSink, opts Options, counters *stats.Counters) *Dispatcher {
	if opts.Workers == 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if counters == nil {
		counters = &stats.Counters{}
	}
	return &Dispatcher{
		store:   store,
		builder: geometry.NewBuilder(),
		eval:    eval,
		bridge:  bridge,
		sink:    sink,
		opts:    opts,
		stats:   counters,
		state:   StateIdle,
		visited: make(map[osm.Ref]bool),
	}
}

// illegalTransition reports an out-of-order state transition.
func illegalTransition(from, to RunState) error {
	return fmt.Errorf("dispatcher: illegal transition %s -> %s", from, to)
}

func (d *Dispatcher) transition(to RunState, allowedFrom ...RunState) error {
	for _, f := range allowedFrom {
		if d.state == f {
			d.state = to
			return nil
		}
	}
	return illegalTransition(d.state, to)
}

// object adapts a primitive ref and tags into an evaluator.ObjectHandle.
type object struct {
	ref  osm.Ref
	tags map[string]string
}

func (o object) Type() string {
	switch o.ref.Type {
	case osm.TypeNode:
		return "node"
	case osm.TypeWay:
		return "way"
	case osm.TypeRelation:
		return "relation"
	default:
		return "unknown"
	}
}
func (o object) ID() int64               { return int64(o.ref.ID) }
func (o object) Tags() map[string]string { return o.tags }

// markVisited records ref as processed this run and reports whether it
// was new (the visited-set dedup §4.5 requires). Propagate re-evaluates
// dependents concurrently, so this guards the shared map with a mutex.
func (d *Dispatcher) markVisited(ref osm.Ref) bool {
	d.visitedMu.Lock()
	defer d.visitedMu.Unlock()
	if d.visited[ref] {
		return false
	}
	d.visited[ref] = true
	return true
}
