package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"

	"osm2pgsql-flex/internal/core"
	"osm2pgsql-flex/internal/osm"
)

// RunUpdate executes the Update state machine: Start -> Apply ->
// Propagate -> Stop. Apply consumes the change stream and writes it
// straight through to the middle store and the evaluator; Propagate then
// re-evaluates every dependent of a changed primitive (ways using a
// changed node, relations using a changed node or way), bounded by
// Options.MaxPropagationDepth for relation-of-relation chains.
func (d *Dispatcher) RunUpdate(ctx context.Context, r Reader) error {
	if err := d.transition(StateStart, StateIdle); err != nil {
		return err
	}
	d.bridge.BeginProcessing()

	if err := d.transition(StateApply, StateStart); err != nil {
		return err
	}
	changed, err := d.runApply(ctx, r)
	if err != nil {
		return err
	}

	if err := d.transition(StatePropagate, StateApply); err != nil {
		return err
	}
	if err := d.runPropagate(ctx, changed); err != nil {
		return err
	}

	return d.transition(StateStop, StatePropagate)
}

// changeSet accumulates the refs touched directly by the Apply phase, the
// frontier Propagate starts from.
type changeSet struct {
	nodes []osm.ID
	ways  []osm.ID
}

func (d *Dispatcher) runApply(ctx context.Context, r Reader) (changeSet, error) {
	var changed changeSet
	for {
		if err := ctx.Err(); err != nil {
			return changed, err
		}
		ev, err := r.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return changed, nil
			}
			return changed, err
		}
		id, err := d.applyUpdateEvent(ctx, ev)
		if err != nil {
			return changed, err
		}
		switch eventType(ev) {
		case osm.TypeNode:
			changed.nodes = append(changed.nodes, id)
		case osm.TypeWay:
			changed.ways = append(changed.ways, id)
		}
	}
}

func (d *Dispatcher) applyUpdateEvent(ctx context.Context, ev Event) (osm.ID, error) {
	switch ev.Kind {
	case NodeAdd, NodeModify:
		if err := d.store.PutNode(*ev.Node); err != nil {
			return 0, &core.StorageError{Op: "put node", Err: err}
		}
		return ev.Node.ID, d.processNode(ctx, *ev.Node)
	case NodeDelete:
		if err := d.store.DeleteNode(ev.DeleteID); err != nil {
			return 0, &core.StorageError{Op: "delete node", Err: err}
		}
		d.sink.MarkChanged("N", int64(ev.DeleteID))
		return ev.DeleteID, nil
	case WayAdd, WayModify:
		if err := d.store.PutWay(*ev.Way); err != nil {
			return 0, &core.StorageError{Op: "put way", Err: err}
		}
		return ev.Way.ID, d.processWay(ctx, *ev.Way)
	case WayDelete:
		if err := d.store.DeleteWay(ev.DeleteID); err != nil {
			return 0, &core.StorageError{Op: "delete way", Err: err}
		}
		d.sink.MarkChanged("W", int64(ev.DeleteID))
		return ev.DeleteID, nil
	case RelationAdd, RelationModify:
		if err := d.store.PutRelation(*ev.Relation); err != nil {
			return 0, &core.StorageError{Op: "put relation", Err: err}
		}
		return ev.Relation.ID, d.processRelation(ctx, *ev.Relation)
	case RelationDelete:
		if err := d.store.DeleteRelation(ev.DeleteID); err != nil {
			return 0, &core.StorageError{Op: "delete relation", Err: err}
		}
		d.sink.MarkChanged("R", int64(ev.DeleteID))
		return ev.DeleteID, nil
	default:
		return 0, fmt.Errorf("dispatcher: unknown event kind %q", ev.Kind)
	}
}

// runPropagate re-evaluates every dependent of the Apply phase's changed
// refs, fanning the work out over an errgroup bounded by Options.Workers,
// and follows relation-of-relation dependents up to MaxPropagationDepth.
func (d *Dispatcher) runPropagate(ctx context.Context, changed changeSet) error {
	frontier := make(map[osm.Ref]bool)
	for _, id := range changed.nodes {
		if err := d.collectNodeDependents(id, frontier); err != nil {
			return err
		}
	}
	for _, id := range changed.ways {
		if err := d.collectWayDependents(id, frontier); err != nil {
			return err
		}
	}

	depth := 0
	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.opts.MaxPropagationDepth > 0 && depth >= d.opts.MaxPropagationDepth {
			break
		}
		next, err := d.propagateBatch(ctx, frontier)
		if err != nil {
			return err
		}
		frontier = next
		depth++
	}
	return nil
}

func (d *Dispatcher) collectNodeDependents(id osm.ID, frontier map[osm.Ref]bool) error {
	ways, err := d.store.WaysUsingNode(id)
	if err != nil {
		return &core.StorageError{Op: "ways using node", Err: err}
	}
	for _, w := range ways {
		frontier[osm.Ref{Type: osm.TypeWay, ID: w}] = true
	}
	rels, err := d.store.RelationsUsingNode(id)
	if err != nil {
		return &core.StorageError{Op: "relations using node", Err: err}
	}
	for _, r := range rels {
		frontier[osm.Ref{Type: osm.TypeRelation, ID: r}] = true
	}
	return nil
}

func (d *Dispatcher) collectWayDependents(id osm.ID, frontier map[osm.Ref]bool) error {
	rels, err := d.store.RelationsUsingWay(id)
	if err != nil {
		return &core.StorageError{Op: "relations using way", Err: err}
	}
	for _, r := range rels {
		frontier[osm.Ref{Type: osm.TypeRelation, ID: r}] = true
	}
	return nil
}

// propagateBatch re-evaluates every ref in the current frontier
// concurrently (geometry construction is pure and the middle store
// supports concurrent readers, §5), and returns the next frontier: the
// relations that depend on any relation just re-evaluated.
func (d *Dispatcher) propagateBatch(ctx context.Context, frontier map[osm.Ref]bool) (map[osm.Ref]bool, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Workers)

	var mu sync.Mutex
	next := make(map[osm.Ref]bool)

	for ref := range frontier {
		ref := ref
		g.Go(func() error {
			if err := d.reEvaluate(gctx, ref); err != nil {
				return err
			}
			if ref.Type == osm.TypeRelation {
				rels, err := d.store.RelationsUsingRelation(ref.ID)
				if err != nil {
					return &core.StorageError{Op: "relations using relation", Err: err}
				}
				mu.Lock()
				for _, r := range rels {
					next[osm.Ref{Type: osm.TypeRelation, ID: r}] = true
				}
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return next, nil
}

// reEvaluate re-runs the dispatcher's per-type processing for a single
// ref that was not itself changed in the Apply phase but depends on
// something that was. It goes through processWay/processRelation, so a
// ref already visited earlier in the run is skipped.
func (d *Dispatcher) reEvaluate(ctx context.Context, ref osm.Ref) error {
	switch ref.Type {
	case osm.TypeWay:
		w, ok, err := d.store.Way(ref.ID)
		if err != nil {
			return &core.StorageError{Op: "load way for propagation", Err: err}
		}
		if !ok {
			return nil
		}
		return d.processWay(ctx, w)
	case osm.TypeRelation:
		r, ok, err := d.store.Relation(ref.ID)
		if err != nil {
			return &core.StorageError{Op: "load relation for propagation", Err: err}
		}
		if !ok {
			return nil
		}
		return d.processRelation(ctx, r)
	default:
		return nil
	}
}
