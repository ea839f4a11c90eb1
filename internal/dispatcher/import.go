package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"io"

	"osm2pgsql-flex/internal/core"
	"osm2pgsql-flex/internal/geometry"
	"osm2pgsql-flex/internal/osm"
)

// RunImport executes the Import state machine: Start -> NodesPhase ->
// WaysPhase -> RelationsPhase -> Stop. The reader is expected to yield
// primitives in that fixed order (all nodes, then all ways, then all
// relations); an event of a later kind ends the current phase, and an
// event of an earlier kind than the current phase is returned as an
// error, not a silent skip.
func (d *Dispatcher) RunImport(ctx context.Context, r Reader) error {
	if err := d.transition(StateStart, StateIdle); err != nil {
		return err
	}
	d.bridge.BeginProcessing()

	if err := d.transition(StateNodesPhase, StateStart); err != nil {
		return err
	}
	if err := d.runPhase(ctx, r, osm.TypeNode); err != nil {
		return err
	}

	if err := d.transition(StateWaysPhase, StateNodesPhase); err != nil {
		return err
	}
	if err := d.runPhase(ctx, r, osm.TypeWay); err != nil {
		return err
	}

	if err := d.transition(StateRelationsPhase, StateWaysPhase); err != nil {
		return err
	}
	if err := d.runPhase(ctx, r, osm.TypeRelation); err != nil {
		return err
	}
	if d.pending != nil {
		return fmt.Errorf("dispatcher: %s event arrived after its import phase", d.pending.Kind)
	}

	return d.transition(StateStop, StateRelationsPhase)
}

// runPhase reads events until it sees the first event of a later phase
// (returned to the caller via a one-event lookahead) or the stream ends.
// To keep Reader a simple pull interface with no lookahead of its own,
// phases are instead driven by event kind: a phase only consumes events
// whose kind matches primType, and stops at the first non-matching event
// or io.EOF, leaving the dispatcher ready to recurse into the next phase.
func (d *Dispatcher) runPhase(ctx context.Context, r Reader, primType osm.Type) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ev, err := d.peekOrConsume(ctx, r, primType)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, errPhaseBoundary) {
				return nil
			}
			return err
		}
		if err := d.applyImportEvent(ctx, ev); err != nil {
			return err
		}
	}
}

var errPhaseBoundary = errors.New("dispatcher: event belongs to a later phase")

func (d *Dispatcher) peekOrConsume(ctx context.Context, r Reader, primType osm.Type) (Event, error) {
	if d.pending != nil {
		ev := *d.pending
		if eventType(ev) == primType {
			d.pending = nil
			return ev, nil
		}
		return Event{}, errPhaseBoundary
	}
	ev, err := r.Next(ctx)
	if err != nil {
		return Event{}, err
	}
	if eventType(ev) != primType {
		d.pending = &ev
		return Event{}, errPhaseBoundary
	}
	return ev, nil
}

func eventType(ev Event) osm.Type {
	switch ev.Kind {
	case NodeAdd, NodeModify, NodeDelete:
		return osm.TypeNode
	case WayAdd, WayModify, WayDelete:
		return osm.TypeWay
	default:
		return osm.TypeRelation
	}
}

func (d *Dispatcher) applyImportEvent(ctx context.Context, ev Event) error {
	switch ev.Kind {
	case NodeAdd, NodeModify:
		if ev.Node == nil {
			return &core.StorageError{Op: "apply node event", Err: fmt.Errorf("nil node payload")}
		}
		if err := d.store.PutNode(*ev.Node); err != nil {
			return &core.StorageError{Op: "put node", Err: err}
		}
		return d.processNode(ctx, *ev.Node)
	case WayAdd, WayModify:
		if ev.Way == nil {
			return &core.StorageError{Op: "apply way event", Err: fmt.Errorf("nil way payload")}
		}
		if err := d.store.PutWay(*ev.Way); err != nil {
			return &core.StorageError{Op: "put way", Err: err}
		}
		return d.processWay(ctx, *ev.Way)
	case RelationAdd, RelationModify:
		if ev.Relation == nil {
			return &core.StorageError{Op: "apply relation event", Err: fmt.Errorf("nil relation payload")}
		}
		if err := d.store.PutRelation(*ev.Relation); err != nil {
			return &core.StorageError{Op: "put relation", Err: err}
		}
		return d.processRelation(ctx, *ev.Relation)
	case NodeDelete, WayDelete, RelationDelete:
		// Deletes are meaningless during import (there is nothing to
		// delete yet); the event is accepted and ignored.
		return nil
	default:
		return fmt.Errorf("dispatcher: unknown event kind %q", ev.Kind)
	}
}

// asGeometryFailure reports whether err is a *core.GeometryError — such
// failures are local to one object and counted, never fatal to a run
// (§7).
func asGeometryFailure(err error) bool {
	var ge *core.GeometryError
	return errors.As(err, &ge)
}

func (d *Dispatcher) processNode(ctx context.Context, n osm.Node) error {
	if !d.markVisited(osm.Ref{Type: osm.TypeNode, ID: n.ID}) {
		return nil
	}
	d.sink.MarkChanged("N", int64(n.ID))
	d.stats.NodesProcessed.Add(1)
	exp := geometry.Expansion{NodePoint: geometry.Point{X: n.Coord.Lon(), Y: n.Coord.Lat()}}
	d.bridge.BeginObject(osm.Ref{Type: osm.TypeNode, ID: n.ID}, object{ref: osm.Ref{Type: osm.TypeNode, ID: n.ID}, tags: n.Tags}, exp)
	if err := d.eval.ProcessNode(ctx, d.bridge); err != nil {
		if asGeometryFailure(err) {
			d.stats.GeometryFailures.Add(1)
			return nil
		}
		return err
	}
	return nil
}

func (d *Dispatcher) processWay(ctx context.Context, w osm.Way) error {
	if !d.markVisited(osm.Ref{Type: osm.TypeWay, ID: w.ID}) {
		return nil
	}
	d.sink.MarkChanged("W", int64(w.ID))
	pts, err := d.resolveWayPoints(w)
	if err != nil {
		if asGeometryFailure(err) {
			d.stats.GeometryFailures.Add(1)
			return nil
		}
		return err
	}
	exp := geometry.Expansion{WayPoints: pts}
	d.bridge.BeginObject(osm.Ref{Type: osm.TypeWay, ID: w.ID}, object{ref: osm.Ref{Type: osm.TypeWay, ID: w.ID}, tags: w.Tags}, exp)
	if err := d.eval.ProcessWay(ctx, d.bridge); err != nil {
		if asGeometryFailure(err) {
			d.stats.GeometryFailures.Add(1)
			return nil
		}
		return err
	}
	d.stats.WaysProcessed.Add(1)
	return nil
}

func (d *Dispatcher) resolveWayPoints(w osm.Way) ([]geometry.Point, error) {
	pts := make([]geometry.Point, 0, len(w.Refs))
	for _, ref := range w.Refs {
		p, ok, err := d.store.NodeCoords(ref)
		if err != nil {
			return nil, &core.StorageError{Op: "resolve way node", Err: err}
		}
		if !ok {
			return nil, &core.GeometryError{Kind: "way", Err: geometry.ErrMissingMember}
		}
		pts = append(pts, p)
	}
	return pts, nil
}

func (d *Dispatcher) processRelation(ctx context.Context, rel osm.Relation) error {
	if !d.markVisited(osm.Ref{Type: osm.TypeRelation, ID: rel.ID}) {
		return nil
	}
	d.sink.MarkChanged("R", int64(rel.ID))
	members, err := d.resolveRelationMembers(rel)
	if err != nil {
		if asGeometryFailure(err) {
			d.stats.GeometryFailures.Add(1)
			return nil
		}
		return err
	}
	d.stats.RelationsProcessed.Add(1)
	exp := geometry.Expansion{Members: members}
	d.bridge.BeginObject(osm.Ref{Type: osm.TypeRelation, ID: rel.ID}, object{ref: osm.Ref{Type: osm.TypeRelation, ID: rel.ID}, tags: rel.Tags}, exp)
	if err := d.eval.ProcessRelation(ctx, d.bridge); err != nil {
		if asGeometryFailure(err) {
			d.stats.GeometryFailures.Add(1)
			return nil
		}
		return err
	}
	return nil
}

func (d *Dispatcher) resolveRelationMembers(rel osm.Relation) ([]geometry.MemberWay, error) {
	members := make([]geometry.MemberWay, 0, len(rel.Members))
	for _, m := range rel.Members {
		if m.Type != osm.TypeWay {
			continue
		}
		w, ok, err := d.store.Way(m.Ref)
		if err != nil {
			return nil, &core.StorageError{Op: "resolve relation member way", Err: err}
		}
		if !ok {
			return nil, &core.GeometryError{Kind: "relation", Err: geometry.ErrMissingMember}
		}
		pts, err := d.resolveWayPoints(w)
		if err != nil {
			return nil, err
		}
		members = append(members, geometry.MemberWay{Role: m.Role, Points: pts})
	}
	return members, nil
}
