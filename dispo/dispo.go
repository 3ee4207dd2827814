// Package dispo implements the dispatcher-intent API (C8): the seven
// operations a human dispatcher (or an automated rule) uses to steer a
// running plan — fixed_delay, wait_for_arrival, wait_for_departure,
// abort_wait, insert_betriebshalt, delete_dispatch_edge and clear_all_at.
// Every operation is atomic: it validates, mutates both graphs it touches,
// and either commits (re-running prognosis and notifying observers) or
// leaves the graphs exactly as they were before the call.
package dispo

import (
	"errors"
	"fmt"

	"github.com/stskit-go/dispocore/bus"
	"github.com/stskit-go/dispocore/ereignisgraph"
	"github.com/stskit-go/dispocore/prognose"
	"github.com/stskit-go/dispocore/zeit"
	"github.com/stskit-go/dispocore/zielgraph"
	"github.com/stskit-go/dispocore/zuggraph"
)

// PlanChanged is the topic Dispatcher triggers on its bus after every
// successful commit.
const PlanChanged = "plan_changed"

var (
	// ErrCycleIntroduced is returned by wait_for_arrival/wait_for_departure
	// when the requested dependency would make the target graph cyclic.
	ErrCycleIntroduced = errors.New("dispo: operation would introduce a cycle")
	// ErrTargetNotFound is returned when a target has no event of the kind
	// an operation needs (e.g. fixed_delay on a target with no departure).
	ErrTargetNotFound = errors.New("dispo: target has no matching event")
	// ErrEdgeNotFound is returned by delete_dispatch_edge for an unknown id
	// and by abort_wait when neither a dispatcher wait nor an automatic one
	// exists between the two targets named.
	ErrEdgeNotFound = errors.New("dispo: no dispatcher edge with that id")
)

// Edge records one dispatcher-added wait, pairing the target-graph
// bookkeeping edge — the surface AddDependency validates acyclicity
// against — with the event-graph edge that actually carries the dt_min gap.
type Edge struct {
	ID          string // target-graph edge id; the handle delete_dispatch_edge/clear_all_at operate on
	EventEdgeID string // paired event-graph edge id
	Target      zielgraph.TargetID
	Reference   zielgraph.TargetID
	Kind        string // "wait_for_arrival" or "wait_for_departure"
}

// Dispatcher applies C8 operations to a target graph and its derived event
// graph, keeping the two in lockstep.
type Dispatcher struct {
	zg    *zielgraph.Graph
	eg    *ereignisgraph.Graph
	edges map[string]Edge

	// Bus is triggered (not published) with PlanChanged after every
	// successful commit: many operations in one cycle collapse into a
	// single delivery at the orchestrator's next Flush. nil is a no-op.
	Bus *bus.Bus
	log func(msg string)
}

// New creates a Dispatcher over zg/eg. log receives diagnostic lines; it
// may be nil.
func New(zg *zielgraph.Graph, eg *ereignisgraph.Graph, log func(msg string)) *Dispatcher {
	return &Dispatcher{zg: zg, eg: eg, edges: make(map[string]Edge), log: log}
}

func (d *Dispatcher) logf(format string, args ...interface{}) {
	if d.log != nil {
		d.log(fmt.Sprintf(format, args...))
	}
}

// commit re-runs prognosis and notifies observers after a successful
// mutation. A prognosis failure is logged, not propagated: the graphs stay
// in their new, valid topology even when a sweep can't converge.
func (d *Dispatcher) commit() error {
	if _, err := prognose.Run(d.eg, d.zg, d.log); err != nil {
		d.logf("dispo: commit: prognose.Run: %v", err)
	}
	if d.Bus != nil {
		d.Bus.Trigger(PlanChanged)
	}
	return nil
}

func eventsFor(eg *ereignisgraph.Graph, target zielgraph.TargetID, typ ereignisgraph.EventType) []ereignisgraph.Node {
	var out []ereignisgraph.Node
	for _, n := range eg.EventsOf(target.Train) {
		if n.RawTarget != nil && *n.RawTarget == target && n.ID.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

// allEventsFor returns every event a target spawned, regardless of type — a
// Halt feeding a Kupplung/Fluegelung marker owns its Arr, the marker, and
// (if one survives) its Dep all at once.
func allEventsFor(eg *ereignisgraph.Graph, target zielgraph.TargetID) []ereignisgraph.Node {
	var out []ereignisgraph.Node
	for _, n := range eg.EventsOf(target.Train) {
		if n.RawTarget != nil && *n.RawTarget == target {
			out = append(out, n)
		}
	}
	return out
}

// FixedDelay sets (relative=false) or offsets (relative=true) the
// dispatcher gap on the dwell edge feeding target's departure — §4.6's
// fixed_delay, stored as dt_fdl on the outgoing H-edge of that departure's
// originating arrival.
func (d *Dispatcher) FixedDelay(target zielgraph.TargetID, minutes zeit.Minuten, relative bool) error {
	deps := eventsFor(d.eg, target, ereignisgraph.Dep)
	if len(deps) == 0 {
		return fmt.Errorf("%w: %s has no departure event", ErrTargetNotFound, target)
	}
	applied := false
	for _, dep := range deps {
		preds, err := d.eg.Predecessors(dep.ID)
		if err != nil {
			return err
		}
		for _, p := range preds {
			if p.ID.Type != ereignisgraph.Arr {
				continue
			}
			attrs, ok := d.eg.Edge(p.ID, dep.ID)
			if !ok {
				continue
			}
			val := minutes
			if relative && zeit.IstBekannt(attrs.DtFdl) {
				val = attrs.DtFdl + minutes
			}
			d.eg.SetDtFdl(p.ID, dep.ID, val)
			applied = true
		}
	}
	if !applied {
		return fmt.Errorf("%w: %s's departure has no originating arrival edge", ErrTargetNotFound, target)
	}
	return d.commit()
}

func (d *Dispatcher) waitFor(srcType, dstType ereignisgraph.EventType, target, reference zielgraph.TargetID, wait zeit.Minuten, kind string) (Edge, error) {
	srcEvents := eventsFor(d.eg, reference, srcType)
	if len(srcEvents) == 0 {
		return Edge{}, fmt.Errorf("%w: reference %s has no %c event", ErrTargetNotFound, reference, srcType)
	}
	dstEvents := eventsFor(d.eg, target, dstType)
	if len(dstEvents) == 0 {
		return Edge{}, fmt.Errorf("%w: target %s has no %c event", ErrTargetNotFound, target, dstType)
	}

	tgID, err := d.zg.AddDependency(reference, target, int64(wait))
	if err != nil {
		return Edge{}, fmt.Errorf("%w: %v", ErrCycleIntroduced, err)
	}

	evID, err := d.eg.AddDependencyEdge(srcEvents[0].ID, dstEvents[0].ID, wait)
	if err != nil {
		_ = d.zg.RemoveEdgeByID(tgID)
		return Edge{}, err
	}

	e := Edge{ID: tgID, EventEdgeID: evID, Target: target, Reference: reference, Kind: kind}
	d.edges[tgID] = e
	return e, d.commit()
}

// WaitForArrival adds a dependency edge Arr(reference) -> Dep(target) with
// dt_min=wait, validated against the target graph for acyclicity first.
func (d *Dispatcher) WaitForArrival(target, reference zielgraph.TargetID, wait zeit.Minuten) (Edge, error) {
	return d.waitFor(ereignisgraph.Arr, ereignisgraph.Dep, target, reference, wait, "wait_for_arrival")
}

// WaitForDeparture adds a dependency edge Dep(reference) -> Dep(target)
// with dt_min=wait, validated against the target graph for acyclicity
// first.
func (d *Dispatcher) WaitForDeparture(target, reference zielgraph.TargetID, wait zeit.Minuten) (Edge, error) {
	return d.waitFor(ereignisgraph.Dep, ereignisgraph.Dep, target, reference, wait, "wait_for_departure")
}

// AbortWait cancels the constraint between reference and target: a
// dispatcher-added wait_for_arrival/wait_for_departure edge is deleted
// outright; an automatic K/F/E minimum dwell the builder attached has its
// dt_min floor zeroed, since that floor — not a dt_fdl bound — is what
// enforces the implicit wait. That edge's dt_fdl is also set to -1, which
// prognose applies as an upper bound one minute before the event's target time.
func (d *Dispatcher) AbortWait(target, reference zielgraph.TargetID) (Edge, error) {
	for id, e := range d.edges {
		if e.Target == target && e.Reference == reference {
			if err := d.DeleteDispatchEdge(id); err != nil {
				return Edge{}, err
			}
			return e, nil
		}
	}

	for _, dst := range allEventsFor(d.eg, target) {
		preds, err := d.eg.Predecessors(dst.ID)
		if err != nil {
			return Edge{}, err
		}
		for _, p := range preds {
			if p.ID.Train != reference.Train {
				continue
			}
			if !d.eg.SetWaitOverride(p.ID, dst.ID, 0, -1) {
				continue
			}
			e := Edge{Target: target, Reference: reference, Kind: "abort_wait"}
			return e, d.commit()
		}
	}
	return Edge{}, fmt.Errorf("%w: no wait between %s and %s", ErrEdgeNotFound, reference, target)
}

// InsertBetriebshalt splices a dispatcher-ordered stop for train into the
// dwell/hop edge between two already-consecutive events. When both
// endpoints still carry their originating target (RawTarget != nil — most
// won't if between1/between2 straddle an E/K/F marker), a matching
// Betriebshalt stop is also recorded on the target graph for bookkeeping;
// skipping it there never blocks the event-graph insertion itself.
func (d *Dispatcher) InsertBetriebshalt(train zuggraph.TrainID, between1, between2 ereignisgraph.EventID, planTrack string, planTime zeit.Minuten) (ereignisgraph.EventID, error) {
	bID, err := d.eg.InsertBetriebshalt(train, between1, between2, planTime)
	if err != nil {
		return ereignisgraph.EventID{}, err
	}

	if b1, err1 := d.eg.Event(between1); err1 == nil && b1.RawTarget != nil {
		if b2, err2 := d.eg.Event(between2); err2 == nil && b2.RawTarget != nil {
			if _, err := d.zg.AddBetriebshalt(train, *b1.RawTarget, *b2.RawTarget, planTrack, planTime); err != nil {
				d.logf("dispo: insert_betriebshalt: target-graph bookkeeping skipped: %v", err)
			}
		}
	}
	return bID, d.commit()
}

// DeleteDispatchEdge removes one dispatcher-added wait from both graphs.
func (d *Dispatcher) DeleteDispatchEdge(id string) error {
	e, ok := d.edges[id]
	if !ok {
		return ErrEdgeNotFound
	}
	if err := d.zg.RemoveEdgeByID(e.ID); err != nil {
		return err
	}
	if e.EventEdgeID != "" {
		if err := d.eg.RemoveEdgeByID(e.EventEdgeID); err != nil {
			return err
		}
	}
	delete(d.edges, id)
	return d.commit()
}

// ClearAllAt removes every dispatcher-added wait ending at target.
func (d *Dispatcher) ClearAllAt(target zielgraph.TargetID) error {
	var ids []string
	for id, e := range d.edges {
		if e.Target == target {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		e := d.edges[id]
		if err := d.zg.RemoveEdgeByID(e.ID); err != nil {
			return err
		}
		if e.EventEdgeID != "" {
			if err := d.eg.RemoveEdgeByID(e.EventEdgeID); err != nil {
				return err
			}
		}
		delete(d.edges, id)
	}
	return d.commit()
}
