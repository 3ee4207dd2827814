package ereignisgraph

import (
	"errors"

	"github.com/stskit-go/dispocore/builder"
	"github.com/stskit-go/dispocore/core"
	"github.com/stskit-go/dispocore/zeit"
	"github.com/stskit-go/dispocore/zielgraph"
	"github.com/stskit-go/dispocore/zuggraph"
)

// ErrEventNotFound is returned by lookups for an EventID with no node.
var ErrEventNotFound = errors.New("ereignisgraph: event not found")

// Graph is the event graph.
type Graph struct {
	g *core.Graph
}

// New creates an empty event graph.
func New() *Graph {
	return &Graph{g: core.NewGraph(core.WithDirected(true), core.WithMixedEdges())}
}

// Underlying exposes the raw core.Graph for prognose's topological sweep and
// cycle-breaking, which operate generically over any directed core.Graph.
func (eg *Graph) Underlying() *core.Graph { return eg.g }

// Event returns a copy of the node attributes for id.
func (eg *Graph) Event(id EventID) (Node, error) {
	m := eg.g.VerticesMap()
	v, ok := m[id.String()]
	if !ok {
		return Node{}, ErrEventNotFound
	}
	n, _ := v.Metadata["node"].(Node)
	return n, nil
}

// SetEvent overwrites the stored node, used by prognose to write back t_prog.
func (eg *Graph) SetEvent(n Node) error {
	if err := eg.g.AddVertex(n.ID.String()); err != nil {
		return err
	}
	m := eg.g.VerticesMap()
	m[n.ID.String()].Metadata["node"] = n
	return nil
}

// EventsOf returns every event node belonging to train.
func (eg *Graph) EventsOf(train zuggraph.TrainID) []Node {
	m := eg.g.VerticesMap()
	var out []Node
	for _, id := range eg.g.Vertices() {
		if n, ok := m[id].Metadata["node"].(Node); ok && n.ID.Train == train {
			out = append(out, n)
		}
	}
	return out
}

// Edge returns the attributes of the edge between two events, if any.
func (eg *Graph) Edge(from, to EventID) (EdgeAttrs, bool) {
	edges, err := eg.g.Neighbors(from.String())
	if err != nil {
		return EdgeAttrs{}, false
	}
	for _, e := range edges {
		if e.From == from.String() && e.To == to.String() {
			a, _ := e.Metadata["attrs"].(EdgeAttrs)
			return a, true
		}
	}
	return EdgeAttrs{}, false
}

// SetDtFdl sets the dispatcher-added gap on the edge between from and to,
// used by dispo's fixed_delay operation and ingest's rothalt handling.
// Returns false if no such edge exists.
func (eg *Graph) SetDtFdl(from, to EventID, dtFdl zeit.Minuten) bool {
	edges, err := eg.g.Neighbors(from.String())
	if err != nil {
		return false
	}
	for _, e := range edges {
		if e.From == from.String() && e.To == to.String() {
			a, _ := e.Metadata["attrs"].(EdgeAttrs)
			a.DtFdl = dtFdl
			e.Metadata["attrs"] = a
			return true
		}
	}
	return false
}

// SetWaitOverride replaces both the minimum dwell and the dispatcher gap on
// an existing edge, for dispo's abort_wait: canceling an automatic K/F/E
// wait means zeroing its dt_min floor, since zeit.Clamp enforces the minimum
// bound last and a dt_fdl-only override could never out-rank a dt_min still
// in force. Returns false if no such edge exists.
func (eg *Graph) SetWaitOverride(from, to EventID, dtMin, dtFdl zeit.Minuten) bool {
	edges, err := eg.g.Neighbors(from.String())
	if err != nil {
		return false
	}
	for _, e := range edges {
		if e.From == from.String() && e.To == to.String() {
			a, _ := e.Metadata["attrs"].(EdgeAttrs)
			a.DtMin, a.DtFdl = dtMin, dtFdl
			e.Metadata["attrs"] = a
			return true
		}
	}
	return false
}

// AddDependencyEdge adds a C8 dispatcher dependency edge (wait_for_arrival /
// wait_for_departure) directly between two existing events. Acyclicity is
// the caller's (dispo's) responsibility, validated on the target graph
// before the rebuild that would produce this edge's endpoints.
func (eg *Graph) AddDependencyEdge(from, to EventID, dtMin zeit.Minuten) (string, error) {
	return eg.g.AddEdge(from.String(), to.String(), 0,
		core.WithEdgeDirected(true),
		core.WithEdgeMetadata("attrs", EdgeAttrs{Type: EdgeDependency, DtMin: dtMin, DtMax: zeit.Unbekannt}))
}

// RemoveEdgeByID removes one event-graph edge by its core edge id.
func (eg *Graph) RemoveEdgeByID(eid string) error { return eg.g.RemoveEdge(eid) }

// EdgesInto returns the core edges ending at id.
func (eg *Graph) EdgesInto(id EventID) []*core.Edge {
	var out []*core.Edge
	for _, e := range eg.g.Edges() {
		if e.To == id.String() {
			out = append(out, e)
		}
	}
	return out
}

// Successors returns the decoded Nodes reachable from id by one outgoing
// edge (dwell/hop, planned-travel, or dispatcher dependency), for the
// ingestor's zugpfad walk.
func (eg *Graph) Successors(id EventID) ([]Node, error) {
	edges, err := eg.g.Neighbors(id.String())
	if err != nil {
		return nil, err
	}
	m := eg.g.VerticesMap()
	var out []Node
	for _, e := range edges {
		if e.From != id.String() {
			continue
		}
		v, ok := m[e.To]
		if !ok {
			continue
		}
		if n, ok := v.Metadata["node"].(Node); ok {
			out = append(out, n)
		}
	}
	return out, nil
}

// Predecessors returns the decoded Nodes with an edge ending at id, for
// callers (the ingestor's rothalt handling) that need the Arr feeding a
// given Dep's dwell edge.
func (eg *Graph) Predecessors(id EventID) ([]Node, error) {
	m := eg.g.VerticesMap()
	var out []Node
	for _, e := range eg.g.Edges() {
		if e.To != id.String() {
			continue
		}
		v, ok := m[e.From]
		if !ok {
			continue
		}
		if n, ok := v.Metadata["node"].(Node); ok {
			out = append(out, n)
		}
	}
	return out, nil
}

// InsertBetriebshalt inserts a dispatcher-ordered operational stop for train
// between two existing, directly-connected events, splitting their edge
// into two H-hops through the new B event (C8's insert_betriebshalt).
func (eg *Graph) InsertBetriebshalt(train zuggraph.TrainID, between1, between2 EventID, plan zeit.Minuten) (EventID, error) {
	bID := EventID{Train: train, Time: plan, Type: BEv}
	attrs, ok := eg.Edge(between1, between2)
	if !ok {
		return EventID{}, ErrEventNotFound
	}
	if err := eg.g.AddVertex(bID.String()); err != nil {
		return EventID{}, err
	}
	m := eg.g.VerticesMap()
	m[bID.String()].Metadata["node"] = Node{ID: bID, TPlan: plan, TMess: zeit.Unbekannt, TProg: zeit.Unbekannt}

	edges, _ := eg.g.Neighbors(between1.String())
	for _, e := range edges {
		if e.From == between1.String() && e.To == between2.String() {
			_ = eg.g.RemoveEdge(e.ID)
		}
	}
	if _, err := eg.g.AddEdge(between1.String(), bID.String(), 0,
		core.WithEdgeDirected(true), core.WithEdgeMetadata("attrs", EdgeAttrs{Type: EdgeHop, DtMin: attrs.DtMin})); err != nil {
		return EventID{}, err
	}
	if _, err := eg.g.AddEdge(bID.String(), between2.String(), 0,
		core.WithEdgeDirected(true), core.WithEdgeMetadata("attrs", EdgeAttrs{Type: EdgeHop, DtMin: 0})); err != nil {
		return EventID{}, err
	}
	return bID, nil
}

// skeleton tracks, per target, which event nodes currently serve as that
// target's entry (fed by incoming P/E/F edges) and exit (source of outgoing
// P edges, or the E/K marker that now terminates this target's train).
type skeleton struct {
	arr, dep       EventID
	hasArr, hasDep bool
	entry, exit    EventID
}

// Rebuild translates the target graph into this event graph using a
// node-builder / edge-builder pair per §4.3: all node builders run first
// (producing every Arr/Dep event with a stable, deterministic id), then all
// edge builders run (producing P/E/K/F connections and the markers they
// insert). Rebuild is idempotent — event nodes are addressed by the same
// deterministic EventID across calls, so existing attributes merge rather
// than duplicate, and t_mess survives (§4.3, I8).
func (eg *Graph) Rebuild(tg *zielgraph.Graph, cfg BuildConfig, log func(err error)) error {
	targets := map[zielgraph.TargetID]zielgraph.Node{}
	for _, n := range tg.AllNodes() {
		if n.Train.IsShunting() {
			continue // shunting moves get no events and no prognosis
		}
		targets[n.ID] = n
	}

	skel := map[zielgraph.TargetID]*skeleton{}

	var cons []builder.Constructor
	for _, n := range targets {
		n := n
		cons = append(cons, builder.Wrap(eg.buildNode(n, cfg, skel)))
	}
	for _, te := range tg.AllEdges() {
		te := te
		switch te.Type {
		case zielgraph.EdgePlanned, zielgraph.EdgeErsatz, zielgraph.EdgeKupplung, zielgraph.EdgeFluegelung:
			cons = append(cons, builder.Wrap(eg.buildEdge(te, targets, cfg, skel, log)))
		}
	}

	return builder.ApplyTo(eg.g, nil, cons...)
}

// buildNode is the node-builder for one target: it produces the target's
// base skeleton (Arr and/or Dep, per node type) per §4.3's table.
func (eg *Graph) buildNode(t zielgraph.Node, cfg BuildConfig, skel map[zielgraph.TargetID]*skeleton) func(*core.Graph) error {
	return func(g *core.Graph) error {
		s := &skeleton{}
		switch t.Type {
		case zielgraph.Halt:
			dwell := t.MinDwell
			if !zeit.IstBekannt(dwell) {
				dwell = cfg.MindestaufenthaltPlanhalt
			}
			if err := eg.buildArrDep(g, t, dwell, s); err != nil {
				return err
			}
		case zielgraph.Durchfahrt:
			if err := eg.buildArrDep(g, t, 0, s); err != nil {
				return err
			}
		case zielgraph.Entry:
			depID := EventID{Train: t.Train, Time: t.PlanAb, Type: Dep}
			tid := t.ID
			if err := eg.upsertNode(g, depID, &tid, t.PlanTrack, t.PlanAb); err != nil {
				return err
			}
			s.dep, s.hasDep = depID, true
			s.entry, s.exit = depID, depID
		case zielgraph.Exit:
			arrID := EventID{Train: t.Train, Time: t.PlanAn, Type: Arr}
			tid := t.ID
			if err := eg.upsertNode(g, arrID, &tid, t.PlanTrack, t.PlanAn); err != nil {
				return err
			}
			s.arr, s.hasArr = arrID, true
			s.entry, s.exit = arrID, arrID
		case zielgraph.Betriebshalt:
			if err := eg.buildArrDep(g, t, cfg.MindestaufenthaltPlanhalt, s); err != nil {
				return err
			}
		}
		skel[t.ID] = s
		return nil
	}
}

func (eg *Graph) buildArrDep(g *core.Graph, t zielgraph.Node, dwell zeit.Minuten, s *skeleton) error {
	arrID := EventID{Train: t.Train, Time: t.PlanAn, Type: Arr}
	depTime := t.PlanAb
	if depTime == t.PlanAn {
		depTime += 1e-6 // disambiguate coincident Arr/Dep per §3's EventId.time policy
	}
	depID := EventID{Train: t.Train, Time: depTime, Type: Dep}
	tid := t.ID
	if err := eg.upsertNode(g, arrID, &tid, t.PlanTrack, t.PlanAn); err != nil {
		return err
	}
	if err := eg.upsertNode(g, depID, &tid, t.PlanTrack, t.PlanAb); err != nil {
		return err
	}
	if err := eg.upsertEdge(g, arrID, depID, EdgeHop, dwell, zeit.Unbekannt, 0); err != nil {
		return err
	}
	s.arr, s.hasArr = arrID, true
	s.dep, s.hasDep = depID, true
	s.entry, s.exit = arrID, depID
	return nil
}

// buildEdge is the edge-builder for one target-graph edge: P/E/K/F, per the
// rules in §4.3.
func (eg *Graph) buildEdge(te zielgraph.TypedEdge, targets map[zielgraph.TargetID]zielgraph.Node, cfg BuildConfig, skel map[zielgraph.TargetID]*skeleton, log func(error)) func(*core.Graph) error {
	return func(g *core.Graph) error {
		s1, s2 := skel[te.From], skel[te.To]
		if s1 == nil || s2 == nil {
			return nil // an endpoint has no events (vanished, or a shunting move); the edge is skipped without logging
		}
		t1, t2 := targets[te.From], targets[te.To]

		switch te.Type {
		case zielgraph.EdgePlanned:
			dtMin := t2.PlanAn - t1.PlanAb
			return eg.upsertEdge(g, s1.exit, s2.entry, EdgePlanned, dtMin, zeit.Unbekannt, 0)

		case zielgraph.EdgeErsatz:
			ePlanned := t1.PlanAn + cfg.MindestaufenthaltErsatz
			eID := EventID{Train: t1.Train, Time: ePlanned, Type: EEv}
			tid := te.From
			if err := eg.upsertNode(g, eID, &tid, t1.PlanTrack, ePlanned); err != nil {
				return err
			}
			if err := eg.upsertEdge(g, s1.arr, eID, EdgeHop, cfg.MindestaufenthaltErsatz, zeit.Unbekannt, 0); err != nil {
				return err
			}
			if s1.hasDep {
				_ = g.RemoveVertex(s1.dep.String())
				s1.hasDep = false
			}
			s1.exit = eID
			if err := eg.upsertEdge(g, eID, s2.dep, EdgeHop, 0, zeit.Unbekannt, 0); err != nil {
				return err
			}
			if s2.hasArr {
				_ = g.RemoveVertex(s2.arr.String())
				s2.hasArr = false
			}
			s2.entry = s2.dep

		case zielgraph.EdgeKupplung:
			bereit1 := t1.PlanAn + cfg.MindestaufenthaltKupplung
			bereit2 := t2.PlanAn + cfg.MindestaufenthaltKupplung
			kPlanned := bereit1
			if bereit2 > kPlanned {
				kPlanned = bereit2
			}
			kID := EventID{Train: t2.Train, Time: kPlanned, Type: KEv}
			tid := te.To
			if err := eg.upsertNode(g, kID, &tid, t2.PlanTrack, kPlanned); err != nil {
				return err
			}
			if err := eg.upsertEdge(g, s1.arr, kID, EdgeHop, cfg.MindestaufenthaltKupplung, zeit.Unbekannt, 0); err != nil {
				return err
			}
			if s1.hasDep {
				_ = g.RemoveVertex(s1.dep.String())
				s1.hasDep = false
			}
			s1.exit = kID
			if s2.hasArr && s2.hasDep {
				eg.removeEdgeBetween(g, s2.arr.String(), s2.dep.String())
			}
			if err := eg.upsertEdge(g, s2.arr, kID, EdgeHop, cfg.MindestaufenthaltKupplung, zeit.Unbekannt, 0); err != nil {
				return err
			}
			if err := eg.upsertEdge(g, kID, s2.dep, EdgeHop, 0, zeit.Unbekannt, 0); err != nil {
				return err
			}

		case zielgraph.EdgeFluegelung:
			fPlanned := t1.PlanAn + cfg.MindestaufenthaltFluegelung
			fID := EventID{Train: t1.Train, Time: fPlanned, Type: FEv}
			tid := te.From
			if err := eg.upsertNode(g, fID, &tid, t1.PlanTrack, fPlanned); err != nil {
				return err
			}
			if s1.hasArr && s1.hasDep {
				eg.removeEdgeBetween(g, s1.arr.String(), s1.dep.String())
			}
			if err := eg.upsertEdge(g, s1.arr, fID, EdgeHop, cfg.MindestaufenthaltFluegelung, zeit.Unbekannt, 0); err != nil {
				return err
			}
			if err := eg.upsertEdge(g, fID, s1.dep, EdgeHop, 0, zeit.Unbekannt, 0); err != nil {
				return err
			}
			if err := eg.upsertEdge(g, fID, s2.dep, EdgeHop, 0, zeit.Unbekannt, 0); err != nil {
				return err
			}
			if s2.hasArr {
				_ = g.RemoveVertex(s2.arr.String())
				s2.hasArr = false
			}
			s2.entry = s2.dep
		}
		return nil
	}
}

func (eg *Graph) removeEdgeBetween(g *core.Graph, from, to string) {
	edges, err := g.Neighbors(from)
	if err != nil {
		return
	}
	for _, e := range edges {
		if e.From == from && e.To == to {
			_ = g.RemoveEdge(e.ID)
		}
	}
}

// upsertNode creates an event node if absent, or merges mutable fields into
// an existing one while preserving t_mess (I8, §4.3).
func (eg *Graph) upsertNode(g *core.Graph, id EventID, rawTarget *zielgraph.TargetID, track string, planned zeit.Minuten) error {
	vid := id.String()
	if err := g.AddVertex(vid); err != nil {
		return err
	}
	m := g.VerticesMap()
	v := m[vid]
	existing, had := v.Metadata["node"].(Node)
	// TMess/TProg must start Unbekannt (-Inf), not Go's float64 zero value —
	// zeit.IstBekannt(0) is true, so a zero-value Node would read as "already
	// measured at minute zero" and short-circuit prognosis entirely.
	n := Node{ID: id, RawTarget: rawTarget, PlanTrack: track, DisposedTrack: track, TPlan: planned, TMess: zeit.Unbekannt, TProg: zeit.Unbekannt}
	if had {
		n.TMess = existing.TMess
	}
	v.Metadata["node"] = n
	return nil
}

// upsertEdge creates an event edge if absent, or updates its attributes in
// place if present — preserving dt_fdl, which C8 sets directly on H-edges
// and which a rebuild must not wipe.
func (eg *Graph) upsertEdge(g *core.Graph, from, to EventID, typ EdgeType, dtMin, dtMax, dtFdl zeit.Minuten) error {
	fromID, toID := from.String(), to.String()
	if g.HasEdge(fromID, toID) {
		edges, err := g.Neighbors(fromID)
		if err != nil {
			return err
		}
		for _, e := range edges {
			if e.From == fromID && e.To == toID {
				existing, _ := e.Metadata["attrs"].(EdgeAttrs)
				if e.Metadata == nil {
					e.Metadata = map[string]interface{}{}
				}
				e.Metadata["attrs"] = EdgeAttrs{Type: typ, DtMin: dtMin, DtMax: dtMax, DtFdl: existing.DtFdl}
				return nil
			}
		}
	}
	_, err := g.AddEdge(fromID, toID, 0,
		core.WithEdgeDirected(true),
		core.WithEdgeMetadata("attrs", EdgeAttrs{Type: typ, DtMin: dtMin, DtMax: dtMax, DtFdl: dtFdl}))
	return err
}
