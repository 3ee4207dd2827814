// Package zielgraph builds and maintains the target graph (C3): one node per
// planned stop/through-point/entry/exit of every train, linked by planned
// travel, replacement, coupling, and splitting edges. It is rebuilt from the
// simulator roster on every refresh and recomputes its topological order
// (repairing dispatcher-introduced cycles at train boundaries) after every
// change, the same "rebuild, then recompute order, then repair" shape the
// teacher's builder/dfs packages give for generic graphs.
package zielgraph

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/stskit-go/dispocore/core"
	"github.com/stskit-go/dispocore/dfs"
	"github.com/stskit-go/dispocore/zeit"
	"github.com/stskit-go/dispocore/zuggraph"
)

// NodeType is a target node's role in its train's fahrplan.
type NodeType byte

const (
	Halt         NodeType = 'H' // planned stop
	Durchfahrt   NodeType = 'D' // scheduled pass-through
	Entry        NodeType = 'e' // entry anschluss (lowercase: distinct from EdgeErsatz 'E')
	Exit         NodeType = 'a' // exit anschluss (lowercase: distinct from EdgeDependency 'A')
	Betriebshalt NodeType = 'B' // dispatcher-inserted operational stop
)

// Status is a target node's lifecycle state.
type Status byte

const (
	StatusNeu      Status = 'n'
	StatusAngekommen Status = 'a'
	StatusAbgefahren Status = 'b'
)

// EdgeType classifies a target-graph edge.
type EdgeType byte

const (
	EdgePlanned     EdgeType = 'P' // planned travel, same train, consecutive stops
	EdgeErsatz      EdgeType = 'E' // replacement: source train ends, target train continues
	EdgeKupplung    EdgeType = 'K' // coupling: two trains merge
	EdgeFluegelung  EdgeType = 'F' // splitting: one train becomes two
	EdgeDependency  EdgeType = 'A' // dispatcher-imposed cross-train dependency
	EdgeHelper      EdgeType = 'O' // ordering-only helper edge, no time semantics
)

// TargetID uniquely identifies a target row: it is unique per train because
// no train visits the same track at the same minute twice.
type TargetID struct {
	Train     zuggraph.TrainID
	TimeKey   zeit.Minuten // planned arrival or departure, minutes-since-midnight
	PlanTrack string
}

func (id TargetID) String() string {
	return fmt.Sprintf("%d|%s|%s", id.Train, strconv.FormatFloat(float64(id.TimeKey), 'f', -1, 64), id.PlanTrack)
}

// ErrInconsistentRoster is logged and the offending flag edge skipped when a
// stop's flag string references a train id that is not (yet) on the roster.
var ErrInconsistentRoster = errors.New("zielgraph: flag references unknown train")

// ErrTargetNotFound is returned by lookups for a TargetID with no node.
var ErrTargetNotFound = errors.New("zielgraph: target not found")

// FlagRef is one parsed reference from a stop's raw flag string to another
// train, e.g. "E(12)" meaning "this stop is replaced by train 12".
type FlagRef struct {
	Edge  EdgeType
	Train zuggraph.TrainID
}

// Stop is one normalized fahrplan row, as produced by the upstream adapter
// (simplugin) from zugfahrplan. It is the target graph's sole input.
type Stop struct {
	Train     zuggraph.TrainID
	Type      NodeType
	PlanTrack string
	PlanAn    zeit.Minuten // p_an; zeit.Unbekannt if not set
	PlanAb    zeit.Minuten // p_ab
	MinDwell  zeit.Minuten // d_min
	RawFlags  string
	Refs      []FlagRef
}

// Node is a target graph node's full attribute set.
type Node struct {
	ID            TargetID
	Train         zuggraph.TrainID
	Type          NodeType
	PlanTrack     string
	DisposedTrack string
	PlanAn        zeit.Minuten
	PlanAb        zeit.Minuten
	MinDwell      zeit.Minuten
	Status        Status
	RawFlags      string
	VAn           zeit.Minuten // predicted delay, arrival
	VAb           zeit.Minuten // predicted delay, departure
}

// Graph is the target graph.
type Graph struct {
	g *core.Graph
}

// New creates an empty target graph.
func New() *Graph {
	return &Graph{g: core.NewGraph(core.WithDirected(true), core.WithMixedEdges())}
}

// Node returns a copy of the node attributes for id.
func (zg *Graph) Node(id TargetID) (Node, error) {
	m := zg.g.VerticesMap()
	v, ok := m[id.String()]
	if !ok {
		return Node{}, ErrTargetNotFound
	}
	n, _ := v.Metadata["node"].(Node)
	return n, nil
}

// TargetsOf returns every target node belonging to train, in fahrplan order
// (ascending TimeKey — this is the order the P-edges encode).
func (zg *Graph) TargetsOf(train zuggraph.TrainID) []Node {
	var out []Node
	for _, id := range zg.g.Vertices() {
		v := zg.mustVertex(id)
		n, ok := v.Metadata["node"].(Node)
		if ok && n.Train == train {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.TimeKey < out[j].ID.TimeKey })
	return out
}

// RebuildFromRoster walks each train's fahrplan in stops, producing/refreshing
// one target node per stop linked by P-edges in order, and adds E/K/F edges
// for every flag reference to another train's first halt node. Existing
// nodes are updated in place (mutable fields overwritten, node identity and
// anything dispatcher-set on the target graph itself preserved — measured
// times live one layer up, in ereignisgraph, and survive independently).
//
// log is called with InconsistentRoster-classified problems (unknown train
// referenced by a flag); callers decide how to surface that.
func (zg *Graph) RebuildFromRoster(stops map[zuggraph.TrainID][]Stop, log func(err error)) error {
	firstHalt := map[zuggraph.TrainID]TargetID{}
	firstAny := map[zuggraph.TrainID]TargetID{}

	for train, rows := range stops {
		var prev *TargetID
		for _, s := range rows {
			id := TargetID{Train: train, TimeKey: targetTimeKey(s), PlanTrack: s.PlanTrack}
			if err := zg.upsertNode(id, s); err != nil {
				return err
			}
			if _, ok := firstAny[train]; !ok {
				firstAny[train] = id
			}
			// "first halt node of the other train's fahrplan" (§4.2) means the
			// first stop that actually has an Arr event to connect to (Halt or
			// Durchfahrt) — an Entry/Exit marker has no Arr and cannot anchor
			// an E/K/F edge. Falls back to the literal first stop if the train
			// has no such node (degenerate single-Entry/Exit roster).
			if _, ok := firstHalt[train]; !ok && (s.Type == Halt || s.Type == Durchfahrt) {
				firstHalt[train] = id
			}
			if prev != nil {
				if _, err := zg.g.AddEdge(prev.String(), id.String(), 0,
					core.WithEdgeDirected(true), core.WithEdgeMetadata("type", EdgePlanned)); err != nil {
					return err
				}
			}
			p := id
			prev = &p
		}
	}

	for train, rows := range stops {
		for _, s := range rows {
			id := TargetID{Train: train, TimeKey: targetTimeKey(s), PlanTrack: s.PlanTrack}
			for _, ref := range s.Refs {
				dst, ok := firstHalt[ref.Train]
				if !ok {
					dst, ok = firstAny[ref.Train]
				}
				if !ok {
					if log != nil {
						log(fmt.Errorf("%w: train %d references %d", ErrInconsistentRoster, train, ref.Train))
					}
					continue
				}
				if _, err := zg.g.AddEdge(id.String(), dst.String(), 0,
					core.WithEdgeDirected(true), core.WithEdgeMetadata("type", ref.Edge)); err != nil {
					return err
				}
			}
		}
	}

	return zg.insertHelperEdges()
}

// insertHelperEdges adds the 'O' ordering edges required after every
// K-edge: for z1→z2 (K), for each predecessor p of z2 on the continuing
// train with edge type in {P,E,F,K}, add O: p→z1. See §4.2.
func (zg *Graph) insertHelperEdges() error {
	for _, e := range zg.g.Edges() {
		if typeOf(e) != EdgeKupplung {
			continue
		}
		z1, z2 := e.From, e.To
		preds, err := zg.predecessors(z2)
		if err != nil {
			return err
		}
		for _, p := range preds {
			pt := typeOf(p.edge)
			if pt != EdgePlanned && pt != EdgeErsatz && pt != EdgeFluegelung && pt != EdgeKupplung {
				continue
			}
			if p.from == z1 {
				continue
			}
			if zg.g.HasEdge(p.from, z1) {
				continue
			}
			if _, err := zg.g.AddEdge(p.from, z1, 0,
				core.WithEdgeDirected(true), core.WithEdgeMetadata("type", EdgeHelper)); err != nil {
				return err
			}
		}
	}
	return nil
}

type predEdge struct {
	from string
	edge *core.Edge
}

func (zg *Graph) predecessors(vertexID string) ([]predEdge, error) {
	var out []predEdge
	for _, e := range zg.g.Edges() {
		if e.To == vertexID && e.Directed {
			out = append(out, predEdge{from: e.From, edge: e})
		}
	}
	return out, nil
}

// Recompute recomputes the topological order of the target graph. If a
// cycle is found, the offending cycle is logged and the last edge on the
// cycle that crosses train boundaries is removed, then recompute retries —
// dfs.SortWithRepair carries this retry-then-repair loop, shared with
// prognose.Run's equivalent event-graph repair (§4.4 step 1).
func (zg *Graph) Recompute(log func(cycle []string)) ([]string, error) {
	order, err := dfs.SortWithRepair(zg.g, trainOf, log)
	if errors.Is(err, dfs.ErrRepairDidNotConverge) {
		return nil, fmt.Errorf("zielgraph: Recompute did not converge after repeated cycle breaking")
	}
	return order, err
}

// TypedEdge is one target-graph edge resolved to typed endpoints, for
// consumers (ereignisgraph) that need to walk the graph without re-parsing
// vertex-id strings.
type TypedEdge struct {
	ID       string
	From, To TargetID
	Type     EdgeType
}

// AllNodes returns every target node in the graph, order unspecified.
func (zg *Graph) AllNodes() []Node {
	out := make([]Node, 0, zg.g.VertexCount())
	for _, id := range zg.g.Vertices() {
		v := zg.mustVertex(id)
		if n, ok := v.Metadata["node"].(Node); ok {
			out = append(out, n)
		}
	}
	return out
}

// AllEdges returns every target-graph edge with its endpoints resolved to
// TargetID and its recorded EdgeType.
func (zg *Graph) AllEdges() []TypedEdge {
	nodes := map[string]Node{}
	for _, id := range zg.g.Vertices() {
		v := zg.mustVertex(id)
		if n, ok := v.Metadata["node"].(Node); ok {
			nodes[id] = n
		}
	}
	var out []TypedEdge
	for _, e := range zg.g.Edges() {
		from, ok1 := nodes[e.From]
		to, ok2 := nodes[e.To]
		if !ok1 || !ok2 {
			continue
		}
		out = append(out, TypedEdge{ID: e.ID, From: from.ID, To: to.ID, Type: typeOf(e)})
	}
	return out
}

// TrainStarts returns, for each train, its unique start node: the node with
// in-degree zero among same-train P/E/K/F edges (I2).
func (zg *Graph) TrainStarts() map[zuggraph.TrainID]TargetID {
	incoming := map[string]int{}
	for _, e := range zg.g.Edges() {
		if trainOf(e.From) == trainOf(e.To) {
			incoming[e.To]++
		}
	}
	starts := map[zuggraph.TrainID]TargetID{}
	for _, id := range zg.g.Vertices() {
		v := zg.mustVertex(id)
		n, ok := v.Metadata["node"].(Node)
		if !ok {
			continue
		}
		if incoming[id] == 0 {
			if _, already := starts[n.Train]; !already {
				starts[n.Train] = n.ID
			}
		}
	}
	return starts
}

// AddBetriebshalt inserts a dispatcher-ordered operational stop for train
// between two consecutive target nodes (identified by the edge connecting
// them), returning the new target's id. Used by dispo.InsertBetriebshalt.
func (zg *Graph) AddBetriebshalt(train zuggraph.TrainID, after, before TargetID, planTrack string, planTime zeit.Minuten) (TargetID, error) {
	id := TargetID{Train: train, TimeKey: planTime, PlanTrack: planTrack}
	stop := Stop{Train: train, Type: Betriebshalt, PlanTrack: planTrack, PlanAn: planTime, PlanAb: planTime}
	if err := zg.upsertNode(id, stop); err != nil {
		return TargetID{}, err
	}
	if zg.g.HasEdge(after.String(), before.String()) {
		edges, _ := zg.g.Neighbors(after.String())
		for _, e := range edges {
			if e.To == before.String() {
				_ = zg.g.RemoveEdge(e.ID)
			}
		}
	}
	if _, err := zg.g.AddEdge(after.String(), id.String(), 0,
		core.WithEdgeDirected(true), core.WithEdgeMetadata("type", EdgePlanned)); err != nil {
		return TargetID{}, err
	}
	if _, err := zg.g.AddEdge(id.String(), before.String(), 0,
		core.WithEdgeDirected(true), core.WithEdgeMetadata("type", EdgePlanned)); err != nil {
		return TargetID{}, err
	}
	return id, nil
}

// AddDependency adds a dispatcher-imposed 'A' edge from one target to
// another, validating acyclicity first. Used by dispo (C8).
func (zg *Graph) AddDependency(from, to TargetID, weight int64) (string, error) {
	if zg.wouldCycle(from.String(), to.String()) {
		return "", ErrWouldCycle
	}
	return zg.g.AddEdge(from.String(), to.String(), 0,
		core.WithEdgeDirected(true), core.WithEdgeMetadata("type", EdgeDependency), core.WithEdgeMetadata("weight", weight))
}

// ErrWouldCycle is returned by AddDependency when the proposed edge would
// introduce a cycle; the caller (dispo) surfaces this as CycleIntroduced.
var ErrWouldCycle = errors.New("zielgraph: edge would introduce a cycle")

// RemoveEdgeByID removes one dispatcher edge by its core edge id.
func (zg *Graph) RemoveEdgeByID(eid string) error { return zg.g.RemoveEdge(eid) }

// EdgesInto returns the edges ending at id, for clear_all_at support.
func (zg *Graph) EdgesInto(id TargetID) []*core.Edge {
	var out []*core.Edge
	for _, e := range zg.g.Edges() {
		if e.To == id.String() {
			out = append(out, e)
		}
	}
	return out
}

// Underlying exposes the raw core.Graph for packages (ereignisgraph,
// prognose) that need edge/node iteration this typed wrapper doesn't cover.
func (zg *Graph) Underlying() *core.Graph { return zg.g }

func (zg *Graph) wouldCycle(from, to string) bool {
	edges, err := zg.g.Neighbors(to)
	if err != nil {
		return false
	}
	visited := map[string]bool{to: true}
	queue := []string{}
	for _, e := range edges {
		if e.From == to {
			queue = append(queue, e.To)
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == from {
			return true
		}
		if visited[cur] {
			continue
		}
		visited[cur] = true
		next, err := zg.g.Neighbors(cur)
		if err != nil {
			continue
		}
		for _, e := range next {
			if e.From == cur {
				queue = append(queue, e.To)
			}
		}
	}
	return false
}

// upsertNode writes or rebuilds a target node. An already-present node keeps
// its Status across the rebuild (mirroring VAn/VAb below and
// ereignisgraph.upsertNode's TMess preservation); only a genuinely new node
// starts at StatusNeu.
func (zg *Graph) upsertNode(id TargetID, s Stop) error {
	if err := zg.g.AddVertex(id.String()); err != nil {
		return err
	}
	m := zg.g.VerticesMap()
	v := m[id.String()]
	existing, had := v.Metadata["node"].(Node)
	status := StatusNeu
	if had {
		status = existing.Status
	}
	n := Node{
		ID:            id,
		Train:         s.Train,
		Type:          s.Type,
		PlanTrack:     s.PlanTrack,
		DisposedTrack: s.PlanTrack,
		PlanAn:        s.PlanAn,
		PlanAb:        s.PlanAb,
		MinDwell:      s.MinDwell,
		Status:        status,
		RawFlags:      s.RawFlags,
		VAn:           existing.VAn,
		VAb:           existing.VAb,
	}
	v.Metadata["node"] = n
	return nil
}

// MarkTrainDeparted sets Status to StatusAbgefahren on every target node
// belonging to train. Called when the roster reports train absent for a
// tick after previously being visible (§4.1: "all their target nodes marked
// ab"), alongside zuggraph.Graph.Terminate for the train-row half of that
// invariant.
func (zg *Graph) MarkTrainDeparted(train zuggraph.TrainID) {
	m := zg.g.VerticesMap()
	for _, id := range zg.g.Vertices() {
		v := m[id]
		n, ok := v.Metadata["node"].(Node)
		if !ok || n.Train != train {
			continue
		}
		n.Status = StatusAbgefahren
		v.Metadata["node"] = n
	}
}

// SetPredictedDelay writes the prognosis engine's computed v_an/v_ab back
// onto the target row for id (§4.4 step 4). Returns ErrTargetNotFound if no
// such target exists.
func (zg *Graph) SetPredictedDelay(id TargetID, vAn, vAb zeit.Minuten) error {
	m := zg.g.VerticesMap()
	v, ok := m[id.String()]
	if !ok {
		return ErrTargetNotFound
	}
	n, _ := v.Metadata["node"].(Node)
	n.VAn, n.VAb = vAn, vAb
	v.Metadata["node"] = n
	return nil
}

func (zg *Graph) mustVertex(id string) *core.Vertex {
	m := zg.g.VerticesMap()
	return m[id]
}

func typeOf(e *core.Edge) EdgeType {
	t, _ := e.Metadata["type"].(EdgeType)
	return t
}

func trainOf(vertexID string) string {
	parts := strings.SplitN(vertexID, "|", 2)
	if len(parts) == 0 {
		return vertexID
	}
	return parts[0]
}

func targetTimeKey(s Stop) zeit.Minuten {
	if zeit.IstBekannt(s.PlanAn) {
		return s.PlanAn
	}
	return s.PlanAb
}
