// Package prognose implements the topological-sweep prognosis engine (C6):
// breaking cycles introduced by dispatcher input, sorting the event graph,
// and propagating measured/planned times under min/max/dispatcher
// constraints, then writing predicted delays back to the target graph.
package prognose

import (
	"errors"
	"fmt"

	"github.com/stskit-go/dispocore/core"
	"github.com/stskit-go/dispocore/dfs"
	"github.com/stskit-go/dispocore/ereignisgraph"
	"github.com/stskit-go/dispocore/zeit"
	"github.com/stskit-go/dispocore/zielgraph"
)

// ErrDidNotConverge means cycle breaking did not reach an acyclic graph
// within a bounded number of attempts — a defect, not a normal condition.
var ErrDidNotConverge = errors.New("prognose: cycle breaking did not converge")

// Result summarizes one prognosis run.
type Result struct {
	// Unresolved lists events whose t_prog could not be determined
	// ("insufficient data", §4.4 step 3) and so were left unset.
	Unresolved []ereignisgraph.EventID
}

// Run executes one full prognosis pass over eg and writes predicted delays
// back onto tg. log receives diagnostic lines for broken cycles and
// unresolved events; it may be nil.
func Run(eg *ereignisgraph.Graph, tg *zielgraph.Graph, log func(msg string)) (Result, error) {
	g := eg.Underlying()

	order, err := breakCyclesAndSort(g, log)
	if err != nil {
		return Result{}, err
	}

	incoming := incomingIndex(g)
	vertices := g.VerticesMap()

	var unresolved []ereignisgraph.EventID
	for _, vid := range order {
		v := vertices[vid]
		node, ok := v.Metadata["node"].(ereignisgraph.Node)
		if !ok {
			continue
		}

		if zeit.IstBekannt(node.TMess) {
			continue // t_eff already fixed; nothing to propagate onto this node
		}

		tTarget := targetTime(tg, node)
		tMin, tMax := bounds(vertices, incoming[vid], tTarget)
		tProg := zeit.Clamp(tTarget, tMin, tMax)

		if !zeit.IstBekannt(tProg) {
			if log != nil {
				log(fmt.Sprintf("prognose: insufficient data for %s", node.ID))
			}
			unresolved = append(unresolved, node.ID)
		}

		node.TProg = tProg
		if err := eg.SetEvent(node); err != nil {
			return Result{}, err
		}
	}

	if err := writeBack(eg, tg, order, vertices); err != nil {
		return Result{}, err
	}

	return Result{Unresolved: unresolved}, nil
}

// breakCyclesAndSort mirrors zielgraph.Recompute's retry loop: a cycle
// introduced by dispatcher input is expected and must be broken, preferring
// an edge whose endpoints belong to different trains (§4.4 step 1). Both
// call sites now share dfs.SortWithRepair's retry-then-repair loop; this one
// partitions on the event's train, read out of each vertex's Node metadata.
func breakCyclesAndSort(g *core.Graph, log func(string)) ([]string, error) {
	vertices := g.VerticesMap()
	trainOf := func(vid string) string {
		n, _ := vertices[vid].Metadata["node"].(ereignisgraph.Node)
		return fmt.Sprintf("%d", n.ID.Train)
	}
	onCycle := func(cycle []string) {
		if log != nil {
			log(fmt.Sprintf("prognose: breaking cycle %v", cycle))
		}
	}
	order, err := dfs.SortWithRepair(g, trainOf, onCycle)
	if errors.Is(err, dfs.ErrRepairDidNotConverge) {
		return nil, ErrDidNotConverge
	}
	return order, err
}

func incomingIndex(g *core.Graph) map[string][]*core.Edge {
	idx := make(map[string][]*core.Edge)
	for _, e := range g.Edges() {
		idx[e.To] = append(idx[e.To], e)
	}
	return idx
}

// targetTime determines t_target per §4.4 step 3: the fallback chain for a
// Dep whose train starts at an entry anschluss (so a previous run's t_prog
// carries the upstream entry delay forward), t_plan otherwise.
func targetTime(tg *zielgraph.Graph, node ereignisgraph.Node) zeit.Minuten {
	if node.ID.Type == ereignisgraph.Dep && node.RawTarget != nil {
		if t, err := tg.Node(*node.RawTarget); err == nil && t.Type == zielgraph.Entry {
			if zeit.IstBekannt(node.TMess) {
				return node.TMess
			}
			if zeit.IstBekannt(node.TProg) {
				return node.TProg
			}
			return node.TPlan
		}
	}
	if !zeit.IstBekannt(node.TPlan) {
		return zeit.Unbekannt
	}
	return node.TPlan
}

// bounds computes t_min/t_max over incoming edges per §4.4 step 3. A
// negative dt_fdl (a dispatcher pull-earlier instruction) bounds t_max
// relative to this node's own t_target, not the edge source's t_eff —
// it constrains how early THIS event may be, not how it derives from
// its predecessor.
func bounds(vertices map[string]*core.Vertex, edges []*core.Edge, tTarget zeit.Minuten) (zeit.Minuten, zeit.Minuten) {
	tMin := zeit.Unbekannt
	tMax := zeit.Unbekannt

	for _, e := range edges {
		attrs, _ := e.Metadata["attrs"].(ereignisgraph.EdgeAttrs)
		srcNode, ok := vertices[e.From].Metadata["node"].(ereignisgraph.Node)
		if !ok {
			continue
		}
		srcEff := srcNode.TEff()
		if !zeit.IstBekannt(srcEff) {
			continue
		}

		if zeit.IstBekannt(attrs.DtMin) {
			cand := srcEff + attrs.DtMin
			if zeit.IstBekannt(attrs.DtFdl) && attrs.DtFdl > 0 {
				cand += attrs.DtFdl
			}
			if !zeit.IstBekannt(tMin) || cand > tMin {
				tMin = cand
			}
		}

		if zeit.IstBekannt(attrs.DtMax) {
			cand := srcEff + attrs.DtMax
			if !zeit.IstBekannt(tMax) || cand < tMax {
				tMax = cand
			}
		}
		if zeit.IstBekannt(attrs.DtFdl) && attrs.DtFdl < 0 && zeit.IstBekannt(tTarget) {
			cand := tTarget + attrs.DtFdl
			if !zeit.IstBekannt(tMax) || cand < tMax {
				tMax = cand
			}
		}
	}

	return tMin, tMax
}

// writeBack implements §4.4 step 4: v = t_eff - t_plan, written to the
// target row's v_an (Arr) or v_ab (Dep); D/A node types mirror into both.
func writeBack(eg *ereignisgraph.Graph, tg *zielgraph.Graph, order []string, vertices map[string]*core.Vertex) error {
	type delta struct {
		vAn, vAb     zeit.Minuten
		hasAn, hasAb bool
	}
	deltas := map[zielgraph.TargetID]*delta{}

	for _, vid := range order {
		node, ok := vertices[vid].Metadata["node"].(ereignisgraph.Node)
		if !ok || node.RawTarget == nil {
			continue
		}
		if !zeit.IstBekannt(node.TPlan) {
			continue
		}
		v := node.TEff() - node.TPlan

		d := deltas[*node.RawTarget]
		if d == nil {
			d = &delta{}
			deltas[*node.RawTarget] = d
		}
		switch node.ID.Type {
		case ereignisgraph.Arr:
			d.vAn, d.hasAn = v, true
		case ereignisgraph.Dep:
			d.vAb, d.hasAb = v, true
		}
	}

	for tid, d := range deltas {
		t, err := tg.Node(tid)
		if err != nil {
			continue
		}
		vAn, vAb := d.vAn, d.vAb
		switch t.Type {
		case zielgraph.Durchfahrt, zielgraph.Exit:
			if d.hasAn {
				vAb = d.vAn
			} else if d.hasAb {
				vAn = d.vAb
			}
		}
		if err := tg.SetPredictedDelay(tid, vAn, vAb); err != nil {
			return err
		}
	}
	return nil
}
