package dfs

import (
	"errors"
	"fmt"

	"github.com/stskit-go/dispocore/core"
)

// ErrRepairDidNotConverge is returned by SortWithRepair when repeated cycle
// breaking does not reach an acyclic graph within a bounded number of
// rounds — a defect in the caller's graph construction, not a normal
// dispatcher-input condition.
var ErrRepairDidNotConverge = errors.New("dfs: cycle repair did not converge")

// SortWithRepair topologically sorts g, self-healing any cycle
// TopologicalSort reports: it locates one cycle via DetectCycles and removes
// the edge on that cycle that crosses a partitionOf boundary (an edge whose
// two endpoints map to different partition keys), preferring such a
// crossing edge over one that stays within a single partition, then retries.
// partitionOf may be nil, in which case the last edge of the cycle is always
// removed. onCycle, if non-nil, is called with the offending cycle before it
// is broken, so a caller can log it.
//
// This is the "rebuild, detect a cycle, repair at a deterministic boundary,
// retry" shape every one of this module's two mutable DAGs needs after
// dispatcher input reintroduces a cycle: zielgraph.Recompute repairs the
// target graph at a train boundary, and prognose.Run repairs the event graph
// the same way (§4.4 step 1). Both now drive this one retry loop instead of
// keeping their own copy of it.
func SortWithRepair(g *core.Graph, partitionOf func(vertexID string) string, onCycle func(cycle []string)) ([]string, error) {
	const maxAttempts = 64
	for attempt := 0; attempt < maxAttempts; attempt++ {
		order, err := TopologicalSort(g)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, ErrCycleDetected) {
			return nil, err
		}
		found, cycles, derr := DetectCycles(g)
		if derr != nil {
			return nil, derr
		}
		if !found || len(cycles) == 0 {
			return nil, err
		}
		cycle := cycles[0]
		if onCycle != nil {
			onCycle(cycle)
		}
		if err := breakCycleAtBoundary(g, cycle, partitionOf); err != nil {
			return nil, err
		}
	}
	return nil, ErrRepairDidNotConverge
}

// breakCycleAtBoundary removes the edge on cycle whose endpoints cross a
// partitionOf boundary, preferring the last such crossing edge found while
// walking the cycle; if none cross (or partitionOf is nil), the last edge of
// the cycle is removed unconditionally.
func breakCycleAtBoundary(g *core.Graph, cycle []string, partitionOf func(string) string) error {
	type candidate struct {
		eid      string
		crossing bool
	}
	var last *candidate
	// DetectCycles may report a directed cycle in reversed orientation;
	// walk it along the graph's own edge direction.
	if len(cycle) > 1 && !g.HasEdge(cycle[0], cycle[1]) {
		cycle = Reverse(cycle)
	}
	for i := 0; i < len(cycle)-1; i++ {
		from, to := cycle[i], cycle[i+1]
		edges, err := g.Neighbors(from)
		if err != nil {
			return err
		}
		for _, e := range edges {
			if e.From != from || e.To != to {
				continue
			}
			crossing := partitionOf != nil && partitionOf(from) != partitionOf(to)
			c := candidate{eid: e.ID, crossing: crossing}
			if last == nil || crossing || !last.crossing {
				last = &c
			}
		}
	}
	if last == nil {
		return fmt.Errorf("dfs: could not locate an edge on reported cycle")
	}
	return g.RemoveEdge(last.eid)
}
