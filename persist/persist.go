// Package persist implements the §6 "Persisted state" debugging dump: a
// JSON node-link rendering of the target graph, written on shutdown and
// never read back (the simulator is always the source of truth on
// startup). encoding/json is used directly rather than a graph-format
// library: the node-link shape is a handful of slices and the teacher's
// own examples never reach for a serialization dependency for anything
// this simple, so none is introduced here either.
package persist

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/stskit-go/dispocore/zeit"
	"github.com/stskit-go/dispocore/zielgraph"
)

// NodeLink is the node-link document written to disk: one entry per target
// node and one per edge, named the way the common node-link JSON
// convention (id/source/target) does so the dump is readable by generic
// graph tools, not just this module.
type NodeLink struct {
	Nodes []NodeLinkNode `json:"nodes"`
	Links []NodeLinkEdge `json:"links"`
}

// NodeLinkNode is one target node, flattened to JSON-friendly scalars.
type NodeLinkNode struct {
	ID            string  `json:"id"`
	Train         int64   `json:"train"`
	Type          string  `json:"type"`
	PlanTrack     string  `json:"plan_track"`
	DisposedTrack string  `json:"disposed_track,omitempty"`
	PlanAn        float64 `json:"plan_an,omitempty"`
	PlanAb        float64 `json:"plan_ab,omitempty"`
	Status        string  `json:"status"`
}

// NodeLinkEdge is one target-graph edge.
type NodeLinkEdge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// BuildNodeLink renders zg's current state into a NodeLink document.
func BuildNodeLink(zg *zielgraph.Graph) NodeLink {
	nodes := zg.AllNodes()
	out := NodeLink{
		Nodes: make([]NodeLinkNode, 0, len(nodes)),
		Links: make([]NodeLinkEdge, 0),
	}
	for _, n := range nodes {
		// encoding/json cannot encode -Inf, so an unknown time is left out.
		planAn, planAb := float64(n.PlanAn), float64(n.PlanAb)
		if !zeit.IstBekannt(n.PlanAn) {
			planAn = 0
		}
		if !zeit.IstBekannt(n.PlanAb) {
			planAb = 0
		}
		out.Nodes = append(out.Nodes, NodeLinkNode{
			ID:            n.ID.String(),
			Train:         int64(n.Train),
			Type:          string(n.Type),
			PlanTrack:     n.PlanTrack,
			DisposedTrack: n.DisposedTrack,
			PlanAn:        planAn,
			PlanAb:        planAb,
			Status:        string(n.Status),
		})
	}
	for _, e := range zg.AllEdges() {
		out.Links = append(out.Links, NodeLinkEdge{
			ID:     e.ID,
			Source: e.From.String(),
			Target: e.To.String(),
			Type:   string(e.Type),
		})
	}
	return out
}

// DumpTargetGraph writes zg's current state to path as indented JSON
// node-link data, for post-mortem debugging after a shutdown. It is
// strictly write-only: nothing in this module ever reads this file back.
func DumpTargetGraph(zg *zielgraph.Graph, path string) error {
	doc := BuildNodeLink(zg)
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("persist: marshal node-link: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("persist: write %s: %w", path, err)
	}
	return nil
}
