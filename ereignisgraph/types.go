// Package ereignisgraph implements the event graph (C4) and its two-phase
// node-builder/edge-builder rebuild from a target graph (C5). Each target
// node spawns one or two event nodes; each target edge spawns event edges
// and may mutate the event skeleton of the targets it connects (inserting an
// E/K/F node, removing a now-superseded Arr or Dep). All node builders run
// before any edge builder, mirroring builder.BuildGraph/ApplyTo's two-phase
// Constructor composition, generalized here to a domain-specific constructor
// set instead of generic topology factories.
package ereignisgraph

import (
	"fmt"
	"strconv"

	"github.com/stskit-go/dispocore/zeit"
	"github.com/stskit-go/dispocore/zielgraph"
	"github.com/stskit-go/dispocore/zuggraph"
)

// EventType classifies an event node.
type EventType byte

const (
	Arr EventType = 'A' // arrival
	Dep EventType = 'D' // departure
	EEv EventType = 'E' // ersatz (replacement) marker
	FEv EventType = 'F' // flügelung (splitting) marker
	KEv EventType = 'K' // kupplung (coupling) marker
	BEv EventType = 'B' // betriebshalt (dispatcher-inserted stop)
)

// EventID identifies an event node. Time is the disambiguating real-valued
// key from §3 — normally the planned minute, nudged when two events of the
// same train would otherwise collide.
type EventID struct {
	Train zuggraph.TrainID
	Time  zeit.Minuten
	Type  EventType
}

func (id EventID) String() string {
	return fmt.Sprintf("%d/%s/%c", id.Train, strconv.FormatFloat(float64(id.Time), 'f', -1, 64), id.Type)
}

// EdgeType classifies an event-graph edge. Unlike zielgraph's edge types,
// 'H' (hop/dwell) replaces 'P' as the intra-train link name created by the
// node builders; 'P' is reserved for the planned-travel edges between
// consecutive targets that the P-edge builder emits, matching §4.3 verbatim.
type EdgeType byte

const (
	EdgeHop        EdgeType = 'H' // dwell / hop: Arr->Dep, or stem->marker->continuation
	EdgePlanned    EdgeType = 'P' // planned travel between consecutive targets of one train
	EdgeDependency EdgeType = 'G' // dispatcher-added wait/gap edge (C8); 'G' for "Gap" to avoid colliding with node type letters
)

// Node is an event node's full attribute set (§3).
type Node struct {
	ID            EventID
	RawTarget     *zielgraph.TargetID // nil for B and dispatcher-inserted events
	PlanTrack     string
	DisposedTrack string
	TPlan         zeit.Minuten
	TProg         zeit.Minuten
	TMess         zeit.Minuten
}

// TEff returns t_mess if set, else t_prog if set, else t_plan.
func (n Node) TEff() zeit.Minuten {
	if zeit.IstBekannt(n.TMess) {
		return n.TMess
	}
	if zeit.IstBekannt(n.TProg) {
		return n.TProg
	}
	return n.TPlan
}

// EdgeAttrs is an event edge's attribute set (§3).
type EdgeAttrs struct {
	Type  EdgeType
	DtMin zeit.Minuten
	DtMax zeit.Minuten // zeit.Unbekannt if not declared
	DtFdl zeit.Minuten // dispatcher-added gap; zero if absent, may be negative
}

// BuildConfig carries the seven mindestaufenthalt_* tunables from §6 that
// the node/edge builders need to compute planned times for E/K/F markers
// and H-edge minimum dwells.
type BuildConfig struct {
	MindestaufenthaltPlanhalt        zeit.Minuten // default 0; stop's own d_min normally wins
	MindestaufenthaltLokwechsel      zeit.Minuten // default 5
	MindestaufenthaltLokumlauf       zeit.Minuten // default 2
	MindestaufenthaltRichtungswechsel zeit.Minuten // default 2
	MindestaufenthaltErsatz          zeit.Minuten // default 1
	MindestaufenthaltKupplung        zeit.Minuten // default 1
	MindestaufenthaltFluegelung      zeit.Minuten // default 1
}

// DefaultBuildConfig returns the tunables at their §6 defaults.
func DefaultBuildConfig() BuildConfig {
	return BuildConfig{
		MindestaufenthaltPlanhalt:         0,
		MindestaufenthaltLokwechsel:       5,
		MindestaufenthaltLokumlauf:        2,
		MindestaufenthaltRichtungswechsel: 2,
		MindestaufenthaltErsatz:           1,
		MindestaufenthaltKupplung:         1,
		MindestaufenthaltFluegelung:       1,
	}
}
