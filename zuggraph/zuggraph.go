// Package zuggraph maintains the train roster: one vertex per known train,
// with mutable per-train state and the replaced-by/coupled-with/split-from
// sibling links that connect a train to whichever train continues its
// timeline. It is the thinnest of the three domain graphs, built directly on
// core.Graph the same way the teacher's examples build small demo graphs
// around the same substrate.
package zuggraph

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/stskit-go/dispocore/core"
)

// TrainID identifies a train. Positive values are scheduled trains; negative
// values are shunting moves (locomotives) the prognosis engine ignores but
// the roster still tracks for rangier workflows.
type TrainID int64

// IsShunting reports whether id names a shunting move rather than a
// passenger/freight service under dispatch.
func (id TrainID) IsShunting() bool { return id < 0 }

func (id TrainID) vertexID() string { return strconv.FormatInt(int64(id), 10) }

// ErrTrainNotFound is returned when an operation references an unknown train.
var ErrTrainNotFound = errors.New("zuggraph: train not found")

// SiblingFlag names the kind of cross-train link recorded by C3's flag
// parsing: Ersatz, Kupplung, or Flügelung.
type SiblingFlag byte

const (
	FlagErsatz    SiblingFlag = 'E'
	FlagKupplung  SiblingFlag = 'K'
	FlagFluegeln  SiblingFlag = 'F'
)

// Train is a train's live roster state, stored in the Metadata of its vertex
// so core.Graph stays the single owner of the thread-safety story.
type Train struct {
	ID                   TrainID
	Name                 string
	Number               string
	OriginAnschluss      string
	DestinationAnschluss string
	DisposedTrack        string
	PlannedTrack         string
	Visible              bool
	AtPlatform           bool
	Delay                float64 // overall delay, minutes
	Terminated           bool
}

// SiblingLink records a replaced-by/coupled-with/split-from edge: From was
// linked to To via flag, and TargetNr names which target of From triggered
// the link (so callers can answer "which target of A triggered the link to
// B" per §4.1).
type SiblingLink struct {
	From, To TrainID
	Flag     SiblingFlag
	TargetNr string
}

// Graph wraps core.Graph with typed train-roster operations.
type Graph struct {
	g *core.Graph
}

// New creates an empty train graph.
func New() *Graph {
	return &Graph{g: core.NewGraph(core.WithDirected(true), core.WithMixedEdges())}
}

// Upsert adds a new train or updates an existing one's mutable fields. This
// is the "new trains added, present trains updated" half of the roster
// refresh described in §4.1.
func (zg *Graph) Upsert(t Train) error {
	id := t.ID.vertexID()
	if err := zg.g.AddVertex(id); err != nil {
		return err
	}
	v, err := zg.vertex(id)
	if err != nil {
		return err
	}
	v.Metadata["train"] = t
	return nil
}

// Terminate marks a train as no longer present: sichtbar=false,
// amgleis=false, gleis="". Callers are responsible for marking the train's
// target nodes 'ab' in zielgraph; this method only updates roster state.
func (zg *Graph) Terminate(id TrainID) error {
	t, err := zg.Train(id)
	if err != nil {
		return err
	}
	t.Visible = false
	t.AtPlatform = false
	t.DisposedTrack = ""
	t.Terminated = true
	return zg.Upsert(t)
}

// Train returns a copy of the train's current state.
func (zg *Graph) Train(id TrainID) (Train, error) {
	v, err := zg.vertex(id.vertexID())
	if err != nil {
		return Train{}, ErrTrainNotFound
	}
	t, ok := v.Metadata["train"].(Train)
	if !ok {
		return Train{}, ErrTrainNotFound
	}
	return t, nil
}

// AllTrains returns every known train, ordered by ID for deterministic
// iteration (the same determinism guarantee core.Graph.Vertices() gives).
func (zg *Graph) AllTrains() []Train {
	ids := zg.g.Vertices()
	out := make([]Train, 0, len(ids))
	for _, id := range ids {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			continue
		}
		if t, err := zg.Train(TrainID(n)); err == nil {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Link records a sibling edge (replaced-by/coupled-with/split-from) from one
// train to another, tagged with the flag and the triggering target number.
func (zg *Graph) Link(link SiblingLink) error {
	if !zg.g.HasVertex(link.From.vertexID()) {
		return fmt.Errorf("%w: %d", ErrTrainNotFound, link.From)
	}
	if !zg.g.HasVertex(link.To.vertexID()) {
		return fmt.Errorf("%w: %d", ErrTrainNotFound, link.To)
	}
	_, err := zg.g.AddEdge(link.From.vertexID(), link.To.vertexID(), 0,
		core.WithEdgeDirected(true),
		core.WithEdgeMetadata("flag", link.Flag),
		core.WithEdgeMetadata("target_nr", link.TargetNr))
	return err
}

// LinksFrom returns the sibling links originating at id, in the order
// core.Graph.Neighbors returns edges (insertion order is not guaranteed by
// core, so callers needing determinism should sort by TargetNr themselves).
func (zg *Graph) LinksFrom(id TrainID) ([]SiblingLink, error) {
	edges, err := zg.g.Neighbors(id.vertexID())
	if err != nil {
		return nil, err
	}
	var out []SiblingLink
	for _, e := range edges {
		if e.From != id.vertexID() {
			continue
		}
		flag, _ := e.Metadata["flag"].(SiblingFlag)
		targetNr, _ := e.Metadata["target_nr"].(string)
		to, _ := strconv.ParseInt(e.To, 10, 64)
		out = append(out, SiblingLink{From: id, To: TrainID(to), Flag: flag, TargetNr: targetNr})
	}
	return out, nil
}

// Stamm returns the connected component of trains reachable from id through
// sibling links in either direction — the set of trains considered the same
// "stamm" per the glossary.
func (zg *Graph) Stamm(id TrainID) ([]TrainID, error) {
	if !zg.g.HasVertex(id.vertexID()) {
		return nil, ErrTrainNotFound
	}
	seen := map[string]bool{id.vertexID(): true}
	queue := []string{id.vertexID()}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		edges, err := zg.g.Neighbors(cur)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			other := e.To
			if other == cur {
				other = e.From
			}
			if !seen[other] {
				seen[other] = true
				queue = append(queue, other)
			}
		}
	}
	out := make([]TrainID, 0, len(seen))
	for idStr := range seen {
		n, _ := strconv.ParseInt(idStr, 10, 64)
		out = append(out, TrainID(n))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (zg *Graph) vertex(id string) (*core.Vertex, error) {
	m := zg.g.VerticesMap()
	v, ok := m[id]
	if !ok {
		return nil, ErrTrainNotFound
	}
	if v.Metadata == nil {
		v.Metadata = make(map[string]interface{})
	}
	return v, nil
}
