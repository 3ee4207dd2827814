// Package ingest implements the live event ingestor (C7): per-train cursors,
// kind-specific handling of simulator events, the zugpfad search policy used
// to locate the event a raw simulator message refers to, and phantom-train
// filtering. Grounded on dfs's hookable-walker idiom (linear forward walk,
// match-or-give-up, no guessing) adapted to the event graph instead of a
// generic vertex set.
package ingest

import (
	"errors"
	"fmt"

	"github.com/stskit-go/dispocore/ereignisgraph"
	"github.com/stskit-go/dispocore/zeit"
	"github.com/stskit-go/dispocore/zielgraph"
	"github.com/stskit-go/dispocore/zuggraph"
)

// ErrEventUnmatched is logged (not returned fatally) when the search policy
// cannot locate the event a live message refers to; callers do not guess.
var ErrEventUnmatched = errors.New("ingest: could not locate matching event")

// ErrUnknownTrain is returned when a live event names a train the roster
// doesn't know about.
var ErrUnknownTrain = errors.New("ingest: unknown train")

// Kind classifies a live simulator event (§4.5).
type Kind byte

const (
	Einfahrt   Kind = iota // train enters the model's area
	Ausfahrt               // train leaves the model's area
	Ankunft                // arrival, at-platform flag distinguishes Halt from Durchfahrt
	Abfahrt                // departure, at-platform flag distinguishes "ready" from "gone"
	Rothalt                // held at a red signal
	Wurdegruen             // signal cleared, hold released
	Ersatz                 // replacement marker reached
	Kuppeln                // coupling marker reached
	Fluegeln               // splitting marker reached
)

func (k Kind) String() string {
	switch k {
	case Einfahrt:
		return "einfahrt"
	case Ausfahrt:
		return "ausfahrt"
	case Ankunft:
		return "ankunft"
	case Abfahrt:
		return "abfahrt"
	case Rothalt:
		return "rothalt"
	case Wurdegruen:
		return "wurdegruen"
	case Ersatz:
		return "ersatz"
	case Kuppeln:
		return "kuppeln"
	case Fluegeln:
		return "fluegeln"
	default:
		return "unknown"
	}
}

// Event is one live message from the simulator adapter (simplugin), already
// normalized to the fields the ingestor needs.
type Event struct {
	Kind       Kind
	Train      zuggraph.TrainID
	Time       zeit.Minuten
	PlanTrack  string
	AtPlatform bool
	Delay      zeit.Minuten // dispatcher-reported delay, used by rothalt's fixed-delay correction
}

// Cursor is a train's live-tracking state (§4.5).
type Cursor struct {
	CurrentPosition   ereignisgraph.EventID
	HasPosition       bool
	CurrentPlanTrack  string
	NextExpectedEvent ereignisgraph.EventID
	HasNextExpected   bool
	Held              bool // true between a rothalt and its matching wurdegruen
}

// Ingestor applies live events to the event graph, maintaining one Cursor
// per train.
type Ingestor struct {
	zg      *zielgraph.Graph
	eg      *ereignisgraph.Graph
	zug     *zuggraph.Graph
	cursors map[zuggraph.TrainID]*Cursor
	log     func(msg string)
}

// New creates an ingestor wired to the three graphs it reads/mutates and an
// optional diagnostic sink (nil discards diagnostics).
func New(zg *zielgraph.Graph, eg *ereignisgraph.Graph, zug *zuggraph.Graph, log func(msg string)) *Ingestor {
	return &Ingestor{zg: zg, eg: eg, zug: zug, cursors: make(map[zuggraph.TrainID]*Cursor), log: log}
}

// Cursor returns the live cursor for train, creating an empty one on first
// use.
func (in *Ingestor) Cursor(train zuggraph.TrainID) *Cursor {
	c, ok := in.cursors[train]
	if !ok {
		c = &Cursor{}
		in.cursors[train] = c
	}
	return c
}

func (in *Ingestor) logf(format string, args ...interface{}) {
	if in.log != nil {
		in.log(fmt.Sprintf(format, args...))
	}
}

// Apply processes one live event, per the kind-specific rules of §4.5.
// Phantom trains (visible=false) only produce ausfahrt/ersatz events; every
// other kind is silently discarded for them, matching the spec's instruction
// to discard rather than guess at meaning for a train nobody can see.
func (in *Ingestor) Apply(ev Event) error {
	t, err := in.zug.Train(ev.Train)
	if err != nil {
		return fmt.Errorf("%w: %d", ErrUnknownTrain, ev.Train)
	}
	if !t.Visible && ev.Kind != Ausfahrt && ev.Kind != Ersatz {
		in.logf("ingest: discarding %s event for phantom train %d", ev.Kind, ev.Train)
		return nil
	}

	switch ev.Kind {
	case Einfahrt:
		return in.einfahrt(ev)
	case Ausfahrt:
		return in.ausfahrt(ev)
	case Ankunft:
		return in.ankunft(ev)
	case Abfahrt:
		return in.abfahrt(ev)
	case Rothalt:
		return in.rothalt(ev)
	case Wurdegruen:
		return in.wurdegruen(ev)
	case Ersatz, Kuppeln, Fluegeln:
		return in.marker(ev)
	}
	return nil
}

// einfahrt locates the train-start event (always a Dep at the entry
// anschluss), sets t_mess, advances the cursor, and arms next_expected_event
// to the following Arr.
func (in *Ingestor) einfahrt(ev Event) error {
	start, ok := in.trainStart(ev.Train)
	if !ok {
		in.logf("ingest: einfahrt: %v for train %d", ErrEventUnmatched, ev.Train)
		return nil
	}
	if err := in.setTMess(start, ev.Time); err != nil {
		return err
	}
	c := in.Cursor(ev.Train)
	c.CurrentPosition, c.HasPosition = start, true
	c.CurrentPlanTrack = ev.PlanTrack
	if nxt, ok := in.firstMatch(ev.Train, start, ereignisgraph.Arr, nil, true); ok {
		c.NextExpectedEvent, c.HasNextExpected = nxt, true
	} else {
		c.HasNextExpected = false
	}
	return nil
}

// ausfahrt locates the train-end event (last Dep or last Arr at the exit
// anschluss), sets t_mess, and clears the cursor.
func (in *Ingestor) ausfahrt(ev Event) error {
	end, ok := in.trainEnd(ev.Train)
	if !ok {
		in.logf("ingest: ausfahrt: %v for train %d", ErrEventUnmatched, ev.Train)
		return nil
	}
	if err := in.setTMess(end, ev.Time); err != nil {
		return err
	}
	delete(in.cursors, ev.Train)
	return nil
}

// ankunft searches forward from the cursor (following E/K hops into
// successor trains) for an Arr; at-platform restricts the match to this
// plan track, otherwise (durchfahrt) any plan track matches.
func (in *Ingestor) ankunft(ev Event) error {
	c := in.Cursor(ev.Train)
	start, ok := in.startFor(c, ev.Train)
	if !ok {
		in.logf("ingest: ankunft: %v, no cursor for train %d", ErrEventUnmatched, ev.Train)
		return nil
	}
	var plan *string
	if ev.AtPlatform {
		plan = &ev.PlanTrack
	}
	match, ok := in.firstMatch(ev.Train, start, ereignisgraph.Arr, plan, true)
	if !ok {
		in.logf("ingest: ankunft: %v for train %d", ErrEventUnmatched, ev.Train)
		return nil
	}
	if err := in.setTMess(match, ev.Time); err != nil {
		return err
	}
	c.CurrentPosition, c.HasPosition = match, true
	c.CurrentPlanTrack = ev.PlanTrack
	return nil
}

// abfahrt: at-platform signals "ready to depart" and only updates the
// cursor's plan track; otherwise it locates the Dep matching the last plan
// track and sets t_mess.
func (in *Ingestor) abfahrt(ev Event) error {
	c := in.Cursor(ev.Train)
	if ev.AtPlatform {
		c.CurrentPlanTrack = ev.PlanTrack
		return nil
	}
	start, ok := in.startFor(c, ev.Train)
	if !ok {
		in.logf("ingest: abfahrt: %v, no cursor for train %d", ErrEventUnmatched, ev.Train)
		return nil
	}
	track := c.CurrentPlanTrack
	match, ok := in.firstMatch(ev.Train, start, ereignisgraph.Dep, &track, true)
	if !ok {
		in.logf("ingest: abfahrt: %v for train %d", ErrEventUnmatched, ev.Train)
		return nil
	}
	if err := in.setTMess(match, ev.Time); err != nil {
		return err
	}
	c.CurrentPosition, c.HasPosition = match, true
	return nil
}

// rothalt annotates the upcoming Dep with a transient hold. While the train
// is at platform this manifests as a fixed-delay correction on the dwell
// edge leading to that Dep.
func (in *Ingestor) rothalt(ev Event) error {
	c := in.Cursor(ev.Train)
	c.Held = true
	if !ev.AtPlatform {
		return nil
	}
	start, ok := in.startFor(c, ev.Train)
	if !ok {
		return nil
	}
	track := ev.PlanTrack
	dep, ok := in.firstMatch(ev.Train, start, ereignisgraph.Dep, &track, true)
	if !ok {
		return nil
	}
	preds, err := in.eg.Predecessors(dep)
	if err != nil {
		return err
	}
	for _, p := range preds {
		if p.ID.Type == ereignisgraph.Arr {
			in.eg.SetDtFdl(p.ID, dep, ev.Delay)
			break
		}
	}
	return nil
}

// wurdegruen clears a pending rothalt hold. If a Betriebshalt was inserted
// for the hold, the signal-clear time is attributed to it as t_mess; plain
// holds leave the ordinary Dep's prognosis to run its course.
func (in *Ingestor) wurdegruen(ev Event) error {
	c := in.Cursor(ev.Train)
	c.Held = false
	start, ok := in.startFor(c, ev.Train)
	if !ok {
		return nil
	}
	if b, ok := in.firstMatch(ev.Train, start, ereignisgraph.BEv, nil, false); ok {
		return in.setTMess(b, ev.Time)
	}
	return nil
}

// marker locates the corresponding E/K/F event node and sets t_mess. For E
// and F, cursor ownership transfers to the successor train: its cursor is
// initialised to the shared node.
func (in *Ingestor) marker(ev Event) error {
	var typ ereignisgraph.EventType
	switch ev.Kind {
	case Ersatz:
		typ = ereignisgraph.EEv
	case Kuppeln:
		typ = ereignisgraph.KEv
	case Fluegeln:
		typ = ereignisgraph.FEv
	default:
		return nil
	}
	c := in.Cursor(ev.Train)
	start, ok := in.startFor(c, ev.Train)
	if !ok {
		in.logf("ingest: marker: %v, no cursor for train %d", ErrEventUnmatched, ev.Train)
		return nil
	}
	match, ok := in.firstMatch(ev.Train, start, typ, nil, true)
	if !ok {
		in.logf("ingest: marker: %v for train %d", ErrEventUnmatched, ev.Train)
		return nil
	}
	if err := in.setTMess(match, ev.Time); err != nil {
		return err
	}
	c.CurrentPosition, c.HasPosition = match, true

	if ev.Kind == Ersatz || ev.Kind == Fluegeln {
		succs, err := in.eg.Successors(match)
		if err != nil {
			return err
		}
		for _, s := range succs {
			if s.ID.Train == ev.Train {
				continue
			}
			sc := in.Cursor(s.ID.Train)
			sc.CurrentPosition, sc.HasPosition = match, true
		}
	}
	return nil
}

// startFor resolves the event to begin a forward search from: the cursor's
// current position if set, otherwise the train's start event.
func (in *Ingestor) startFor(c *Cursor, train zuggraph.TrainID) (ereignisgraph.EventID, bool) {
	if c.HasPosition {
		return c.CurrentPosition, true
	}
	return in.trainStart(train)
}

// trainStart finds the Dep event at train's entry anschluss (I2: the unique
// event with no incoming edges within the train's own path).
func (in *Ingestor) trainStart(train zuggraph.TrainID) (ereignisgraph.EventID, bool) {
	for _, n := range in.eg.EventsOf(train) {
		if n.ID.Type != ereignisgraph.Dep || n.RawTarget == nil {
			continue
		}
		target, err := in.zg.Node(*n.RawTarget)
		if err == nil && target.Type == zielgraph.Entry {
			return n.ID, true
		}
	}
	return ereignisgraph.EventID{}, false
}

// trainEnd finds the last Arr or Dep at train's exit anschluss.
func (in *Ingestor) trainEnd(train zuggraph.TrainID) (ereignisgraph.EventID, bool) {
	for _, n := range in.eg.EventsOf(train) {
		if n.RawTarget == nil {
			continue
		}
		if n.ID.Type != ereignisgraph.Arr && n.ID.Type != ereignisgraph.Dep {
			continue
		}
		target, err := in.zg.Node(*n.RawTarget)
		if err == nil && target.Type == zielgraph.Exit {
			return n.ID, true
		}
	}
	return ereignisgraph.EventID{}, false
}

// firstMatch implements §4.5's search policy: a linear forward walk along
// zugpfad(train, start=cursor, follow_coupling) matching the required type
// and optional plan track. Returns false without guessing if nothing
// matches.
func (in *Ingestor) firstMatch(train zuggraph.TrainID, start ereignisgraph.EventID, typ ereignisgraph.EventType, plan *string, followCoupling bool) (ereignisgraph.EventID, bool) {
	next := Zugpfad(in.eg, train, start, followCoupling)
	for {
		n, ok := next()
		if !ok {
			return ereignisgraph.EventID{}, false
		}
		if n.ID.Type != typ {
			continue
		}
		if plan != nil && n.DisposedTrack != *plan {
			continue
		}
		return n.ID, true
	}
}

func (in *Ingestor) setTMess(id ereignisgraph.EventID, t zeit.Minuten) error {
	n, err := in.eg.Event(id)
	if err != nil {
		return err
	}
	n.TMess = t
	return in.eg.SetEvent(n)
}

// Zugpfad returns a lazy forward iterator over the event graph starting
// after start, walking hop/planned/dependency edges. When the next node
// belongs to a different train, the walk continues only if followCoupling
// is true (the spec's "follow_coupling" flag); otherwise the path ends
// there. The walk stops (returns false) on a dead end, a fork with no
// same-train branch and followCoupling=false, or a revisit (defensive
// against a residual cycle the prognosis engine hasn't yet broken).
func Zugpfad(eg *ereignisgraph.Graph, train zuggraph.TrainID, start ereignisgraph.EventID, followCoupling bool) func() (ereignisgraph.Node, bool) {
	current := start
	visited := map[string]bool{start.String(): true}
	return func() (ereignisgraph.Node, bool) {
		succs, err := eg.Successors(current)
		if err != nil || len(succs) == 0 {
			return ereignisgraph.Node{}, false
		}
		var next *ereignisgraph.Node
		for i := range succs {
			if succs[i].ID.Train == train {
				next = &succs[i]
				break
			}
		}
		if next == nil {
			if !followCoupling {
				return ereignisgraph.Node{}, false
			}
			next = &succs[0]
		}
		if visited[next.ID.String()] {
			return ereignisgraph.Node{}, false
		}
		visited[next.ID.String()] = true
		current = next.ID
		return *next, true
	}
}
