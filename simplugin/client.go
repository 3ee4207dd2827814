package simplugin

import (
	"context"
	"fmt"

	"github.com/stskit-go/dispocore/ingest"
	"github.com/stskit-go/dispocore/zeit"
	"github.com/stskit-go/dispocore/zielgraph"
	"github.com/stskit-go/dispocore/zuggraph"
)

// Option configures a Client at construction time.
type Option func(*Client)

// WithLog attaches a diagnostic sink for malformed telegraphs and flags.
func WithLog(log func(msg string)) Option {
	return func(c *Client) { c.log = log }
}

// Client wraps a Transport and normalises every response, so the rest of
// the module never parses a raw wire record.
type Client struct {
	t   Transport
	log func(msg string)
}

// New wires a Client to transport.
func New(transport Transport, opts ...Option) *Client {
	c := &Client{t: transport}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) logf(format string, args ...interface{}) {
	if c.log != nil {
		c.log(fmt.Sprintf(format, args...))
	}
}

// Roster is one full-refresh pull, normalized: every train on the current
// zugliste plus its fahrplan, ready to feed zuggraph.Upsert and
// zielgraph.RebuildFromRoster.
type Roster struct {
	Info     RawAnlagenInfo
	Trains   []zuggraph.Train
	Stops    map[zuggraph.TrainID][]zielgraph.Stop
	SimZeit  zeit.Minuten
}

// PullRoster performs the full §4.8 refresh pull: anlageninfo, zugliste,
// and one zugfahrplan request per train, normalizing each into the record
// the domain graphs expect. bahnsteigliste/wege are fetched separately via
// Bahnsteige/Wege since they describe static topology, not the per-cycle
// roster, and most callers only need them once at startup.
func (c *Client) PullRoster(ctx context.Context) (Roster, error) {
	info, err := c.t.AnlagenInfo(ctx)
	if err != nil {
		return Roster{}, fmt.Errorf("simplugin: anlageninfo: %w", err)
	}
	rawTrains, err := c.t.ZugListe(ctx)
	if err != nil {
		return Roster{}, fmt.Errorf("simplugin: zugliste: %w", err)
	}
	simzeit, err := c.t.SimZeit(ctx)
	if err != nil {
		return Roster{}, fmt.Errorf("simplugin: simzeit: %w", err)
	}

	roster := Roster{
		Info:    info,
		Trains:  make([]zuggraph.Train, 0, len(rawTrains)),
		Stops:   make(map[zuggraph.TrainID][]zielgraph.Stop, len(rawTrains)),
		SimZeit: simzeit.Minuten,
	}
	for _, rt := range rawTrains {
		train := NormalizeTrain(rt)
		roster.Trains = append(roster.Trains, train)

		rows, err := c.t.ZugFahrplan(ctx, rt.Zid)
		if err != nil {
			c.logf("simplugin: zugfahrplan for train %d: %v", rt.Zid, err)
			continue
		}
		roster.Stops[train.ID] = NormalizeFahrplan(train.ID, rows)
	}
	return roster, nil
}

// Bahnsteige returns the platform list, with each row's neighbour names
// left unresolved (the caller joins them against the full list).
func (c *Client) Bahnsteige(ctx context.Context) ([]RawBahnsteig, error) {
	rows, err := c.t.BahnsteigListe(ctx)
	if err != nil {
		return nil, fmt.Errorf("simplugin: bahnsteigliste: %w", err)
	}
	return rows, nil
}

// Wege returns the trackplan graph (signals, points, platforms, entries,
// exits and their adjacency), used to resolve anschluss names to plan
// tracks and neighbours.
func (c *Client) Wege(ctx context.Context) ([]RawKnoten, error) {
	rows, err := c.t.Wege(ctx)
	if err != nil {
		return nil, fmt.Errorf("simplugin: wege: %w", err)
	}
	return rows, nil
}

// Ereignisse subscribes to live telegraphs and returns a channel of
// already-normalized ingest.Events. A telegraph naming an event kind this
// module doesn't recognise is logged and dropped, never surfaced as an
// error on the channel (matching ingest's own "log, don't guess" policy
// for unmatched events).
func (c *Client) Ereignisse(ctx context.Context, kinds []EreignisArt, trainIDs []int64) (<-chan ingest.Event, error) {
	raw, err := c.t.Ereignisse(ctx, kinds, trainIDs)
	if err != nil {
		return nil, fmt.Errorf("simplugin: ereignis subscribe: %w", err)
	}

	out := make(chan ingest.Event, 16)
	go func() {
		defer close(out)
		for r := range raw {
			ev, err := NormalizeEreignis(r)
			if err != nil {
				c.logf("simplugin: dropping unrecognised telegraph %q for train %d: %v", r.Art, r.Zug.Zid, err)
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
