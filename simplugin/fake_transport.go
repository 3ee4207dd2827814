package simplugin

import (
	"context"
	"sync"
)

// FakeTransport is an in-memory Transport backed by canned responses,
// standing in for a real socket connection in tests and local runs. Every
// accessor is safe for concurrent use; Emit feeds a live telegraph to
// whichever Ereignisse subscribers are currently listening.
type FakeTransport struct {
	mu sync.Mutex

	anlage    RawAnlagenInfo
	bahnsteig []RawBahnsteig
	wege      []RawKnoten
	zugliste  []RawZugDetails
	fahrplan  map[int64][]RawFahrplanZeile
	simzeit   RawSimZeit

	subs []chan RawEreignis
}

// NewFakeTransport creates an empty fake; set its responses with the Set*
// mutators before wiring it into a Client.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{fahrplan: make(map[int64][]RawFahrplanZeile)}
}

// SetAnlagenInfo replaces the canned anlageninfo response.
func (f *FakeTransport) SetAnlagenInfo(a RawAnlagenInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.anlage = a
}

// SetBahnsteigListe replaces the canned bahnsteigliste response.
func (f *FakeTransport) SetBahnsteigListe(rows []RawBahnsteig) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bahnsteig = rows
}

// SetWege replaces the canned wege response.
func (f *FakeTransport) SetWege(rows []RawKnoten) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wege = rows
}

// SetZugListe replaces the canned zugliste response.
func (f *FakeTransport) SetZugListe(rows []RawZugDetails) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.zugliste = rows
}

// SetZugFahrplan replaces the canned zugfahrplan response for one train.
func (f *FakeTransport) SetZugFahrplan(zid int64, rows []RawFahrplanZeile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fahrplan[zid] = rows
}

// SetSimZeit replaces the canned simzeit response.
func (f *FakeTransport) SetSimZeit(z RawSimZeit) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.simzeit = z
}

func (f *FakeTransport) AnlagenInfo(ctx context.Context) (RawAnlagenInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.anlage, nil
}

func (f *FakeTransport) BahnsteigListe(ctx context.Context) ([]RawBahnsteig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]RawBahnsteig, len(f.bahnsteig))
	copy(out, f.bahnsteig)
	return out, nil
}

func (f *FakeTransport) Wege(ctx context.Context) ([]RawKnoten, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]RawKnoten, len(f.wege))
	copy(out, f.wege)
	return out, nil
}

func (f *FakeTransport) ZugListe(ctx context.Context) ([]RawZugDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]RawZugDetails, len(f.zugliste))
	copy(out, f.zugliste)
	return out, nil
}

func (f *FakeTransport) ZugFahrplan(ctx context.Context, zid int64) ([]RawFahrplanZeile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := f.fahrplan[zid]
	out := make([]RawFahrplanZeile, len(rows))
	copy(out, rows)
	return out, nil
}

func (f *FakeTransport) SimZeit(ctx context.Context) (RawSimZeit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.simzeit, nil
}

// Ereignisse returns a channel fed by Emit; kinds/trainIDs filtering is the
// caller's job in this fake (Emit delivers to every subscriber), matching
// the real transport's "core treats the transport as opaque" contract
// where filtering happens server-side and the fake has no server.
func (f *FakeTransport) Ereignisse(ctx context.Context, kinds []EreignisArt, trainIDs []int64) (<-chan RawEreignis, error) {
	ch := make(chan RawEreignis, 16)
	f.mu.Lock()
	f.subs = append(f.subs, ch)
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, s := range f.subs {
			if s == ch {
				f.subs = append(f.subs[:i], f.subs[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch, nil
}

// Emit delivers ev to every live Ereignisse subscriber. Non-blocking: a
// subscriber with a full buffer drops the telegraph rather than stall the
// emitter, matching a real simulator's own fire-and-forget telegraph push.
func (f *FakeTransport) Emit(ev RawEreignis) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.subs {
		select {
		case s <- ev:
		default:
		}
	}
}
