package simplugin

import "context"

// Transport is the opaque request/response channel to the simulator. The
// core never sees it directly; Client is the only caller. A real
// implementation speaks whatever wire protocol the simulator exposes
// (commonly a line-based XML-over-socket protocol); FakeTransport speaks
// none of it, serving canned responses for tests and local runs.
type Transport interface {
	AnlagenInfo(ctx context.Context) (RawAnlagenInfo, error)
	BahnsteigListe(ctx context.Context) ([]RawBahnsteig, error)
	Wege(ctx context.Context) ([]RawKnoten, error)
	ZugListe(ctx context.Context) ([]RawZugDetails, error)
	ZugFahrplan(ctx context.Context, zid int64) ([]RawFahrplanZeile, error)
	SimZeit(ctx context.Context) (RawSimZeit, error)

	// Ereignisse subscribes to live telegraphs for the given event kinds
	// and train ids (empty trainIDs means "all trains"). The returned
	// channel is closed when ctx is cancelled or the transport's
	// connection breaks.
	Ereignisse(ctx context.Context, kinds []EreignisArt, trainIDs []int64) (<-chan RawEreignis, error)
}
