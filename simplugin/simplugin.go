// Package simplugin is the upstream adapter (§6 "Upstream (simulator
// plugin)"): it speaks the opaque request/response protocol
// (anlageninfo, bahnsteigliste, wege, zugliste, zugdetails, zugfahrplan,
// ereignis, simzeit) and normalises every response into the typed records
// the three domain graphs consume. The core never sees the wire shape;
// only this package does. Grounded on zulandar-railyard's telegraph
// watcher (poll-then-normalize-then-emit loop) for the Client/Transport
// split and the periodic-poll idiom.
package simplugin

import "errors"

// ErrProtocol is returned when a response cannot be normalised:
// NormalizeEreignis returns it for a telegraph naming an unknown event
// kind. Malformed flag references are skipped by ParseFlagRefs rather than
// reported. The taxonomy's single catch-all for §7's ProtocolError.
var ErrProtocol = errors.New("simplugin: protocol error")
