package simplugin

import "github.com/stskit-go/dispocore/zeit"

// RawAnlagenInfo is the normalized anlageninfo response: facility identity
// and whether the simulator considers itself online.
type RawAnlagenInfo struct {
	AnlagenID int
	Name      string
	Build     int
	Region    string
	Online    bool
}

// RawBahnsteig is one row of a bahnsteigliste response: a platform and the
// names of its immediate neighbours (resolved to Bahnsteig objects by a
// caller that has the full list, not by this package).
type RawBahnsteig struct {
	Name           string
	Haltepunkt     bool
	NeighbourNames []string
}

// RawKnoten is one row of a wege response: a trackplan element (signal,
// point, platform, entry, exit) identified by enr (or by name when no enr
// is assigned) and its immediate neighbours by key.
type RawKnoten struct {
	Key       string
	ENR       int
	HasENR    bool
	Name      string
	Typ       KnotenTyp
	Neighbors []string
}

// KnotenTyp mirrors the simulator's numeric trackplan element types.
type KnotenTyp int

const (
	KnotenSignal       KnotenTyp = 2
	KnotenWeicheUnten  KnotenTyp = 3
	KnotenWeicheOben   KnotenTyp = 4
	KnotenBahnsteig    KnotenTyp = 5
	KnotenEinfahrt     KnotenTyp = 6
	KnotenAusfahrt     KnotenTyp = 7
	KnotenHaltepunkt   KnotenTyp = 12
)

// RawZugDetails is one row of a zugliste/zugdetails response: everything
// the simulator reports about one train except its fahrplan, which arrives
// separately via zugfahrplan.
type RawZugDetails struct {
	Zid          int64
	Name         string
	Von          string
	Nach         string
	Verspaetung  zeit.Minuten
	Sichtbar     bool
	Gleis        string
	Plangleis    string
	Amgleis      bool
	Hinweistext  string
}

// RawFahrplanZeile is one row of a train's zugfahrplan response: a single
// scheduled stop or pass-through, with the raw flags string this package
// resolves into FlagRefs before handing it to zielgraph.
type RawFahrplanZeile struct {
	Gleis       string
	Plan        string
	An          zeit.Minuten // zeit.Unbekannt if the simulator reports no arrival (origin)
	Ab          zeit.Minuten // zeit.Unbekannt if the simulator reports no departure (terminus)
	Flags       string
	Hinweistext string
}

// EreignisArt classifies a live ereignis telegram, matching the simulator's
// own vocabulary one-for-one with ingest.Kind.
type EreignisArt string

const (
	ArtEinfahrt   EreignisArt = "einfahrt"
	ArtAusfahrt   EreignisArt = "ausfahrt"
	ArtAnkunft    EreignisArt = "ankunft"
	ArtAbfahrt    EreignisArt = "abfahrt"
	ArtRothalt    EreignisArt = "rothalt"
	ArtWurdegruen EreignisArt = "wurdegruen"
	ArtErsatz     EreignisArt = "ersatz"
	ArtKuppeln    EreignisArt = "kuppeln"
	ArtFluegeln   EreignisArt = "fluegeln"
)

// RawEreignis is one live telegram: a ZugDetails snapshot tagged with the
// event kind that triggered it and the simulator's own notion of time.
type RawEreignis struct {
	Art   EreignisArt
	Zug   RawZugDetails
	Gleis string // plan_track the event concerns (may differ from Zug.Gleis during a platform change)
	Zeit  zeit.Minuten
}

// RawSimZeit is the simulator's current time-of-day, in minutes since
// midnight.
type RawSimZeit struct {
	Minuten zeit.Minuten
}
