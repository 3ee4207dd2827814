package simplugin

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/stskit-go/dispocore/ingest"
	"github.com/stskit-go/dispocore/zeit"
	"github.com/stskit-go/dispocore/zielgraph"
	"github.com/stskit-go/dispocore/zuggraph"
)

// flagRefPattern matches one E/K/F cross-train reference in a fahrplan
// row's raw flags string: an edge letter, an optional single-digit target
// number (which of this stop's several targets triggered the link, unused
// beyond disambiguation), and the referenced train id in parens. Grounded
// on stsobj.py's FahrplanZeile.ersatz_zid/fluegel_zid/kuppel_zid regexes
// (`E[0-9]?\(([0-9]+)\)` etc.), merged into one pattern over the edge
// letter class since all three share the same shape.
var flagRefPattern = regexp.MustCompile(`([EKF])[0-9]?\(([0-9]+)\)`)

// ParseFlagRefs extracts every E/K/F cross-train reference from a fahrplan
// row's raw flags string. Unparseable train ids (should not happen; the
// simulator only emits digits inside the parens) are skipped rather than
// failing the whole row.
func ParseFlagRefs(flags string) []zielgraph.FlagRef {
	matches := flagRefPattern.FindAllStringSubmatch(flags, -1)
	if matches == nil {
		return nil
	}
	refs := make([]zielgraph.FlagRef, 0, len(matches))
	for _, m := range matches {
		zid, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			continue
		}
		var edge zielgraph.EdgeType
		switch m[1] {
		case "E":
			edge = zielgraph.EdgeErsatz
		case "K":
			edge = zielgraph.EdgeKupplung
		case "F":
			edge = zielgraph.EdgeFluegelung
		}
		refs = append(refs, zielgraph.FlagRef{Edge: edge, Train: zuggraph.TrainID(zid)})
	}
	return refs
}

// IsDurchfahrt reports the 'D' (Durchfahrt, scheduled pass-through) flag.
func IsDurchfahrt(flags string) bool {
	return strings.Contains(flags, "D")
}

// NormalizeTrain converts one zugliste/zugdetails row into the roster
// record zuggraph.Upsert expects. Destination/origin names pass through
// unresolved (zuggraph stores anschluss names, not object references,
// unlike the original's ZugDetails.von/nach which the plugin client
// sometimes resolves to Knoten objects).
func NormalizeTrain(raw RawZugDetails) zuggraph.Train {
	return zuggraph.Train{
		ID:                   zuggraph.TrainID(raw.Zid),
		Name:                 raw.Name,
		OriginAnschluss:      raw.Von,
		DestinationAnschluss: raw.Nach,
		DisposedTrack:        raw.Gleis,
		PlannedTrack:         raw.Plangleis,
		Visible:              raw.Sichtbar,
		AtPlatform:           raw.Amgleis,
		Delay:                float64(raw.Verspaetung),
	}
}

// NormalizeFahrplan converts one train's zugfahrplan rows into the target
// graph's Stop records: the first row is an Entry when it has no arrival
// time, the last row is an Exit when it has no departure time, and every
// other row is a Durchfahrt or Halt by its flags. A first or last row that
// carries both times is treated as an ordinary stop, for the roster rows
// that start or end mid-fahrplan without touching an anschluss (e.g. a
// train first sighted already en route).
func NormalizeFahrplan(train zuggraph.TrainID, rows []RawFahrplanZeile) []zielgraph.Stop {
	stops := make([]zielgraph.Stop, 0, len(rows))
	for i, r := range rows {
		typ := zielgraph.Halt
		switch {
		case i == 0 && r.An == zeit.Unbekannt:
			typ = zielgraph.Entry
		case i == len(rows)-1 && r.Ab == zeit.Unbekannt:
			typ = zielgraph.Exit
		case IsDurchfahrt(r.Flags):
			typ = zielgraph.Durchfahrt
		}
		stops = append(stops, zielgraph.Stop{
			Train:     train,
			Type:      typ,
			PlanTrack: r.Gleis,
			PlanAn:    r.An,
			PlanAb:    r.Ab,
			RawFlags:  r.Flags,
			Refs:      ParseFlagRefs(r.Flags),
		})
	}
	return stops
}

// ereignisKind maps the simulator's event vocabulary onto ingest.Kind.
func ereignisKind(art EreignisArt) (ingest.Kind, bool) {
	switch art {
	case ArtEinfahrt:
		return ingest.Einfahrt, true
	case ArtAusfahrt:
		return ingest.Ausfahrt, true
	case ArtAnkunft:
		return ingest.Ankunft, true
	case ArtAbfahrt:
		return ingest.Abfahrt, true
	case ArtRothalt:
		return ingest.Rothalt, true
	case ArtWurdegruen:
		return ingest.Wurdegruen, true
	case ArtErsatz:
		return ingest.Ersatz, true
	case ArtKuppeln:
		return ingest.Kuppeln, true
	case ArtFluegeln:
		return ingest.Fluegeln, true
	default:
		return 0, false
	}
}

// NormalizeEreignis converts one live telegraph into an ingest.Event. It
// returns ErrProtocol when the telegraph's art names an event kind this
// module does not know, so the caller can log and drop it rather than
// guess.
func NormalizeEreignis(raw RawEreignis) (ingest.Event, error) {
	kind, ok := ereignisKind(raw.Art)
	if !ok {
		return ingest.Event{}, ErrProtocol
	}
	return ingest.Event{
		Kind:       kind,
		Train:      zuggraph.TrainID(raw.Zug.Zid),
		Time:       raw.Zeit,
		PlanTrack:  raw.Gleis,
		AtPlatform: raw.Zug.Amgleis,
		Delay:      raw.Zug.Verspaetung,
	}, nil
}
