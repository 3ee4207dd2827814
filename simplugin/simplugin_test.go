package simplugin_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stskit-go/dispocore/ingest"
	"github.com/stskit-go/dispocore/simplugin"
	"github.com/stskit-go/dispocore/zeit"
	"github.com/stskit-go/dispocore/zielgraph"
	"github.com/stskit-go/dispocore/zuggraph"
)

func TestParseFlagRefsExtractsEachKind(t *testing.T) {
	refs := simplugin.ParseFlagRefs("E(501)")
	require.Len(t, refs, 1)
	assert.Equal(t, zielgraph.EdgeErsatz, refs[0].Edge)
	assert.Equal(t, zuggraph.TrainID(501), refs[0].Train)

	refs = simplugin.ParseFlagRefs("K3(77)")
	require.Len(t, refs, 1)
	assert.Equal(t, zielgraph.EdgeKupplung, refs[0].Edge)
	assert.Equal(t, zuggraph.TrainID(77), refs[0].Train)

	refs = simplugin.ParseFlagRefs("F(12)")
	require.Len(t, refs, 1)
	assert.Equal(t, zielgraph.EdgeFluegelung, refs[0].Edge)
}

func TestParseFlagRefsIgnoresUnparenthesizedLetters(t *testing.T) {
	assert.Empty(t, simplugin.ParseFlagRefs("E501"))
	assert.Empty(t, simplugin.ParseFlagRefs("DLR"))
}

func TestParseFlagRefsHandlesMultipleFlagsInOneString(t *testing.T) {
	refs := simplugin.ParseFlagRefs("DE(501)R")
	require.Len(t, refs, 1)
	assert.Equal(t, zuggraph.TrainID(501), refs[0].Train)
}

func TestIsDurchfahrtChecksDFlag(t *testing.T) {
	assert.True(t, simplugin.IsDurchfahrt("D"))
	assert.True(t, simplugin.IsDurchfahrt("E(1)D"))
	assert.False(t, simplugin.IsDurchfahrt("E(1)"))
}

func TestNormalizeTrainMapsAllFields(t *testing.T) {
	train := simplugin.NormalizeTrain(simplugin.RawZugDetails{
		Zid: 42, Name: "IC 118", Von: "A", Nach: "B",
		Verspaetung: 5, Sichtbar: true, Gleis: "3", Plangleis: "2", Amgleis: true,
	})
	assert.Equal(t, zuggraph.TrainID(42), train.ID)
	assert.Equal(t, "IC 118", train.Name)
	assert.Equal(t, "A", train.OriginAnschluss)
	assert.Equal(t, "B", train.DestinationAnschluss)
	assert.Equal(t, "3", train.DisposedTrack)
	assert.Equal(t, "2", train.PlannedTrack)
	assert.True(t, train.Visible)
	assert.True(t, train.AtPlatform)
	assert.Equal(t, 5.0, train.Delay)
}

func TestNormalizeFahrplanClassifiesEntryExitAndDurchfahrt(t *testing.T) {
	rows := []simplugin.RawFahrplanZeile{
		{Gleis: "1", Plan: "1", An: zeit.Unbekannt, Ab: 100},
		{Gleis: "2", Plan: "2", An: 110, Ab: 110, Flags: "D"},
		{Gleis: "3", Plan: "3", An: 130, Ab: zeit.Unbekannt},
	}
	stops := simplugin.NormalizeFahrplan(zuggraph.TrainID(1), rows)
	require.Len(t, stops, 3)
	assert.Equal(t, zielgraph.Entry, stops[0].Type)
	assert.Equal(t, zielgraph.Durchfahrt, stops[1].Type)
	assert.Equal(t, zielgraph.Exit, stops[2].Type)
}

func TestNormalizeFahrplanResolvesFlagRefsOntoStops(t *testing.T) {
	rows := []simplugin.RawFahrplanZeile{
		{Gleis: "1", Plan: "1", An: zeit.Unbekannt, Ab: 100, Flags: "E(9)"},
	}
	stops := simplugin.NormalizeFahrplan(zuggraph.TrainID(1), rows)
	require.Len(t, stops, 1)
	require.Len(t, stops[0].Refs, 1)
	assert.Equal(t, zuggraph.TrainID(9), stops[0].Refs[0].Train)
}

func TestNormalizeEreignisMapsKindAndFields(t *testing.T) {
	ev, err := simplugin.NormalizeEreignis(simplugin.RawEreignis{
		Art:   simplugin.ArtAnkunft,
		Zug:   simplugin.RawZugDetails{Zid: 7, Verspaetung: 3, Amgleis: true},
		Gleis: "2",
		Zeit:  115,
	})
	require.NoError(t, err)
	assert.Equal(t, ingest.Ankunft, ev.Kind)
	assert.Equal(t, zuggraph.TrainID(7), ev.Train)
	assert.Equal(t, zeit.Minuten(115), ev.Time)
	assert.Equal(t, "2", ev.PlanTrack)
	assert.True(t, ev.AtPlatform)
	assert.Equal(t, zeit.Minuten(3), ev.Delay)
}

func TestNormalizeEreignisRejectsUnknownArt(t *testing.T) {
	_, err := simplugin.NormalizeEreignis(simplugin.RawEreignis{Art: "geisterzug"})
	assert.ErrorIs(t, err, simplugin.ErrProtocol)
}

func TestClientPullRosterAggregatesTrainsAndStops(t *testing.T) {
	ft := simplugin.NewFakeTransport()
	ft.SetAnlagenInfo(simplugin.RawAnlagenInfo{Name: "Teststellwerk", Online: true})
	ft.SetZugListe([]simplugin.RawZugDetails{{Zid: 1, Name: "RE 1", Sichtbar: true}})
	ft.SetZugFahrplan(1, []simplugin.RawFahrplanZeile{
		{Gleis: "1", Plan: "1", An: zeit.Unbekannt, Ab: 100},
		{Gleis: "2", Plan: "2", An: 130, Ab: zeit.Unbekannt},
	})
	ft.SetSimZeit(simplugin.RawSimZeit{Minuten: 95})

	c := simplugin.New(ft)
	roster, err := c.PullRoster(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Teststellwerk", roster.Info.Name)
	require.Len(t, roster.Trains, 1)
	assert.Equal(t, zuggraph.TrainID(1), roster.Trains[0].ID)
	assert.Equal(t, zeit.Minuten(95), roster.SimZeit)
	require.Len(t, roster.Stops[zuggraph.TrainID(1)], 2)
}

func TestClientEreignisseNormalizesLiveTelegraphs(t *testing.T) {
	ft := simplugin.NewFakeTransport()
	c := simplugin.New(ft)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := c.Ereignisse(ctx, nil, nil)
	require.NoError(t, err)

	ft.Emit(simplugin.RawEreignis{Art: simplugin.ArtEinfahrt, Zug: simplugin.RawZugDetails{Zid: 3}, Gleis: "1", Zeit: 100})

	select {
	case ev := <-events:
		assert.Equal(t, ingest.Einfahrt, ev.Kind)
		assert.Equal(t, zuggraph.TrainID(3), ev.Train)
	case <-time.After(time.Second):
		t.Fatal("expected a normalized event")
	}
}

func TestClientEreignisseDropsUnrecognisedArtWithoutClosingChannel(t *testing.T) {
	ft := simplugin.NewFakeTransport()
	var logged []string
	c := simplugin.New(ft, simplugin.WithLog(func(msg string) { logged = append(logged, msg) }))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := c.Ereignisse(ctx, nil, nil)
	require.NoError(t, err)

	ft.Emit(simplugin.RawEreignis{Art: "geisterzug", Zug: simplugin.RawZugDetails{Zid: 3}})
	ft.Emit(simplugin.RawEreignis{Art: simplugin.ArtAusfahrt, Zug: simplugin.RawZugDetails{Zid: 3}})

	select {
	case ev := <-events:
		assert.Equal(t, ingest.Ausfahrt, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected the second, valid telegraph to still arrive")
	}
	require.Eventually(t, func() bool { return len(logged) == 1 }, time.Second, time.Millisecond)
}
