package prognose

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stskit-go/dispocore/ereignisgraph"
	"github.com/stskit-go/dispocore/zeit"
	"github.com/stskit-go/dispocore/zielgraph"
	"github.com/stskit-go/dispocore/zuggraph"
)

func replacementRoster() map[zuggraph.TrainID][]zielgraph.Stop {
	t11, t12 := zuggraph.TrainID(11), zuggraph.TrainID(12)
	return map[zuggraph.TrainID][]zielgraph.Stop{
		t11: {
			{Train: t11, Type: zielgraph.Entry, PlanTrack: "Agl1", PlanAn: zeit.Unbekannt, PlanAb: 300},
			{Train: t11, Type: zielgraph.Durchfahrt, PlanTrack: "A1", PlanAn: 322, PlanAb: 322},
			{
				Train: t11, Type: zielgraph.Halt, PlanTrack: "B1", PlanAn: 332, PlanAb: 332,
				Refs: []zielgraph.FlagRef{{Edge: zielgraph.EdgeErsatz, Train: t12}},
			},
		},
		t12: {
			{Train: t12, Type: zielgraph.Halt, PlanTrack: "B1", PlanAn: zeit.Unbekannt, PlanAb: 336},
			{Train: t12, Type: zielgraph.Exit, PlanTrack: "C1", PlanAn: 345, PlanAb: zeit.Unbekannt},
		},
	}
}

func buildReplacement(t *testing.T) (*zielgraph.Graph, *ereignisgraph.Graph) {
	t.Helper()
	zg := zielgraph.New()
	require.NoError(t, zg.RebuildFromRoster(replacementRoster(), nil))
	_, err := zg.Recompute(nil)
	require.NoError(t, err)

	eg := ereignisgraph.New()
	require.NoError(t, eg.Rebuild(zg, ereignisgraph.DefaultBuildConfig(), nil))
	return zg, eg
}

// TestS1PlainReplacementNoDelay reproduces spec.md's S1 scenario at zero
// delay: {11-Dep@Agl1:300, 11-Arr@A1:322, 11-Dep@A1:322, 11-Arr@B1:332,
// E@B1:333, 12-Dep@B1:336, 12-Arr@C1:345}.
func TestS1PlainReplacementNoDelay(t *testing.T) {
	zg, eg := buildReplacement(t)

	res, err := Run(eg, zg, nil)
	require.NoError(t, err)
	require.Empty(t, res.Unresolved)

	t11, t12 := zuggraph.TrainID(11), zuggraph.TrainID(12)
	cases := []struct {
		id   ereignisgraph.EventID
		want zeit.Minuten
	}{
		{ereignisgraph.EventID{Train: t11, Time: 300, Type: ereignisgraph.Dep}, 300},
		{ereignisgraph.EventID{Train: t11, Time: 322, Type: ereignisgraph.Arr}, 322},
		{ereignisgraph.EventID{Train: t11, Time: 333, Type: ereignisgraph.EEv}, 333},
		{ereignisgraph.EventID{Train: t12, Time: 336, Type: ereignisgraph.Dep}, 336},
		{ereignisgraph.EventID{Train: t12, Time: 345, Type: ereignisgraph.Arr}, 345},
	}
	for _, c := range cases {
		n, err := eg.Event(c.id)
		require.NoError(t, err, "event %s", c.id)
		require.Equal(t, c.want, n.TEff(), "event %s", c.id)
	}
}

// TestS1PlainReplacementWithEntryDelay reproduces S1's +10 minute entry
// delay variant: E@B1 becomes 343, 12-Dep@B1 becomes 343, 12-Arr@C1
// becomes 352.
func TestS1PlainReplacementWithEntryDelay(t *testing.T) {
	zg, eg := buildReplacement(t)

	t11, t12 := zuggraph.TrainID(11), zuggraph.TrainID(12)
	entryDep := ereignisgraph.EventID{Train: t11, Time: 300, Type: ereignisgraph.Dep}
	n, err := eg.Event(entryDep)
	require.NoError(t, err)
	n.TMess = 310
	require.NoError(t, eg.SetEvent(n))

	_, err = Run(eg, zg, nil)
	require.NoError(t, err)

	e, err := eg.Event(ereignisgraph.EventID{Train: t11, Time: 333, Type: ereignisgraph.EEv})
	require.NoError(t, err)
	require.Equal(t, zeit.Minuten(343), e.TEff())

	dep, err := eg.Event(ereignisgraph.EventID{Train: t12, Time: 336, Type: ereignisgraph.Dep})
	require.NoError(t, err)
	require.Equal(t, zeit.Minuten(343), dep.TEff())

	arr, err := eg.Event(ereignisgraph.EventID{Train: t12, Time: 345, Type: ereignisgraph.Arr})
	require.NoError(t, err)
	require.Equal(t, zeit.Minuten(352), arr.TEff())
}

// couplingRoster reproduces S2: train 12 arrives C1 at 345 with flag K(13);
// train 13 enters Agl2 at 330, arrives C1 at 340, continuing to D1 planned
// 350.
func couplingRoster() map[zuggraph.TrainID][]zielgraph.Stop {
	t12, t13 := zuggraph.TrainID(12), zuggraph.TrainID(13)
	return map[zuggraph.TrainID][]zielgraph.Stop{
		t12: {
			{Train: t12, Type: zielgraph.Entry, PlanTrack: "X12", PlanAn: zeit.Unbekannt, PlanAb: 0},
			{
				Train: t12, Type: zielgraph.Halt, PlanTrack: "C1", PlanAn: 345, PlanAb: zeit.Unbekannt,
				Refs: []zielgraph.FlagRef{{Edge: zielgraph.EdgeKupplung, Train: t13}},
			},
		},
		t13: {
			{Train: t13, Type: zielgraph.Entry, PlanTrack: "Agl2", PlanAn: zeit.Unbekannt, PlanAb: 330},
			{Train: t13, Type: zielgraph.Halt, PlanTrack: "C1", PlanAn: 340, PlanAb: 350, MinDwell: 1},
		},
	}
}

func TestS2CouplingNoDelay(t *testing.T) {
	t13 := zuggraph.TrainID(13)

	zg := zielgraph.New()
	require.NoError(t, zg.RebuildFromRoster(couplingRoster(), nil))
	_, err := zg.Recompute(nil)
	require.NoError(t, err)

	eg := ereignisgraph.New()
	require.NoError(t, eg.Rebuild(zg, ereignisgraph.DefaultBuildConfig(), nil))

	_, err = Run(eg, zg, nil)
	require.NoError(t, err)

	k, err := eg.Event(ereignisgraph.EventID{Train: t13, Time: 346, Type: ereignisgraph.KEv})
	require.NoError(t, err)
	require.Equal(t, zeit.Minuten(346), k.TEff())
}

func TestS2CouplingWithArrivalDelay(t *testing.T) {
	t13 := zuggraph.TrainID(13)

	zg := zielgraph.New()
	require.NoError(t, zg.RebuildFromRoster(couplingRoster(), nil))
	_, err := zg.Recompute(nil)
	require.NoError(t, err)

	eg := ereignisgraph.New()
	require.NoError(t, eg.Rebuild(zg, ereignisgraph.DefaultBuildConfig(), nil))

	arr13 := ereignisgraph.EventID{Train: t13, Time: 340, Type: ereignisgraph.Arr}
	n, err := eg.Event(arr13)
	require.NoError(t, err)
	n.TMess = 355
	require.NoError(t, eg.SetEvent(n))

	_, err = Run(eg, zg, nil)
	require.NoError(t, err)

	k, err := eg.Event(ereignisgraph.EventID{Train: t13, Time: 346, Type: ereignisgraph.KEv})
	require.NoError(t, err)
	require.Equal(t, zeit.Minuten(356), k.TEff())

	dep13, err := eg.Event(ereignisgraph.EventID{Train: t13, Time: 350, Type: ereignisgraph.Dep})
	require.NoError(t, err)
	require.Equal(t, zeit.Minuten(356), dep13.TEff())

	target13C1 := zielgraph.TargetID{Train: t13, TimeKey: 340, PlanTrack: "C1"}
	node, err := zg.Node(target13C1)
	require.NoError(t, err)
	require.Equal(t, zeit.Minuten(6), node.VAb)
}

// TestS5EarlyDeparturePull reproduces S5: a dispatcher fixed_delay(Dep(X),
// -3, relative=true) encoded as a negative dt_fdl on the dwell edge pulls
// t_prog(Dep(X)) to t_plan-3, bounded by the minimum dwell.
func TestS5EarlyDeparturePull(t *testing.T) {
	t1 := zuggraph.TrainID(1)
	roster := map[zuggraph.TrainID][]zielgraph.Stop{
		t1: {
			{Train: t1, Type: zielgraph.Entry, PlanTrack: "1", PlanAn: zeit.Unbekannt, PlanAb: 100},
			{Train: t1, Type: zielgraph.Halt, PlanTrack: "2", PlanAn: 110, PlanAb: 115, MinDwell: 1},
			{Train: t1, Type: zielgraph.Exit, PlanTrack: "3", PlanAn: 130, PlanAb: zeit.Unbekannt},
		},
	}

	zg := zielgraph.New()
	require.NoError(t, zg.RebuildFromRoster(roster, nil))
	_, err := zg.Recompute(nil)
	require.NoError(t, err)

	eg := ereignisgraph.New()
	require.NoError(t, eg.Rebuild(zg, ereignisgraph.DefaultBuildConfig(), nil))

	arr := ereignisgraph.EventID{Train: t1, Time: 110, Type: ereignisgraph.Arr}
	dep := ereignisgraph.EventID{Train: t1, Time: 115, Type: ereignisgraph.Dep}
	require.True(t, eg.SetDtFdl(arr, dep, -3))

	_, err = Run(eg, zg, nil)
	require.NoError(t, err)

	n, err := eg.Event(dep)
	require.NoError(t, err)
	require.Equal(t, zeit.Minuten(112), n.TEff()) // t_plan(115)-3, dwell minimum (111) still permits it
}
