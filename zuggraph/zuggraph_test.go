package zuggraph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stskit-go/dispocore/zuggraph"
)

func TestUpsertAndTrain(t *testing.T) {
	g := zuggraph.New()
	require.NoError(t, g.Upsert(zuggraph.Train{ID: 11, Name: "RE 11", Visible: true}))

	got, err := g.Train(11)
	require.NoError(t, err)
	assert.Equal(t, "RE 11", got.Name)
	assert.True(t, got.Visible)
}

func TestTerminateMarksRosterFields(t *testing.T) {
	g := zuggraph.New()
	require.NoError(t, g.Upsert(zuggraph.Train{ID: 11, Visible: true, AtPlatform: true, DisposedTrack: "3"}))
	require.NoError(t, g.Terminate(11))

	got, err := g.Train(11)
	require.NoError(t, err)
	assert.False(t, got.Visible)
	assert.False(t, got.AtPlatform)
	assert.Empty(t, got.DisposedTrack)
	assert.True(t, got.Terminated)
}

func TestUnknownTrainIsError(t *testing.T) {
	g := zuggraph.New()
	_, err := g.Train(99)
	assert.ErrorIs(t, err, zuggraph.ErrTrainNotFound)
}

func TestShuntingTrainsAreNegative(t *testing.T) {
	assert.True(t, zuggraph.TrainID(-5).IsShunting())
	assert.False(t, zuggraph.TrainID(5).IsShunting())
}

func TestLinkAndStamm(t *testing.T) {
	g := zuggraph.New()
	require.NoError(t, g.Upsert(zuggraph.Train{ID: 11}))
	require.NoError(t, g.Upsert(zuggraph.Train{ID: 12}))
	require.NoError(t, g.Upsert(zuggraph.Train{ID: 13}))

	require.NoError(t, g.Link(zuggraph.SiblingLink{From: 11, To: 12, Flag: zuggraph.FlagErsatz, TargetNr: "t1"}))

	stamm, err := g.Stamm(11)
	require.NoError(t, err)
	assert.ElementsMatch(t, []zuggraph.TrainID{11, 12}, stamm)

	// 13 is unrelated.
	stamm13, err := g.Stamm(13)
	require.NoError(t, err)
	assert.ElementsMatch(t, []zuggraph.TrainID{13}, stamm13)
}

func TestLinkUnknownTrainFails(t *testing.T) {
	g := zuggraph.New()
	require.NoError(t, g.Upsert(zuggraph.Train{ID: 11}))
	err := g.Link(zuggraph.SiblingLink{From: 11, To: 99, Flag: zuggraph.FlagKupplung})
	assert.ErrorIs(t, err, zuggraph.ErrTrainNotFound)
}
