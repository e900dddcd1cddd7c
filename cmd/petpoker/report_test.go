package main

import (
	"testing"
	"time"

	"github.com/lox/petpoker/internal/session"
	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	results := []session.Result{
		{
			MatchID: "a", Winner: "human", HumanHealth: 60, AIHealth: 0, Duration: 2 * time.Second,
			Hands: []session.HandResult{
				{Winner: "human", ByFold: true, HumanOpened: true, HumanDelta: 0},
				{Winner: "human", AllIn: true, HumanDelta: 30},
			},
		},
		{
			MatchID: "b", Winner: "ai", HumanHealth: 10, AIHealth: 90, Duration: 4 * time.Second,
			Hands: []session.HandResult{
				{Draw: true, HumanOpened: true, HumanDelta: -15},
			},
		},
		{MatchID: "c", HumanHealth: 50, AIHealth: 50, Duration: 3 * time.Second},
	}

	s := summarize(results, "human", "ai")
	assert.Equal(t, 3, s.Matches)
	assert.Equal(t, 1, s.HumanWins)
	assert.Equal(t, 1, s.AIWins)
	assert.Equal(t, 1, s.Drawn)
	assert.Equal(t, 3, s.Hands)
	assert.Equal(t, 1, s.Folds)
	assert.Equal(t, 2, s.Showdowns)
	assert.Equal(t, 1, s.SplitPots)
	assert.Equal(t, 1, s.AllIns)
	assert.InDelta(t, 1.0, s.AvgHands, 1e-9)
	assert.InDelta(t, 40.0, s.AvgHumanHP, 1e-9)
	assert.InDelta(t, 140.0/3, s.AvgAIHP, 1e-9)
	assert.Equal(t, "3s", s.AvgDuration)
	assert.Len(t, s.Results, 3)
	assert.Equal(t, "b", s.Results[1].ID)

	assert.InDelta(t, 5.0, s.HP.Mean, 1e-9)
	assert.Equal(t, 15.0, s.HP.ShowdownHP)
	assert.Equal(t, 0.0, s.HP.FoldHP)
	assert.Equal(t, 30.0, s.HP.AllInHP)
	assert.InDelta(t, -7.5, s.HP.OpenerMean, 1e-9)
	assert.InDelta(t, 30.0, s.HP.ResponderMean, 1e-9)
	assert.Equal(t, 30.0, s.HP.BiggestWin)
	assert.Equal(t, -15.0, s.HP.BiggestLoss)
	assert.Less(t, s.HP.CI95Low, s.HP.Mean)
}

func TestSummarizeEmpty(t *testing.T) {
	s := summarize(nil, "human", "ai")
	assert.Zero(t, s.Matches)
	assert.Empty(t, s.AvgDuration)
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "-", percent(1, 0))
	assert.Equal(t, "25.0%", percent(1, 4))
}

func TestScaleDuration(t *testing.T) {
	assert.Equal(t, 25*time.Millisecond, scaleDuration(2500*time.Millisecond, 0.01))
	assert.Equal(t, time.Millisecond, scaleDuration(time.Millisecond, 0.001))
}
