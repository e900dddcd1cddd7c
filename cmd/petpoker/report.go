package main

import (
	"fmt"
	"time"

	"github.com/lox/petpoker/internal/session"
	"github.com/lox/petpoker/internal/statistics"
	"github.com/pterm/pterm"
)

// Summary aggregates a batch of simulated matches.
type Summary struct {
	Seed        int64   `json:"seed"`
	Elapsed     string  `json:"elapsed"`
	Matches     int     `json:"matches"`
	HumanWins   int     `json:"humanWins"`
	AIWins      int     `json:"aiWins"`
	Drawn       int     `json:"drawn"`
	Hands       int     `json:"hands"`
	Showdowns   int     `json:"showdowns"`
	Folds       int     `json:"folds"`
	AllIns      int     `json:"allIns"`
	SplitPots   int     `json:"splitPots"`
	AvgHands    float64 `json:"avgHands"`
	AvgHumanHP  float64 `json:"avgHumanHp"`
	AvgAIHP     float64 `json:"avgAiHp"`
	AvgDuration string  `json:"avgDuration"`

	HP      HPSummary      `json:"hp"`
	Results []MatchSummary `json:"results"`
}

// HPSummary describes the autopilot's per-hand health swing.
type HPSummary struct {
	Mean          float64 `json:"mean"`
	StdDev        float64 `json:"stdDev"`
	CI95Low       float64 `json:"ci95Low"`
	CI95High      float64 `json:"ci95High"`
	Median        float64 `json:"median"`
	P10           float64 `json:"p10"`
	P90           float64 `json:"p90"`
	ShowdownHP    float64 `json:"showdownHp"`
	FoldHP        float64 `json:"foldHp"`
	AllInHP       float64 `json:"allInHp"`
	OpenerMean    float64 `json:"openerMean"`
	ResponderMean float64 `json:"responderMean"`
	BiggestWin    float64 `json:"biggestWin"`
	BiggestLoss   float64 `json:"biggestLoss"`
}

type MatchSummary struct {
	ID          string `json:"id"`
	Winner      string `json:"winner,omitempty"`
	Hands       int    `json:"hands"`
	HumanHealth int    `json:"humanHealth"`
	AIHealth    int    `json:"aiHealth"`
}

func summarize(results []session.Result, humanID, aiID string) Summary {
	s := Summary{Matches: len(results)}
	var humanHP, aiHP int
	var total time.Duration
	var stats statistics.Statistics
	for _, r := range results {
		switch r.Winner {
		case humanID:
			s.HumanWins++
		case aiID:
			s.AIWins++
		default:
			s.Drawn++
		}
		for _, h := range r.Hands {
			s.Hands++
			switch {
			case h.ByFold:
				s.Folds++
			case h.Draw:
				s.SplitPots++
				s.Showdowns++
			default:
				s.Showdowns++
			}
			if h.AllIn {
				s.AllIns++
			}
			stats.Add(statistics.Hand{
				NetHP:    float64(h.HumanDelta),
				Showdown: !h.ByFold,
				Opened:   h.HumanOpened,
				AllIn:    h.AllIn,
			})
		}
		humanHP += r.HumanHealth
		aiHP += r.AIHealth
		total += r.Duration
		s.Results = append(s.Results, MatchSummary{
			ID:          r.MatchID,
			Winner:      r.Winner,
			Hands:       len(r.Hands),
			HumanHealth: r.HumanHealth,
			AIHealth:    r.AIHealth,
		})
	}
	if n := len(results); n > 0 {
		s.AvgHands = float64(s.Hands) / float64(n)
		s.AvgHumanHP = float64(humanHP) / float64(n)
		s.AvgAIHP = float64(aiHP) / float64(n)
		s.AvgDuration = (total / time.Duration(n)).Round(time.Millisecond).String()
	}
	s.HP = hpSummary(&stats)
	return s
}

func hpSummary(st *statistics.Statistics) HPSummary {
	lo, hi := st.ConfidenceInterval95()
	return HPSummary{
		Mean:          st.Mean(),
		StdDev:        st.StdDev(),
		CI95Low:       lo,
		CI95High:      hi,
		Median:        st.Median(),
		P10:           st.Percentile(0.1),
		P90:           st.Percentile(0.9),
		ShowdownHP:    st.ShowdownHP,
		FoldHP:        st.FoldHP,
		AllInHP:       st.AllInHP,
		OpenerMean:    st.Opener.Mean(),
		ResponderMean: st.Responder.Mean(),
		BiggestWin:    st.BiggestWin,
		BiggestLoss:   st.BiggestLoss,
	}
}

func percent(n, of int) string {
	if of == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", 100*float64(n)/float64(of))
}

func printSummary(s Summary) error {
	pterm.DefaultSection.Println("Results")
	data := pterm.TableData{
		{"Metric", "Value", "Share"},
		{"Autopilot wins", fmt.Sprint(s.HumanWins), percent(s.HumanWins, s.Matches)},
		{"Opponent wins", fmt.Sprint(s.AIWins), percent(s.AIWins, s.Matches)},
		{"Drawn matches", fmt.Sprint(s.Drawn), percent(s.Drawn, s.Matches)},
		{"Hands", fmt.Sprint(s.Hands), ""},
		{"Won by fold", fmt.Sprint(s.Folds), percent(s.Folds, s.Hands)},
		{"Showdowns", fmt.Sprint(s.Showdowns), percent(s.Showdowns, s.Hands)},
		{"Split pots", fmt.Sprint(s.SplitPots), percent(s.SplitPots, s.Hands)},
		{"All-in run outs", fmt.Sprint(s.AllIns), percent(s.AllIns, s.Hands)},
		{"Avg hands per match", fmt.Sprintf("%.1f", s.AvgHands), ""},
		{"Avg autopilot HP", fmt.Sprintf("%.1f", s.AvgHumanHP), ""},
		{"Avg opponent HP", fmt.Sprintf("%.1f", s.AvgAIHP), ""},
		{"Avg match time", s.AvgDuration, ""},
		{"Elapsed", s.Elapsed, ""},
	}
	if err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Render(); err != nil {
		return err
	}
	if s.Hands == 0 {
		return nil
	}

	pterm.DefaultSection.Println("Autopilot HP per hand")
	hp := s.HP
	swing := pterm.TableData{
		{"Metric", "HP"},
		{"Mean", fmt.Sprintf("%+.2f ± %.2f", hp.Mean, (hp.CI95High-hp.CI95Low)/2)},
		{"Std dev", fmt.Sprintf("%.2f", hp.StdDev)},
		{"Median", fmt.Sprintf("%+.1f", hp.Median)},
		{"P10 / P90", fmt.Sprintf("%+.1f / %+.1f", hp.P10, hp.P90)},
		{"From showdowns", fmt.Sprintf("%+.0f", hp.ShowdownHP)},
		{"From folds", fmt.Sprintf("%+.0f", hp.FoldHP)},
		{"From all-ins", fmt.Sprintf("%+.0f", hp.AllInHP)},
		{"Opening mean", fmt.Sprintf("%+.2f", hp.OpenerMean)},
		{"Responding mean", fmt.Sprintf("%+.2f", hp.ResponderMean)},
		{"Biggest win / loss", fmt.Sprintf("%+.0f / %+.0f", hp.BiggestWin, hp.BiggestLoss)},
	}
	return pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(swing).Render()
}
