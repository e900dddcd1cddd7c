// Package statistics accumulates per-hand health swings over simulated
// matches.
package statistics

import (
	"fmt"
	"math"
	"sort"
)

// Hand is one settled hand from the tracked seat's point of view.
type Hand struct {
	NetHP    float64 // health change over the hand
	Showdown bool
	Opened   bool // the tracked seat posted the small blind and acted first
	AllIn    bool
}

// SeatStats tracks results for one acting position.
type SeatStats struct {
	Hands int
	SumHP float64
}

func (s SeatStats) Mean() float64 {
	if s.Hands == 0 {
		return 0
	}
	return s.SumHP / float64(s.Hands)
}

// Statistics summarises a stream of hands.
type Statistics struct {
	Hands  int
	SumHP  float64
	SumHP2 float64
	Values []float64

	ShowdownWins int
	FoldWins     int
	ShowdownHP   float64 // net HP from showdowns, wins and losses
	FoldHP       float64 // net HP from hands ended by a fold
	AllInHands   int
	AllInHP      float64

	Opener    SeatStats
	Responder SeatStats

	BiggestWin  float64
	BiggestLoss float64
}

// Add records a hand.
func (s *Statistics) Add(h Hand) {
	s.Hands++
	s.SumHP += h.NetHP
	s.SumHP2 += h.NetHP * h.NetHP
	s.Values = append(s.Values, h.NetHP)

	if h.Showdown {
		s.ShowdownHP += h.NetHP
		if h.NetHP > 0 {
			s.ShowdownWins++
		}
	} else {
		s.FoldHP += h.NetHP
		if h.NetHP > 0 {
			s.FoldWins++
		}
	}
	if h.AllIn {
		s.AllInHands++
		s.AllInHP += h.NetHP
	}

	seat := &s.Responder
	if h.Opened {
		seat = &s.Opener
	}
	seat.Hands++
	seat.SumHP += h.NetHP

	s.BiggestWin = max(s.BiggestWin, h.NetHP)
	s.BiggestLoss = min(s.BiggestLoss, h.NetHP)
}

// Mean is the average health change per hand.
func (s *Statistics) Mean() float64 {
	if s.Hands == 0 {
		return 0
	}
	return s.SumHP / float64(s.Hands)
}

// Variance is the sample variance.
func (s *Statistics) Variance() float64 {
	if s.Hands < 2 {
		return 0
	}
	mean := s.Mean()
	return (s.SumHP2 - float64(s.Hands)*mean*mean) / float64(s.Hands-1)
}

func (s *Statistics) StdDev() float64 {
	return math.Sqrt(s.Variance())
}

func (s *Statistics) StdError() float64 {
	if s.Hands == 0 {
		return 0
	}
	return s.StdDev() / math.Sqrt(float64(s.Hands))
}

// ConfidenceInterval95 returns the normal-approximation interval for the mean.
func (s *Statistics) ConfidenceInterval95() (float64, float64) {
	mean, margin := s.Mean(), 1.96*s.StdError()
	return mean - margin, mean + margin
}

func (s *Statistics) sorted() []float64 {
	out := append([]float64(nil), s.Values...)
	sort.Float64s(out)
	return out
}

func (s *Statistics) Median() float64 {
	return s.Percentile(0.5)
}

// Percentile interpolates linearly between the closest ranks. p is in [0,1].
func (s *Statistics) Percentile(p float64) float64 {
	v := s.sorted()
	if len(v) == 0 {
		return 0
	}
	p = min(max(p, 0), 1)
	idx := p * float64(len(v)-1)
	lo := int(idx)
	if lo+1 >= len(v) {
		return v[len(v)-1]
	}
	w := idx - float64(lo)
	return v[lo]*(1-w) + v[lo+1]*w
}

// Validate checks the internal ledgers agree.
func (s *Statistics) Validate() error {
	if math.Abs(s.SumHP-s.ShowdownHP-s.FoldHP) > 1e-6 {
		return fmt.Errorf("ledger mismatch: total=%.6f showdown=%.6f fold=%.6f", s.SumHP, s.ShowdownHP, s.FoldHP)
	}
	if len(s.Values) != s.Hands {
		return fmt.Errorf("values length %d does not match hands %d", len(s.Values), s.Hands)
	}
	if s.ShowdownWins+s.FoldWins > s.Hands {
		return fmt.Errorf("wins %d exceed hands %d", s.ShowdownWins+s.FoldWins, s.Hands)
	}
	if s.Opener.Hands+s.Responder.Hands != s.Hands {
		return fmt.Errorf("seat hands %d do not match hands %d", s.Opener.Hands+s.Responder.Hands, s.Hands)
	}
	return nil
}
