// Package equity estimates heads-up hand strength with Monte Carlo sampling.
package equity

import (
	"context"
	"errors"
	"fmt"
	rand "math/rand/v2"
	"runtime"
	"sync"

	"github.com/lox/petpoker/internal/combat"
	"github.com/lox/petpoker/internal/randutil"
	"github.com/paulhankin/poker"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultSamples = 2000
	maxWorkers     = 8
	// below this many samples the goroutine overhead is not worth it
	parallelThreshold = 500
)

var ErrInvalidCards = errors.New("invalid cards")

// Constant is an evaluator that always reports the same strength.
type Constant float64

func (c Constant) Evaluate(hole, community []combat.Card) (float64, error) {
	return float64(c), nil
}

// MonteCarlo estimates the probability of beating one random opponent hand,
// counting ties as half a win.
type MonteCarlo struct {
	samples int
	workers int

	mu  sync.Mutex
	rng *rand.Rand
}

type Option func(*MonteCarlo)

func WithSamples(n int) Option {
	return func(m *MonteCarlo) {
		if n > 0 {
			m.samples = n
		}
	}
}

func WithWorkers(n int) Option {
	return func(m *MonteCarlo) {
		if n > 0 {
			m.workers = n
		}
	}
}

// WithRand seeds worker generators from rng for reproducible estimates.
func WithRand(rng *rand.Rand) Option {
	return func(m *MonteCarlo) {
		if rng != nil {
			m.rng = rng
		}
	}
}

func NewMonteCarlo(opts ...Option) *MonteCarlo {
	m := &MonteCarlo{
		samples: DefaultSamples,
		workers: min(runtime.NumCPU(), maxWorkers),
		rng:     randutil.New(rand.Int64()),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Evaluate returns a strength in [0,1] for hole against the revealed community.
func (m *MonteCarlo) Evaluate(hole, community []combat.Card) (float64, error) {
	return m.EvaluateContext(context.Background(), hole, community)
}

func (m *MonteCarlo) EvaluateContext(ctx context.Context, hole, community []combat.Card) (float64, error) {
	used, err := usedSet(hole, community)
	if err != nil {
		return 0, err
	}

	known := make([]poker.Card, 0, len(hole)+len(community))
	for _, c := range append(append([]combat.Card(nil), hole...), community...) {
		known = append(known, pokerDeck[c.Index()])
	}

	var available []int
	for i := 0; i < 52; i++ {
		if used&(1<<i) == 0 {
			available = append(available, i)
		}
	}

	workers := m.workers
	if m.samples < parallelThreshold {
		workers = 1
	}
	perWorker := m.samples / workers
	remainder := m.samples % workers

	seeds := make([]int64, workers)
	m.mu.Lock()
	for i := range seeds {
		seeds[i] = m.rng.Int64()
	}
	m.mu.Unlock()

	results := make([]tally, workers)
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		n := perWorker
		if w < remainder {
			n++
		}
		g.Go(func() error {
			rng := randutil.New(seeds[w])
			t, err := sample(ctx, known, len(community), available, n, rng)
			results[w] = t
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	var total tally
	for _, t := range results {
		total.wins += t.wins
		total.ties += t.ties
		total.samples += t.samples
	}
	if total.samples == 0 {
		return 0, nil
	}
	return (float64(total.wins) + float64(total.ties)/2) / float64(total.samples), nil
}

type tally struct {
	wins    int
	ties    int
	samples int
}

// sample completes the board and deals the opponent from a partial shuffle of
// the available cards. known holds the two hole cards followed by the board.
func sample(ctx context.Context, known []poker.Card, boardLen int, available []int, n int, rng *rand.Rand) (tally, error) {
	var t tally
	deck := append([]int(nil), available...)
	need := 2 + (5 - boardLen)

	var hero, villain [7]poker.Card
	copy(hero[:], known)
	copy(villain[2:], known[2:])

	for i := 0; i < n; i++ {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return t, err
			}
		}
		for j := 0; j < need; j++ {
			k := j + rng.IntN(len(deck)-j)
			deck[j], deck[k] = deck[k], deck[j]
		}
		villain[0] = pokerDeck[deck[0]]
		villain[1] = pokerDeck[deck[1]]
		for j := 2; j < need; j++ {
			c := pokerDeck[deck[j]]
			hero[2+boardLen+j-2] = c
			villain[2+boardLen+j-2] = c
		}

		hs, vs := poker.Eval7(&hero), poker.Eval7(&villain)
		switch {
		case hs > vs:
			t.wins++
		case hs == vs:
			t.ties++
		}
		t.samples++
	}
	return t, nil
}

func usedSet(hole, community []combat.Card) (uint64, error) {
	if len(hole) != 2 {
		return 0, fmt.Errorf("%w: need 2 hole cards, got %d", ErrInvalidCards, len(hole))
	}
	if len(community) > 5 {
		return 0, fmt.Errorf("%w: at most 5 community cards, got %d", ErrInvalidCards, len(community))
	}
	var used uint64
	for _, c := range append(append([]combat.Card(nil), hole...), community...) {
		if !c.Valid() {
			return 0, fmt.Errorf("%w: %v", ErrInvalidCards, c)
		}
		bit := uint64(1) << c.Index()
		if used&bit != 0 {
			return 0, fmt.Errorf("%w: duplicate card %s", ErrInvalidCards, c)
		}
		used |= bit
	}
	return used, nil
}

// pokerDeck maps combat card indexes to evaluator cards.
var pokerDeck = func() [52]poker.Card {
	var d [52]poker.Card
	for i := range d {
		c, err := combat.CardFromIndex(i).Poker()
		if err != nil {
			panic(err)
		}
		d[i] = c
	}
	return d
}()
