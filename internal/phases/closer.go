package phases

import (
	"sync"

	"github.com/charmbracelet/log"
	"github.com/lox/petpoker/internal/combat"
)

// RoundCloser asks the store to close the betting round whenever a fresh read
// shows both agents ready. It covers rounds completed by the human, which the
// scheduler's follow-up never sees.
type RoundCloser struct {
	store  combat.Store
	logger *log.Logger

	mu sync.Mutex
}

func NewRoundCloser(store combat.Store, logger *log.Logger) *RoundCloser {
	return &RoundCloser{store: store, logger: logger.WithPrefix("closer")}
}

func (r *RoundCloser) Sync() {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.store.State()
	if st.Phase == combat.PhaseMulligan || st.Phase == combat.PhaseSettlement {
		return
	}
	if !st.Human.IsReady || !st.AI.IsReady {
		return
	}
	closed, err := r.store.CloseBettingRoundIfReady()
	if err != nil {
		r.logger.Warn("Failed to close betting round", "phase", st.Phase, "err", err)
		return
	}
	if closed {
		r.logger.Debug("Betting round closed", "phase", st.Phase)
	}
}
