package scheduler

import (
	"fmt"
	"time"
)

// Timing holds every delay the scheduler uses.
type Timing struct {
	// ResponseDelay is how long the opponent "thinks" before acting.
	ResponseDelay time.Duration
	// FollowUpDelay is the wait between an opponent action and the check that
	// closes the betting round.
	FollowUpDelay time.Duration
	// GuardTimeout is how long the guard may stay out of Idle before the guard
	// watchdog forces it back.
	GuardTimeout time.Duration
	GuardPoll    time.Duration
	// StuckThreshold is how long a stuck opponent turn must persist before the
	// turn watchdog forces a decision.
	StuckThreshold time.Duration
	StuckPoll      time.Duration
	CountdownTick  time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		ResponseDelay:  600 * time.Millisecond,
		FollowUpDelay:  100 * time.Millisecond,
		GuardTimeout:   5 * time.Second,
		GuardPoll:      time.Second,
		StuckThreshold: 2 * time.Second,
		StuckPoll:      1500 * time.Millisecond,
		CountdownTick:  time.Second,
	}
}

func (t Timing) Validate() error {
	for name, d := range map[string]time.Duration{
		"response_delay":  t.ResponseDelay,
		"follow_up_delay": t.FollowUpDelay,
		"guard_timeout":   t.GuardTimeout,
		"guard_poll":      t.GuardPoll,
		"stuck_threshold": t.StuckThreshold,
		"stuck_poll":      t.StuckPoll,
		"countdown_tick":  t.CountdownTick,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if t.GuardTimeout <= t.ResponseDelay+t.FollowUpDelay {
		return fmt.Errorf("guard_timeout (%s) must exceed response_delay + follow_up_delay (%s)",
			t.GuardTimeout, t.ResponseDelay+t.FollowUpDelay)
	}
	return nil
}

// Scale multiplies every delay by f. Simulations use it to run hands faster
// than real time without changing their order of events.
func (t Timing) Scale(f float64) Timing {
	scale := func(d time.Duration) time.Duration {
		return max(time.Millisecond, time.Duration(float64(d)*f))
	}
	return Timing{
		ResponseDelay:  scale(t.ResponseDelay),
		FollowUpDelay:  scale(t.FollowUpDelay),
		GuardTimeout:   scale(t.GuardTimeout),
		GuardPoll:      scale(t.GuardPoll),
		StuckThreshold: scale(t.StuckThreshold),
		StuckPoll:      scale(t.StuckPoll),
		CountdownTick:  scale(t.CountdownTick),
	}
}
