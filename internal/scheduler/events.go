package scheduler

import (
	"fmt"
	"time"

	"github.com/lox/petpoker/internal/combat"
	"github.com/lox/petpoker/internal/policy"
)

// GuardState is the opponent response guard. It moves Idle → Scheduled →
// Executing → Idle, and the guard watchdog may force Scheduled or Executing
// back to Idle.
type GuardState int

const (
	GuardIdle GuardState = iota
	GuardScheduled
	GuardExecuting
)

func (g GuardState) String() string {
	if g < GuardIdle || g > GuardExecuting {
		return fmt.Sprintf("guard(%d)", int(g))
	}
	return [...]string{"idle", "scheduled", "executing"}[g]
}

// EventKind identifies what the scheduler did.
type EventKind int

const (
	EventAIDecision EventKind = iota
	EventTimeout
	EventGuardReset
	EventStuckRecovered
)

func (k EventKind) String() string {
	if k < EventAIDecision || k > EventStuckRecovered {
		return fmt.Sprintf("event(%d)", int(k))
	}
	return [...]string{"ai_decision", "timeout", "guard_reset", "stuck_recovered"}[k]
}

// Event is published to the observer after the scheduler acts or recovers.
type Event struct {
	Kind EventKind
	At   time.Time
	Turn combat.TurnKey

	// Decision is set for EventAIDecision, EventStuckRecovered and EventTimeout.
	Decision policy.Decision
	// Permissions are the human permissions a timeout acted on.
	Permissions combat.Permissions
	// Held is how long the guard was stuck for EventGuardReset.
	Held time.Duration
}

// Observer receives events. It is called with the scheduler's lock held and
// must not block or call back into the scheduler.
type Observer func(Event)
