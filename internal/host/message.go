package host

import (
	"encoding/json"
	"time"

	"github.com/lox/petpoker/internal/combat"
	"github.com/lox/petpoker/internal/policy"
	"github.com/lox/petpoker/internal/scheduler"
)

type MessageType string

const (
	// Client → Host
	MessageTypeAction   MessageType = "action"
	MessageTypeReady    MessageType = "ready"
	MessageTypeMulligan MessageType = "mulligan"
	MessageTypeNextHand MessageType = "next_hand"

	// Host → Client
	MessageTypeSnapshot MessageType = "snapshot"
	MessageTypeAck      MessageType = "ack"
	MessageTypeError    MessageType = "error"
)

// Message is the envelope for everything sent over the socket.
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"requestId,omitempty"`
}

func newMessage(t MessageType, data any, at time.Time) (*Message, error) {
	msg := &Message{Type: t, Timestamp: at}
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		msg.Data = b
	}
	return msg, nil
}

type ActionData struct {
	Action string `json:"action"`
	Amount int    `json:"amount,omitempty"`
}

type MulliganData struct {
	// Indexes are zero-based hole card positions to replace. Empty keeps the hand.
	Indexes []int `json:"indexes,omitempty"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type AgentView struct {
	ID          string   `json:"id"`
	Health      int      `json:"health"`
	MaxHealth   int      `json:"maxHealth"`
	Stamina     int      `json:"stamina"`
	HoleCards   []string `json:"holeCards,omitempty"`
	HPCommitted int      `json:"hpCommitted"`
	IsReady     bool     `json:"isReady"`
}

type PermissionsView struct {
	IsMyTurnToAct bool `json:"isMyTurnToAct"`
	CanCheck      bool `json:"canCheck"`
	CanBet        bool `json:"canBet"`
	CanCall       bool `json:"canCall"`
	CanRaise      bool `json:"canRaise"`
	CanFold       bool `json:"canFold"`
	ToCall        int  `json:"toCall"`
	CallAmount    int  `json:"callAmount"`
	MinBet        int  `json:"minBet"`
	MaxBetAmount  int  `json:"maxBetAmount"`
	IsAllIn       bool `json:"isAllIn"`
}

type DecisionView struct {
	Action    string `json:"action"`
	Amount    int    `json:"amount,omitempty"`
	Reasoning string `json:"reasoning,omitempty"`
}

type EventView struct {
	Kind   string    `json:"kind"`
	At     time.Time `json:"at"`
	Action string    `json:"action,omitempty"`
	Amount int       `json:"amount,omitempty"`
}

// SnapshotData is everything a remote UI needs to render the human seat.
type SnapshotData struct {
	Hand          int             `json:"hand"`
	Phase         string          `json:"phase"`
	Pot           int             `json:"pot"`
	CurrentBet    int             `json:"currentBet"`
	ActiveAgentID string          `json:"activeAgentId,omitempty"`
	TurnTimer     int             `json:"turnTimer"`
	Community     []string        `json:"community"`
	AllIn         bool            `json:"allIn"`
	Winner        string          `json:"winner,omitempty"`
	Draw          bool            `json:"draw,omitempty"`
	FoldWinner    string          `json:"foldWinner,omitempty"`
	Human         AgentView       `json:"human"`
	AI            AgentView       `json:"ai"`
	Permissions   PermissionsView `json:"permissions"`
	LastDecision  *DecisionView   `json:"lastDecision,omitempty"`
	Events        []EventView     `json:"events,omitempty"`
}

func cardStrings(cards []combat.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.String()
	}
	return out
}

func agentView(a combat.AgentState, showCards bool) AgentView {
	v := AgentView{
		ID:          a.AgentID,
		Health:      a.Pet.CurrentHealth,
		MaxHealth:   a.Pet.MaxHealth,
		Stamina:     a.Pet.CurrentStamina,
		HPCommitted: a.HPCommitted,
		IsReady:     a.IsReady,
	}
	if showCards {
		v.HoleCards = cardStrings(a.HoleCards)
	}
	return v
}

// snapshot builds the human's view. The opponent's cards are only revealed at
// a showdown.
func snapshot(st combat.State, p combat.Permissions, d policy.Decision, decided bool, events []scheduler.Event) SnapshotData {
	showdown := st.Phase == combat.PhaseSettlement && st.FoldWinner == "" && st.HandNumber > 0
	s := SnapshotData{
		Hand:          st.HandNumber,
		Phase:         st.Phase.String(),
		Pot:           st.Pot,
		CurrentBet:    st.CurrentBet,
		ActiveAgentID: st.ActiveAgentID,
		TurnTimer:     st.TurnTimer,
		Community:     cardStrings(st.Community),
		AllIn:         st.IsAllInShowdown,
		Winner:        st.Winner,
		Draw:          st.Draw,
		FoldWinner:    st.FoldWinner,
		Human:         agentView(st.Human, true),
		AI:            agentView(st.AI, showdown),
		Permissions: PermissionsView{
			IsMyTurnToAct: p.IsMyTurnToAct,
			CanCheck:      p.CanCheck,
			CanBet:        p.CanBet,
			CanCall:       p.CanCall,
			CanRaise:      p.CanRaise,
			CanFold:       p.CanFold,
			ToCall:        p.ToCall,
			CallAmount:    p.CallAmount,
			MinBet:        p.MinBet,
			MaxBetAmount:  p.MaxBetAmount,
			IsAllIn:       p.IsAllIn,
		},
	}
	if decided {
		s.LastDecision = &DecisionView{Action: d.Action.String(), Amount: d.Amount, Reasoning: d.Reasoning}
	}
	for _, e := range events {
		ev := EventView{Kind: e.Kind.String(), At: e.At}
		if e.Kind != scheduler.EventGuardReset {
			ev.Action, ev.Amount = e.Decision.Action.String(), e.Decision.Amount
		}
		s.Events = append(s.Events, ev)
	}
	return s
}
