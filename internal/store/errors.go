package store

import "errors"

var (
	ErrNotYourTurn     = errors.New("not your turn")
	ErrHandOver        = errors.New("hand is over")
	ErrIllegalAction   = errors.New("illegal action")
	ErrNotBettingPhase = errors.New("not a betting phase")
	ErrUnknownAgent    = errors.New("unknown agent")
	ErrCombatOver      = errors.New("combat is over")
)
