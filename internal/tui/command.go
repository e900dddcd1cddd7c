package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lox/petpoker/internal/combat"
)

// CommandKind classifies a line typed into the input box.
type CommandKind int

const (
	CmdAction CommandKind = iota
	CmdReady
	CmdKeep
	CmdMulligan
	CmdNext
	CmdHelp
	CmdQuit
)

// Command is a parsed input line.
type Command struct {
	Kind    CommandKind
	Action  combat.Action
	Amount  int
	Indexes []int
}

const helpText = "commands: check, call, bet N, raise N, fold, ready, keep, mulligan 1 2, next, quit"

// ParseCommand parses one input line. Actions accept single-letter aliases.
func ParseCommand(input string) (Command, error) {
	parts := strings.Fields(strings.ToLower(input))
	if len(parts) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}
	verb, args := parts[0], parts[1:]

	switch verb {
	case "ready", "r":
		return Command{Kind: CmdReady}, nil
	case "keep":
		return Command{Kind: CmdKeep}, nil
	case "mulligan", "m":
		if len(args) == 0 {
			return Command{}, fmt.Errorf("mulligan needs card positions (1 or 2)")
		}
		var idx []int
		for _, a := range args {
			n, err := strconv.Atoi(a)
			if err != nil || n < 1 || n > 2 {
				return Command{}, fmt.Errorf("mulligan: invalid card position %q", a)
			}
			idx = append(idx, n-1)
		}
		return Command{Kind: CmdMulligan, Indexes: idx}, nil
	case "next", "n", "deal":
		return Command{Kind: CmdNext}, nil
	case "help", "h", "?":
		return Command{Kind: CmdHelp}, nil
	case "quit", "q", "exit":
		return Command{Kind: CmdQuit}, nil
	}

	switch verb {
	case "f":
		verb = "fold"
	case "k":
		verb = "check"
	case "c":
		verb = "call"
	case "b":
		verb = "bet"
	}
	action, err := combat.ParseAction(verb)
	if err != nil {
		return Command{}, fmt.Errorf("unknown command %q", verb)
	}

	cmd := Command{Kind: CmdAction, Action: action}
	switch action {
	case combat.Bet, combat.Raise:
		if len(args) != 1 {
			return Command{}, fmt.Errorf("%s needs an amount", action)
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return Command{}, fmt.Errorf("%s: invalid amount %q", action, args[0])
		}
		cmd.Amount = n
	default:
		if len(args) > 0 {
			return Command{}, fmt.Errorf("%s takes no amount", action)
		}
	}
	return cmd, nil
}
