package worker

import (
	"fmt"

	"github.com/snow-ghost/patrefine/core"
)

// State is a refinement controller state.
type State string

const (
	StateGenerating         State = "GENERATING"
	StateVerifying          State = "VERIFYING"
	StateAccepted           State = "ACCEPTED"
	StateSyntaxRetry        State = "SYNTAX_RETRY"
	StateRefining           State = "REFINING"
	StateRefineVerifying    State = "REFINE_VERIFYING"
	StateRefineRetry        State = "REFINE_RETRY"
	StateRefineRoundAdvance State = "REFINE_ROUND_ADVANCE"
	StateDoneSuccess        State = "DONE_SUCCESS"
	StateDoneExhausted      State = "DONE_EXHAUSTED"
)

// IsTerminal reports whether the state ends a run.
func IsTerminal(s State) bool {
	return s == StateDoneSuccess || s == StateDoneExhausted
}

func isAllowedTransition(from, to State) bool {
	switch from {
	case StateGenerating:
		// Re-entering GENERATING is the no-op retry after an empty extraction.
		return to == StateGenerating || to == StateVerifying || to == StateSyntaxRetry || to == StateDoneExhausted
	case StateVerifying:
		return to == StateAccepted || to == StateSyntaxRetry || to == StateDoneExhausted
	case StateSyntaxRetry:
		return to == StateGenerating
	case StateAccepted:
		return to == StateDoneSuccess || to == StateRefining || to == StateRefineRoundAdvance || to == StateDoneExhausted
	case StateRefining:
		return to == StateRefining || to == StateRefineVerifying || to == StateRefineRetry || to == StateRefineRoundAdvance
	case StateRefineVerifying:
		return to == StateAccepted || to == StateRefineRetry || to == StateRefineRoundAdvance
	case StateRefineRetry:
		return to == StateRefining
	case StateRefineRoundAdvance:
		return to == StateRefining || to == StateDoneExhausted
	default:
		return false
	}
}

// LoopState is owned by one run of the controller. It is never shared between runs.
type LoopState struct {
	RunID string
	Model string
	State State

	GenAttempts  int
	EmptyRetries int
	Round        int
	InnerAttempt int

	// Current is the accepted artifact; replaced wholesale, never edited.
	Current    string
	Mismatches []core.MismatchRecord

	trail []State
}

// NewLoopState starts a run in GENERATING.
func NewLoopState(runID, model string) *LoopState {
	return &LoopState{RunID: runID, Model: model, State: StateGenerating, trail: []State{StateGenerating}}
}

// Advance moves to state to, rejecting moves the state machine does not allow.
func (s *LoopState) Advance(to State) error {
	if !isAllowedTransition(s.State, to) {
		return fmt.Errorf("run %s: disallowed transition %s -> %s", s.RunID, s.State, to)
	}
	s.State = to
	s.trail = append(s.trail, to)
	return nil
}

// Trail returns every state visited, in order.
func (s *LoopState) Trail() []State {
	return append([]State(nil), s.trail...)
}
