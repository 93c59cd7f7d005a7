package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopState_Advance(t *testing.T) {
	ls := NewLoopState("r", "Lift")
	for _, s := range []State{StateVerifying, StateAccepted, StateRefining, StateRefineVerifying, StateRefineRetry,
		StateRefining, StateRefineVerifying, StateAccepted, StateRefineRoundAdvance, StateDoneExhausted} {
		require.NoError(t, ls.Advance(s), "advance to %s", s)
	}
	assert.Equal(t, StateDoneExhausted, ls.State)
	assert.Len(t, ls.Trail(), 11)
	assert.Equal(t, StateGenerating, ls.Trail()[0])
}

func TestLoopState_DisallowedTransitions(t *testing.T) {
	tests := []struct {
		from, to State
	}{
		{StateGenerating, StateAccepted},
		{StateVerifying, StateDoneSuccess},
		{StateSyntaxRetry, StateRefining},
		{StateRefineVerifying, StateDoneSuccess},
		{StateRefineRoundAdvance, StateDoneSuccess},
		{StateDoneSuccess, StateGenerating},
		{StateDoneExhausted, StateRefining},
	}
	for _, tt := range tests {
		ls := &LoopState{RunID: "r", State: tt.from}
		err := ls.Advance(tt.to)
		assert.Error(t, err, "%s -> %s", tt.from, tt.to)
		assert.Equal(t, tt.from, ls.State)
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(StateDoneSuccess))
	assert.True(t, IsTerminal(StateDoneExhausted))
	assert.False(t, IsTerminal(StateAccepted))
	assert.False(t, IsTerminal(StateRefineRoundAdvance))
}
