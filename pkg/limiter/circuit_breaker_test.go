package limiter

import (
	"errors"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerManager(t *testing.T) {
	cbm := NewCircuitBreakerManager(nil, nil)

	require.NoError(t, cbm.Execute("test-model", func() error { return nil }))
	assert.Equal(t, gobreaker.StateClosed, cbm.State("test-model"))
}

func TestCircuitBreakerManagerWithFailures(t *testing.T) {
	cbm := NewCircuitBreakerManager(nil, nil)

	for i := 0; i < 5; i++ {
		err := cbm.Execute("failing-model", func() error {
			return errors.New("simulated failure")
		})
		assert.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, cbm.State("failing-model"))

	called := false
	err := cbm.Execute("failing-model", func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.False(t, called)

	// other models are unaffected
	assert.Equal(t, gobreaker.StateClosed, cbm.State("other-model"))
}

func TestCircuitBreakerManagerReset(t *testing.T) {
	cbm := NewCircuitBreakerManager(nil, nil)
	for i := 0; i < 5; i++ {
		_ = cbm.Execute("reset-model", func() error { return errors.New("failure") })
	}
	require.Equal(t, gobreaker.StateOpen, cbm.State("reset-model"))

	cbm.Reset("reset-model")
	assert.Equal(t, gobreaker.StateClosed, cbm.State("reset-model"))
}
