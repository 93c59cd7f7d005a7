package limiter

import (
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	ReadyToTrip func(counts gobreaker.Counts) bool
}

// DefaultCircuitBreakerConfig opens after five consecutive failures and probes again after a minute.
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		MaxRequests: 1,
		Interval:    0,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
}

// CircuitBreakerManager keeps one breaker per model.
type CircuitBreakerManager struct {
	config   *CircuitBreakerConfig
	logger   *zap.Logger
	breakers map[string]*gobreaker.CircuitBreaker
	mu       sync.Mutex
}

// NewCircuitBreakerManager creates a new circuit breaker manager. A nil logger discards state changes.
func NewCircuitBreakerManager(config *CircuitBreakerConfig, logger *zap.Logger) *CircuitBreakerManager {
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CircuitBreakerManager{
		config:   config,
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// GetBreaker returns or creates the breaker for a model.
func (cbm *CircuitBreakerManager) GetBreaker(modelID string) *gobreaker.CircuitBreaker {
	cbm.mu.Lock()
	defer cbm.mu.Unlock()

	if breaker, exists := cbm.breakers[modelID]; exists {
		return breaker
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        fmt.Sprintf("model-%s", modelID),
		MaxRequests: cbm.config.MaxRequests,
		Interval:    cbm.config.Interval,
		Timeout:     cbm.config.Timeout,
		ReadyToTrip: cbm.config.ReadyToTrip,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			cbm.logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	cbm.breakers[modelID] = breaker
	return breaker
}

// Execute runs fn through the model's breaker.
func (cbm *CircuitBreakerManager) Execute(modelID string, fn func() error) error {
	_, err := cbm.GetBreaker(modelID).Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

// State returns the current state of a model's breaker.
func (cbm *CircuitBreakerManager) State(modelID string) gobreaker.State {
	return cbm.GetBreaker(modelID).State()
}

// Reset forgets the breaker for a model.
func (cbm *CircuitBreakerManager) Reset(modelID string) {
	cbm.mu.Lock()
	defer cbm.mu.Unlock()
	delete(cbm.breakers, modelID)
}
