package limiter

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/snow-ghost/patrefine/pkg/registry"
)

// Guard combines rate limiting, retries and a circuit breaker around generator calls.
type Guard struct {
	rateLimiter    *RateLimiter
	retryManager   *RetryManager
	circuitBreaker *CircuitBreakerManager
}

// NewGuard creates a guard. Nil configs select the defaults.
func NewGuard(retry *RetryConfig, breaker *CircuitBreakerConfig, logger *zap.Logger) *Guard {
	return &Guard{
		rateLimiter:    NewRateLimiter(),
		retryManager:   NewRetryManager(retry),
		circuitBreaker: NewCircuitBreakerManager(breaker, logger),
	}
}

// Execute waits for the model's rate budget, then runs fn with retries inside
// the model's circuit breaker. A whole retry sequence counts as one breaker request.
func (g *Guard) Execute(ctx context.Context, mc registry.ModelConfig, fn func(ctx context.Context) error) error {
	if err := g.rateLimiter.Wait(ctx, mc); err != nil {
		return err
	}
	err := g.circuitBreaker.Execute(mc.ID, func() error {
		return g.retryManager.Execute(ctx, fn)
	})
	if err != nil {
		return fmt.Errorf("protected execution failed: %w", err)
	}
	return nil
}

// Breakers exposes the circuit breakers, mainly for health reporting.
func (g *Guard) Breakers() *CircuitBreakerManager {
	return g.circuitBreaker
}
