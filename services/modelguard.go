package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/krshsl/interviewcoach/backend/metrics"
	"github.com/sony/gobreaker"
)

const defaultModelTimeout = 20 * time.Second

// GuardedModel wraps a LanguageModel with a timeout and a circuit breaker so an
// unhealthy provider is skipped instead of slowing every request down.
type GuardedModel struct {
	model   LanguageModel
	breaker *gobreaker.CircuitBreaker
	metrics *metrics.Metrics
	timeout time.Duration
}

func NewGuardedModel(model LanguageModel, m *metrics.Metrics) *GuardedModel {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "language-model",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "component", name, "from", from.String(), "to", to.String())
		},
	})

	return &GuardedModel{
		model:   model,
		breaker: breaker,
		metrics: m,
		timeout: defaultModelTimeout,
	}
}

// Generate calls the model for operation. A nil GuardedModel always fails, callers fall back.
func (g *GuardedModel) Generate(ctx context.Context, operation, system string, turns []Turn) (string, error) {
	if g == nil || g.model == nil {
		return "", errModelUnavailable
	}

	out, err := g.breaker.Execute(func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		return g.model.Generate(ctx, system, turns)
	})
	if err != nil {
		outcome := metrics.OutcomeFailure
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			outcome = metrics.OutcomeRejected
		}
		g.metrics.ModelCall(operation, outcome)
		slog.Warn("Language model call failed", "operation", operation, "error", err)
		return "", err
	}

	g.metrics.ModelCall(operation, metrics.OutcomeSuccess)
	return out.(string), nil
}

// State exposes the breaker state for health reporting
func (g *GuardedModel) State() gobreaker.State {
	return g.breaker.State()
}

var errModelUnavailable = errors.New("language model not configured")
