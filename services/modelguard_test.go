package services

import (
	"context"
	"testing"

	"github.com/krshsl/interviewcoach/backend/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilGuardedModelIsUnavailable(t *testing.T) {
	var g *GuardedModel
	_, err := g.Generate(context.Background(), "plan", "", nil)
	assert.ErrorIs(t, err, errModelUnavailable)
	assert.True(t, isModelUnavailable(err))
}

func TestGuardedModelSuccess(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	g := NewGuardedModel(&fakeModel{fallback: "hello"}, m)

	out, err := g.Generate(context.Background(), "greeting", "system", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	assert.Equal(t, gobreaker.StateClosed, g.State())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModelCalls.WithLabelValues("greeting", metrics.OutcomeSuccess)))
}

func TestGuardedModelOpensAfterConsecutiveFailures(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	model := &fakeModel{err: errModelDown}
	g := NewGuardedModel(model, m)

	for i := 0; i < 3; i++ {
		_, err := g.Generate(context.Background(), "plan", "", nil)
		assert.ErrorIs(t, err, errModelDown)
	}
	assert.Equal(t, gobreaker.StateOpen, g.State())

	_, err := g.Generate(context.Background(), "plan", "", nil)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, model.callCount(), "open breaker must not reach the model")

	assert.Equal(t, 3.0, testutil.ToFloat64(m.ModelCalls.WithLabelValues("plan", metrics.OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModelCalls.WithLabelValues("plan", metrics.OutcomeRejected)))
}

func TestInterviewerFallsBackWhenBreakerOpen(t *testing.T) {
	g := NewGuardedModel(&fakeModel{err: errModelDown}, nil)
	iv := NewInterviewer(g)

	for i := 0; i < 4; i++ {
		plan := iv.PlanQuestions(context.Background(), QuestionSource{Subject: "Go"}, 2)
		require.Len(t, plan, 2)
	}
	assert.Equal(t, gobreaker.StateOpen, g.State())
}
