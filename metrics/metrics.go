package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "interviewcoach"

// Session lifecycle events
const (
	SessionStarted   = "started"
	SessionCompleted = "completed"
	SessionAbandoned = "abandoned"
)

// Outcomes for external calls
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeRejected = "rejected" // circuit open
)

// NewRegistry creates a Prometheus registry with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler returns an http.Handler that serves Prometheus metrics.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Metrics holds the domain counters. A nil *Metrics records nothing.
type Metrics struct {
	HTTP *HTTPMetrics

	SessionsTotal  *prometheus.CounterVec
	AnswersTotal   prometheus.Counter
	ModelCalls     *prometheus.CounterVec
	EmailsTotal    *prometheus.CounterVec
	ResumesTotal   prometheus.Counter
	TrackedSession prometheus.Gauge
}

// New creates and registers every metric on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTP: NewHTTPMetrics(reg),
		SessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "interview",
			Name:      "sessions_total",
			Help:      "Interview session lifecycle events.",
		}, []string{"event"}),
		AnswersTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "interview",
			Name:      "answers_total",
			Help:      "Answers recorded across all sessions.",
		}),
		ModelCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "calls_total",
			Help:      "Language model calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
		EmailsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mail",
			Name:      "emails_total",
			Help:      "Outgoing e-mails by kind and outcome.",
		}, []string{"kind", "outcome"}),
		ResumesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resume",
			Name:      "analyses_total",
			Help:      "Resume analyses performed.",
		}),
		TrackedSession: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "interview",
			Name:      "tracked_sessions",
			Help:      "Active sessions watched by the idle sweeper.",
		}),
	}

	reg.MustRegister(m.SessionsTotal, m.AnswersTotal, m.ModelCalls, m.EmailsTotal, m.ResumesTotal, m.TrackedSession)
	return m
}

func (m *Metrics) Session(event string) {
	if m == nil {
		return
	}
	m.SessionsTotal.WithLabelValues(event).Inc()
}

func (m *Metrics) Answer() {
	if m == nil {
		return
	}
	m.AnswersTotal.Inc()
}

func (m *Metrics) ModelCall(operation, outcome string) {
	if m == nil {
		return
	}
	m.ModelCalls.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) Email(kind, outcome string) {
	if m == nil {
		return
	}
	m.EmailsTotal.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) Resume() {
	if m == nil {
		return
	}
	m.ResumesTotal.Inc()
}

func (m *Metrics) Tracked(n int) {
	if m == nil {
		return
	}
	m.TrackedSession.Set(float64(n))
}
