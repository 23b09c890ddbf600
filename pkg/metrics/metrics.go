// Package metrics provides Prometheus-based metrics for turn execution and
// completion calls.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"reclassroom/pkg/llm"
	"reclassroom/pkg/logx"
)

// Recorder holds the simulator's Prometheus collectors.
type Recorder struct {
	turnsTotal       prometheus.Counter
	agentTurnsTotal  prometheus.Counter
	turnDuration     prometheus.Histogram
	rosterLength     prometheus.Histogram
	ambiguityScore   prometheus.Histogram
	completionsTotal *prometheus.CounterVec
	completionTime   *prometheus.HistogramVec
}

// NewRecorder creates a recorder with all collectors registered on the
// default registry.
func NewRecorder() *Recorder {
	return &Recorder{
		turnsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "turns_total",
			Help: "Total number of orchestrated turns",
		}),
		agentTurnsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agent_turns_total",
			Help: "Total number of persona speaking slots executed",
		}),
		turnDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "turn_duration_seconds",
			Help:    "Wall-clock duration of one full turn",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		rosterLength: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "turn_roster_length",
			Help:    "Number of speakers routed per turn",
			Buckets: prometheus.LinearBuckets(0, 1, 8),
		}),
		ambiguityScore: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ambiguity_score",
			Help:    "Distribution of ambiguity scores across turns",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		}),
		completionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "llm_completions_total",
			Help: "Total completion calls by model, status, and error type",
		}, []string{"model", "status", "error_type"}),
		completionTime: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "llm_completion_duration_seconds",
			Help:    "Duration of completion calls in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"model"}),
	}
}

// ObserveTurn records one finished turn.
func (r *Recorder) ObserveTurn(duration time.Duration, rosterLen, agentTurns int) {
	r.turnsTotal.Inc()
	r.turnDuration.Observe(duration.Seconds())
	r.rosterLength.Observe(float64(rosterLen))
	r.agentTurnsTotal.Add(float64(agentTurns))
}

// ObserveAmbiguity records one ambiguity score.
func (r *Recorder) ObserveAmbiguity(score int) {
	r.ambiguityScore.Observe(float64(score))
}

// Middleware wraps a completion client with call counting and timing.
func (r *Recorder) Middleware() llm.Middleware {
	return func(next llm.Client) llm.Client {
		return &metricsClient{next: next, recorder: r}
	}
}

type metricsClient struct {
	next     llm.Client
	recorder *Recorder
}

func (m *metricsClient) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	start := time.Now()
	resp, err := m.next.Complete(ctx, in)
	elapsed := time.Since(start)

	model := m.next.GetModelName()
	m.recorder.completionTime.WithLabelValues(model).Observe(elapsed.Seconds())
	if err != nil {
		m.recorder.completionsTotal.WithLabelValues(model, "error", llm.TypeOf(err).String()).Inc()
	} else {
		m.recorder.completionsTotal.WithLabelValues(model, "ok", "").Inc()
	}
	return resp, err
}

func (m *metricsClient) GetModelName() string {
	return m.next.GetModelName()
}

// Serve exposes /metrics on addr until ctx is cancelled. Intended to run in
// its own goroutine; an empty addr disables the listener.
func Serve(ctx context.Context, addr string) {
	if addr == "" {
		return
	}
	logger := logx.NewLogger("metrics")

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server failed: %v", err)
	}
}
