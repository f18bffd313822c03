package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "email_agent"

// Result label values
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Classification fallback reasons
const (
	FallbackNoGenerator    = "no_generator"
	FallbackGenerateError  = "generate_error"
	FallbackUnusableOutput = "unusable_output"
)

var (
	digestRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "digest_runs_total",
		Help:      "Digest runs by result",
	}, []string{"result"})

	emailsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "emails_processed_total",
		Help:      "Emails summarized into a stored digest",
	})

	digestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "digest_run_duration_seconds",
		Help:      "Wall time of a digest run",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})

	classificationFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "classification_fallbacks_total",
		Help:      "Emails classified by the keyword fallback instead of the model",
	}, []string{"reason"})

	schedulerPasses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scheduler_passes_total",
		Help:      "Scheduled passes over all connected users",
	})

	// 0 closed, 1 half-open, 2 open
	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ai_breaker_state",
		Help:      "Circuit breaker state of the AI generator",
	}, []string{"breaker"})

	pushTokensPruned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "push_tokens_pruned_total",
		Help:      "FCM tokens deleted after the push service rejected them",
	})
)

// RecordDigestRun counts one digest run and how long it took
func RecordDigestRun(result string, seconds float64, emails int) {
	digestRuns.WithLabelValues(result).Inc()
	digestDuration.Observe(seconds)
	if emails > 0 {
		emailsProcessed.Add(float64(emails))
	}
}

func RecordClassificationFallback(reason string) {
	classificationFallbacks.WithLabelValues(reason).Inc()
}

func RecordSchedulerPass() {
	schedulerPasses.Inc()
}

func RecordBreakerState(breaker string, state int) {
	breakerState.WithLabelValues(breaker).Set(float64(state))
}

func RecordPrunedTokens(n int) {
	if n > 0 {
		pushTokensPruned.Add(float64(n))
	}
}

// Handler exposes the default registry in the Prometheus text format
func Handler() http.Handler {
	return promhttp.Handler()
}
