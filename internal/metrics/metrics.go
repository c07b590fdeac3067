package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Counter for quizzes started
	quizzesStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "iqscore_quizzes_started_total",
			Help: "Quiz drivers started",
		},
	)

	quizzesCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "iqscore_quizzes_completed_total",
			Help: "Quiz attempts that reached the result",
		},
	)

	quizzesAbandoned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "iqscore_quizzes_abandoned_total",
			Help: "Quiz drivers stopped by the idle timeout",
		},
	)

	answers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iqscore_answers_total",
			Help: "Resolved questions by outcome",
		},
		[]string{"outcome"}, // correct, incorrect, timeout
	)

	extensions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "iqscore_time_extensions_total",
			Help: "Time extensions granted",
		},
	)

	syncFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iqscore_sync_failures_total",
			Help: "Failed persistence calls by kind",
		},
		[]string{"kind"}, // progress, completion, handoff
	)

	syncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "iqscore_sync_duration_seconds",
			Help:    "Persistence call latency by kind",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	activeQuizzes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "iqscore_active_quizzes",
			Help: "Quiz drivers currently running",
		},
	)

	iqScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "iqscore_iq_score",
			Help:    "Distribution of computed IQ scores",
			Buckets: prometheus.LinearBuckets(75, 5, 15),
		},
	)

	sessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "iqscore_sessions_created_total",
			Help: "Quiz sessions created",
		},
	)

	emailsCaptured = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "iqscore_emails_captured_total",
			Help: "Emails captured on sessions",
		},
	)

	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iqscore_http_requests_total",
			Help: "HTTP requests by route pattern and status",
		},
		[]string{"route", "code"},
	)
)

func QuizStarted() {
	quizzesStarted.Inc()
	activeQuizzes.Inc()
}

// QuizStopped balances QuizStarted; completed is false for idle stops.
func QuizStopped(completed bool) {
	activeQuizzes.Dec()
	if completed {
		quizzesCompleted.Inc()
	} else {
		quizzesAbandoned.Inc()
	}
}

func Answer(correct, timedOut bool) {
	switch {
	case timedOut:
		answers.WithLabelValues("timeout").Inc()
	case correct:
		answers.WithLabelValues("correct").Inc()
	default:
		answers.WithLabelValues("incorrect").Inc()
	}
}

func Extended() { extensions.Inc() }

func Score(iq int) { iqScores.Observe(float64(iq)) }

func SyncFailed(kind string) { syncFailures.WithLabelValues(kind).Inc() }

// SyncTimer times one persistence call; call ObserveDuration when done.
func SyncTimer(kind string) *prometheus.Timer {
	return prometheus.NewTimer(syncDuration.WithLabelValues(kind))
}

func SessionCreated() { sessionsCreated.Inc() }

func EmailCaptured() { emailsCaptured.Inc() }

func Request(route string, code int) {
	httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }
