// Package metrics exposes Prometheus metrics for playback negotiation and
// playback sessions.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	negotiationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pianola_negotiations_total",
		Help: "Total number of playability negotiations by detected engine and selected format",
	}, []string{"engine", "best_format"})

	sessionsOpenedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pianola_sessions_opened_total",
		Help: "Total number of playback sessions opened",
	})

	sessionEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pianola_session_events_total",
		Help: "Total number of media element events delivered to sessions by type",
	}, []string{"event"})

	playbackErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pianola_playback_errors_total",
		Help: "Total number of sessions that entered the errored state by media error code",
	}, []string{"code"})

	playbackRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pianola_playback_retries_total",
		Help: "Total number of explicit playback retries",
	})

	lessonCompletionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pianola_lesson_completions_total",
		Help: "Total number of lesson videos played to their end",
	})

	activeSessions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pianola_active_sessions",
		Help: "Number of live playback sessions by state",
	}, []string{"state"})

	notificationsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pianola_notifications_dropped_total",
		Help: "Total number of notifications dropped for slow subscribers",
	})

	prunedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pianola_pruned_total",
		Help: "Total number of idle sessions and expired playback records removed",
	}, []string{"kind"})

	catalogCircuitState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pianola_catalog_circuit_breaker_state",
		Help: "Catalog client circuit breaker state (active state=1, others 0)",
	}, []string{"state"})
)

var (
	sessionStates = []string{"loading", "ready", "playing_or_paused", "ended", "errored"}
	circuitStates = []string{"closed", "half-open", "open"}
)

// RecordNegotiation records one negotiation outcome. An empty format means
// the raw locator was used.
func RecordNegotiation(engine, bestFormat string) {
	negotiationsTotal.WithLabelValues(normalizeEngineLabel(engine), normalizeFormatLabel(bestFormat)).Inc()
}

// RecordSessionOpened increments the opened sessions counter.
func RecordSessionOpened() {
	sessionsOpenedTotal.Inc()
}

// RecordSessionEvent records a media element event.
func RecordSessionEvent(event string) {
	sessionEventsTotal.WithLabelValues(normalizeEventLabel(event)).Inc()
}

// RecordPlaybackError records a session entering the errored state.
func RecordPlaybackError(code string) {
	if code == "" {
		code = "unknown"
	}
	playbackErrorsTotal.WithLabelValues(code).Inc()
}

// RecordPlaybackRetry increments the retry counter.
func RecordPlaybackRetry() {
	playbackRetriesTotal.Inc()
}

// RecordLessonCompletion increments the completion counter.
func RecordLessonCompletion() {
	lessonCompletionsTotal.Inc()
}

// RecordNotificationDropped increments the dropped notification counter.
func RecordNotificationDropped() {
	notificationsDroppedTotal.Inc()
}

// RecordPruned adds n removed items of kind ("sessions" or "records").
func RecordPruned(kind string, n int) {
	if n <= 0 {
		return
	}
	prunedTotal.WithLabelValues(kind).Add(float64(n))
}

// SetActiveSessions publishes the per-state session counts. States missing
// from counts are reported as zero.
func SetActiveSessions(counts map[string]int) {
	for _, s := range sessionStates {
		activeSessions.WithLabelValues(s).Set(float64(counts[s]))
	}
}

// SetCatalogCircuitState records the active catalog circuit breaker state.
func SetCatalogCircuitState(state string) {
	for _, s := range circuitStates {
		value := 0.0
		if s == state {
			value = 1.0
		}
		catalogCircuitState.WithLabelValues(s).Set(value)
	}
}

func normalizeEngineLabel(engine string) string {
	switch e := strings.ToLower(strings.TrimSpace(engine)); e {
	case "chrome", "firefox", "safari", "edge", "opera":
		return e
	default:
		return "unknown"
	}
}

func normalizeFormatLabel(format string) string {
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case "mp4", "webm", "ogg", "m3u8", "mpd":
		return f
	case "":
		return "none"
	default:
		return "other"
	}
}

func normalizeEventLabel(event string) string {
	switch e := strings.ToLower(strings.TrimSpace(event)); e {
	case "ready", "timeupdate", "duration", "error", "ended":
		return e
	default:
		return "unknown"
	}
}
