package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ChatDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "campus_chat_duration_seconds",
			Help:    "Chat turn processing duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"transport"},
	)

	ChatTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campus_chat_total",
			Help: "Total chat turns processed",
		},
		[]string{"status"},
	)

	UnansweredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "campus_chat_unanswered_total",
			Help: "Answers classified as unanswered",
		},
	)

	GapRecordTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campus_gap_records_total",
			Help: "Knowledge-gap ledger updates",
		},
		[]string{"outcome"},
	)

	GapEntriesOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "campus_gap_entries_open",
			Help: "Open knowledge-gap entries",
		},
	)

	SessionsLive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "campus_sessions_live",
			Help: "Live in-memory chat sessions",
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campus_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campus_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)
)

func Init() {
	prometheus.MustRegister(ChatDuration)
	prometheus.MustRegister(ChatTotal)
	prometheus.MustRegister(UnansweredTotal)
	prometheus.MustRegister(GapRecordTotal)
	prometheus.MustRegister(GapEntriesOpen)
	prometheus.MustRegister(SessionsLive)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
