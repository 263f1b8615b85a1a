package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ScansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitebot_scans_total",
			Help: "Total website scans by outcome",
		},
		[]string{"status"},
	)

	ScanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sitebot_scan_duration_seconds",
			Help:    "End-to-end website scan duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
	)

	PagesCrawled = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sitebot_pages_crawled",
			Help:    "Pages kept per completed crawl",
			Buckets: []float64{0, 1, 2, 5, 10, 15, 20},
		},
	)

	RenderFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sitebot_render_fallbacks_total",
			Help: "Seed renders that degraded to a static fetch",
		},
	)

	ChatMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitebot_chat_messages_total",
			Help: "Chat messages persisted by role",
		},
		[]string{"role"},
	)

	AnswerDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sitebot_answer_duration_seconds",
			Help:    "Answer computation plus logging duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)

	WebsocketConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sitebot_websocket_connections",
			Help: "Currently open widget WebSocket connections",
		},
	)

	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sitebot_sessions_active",
			Help: "Widget sessions currently tracked",
		},
	)
)

func Init() {
	prometheus.MustRegister(ScansTotal)
	prometheus.MustRegister(ScanDuration)
	prometheus.MustRegister(PagesCrawled)
	prometheus.MustRegister(RenderFallbacks)
	prometheus.MustRegister(ChatMessages)
	prometheus.MustRegister(AnswerDuration)
	prometheus.MustRegister(WebsocketConnections)
	prometheus.MustRegister(SessionsActive)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
