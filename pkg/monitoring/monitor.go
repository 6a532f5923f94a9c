package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// 评分管道指标
	TranscriptionJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcription_jobs_total",
			Help: "Transcription jobs by terminal result",
		},
		[]string{"result"}, // completed / exhausted
	)

	TranscriptionQueueLength = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "transcription_queue_length",
			Help: "Number of jobs waiting in the transcription queue",
		},
	)

	ScoringRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoring_runs_total",
			Help: "AI scoring runs by result",
		},
		[]string{"skill", "result"}, // writing|speaking, scored|failed
	)

	ScoringDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scoring_run_duration_seconds",
			Help:    "Duration of a full multi-criteria scoring run",
			Buckets: []float64{1, 5, 10, 30, 60, 120},
		},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(TranscriptionJobs)
	prometheus.MustRegister(TranscriptionQueueLength)
	prometheus.MustRegister(ScoringRuns)
	prometheus.MustRegister(ScoringDuration)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
