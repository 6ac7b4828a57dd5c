package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qrforge_requests_total",
		Help: "Requests seen by the admission layer, by tier and outcome.",
	}, []string{"tier", "outcome"})

	GenerationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qrforge_generations_total",
		Help: "QR images generated, by style.",
	}, []string{"style"})

	GenerationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "qrforge_generation_duration_seconds",
		Help:    "Time spent generating QR images.",
		Buckets: prometheus.DefBuckets,
	})
)

const (
	OutcomeAdmitted     = "admitted"
	OutcomeRateLimited  = "rate_limited"
	OutcomeUnauthorized = "unauthorized"
)

// Handler exposes the default prometheus registry.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
