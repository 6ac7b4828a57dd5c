package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/qrforge/qrforge/internal/auth"
	"github.com/qrforge/qrforge/internal/metrics"
	"github.com/qrforge/qrforge/internal/ratelimit"
)

// CostFunc computes how many quota slots a request consumes. Batch routes
// charge once per item so the whole batch is admitted or rejected as one.
type CostFunc func(c *gin.Context) int

// CostOne is the default for single-image endpoints.
func CostOne(*gin.Context) int { return 1 }

// CostMultipartFiles charges one slot per uploaded file in the given form
// field. A request with no files still costs one slot; the handler will
// reject it as a bad request either way.
func CostMultipartFiles(field string) CostFunc {
	return func(c *gin.Context) int {
		form, err := c.MultipartForm()
		if err != nil || form == nil {
			return 1
		}
		n := len(form.File[field])
		if n < 1 {
			return 1
		}
		return n
	}
}

// RateLimit admits or rejects the request against the caller's tier quota.
// Runs after Authenticate; the decision is surfaced on every response via
// the X-RateLimit-* headers so callers can back off correctly.
func RateLimit(limiter *ratelimit.SlidingWindow, authenticator *auth.Authenticator, cost CostFunc) gin.HandlerFunc {
	if cost == nil {
		cost = CostOne
	}

	return func(c *gin.Context) {
		identity := Identity(c)
		tier := Tier(c)

		limits, ok := authenticator.Limits(tier)
		if !ok {
			// Resolved tier missing from the table is a config invariant
			// violation; fail closed.
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			c.Abort()
			return
		}

		decision := limiter.Admit(identity, limits, cost(c))

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", decision.Limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", decision.Remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", decision.ResetAt.Unix()))
		c.Header("X-RateLimit-Tier", tier.String())

		if !decision.Allowed {
			retryAfter := int(time.Until(decision.ResetAt).Seconds())
			if retryAfter < 0 {
				retryAfter = 0
			}

			metrics.RequestsTotal.WithLabelValues(tier.String(), metrics.OutcomeRateLimited).Inc()
			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"tier":        tier,
				"limit":       decision.Limit,
				"retry_after": decision.ResetAt.Unix(),
			})
			c.Abort()
			return
		}

		metrics.RequestsTotal.WithLabelValues(tier.String(), metrics.OutcomeAdmitted).Inc()
		c.Next()
	}
}
