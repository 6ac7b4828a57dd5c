package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/qrforge/qrforge/internal/auth"
	"github.com/qrforge/qrforge/internal/metrics"
	"github.com/qrforge/qrforge/internal/models"
	"github.com/rs/zerolog/log"
)

// Context keys set by Authenticate for downstream middleware and handlers.
const (
	CtxIdentity = "identity"
	CtxTier     = "tier"
)

// Authenticate resolves the caller before any rate limiting or generation
// work. The external response for every auth failure is a uniform 401 so
// the error shape cannot be used to enumerate valid keys; the precise
// reason is only logged.
func Authenticate(authenticator *auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := strings.TrimSpace(c.GetHeader(auth.HeaderAPIKey))

		identity, tier, err := authenticator.Resolve(apiKey, c.ClientIP())
		if err != nil {
			log.Warn().
				Str("request_id", c.GetString("request_id")).
				Str("ip", c.ClientIP()).
				Err(err).
				Msg("authentication failed")

			metrics.RequestsTotal.WithLabelValues("", metrics.OutcomeUnauthorized).Inc()
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "unauthorized",
			})
			c.Abort()
			return
		}

		c.Set(CtxIdentity, identity)
		c.Set(CtxTier, tier)
		c.Next()
	}
}

// Identity returns the resolved caller identity from the gin context.
func Identity(c *gin.Context) string {
	return c.GetString(CtxIdentity)
}

// Tier returns the resolved caller tier from the gin context.
func Tier(c *gin.Context) models.Tier {
	if v, ok := c.Get(CtxTier); ok {
		if t, ok := v.(models.Tier); ok {
			return t
		}
	}
	return ""
}
