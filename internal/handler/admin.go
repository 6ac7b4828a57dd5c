package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/qrforge/qrforge/internal/credentials"
	"github.com/qrforge/qrforge/internal/ratelimit"
	"github.com/qrforge/qrforge/internal/service"
	"github.com/qrforge/qrforge/internal/usage"
)

// AdminHandler is the read-only console. Account mutation stays
// webhook-only; nothing here writes to the credential store.
type AdminHandler struct {
	authService *service.AdminAuthService
	analytics   *service.AnalyticsService // nil without a database
	store       *credentials.Store
	limiter     *ratelimit.SlidingWindow
	tracker     *usage.Tracker
	startTime   time.Time
}

func NewAdminHandler(authService *service.AdminAuthService, analytics *service.AnalyticsService, store *credentials.Store, limiter *ratelimit.SlidingWindow, tracker *usage.Tracker) *AdminHandler {
	return &AdminHandler{
		authService: authService,
		analytics:   analytics,
		store:       store,
		limiter:     limiter,
		tracker:     tracker,
		startTime:   time.Now(),
	}
}

// Handles POST /admin/login
func (h *AdminHandler) Login(c *gin.Context) {
	if h.authService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "admin console requires a database"})
		return
	}

	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Handles GET /admin/accounts
func (h *AdminHandler) ListAccounts(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.List())
}

// Handles GET /admin/status
func (h *AdminHandler) Status(c *gin.Context) {
	identities, requests := h.tracker.Totals()

	c.JSON(http.StatusOK, gin.H{
		"service":           "qrforge",
		"uptime_seconds":    time.Since(h.startTime).Seconds(),
		"accounts":          h.store.Count(),
		"active_windows":    h.limiter.ActiveIdentities(),
		"identities_seen":   identities,
		"requests_admitted": requests,
		"timestamp":         time.Now().Unix(),
	})
}

// Handles GET /admin/analytics
func (h *AdminHandler) Analytics(c *gin.Context) {
	if h.analytics == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "analytics requires a database"})
		return
	}

	from, to := parseTimeRange(c)

	summary, err := h.analytics.GetSummary(c.Request.Context(), from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// Handles GET /admin/logs
func (h *AdminHandler) Logs(c *gin.Context) {
	if h.analytics == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "logs require a database"})
		return
	}

	from, to := parseTimeRange(c)

	limit := 100
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	offset := 0
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	logs, err := h.analytics.GetLogs(c.Request.Context(), from, to, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"logs":   logs,
		"limit":  limit,
		"offset": offset,
	})
}

// Parses 'from' and 'to' query parameters, defaulting to the last 24h.
func parseTimeRange(c *gin.Context) (time.Time, time.Time) {
	to := time.Now()
	from := to.Add(-24 * time.Hour)

	if v := c.Query("from"); v != "" {
		if parsed, err := time.Parse(time.RFC3339, v); err == nil {
			from = parsed
		} else if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
			from = time.Unix(ts, 0)
		}
	}

	if v := c.Query("to"); v != "" {
		if parsed, err := time.Parse(time.RFC3339, v); err == nil {
			to = parsed
		} else if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
			to = time.Unix(ts, 0)
		}
	}

	return from, to
}
