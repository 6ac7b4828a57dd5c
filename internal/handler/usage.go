package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/qrforge/qrforge/internal/middleware"
	"github.com/qrforge/qrforge/internal/models"
	"github.com/qrforge/qrforge/internal/usage"
)

type UsageHandler struct {
	tracker *usage.Tracker
}

func NewUsageHandler(tracker *usage.Tracker) *UsageHandler {
	return &UsageHandler{tracker: tracker}
}

// Handles GET /usage. A caller can only ever see its own record; the
// reporting identity is taken from the authenticated context, never from
// request input.
func (h *UsageHandler) Get(c *gin.Context) {
	identity := middleware.Identity(c)

	record, ok := h.tracker.Get(identity)
	if !ok {
		record = models.UsageRecord{
			Identity: identity,
			ByStyle:  map[string]int64{},
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"identity":       record.Identity,
		"tier":           middleware.Tier(c),
		"total_requests": record.TotalRequests,
		"by_style":       record.ByStyle,
		"first_seen":     nullableTime(record.FirstSeen),
		"last_seen":      nullableTime(record.LastSeen),
	})
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
