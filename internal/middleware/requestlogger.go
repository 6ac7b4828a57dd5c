package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/qrforge/qrforge/internal/models"
	"github.com/qrforge/qrforge/internal/repository"
	"github.com/rs/zerolog/log"
)

// Buffered channel for async logging
var logChannel chan *models.RequestLog

// InitRequestLogger starts the background worker that batch-inserts
// request logs. Skipped entirely when no database is configured.
func InitRequestLogger(repo *repository.RequestLogRepository, bufferSize int) {
	logChannel = make(chan *models.RequestLog, bufferSize)

	go func() {
		batch := make([]*models.RequestLog, 0, 100)
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()

		flush := func() {
			if len(batch) == 0 {
				return
			}
			if err := repo.CreateBatch(context.Background(), batch); err != nil {
				log.Error().Err(err).Int("count", len(batch)).Msg("failed to insert request logs")
			}
			batch = make([]*models.RequestLog, 0, 100)
		}

		for {
			select {
			case entry := <-logChannel:
				batch = append(batch, entry)
				if len(batch) >= 100 {
					flush()
				}
			case <-ticker.C:
				flush()
			}
		}
	}()
}

// RequestLogger records every request for the admin analytics surface.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		if logChannel == nil {
			return
		}

		entry := &models.RequestLog{
			Timestamp:      start,
			Identity:       Identity(c),
			Tier:           Tier(c).String(),
			Method:         c.Request.Method,
			Path:           c.Request.URL.Path,
			StatusCode:     c.Writer.Status(),
			ResponseTimeMs: int(time.Since(start).Milliseconds()),
			IPAddress:      c.ClientIP(),
			UserAgent:      c.Request.UserAgent(),
		}

		select {
		case logChannel <- entry:
		default:
			// Channel full, drop rather than block the response path.
		}
	}
}
