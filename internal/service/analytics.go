package service

import (
	"context"
	"time"

	"github.com/qrforge/qrforge/internal/models"
	"github.com/qrforge/qrforge/internal/repository"
)

type AnalyticsService struct {
	repo *repository.RequestLogRepository
}

func NewAnalyticsService(repo *repository.RequestLogRepository) *AnalyticsService {
	return &AnalyticsService{repo: repo}
}

type Summary struct {
	From              time.Time     `json:"from"`
	To                time.Time     `json:"to"`
	TotalRequests     int64         `json:"total_requests"`
	ByStatus          map[int]int64 `json:"by_status"`
	AvgResponseTimeMs float64       `json:"avg_response_time_ms"`
}

// GetSummary aggregates request logs over a time range.
func (s *AnalyticsService) GetSummary(ctx context.Context, from, to time.Time) (*Summary, error) {
	total, err := s.repo.CountByTimeRange(ctx, from, to)
	if err != nil {
		return nil, err
	}

	byStatus, err := s.repo.CountByStatus(ctx, from, to)
	if err != nil {
		return nil, err
	}

	avg, err := s.repo.GetAverageResponseTime(ctx, from, to)
	if err != nil {
		return nil, err
	}

	return &Summary{
		From:              from,
		To:                to,
		TotalRequests:     total,
		ByStatus:          byStatus,
		AvgResponseTimeMs: avg,
	}, nil
}

// GetLogs returns recent request logs for the admin console.
func (s *AnalyticsService) GetLogs(ctx context.Context, from, to time.Time, limit, offset int) ([]models.RequestLog, error) {
	return s.repo.FindByTimeRange(ctx, from, to, limit, offset)
}
