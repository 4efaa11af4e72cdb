package ports

import (
	"context"
	"time"

	"github.com/bryanjcampbell1/DefiPulseTVL-ALLPriceFeed/internal/domain"
)

// MetricsService defines the contract for operational metrics
type MetricsService interface {
	// GetMetrics returns current operational metrics
	GetMetrics(ctx context.Context) (*domain.Metrics, error)

	// RecordPollSuccess records a poll that stored a new observation
	RecordPollSuccess(duration time.Duration)

	// RecordPollSkip records a poll that was throttled
	RecordPollSkip(duration time.Duration)

	// RecordPollError records a failed poll
	RecordPollError(duration time.Duration)

	// GetLastPollTime returns the time of the last poll
	GetLastPollTime() *time.Time
}

// PollerService defines the contract for price polling orchestration
type PollerService interface {
	// Poll runs one update cycle of the feed and reports whether a new
	// observation was stored
	Poll(ctx context.Context) (domain.PollResult, error)
}
