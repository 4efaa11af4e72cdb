package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/bryanjcampbell1/DefiPulseTVL-ALLPriceFeed/internal/domain"
	"github.com/bryanjcampbell1/DefiPulseTVL-ALLPriceFeed/internal/ports"
)

// PollerService implements the ports.PollerService interface
type PollerService struct {
	feed      ports.PriceFeed
	archive   ports.ObservationRepository // nil when the archive is disabled
	metrics   ports.MetricsService
	retention time.Duration
	logger    *slog.Logger
}

// NewPollerService creates a new poller service. archive may be nil.
// A zero retention keeps archived observations forever.
func NewPollerService(
	feed ports.PriceFeed,
	archive ports.ObservationRepository,
	metrics ports.MetricsService,
	retention time.Duration,
	logger *slog.Logger,
) *PollerService {
	return &PollerService{
		feed:      feed,
		archive:   archive,
		metrics:   metrics,
		retention: retention,
		logger:    logger.With("component", "poller_service"),
	}
}

// Poll updates the feed once and archives the observation it stored
func (p *PollerService) Poll(ctx context.Context) (domain.PollResult, error) {
	start := time.Now()

	obs, stored, err := p.feed.UpdateObservation(ctx)
	if err != nil {
		p.logger.Error("feed update failed", "error", err)
		p.metrics.RecordPollError(time.Since(start))
		return domain.PollFailed, err
	}

	if !stored {
		p.metrics.RecordPollSkip(time.Since(start))
		return domain.PollSkipped, nil
	}

	p.archiveObservation(ctx, obs)

	duration := time.Since(start)
	p.metrics.RecordPollSuccess(duration)

	p.logger.Info("poll completed",
		"timestamp", obs.Timestamp,
		"value", obs.Value.String(),
		"duration_ms", duration.Milliseconds(),
	)

	return domain.PollUpdated, nil
}

// archiveObservation stores the observation and prunes expired rows.
// Archive failures are logged and never fail the poll.
func (p *PollerService) archiveObservation(ctx context.Context, stored domain.Observation) {
	if p.archive == nil {
		return
	}

	timestamp := stored.Timestamp
	obs := &domain.ArchivedObservation{
		Timestamp: timestamp,
		Value:     stored.Value,
		Decimals:  p.feed.Decimals(),
	}
	if err := p.archive.Create(ctx, obs); err != nil {
		p.logger.Warn("failed to archive observation", "timestamp", timestamp, "error", err)
		return
	}

	if p.retention <= 0 {
		return
	}

	cutoff := timestamp - int64(p.retention/time.Second)
	pruned, err := p.archive.Prune(ctx, cutoff)
	if err != nil {
		p.logger.Warn("failed to prune archive", "cutoff", cutoff, "error", err)
		return
	}
	if pruned > 0 {
		p.logger.Debug("pruned archive", "removed", pruned, "cutoff", cutoff)
	}
}

// Ensure PollerService implements ports.PollerService
var _ ports.PollerService = (*PollerService)(nil)
