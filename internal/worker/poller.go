package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bryanjcampbell1/DefiPulseTVL-ALLPriceFeed/internal/domain"
	"github.com/bryanjcampbell1/DefiPulseTVL-ALLPriceFeed/internal/ports"
)

const minPollTimeout = 5 * time.Second

// Poller drives feed updates at regular intervals
type Poller struct {
	service  ports.PollerService
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewPoller creates a new feed poller
func NewPoller(service ports.PollerService, interval time.Duration, logger *slog.Logger) *Poller {
	return &Poller{
		service:  service,
		interval: interval,
		logger:   logger.With("component", "poller"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start polls immediately and then on every tick until ctx is cancelled or
// Stop is called. It blocks.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
		close(doneCh)
	}()

	p.logger.Info("starting poller", "interval", p.interval.String())

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller context cancelled")
			return ctx.Err()

		case <-stopCh:
			p.logger.Info("poller stopped")
			return nil

		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	pollTimeout := p.interval / 2
	if pollTimeout < minPollTimeout {
		pollTimeout = minPollTimeout
	}

	pollCtx, cancel := context.WithTimeout(ctx, pollTimeout)
	defer cancel()

	result, err := p.service.Poll(pollCtx)
	if err != nil {
		// the previous observation stays current; the next tick retries
		p.logger.Error("poll failed", "error", err)
		return
	}

	if result == domain.PollSkipped {
		p.logger.Debug("poll throttled")
	}
}

// Stop gracefully stops the poller
func (p *Poller) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	p.logger.Info("stopping poller")
	close(stopCh)

	select {
	case <-doneCh:
		return nil
	case <-time.After(10 * time.Second):
		return context.DeadlineExceeded
	}
}

// IsRunning returns whether the poller is currently running
func (p *Poller) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
