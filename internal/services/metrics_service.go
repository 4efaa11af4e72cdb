package services

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/bryanjcampbell1/DefiPulseTVL-ALLPriceFeed/internal/domain"
	"github.com/bryanjcampbell1/DefiPulseTVL-ALLPriceFeed/internal/ports"
)

const metricsNamespace = "tvl_feed"

// Poll results used as the "result" label of the polls counter
const (
	pollResultSuccess = "success"
	pollResultSkipped = "skipped"
	pollResultError   = "error"
)

// MetricsService implements the ports.MetricsService interface. It keeps
// the counters served by /stats and mirrors them into a private
// Prometheus registry served by /metrics.
type MetricsService struct {
	feed      ports.PriceFeed
	archive   ports.ObservationRepository // nil when the archive is disabled
	startTime time.Time
	logger    *slog.Logger

	registry     *prometheus.Registry
	polls        *prometheus.CounterVec
	pollDuration prometheus.Histogram

	mu               sync.RWMutex
	lastPollTime     *time.Time
	lastPollDuration time.Duration
	pollSuccessCount int64
	pollErrorCount   int64
	pollSkipCount    int64
}

// NewMetricsService creates a new metrics service. archive may be nil.
func NewMetricsService(
	feed ports.PriceFeed,
	archive ports.ObservationRepository,
	logger *slog.Logger,
) *MetricsService {
	m := &MetricsService{
		feed:      feed,
		archive:   archive,
		startTime: time.Now(),
		logger:    logger.With("component", "metrics_service"),
		registry:  prometheus.NewRegistry(),
	}

	m.polls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "polls_total",
			Help:      "Number of feed update attempts by result (success, skipped, error)",
		},
		[]string{"result"},
	)

	m.pollDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "poll_duration_seconds",
			Help:      "Duration of feed update attempts",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	currentValue := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "current_value",
			Help:      "Most recent TVL value in whole units (0 before the first update)",
		},
		m.currentValue,
	)

	lastUpdate := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "last_update_timestamp_seconds",
			Help:      "Unix time of the most recent observation (0 before the first update)",
		},
		func() float64 {
			ts, ok := m.feed.LastUpdateTime()
			if !ok {
				return 0
			}
			return float64(ts)
		},
	)

	historySize := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "history_size",
			Help:      "Number of observations retained in the lookback window",
		},
		func() float64 {
			return float64(len(m.feed.Observations()))
		},
	)

	m.registry.MustRegister(m.polls, m.pollDuration, currentValue, lastUpdate, historySize)

	return m
}

// Handler returns the Prometheus exposition handler for the private registry
func (m *MetricsService) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry so other collectors can be added
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

// GetMetrics returns current operational metrics
func (m *MetricsService) GetMetrics(ctx context.Context) (*domain.Metrics, error) {
	m.mu.RLock()
	lastPollTime := m.lastPollTime
	lastPollDuration := m.lastPollDuration
	pollSuccessCount := m.pollSuccessCount
	pollErrorCount := m.pollErrorCount
	pollSkipCount := m.pollSkipCount
	m.mu.RUnlock()

	metrics := &domain.Metrics{
		Uptime:           time.Since(m.startTime).Seconds(),
		FeedState:        domain.FeedUninitialized,
		HistorySize:      len(m.feed.Observations()),
		LastPollTime:     lastPollTime,
		LastPollDuration: float64(lastPollDuration.Milliseconds()),
		PollSuccessCount: pollSuccessCount,
		PollErrorCount:   pollErrorCount,
		PollSkipCount:    pollSkipCount,
		DatabaseStatus:   "disabled",
	}

	if ts, ok := m.feed.LastUpdateTime(); ok {
		metrics.FeedState = domain.FeedReady
		metrics.LastUpdateTime = &ts
	}

	if m.archive != nil {
		metrics.DatabaseStatus = "healthy"
		if err := m.archive.Ping(ctx); err != nil {
			m.logger.Error("archive ping failed", "error", err)
			metrics.DatabaseStatus = "unhealthy"
		} else {
			count, err := m.archive.Count(ctx)
			if err != nil {
				m.logger.Error("failed to count archived observations", "error", err)
			}
			metrics.ArchivedCount = count
		}
	}

	return metrics, nil
}

// RecordPollSuccess records a poll that stored a new observation
func (m *MetricsService) RecordPollSuccess(duration time.Duration) {
	m.record(pollResultSuccess, duration)
}

// RecordPollSkip records a poll that was throttled
func (m *MetricsService) RecordPollSkip(duration time.Duration) {
	m.record(pollResultSkipped, duration)
}

// RecordPollError records a failed poll
func (m *MetricsService) RecordPollError(duration time.Duration) {
	m.record(pollResultError, duration)
}

func (m *MetricsService) record(result string, duration time.Duration) {
	m.polls.WithLabelValues(result).Inc()
	m.pollDuration.Observe(duration.Seconds())

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.lastPollTime = &now
	m.lastPollDuration = duration

	switch result {
	case pollResultSuccess:
		m.pollSuccessCount++
	case pollResultSkipped:
		m.pollSkipCount++
	case pollResultError:
		m.pollErrorCount++
	}
}

// GetLastPollTime returns the time of the last poll
func (m *MetricsService) GetLastPollTime() *time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastPollTime
}

func (m *MetricsService) currentValue() float64 {
	value, ok := m.feed.CurrentPrice()
	if !ok {
		return 0
	}
	return decimal.NewFromBigInt(value, -m.feed.Decimals()).InexactFloat64()
}

// Ensure MetricsService implements ports.MetricsService
var _ ports.MetricsService = (*MetricsService)(nil)
