package services_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanjcampbell1/DefiPulseTVL-ALLPriceFeed/internal/domain"
)

func TestMetricsService_GetMetrics(t *testing.T) {
	t.Run("uninitialized feed", func(t *testing.T) {
		f := newPollerFixture(t, false, 0, totalBody("1"))

		m, err := f.metrics.GetMetrics(context.Background())
		require.NoError(t, err)

		assert.Equal(t, domain.FeedUninitialized, m.FeedState)
		assert.Nil(t, m.LastUpdateTime)
		assert.Nil(t, m.LastPollTime)
		assert.Equal(t, 0, m.HistorySize)
		assert.Equal(t, "disabled", m.DatabaseStatus)
		assert.GreaterOrEqual(t, m.Uptime, 0.0)
	})

	t.Run("ready feed", func(t *testing.T) {
		f := newPollerFixture(t, true, 0, totalBody("1000000000"))
		_, err := f.poller.Poll(context.Background())
		require.NoError(t, err)

		m, err := f.metrics.GetMetrics(context.Background())
		require.NoError(t, err)

		assert.Equal(t, domain.FeedReady, m.FeedState)
		require.NotNil(t, m.LastUpdateTime)
		assert.Equal(t, int64(1_000), *m.LastUpdateTime)
		assert.NotNil(t, m.LastPollTime)
		assert.Equal(t, 1, m.HistorySize)
		assert.Equal(t, "healthy", m.DatabaseStatus)
	})

	t.Run("unhealthy archive", func(t *testing.T) {
		f := newPollerFixture(t, true, 0, totalBody("1"))
		f.archive.pingErr = errors.New("connection refused")

		m, err := f.metrics.GetMetrics(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "unhealthy", m.DatabaseStatus)
	})
}

func TestMetricsService_Record(t *testing.T) {
	f := newPollerFixture(t, false, 0, totalBody("1"))

	f.metrics.RecordPollSuccess(10 * time.Millisecond)
	f.metrics.RecordPollSuccess(20 * time.Millisecond)
	f.metrics.RecordPollSkip(time.Millisecond)
	f.metrics.RecordPollError(5 * time.Millisecond)

	m, err := f.metrics.GetMetrics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), m.PollSuccessCount)
	assert.Equal(t, int64(1), m.PollSkipCount)
	assert.Equal(t, int64(1), m.PollErrorCount)
	assert.Equal(t, 5.0, m.LastPollDuration)
	assert.NotNil(t, f.metrics.GetLastPollTime())

	series, err := testutil.GatherAndCount(f.metrics.Registry(), "tvl_feed_polls_total")
	require.NoError(t, err)
	assert.Equal(t, 3, series, "one series per result")
}

func TestMetricsService_Handler(t *testing.T) {
	f := newPollerFixture(t, false, 0, totalBody("5000000000000"))
	_, err := f.poller.Poll(context.Background())
	require.NoError(t, err)

	expected := `
# HELP tvl_feed_current_value Most recent TVL value in whole units (0 before the first update)
# TYPE tvl_feed_current_value gauge
tvl_feed_current_value 5000
# HELP tvl_feed_history_size Number of observations retained in the lookback window
# TYPE tvl_feed_history_size gauge
tvl_feed_history_size 1
# HELP tvl_feed_last_update_timestamp_seconds Unix time of the most recent observation (0 before the first update)
# TYPE tvl_feed_last_update_timestamp_seconds gauge
tvl_feed_last_update_timestamp_seconds 1000
# HELP tvl_feed_polls_total Number of feed update attempts by result (success, skipped, error)
# TYPE tvl_feed_polls_total counter
tvl_feed_polls_total{result="success"} 1
`
	err = testutil.GatherAndCompare(f.metrics.Registry(), strings.NewReader(expected),
		"tvl_feed_current_value",
		"tvl_feed_history_size",
		"tvl_feed_last_update_timestamp_seconds",
		"tvl_feed_polls_total",
	)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	f.metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tvl_feed_poll_duration_seconds_bucket")
}
