package services_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanjcampbell1/DefiPulseTVL-ALLPriceFeed/internal/clock"
	"github.com/bryanjcampbell1/DefiPulseTVL-ALLPriceFeed/internal/domain"
	"github.com/bryanjcampbell1/DefiPulseTVL-ALLPriceFeed/internal/ports"
	"github.com/bryanjcampbell1/DefiPulseTVL-ALLPriceFeed/internal/services"
)

// fakeArchive is an in-memory ObservationRepository
type fakeArchive struct {
	mu           sync.Mutex
	observations []*domain.ArchivedObservation
	createErr    error
	pingErr      error
	pruneCalls   []int64
}

func (a *fakeArchive) Create(ctx context.Context, obs *domain.ArchivedObservation) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.createErr != nil {
		return a.createErr
	}
	obs.ID = int64(len(a.observations) + 1)
	obs.CreatedAt = time.Now()
	a.observations = append(a.observations, obs)
	return nil
}

func (a *fakeArchive) ListSince(ctx context.Context, since int64, limit int) ([]*domain.ArchivedObservation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*domain.ArchivedObservation
	for _, o := range a.observations {
		if o.Timestamp >= since && (limit <= 0 || len(out) < limit) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (a *fakeArchive) Count(ctx context.Context) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return int64(len(a.observations)), nil
}

func (a *fakeArchive) Prune(ctx context.Context, olderThan int64) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pruneCalls = append(a.pruneCalls, olderThan)

	kept := a.observations[:0]
	var removed int64
	for _, o := range a.observations {
		if o.Timestamp < olderThan {
			removed++
			continue
		}
		kept = append(kept, o)
	}
	a.observations = kept
	return removed, nil
}

func (a *fakeArchive) Ping(ctx context.Context) error {
	return a.pingErr
}

var _ ports.ObservationRepository = (*fakeArchive)(nil)

// pollerFixture wires a real feed, metrics and poller around fakes
type pollerFixture struct {
	fetcher *stubFetcher
	clock   *clock.Manual
	feed    *services.PriceFeed
	archive *fakeArchive
	metrics *services.MetricsService
	poller  *services.PollerService
}

func newPollerFixture(t *testing.T, withArchive bool, retention time.Duration, responses ...stubResponse) *pollerFixture {
	t.Helper()
	return newPollerFixtureWithInterval(t, withArchive, retention, 60, responses...)
}

func newPollerFixtureWithInterval(t *testing.T, withArchive bool, retention time.Duration, minInterval int64, responses ...stubResponse) *pollerFixture {
	t.Helper()

	f := &pollerFixture{
		fetcher: newStubFetcher(responses...),
		clock:   clock.NewManual(1_000),
	}
	f.feed = newFeed(t, f.fetcher, f.clock, 500, minInterval)

	var archive ports.ObservationRepository
	if withArchive {
		f.archive = &fakeArchive{}
		archive = f.archive
	}

	f.metrics = services.NewMetricsService(f.feed, archive, newTestLogger())
	f.poller = services.NewPollerService(f.feed, archive, f.metrics, retention, newTestLogger())
	return f
}

func TestPollerService_Poll(t *testing.T) {
	t.Run("stores and archives a new observation", func(t *testing.T) {
		f := newPollerFixture(t, true, 0, totalBody("5000000000000"))

		result, err := f.poller.Poll(context.Background())
		require.NoError(t, err)
		assert.Equal(t, domain.PollUpdated, result)

		require.Len(t, f.archive.observations, 1)
		archived := f.archive.observations[0]
		assert.Equal(t, int64(1_000), archived.Timestamp)
		assert.Equal(t, 0, archived.Value.Cmp(fixed(t, "5000")))
		assert.Equal(t, int32(18), archived.Decimals)
		assert.Empty(t, f.archive.pruneCalls, "zero retention never prunes")

		m, err := f.metrics.GetMetrics(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(1), m.PollSuccessCount)
		assert.Equal(t, int64(1), m.ArchivedCount)
	})

	t.Run("reports throttled updates as skipped", func(t *testing.T) {
		f := newPollerFixture(t, true, 0, totalBody("5000000000000"))

		_, err := f.poller.Poll(context.Background())
		require.NoError(t, err)

		f.clock.Advance(30)
		result, err := f.poller.Poll(context.Background())
		require.NoError(t, err)
		assert.Equal(t, domain.PollSkipped, result)
		assert.Equal(t, 1, f.fetcher.Calls())
		assert.Len(t, f.archive.observations, 1)

		m, err := f.metrics.GetMetrics(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(1), m.PollSuccessCount)
		assert.Equal(t, int64(1), m.PollSkipCount)
	})

	t.Run("propagates fetch errors", func(t *testing.T) {
		fetchErr := domain.NewFetchError(testURL, 500, []byte("boom"), nil)
		f := newPollerFixture(t, true, 0, stubResponse{err: fetchErr})

		result, err := f.poller.Poll(context.Background())
		assert.Equal(t, domain.PollFailed, result)
		assert.ErrorIs(t, err, domain.ErrFetch)
		assert.Empty(t, f.archive.observations)

		m, err := f.metrics.GetMetrics(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(1), m.PollErrorCount)
		assert.Equal(t, domain.FeedUninitialized, m.FeedState)
	})

	t.Run("archive failures do not fail the poll", func(t *testing.T) {
		f := newPollerFixture(t, true, 0, totalBody("1000000000"))
		f.archive.createErr = errors.New("disk full")

		result, err := f.poller.Poll(context.Background())
		require.NoError(t, err)
		assert.Equal(t, domain.PollUpdated, result)

		value, ok := f.feed.CurrentPrice()
		require.True(t, ok)
		assert.Equal(t, 0, value.Cmp(fixed(t, "1")))
	})

	t.Run("prunes the archive by retention", func(t *testing.T) {
		f := newPollerFixture(t, true, 100*time.Second, totalBody("1000000000"))

		_, err := f.poller.Poll(context.Background())
		require.NoError(t, err)

		f.clock.Advance(150)
		_, err = f.poller.Poll(context.Background())
		require.NoError(t, err)

		assert.Equal(t, []int64{900, 1_050}, f.archive.pruneCalls)
		require.Len(t, f.archive.observations, 1)
		assert.Equal(t, int64(1_150), f.archive.observations[0].Timestamp)
	})

	t.Run("works without an archive", func(t *testing.T) {
		f := newPollerFixture(t, false, time.Hour, totalBody("1000000000"))

		result, err := f.poller.Poll(context.Background())
		require.NoError(t, err)
		assert.Equal(t, domain.PollUpdated, result)

		m, err := f.metrics.GetMetrics(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "disabled", m.DatabaseStatus)
		assert.Equal(t, int64(0), m.ArchivedCount)
	})
}

func TestPollerService_ArchivesCopies(t *testing.T) {
	f := newPollerFixture(t, true, 0, totalBody("2000000000"))

	_, err := f.poller.Poll(context.Background())
	require.NoError(t, err)

	f.archive.observations[0].Value.Set(big.NewInt(1))

	value, ok := f.feed.CurrentPrice()
	require.True(t, ok)
	assert.Equal(t, 0, value.Cmp(fixed(t, "2")))
}

func TestPollerService_ConcurrentPolls(t *testing.T) {
	f := newPollerFixture(t, true, 0, totalBody("1000000000"), totalBody("2000000000"))
	ctx := context.Background()

	result, err := f.poller.Poll(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.PollUpdated, result)

	f.clock.Set(1_100)
	entered, release := f.fetcher.hold()

	results := make(chan domain.PollResult, 2)
	poll := func() {
		r, err := f.poller.Poll(ctx)
		assert.NoError(t, err)
		results <- r
	}

	go poll()
	<-entered

	// the second poll starts while the first is inside the fetch
	go poll()
	time.Sleep(20 * time.Millisecond)
	release()

	got := []domain.PollResult{<-results, <-results}
	assert.ElementsMatch(t, []domain.PollResult{domain.PollUpdated, domain.PollSkipped}, got)
	assert.Equal(t, 2, f.fetcher.Calls())

	require.Len(t, f.archive.observations, 2)
	assert.Equal(t, int64(1_000), f.archive.observations[0].Timestamp)
	assert.Equal(t, int64(1_100), f.archive.observations[1].Timestamp)
	assert.Equal(t, 0, f.archive.observations[1].Value.Cmp(fixed(t, "2")))

	m, err := f.metrics.GetMetrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), m.PollSuccessCount)
	assert.Equal(t, int64(1), m.PollSkipCount)
}

func TestPollerService_ZeroIntervalSameSecond(t *testing.T) {
	f := newPollerFixtureWithInterval(t, true, 0, 0, totalBody("1000000000"), totalBody("3000000000"))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		result, err := f.poller.Poll(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.PollUpdated, result, "poll %d", i)
	}

	require.Len(t, f.archive.observations, 2)
	assert.Equal(t, int64(1_000), f.archive.observations[0].Timestamp)
	assert.Equal(t, int64(1_000), f.archive.observations[1].Timestamp)
	assert.Equal(t, 0, f.archive.observations[0].Value.Cmp(fixed(t, "1")))
	assert.Equal(t, 0, f.archive.observations[1].Value.Cmp(fixed(t, "3")))

	m, err := f.metrics.GetMetrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), m.PollSuccessCount)
	assert.Equal(t, int64(0), m.PollSkipCount)
}
