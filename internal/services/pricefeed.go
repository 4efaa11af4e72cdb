package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/bryanjcampbell1/DefiPulseTVL-ALLPriceFeed/internal/domain"
	"github.com/bryanjcampbell1/DefiPulseTVL-ALLPriceFeed/internal/ports"
)

// totalPath locates the aggregate TVL in the market data document.
const totalPath = "data.result.All.total"

// maxDecimals keeps scaled values inside a uint256.
const maxDecimals int32 = 60

// PriceFeedConfig holds the immutable feed settings
type PriceFeedConfig struct {
	// Lookback is the retention horizon in seconds
	Lookback int64
	// MinUpdateInterval is the minimum spacing between successful updates in seconds
	MinUpdateInterval int64
	// Decimals is the fixed-point precision, 0 selects domain.DefaultDecimals
	Decimals int32
}

// PriceFeed polls the total value locked and answers current and historical
// lookups from an in-memory history.
//
// Update calls are serialised internally, reads never wait on the network.
type PriceFeed struct {
	fetcher           ports.MarketDataFetcher
	clock             ports.Clock
	lookback          int64
	minUpdateInterval int64
	decimals          int32
	logger            *slog.Logger

	updateMu sync.Mutex

	mu             sync.RWMutex
	currentPrice   *big.Int
	lastUpdateTime *int64
	history        []domain.Observation
}

// NewPriceFeed creates a new price feed
func NewPriceFeed(
	fetcher ports.MarketDataFetcher,
	clock ports.Clock,
	cfg PriceFeedConfig,
	logger *slog.Logger,
) (*PriceFeed, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("%w: market data fetcher is required", domain.ErrInvalidConfig)
	}
	if clock == nil {
		return nil, fmt.Errorf("%w: clock is required", domain.ErrInvalidConfig)
	}
	if cfg.Lookback <= 0 {
		return nil, fmt.Errorf("%w: lookback must be positive, got %d", domain.ErrInvalidConfig, cfg.Lookback)
	}
	if cfg.MinUpdateInterval < 0 {
		return nil, fmt.Errorf("%w: min update interval must not be negative, got %d", domain.ErrInvalidConfig, cfg.MinUpdateInterval)
	}

	decimals := cfg.Decimals
	if decimals == 0 {
		decimals = domain.DefaultDecimals
	}
	if decimals < 6 || decimals > maxDecimals {
		return nil, fmt.Errorf("%w: decimals must be between 6 and %d, got %d", domain.ErrInvalidConfig, maxDecimals, decimals)
	}

	return &PriceFeed{
		fetcher:           fetcher,
		clock:             clock,
		lookback:          cfg.Lookback,
		minUpdateInterval: cfg.MinUpdateInterval,
		decimals:          decimals,
		logger:            logger.With("component", "price_feed"),
	}, nil
}

// Update fetches the market data and stores a new observation. It is a
// no-op while the previous successful update is younger than the minimum
// update interval.
func (f *PriceFeed) Update(ctx context.Context) error {
	_, _, err := f.UpdateObservation(ctx)
	return err
}

// UpdateObservation behaves like Update and returns the observation stored
// by this call. stored is false when the call was throttled.
func (f *PriceFeed) UpdateObservation(ctx context.Context) (obs domain.Observation, stored bool, err error) {
	f.updateMu.Lock()
	defer f.updateMu.Unlock()

	now := f.clock.Now()

	if last, ok := f.LastUpdateTime(); ok && now < last+f.minUpdateInterval {
		f.logger.Debug("update skipped",
			"now", now,
			"last_update_time", last,
			"min_update_interval", f.minUpdateInterval,
		)
		return domain.Observation{}, false, nil
	}

	body, err := f.fetcher.FetchMarketData(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrFetch) {
			return domain.Observation{}, false, err
		}
		return domain.Observation{}, false, domain.NewFetchError(f.fetcher.URL(), 0, body, err)
	}

	value, err := f.extractValue(body)
	if err != nil {
		return domain.Observation{}, false, err
	}

	obs = domain.NewObservation(now, value)

	f.mu.Lock()
	f.currentPrice = value
	f.lastUpdateTime = &now
	f.history = append(f.history, obs)
	pruned := f.pruneLocked(now)
	size := len(f.history)
	f.mu.Unlock()

	f.logger.Debug("price updated",
		"time", now,
		"value", domain.FormatUnits(value, f.decimals),
		"pruned", pruned,
		"history_size", size,
	)

	return obs.Clone(), true, nil
}

func (f *PriceFeed) extractValue(body []byte) (*big.Int, error) {
	if len(body) == 0 {
		return nil, domain.NewFetchError(f.fetcher.URL(), 0, body, errors.New("empty response"))
	}
	if !gjson.ValidBytes(body) {
		return nil, domain.NewFetchError(f.fetcher.URL(), 0, body, errors.New("response is not valid JSON"))
	}

	total := gjson.GetBytes(body, totalPath)
	if !total.Exists() {
		return nil, domain.NewFetchError(f.fetcher.URL(), 0, body, fmt.Errorf("missing %s", totalPath))
	}
	if total.Type != gjson.Number {
		return nil, domain.NewFetchError(f.fetcher.URL(), 0, body, fmt.Errorf("%s is not a number", totalPath))
	}

	value, err := domain.ScaleTotal(total.Raw, f.decimals)
	if err != nil {
		return nil, domain.NewFetchError(f.fetcher.URL(), 0, body, err)
	}

	return value, nil
}

// pruneLocked drops observations at or before now - lookback.
func (f *PriceFeed) pruneLocked(now int64) int {
	horizon := now - f.lookback

	kept := f.history[:0]
	for _, obs := range f.history {
		if obs.Timestamp > horizon {
			kept = append(kept, obs)
		}
	}

	pruned := len(f.history) - len(kept)
	clear(f.history[len(kept):])
	f.history = kept

	return pruned
}

// CurrentPrice returns the latest value
func (f *PriceFeed) CurrentPrice() (*big.Int, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.currentPrice == nil {
		return nil, false
	}
	return new(big.Int).Set(f.currentPrice), true
}

// HistoricalPrice returns the value of the observation with the largest
// timestamp strictly before t.
func (f *PriceFeed) HistoricalPrice(t int64) (*big.Int, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.lastUpdateTime == nil {
		return nil, false
	}

	var best *domain.Observation
	for i := range f.history {
		obs := &f.history[i]
		if obs.Timestamp < t && (best == nil || obs.Timestamp > best.Timestamp) {
			best = obs
		}
	}

	if best == nil {
		return nil, false
	}
	return new(big.Int).Set(best.Value), true
}

// LastUpdateTime returns the time of the last successful update
func (f *PriceFeed) LastUpdateTime() (int64, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.lastUpdateTime == nil {
		return 0, false
	}
	return *f.lastUpdateTime, true
}

// Observations returns a copy of the retained history in insertion order
func (f *PriceFeed) Observations() []domain.Observation {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]domain.Observation, len(f.history))
	for i, obs := range f.history {
		out[i] = obs.Clone()
	}
	return out
}

// Decimals returns the fixed-point precision
func (f *PriceFeed) Decimals() int32 {
	return f.decimals
}

// Lookback returns the retention horizon in seconds
func (f *PriceFeed) Lookback() int64 {
	return f.lookback
}

// Ensure PriceFeed implements ports.PriceFeed
var _ ports.PriceFeed = (*PriceFeed)(nil)
