package ports

import (
	"context"
	"math/big"

	"github.com/bryanjcampbell1/DefiPulseTVL-ALLPriceFeed/internal/domain"
)

// Clock returns the current time in integer unix seconds
type Clock interface {
	Now() int64
}

// MarketDataFetcher defines the contract for fetching the raw market data document
type MarketDataFetcher interface {
	// FetchMarketData performs one GET against the market data endpoint and
	// returns the raw response body
	FetchMarketData(ctx context.Context) ([]byte, error)

	// URL returns the request URL, including the api key
	URL() string
}

// PriceFeed defines the contract consumed by the oracle
type PriceFeed interface {
	// Update fetches and stores a new value unless throttled
	Update(ctx context.Context) error

	// UpdateObservation is Update returning the observation it stored;
	// stored is false when the call was throttled
	UpdateObservation(ctx context.Context) (obs domain.Observation, stored bool, err error)

	// CurrentPrice returns the latest value, ok is false before the first update
	CurrentPrice() (*big.Int, bool)

	// HistoricalPrice returns the value observed most recently before t
	HistoricalPrice(t int64) (*big.Int, bool)

	// LastUpdateTime returns the time of the last successful update
	LastUpdateTime() (int64, bool)

	// Observations returns a copy of the retained history
	Observations() []domain.Observation

	// Decimals returns the fixed-point precision of values
	Decimals() int32

	// Lookback returns the retention horizon in seconds
	Lookback() int64
}
