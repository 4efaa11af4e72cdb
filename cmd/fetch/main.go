// Command fetch runs a single feed update against the market data API and
// prints the resulting value as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/bryanjcampbell1/DefiPulseTVL-ALLPriceFeed/internal/adapters/defipulse"
	"github.com/bryanjcampbell1/DefiPulseTVL-ALLPriceFeed/internal/clock"
	"github.com/bryanjcampbell1/DefiPulseTVL-ALLPriceFeed/internal/config"
	"github.com/bryanjcampbell1/DefiPulseTVL-ALLPriceFeed/internal/domain"
	"github.com/bryanjcampbell1/DefiPulseTVL-ALLPriceFeed/internal/logging"
	"github.com/bryanjcampbell1/DefiPulseTVL-ALLPriceFeed/internal/services"
)

type result struct {
	Time      int64  `json:"time"`
	Value     string `json:"value"`
	ValueHex  string `json:"value_hex"`
	Formatted string `json:"formatted"`
	Decimals  int32  `json:"decimals"`
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	var apiKey string
	var baseURL string
	var decimals int
	var timeout time.Duration
	var logLevel string

	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&apiKey, "api-key", os.Getenv("DEFIPULSE_API_KEY"), "DeFi Pulse API key")
	fs.StringVar(&baseURL, "base-url", getenv("DEFIPULSE_BASE_URL", "https://data-api.defipulse.com"), "market data API base url")
	fs.IntVar(&decimals, "decimals", getenvInt("FEED_DECIMALS", int(domain.DefaultDecimals)), "fixed-point decimals")
	fs.DurationVar(&timeout, "timeout", 15*time.Second, "request timeout")
	fs.StringVar(&logLevel, "log-level", getenv("LOG_LEVEL", "warn"), "log level")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := logging.New(config.LoggingConfig{Level: logLevel, Format: "text"}, stderr)

	client, err := defipulse.NewClient(apiKey,
		defipulse.WithBaseURL(baseURL),
		defipulse.WithTimeout(timeout),
		defipulse.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("client: %w", err)
	}

	feed, err := services.NewPriceFeed(client, clock.System{}, services.PriceFeedConfig{
		Lookback: 1,
		Decimals: int32(decimals),
	}, logger)
	if err != nil {
		return fmt.Errorf("feed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	obs, _, err := feed.UpdateObservation(ctx)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result{
		Time:      obs.Timestamp,
		Value:     obs.Value.String(),
		ValueHex:  hexutil.EncodeBig(obs.Value),
		Formatted: domain.FormatUnits(obs.Value, feed.Decimals()),
		Decimals:  feed.Decimals(),
	})
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
