package domain

import (
	"math/big"
	"time"
)

// Observation is one polled TVL value at one point in time.
// Value is a fixed-point integer scaled by 10^decimals.
type Observation struct {
	Timestamp int64    `json:"timestamp"`
	Value     *big.Int `json:"value"`
}

// NewObservation creates an observation holding a copy of value.
func NewObservation(timestamp int64, value *big.Int) Observation {
	return Observation{
		Timestamp: timestamp,
		Value:     new(big.Int).Set(value),
	}
}

// Time returns the observation timestamp as a UTC time.
func (o Observation) Time() time.Time {
	return time.Unix(o.Timestamp, 0).UTC()
}

// Clone returns a deep copy of the observation.
func (o Observation) Clone() Observation {
	return NewObservation(o.Timestamp, o.Value)
}

// ArchivedObservation is an observation stored in the archive
type ArchivedObservation struct {
	ID        int64     `json:"id"`
	Timestamp int64     `json:"timestamp"`
	Value     *big.Int  `json:"value"`
	Decimals  int32     `json:"decimals"`
	CreatedAt time.Time `json:"created_at"`
}

// FeedState describes whether the feed has produced data yet
type FeedState string

const (
	FeedUninitialized FeedState = "uninitialized"
	FeedReady         FeedState = "ready"
)

// PollResult describes the outcome of one poll cycle
type PollResult string

const (
	PollUpdated PollResult = "updated"
	PollSkipped PollResult = "skipped"
	PollFailed  PollResult = "failed"
)

// Metrics represents operational metrics
type Metrics struct {
	Uptime           float64    `json:"uptime_seconds"`
	FeedState        FeedState  `json:"feed_state"`
	HistorySize      int        `json:"history_size"`
	LastUpdateTime   *int64     `json:"last_update_time,omitempty"`
	LastPollTime     *time.Time `json:"last_poll_time,omitempty"`
	LastPollDuration float64    `json:"last_poll_duration_ms"`
	PollSuccessCount int64      `json:"poll_success_count"`
	PollErrorCount   int64      `json:"poll_error_count"`
	PollSkipCount    int64      `json:"poll_skip_count"`
	ArchivedCount    int64      `json:"archived_observations"`
	DatabaseStatus   string     `json:"database_status"`
}
