package http

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/bryanjcampbell1/DefiPulseTVL-ALLPriceFeed/internal/domain"
	"github.com/bryanjcampbell1/DefiPulseTVL-ALLPriceFeed/internal/ports"
)

// Handler contains all HTTP handlers
type Handler struct {
	feed       ports.PriceFeed
	poller     ports.PollerService
	metricsSvc ports.MetricsService
	archive    ports.ObservationRepository // nil when the archive is disabled
	logger     *slog.Logger
}

// NewHandler creates a new handler. archive may be nil.
func NewHandler(
	feed ports.PriceFeed,
	poller ports.PollerService,
	metricsSvc ports.MetricsService,
	archive ports.ObservationRepository,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		feed:       feed,
		poller:     poller,
		metricsSvc: metricsSvc,
		archive:    archive,
		logger:     logger.With("component", "http_handler"),
	}
}

// Health returns service health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	feedState := domain.FeedUninitialized
	dbStatus := "disabled"

	if _, ok := h.feed.LastUpdateTime(); ok {
		feedState = domain.FeedReady
	} else {
		status = "degraded"
	}

	if h.archive != nil {
		checkCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		dbStatus = "healthy"
		if err := h.archive.Ping(checkCtx); err != nil {
			dbStatus = "unhealthy"
			status = "degraded"
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":   status,
		"feed":     feedState,
		"database": dbStatus,
	})
}

// PriceResponse is a fixed-point value in the API response
type PriceResponse struct {
	Value          string `json:"value"`
	ValueHex       string `json:"value_hex"`
	Formatted      string `json:"formatted"`
	Decimals       int32  `json:"decimals"`
	Time           *int64 `json:"time,omitempty"`
	LastUpdateTime int64  `json:"last_update_time"`
}

func (h *Handler) priceResponse(value *big.Int, lastUpdate int64) PriceResponse {
	return PriceResponse{
		Value:          value.String(),
		ValueHex:       hexutil.EncodeBig(value),
		Formatted:      domain.FormatUnits(value, h.feed.Decimals()),
		Decimals:       h.feed.Decimals(),
		LastUpdateTime: lastUpdate,
	}
}

// GetPrice returns the current value
func (h *Handler) GetPrice(w http.ResponseWriter, r *http.Request) {
	value, ok := h.feed.CurrentPrice()
	if !ok {
		respondErrorWithCode(w, http.StatusServiceUnavailable, "no price data available yet", "NO_DATA")
		return
	}

	lastUpdate, _ := h.feed.LastUpdateTime()
	respondJSON(w, http.StatusOK, h.priceResponse(value, lastUpdate))
}

// GetHistoricalPrice returns the value in effect just before the given time
func (h *Handler) GetHistoricalPrice(w http.ResponseWriter, r *http.Request) {
	t, err := parseTime(r.URL.Query().Get("time"))
	if err != nil {
		respondErrorWithCode(w, http.StatusBadRequest, "time must be a unix timestamp or RFC3339", "INVALID_TIME")
		return
	}

	value, ok := h.feed.HistoricalPrice(t)
	if !ok {
		handleDomainError(w, domain.ErrNoData)
		return
	}

	lastUpdate, _ := h.feed.LastUpdateTime()
	resp := h.priceResponse(value, lastUpdate)
	resp.Time = &t
	respondJSON(w, http.StatusOK, resp)
}

// ObservationItem is one observation in the API response
type ObservationItem struct {
	Timestamp int64  `json:"timestamp"`
	Value     string `json:"value"`
	Formatted string `json:"formatted"`
}

// ListObservations returns the observations retained in the lookback window
func (h *Handler) ListObservations(w http.ResponseWriter, r *http.Request) {
	observations := h.feed.Observations()

	items := make([]ObservationItem, len(observations))
	for i, obs := range observations {
		items[i] = ObservationItem{
			Timestamp: obs.Timestamp,
			Value:     obs.Value.String(),
			Formatted: domain.FormatUnits(obs.Value, h.feed.Decimals()),
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"lookback": h.feed.Lookback(),
		"decimals": h.feed.Decimals(),
		"items":    items,
	})
}

// ListArchivedObservations returns observations from the archive
func (h *Handler) ListArchivedObservations(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		respondErrorWithCode(w, http.StatusNotFound, "observation archive is disabled", "ARCHIVE_DISABLED")
		return
	}

	var since int64
	if sinceParam := r.URL.Query().Get("since"); sinceParam != "" {
		t, err := parseTime(sinceParam)
		if err != nil {
			respondErrorWithCode(w, http.StatusBadRequest, "since must be a unix timestamp or RFC3339", "INVALID_TIME")
			return
		}
		since = t
	}

	limit := 100
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		if l, err := strconv.Atoi(limitParam); err == nil && l > 0 && l <= 1000 {
			limit = l
		}
	}

	archived, err := h.archive.ListSince(r.Context(), since, limit)
	if err != nil {
		h.logger.Error("failed to list archived observations", "error", err)
		handleDomainError(w, domain.NewDomainError(
			errors.Join(domain.ErrDatabaseConnection, err),
			"failed to list archived observations",
			"ARCHIVE_UNAVAILABLE",
		))
		return
	}

	items := make([]ObservationItem, len(archived))
	for i, obs := range archived {
		items[i] = ObservationItem{
			Timestamp: obs.Timestamp,
			Value:     obs.Value.String(),
			Formatted: domain.FormatUnits(obs.Value, obs.Decimals),
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"since": since,
		"items": items,
	})
}

// TriggerUpdate runs one poll cycle immediately
func (h *Handler) TriggerUpdate(w http.ResponseWriter, r *http.Request) {
	result, err := h.poller.Poll(r.Context())
	if err != nil {
		handleDomainError(w, err)
		return
	}

	response := map[string]interface{}{
		"result": result,
	}
	if ts, ok := h.feed.LastUpdateTime(); ok {
		response["last_update_time"] = ts
	}

	respondJSON(w, http.StatusOK, response)
}

// GetStats returns operational metrics
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.metricsSvc.GetMetrics(r.Context())
	if err != nil {
		h.logger.Error("failed to collect metrics", "error", err)
		handleDomainError(w, domain.NewDomainError(
			errors.Join(domain.ErrInternal, err),
			"failed to collect metrics",
			"METRICS_UNAVAILABLE",
		))
		return
	}

	respondJSON(w, http.StatusOK, metrics)
}

// parseTime accepts unix seconds or an RFC3339 timestamp
func parseTime(raw string) (int64, error) {
	if raw == "" {
		return 0, errors.New("empty time")
	}
	if t, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return 0, err
	}
	return t.Unix(), nil
}
