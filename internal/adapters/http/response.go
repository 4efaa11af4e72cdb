package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bryanjcampbell1/DefiPulseTVL-ALLPriceFeed/internal/domain"
)

// Response helpers for consistent JSON responses

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// respondJSON sends a JSON response with the given status code
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondErrorWithCode sends an error response with an error code
func respondErrorWithCode(w http.ResponseWriter, status int, message, code string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// maxDetailsResponse bounds the upstream body echoed in fetch error details
const maxDetailsResponse = 512

// handleDomainError maps domain errors to HTTP responses. The wrapped
// sentinel picks the status; a DomainError overrides message and code.
func handleDomainError(w http.ResponseWriter, err error) {
	status, resp := errorResponse(err)

	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		if domainErr.Message != "" {
			resp.Error = domainErr.Message
		}
		if domainErr.Code != "" {
			resp.Code = domainErr.Code
		}
	}

	respondJSON(w, status, resp)
}

func errorResponse(err error) (int, ErrorResponse) {
	var fetchErr *domain.FetchError

	switch {
	case errors.As(err, &fetchErr):
		// FetchError.Error redacts the api key
		return http.StatusBadGateway, ErrorResponse{
			Error:   "failed to fetch market data",
			Code:    "FETCH_FAILED",
			Details: fetchErr.Truncated(maxDetailsResponse).Error(),
		}

	case errors.Is(err, domain.ErrFetch):
		return http.StatusBadGateway, ErrorResponse{Error: "failed to fetch market data", Code: "FETCH_FAILED"}

	case errors.Is(err, domain.ErrNoData):
		return http.StatusNotFound, ErrorResponse{Error: "no price data available", Code: "NO_DATA"}

	case errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusBadRequest, ErrorResponse{Error: "invalid amount", Code: "INVALID_AMOUNT"}

	case errors.Is(err, domain.ErrDatabaseConnection):
		return http.StatusServiceUnavailable, ErrorResponse{Error: "database connection error", Code: "DATABASE_ERROR"}

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrorResponse{Error: "request timed out", Code: "TIMEOUT"}

	default:
		// ErrInternal and anything unrecognised
		return http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: "INTERNAL_ERROR"}
	}
}
