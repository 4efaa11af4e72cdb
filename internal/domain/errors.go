package domain

import (
	"errors"
	"fmt"
	"net/url"
)

var (
	// Feed errors
	ErrFetch  = errors.New("failed to fetch market data")
	ErrNoData = errors.New("no price data available")

	// Conversion errors
	ErrInvalidAmount = errors.New("invalid amount")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")

	// Database errors
	ErrDatabaseConnection = errors.New("database connection error")

	// General errors
	ErrInternal = errors.New("internal server error")
)

// FetchError is returned when the market data request fails or its
// response does not carry the expected total.
type FetchError struct {
	URL        string
	StatusCode int
	Response   string
	Err        error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch %s", redactURL(e.URL))
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg + fmt.Sprintf(", response: %q", e.Response)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is makes every FetchError match ErrFetch.
func (e *FetchError) Is(target error) bool {
	return target == ErrFetch
}

// Truncated returns a copy whose Response keeps at most limit bytes.
func (e *FetchError) Truncated(limit int) *FetchError {
	out := *e
	if limit >= 0 && len(out.Response) > limit {
		out.Response = fmt.Sprintf("%s... (%d bytes truncated)", out.Response[:limit], len(out.Response)-limit)
	}
	return &out
}

// NewFetchError creates a fetch error for the given request.
func NewFetchError(rawURL string, statusCode int, body []byte, err error) *FetchError {
	return &FetchError{
		URL:        rawURL,
		StatusCode: statusCode,
		Response:   string(body),
		Err:        err,
	}
}

// redactURL hides the api key query parameter.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	if q.Has("api-key") {
		q.Set("api-key", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// DomainError wraps domain errors with additional context
type DomainError struct {
	Err     error
	Message string
	Code    string
}

func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error with context
func NewDomainError(err error, message, code string) *DomainError {
	return &DomainError{
		Err:     err,
		Message: message,
		Code:    code,
	}
}
