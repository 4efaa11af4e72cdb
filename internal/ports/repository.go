package ports

import (
	"context"

	"github.com/bryanjcampbell1/DefiPulseTVL-ALLPriceFeed/internal/domain"
)

// ObservationRepository defines the contract for the observation archive
type ObservationRepository interface {
	// Create stores a new observation
	Create(ctx context.Context, obs *domain.ArchivedObservation) error

	// ListSince returns archived observations with timestamp >= since, oldest first
	ListSince(ctx context.Context, since int64, limit int) ([]*domain.ArchivedObservation, error)

	// Count returns total number of archived observations
	Count(ctx context.Context) (int64, error)

	// Prune removes observations older than the given unix time
	Prune(ctx context.Context, olderThan int64) (int64, error)

	// Ping checks if the archive is reachable
	Ping(ctx context.Context) error
}
