package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/bryanjcampbell1/DefiPulseTVL-ALLPriceFeed/internal/domain"
	"github.com/bryanjcampbell1/DefiPulseTVL-ALLPriceFeed/internal/ports"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// ObservationRepository implements the ports.ObservationRepository interface
type ObservationRepository struct {
	db *DB
}

// NewObservationRepository creates a new PostgreSQL observation repository
func NewObservationRepository(db *DB) *ObservationRepository {
	return &ObservationRepository{db: db}
}

// Create stores a new observation
func (r *ObservationRepository) Create(ctx context.Context, obs *domain.ArchivedObservation) error {
	if obs.Value == nil {
		return fmt.Errorf("%w: observation value is nil", domain.ErrInvalidAmount)
	}

	query := `
		INSERT INTO observations (timestamp, value, decimals)
		VALUES ($1, $2::numeric, $3)
		RETURNING id, created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		obs.Timestamp,
		obs.Value.String(),
		obs.Decimals,
	).Scan(&obs.ID, &obs.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create observation: %w", err)
	}

	return nil
}

// ListSince returns archived observations with timestamp >= since, oldest first
func (r *ObservationRepository) ListSince(ctx context.Context, since int64, limit int) ([]*domain.ArchivedObservation, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	query := `
		SELECT id, timestamp, value::text, decimals, created_at
		FROM observations
		WHERE timestamp >= $1
		ORDER BY timestamp ASC, id ASC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list observations: %w", err)
	}
	defer rows.Close()

	var observations []*domain.ArchivedObservation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		observations = append(observations, obs)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating observations: %w", err)
	}

	return observations, nil
}

// Count returns total number of archived observations
func (r *ObservationRepository) Count(ctx context.Context) (int64, error) {
	query := `SELECT COUNT(*) FROM observations`

	var count int64
	if err := r.db.Pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count observations: %w", err)
	}

	return count, nil
}

// Prune removes observations older than the given unix time
func (r *ObservationRepository) Prune(ctx context.Context, olderThan int64) (int64, error) {
	query := `DELETE FROM observations WHERE timestamp < $1`

	result, err := r.db.Pool.Exec(ctx, query, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to prune observations: %w", err)
	}

	return result.RowsAffected(), nil
}

// Ping checks if the archive is reachable
func (r *ObservationRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func scanObservation(row pgx.Row) (*domain.ArchivedObservation, error) {
	var obs domain.ArchivedObservation
	var valueStr string

	if err := row.Scan(&obs.ID, &obs.Timestamp, &valueStr, &obs.Decimals, &obs.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan observation: %w", err)
	}

	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse observation value: %w", err)
	}
	obs.Value = value.BigInt()

	return &obs, nil
}

// Ensure ObservationRepository implements ports.ObservationRepository
var _ ports.ObservationRepository = (*ObservationRepository)(nil)
