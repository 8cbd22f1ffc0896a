package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RollRecord is one recorded roll of a cached distribution.
type RollRecord struct {
	ID             uuid.UUID
	DistributionID uuid.UUID
	Value          int
	RolledAt       time.Time
}

// RollRepository records roll history against cached distributions.
type RollRepository struct {
	db *pgxpool.Pool
}

// NewRollRepository creates a RollRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewRollRepository(db *pgxpool.Pool) *RollRepository {
	return &RollRepository{db: db}
}

// Record stores a roll of value against distributionID.
//
// Precondition: distributionID must reference a saved distribution.
// Postcondition: Returns the stored record with ID and RolledAt set.
func (r *RollRepository) Record(ctx context.Context, distributionID uuid.UUID, value int) (RollRecord, error) {
	rec := RollRecord{ID: uuid.New(), DistributionID: distributionID, Value: value}
	err := r.db.QueryRow(ctx, `
		INSERT INTO rolls (id, distribution_id, value)
		VALUES ($1, $2, $3)
		RETURNING rolled_at`,
		rec.ID, distributionID, value,
	).Scan(&rec.RolledAt)
	if err != nil {
		return RollRecord{}, fmt.Errorf("recording roll: %w", err)
	}
	return rec, nil
}

// History returns up to limit rolls of distributionID, newest first.
//
// Precondition: limit > 0.
// Postcondition: Returns a slice (may be empty) or a non-nil error.
func (r *RollRepository) History(ctx context.Context, distributionID uuid.UUID, limit int) ([]RollRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, distribution_id, value, rolled_at
		FROM rolls WHERE distribution_id = $1
		ORDER BY rolled_at DESC, id
		LIMIT $2`,
		distributionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing rolls: %w", err)
	}
	defer rows.Close()

	var out []RollRecord
	for rows.Next() {
		var rec RollRecord
		if err := rows.Scan(&rec.ID, &rec.DistributionID, &rec.Value, &rec.RolledAt); err != nil {
			return nil, fmt.Errorf("scanning roll: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Frequencies returns how many times each value was rolled for distributionID.
func (r *RollRepository) Frequencies(ctx context.Context, distributionID uuid.UUID) (map[int]int64, error) {
	rows, err := r.db.Query(ctx, `
		SELECT value, COUNT(*) FROM rolls
		WHERE distribution_id = $1 GROUP BY value`,
		distributionID,
	)
	if err != nil {
		return nil, fmt.Errorf("counting rolls: %w", err)
	}
	defer rows.Close()

	out := make(map[int]int64)
	for rows.Next() {
		var (
			v int
			n int64
		)
		if err := rows.Scan(&v, &n); err != nil {
			return nil, fmt.Errorf("scanning roll count: %w", err)
		}
		out[v] = n
	}
	return out, rows.Err()
}
