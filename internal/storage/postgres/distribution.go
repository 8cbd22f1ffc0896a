package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/odds/internal/distribution"
)

// ErrDistributionNotFound is returned when no cached distribution matches.
var ErrDistributionNotFound = errors.New("distribution not found")

// DistributionRecord is a cached evaluation of one expression.
type DistributionRecord struct {
	ID           uuid.UUID
	Expression   string
	Distribution distribution.Distribution
	Mean         float64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DistributionRepository persists evaluated distributions keyed by the
// expression's display form. Counts are stored as decimal strings so no
// precision is lost.
type DistributionRepository struct {
	db *pgxpool.Pool
}

// NewDistributionRepository creates a DistributionRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewDistributionRepository(db *pgxpool.Pool) *DistributionRepository {
	return &DistributionRepository{db: db}
}

// encodeCounts returns d's dense counts from Min to Max as decimal strings.
func encodeCounts(d distribution.Distribution) (int, []string) {
	lo, hi := d.Min(), d.Max()
	counts := make([]string, 0, hi-lo+1)
	for v := lo; v <= hi; v++ {
		counts = append(counts, d.Occurrence(v).String())
	}
	return lo, counts
}

func decodeCounts(offset int, counts []string) (distribution.Distribution, error) {
	out := make([]*big.Int, len(counts))
	for i, s := range counts {
		c, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return distribution.Distribution{}, fmt.Errorf("decoding count %d: %q is not an integer", i, s)
		}
		out[i] = c
	}
	return distribution.FromOccurrences(offset, out)
}

// Save stores d under expr, replacing any previous entry for expr.
//
// Precondition: expr must be non-empty; d must have at least one occurrence.
// Postcondition: Returns the stored record; its ID is stable across re-saves.
func (r *DistributionRepository) Save(ctx context.Context, expr string, d distribution.Distribution) (DistributionRecord, error) {
	offset, counts := encodeCounts(d)
	rec := DistributionRecord{Expression: expr, Distribution: d.Clean(), Mean: d.Mean()}
	err := r.db.QueryRow(ctx, `
		INSERT INTO distributions (id, expression, value_offset, counts, mean)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (expression) DO UPDATE
			SET value_offset = EXCLUDED.value_offset,
			    counts       = EXCLUDED.counts,
			    mean         = EXCLUDED.mean,
			    updated_at   = NOW()
		RETURNING id, created_at, updated_at`,
		uuid.New(), expr, offset, counts, rec.Mean,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return DistributionRecord{}, fmt.Errorf("saving distribution %q: %w", expr, err)
	}
	return rec, nil
}

// Get returns the cached distribution for expr.
//
// Postcondition: Returns ErrDistributionNotFound if expr has not been saved.
func (r *DistributionRepository) Get(ctx context.Context, expr string) (DistributionRecord, error) {
	return r.scanOne(ctx, `
		SELECT id, expression, value_offset, counts, mean, created_at, updated_at
		FROM distributions WHERE expression = $1`, expr)
}

func (r *DistributionRepository) scanOne(ctx context.Context, query string, arg any) (DistributionRecord, error) {
	var (
		rec    DistributionRecord
		offset int
		counts []string
	)
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&rec.ID, &rec.Expression, &offset, &counts, &rec.Mean, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DistributionRecord{}, ErrDistributionNotFound
		}
		return DistributionRecord{}, fmt.Errorf("loading distribution: %w", err)
	}
	rec.Distribution, err = decodeCounts(offset, counts)
	if err != nil {
		return DistributionRecord{}, fmt.Errorf("loading distribution %q: %w", rec.Expression, err)
	}
	return rec, nil
}
