package postgres_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/odds/internal/dice"
	"github.com/cory-johannsen/odds/internal/distribution"
	"github.com/cory-johannsen/odds/internal/storage/postgres"
	"github.com/cory-johannsen/odds/internal/testutil"
)

func uniqueExpr(base string) string {
	return fmt.Sprintf("%s + %d", base, time.Now().UnixNano()%1_000_000)
}

func evaluate(t testing.TB, expr string) distribution.Distribution {
	t.Helper()
	d, err := dice.NewEvaluator(dice.DefaultMaxCombinations).Distribution(dice.MustParse(expr))
	require.NoError(t, err)
	return d
}

func TestDistributionRepository_SaveAndGet(t *testing.T) {
	repo := postgres.NewDistributionRepository(testutil.NewPool(t))
	ctx := context.Background()

	d := evaluate(t, "4d6kh3")
	saved, err := repo.Save(ctx, "4d6kh3", d)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, saved.ID)
	assert.False(t, saved.CreatedAt.IsZero())

	got, err := repo.Get(ctx, "4d6kh3")
	require.NoError(t, err)
	assert.Equal(t, saved.ID, got.ID)
	assert.True(t, got.Distribution.Equal(d), "got %s", got.Distribution)
	assert.InDelta(t, d.Mean(), got.Mean, 1e-12)
}

func TestDistributionRepository_SaveIsUpsert(t *testing.T) {
	pool := testutil.NewPool(t)
	repo := postgres.NewDistributionRepository(pool)
	ctx := context.Background()

	first, err := repo.Save(ctx, "x", evaluate(t, "1d4"))
	require.NoError(t, err)
	second, err := repo.Save(ctx, "x", evaluate(t, "1d6"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	got, err := repo.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, 6, got.Distribution.Max())

	var n int64
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM distributions WHERE expression = 'x'`).Scan(&n))
	assert.Equal(t, int64(1), n)
}

func TestDistributionRepository_HugeCountsSurvive(t *testing.T) {
	repo := postgres.NewDistributionRepository(testutil.NewPool(t))
	ctx := context.Background()

	// Thirty summed d20 terms: 20^30 ways, well past int64.
	expr := strings.Repeat("d20 + ", 29) + "d20"
	d := evaluate(t, expr)
	_, err := repo.Save(ctx, expr, d)
	require.NoError(t, err)
	got, err := repo.Get(ctx, expr)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Distribution.Total().Cmp(d.Total()))
	assert.True(t, got.Distribution.Equal(d))
}

func TestDistributionRepository_NotFound(t *testing.T) {
	repo := postgres.NewDistributionRepository(testutil.NewPool(t))
	_, err := repo.Get(context.Background(), "never saved")
	assert.ErrorIs(t, err, postgres.ErrDistributionNotFound)
}

func TestRollRepository_HistoryAndFrequencies(t *testing.T) {
	pool := testutil.NewPool(t)
	dists := postgres.NewDistributionRepository(pool)
	rolls := postgres.NewRollRepository(pool)
	ctx := context.Background()

	rec, err := dists.Save(ctx, "1d4", evaluate(t, "1d4"))
	require.NoError(t, err)
	for _, v := range []int{1, 3, 3, 4} {
		_, err := rolls.Record(ctx, rec.ID, v)
		require.NoError(t, err)
	}

	history, err := rolls.History(ctx, rec.ID, 3)
	require.NoError(t, err)
	assert.Len(t, history, 3)

	freq, err := rolls.Frequencies(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, map[int]int64{1: 1, 3: 2, 4: 1}, freq)

	_, err = pool.Exec(ctx, `DELETE FROM distributions WHERE expression = $1`, "1d4")
	require.NoError(t, err)
	history, err = rolls.History(ctx, rec.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, history, "rolls cascade with their distribution")
}

func TestRollRepository_UnknownDistribution(t *testing.T) {
	rolls := postgres.NewRollRepository(testutil.NewPool(t))
	_, err := rolls.Record(context.Background(), uuid.New(), 3)
	assert.Error(t, err)
}

func TestPropertyDistributionRepository_RoundTrip(t *testing.T) {
	repo := postgres.NewDistributionRepository(testutil.NewPool(t))
	ctx := context.Background()
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 5).Draw(rt, "n")
		faces := rapid.IntRange(1, 12).Draw(rt, "faces")
		mod := rapid.IntRange(-20, 20).Draw(rt, "mod")
		expr := fmt.Sprintf("%dd%d + %d", n, faces, mod)
		d := evaluate(t, expr)

		key := uniqueExpr(expr)
		_, err := repo.Save(ctx, key, d)
		require.NoError(rt, err)
		got, err := repo.Get(ctx, key)
		require.NoError(rt, err)
		assert.True(rt, got.Distribution.Equal(d))
	})
}
