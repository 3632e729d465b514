package runlock

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redisClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()}), mr
}

func TestRedisLockMutualExclusion(t *testing.T) {
	client, _ := redisClient(t)
	ctx := context.Background()

	first := ForCampaign(client, nil, "weekly_coliving", time.Minute)
	second := ForCampaign(client, nil, "weekly_coliving", time.Minute)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must not acquire a held lock")

	require.NoError(t, first.Release(ctx))

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockReleaseIsOwnershipChecked(t *testing.T) {
	client, mr := redisClient(t)
	ctx := context.Background()

	first := ForCampaign(client, nil, "weekly_coliving", 50*time.Millisecond)
	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// lock expires and another process takes it
	mr.FastForward(time.Second)
	second := ForCampaign(client, nil, "weekly_coliving", time.Minute)
	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// the stale holder's release must not evict the new owner
	require.NoError(t, first.Release(ctx))
	ok, err = ForCampaign(client, nil, "weekly_coliving", time.Minute).Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDifferentCampaignsDoNotContend(t *testing.T) {
	client, _ := redisClient(t)
	ctx := context.Background()

	ok, err := ForCampaign(client, nil, "weekly_coliving", time.Minute).Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = ForCampaign(client, nil, "monthly_digest", time.Minute).Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAdvisoryLockFallback(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`pg_try_advisory_lock`).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec(`pg_advisory_unlock`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	lock := ForCampaign(nil, db, "weekly_coliving", time.Minute)
	ok, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, lock.Release(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
