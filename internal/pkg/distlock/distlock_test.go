package distlock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestRedisLockExcludes(t *testing.T) {
	ctx := context.Background()
	client, mr := setupRedis(t)

	a := NewRedisLock(client, "sync:drupal", time.Minute)
	b := NewRedisLock(client, "sync:drupal", time.Minute)

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// b does not own the key, so its release is a no-op
	require.NoError(t, b.Release(ctx))
	assert.True(t, mr.Exists("lock:sync:drupal"))

	require.NoError(t, a.Release(ctx))
	assert.False(t, mr.Exists("lock:sync:drupal"))

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockExpiresAndExtends(t *testing.T) {
	ctx := context.Background()
	client, mr := setupRedis(t)

	a := NewRedisLock(client, "job", time.Second)
	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, a.Extend(ctx, time.Minute))
	mr.FastForward(30 * time.Second)
	assert.True(t, mr.Exists("lock:job"))

	mr.FastForward(time.Minute)
	assert.ErrorIs(t, a.Extend(ctx, time.Minute), ErrLocked)
}

func TestRunReturnsErrLocked(t *testing.T) {
	ctx := context.Background()
	client, _ := setupRedis(t)

	held := NewLock(client, nil, "sync", time.Minute)
	ok, err := held.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	called := false
	err = Run(ctx, NewLock(client, nil, "sync", time.Minute), func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrLocked)
	assert.False(t, called)

	require.NoError(t, held.Release(ctx))
	boom := errors.New("boom")
	err = Run(ctx, NewLock(client, nil, "sync", time.Minute), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestRunKeepsRedisLockAlive(t *testing.T) {
	ctx := context.Background()
	client, mr := setupRedis(t)

	err := Run(ctx, NewLock(client, nil, "long-job", 40*time.Millisecond), func(context.Context) error {
		mr.FastForward(30 * time.Millisecond)
		time.Sleep(50 * time.Millisecond)
		mr.FastForward(30 * time.Millisecond)
		assert.True(t, mr.Exists("lock:long-job"))
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists("lock:long-job"))
}

func TestLocalLock(t *testing.T) {
	ctx := context.Background()
	a := NewLock(nil, nil, "local-test", time.Minute)
	b := NewLock(nil, nil, "local-test", time.Minute)

	ok, _ := a.Acquire(ctx)
	assert.True(t, ok)
	ok, _ = b.Acquire(ctx)
	assert.False(t, ok)
	require.NoError(t, b.Release(ctx))
	ok, _ = b.Acquire(ctx)
	assert.False(t, ok, "release by a non-owner keeps the lock")

	require.NoError(t, a.Release(ctx))
	ok, _ = b.Acquire(ctx)
	assert.True(t, ok)
	require.NoError(t, b.Release(ctx))
}

func TestPGAdvisoryLock(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()

	l := NewPGAdvisoryLock(db, "sync")
	mock.ExpectQuery(`SELECT pg_try_advisory_lock\(\$1\)`).
		WithArgs(l.lockID).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec(`SELECT pg_advisory_unlock\(\$1\)`).
		WithArgs(l.lockID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := l.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, l.Release(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}
