// Package distlock provides single-flight locks for jobs that must not run
// twice at once across hosts (the source sync).
package distlock

import (
	"context"
	"database/sql"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned by Run when another holder owns the lock.
var ErrLocked = errors.New("lock held by another process")

// DistLock is the interface for distributed locking. A lock value is owned
// by one caller at a time; create one per job run.
type DistLock interface {
	// Acquire tries to acquire the lock without blocking.
	Acquire(ctx context.Context) (bool, error)
	// Release releases the lock if we still own it.
	Release(ctx context.Context) error
}

// NewLock picks the best available backend: Redis when a client is given,
// else a PostgreSQL advisory lock, else an in-process lock (single host,
// memory database driver).
func NewLock(redisClient *redis.Client, db *sql.DB, key string, ttl time.Duration) DistLock {
	switch {
	case redisClient != nil:
		return NewRedisLock(redisClient, key, ttl)
	case db != nil:
		return NewPGAdvisoryLock(db, key)
	}
	return NewLocalLock(key)
}

// Run acquires l, runs fn and releases l. It returns ErrLocked without
// calling fn when the lock is taken. A Redis lock is kept alive while fn
// runs, so a job may outlast the lock TTL.
func Run(ctx context.Context, l DistLock, fn func(context.Context) error) error {
	ok, err := l.Acquire(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLocked
	}
	defer func() {
		// release must outlive a cancelled job context
		_ = l.Release(context.WithoutCancel(ctx))
	}()
	if rl, ok := l.(*RedisLock); ok && rl.ttl > 0 {
		stop := rl.keepAlive(ctx)
		defer stop()
	}
	return fn(ctx)
}

// PGAdvisoryLock uses pg_try_advisory_lock / pg_advisory_unlock. Advisory
// locks are session-scoped, so the lock pins one pooled connection until
// Release and is dropped by the server if that connection dies.
type PGAdvisoryLock struct {
	db     *sql.DB
	lockID int64
	conn   *sql.Conn
}

// NewPGAdvisoryLock derives a deterministic lock id from key.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &PGAdvisoryLock{db: db, lockID: int64(h.Sum64())}
}

func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, err
	}
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		conn.Close()
		return false, err
	}
	if !acquired {
		conn.Close()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	l.conn.Close()
	l.conn = nil
	return err
}

var local = struct {
	sync.Mutex
	held map[string]bool
}{held: make(map[string]bool)}

// LocalLock is an in-process lock keyed by name. Two LocalLocks with the
// same key exclude each other within one process.
type LocalLock struct {
	key   string
	owned bool
}

// NewLocalLock creates an in-process lock.
func NewLocalLock(key string) *LocalLock { return &LocalLock{key: key} }

func (l *LocalLock) Acquire(context.Context) (bool, error) {
	local.Lock()
	defer local.Unlock()
	if local.held[l.key] {
		return false, nil
	}
	local.held[l.key] = true
	l.owned = true
	return true, nil
}

func (l *LocalLock) Release(context.Context) error {
	local.Lock()
	defer local.Unlock()
	if l.owned {
		delete(local.held, l.key)
		l.owned = false
	}
	return nil
}
