package db

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"sync"
)

// AdvisoryLock provides named, non-blocking, cluster-wide mutual exclusion via
// Postgres session advisory locks.
//
// Each acquired lock pins a dedicated connection for its lifetime: session
// locks belong to the connection that took them, so releasing the connection
// (explicitly, or because the holding process died) releases the lock. That
// makes a crashed holder self-healing once its connection is closed.
type AdvisoryLock struct {
	provider DBProvider

	mu    sync.Mutex
	conns map[string]*sql.Conn
}

// NewAdvisoryLock creates an advisory lock manager.
func NewAdvisoryLock(provider DBProvider) *AdvisoryLock {
	return &AdvisoryLock{
		provider: provider,
		conns:    make(map[string]*sql.Conn),
	}
}

// TryLock attempts to take the named lock without blocking. Returns false when
// another session holds it.
func (l *AdvisoryLock) TryLock(ctx context.Context, name string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, held := l.conns[name]; held {
		return false, fmt.Errorf("lock %q already held by this process", name)
	}

	conn, err := l.provider.DB().Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection for lock %q: %w", name, err)
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, LockKey(name)).Scan(&acquired); err != nil {
		_ = conn.Close()
		return false, fmt.Errorf("try advisory lock %q: %w", name, err)
	}
	if !acquired {
		_ = conn.Close()
		return false, nil
	}

	l.conns[name] = conn
	return true, nil
}

// Unlock releases the named lock and its pinned connection. Releasing a lock
// that is not held is a no-op.
func (l *AdvisoryLock) Unlock(ctx context.Context, name string) error {
	l.mu.Lock()
	conn, held := l.conns[name]
	delete(l.conns, name)
	l.mu.Unlock()

	if !held {
		return nil
	}

	_, err := conn.ExecContext(ctx, `SELECT pg_advisory_unlock($1)`, LockKey(name))
	closeErr := conn.Close()
	if err != nil {
		return fmt.Errorf("advisory unlock %q: %w", name, err)
	}
	if closeErr != nil {
		return fmt.Errorf("close lock connection %q: %w", name, closeErr)
	}
	return nil
}

// LockKey maps a lock name to the bigint key Postgres advisory locks use.
// FNV-1a keeps the mapping stable across processes and releases.
func LockKey(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum64())
}
