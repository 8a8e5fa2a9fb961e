// Package lock 题库级互斥，保证同一题库的匹配和持久化串行执行
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrLockLost 持有期间锁的所有权丢失
var ErrLockLost = errors.New("lock ownership lost")

// Lease 已持有的锁，Unlock 可重复调用
type Lease interface {
	Unlock()
	// Err 所有权丢失后返回包装 ErrLockLost 的错误，否则返回 nil
	Err() error
}

// Locker 按 key 加锁，返回的 Lease 必须调用 Unlock
type Locker interface {
	Lock(ctx context.Context, key string) (Lease, error)
}

// LocalLocker 进程内按 key 互斥
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	ch   chan struct{} // 容量为 1，持有即加锁
	refs int
}

var _ Locker = (*LocalLocker)(nil)

// NewLocalLocker 创建进程内锁
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*entry)}
}

// Lock 获取 key 的锁，ctx 结束时放弃等待
func (l *LocalLocker) Lock(ctx context.Context, key string) (Lease, error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}
	return &localLease{release: func() {
		<-e.ch
		l.release(key, e)
	}}, nil
}

// release 没有等待者时回收 key
func (l *LocalLocker) release(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}

// localLease 进程内的锁不会被其他持有者抢占
type localLease struct {
	once    sync.Once
	release func()
}

func (le *localLease) Unlock() { le.once.Do(le.release) }

func (le *localLease) Err() error { return nil }
