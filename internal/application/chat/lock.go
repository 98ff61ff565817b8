package chat

import (
	"context"
	"sync"
	"time"
)

// SessionLocker 会话级串行化：同一会话同时只允许一个轮次
type SessionLocker interface {
	// Acquire 在 wait 内获取锁，ttl 为锁的最长持有时间
	Acquire(ctx context.Context, sessionID string, ttl, wait time.Duration) (release func(), err error)
}

// LocalLocker 进程内按会话加锁，未配置 Redis 时使用
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*localSlot
}

// refs 为持有者与等待者之和，归零时从 map 中移除
type localSlot struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*localSlot)}
}

func (l *LocalLocker) ref(sessionID string) *localSlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[sessionID]
	if !ok {
		s = &localSlot{ch: make(chan struct{}, 1)}
		l.slots[sessionID] = s
	}
	s.refs++
	return s
}

func (l *LocalLocker) unref(sessionID string, s *localSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, sessionID)
	}
}

func (l *LocalLocker) Acquire(ctx context.Context, sessionID string, _ time.Duration, wait time.Duration) (func(), error) {
	s := l.ref(sessionID)

	var timeout <-chan time.Time
	if wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(sessionID, s)
		return nil, ctx.Err()
	case <-timeout:
		l.unref(sessionID, s)
		return nil, ErrSessionBusy
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.unref(sessionID, s)
		})
	}, nil
}

// held 返回仍被跟踪的会话数
func (l *LocalLocker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
