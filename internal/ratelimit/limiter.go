// Package ratelimit реализует ограничение частоты запросов по фиксированному окну.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrRateLimited возвращается, если лимит запросов в текущем окне исчерпан.
var ErrRateLimited = errors.New("rate limit exceeded, try later")

// Policy задаёт лимит запросов на окно для одной точки входа.
type Policy struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Decision содержит результат проверки лимита.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter проверяет и учитывает запрос клиента одной атомарной операцией.
type Limiter interface {
	Allow(ctx context.Context, key string, p Policy) (Decision, error)
}

type window struct {
	start  time.Time
	length time.Duration
	count  int
}

// MemoryLimiter хранит окна в памяти процесса. Проверка и инкремент выполняются под одной блокировкой.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

// NewMemoryLimiter создаёт in-memory лимитер. now == nil означает time.Now.
func NewMemoryLimiter(now func() time.Time) *MemoryLimiter {
	if now == nil {
		now = time.Now
	}
	return &MemoryLimiter{
		windows: make(map[string]*window),
		now:     now,
	}
}

// Allow учитывает запрос клиента key в рамках политики p.
func (l *MemoryLimiter) Allow(_ context.Context, key string, p Policy) (Decision, error) {
	if p.Limit <= 0 || p.Window <= 0 {
		return Decision{Allowed: true}, nil
	}

	now := l.now()
	k := p.Name + ":" + key

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[k]
	if !ok || now.Sub(w.start) >= w.length {
		l.windows[k] = &window{start: now, length: p.Window, count: 1}
		return Decision{Allowed: true, Remaining: p.Limit - 1}, nil
	}

	if w.count >= p.Limit {
		return Decision{Allowed: false, RetryAfter: w.start.Add(w.length).Sub(now)}, nil
	}

	w.count++
	return Decision{Allowed: true, Remaining: p.Limit - w.count}, nil
}

// Sweep удаляет истёкшие окна и возвращает их количество.
func (l *MemoryLimiter) Sweep() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for k, w := range l.windows {
		if now.Sub(w.start) >= w.length {
			delete(l.windows, k)
			removed++
		}
	}
	return removed
}

// Len возвращает число отслеживаемых окон.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
