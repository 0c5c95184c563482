package chat

import (
	"sync"
	"time"
)

// RateLimiter 是按连接的固定窗口限流器。
// 窗口从桶自身的 windowStart 起算，不是滑动窗口：跨越窗口边界的突发最多可通过 2*max 条。
type RateLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	buckets map[string]*rateBucket
}

type rateBucket struct {
	count       int
	windowStart time.Time
}

func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	if max <= 0 {
		max = 5
	}
	if window <= 0 {
		window = time.Second
	}
	return &RateLimiter{max: max, window: window, buckets: make(map[string]*rateBucket)}
}

// TryAdmit 判断该连接此刻能否再发送一条消息；被拒绝时不增加计数。
func (rl *RateLimiter) TryAdmit(connID string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[connID]
	if !ok || now.Sub(b.windowStart) > rl.window {
		rl.buckets[connID] = &rateBucket{count: 1, windowStart: now}
		return true
	}
	if b.count >= rl.max {
		return false
	}
	b.count++
	return true
}

// Remove 在断开连接时释放桶，下次消息视为新窗口。
func (rl *RateLimiter) Remove(connID string) {
	rl.mu.Lock()
	delete(rl.buckets, connID)
	rl.mu.Unlock()
}
