package mw

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type keyLimiter struct {
	lim *rate.Limiter
	ts  time.Time
}

// RL 是按 IP+路由的令牌桶限速器，闲置超过 ttl 的桶由后台协程回收。
// 只用于 REST 接口；聊天消息的限流在 chat.RateLimiter 中按连接进行。
type RL struct {
	mu       sync.Mutex
	m        map[string]*keyLimiter
	r        rate.Limit
	b        int
	ttl      time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

func NewRateLimiter(r rate.Limit, burst int, ttl time.Duration) *RL {
	return &RL{m: make(map[string]*keyLimiter), r: r, b: burst, ttl: ttl, stop: make(chan struct{})}
}

func (rl *RL) get(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	kl, ok := rl.m[key]
	if ok {
		kl.ts = now
		return kl.lim
	}
	lim := rate.NewLimiter(rl.r, rl.b)
	rl.m[key] = &keyLimiter{lim: lim, ts: now}
	return lim
}

// sweep 删除 now 之前闲置超过 ttl 的桶。
func (rl *RL) sweep(now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	n := 0
	for k, v := range rl.m {
		if now.Sub(v.ts) > rl.ttl {
			delete(rl.m, k)
			n++
		}
	}
	return n
}

// Start 启动回收协程，直到 Stop 被调用。
func (rl *RL) Start(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-rl.stop:
				return
			case now := <-ticker.C:
				rl.sweep(now)
			}
		}
	}()
}

// Stop 停止回收协程，用于优雅停服，可重复调用。
func (rl *RL) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Middleware 返回基于客户端 IP+路由的限速中间件。
func (rl *RL) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		if !rl.get(clientIP(c.Request.RemoteAddr)+"|"+path, time.Now()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

// clientIP 使用连接的对端地址，不信任代理头。
func clientIP(remote string) string {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		return remote
	}
	return host
}
