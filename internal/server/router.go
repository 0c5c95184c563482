package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"chatnow/internal/config"
	"chatnow/internal/metrics"
	"chatnow/internal/mw"
	"chatnow/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// Deps 是路由需要的运行时依赖，由 main 组装。
type Deps struct {
	Presence PresenceReader
	Hub      *ws.Hub
	Chat     ws.Handler
	Limiter  *mw.RL
}

// SetupRouter 统一初始化 Gin 中间件、REST API 以及 WebSocket 端点。
func SetupRouter(cfg config.Config, d Deps) *gin.Engine {
	r := gin.New()
	// 不信任任何代理头，ClientIP 即对端地址
	_ = r.SetTrustedProxies(nil)
	r.Use(gin.Recovery())
	r.Use(metrics.GinMiddleware())
	r.Use(mw.CORS(cfg.AllowedOrigins))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limiter := d.Limiter
	if limiter == nil {
		limiter = mw.NewRateLimiter(rate.Every(time.Second/20), 40, 2*time.Minute)
	}
	var conns ConnCounter
	if d.Hub != nil {
		conns = d.Hub
	}
	h := NewHandler(d.Presence, conns)
	api := r.Group("/api")
	// 控制单个 IP+路由的速率，避免被刷爆。
	api.Use(limiter.Middleware())
	api.GET("/health", h.Health)
	api.GET("/stats", h.Stats)

	if d.Hub != nil && d.Chat != nil {
		r.GET("/ws", ws.Serve(d.Hub, d.Chat, ws.NewUpgrader(cfg.AllowedOrigins)))
	}

	if cfg.StaticDir != "" {
		mountStatic(r, cfg.StaticDir)
	}
	return r
}

// mountStatic 提供前端静态文件，未知的无扩展名路径回落到 index.html。
func mountStatic(r *gin.Engine, dir string) {
	index := filepath.Join(dir, "index.html")
	r.NoRoute(func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.Status(http.StatusNotFound)
			return
		}
		rel := strings.TrimPrefix(filepath.Clean("/"+c.Request.URL.Path), "/")
		if strings.HasPrefix(rel, "api/") || rel == "metrics" || rel == "healthz" || rel == "ws" {
			c.Status(http.StatusNotFound)
			return
		}
		if rel == "" {
			c.File(index)
			return
		}
		target := filepath.Join(dir, rel)
		if fi, err := os.Stat(target); err == nil && !fi.IsDir() {
			c.File(target)
			return
		}
		if strings.Contains(filepath.Base(rel), ".") {
			c.Status(http.StatusNotFound)
			return
		}
		c.File(index)
	})
}
