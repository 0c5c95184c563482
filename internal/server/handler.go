package server

import (
	"net/http"
	"time"

	"chatnow/internal/chat"

	"github.com/gin-gonic/gin"
)

// PresenceReader 是 REST 接口需要的只读在线视图。
type PresenceReader interface {
	OnlineCount() int
	OnlineUsers() []chat.OnlineUser
}

// ConnCounter 报告当前 WebSocket 连接数（包含尚未 join 的连接）。
type ConnCounter interface {
	Count() int
}

// Handler 聚合 REST handler，依赖注入在线视图。
type Handler struct {
	presence PresenceReader
	conns    ConnCounter
	now      func() time.Time
}

func NewHandler(presence PresenceReader, conns ConnCounter) *Handler {
	return &Handler{presence: presence, conns: conns, now: time.Now}
}

// Health 返回服务状态和当前在线人数。
func (h *Handler) Health(c *gin.Context) {
	body := gin.H{
		"status":      "ok",
		"timestamp":   h.now().UTC().Format(time.RFC3339Nano),
		"onlineUsers": h.presence.OnlineCount(),
	}
	if h.conns != nil {
		body["connections"] = h.conns.Count()
	}
	c.JSON(http.StatusOK, body)
}

// Stats 返回在线人数和按加入顺序排列的在线用户。
func (h *Handler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"onlineUsers": h.presence.OnlineCount(),
		"users":       h.presence.OnlineUsers(),
	})
}
