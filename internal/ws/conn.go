package ws

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	readLimit  = 64 << 10
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	writeWait  = 10 * time.Second
)

// Handler 处理连接生命周期和入站帧。同一连接的帧按到达顺序串行调用 HandleFrame。
type Handler interface {
	Connect(ctx context.Context, connID, address string) error
	HandleFrame(ctx context.Context, connID string, raw []byte)
	Disconnect(ctx context.Context, connID string)
}

type Client struct {
	id      string
	address string
	conn    *websocket.Conn
	send    chan []byte
	// groups 由 Hub 的锁保护
	groups map[string]struct{}
}

func newClient(id, address string, conn *websocket.Conn) *Client {
	return &Client{
		id:      id,
		address: address,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		groups:  make(map[string]struct{}),
	}
}

// offer 非阻塞入队，队列已满返回 false。调用方必须持有 Hub 的读锁。
func (c *Client) offer(b []byte) bool {
	select {
	case c.send <- b:
		return true
	default:
		return false
	}
}

// NewUpgrader 只接受来自允许列表的浏览器 Origin；没有 Origin 头的客户端放行。
// 列表包含 "*" 时接受任意来源。
func NewUpgrader(allowed []string) *websocket.Upgrader {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	_, wildcard := set["*"]
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || wildcard {
				return true
			}
			_, ok := set[origin]
			return ok
		},
	}
}

// Serve 升级 HTTP 连接并驱动读写协程，直到连接关闭。
func Serve(h *Hub, handler Handler, upgrader *websocket.Upgrader) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Debug().Err(err).Str("origin", c.GetHeader("Origin")).Msg("websocket upgrade")
			return
		}
		client := newClient(uuid.NewString(), peerAddress(c.Request.RemoteAddr), conn)
		if !h.Register(client) {
			_ = conn.Close()
			return
		}
		go client.writePump()

		// 请求的 context 在 Hijack 之后不再反映连接状态
		ctx := context.WithoutCancel(c.Request.Context())
		if err := handler.Connect(ctx, client.id, client.address); err != nil {
			// handler 已回显错误并断开，写协程负责发完剩余帧后关闭连接
			return
		}
		client.readPump(ctx, handler)
	}
}

// peerAddress 返回 TCP 对端地址（去掉端口）。封禁按它生效，不读取 X-Forwarded-For 等可伪造的请求头。
func peerAddress(remote string) string {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		return remote
	}
	return host
}

func (c *Client) readPump(ctx context.Context, handler Handler) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("conn_id", c.id).Msg("read loop panic")
		}
		handler.Disconnect(ctx, c.id)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("conn_id", c.id).Msg("read")
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		handler.HandleFrame(ctx, c.id, data)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
