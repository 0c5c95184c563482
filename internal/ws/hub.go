package ws

import (
	"encoding/json"
	"sync"

	"chatnow/internal/metrics"

	"github.com/rs/zerolog/log"
)

// sendBuffer 是每个连接的发送队列长度，写满的连接视为慢消费者并被踢出。
const sendBuffer = 256

// Frame 是双向通用的 {"type": ..., "data": ...} 信封。
type Frame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub 管理在线连接和分组，实现 chat.Broadcaster。
// 向 send 写入只在持有读锁时进行，关闭 send 只在持有写锁时进行。
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	groups  map[string]map[string]*Client
	closed  bool
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		groups:  make(map[string]map[string]*Client),
	}
}

// Register 登记连接；Hub 已关闭时返回 false。
func (h *Hub) Register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c.id] = c
	metrics.WsConnections.Inc()
	return true
}

func (h *Hub) JoinGroup(connID, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[connID]
	if !ok {
		return
	}
	members := h.groups[group]
	if members == nil {
		members = make(map[string]*Client)
		h.groups[group] = members
	}
	members[connID] = c
	c.groups[group] = struct{}{}
}

func (h *Hub) EmitToGroup(group, event string, payload any) {
	h.EmitToGroupExcept(group, "", event, payload)
}

func (h *Hub) EmitToGroupExcept(group, except, event string, payload any) {
	b, ok := encode(event, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	var slow []string
	for id, c := range h.groups[group] {
		if id == except {
			continue
		}
		if !c.offer(b) {
			slow = append(slow, id)
		}
	}
	h.mu.RUnlock()
	h.evict(slow)
}

// EmitToGroups 向多个分组的并集投递，同时属于多个分组的连接只收到一次。
func (h *Hub) EmitToGroups(groups []string, event string, payload any) {
	b, ok := encode(event, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	seen := make(map[string]struct{})
	var slow []string
	for _, g := range groups {
		for id, c := range h.groups[g] {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if !c.offer(b) {
				slow = append(slow, id)
			}
		}
	}
	h.mu.RUnlock()
	h.evict(slow)
}

func (h *Hub) EmitToConnection(connID, event string, payload any) {
	b, ok := encode(event, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	c, found := h.clients[connID]
	delivered := !found || c.offer(b)
	h.mu.RUnlock()
	if !delivered {
		h.evict([]string{connID})
	}
}

// Disconnect 从所有分组移除连接并关闭其发送队列，可重复调用。
// 写协程在发完队列中剩余的帧后发送 close 帧并关闭底层连接。
func (h *Hub) Disconnect(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(connID)
}

func (h *Hub) removeLocked(connID string) bool {
	c, ok := h.clients[connID]
	if !ok {
		return false
	}
	delete(h.clients, connID)
	for g := range c.groups {
		if members := h.groups[g]; members != nil {
			delete(members, connID)
			if len(members) == 0 {
				delete(h.groups, g)
			}
		}
	}
	close(c.send)
	metrics.WsConnections.Dec()
	return true
}

func (h *Hub) evict(ids []string) {
	if len(ids) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range ids {
		if h.removeLocked(id) {
			metrics.SlowConsumers.Inc()
			log.Warn().Str("conn_id", id).Msg("evicted slow consumer")
		}
	}
}

// Count 返回当前连接数。
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close 断开所有连接并拒绝新的注册，用于优雅停服。
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id := range h.clients {
		h.removeLocked(id)
	}
}

func encode(event string, payload any) ([]byte, bool) {
	b, err := json.Marshal(Frame{Type: event, Data: payload})
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("encode frame")
		return nil, false
	}
	return b, true
}
