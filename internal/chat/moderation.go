package chat

import (
	"sort"
	"sync"
	"time"

	"chatnow/internal/clock"
)

// Moderation 保存禁言（按连接）与封禁（按网络地址）状态。
type Moderation struct {
	mu    sync.Mutex
	clock clock.Clock
	gen   uint64
	mutes map[string]*muteEntry
	bans  map[string]time.Time
}

type muteEntry struct {
	gen   uint64
	until time.Time
	timer clock.Timer
}

func NewModeration(c clock.Clock) *Moderation {
	return &Moderation{
		clock: c,
		mutes: make(map[string]*muteEntry),
		bans:  make(map[string]time.Time),
	}
}

func (m *Moderation) IsBanned(address string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.bans[address]
	return ok
}

// Ban 封禁地址，直到显式 Unban；空地址不处理。
func (m *Moderation) Ban(address string) bool {
	if address == "" {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bans[address]; ok {
		return false
	}
	m.bans[address] = m.clock.Now()
	return true
}

func (m *Moderation) Unban(address string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bans[address]; !ok {
		return false
	}
	delete(m.bans, address)
	return true
}

// Bans 返回按地址排序的封禁列表。
func (m *Moderation) Bans() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.bans))
	for addr := range m.bans {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

// Mute 禁言连接。d > 0 时在 d 之后自动解除并调用 onExpire；
// 再次 Mute 会取消旧的定时器。定时器回调会比对 generation，旧定时器不会误解除新的禁言。
func (m *Moderation) Mute(connID string, d time.Duration, onExpire func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.mutes[connID]; ok && old.timer != nil {
		old.timer.Stop()
	}
	m.gen++
	entry := &muteEntry{gen: m.gen}
	m.mutes[connID] = entry
	if d <= 0 {
		return
	}
	entry.until = m.clock.Now().Add(d)
	gen := entry.gen
	entry.timer = m.clock.AfterFunc(d, func() {
		if m.expire(connID, gen) && onExpire != nil {
			onExpire()
		}
	})
}

func (m *Moderation) expire(connID string, gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.mutes[connID]
	if !ok || e.gen != gen {
		return false
	}
	delete(m.mutes, connID)
	return true
}

// Unmute 解除禁言并取消挂起的定时器。
func (m *Moderation) Unmute(connID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.mutes[connID]
	if !ok {
		return false
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	delete(m.mutes, connID)
	return true
}

func (m *Moderation) IsMuted(connID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.mutes[connID]
	return ok
}

// Forget 在连接断开时释放该连接的全部禁言状态。
func (m *Moderation) Forget(connID string) {
	m.Unmute(connID)
}

// Close 取消所有挂起的解除禁言定时器。
func (m *Moderation) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.mutes {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(m.mutes, id)
	}
}
