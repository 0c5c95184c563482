package chat

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

const (
	maxUsernameRunes = 20
	suffixAttempts   = 5
)

// Presence 是在线用户的权威登记表，保持加入顺序。
type Presence struct {
	mu     sync.RWMutex
	users  map[string]*User
	order  []string
	suffix func() int
}

func NewPresence() *Presence {
	return &Presence{
		users:  make(map[string]*User),
		suffix: func() int { return rand.IntN(1000) },
	}
}

// NormalizeName 去掉首尾空白并截断到 20 个字符，空名返回 ErrEmptyUsername。
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyUsername
	}
	if utf8.RuneCountInString(name) > maxUsernameRunes {
		name = strings.TrimSpace(string([]rune(name)[:maxUsernameRunes]))
	}
	return name, nil
}

// Register 为连接分配不冲突的显示名并登记。重名时追加 "_" 加 [0,1000) 的随机数，
// 只做有限次重抽，不保证绝对唯一。
func (p *Presence) Register(connID, address, desired string, now time.Time) (User, error) {
	name, err := NormalizeName(desired)
	if err != nil {
		return User{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.users[connID]; ok {
		return User{}, ErrAlreadyJoined
	}
	if p.nameTakenLocked(name) {
		base := name
		for i := 0; i < suffixAttempts; i++ {
			name = base + "_" + strconv.Itoa(p.suffix())
			if !p.nameTakenLocked(name) {
				break
			}
		}
	}
	u := &User{ConnID: connID, Username: name, JoinedAt: now, Address: address}
	p.users[connID] = u
	p.order = append(p.order, connID)
	return *u, nil
}

func (p *Presence) nameTakenLocked(name string) bool {
	for _, u := range p.users {
		if u.Username == name {
			return true
		}
	}
	return false
}

// Remove 删除登记并返回被删除的用户；不存在时 ok 为 false。
func (p *Presence) Remove(connID string) (User, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.users[connID]
	if !ok {
		return User{}, false
	}
	delete(p.users, connID)
	for i, id := range p.order {
		if id == connID {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return *u, true
}

func (p *Presence) Get(connID string) (User, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	u, ok := p.users[connID]
	if !ok {
		return User{}, false
	}
	return *u, true
}

// List 按加入顺序返回在线用户。
func (p *Presence) List() []User {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]User, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, *p.users[id])
	}
	return out
}

func (p *Presence) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.users)
}

func (p *Presence) FindByName(name string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, id := range p.order {
		if p.users[id].Username == name {
			return id, true
		}
	}
	return "", false
}

func (p *Presence) OnlineUsers() []OnlineUser {
	users := p.List()
	out := make([]OnlineUser, 0, len(users))
	for _, u := range users {
		out = append(out, OnlineUser{Username: u.Username, JoinedAt: u.JoinedAt})
	}
	return out
}

func (p *Presence) AdminUsers() []AdminUser {
	users := p.List()
	out := make([]AdminUser, 0, len(users))
	for _, u := range users {
		out = append(out, AdminUser{Username: u.Username, JoinedAt: u.JoinedAt, SocketID: u.ConnID})
	}
	return out
}
