package chat

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"
)

type emit struct {
	kind    string // group, except, groups, conn
	target  string
	groups  []string
	except  string
	event   string
	payload any
}

type fakeOut struct {
	mu           sync.Mutex
	emits        []emit
	groups       map[string]map[string]bool
	disconnected map[string]int
}

func newFakeOut() *fakeOut {
	return &fakeOut{groups: make(map[string]map[string]bool), disconnected: make(map[string]int)}
}

func (f *fakeOut) JoinGroup(connID, group string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.groups[group] == nil {
		f.groups[group] = make(map[string]bool)
	}
	f.groups[group][connID] = true
}

func (f *fakeOut) EmitToGroup(group, event string, payload any) {
	f.record(emit{kind: "group", target: group, event: event, payload: payload})
}

func (f *fakeOut) EmitToGroupExcept(group, except, event string, payload any) {
	f.record(emit{kind: "except", target: group, except: except, event: event, payload: payload})
}

func (f *fakeOut) EmitToGroups(groups []string, event string, payload any) {
	f.record(emit{kind: "groups", groups: append([]string(nil), groups...), event: event, payload: payload})
}

func (f *fakeOut) EmitToConnection(connID, event string, payload any) {
	f.record(emit{kind: "conn", target: connID, event: event, payload: payload})
}

func (f *fakeOut) Disconnect(connID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected[connID]++
	for _, members := range f.groups {
		delete(members, connID)
	}
}

func (f *fakeOut) record(e emit) {
	f.mu.Lock()
	f.emits = append(f.emits, e)
	f.mu.Unlock()
}

func (f *fakeOut) inGroup(connID, group string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.groups[group][connID]
}

// events 返回事件名为 event 的全部记录。
func (f *fakeOut) events(event string) []emit {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []emit
	for _, e := range f.emits {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

// toConn 返回直接发给 connID 的事件。
func (f *fakeOut) toConn(connID, event string) []emit {
	var out []emit
	for _, e := range f.events(event) {
		if e.kind == "conn" && e.target == connID {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeOut) reset() {
	f.mu.Lock()
	f.emits = nil
	f.mu.Unlock()
}

var errStoreDown = errors.New("store down")

type fakeStore struct {
	mu       sync.Mutex
	clock    func() time.Time
	seq      int
	users    map[string]string
	messages []Message
	reports  []Report
	fail     bool
	// afterInsertUser 在 InsertUser 写入之后、不持锁时调用
	afterInsertUser func(connID string)
}

func newFakeStore(now func() time.Time) *fakeStore {
	return &fakeStore{clock: now, users: make(map[string]string)}
}

func (s *fakeStore) setFail(v bool) {
	s.mu.Lock()
	s.fail = v
	s.mu.Unlock()
}

func (s *fakeStore) InsertUser(_ context.Context, username, connID string) error {
	s.mu.Lock()
	if s.fail {
		s.mu.Unlock()
		return errStoreDown
	}
	s.users[connID] = username
	hook := s.afterInsertUser
	s.mu.Unlock()
	if hook != nil {
		hook(connID)
	}
	return nil
}

func (s *fakeStore) userCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

func (s *fakeStore) DeleteUser(_ context.Context, connID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errStoreDown
	}
	delete(s.users, connID)
	return nil
}

func (s *fakeStore) InsertMessage(_ context.Context, username, body, room string) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return Message{}, errStoreDown
	}
	s.seq++
	m := Message{ID: strconv.Itoa(s.seq), Username: username, Body: body, Timestamp: s.clock(), RoomID: room}
	s.messages = append(s.messages, m)
	return m, nil
}

func (s *fakeStore) ListRecentMessages(_ context.Context, room string, limit int) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, errStoreDown
	}
	var out []Message
	for _, m := range s.messages {
		if m.RoomID == room {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *fakeStore) DeleteMessage(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errStoreDown
	}
	for i, m := range s.messages {
		if m.ID == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			break
		}
	}
	return nil
}

func (s *fakeStore) DeleteMessagesInRoom(_ context.Context, room string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errStoreDown
	}
	kept := s.messages[:0]
	for _, m := range s.messages {
		if m.RoomID != room {
			kept = append(kept, m)
		}
	}
	s.messages = kept
	return nil
}

func (s *fakeStore) InsertReport(_ context.Context, r Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errStoreDown
	}
	s.reports = append(s.reports, r)
	return nil
}

func (s *fakeStore) GetMessageByID(_ context.Context, id string) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return Message{}, errStoreDown
	}
	for _, m := range s.messages {
		if m.ID == id {
			return m, nil
		}
	}
	return Message{}, ErrMessageNotFound
}

func (s *fakeStore) CountMessages(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return 0, errStoreDown
	}
	return int64(len(s.messages)), nil
}

func (s *fakeStore) CountReports(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return 0, errStoreDown
	}
	return int64(len(s.reports)), nil
}

func (s *fakeStore) ListReports(_ context.Context, limit int) ([]Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, errStoreDown
	}
	out := make([]Report, 0, len(s.reports))
	for i := len(s.reports) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.reports[i])
	}
	return out, nil
}

// fakeFilter 去掉尖括号标签，并把 "darn" 替换为星号。
type fakeFilter struct {
	failProfanity bool
}

func (fakeFilter) SanitizeMarkup(text string) string {
	var b strings.Builder
	depth := 0
	for _, r := range text {
		switch {
		case r == '<':
			depth++
		case r == '>' && depth > 0:
			depth--
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (f fakeFilter) FilterProfanity(text string) (string, error) {
	if f.failProfanity {
		return "", errors.New("filter broken")
	}
	return strings.ReplaceAll(text, "darn", "****"), nil
}

type staticVerifier string

func (v staticVerifier) Verify(password string) bool { return password == string(v) }
