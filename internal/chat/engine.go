package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"chatnow/internal/clock"
	"chatnow/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Options 控制引擎的限流与历史消息参数，零值使用默认值。
type Options struct {
	RateLimitMax     int
	RateLimitWindow  time.Duration
	HistoryLimit     int
	MaxMessageLength int
}

func (o Options) withDefaults() Options {
	if o.RateLimitMax <= 0 {
		o.RateLimitMax = 5
	}
	if o.RateLimitWindow <= 0 {
		o.RateLimitWindow = time.Second
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = 50
	}
	if o.MaxMessageLength <= 0 {
		o.MaxMessageLength = 500
	}
	return o
}

type connState int

const (
	stateAnonymous connState = iota + 1
	stateJoined
)

func (s connState) String() string {
	switch s {
	case stateAnonymous:
		return "anonymous"
	case stateJoined:
		return "joined"
	}
	return "unknown"
}

// session 是单个连接的状态机；admin 与主状态正交。
type session struct {
	id      string
	address string
	state   connState
	admin   bool
}

// Engine 是连接控制器：按事件类型分发，编排登记表、限流、禁言封禁、消息管道与广播。
type Engine struct {
	opts     Options
	out      Broadcaster
	store    Store
	filter   ContentFilter
	admin    AdminVerifier
	clock    clock.Clock
	presence *Presence
	limiter  *RateLimiter
	mod      *Moderation
	pipeline *Pipeline

	mu       sync.Mutex
	sessions map[string]*session
}

func NewEngine(out Broadcaster, store Store, filter ContentFilter, admin AdminVerifier, c clock.Clock, opts Options) *Engine {
	if c == nil {
		c = clock.Real()
	}
	opts = opts.withDefaults()
	return &Engine{
		opts:     opts,
		out:      out,
		store:    store,
		filter:   filter,
		admin:    admin,
		clock:    c,
		presence: NewPresence(),
		limiter:  NewRateLimiter(opts.RateLimitMax, opts.RateLimitWindow),
		mod:      NewModeration(c),
		pipeline: NewPipeline(filter, store, c, opts.MaxMessageLength),
		sessions: make(map[string]*session),
	}
}

func (e *Engine) Presence() *Presence { return e.presence }

func (e *Engine) Moderation() *Moderation { return e.mod }

func (e *Engine) OnlineCount() int { return e.presence.Count() }

func (e *Engine) OnlineUsers() []OnlineUser { return e.presence.OnlineUsers() }

// Close 取消所有挂起的定时器。
func (e *Engine) Close() { e.mod.Close() }

// Connect 在任何事件之前校验封禁状态；被封禁的地址收到错误后立即断开。
func (e *Engine) Connect(ctx context.Context, connID, address string) error {
	if e.mod.IsBanned(address) {
		log.Info().Str("conn_id", connID).Str("address", address).Msg("rejected banned address")
		e.fail(connID, ErrBanned)
		return ErrBanned
	}
	e.mu.Lock()
	e.sessions[connID] = &session{id: connID, address: address, state: stateAnonymous}
	e.mu.Unlock()
	log.Debug().Str("conn_id", connID).Str("address", address).Msg("connected")
	return nil
}

func (e *Engine) snapshot(connID string) (session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[connID]
	if !ok {
		return session{}, false
	}
	return *s, true
}

func (e *Engine) update(connID string, f func(s *session)) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[connID]
	if ok {
		f(s)
	}
	return ok
}

// HandleFrame 解码一帧并分发；格式错误只回显一个 error 事件。
func (e *Engine) HandleFrame(ctx context.Context, connID string, raw []byte) {
	ev, err := DecodeEvent(raw)
	if err != nil {
		log.Debug().Err(err).Str("conn_id", connID).Msg("decode frame")
		e.fail(connID, err)
		return
	}
	e.Dispatch(ctx, connID, ev)
}

// Dispatch 是唯一的事件入口；单个 handler 的失败不会影响连接的事件循环。
func (e *Engine) Dispatch(ctx context.Context, connID string, ev Event) {
	s, ok := e.snapshot(connID)
	if !ok {
		log.Debug().Str("conn_id", connID).Str("event", ev.EventType()).Msg("event for unknown connection")
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("conn_id", connID).Str("event", ev.EventType()).Msg("handler panic")
			e.fail(connID, ErrInternal)
		}
	}()

	switch ev := ev.(type) {
	case *JoinEvent:
		e.join(ctx, s, ev)
	case *MessageEvent:
		e.message(ctx, s, ev)
	case *TypingEvent:
		e.typing(s, ev)
	case *ReportEvent:
		e.report(ctx, s, ev)
	case *AdminLoginEvent:
		e.adminLogin(ctx, s, ev)
	case *AdminKickEvent:
		if e.requireAdmin(s, ev) {
			e.adminKick(ctx, ev)
		}
	case *AdminMuteEvent:
		if e.requireAdmin(s, ev) {
			e.adminMute(ev)
		}
	case *AdminUnmuteEvent:
		if e.requireAdmin(s, ev) {
			e.adminUnmute(ev)
		}
	case *AdminBanEvent:
		if e.requireAdmin(s, ev) {
			e.adminBan(ctx, s, ev)
		}
	case *AdminUnbanEvent:
		if e.requireAdmin(s, ev) {
			e.adminUnban(ctx, s, ev)
		}
	case *AdminDeleteEvent:
		if e.requireAdmin(s, ev) {
			e.adminDelete(ctx, s, ev)
		}
	case *AdminClearEvent:
		if e.requireAdmin(s, ev) {
			e.adminClear(ctx, s)
		}
	case *AdminBroadcastEvent:
		if e.requireAdmin(s, ev) {
			e.adminBroadcast(s, ev)
		}
	case *AdminStatsEvent:
		if e.requireAdmin(s, ev) {
			e.out.EmitToConnection(s.id, EvAdminStats, e.stats(ctx))
		}
	case *AdminMessagesEvent:
		if e.requireAdmin(s, ev) {
			e.adminMessages(ctx, s)
		}
	case *AdminReportsEvent:
		if e.requireAdmin(s, ev) {
			e.adminReports(ctx, s)
		}
	default:
		e.fail(s.id, ErrInvalidEvent)
	}
}

func (e *Engine) join(ctx context.Context, s session, ev *JoinEvent) {
	if s.state == stateJoined {
		e.fail(s.id, ErrAlreadyJoined)
		return
	}
	u, err := e.presence.Register(s.id, s.address, ev.Username, e.clock.Now())
	if err != nil {
		e.fail(s.id, err)
		return
	}
	if !e.update(s.id, func(s *session) { s.state = stateJoined }) {
		// 连接在登记期间已断开
		e.presence.Remove(s.id)
		return
	}
	metrics.OnlineUsers.Set(float64(e.presence.Count()))

	if err := e.store.InsertUser(ctx, u.Username, s.id); err != nil {
		e.upstream("insert_user", err, s.id)
	}
	if !e.stillJoined(ctx, s.id) {
		return
	}
	e.out.JoinGroup(s.id, PublicRoom)

	history, err := e.store.ListRecentMessages(ctx, PublicRoom, e.opts.HistoryLimit)
	if err != nil {
		e.upstream("list_recent_messages", err, s.id)
	}
	if history == nil {
		history = []Message{}
	}
	e.out.EmitToConnection(s.id, EvRecentMessages, history)
	e.out.EmitToConnection(s.id, EvJoined, JoinedPayload{Username: u.Username, Room: PublicRoom})
	if !e.stillJoined(ctx, s.id) {
		return
	}
	e.announce(EvUserJoined, u.Username)
	log.Info().Str("conn_id", s.id).Str("username", u.Username).Msg("joined")
}

// stillJoined 在 join 的存储调用之后复查连接：若期间已被踢出或断开，
// 补删刚写入的审计记录，且不再广播 user_joined。
func (e *Engine) stillJoined(ctx context.Context, connID string) bool {
	if _, ok := e.presence.Get(connID); ok {
		return true
	}
	if err := e.store.DeleteUser(ctx, connID); err != nil {
		e.upstream("delete_user", err, connID)
	}
	log.Debug().Str("conn_id", connID).Msg("disconnected during join")
	return false
}

func (e *Engine) message(ctx context.Context, s session, ev *MessageEvent) {
	if s.state != stateJoined {
		e.fail(s.id, ErrNotJoined)
		return
	}
	if e.mod.IsMuted(s.id) {
		metrics.MessagesRejected.WithLabelValues("muted").Inc()
		e.fail(s.id, ErrMuted)
		return
	}
	if !e.limiter.TryAdmit(s.id, e.clock.Now()) {
		metrics.MessagesRejected.WithLabelValues("rate_limited").Inc()
		e.fail(s.id, ErrRateLimited)
		return
	}
	u, ok := e.presence.Get(s.id)
	if !ok {
		e.fail(s.id, ErrNotJoined)
		return
	}
	msg, err := e.pipeline.Process(ctx, ev.Message, u.Username, PublicRoom)
	if err != nil {
		metrics.MessagesRejected.WithLabelValues("empty").Inc()
		e.fail(s.id, err)
		return
	}
	metrics.WsMessagesTotal.Inc()
	e.out.EmitToGroups([]string{PublicRoom, AdminRoom}, EvNewMessage, msg)
}

func (e *Engine) typing(s session, ev *TypingEvent) {
	if s.state != stateJoined {
		return
	}
	u, ok := e.presence.Get(s.id)
	if !ok {
		return
	}
	e.out.EmitToGroupExcept(PublicRoom, s.id, EvUserTyping, TypingPayload{Username: u.Username, IsTyping: ev.IsTyping})
}

func (e *Engine) report(ctx context.Context, s session, ev *ReportEvent) {
	if s.state != stateJoined {
		e.fail(s.id, ErrNotJoined)
		return
	}
	u, ok := e.presence.Get(s.id)
	if !ok {
		e.fail(s.id, ErrNotJoined)
		return
	}
	id := strings.TrimSpace(string(ev.MessageID))
	if id == "" {
		e.fail(s.id, ErrEmptyReportID)
		return
	}
	reason := truncateRunes(strings.TrimSpace(e.filter.SanitizeMarkup(ev.Reason)), e.opts.MaxMessageLength)
	if reason == "" {
		reason = defaultReason
	}

	r := Report{
		ID:             uuid.NewString(),
		MessageID:      id,
		Reason:         reason,
		ReportedBy:     u.Username,
		Time:           e.clock.Now(),
		MessageContent: "Message not found",
		MessageAuthor:  "Unknown",
	}
	m, err := e.store.GetMessageByID(ctx, id)
	switch {
	case err == nil:
		r.MessageContent = m.Body
		r.MessageAuthor = m.Username
	case errors.Is(err, ErrMessageNotFound):
	default:
		e.upstream("get_message", err, s.id)
	}
	if err := e.store.InsertReport(ctx, r); err != nil {
		e.upstream("insert_report", err, s.id)
	}

	e.out.EmitToConnection(s.id, EvReportSubmitted, ReportAck{Success: true, Message: "Report submitted to admin"})
	e.out.EmitToGroup(AdminRoom, EvNewReport, r)
	log.Info().Str("conn_id", s.id).Str("message_id", id).Str("reported_by", u.Username).Msg("message reported")
}

// Disconnect 释放连接的全部状态，可重复调用；只有已加入的连接才会广播离开。
func (e *Engine) Disconnect(ctx context.Context, connID string) {
	e.mu.Lock()
	s, had := e.sessions[connID]
	delete(e.sessions, connID)
	e.mu.Unlock()

	e.limiter.Remove(connID)
	e.mod.Forget(connID)
	e.out.Disconnect(connID)

	u, joined := e.presence.Remove(connID)
	if had && s.admin {
		log.Info().Str("conn_id", connID).Msg("admin disconnected")
	}
	if !joined {
		return
	}
	metrics.OnlineUsers.Set(float64(e.presence.Count()))
	if err := e.store.DeleteUser(ctx, connID); err != nil {
		e.upstream("delete_user", err, connID)
	}
	e.announce(EvUserLeft, u.Username)
	log.Info().Str("conn_id", connID).Str("username", u.Username).Msg("left")
}

func (e *Engine) announce(event, username string) {
	e.out.EmitToGroups([]string{PublicRoom, AdminRoom}, event, PresencePayload{
		Username:    username,
		OnlineCount: e.presence.Count(),
		Users:       e.presence.OnlineUsers(),
	})
}

// fail 向发起连接回显一个 error 事件，只包含固定的提示语；终止性错误随后断开传输层连接。
func (e *Engine) fail(connID string, err error) {
	var ce *Error
	if !errors.As(err, &ce) {
		ce = ErrInternal
	}
	e.out.EmitToConnection(connID, EvError, Notice{Message: ce.Msg})
	if ce.Terminal() {
		e.out.Disconnect(connID)
	}
}

func (e *Engine) upstream(op string, err error, connID string) {
	metrics.StoreErrors.WithLabelValues(op).Inc()
	log.Error().Err(upstreamErr(op, err)).Str("conn_id", connID).Msg("store call failed")
}
