package chat

import (
	"context"
	"strings"
	"time"

	"chatnow/internal/metrics"

	"github.com/rs/zerolog/log"
)

const (
	broadcastPrefix = "📢 ADMIN: "
	// maxMuteDuration 是定时禁言的上限，更大的值按上限处理。
	maxMuteDuration = 365 * 24 * time.Hour
)

func (e *Engine) adminLogin(ctx context.Context, s session, ev *AdminLoginEvent) {
	if e.admin == nil || !e.admin.Verify(ev.Password) {
		log.Warn().Str("conn_id", s.id).Str("address", s.address).Msg("admin login failed")
		e.out.EmitToConnection(s.id, EvAdminAuthenticated, AdminAuthPayload{Success: false, Message: ErrBadPassword.Msg})
		return
	}
	if !e.update(s.id, func(s *session) { s.admin = true }) {
		return
	}
	e.out.JoinGroup(s.id, AdminRoom)
	e.out.EmitToConnection(s.id, EvAdminAuthenticated, AdminAuthPayload{
		Success:     true,
		OnlineCount: e.presence.Count(),
		Users:       e.presence.AdminUsers(),
	})
	e.out.EmitToConnection(s.id, EvAdminStats, e.stats(ctx))
	log.Info().Str("conn_id", s.id).Str("address", s.address).Msg("admin authenticated")
}

// requireAdmin 对每个管理操作都重新校验管理员身份。
func (e *Engine) requireAdmin(s session, ev Event) bool {
	if !s.admin {
		log.Warn().Str("conn_id", s.id).Str("event", ev.EventType()).Msg("admin action without authentication")
		e.fail(s.id, ErrAdminRequired)
		return false
	}
	metrics.AdminActions.WithLabelValues(ev.EventType()).Inc()
	return true
}

// resolveTarget 优先使用在线的 socketId，其次按显示名查找；找不到返回 false。
func (e *Engine) resolveTarget(t Target) (string, bool) {
	if id := strings.TrimSpace(t.SocketID); id != "" {
		if _, ok := e.snapshot(id); ok {
			return id, true
		}
	}
	if name := strings.TrimSpace(t.Username); name != "" {
		return e.presence.FindByName(name)
	}
	return "", false
}

func (e *Engine) adminKick(ctx context.Context, ev *AdminKickEvent) {
	target, ok := e.resolveTarget(ev.Target)
	if !ok {
		return
	}
	e.out.EmitToConnection(target, EvKicked, Notice{Message: "You have been kicked by admin"})
	log.Info().Str("conn_id", target).Msg("kicked by admin")
	e.Disconnect(ctx, target)
}

func (e *Engine) adminMute(ev *AdminMuteEvent) {
	target, ok := e.resolveTarget(ev.Target)
	if !ok {
		return
	}
	secs := ev.Duration
	if secs > maxMuteDuration.Seconds() {
		secs = maxMuteDuration.Seconds()
	}
	var d time.Duration
	if secs > 0 {
		d = time.Duration(secs * float64(time.Second))
	} else {
		secs = 0
	}
	e.mod.Mute(target, d, func() {
		log.Info().Str("conn_id", target).Msg("mute expired")
		e.out.EmitToConnection(target, EvUnmuted, Notice{Message: "You have been unmuted"})
	})
	e.out.EmitToConnection(target, EvMuted, MutedPayload{Message: "You have been muted by admin", Duration: secs})
	log.Info().Str("conn_id", target).Dur("duration", d).Msg("muted by admin")
}

func (e *Engine) adminUnmute(ev *AdminUnmuteEvent) {
	target, ok := e.resolveTarget(ev.Target)
	if !ok {
		return
	}
	if e.mod.Unmute(target) {
		e.out.EmitToConnection(target, EvUnmuted, Notice{Message: "You have been unmuted"})
	}
}

func (e *Engine) adminBan(ctx context.Context, s session, ev *AdminBanEvent) {
	target, ok := e.resolveTarget(ev.Target)
	if !ok {
		return
	}
	ts, ok := e.snapshot(target)
	if !ok || ts.address == "" {
		return
	}
	e.mod.Ban(ts.address)
	e.out.EmitToConnection(target, EvBanned, Notice{Message: "You have been banned"})
	log.Info().Str("conn_id", target).Str("address", ts.address).Str("by", s.id).Msg("address banned")
	e.Disconnect(ctx, target)
}

// adminUnban 解除地址封禁，并把最新的统计（含封禁列表）回给管理员。
func (e *Engine) adminUnban(ctx context.Context, s session, ev *AdminUnbanEvent) {
	address := strings.TrimSpace(ev.Address)
	if address == "" {
		return
	}
	if e.mod.Unban(address) {
		log.Info().Str("address", address).Str("by", s.id).Msg("address unbanned")
	}
	e.out.EmitToConnection(s.id, EvAdminStats, e.stats(ctx))
}

func (e *Engine) adminDelete(ctx context.Context, s session, ev *AdminDeleteEvent) {
	id := strings.TrimSpace(string(ev.MessageID))
	if id == "" {
		return
	}
	if err := e.store.DeleteMessage(ctx, id); err != nil {
		e.upstream("delete_message", err, s.id)
	}
	e.out.EmitToGroups([]string{PublicRoom, AdminRoom}, EvMessageDeleted, DeletedPayload{MessageID: id})
	log.Info().Str("message_id", id).Str("by", s.id).Msg("message deleted")
}

func (e *Engine) adminClear(ctx context.Context, s session) {
	if err := e.store.DeleteMessagesInRoom(ctx, PublicRoom); err != nil {
		e.upstream("delete_messages_in_room", err, s.id)
	}
	e.out.EmitToGroups([]string{PublicRoom, AdminRoom}, EvChatCleared, struct{}{})
	log.Info().Str("by", s.id).Msg("chat cleared")
}

func (e *Engine) adminBroadcast(s session, ev *AdminBroadcastEvent) {
	text := strings.TrimSpace(e.filter.SanitizeMarkup(strings.TrimSpace(ev.Message)))
	if text == "" {
		return
	}
	e.out.EmitToGroup(PublicRoom, EvSystemMessage, SystemMessage{
		Type:      "broadcast",
		Message:   broadcastPrefix + text,
		Timestamp: e.clock.Now(),
	})
	log.Info().Str("by", s.id).Str("message", text).Msg("admin broadcast")
}

func (e *Engine) stats(ctx context.Context) AdminStats {
	totalMessages, err := e.store.CountMessages(ctx)
	if err != nil {
		e.upstream("count_messages", err, "")
		totalMessages = 0
	}
	totalReports, err := e.store.CountReports(ctx)
	if err != nil {
		e.upstream("count_reports", err, "")
		totalReports = 0
	}
	return AdminStats{
		OnlineUsers:   e.presence.Count(),
		TotalMessages: totalMessages,
		TotalReports:  totalReports,
		ActiveRooms:   1,
		ServerStatus:  "online",
		Users:         e.presence.AdminUsers(),
		BannedIPs:     e.mod.Bans(),
	}
}

func (e *Engine) adminMessages(ctx context.Context, s session) {
	msgs, err := e.store.ListRecentMessages(ctx, PublicRoom, adminMessagesLimit)
	if err != nil {
		e.upstream("list_recent_messages", err, s.id)
	}
	if msgs == nil {
		msgs = []Message{}
	}
	e.out.EmitToConnection(s.id, EvAdminMessages, msgs)
}

func (e *Engine) adminReports(ctx context.Context, s session) {
	reports, err := e.store.ListReports(ctx, adminReportsLimit)
	if err != nil {
		e.upstream("list_reports", err, s.id)
		reports = nil
	}
	if reports == nil {
		reports = []Report{}
	}
	e.out.EmitToConnection(s.id, EvAdminReports, reports)
}
