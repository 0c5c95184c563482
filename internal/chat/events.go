package chat

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// 服务端下发的事件名。
const (
	EvJoined             = "joined"
	EvRecentMessages     = "recent_messages"
	EvNewMessage         = "new_message"
	EvUserJoined         = "user_joined"
	EvUserLeft           = "user_left"
	EvUserTyping         = "user_typing"
	EvMessageDeleted     = "message_deleted"
	EvChatCleared        = "chat_cleared"
	EvReportSubmitted    = "report_submitted"
	EvNewReport          = "new_report"
	EvSystemMessage      = "system_message"
	EvKicked             = "kicked"
	EvMuted              = "muted"
	EvUnmuted            = "unmuted"
	EvBanned             = "banned"
	EvError              = "error"
	EvAdminAuthenticated = "admin_authenticated"
	EvAdminStats         = "admin_stats"
	EvAdminMessages      = "admin_messages"
	EvAdminReports       = "admin_reports"
)

// Event 是客户端事件的标签联合，由 dispatch 做穷举 type switch。
type Event interface {
	EventType() string
}

// ID 同时接受 JSON 字符串和数字形式的标识。
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// Target 指定管理操作的对象，socketId 优先，其次按用户名查找。
type Target struct {
	SocketID string `json:"socketId"`
	Username string `json:"username"`
}

type JoinEvent struct {
	Username string `json:"username"`
}

type MessageEvent struct {
	Message string `json:"message"`
}

type TypingEvent struct {
	IsTyping bool `json:"isTyping"`
}

type ReportEvent struct {
	MessageID ID     `json:"messageId"`
	Reason    string `json:"reason"`
}

type AdminLoginEvent struct {
	Password string `json:"password"`
}

type AdminKickEvent struct{ Target }

type AdminMuteEvent struct {
	Target
	// Duration 以秒为单位，0 表示不自动解除。
	Duration float64 `json:"duration"`
}

type AdminUnmuteEvent struct{ Target }

type AdminBanEvent struct{ Target }

type AdminUnbanEvent struct {
	Address string `json:"address"`
}

type AdminDeleteEvent struct {
	MessageID ID `json:"messageId"`
}

type AdminClearEvent struct{}

type AdminBroadcastEvent struct {
	Message string `json:"message"`
}

type AdminStatsEvent struct{}

type AdminMessagesEvent struct{}

type AdminReportsEvent struct{}

func (*JoinEvent) EventType() string           { return "join" }
func (*MessageEvent) EventType() string        { return "message" }
func (*TypingEvent) EventType() string         { return "typing" }
func (*ReportEvent) EventType() string         { return "report_message" }
func (*AdminLoginEvent) EventType() string     { return "admin_login" }
func (*AdminKickEvent) EventType() string      { return "admin_kick_user" }
func (*AdminMuteEvent) EventType() string      { return "admin_mute_user" }
func (*AdminUnmuteEvent) EventType() string    { return "admin_unmute_user" }
func (*AdminBanEvent) EventType() string       { return "admin_ban_ip" }
func (*AdminUnbanEvent) EventType() string     { return "admin_unban_ip" }
func (*AdminDeleteEvent) EventType() string    { return "admin_delete_message" }
func (*AdminClearEvent) EventType() string     { return "admin_clear_chat" }
func (*AdminBroadcastEvent) EventType() string { return "admin_broadcast" }
func (*AdminStatsEvent) EventType() string     { return "admin_get_stats" }
func (*AdminMessagesEvent) EventType() string  { return "admin_get_messages" }
func (*AdminReportsEvent) EventType() string   { return "admin_get_reports" }

var eventFactories = map[string]func() Event{
	"join":                 func() Event { return &JoinEvent{} },
	"message":              func() Event { return &MessageEvent{} },
	"typing":               func() Event { return &TypingEvent{} },
	"report_message":       func() Event { return &ReportEvent{} },
	"admin_login":          func() Event { return &AdminLoginEvent{} },
	"admin_kick_user":      func() Event { return &AdminKickEvent{} },
	"admin_mute_user":      func() Event { return &AdminMuteEvent{} },
	"admin_unmute_user":    func() Event { return &AdminUnmuteEvent{} },
	"admin_ban_ip":         func() Event { return &AdminBanEvent{} },
	"admin_unban_ip":       func() Event { return &AdminUnbanEvent{} },
	"admin_delete_message": func() Event { return &AdminDeleteEvent{} },
	"admin_clear_chat":     func() Event { return &AdminClearEvent{} },
	"admin_broadcast":      func() Event { return &AdminBroadcastEvent{} },
	"admin_get_stats":      func() Event { return &AdminStatsEvent{} },
	"admin_get_messages":   func() Event { return &AdminMessagesEvent{} },
	"admin_get_reports":    func() Event { return &AdminReportsEvent{} },
}

type inboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// DecodeEvent 解析 {"type": ..., "data": {...}} 帧。
func DecodeEvent(raw []byte) (Event, error) {
	var f inboundFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, &Error{Kind: ErrValidation, Msg: ErrInvalidEvent.Msg, Err: err}
	}
	factory, ok := eventFactories[f.Type]
	if !ok {
		return nil, &Error{Kind: ErrValidation, Msg: ErrInvalidEvent.Msg, Err: errUnknownType(f.Type)}
	}
	ev := factory()
	if len(f.Data) > 0 && !bytes.Equal(bytes.TrimSpace(f.Data), []byte("null")) {
		if err := json.Unmarshal(f.Data, ev); err != nil {
			return nil, &Error{Kind: ErrValidation, Msg: ErrInvalidEvent.Msg, Err: err}
		}
	}
	return ev, nil
}

type errUnknownType string

func (e errUnknownType) Error() string { return "unknown event type " + strconv.Quote(string(e)) }

type JoinedPayload struct {
	Username string `json:"username"`
	Room     string `json:"room"`
}

type PresencePayload struct {
	Username    string       `json:"username"`
	OnlineCount int          `json:"onlineCount"`
	Users       []OnlineUser `json:"users"`
}

type TypingPayload struct {
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

type DeletedPayload struct {
	MessageID string `json:"messageId"`
}

type ReportAck struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type SystemMessage struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Notice 用于 error、kicked、unmuted、banned 等只带提示语的事件。
type Notice struct {
	Message string `json:"message"`
}

type MutedPayload struct {
	Message  string  `json:"message"`
	Duration float64 `json:"duration,omitempty"`
}

type AdminAuthPayload struct {
	Success     bool        `json:"success"`
	Message     string      `json:"message,omitempty"`
	OnlineCount int         `json:"onlineCount"`
	Users       []AdminUser `json:"users,omitempty"`
}

type AdminStats struct {
	OnlineUsers   int         `json:"onlineUsers"`
	TotalMessages int64       `json:"totalMessages"`
	TotalReports  int64       `json:"totalReports"`
	ActiveRooms   int         `json:"activeRooms"`
	ServerStatus  string      `json:"serverStatus"`
	Users         []AdminUser `json:"users"`
	BannedIPs     []string    `json:"bannedIps"`
}
