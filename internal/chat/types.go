package chat

import (
	"context"
	"time"
)

const (
	PublicRoom = "public-room"
	AdminRoom  = "admin-room"

	adminMessagesLimit = 100
	adminReportsLimit  = 50
	defaultReason      = "No reason provided"
)

// Message 是广播与存储共用的消息实体，广播后不可修改，只能按 ID 删除。
type Message struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Body      string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	RoomID    string    `json:"roomId"`
}

// Report 在创建时冗余保存被举报消息的内容与作者。
type Report struct {
	ID             string    `json:"id"`
	MessageID      string    `json:"message_id"`
	Reason         string    `json:"reason"`
	ReportedBy     string    `json:"reported_by"`
	Time           time.Time `json:"time"`
	MessageContent string    `json:"message_content"`
	MessageAuthor  string    `json:"message_author"`
}

// User 是连接 join 之后的聊天身份。
type User struct {
	ConnID   string
	Username string
	JoinedAt time.Time
	Address  string
}

// OnlineUser 是公开的在线列表投影。
type OnlineUser struct {
	Username string    `json:"username"`
	JoinedAt time.Time `json:"joinedAt"`
}

// AdminUser 额外带上 socketId，供管理端按连接封禁。
type AdminUser struct {
	Username string    `json:"username"`
	JoinedAt time.Time `json:"joinedAt"`
	SocketID string    `json:"socketId"`
}

// Store 是持久化适配器。所有失败只记录日志，不影响实时广播。
type Store interface {
	InsertUser(ctx context.Context, username, connID string) error
	DeleteUser(ctx context.Context, connID string) error
	InsertMessage(ctx context.Context, username, body, room string) (Message, error)
	ListRecentMessages(ctx context.Context, room string, limit int) ([]Message, error)
	DeleteMessage(ctx context.Context, id string) error
	DeleteMessagesInRoom(ctx context.Context, room string) error
	InsertReport(ctx context.Context, r Report) error
	GetMessageByID(ctx context.Context, id string) (Message, error)
	CountMessages(ctx context.Context) (int64, error)
	CountReports(ctx context.Context) (int64, error)
	ListReports(ctx context.Context, limit int) ([]Report, error)
}

// ContentFilter 负责去除活动标记和脏话过滤。
type ContentFilter interface {
	SanitizeMarkup(text string) string
	FilterProfanity(text string) (string, error)
}

// Broadcaster 是房间广播原语，由传输层实现。
type Broadcaster interface {
	JoinGroup(connID, group string)
	EmitToGroup(group, event string, payload any)
	EmitToGroupExcept(group, exceptConnID, event string, payload any)
	EmitToGroups(groups []string, event string, payload any)
	EmitToConnection(connID, event string, payload any)
	Disconnect(connID string)
}

// AdminVerifier 校验共享的管理员密码。
type AdminVerifier interface {
	Verify(password string) bool
}
