package models

import "time"

// User 是在线用户的审计副本，只写不读，不用于恢复在线状态。
type User struct {
	ID       string    `gorm:"primaryKey;size:36"`
	Username string    `gorm:"size:64;not null"`
	SocketID string    `gorm:"index;size:64;not null"`
	JoinedAt time.Time `gorm:"not null"`
}

type Message struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Username  string    `gorm:"size:64;not null"`
	Body      string    `gorm:"column:message;type:text;not null"`
	RoomID    string    `gorm:"index:idx_msg_room_created;size:64;not null"`
	CreatedAt time.Time `gorm:"index:idx_msg_room_created"`
}

// Report 保存举报时消息内容的快照，原消息删除后仍可审核。
type Report struct {
	ID             string    `gorm:"primaryKey;size:36"`
	MessageID      string    `gorm:"index;size:64;not null"`
	Reason         string    `gorm:"type:text;not null"`
	ReportedBy     string    `gorm:"size:64;not null"`
	MessageContent string    `gorm:"type:text"`
	MessageAuthor  string    `gorm:"size:64"`
	CreatedAt      time.Time `gorm:"index"`
}
