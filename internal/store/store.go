// Package store 基于 gorm 实现 chat.Store，支持 PostgreSQL 与 SQLite。
package store

import (
	"time"

	"chatnow/internal/chat"

	"gorm.io/gorm"
)

// Store 是聊天室的持久化适配器。所有方法都是尽力而为，调用方只记录错误。
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

var _ chat.Store = (*Store)(nil)

func New(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// clamp 把非法或过大的 limit 收敛到 [1, max]。
func clamp(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
