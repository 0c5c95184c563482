package store

import (
	"context"

	"chatnow/internal/models"

	"github.com/google/uuid"
)

// InsertUser 写入在线用户的审计记录。
func (s *Store) InsertUser(ctx context.Context, username, connID string) error {
	u := models.User{
		ID:       uuid.NewString(),
		Username: username,
		SocketID: connID,
		JoinedAt: s.now(),
	}
	return wrap("insert user", s.db.WithContext(ctx).Create(&u).Error)
}

// DeleteUser 删除该连接的全部用户记录，不存在时不报错。
func (s *Store) DeleteUser(ctx context.Context, connID string) error {
	return wrap("delete user", s.db.WithContext(ctx).Where("socket_id = ?", connID).Delete(&models.User{}).Error)
}
