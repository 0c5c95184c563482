package store

import (
	"context"
	"errors"

	"chatnow/internal/chat"
	"chatnow/internal/models"

	"github.com/google/uuid"
)

func toMessage(m models.Message) chat.Message {
	return chat.Message{
		ID:        m.ID,
		Username:  m.Username,
		Body:      m.Body,
		Timestamp: m.CreatedAt,
		RoomID:    m.RoomID,
	}
}

func (s *Store) InsertMessage(ctx context.Context, username, body, room string) (chat.Message, error) {
	m := models.Message{
		ID:        uuid.NewString(),
		Username:  username,
		Body:      body,
		RoomID:    room,
		CreatedAt: s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return chat.Message{}, wrap("insert message", err)
	}
	return toMessage(m), nil
}

// ListRecentMessages 返回房间内最近的 limit 条消息，按时间升序。
func (s *Store) ListRecentMessages(ctx context.Context, room string, limit int) ([]chat.Message, error) {
	limit = clamp(limit, 50, 200)

	var msgs []models.Message
	err := s.db.WithContext(ctx).
		Where("room_id = ?", room).
		Order("created_at desc").Order("id desc").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, wrap("list messages", err)
	}

	// 反转为升序
	out := make([]chat.Message, len(msgs))
	for i, m := range msgs {
		out[len(msgs)-1-i] = toMessage(m)
	}
	return out, nil
}

func (s *Store) GetMessageByID(ctx context.Context, id string) (chat.Message, error) {
	var m models.Message
	err := wrap("get message", s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error)
	if errors.Is(err, ErrNotFound) {
		return chat.Message{}, chat.ErrMessageNotFound
	}
	if err != nil {
		return chat.Message{}, err
	}
	return toMessage(m), nil
}

func (s *Store) DeleteMessage(ctx context.Context, id string) error {
	return wrap("delete message", s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Message{}).Error)
}

func (s *Store) DeleteMessagesInRoom(ctx context.Context, room string) error {
	return wrap("clear room", s.db.WithContext(ctx).Where("room_id = ?", room).Delete(&models.Message{}).Error)
}

func (s *Store) CountMessages(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Message{}).Count(&n).Error
	return n, wrap("count messages", err)
}
