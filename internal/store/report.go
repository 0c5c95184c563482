package store

import (
	"context"

	"chatnow/internal/chat"
	"chatnow/internal/models"

	"github.com/google/uuid"
)

func (s *Store) InsertReport(ctx context.Context, r chat.Report) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Time.IsZero() {
		r.Time = s.now()
	}
	row := models.Report{
		ID:             r.ID,
		MessageID:      r.MessageID,
		Reason:         r.Reason,
		ReportedBy:     r.ReportedBy,
		MessageContent: r.MessageContent,
		MessageAuthor:  r.MessageAuthor,
		CreatedAt:      r.Time,
	}
	return wrap("insert report", s.db.WithContext(ctx).Create(&row).Error)
}

// ListReports 返回最新的 limit 条举报，按时间倒序。
func (s *Store) ListReports(ctx context.Context, limit int) ([]chat.Report, error) {
	limit = clamp(limit, 50, 200)

	var rows []models.Report
	if err := s.db.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, wrap("list reports", err)
	}
	out := make([]chat.Report, 0, len(rows))
	for _, r := range rows {
		out = append(out, chat.Report{
			ID:             r.ID,
			MessageID:      r.MessageID,
			Reason:         r.Reason,
			ReportedBy:     r.ReportedBy,
			Time:           r.CreatedAt,
			MessageContent: r.MessageContent,
			MessageAuthor:  r.MessageAuthor,
		})
	}
	return out, nil
}

func (s *Store) CountReports(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Report{}).Count(&n).Error
	return n, wrap("count reports", err)
}
