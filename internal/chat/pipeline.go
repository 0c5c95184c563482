package chat

import (
	"context"
	"strings"
	"unicode/utf8"

	"chatnow/internal/clock"
	"chatnow/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Pipeline 对每条被接受的消息依次执行：判空、去除活动标记、截断、脏话过滤、持久化。
// 过滤和存储失败只降级，不阻塞实时广播。
type Pipeline struct {
	filter ContentFilter
	store  Store
	clock  clock.Clock
	maxLen int
}

func NewPipeline(filter ContentFilter, store Store, c clock.Clock, maxLen int) *Pipeline {
	if maxLen <= 0 {
		maxLen = 500
	}
	return &Pipeline{filter: filter, store: store, clock: c, maxLen: maxLen}
}

// Process 返回可直接广播的消息；只有校验失败才返回错误。
func (p *Pipeline) Process(ctx context.Context, raw, author, room string) (Message, error) {
	if strings.TrimSpace(raw) == "" {
		return Message{}, ErrEmptyMessage
	}
	text := truncateRunes(strings.TrimSpace(p.filter.SanitizeMarkup(raw)), p.maxLen)
	if text == "" {
		return Message{}, ErrEmptyMessage
	}
	if filtered, err := p.filter.FilterProfanity(text); err != nil {
		log.Warn().Err(err).Str("username", author).Msg("profanity filter failed, passing sanitized text")
	} else {
		text = filtered
	}

	msg, err := p.persist(ctx, author, text, room)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("insert_message").Inc()
		log.Error().Err(err).Str("username", author).Str("message_id", msg.ID).Msg("persist message, using local id")
	}
	return msg, nil
}

// persist 总是返回可用的 Message：存储失败时使用本地生成的 ID 与当前时间。
func (p *Pipeline) persist(ctx context.Context, author, text, room string) (Message, error) {
	saved, err := p.store.InsertMessage(ctx, author, text, room)
	if err == nil && saved.ID != "" {
		if saved.Timestamp.IsZero() {
			saved.Timestamp = p.clock.Now()
		}
		return saved, nil
	}
	if err == nil {
		err = upstreamErr("insert message", errEmptyID)
	} else {
		err = upstreamErr("insert message", err)
	}
	return Message{
		ID:        uuid.NewString(),
		Username:  author,
		Body:      text,
		Timestamp: p.clock.Now(),
		RoomID:    room,
	}, err
}

type constErr string

func (e constErr) Error() string { return string(e) }

const errEmptyID = constErr("store returned empty id")

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
