package service

import (
	"context"
	"log/slog"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

// Mailer доставляет письма об упоминаниях. Транспорт (SMTP, очередь) подключается снаружи.
type Mailer interface {
	SendMention(ctx context.Context, e domain.MentionEmail) error
}

// LogMailer пишет письмо в лог вместо отправки.
type LogMailer struct {
	Logger *slog.Logger
}

func (m LogMailer) SendMention(ctx context.Context, e domain.MentionEmail) error {
	l := m.Logger
	if l == nil {
		l = slog.Default()
	}
	l.InfoContext(ctx, "mention email",
		"to", e.RecipientEmail,
		"recipient", e.RecipientName,
		"sender", e.SenderName,
		"channel", e.ChannelName,
		"text_len", len(e.MessageText),
	)
	return nil
}
