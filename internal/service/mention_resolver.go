package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/realtime"

	"github.com/samber/lo"
)

// Target — получатель упоминания.
type Target struct {
	UserID    string
	Name      string
	ChannelID string
	MessageID string
}

// NotificationPayload is the body of notification:new.
type NotificationPayload struct {
	domain.Notification
	SenderName  string `json:"senderName"`
	ChannelName string `json:"channelName"`
	Preview     string `json:"preview"`
}

const previewLength = 140

type MentionResolver struct {
	*core
	pub    Publisher
	mailer Mailer
}

func NewMentionResolver(st Stores, storeTimeout time.Duration, pub Publisher, mailer Mailer) *MentionResolver {
	return &MentionResolver{core: newCore(st, storeTimeout), pub: pub, mailer: mailer}
}

// Resolve maps mention tokens to channel members. Zero matches is not an error.
func (r *MentionResolver) Resolve(ctx context.Context, msg domain.Message) ([]Target, error) {
	if len(msg.Mentions) == 0 {
		return []Target{}, nil
	}
	members, err := fetch(ctx, r.core, "list members", func(ctx context.Context) ([]domain.Member, error) {
		return r.st.Members.List(ctx, msg.ChannelID)
	})
	if err != nil {
		return nil, err
	}
	matched := MatchMembers(members, msg.SenderID, msg.Mentions)
	return lo.Map(matched, func(m domain.Member, _ int) Target {
		return Target{UserID: m.UserID, Name: m.DisplayName, ChannelID: msg.ChannelID, MessageID: msg.ID}
	}), nil
}

// MatchMembers: по каждому токену сначала точное совпадение имени (без учёта регистра),
// иначе совпадение по роли (@admin, @owner, @member). Отправитель исключается.
func MatchMembers(members []domain.Member, senderID string, tokens []string) []domain.Member {
	var out []domain.Member
	for _, tok := range tokens {
		byName := lo.Filter(members, func(m domain.Member, _ int) bool {
			return strings.EqualFold(m.DisplayName, tok)
		})
		if len(byName) > 0 {
			out = append(out, byName...)
			continue
		}
		out = append(out, lo.Filter(members, func(m domain.Member, _ int) bool {
			return strings.EqualFold(string(m.Role), tok)
		})...)
	}
	out = lo.Reject(out, func(m domain.Member, _ int) bool { return m.UserID == senderID })
	return lo.UniqBy(out, func(m domain.Member) string { return m.UserID })
}

// Dispatch creates a notification per target, pushes notification:new to the
// target's personal room and hands a mention email to the mailer.
// Per-target failures are logged and skipped.
func (r *MentionResolver) Dispatch(ctx context.Context, ch domain.Channel, msg domain.Message) (int, error) {
	targets, err := r.Resolve(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("resolve mentions: %w", err)
	}

	sent := 0
	for _, t := range targets {
		n := &domain.Notification{
			UserID:    t.UserID,
			Type:      domain.NotificationMention,
			ChannelID: t.ChannelID,
			MessageID: t.MessageID,
			ActorID:   msg.SenderID,
		}
		if err := r.call(ctx, "create notification", func(ctx context.Context) error {
			return r.st.Notifications.Create(ctx, n)
		}); err != nil {
			slog.Warn("mention notification not stored", "user", t.UserID, "message", msg.ID, "err", err)
			continue
		}
		sent++

		r.pub.Publish(domain.UserRoom(t.UserID), realtime.Event{
			Type: realtime.EventNotificationNew,
			Payload: NotificationPayload{
				Notification: *n,
				SenderName:   msg.SenderName,
				ChannelName:  ch.Name,
				Preview:      preview(msg.Text),
			},
		})
		r.email(ctx, ch, msg, t)
	}
	return sent, nil
}

func (r *MentionResolver) email(ctx context.Context, ch domain.Channel, msg domain.Message, t Target) {
	if r.mailer == nil {
		return
	}
	contact, err := fetch(ctx, r.core, "get contact", func(ctx context.Context) (*domain.Contact, error) {
		return r.st.Users.Contact(ctx, t.UserID)
	})
	if err != nil {
		slog.Warn("no contact for mention email", "user", t.UserID, "err", err)
		return
	}
	if contact.Email == "" {
		return
	}
	name := contact.Name
	if name == "" {
		name = t.Name
	}
	err = r.mailer.SendMention(ctx, domain.MentionEmail{
		RecipientEmail: contact.Email,
		RecipientName:  name,
		SenderName:     msg.SenderName,
		MessageText:    msg.Text,
		ChannelName:    ch.Name,
	})
	if err != nil {
		slog.Warn("mention email failed", "user", t.UserID, "err", err)
	}
}

func preview(text string) string {
	r := []rune(text)
	if len(r) <= previewLength {
		return text
	}
	return string(r[:previewLength]) + "…"
}
