package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/mention"
	"github.com/cwrk-planet/chat-service/internal/presence"
	"github.com/cwrk-planet/chat-service/internal/realtime"

	"github.com/samber/lo"
)

const (
	DefaultMaxMessageLength = 10000
	DefaultMentionTimeout   = 30 * time.Second
	maxEmojiLength          = 32
)

type ChatConfig struct {
	MaxMessageLength int
	StoreTimeout     time.Duration
	MentionTimeout   time.Duration
}

// ChatService — координатор: общий для REST и websocket путь записи и рассылки.
type ChatService struct {
	*core

	hub      Hub
	presence *presence.Tracker
	mentions *MentionResolver
	seq      *sequencer

	maxLen         int
	mentionTimeout time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewChatService(cfg ChatConfig, st Stores, hub Hub, tracker *presence.Tracker, mentions *MentionResolver) *ChatService {
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = DefaultMaxMessageLength
	}
	if cfg.MentionTimeout <= 0 {
		cfg.MentionTimeout = DefaultMentionTimeout
	}
	s := &ChatService{
		core:           newCore(st, cfg.StoreTimeout),
		hub:            hub,
		presence:       tracker,
		mentions:       mentions,
		seq:            newSequencer(),
		maxLen:         cfg.MaxMessageLength,
		mentionTimeout: cfg.MentionTimeout,
	}
	tracker.OnSweep(func(channels []string) {
		for _, id := range channels {
			s.updateTyping(id, func() []domain.TypingUser { return tracker.Typing(id) })
		}
	})
	return s
}

func (s *ChatService) SendMessage(ctx context.Context, who domain.Identity, channelID, text string, parentID *string) (*domain.Message, error) {
	text, err := s.cleanText(text)
	if err != nil {
		return nil, err
	}
	ch, _, err := s.channelForWrite(ctx, who, channelID)
	if err != nil {
		return nil, err
	}
	if parentID != nil {
		parent, err := s.liveMessage(ctx, *parentID)
		if err != nil {
			return nil, fmt.Errorf("parent message: %w", err)
		}
		if parent.ChannelID != ch.ID {
			return nil, fmt.Errorf("%w: parent message belongs to another channel", domain.ErrValidation)
		}
	}

	msg := &domain.Message{
		ChannelID:    ch.ID,
		ParentID:     parentID,
		SenderID:     who.ID,
		SenderName:   who.Name,
		SenderAvatar: who.AvatarURL,
		Text:         text,
		Mentions:     mention.Extract(text),
	}

	unlock := s.seq.lock(ch.ID)
	err = s.call(ctx, "create message", func(ctx context.Context) error {
		return s.st.Messages.Create(ctx, msg)
	})
	if err != nil {
		unlock()
		return nil, err
	}
	msg.Reactions = []domain.ReactionSummary{}
	msg.Attachments = []domain.Attachment{}
	s.hub.Publish(domain.ChannelRoom(ch.ID), realtime.Event{Type: realtime.EventMessageNew, Payload: *msg})
	unlock()

	slog.Debug("message sent", "channel", ch.ID, "message", msg.ID, "sender", who.ID, "mentions", len(msg.Mentions))
	s.resolveMentionsAsync(*ch, *msg)
	return msg, nil
}

func (s *ChatService) EditMessage(ctx context.Context, who domain.Identity, messageID, text string) (*domain.Message, error) {
	text, err := s.cleanText(text)
	if err != nil {
		return nil, err
	}
	msg, err := s.liveMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != who.ID {
		return nil, fmt.Errorf("%w: only the sender can edit a message", domain.ErrForbidden)
	}
	if _, _, err := s.channelForWrite(ctx, who, msg.ChannelID); err != nil {
		return nil, err
	}

	unlock := s.seq.lock(msg.ChannelID)
	defer unlock()

	err = s.call(ctx, "update message", func(ctx context.Context) error {
		return s.st.Messages.UpdateText(ctx, msg.ID, text, mention.Extract(text), s.now().UTC())
	})
	if err != nil {
		return nil, err
	}
	return s.publishUpdated(ctx, msg.ID)
}

// DeleteMessage: мягкое удаление: отправитель или owner/admin канала.
func (s *ChatService) DeleteMessage(ctx context.Context, who domain.Identity, messageID string) error {
	msg, err := s.liveMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != who.ID {
		m, err := s.member(ctx, msg.ChannelID, who.ID)
		if err != nil {
			return err
		}
		if m == nil || !m.Role.CanModerate() {
			return fmt.Errorf("%w: only the sender or a channel moderator can delete a message", domain.ErrForbidden)
		}
	}

	unlock := s.seq.lock(msg.ChannelID)
	defer unlock()

	err = s.call(ctx, "delete message", func(ctx context.Context) error {
		return s.st.Messages.SoftDelete(ctx, msg.ID)
	})
	if err != nil {
		return err
	}
	s.hub.Publish(domain.ChannelRoom(msg.ChannelID), realtime.Event{
		Type:    realtime.EventMessageDeleted,
		Payload: realtime.MessageDeletedPayload{ID: msg.ID, ChannelID: msg.ChannelID},
	})
	slog.Debug("message deleted", "message", msg.ID, "by", who.ID)
	return nil
}

// AddReaction идемпотентен; событие уходит только если реакция действительно добавилась.
func (s *ChatService) AddReaction(ctx context.Context, who domain.Identity, messageID, emoji string) (*domain.ReactionSummary, error) {
	emoji, err := cleanEmoji(emoji)
	if err != nil {
		return nil, err
	}
	msg, err := s.liveMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.channelForWrite(ctx, who, msg.ChannelID); err != nil {
		return nil, err
	}

	unlock := s.seq.lock(msg.ChannelID)
	defer unlock()

	inserted, err := fetch(ctx, s.core, "add reaction", func(ctx context.Context) (bool, error) {
		return s.st.Reactions.Add(ctx, domain.Reaction{MessageID: msg.ID, Emoji: emoji, UserID: who.ID, UserName: who.Name})
	})
	if err != nil {
		return nil, err
	}
	sum, err := fetch(ctx, s.core, "reaction summary", func(ctx context.Context) (*domain.ReactionSummary, error) {
		return s.st.Reactions.Summary(ctx, msg.ID, emoji)
	})
	if err != nil {
		return nil, err
	}
	if inserted {
		s.hub.Publish(domain.ChannelRoom(msg.ChannelID), realtime.Event{
			Type: realtime.EventReactionAdded,
			Payload: realtime.ReactionAddedPayload{
				MessageID: sum.MessageID,
				Emoji:     sum.Emoji,
				Count:     sum.Count,
				Users:     sum.Users,
				UserID:    who.ID,
			},
		})
	}
	return sum, nil
}

// RemoveReaction идемпотентен; удаление несуществующей реакции ничего не публикует.
func (s *ChatService) RemoveReaction(ctx context.Context, who domain.Identity, messageID, emoji string) error {
	emoji, err := cleanEmoji(emoji)
	if err != nil {
		return err
	}
	msg, err := s.liveMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if _, _, err := s.channelForRead(ctx, who, msg.ChannelID); err != nil {
		return err
	}

	unlock := s.seq.lock(msg.ChannelID)
	defer unlock()

	removed, err := fetch(ctx, s.core, "remove reaction", func(ctx context.Context) (bool, error) {
		return s.st.Reactions.Remove(ctx, msg.ID, emoji, who.ID)
	})
	if err != nil {
		return err
	}
	if removed {
		s.hub.Publish(domain.ChannelRoom(msg.ChannelID), realtime.Event{
			Type:    realtime.EventReactionRemoved,
			Payload: realtime.ReactionRemovedPayload{MessageID: msg.ID, Emoji: emoji, UserID: who.ID},
		})
	}
	return nil
}

type AttachmentInput struct {
	FileName    string
	Size        int64
	MimeType    string
	StoragePath string
}

// AddAttachment сохраняет метаданные уже загруженного файла. Прикреплять может только отправитель.
func (s *ChatService) AddAttachment(ctx context.Context, who domain.Identity, messageID string, in AttachmentInput) (*domain.Attachment, error) {
	in.FileName = strings.TrimSpace(in.FileName)
	in.MimeType = strings.TrimSpace(in.MimeType)
	in.StoragePath = strings.TrimSpace(in.StoragePath)
	if in.FileName == "" || in.MimeType == "" || in.StoragePath == "" || in.Size < 0 {
		return nil, fmt.Errorf("%w: attachment needs file name, mime type, storage path and a non-negative size", domain.ErrValidation)
	}
	msg, err := s.liveMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != who.ID {
		return nil, fmt.Errorf("%w: only the sender can attach files", domain.ErrForbidden)
	}
	if _, _, err := s.channelForWrite(ctx, who, msg.ChannelID); err != nil {
		return nil, err
	}

	unlock := s.seq.lock(msg.ChannelID)
	defer unlock()

	att := &domain.Attachment{
		MessageID:   msg.ID,
		FileName:    in.FileName,
		Size:        in.Size,
		MimeType:    in.MimeType,
		StoragePath: in.StoragePath,
		UploadedBy:  who.ID,
	}
	if err := s.call(ctx, "create attachment", func(ctx context.Context) error {
		return s.st.Attachments.Create(ctx, att)
	}); err != nil {
		return nil, err
	}
	if _, err := s.publishUpdated(ctx, msg.ID); err != nil {
		return nil, err
	}
	return att, nil
}

func (s *ChatService) DeleteAttachment(ctx context.Context, who domain.Identity, attachmentID string) error {
	if err := validID("attachment", attachmentID); err != nil {
		return err
	}
	att, err := fetch(ctx, s.core, "get attachment", func(ctx context.Context) (*domain.Attachment, error) {
		return s.st.Attachments.Get(ctx, attachmentID)
	})
	if err != nil {
		return err
	}
	msg, err := s.liveMessage(ctx, att.MessageID)
	if err != nil {
		return err
	}
	if att.UploadedBy != who.ID {
		m, err := s.member(ctx, msg.ChannelID, who.ID)
		if err != nil {
			return err
		}
		if m == nil || !m.Role.CanModerate() {
			return fmt.Errorf("%w: only the uploader or a channel moderator can remove an attachment", domain.ErrForbidden)
		}
	}

	unlock := s.seq.lock(msg.ChannelID)
	defer unlock()

	if err := s.call(ctx, "delete attachment", func(ctx context.Context) error {
		return s.st.Attachments.Delete(ctx, att.ID)
	}); err != nil {
		return err
	}
	_, err = s.publishUpdated(ctx, msg.ID)
	return err
}

func (s *ChatService) GetMessage(ctx context.Context, who domain.Identity, messageID string) (*domain.Message, error) {
	if err := validID("message", messageID); err != nil {
		return nil, err
	}
	msg, err := fetch(ctx, s.core, "get message", func(ctx context.Context) (*domain.Message, error) {
		return s.st.Messages.Get(ctx, messageID)
	})
	if err != nil {
		return nil, err
	}
	if _, _, err := s.channelForRead(ctx, who, msg.ChannelID); err != nil {
		return nil, err
	}
	return msg, nil
}

// ListMessages — страница истории от новых к старым; before берётся из предыдущего ответа.
func (s *ChatService) ListMessages(ctx context.Context, who domain.Identity, channelID, before string, limit int) ([]domain.Message, string, error) {
	if _, _, err := s.channelForRead(ctx, who, channelID); err != nil {
		return nil, "", err
	}
	var next string
	msgs, err := fetch(ctx, s.core, "list messages", func(ctx context.Context) ([]domain.Message, error) {
		out, n, err := s.st.Messages.List(ctx, channelID, before, limit)
		next = n
		return out, err
	})
	if err != nil {
		return nil, "", err
	}
	return msgs, next, nil
}

// StartTyping требует, чтобы пользователь уже был подписан на комнату канала.
func (s *ChatService) StartTyping(ctx context.Context, who domain.Identity, channelID string) error {
	if err := s.typingAllowed(ctx, who, channelID); err != nil {
		return err
	}
	s.updateTyping(channelID, func() []domain.TypingUser {
		return s.presence.StartTyping(channelID, who.ID, who.Name)
	})
	return nil
}

func (s *ChatService) StopTyping(ctx context.Context, who domain.Identity, channelID string) error {
	if err := s.typingAllowed(ctx, who, channelID); err != nil {
		return err
	}
	s.updateTyping(channelID, func() []domain.TypingUser {
		return s.presence.StopTyping(channelID, who.ID)
	})
	return nil
}

func (s *ChatService) Typing(ctx context.Context, who domain.Identity, channelID string) ([]domain.TypingUser, error) {
	if _, _, err := s.channelForRead(ctx, who, channelID); err != nil {
		return nil, err
	}
	return s.presence.Typing(channelID), nil
}

// Connect регистрирует живое соединение; пользователь сразу подписан на свою личную комнату.
func (s *ChatService) Connect(c realtime.Conn) realtime.Handle {
	hd := s.hub.Register(c)
	s.presence.Connect(c.Identity().ID)
	return hd
}

// JoinChannel подписывает соединение на канал. Отказ не раскрывает, существует ли канал.
func (s *ChatService) JoinChannel(ctx context.Context, hd realtime.Handle, channelID string) bool {
	who, ok := s.hub.Identity(hd)
	if !ok || validID("channel", channelID) != nil {
		return false
	}
	room := domain.ChannelRoom(channelID)

	unlock := s.seq.lock("presence:" + who.ID)
	defer unlock()

	wasIn := s.hub.UserInRoom(who.ID, room)
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if !s.hub.JoinChannel(ctx, hd, channelID) {
		return false
	}
	if !wasIn {
		s.hub.Publish(room, realtime.Event{
			Type:    realtime.EventUserOnline,
			Payload: realtime.PresencePayload{UserID: who.ID, UserName: who.Name, ChannelID: channelID},
		})
	}
	return true
}

func (s *ChatService) LeaveChannel(hd realtime.Handle, channelID string) {
	who, ok := s.hub.Identity(hd)
	if !ok {
		return
	}
	room := domain.ChannelRoom(channelID)

	unlock := s.seq.lock("presence:" + who.ID)
	defer unlock()

	s.hub.Leave(hd, room)
	if s.hub.UserInRoom(who.ID, room) {
		return
	}
	s.updateTyping(channelID, func() []domain.TypingUser {
		return s.presence.StopTyping(channelID, who.ID)
	})
	s.publishOffline(who, channelID)
}

// RevokeChannel отписывает все соединения пользователя от канала, к которому у него больше нет доступа:
// снимает его индикатор набора и рассылает user:offline оставшимся.
func (s *ChatService) RevokeChannel(channelID, userID string) {
	unlock := s.seq.lock("presence:" + userID)
	defer unlock()

	evicted := s.hub.LeaveUser(userID, domain.ChannelRoom(channelID))
	typing := lo.ContainsBy(s.presence.Typing(channelID), func(u domain.TypingUser) bool { return u.UserID == userID })
	if typing {
		s.updateTyping(channelID, func() []domain.TypingUser {
			return s.presence.StopTyping(channelID, userID)
		})
	}
	if len(evicted) == 0 {
		return
	}
	who, ok := s.hub.Identity(evicted[0])
	if !ok {
		who = domain.Identity{ID: userID}
	}
	s.publishOffline(who, channelID)
	slog.Debug("channel access revoked", "channel", channelID, "user", userID, "conns", len(evicted))
}

// Disconnect убирает соединение отовсюду, сразу снимает индикаторы набора пользователя
// и рассылает user:offline в каналы, где у него не осталось соединений.
func (s *ChatService) Disconnect(hd realtime.Handle) {
	who, ok := s.hub.Identity(hd)
	if !ok {
		return
	}

	unlock := s.seq.lock("presence:" + who.ID)
	defer unlock()

	rooms := s.hub.Unregister(hd)
	s.presence.Disconnect(who.ID)

	for _, channelID := range s.presence.DropUser(who.ID) {
		s.updateTyping(channelID, func() []domain.TypingUser { return s.presence.Typing(channelID) })
	}
	for _, room := range rooms {
		channelID, ok := domain.ChannelFromRoom(room)
		if !ok || s.hub.UserInRoom(who.ID, room) {
			continue
		}
		s.publishOffline(who, channelID)
	}
	slog.Debug("ws connection cleaned up", "conn", hd, "user", who.ID, "rooms", len(rooms))
}

// Shutdown ждёт фоновую обработку упоминаний. Новые упоминания после вызова не запускаются.
func (s *ChatService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ChatService) resolveMentionsAsync(ch domain.Channel, msg domain.Message) {
	if len(msg.Mentions) == 0 || s.mentions == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		slog.Warn("shutting down, mentions skipped", "message", msg.ID)
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.mentionTimeout)
		defer cancel()

		n, err := s.mentions.Dispatch(ctx, ch, msg)
		if err != nil {
			slog.Warn("mention resolution failed", "message", msg.ID, "err", err)
			return
		}
		slog.Debug("mentions dispatched", "message", msg.ID, "notified", n)
	}()
}

// publishUpdated перечитывает сообщение и рассылает message:updated. Вызывается под локом канала.
func (s *ChatService) publishUpdated(ctx context.Context, messageID string) (*domain.Message, error) {
	msg, err := fetch(ctx, s.core, "get message", func(ctx context.Context) (*domain.Message, error) {
		return s.st.Messages.Get(ctx, messageID)
	})
	if err != nil {
		return nil, err
	}
	s.hub.Publish(domain.ChannelRoom(msg.ChannelID), realtime.Event{Type: realtime.EventMessageUpdated, Payload: *msg})
	return msg, nil
}

// updateTyping меняет список набирающих и рассылает его под локом канала,
// иначе устаревший снимок может уйти последним.
func (s *ChatService) updateTyping(channelID string, change func() []domain.TypingUser) {
	unlock := s.seq.lock("typing:" + channelID)
	defer unlock()
	s.broadcastTyping(channelID, change())
}

// broadcastTyping: каждый получатель видит список без себя.
func (s *ChatService) broadcastTyping(channelID string, users []domain.TypingUser) {
	s.hub.PublishEach(domain.ChannelRoom(channelID), func(to domain.Identity) (realtime.Event, bool) {
		visible := lo.Filter(users, func(u domain.TypingUser, _ int) bool { return u.UserID != to.ID })
		return realtime.Event{
			Type:    realtime.EventTypingUpdate,
			Payload: realtime.TypingUpdatePayload{ChannelID: channelID, Users: visible},
		}, true
	})
}

func (s *ChatService) publishOffline(who domain.Identity, channelID string) {
	s.hub.Publish(domain.ChannelRoom(channelID), realtime.Event{
		Type:    realtime.EventUserOffline,
		Payload: realtime.PresencePayload{UserID: who.ID, UserName: who.Name, ChannelID: channelID},
	})
}

// typingAllowed: соединение пользователя подписано на канал и доступ к каналу всё ещё есть.
func (s *ChatService) typingAllowed(ctx context.Context, who domain.Identity, channelID string) error {
	if err := validID("channel", channelID); err != nil {
		return err
	}
	if !s.hub.UserInRoom(who.ID, domain.ChannelRoom(channelID)) {
		return fmt.Errorf("%w: join the channel first", domain.ErrForbidden)
	}
	_, _, err := s.channelForRead(ctx, who, channelID)
	return err
}

func (s *ChatService) cleanText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty message", domain.ErrValidation)
	}
	if utf8.RuneCountInString(text) > s.maxLen {
		return "", fmt.Errorf("%w: message longer than %d characters", domain.ErrValidation, s.maxLen)
	}
	return text, nil
}

func cleanEmoji(emoji string) (string, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" || utf8.RuneCountInString(emoji) > maxEmojiLength {
		return "", fmt.Errorf("%w: bad emoji", domain.ErrValidation)
	}
	return emoji, nil
}

// IsClientError reports whether err is safe to show to the caller verbatim.
func IsClientError(err error) bool {
	return errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrForbidden) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrConflict)
}
