package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

const (
	maxChannelName = 100
	contextDirect  = "direct"
)

type ChannelService struct {
	*core

	onAccessLost func(channelID, userID string)
}

func NewChannelService(st Stores, storeTimeout time.Duration) *ChannelService {
	return &ChannelService{core: newCore(st, storeTimeout)}
}

type CreateChannelInput struct {
	Name        string
	Kind        domain.ChannelKind
	ContextType *string
	ContextID   *string
}

// OnAccessLost вызывается после того, как пользователь потерял доступ к закрытому каналу.
func (s *ChannelService) OnAccessLost(fn func(channelID, userID string)) {
	s.onAccessLost = fn
}

// CreateChannel создаёт канал; создатель становится owner в той же транзакции.
func (s *ChannelService) CreateChannel(ctx context.Context, who domain.Identity, in CreateChannelInput) (*domain.Channel, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || utf8.RuneCountInString(name) > maxChannelName {
		return nil, fmt.Errorf("%w: channel name must be 1..%d characters", domain.ErrValidation, maxChannelName)
	}
	if !in.Kind.Valid() || in.Kind == domain.ChannelDirect {
		return nil, fmt.Errorf("%w: unsupported channel kind %q", domain.ErrValidation, in.Kind)
	}
	ctxType, ctxID := trimPtr(in.ContextType), trimPtr(in.ContextID)
	if (ctxType == nil) != (ctxID == nil) {
		return nil, fmt.Errorf("%w: contextType and contextId go together", domain.ErrValidation)
	}
	if in.Kind == domain.ChannelSystem && ctxType == nil {
		return nil, fmt.Errorf("%w: system channel needs a context", domain.ErrValidation)
	}

	if ctxType != nil {
		_, err := fetch(ctx, s.core, "find channel", func(ctx context.Context) (*domain.Channel, error) {
			return s.st.Channels.FindByContext(ctx, *ctxType, *ctxID)
		})
		switch {
		case err == nil:
			return nil, fmt.Errorf("%w: channel for this context", domain.ErrConflict)
		case !errors.Is(err, domain.ErrNotFound):
			return nil, err
		}
	}

	ch := &domain.Channel{Name: name, Kind: in.Kind, ContextType: ctxType, ContextID: ctxID, CreatedBy: who.ID}
	if err := s.create(ctx, who, ch); err != nil {
		return nil, err
	}
	return ch, nil
}

func (s *ChannelService) GetChannel(ctx context.Context, who domain.Identity, id string) (*domain.Channel, error) {
	ch, _, err := s.channelForRead(ctx, who, id)
	return ch, err
}

func (s *ChannelService) ListChannels(ctx context.Context, who domain.Identity) ([]domain.Channel, error) {
	return fetch(ctx, s.core, "list channels", func(ctx context.Context) ([]domain.Channel, error) {
		return s.st.Channels.ListForUser(ctx, who.ID)
	})
}

// ArchiveChannel — «удаление» канала владельцем. История остаётся доступной на чтение.
func (s *ChannelService) ArchiveChannel(ctx context.Context, who domain.Identity, id string) error {
	ch, m, err := s.channelForRead(ctx, who, id)
	if err != nil {
		return err
	}
	if m == nil || m.Role != domain.RoleOwner {
		return fmt.Errorf("%w: only the owner can archive a channel", domain.ErrForbidden)
	}
	if ch.Archived {
		return nil
	}
	return s.call(ctx, "archive channel", func(ctx context.Context) error {
		return s.st.Channels.Archive(ctx, ch.ID)
	})
}

// DirectChannel возвращает личный канал двух пользователей, создавая его при первом обращении.
func (s *ChannelService) DirectChannel(ctx context.Context, who domain.Identity, otherID string) (*domain.Channel, error) {
	otherID = strings.TrimSpace(otherID)
	if otherID == "" || otherID == who.ID {
		return nil, fmt.Errorf("%w: direct channel needs another user", domain.ErrValidation)
	}
	other, err := fetch(ctx, s.core, "get contact", func(ctx context.Context) (*domain.Contact, error) {
		return s.st.Users.Contact(ctx, otherID)
	})
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", otherID, err)
	}

	pair := []string{who.ID, otherID}
	sort.Strings(pair)
	ctxType, ctxID := contextDirect, pair[0]+":"+pair[1]

	ch, err := s.getOrCreate(ctx, who, ctxType, ctxID, func() *domain.Channel {
		return &domain.Channel{
			Name:        who.Name + ", " + other.Name,
			Kind:        domain.ChannelDirect,
			ContextType: &ctxType,
			ContextID:   &ctxID,
			CreatedBy:   who.ID,
		}
	})
	if err != nil {
		return nil, err
	}
	if err := s.addMember(ctx, &domain.Member{ChannelID: ch.ID, UserID: other.UserID, DisplayName: other.Name, Role: domain.RoleMember}); err != nil {
		return nil, err
	}
	return ch, nil
}

// SystemChannel — канал, привязанный к внешней сущности (contextType, contextId).
// Создаётся при первом обращении; обратившийся становится участником.
func (s *ChannelService) SystemChannel(ctx context.Context, who domain.Identity, contextType, contextID string) (*domain.Channel, error) {
	contextType, contextID = strings.TrimSpace(contextType), strings.TrimSpace(contextID)
	if contextType == "" || contextID == "" || contextType == contextDirect {
		return nil, fmt.Errorf("%w: bad channel context", domain.ErrValidation)
	}
	ch, err := s.getOrCreate(ctx, who, contextType, contextID, func() *domain.Channel {
		return &domain.Channel{
			Name:        contextType + ":" + contextID,
			Kind:        domain.ChannelSystem,
			ContextType: &contextType,
			ContextID:   &contextID,
			CreatedBy:   who.ID,
		}
	})
	if err != nil {
		return nil, err
	}
	if err := s.addMember(ctx, &domain.Member{ChannelID: ch.ID, UserID: who.ID, DisplayName: who.Name, AvatarURL: who.AvatarURL, Role: domain.RoleMember}); err != nil {
		return nil, err
	}
	return ch, nil
}

type AddMemberInput struct {
	UserID      string
	DisplayName string
	Role        domain.MemberRole
}

// AddMember: owner/admin добавляют кого угодно; в публичный канал можно вступить самому.
func (s *ChannelService) AddMember(ctx context.Context, who domain.Identity, channelID string, in AddMemberInput) (*domain.Member, error) {
	in.UserID = strings.TrimSpace(in.UserID)
	if in.UserID == "" {
		in.UserID = who.ID
	}
	if in.Role == "" {
		in.Role = domain.RoleMember
	}
	if in.Role != domain.RoleMember && in.Role != domain.RoleAdmin {
		return nil, fmt.Errorf("%w: role must be member or admin", domain.ErrValidation)
	}

	ch, m, err := s.channelForWrite(ctx, who, channelID)
	if err != nil {
		return nil, err
	}
	if ch.Kind == domain.ChannelDirect {
		return nil, fmt.Errorf("%w: direct channels have fixed members", domain.ErrForbidden)
	}
	selfJoin := in.UserID == who.ID && ch.IsPublic() && in.Role == domain.RoleMember
	if !selfJoin && (m == nil || !m.Role.CanModerate()) {
		return nil, fmt.Errorf("%w: only a channel moderator can add members", domain.ErrForbidden)
	}

	member := &domain.Member{ChannelID: ch.ID, UserID: in.UserID, DisplayName: strings.TrimSpace(in.DisplayName), Role: in.Role}
	if in.UserID == who.ID {
		member.DisplayName = who.Name
		member.AvatarURL = who.AvatarURL
	}
	if member.DisplayName == "" {
		c, err := fetch(ctx, s.core, "get contact", func(ctx context.Context) (*domain.Contact, error) {
			return s.st.Users.Contact(ctx, in.UserID)
		})
		if err != nil {
			return nil, fmt.Errorf("user %s: %w", in.UserID, err)
		}
		member.DisplayName = c.Name
	}

	if err := s.addMember(ctx, member); err != nil {
		return nil, err
	}
	return fetch(ctx, s.core, "get member", func(ctx context.Context) (*domain.Member, error) {
		return s.st.Members.Get(ctx, ch.ID, in.UserID)
	})
}

// RemoveMember: самого себя или, для owner/admin, любого кроме владельца.
func (s *ChannelService) RemoveMember(ctx context.Context, who domain.Identity, channelID, userID string) error {
	ch, m, err := s.channelForRead(ctx, who, channelID)
	if err != nil {
		return err
	}
	if userID != who.ID && (m == nil || !m.Role.CanModerate()) {
		return fmt.Errorf("%w: only a channel moderator can remove members", domain.ErrForbidden)
	}
	target, err := s.member(ctx, ch.ID, userID)
	if err != nil {
		return err
	}
	if target == nil {
		return fmt.Errorf("%w: member", domain.ErrNotFound)
	}
	if target.Role == domain.RoleOwner {
		return fmt.Errorf("%w: the owner cannot be removed", domain.ErrForbidden)
	}
	removed, err := fetch(ctx, s.core, "remove member", func(ctx context.Context) (bool, error) {
		return s.st.Members.Remove(ctx, ch.ID, userID)
	})
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("%w: member", domain.ErrNotFound)
	}
	// публичный канал остаётся читаемым и без членства
	if !ch.IsPublic() && s.onAccessLost != nil {
		s.onAccessLost(ch.ID, userID)
	}
	return nil
}

func (s *ChannelService) ListMembers(ctx context.Context, who domain.Identity, channelID string) ([]domain.Member, error) {
	ch, _, err := s.channelForRead(ctx, who, channelID)
	if err != nil {
		return nil, err
	}
	return fetch(ctx, s.core, "list members", func(ctx context.Context) ([]domain.Member, error) {
		return s.st.Members.List(ctx, ch.ID)
	})
}

func (s *ChannelService) MarkRead(ctx context.Context, who domain.Identity, channelID string) error {
	ch, m, err := s.channelForRead(ctx, who, channelID)
	if err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("%w: not a member of channel", domain.ErrForbidden)
	}
	return s.call(ctx, "mark read", func(ctx context.Context) error {
		return s.st.Members.MarkRead(ctx, ch.ID, who.ID, s.now().UTC())
	})
}

func (s *ChannelService) ListNotifications(ctx context.Context, who domain.Identity, unreadOnly bool, limit int) ([]domain.Notification, error) {
	return fetch(ctx, s.core, "list notifications", func(ctx context.Context) ([]domain.Notification, error) {
		return s.st.Notifications.List(ctx, who.ID, unreadOnly, limit)
	})
}

func (s *ChannelService) MarkNotificationRead(ctx context.Context, who domain.Identity, id string) error {
	if err := validID("notification", id); err != nil {
		return err
	}
	return s.call(ctx, "mark notification read", func(ctx context.Context) error {
		return s.st.Notifications.MarkRead(ctx, id, who.ID)
	})
}

// CanRead implements realtime.Authorizer: public channel or a membership row.
func (s *ChannelService) CanRead(ctx context.Context, channelID, userID string) (bool, error) {
	_, _, err := s.channelForRead(ctx, domain.Identity{ID: userID}, channelID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrValidation):
		return false, nil
	}
	return false, err
}

func (s *ChannelService) getOrCreate(ctx context.Context, who domain.Identity, ctxType, ctxID string, build func() *domain.Channel) (*domain.Channel, error) {
	find := func() (*domain.Channel, error) {
		return fetch(ctx, s.core, "find channel", func(ctx context.Context) (*domain.Channel, error) {
			return s.st.Channels.FindByContext(ctx, ctxType, ctxID)
		})
	}
	ch, err := find()
	if err == nil || !errors.Is(err, domain.ErrNotFound) {
		return ch, err
	}

	ch = build()
	err = s.create(ctx, who, ch)
	if errors.Is(err, domain.ErrConflict) {
		// параллельный запрос успел создать канал первым
		return find()
	}
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (s *ChannelService) create(ctx context.Context, who domain.Identity, ch *domain.Channel) error {
	owner := &domain.Member{UserID: who.ID, DisplayName: who.Name, AvatarURL: who.AvatarURL, Role: domain.RoleOwner}
	return s.call(ctx, "create channel", func(ctx context.Context) error {
		return s.st.Channels.Create(ctx, ch, owner)
	})
}

func (s *ChannelService) addMember(ctx context.Context, m *domain.Member) error {
	return s.call(ctx, "add member", func(ctx context.Context) error {
		_, err := s.st.Members.Add(ctx, m)
		return err
	})
}

func trimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}
