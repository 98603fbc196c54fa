package service

import (
	"context"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/realtime"
)

type ChannelStore interface {
	Create(ctx context.Context, ch *domain.Channel, owner *domain.Member) error
	Get(ctx context.Context, id string) (*domain.Channel, error)
	FindByContext(ctx context.Context, contextType, contextID string) (*domain.Channel, error)
	ListForUser(ctx context.Context, userID string) ([]domain.Channel, error)
	Archive(ctx context.Context, id string) error
}

type MemberStore interface {
	Add(ctx context.Context, m *domain.Member) (bool, error)
	Get(ctx context.Context, channelID, userID string) (*domain.Member, error)
	List(ctx context.Context, channelID string) ([]domain.Member, error)
	Remove(ctx context.Context, channelID, userID string) (bool, error)
	MarkRead(ctx context.Context, channelID, userID string, at time.Time) error
}

type MessageStore interface {
	Create(ctx context.Context, m *domain.Message) error
	Get(ctx context.Context, id string) (*domain.Message, error)
	List(ctx context.Context, channelID, before string, limit int) ([]domain.Message, string, error)
	UpdateText(ctx context.Context, id, text string, mentions []string, editedAt time.Time) error
	SoftDelete(ctx context.Context, id string) error
}

type ReactionStore interface {
	Add(ctx context.Context, r domain.Reaction) (bool, error)
	Remove(ctx context.Context, messageID, emoji, userID string) (bool, error)
	Summary(ctx context.Context, messageID, emoji string) (*domain.ReactionSummary, error)
}

type AttachmentStore interface {
	Create(ctx context.Context, a *domain.Attachment) error
	Get(ctx context.Context, id string) (*domain.Attachment, error)
	Delete(ctx context.Context, id string) error
}

type NotificationStore interface {
	Create(ctx context.Context, n *domain.Notification) error
	List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
}

// UserDirectory отдаёт контакты пользователей (имя, email) для писем и личных каналов.
type UserDirectory interface {
	Contact(ctx context.Context, userID string) (*domain.Contact, error)
}

// Stores — всё, через что сервисы ходят в базу.
type Stores struct {
	Channels      ChannelStore
	Members       MemberStore
	Messages      MessageStore
	Reactions     ReactionStore
	Attachments   AttachmentStore
	Notifications NotificationStore
	Users         UserDirectory
}

// Publisher is the fan-out side of the hub.
type Publisher interface {
	Publish(room string, ev realtime.Event)
	PublishEach(room string, build func(to domain.Identity) (realtime.Event, bool))
}

// Hub is what the coordinator needs from the connection registry.
type Hub interface {
	Publisher
	Register(c realtime.Conn) realtime.Handle
	Unregister(hd realtime.Handle) []string
	JoinChannel(ctx context.Context, hd realtime.Handle, channelID string) bool
	Leave(hd realtime.Handle, room string)
	LeaveUser(userID, room string) []realtime.Handle
	UserInRoom(userID, room string) bool
	Identity(hd realtime.Handle) (domain.Identity, bool)
}
