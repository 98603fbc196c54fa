// Package app собирает ядро чата: хранилище, hub, presence и сервисы.
// Используется из cmd и из тестов транспорта.
package app

import (
	"context"
	"time"

	"github.com/cwrk-planet/chat-service/internal/memstore"
	"github.com/cwrk-planet/chat-service/internal/postgres"
	"github.com/cwrk-planet/chat-service/internal/presence"
	"github.com/cwrk-planet/chat-service/internal/realtime"
	"github.com/cwrk-planet/chat-service/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Options struct {
	Chat     service.ChatConfig
	Presence presence.Config
}

type Core struct {
	Hub      *realtime.Hub
	Presence *presence.Tracker
	Channels *service.ChannelService
	Chat     *service.ChatService
}

func NewCore(opts Options, st service.Stores, mailer service.Mailer) *Core {
	channels := service.NewChannelService(st, opts.Chat.StoreTimeout)
	hub := realtime.NewHub(channels)
	tracker := presence.NewTracker(opts.Presence)
	mentions := service.NewMentionResolver(st, opts.Chat.StoreTimeout, hub, mailer)

	chat := service.NewChatService(opts.Chat, st, hub, tracker, mentions)
	channels.OnAccessLost(chat.RevokeChannel)

	return &Core{
		Hub:      hub,
		Presence: tracker,
		Channels: channels,
		Chat:     chat,
	}
}

// Start запускает фоновую очистку индикаторов набора.
func (c *Core) Start() error { return c.Presence.Start() }

// Shutdown: останавливает sweep, дожидается рассылки упоминаний и закрывает живые соединения.
func (c *Core) Shutdown(ctx context.Context) error {
	c.Presence.Stop(ctx)
	err := c.Chat.Shutdown(ctx)
	c.Hub.Close()
	return err
}

func PostgresStores(pool *pgxpool.Pool) service.Stores {
	return service.Stores{
		Channels:      postgres.NewChannelRepository(pool),
		Members:       postgres.NewMemberRepository(pool),
		Messages:      postgres.NewMessageRepository(pool),
		Reactions:     postgres.NewReactionRepository(pool),
		Attachments:   postgres.NewAttachmentRepository(pool),
		Notifications: postgres.NewNotificationRepository(pool),
		Users:         postgres.NewUserRepository(pool),
	}
}

func MemoryStores(db *memstore.DB) service.Stores {
	return service.Stores{
		Channels:      db.Channels(),
		Members:       db.Members(),
		Messages:      db.Messages(),
		Reactions:     db.Reactions(),
		Attachments:   db.Attachments(),
		Notifications: db.Notifications(),
		Users:         db.Users(),
	}
}

// NewMemoryCore — ядро поверх памяти процесса, для локального запуска и тестов.
func NewMemoryCore(mailer service.Mailer) (*Core, *memstore.DB) {
	db := memstore.New()
	return NewCore(Options{Chat: service.ChatConfig{StoreTimeout: time.Second}}, MemoryStores(db), mailer), db
}
