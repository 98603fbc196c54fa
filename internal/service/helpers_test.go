package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/memstore"
	"github.com/cwrk-planet/chat-service/internal/presence"
	"github.com/cwrk-planet/chat-service/internal/realtime"

	"github.com/stretchr/testify/require"
)

var (
	alice = domain.Identity{ID: "alice", Name: "Alice", Email: "alice@example.com"}
	bob   = domain.Identity{ID: "bob", Name: "Bob", Email: "bob@example.com"}
	carol = domain.Identity{ID: "carol", Name: "Carol", Email: "carol@example.com"}
)

type fixture struct {
	db       *memstore.DB
	outage   *outage
	hub      *realtime.Hub
	tracker  *presence.Tracker
	mailer   *recordingMailer
	channels *ChannelService
	chat     *ChatService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := memstore.New()
	for _, u := range []domain.Identity{alice, bob, carol} {
		db.AddUser(domain.Contact{UserID: u.ID, Name: u.Name, Email: u.Email})
	}
	out := &outage{}
	st := Stores{
		Channels:      flakyChannels{db.Channels(), out},
		Members:       db.Members(),
		Messages:      flakyMessages{db.Messages(), out},
		Reactions:     db.Reactions(),
		Attachments:   db.Attachments(),
		Notifications: db.Notifications(),
		Users:         db.Users(),
	}

	channels := NewChannelService(st, time.Second)
	hub := realtime.NewHub(channels)
	tracker := presence.NewTracker(presence.Config{})
	mailer := &recordingMailer{}
	mentions := NewMentionResolver(st, time.Second, hub, mailer)
	chat := NewChatService(ChatConfig{StoreTimeout: time.Second}, st, hub, tracker, mentions)
	channels.OnAccessLost(chat.RevokeChannel)

	return &fixture{db: db, outage: out, hub: hub, tracker: tracker, mailer: mailer, channels: channels, chat: chat}
}

// channel создаёт канал владельца owner и добавляет участников.
func (f *fixture) channel(t *testing.T, owner domain.Identity, kind domain.ChannelKind, members ...domain.Identity) string {
	t.Helper()
	ch, err := f.channels.CreateChannel(t.Context(), owner, CreateChannelInput{Name: "general", Kind: kind})
	require.NoError(t, err)
	for _, m := range members {
		_, err := f.channels.AddMember(t.Context(), owner, ch.ID, AddMemberInput{UserID: m.ID, DisplayName: m.Name})
		require.NoError(t, err)
	}
	return ch.ID
}

// connect регистрирует соединение и подписывает его на канал.
func (f *fixture) connect(t *testing.T, who domain.Identity, channelID string) (*testConn, realtime.Handle) {
	t.Helper()
	c := &testConn{id: who}
	hd := f.chat.Connect(c)
	if channelID != "" {
		require.True(t, f.chat.JoinChannel(t.Context(), hd, channelID))
	}
	return c, hd
}

// flush ждёт фоновую обработку упоминаний.
func (f *fixture) flush() { f.chat.wg.Wait() }

func (f *fixture) notificationsFor(t *testing.T, userID string) []domain.Notification {
	t.Helper()
	list, err := f.db.Notifications().List(t.Context(), userID, false, 100)
	require.NoError(t, err)
	return list
}

// outage имитирует недоступную базу для каналов и сообщений.
type outage struct {
	mu  sync.Mutex
	err error
}

func (o *outage) set(err error) {
	o.mu.Lock()
	o.err = err
	o.mu.Unlock()
}

func (o *outage) get() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

type flakyChannels struct {
	ChannelStore
	o *outage
}

func (f flakyChannels) Get(ctx context.Context, id string) (*domain.Channel, error) {
	if err := f.o.get(); err != nil {
		return nil, err
	}
	return f.ChannelStore.Get(ctx, id)
}

type flakyMessages struct {
	MessageStore
	o *outage
}

func (f flakyMessages) Create(ctx context.Context, m *domain.Message) error {
	if err := f.o.get(); err != nil {
		return err
	}
	return f.MessageStore.Create(ctx, m)
}

// recordingMailer запоминает письма.
type recordingMailer struct {
	mu   sync.Mutex
	sent []domain.MentionEmail
}

func (m *recordingMailer) SendMention(_ context.Context, e domain.MentionEmail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, e)
	return nil
}

func (m *recordingMailer) emails() []domain.MentionEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.MentionEmail(nil), m.sent...)
}

type testConn struct {
	id domain.Identity

	mu     sync.Mutex
	events []realtime.Event
	closed bool
}

func (c *testConn) Identity() domain.Identity { return c.id }

func (c *testConn) Send(ev realtime.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("closed")
	}
	c.events = append(c.events, ev)
	return nil
}

func (c *testConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *testConn) of(typ string) []realtime.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []realtime.Event
	for _, ev := range c.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (c *testConn) reset() {
	c.mu.Lock()
	c.events = nil
	c.mu.Unlock()
}

func typingUsers(t *testing.T, ev realtime.Event) []string {
	t.Helper()
	p, ok := ev.Payload.(realtime.TypingUpdatePayload)
	require.True(t, ok)
	users, ok := p.Users.([]domain.TypingUser)
	require.True(t, ok)
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.UserID)
	}
	return ids
}
