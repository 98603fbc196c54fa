package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cwrk-planet/chat-service/internal/app"
	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/realtime"
	"github.com/cwrk-planet/chat-service/internal/security"
	"github.com/cwrk-planet/chat-service/internal/service"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

var (
	alice = domain.Identity{ID: "alice", Name: "Alice"}
	bob   = domain.Identity{ID: "bob", Name: "Bob"}
)

type frame struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	RequestID string          `json:"requestId"`
}

func newTestServer(t *testing.T) (*httptest.Server, *app.Core) {
	t.Helper()
	core, _ := app.NewMemoryCore(nil)
	srv := NewServer(Config{PingInterval: time.Second}, security.HeaderAuthenticator{}, core.Chat)
	ts := httptest.NewServer(http.HandlerFunc(srv.HandleWS))
	t.Cleanup(func() {
		core.Hub.Close()
		ts.Close()
	})
	return ts, core
}

func dial(t *testing.T, ts *httptest.Server, who domain.Identity) *websocket.Conn {
	t.Helper()
	h := http.Header{}
	h.Set("Authorization", "Bearer test")
	h.Set(security.HeaderUserID, who.ID)
	h.Set(security.HeaderUserName, who.Name)

	c, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), h)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func wsURL(ts *httptest.Server) string { return "ws" + strings.TrimPrefix(ts.URL, "http") }

func send(t *testing.T, c *websocket.Conn, typ, requestID string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	data, err := json.Marshal(frame{Type: typ, Payload: raw, RequestID: requestID})
	require.NoError(t, err)
	require.NoError(t, c.WriteMessage(websocket.TextMessage, data))
}

// next читает кадры, пропуская чужие типы, пока не встретит typ.
func next(t *testing.T, c *websocket.Conn, typ string) frame {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, data, err := c.ReadMessage()
		require.NoError(t, err, "waiting for %s", typ)
		var f frame
		require.NoError(t, json.Unmarshal(data, &f))
		if f.Type == typ {
			return f
		}
	}
}

func join(t *testing.T, c *websocket.Conn, channelID string) bool {
	t.Helper()
	send(t, c, realtime.EventChannelJoin, "join-"+channelID, channelRef{ChannelID: channelID})
	f := next(t, c, realtime.EventChannelJoined)
	require.Equal(t, "join-"+channelID, f.RequestID)
	var p realtime.ChannelJoinedPayload
	require.NoError(t, json.Unmarshal(f.Payload, &p))
	return p.Joined
}

func createChannel(t *testing.T, core *app.Core, owner domain.Identity, kind domain.ChannelKind) string {
	t.Helper()
	ch, err := core.Channels.CreateChannel(context.Background(), owner, service.CreateChannelInput{Name: "general", Kind: kind})
	require.NoError(t, err)
	return ch.ID
}

func typingIDs(t *testing.T, f frame) []string {
	t.Helper()
	var p struct {
		ChannelID string              `json:"channelId"`
		Users     []domain.TypingUser `json:"users"`
	}
	require.NoError(t, json.Unmarshal(f.Payload, &p))
	ids := []string{}
	for _, u := range p.Users {
		ids = append(ids, u.UserID)
	}
	return ids
}

func TestWS_RejectsUnauthenticated(t *testing.T) {
	ts, _ := newTestServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWS_TypingAcrossConnections(t *testing.T) {
	ts, core := newTestServer(t)
	ch := createChannel(t, core, alice, domain.ChannelPublic)

	a := dial(t, ts, alice)
	b := dial(t, ts, bob)
	require.True(t, join(t, a, ch))
	require.True(t, join(t, b, ch))

	send(t, b, realtime.EventTypingStart, "", channelRef{ChannelID: ch})
	require.Equal(t, []string{bob.ID}, typingIDs(t, next(t, a, realtime.EventTypingUpdate)))
	require.Empty(t, typingIDs(t, next(t, b, realtime.EventTypingUpdate)))

	// обрыв соединения снимает индикатор сразу, без ожидания TTL
	require.NoError(t, b.Close())
	require.Empty(t, typingIDs(t, next(t, a, realtime.EventTypingUpdate)))
	next(t, a, realtime.EventUserOffline)
}

func TestWS_SentMessageEqualsHistory(t *testing.T) {
	ts, core := newTestServer(t)
	ch := createChannel(t, core, alice, domain.ChannelPublic)

	a := dial(t, ts, alice)
	require.True(t, join(t, a, ch))

	send(t, a, realtime.EventMessageSend, "r1", sendPayload{ChannelID: ch, Text: "hello"})
	var live domain.Message
	require.NoError(t, json.Unmarshal(next(t, a, realtime.EventMessageNew).Payload, &live))

	ack := next(t, a, realtime.EventAck)
	require.Equal(t, "r1", ack.RequestID)
	var acked domain.Message
	require.NoError(t, json.Unmarshal(ack.Payload, &acked))
	require.Equal(t, live.ID, acked.ID)

	history, _, err := core.Chat.ListMessages(context.Background(), alice, ch, "", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, live.ID, history[0].ID)
	require.Equal(t, live.Text, history[0].Text)
	require.Equal(t, live.SenderID, history[0].SenderID)
	require.True(t, live.CreatedAt.Equal(history[0].CreatedAt))
}

func TestWS_ErrorsGoOnlyToSender(t *testing.T) {
	ts, core := newTestServer(t)
	ch := createChannel(t, core, alice, domain.ChannelPublic)

	a := dial(t, ts, alice)
	b := dial(t, ts, bob)
	require.True(t, join(t, a, ch))
	require.True(t, join(t, b, ch))

	send(t, b, realtime.EventMessageEdit, "bad-edit", editPayload{MessageID: "not-a-uuid", Text: "x"})
	f := next(t, b, realtime.EventError)
	require.Equal(t, "bad-edit", f.RequestID)
	var p realtime.ErrorPayload
	require.NoError(t, json.Unmarshal(f.Payload, &p))
	require.Contains(t, p.Message, domain.ErrValidation.Error())

	// alice ошибку не видит: следующий её кадр уже сообщение bob
	send(t, b, realtime.EventMessageSend, "", sendPayload{ChannelID: ch, Text: "after error"})
	require.NoError(t, a.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, data, err := a.ReadMessage()
		require.NoError(t, err)
		var got frame
		require.NoError(t, json.Unmarshal(data, &got))
		require.NotEqual(t, realtime.EventError, got.Type)
		if got.Type == realtime.EventMessageNew {
			break
		}
	}
}

func TestWS_UnknownEvent(t *testing.T) {
	ts, _ := newTestServer(t)
	a := dial(t, ts, alice)

	send(t, a, "message:shout", "u1", map[string]string{})
	f := next(t, a, realtime.EventError)
	require.Equal(t, "u1", f.RequestID)
}

func TestWS_PrivateJoinRefused(t *testing.T) {
	ts, core := newTestServer(t)
	ch := createChannel(t, core, alice, domain.ChannelPrivate)

	b := dial(t, ts, bob)
	require.False(t, join(t, b, ch))
	require.False(t, join(t, b, "00000000-0000-0000-0000-000000000000"))
}

func TestConn_SendQueue(t *testing.T) {
	c := newConn(nil, alice, Config{SendQueue: 1})

	require.NoError(t, c.Send(realtime.Event{Type: realtime.EventMessageNew}))
	require.ErrorIs(t, c.Send(realtime.Event{Type: realtime.EventMessageNew}), ErrQueueFull)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	require.ErrorIs(t, c.Send(realtime.Event{Type: realtime.EventMessageNew}), ErrClosed)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://app.example.com/"})

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	require.True(t, check(r))

	r.Header.Set("Origin", "https://app.example.com")
	require.True(t, check(r))

	r.Header.Set("Origin", "https://evil.example.com")
	require.False(t, check(r))

	require.True(t, originChecker(nil)(r))
	require.True(t, originChecker([]string{"*"})(r))
}
