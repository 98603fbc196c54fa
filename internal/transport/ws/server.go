package ws

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/realtime"
	"github.com/cwrk-planet/chat-service/internal/security"
	"github.com/cwrk-planet/chat-service/internal/service"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

// Coordinator — то, что websocket-адаптер вызывает у ChatService.
type Coordinator interface {
	Connect(c realtime.Conn) realtime.Handle
	Disconnect(hd realtime.Handle)
	JoinChannel(ctx context.Context, hd realtime.Handle, channelID string) bool
	LeaveChannel(hd realtime.Handle, channelID string)

	SendMessage(ctx context.Context, who domain.Identity, channelID, text string, parentID *string) (*domain.Message, error)
	EditMessage(ctx context.Context, who domain.Identity, messageID, text string) (*domain.Message, error)
	DeleteMessage(ctx context.Context, who domain.Identity, messageID string) error
	AddReaction(ctx context.Context, who domain.Identity, messageID, emoji string) (*domain.ReactionSummary, error)
	RemoveReaction(ctx context.Context, who domain.Identity, messageID, emoji string) error
	StartTyping(ctx context.Context, who domain.Identity, channelID string) error
	StopTyping(ctx context.Context, who domain.Identity, channelID string) error
}

type Config struct {
	SendQueue      int
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	ReadLimit      int64
	AllowedOrigins []string
}

func (c Config) withDefaults() Config {
	if c.SendQueue <= 0 {
		c.SendQueue = 256
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 15 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = 64 << 10
	}
	return c
}

type Server struct {
	cfg      Config
	upgrader websocket.Upgrader
	auth     security.Authenticator
	chat     Coordinator
}

func NewServer(cfg Config, auth security.Authenticator, chat Coordinator) *Server {
	cfg = cfg.withDefaults()
	return &Server{
		cfg:  cfg,
		auth: auth,
		chat: chat,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
	}
}

// HandleWS: GET /ws. Личность берётся тем же аутентификатором, что и в REST;
// браузеры передают токен через ?access_token=.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	who, err := s.auth.Authenticate(r)
	if err != nil {
		slog.Debug("ws unauthenticated", "remote", r.RemoteAddr, "err", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader уже ответил клиенту
		slog.Warn("ws upgrade failed", "user", who.ID, "err", err)
		return
	}

	c := newConn(ws, who, s.cfg)
	hd := s.chat.Connect(c)
	slog.Info("ws connected", "conn", hd, "user", who.ID)

	go c.writePump()
	s.readPump(r.Context(), c, hd)

	s.chat.Disconnect(hd)
	_ = c.Close()
	slog.Info("ws disconnected", "conn", hd, "user", who.ID)
}

func (s *Server) readPump(ctx context.Context, c *conn, hd realtime.Handle) {
	pongWait := 2 * s.cfg.PingInterval

	c.ws.SetReadLimit(s.cfg.ReadLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				slog.Debug("ws read failed", "conn", hd, "err", err)
			}
			return
		}

		var in inbound
		if err := json.Unmarshal(data, &in); err != nil {
			s.reply(c, hd, "", realtime.Event{Type: realtime.EventError, Payload: realtime.ErrorPayload{Message: "malformed frame"}})
			continue
		}
		s.handle(ctx, c, hd, in)
	}
}

func (s *Server) handle(ctx context.Context, c *conn, hd realtime.Handle, in inbound) {
	if in.Type == realtime.EventChannelJoin {
		var p channelRef
		joined := decode(in.Payload, &p) == nil && s.chat.JoinChannel(ctx, hd, p.ChannelID)
		s.reply(c, hd, in.RequestID, realtime.Event{
			Type:    realtime.EventChannelJoined,
			Payload: realtime.ChannelJoinedPayload{ChannelID: p.ChannelID, Joined: joined},
		})
		return
	}

	result, err := s.dispatch(ctx, c.id, hd, in)
	if err != nil {
		s.reply(c, hd, in.RequestID, realtime.Event{Type: realtime.EventError, Payload: realtime.ErrorPayload{Message: errorMessage(err)}})
		return
	}
	if in.RequestID != "" {
		s.reply(c, hd, in.RequestID, realtime.Event{Type: realtime.EventAck, Payload: result})
	}
}

func (s *Server) dispatch(ctx context.Context, who domain.Identity, hd realtime.Handle, in inbound) (any, error) {
	switch in.Type {
	case realtime.EventChannelLeave:
		var p channelRef
		if err := decode(in.Payload, &p); err != nil {
			return nil, err
		}
		s.chat.LeaveChannel(hd, p.ChannelID)
		return p, nil

	case realtime.EventMessageSend:
		var p sendPayload
		if err := decode(in.Payload, &p); err != nil {
			return nil, err
		}
		return s.chat.SendMessage(ctx, who, p.ChannelID, p.Text, p.ParentID)

	case realtime.EventMessageEdit:
		var p editPayload
		if err := decode(in.Payload, &p); err != nil {
			return nil, err
		}
		return s.chat.EditMessage(ctx, who, p.MessageID, p.Text)

	case realtime.EventMessageDelete:
		var p messageRef
		if err := decode(in.Payload, &p); err != nil {
			return nil, err
		}
		return p, s.chat.DeleteMessage(ctx, who, p.MessageID)

	case realtime.EventReactionAdd:
		var p reactionPayload
		if err := decode(in.Payload, &p); err != nil {
			return nil, err
		}
		return s.chat.AddReaction(ctx, who, p.MessageID, p.Emoji)

	case realtime.EventReactionRemove:
		var p reactionPayload
		if err := decode(in.Payload, &p); err != nil {
			return nil, err
		}
		return p, s.chat.RemoveReaction(ctx, who, p.MessageID, p.Emoji)

	case realtime.EventTypingStart:
		var p channelRef
		if err := decode(in.Payload, &p); err != nil {
			return nil, err
		}
		return p, s.chat.StartTyping(ctx, who, p.ChannelID)

	case realtime.EventTypingStop:
		var p channelRef
		if err := decode(in.Payload, &p); err != nil {
			return nil, err
		}
		return p, s.chat.StopTyping(ctx, who, p.ChannelID)
	}
	return nil, fmt.Errorf("%w: unknown event %q", domain.ErrValidation, in.Type)
}

// reply пишет только в исходное соединение.
func (s *Server) reply(c *conn, hd realtime.Handle, requestID string, ev realtime.Event) {
	ev.RequestID = requestID
	if err := c.Send(ev); err != nil {
		slog.Debug("ws reply dropped", "conn", hd, "type", ev.Type, "err", err)
	}
}

// errorMessage не отдаёт клиенту детали внутренних ошибок.
func errorMessage(err error) string {
	if service.IsClientError(err) {
		return err.Error()
	}
	return domain.ErrStore.Error()
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimRight(strings.ToLower(o), "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.ToLower(origin)]
		return ok
	}
}
