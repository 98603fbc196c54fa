package ws

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/realtime"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

var (
	ErrQueueFull = errors.New("ws: send queue full")
	ErrClosed    = errors.New("ws: connection closed")
)

// conn — одно websocket-соединение. Send не блокируется: медленный клиент
// получает ErrQueueFull, и hub его закрывает, не задерживая остальных.
type conn struct {
	id   domain.Identity
	ws   *websocket.Conn
	send chan []byte

	writeTimeout time.Duration
	pingEvery    time.Duration

	mu     sync.Mutex
	closed bool
}

func newConn(ws *websocket.Conn, id domain.Identity, cfg Config) *conn {
	return &conn{
		id:           id,
		ws:           ws,
		send:         make(chan []byte, cfg.SendQueue),
		writeTimeout: cfg.WriteTimeout,
		pingEvery:    cfg.PingInterval,
	}
}

func (c *conn) Identity() domain.Identity { return c.id }

func (c *conn) Send(ev realtime.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close закрывает очередь; writePump дописывает хвост и отправляет close-кадр.
func (c *conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	return nil
}

func (c *conn) writePump() {
	ticker := time.NewTicker(c.pingEvery)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				slog.Debug("ws write failed", "user", c.id.ID, "err", err)
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				slog.Debug("ws ping failed", "user", c.id.ID, "err", err)
				return
			}
		}
	}
}
