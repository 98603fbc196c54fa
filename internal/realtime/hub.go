// Package realtime keeps track of live connections and the rooms they joined,
// and fans events out to every connection of a room.
package realtime

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/google/uuid"
)

// Conn is one live client connection as seen by the hub.
// Send must not block: it queues the event or fails.
type Conn interface {
	Identity() domain.Identity
	Send(ev Event) error
	Close() error
}

// Handle identifies a registered connection.
type Handle string

// Authorizer решает, может ли пользователь читать канал (и, значит, подписаться на него).
type Authorizer interface {
	CanRead(ctx context.Context, channelID, userID string) (bool, error)
}

type entry struct {
	conn  Conn
	rooms map[string]struct{}
}

// room.mu сериализует publish в одну комнату: порядок доставки у всех подписчиков одинаковый.
type room struct {
	mu      sync.Mutex
	members map[Handle]Conn
}

type Hub struct {
	mu    sync.RWMutex
	conns map[Handle]*entry
	rooms map[string]*room

	auth Authorizer
}

func NewHub(auth Authorizer) *Hub {
	return &Hub{
		conns: make(map[Handle]*entry),
		rooms: make(map[string]*room),
		auth:  auth,
	}
}

// Register adds the connection and subscribes it to its personal room.
func (h *Hub) Register(c Conn) Handle {
	hd := Handle(uuid.NewString())

	h.mu.Lock()
	h.conns[hd] = &entry{conn: c, rooms: make(map[string]struct{})}
	h.joinLocked(hd, domain.UserRoom(c.Identity().ID))
	h.mu.Unlock()

	slog.Debug("ws connection registered", "conn", hd, "user", c.Identity().ID)
	return hd
}

// Unregister removes the connection from every room and returns the rooms it held.
func (h *Hub) Unregister(hd Handle) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	e, ok := h.conns[hd]
	if !ok {
		return nil
	}
	rooms := make([]string, 0, len(e.rooms))
	for name := range e.rooms {
		h.leaveLocked(hd, name)
		rooms = append(rooms, name)
	}
	delete(h.conns, hd)
	sort.Strings(rooms)
	return rooms
}

func (h *Hub) Join(hd Handle, name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.joinLocked(hd, name)
}

func (h *Hub) Leave(hd Handle, name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(hd, name)
}

// LeaveUser unsubscribes every connection of userID from the room and returns their handles.
func (h *Hub) LeaveUser(userID, name string) []Handle {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[name]
	if !ok {
		return nil
	}
	var evicted []Handle
	r.mu.Lock()
	for hd, c := range r.members {
		if c.Identity().ID == userID {
			evicted = append(evicted, hd)
		}
	}
	r.mu.Unlock()
	for _, hd := range evicted {
		h.leaveLocked(hd, name)
	}
	sort.Slice(evicted, func(i, j int) bool { return evicted[i] < evicted[j] })
	return evicted
}

// JoinChannel subscribes the connection to a channel room after an access check.
// A refused join is not an error for the caller: existence of the channel must not leak.
func (h *Hub) JoinChannel(ctx context.Context, hd Handle, channelID string) bool {
	h.mu.RLock()
	e, ok := h.conns[hd]
	h.mu.RUnlock()
	if !ok {
		return false
	}

	userID := e.conn.Identity().ID
	allowed, err := h.auth.CanRead(ctx, channelID, userID)
	if err != nil {
		slog.Warn("channel join check failed", "channel", channelID, "user", userID, "err", err)
		return false
	}
	if !allowed {
		slog.Debug("channel join refused", "channel", channelID, "user", userID)
		return false
	}
	return h.Join(hd, domain.ChannelRoom(channelID))
}

func (h *Hub) RoomsOf(hd Handle) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	e, ok := h.conns[hd]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(e.rooms))
	for name := range e.rooms {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// UserInRoom reports whether any connection of userID is subscribed to the room.
func (h *Hub) UserInRoom(userID, name string) bool {
	h.mu.RLock()
	r, ok := h.rooms[name]
	h.mu.RUnlock()
	if !ok {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.members {
		if c.Identity().ID == userID {
			return true
		}
	}
	return false
}

func (h *Hub) Identity(hd Handle) (domain.Identity, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.conns[hd]
	if !ok {
		return domain.Identity{}, false
	}
	return e.conn.Identity(), true
}

func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Publish delivers ev to every connection currently in the room.
func (h *Hub) Publish(name string, ev Event) {
	h.PublishEach(name, func(domain.Identity) (Event, bool) { return ev, true })
}

// PublishEach builds the event per recipient; returning false skips that connection.
func (h *Hub) PublishEach(name string, build func(to domain.Identity) (Event, bool)) {
	h.mu.RLock()
	r, ok := h.rooms[name]
	h.mu.RUnlock()
	if !ok {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for hd, c := range r.members {
		ev, ok := build(c.Identity())
		if !ok {
			continue
		}
		if err := c.Send(ev); err != nil {
			// одна сломанная доставка не мешает остальным подписчикам
			slog.Warn("delivery failed, closing connection",
				"conn", hd, "room", name, "event", ev.Type, "err", err)
			_ = c.Close()
		}
	}
}

// Close closes every connection and forgets all rooms. Queued events are flushed by the connections.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]Conn, 0, len(h.conns))
	for _, e := range h.conns {
		conns = append(conns, e.conn)
	}
	h.conns = make(map[Handle]*entry)
	h.rooms = make(map[string]*room)
	h.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
	slog.Info("hub closed", "connections", len(conns))
}

func (h *Hub) joinLocked(hd Handle, name string) bool {
	e, ok := h.conns[hd]
	if !ok {
		return false
	}
	r, ok := h.rooms[name]
	if !ok {
		r = &room{members: make(map[Handle]Conn)}
		h.rooms[name] = r
	}
	r.mu.Lock()
	r.members[hd] = e.conn
	r.mu.Unlock()
	e.rooms[name] = struct{}{}
	return true
}

func (h *Hub) leaveLocked(hd Handle, name string) {
	if e, ok := h.conns[hd]; ok {
		delete(e.rooms, name)
	}
	r, ok := h.rooms[name]
	if !ok {
		return
	}
	r.mu.Lock()
	delete(r.members, hd)
	empty := len(r.members) == 0
	r.mu.Unlock()
	if empty {
		delete(h.rooms, name)
	}
}
