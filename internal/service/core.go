package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/google/uuid"
)

const DefaultStoreTimeout = 5 * time.Second

// core — общая часть сервисов: хранилища, таймаут на каждый вызов и проверки доступа.
type core struct {
	st      Stores
	timeout time.Duration
	now     func() time.Time
}

func newCore(st Stores, timeout time.Duration) *core {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return &core{st: st, timeout: timeout, now: time.Now}
}

// call выполняет один вызов хранилища с таймаутом и переводит сбои в ErrStore.
func (c *core) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return storeErr(op, fn(ctx))
}

func fetch[T any](ctx context.Context, c *core, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := c.call(ctx, op, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}

// storeErr пропускает доменные ошибки как есть; всё остальное логируется и скрывается за ErrStore.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{domain.ErrNotFound, domain.ErrConflict, domain.ErrValidation, domain.ErrForbidden} {
		if errors.Is(err, known) {
			return err
		}
	}
	slog.Error("store call failed", "op", op, "err", err)
	return fmt.Errorf("%s: %w", op, domain.ErrStore)
}

// channelForRead returns the channel and the caller's membership (nil if none).
// Private channels require membership.
func (c *core) channelForRead(ctx context.Context, who domain.Identity, channelID string) (*domain.Channel, *domain.Member, error) {
	if err := validID("channel", channelID); err != nil {
		return nil, nil, err
	}
	ch, err := fetch(ctx, c, "get channel", func(ctx context.Context) (*domain.Channel, error) {
		return c.st.Channels.Get(ctx, channelID)
	})
	if err != nil {
		return nil, nil, err
	}
	m, err := c.member(ctx, channelID, who.ID)
	if err != nil {
		return nil, nil, err
	}
	if m == nil && !ch.IsPublic() {
		return nil, nil, fmt.Errorf("%w: not a member of channel", domain.ErrForbidden)
	}
	return ch, m, nil
}

// channelForWrite — как channelForRead, но архивный канал только для чтения.
func (c *core) channelForWrite(ctx context.Context, who domain.Identity, channelID string) (*domain.Channel, *domain.Member, error) {
	ch, m, err := c.channelForRead(ctx, who, channelID)
	if err != nil {
		return nil, nil, err
	}
	if ch.Archived {
		return nil, nil, fmt.Errorf("%w: channel is archived", domain.ErrForbidden)
	}
	return ch, m, nil
}

func (c *core) member(ctx context.Context, channelID, userID string) (*domain.Member, error) {
	m, err := fetch(ctx, c, "get member", func(ctx context.Context) (*domain.Member, error) {
		return c.st.Members.Get(ctx, channelID, userID)
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return m, err
}

// liveMessage returns a message that has not been deleted. Deleted looks like absent.
func (c *core) liveMessage(ctx context.Context, messageID string) (*domain.Message, error) {
	if err := validID("message", messageID); err != nil {
		return nil, err
	}
	msg, err := fetch(ctx, c, "get message", func(ctx context.Context) (*domain.Message, error) {
		return c.st.Messages.Get(ctx, messageID)
	})
	if err != nil {
		return nil, err
	}
	if msg.Deleted {
		return nil, fmt.Errorf("%w: message deleted", domain.ErrNotFound)
	}
	return msg, nil
}

func validID(kind, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: malformed %s id", domain.ErrValidation, kind)
	}
	return nil
}

// sequencer выдаёт мьютекс на ключ; запись в канал и публикация идут под одним локом,
// поэтому порядок событий в комнате совпадает с порядком коммитов.
type sequencer struct {
	mu    sync.Mutex
	locks map[string]*seqLock
}

type seqLock struct {
	mu   sync.Mutex
	refs int
}

func newSequencer() *sequencer {
	return &sequencer{locks: make(map[string]*seqLock)}
}

func (s *sequencer) lock(key string) (unlock func()) {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &seqLock{}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}
