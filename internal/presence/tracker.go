// Package presence holds liveness-only state: typing indicators and online status.
// Nothing here is durable; a restart starts from an empty tracker.
package presence

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/robfig/cron/v3"
)

const (
	DefaultTypingTTL     = 5 * time.Second
	DefaultSweepInterval = 2 * time.Second
)

type Config struct {
	TypingTTL     time.Duration
	SweepInterval time.Duration
}

// SweepFunc получает каналы, у которых после очистки изменился список печатающих.
type SweepFunc func(channelIDs []string)

type Tracker struct {
	mu     sync.Mutex
	typing map[string]map[string]domain.TypingUser // channelID -> userID -> indicator
	online map[string]int                          // userID -> live connections

	ttl      time.Duration
	interval time.Duration
	now      func() time.Time

	cron    *cron.Cron
	onSweep SweepFunc
}

func NewTracker(cfg Config) *Tracker {
	if cfg.TypingTTL <= 0 {
		cfg.TypingTTL = DefaultTypingTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	return &Tracker{
		typing:   make(map[string]map[string]domain.TypingUser),
		online:   make(map[string]int),
		ttl:      cfg.TypingTTL,
		interval: cfg.SweepInterval,
		now:      time.Now,
	}
}

// OnSweep registers the callback run after each scheduled sweep that expired something.
func (t *Tracker) OnSweep(fn SweepFunc) {
	t.mu.Lock()
	t.onSweep = fn
	t.mu.Unlock()
}

// Start schedules the periodic sweep. Stop must be called on shutdown.
func (t *Tracker) Start() error {
	c := cron.New(
		cron.WithLogger(cronLogger{}),
		cron.WithChain(cron.Recover(cronLogger{})),
	)
	if _, err := c.AddFunc("@every "+t.interval.String(), t.sweepJob); err != nil {
		return err
	}
	t.mu.Lock()
	t.cron = c
	t.mu.Unlock()
	c.Start()
	slog.Debug("presence sweep started", "interval", t.interval, "ttl", t.ttl)
	return nil
}

// Stop cancels the sweep and waits for a running pass to finish or ctx to expire.
func (t *Tracker) Stop(ctx context.Context) {
	t.mu.Lock()
	c := t.cron
	t.cron = nil
	t.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
}

func (t *Tracker) sweepJob() {
	changed := t.Sweep(t.now())
	if len(changed) == 0 {
		return
	}
	t.mu.Lock()
	fn := t.onSweep
	t.mu.Unlock()
	if fn != nil {
		fn(changed)
	}
}

// StartTyping upserts the indicator with a fresh timestamp and returns the channel's list.
func (t *Tracker) StartTyping(channelID, userID, userName string) []domain.TypingUser {
	t.mu.Lock()
	defer t.mu.Unlock()

	users, ok := t.typing[channelID]
	if !ok {
		users = make(map[string]domain.TypingUser)
		t.typing[channelID] = users
	}
	users[userID] = domain.TypingUser{UserID: userID, UserName: userName, StartedAt: t.now()}
	return t.listLocked(channelID)
}

// StopTyping removes the indicator (if any) and returns the remaining list.
func (t *Tracker) StopTyping(channelID, userID string) []domain.TypingUser {
	t.mu.Lock()
	defer t.mu.Unlock()

	if users, ok := t.typing[channelID]; ok {
		delete(users, userID)
		if len(users) == 0 {
			delete(t.typing, channelID)
		}
	}
	return t.listLocked(channelID)
}

// Typing returns the live (not expired) indicators of a channel, oldest first.
func (t *Tracker) Typing(channelID string) []domain.TypingUser {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.listLocked(channelID)
}

// DropUser removes every indicator of userID and returns the affected channels.
func (t *Tracker) DropUser(userID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var channels []string
	for channelID, users := range t.typing {
		if _, ok := users[userID]; !ok {
			continue
		}
		delete(users, userID)
		if len(users) == 0 {
			delete(t.typing, channelID)
		}
		channels = append(channels, channelID)
	}
	sort.Strings(channels)
	return channels
}

// Sweep removes indicators older than the TTL and returns the affected channels.
func (t *Tracker) Sweep(now time.Time) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := now.Add(-t.ttl)
	var channels []string
	for channelID, users := range t.typing {
		expired := false
		for userID, ind := range users {
			if ind.StartedAt.Before(cutoff) {
				delete(users, userID)
				expired = true
			}
		}
		if len(users) == 0 {
			delete(t.typing, channelID)
		}
		if expired {
			channels = append(channels, channelID)
		}
	}
	sort.Strings(channels)
	return channels
}

// Connect counts a new live connection; first is true when the user just came online.
func (t *Tracker) Connect(userID string) (first bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.online[userID]++
	return t.online[userID] == 1
}

// Disconnect uncounts a connection; last is true when the user went offline.
func (t *Tracker) Disconnect(userID string) (last bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.online[userID]
	if !ok {
		return false
	}
	if n <= 1 {
		delete(t.online, userID)
		return true
	}
	t.online[userID] = n - 1
	return false
}

func (t *Tracker) Online(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.online[userID] > 0
}

func (t *Tracker) OnlineUsers() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, 0, len(t.online))
	for id := range t.online {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// listLocked не отдаёт протухшие индикаторы, даже если sweep ещё не прошёл.
func (t *Tracker) listLocked(channelID string) []domain.TypingUser {
	users := t.typing[channelID]
	out := make([]domain.TypingUser, 0, len(users))
	cutoff := t.now().Add(-t.ttl)
	for _, ind := range users {
		if ind.StartedAt.Before(cutoff) {
			continue
		}
		out = append(out, ind)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].UserID < out[j].UserID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// cronLogger пишет ошибки планировщика (в т.ч. recovered panic) в slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("presence cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("presence cron: "+msg, append(keysAndValues, "err", err)...)
}
