package memstore

import (
	"context"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/pagination"

	"github.com/google/uuid"
)

type MessageRepository struct{ db *DB }

func (r *MessageRepository) Create(_ context.Context, m *domain.Message) error {
	db := r.db
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.channels[m.ChannelID]; !ok {
		return domain.ErrNotFound
	}
	m.ID = uuid.NewString()
	m.CreatedAt = db.nowLocked()
	if m.Mentions == nil {
		m.Mentions = []string{}
	}
	m.Reactions = []domain.ReactionSummary{}
	m.Attachments = []domain.Attachment{}
	db.messages[m.ID] = *m
	db.order = append(db.order, m.ID)
	return nil
}

func (r *MessageRepository) Get(_ context.Context, id string) (*domain.Message, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	m, ok := r.db.messages[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	r.db.detailsLocked(&m)
	return &m, nil
}

// List отдаёт страницу от новых к старым, как и postgres-реализация.
func (r *MessageRepository) List(_ context.Context, channelID, before string, limit int) ([]domain.Message, string, error) {
	limit = pagination.ClampLimit(limit)
	cur, err := pagination.DecodeCursor(before)
	if err != nil {
		return nil, "", err
	}

	db := r.db
	db.mu.Lock()
	defer db.mu.Unlock()

	out := []domain.Message{}
	for i := len(db.order) - 1; i >= 0 && len(out) < limit; i-- {
		m := db.messages[db.order[i]]
		if m.ChannelID != channelID {
			continue
		}
		if cur != nil && !cur.Before(m.CreatedAt, m.ID) {
			continue
		}
		db.detailsLocked(&m)
		out = append(out, m)
	}

	var next string
	if n := len(out); n > 0 {
		next = pagination.Next(n, limit, out[n-1].CreatedAt, out[n-1].ID)
	}
	return out, next, nil
}

func (r *MessageRepository) UpdateText(_ context.Context, id, text string, mentions []string, editedAt time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	m, ok := r.db.messages[id]
	if !ok || m.Deleted {
		return domain.ErrNotFound
	}
	if mentions == nil {
		mentions = []string{}
	}
	m.Text, m.Mentions, m.EditedAt = text, mentions, &editedAt
	r.db.messages[id] = m
	return nil
}

func (r *MessageRepository) SoftDelete(_ context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	m, ok := r.db.messages[id]
	if !ok || m.Deleted {
		return domain.ErrNotFound
	}
	m.Deleted, m.Text, m.Mentions = true, domain.DeletedPlaceholder, []string{}
	r.db.messages[id] = m
	return nil
}

func (db *DB) detailsLocked(m *domain.Message) {
	var rs []domain.Reaction
	for _, re := range db.reactions {
		if re.MessageID == m.ID {
			rs = append(rs, re)
		}
	}
	m.Reactions = domain.SummarizeReactions(rs)

	m.Attachments = []domain.Attachment{}
	for _, a := range db.attachments {
		if a.MessageID == m.ID {
			m.Attachments = append(m.Attachments, a)
		}
	}
	sortAttachments(m.Attachments)
}
