package memstore

import (
	"context"
	"sort"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/google/uuid"
)

type ChannelRepository struct{ db *DB }

func (r *ChannelRepository) Create(_ context.Context, ch *domain.Channel, owner *domain.Member) error {
	db := r.db
	db.mu.Lock()
	defer db.mu.Unlock()

	if ch.ContextType != nil && ch.ContextID != nil {
		if _, ok := db.findByContextLocked(*ch.ContextType, *ch.ContextID); ok {
			return domain.ErrConflict
		}
	}
	ch.ID = uuid.NewString()
	ch.CreatedAt = db.nowLocked()
	ch.Archived = false
	db.channels[ch.ID] = *ch

	if owner != nil {
		owner.ChannelID = ch.ID
		owner.JoinedAt = ch.CreatedAt
		db.members[memberKey{ch.ID, owner.UserID}] = *owner
	}
	return nil
}

func (r *ChannelRepository) Get(_ context.Context, id string) (*domain.Channel, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	ch, ok := r.db.channels[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &ch, nil
}

func (r *ChannelRepository) FindByContext(_ context.Context, contextType, contextID string) (*domain.Channel, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	ch, ok := r.db.findByContextLocked(contextType, contextID)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &ch, nil
}

func (r *ChannelRepository) ListForUser(_ context.Context, userID string) ([]domain.Channel, error) {
	db := r.db
	db.mu.Lock()
	defer db.mu.Unlock()

	out := []domain.Channel{}
	for _, ch := range db.channels {
		if ch.Archived {
			continue
		}
		if _, member := db.members[memberKey{ch.ID, userID}]; member || ch.IsPublic() {
			out = append(out, ch)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *ChannelRepository) Archive(_ context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	ch, ok := r.db.channels[id]
	if !ok {
		return domain.ErrNotFound
	}
	ch.Archived = true
	r.db.channels[id] = ch
	return nil
}

func (db *DB) findByContextLocked(contextType, contextID string) (domain.Channel, bool) {
	for _, ch := range db.channels {
		if ch.Archived || ch.ContextType == nil || ch.ContextID == nil {
			continue
		}
		if *ch.ContextType == contextType && *ch.ContextID == contextID {
			return ch, true
		}
	}
	return domain.Channel{}, false
}
