package memstore

import (
	"context"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

type UserRepository struct{ db *DB }

func (r *UserRepository) Contact(_ context.Context, userID string) (*domain.Contact, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	c, ok := r.db.users[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}
