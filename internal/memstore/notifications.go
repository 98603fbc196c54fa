package memstore

import (
	"context"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/pagination"

	"github.com/google/uuid"
)

type NotificationRepository struct{ db *DB }

func (r *NotificationRepository) Create(_ context.Context, n *domain.Notification) error {
	db := r.db
	db.mu.Lock()
	defer db.mu.Unlock()

	n.ID = uuid.NewString()
	n.Read = false
	n.CreatedAt = db.nowLocked()
	db.notifications = append(db.notifications, *n)
	return nil
}

// List: от новых к старым.
func (r *NotificationRepository) List(_ context.Context, userID string, unreadOnly bool, limit int) ([]domain.Notification, error) {
	limit = pagination.ClampLimit(limit)

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	out := []domain.Notification{}
	for i := len(r.db.notifications) - 1; i >= 0 && len(out) < limit; i-- {
		n := r.db.notifications[i]
		if n.UserID == userID && (!unreadOnly || !n.Read) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *NotificationRepository) MarkRead(_ context.Context, id, userID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for i, n := range r.db.notifications {
		if n.ID == id && n.UserID == userID {
			r.db.notifications[i].Read = true
			return nil
		}
	}
	return domain.ErrNotFound
}
