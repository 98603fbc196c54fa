package postgres

import (
	"context"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/pagination"
	"github.com/cwrk-planet/chat-service/internal/postgres/queries"
)

type NotificationRepository struct {
	q querier
}

func NewNotificationRepository(q querier) *NotificationRepository {
	return &NotificationRepository{q: q}
}

func (r *NotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	err := r.q.QueryRow(ctx, queries.QueryCreateNotification,
		n.UserID,
		n.Type,
		n.ChannelID,
		n.MessageID,
		n.ActorID,
	).Scan(&n.ID, &n.Read, &n.CreatedAt)
	return mapPgError(err)
}

func (r *NotificationRepository) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]domain.Notification, error) {
	rows, err := r.q.Query(ctx, queries.QueryListNotifications, userID, unreadOnly, pagination.ClampLimit(limit))
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	out := []domain.Notification{}
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.ChannelID, &n.MessageID, &n.ActorID, &n.Read, &n.CreatedAt); err != nil {
			return nil, mapPgError(err)
		}
		out = append(out, n)
	}
	return out, mapPgError(rows.Err())
}

// MarkRead отмечает уведомление прочитанным; чужое уведомление выглядит как отсутствующее.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string) error {
	cmd, err := r.q.Exec(ctx, queries.QueryMarkNotificationRead, id, userID)
	if err != nil {
		return mapPgError(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
