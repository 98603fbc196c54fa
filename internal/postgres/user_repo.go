package postgres

import (
	"context"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/postgres/queries"
)

// UserRepository читает справочник пользователей, который ведёт auth-сервис.
type UserRepository struct {
	q querier
}

func NewUserRepository(q querier) *UserRepository {
	return &UserRepository{q: q}
}

func (r *UserRepository) Contact(ctx context.Context, userID string) (*domain.Contact, error) {
	var c domain.Contact
	if err := r.q.QueryRow(ctx, queries.QueryGetContact, userID).Scan(&c.UserID, &c.Name, &c.Email); err != nil {
		return nil, mapPgError(err)
	}
	return &c, nil
}
