package postgres

import (
	"context"
	"fmt"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/postgres/queries"

	"github.com/jackc/pgx/v5"
)

type ChannelRepository struct {
	db beginner
}

func NewChannelRepository(db beginner) *ChannelRepository {
	return &ChannelRepository{db: db}
}

// Create вставляет канал и строку владельца в одной транзакции.
// Второй активный канал на тот же контекст отсекается уникальным индексом (ErrConflict).
func (r *ChannelRepository) Create(ctx context.Context, ch *domain.Channel, owner *domain.Member) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, queries.QueryCreateChannel,
		ch.Name,
		string(ch.Kind),
		toNullStringPtr(ch.ContextType),
		toNullStringPtr(ch.ContextID),
		ch.CreatedBy,
	).Scan(&ch.ID, &ch.Archived, &ch.CreatedAt)
	if err != nil {
		return mapPgError(err)
	}

	if owner != nil {
		owner.ChannelID = ch.ID
		if _, err := NewMemberRepositoryFromTx(tx).Add(ctx, owner); err != nil {
			return fmt.Errorf("add owner: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *ChannelRepository) Get(ctx context.Context, id string) (*domain.Channel, error) {
	return scanChannel(r.db.QueryRow(ctx, queries.QueryGetChannel, id))
}

// FindByContext возвращает активный канал контекста или ErrNotFound.
func (r *ChannelRepository) FindByContext(ctx context.Context, contextType, contextID string) (*domain.Channel, error) {
	return scanChannel(r.db.QueryRow(ctx, queries.QueryFindChannelByContext, contextType, contextID))
}

func (r *ChannelRepository) ListForUser(ctx context.Context, userID string) ([]domain.Channel, error) {
	rows, err := r.db.Query(ctx, queries.QueryListChannelsForUser, userID)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	out := []domain.Channel{}
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ch)
	}
	return out, mapPgError(rows.Err())
}

func (r *ChannelRepository) Archive(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, queries.QueryArchiveChannel, id)
	if err != nil {
		return mapPgError(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanChannel(row pgx.Row) (*domain.Channel, error) {
	var (
		ch   domain.Channel
		kind string
	)
	err := row.Scan(
		&ch.ID,
		&ch.Name,
		&kind,
		&ch.ContextType,
		&ch.ContextID,
		&ch.Archived,
		&ch.CreatedBy,
		&ch.CreatedAt,
	)
	if err != nil {
		return nil, mapPgError(err)
	}
	ch.Kind = domain.ChannelKind(kind)
	return &ch, nil
}
