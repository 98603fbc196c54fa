package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/postgres/queries"

	"github.com/jackc/pgx/v5"
)

type MemberRepository struct {
	q querier
}

func NewMemberRepository(q querier) *MemberRepository {
	return &MemberRepository{q: q}
}

// NewMemberRepositoryFromTx - конструктор от транзакции (pgx.Tx), удобно для составных операций
func NewMemberRepositoryFromTx(tx pgx.Tx) *MemberRepository {
	return &MemberRepository{q: tx}
}

// Add идемпотентен: повторное добавление не ошибка, added=false.
func (r *MemberRepository) Add(ctx context.Context, m *domain.Member) (bool, error) {
	err := r.q.QueryRow(ctx, queries.QueryAddMember,
		m.ChannelID,
		m.UserID,
		m.DisplayName,
		toNullStringPtr(m.AvatarURL),
		string(m.Role),
	).Scan(&m.JoinedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, mapPgError(err)
	}
	return true, nil
}

func (r *MemberRepository) Get(ctx context.Context, channelID, userID string) (*domain.Member, error) {
	return scanMember(r.q.QueryRow(ctx, queries.QueryGetMember, channelID, userID))
}

func (r *MemberRepository) List(ctx context.Context, channelID string) ([]domain.Member, error) {
	rows, err := r.q.Query(ctx, queries.QueryListMembers, channelID)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	out := []domain.Member{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, mapPgError(rows.Err())
}

func (r *MemberRepository) Remove(ctx context.Context, channelID, userID string) (bool, error) {
	cmd, err := r.q.Exec(ctx, queries.QueryRemoveMember, channelID, userID)
	if err != nil {
		return false, mapPgError(err)
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *MemberRepository) MarkRead(ctx context.Context, channelID, userID string, at time.Time) error {
	cmd, err := r.q.Exec(ctx, queries.QueryMarkRead, channelID, userID, at)
	if err != nil {
		return mapPgError(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanMember(row pgx.Row) (*domain.Member, error) {
	var (
		m    domain.Member
		role string
	)
	err := row.Scan(
		&m.ChannelID,
		&m.UserID,
		&m.DisplayName,
		&m.AvatarURL,
		&role,
		&m.JoinedAt,
		&m.LastReadAt,
	)
	if err != nil {
		return nil, mapPgError(err)
	}
	m.Role = domain.MemberRole(role)
	return &m, nil
}
