package postgres

import (
	"context"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/postgres/queries"
)

type ReactionRepository struct {
	q querier
}

func NewReactionRepository(q querier) *ReactionRepository {
	return &ReactionRepository{q: q}
}

// Add вставляет реакцию; повтор той же тройки (message, emoji, user) даёт inserted=false без ошибки.
func (r *ReactionRepository) Add(ctx context.Context, re domain.Reaction) (bool, error) {
	cmd, err := r.q.Exec(ctx, queries.QueryAddReaction, re.MessageID, re.Emoji, re.UserID, re.UserName)
	if err != nil {
		return false, mapPgError(err)
	}
	return cmd.RowsAffected() > 0, nil
}

// Remove удаляет реакцию; если строки нет, removed=false без ошибки.
func (r *ReactionRepository) Remove(ctx context.Context, messageID, emoji, userID string) (bool, error) {
	cmd, err := r.q.Exec(ctx, queries.QueryRemoveReaction, messageID, emoji, userID)
	if err != nil {
		return false, mapPgError(err)
	}
	return cmd.RowsAffected() > 0, nil
}

// Summary считает реакции одного emoji. Без реакций Count 0 и пустой список.
func (r *ReactionRepository) Summary(ctx context.Context, messageID, emoji string) (*domain.ReactionSummary, error) {
	list, err := listReactions(ctx, r.q, queries.QueryListReactionsForEmoji, messageID, emoji)
	if err != nil {
		return nil, err
	}
	if s := domain.SummarizeReactions(list); len(s) > 0 {
		return &s[0], nil
	}
	return &domain.ReactionSummary{MessageID: messageID, Emoji: emoji, Users: []domain.ReactionUser{}}, nil
}

func listReactions(ctx context.Context, q querier, sql string, args ...any) ([]domain.Reaction, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var out []domain.Reaction
	for rows.Next() {
		var re domain.Reaction
		if err := rows.Scan(&re.MessageID, &re.Emoji, &re.UserID, &re.UserName, &re.CreatedAt); err != nil {
			return nil, mapPgError(err)
		}
		out = append(out, re)
	}
	return out, mapPgError(rows.Err())
}
