package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/pagination"
	"github.com/cwrk-planet/chat-service/internal/postgres/queries"

	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"
)

type MessageRepository struct {
	q querier
}

func NewMessageRepository(q querier) *MessageRepository {
	return &MessageRepository{q: q}
}

// Create сохраняет сообщение; id и created_at заполняет база.
func (r *MessageRepository) Create(ctx context.Context, m *domain.Message) error {
	err := r.q.QueryRow(ctx, queries.QueryCreateMessage,
		m.ChannelID,
		m.ParentID,
		m.SenderID,
		m.SenderName,
		toNullStringPtr(m.SenderAvatar),
		m.Text,
		nonNil(m.Mentions),
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return mapPgError(err)
	}
	m.Mentions = nonNil(m.Mentions)
	m.Reactions = []domain.ReactionSummary{}
	m.Attachments = []domain.Attachment{}
	return nil
}

// Get возвращает сообщение вместе с реакциями и вложениями. Удалённые тоже возвращаются.
func (r *MessageRepository) Get(ctx context.Context, id string) (*domain.Message, error) {
	m, err := scanMessage(r.q.QueryRow(ctx, queries.QueryGetMessage, id))
	if err != nil {
		return nil, err
	}
	out := []domain.Message{*m}
	if err := r.loadDetails(ctx, out); err != nil {
		return nil, err
	}
	return &out[0], nil
}

// List возвращает страницу истории канала, от новых к старым, и курсор следующей страницы.
func (r *MessageRepository) List(ctx context.Context, channelID, before string, limit int) ([]domain.Message, string, error) {
	limit = pagination.ClampLimit(limit)
	cur, err := pagination.DecodeCursor(before)
	if err != nil {
		return nil, "", err
	}
	createdAt, id := cursorArgs(cur)

	rows, err := r.q.Query(ctx, queries.QueryListMessages, channelID, createdAt, id, limit)
	if err != nil {
		return nil, "", mapPgError(err)
	}
	out := []domain.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			rows.Close()
			return nil, "", err
		}
		out = append(out, *m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, "", mapPgError(err)
	}

	if err := r.loadDetails(ctx, out); err != nil {
		return nil, "", err
	}

	var next string
	if n := len(out); n > 0 {
		next = pagination.Next(n, limit, out[n-1].CreatedAt, out[n-1].ID)
	}
	return out, next, nil
}

// UpdateText меняет текст неудалённого сообщения. Для удалённого или отсутствующего ErrNotFound.
func (r *MessageRepository) UpdateText(ctx context.Context, id, text string, mentions []string, editedAt time.Time) error {
	cmd, err := r.q.Exec(ctx, queries.QueryUpdateMessageText, id, text, nonNil(mentions), editedAt)
	if err != nil {
		return mapPgError(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SoftDelete помечает сообщение удалённым и заменяет текст плейсхолдером. Строка остаётся.
func (r *MessageRepository) SoftDelete(ctx context.Context, id string) error {
	cmd, err := r.q.Exec(ctx, queries.QuerySoftDeleteMessage, id, domain.DeletedPlaceholder)
	if err != nil {
		return mapPgError(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *MessageRepository) loadDetails(ctx context.Context, msgs []domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	ids := lo.Map(msgs, func(m domain.Message, _ int) string { return m.ID })

	reactions, err := listReactions(ctx, r.q, queries.QueryListReactions, ids)
	if err != nil {
		return fmt.Errorf("load reactions: %w", err)
	}
	attachments, err := listAttachments(ctx, r.q, ids)
	if err != nil {
		return fmt.Errorf("load attachments: %w", err)
	}

	byMsg := lo.GroupBy(domain.SummarizeReactions(reactions), func(s domain.ReactionSummary) string { return s.MessageID })
	attByMsg := lo.GroupBy(attachments, func(a domain.Attachment) string { return a.MessageID })
	for i := range msgs {
		msgs[i].Reactions = nonNilSlice(byMsg[msgs[i].ID])
		msgs[i].Attachments = nonNilSlice(attByMsg[msgs[i].ID])
	}
	return nil
}

// cursorArgs — пара аргументов ($ts, $id) для keyset-запроса; nil, nil для первой страницы.
func cursorArgs(cur *pagination.Cursor) (any, any) {
	if cur == nil {
		return nil, nil
	}
	return cur.CreatedAt, cur.ID
}

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var m domain.Message
	err := row.Scan(
		&m.ID,
		&m.ChannelID,
		&m.ParentID,
		&m.SenderID,
		&m.SenderName,
		&m.SenderAvatar,
		&m.Text,
		&m.Mentions,
		&m.CreatedAt,
		&m.EditedAt,
		&m.Deleted,
	)
	if err != nil {
		return nil, mapPgError(err)
	}
	m.Mentions = nonNil(m.Mentions)
	return &m, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
