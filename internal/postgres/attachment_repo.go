package postgres

import (
	"context"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/postgres/queries"

	"github.com/jackc/pgx/v5"
)

// AttachmentRepository хранит только метаданные; сами файлы живут во внешнем хранилище.
type AttachmentRepository struct {
	q querier
}

func NewAttachmentRepository(q querier) *AttachmentRepository {
	return &AttachmentRepository{q: q}
}

func (r *AttachmentRepository) Create(ctx context.Context, a *domain.Attachment) error {
	err := r.q.QueryRow(ctx, queries.QueryCreateAttachment,
		a.MessageID,
		a.FileName,
		a.Size,
		a.MimeType,
		a.StoragePath,
		a.UploadedBy,
	).Scan(&a.ID, &a.CreatedAt)
	return mapPgError(err)
}

func (r *AttachmentRepository) Get(ctx context.Context, id string) (*domain.Attachment, error) {
	return scanAttachment(r.q.QueryRow(ctx, queries.QueryGetAttachment, id))
}

func (r *AttachmentRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.q.Exec(ctx, queries.QueryDeleteAttachment, id)
	if err != nil {
		return mapPgError(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func listAttachments(ctx context.Context, q querier, messageIDs []string) ([]domain.Attachment, error) {
	rows, err := q.Query(ctx, queries.QueryListAttachments, messageIDs)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var out []domain.Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, mapPgError(rows.Err())
}

func scanAttachment(row pgx.Row) (*domain.Attachment, error) {
	var a domain.Attachment
	err := row.Scan(
		&a.ID,
		&a.MessageID,
		&a.FileName,
		&a.Size,
		&a.MimeType,
		&a.StoragePath,
		&a.UploadedBy,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, mapPgError(err)
	}
	return &a, nil
}
