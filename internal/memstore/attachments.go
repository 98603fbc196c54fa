package memstore

import (
	"context"
	"sort"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/google/uuid"
)

type AttachmentRepository struct{ db *DB }

func (r *AttachmentRepository) Create(_ context.Context, a *domain.Attachment) error {
	db := r.db
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.messages[a.MessageID]; !ok {
		return domain.ErrNotFound
	}
	a.ID = uuid.NewString()
	a.CreatedAt = db.nowLocked()
	db.attachments[a.ID] = *a
	return nil
}

func (r *AttachmentRepository) Get(_ context.Context, id string) (*domain.Attachment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	a, ok := r.db.attachments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &a, nil
}

func (r *AttachmentRepository) Delete(_ context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.attachments[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.db.attachments, id)
	return nil
}

func sortAttachments(list []domain.Attachment) {
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
}
