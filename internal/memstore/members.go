package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

type MemberRepository struct{ db *DB }

func (r *MemberRepository) Add(_ context.Context, m *domain.Member) (bool, error) {
	db := r.db
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.channels[m.ChannelID]; !ok {
		return false, domain.ErrNotFound
	}
	k := memberKey{m.ChannelID, m.UserID}
	if _, ok := db.members[k]; ok {
		return false, nil
	}
	m.JoinedAt = db.nowLocked()
	db.members[k] = *m
	return true, nil
}

func (r *MemberRepository) Get(_ context.Context, channelID, userID string) (*domain.Member, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	m, ok := r.db.members[memberKey{channelID, userID}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &m, nil
}

func (r *MemberRepository) List(_ context.Context, channelID string) ([]domain.Member, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	out := []domain.Member{}
	for k, m := range r.db.members {
		if k.channelID == channelID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].UserID < out[j].UserID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out, nil
}

func (r *MemberRepository) Remove(_ context.Context, channelID, userID string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	k := memberKey{channelID, userID}
	if _, ok := r.db.members[k]; !ok {
		return false, nil
	}
	delete(r.db.members, k)
	return true, nil
}

func (r *MemberRepository) MarkRead(_ context.Context, channelID, userID string, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	k := memberKey{channelID, userID}
	m, ok := r.db.members[k]
	if !ok {
		return domain.ErrNotFound
	}
	m.LastReadAt = &at
	r.db.members[k] = m
	return nil
}
