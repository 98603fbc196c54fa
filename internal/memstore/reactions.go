package memstore

import (
	"context"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

type ReactionRepository struct{ db *DB }

func (r *ReactionRepository) Add(_ context.Context, re domain.Reaction) (bool, error) {
	db := r.db
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.messages[re.MessageID]; !ok {
		return false, domain.ErrNotFound
	}
	for _, x := range db.reactions {
		if x.MessageID == re.MessageID && x.Emoji == re.Emoji && x.UserID == re.UserID {
			return false, nil
		}
	}
	re.CreatedAt = db.nowLocked()
	db.reactions = append(db.reactions, re)
	return true, nil
}

func (r *ReactionRepository) Remove(_ context.Context, messageID, emoji, userID string) (bool, error) {
	db := r.db
	db.mu.Lock()
	defer db.mu.Unlock()

	for i, x := range db.reactions {
		if x.MessageID == messageID && x.Emoji == emoji && x.UserID == userID {
			db.reactions = append(db.reactions[:i], db.reactions[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (r *ReactionRepository) Summary(_ context.Context, messageID, emoji string) (*domain.ReactionSummary, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var rs []domain.Reaction
	for _, x := range r.db.reactions {
		if x.MessageID == messageID && x.Emoji == emoji {
			rs = append(rs, x)
		}
	}
	if s := domain.SummarizeReactions(rs); len(s) > 0 {
		return &s[0], nil
	}
	return &domain.ReactionSummary{MessageID: messageID, Emoji: emoji, Users: []domain.ReactionUser{}}, nil
}
