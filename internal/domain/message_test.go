package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSummarizeReactions(t *testing.T) {
	got := SummarizeReactions([]Reaction{
		{MessageID: "m1", Emoji: "👍", UserID: "u1", UserName: "Ann"},
		{MessageID: "m1", Emoji: "🎉", UserID: "u2", UserName: "Bob"},
		{MessageID: "m1", Emoji: "👍", UserID: "u2", UserName: "Bob"},
		{MessageID: "m2", Emoji: "👍", UserID: "u1", UserName: "Ann"},
	})

	require.Equal(t, []ReactionSummary{
		{MessageID: "m1", Emoji: "👍", Count: 2, Users: []ReactionUser{{ID: "u1", Name: "Ann"}, {ID: "u2", Name: "Bob"}}},
		{MessageID: "m1", Emoji: "🎉", Count: 1, Users: []ReactionUser{{ID: "u2", Name: "Bob"}}},
		{MessageID: "m2", Emoji: "👍", Count: 1, Users: []ReactionUser{{ID: "u1", Name: "Ann"}}},
	}, got)
}

func TestSummarizeReactions_Empty(t *testing.T) {
	require.Empty(t, SummarizeReactions(nil))
	require.NotNil(t, SummarizeReactions(nil))
}
