package domain

import "time"

const NotificationMention = "mention"

type Notification struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"userId"`
	Type      string    `db:"type" json:"type"`
	ChannelID string    `db:"channel_id" json:"channelId"`
	MessageID string    `db:"message_id" json:"messageId"`
	ActorID   string    `db:"actor_id" json:"actorId"`
	Read      bool      `db:"read" json:"read"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// MentionEmail is handed to the mail delivery collaborator.
type MentionEmail struct {
	RecipientEmail string `json:"recipientEmail"`
	RecipientName  string `json:"recipientName"`
	SenderName     string `json:"senderName"`
	MessageText    string `json:"messageText"`
	ChannelName    string `json:"channelName"`
}
