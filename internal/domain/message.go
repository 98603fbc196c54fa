package domain

import "time"

// DeletedPlaceholder replaces the text of a soft-deleted message.
const DeletedPlaceholder = "[message deleted]"

type Message struct {
	ID           string            `db:"id" json:"id"`
	ChannelID    string            `db:"channel_id" json:"channelId"`
	ParentID     *string           `db:"parent_id" json:"parentId,omitempty"`
	SenderID     string            `db:"sender_id" json:"senderId"`
	SenderName   string            `db:"sender_name" json:"senderName"`
	SenderAvatar *string           `db:"sender_avatar" json:"senderAvatar,omitempty"`
	Text         string            `db:"text" json:"text"`
	Mentions     []string          `db:"mentions" json:"mentions"`
	CreatedAt    time.Time         `db:"created_at" json:"timestamp"`
	EditedAt     *time.Time        `db:"edited_at" json:"editedAt,omitempty"`
	Deleted      bool              `db:"deleted" json:"deleted"`
	Reactions    []ReactionSummary `json:"reactions"`
	Attachments  []Attachment      `json:"attachments"`
}

type Reaction struct {
	MessageID string    `db:"message_id"`
	Emoji     string    `db:"emoji"`
	UserID    string    `db:"user_id"`
	UserName  string    `db:"user_name"`
	CreatedAt time.Time `db:"created_at"`
}

type ReactionUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ReactionSummary — реакции сообщения, сгруппированные по emoji.
type ReactionSummary struct {
	MessageID string         `json:"messageId"`
	Emoji     string         `json:"emoji"`
	Count     int            `json:"count"`
	Users     []ReactionUser `json:"users"`
}

type Attachment struct {
	ID          string    `db:"id" json:"id"`
	MessageID   string    `db:"message_id" json:"messageId"`
	FileName    string    `db:"file_name" json:"fileName"`
	Size        int64     `db:"size" json:"size"`
	MimeType    string    `db:"mime_type" json:"mimeType"`
	StoragePath string    `db:"storage_path" json:"storagePath"`
	UploadedBy  string    `db:"uploaded_by" json:"uploadedBy"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// SummarizeReactions группирует реакции по (message, emoji) в порядке первого появления.
func SummarizeReactions(list []Reaction) []ReactionSummary {
	type key struct{ msg, emoji string }
	idx := make(map[key]int)
	out := []ReactionSummary{}
	for _, re := range list {
		k := key{re.MessageID, re.Emoji}
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, ReactionSummary{MessageID: re.MessageID, Emoji: re.Emoji, Users: []ReactionUser{}})
		}
		out[i].Count++
		out[i].Users = append(out[i].Users, ReactionUser{ID: re.UserID, Name: re.UserName})
	}
	return out
}
