package realtime

// Имена событий live-канала.
const (
	// inbound
	EventChannelJoin    = "channel:join"
	EventChannelLeave   = "channel:leave"
	EventMessageSend    = "message:send"
	EventMessageEdit    = "message:edit"
	EventMessageDelete  = "message:delete"
	EventReactionAdd    = "reaction:add"
	EventReactionRemove = "reaction:remove"
	EventTypingStart    = "typing:start"
	EventTypingStop     = "typing:stop"

	// outbound
	EventMessageNew      = "message:new"
	EventMessageUpdated  = "message:updated"
	EventMessageDeleted  = "message:deleted"
	EventReactionAdded   = "reaction:added"
	EventReactionRemoved = "reaction:removed"
	EventTypingUpdate    = "typing:update"
	EventNotificationNew = "notification:new"
	EventUserOnline      = "user:online"
	EventUserOffline     = "user:offline"
	EventChannelJoined   = "channel:joined"
	EventAck             = "ack" // только отправителю, если в запросе был requestId
	EventError           = "error"
)

// Event is one frame of the live channel, in both directions.
type Event struct {
	Type      string `json:"type"`
	Payload   any    `json:"payload,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type MessageDeletedPayload struct {
	ID        string `json:"id"`
	ChannelID string `json:"channelId"`
}

type ReactionAddedPayload struct {
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
	Count     int    `json:"count"`
	Users     any    `json:"users"`
	UserID    string `json:"userId"`
}

type ReactionRemovedPayload struct {
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
	UserID    string `json:"userId"`
}

type TypingUpdatePayload struct {
	ChannelID string `json:"channelId"`
	Users     any    `json:"users"`
}

type PresencePayload struct {
	UserID    string `json:"userId"`
	UserName  string `json:"userName,omitempty"`
	ChannelID string `json:"channelId"`
}

type ChannelJoinedPayload struct {
	ChannelID string `json:"channelId"`
	Joined    bool   `json:"joined"`
}
