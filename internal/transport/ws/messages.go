package ws

import (
	"fmt"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/goccy/go-json"
)

// inbound — кадр от клиента; payload разбирается уже по типу события.
type inbound struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	RequestID string          `json:"requestId"`
}

type channelRef struct {
	ChannelID string `json:"channelId"`
}

type sendPayload struct {
	ChannelID string  `json:"channelId"`
	Text      string  `json:"text"`
	ParentID  *string `json:"parentId,omitempty"`
}

type editPayload struct {
	MessageID string `json:"messageId"`
	Text      string `json:"text"`
}

type messageRef struct {
	MessageID string `json:"messageId"`
}

type reactionPayload struct {
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
}

func decode(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: malformed payload", domain.ErrValidation)
	}
	return nil
}
