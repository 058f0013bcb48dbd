package events

import "github.com/consogab/server/internal/models"

const (
	EventMessageInserted    = "message.inserted"
	EventParticipantChanged = "participant.changed"
)

// Envelope is the wire shape on the kafka topic and the websocket feed.
type Envelope struct {
	Event          string          `json:"event"`
	ConversationID string          `json:"conversation_id,omitempty"`
	UserID         string          `json:"user_id,omitempty"`
	Message        *models.Message `json:"message,omitempty"`
}
