// Package client is the ConsoGab messaging sync engine used by the
// consumer apps: a query/mutation cache with optimistic send and
// rollback, merged against the realtime insert feed.
package client

import (
	"context"

	"github.com/consogab/server/internal/models"
)

// Event mirrors the realtime envelope delivered over the websocket feed.
type Event struct {
	Type           string          `json:"event"`
	ConversationID string          `json:"conversation_id,omitempty"`
	UserID         string          `json:"user_id,omitempty"`
	Message        *models.Message `json:"message,omitempty"`
}

const (
	eventMessageInserted    = "message.inserted"
	eventParticipantChanged = "participant.changed"
)

type SendInput struct {
	ConversationID string             `json:"conversation_id"`
	ClientID       string             `json:"client_id"`
	Content        string             `json:"content"`
	Type           models.MessageType `json:"type"`
	AttachmentURL  string             `json:"attachment_url,omitempty"`
	AttachmentName string             `json:"attachment_name,omitempty"`
	ReplyTo        string             `json:"reply_to,omitempty"`
}

// API is the HTTP boundary the syncer drives.
type API interface {
	Conversations(ctx context.Context) ([]*models.Conversation, error)
	Messages(ctx context.Context, conversationID string, page, limit int) ([]*models.Message, error)
	Send(ctx context.Context, in SendInput) (*models.Message, error)
	MarkRead(ctx context.Context, conversationID string) error
	Profile(ctx context.Context, id string) (*models.Profile, error)
}

// Stream is the realtime boundary. Events carries envelopes for every
// subscribed conversation plus the current user's participant feed.
// Nothing is buffered while a conversation is unsubscribed; gaps are
// recovered by the next refetch.
type Stream interface {
	Events() <-chan Event
	Subscribe(conversationID string) error
	Unsubscribe(conversationID string) error
	Close() error
}
