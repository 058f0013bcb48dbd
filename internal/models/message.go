package models

import "time"

type MessageType string

const (
	MessageText     MessageType = "text"
	MessageImage    MessageType = "image"
	MessageFile     MessageType = "file"
	MessageAudio    MessageType = "audio"
	MessageVideo    MessageType = "video"
	MessageLocation MessageType = "location"
	MessageSystem   MessageType = "system"
)

type MessageStatus string

const (
	StatusSending   MessageStatus = "sending"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
)

// Metadata keys for attachments folded into the metadata blob.
const (
	MetaAttachmentURL  = "attachment_url"
	MetaAttachmentName = "attachment_name"
)

type Message struct {
	ID             string            `bson:"_id,omitempty" json:"id"`
	ConversationID string            `bson:"conversation_id" json:"conversation_id"`
	SenderID       string            `bson:"sender_id" json:"sender_id"`
	// ClientID is the client-generated correlation id echoed back by the
	// server so an optimistic entry can be matched without comparing content.
	ClientID  string            `bson:"client_id,omitempty" json:"client_id,omitempty"`
	Content   string            `bson:"content,omitempty" json:"content,omitempty"`
	Type      MessageType       `bson:"type" json:"type"`
	Status    MessageStatus     `bson:"status" json:"status"`
	Metadata  map[string]string `bson:"metadata,omitempty" json:"metadata,omitempty"`
	ReplyTo   string            `bson:"reply_to,omitempty" json:"reply_to,omitempty"`
	CreatedAt time.Time         `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time         `bson:"updated_at" json:"updated_at"`

	// Sender snapshot attached at read time, never stored on the row.
	Sender *Profile `bson:"-" json:"sender,omitempty"`
}

func (m *Message) AttachmentURL() string {
	if m.Metadata == nil {
		return ""
	}
	return m.Metadata[MetaAttachmentURL]
}
