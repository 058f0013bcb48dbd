package models

import "time"

type ConversationType string

const (
	ConversationDirect      ConversationType = "direct"
	ConversationGroup       ConversationType = "group"
	ConversationSupport     ConversationType = "support"
	ConversationOrder       ConversationType = "order"
	ConversationReservation ConversationType = "reservation"
	ConversationQuote       ConversationType = "quote"
)

// LastMessage is the denormalized preview attached to a conversation
// listing. It is computed at read time, never kept in sync on write.
type LastMessage struct {
	Content   string    `bson:"content" json:"content"`
	SenderID  string    `bson:"sender_id" json:"sender_id"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

type Conversation struct {
	ID         string           `bson:"_id,omitempty" json:"id"`
	Key        string           `bson:"key" json:"-"`
	Type       ConversationType `bson:"type" json:"type"`
	Title      string           `bson:"title,omitempty" json:"title,omitempty"`
	BusinessID string           `bson:"business_id,omitempty" json:"business_id,omitempty"`
	Members    []string         `bson:"members" json:"members"`
	CreatedAt  time.Time        `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time        `bson:"updated_at" json:"updated_at"`

	// Per-requester fields filled by the listing aggregation.
	LastMessage *LastMessage `bson:"last_message,omitempty" json:"last_message,omitempty"`
	UnreadCount int64        `bson:"unread_count,omitempty" json:"unread_count"`

	// Display context resolved from the directory, never stored.
	BusinessName string `bson:"-" json:"business_name,omitempty"`
	BusinessLogo string `bson:"-" json:"business_logo,omitempty"`
	PeerName     string `bson:"-" json:"peer_name,omitempty"`
	PeerAvatar   string `bson:"-" json:"peer_avatar,omitempty"`
}
