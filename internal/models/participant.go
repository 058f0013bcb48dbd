package models

import "time"

// Participant is a user's membership record in a conversation. LastReadAt
// drives unread counts and only ever moves forward.
type Participant struct {
	ConversationID string    `bson:"conversation_id" json:"conversation_id"`
	UserID         string    `bson:"user_id" json:"user_id"`
	JoinedAt       time.Time `bson:"joined_at" json:"joined_at"`
	LastReadAt     time.Time `bson:"last_read_at" json:"last_read_at"`
}
