package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/consogab/server/internal/models"
)

type ParticipantRepo interface {
	// EnsureMembers upserts one participant row per user. Existing rows
	// keep their joined_at and last_read_at.
	EnsureMembers(ctx context.Context, conversationID string, userIDs []string) error
	// MarkRead moves last_read_at forward to at. Earlier timestamps are
	// ignored, so the later of two racing calls wins.
	MarkRead(ctx context.Context, conversationID, userID string, at time.Time) error
	Get(ctx context.Context, conversationID, userID string) (*models.Participant, error)
}

type participantRepo struct {
	col *mongo.Collection
}

func NewParticipantRepo(db *mongo.Database) ParticipantRepo {
	return &participantRepo{col: db.Collection(colParticipants)}
}

func (r *participantRepo) EnsureMembers(ctx context.Context, conversationID string, userIDs []string) error {
	now := time.Now().UTC()
	for _, uid := range userIDs {
		_, err := r.col.UpdateOne(ctx,
			bson.M{"conversation_id": conversationID, "user_id": uid},
			bson.M{"$setOnInsert": bson.M{
				"conversation_id": conversationID,
				"user_id":         uid,
				"joined_at":       now,
				"last_read_at":    time.Time{},
			}},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return fmt.Errorf("ensure participant %s: %w", uid, err)
		}
	}
	return nil
}

func (r *participantRepo) MarkRead(ctx context.Context, conversationID, userID string, at time.Time) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"conversation_id": conversationID, "user_id": userID},
		bson.M{"$max": bson.M{"last_read_at": at.UTC()}},
	)
	return err
}

func (r *participantRepo) Get(ctx context.Context, conversationID, userID string) (*models.Participant, error) {
	var p models.Participant
	err := r.col.FindOne(ctx, bson.M{
		"conversation_id": conversationID,
		"user_id":         userID,
	}).Decode(&p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
