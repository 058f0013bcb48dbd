package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/consogab/server/internal/models"
)

type ConversationRepo interface {
	// GetOrCreate atomically returns the conversation for the given key,
	// inserting it when absent. The second return reports whether an
	// insert happened.
	GetOrCreate(ctx context.Context, c *models.Conversation) (*models.Conversation, bool, error)
	Touch(ctx context.Context, id string) error
	// ListForUser is the aggregated per-conversation summary: last message
	// preview, unread count, ordered by recency.
	ListForUser(ctx context.Context, userID string) ([]*models.Conversation, error)
}

type conversationRepo struct {
	convs *mongo.Collection
	parts *mongo.Collection
}

func NewConversationRepo(db *mongo.Database) ConversationRepo {
	return &conversationRepo{
		convs: db.Collection(colConversations),
		parts: db.Collection(colParticipants),
	}
}

func (r *conversationRepo) GetOrCreate(ctx context.Context, c *models.Conversation) (*models.Conversation, bool, error) {
	now := time.Now().UTC()
	candidateID := uuid.NewString()
	doc := bson.M{
		"_id":        candidateID,
		"key":        c.Key,
		"type":       c.Type,
		"members":    c.Members,
		"created_at": now,
		"updated_at": now,
	}
	if c.Title != "" {
		doc["title"] = c.Title
	}
	if c.BusinessID != "" {
		doc["business_id"] = c.BusinessID
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var out models.Conversation
	err := r.convs.FindOneAndUpdate(ctx,
		bson.M{"key": c.Key},
		bson.M{"$setOnInsert": doc},
		opts,
	).Decode(&out)
	if err != nil {
		return nil, false, fmt.Errorf("get or create conversation: %w", err)
	}
	return &out, out.ID == candidateID, nil
}

func (r *conversationRepo) Touch(ctx context.Context, id string) error {
	_, err := r.convs.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"updated_at": time.Now().UTC()},
	})
	return err
}

func (r *conversationRepo) ListForUser(ctx context.Context, userID string) ([]*models.Conversation, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"user_id": userID}}},
		bson.D{{Key: "$lookup", Value: bson.M{
			"from":         colConversations,
			"localField":   "conversation_id",
			"foreignField": "_id",
			"as":           "conv",
		}}},
		bson.D{{Key: "$unwind", Value: "$conv"}},
		bson.D{{Key: "$lookup", Value: bson.M{
			"from": colMessages,
			"let":  bson.M{"cid": "$conversation_id"},
			"pipeline": bson.A{
				bson.M{"$match": bson.M{"$expr": bson.M{"$eq": bson.A{"$conversation_id", "$$cid"}}}},
				bson.M{"$sort": bson.M{"created_at": -1}},
				bson.M{"$limit": 1},
			},
			"as": "last",
		}}},
		bson.D{{Key: "$lookup", Value: bson.M{
			"from": colMessages,
			"let":  bson.M{"cid": "$conversation_id", "since": "$last_read_at"},
			"pipeline": bson.A{
				bson.M{"$match": bson.M{"$expr": bson.M{"$and": bson.A{
					bson.M{"$eq": bson.A{"$conversation_id", "$$cid"}},
					bson.M{"$gt": bson.A{"$created_at", "$$since"}},
					bson.M{"$ne": bson.A{"$sender_id", userID}},
				}}}},
				bson.M{"$count": "n"},
			},
			"as": "unread",
		}}},
		bson.D{{Key: "$addFields", Value: bson.M{
			"conv.last_message": bson.M{"$arrayElemAt": bson.A{"$last", 0}},
			"conv.unread_count": bson.M{"$ifNull": bson.A{
				bson.M{"$arrayElemAt": bson.A{"$unread.n", 0}}, 0,
			}},
		}}},
		bson.D{{Key: "$replaceRoot", Value: bson.M{"newRoot": "$conv"}}},
		bson.D{{Key: "$sort", Value: bson.M{"updated_at": -1}}},
	}

	cur, err := r.parts.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer cur.Close(ctx)

	var out []*models.Conversation
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode conversations: %w", err)
	}
	return out, nil
}
