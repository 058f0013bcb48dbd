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

type MessageRepo interface {
	// Insert writes the message. A replay carrying an already-committed
	// client id returns the existing row instead of a duplicate-key
	// failure, so retried sends converge on one message.
	Insert(ctx context.Context, m *models.Message) (*models.Message, error)
	// Page returns one page of messages, newest first. Offset is page*limit.
	Page(ctx context.Context, conversationID string, page, limit int64) ([]*models.Message, error)
	UpdateStatus(ctx context.Context, id string, status models.MessageStatus) error
}

type messageRepo struct {
	col *mongo.Collection
}

func NewMessageRepo(db *mongo.Database) MessageRepo {
	return &messageRepo{col: db.Collection(colMessages)}
}

func (r *messageRepo) Insert(ctx context.Context, m *models.Message) (*models.Message, error) {
	now := time.Now().UTC()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CreatedAt = now
	m.UpdatedAt = now
	if _, err := r.col.InsertOne(ctx, m); err != nil {
		if mongo.IsDuplicateKeyError(err) && m.ClientID != "" {
			var existing models.Message
			ferr := r.col.FindOne(ctx, bson.M{
				"conversation_id": m.ConversationID,
				"client_id":       m.ClientID,
			}).Decode(&existing)
			if ferr == nil {
				return &existing, nil
			}
		}
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return m, nil
}

func (r *messageRepo) Page(ctx context.Context, conversationID string, page, limit int64) ([]*models.Message, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(page * limit).
		SetLimit(limit)
	cur, err := r.col.Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, fmt.Errorf("page messages: %w", err)
	}
	defer cur.Close(ctx)

	var out []*models.Message
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	return out, nil
}

func (r *messageRepo) UpdateStatus(ctx context.Context, id string, status models.MessageStatus) error {
	_, err := r.col.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"status": status, "updated_at": time.Now().UTC()},
	})
	return err
}
