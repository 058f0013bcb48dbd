package events

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/consogab/server/internal/models"
)

// Producer publishes row-change envelopes. Messages are keyed by
// conversation id so ordering holds within one conversation.
type Producer struct {
	writer *kafkago.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
		Async:        false,
	}
	return &Producer{writer: w}
}

func (p *Producer) MessageInserted(ctx context.Context, m *models.Message) error {
	return p.publish(ctx, m.ConversationID, Envelope{
		Event:          EventMessageInserted,
		ConversationID: m.ConversationID,
		Message:        m,
	})
}

func (p *Producer) ParticipantChanged(ctx context.Context, conversationID string, userIDs []string) error {
	for _, uid := range userIDs {
		err := p.publish(ctx, conversationID, Envelope{
			Event:          EventParticipantChanged,
			ConversationID: conversationID,
			UserID:         uid,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Producer) publish(ctx context.Context, key string, env Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(key),
		Value: b,
		Time:  time.Now(),
	})
}

func (p *Producer) Close() error { return p.writer.Close() }
