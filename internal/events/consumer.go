package events

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/consogab/server/internal/metrics"
)

// Broadcaster fans envelopes out to live websocket sessions.
type Broadcaster interface {
	Broadcast(conversationID string, v any)
	NotifyUser(userID string, v any)
}

type Consumer struct {
	reader *kafkago.Reader
	log    *zap.SugaredLogger
}

func NewConsumer(brokers []string, topic, groupID string, log *zap.SugaredLogger) *Consumer {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	})
	return &Consumer{reader: r, log: log}
}

// Run consumes until ctx is cancelled, routing each envelope to the
// conversation room or the per-user feed.
func (c *Consumer) Run(ctx context.Context, b Broadcaster) {
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Errorw("kafka read", "err", err)
			time.Sleep(time.Second)
			continue
		}
		var env Envelope
		if err := json.Unmarshal(m.Value, &env); err != nil {
			c.log.Warnw("bad envelope", "err", err)
			continue
		}
		metrics.RealtimeEvents.WithLabelValues(env.Event).Inc()
		switch env.Event {
		case EventMessageInserted:
			b.Broadcast(env.ConversationID, env)
		case EventParticipantChanged:
			b.NotifyUser(env.UserID, env)
		}
	}
}

func (c *Consumer) Close() error { return c.reader.Close() }
