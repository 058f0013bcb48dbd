package client

import (
	"context"
	"sync"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// WSStream is the websocket implementation of Stream. The per-user
// participant feed is implicit: the server attaches it to the session at
// upgrade time, so only conversation rooms need explicit subscribe
// commands.
type WSStream struct {
	conn   *websocket.Conn
	events chan Event
	cancel context.CancelFunc

	mu   sync.Mutex
	subs map[string]bool
}

type wsCommand struct {
	Action         string `json:"action"`
	ConversationID string `json:"conversation_id"`
}

// DialStream connects to the realtime endpoint. The token rides a query
// param because the upgrade request cannot carry an Authorization header
// from a browser-equivalent client.
func DialStream(ctx context.Context, wsURL, token string) (*WSStream, error) {
	conn, _, err := websocket.Dial(ctx, wsURL+"?token="+token, nil)
	if err != nil {
		return nil, err
	}
	runCtx, cancel := context.WithCancel(context.Background())
	s := &WSStream{
		conn:   conn,
		events: make(chan Event, 64),
		cancel: cancel,
		subs:   make(map[string]bool),
	}
	go s.readLoop(runCtx)
	return s, nil
}

func (s *WSStream) readLoop(ctx context.Context) {
	defer close(s.events)
	for {
		var ev Event
		if err := wsjson.Read(ctx, s.conn, &ev); err != nil {
			return
		}
		select {
		case s.events <- ev:
		default:
			// drop when the consumer lags; the periodic refetch recovers
		}
	}
}

func (s *WSStream) Events() <-chan Event { return s.events }

func (s *WSStream) Subscribe(conversationID string) error {
	s.mu.Lock()
	s.subs[conversationID] = true
	s.mu.Unlock()
	return wsjson.Write(context.Background(), s.conn, wsCommand{
		Action:         "subscribe",
		ConversationID: conversationID,
	})
}

func (s *WSStream) Unsubscribe(conversationID string) error {
	s.mu.Lock()
	delete(s.subs, conversationID)
	s.mu.Unlock()
	return wsjson.Write(context.Background(), s.conn, wsCommand{
		Action:         "unsubscribe",
		ConversationID: conversationID,
	})
}

func (s *WSStream) Close() error {
	s.cancel()
	return s.conn.Close(websocket.StatusNormalClosure, "client closed")
}
