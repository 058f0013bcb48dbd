package ws

import (
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"
	"golang.org/x/time/rate"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	readLimit  = 64 * 1024
)

// control frames sent by the client to manage subscriptions
type command struct {
	Action         string `json:"action"` // subscribe | unsubscribe
	ConversationID string `json:"conversation_id"`
}

type Client struct {
	UserID  string
	conn    *websocket.Conn
	hub     *Hub
	send    chan any
	limiter *rate.Limiter
}

func NewClient(userID string, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		UserID:  userID,
		conn:    conn,
		hub:     hub,
		send:    make(chan any, 256),
		limiter: rate.NewLimiter(rate.Limit(20), 40),
	}
}

// Send queues a payload for the session, dropping it if the session's
// buffer is full. A slow consumer recovers through the next refetch.
func (c *Client) Send(v any) {
	select {
	case c.send <- v:
	default:
	}
}

// Run drives the read and write pumps and blocks until the connection
// drops.
func (c *Client) Run() {
	c.hub.Register(c)
	go c.writePump()
	c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		close(c.send)
	}()
	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if !c.limiter.Allow() {
			continue
		}
		var cmd command
		if err := json.Unmarshal(data, &cmd); err != nil {
			continue
		}
		switch cmd.Action {
		case "subscribe":
			if cmd.ConversationID != "" {
				c.hub.Join(cmd.ConversationID, c)
			}
		case "unsubscribe":
			if cmd.ConversationID != "" {
				c.hub.Leave(cmd.ConversationID, c)
			}
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case v, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(time.Second))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(v); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(time.Second)); err != nil {
				return
			}
		}
	}
}
