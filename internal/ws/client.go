// Package ws is the WebSocket transport: browser clients join the same
// matchmaking domain as Telegram users through a small JSON frame
// protocol.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"anonchat/backend/internal/engine"
	"anonchat/backend/internal/models"
	"anonchat/backend/internal/relay"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Frame is the wire format in both directions.
//
// Inbound types: "search", "stop", "text".
// Outbound types: any content kind, or "system" for service messages.
type Frame struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Caption string `json:"caption,omitempty"`
}

// Client is one WebSocket connection, implementing relay.Transport.
type Client struct {
	userID string
	Conn   *websocket.Conn
	Send   chan Frame

	Engine *engine.Engine
	Relay  *relay.Dispatcher

	// done is closed exactly once on disconnect. Send itself is never
	// closed: the dispatcher may still hold this client and call Deliver
	// after the pumps stopped, and that must fail, not panic.
	done     chan struct{}
	doneOnce sync.Once
}

func NewClient(userID string, conn *websocket.Conn, eng *engine.Engine, dispatcher *relay.Dispatcher) *Client {
	return &Client{
		userID: userID,
		Conn:   conn,
		Send:   make(chan Frame, 64),
		Engine: eng,
		Relay:  dispatcher,
		done:   make(chan struct{}),
	}
}

func (c *Client) UserID() string { return c.userID }

// Deliver queues a forwarded payload for the write pump. A full buffer
// or a disconnected client counts as a delivery failure so the
// dispatcher tears the pair down instead of stalling the sender.
func (c *Client) Deliver(msg models.RelayMessage) error {
	return c.enqueue(Frame{Type: string(msg.Kind), Content: msg.Content, Caption: msg.Caption})
}

func (c *Client) Notify(text string) error {
	return c.enqueue(Frame{Type: "system", Content: text})
}

func (c *Client) enqueue(frame Frame) error {
	select {
	case <-c.done:
		return errors.New("client disconnected")
	default:
	}
	select {
	case c.Send <- frame:
		return nil
	default:
		return errors.New("client send buffer full")
	}
}

// Run запускає read та write pump для цього з'єднання.
func (c *Client) Run(ctx context.Context) {
	go c.writePump()
	go c.readPump(ctx)
}

// disconnect releases the user's matchmaking state once the socket is
// gone: an open pair is torn down with the partner notified, a queued
// user is dropped from the queue. Idempotent.
func (c *Client) disconnect(ctx context.Context) {
	c.doneOnce.Do(func() { close(c.done) })
	c.Relay.Unregister(c)

	partner, ok, err := c.Engine.Teardown(ctx, c.userID, engine.CauseDisconnect)
	if err != nil {
		log.Printf("WARN: teardown on disconnect for %s: %v", c.userID, err)
		return
	}
	if ok {
		c.Relay.NotifyUser(partner, "Your partner left the conversation.")
		return
	}
	if err := c.Engine.Cancel(ctx, c.userID); err != nil {
		log.Printf("WARN: cancel on disconnect for %s: %v", c.userID, err)
	}
}

// readPump reads frames and routes them into the engine/dispatcher.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.disconnect(ctx)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error reading message from %s: %v", c.userID, err)
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			log.Printf("Error decoding JSON from client %s: %v", c.userID, err)
			continue
		}
		c.handleFrame(ctx, frame)
	}
}

func (c *Client) handleFrame(ctx context.Context, frame Frame) {
	switch frame.Type {
	case "search":
		outcome, err := c.Engine.RequestSearch(ctx, c.userID)
		if err != nil {
			c.Notify("Service temporarily unavailable, try again.")
			log.Printf("ERROR: requestSearch for %s: %v", c.userID, err)
			return
		}
		if outcome.ReleasedPartnerID != "" {
			c.Relay.NotifyUser(outcome.ReleasedPartnerID, "Your partner left the conversation.")
		}
		if outcome.Queued {
			c.Notify("Looking for a partner...")
			return
		}
		c.Notify("Partner found! Say hello.")
		c.Relay.NotifyUser(outcome.PartnerID, "Partner found! Say hello.")

	case "stop":
		partner, ok, err := c.Engine.Teardown(ctx, c.userID, engine.CauseStop)
		if err != nil {
			c.Notify("Service temporarily unavailable, try again.")
			log.Printf("ERROR: teardown for %s: %v", c.userID, err)
			return
		}
		if !ok {
			if err := c.Engine.Cancel(ctx, c.userID); err != nil {
				log.Printf("ERROR: cancel for %s: %v", c.userID, err)
			}
			c.Notify("You have no active conversation.")
			return
		}
		c.Notify("You left the conversation.")
		c.Relay.NotifyUser(partner, "Your partner left the conversation.")

	case "text":
		delivery, err := c.Relay.Relay(ctx, models.RelayMessage{
			SenderID: c.userID,
			Kind:     models.KindText,
			Content:  frame.Content,
		})
		if err != nil {
			c.Notify("Service temporarily unavailable, try again.")
			log.Printf("ERROR: relay from %s: %v", c.userID, err)
			return
		}
		switch delivery.Result {
		case relay.NoPartner:
			c.Notify("You have no partner right now. Search first.")
		case relay.DeliveryFailed:
			c.Notify("Your partner is unreachable, the conversation was closed.")
		}

	default:
		log.Printf("Unhandled frame type from %s: %s", c.userID, frame.Type)
	}
}

// writePump drains Send into the connection and keeps it alive with
// pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case frame := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteJSON(frame); err != nil {
				return
			}

		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
