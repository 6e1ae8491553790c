package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 16 * 1024
	sendBufferSize = 256
)

// Client is one socket connection of an authenticated user.
type Client struct {
	id      string
	userID  primitive.ObjectID
	conn    *websocket.Conn
	manager *Manager
	send    chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

// enqueue never blocks; a closed or saturated client drops the event.
func (c *Client) enqueue(event Event) bool {
	data, ok := c.manager.marshal(event)
	if !ok {
		return false
	}

	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- data:
		return true
	default:
		c.manager.logger.Warn("WebSocket send buffer full, dropping event",
			zap.String("clientId", c.id), zap.String("type", event.Type))
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *Client) readPump() {
	defer func() {
		c.manager.Unregister(c)
		c.close()
		c.manager.wg.Done()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.manager.logger.Debug("WebSocket read error", zap.String("clientId", c.id), zap.Error(err))
			}
			return
		}

		var in inboundEvent
		if err := json.Unmarshal(message, &in); err != nil {
			c.enqueue(errorEvent("Malformed event"))
			continue
		}
		c.handle(in)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
		c.manager.wg.Done()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handle(in inboundEvent) {
	switch in.Type {
	case eventJoin:
		c.handleJoin(in.Payload)
	case eventSend:
		c.handleSend(in.Payload)
	case eventPing:
		c.enqueue(pongEvent())
	default:
		c.enqueue(errorEvent("Unknown event type"))
	}
}

// handleJoin only lets a connection join as the user its token belongs to.
func (c *Client) handleJoin(raw json.RawMessage) {
	var p joinPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.UserID == "" {
		c.enqueue(errorEvent("userId is required"))
		return
	}
	if p.UserID != c.userID.Hex() {
		c.enqueue(errorEvent("userId does not match the authenticated user"))
		return
	}

	c.manager.Register(c.userID, c)
	c.enqueue(Event{Type: EventJoined, Payload: map[string]interface{}{"userId": p.UserID}})
}

// handleSend relays the payload as-is to the receiver, stamping senderId
// with the authenticated user.
func (c *Client) handleSend(raw json.RawMessage) {
	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.enqueue(errorEvent("Malformed payload"))
		return
	}

	hex, _ := payload["receiverId"].(string)
	receiverID, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		c.enqueue(errorEvent("receiverId is required"))
		return
	}

	payload["senderId"] = c.userID.Hex()
	c.manager.Relay(receiverID, Event{Type: EventReceive, Payload: payload})
}
