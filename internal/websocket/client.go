package websocket

import (
	"context"
	"encoding/json"
	"time"

	"bonfire-agent/internal/dto"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// EnvelopeSink receives the envelopes peers send over their connection.
type EnvelopeSink interface {
	Dispatch(ctx context.Context, env dto.Envelope) (string, error)
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	Hub *Hub

	Conn *websocket.Conn

	// Address of the connected peer
	Address string

	// Buffered channel of outbound envelopes
	Send chan []byte
}

// readPump hands every inbound frame to sink. A peer may only send as itself.
func (c *Client) readPump(sink EnvelopeSink) {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn("Client", "Unexpected close", map[string]interface{}{
					"address": c.Address,
					"error":   err.Error(),
				})
			}
			return
		}

		var env dto.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.Hub.logger.Warn("Client", "Dropping undecodable frame", map[string]interface{}{
				"address": c.Address,
				"error":   err.Error(),
			})
			continue
		}
		if env.Sender != c.Address {
			c.Hub.logger.Warn("Client", "Dropping envelope from foreign sender", map[string]interface{}{
				"address": c.Address,
				"sender":  env.Sender,
			})
			continue
		}

		if _, err := sink.Dispatch(context.Background(), env); err != nil {
			c.Hub.logger.Warn("Client", "Envelope rejected", map[string]interface{}{
				"address": c.Address,
				"error":   err.Error(),
			})
		}
	}
}

// writePump writes one envelope per websocket message and keeps the peer's
// presence alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			c.Hub.refreshPresence(c.Address)
		}
	}
}
