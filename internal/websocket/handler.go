package websocket

import (
	"errors"
	"time"

	"bonfire-agent/internal/dto"
	"bonfire-agent/pkg/identity"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const handshakeWait = 10 * time.Second

var errHandshake = errors.New("websocket: mailbox handshake failed")

// ServeWs attaches a peer connection to the hub once the peer has shown it
// holds the key behind address, and blocks until the connection closes.
func ServeWs(hub *Hub, c *websocket.Conn, address string, sink EnvelopeSink) {
	if err := authenticate(c, address); err != nil {
		hub.logger.Warn("Client", "Rejected mailbox connection", map[string]interface{}{
			"address": address,
			"error":   err.Error(),
		})
		c.SetWriteDeadline(time.Now().Add(writeWait))
		c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "handshake failed"))
		c.Close()
		return
	}

	client := &Client{Hub: hub, Conn: c, Address: address, Send: make(chan []byte, 256)}
	client.Hub.register <- client

	go client.writePump()
	client.readPump(sink)
}

// authenticate sends a fresh nonce and waits for the signed answer.
func authenticate(c *websocket.Conn, address string) error {
	nonce := uuid.New()

	c.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.WriteJSON(dto.MailboxChallenge{Kind: dto.KindMailboxChallenge, Nonce: nonce}); err != nil {
		return err
	}

	c.SetReadLimit(maxMessageSize)
	c.SetReadDeadline(time.Now().Add(handshakeWait))
	var answer dto.Envelope
	if err := c.ReadJSON(&answer); err != nil {
		return err
	}
	return verifyOpen(answer, address, nonce)
}

func verifyOpen(env dto.Envelope, address string, nonce uuid.UUID) error {
	if env.Kind != dto.KindMailboxOpen || env.Sender != address || env.Session != nonce {
		return errHandshake
	}
	if err := identity.Verify(env); err != nil {
		return errors.Join(errHandshake, err)
	}
	return nil
}
