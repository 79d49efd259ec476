package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const EnvelopeVersion = 1

const (
	KindChatMessage     = "chat_message"
	KindChatAcknowledge = "chat_acknowledgement"
)

// Websocket mailbox handshake. These kinds never reach the dispatcher.
const (
	KindMailboxChallenge = "mailbox_challenge"
	KindMailboxOpen      = "mailbox_open"
)

const (
	ContentTypeText       = "text"
	ContentTypeEndSession = "end-session"
)

// Envelope is the frame exchanged between agents on every transport.
type Envelope struct {
	Version   int             `json:"version" validate:"gte=1"`
	Sender    string          `json:"sender" validate:"required"`
	Target    string          `json:"target" validate:"required"`
	Session   uuid.UUID       `json:"session"`
	Kind      string          `json:"kind" validate:"required,oneof=chat_message chat_acknowledgement"`
	Payload   json.RawMessage `json:"payload" validate:"required"`
	PublicKey string          `json:"public_key,omitempty"`
	Signature string          `json:"signature,omitempty"`
}

// MailboxChallenge is the first frame of a websocket mailbox. The peer answers
// with a KindMailboxOpen envelope, signed, whose session is Nonce.
type MailboxChallenge struct {
	Kind  string    `json:"kind"`
	Nonce uuid.UUID `json:"nonce"`
}

type ChatMessagePayload struct {
	MsgId     uuid.UUID    `json:"msg_id" validate:"required"`
	Timestamp time.Time    `json:"timestamp"`
	Content   []ContentDTO `json:"content" validate:"dive"`
}

// ContentDTO is one content block. Text is only meaningful for type "text";
// Raw holds the original bytes of block types this agent does not know.
type ContentDTO struct {
	Type string          `json:"type" validate:"required"`
	Text string          `json:"text,omitempty"`
	Raw  json.RawMessage `json:"-"`
}

func (c *ContentDTO) UnmarshalJSON(data []byte) error {
	var head struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	c.Type = head.Type
	c.Text = head.Text
	c.Raw = append(json.RawMessage(nil), data...)
	return nil
}

func (c ContentDTO) MarshalJSON() ([]byte, error) {
	switch c.Type {
	case ContentTypeText:
		return json.Marshal(struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{c.Type, c.Text})
	case ContentTypeEndSession:
		return json.Marshal(struct {
			Type string `json:"type"`
		}{c.Type})
	}
	if len(c.Raw) > 0 {
		return c.Raw, nil
	}
	return json.Marshal(struct {
		Type string `json:"type"`
	}{c.Type})
}

type ChatAcknowledgementPayload struct {
	AcknowledgedMsgId uuid.UUID `json:"acknowledged_msg_id" validate:"required"`
	Timestamp         time.Time `json:"timestamp"`
}

type SubmitResponse struct {
	Status string `json:"status"`
}

type AgentManifestResponse struct {
	Name     string   `json:"name"`
	Address  string   `json:"address"`
	Subject  string   `json:"subject"`
	Protocol []string `json:"protocol"`
}
