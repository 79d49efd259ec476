package entity

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BlockKind tags the variants of ContentBlock.
type BlockKind string

const (
	BlockText       BlockKind = "text"
	BlockEndSession BlockKind = "end-session"
	BlockOther      BlockKind = "other"
)

// ContentBlock is a closed set: TextBlock, EndSessionBlock and OtherBlock.
type ContentBlock interface {
	Kind() BlockKind
	sealed()
}

type TextBlock struct {
	Text string
}

func (TextBlock) Kind() BlockKind { return BlockText }
func (TextBlock) sealed()         {}

type EndSessionBlock struct{}

func (EndSessionBlock) Kind() BlockKind { return BlockEndSession }
func (EndSessionBlock) sealed()         {}

// OtherBlock keeps a block this agent does not interpret, e.g. a resource
// attachment, so it can be logged or forwarded untouched.
type OtherBlock struct {
	Type string
	Raw  json.RawMessage
}

func (OtherBlock) Kind() BlockKind { return BlockOther }
func (OtherBlock) sealed()         {}

type InboundMessage struct {
	Id        uuid.UUID
	Timestamp time.Time
	Content   []ContentBlock
}

type OutboundMessage struct {
	Id        uuid.UUID
	Timestamp time.Time
	Content   []ContentBlock
}

// NewReply builds a session-terminal message: the text followed by end-session.
func NewReply(text string) OutboundMessage {
	return OutboundMessage{
		Id:        uuid.New(),
		Timestamp: time.Now().UTC(),
		Content:   []ContentBlock{TextBlock{Text: text}, EndSessionBlock{}},
	}
}

// NewNotice builds an informational message that leaves the session alone.
func NewNotice(text string) OutboundMessage {
	return OutboundMessage{
		Id:        uuid.New(),
		Timestamp: time.Now().UTC(),
		Content:   []ContentBlock{TextBlock{Text: text}},
	}
}

func (m OutboundMessage) SessionTerminal() bool {
	if len(m.Content) == 0 {
		return false
	}
	return m.Content[len(m.Content)-1].Kind() == BlockEndSession
}

// Text returns the concatenated text blocks of the message.
func (m OutboundMessage) Text() string {
	var sb strings.Builder
	for _, block := range m.Content {
		if t, ok := block.(TextBlock); ok {
			sb.WriteString(t.Text)
		}
	}
	return sb.String()
}

type Acknowledgement struct {
	AcknowledgedMessageId uuid.UUID
	Timestamp             time.Time
}

func NewAcknowledgement(messageId uuid.UUID) Acknowledgement {
	return Acknowledgement{
		AcknowledgedMessageId: messageId,
		Timestamp:             time.Now().UTC(),
	}
}

// Route identifies where replies for a delivery go.
type Route struct {
	Peer    string
	Session uuid.UUID
}

// Delivery is an inbound message together with its return route.
type Delivery struct {
	Route
	Message InboundMessage
}
