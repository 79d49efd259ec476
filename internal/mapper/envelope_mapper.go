package mapper

import (
	"encoding/json"
	"fmt"

	"bonfire-agent/internal/dto"
	"bonfire-agent/internal/entity"

	"github.com/google/uuid"
)

type EnvelopeMapper struct{}

func NewEnvelopeMapper() *EnvelopeMapper {
	return &EnvelopeMapper{}
}

// EnvelopeToDelivery decodes a chat_message envelope into a delivery.
func (m *EnvelopeMapper) EnvelopeToDelivery(env dto.Envelope) (entity.Delivery, error) {
	if env.Kind != dto.KindChatMessage {
		return entity.Delivery{}, fmt.Errorf("envelope kind %q is not a chat message", env.Kind)
	}

	var payload dto.ChatMessagePayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return entity.Delivery{}, fmt.Errorf("decode chat payload: %w", err)
	}
	if payload.MsgId == uuid.Nil {
		return entity.Delivery{}, fmt.Errorf("chat payload has no msg_id")
	}

	return entity.Delivery{
		Route: entity.Route{
			Peer:    env.Sender,
			Session: env.Session,
		},
		Message: m.ChatPayloadToInbound(&payload),
	}, nil
}

func (m *EnvelopeMapper) ChatPayloadToInbound(p *dto.ChatMessagePayload) entity.InboundMessage {
	blocks := make([]entity.ContentBlock, 0, len(p.Content))
	for _, c := range p.Content {
		blocks = append(blocks, m.ContentToBlock(c))
	}
	return entity.InboundMessage{
		Id:        p.MsgId,
		Timestamp: p.Timestamp,
		Content:   blocks,
	}
}

func (m *EnvelopeMapper) ContentToBlock(c dto.ContentDTO) entity.ContentBlock {
	switch c.Type {
	case dto.ContentTypeText:
		return entity.TextBlock{Text: c.Text}
	case dto.ContentTypeEndSession:
		return entity.EndSessionBlock{}
	default:
		return entity.OtherBlock{Type: c.Type, Raw: c.Raw}
	}
}

func (m *EnvelopeMapper) BlockToContent(b entity.ContentBlock) dto.ContentDTO {
	switch v := b.(type) {
	case entity.TextBlock:
		return dto.ContentDTO{Type: dto.ContentTypeText, Text: v.Text}
	case entity.EndSessionBlock:
		return dto.ContentDTO{Type: dto.ContentTypeEndSession}
	case entity.OtherBlock:
		return dto.ContentDTO{Type: v.Type, Raw: v.Raw}
	}
	return dto.ContentDTO{}
}

func (m *EnvelopeMapper) OutboundToChatPayload(msg entity.OutboundMessage) dto.ChatMessagePayload {
	content := make([]dto.ContentDTO, 0, len(msg.Content))
	for _, b := range msg.Content {
		content = append(content, m.BlockToContent(b))
	}
	return dto.ChatMessagePayload{
		MsgId:     msg.Id,
		Timestamp: msg.Timestamp,
		Content:   content,
	}
}

func (m *EnvelopeMapper) AcknowledgementToPayload(ack entity.Acknowledgement) dto.ChatAcknowledgementPayload {
	return dto.ChatAcknowledgementPayload{
		AcknowledgedMsgId: ack.AcknowledgedMessageId,
		Timestamp:         ack.Timestamp,
	}
}

// NewEnvelope wraps an encoded payload for the given route.
func (m *EnvelopeMapper) NewEnvelope(sender string, route entity.Route, kind string, payload any) (dto.Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return dto.Envelope{}, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	return dto.Envelope{
		Version: dto.EnvelopeVersion,
		Sender:  sender,
		Target:  route.Peer,
		Session: route.Session,
		Kind:    kind,
		Payload: raw,
	}, nil
}
