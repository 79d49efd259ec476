package transport

import (
	"context"
	"fmt"

	"bonfire-agent/internal/dto"
	"bonfire-agent/internal/entity"
	"bonfire-agent/internal/mapper"
	"bonfire-agent/pkg/identity"
)

// Courier turns acknowledgements and replies into signed envelopes from this
// agent and sends them over a transport.
type Courier struct {
	transport Transport
	identity  *identity.Identity
	mapper    *mapper.EnvelopeMapper
}

func NewCourier(transport Transport, id *identity.Identity) *Courier {
	return &Courier{
		transport: transport,
		identity:  id,
		mapper:    mapper.NewEnvelopeMapper(),
	}
}

func (c *Courier) SendAcknowledgement(ctx context.Context, route entity.Route, ack entity.Acknowledgement) error {
	return c.send(ctx, route, dto.KindChatAcknowledge, c.mapper.AcknowledgementToPayload(ack))
}

func (c *Courier) SendMessage(ctx context.Context, route entity.Route, msg entity.OutboundMessage) error {
	return c.send(ctx, route, dto.KindChatMessage, c.mapper.OutboundToChatPayload(msg))
}

func (c *Courier) send(ctx context.Context, route entity.Route, kind string, payload any) error {
	env, err := c.mapper.NewEnvelope(c.identity.Address(), route, kind, payload)
	if err != nil {
		return err
	}
	c.identity.Sign(&env)

	if err := c.transport.Send(ctx, env); err != nil {
		return fmt.Errorf("send %s to %s: %w", kind, route.Peer, err)
	}
	return nil
}
