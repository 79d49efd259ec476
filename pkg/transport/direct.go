package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"bonfire-agent/internal/dto"
)

// DirectDeliverer hands raw envelopes to peers connected to this agent, e.g.
// over a websocket. ok is false when the peer is not connected anywhere.
type DirectDeliverer interface {
	Deliver(ctx context.Context, address string, data []byte) (ok bool, err error)
}

// Direct offers every envelope to a DirectDeliverer first and only falls
// back to the wrapped transport when the peer is not directly reachable.
type Direct struct {
	Transport
	deliverer DirectDeliverer
}

func NewDirect(next Transport, deliverer DirectDeliverer) *Direct {
	return &Direct{Transport: next, deliverer: deliverer}
}

func (d *Direct) Send(ctx context.Context, env dto.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	ok, err := d.deliverer.Deliver(ctx, env.Target, data)
	if err == nil && ok {
		return nil
	}
	return d.Transport.Send(ctx, env)
}
