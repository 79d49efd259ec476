// Package transport moves envelopes between agents.
package transport

import (
	"context"
	"fmt"

	"bonfire-agent/internal/dto"
)

// SubjectPrefix namespaces agent mailboxes on every bus.
const SubjectPrefix = "agents."

// Handler processes one inbound envelope. A returned error asks the
// transport to redeliver when it can.
type Handler func(ctx context.Context, env dto.Envelope) error

type Transport interface {
	Send(ctx context.Context, env dto.Envelope) error
	// Subscribe starts delivering envelopes addressed to address and returns
	// once the subscription is in place. Delivery stops when ctx is done.
	Subscribe(ctx context.Context, address string, handler Handler) error
	Close() error
}

// Subject is the mailbox subject of an agent address.
func Subject(address string) string {
	return SubjectPrefix + address
}

func validTarget(env dto.Envelope) error {
	if env.Target == "" {
		return fmt.Errorf("transport: envelope %s has no target", env.Kind)
	}
	return nil
}
