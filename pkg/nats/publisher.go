package nats

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"bonfire-agent/internal/dto"
	"bonfire-agent/pkg/identity"
	"bonfire-agent/pkg/transport"

	"github.com/nats-io/nats.go/jetstream"
)

// Send publishes the envelope to the target's subject. JetStream drops a
// second publish of the same envelope within the stream's duplicate window.
func (m *Mailbox) Send(ctx context.Context, env dto.Envelope) error {
	if env.Target == "" {
		return fmt.Errorf("nats: envelope %s has no target", env.Kind)
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	subject := transport.Subject(env.Target)
	_, err = m.js.Publish(ctx, subject, data, jetstream.WithMsgID(MsgId(env)))
	if err != nil {
		return fmt.Errorf("failed to publish envelope to subject %s: %w", subject, err)
	}
	return nil
}

// MsgId is the JetStream deduplication id of an envelope.
func MsgId(env dto.Envelope) string {
	return hex.EncodeToString(identity.Digest(env))
}
