package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"bonfire-agent/internal/dto"
	"bonfire-agent/pkg/transport"

	"github.com/nats-io/nats.go/jetstream"
)

// Subscribe binds a durable consumer to the address's mailbox. Messages that
// are not envelopes are terminated; handler errors are nak'd for redelivery.
func (m *Mailbox) Subscribe(ctx context.Context, address string, handler transport.Handler) error {
	consumer, err := m.js.CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		Durable:       DurableName(address),
		FilterSubject: transport.Subject(address),
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    5,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		m.process(ctx, msg, handler)
	})
	if err != nil {
		return fmt.Errorf("failed to consume: %w", err)
	}
	m.consumers = append(m.consumers, cc)

	go func() {
		<-ctx.Done()
		cc.Stop()
	}()

	m.logger.Info(module, "Subscribed to mailbox", map[string]interface{}{
		"subject": transport.Subject(address),
	})
	return nil
}

func (m *Mailbox) process(ctx context.Context, msg jetstream.Msg, handler transport.Handler) {
	var env dto.Envelope
	if err := json.Unmarshal(msg.Data(), &env); err != nil {
		m.logger.Error(module, "Terminating undecodable message", map[string]interface{}{
			"subject": msg.Subject(),
			"error":   err.Error(),
		})
		msg.Term()
		return
	}

	if err := handler(ctx, env); err != nil {
		m.logger.Warn(module, "Handler failed, requesting redelivery", map[string]interface{}{
			"subject": msg.Subject(),
			"kind":    env.Kind,
			"error":   err.Error(),
		})
		msg.Nak()
		return
	}
	msg.Ack()
}

// DurableName is the consumer name of an address; subjects may contain dots
// but durable names may not.
func DurableName(address string) string {
	return "mailbox_" + address
}
