package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"bonfire-agent/internal/dto"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Local is an in-process transport over a watermill go channel. Agents that
// share a process, and tests, talk through it.
type Local struct {
	pubSub *gochannel.GoChannel
	logger watermill.LoggerAdapter
}

func NewLocal(logger watermill.LoggerAdapter) *Local {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}
	return &Local{
		pubSub: gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger),
		logger: logger,
	}
}

func (l *Local) Send(ctx context.Context, env dto.Envelope) error {
	if err := validTarget(env); err != nil {
		return err
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.SetContext(ctx)
	if err := l.pubSub.Publish(Subject(env.Target), msg); err != nil {
		return fmt.Errorf("publish to %s: %w", env.Target, err)
	}
	return nil
}

func (l *Local) Subscribe(ctx context.Context, address string, handler Handler) error {
	messages, err := l.pubSub.Subscribe(ctx, Subject(address))
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", address, err)
	}

	go func() {
		for msg := range messages {
			l.process(ctx, msg, handler)
		}
	}()
	return nil
}

func (l *Local) process(ctx context.Context, msg *message.Message, handler Handler) {
	var env dto.Envelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		l.logger.Error("Dropping undecodable envelope", err, watermill.LogFields{"uuid": msg.UUID})
		msg.Ack()
		return
	}

	if err := handler(ctx, env); err != nil {
		l.logger.Error("Envelope handler failed", err, watermill.LogFields{"uuid": msg.UUID, "kind": env.Kind})
		msg.Nack()
		return
	}
	msg.Ack()
}

func (l *Local) Close() error {
	return l.pubSub.Close()
}
