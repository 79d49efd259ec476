// Package nats is an agent mailbox on NATS JetStream: every agent address is
// a subject under one durable stream.
package nats

import (
	"context"
	"fmt"
	"time"

	"bonfire-agent/internal/pkg/logger"
	"bonfire-agent/pkg/transport"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	StreamName = "AGENTS"
	module     = "NATS"
)

// Mailbox implements transport.Transport.
type Mailbox struct {
	nc        *nats.Conn
	js        jetstream.JetStream
	logger    logger.ILogger
	consumers []jetstream.ConsumeContext
}

var _ transport.Transport = (*Mailbox)(nil)

func Connect(url string, logger logger.ILogger) (*Mailbox, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       StreamName,
		Subjects:   []string{transport.SubjectPrefix + ">"},
		Storage:    jetstream.FileStorage,
		Retention:  jetstream.WorkQueuePolicy,
		Duplicates: 2 * time.Minute,
	})
	if err != nil {
		// It may already exist with a different config, or NATS is not ready yet.
		logger.Warn(module, "Failed to ensure stream", map[string]interface{}{
			"stream": StreamName,
			"error":  err.Error(),
		})
	}

	return &Mailbox{nc: nc, js: js, logger: logger}, nil
}

func (m *Mailbox) Close() error {
	for _, cc := range m.consumers {
		cc.Stop()
	}
	if m.nc != nil {
		return m.nc.Drain()
	}
	return nil
}
