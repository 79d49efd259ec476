package bootstrap

import (
	"context"
	"errors"
	"testing"

	"bonfire-agent/internal/config"
	"bonfire-agent/internal/dto"
	"bonfire-agent/internal/pkg/logger"
	"bonfire-agent/pkg/transport"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTransport struct {
	closed int
	err    error
}

func (c *countingTransport) Send(ctx context.Context, env dto.Envelope) error { return nil }
func (c *countingTransport) Subscribe(ctx context.Context, address string, handler transport.Handler) error {
	return nil
}
func (c *countingTransport) Close() error {
	c.closed++
	return c.err
}

func TestCloseAll_ReleasesRedis(t *testing.T) {
	bus := &countingTransport{err: errors.New("already closed")}
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})

	err := closeAll(bus, rdb, nil)

	assert.EqualError(t, err, "already closed")
	assert.Equal(t, 1, bus.closed)
	assert.ErrorIs(t, rdb.Ping(context.Background()).Err(), redis.ErrClosed)
}

func TestNewContainer_UnknownProvider(t *testing.T) {
	cfg := &config.Config{
		App:   config.AppConfig{Transport: "local", LogFilePath: t.TempDir() + "/agent.log"},
		Agent: config.AgentConfig{SeedPhrase: "seed"},
		Ai:    config.AIConfig{LLMProvider: "carrier-pigeon"},
	}

	_, err := NewContainer(cfg, logger.NewNopLogger())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported LLM provider")
}
