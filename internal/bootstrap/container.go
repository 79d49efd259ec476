package bootstrap

import (
	"context"
	"fmt"
	"path/filepath"

	"bonfire-agent/internal/config"
	"bonfire-agent/internal/controller"
	"bonfire-agent/internal/dto"
	"bonfire-agent/internal/model"
	"bonfire-agent/internal/pkg/logger"
	"bonfire-agent/internal/repository/contract"
	"bonfire-agent/internal/repository/implementation"
	"bonfire-agent/internal/service"
	"bonfire-agent/internal/websocket"
	"bonfire-agent/pkg/bonfire"
	"bonfire-agent/pkg/database"
	"bonfire-agent/pkg/identity"
	"bonfire-agent/pkg/llm/factory"
	pktNats "bonfire-agent/pkg/nats"
	"bonfire-agent/pkg/rag/executor"
	"bonfire-agent/pkg/rag/ingest"
	"bonfire-agent/pkg/rag/response"
	"bonfire-agent/pkg/rag/search"
	"bonfire-agent/pkg/transport"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const module = "BOOTSTRAP"

type Container struct {
	Config   *config.Config
	Logger   logger.ILogger
	Identity *identity.Identity

	// Controllers
	AgentController controller.IAgentController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService
	WebSocketHub    *websocket.Hub

	transport transport.Transport
	rdb       *redis.Client
	db        *gorm.DB
}

func NewContainer(cfg *config.Config, sysLogger logger.ILogger) (*Container, error) {
	// 1. Identity
	id, err := identity.FromSeed(cfg.Agent.SeedPhrase)
	if err != nil {
		return nil, err
	}

	// 2. Infrastructure
	bus, err := newTransport(cfg, sysLogger)
	if err != nil {
		return nil, err
	}

	rdb := newRedis(cfg, sysLogger)

	wsLogger := logger.NewIsolatedLogger(filepath.Join(filepath.Dir(cfg.App.LogFilePath), "websocket.log"))
	wsHub := websocket.NewHub(rdb, wsLogger)

	journal, db, err := newJournal(cfg, sysLogger)
	if err != nil {
		closeAll(bus, rdb, nil)
		return nil, err
	}

	// 3. Pipeline
	llmProvider, err := factory.NewLLMProvider(providerConfig(cfg))
	if err != nil {
		closeAll(bus, rdb, db)
		return nil, fmt.Errorf("failed to initialize LLM provider: %w", err)
	}
	sysLogger.Info(module, "Using LLM provider", map[string]interface{}{
		"provider": cfg.Ai.LLMProvider,
		"model":    cfg.Ai.LLMModel,
	})

	store := bonfire.NewClient(cfg.Bonfire.Endpoint, cfg.Pipeline.StageTimeout)
	courier := transport.NewCourier(transport.NewDirect(bus, wsHub), id)

	pipeline := executor.NewPipelineExecutor(
		search.NewRetriever(store),
		response.NewGenerator(llmProvider, cfg.Ai.LLMMaxTokens),
		ingest.NewWriter(store),
		courier,
		executor.Settings{
			StoreId:      cfg.Bonfire.Id,
			Subject:      cfg.Agent.Subject,
			ChunkLabel:   cfg.Bonfire.ChunkLabel,
			StageTimeout: cfg.Pipeline.StageTimeout,
		},
		sysLogger,
	)

	// 4. Services
	consumerService := service.NewConsumerService(
		id.Address(),
		bus,
		pipeline,
		journal,
		cfg.Pipeline.MaxConcurrentRuns,
		cfg.Pipeline.DedupTTL,
		sysLogger,
	)

	// 5. Controllers
	agentController := controller.NewAgentController(consumerService, wsHub, store, dto.AgentManifestResponse{
		Name:     cfg.Agent.Name,
		Address:  id.Address(),
		Subject:  cfg.Agent.Subject,
		Protocol: []string{dto.KindChatMessage, dto.KindChatAcknowledge},
	})

	return &Container{
		Config:          cfg,
		Logger:          sysLogger,
		Identity:        id,
		AgentController: agentController,
		ConsumerService: consumerService,
		WebSocketHub:    wsHub,
		transport:       bus,
		rdb:             rdb,
		db:              db,
	}, nil
}

// Close releases connections after in-flight runs have finished.
func (c *Container) Close() {
	if err := c.ConsumerService.Wait(); err != nil {
		c.Logger.Warn(module, "Runs finished with error", map[string]interface{}{"error": err.Error()})
	}
	if err := closeAll(c.transport, c.rdb, c.db); err != nil {
		c.Logger.Warn(module, "Failed to close transport", map[string]interface{}{"error": err.Error()})
	}
	c.Logger.Sync()
}

// closeAll releases whatever was opened; rdb and db may be nil. Only the
// transport error is returned.
func closeAll(bus transport.Transport, rdb *redis.Client, db *gorm.DB) error {
	err := bus.Close()
	if rdb != nil {
		rdb.Close()
	}
	if db != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			sqlDB.Close()
		}
	}
	return err
}

func newTransport(cfg *config.Config, log logger.ILogger) (transport.Transport, error) {
	switch cfg.App.Transport {
	case "local":
		log.Info(module, "Using in-process transport", nil)
		return transport.NewLocal(watermill.NewStdLogger(false, false)), nil
	default:
		mailbox, err := pktNats.Connect(cfg.App.NatsURL, log)
		if err != nil {
			return nil, err
		}
		log.Info(module, "Using NATS transport", map[string]interface{}{"url": cfg.App.NatsURL})
		return mailbox, nil
	}
}

// newRedis returns nil when redis is not configured or unreachable; the
// websocket hub then only serves its own peers.
func newRedis(cfg *config.Config, log logger.ILogger) *redis.Client {
	if cfg.App.RedisURL == "" {
		return nil
	}

	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Warn(module, "Failed to parse Redis URL, using direct Addr", map[string]interface{}{"error": err.Error()})
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}

	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Warn(module, "Failed to connect to Redis", map[string]interface{}{"error": err.Error()})
		rdb.Close()
		return nil
	}
	return rdb
}

func newJournal(cfg *config.Config, log logger.ILogger) (contract.RelayRunRepository, *gorm.DB, error) {
	if cfg.Database.Connection == "" {
		log.Info(module, "No database configured, run journal disabled", nil)
		return implementation.NewNoopRelayRunRepository(), nil, nil
	}

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, cfg.Pipeline.MaxConcurrentRuns, &model.RelayRun{})
	if err != nil {
		return nil, nil, fmt.Errorf("unable to connect to GORM DB: %w", err)
	}
	return implementation.NewRelayRunRepository(db), db, nil
}

func providerConfig(cfg *config.Config) factory.ProviderConfig {
	pc := factory.ProviderConfig{
		Type:      cfg.Ai.LLMProvider,
		Model:     cfg.Ai.LLMModel,
		BaseURL:   cfg.Ai.LLMBaseURL,
		APIKey:    cfg.Ai.AsiOneAPIKey,
		MaxTokens: cfg.Ai.LLMMaxTokens,
		Timeout:   cfg.Pipeline.StageTimeout,
	}
	if pc.Type == factory.ProviderOllama && pc.BaseURL == "" {
		pc.BaseURL = cfg.Ai.OllamaBaseURL
	}
	return pc
}
