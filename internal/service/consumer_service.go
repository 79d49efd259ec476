package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bonfire-agent/internal/dto"
	"bonfire-agent/internal/entity"
	"bonfire-agent/internal/mapper"
	"bonfire-agent/internal/pkg/logger"
	"bonfire-agent/internal/repository/contract"
	"bonfire-agent/pkg/identity"
	"bonfire-agent/pkg/rag/executor"
	"bonfire-agent/pkg/transport"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
)

const consumerModule = "DISPATCHER"

const journalTimeout = 5 * time.Second

var (
	ErrInvalidEnvelope = errors.New("invalid envelope")
	ErrNotAddressed    = errors.New("envelope is not addressed to this agent")
	ErrBadSignature    = errors.New("envelope signature does not verify")
)

// Dispatch outcomes for envelopes that were not rejected.
const (
	StatusAccepted  = "accepted"
	StatusDuplicate = "duplicate"
	StatusIgnored   = "ignored"
)

// RelayExecutor runs the pipeline for one delivery.
type RelayExecutor interface {
	Execute(ctx context.Context, delivery entity.Delivery) *executor.Report
}

type IConsumerService interface {
	// Consume subscribes the agent's mailbox on the transport.
	Consume(ctx context.Context) error
	// Dispatch accepts one envelope from any ingress. The run itself happens
	// in the background.
	Dispatch(ctx context.Context, env dto.Envelope) (string, error)
	// Wait blocks until every accepted run has finished.
	Wait() error
}

type consumerService struct {
	address   string
	transport transport.Transport
	executor  RelayExecutor
	journal   contract.RelayRunRepository
	seen      *gocache.Cache
	runs      *errgroup.Group
	validate  *validator.Validate
	mapper    *mapper.EnvelopeMapper
	logger    logger.ILogger
}

func NewConsumerService(
	address string,
	transport transport.Transport,
	executor RelayExecutor,
	journal contract.RelayRunRepository,
	maxConcurrentRuns int,
	dedupTTL time.Duration,
	logger logger.ILogger,
) IConsumerService {
	runs := &errgroup.Group{}
	if maxConcurrentRuns > 0 {
		runs.SetLimit(maxConcurrentRuns)
	}

	return &consumerService{
		address:   address,
		transport: transport,
		executor:  executor,
		journal:   journal,
		seen:      gocache.New(dedupTTL, 2*dedupTTL),
		runs:      runs,
		validate:  validator.New(),
		mapper:    mapper.NewEnvelopeMapper(),
		logger:    logger,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	return cs.transport.Subscribe(ctx, cs.address, cs.handle)
}

// handle adapts Dispatch to the transport: rejected envelopes are consumed
// rather than redelivered.
func (cs *consumerService) handle(ctx context.Context, env dto.Envelope) error {
	if _, err := cs.Dispatch(ctx, env); err != nil {
		cs.logger.Warn(consumerModule, "Rejected envelope", map[string]interface{}{
			"sender": env.Sender,
			"kind":   env.Kind,
			"error":  err.Error(),
		})
	}
	return nil
}

func (cs *consumerService) Dispatch(ctx context.Context, env dto.Envelope) (string, error) {
	// 1. Shape
	if err := cs.validate.Struct(env); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if env.Target != cs.address {
		return "", ErrNotAddressed
	}
	if env.Signature != "" {
		if err := identity.Verify(env); err != nil {
			return "", fmt.Errorf("%w: %v", ErrBadSignature, err)
		}
	}

	// 2. Peers acknowledge our replies; nothing to do with those
	if env.Kind == dto.KindChatAcknowledge {
		cs.logger.Debug(consumerModule, "Peer acknowledgement received", map[string]interface{}{
			"sender":  env.Sender,
			"session": env.Session.String(),
		})
		return StatusIgnored, nil
	}

	delivery, err := cs.mapper.EnvelopeToDelivery(env)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}

	// 3. Redelivery of a message already being handled or handled recently
	if err := cs.seen.Add(dedupKey(delivery.Peer, delivery.Message.Id), struct{}{}, gocache.DefaultExpiration); err != nil {
		cs.logger.Info(consumerModule, "Dropping duplicate message", map[string]interface{}{
			"sender":     delivery.Peer,
			"message_id": delivery.Message.Id.String(),
		})
		return StatusDuplicate, nil
	}

	// 4. Run detached from the ingress so shutdown lets it finish
	runCtx := context.WithoutCancel(ctx)
	cs.runs.Go(func() error {
		cs.run(runCtx, delivery)
		return nil
	})

	return StatusAccepted, nil
}

func (cs *consumerService) run(ctx context.Context, delivery entity.Delivery) {
	report := cs.executor.Execute(ctx, delivery)

	journalCtx, cancel := context.WithTimeout(ctx, journalTimeout)
	defer cancel()

	if err := cs.journal.Create(journalCtx, reportToRun(report)); err != nil {
		cs.logger.Error(consumerModule, "Failed to journal run", map[string]interface{}{
			"message_id": delivery.Message.Id.String(),
			"error":      err,
		})
	}
}

func (cs *consumerService) Wait() error {
	return cs.runs.Wait()
}

func dedupKey(sender string, messageId uuid.UUID) string {
	return sender + "/" + messageId.String()
}

func reportToRun(report *executor.Report) *entity.RelayRun {
	run := &entity.RelayRun{
		Id:          uuid.New(),
		MessageId:   report.MessageId,
		Sender:      report.Sender,
		Session:     report.Session,
		Outcome:     entity.RelayRunCompleted,
		StageMillis: report.StageMillis(),
		StartedAt:   report.StartedAt,
		FinishedAt:  report.FinishedAt,
	}
	if report.State == executor.StateFailed {
		run.Outcome = entity.RelayRunFailed
		run.FailedStage = string(report.FailedStage)
		if report.Err != nil {
			run.Detail = report.Err.Error()
		}
	}
	return run
}
