package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bonfire-agent/internal/entity"
	"bonfire-agent/internal/pkg/logger"
	"bonfire-agent/pkg/rag"
	"bonfire-agent/pkg/rag/content"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const module = "EXECUTOR"

type Retriever interface {
	Retrieve(ctx context.Context, query string, storeId string) (rag.RetrievalResult, error)
}

type Generator interface {
	Generate(ctx context.Context, query string, results rag.RetrievalResult, subject string) (string, error)
}

type Persister interface {
	Persist(ctx context.Context, query, answer, storeId, label string) error
}

// Sender delivers protocol messages back along a route.
type Sender interface {
	SendAcknowledgement(ctx context.Context, route entity.Route, ack entity.Acknowledgement) error
	SendMessage(ctx context.Context, route entity.Route, msg entity.OutboundMessage) error
}

type State string

const (
	StateReceived     State = "RECEIVED"
	StateAcknowledged State = "ACKNOWLEDGED"
	StateRetrieved    State = "RETRIEVED"
	StateAnswered     State = "ANSWERED"
	StatePersisted    State = "PERSISTED"
	StateCompleted    State = "COMPLETED"
	StateFailed       State = "FAILED"
)

type Settings struct {
	StoreId      string
	Subject      string
	ChunkLabel   string
	StageTimeout time.Duration
}

// Report describes one finished run. FailedStage and Err are set only when
// State is StateFailed.
type Report struct {
	MessageId   uuid.UUID
	Sender      string
	Session     uuid.UUID
	State       State
	FailedStage rag.Stage
	Err         error
	Stages      map[rag.Stage]time.Duration
	StartedAt   time.Time
	FinishedAt  time.Time
}

// PipelineExecutor runs acknowledge, retrieve, generate, reply and persist for
// a single delivery. It holds no per-run state and is safe for concurrent use.
type PipelineExecutor struct {
	retriever Retriever
	generator Generator
	persister Persister
	sender    Sender
	settings  Settings
	logger    logger.ILogger
	tracer    trace.Tracer
}

func NewPipelineExecutor(
	retriever Retriever,
	generator Generator,
	persister Persister,
	sender Sender,
	settings Settings,
	logger logger.ILogger,
) *PipelineExecutor {
	return &PipelineExecutor{
		retriever: retriever,
		generator: generator,
		persister: persister,
		sender:    sender,
		settings:  settings,
		logger:    logger,
		tracer:    otel.Tracer("bonfire-agent/executor"),
	}
}

// run carries the mutable state of one execution.
type run struct {
	delivery     entity.Delivery
	report       *Report
	stage        rag.Stage
	terminalSent bool
}

// Execute never returns an error: every failure ends up in the report and,
// when the transport allows it, in a reply to the sender.
func (p *PipelineExecutor) Execute(ctx context.Context, delivery entity.Delivery) (report *Report) {
	r := &run{
		delivery: delivery,
		report: &Report{
			MessageId: delivery.Message.Id,
			Sender:    delivery.Peer,
			Session:   delivery.Session,
			State:     StateReceived,
			Stages:    make(map[rag.Stage]time.Duration),
			StartedAt: time.Now().UTC(),
		},
	}

	ctx, span := p.tracer.Start(ctx, "relay.run", trace.WithAttributes(
		attribute.String("relay.message_id", delivery.Message.Id.String()),
		attribute.String("relay.sender", delivery.Peer),
		attribute.String("relay.session", delivery.Session.String()),
	))

	defer func() {
		if rec := recover(); rec != nil {
			p.recoverRun(ctx, r, rec)
		}
		r.report.FinishedAt = time.Now().UTC()
		span.SetAttributes(attribute.String("relay.state", string(r.report.State)))
		if r.report.Err != nil {
			span.RecordError(r.report.Err)
			span.SetStatus(codes.Error, string(r.report.FailedStage))
		}
		span.End()
		report = r.report
	}()

	p.process(ctx, r)
	return r.report
}

func (p *PipelineExecutor) process(ctx context.Context, r *run) {
	route := r.delivery.Route
	msg := r.delivery.Message

	p.logger.Info(module, "Message received", map[string]interface{}{
		"message_id": msg.Id.String(),
		"sender":     route.Peer,
		"session":    route.Session.String(),
	})

	// 1. Acknowledge
	err := p.stage(ctx, r, rag.StageAcknowledge, func(ctx context.Context) error {
		return p.sender.SendAcknowledgement(ctx, route, entity.NewAcknowledgement(msg.Id))
	})
	if err != nil {
		p.fail(r, rag.TransportFailure(rag.StageAcknowledge, err))
		return
	}
	r.report.State = StateAcknowledged

	// 2. Retrieve
	query := content.Extract(msg)
	var results rag.RetrievalResult
	err = p.stage(ctx, r, rag.StageRetrieval, func(ctx context.Context) error {
		var err error
		results, err = p.retriever.Retrieve(ctx, query, p.settings.StoreId)
		return err
	})
	if err != nil {
		p.failWithReply(ctx, r, asStageError(rag.StageRetrieval, err))
		return
	}
	r.report.State = StateRetrieved

	// 3. Generate
	var answer string
	err = p.stage(ctx, r, rag.StageGeneration, func(ctx context.Context) error {
		var err error
		answer, err = p.generator.Generate(ctx, query, results, p.settings.Subject)
		return err
	})
	if err != nil {
		p.failWithReply(ctx, r, asStageError(rag.StageGeneration, err))
		return
	}
	r.report.State = StateAnswered

	// 4. Reply with the answer; the session ends here for the sender
	err = p.stage(ctx, r, rag.StageReply, func(ctx context.Context) error {
		return p.sender.SendMessage(ctx, route, entity.NewReply(answer))
	})
	if err != nil {
		p.fail(r, rag.TransportFailure(rag.StageReply, err))
		return
	}
	r.terminalSent = true

	// 5. Persist the exchange
	err = p.stage(ctx, r, rag.StagePersistence, func(ctx context.Context) error {
		return p.persister.Persist(ctx, query, answer, p.settings.StoreId, p.settings.ChunkLabel)
	})
	if err != nil {
		p.failWithNotice(ctx, r, asStageError(rag.StagePersistence, err))
		return
	}
	r.report.State = StatePersisted

	r.report.State = StateCompleted
	p.logger.Info(module, "Run completed", map[string]interface{}{
		"message_id": msg.Id.String(),
		"sender":     route.Peer,
		"stages":     stageMillis(r.report.Stages),
	})
}

// stage runs fn under the stage timeout inside its own span and records how
// long it took.
func (p *PipelineExecutor) stage(ctx context.Context, r *run, stage rag.Stage, fn func(ctx context.Context) error) error {
	r.stage = stage

	ctx, span := p.tracer.Start(ctx, "relay."+string(stage))
	defer span.End()

	if p.settings.StageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.settings.StageTimeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(ctx)
	r.report.Stages[stage] = time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (p *PipelineExecutor) send(ctx context.Context, route entity.Route, msg entity.OutboundMessage) error {
	if p.settings.StageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.settings.StageTimeout)
		defer cancel()
	}
	return p.sender.SendMessage(ctx, route, msg)
}

func (p *PipelineExecutor) fail(r *run, se *rag.StageError) {
	r.report.State = StateFailed
	r.report.FailedStage = se.Stage
	r.report.Err = se

	p.logger.Error(module, "Stage failed", map[string]interface{}{
		"message_id":  r.delivery.Message.Id.String(),
		"sender":      r.delivery.Peer,
		"stage":       string(se.Stage),
		"status_code": se.StatusCode,
		"error":       se,
	})
}

// failWithReply marks the run failed and closes the session with an error
// reply.
func (p *PipelineExecutor) failWithReply(ctx context.Context, r *run, se *rag.StageError) {
	p.fail(r, se)

	if err := p.send(ctx, r.delivery.Route, entity.NewReply(ErrorText(se))); err != nil {
		p.logger.Error(module, "Failed to send error reply", map[string]interface{}{
			"message_id": r.delivery.Message.Id.String(),
			"stage":      string(se.Stage),
			"error":      err,
		})
		return
	}
	r.terminalSent = true
}

// failWithNotice marks the run failed after the session was closed and tells
// the sender in a message that does not end the session again.
func (p *PipelineExecutor) failWithNotice(ctx context.Context, r *run, se *rag.StageError) {
	p.fail(r, se)

	if err := p.send(ctx, r.delivery.Route, entity.NewNotice(ErrorText(se))); err != nil {
		p.logger.Error(module, "Failed to send failure notice", map[string]interface{}{
			"message_id": r.delivery.Message.Id.String(),
			"stage":      string(se.Stage),
			"error":      err,
		})
	}
}

func (p *PipelineExecutor) recoverRun(ctx context.Context, r *run, rec interface{}) {
	stage := r.stage
	if stage == "" {
		stage = rag.StageAcknowledge
	}
	se := &rag.StageError{Stage: stage, Cause: fmt.Errorf("panic: %v", rec)}

	switch {
	case stage == rag.StagePersistence:
		p.failWithNotice(ctx, r, se)
	case r.report.State == StateReceived || r.terminalSent:
		p.fail(r, se)
	default:
		p.failWithReply(ctx, r, se)
	}
}

// ErrorText is the user-visible description of a failed stage.
func ErrorText(se *rag.StageError) string {
	return fmt.Sprintf("Error during %s: %s", se.Stage, se.Detail())
}

func asStageError(stage rag.Stage, err error) *rag.StageError {
	var se *rag.StageError
	if errors.As(err, &se) {
		return se
	}
	return &rag.StageError{Stage: stage, Cause: err}
}

func stageMillis(stages map[rag.Stage]time.Duration) map[string]int64 {
	out := make(map[string]int64, len(stages))
	for stage, d := range stages {
		out[string(stage)] = d.Milliseconds()
	}
	return out
}

// StageMillis flattens the stage timings for storage.
func (r *Report) StageMillis() map[string]int64 {
	return stageMillis(r.Stages)
}
