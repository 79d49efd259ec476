package service

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"bonfire-agent/internal/dto"
	"bonfire-agent/internal/entity"
	"bonfire-agent/internal/pkg/logger"
	"bonfire-agent/pkg/identity"
	"bonfire-agent/pkg/rag"
	"bonfire-agent/pkg/rag/executor"
	"bonfire-agent/pkg/transport"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const agentAddress = "agent1qme"

type countingExecutor struct {
	calls   atomic.Int32
	release chan struct{}
	state   executor.State
}

func (e *countingExecutor) Execute(ctx context.Context, d entity.Delivery) *executor.Report {
	e.calls.Add(1)
	if e.release != nil {
		<-e.release
	}
	state := e.state
	if state == "" {
		state = executor.StateCompleted
	}
	report := &executor.Report{
		MessageId: d.Message.Id,
		Sender:    d.Peer,
		Session:   d.Session,
		State:     state,
		Stages:    map[rag.Stage]time.Duration{rag.StageAcknowledge: time.Millisecond},
	}
	if state == executor.StateFailed {
		report.FailedStage = rag.StageRetrieval
		report.Err = rag.RetrievalFailure(503, nil)
	}
	return report
}

type memoryJournal struct {
	mu   sync.Mutex
	runs []*entity.RelayRun
}

func (j *memoryJournal) Create(ctx context.Context, run *entity.RelayRun) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.runs = append(j.runs, run)
	return nil
}

func chatEnvelope(t *testing.T, sender string, msgId uuid.UUID) dto.Envelope {
	payload, err := json.Marshal(dto.ChatMessagePayload{
		MsgId:     msgId,
		Timestamp: time.Now().UTC(),
		Content:   []dto.ContentDTO{{Type: dto.ContentTypeText, Text: "hello"}},
	})
	require.NoError(t, err)
	return dto.Envelope{
		Version: dto.EnvelopeVersion,
		Sender:  sender,
		Target:  agentAddress,
		Session: uuid.New(),
		Kind:    dto.KindChatMessage,
		Payload: payload,
	}
}

func newConsumer(exec RelayExecutor, journal *memoryJournal, limit int) IConsumerService {
	return NewConsumerService(agentAddress, transport.NewLocal(watermill.NopLogger{}), exec, journal, limit, time.Minute, logger.NewNopLogger())
}

func TestDispatch_RunsOnceAndJournals(t *testing.T) {
	exec := &countingExecutor{state: executor.StateFailed}
	journal := &memoryJournal{}
	cs := newConsumer(exec, journal, 4)

	env := chatEnvelope(t, "agent1qpeer", uuid.New())
	status, err := cs.Dispatch(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, status)

	status, err = cs.Dispatch(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, StatusDuplicate, status)

	require.NoError(t, cs.Wait())
	assert.EqualValues(t, 1, exec.calls.Load())

	require.Len(t, journal.runs, 1)
	assert.Equal(t, entity.RelayRunFailed, journal.runs[0].Outcome)
	assert.Equal(t, "retrieval", journal.runs[0].FailedStage)
	assert.Equal(t, "retrieval failed: status 503", journal.runs[0].Detail)
}

func TestDispatch_SameIdFromDifferentSenders(t *testing.T) {
	exec := &countingExecutor{}
	cs := newConsumer(exec, &memoryJournal{}, 4)
	id := uuid.New()

	_, err := cs.Dispatch(context.Background(), chatEnvelope(t, "agent1qa", id))
	require.NoError(t, err)
	_, err = cs.Dispatch(context.Background(), chatEnvelope(t, "agent1qb", id))
	require.NoError(t, err)

	require.NoError(t, cs.Wait())
	assert.EqualValues(t, 2, exec.calls.Load())
}

func TestDispatch_IgnoresAcknowledgements(t *testing.T) {
	exec := &countingExecutor{}
	cs := newConsumer(exec, &memoryJournal{}, 4)

	env := chatEnvelope(t, "agent1qpeer", uuid.New())
	env.Kind = dto.KindChatAcknowledge

	status, err := cs.Dispatch(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, StatusIgnored, status)
	require.NoError(t, cs.Wait())
	assert.Zero(t, exec.calls.Load())
}

func TestDispatch_Rejects(t *testing.T) {
	cs := newConsumer(&countingExecutor{}, &memoryJournal{}, 4)

	wrongTarget := chatEnvelope(t, "agent1qpeer", uuid.New())
	wrongTarget.Target = "agent1qsomeoneelse"
	_, err := cs.Dispatch(context.Background(), wrongTarget)
	assert.ErrorIs(t, err, ErrNotAddressed)

	badKind := chatEnvelope(t, "agent1qpeer", uuid.New())
	badKind.Kind = "gossip"
	_, err = cs.Dispatch(context.Background(), badKind)
	assert.ErrorIs(t, err, ErrInvalidEnvelope)

	noId := chatEnvelope(t, "agent1qpeer", uuid.Nil)
	_, err = cs.Dispatch(context.Background(), noId)
	assert.ErrorIs(t, err, ErrInvalidEnvelope)

	id, err := identity.FromSeed("peer seed")
	require.NoError(t, err)
	forged := chatEnvelope(t, id.Address(), uuid.New())
	id.Sign(&forged)
	forged.Payload = json.RawMessage(`{"msg_id":"` + uuid.NewString() + `","content":[]}`)
	_, err = cs.Dispatch(context.Background(), forged)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestDispatch_AcceptsSignedEnvelope(t *testing.T) {
	cs := newConsumer(&countingExecutor{}, &memoryJournal{}, 4)
	id, err := identity.FromSeed("peer seed")
	require.NoError(t, err)

	env := chatEnvelope(t, id.Address(), uuid.New())
	id.Sign(&env)

	status, err := cs.Dispatch(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, status)
	require.NoError(t, cs.Wait())
}

func TestDispatch_BoundsConcurrentRuns(t *testing.T) {
	exec := &countingExecutor{release: make(chan struct{})}
	cs := newConsumer(exec, &memoryJournal{}, 1)

	_, err := cs.Dispatch(context.Background(), chatEnvelope(t, "agent1qpeer", uuid.New()))
	require.NoError(t, err)

	next := chatEnvelope(t, "agent1qpeer", uuid.New())
	second := make(chan struct{})
	go func() {
		cs.Dispatch(context.Background(), next)
		close(second)
	}()

	select {
	case <-second:
		t.Fatal("second run started while the only slot was busy")
	case <-time.After(50 * time.Millisecond):
	}

	close(exec.release)
	<-second
	require.NoError(t, cs.Wait())
	assert.EqualValues(t, 2, exec.calls.Load())
}

func TestConsume_ReceivesFromTransport(t *testing.T) {
	local := transport.NewLocal(watermill.NopLogger{})
	defer local.Close()
	exec := &countingExecutor{}
	journal := &memoryJournal{}
	cs := NewConsumerService(agentAddress, local, exec, journal, 4, time.Minute, logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, cs.Consume(ctx))

	require.NoError(t, local.Send(ctx, chatEnvelope(t, "agent1qpeer", uuid.New())))

	assert.Eventually(t, func() bool {
		journal.mu.Lock()
		defer journal.mu.Unlock()
		return len(journal.runs) == 1
	}, 2*time.Second, 10*time.Millisecond)
}
