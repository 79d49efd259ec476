package entity

import (
	"time"

	"github.com/google/uuid"
)

type RelayRunOutcome string

const (
	RelayRunCompleted RelayRunOutcome = "COMPLETED"
	RelayRunFailed    RelayRunOutcome = "FAILED"
)

// RelayRun is the journal record of one pipeline run.
type RelayRun struct {
	Id          uuid.UUID
	MessageId   uuid.UUID
	Sender      string
	Session     uuid.UUID
	Outcome     RelayRunOutcome
	FailedStage string
	Detail      string
	StageMillis map[string]int64
	StartedAt   time.Time
	FinishedAt  time.Time
}
