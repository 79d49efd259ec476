package rag

import (
	"fmt"
)

// Stage names one step of a relay run.
type Stage string

const (
	StageAcknowledge Stage = "acknowledge"
	StageRetrieval   Stage = "retrieval"
	StageGeneration  Stage = "generation"
	StageReply       Stage = "reply"
	StagePersistence Stage = "persistence"
)

// StageError is the failure of a single remote stage. StatusCode is zero when
// the call never produced an HTTP response.
type StageError struct {
	Stage      Stage
	StatusCode int
	Message    string
	Cause      error
}

func (e *StageError) Error() string {
	if detail := e.Detail(); detail != "" {
		return fmt.Sprintf("%s failed: %s", e.Stage, detail)
	}
	return fmt.Sprintf("%s failed", e.Stage)
}

// Detail describes the failure without naming the stage.
func (e *StageError) Detail() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("status %d", e.StatusCode)
	case e.Cause != nil:
		return e.Cause.Error()
	}
	return e.Message
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

func RetrievalFailure(status int, cause error) *StageError {
	return &StageError{Stage: StageRetrieval, StatusCode: status, Cause: cause}
}

func GenerationFailure(cause error) *StageError {
	return &StageError{Stage: StageGeneration, Cause: cause}
}

func PersistenceFailure(status int, message string, cause error) *StageError {
	return &StageError{Stage: StagePersistence, StatusCode: status, Message: message, Cause: cause}
}

// TransportFailure is a fault while handing a message to the transport.
func TransportFailure(stage Stage, cause error) *StageError {
	return &StageError{Stage: stage, Cause: cause}
}
