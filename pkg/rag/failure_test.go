package rag

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStageError_Message(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")

	assert.Equal(t, "retrieval failed: status 503", RetrievalFailure(503, nil).Error())
	assert.Equal(t, "retrieval failed: dial tcp: connection refused", RetrievalFailure(0, cause).Error())
	assert.Equal(t, "persistence failed: status 200: bonfire not found", PersistenceFailure(200, "bonfire not found", nil).Error())
	assert.Equal(t, "status 200: bonfire not found", PersistenceFailure(200, "bonfire not found", nil).Detail())
	assert.Equal(t, "generation failed", (&StageError{Stage: StageGeneration}).Error())
}

func TestStageError_AsThroughWrapping(t *testing.T) {
	cause := errors.New("broken pipe")
	err := fmt.Errorf("send: %w", TransportFailure(StageReply, cause))

	var se *StageError
	assert.True(t, errors.As(err, &se))
	assert.Equal(t, StageReply, se.Stage)
	assert.ErrorIs(t, err, cause)
}
