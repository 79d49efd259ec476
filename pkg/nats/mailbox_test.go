package nats

import (
	"encoding/json"
	"strings"
	"testing"

	"bonfire-agent/internal/dto"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestMsgId_StablePerEnvelope(t *testing.T) {
	env := dto.Envelope{
		Version: dto.EnvelopeVersion,
		Sender:  "agent1qa",
		Target:  "agent1qb",
		Session: uuid.New(),
		Kind:    dto.KindChatMessage,
		Payload: json.RawMessage(`{"msg_id":"00000000-0000-0000-0000-000000000001"}`),
	}
	other := env
	other.Payload = json.RawMessage(`{"msg_id":"00000000-0000-0000-0000-000000000002"}`)

	assert.Equal(t, MsgId(env), MsgId(env))
	assert.NotEqual(t, MsgId(env), MsgId(other))
	assert.Len(t, MsgId(env), 64)
}

func TestDurableName_HasNoDots(t *testing.T) {
	name := DurableName("agent1qxyz")
	assert.Equal(t, "mailbox_agent1qxyz", name)
	assert.False(t, strings.Contains(name, "."))
}
