package identity

import (
	"encoding/json"
	"strings"
	"testing"

	"bonfire-agent/internal/dto"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromSeed_Deterministic(t *testing.T) {
	a, err := FromSeed("correct horse battery staple")
	require.NoError(t, err)
	b, err := FromSeed("  correct horse battery staple\n")
	require.NoError(t, err)
	c, err := FromSeed("another phrase")
	require.NoError(t, err)

	assert.Equal(t, a.Address(), b.Address())
	assert.NotEqual(t, a.Address(), c.Address())
	assert.True(t, strings.HasPrefix(a.Address(), AddressPrefix))
	assert.Equal(t, a.Address(), strings.ToLower(a.Address()))
}

func TestFromSeed_Empty(t *testing.T) {
	_, err := FromSeed("   ")
	assert.ErrorIs(t, err, ErrEmptySeed)
}

func newEnvelope(sender string) dto.Envelope {
	return dto.Envelope{
		Version: dto.EnvelopeVersion,
		Sender:  sender,
		Target:  "agent1qtarget",
		Session: uuid.New(),
		Kind:    dto.KindChatMessage,
		Payload: json.RawMessage(`{"msg_id":"00000000-0000-0000-0000-000000000001"}`),
	}
}

func TestSignVerify(t *testing.T) {
	id, err := FromSeed("seed")
	require.NoError(t, err)

	env := newEnvelope(id.Address())
	id.Sign(&env)
	assert.NoError(t, Verify(env))

	tampered := env
	tampered.Payload = json.RawMessage(`{"msg_id":"00000000-0000-0000-0000-000000000002"}`)
	assert.ErrorIs(t, Verify(tampered), ErrInvalidSignature)
}

func TestVerify_Rejects(t *testing.T) {
	id, err := FromSeed("seed")
	require.NoError(t, err)

	assert.ErrorIs(t, Verify(newEnvelope(id.Address())), ErrUnsigned)

	forged := newEnvelope("agent1qsomeoneelse")
	id.Sign(&forged)
	assert.ErrorIs(t, Verify(forged), ErrSenderMismatch)
}
