// Package identity derives an agent's signing key and address from its seed
// phrase and signs the envelopes it sends.
package identity

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base32"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"bonfire-agent/internal/dto"

	"golang.org/x/crypto/blake2b"
)

// AddressPrefix starts every agent address.
const AddressPrefix = "agent1"

var (
	ErrEmptySeed        = errors.New("identity: empty seed phrase")
	ErrUnsigned         = errors.New("identity: envelope is not signed")
	ErrSenderMismatch   = errors.New("identity: public key does not belong to sender")
	ErrInvalidSignature = errors.New("identity: invalid signature")
)

var addressEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

type Identity struct {
	private ed25519.PrivateKey
	address string
}

// FromSeed is deterministic: the same phrase always yields the same key and
// address.
func FromSeed(seed string) (*Identity, error) {
	seed = strings.TrimSpace(seed)
	if seed == "" {
		return nil, ErrEmptySeed
	}

	digest := sha256.Sum256([]byte(seed))
	private := ed25519.NewKeyFromSeed(digest[:])

	return &Identity{
		private: private,
		address: AddressOf(private.Public().(ed25519.PublicKey)),
	}, nil
}

func (i *Identity) Address() string {
	return i.address
}

func (i *Identity) PublicKey() ed25519.PublicKey {
	return i.private.Public().(ed25519.PublicKey)
}

// AddressOf derives the address of a public key.
func AddressOf(pub ed25519.PublicKey) string {
	sum := blake2b.Sum256(pub)
	return AddressPrefix + strings.ToLower(addressEncoding.EncodeToString(sum[:]))
}

// Sign sets the envelope's public key and signature. Any earlier signature
// is replaced.
func (i *Identity) Sign(env *dto.Envelope) {
	env.PublicKey = base64.StdEncoding.EncodeToString(i.PublicKey())
	env.Signature = base64.StdEncoding.EncodeToString(ed25519.Sign(i.private, Digest(*env)))
}

// Verify checks that env was signed by the key its sender address belongs to.
func Verify(env dto.Envelope) error {
	if env.Signature == "" || env.PublicKey == "" {
		return ErrUnsigned
	}

	pub, err := base64.StdEncoding.DecodeString(env.PublicKey)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("identity: malformed public key")
	}
	if AddressOf(pub) != env.Sender {
		return ErrSenderMismatch
	}

	sig, err := base64.StdEncoding.DecodeString(env.Signature)
	if err != nil {
		return fmt.Errorf("identity: malformed signature: %w", err)
	}
	if !ed25519.Verify(pub, Digest(env), sig) {
		return ErrInvalidSignature
	}
	return nil
}

// Digest is the blake2b-256 hash of the signed fields, each length-prefixed.
func Digest(env dto.Envelope) []byte {
	h, _ := blake2b.New256(nil)

	var version [8]byte
	binary.BigEndian.PutUint64(version[:], uint64(env.Version))
	h.Write(version[:])

	for _, field := range [][]byte{
		[]byte(env.Sender),
		[]byte(env.Target),
		env.Session[:],
		[]byte(env.Kind),
		env.Payload,
	} {
		var size [8]byte
		binary.BigEndian.PutUint64(size[:], uint64(len(field)))
		h.Write(size[:])
		h.Write(field)
	}
	return h.Sum(nil)
}
