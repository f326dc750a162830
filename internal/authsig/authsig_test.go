package authsig

import (
	"crypto/ecdsa"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easelhq/easel/pkg/board"
)

func testKey(t *testing.T) *ecdsa.PrivateKey {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key
}

func testRevision(fill byte) string {
	digits := "0123456789abcdef"
	i := int(fill % 16)
	return "0x" + strings.Repeat(digits[i:i+1], 64)
}

func TestAddress(t *testing.T) {
	addr := Address(testKey(t))
	assert.True(t, board.IsValidIdentity(addr))
	assert.Equal(t, strings.ToLower(addr), addr)
}

func TestChainHash(t *testing.T) {
	proposed := Action{ColorIndex: 3, PositionIndex: 42, Revision: testRevision(1)}

	t.Run("is a valid digest", func(t *testing.T) {
		assert.True(t, board.IsValidDigest(ChainHash(nil, proposed)))
	})

	t.Run("is deterministic", func(t *testing.T) {
		assert.Equal(t, ChainHash(nil, proposed), ChainHash(nil, proposed))
	})

	t.Run("changes with color", func(t *testing.T) {
		other := proposed
		other.ColorIndex = 4
		assert.NotEqual(t, ChainHash(nil, proposed), ChainHash(nil, other))
	})

	t.Run("changes with position", func(t *testing.T) {
		other := proposed
		other.PositionIndex = 43
		assert.NotEqual(t, ChainHash(nil, proposed), ChainHash(nil, other))
	})

	t.Run("changes with revision", func(t *testing.T) {
		other := proposed
		other.Revision = testRevision(2)
		assert.NotEqual(t, ChainHash(nil, proposed), ChainHash(nil, other))
	})

	t.Run("changes with history", func(t *testing.T) {
		history := []Action{{ColorIndex: 1, PositionIndex: 7, Revision: testRevision(3)}}
		assert.NotEqual(t, ChainHash(nil, proposed), ChainHash(history, proposed))
	})

	t.Run("history order matters", func(t *testing.T) {
		a := Action{ColorIndex: 1, PositionIndex: 7, Revision: testRevision(3)}
		b := Action{ColorIndex: 2, PositionIndex: 9, Revision: testRevision(4)}
		assert.NotEqual(t,
			ChainHash([]Action{a, b}, proposed),
			ChainHash([]Action{b, a}, proposed))
	})
}

func TestVerifyChain(t *testing.T) {
	key := testKey(t)
	identity := Address(key)
	history := []Action{{ColorIndex: 0, PositionIndex: 10, Revision: testRevision(5)}}
	proposed := Action{ColorIndex: 2, PositionIndex: 11, Revision: testRevision(6)}

	sig, err := SignChain(key, history, proposed)
	require.NoError(t, err)
	require.True(t, board.IsValidSignature(sig))

	t.Run("accepts a valid signature", func(t *testing.T) {
		assert.NoError(t, VerifyChain(identity, history, proposed, sig))
	})

	t.Run("rejects a different identity", func(t *testing.T) {
		other := Address(testKey(t))
		err := VerifyChain(other, history, proposed, sig)
		assert.ErrorIs(t, err, board.ErrSignatureInvalid)
	})

	t.Run("rejects a stale chain", func(t *testing.T) {
		// A signature over the old history no longer verifies once the
		// history has grown.
		grown := append(append([]Action{}, history...), proposed)
		next := Action{ColorIndex: 1, PositionIndex: 12, Revision: testRevision(7)}
		err := VerifyChain(identity, grown, next, sig)
		assert.ErrorIs(t, err, board.ErrSignatureInvalid)
	})

	t.Run("rejects a tampered action", func(t *testing.T) {
		tampered := proposed
		tampered.PositionIndex = 99
		err := VerifyChain(identity, history, tampered, sig)
		assert.ErrorIs(t, err, board.ErrSignatureInvalid)
	})

	t.Run("rejects malformed inputs", func(t *testing.T) {
		assert.ErrorIs(t, VerifyChain("not-an-identity", history, proposed, sig), board.ErrSignatureInvalid)
		assert.ErrorIs(t, VerifyChain(identity, history, proposed, "0xdead"), board.ErrSignatureInvalid)
	})
}

func TestVerifySequence(t *testing.T) {
	key := testKey(t)
	identity := Address(key)
	payload := []byte(`{"prompt":"a quiet harbor"}`)

	sig, err := SignSequence(key, identity, 7, payload)
	require.NoError(t, err)

	t.Run("accepts a valid signature", func(t *testing.T) {
		assert.NoError(t, VerifySequence(identity, 7, payload, sig))
	})

	t.Run("rejects a replayed sequence number", func(t *testing.T) {
		err := VerifySequence(identity, 8, payload, sig)
		assert.ErrorIs(t, err, board.ErrSignatureInvalid)
	})

	t.Run("rejects a tampered payload", func(t *testing.T) {
		err := VerifySequence(identity, 7, []byte(`{"prompt":"other"}`), sig)
		assert.ErrorIs(t, err, board.ErrSignatureInvalid)
	})

	t.Run("rejects another identity", func(t *testing.T) {
		other := Address(testKey(t))
		sigOther, err := SignSequence(key, other, 7, payload)
		require.NoError(t, err)
		assert.ErrorIs(t, VerifySequence(other, 7, payload, sigOther), board.ErrSignatureInvalid)
	})
}
