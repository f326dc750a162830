// Package authsig implements the two authorization schemes used by the
// session engine.
//
// Paint operations carry a cumulative chain signature: the signed digest
// covers every prior accepted edit by the same identity in the session plus
// the proposed one, so a captured signature cannot be replayed: any later
// edit changes the digest. Non-paint operations (prompt submission and other
// one-shot requests) carry a monotonic per-identity sequence signature
// instead, since they have no natural chain to extend.
//
// Both schemes use Ethereum-style personal-sign over secp256k1 with signer
// recovery: the engine stores no public keys, it recovers the signer address
// from the signature and compares it to the claimed identity.
package authsig

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/easelhq/easel/pkg/board"
)

// Action is one edit covered by a chain digest.
type Action struct {
	ColorIndex    int
	PositionIndex int
	// Revision is the canvas revision the edit produced (for history
	// entries) or claims as its base (for the proposed edit).
	Revision string
}

// ChainHash computes the cumulative digest over an identity's edit history
// plus the proposed action. Each action contributes its color index as one
// byte, its position index as a big-endian uint32, and its revision digest
// as 32 raw bytes.
func ChainHash(history []Action, proposed Action) string {
	h := sha256.New()

	write := func(a Action) {
		h.Write([]byte{byte(a.ColorIndex)})

		var pos [4]byte
		binary.BigEndian.PutUint32(pos[:], uint32(a.PositionIndex))
		h.Write(pos[:])

		h.Write(common.HexToHash(a.Revision).Bytes())
	}

	for _, a := range history {
		write(a)
	}
	write(proposed)

	return "0x" + hex.EncodeToString(h.Sum(nil))
}

// VerifyChain checks that signature is a personal-sign of the chain digest
// by the claimed identity. The digest's 0x-prefixed hex string is the
// signed message, matching what wallet tooling produces client-side.
func VerifyChain(identity string, history []Action, proposed Action, signature string) error {
	digest := ChainHash(history, proposed)
	return verifyPersonalSign(identity, []byte(digest), signature)
}

// SignChain produces a chain signature with a raw private key. Production
// clients sign in their wallets; this exists for tests and tooling.
func SignChain(key *ecdsa.PrivateKey, history []Action, proposed Action) (string, error) {
	digest := ChainHash(history, proposed)
	return personalSign(key, []byte(digest))
}

// SequencePayload builds the signed message for a non-paint operation:
// the identity's 20 address bytes, the expected sequence number as a
// big-endian uint32, then the operation payload.
func SequencePayload(identity string, sequence int, payload []byte) []byte {
	msg := make([]byte, 0, 20+4+len(payload))
	msg = append(msg, common.HexToAddress(identity).Bytes()...)

	var seq [4]byte
	binary.BigEndian.PutUint32(seq[:], uint32(sequence))
	msg = append(msg, seq[:]...)

	return append(msg, payload...)
}

// VerifySequence checks a sequence signature for a non-paint operation.
func VerifySequence(identity string, sequence int, payload []byte, signature string) error {
	return verifyPersonalSign(identity, SequencePayload(identity, sequence, payload), signature)
}

// SignSequence produces a sequence signature with a raw private key. For
// tests and tooling, like SignChain.
func SignSequence(key *ecdsa.PrivateKey, identity string, sequence int, payload []byte) (string, error) {
	return personalSign(key, SequencePayload(identity, sequence, payload))
}

// verifyPersonalSign recovers the signer of a personal-sign message and
// compares it to the claimed identity.
func verifyPersonalSign(identity string, message []byte, signature string) error {
	if !board.IsValidIdentity(identity) {
		return fmt.Errorf("malformed identity %q: %w", identity, board.ErrSignatureInvalid)
	}
	if !board.IsValidSignature(signature) {
		return fmt.Errorf("malformed signature: %w", board.ErrSignatureInvalid)
	}

	sig := common.FromHex(signature)
	// Wallets emit V as 27 or 28; recovery wants 0 or 1.
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash(message), sig)
	if err != nil {
		return fmt.Errorf("signature recovery failed: %w", board.ErrSignatureInvalid)
	}

	signer := crypto.PubkeyToAddress(*pub)
	if !strings.EqualFold(signer.Hex(), identity) {
		return fmt.Errorf("signer %s does not match identity %s: %w",
			strings.ToLower(signer.Hex()), identity, board.ErrSignatureInvalid)
	}
	return nil
}

// personalSign signs a message with the personal-sign prefix and returns
// the 65-byte signature as 0x-prefixed hex with V in wallet form (27/28).
func personalSign(key *ecdsa.PrivateKey, message []byte) (string, error) {
	sig, err := crypto.Sign(accounts.TextHash(message), key)
	if err != nil {
		return "", fmt.Errorf("signing failed: %w", err)
	}
	sig[64] += 27
	return "0x" + hex.EncodeToString(sig), nil
}

// Address derives the 0x identity string for a private key.
func Address(key *ecdsa.PrivateKey) string {
	return strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex())
}
