// Package gateway accepts signed interaction callbacks from the chat
// platform, verifies them, and routes them to the moderation engine or to
// read-only query handlers.
package gateway

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
)

// Signature headers the platform sends with every interaction callback.
const (
	HeaderSignature = "X-Signature-Ed25519"
	HeaderTimestamp = "X-Signature-Timestamp"
)

// ErrSignatureInvalid is returned when an interaction callback's signature
// does not verify against the configured public key. The request is
// discarded before any parsing, so a forged or replayed callback has no
// side effects.
var ErrSignatureInvalid = errors.New("interaction signature invalid")

// VerifySignature checks the platform's Ed25519 signature over
// timestamp || rawBody. It fails closed: missing or malformed headers
// reject the request. ed25519.Verify is constant time with respect to the
// signature contents.
func VerifySignature(publicKey ed25519.PublicKey, signatureHex,
	timestamp string, rawBody []byte) error {

	if len(publicKey) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: misconfigured public key",
			ErrSignatureInvalid)
	}
	if signatureHex == "" || timestamp == "" {
		return fmt.Errorf("%w: missing signature headers",
			ErrSignatureInvalid)
	}

	sig, err := hex.DecodeString(signatureHex)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("%w: malformed signature",
			ErrSignatureInvalid)
	}

	signed := make([]byte, 0, len(timestamp)+len(rawBody))
	signed = append(signed, timestamp...)
	signed = append(signed, rawBody...)

	if !ed25519.Verify(publicKey, signed, sig) {
		return ErrSignatureInvalid
	}

	return nil
}

// ParsePublicKey decodes the hex-encoded verification key from the
// configuration surface.
func ParsePublicKey(hexKey string) (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key must be %d bytes, got %d",
			ed25519.PublicKeySize, len(raw))
	}

	return ed25519.PublicKey(raw), nil
}
