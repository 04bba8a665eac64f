// Package signer computes and verifies keyed signatures over audit event
// fields. Signatures make the event log tamper-evident: any field change
// after creation makes verification fail.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/hkdf"

	dErrors "caseguard/pkg/domain-errors"
)

// Distinct HKDF info strings keep the audit signing key and the CSRF key
// independent even though both derive from one configured secret.
const (
	infoAudit = "caseguard/v1/audit-signing"
	infoCSRF  = "caseguard/v1/csrf"
)

// Digest is the canonical set of event fields covered by a signature.
// Fields not listed here (network context, resource, action) are advisory
// and may be redacted without invalidating the signature.
type Digest struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	EventType string         `json:"event_type"`
	ActorID   string         `json:"actor_id"`
	Details   map[string]any `json:"details"`
}

// Signer holds the derived keys. Construct once per process and inject.
type Signer struct {
	auditKey []byte
	csrfKey  []byte
}

// New derives the signing keys from the configured secret. An empty secret
// is refused: a guessable default would let anyone forge signatures, which
// defeats tamper evidence entirely.
func New(secret string) (*Signer, error) {
	if secret == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "audit signing secret is required")
	}

	auditKey, err := deriveKey(secret, infoAudit)
	if err != nil {
		return nil, fmt.Errorf("derive audit key: %w", err)
	}
	csrfKey, err := deriveKey(secret, infoCSRF)
	if err != nil {
		return nil, fmt.Errorf("derive csrf key: %w", err)
	}

	return &Signer{auditKey: auditKey, csrfKey: csrfKey}, nil
}

func deriveKey(secret, info string) ([]byte, error) {
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(info))
	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Sign computes the HMAC-SHA256 over the canonical JSON encoding of d.
// Encoding is deterministic: struct fields keep declaration order and map
// keys are sorted by encoding/json.
func (s *Signer) Sign(d Digest) ([]byte, error) {
	payload, err := canonical(d)
	if err != nil {
		return nil, err
	}
	mac := hmac.New(sha256.New, s.auditKey)
	mac.Write(payload)
	return mac.Sum(nil), nil
}

// Verify recomputes the signature for d and compares it to sig in constant
// time. False means the event was altered after creation, or was signed
// with a different key.
func (s *Signer) Verify(d Digest, sig []byte) bool {
	expected, err := s.Sign(d)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, sig)
}

// TokenMAC derives a deterministic token for a session identifier using the
// CSRF key. Hex-encoded so it is safe in headers and form fields.
func (s *Signer) TokenMAC(sessionToken string) string {
	mac := hmac.New(sha256.New, s.csrfKey)
	mac.Write([]byte(sessionToken))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyTokenMAC checks a token against the session identifier it should
// have been derived from, in constant time.
func (s *Signer) VerifyTokenMAC(token, sessionToken string) bool {
	expected := s.TokenMAC(sessionToken)
	return hmac.Equal([]byte(expected), []byte(token))
}

func canonical(d Digest) ([]byte, error) {
	// Timestamps are normalized to UTC so the signature does not depend on
	// the zone the process happened to run in.
	d.Timestamp = d.Timestamp.UTC()
	payload, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("canonical encoding: %w", err)
	}
	return payload, nil
}
