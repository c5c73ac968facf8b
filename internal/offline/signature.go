// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

package offline

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"

	"github.com/gowebpki/jcs"

	"github.com/nimbuspay/ledger-core/pkg/apperr"
)

// DefaultMaxPayloadBytes is the offline-queue size guard's default
// ceiling. pkg/config.Load reads the configurable value from
// OFFLINE_MAX_PAYLOAD_BYTES.
const DefaultMaxPayloadBytes = 16 * 1024

// HmacVerifier signs and verifies the HMAC-SHA256 signature of an
// offline operation: HMAC(secret, device_id + canonical(payload) +
// nonce + tenant_id), where canonical() is RFC 8785 JSON
// Canonicalization (JCS) so the same logical payload always signs to
// the same bytes regardless of key order or whitespace.
type HmacVerifier struct {
	secret          []byte
	maxPayloadBytes int
}

// NewHmacVerifier returns a verifier keyed by secret, rejecting any payload
// larger than maxPayloadBytes. maxPayloadBytes defaults to
// DefaultMaxPayloadBytes when zero or negative.
func NewHmacVerifier(secret string, maxPayloadBytes int) *HmacVerifier {
	if maxPayloadBytes <= 0 {
		maxPayloadBytes = DefaultMaxPayloadBytes
	}

	return &HmacVerifier{secret: []byte(secret), maxPayloadBytes: maxPayloadBytes}
}

// MaxPayloadBytes returns the ceiling this verifier enforces.
// internal/httpapi's postOfflineOp does not call it; it applies the same
// configured value, passed in through Deps.OfflineMaxPayloadBytes, before
// HMAC verification runs.
func (v *HmacVerifier) MaxPayloadBytes() int {
	return v.maxPayloadBytes
}

// Canonical returns the RFC 8785 canonical JSON form of payload.
func Canonical(payload []byte) ([]byte, error) {
	canon, err := jcs.Transform(payload)
	if err != nil {
		return nil, apperr.Validation("offline operation payload is not valid JSON: %v", err)
	}

	return canon, nil
}

// Sign returns the hex-encoded HMAC-SHA256 signature over
// deviceID + canonical(payload) + nonce + tenantID.
func (v *HmacVerifier) Sign(deviceID string, payload []byte, nonce, tenantID string) (string, error) {
	canon, err := Canonical(payload)
	if err != nil {
		return "", err
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(deviceID))
	mac.Write(canon)
	mac.Write([]byte(nonce))
	mac.Write([]byte(tenantID))

	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify reports whether signature is the correct HMAC for the given
// fields. An operation with an invalid HMAC never reaches the queue.
// Comparison is constant-time.
func (v *HmacVerifier) Verify(deviceID string, payload []byte, nonce, tenantID, signature string) error {
	if len(payload) > v.maxPayloadBytes {
		return apperr.PayloadTooLarge("offline operation payload exceeds %d bytes", v.maxPayloadBytes)
	}

	expected, err := v.Sign(deviceID, payload, nonce, tenantID)
	if err != nil {
		return err
	}

	expectedRaw, err := hex.DecodeString(expected)
	if err != nil {
		return apperr.Validation("internal signature encoding error")
	}

	gotRaw, err := hex.DecodeString(signature)
	if err != nil {
		return apperr.Validation("offline operation signature is not valid hex")
	}

	if subtle.ConstantTimeCompare(expectedRaw, gotRaw) != 1 {
		return apperr.Validation("offline operation signature verification failed")
	}

	return nil
}

// DerivedIdempotencyKey builds the idempotency key used to replay a
// queued operation through the fast-path transfer handler, so a retried
// sync can never double-apply: "offline:" + device_id + ":" + nonce.
func DerivedIdempotencyKey(deviceID, nonce string) string {
	return "offline:" + deviceID + ":" + nonce
}

// MarshalCanonical is a convenience for callers that have a typed payload
// rather than raw JSON bytes.
func MarshalCanonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, apperr.Validation("failed to marshal offline operation payload: %v", err)
	}

	return raw, nil
}
