// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

// Package apperr defines the error kinds the ledger core emits. Each
// kind carries a stable code so callers can switch on it with errors.As
// or HasCode instead of string-matching, and so the HTTP mapping layer
// in pkg/httpx can translate it to a status.
package apperr

import (
	"errors"
	"fmt"
)

// Code is a stable, loggable identifier for an error kind.
type Code string

const (
	CodeValidation        Code = "validation"
	CodeInsufficientFunds Code = "insufficient_funds"
	CodeCurrencyMismatch  Code = "currency_mismatch"
	CodeConflict          Code = "conflict"
	CodeTenantIsolation   Code = "tenant_isolation_violation"
	CodePoisonEvent       Code = "poison_event"
	CodeStaleWatermark    Code = "stale_watermark"
	CodeNotFound          Code = "not_found"
	CodePayloadTooLarge   Code = "payload_too_large"
)

// Error is the common shape for every typed ledger-core error.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports a malformed account id, tenant, currency, amount,
// narration, or signature. Never retried.
func Validation(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// InsufficientFunds reports that the source balance was below the
// requested amount at the serializable snapshot.
func InsufficientFunds(accountID string) *Error {
	return &Error{Code: CodeInsufficientFunds, Message: "insufficient funds on account " + accountID}
}

// CurrencyMismatch reports that an account's currency does not match the
// requested currency, or that debit/credit legs mix currencies.
func CurrencyMismatch(message string) *Error {
	return &Error{Code: CodeCurrencyMismatch, Message: message}
}

// Conflict reports a serialization failure surviving all retries.
func Conflict(message string) *Error {
	return &Error{Code: CodeConflict, Message: message}
}

// TenantIsolationViolation reports a query that reached storage without
// tenant scope. Fatal programmer error; always logged and surfaced as 500.
func TenantIsolationViolation(message string) *Error {
	return &Error{Code: CodeTenantIsolation, Message: message}
}

// PoisonEvent reports an outbox message that failed delivery permanently.
func PoisonEvent(messageID string, cause error) *Error {
	return &Error{Code: CodePoisonEvent, Message: "quarantined outbox message " + messageID, Err: cause}
}

// StaleWatermark reports the healer's freshness gate tripping; always a
// silent skip, never propagated to a caller.
func StaleWatermark(message string) *Error {
	return &Error{Code: CodeStaleWatermark, Message: message}
}

// NotFound reports a missing entity.
func NotFound(message string) *Error {
	return &Error{Code: CodeNotFound, Message: message}
}

// PayloadTooLarge reports a request body breaching a configured size
// ceiling (e.g. the offline op payload's 16 KiB guard). Never retried.
func PayloadTooLarge(format string, args ...any) *Error {
	return &Error{Code: CodePayloadTooLarge, Message: fmt.Sprintf(format, args...)}
}

// Is lets errors.Is match on Code equality between two *Error values.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return e.Code == t.Code
}

// HasCode reports whether err is, or wraps, an *Error with the given Code.
func HasCode(err error, code Code) bool {
	var appErr *Error
	if !errors.As(err, &appErr) {
		return false
	}

	return appErr.Code == code
}
