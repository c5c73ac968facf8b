// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

// Package money implements the ledger core's value model: Money,
// Currency, AccountID, TenantID and IdempotencyKey, plus the validation
// rules every other component relies on. Minor-unit integers are the
// only representation of money here; no floating point type touches a
// balance anywhere in this package or its callers.
package money

import (
	"regexp"

	"github.com/nimbuspay/ledger-core/pkg/apperr"
)

var (
	accountIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_:-]{1,50}$`)
	tenantIDPattern  = regexp.MustCompile(`^tnt_[a-zA-Z0-9_-]{4,46}$`)
	narrationChars   = regexp.MustCompile(`^[a-zA-Z0-9 .,:;'"/()_\-#@&]{1,256}$`)
)

// DefaultSupportedCurrencies is the fallback set used when the
// SUPPORTED_CURRENCIES configuration option is unset.
var DefaultSupportedCurrencies = []string{"NGN", "USD", "EUR", "GBP"}

// CurrencySet validates ISO-4217 3-letter codes against a fixed allow-list.
type CurrencySet struct {
	allowed map[string]struct{}
}

// NewCurrencySet builds a CurrencySet from the given codes.
func NewCurrencySet(codes []string) *CurrencySet {
	allowed := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		allowed[c] = struct{}{}
	}

	return &CurrencySet{allowed: allowed}
}

// Valid reports whether code is a 3-letter uppercase code in the set.
func (s *CurrencySet) Valid(code string) bool {
	if len(code) != 3 {
		return false
	}

	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}

	_, ok := s.allowed[code]

	return ok
}

// AccountID is a stable opaque identifier for an account, e.g.
// "msisdn::2348100000001", "card::...", "merchant::...", "suspense".
type AccountID string

// ParseAccountID validates and returns raw as an AccountID.
func ParseAccountID(raw string) (AccountID, error) {
	if !accountIDPattern.MatchString(raw) {
		return "", apperr.Validation("invalid account id %q", raw)
	}

	return AccountID(raw), nil
}

func (a AccountID) String() string { return string(a) }

// TenantID identifies the owning tenant of a request or account.
type TenantID string

// ParseTenantID validates and returns raw as a TenantID.
func ParseTenantID(raw string) (TenantID, error) {
	if !tenantIDPattern.MatchString(raw) {
		return "", apperr.Validation("invalid tenant id %q", raw)
	}

	return TenantID(raw), nil
}

func (t TenantID) String() string { return string(t) }

// IdempotencyKey is a caller-supplied token (opaque string, <=100 chars)
// that makes transfer safe to resubmit.
type IdempotencyKey string

// ParseIdempotencyKey validates raw's length.
func ParseIdempotencyKey(raw string) (IdempotencyKey, error) {
	if raw == "" || len(raw) > 100 {
		return "", apperr.Validation("idempotency key must be 1-100 chars, got %d", len(raw))
	}

	return IdempotencyKey(raw), nil
}

// Money pairs a minor-unit integer amount with a currency code.
type Money struct {
	Minor    int64
	Currency string
}

// New validates currency against set, returning Money. The amount's sign
// is not checked.
func New(minor int64, currency string, set *CurrencySet) (Money, error) {
	if !set.Valid(currency) {
		return Money{}, apperr.Validation("unsupported currency %q", currency)
	}

	return Money{Minor: minor, Currency: currency}, nil
}

// Add returns m+other. Both must share a currency or CurrencyMismatch is
// returned.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, apperr.CurrencyMismatch("cannot add " + m.Currency + " and " + other.Currency)
	}

	return Money{Minor: m.Minor + other.Minor, Currency: m.Currency}, nil
}

// Sub returns m-other. Both must share a currency or CurrencyMismatch is
// returned.
func (m Money) Sub(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, apperr.CurrencyMismatch("cannot subtract " + other.Currency + " from " + m.Currency)
	}

	return Money{Minor: m.Minor - other.Minor, Currency: m.Currency}, nil
}

// MinTransferMinor and MaxTransferMinor bound a single fast-path
// transfer amount.
const (
	MinTransferMinor = 1
	MaxTransferMinor = 1_000_000_000
)

// ValidateTransferAmount enforces the transfer amount bound.
func ValidateTransferAmount(minor int64) error {
	if minor < MinTransferMinor || minor > MaxTransferMinor {
		return apperr.Validation("amount %d minor out of range [%d, %d]", minor, MinTransferMinor, MaxTransferMinor)
	}

	return nil
}

// ValidateNarration enforces the narration charset and length limit.
func ValidateNarration(narration string) error {
	if !narrationChars.MatchString(narration) {
		return apperr.Validation("narration must be 1-256 chars of the restricted charset")
	}

	return nil
}
