// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

// Package posting implements the balanced-entry posting engine. It is
// the canonical representation of a money movement in this system: the
// fast-path transfer handler (internal/transfer) builds its two-line
// entries through this package rather than maintaining a separate
// "wallet" ledger.
package posting

import (
	"github.com/nimbuspay/ledger-core/pkg/apperr"
	"github.com/nimbuspay/ledger-core/pkg/money"
)

// Side is the direction of a posting line.
type Side string

const (
	Debit  Side = "D"
	Credit Side = "C"
)

// Line is one leg of a journal entry.
type Line struct {
	AccountID   money.AccountID
	Side        Side
	AmountMinor int64
}

// Entry is a journal entry awaiting validation and persistence: narration,
// a single currency, and an ordered set of balanced lines.
type Entry struct {
	Narration string
	Currency  string
	Lines     []Line
}

// Validate checks narration, sides, amounts and the balanced-sum rule.
// Account existence and per-account currency match need storage access
// and are the caller's responsibility.
func Validate(e Entry) error {
	if err := money.ValidateNarration(e.Narration); err != nil {
		return err
	}

	var debits, credits int64

	var hasDebit, hasCredit bool

	for _, l := range e.Lines {
		if l.AmountMinor <= 0 {
			return apperr.Validation("posting line for %s must have a strictly positive amount, got %d", l.AccountID, l.AmountMinor)
		}

		switch l.Side {
		case Debit:
			hasDebit = true
			debits += l.AmountMinor
		case Credit:
			hasCredit = true
			credits += l.AmountMinor
		default:
			return apperr.Validation("posting line for %s has unknown side %q", l.AccountID, l.Side)
		}
	}

	if !hasDebit || !hasCredit {
		return apperr.Validation("journal entry must have at least one debit and one credit line")
	}

	if debits != credits {
		return apperr.Validation("unbalanced journal entry: debits=%d credits=%d", debits, credits)
	}

	return nil
}

// BuildTransferEntry constructs the optimized two-line case of a
// balanced entry: a single debit against src and a single credit
// against dst for the same amount.
func BuildTransferEntry(src, dst money.AccountID, amountMinor int64, currency, narration string) (Entry, error) {
	entry := Entry{
		Narration: narration,
		Currency:  currency,
		Lines: []Line{
			{AccountID: src, Side: Debit, AmountMinor: amountMinor},
			{AccountID: dst, Side: Credit, AmountMinor: amountMinor},
		},
	}

	if err := Validate(entry); err != nil {
		return Entry{}, err
	}

	return entry, nil
}

// Delta returns the signed change to apply to an account's ledger_minor
// balance for a line of the given side and amount, under the wallet
// convention: debit subtracts, credit adds. The core treats every
// account uniformly this way; the contract that must hold is that, for
// every committed entry, the sum of deltas across its lines is zero
// within each currency, which Validate already guarantees via the
// balanced-sum check.
func Delta(side Side, amountMinor int64) int64 {
	if side == Debit {
		return -amountMinor
	}

	return amountMinor
}
