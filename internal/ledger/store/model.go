// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

package store

import "time"

// Account is the persisted row shape of the accounts table. Accounts
// are created implicitly on first reference; there is no separate
// account-provisioning operation.
type Account struct {
	AccountID    string
	TenantID     string
	Currency     string
	BalanceMinor int64
	CreatedAt    time.Time
}

// JournalEntry is the persisted row shape of the journal_entries table.
type JournalEntry struct {
	EntryID   string
	TenantID  string
	Narration string
	Currency  string
	CreatedAt time.Time
}

// Posting is one leg of a JournalEntry, persisted in the postings table.
type Posting struct {
	ID          int64
	EntryID     string
	AccountID   string
	Side        string
	AmountMinor int64
}

// ApplyTransferParams is the input to ApplyTransfer.
type ApplyTransferParams struct {
	IdempotencyKey string
	TenantID       string
	SourceAccount  string
	DestAccount    string
	AmountMinor    int64
	Currency       string
	Narration      string

	// SourceRegion tags the outbox event appended in the same
	// transaction as the posting, so drift counters can attribute the
	// movement to the region that committed it.
	SourceRegion string
}

// ApplyTransferResult is the outcome of ApplyTransfer. Duplicate is not
// an error: it reports that the idempotency key had already been
// committed, and EntryID is the original entry's id, not a freshly
// minted one.
type ApplyTransferResult struct {
	EntryID   string
	Duplicate bool
}
