// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

// Package offline implements the offline operation queue: device-signed
// queued operations, ordered and deduplicated replay when connectivity
// returns.
package offline

import "time"

// Kind is the operation kind a device queues while offline.
type Kind string

const (
	KindTransfer      Kind = "transfer"
	KindBillPayment   Kind = "bill_payment"
	KindCashoutIntent Kind = "cashout_intent"
)

// Status is an offline operation's position in its replay lifecycle.
type Status string

const (
	StatusQueued   Status = "queued"
	StatusSynced   Status = "synced"
	StatusRejected Status = "rejected"
)

// Operation is the persisted row shape of the offline_operations table.
type Operation struct {
	DeviceID     string
	Nonce        string
	TenantID     string
	Kind         Kind
	Payload      []byte
	Signature    string
	Status       Status
	EntryID      string
	ErrorMessage string
	EnqueuedAt   time.Time
	SyncedAt     *time.Time
}

// TransferPayload is the decoded Payload of a KindTransfer operation.
type TransferPayload struct {
	Source      string `json:"src"`
	Dest        string `json:"dst"`
	AmountMinor int64  `json:"amountMinor"`
	Currency    string `json:"currency"`
	Narration   string `json:"narration"`
}

// ItemResult is one operation's outcome from a Sync call, as it appears
// in the /offline/sync response.
type ItemResult struct {
	Nonce   string `json:"nonce"`
	Status  Status `json:"status"`
	EntryID string `json:"entryId,omitempty"`
	Error   string `json:"error,omitempty"`
}
