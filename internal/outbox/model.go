// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

package outbox

import "time"

// Message is the persisted row shape of the outbox_messages table. It
// is written in the same transaction as the ledger mutation that
// produced it (internal/ledger/store) and later drained by Dispatcher
// onto the external stream.
type Message struct {
	ID           int64
	TenantID     string
	PartitionKey string
	EventType    string
	Payload      []byte
	SourceRegion string
	Status       Status
	Attempts     int
	LastError    string
	CreatedAt    time.Time
	PublishedAt  *time.Time
	UpdatedAt    time.Time
}

// LineSide is a posting line's direction on the wire, matching
// internal/ledger/posting.Side's "D"/"C" values.
type LineSide string

const (
	LineSideDebit  LineSide = "D"
	LineSideCredit LineSide = "C"
)

// Line is one leg of the journal entry carried by a ledger-events
// payload.
type Line struct {
	Account  string   `json:"account"`
	Side     LineSide `json:"side"`
	Amount   int64    `json:"amount"`
	Currency string   `json:"currency"`
}

// EventPayload is the decoded body of a ledger-events message,
// partitioned by the message's PartitionKey on the wire.
type EventPayload struct {
	EntryID      string    `json:"entryId"`
	Tenant       string    `json:"tenant"`
	OccurredAt   time.Time `json:"occurredAt"`
	Lines        []Line    `json:"lines"`
	SourceRegion string    `json:"sourceRegion"`
}
