// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

// Package outbox implements the durable at-least-once event dispatcher:
// messages are appended in the same transaction as the ledger mutation
// that produced them (internal/ledger/store), and this package drains
// them in partition order onto the message bus, quarantining messages
// that exhaust their retry budget.
package outbox

// Status is a message's position in its delivery lifecycle:
// PENDING -> PROCESSING -> PUBLISHED|FAILED|DLQ, FAILED -> PROCESSING
// for a retry. The publish failure that exhausts a message's retry
// budget moves it from PROCESSING straight to DLQ.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusPublished  Status = "published"
	StatusFailed     Status = "failed"
	StatusDLQ        Status = "dlq"
)

// ValidTransitions enumerates every legal state transition.
var ValidTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusPublished, StatusFailed, StatusDLQ},
	StatusFailed:     {StatusProcessing, StatusDLQ},
	StatusPublished:  {},
	StatusDLQ:        {},
}

// CanTransitionTo reports whether moving from s to to is a legal transition.
func (s Status) CanTransitionTo(to Status) bool {
	for _, allowed := range ValidTransitions[s] {
		if allowed == to {
			return true
		}
	}

	return false
}

// IsTerminal reports whether s has no further valid transitions.
func (s Status) IsTerminal() bool {
	return len(ValidTransitions[s]) == 0
}
