// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

package outbox

import "context"

// Repository is the storage dependency Dispatcher needs. It is satisfied
// by *PostgresRepository; tests substitute a fake or sqlmock-backed one.
type Repository interface {
	// PendingPartitions returns the distinct partition keys that currently
	// have at least one pending, failed or processing message, so the
	// dispatcher can fan a worker out per partition while preserving
	// in-partition order.
	PendingPartitions(ctx context.Context, limit int) ([]string, error)

	// FetchPendingForPartition returns up to limit dispatchable messages
	// (pending, previously-failed, or left processing) for partitionKey in
	// enqueue order (ascending id).
	FetchPendingForPartition(ctx context.Context, partitionKey string, limit int) ([]Message, error)

	// MarkProcessing transitions a message into StatusProcessing just
	// before it is handed to the publisher.
	MarkProcessing(ctx context.Context, id int64) error

	// MarkPublished transitions a message to StatusPublished.
	MarkPublished(ctx context.Context, id int64) error

	// MarkFailed records a transient publish failure, bumping Attempts and
	// leaving the message eligible for another dispatch pass.
	MarkFailed(ctx context.Context, id int64, cause error) error

	// MarkPoison quarantines a message that exhausted its retry budget.
	MarkPoison(ctx context.Context, id int64, cause error) error
}

// Observer is notified with the decoded payload of every message the
// Dispatcher successfully publishes. internal/reconcile.Feeder
// implements this to drive the drift counters off the same stream the
// external consumers see.
type Observer interface {
	Apply(ctx context.Context, payload EventPayload) error
}

// MultiObserver fans a single notification out to every observer in its
// list, letting the drift counters (internal/reconcile.Feeder) and the
// realtime balance hub (internal/realtime.Hub) both ride the same
// published-event stream without the Dispatcher knowing about either.
// The first error from any observer is returned; the rest still run.
type MultiObserver []Observer

// Apply implements Observer.
func (m MultiObserver) Apply(ctx context.Context, payload EventPayload) error {
	var firstErr error

	for _, o := range m {
		if err := o.Apply(ctx, payload); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
