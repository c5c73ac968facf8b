// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

package offline

import (
	"context"

	"github.com/nimbuspay/ledger-core/pkg/apperr"
	"github.com/nimbuspay/ledger-core/pkg/money"
	"github.com/nimbuspay/ledger-core/pkg/mtrace"
)

// Enqueuer is the storage dependency Acceptor needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, op Operation) (inserted bool, err error)
}

// AcceptRequest is the validated input to Accept (the /offline/ops
// request body).
type AcceptRequest struct {
	TenantID  string
	DeviceID  string
	Kind      Kind
	Payload   []byte
	Nonce     string
	Signature string
}

// AcceptResult reports whether the operation was newly queued or had
// already been accepted (AlreadyQueued is success-equivalent, not an
// error).
type AcceptResult struct {
	AlreadyQueued bool
}

// Acceptor is the server-side accept step: verify signature, then
// insert (device_id, nonce). A duplicate insert is AlreadyQueued, not a
// failure the caller must handle.
type Acceptor struct {
	repo     Enqueuer
	verifier *HmacVerifier
}

// NewAcceptor returns an Acceptor.
func NewAcceptor(repo Enqueuer, verifier *HmacVerifier) *Acceptor {
	return &Acceptor{repo: repo, verifier: verifier}
}

// Accept validates req and enqueues it. It never reaches storage with
// an invalid signature.
func (a *Acceptor) Accept(ctx context.Context, req AcceptRequest) (AcceptResult, error) {
	ctx, span := mtrace.Start(ctx, "offline.accept")
	defer span.End()

	if _, err := money.ParseTenantID(req.TenantID); err != nil {
		return AcceptResult{}, err
	}

	if req.DeviceID == "" {
		return AcceptResult{}, apperr.Validation("device id must not be empty")
	}

	if req.Nonce == "" {
		return AcceptResult{}, apperr.Validation("nonce must not be empty")
	}

	if err := a.verifier.Verify(req.DeviceID, req.Payload, req.Nonce, req.TenantID, req.Signature); err != nil {
		mtrace.HandleSpanError(&span, "offline operation signature rejected", err)
		return AcceptResult{}, err
	}

	inserted, err := a.repo.Enqueue(ctx, Operation{
		DeviceID:  req.DeviceID,
		Nonce:     req.Nonce,
		TenantID:  req.TenantID,
		Kind:      req.Kind,
		Payload:   req.Payload,
		Signature: req.Signature,
		Status:    StatusQueued,
	})
	if err != nil {
		mtrace.HandleSpanError(&span, "failed to enqueue offline operation", err)
		return AcceptResult{}, err
	}

	return AcceptResult{AlreadyQueued: !inserted}, nil
}
