// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

package transfer

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/nimbuspay/ledger-core/internal/tenant"
	"github.com/nimbuspay/ledger-core/pkg/apperr"
	"github.com/nimbuspay/ledger-core/pkg/mlog"
)

// RemoteClient posts transfers against a peer region's ledger through
// its POST /ledger/fast-transfer endpoint. The drift healer uses it
// whenever the fix region is not this instance's own, so a compensating
// entry lands on the region whose books actually need correcting.
type RemoteClient struct {
	baseURL string
	client  *http.Client
	logger  mlog.Logger
}

// NewRemoteClient returns a RemoteClient posting against baseURL. The
// timeout bounds the whole request; callers additionally thread their
// own context deadlines through Transfer.
func NewRemoteClient(baseURL string, timeout time.Duration, logger mlog.Logger) *RemoteClient {
	return &RemoteClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type remoteTransferBody struct {
	Source      string `json:"src"`
	Dest        string `json:"dst"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
	Narration   string `json:"narration"`
}

// remoteTransferResponse covers both the success body
// (entryId/status) and the error body (code/message) of the peer's
// fast-transfer endpoint.
type remoteTransferResponse struct {
	EntryID string `json:"entryId"`
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Transfer implements the same contract as Handler.Transfer, executed
// against the remote region. The peer's status codes map back onto the
// same typed errors a local call would return, so the healer cannot
// tell (and does not care) which side of the wire the ledger lives on.
// One difference: the peer's duplicate response carries no entry id, so
// a Duplicate result from this client has an empty EntryID.
func (c *RemoteClient) Transfer(ctx context.Context, req Request) (Result, error) {
	body, err := json.Marshal(remoteTransferBody{
		Source:      req.Source,
		Dest:        req.Dest,
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		Narration:   req.Narration,
	})
	if err != nil {
		return Result{}, errors.Wrap(err, "transfer: marshal remote request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ledger/fast-transfer", bytes.NewReader(body))
	if err != nil {
		return Result{}, errors.Wrap(err, "transfer: build remote request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	httpReq.Header.Set(tenant.HeaderName, req.TenantID)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Result{}, errors.Wrap(err, "transfer: remote fast-transfer call")
	}
	defer resp.Body.Close()

	var decoded remoteTransferResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&decoded); decodeErr != nil && resp.StatusCode < http.StatusMultipleChoices {
		return Result{}, errors.Wrap(decodeErr, "transfer: decode remote response")
	}

	switch resp.StatusCode {
	case http.StatusAccepted:
		return Result{EntryID: decoded.EntryID}, nil
	case http.StatusOK:
		return Result{EntryID: decoded.EntryID, Duplicate: true}, nil
	case http.StatusBadRequest:
		return Result{}, apperr.Validation("remote transfer rejected: %s", decoded.Message)
	case http.StatusConflict:
		if apperr.Code(decoded.Code) == apperr.CodeCurrencyMismatch {
			return Result{}, apperr.CurrencyMismatch(decoded.Message)
		}

		return Result{}, apperr.InsufficientFunds(req.Source)
	case http.StatusServiceUnavailable:
		return Result{}, apperr.Conflict("remote transfer retries exhausted: " + decoded.Message)
	default:
		c.logger.Errorf("transfer: remote fast-transfer returned unexpected status %d: %s", resp.StatusCode, decoded.Message)
		return Result{}, errors.Errorf("transfer: remote fast-transfer returned status %d", resp.StatusCode)
	}
}
