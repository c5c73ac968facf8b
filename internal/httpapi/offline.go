// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/nimbuspay/ledger-core/internal/offline"
	"github.com/nimbuspay/ledger-core/internal/tenant"
	"github.com/nimbuspay/ledger-core/pkg/apperr"
	"github.com/nimbuspay/ledger-core/pkg/httpx"
)

// postOfflineOpRequest is the POST /offline/ops body.
type postOfflineOpRequest struct {
	DeviceID  string       `json:"deviceId" validate:"required"`
	Kind      offline.Kind `json:"kind" validate:"required"`
	Payload   []byte       `json:"payload" validate:"required"`
	Nonce     string       `json:"nonce" validate:"required"`
	Signature string       `json:"signature" validate:"required"`
}

// postOfflineOp implements POST /offline/ops.
func (h *handlers) postOfflineOp(c *fiber.Ctx) error {
	tc, ok := tenant.FromFiberCtx(c)
	if !ok {
		return httpx.WithError(c, apperr.TenantIsolationViolation("offline accept reached handler without tenant context"))
	}

	maxPayloadBytes := h.deps.OfflineMaxPayloadBytes
	if maxPayloadBytes <= 0 {
		maxPayloadBytes = offline.DefaultMaxPayloadBytes
	}

	if len(c.Body()) > maxPayloadBytes {
		return httpx.WithError(c, apperr.PayloadTooLarge("request body exceeds %d bytes", maxPayloadBytes))
	}

	var body postOfflineOpRequest
	if err := c.BodyParser(&body); err != nil {
		return httpx.WithError(c, apperr.Validation("malformed request body: %v", err))
	}

	if err := httpx.ValidateStruct(body); err != nil {
		return httpx.WithError(c, err)
	}

	result, err := h.deps.Acceptor.Accept(c.UserContext(), offline.AcceptRequest{
		TenantID:  tc.ID.String(),
		DeviceID:  body.DeviceID,
		Kind:      body.Kind,
		Payload:   body.Payload,
		Nonce:     body.Nonce,
		Signature: body.Signature,
	})
	if err != nil {
		return httpx.WithError(c, err)
	}

	if result.AlreadyQueued {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"state": "alreadyQueued"})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"state": "queued"})
}

// postOfflineSyncRequest is the POST /offline/sync body.
type postOfflineSyncRequest struct {
	DeviceID string `json:"deviceId" validate:"required"`
	Max      int    `json:"max"`
}

type postOfflineSyncResponse struct {
	Synced  int                  `json:"synced"`
	Results []offline.ItemResult `json:"results"`
}

// defaultSyncBatch is the fallback batch cap when Deps.OfflineSyncMaxPerCall
// is unset, matching pkg/config's OFFLINE_SYNC_MAX_PER_CALL default.
const defaultSyncBatch = 50

// postOfflineSync implements POST /offline/sync.
func (h *handlers) postOfflineSync(c *fiber.Ctx) error {
	tc, ok := tenant.FromFiberCtx(c)
	if !ok {
		return httpx.WithError(c, apperr.TenantIsolationViolation("offline sync reached handler without tenant context"))
	}

	var body postOfflineSyncRequest
	if err := c.BodyParser(&body); err != nil {
		return httpx.WithError(c, apperr.Validation("malformed request body: %v", err))
	}

	if err := httpx.ValidateStruct(body); err != nil {
		return httpx.WithError(c, err)
	}

	maxSyncBatch := h.deps.OfflineSyncMaxPerCall
	if maxSyncBatch <= 0 {
		maxSyncBatch = defaultSyncBatch
	}

	max := body.Max
	if max <= 0 || max > maxSyncBatch {
		max = maxSyncBatch
	}

	results, err := h.deps.Syncer.Sync(c.UserContext(), tc.ID.String(), body.DeviceID, max)
	if err != nil {
		if errors.Is(err, offline.ErrSyncInFlight) {
			return c.Status(fiber.StatusConflict).JSON(httpx.ResponseError{
				Code:    "sync_in_flight",
				Message: err.Error(),
			})
		}

		return httpx.WithError(c, err)
	}

	synced := 0

	for _, r := range results {
		if r.Status == offline.StatusSynced {
			synced++
		}
	}

	return c.Status(fiber.StatusOK).JSON(postOfflineSyncResponse{Synced: synced, Results: results})
}
