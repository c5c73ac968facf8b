// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nimbuspay/ledger-core/internal/tenant"
	"github.com/nimbuspay/ledger-core/internal/transfer"
	"github.com/nimbuspay/ledger-core/pkg/apperr"
	"github.com/nimbuspay/ledger-core/pkg/httpx"
)

// fastTransferRequest is the POST /ledger/fast-transfer body.
type fastTransferRequest struct {
	Source      string `json:"src" validate:"required"`
	Dest        string `json:"dst" validate:"required"`
	AmountMinor int64  `json:"amount_minor" validate:"required,gt=0"`
	Currency    string `json:"currency" validate:"required,len=3"`
	Narration   string `json:"narration" validate:"required"`
}

type fastTransferResponse struct {
	EntryID string `json:"entryId"`
	Status  string `json:"status"`
}

// postFastTransfer implements POST /ledger/fast-transfer.
func (h *handlers) postFastTransfer(c *fiber.Ctx) error {
	tc, ok := tenant.FromFiberCtx(c)
	if !ok {
		return httpx.WithError(c, apperr.TenantIsolationViolation("fast-transfer reached handler without tenant context"))
	}

	idemKey := c.Get("Idempotency-Key")
	if idemKey == "" {
		return httpx.WithError(c, apperr.Validation("missing required header Idempotency-Key"))
	}

	var body fastTransferRequest
	if err := c.BodyParser(&body); err != nil {
		return httpx.WithError(c, apperr.Validation("malformed request body: %v", err))
	}

	if err := httpx.ValidateStruct(body); err != nil {
		return httpx.WithError(c, err)
	}

	result, err := h.deps.Transfer.Transfer(c.UserContext(), transfer.Request{
		IdempotencyKey: idemKey,
		TenantID:       tc.ID.String(),
		Source:         body.Source,
		Dest:           body.Dest,
		AmountMinor:    body.AmountMinor,
		Currency:       body.Currency,
		Narration:      body.Narration,
	})
	if err != nil {
		return httpx.WithError(c, err)
	}

	if result.Duplicate {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "Accepted"})
	}

	return c.Status(fiber.StatusAccepted).JSON(fastTransferResponse{EntryID: result.EntryID, Status: "Accepted"})
}

type balanceResponse struct {
	AvailableMinor int64  `json:"availableMinor"`
	Currency       string `json:"currency"`
	PendingMinor   int64  `json:"pendingMinor"`
}

// getAccountBalance implements GET /ledger/accounts/{id}/balance.
func (h *handlers) getAccountBalance(c *fiber.Ctx) error {
	tc, ok := tenant.FromFiberCtx(c)
	if !ok {
		return httpx.WithError(c, apperr.TenantIsolationViolation("balance read reached handler without tenant context"))
	}

	accountID := c.Params("id")

	wantCurrency := c.Query("currency")
	if wantCurrency == "" {
		return httpx.WithError(c, apperr.Validation("missing required query parameter currency"))
	}

	available, currency, err := h.deps.Balance.ReadBalance(c.UserContext(), tc.ID.String(), accountID)
	if err != nil {
		return httpx.WithError(c, err)
	}

	if currency == "" {
		return httpx.WithError(c, apperr.NotFound("unknown account "+accountID))
	}

	if currency != wantCurrency {
		return httpx.WithError(c, apperr.CurrencyMismatch("account "+accountID+" is denominated in "+currency+", not "+wantCurrency))
	}

	return c.Status(fiber.StatusOK).JSON(balanceResponse{
		AvailableMinor: available,
		Currency:       currency,
	})
}
