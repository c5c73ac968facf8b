// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

// Package httpx maps the ledger core's typed errors (pkg/apperr) onto
// HTTP status codes and validates inbound request bodies.
package httpx

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/nimbuspay/ledger-core/pkg/apperr"
)

// ResponseError is the JSON body returned for every non-2xx response.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WithError writes the HTTP status and ResponseError body for err.
// Unrecognized errors become an opaque 500 so internals never leak.
func WithError(c *fiber.Ctx, err error) error {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		return c.Status(fiber.StatusInternalServerError).JSON(ResponseError{
			Code:    "internal",
			Message: "internal server error",
		})
	}

	status := statusFor(appErr.Code)

	return c.Status(status).JSON(ResponseError{
		Code:    string(appErr.Code),
		Message: appErr.Message,
	})
}

func statusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeValidation:
		return fiber.StatusBadRequest
	case apperr.CodeInsufficientFunds, apperr.CodeCurrencyMismatch:
		return fiber.StatusConflict
	case apperr.CodeConflict:
		return fiber.StatusServiceUnavailable
	case apperr.CodeNotFound:
		return fiber.StatusNotFound
	case apperr.CodePayloadTooLarge:
		return fiber.StatusRequestEntityTooLarge
	case apperr.CodeTenantIsolation:
		return fiber.StatusInternalServerError
	default:
		return fiber.StatusInternalServerError
	}
}
