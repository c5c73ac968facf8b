// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

// Package mtrace wraps the OpenTelemetry tracer in the handful of helpers
// the ledger core's hot paths actually use: starting a span and recording
// a failure on it. Spans go to the global OpenTelemetry tracer provider;
// this repository installs no provider or exporter of its own.
package mtrace

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/nimbuspay/ledger-core"

// Start begins a span named spanName, returning the derived context and span.
func Start(ctx context.Context, spanName string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, spanName)
}

// HandleSpanError records err on span with the given message and marks the
// span as errored. No-op if err is nil.
func HandleSpanError(span *trace.Span, message string, err error) {
	if err == nil || span == nil {
		return
	}

	(*span).RecordError(err, trace.WithAttributes(attribute.String("message", message)))
	(*span).SetStatus(codes.Error, message)
}
