// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

// Package mlog defines the logging contract shared by every component of
// the ledger core. No component reaches for a package-level logger; each
// holds a Logger field handed to it at wiring time.
package mlog

// Logger is the common interface every component depends on.
type Logger interface {
	Info(args ...any)
	Infof(format string, args ...any)

	Error(args ...any)
	Errorf(format string, args ...any)

	Warn(args ...any)
	Warnf(format string, args ...any)

	Debug(args ...any)
	Debugf(format string, args ...any)

	Fatal(args ...any)
	Fatalf(format string, args ...any)

	// WithFields returns a new Logger carrying the given key/value pairs,
	// leaving the receiver unchanged.
	WithFields(fields ...any) Logger
}
