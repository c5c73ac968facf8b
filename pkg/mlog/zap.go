// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

package mlog

import "go.uber.org/zap"

// ZapLogger is the zap-backed implementation of Logger.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger builds a production zap logger and wraps it as a Logger.
func NewZapLogger(level string) (*ZapLogger, error) {
	cfg := zap.NewProductionConfig()

	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		lvl = zap.NewAtomicLevel()
	}

	cfg.Level = lvl

	base, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	return &ZapLogger{sugar: base.Sugar()}, nil
}

func (l *ZapLogger) Info(args ...any)                  { l.sugar.Info(args...) }
func (l *ZapLogger) Infof(format string, args ...any)  { l.sugar.Infof(format, args...) }
func (l *ZapLogger) Error(args ...any)                 { l.sugar.Error(args...) }
func (l *ZapLogger) Errorf(format string, args ...any) { l.sugar.Errorf(format, args...) }
func (l *ZapLogger) Warn(args ...any)                  { l.sugar.Warn(args...) }
func (l *ZapLogger) Warnf(format string, args ...any)  { l.sugar.Warnf(format, args...) }
func (l *ZapLogger) Debug(args ...any)                 { l.sugar.Debug(args...) }
func (l *ZapLogger) Debugf(format string, args ...any) { l.sugar.Debugf(format, args...) }
func (l *ZapLogger) Fatal(args ...any)                 { l.sugar.Fatal(args...) }
func (l *ZapLogger) Fatalf(format string, args ...any) { l.sugar.Fatalf(format, args...) }

// WithFields returns a child logger carrying the given structured fields.
func (l *ZapLogger) WithFields(fields ...any) Logger {
	return &ZapLogger{sugar: l.sugar.With(fields...)}
}
