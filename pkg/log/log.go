// Copyright 2026 Interledger Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log provides structured logging on top of zap. Loggers carry
// key/value context and are passed through contexts via CtxWith/FromCtx.
package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is the verbosity level of a log statement.
type Level zapcore.Level

// Available log levels.
const (
	DebugLevel = Level(zapcore.DebugLevel)
	InfoLevel  = Level(zapcore.InfoLevel)
	ErrorLevel = Level(zapcore.ErrorLevel)
)

// Logger describes the logging interface of the connector. Context arguments
// are alternating string keys and arbitrary values, as in zap's sugared
// logger.
type Logger interface {
	New(ctx ...any) Logger
	Debug(msg string, ctx ...any)
	Info(msg string, ctx ...any)
	Error(msg string, ctx ...any)
	Enabled(lvl Level) bool
}

// Config configures the process-wide root logger.
type Config struct {
	// Level is the minimum level to emit ("debug", "info", "error").
	Level string `toml:"level,omitempty"`
	// Console switches to a human-readable encoder instead of JSON.
	Console bool `toml:"console,omitempty"`
}

var root Logger = &logger{logger: zap.NewNop()}

// Setup initializes the root logger according to the config. It must be
// called at most once, before any logging happens.
func Setup(cfg Config) error {
	lvl, err := zapcore.ParseLevel(func() string {
		if cfg.Level == "" {
			return "info"
		}
		return cfg.Level
	}())
	if err != nil {
		return err
	}
	zc := zap.NewProductionConfig()
	if cfg.Console {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zl, err := zc.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}
	root = &logger{logger: zl}
	return nil
}

// Root returns the process-wide root logger. It is never nil.
func Root() Logger {
	return root
}

// New returns a child of the root logger with the given context attached.
func New(ctx ...any) Logger {
	return root.New(ctx...)
}

// Discard returns a logger that drops everything.
func Discard() Logger {
	return &logger{logger: zap.NewNop()}
}

type logger struct {
	logger *zap.Logger
}

// NewZapLogger wraps an existing zap logger. Mostly useful for tests that
// want to observe log output.
func NewZapLogger(zl *zap.Logger) Logger {
	return &logger{logger: zl}
}

func (l *logger) New(ctx ...any) Logger {
	return &logger{logger: l.logger.With(convertCtx(ctx)...)}
}

func (l *logger) Debug(msg string, ctx ...any) {
	l.logger.Debug(msg, convertCtx(ctx)...)
}

func (l *logger) Info(msg string, ctx ...any) {
	l.logger.Info(msg, convertCtx(ctx)...)
}

func (l *logger) Error(msg string, ctx ...any) {
	l.logger.Error(msg, convertCtx(ctx)...)
}

func (l *logger) Enabled(lvl Level) bool {
	return l.logger.Core().Enabled(zapcore.Level(lvl))
}

func (l *logger) WithOptions(opts ...zap.Option) Logger {
	return &logger{logger: l.logger.WithOptions(opts...)}
}

func convertCtx(ctx []any) []zap.Field {
	fields := make([]zap.Field, 0, len(ctx)/2)
	for i := 0; i+1 < len(ctx); i += 2 {
		fields = append(fields, zap.Any(ctx[i].(string), ctx[i+1]))
	}
	return fields
}
