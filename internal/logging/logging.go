// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logging builds the structured logger used throughout the
// pipeline. Implements spec §7: every error gets exactly one structured
// log record carrying stage, item_identifier, error_kind, and cause.
//
// Grounded on the zap setup in pablohgiraldo-llm-control-plane's
// internal/observability package (a zap.Logger wrapped behind a small
// interface) and theRebelliousNerd-codenerd's CLI-level zap wiring; the
// teacher's own progress reporting uses a plain io.Writer passed down
// through each stage (see internal/acquire.AcquirePaper's `w io.Writer`
// parameter) rather than a logger, so that idiom is kept as a secondary
// human-readable sink alongside the new structured log.
package logging

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/research-engine/pkg/types"
)

// New builds a zap.Logger writing structured JSON records to w, at the
// level configured by level. Human-readable progress text is not written
// here; it goes through a separate io.Writer (see Progress), independent
// of the structured logger's level.
func New(level types.LogLevel, w io.Writer) *zap.Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(w),
		zapLevel(level),
	)
	return zap.New(core)
}

func zapLevel(level types.LogLevel) zapcore.Level {
	switch level {
	case types.LogDebug:
		return zapcore.DebugLevel
	case types.LogWarning:
		return zapcore.WarnLevel
	case types.LogError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// StageError logs exactly one structured record for a single failure:
// the stage it occurred in, the item it was processing (a URL, query
// text, or source number, stringified by the caller), the error kind
// from pkg/types' sentinel taxonomy, and the underlying cause.
func StageError(logger *zap.Logger, stage, itemIdentifier string, errorKind error, cause error) {
	logger.Error("stage error",
		zap.String("stage", stage),
		zap.String("item_identifier", itemIdentifier),
		zap.Error(errorKind),
		zap.NamedError("cause", cause),
	)
}

// Progress is the teacher's human-readable progress sink: a plain
// io.Writer that stages fmt.Fprintf one-line updates into, independent
// of the structured zap logger.
type Progress = io.Writer
