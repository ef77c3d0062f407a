// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compose

import (
	"log/slog"

	"github.com/gogpu/compose/logx"
)

// SetLogger configures the logger used by compose and its sub-packages.
// By default all output is discarded. Pass nil to restore the default
// silent behavior.
//
// Example:
//
//	compose.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
//
// Safe for concurrent use.
func SetLogger(l *slog.Logger) { logx.SetLogger(l) }

// Logger returns the current logger. Safe for concurrent use.
func Logger() *slog.Logger { return logx.Logger() }
