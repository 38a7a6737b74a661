// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// zerologAdapter bridges the agent's Logger interface to zerolog
type zerologAdapter struct {
	logger zerolog.Logger
}

func (z *zerologAdapter) Debug(_ context.Context, msg string, keysAndValues ...any) {
	z.emit(z.logger.Debug(), msg, keysAndValues)
}

func (z *zerologAdapter) Info(_ context.Context, msg string, keysAndValues ...any) {
	z.emit(z.logger.Info(), msg, keysAndValues)
}

func (z *zerologAdapter) Warn(_ context.Context, msg string, keysAndValues ...any) {
	z.emit(z.logger.Warn(), msg, keysAndValues)
}

func (z *zerologAdapter) Error(_ context.Context, msg string, keysAndValues ...any) {
	z.emit(z.logger.Error(), msg, keysAndValues)
}

func (z *zerologAdapter) emit(event *zerolog.Event, msg string, keysAndValues []any) {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		event = event.Interface(fmt.Sprintf("%v", keysAndValues[i]), keysAndValues[i+1])
	}
	event.Msg(msg)
}
