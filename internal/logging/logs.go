// Package logging configures the process logger and exposes the printf-style
// facade used across the transport (imported as logs).
package logging

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Tracef(format string, args ...any) { emit(log.Trace(), format, args...) }

func Debugf(format string, args ...any) { emit(log.Debug(), format, args...) }

func Infof(format string, args ...any) { emit(log.Info(), format, args...) }

func Warnf(format string, args ...any) { emit(log.Warn(), format, args...) }

func Errf(format string, args ...any) { emit(log.Error(), format, args...) }

// Logf writes narration lines at info level.
func Logf(format string, args ...any) { emit(log.Info(), format, args...) }

// With returns a child logger carrying the supplied key/value string pairs.
func With(kv ...string) zerolog.Logger {
	ctx := log.Logger.With()
	for i := 0; i+1 < len(kv); i += 2 {
		ctx = ctx.Str(kv[i], kv[i+1])
	}
	return ctx.Logger()
}

func emit(ev *zerolog.Event, format string, args ...any) {
	if ev == nil {
		return
	}
	if len(args) == 0 {
		ev.Msg(format)
		return
	}
	ev.Msg(fmt.Sprintf(format, args...))
}
