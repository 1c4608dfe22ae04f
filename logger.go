package auth

import (
	"fmt"

	"github.com/rs/zerolog"
)

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

// ZerologAdapter bridges a zerolog.Logger into the package Logger
// interface. Messages are a string followed by alternating key/value
// pairs.
type ZerologAdapter struct {
	lg zerolog.Logger
}

// NewZerologAdapter wraps lg for use as a Logger.
func NewZerologAdapter(lg zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{lg: lg}
}

func (z *ZerologAdapter) Debug(msg string, args ...any) { z.emit(z.lg.Debug(), msg, args) }
func (z *ZerologAdapter) Info(msg string, args ...any)  { z.emit(z.lg.Info(), msg, args) }
func (z *ZerologAdapter) Warn(msg string, args ...any)  { z.emit(z.lg.Warn(), msg, args) }
func (z *ZerologAdapter) Error(msg string, args ...any) { z.emit(z.lg.Error(), msg, args) }

func (z *ZerologAdapter) emit(ev *zerolog.Event, msg string, args []any) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		ev = ev.Interface(key, args[i+1])
	}
	if len(args)%2 != 0 {
		ev = ev.Interface("arg", args[len(args)-1])
	}
	ev.Msg(msg)
}
