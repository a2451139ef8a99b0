package kafka

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Logger routes franz-go client logs into zerolog.
type Logger struct {
	log zerolog.Logger
}

func NewLogger(log zerolog.Logger) *Logger {
	return &Logger{log: log.With().Str("component", "kafka").Logger()}
}

func (l *Logger) Level() kgo.LogLevel {
	switch l.log.GetLevel() {
	case zerolog.TraceLevel, zerolog.DebugLevel:
		return kgo.LogLevelDebug
	case zerolog.InfoLevel:
		return kgo.LogLevelInfo
	case zerolog.WarnLevel:
		return kgo.LogLevelWarn
	case zerolog.Disabled:
		return kgo.LogLevelNone
	}
	return kgo.LogLevelError
}

func (l *Logger) Log(level kgo.LogLevel, msg string, keyvals ...any) {
	var event *zerolog.Event
	switch level {
	case kgo.LogLevelError:
		event = l.log.Error()
	case kgo.LogLevelWarn:
		event = l.log.Warn()
	case kgo.LogLevelInfo:
		event = l.log.Info()
	case kgo.LogLevelDebug:
		event = l.log.Debug()
	default:
		return
	}
	for i := 0; i+1 < len(keyvals); i += 2 {
		event = event.Interface(fmt.Sprint(keyvals[i]), keyvals[i+1])
	}
	event.Msg(msg)
}

var _ kgo.Logger = (*Logger)(nil)
