package queue

import (
	"context"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
)

// slogAdapter routes franz-go client logs into slog.
type slogAdapter struct {
	level kgo.LogLevel
}

var _ kgo.Logger = slogAdapter{}

func (a slogAdapter) Level() kgo.LogLevel {
	return a.level
}

func (a slogAdapter) Log(level kgo.LogLevel, msg string, keyvals ...any) {
	slog.Log(context.Background(), toSlogLevel(level), "[Queue] "+msg, keyvals...)
}

func toSlogLevel(level kgo.LogLevel) slog.Level {
	switch level {
	case kgo.LogLevelError:
		return slog.LevelError
	case kgo.LogLevelWarn:
		return slog.LevelWarn
	case kgo.LogLevelDebug:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
