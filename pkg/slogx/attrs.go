package slogx

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Error returns a slog.Attr representing the provided error.
// The attribute key is "error" and the value is the error's message.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

// Stringer creates a slog.Attr with the provided key and the string representation
// of the given fmt.Stringer value.
func Stringer(key string, value fmt.Stringer) slog.Attr {
	return slog.String(key, value.String())
}

// ID renders an identifier under the given key.
func ID(key string, id uuid.UUID) slog.Attr {
	return slog.String(key, id.String())
}

// EventID renders an event identifier under the conventional "event_id" key.
func EventID(id uuid.UUID) slog.Attr {
	return ID("event_id", id)
}

// Duration renders d in milliseconds under key with an "_ms" suffix.
func Duration(key string, d time.Duration) slog.Attr {
	return slog.Int64(key+"_ms", d.Milliseconds())
}

const (
	// KeyLoggerName is the key for the logger name attribute.
	KeyLoggerName = "logger"
)

// LoggerName creates a slog.Attr with the provided logger name.
// The attribute key is defined by KeyLoggerName.
func LoggerName(name string) slog.Attr {
	return slog.String(KeyLoggerName, name)
}

// Named returns slog.Default() tagged with the given logger name, or logger
// itself when it is not nil.
func Named(logger *slog.Logger, name string) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default().With(LoggerName(name))
}
