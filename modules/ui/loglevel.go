package ui

import (
	"fmt"
	"strings"
)

func (l LogLevel) String() string {
	switch l {
	case LevelTrace:
		return "Trace"
	case LevelDebug:
		return "Debug"
	case LevelInfo:
		return "Info"
	case LevelWarn:
		return "Warn"
	case LevelError:
		return "Error"
	case LevelFatal:
		return "Fatal"
	}
	return fmt.Sprintf("LogLevel(%d)", int(l))
}

// LogLevelString maps a name to a LogLevel, ignoring case.
func LogLevelString(s string) (LogLevel, error) {
	switch strings.ToLower(s) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "fatal":
		return LevelFatal, nil
	}
	return LevelInfo, fmt.Errorf("%s does not belong to LogLevel values", s)
}

func LogLevelStrings() []string {
	return []string{"trace", "debug", "info", "warn", "error", "fatal"}
}
