package log

import (
	"log/slog"
	"strings"
)

// Severity is declared bit-flag style but compared as an ordered level.
type Severity int

const (
	SeverityVerbose Severity = 1 << iota
	SeverityInfo
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityVerbose:
		return "Verbose"
	case SeverityInfo:
		return "Info"
	case SeverityWarning:
		return "Warning"
	case SeverityError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Level maps the severity onto slog.
func (s Severity) Level() slog.Level {
	switch {
	case s >= SeverityError:
		return slog.LevelError
	case s >= SeverityWarning:
		return slog.LevelWarn
	case s >= SeverityInfo:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// SeverityFromLevel maps an slog level onto the nearest severity.
func SeverityFromLevel(level slog.Level) Severity {
	switch {
	case level >= slog.LevelError:
		return SeverityError
	case level >= slog.LevelWarn:
		return SeverityWarning
	case level >= slog.LevelInfo:
		return SeverityInfo
	default:
		return SeverityVerbose
	}
}

// ParseSeverity converts a configured level name, defaulting to Info.
func ParseSeverity(level string) Severity {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "VERBOSE", "DEBUG":
		return SeverityVerbose
	case "INFO":
		return SeverityInfo
	case "WARN", "WARNING":
		return SeverityWarning
	case "ERROR":
		return SeverityError
	default:
		return SeverityInfo
	}
}
