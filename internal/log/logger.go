package log

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mmcdole/mediacenter/internal/config"
)

// SetupLogger builds the process-wide pipeline: an async file sink under
// logDir and an optional stderr trace sink behind one fan-out. The caller
// owns the returned sink and must Close it on shutdown.
func SetupLogger(cfg *config.LoggingConfig, logDir string) (*slog.Logger, *MultiSink, error) {
	min := ParseSeverity(cfg.Level)

	var children []Sink
	if cfg.Trace {
		children = append(children, NewTraceSink(os.Stderr, min))
	}
	if cfg.File {
		role := cfg.Role
		if role == "" {
			role = RoleCore
		}
		fs, err := NewFileSink(logDir, role, min)
		if err != nil {
			return nil, nil, err
		}
		children = append(children, fs)
	}

	sink := NewMultiSink(children...)
	return slog.New(NewHandler(sink)), sink, nil
}

// NullLogger returns a logger that discards all output
func NullLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Frame is a source location.
type Frame struct {
	Function string
	File     string
	Line     int
}

var unknownFrame = Frame{Function: "unknown", File: "unknown"}

// Located is implemented by errors that know where they were raised.
type Located interface {
	Location() Frame
}

// ReportException logs err at error severity together with a function, file
// and line: the location carried by err when it implements Located, else
// the caller. Go exposes no column; it is reported as 0.
func ReportException(logger *slog.Logger, msg string, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	at := unknownFrame
	var loc Located
	if errors.As(err, &loc) {
		at = loc.Location()
	} else if pc, f, l, ok := runtime.Caller(1); ok {
		at = Frame{Function: "unknown", File: filepath.Base(f), Line: l}
		if fn := runtime.FuncForPC(pc); fn != nil {
			at.Function = fn.Name()
		}
	}
	logger.Error(fmt.Sprintf("%s: %v (at %s in %s:%d:%d)", msg, err, at.Function, at.File, at.Line, 0))
}

// PanicLocation returns the frame that raised the panic being recovered.
// Call it from the deferred function that calls recover.
func PanicLocation() Frame {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	panicking := false
	for {
		f, more := frames.Next()
		switch {
		case f.Function == "runtime.gopanic":
			panicking = true
		case panicking && !strings.HasPrefix(f.Function, "runtime."):
			return Frame{Function: f.Function, File: filepath.Base(f.File), Line: f.Line}
		}
		if !more {
			return unknownFrame
		}
	}
}
