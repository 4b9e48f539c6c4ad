package engine

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
)

// slogLevel maps an engine level onto the closest slog level.
func (l LogLevel) slogLevel() slog.Level {
	switch {
	case l >= LogError:
		return slog.LevelError
	case l >= LogWarning:
		return slog.LevelWarn
	case l >= LogInfo:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// logLocked emits a log message for in. Caller must hold l.mu.
func (l *Local) logLocked(in *instance, level LogLevel, format string, args ...any) {
	l.emitLocked(in, level, fmt.Sprintf(format, args...))
}

// logf is logLocked for callers that do not hold l.mu.
func (l *Local) logf(inst InstanceHandle, level LogLevel, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.emitLocked(l.instances[inst], level, fmt.Sprintf(format, args...))
}

// emitLocked pushes the message to matching logger pollers of in and
// mirrors it to slog. The reported location is the caller of logLocked
// or logf.
func (l *Local) emitLocked(in *instance, level LogLevel, msg string) {
	_, file, line, _ := runtime.Caller(2)
	file = filepath.Base(file)

	var inst InstanceHandle
	if in != nil {
		inst = in.handle
		for _, lh := range in.listeners[catLogger] {
			ls := l.listeners[lh]
			if level < ls.minLevel || level > ls.maxLevel {
				continue
			}
			if p := l.pollers[ls.poller]; p != nil {
				p.logs.Push(LogMessage{Logger: lh, Level: level, Filename: file, Line: line, Message: msg})
			}
		}
	}

	l.logger.Log(context.Background(), level.slogLevel(), msg,
		"instance", inst,
		"source", fmt.Sprintf("%s:%d", file, line),
	)
}
