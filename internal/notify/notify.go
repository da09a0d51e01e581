// Package notify contains the observers that present or report errors from the API client.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/schoolhub/schoolctl/internal/apiclient"
)

// LogObserver shows every error as a structured log line, the CLI equivalent of a toast
type LogObserver struct {
	logger *slog.Logger
}

func (l LogObserver) OnError(n apiclient.NormalizedError) {
	attrs := []any{"kind", n.Kind, "severity", n.Severity}
	if n.Status != 0 {
		attrs = append(attrs, "status", n.Status)
	}
	if n.Method != "" {
		attrs = append(attrs, "method", n.Method, "url", n.URL)
	}
	l.logger.Log(context.Background(), severityLevel(n.Severity), n.Message, attrs...)
}

func severityLevel(severity apiclient.Severity) slog.Level {
	switch severity {
	case apiclient.SeverityInfo:
		return slog.LevelInfo
	case apiclient.SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// NewLogObserver uses the default slog logger when logger is nil
func NewLogObserver(logger *slog.Logger) LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return LogObserver{logger: logger}
}

// Multi forwards every error to all of its observers in order
type Multi []apiclient.ErrorObserver

func (m Multi) OnError(n apiclient.NormalizedError) {
	for _, observer := range m {
		if observer != nil {
			observer.OnError(n)
		}
	}
}

// Recorder keeps every error it observes, it is safe for concurrent use
type Recorder struct {
	lock   sync.Mutex
	errors []apiclient.NormalizedError
}

func (r *Recorder) OnError(n apiclient.NormalizedError) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.errors = append(r.errors, n)
}

func (r *Recorder) Errors() []apiclient.NormalizedError {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]apiclient.NormalizedError{}, r.errors...)
}

func (r *Recorder) Len() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return len(r.errors)
}

// Last returns the most recent error and false when nothing was recorded
func (r *Recorder) Last() (apiclient.NormalizedError, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if len(r.errors) == 0 {
		return apiclient.NormalizedError{}, false
	}
	return r.errors[len(r.errors)-1], true
}

func (r *Recorder) Reset() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.errors = nil
}
