package notify

import (
	"errors"
	"strconv"

	"github.com/getsentry/sentry-go"
	"github.com/schoolhub/schoolctl/internal/apiclient"
)

// DefaultSentryKinds are the failures worth reporting, the rest are caused by the user
var DefaultSentryKinds []apiclient.ErrorKind = []apiclient.ErrorKind{
	apiclient.KindServerError,
	apiclient.KindNoResponse,
}

// SentryObserver reports selected kinds of errors to Sentry
type SentryObserver struct {
	hub   *sentry.Hub
	kinds map[apiclient.ErrorKind]bool
}

func (s *SentryObserver) OnError(n apiclient.NormalizedError) {
	if !s.kinds[n.Kind] {
		return
	}
	s.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentryLevel(n.Severity))
		scope.SetTag("kind", string(n.Kind))
		if n.Status != 0 {
			scope.SetTag("status", strconv.Itoa(n.Status))
		}
		scope.SetContext("request", sentry.Context{
			"method": n.Method,
			"url":    n.URL,
		})
		err := n.Err
		if err == nil {
			err = errors.New(n.Message)
		}
		s.hub.CaptureException(err)
	})
}

func sentryLevel(severity apiclient.Severity) sentry.Level {
	switch severity {
	case apiclient.SeverityInfo:
		return sentry.LevelInfo
	case apiclient.SeverityWarning:
		return sentry.LevelWarning
	default:
		return sentry.LevelError
	}
}

type SentryObserverOption func(*SentryObserver)

// WithHub replaces the current hub, used in tests
func WithHub(hub *sentry.Hub) SentryObserverOption {
	return func(s *SentryObserver) {
		s.hub = hub
	}
}

func WithKinds(kinds ...apiclient.ErrorKind) SentryObserverOption {
	return func(s *SentryObserver) {
		s.kinds = map[apiclient.ErrorKind]bool{}
		for _, kind := range kinds {
			s.kinds[kind] = true
		}
	}
}

// NewSentryObserver reports to the hub set up by sentry.Init unless another hub is given
func NewSentryObserver(options ...SentryObserverOption) *SentryObserver {
	s := &SentryObserver{hub: sentry.CurrentHub()}
	WithKinds(DefaultSentryKinds...)(s)
	for _, opt := range options {
		opt(s)
	}
	return s
}
