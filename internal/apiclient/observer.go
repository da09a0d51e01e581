package apiclient

import "context"

// ErrorObserver is told about every failed call that should be shown to the user.
// The client itself never presents anything.
type ErrorObserver interface {
	OnError(NormalizedError)
}

type ErrorObserverFunc func(NormalizedError)

func (f ErrorObserverFunc) OnError(n NormalizedError) {
	f(n)
}

// LoginRedirector sends the user back to the login entry point once the session cannot
// be recovered. Credentials are already cleared when it is called.
type LoginRedirector interface {
	RedirectToLogin(ctx context.Context, route string)
}

type LoginRedirectorFunc func(ctx context.Context, route string)

func (f LoginRedirectorFunc) RedirectToLogin(ctx context.Context, route string) {
	f(ctx, route)
}

type noopRedirector struct{}

func (noopRedirector) RedirectToLogin(context.Context, string) {}
