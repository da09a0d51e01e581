// Package tokenrefresher refreshes the stored access token before it expires.
package tokenrefresher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/schoolhub/schoolctl/internal/apierrors"
	"github.com/schoolhub/schoolctl/internal/config"
	"github.com/schoolhub/schoolctl/internal/models"
)

// SessionRefresher is the part of the API client used by the refresher
type SessionRefresher interface {
	AccessToken(ctx context.Context) (models.AuthToken, error)
	RefreshNow(ctx context.Context) (models.AuthToken, error)
}

type Refresher struct {
	session      SessionRefresher
	interval     time.Duration
	expiryMargin time.Duration
	scheduler    *gocron.Scheduler
}

// RefreshIfExpiring refreshes the access token when it expires within the expiry margin.
// Tokens without a readable expiry are left alone, the client still refreshes them on a 401.
func (r *Refresher) RefreshIfExpiring(ctx context.Context) (bool, error) {
	token, err := r.session.AccessToken(ctx)
	if errors.Is(err, apierrors.ErrNotAuthenticated) {
		slog.Debug("TOKEN REFRESHER", "message", "no session, nothing to refresh")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if token.ExpiresAt.IsZero() {
		slog.Debug("TOKEN REFRESHER", "message", "access token has no known expiry, skipping", "token", token)
		return false, nil
	}
	if !token.ExpiresSoon(r.expiryMargin) {
		slog.Debug("TOKEN REFRESHER", "message", "access token is still valid", "token", token)
		return false, nil
	}
	refreshed, err := r.session.RefreshNow(ctx)
	if err != nil {
		return false, err
	}
	slog.Info("TOKEN REFRESHER", "message", "access token refreshed", "token", refreshed)
	return true, nil
}

func (r *Refresher) run(ctx context.Context) {
	_, err := r.RefreshIfExpiring(ctx)
	if errors.Is(err, apierrors.ErrRefreshFailed) {
		slog.Error("TOKEN REFRESHER", "message", "the session ended, a new login is required", "error", err)
		return
	}
	if err != nil {
		slog.Error("TOKEN REFRESHER", "message", "refreshing the access token failed", "error", err)
	}
}

// Start schedules the check every interval until the context is cancelled or Stop is called.
// The first check runs immediately.
func (r *Refresher) Start(ctx context.Context) error {
	job, err := r.scheduler.Every(r.interval).SingletonMode().Do(r.run, ctx)
	if err != nil {
		slog.Error("TOKEN REFRESHER", "message", "starting gocron job failed", "error", err)
		return err
	}
	slog.Info("TOKEN REFRESHER", "message", "job starting", "interval", r.interval, "expiryMargin", r.expiryMargin, "job", job.GetName())
	r.scheduler.StartAsync()
	go func() {
		<-ctx.Done()
		r.Stop()
	}()
	return nil
}

func (r *Refresher) Stop() {
	if r.scheduler.IsRunning() {
		r.scheduler.Stop()
	}
}

type RefresherOption func(*Refresher) error

func WithConfig(refresherConfig config.RefresherConfig) RefresherOption {
	return func(r *Refresher) error {
		r.interval = refresherConfig.Interval()
		r.expiryMargin = refresherConfig.ExpiryMargin()
		return nil
	}
}

func WithSession(session SessionRefresher) RefresherOption {
	return func(r *Refresher) error {
		r.session = session
		return nil
	}
}

func WithInterval(interval time.Duration) RefresherOption {
	return func(r *Refresher) error {
		r.interval = interval
		return nil
	}
}

func WithExpiryMargin(margin time.Duration) RefresherOption {
	return func(r *Refresher) error {
		r.expiryMargin = margin
		return nil
	}
}

func NewRefresher(options ...RefresherOption) (*Refresher, error) {
	r := &Refresher{
		interval:     time.Minute,
		expiryMargin: 2 * time.Minute,
		scheduler:    gocron.NewScheduler(time.UTC),
	}
	for _, opt := range options {
		err := opt(r)
		if err != nil {
			return nil, err
		}
	}
	if r.session == nil {
		return nil, fmt.Errorf("the session to refresh is not set")
	}
	if r.interval <= 0 {
		return nil, fmt.Errorf("invalid refresh interval %v", r.interval)
	}
	if r.expiryMargin <= 0 {
		return nil, fmt.Errorf("invalid expiry margin %v", r.expiryMargin)
	}
	return r, nil
}
