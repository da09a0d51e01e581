package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/schoolhub/schoolctl/internal/apiclient"
	"github.com/schoolhub/schoolctl/internal/config"
	"github.com/schoolhub/schoolctl/internal/credentials"
	"github.com/schoolhub/schoolctl/internal/notify"
)

// app holds everything the commands share, it is built once the configuration is known
type app struct {
	config   config.Config
	store    credentials.Store
	client   *apiclient.Client
	recorder *notify.Recorder
	stdout   io.Writer
	stderr   io.Writer
	cleanup  []func()
}

func (a *app) Close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
}

type appLoader func() (*app, error)

func loadConfig() (config.Config, error) {
	ch := config.NewConfigHandler()
	cfg, err := ch.Config()
	if err != nil {
		return config.Config{}, fmt.Errorf("loading the configuration failed: %w", err)
	}
	return cfg, nil
}

func newApp(cfg config.Config, stdout, stderr io.Writer) (*app, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("the config validation failed: %w", err)
	}
	if cfg.DebugMode {
		logLevel.Set(slog.LevelDebug)
	}
	slog.Debug("loaded config", "config", cfg)
	a := &app{config: cfg, recorder: &notify.Recorder{}, stdout: stdout, stderr: stderr}
	store, err := credentials.NewStoreFromConfig(cfg.Credentials, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("credential store initialization failed: %w", err)
	}
	a.store = store
	// the "toasts" of the CLI go to stderr as plain text lines
	toasts := notify.NewLogObserver(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			if attr.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return attr
		},
	})))
	observers := notify.Multi{toasts, a.recorder}
	if cfg.Monitoring.Sentry.Enabled {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              string(cfg.Monitoring.Sentry.Dsn),
			TracesSampleRate: cfg.Monitoring.Sentry.SampleRate,
			Environment:      cfg.Monitoring.Sentry.Environment,
		})
		if err != nil {
			slog.Error("sentry initialization failed", "error", err)
		} else {
			observers = append(observers, notify.NewSentryObserver())
			a.cleanup = append(a.cleanup, func() { sentry.Flush(2 * time.Second) })
		}
	}
	client, err := apiclient.NewClient(
		apiclient.WithConfig(cfg.Client),
		apiclient.WithCredentialStore(store),
		apiclient.WithErrorObserver(observers),
		apiclient.WithLoginRedirector(apiclient.LoginRedirectorFunc(func(ctx context.Context, route string) {
			fmt.Fprintf(stderr, "Your session ended, run `schoolctl login` to sign in again (%s).\n", route)
		})),
	)
	if err != nil {
		return nil, fmt.Errorf("API client initialization failed: %w", err)
	}
	a.client = client
	return a, nil
}

// reported tells whether the observers already showed the failure to the user
func (a *app) reported() bool {
	return a.recorder.Len() > 0
}
