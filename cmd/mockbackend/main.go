// Package main runs the development backend that stands in for the school management API
// during local development and end to end tests.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/schoolhub/schoolctl/internal/config"
	"github.com/schoolhub/schoolctl/internal/mockbackend"
	"golang.org/x/time/rate"
)

type userFlags []mockbackend.NewUser

func (u *userFlags) String() string {
	names := []string{}
	for _, user := range *u {
		names = append(names, user.Username)
	}
	return strings.Join(names, ",")
}

// Set parses username:password:schoolCode[:role]
func (u *userFlags) Set(value string) error {
	parts := strings.Split(value, ":")
	if len(parts) < 3 || len(parts) > 4 {
		return fmt.Errorf("expected username:password:schoolCode[:role], got %q", value)
	}
	user := mockbackend.NewUser{Username: parts[0], Password: parts[1], SchoolCode: parts[2]}
	if len(parts) == 4 {
		user.Role = parts[3]
	}
	*u = append(*u, user)
	return nil
}

var defaultUser mockbackend.NewUser = mockbackend.NewUser{
	Username:   "admin",
	Password:   "admin-password",
	FirstName:  "School",
	LastName:   "Admin",
	Role:       "admin",
	SchoolCode: "DEMO",
}

func main() {
	// Logging setup
	slog.SetDefault(jsonLogger)
	var users userFlags
	flag.Var(&users, "user", "seed a user as username:password:schoolCode[:role], can be repeated")
	flag.Parse()
	// Load configuration
	ch := config.NewConfigHandler()
	cfg, err := ch.Config()
	if err != nil {
		slog.Error("loading the configuration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("loaded config", "config", cfg.MockBackend)
	err = cfg.MockBackend.Validate()
	if err != nil {
		slog.Error("the config validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.DebugMode {
		logLevel.Set(slog.LevelDebug)
	}
	if len(users) == 0 {
		slog.Info("no users given, seeding the default account", "username", defaultUser.Username, "schoolCode", defaultUser.SchoolCode)
		users = append(users, defaultUser)
	}
	backend, err := mockbackend.NewServer(
		mockbackend.WithConfig(cfg.MockBackend),
		mockbackend.WithTenantHeader(cfg.Client.TenantHeader),
		mockbackend.WithUsers(users...),
	)
	if err != nil {
		slog.Error("mock backend initialization failed", "error", err)
		os.Exit(1)
	}
	// Setup
	e := echo.New()
	e.Pre(middleware.RequestID())
	e.Use(middleware.Recover())
	e.HideBanner = true
	e.HidePort = true
	e.GET("/health", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	if cfg.Client.RateLimits.Enabled {
		e.Use(middleware.RateLimiter(
			middleware.NewRateLimiterMemoryStoreWithConfig(
				middleware.RateLimiterMemoryStoreConfig{
					Rate:      rate.Limit(cfg.Client.RateLimits.Rate),
					Burst:     cfg.Client.RateLimits.Burst,
					ExpiresIn: 3 * time.Minute,
				}),
		))
	}
	// Sentry
	if cfg.Monitoring.Sentry.Enabled {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              string(cfg.Monitoring.Sentry.Dsn),
			TracesSampleRate: cfg.Monitoring.Sentry.SampleRate,
			Environment:      cfg.Monitoring.Sentry.Environment,
		})
		if err != nil {
			slog.Error("sentry initialization failed", "error", err)
		}
		e.Use(sentryecho.New(sentryecho.Options{}))
	}
	// Prometheus
	if cfg.Monitoring.Prometheus.Enabled {
		e.Use(echoprometheus.NewMiddleware("mockbackend"))
		go func() {
			metrics := echo.New()
			metrics.HideBanner = true
			metrics.HidePort = true
			metrics.GET("/metrics", echoprometheus.NewHandler())
			err := metrics.Start(fmt.Sprintf(":%d", cfg.Monitoring.Prometheus.Port))
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("prometheus server failed to start", "error", err)
				os.Exit(1)
			}
		}()
	}
	backend.RegisterHandlers(e, requestLogger(jsonLogger, cfg.Client.TenantHeader))
	// Start server
	address := fmt.Sprintf("%s:%d", cfg.MockBackend.Host, cfg.MockBackend.Port)
	slog.Info("starting the mock backend on address " + address)
	go func() {
		err := e.Start(address)
		if err != nil && err != http.ErrServerClosed {
			slog.Error("starting the server failed", "error", err)
			os.Exit(1)
		}
	}()
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	slog.Info("received signal to shut down the server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		slog.Error("shutting down the server gracefully failed", "error", err)
		os.Exit(1)
	}
}
