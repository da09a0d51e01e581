package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/schoolhub/schoolctl/internal/config"
	"github.com/schoolhub/schoolctl/internal/tokenrefresher"
)

// metricsServer exposes the client counters, it is stopped with the returned function
func metricsServer(port int) func() {
	metrics := echo.New()
	metrics.HideBanner = true
	metrics.HidePort = true
	metrics.GET("/metrics", echoprometheus.NewHandler())
	metrics.GET("/health", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	go func() {
		err := metrics.Start(fmt.Sprintf(":%d", port))
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("prometheus server failed to start", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metrics.Shutdown(ctx); err != nil {
			slog.Error("shutting down the prometheus server failed", "error", err)
		}
	}
}

func refresherCommand(ctx context.Context, stderr io.Writer, load appLoader) *Command {
	cmd := &Command{
		Name:        "refresher",
		Description: "Keep the session alive by refreshing the access token before it expires",
		Usage:       "schoolctl refresher [-interval 60s] [-margin 2m]",
		Examples:    []string{"schoolctl refresher", "schoolctl refresher -interval 30s -margin 90s"},
	}
	cmd.Run = func(args []string) error {
		fs := cmd.NewFlagSet(stderr)
		interval := fs.Duration("interval", 0, "how often the token is checked (default from the configuration)")
		margin := fs.Duration("margin", 0, "refresh when the token expires within this margin (default from the configuration)")
		if err := fs.Parse(args); err != nil {
			return err
		}
		a, err := load()
		if err != nil {
			return err
		}
		defer a.Close()
		options := []tokenrefresher.RefresherOption{
			tokenrefresher.WithConfig(a.config.Refresher),
			tokenrefresher.WithSession(a.client),
		}
		if *interval > 0 {
			options = append(options, tokenrefresher.WithInterval(*interval))
		}
		if *margin > 0 {
			options = append(options, tokenrefresher.WithExpiryMargin(*margin))
		}
		refresher, err := tokenrefresher.NewRefresher(options...)
		if err != nil {
			return err
		}
		if a.config.Monitoring.Prometheus.Enabled {
			stopMetrics := metricsServer(a.config.Monitoring.Prometheus.Port)
			defer stopMetrics()
		}
		ch := config.NewConfigHandler()
		ch.HandleChanges(func(c config.Config, err error) {
			if err != nil {
				slog.Error("reloading the configuration failed", "error", err)
				return
			}
			level := slog.LevelWarn
			if c.DebugMode {
				level = slog.LevelDebug
			}
			logLevel.Set(level)
			slog.Info("log level updated", "level", level)
		})
		if _, err := ch.Config(); err == nil {
			ch.Watch()
		}
		err = refresher.Start(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(stderr, "Refreshing the session in the background, press Ctrl+C to stop.")
		<-ctx.Done()
		refresher.Stop()
		return nil
	}
	return cmd
}
