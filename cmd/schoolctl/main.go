// Package main is the schoolctl command line client. It signs in against the school
// management API, keeps the session in the configured credential store and sends
// authenticated requests.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
)

var logLevel *slog.LevelVar = new(slog.LevelVar)

func main() {
	logLevel.Set(slog.LevelWarn)
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr, defaultLoader(os.Stdout, os.Stderr)))
}

func defaultLoader(stdout, stderr io.Writer) appLoader {
	return func() (*app, error) {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		return newApp(cfg, stdout, stderr)
	}
}

// errReported is returned by commands whose failure was already shown by the error observers
var errReported = errors.New("the error was reported")

func run(ctx context.Context, args []string, stdout, stderr io.Writer, load appLoader) int {
	registry := newRegistry(ctx, stdout, stderr, load)
	err := registry.Execute(args)
	if err == nil {
		return 0
	}
	if !errors.Is(err, errReported) {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return 1
}

func newRegistry(ctx context.Context, stdout, stderr io.Writer, load appLoader) *CommandRegistry {
	registry := NewCommandRegistry(stdout, stderr)
	registry.Register(loginCommand(ctx, stderr, load))
	registry.Register(logoutCommand(ctx, stderr, load))
	registry.Register(registerCommand(ctx, stderr, load))
	registry.Register(whoamiCommand(ctx, stderr, load))
	registry.Register(tokenCommand(ctx, stderr, load))
	for _, method := range requestMethods {
		registry.Register(requestCommand(ctx, method, stderr, load))
	}
	registry.Register(refresherCommand(ctx, stderr, load))
	return registry
}
