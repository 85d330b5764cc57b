package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/chainguard-dev/clog"
	charmlog "github.com/charmbracelet/log"
	slogmulti "github.com/samber/slog-multi"

	"github.com/hopcli/hop/internal/cli"
	"github.com/hopcli/hop/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "hop:", err)
		os.Exit(127)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	ctx = setupLog(ctx, cfg.Debug)

	os.Exit(cli.Execute(ctx, cfg))
}

// setupLog sets up the default logging configuration. Everything goes to
// stderr; stdout is reserved for structured command output.
func setupLog(ctx context.Context, debug bool) context.Context {
	level := charmlog.InfoLevel
	if debug {
		level = charmlog.DebugLevel
	}
	handler := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		Level:           level,
		ReportTimestamp: false,
	})
	logger := clog.New(slogmulti.Fanout(handler))
	ctx = clog.WithLogger(ctx, logger)
	slog.SetDefault(&logger.Logger)
	return ctx
}
