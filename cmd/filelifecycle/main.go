package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/agilenature/filelifecycle/internal/app"
	"github.com/agilenature/filelifecycle/internal/domain/errkind"
	"github.com/agilenature/filelifecycle/internal/infra/config"
	fsinfra "github.com/agilenature/filelifecycle/internal/infra/fs"
	"github.com/agilenature/filelifecycle/internal/infrastructure/di"
	"github.com/agilenature/filelifecycle/internal/interface/cli"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "filelifecycle: %v\n", err)
		if errors.Is(err, errkind.ErrConfig) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// run wires the engine and executes the requested subcommand. Every
// failure up through the container build is an engine-level setup
// failure — DB unreachable, no API credentials, home dir not writable —
// and is wrapped with errkind.ErrConfig so main can exit 2 for it, per
// the documented exit-code contract; only failures inside an individual
// subcommand's own RunE take the generic exit 1 (or the subcommand's own
// exit code, e.g. verify-stability's).
func run() error {
	cfg, err := config.LoadSettings(".")
	if err != nil {
		return fmt.Errorf("load settings: %w", errkind.Config(err))
	}

	if err := di.EnsureHomeDir(cfg.Home()); err != nil {
		return fmt.Errorf("ensure home dir: %w", errkind.Config(err))
	}

	lock, err := fsinfra.AcquireDBLock(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("acquire db lock: %w", errkind.Config(err))
	}
	defer lock.Release()

	logger := app.GetLogger()
	ctx := context.Background()

	container, err := di.NewS3Container(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build container: %w", errkind.Config(err))
	}
	defer container.Close()

	// The recovery crawler runs once on every engine startup, resuming any
	// write-ahead reset intent a prior crash left behind, before any
	// subcommand (including a plain upload batch) touches the database.
	if _, err := container.Crawler.Run(ctx); err != nil {
		return fmt.Errorf("startup recovery: %w", errkind.Config(err))
	}

	return cli.NewRoot(container).Execute()
}
