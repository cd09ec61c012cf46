// Package di wires the engine's dependencies in order: database,
// repositories, remote client, then the three use-case layers
// (orchestrator, recovery crawler, verifier). No framework, same manual
// pattern as the teacher's Container.
package di

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/time/rate"

	"github.com/agilenature/filelifecycle/internal/app"
	appconfig "github.com/agilenature/filelifecycle/internal/app/config"
	"github.com/agilenature/filelifecycle/internal/application/orchestrator"
	"github.com/agilenature/filelifecycle/internal/application/recovery"
	"github.com/agilenature/filelifecycle/internal/domain/filerecord"
	"github.com/agilenature/filelifecycle/internal/infrastructure/persistence/sqlite"
	"github.com/agilenature/filelifecycle/internal/infrastructure/remote"
	"github.com/agilenature/filelifecycle/internal/verifier"
	"github.com/spf13/afero"
)

// Container holds every wired dependency the CLI commands need. Commands
// receive it fully built; none of them open a DB connection or construct
// a remote client themselves.
type Container struct {
	Config appconfig.Config
	Logger app.Logger

	db *sql.DB

	Files       *sqlite.FileRepository
	Transitions *sqlite.TransitionRepository

	RemoteSDK    remote.SDK
	RemoteClient *remote.Client

	FS afero.Afero

	Orchestrator *orchestrator.Orchestrator
	Crawler      *recovery.Crawler
	Verifier     *verifier.Verifier
}

// NewContainer opens the database, runs migrations, and wires every
// layer in dependency order: persistence, remote, application.
func NewContainer(cfg appconfig.Config, logger app.Logger, sdk remote.SDK) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger}

	db, err := sqlite.Open(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("di: open db: %w", err)
	}
	c.db = db

	if err := sqlite.NewMigrator(db).Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("di: migrate: %w", err)
	}

	c.Files = sqlite.NewFileRepository(db)
	c.Transitions = sqlite.NewTransitionRepository(db, filerecord.SystemClock{})

	limiter := rate.NewLimiter(rate.Limit(cfg.RemoteRateLimitRPS()), 1)
	c.RemoteSDK = sdk
	c.RemoteClient = remote.NewClient(sdk, limiter, remote.DefaultRetryPolicy())

	c.FS = afero.Afero{Fs: afero.NewOsFs()}

	c.Orchestrator = &orchestrator.Orchestrator{
		Transitions: c.Transitions,
		Files:       c.Files,
		Remote:      c.RemoteClient,
		FS:          c.FS,
		Logger:      logger,
	}
	c.Crawler = &recovery.Crawler{
		Transitions: c.Transitions,
		Files:       c.Files,
		Remote:      c.RemoteClient,
		Logger:      logger,
	}
	c.Verifier = &verifier.Verifier{
		Files:  c.Files,
		Remote: c.RemoteClient,
	}

	return c, nil
}

// NewS3Container builds a Container backed by a real S3 SDK, the
// production path. Test code builds a Container directly with
// remote.NewFakeSDK() instead of going through this constructor.
func NewS3Container(ctx context.Context, cfg appconfig.Config, logger app.Logger) (*Container, error) {
	s3cfg := remote.S3Config{
		Bucket:      cfg.RemoteBucket(),
		Region:      cfg.RemoteRegion(),
		Endpoint:    cfg.RemoteEndpoint(),
		RawPrefix:   cfg.RemoteRawPrefix(),
		StorePrefix: cfg.RemoteStorePrefix(),
	}
	sdk, err := remote.NewS3SDK(ctx, s3cfg)
	if err != nil {
		return nil, fmt.Errorf("di: new s3 sdk: %w", err)
	}
	return NewContainer(cfg, logger, sdk)
}

// RawDB exposes the underlying connection for the migrate command's
// diagnostic use; no other caller should need it.
func (c *Container) RawDB() *sql.DB {
	return c.db
}

// Close releases the database handle. The DB-path lock is acquired and
// released by cmd/filelifecycle, outside the container's lifecycle,
// since it must be held before the container is even constructed.
func (c *Container) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// EnsureHomeDir creates the engine's home directory if absent, mirroring
// the teacher's defensive mkdir-before-open pattern.
func EnsureHomeDir(home string) error {
	if home == "" {
		return nil
	}
	return os.MkdirAll(home, 0o755)
}
