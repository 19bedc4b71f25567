package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/bcgov/wildsync/ago"
	"github.com/bcgov/wildsync/chefs"
	"github.com/bcgov/wildsync/config"
	"github.com/bcgov/wildsync/mailer"
	"github.com/bcgov/wildsync/metric"
	"github.com/bcgov/wildsync/ostore"
	"github.com/bcgov/wildsync/pipeline"
	"github.com/bcgov/wildsync/pipeline/backup"
	"github.com/bcgov/wildsync/pipeline/export"
	"github.com/bcgov/wildsync/pipeline/fieldstatus"
	"github.com/bcgov/wildsync/pipeline/sightings"
	"github.com/bcgov/wildsync/schedule"
)

// App wires the shared clients, the pipeline registry and the runner.
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *pipeline.Registry
	runner   *pipeline.Runner
}

// newApp loads configuration and builds all clients. No network calls are
// made until a pipeline runs.
func newApp(configPath, logLevel string, confirm bool) (*App, error) {
	logger := newLogger(logLevel)
	slog.SetDefault(logger)

	cfg, err := config.NewLoader(logger).Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	agoClient, err := ago.NewClient(ago.Config{
		PortalURL:   cfg.AGO.PortalURL,
		Username:    cfg.AGO.Username,
		Password:    cfg.AGO.Password,
		TokenExpiry: cfg.AGO.TokenExpiry,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create AGO client: %w", err)
	}

	chefsClient, err := chefs.NewClient(chefs.Config{
		BaseURL:    cfg.CHEFS.BaseURL,
		FormID:     cfg.CHEFS.FormID,
		APIKey:     cfg.CHEFS.APIKey,
		VersionIDs: cfg.CHEFS.VersionIDs,
		Fields:     cfg.CHEFS.Fields,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create CHEFS client: %w", err)
	}

	store, err := ostore.New(ostore.Config{
		Host:      cfg.ObjectStore.Host,
		AccessKey: cfg.ObjectStore.AccessKey,
		SecretKey: cfg.ObjectStore.SecretKey,
		Secure:    cfg.ObjectStore.Secure,
		Bucket:    cfg.ObjectStore.Bucket,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}

	mail, err := mailer.New(mailer.Config{
		Mode:         mailer.Mode(cfg.Mail.Mode),
		SMTPHost:     cfg.Mail.SMTPHost,
		AWSAccessKey: cfg.Mail.SES.AccessKey,
		AWSSecretKey: cfg.Mail.SES.SecretKey,
		AWSRegion:    cfg.Mail.SES.Region,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create mailer: %w", err)
	}

	deps := pipeline.Deps{
		AGO:    agoClient,
		CHEFS:  chefsClient,
		Store:  store,
		Mailer: mail,
		Config: cfg,
		Logger: logger,
	}

	registry, err := buildRegistry(deps, confirm)
	if err != nil {
		return nil, err
	}

	recorder := metric.NewRecorder()
	pusher := metric.NewPusher(cfg.Metrics.PushgatewayURL, cfg.Metrics.JobName, recorder, logger)
	runner := pipeline.NewRunner(registry, recorder, pusher, logger)

	return &App{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		runner:   runner,
	}, nil
}

// buildRegistry registers every pipeline. The confirm flag is threaded to
// the restore pipeline, which refuses to truncate live data without it.
func buildRegistry(deps pipeline.Deps, confirm bool) (*pipeline.Registry, error) {
	registry := pipeline.NewRegistry()
	for _, p := range []pipeline.Pipeline{
		sightings.NewSync(deps),
		sightings.NewEditingAppend(deps),
		sightings.NewSimpcwPhotos(deps),
		backup.NewBackup(deps),
		backup.NewRestore(deps, confirm),
		export.NewExport(deps),
		fieldstatus.NewCulvertAdmin(deps),
		fieldstatus.NewCameraCheck(deps),
		fieldstatus.NewHairSnag(deps),
	} {
		if err := registry.Register(p); err != nil {
			return nil, fmt.Errorf("register pipelines: %w", err)
		}
	}
	return registry, nil
}

// emptyDeps builds deps sufficient for listing pipelines without
// credentials.
func emptyDeps() pipeline.Deps {
	return pipeline.Deps{
		Config: config.DefaultConfig(),
		Logger: slog.Default(),
	}
}

func (a *App) runOnce(ctx context.Context, name string) error {
	return a.runner.Run(ctx, name)
}

// runScheduler applies the configured cron entries and blocks until the
// context is cancelled, re-applying the schedule when the config file
// changes.
func (a *App) runScheduler(ctx context.Context, configPath string) error {
	sched := schedule.New(a.registry, a.runner, a.logger)
	if err := sched.Apply(a.cfg.Schedule.Entries); err != nil {
		return err
	}
	if sched.EntryCount() == 0 {
		return fmt.Errorf("no schedule entries configured")
	}

	sched.Start()
	defer sched.Stop()
	a.logger.Info("Scheduler started", "entries", sched.EntryCount())

	if configPath != "" {
		if err := sched.Watch(ctx, configPath); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		a.logger.Info("Received shutdown signal")
		return nil
	}

	<-ctx.Done()
	a.logger.Info("Received shutdown signal")
	return nil
}

func newLogger(logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
