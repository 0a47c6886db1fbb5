// maintenance is the terminal client for the facility maintenance
// service. Faculty submit and follow service requests; utility workers
// work through assigned requests and preventive maintenance.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/99designs/keyring"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/nhle/facility-maintenance/internal/api"
	"github.com/nhle/facility-maintenance/internal/app"
	"github.com/nhle/facility-maintenance/internal/credential"
	"github.com/nhle/facility-maintenance/internal/model"
	"github.com/nhle/facility-maintenance/internal/notify"
	"github.com/nhle/facility-maintenance/internal/session"
	"github.com/nhle/facility-maintenance/internal/store"
	"github.com/nhle/facility-maintenance/internal/transport"
	"github.com/nhle/facility-maintenance/internal/workflow"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath, envFile, logFile string

	flagSet := pflag.NewFlagSet("maintenance", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", model.DefaultConfigPath(), "path to the YAML configuration file")
	flagSet.StringVar(&envFile, "env-file", ".env", "optional file of API_URL / PROJECT_ID overrides")
	flagSet.StringVar(&logFile, "log-file", "", "write logs to this file (default from config)")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	if err := model.LoadEnvFile(envFile); err != nil {
		return err
	}
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.API.BaseURL == "" {
		return fmt.Errorf("no API URL configured: set api.base_url in %s or API_URL", configPath)
	}
	if logFile != "" {
		cfg.Log.File = logFile
	}

	log, closeLog, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()

	dataDir := filepath.Dir(configPath)
	credStore := openCredentials(dataDir, credential.Open, log)

	if err := os.MkdirAll(filepath.Dir(cfg.Cache.Path), 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	cache, err := store.NewSQLiteStore(cfg.Cache.Path)
	if err != nil {
		return err
	}
	defer cache.Close()

	// The transport reads the credential on every call, so it is built
	// before the manager that owns it.
	var mgr *session.Manager
	tc := transport.NewClient(
		cfg.API.BaseURL,
		transport.CredentialFunc(func() string { return mgr.Credential() }),
		transport.WithTimeout(time.Duration(cfg.API.TimeoutSec)*time.Second),
		transport.WithRateLimit(cfg.API.RateLimitPerSec),
		transport.WithLogger(log),
	)
	client := api.New(tc)
	mgr = session.NewManager(credStore, client, log)

	ctx := context.Background()
	s := mgr.Hydrate(ctx)
	log.WithField("signed_in", !s.Empty()).Info("starting")

	svc := app.Services{
		Session:  mgr,
		Workflow: workflow.New(client, cache, mgr, log),
		API:      client,
		Notify: notify.NewProvider(
			notify.NewDevicePlatform(cfg.Notifications.Enabled),
			cfg.Notifications.ProjectID,
			log,
		),
		Cache:      cache,
		Config:     cfg,
		ConfigPath: configPath,
		Log:        log,
	}

	program := tea.NewProgram(app.New(svc), tea.WithAltScreen())
	_, err = program.Run()
	return err
}

// openCredentials falls back to an in-memory keyring when no durable
// backend opens. The client then starts signed out and forgets the
// session on exit.
func openCredentials(
	dir string,
	open func(string) (*credential.Store, error),
	log logrus.FieldLogger,
) *credential.Store {
	s, err := open(dir)
	if err == nil {
		return s
	}
	log.WithError(err).Warn("credential store unavailable, session will not persist")
	return credential.New(keyring.NewArrayKeyring(nil))
}

// newLogger writes to the configured file; the terminal belongs to the UI.
func newLogger(cfg model.LogConfig) (*logrus.Logger, func(), error) {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.File == "" {
		log.SetOutput(io.Discard)
		return log, func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	log.SetOutput(f)
	return log, func() { f.Close() }, nil
}
