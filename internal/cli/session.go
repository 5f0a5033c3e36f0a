package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/rescale/record-files/internal/api"
	"github.com/rescale/record-files/internal/config"
	"github.com/rescale/record-files/internal/events"
	"github.com/rescale/record-files/internal/logging"
	"github.com/rescale/record-files/internal/navigation"
	"github.com/rescale/record-files/internal/notify"
	"github.com/rescale/record-files/internal/state"
)

// loadConfig merges the config file, .env, environment and flags, in that
// order, and applies the logging settings the flags left open.
func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg.MergeEnv()
	cfg.MergeWithFlags(apiToken, apiBaseURL, proxyMode, proxyHost, proxyPort)
	if recordID != "" {
		cfg.View.RecordID = recordID
	}
	if objectAPIName != "" {
		cfg.View.ObjectAPIName = objectAPIName
	}
	if noNotify {
		cfg.NotificationsEnabled = false
	}

	if logLevel == "" && !verbose {
		logging.SetLevelFromString(cfg.Log.Level)
	}
	if logFile == "" && cfg.Log.File != "" {
		if err := GetLogger().EnableFile(cfg.Log.File); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// session wires one record's file manager to the gateway.
type session struct {
	cfg       *config.Config
	logger    *logging.Logger
	bus       *events.EventBus
	client    *api.Client
	notifier  *notify.Notifier
	navigator *navigation.BusNavigator
	fm        *state.FileManager
}

// openSession loads configuration, creates the gateway client and activates
// the file manager, which loads the file list.
func openSession(ctx context.Context) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return newSession(ctx, cfg, GetLogger())
}

func newSession(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*session, error) {
	client, err := api.NewClient(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway client: %w", err)
	}

	bus := events.NewEventBus(0)
	notifier := notify.NewNotifier(&notify.Config{
		Enabled:              cfg.NotificationsEnabled,
		ShowDownloadComplete: true,
		ShowFailures:         true,
	}, bus, logger)
	navigator := navigation.NewBusNavigator(bus, cfg.APIBaseURL)

	fm := state.NewFileManager(client, bus, state.Options{
		Navigator: navigator,
		Notifier:  notifier,
		Logger:    logger,
	})

	s := &session{
		cfg:       cfg,
		logger:    logger,
		bus:       bus,
		client:    client,
		notifier:  notifier,
		navigator: navigator,
		fm:        fm,
	}
	if err := fm.Activate(ctx, cfg.View); err != nil {
		s.Close()
		return nil, userError(err)
	}
	return s, nil
}

// Close deactivates the file manager and stops the bus.
func (s *session) Close() {
	s.fm.Deactivate()
	s.bus.Close()
}

// userError replaces a gateway failure with its user message. The cause is
// already in the log.
func userError(err error) error {
	var opErr *state.OperationError
	if errors.As(err, &opErr) {
		return errors.New(opErr.UserMessage())
	}
	return err
}
