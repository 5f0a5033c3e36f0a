// Package gui provides the desktop window for a record's file list.
package gui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"github.com/rs/zerolog"

	"github.com/rescale/record-files/internal/api"
	"github.com/rescale/record-files/internal/cloud"
	"github.com/rescale/record-files/internal/config"
	"github.com/rescale/record-files/internal/events"
	"github.com/rescale/record-files/internal/logging"
	"github.com/rescale/record-files/internal/navigation"
	"github.com/rescale/record-files/internal/notify"
	"github.com/rescale/record-files/internal/services"
	"github.com/rescale/record-files/internal/state"
)

var (
	// guiLogger is the package-level logger for GUI mode
	guiLogger *logging.Logger
)

// Options selects where LaunchGUI reads its configuration.
type Options struct {
	ConfigFile string
	EnvFile    string
}

// LaunchGUI opens the file list window and blocks until it is closed.
func LaunchGUI(opts Options) error {
	bus := events.NewEventBus(0)
	defer bus.Close()

	guiLogger = logging.NewLogger("gui", bus)
	defer guiLogger.Close()

	// GUI mode stays quiet on the console unless RECORD_FILES_DEBUG is set
	if os.Getenv("RECORD_FILES_DEBUG") != "" {
		logging.SetGlobalLevel(zerolog.DebugLevel)
		guiLogger.Info().Msg("Debug logging enabled via RECORD_FILES_DEBUG")
	} else {
		logging.SetGlobalLevel(zerolog.WarnLevel)
	}

	if runtime.GOOS == "linux" {
		if os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == "" {
			return fmt.Errorf("GUI mode requires a display. No display detected.\n" +
				"DISPLAY and WAYLAND_DISPLAY are not set.\n" +
				"Use 'record-files' for CLI mode")
		}
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if cfg.Log.File != "" {
		if err := guiLogger.EnableFile(cfg.Log.File); err != nil {
			guiLogger.Warn().Err(err).Str("path", cfg.Log.File).Msg("Failed to open log file")
		}
	}

	client, err := api.NewClient(cfg, guiLogger)
	if err != nil {
		return fmt.Errorf("failed to create gateway client: %w", err)
	}
	notifier := notify.NewNotifier(&notify.Config{
		Enabled:              cfg.NotificationsEnabled,
		ShowDownloadComplete: true,
		ShowFailures:         true,
	}, bus, guiLogger)
	fm := state.NewFileManager(client, bus, state.Options{
		Navigator: navigation.NewBusNavigator(bus, cfg.APIBaseURL),
		Notifier:  notifier,
		Logger:    guiLogger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var uploads *services.UploadService
	if uploader, err := cloud.NewUploader(ctx, cfg, client, guiLogger); err != nil {
		guiLogger.Warn().Err(err).Msg("Uploads disabled")
	} else {
		uploads = services.NewUploadService(uploader, bus, guiLogger, services.UploadServiceConfig{
			Workers: cfg.Storage.UploadWorkers,
		})
	}
	downloads := services.NewDownloadService(client, notifier, guiLogger)

	myApp := app.NewWithID("com.rescale.record-files")
	myApp.Settings().SetTheme(&recordFilesTheme{})

	mainWindow := myApp.NewWindow("Record Files")
	mainWindow.SetMaster()

	ui := NewUI(ctx, Deps{
		App:        myApp,
		Window:     mainWindow,
		Manager:    fm,
		Bus:        bus,
		Uploads:    uploads,
		Downloads:  downloads,
		APIBaseURL: cfg.APIBaseURL,
	})
	mainWindow.SetContent(ui.Build())
	mainWindow.Resize(fyne.NewSize(1000, 560))
	mainWindow.CenterOnScreen()
	mainWindow.SetOnClosed(func() {
		ui.Stop()
		fm.Deactivate()
	})
	ui.Start()

	// The first load runs behind the window so a slow gateway shows a spinner.
	myApp.Lifecycle().SetOnStarted(func() {
		go func() {
			if err := fm.Activate(ctx, cfg.View); err != nil {
				ui.showError(err)
			}
		}()
	})

	mainWindow.ShowAndRun()
	return nil
}

// loadConfig merges the config file, .env and environment. A broken config
// file falls back to defaults so the window can still explain what is wrong.
func loadConfig(opts Options) (*config.Config, error) {
	if err := config.LoadDotEnv(opts.EnvFile); err != nil {
		guiLogger.Warn().Err(err).Msg("Failed to load .env")
	}

	cfg, err := config.LoadConfig(opts.ConfigFile)
	if err != nil {
		guiLogger.Warn().Err(err).Msg("Failed to load config, falling back to defaults")
		cfg = config.NewConfig()
	}
	cfg.MergeEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w\nRun 'record-files config init' first", err)
	}
	return cfg, nil
}

// userMessage returns the text a dialog shows for err.
func userMessage(err error) string {
	var opErr *state.OperationError
	if errors.As(err, &opErr) {
		return opErr.UserMessage()
	}
	return err.Error()
}
