// Package cli provides the command-line interface for record-files.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rescale/record-files/internal/config"
	"github.com/rescale/record-files/internal/constants"
	"github.com/rescale/record-files/internal/logging"
	"github.com/rescale/record-files/internal/version"
)

var (
	// Global flags
	cfgFile       string
	envFile       string
	apiToken      string
	apiBaseURL    string
	proxyMode     string
	proxyHost     string
	proxyPort     int
	recordID      string
	objectAPIName string
	logLevel      string
	logFile       string
	verbose       bool
	noNotify      bool

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "record-files",
		Short: "Manage the files attached to a record",
		Long: `record-files ` + version.Version + ` - Built: ` + version.BuildTime + `
Lists, uploads, downloads, deletes and unlinks the files attached to a
record through the file gateway.

Configuration is read from ` + config.DefaultConfigPath() + `,
then .env, then RECORD_FILES_* environment variables, then flags.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger = logging.NewDefaultCLILogger()
			level := logLevel
			if verbose {
				level = "debug"
			}
			if level != "" {
				logging.SetLevelFromString(level)
			}
			if logFile != "" {
				if err := logger.EnableFile(logFile); err != nil {
					return err
				}
			}
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "Configuration file path")
	pf.StringVar(&envFile, "env-file", ".env", "Dotenv file with RECORD_FILES_* variables")
	pf.StringVar(&apiToken, "token", "", "Gateway bearer token (overrides config)")
	pf.StringVar(&apiBaseURL, "api-url", "", "Gateway base URL (overrides config)")
	pf.StringVar(&proxyMode, "proxy-mode", "", "Proxy mode: no-proxy, system, basic, ntlm")
	pf.StringVar(&proxyHost, "proxy-host", "", "Proxy host")
	pf.IntVar(&proxyPort, "proxy-port", 0, "Proxy port")
	pf.StringVarP(&recordID, "record", "r", "", "Record whose files to manage (overrides config)")
	pf.StringVar(&objectAPIName, "object", "", "Object API name of the record, for view-all links")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&logFile, "log-file", "", "Also write JSON logs to this rotating file")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Verbose output (same as --log-level debug)")
	pf.BoolVar(&noNotify, "no-notify", false, "Disable desktop notifications")

	rootCmd.Version = version.Version + " (" + version.BuildTime + ")"

	completionCmd := &cobra.Command{
		Use:       "completion [bash|zsh|fish|powershell]",
		Short:     "Generate a shell completion script",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		Long: `Generate a completion script for record-files.

  source <(record-files completion bash)
  record-files completion zsh > "${fpath[1]}/_record-files"
  record-files completion fish > ~/.config/fish/completions/record-files.fish
  record-files completion powershell | Out-String | Invoke-Expression`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return rootCmd.GenBashCompletion(out)
			case "zsh":
				return rootCmd.GenZshCompletion(out)
			case "fish":
				return rootCmd.GenFishCompletion(out, true)
			default:
				return rootCmd.GenPowerShellCompletion(out)
			}
		},
	}
	rootCmd.AddCommand(completionCmd)
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	return rootCmd
}

// Execute runs the CLI.
func Execute() error {
	rootContext, cancelFunc = context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\nReceived signal %v, cancelling operations...\n", sig)
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.Execute()

	signal.Stop(sigChan)
	close(sigChan)
	cancelFunc()

	if logger != nil {
		_ = logger.Close()
	}
	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newColumnsCmd())
	rootCmd.AddCommand(newDeleteCmd())
	rootCmd.AddCommand(newRemoveCmd())
	rootCmd.AddCommand(newRowActionCmd("view", "Open the preview page of a file", constants.ActionView))
	rootCmd.AddCommand(newRowActionCmd("edit", "Open the detail page of a file", constants.ActionEdit))
	rootCmd.AddCommand(newUploadCmd())
	rootCmd.AddCommand(newDownloadCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newConfigCmd())
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetContext returns the global CLI context. It is cancelled on Ctrl+C.
func GetContext() context.Context {
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}
