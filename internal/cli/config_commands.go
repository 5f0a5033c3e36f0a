package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rescale/record-files/internal/config"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage record-files configuration",
		Long: `Configuration management commands for record-files.

Commands:
  init  - Interactive configuration setup
  show  - Display the merged configuration
  path  - Show the configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigPathCmd())
	return configCmd
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup. Values given as flags (--api-url,
--token, --record) are used as defaults.

Use --force to overwrite an existing configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			out := cmd.OutOrStdout()

			if !force {
				if _, err := os.Stat(path); err == nil {
					fmt.Fprintf(out, "Configuration already exists at: %s\n", path)
					fmt.Fprintln(out, "Use --force to overwrite or run 'config show' to view it.")
					return nil
				}
			}

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			reader := bufio.NewReader(cmd.InOrStdin())
			fmt.Fprintln(out, "record-files configuration")
			fmt.Fprintln(out, "==========================")

			cfg.APIBaseURL = ask(reader, out, "Gateway URL", cfg.APIBaseURL)
			cfg.APIToken = ask(reader, out, "Gateway token", cfg.APIToken)
			cfg.View.RecordID = ask(reader, out, "Record id", cfg.View.RecordID)
			cfg.View.ObjectAPIName = ask(reader, out, "Object API name", cfg.View.ObjectAPIName)
			cfg.Storage.Backend = strings.ToLower(ask(reader, out, "Storage backend (api, s3, azure)", cfg.Storage.Backend))
			switch cfg.Storage.Backend {
			case config.BackendS3:
				cfg.Storage.S3Bucket = ask(reader, out, "S3 bucket", cfg.Storage.S3Bucket)
				cfg.Storage.S3Region = ask(reader, out, "S3 region", cfg.Storage.S3Region)
			case config.BackendAzure:
				cfg.Storage.AzureContainerURL = ask(reader, out, "Azure container SAS URL", cfg.Storage.AzureContainerURL)
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := config.SaveConfig(cfg, path); err != nil {
				return err
			}
			fmt.Fprintf(out, "\nConfiguration saved to %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")
	return cmd
}

// ask prompts for one value. Empty input keeps def.
func ask(reader *bufio.Reader, out io.Writer, label, def string) string {
	if def != "" {
		fmt.Fprintf(out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(out, "%s: ", label)
	}
	input, _ := reader.ReadString('\n')
	if input = strings.TrimSpace(input); input != "" {
		return input
	}
	return def
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the configuration merged from the config file, .env,
RECORD_FILES_* environment variables and flags.

Priority: flags > environment > .env > config file > defaults`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			printConfig(cmd.OutOrStdout(), cfg, configPath())
			return nil
		},
	}
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, path)
			if _, err := os.Stat(path); os.IsNotExist(err) {
				fmt.Fprintln(out, "(file does not exist; run 'record-files config init')")
			}
			return nil
		},
	}
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

func printConfig(w io.Writer, cfg *config.Config, path string) {
	fmt.Fprintln(w, "Current Configuration")
	fmt.Fprintln(w, "=====================")
	fmt.Fprintf(w, "File: %s\n\n", path)

	fmt.Fprintln(w, "Gateway:")
	fmt.Fprintf(w, "  Base URL:    %s\n", cfg.APIBaseURL)
	fmt.Fprintf(w, "  Token:       %s\n", secret(cfg.APIToken))
	fmt.Fprintf(w, "  Max Retries: %d\n\n", cfg.MaxRetries)

	fmt.Fprintln(w, "Proxy:")
	fmt.Fprintf(w, "  Mode: %s\n", cfg.ProxyMode)
	if cfg.ProxyHost != "" {
		fmt.Fprintf(w, "  Host: %s:%d\n", cfg.ProxyHost, cfg.ProxyPort)
	}
	fmt.Fprintln(w)

	v := cfg.View
	fmt.Fprintln(w, "View:")
	fmt.Fprintf(w, "  Record:          %s\n", v.RecordID)
	fmt.Fprintf(w, "  Object:          %s\n", v.ObjectAPIName)
	fmt.Fprintf(w, "  Title:           %s\n", v.Title)
	fmt.Fprintf(w, "  Community:       %t\n", v.IsCommunity)
	fmt.Fprintf(w, "  Allow:           delete=%t download=%t upload=%t preview=%t edit=%t remove=%t\n",
		v.AllowDelete, v.AllowDownload, v.AllowUpload, v.AllowPreview, v.AllowFileEditDetail, v.AllowRemove)
	fmt.Fprintf(w, "  Show:            owner=%t type=%t size=%t modified=%t refresh=%t\n",
		v.ShowOwnerName, v.ShowFileType, v.ShowFileSize, v.ShowLastModified, v.ShowRefreshIcon)
	fmt.Fprintf(w, "  Multiple:        %t\n", v.Multiple)
	fmt.Fprintf(w, "  Rows shown:      %d\n", v.ShowNumberOfRecords)
	fmt.Fprintf(w, "  Accepted:        %s\n\n", strings.Join(v.AcceptedFormats, " "))

	s := cfg.Storage
	fmt.Fprintln(w, "Storage:")
	fmt.Fprintf(w, "  Backend:         %s\n", s.Backend)
	switch s.Backend {
	case config.BackendS3:
		fmt.Fprintf(w, "  Bucket:          %s\n", s.S3Bucket)
		fmt.Fprintf(w, "  Region:          %s\n", s.S3Region)
		fmt.Fprintf(w, "  Prefix:          %s\n", s.S3Prefix)
		if s.S3Endpoint != "" {
			fmt.Fprintf(w, "  Endpoint:        %s\n", s.S3Endpoint)
		}
		fmt.Fprintf(w, "  Access Key:      %s\n", secret(s.S3AccessKey))
	case config.BackendAzure:
		fmt.Fprintf(w, "  Container:       %s\n", stripQuery(s.AzureContainerURL))
		fmt.Fprintf(w, "  Prefix:          %s\n", s.AzurePrefix)
	}
	fmt.Fprintf(w, "  Upload Workers:  %d\n\n", s.UploadWorkers)

	fmt.Fprintf(w, "Server: %s\n", cfg.Server.Addr)
	fmt.Fprintf(w, "Log:    level=%s file=%s\n", cfg.Log.Level, cfg.Log.File)
	fmt.Fprintf(w, "Notifications: %t\n", cfg.NotificationsEnabled)
}

// secret never reveals any part of a credential.
func secret(s string) string {
	if s == "" {
		return "<not set>"
	}
	return fmt.Sprintf("<set (%d chars)>", len(s))
}

// stripQuery drops a SAS token from a container URL.
func stripQuery(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i] + "?<sas>"
	}
	return u
}
