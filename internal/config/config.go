// Package config provides configuration management for record-files.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"

	"github.com/rescale/record-files/internal/constants"
)

// Config is the full runtime configuration.
//
// INI format:
//
//	[api]
//	base_url = https://files.example.com
//	token = <bearer-token>
//
//	[proxy]
//	mode = no-proxy
//	host =
//	port = 8080
//
//	[view]
//	record_id = 001xx000003DGb2AAG
//	object_api_name = Account
//	allow_download = true
//	accepted_formats = pdf,png,docx
//
//	[storage]
//	backend = api
//
//	[server]
//	addr = 127.0.0.1:8089
//
//	[log]
//	level = info
//	file =
type Config struct {
	// API settings
	APIBaseURL string
	APIToken   string

	// Proxy settings
	ProxyMode     string // "no-proxy", "ntlm", "basic", "system"
	ProxyHost     string
	ProxyPort     int
	ProxyUser     string
	ProxyPassword string
	NoProxy       string // Comma-separated list of hosts to bypass proxy

	// MaxRetries caps reconnect attempts when the gateway cannot be reached
	MaxRetries int

	View    ViewConfig
	Storage StorageConfig
	Server  ServerConfig
	Log     LogConfig

	// NotificationsEnabled toggles desktop notifications
	NotificationsEnabled bool
}

// StorageConfig selects where uploads go before UploadFinished fires.
type StorageConfig struct {
	Backend string // "api", "s3", "azure"

	S3Bucket   string
	S3Region   string
	S3Prefix   string
	S3Endpoint string

	// Static S3 keys; empty uses the default AWS credential chain
	S3AccessKey string
	S3SecretKey string

	// AzureContainerURL is a container URL carrying a SAS token
	AzureContainerURL string
	AzurePrefix       string

	UploadWorkers int
}

// ServerConfig configures the HTTP view adapter.
type ServerConfig struct {
	Addr string
}

// LogConfig configures logging.
type LogConfig struct {
	Level string
	File  string // empty = console only
}

// Storage backends
const (
	BackendAPI   = "api"
	BackendS3    = "s3"
	BackendAzure = "azure"
)

// Validation errors
var (
	ErrMissingBaseURL       = errors.New("api base_url is required")
	ErrMissingToken         = errors.New("api token is required")
	ErrUnknownBackend       = errors.New("storage backend must be one of api, s3, azure")
	ErrMissingS3Bucket      = errors.New("s3_bucket is required for the s3 backend")
	ErrMissingAzureURL      = errors.New("azure_container_url is required for the azure backend")
	ErrUnsupportedProxyMode = errors.New("proxy mode must be one of no-proxy, system, basic, ntlm")
)

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		ProxyMode:  "no-proxy",
		ProxyPort:  8080,
		MaxRetries: constants.MaxRetries,
		View:       NewViewConfig(),
		Storage: StorageConfig{
			Backend:       BackendAPI,
			UploadWorkers: constants.DefaultUploadWorkers,
		},
		Server: ServerConfig{Addr: constants.DefaultServerAddr},
		Log:    LogConfig{Level: "info"},

		NotificationsEnabled: true,
	}
}

// DefaultConfigPath returns ~/.config/record-files/config.ini
// (%APPDATA%\record-files\config.ini on Windows).
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.ini")
}

func configDir() string {
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "record-files")
		}
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "record-files")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "record-files")
	}
	return filepath.Join(home, ".config", "record-files")
}

// LoadConfig loads configuration from an INI file.
// A missing file yields defaults and no error.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		path = DefaultConfigPath()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	api := iniFile.Section("api")
	cfg.APIBaseURL = api.Key("base_url").String()
	cfg.APIToken = api.Key("token").String()
	cfg.MaxRetries = api.Key("max_retries").MustInt(cfg.MaxRetries)

	proxy := iniFile.Section("proxy")
	cfg.ProxyMode = proxy.Key("mode").MustString(cfg.ProxyMode)
	cfg.ProxyHost = proxy.Key("host").String()
	cfg.ProxyPort = proxy.Key("port").MustInt(cfg.ProxyPort)
	cfg.ProxyUser = proxy.Key("user").String()
	cfg.ProxyPassword = proxy.Key("password").String()
	cfg.NoProxy = proxy.Key("no_proxy").String()

	view := iniFile.Section("view")
	if err := view.MapTo(&cfg.View); err != nil {
		return nil, fmt.Errorf("failed to parse [view]: %w", err)
	}
	cfg.View.AcceptedFormats = ParseAcceptedFormats(view.Key("accepted_formats").String())
	cfg.View = cfg.View.Normalized()

	storage := iniFile.Section("storage")
	cfg.Storage.Backend = strings.ToLower(storage.Key("backend").MustString(cfg.Storage.Backend))
	cfg.Storage.S3Bucket = storage.Key("s3_bucket").String()
	cfg.Storage.S3Region = storage.Key("s3_region").String()
	cfg.Storage.S3Prefix = storage.Key("s3_prefix").String()
	cfg.Storage.S3Endpoint = storage.Key("s3_endpoint").String()
	cfg.Storage.S3AccessKey = storage.Key("s3_access_key").String()
	cfg.Storage.S3SecretKey = storage.Key("s3_secret_key").String()
	cfg.Storage.AzureContainerURL = storage.Key("azure_container_url").String()
	cfg.Storage.AzurePrefix = storage.Key("azure_prefix").String()
	cfg.Storage.UploadWorkers = storage.Key("upload_workers").MustInt(cfg.Storage.UploadWorkers)

	cfg.Server.Addr = iniFile.Section("server").Key("addr").MustString(cfg.Server.Addr)

	logSection := iniFile.Section("log")
	cfg.Log.Level = logSection.Key("level").MustString(cfg.Log.Level)
	cfg.Log.File = logSection.Key("file").String()

	cfg.NotificationsEnabled = iniFile.Section("notifications").Key("enabled").MustBool(true)

	return cfg, nil
}

// SaveConfig writes cfg to an INI file with owner-only permissions.
func SaveConfig(cfg *Config, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	api, err := iniFile.NewSection("api")
	if err != nil {
		return fmt.Errorf("failed to create api section: %w", err)
	}
	api.Key("base_url").SetValue(cfg.APIBaseURL)
	api.Key("token").SetValue(cfg.APIToken)
	api.Key("max_retries").SetValue(strconv.Itoa(cfg.MaxRetries))

	proxy, err := iniFile.NewSection("proxy")
	if err != nil {
		return fmt.Errorf("failed to create proxy section: %w", err)
	}
	proxy.Key("mode").SetValue(cfg.ProxyMode)
	proxy.Key("host").SetValue(cfg.ProxyHost)
	proxy.Key("port").SetValue(strconv.Itoa(cfg.ProxyPort))
	proxy.Key("user").SetValue(cfg.ProxyUser)
	proxy.Key("no_proxy").SetValue(cfg.NoProxy)

	view, err := iniFile.NewSection("view")
	if err != nil {
		return fmt.Errorf("failed to create view section: %w", err)
	}
	if err := view.ReflectFrom(&cfg.View); err != nil {
		return fmt.Errorf("failed to write [view]: %w", err)
	}
	formats := make([]string, 0, len(cfg.View.AcceptedFormats))
	for _, f := range cfg.View.AcceptedFormats {
		formats = append(formats, strings.TrimPrefix(f, "."))
	}
	view.Key("accepted_formats").SetValue(strings.Join(formats, ","))

	storage, err := iniFile.NewSection("storage")
	if err != nil {
		return fmt.Errorf("failed to create storage section: %w", err)
	}
	storage.Key("backend").SetValue(cfg.Storage.Backend)
	storage.Key("s3_bucket").SetValue(cfg.Storage.S3Bucket)
	storage.Key("s3_region").SetValue(cfg.Storage.S3Region)
	storage.Key("s3_prefix").SetValue(cfg.Storage.S3Prefix)
	storage.Key("s3_endpoint").SetValue(cfg.Storage.S3Endpoint)
	storage.Key("s3_access_key").SetValue(cfg.Storage.S3AccessKey)
	storage.Key("s3_secret_key").SetValue(cfg.Storage.S3SecretKey)
	storage.Key("azure_container_url").SetValue(cfg.Storage.AzureContainerURL)
	storage.Key("azure_prefix").SetValue(cfg.Storage.AzurePrefix)
	storage.Key("upload_workers").SetValue(strconv.Itoa(cfg.Storage.UploadWorkers))

	server, err := iniFile.NewSection("server")
	if err != nil {
		return fmt.Errorf("failed to create server section: %w", err)
	}
	server.Key("addr").SetValue(cfg.Server.Addr)

	logSection, err := iniFile.NewSection("log")
	if err != nil {
		return fmt.Errorf("failed to create log section: %w", err)
	}
	logSection.Key("level").SetValue(cfg.Log.Level)
	logSection.Key("file").SetValue(cfg.Log.File)

	notify, err := iniFile.NewSection("notifications")
	if err != nil {
		return fmt.Errorf("failed to create notifications section: %w", err)
	}
	notify.Key("enabled").SetValue(strconv.FormatBool(cfg.NotificationsEnabled))

	// Temporary file + rename for atomicity
	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// MergeEnv applies RECORD_FILES_* environment overrides.
func (c *Config) MergeEnv() {
	if v := os.Getenv("RECORD_FILES_API_URL"); v != "" {
		c.APIBaseURL = v
	}
	if v := os.Getenv("RECORD_FILES_API_TOKEN"); v != "" {
		c.APIToken = v
	}
	if v := os.Getenv("RECORD_FILES_RECORD_ID"); v != "" {
		c.View.RecordID = v
	}
	if v := os.Getenv("RECORD_FILES_OBJECT_API_NAME"); v != "" {
		c.View.ObjectAPIName = v
	}
	if v := os.Getenv("RECORD_FILES_STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("RECORD_FILES_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if envProxy := os.Getenv("HTTPS_PROXY"); envProxy != "" && c.ProxyHost == "" {
		c.parseProxyURL(envProxy)
	}
}

// MergeWithFlags applies command-line overrides. Empty values are ignored.
func (c *Config) MergeWithFlags(apiToken, apiBaseURL, proxyMode, proxyHost string, proxyPort int) {
	if apiToken != "" {
		c.APIToken = apiToken
	}
	if apiBaseURL != "" {
		c.APIBaseURL = apiBaseURL
	}
	if proxyMode != "" {
		c.ProxyMode = proxyMode
	}
	if proxyHost != "" {
		c.ProxyHost = proxyHost
	}
	if proxyPort > 0 {
		c.ProxyPort = proxyPort
	}

	// Ensure HTTPS scheme
	if c.APIBaseURL != "" && !strings.HasPrefix(c.APIBaseURL, "http") {
		c.APIBaseURL = "https://" + c.APIBaseURL
	}
}

// parseProxyURL parses host:port out of a proxy URL from the environment
func (c *Config) parseProxyURL(proxyURL string) {
	proxyURL = strings.TrimPrefix(proxyURL, "http://")
	proxyURL = strings.TrimPrefix(proxyURL, "https://")

	parts := strings.Split(proxyURL, ":")
	if len(parts) >= 1 {
		c.ProxyHost = parts[0]
	}
	if len(parts) >= 2 {
		if port, err := strconv.Atoi(strings.TrimSuffix(parts[1], "/")); err == nil {
			c.ProxyPort = port
		}
	}
	if c.ProxyHost != "" && (c.ProxyMode == "no-proxy" || c.ProxyMode == "") {
		log.Printf("[INFO] Using proxy %s from HTTPS_PROXY", c.ProxyHost)
		c.ProxyMode = "system"
	}
}

// Validate checks the connection and storage settings.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return ErrMissingBaseURL
	}
	if strings.TrimSpace(c.APIToken) == "" {
		return ErrMissingToken
	}
	switch strings.ToLower(c.ProxyMode) {
	case "", "no-proxy", "system", "basic", "ntlm":
	default:
		return fmt.Errorf("%w: got %q", ErrUnsupportedProxyMode, c.ProxyMode)
	}
	return c.Storage.Validate()
}

// Validate checks backend-specific storage settings.
func (s StorageConfig) Validate() error {
	switch s.Backend {
	case BackendAPI, "":
		return nil
	case BackendS3:
		if s.S3Bucket == "" {
			return ErrMissingS3Bucket
		}
		return nil
	case BackendAzure:
		if s.AzureContainerURL == "" {
			return ErrMissingAzureURL
		}
		return nil
	default:
		return fmt.Errorf("%w: got %q", ErrUnknownBackend, s.Backend)
	}
}
