package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	if cfg.ProxyMode != "no-proxy" {
		t.Errorf("expected default ProxyMode no-proxy, got %s", cfg.ProxyMode)
	}
	if cfg.Storage.Backend != BackendAPI {
		t.Errorf("expected default backend %s, got %s", BackendAPI, cfg.Storage.Backend)
	}
	if cfg.View.Title != "Files" {
		t.Errorf("expected default title Files, got %s", cfg.View.Title)
	}
	if cfg.View.ShowNumberOfRecords != 5 {
		t.Errorf("expected default ShowNumberOfRecords 5, got %d", cfg.View.ShowNumberOfRecords)
	}
	if !reflect.DeepEqual(cfg.View.AcceptedFormats, []string{".pdf", ".png"}) {
		t.Errorf("expected default accepted formats [.pdf .png], got %v", cfg.View.AcceptedFormats)
	}
}

func TestLoadConfig_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.ini"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Storage.Backend != BackendAPI {
		t.Errorf("expected defaults, got backend %s", cfg.Storage.Backend)
	}
}

func TestLoadConfig_ParsesSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.ini")
	content := `[api]
base_url = https://files.example.com
token = secret

[proxy]
mode = basic
host = proxy.local
port = 3128

[view]
record_id = 001A
object_api_name = Account
title = Attachments
allow_download = true
allow_delete = true
allow_preview = true
is_community = false
show_file_size = true
show_number_of_records = 10
accepted_formats = pdf, .docx,pdf

[storage]
backend = S3
s3_bucket = uploads
s3_region = us-east-1

[log]
level = debug
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.APIBaseURL != "https://files.example.com" || cfg.APIToken != "secret" {
		t.Errorf("api section mismatch: %s %s", cfg.APIBaseURL, cfg.APIToken)
	}
	if cfg.ProxyMode != "basic" || cfg.ProxyHost != "proxy.local" || cfg.ProxyPort != 3128 {
		t.Errorf("proxy section mismatch: %s %s %d", cfg.ProxyMode, cfg.ProxyHost, cfg.ProxyPort)
	}
	v := cfg.View
	if v.RecordID != "001A" || v.ObjectAPIName != "Account" || v.Title != "Attachments" {
		t.Errorf("view identity mismatch: %+v", v)
	}
	if !v.AllowDownload || !v.AllowDelete || !v.AllowPreview || !v.ShowFileSize {
		t.Errorf("expected enabled view flags, got %+v", v)
	}
	if v.AllowUpload || v.ShowOwnerName {
		t.Errorf("expected unset flags to stay false, got %+v", v)
	}
	if v.ShowNumberOfRecords != 10 {
		t.Errorf("expected ShowNumberOfRecords 10, got %d", v.ShowNumberOfRecords)
	}
	if !reflect.DeepEqual(v.AcceptedFormats, []string{".pdf", ".docx"}) {
		t.Errorf("expected [.pdf .docx], got %v", v.AcceptedFormats)
	}
	if cfg.Storage.Backend != BackendS3 || cfg.Storage.S3Bucket != "uploads" {
		t.Errorf("storage mismatch: %+v", cfg.Storage)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Log.Level)
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.ini")

	cfg := NewConfig()
	cfg.APIBaseURL = "https://files.example.com"
	cfg.APIToken = "tok"
	cfg.View.RecordID = "001B"
	cfg.View.ObjectAPIName = "Case"
	cfg.View.AllowRemove = true
	cfg.View.IsCommunity = true
	cfg.View.AcceptedFormats = []string{".csv"}
	cfg.Storage.Backend = BackendAzure
	cfg.Storage.AzureContainerURL = "https://acct.blob.core.windows.net/c?sig=x"

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if loaded.APIBaseURL != cfg.APIBaseURL || loaded.APIToken != cfg.APIToken {
		t.Errorf("api mismatch after round trip")
	}
	if loaded.View.RecordID != "001B" || !loaded.View.AllowRemove || !loaded.View.IsCommunity {
		t.Errorf("view mismatch after round trip: %+v", loaded.View)
	}
	if !reflect.DeepEqual(loaded.View.AcceptedFormats, []string{".csv"}) {
		t.Errorf("expected [.csv], got %v", loaded.View.AcceptedFormats)
	}
	if loaded.Storage.AzureContainerURL != cfg.Storage.AzureContainerURL {
		t.Errorf("azure url mismatch: %s", loaded.Storage.AzureContainerURL)
	}
}

func TestParseAcceptedFormats(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty uses default", "", []string{".pdf", ".png"}},
		{"blank uses default", "   ", []string{".pdf", ".png"}},
		{"single", "pdf", []string{".pdf"}},
		{"comma separated", "pdf,png,jpg", []string{".pdf", ".png", ".jpg"}},
		{"trims spaces", " pdf , docx ", []string{".pdf", ".docx"}},
		{"keeps existing dot", ".xlsx", []string{".xlsx"}},
		{"drops duplicates", "pdf,pdf,.pdf", []string{".pdf"}},
		{"only separators uses default", ",,", []string{".pdf", ".png"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseAcceptedFormats(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseAcceptedFormats(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestViewConfigNormalized(t *testing.T) {
	v := ViewConfig{ShowNumberOfRecords: -1}
	n := v.Normalized()

	if n.Title != "Files" {
		t.Errorf("expected default title, got %q", n.Title)
	}
	if n.ShowNumberOfRecords != 5 {
		t.Errorf("expected default row cap, got %d", n.ShowNumberOfRecords)
	}
	if len(n.AcceptedFormats) != 2 {
		t.Errorf("expected default formats, got %v", n.AcceptedFormats)
	}

	formats := []string{".pdf"}
	v2 := ViewConfig{AcceptedFormats: formats}.Normalized()
	v2.AcceptedFormats[0] = ".changed"
	if formats[0] != ".pdf" {
		t.Error("Normalized must not share the formats slice")
	}
}

func TestViewConfigValidate(t *testing.T) {
	if err := (ViewConfig{}).Validate(); !errors.Is(err, ErrMissingRecordID) {
		t.Errorf("expected ErrMissingRecordID, got %v", err)
	}
	if err := (ViewConfig{RecordID: "001"}).Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"missing url", func(c *Config) { c.APIBaseURL = "" }, ErrMissingBaseURL},
		{"missing token", func(c *Config) { c.APIToken = "" }, ErrMissingToken},
		{"bad proxy", func(c *Config) { c.ProxyMode = "socks" }, ErrUnsupportedProxyMode},
		{"bad backend", func(c *Config) { c.Storage.Backend = "ftp" }, ErrUnknownBackend},
		{"s3 without bucket", func(c *Config) { c.Storage.Backend = BackendS3 }, ErrMissingS3Bucket},
		{"azure without url", func(c *Config) { c.Storage.Backend = BackendAzure }, ErrMissingAzureURL},
		{"valid", func(c *Config) {}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			cfg.APIBaseURL = "https://files.example.com"
			cfg.APIToken = "tok"
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestMergeEnvAndFlags(t *testing.T) {
	t.Setenv("RECORD_FILES_API_URL", "https://env.example.com")
	t.Setenv("RECORD_FILES_API_TOKEN", "env-token")
	t.Setenv("RECORD_FILES_RECORD_ID", "001ENV")
	t.Setenv("HTTPS_PROXY", "http://proxy.env:3128")

	cfg := NewConfig()
	cfg.MergeEnv()

	if cfg.APIBaseURL != "https://env.example.com" || cfg.APIToken != "env-token" {
		t.Errorf("env overrides not applied: %s %s", cfg.APIBaseURL, cfg.APIToken)
	}
	if cfg.View.RecordID != "001ENV" {
		t.Errorf("expected record id from env, got %s", cfg.View.RecordID)
	}
	if cfg.ProxyMode != "system" || cfg.ProxyHost != "proxy.env" || cfg.ProxyPort != 3128 {
		t.Errorf("proxy from env mismatch: %s %s %d", cfg.ProxyMode, cfg.ProxyHost, cfg.ProxyPort)
	}

	cfg.MergeWithFlags("flag-token", "flags.example.com", "", "", 0)
	if cfg.APIToken != "flag-token" {
		t.Errorf("expected flag token to win, got %s", cfg.APIToken)
	}
	if cfg.APIBaseURL != "https://flags.example.com" {
		t.Errorf("expected https scheme added, got %s", cfg.APIBaseURL)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("RECORD_FILES_TEST_DOTENV=from-file\n"), 0600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("RECORD_FILES_TEST_DOTENV", "")
	os.Unsetenv("RECORD_FILES_TEST_DOTENV")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv failed: %v", err)
	}
	if got := os.Getenv("RECORD_FILES_TEST_DOTENV"); got != "from-file" {
		t.Errorf("expected from-file, got %q", got)
	}

	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing .env should not error, got %v", err)
	}
}
