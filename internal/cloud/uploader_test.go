package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rescale/record-files/internal/api"
	"github.com/rescale/record-files/internal/config"
	"github.com/rescale/record-files/internal/models"
)

type recordingTracker struct {
	last atomic.Int64
}

func (r *recordingTracker) Update(current int64) { r.last.Store(current) }

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func testConfig(baseURL string) *config.Config {
	cfg := config.NewConfig()
	cfg.APIBaseURL = baseURL
	cfg.APIToken = "test-token"
	cfg.MaxRetries = 1
	return cfg
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		prefix, record, name, want string
	}{
		{"", "001R", "report.pdf", "001R/report.pdf"},
		{"/uploads/", "001R", "report.pdf", "uploads/001R/report.pdf"},
		{"uploads", "", "report.pdf", "uploads/report.pdf"},
		{"", "", "report.pdf", "report.pdf"},
	}
	for _, tt := range tests {
		if got := objectKey(tt.prefix, tt.record, tt.name); got != tt.want {
			t.Errorf("objectKey(%q, %q, %q) = %q, want %q", tt.prefix, tt.record, tt.name, got, tt.want)
		}
	}
}

func TestUploadParamsRemoteName(t *testing.T) {
	p := UploadParams{LocalPath: "/tmp/docs/report.pdf"}
	if p.RemoteName() != "report.pdf" {
		t.Errorf("RemoteName() = %q", p.RemoteName())
	}
	p.Name = "renamed.pdf"
	if p.RemoteName() != "renamed.pdf" {
		t.Errorf("RemoteName() = %q", p.RemoteName())
	}
}

func TestTrackedFileResetsOnSeek(t *testing.T) {
	tracker := &recordingTracker{}
	f, size, err := openTracked(writeTempFile(t, "a.txt", "0123456789"), tracker)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if size != 10 {
		t.Errorf("size = %d, want 10", size)
	}
	if _, err := io.ReadAll(f); err != nil {
		t.Fatal(err)
	}
	if tracker.last.Load() != 10 {
		t.Errorf("tracker = %d, want 10", tracker.last.Load())
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 4)
	if _, err := f.Read(buf); err != nil {
		t.Fatal(err)
	}
	if tracker.last.Load() != 4 {
		t.Errorf("tracker after rewind = %d, want 4", tracker.last.Load())
	}
}

func TestOpenTrackedRejectsDirectory(t *testing.T) {
	if _, _, err := openTracked(t.TempDir(), nil); err == nil {
		t.Error("expected error for a directory")
	}
}

func TestGatewayUploader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != api.PathUpload {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		f, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		data, _ := io.ReadAll(f)
		if header.Filename != "notes.txt" || string(data) != "hello gateway" {
			t.Errorf("unexpected part %s %q", header.Filename, data)
		}
		_ = json.NewEncoder(w).Encode([]models.UploadedFile{{DocumentID: "069N", ContentVersionID: "068N"}})
	}))
	defer srv.Close()

	client, err := api.NewClient(testConfig(srv.URL), nil)
	if err != nil {
		t.Fatal(err)
	}
	uploader, err := NewUploader(context.Background(), testConfig(srv.URL), client, nil)
	if err != nil {
		t.Fatal(err)
	}
	if uploader.Backend() != "api" {
		t.Errorf("Backend() = %q", uploader.Backend())
	}

	tracker := &recordingTracker{}
	got, err := uploader.Upload(context.Background(), UploadParams{
		LocalPath: writeTempFile(t, "notes.txt", "hello gateway"),
		RecordID:  "001R",
		Tracker:   tracker,
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if got.DocumentID != "069N" || got.Name != "notes.txt" {
		t.Errorf("unexpected result %+v", got)
	}
	if tracker.last.Load() != int64(len("hello gateway")) {
		t.Errorf("tracker = %d", tracker.last.Load())
	}
}

func TestGatewayUploaderEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()

	client, err := api.NewClient(testConfig(srv.URL), nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = NewGatewayUploader(client, nil).Upload(context.Background(), UploadParams{
		LocalPath: writeTempFile(t, "empty.txt", "x"),
		RecordID:  "001R",
	})
	if !errors.Is(err, ErrEmptyUploadResponse) {
		t.Errorf("expected ErrEmptyUploadResponse, got %v", err)
	}
}

func TestGatewayUploaderRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode([]models.UploadedFile{{Name: "a.txt", DocumentID: "069A"}})
	}))
	defer srv.Close()

	client, err := api.NewClient(testConfig(srv.URL), nil)
	if err != nil {
		t.Fatal(err)
	}
	uploader := NewGatewayUploader(client, nil)
	uploader.policy.InitialDelay = time.Millisecond
	uploader.policy.MaxDelay = 5 * time.Millisecond

	var retries []int
	got, err := uploader.Upload(context.Background(), UploadParams{
		LocalPath: writeTempFile(t, "a.txt", "abc"),
		RecordID:  "001R",
		OnRetry:   func(attempt int, err error) { retries = append(retries, attempt) },
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if got.DocumentID != "069A" || calls.Load() != 2 || len(retries) != 1 {
		t.Errorf("result %+v, calls %d, retries %v", got, calls.Load(), retries)
	}
}

func TestS3Uploader(t *testing.T) {
	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("unexpected method %s", r.Method)
		}
		gotPath = r.URL.Path
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		w.Header().Set("ETag", `"abc123"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testConfig("https://files.example.com")
	cfg.Storage.Backend = config.BackendS3
	cfg.Storage.S3Bucket = "attachments"
	cfg.Storage.S3Prefix = "records"
	cfg.Storage.S3Endpoint = srv.URL
	cfg.Storage.S3AccessKey = "AKIDEXAMPLE"
	cfg.Storage.S3SecretKey = "secret"

	uploader, err := NewUploader(context.Background(), cfg, nil, nil)
	if err != nil {
		t.Fatalf("NewUploader() error = %v", err)
	}
	if uploader.Backend() != config.BackendS3 {
		t.Errorf("Backend() = %q", uploader.Backend())
	}

	got, err := uploader.Upload(context.Background(), UploadParams{
		LocalPath: writeTempFile(t, "report.pdf", "pdf bytes"),
		RecordID:  "001R",
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if gotPath != "/attachments/records/001R/report.pdf" {
		t.Errorf("path = %q", gotPath)
	}
	if !strings.Contains(gotBody, "pdf bytes") {
		t.Errorf("body = %q", gotBody)
	}
	want := models.UploadedFile{Name: "report.pdf", DocumentID: "records/001R/report.pdf", ContentVersionID: "abc123"}
	if got != want {
		t.Errorf("Upload() = %+v, want %+v", got, want)
	}
}

func TestNewUploaderValidatesStorage(t *testing.T) {
	cfg := testConfig("https://files.example.com")

	cfg.Storage.Backend = config.BackendS3
	if _, err := NewUploader(context.Background(), cfg, nil, nil); !errors.Is(err, config.ErrMissingS3Bucket) {
		t.Errorf("expected ErrMissingS3Bucket, got %v", err)
	}

	cfg.Storage.Backend = config.BackendAzure
	if _, err := NewUploader(context.Background(), cfg, nil, nil); !errors.Is(err, config.ErrMissingAzureURL) {
		t.Errorf("expected ErrMissingAzureURL, got %v", err)
	}

	cfg.Storage.Backend = config.BackendAPI
	if _, err := NewUploader(context.Background(), cfg, nil, nil); err == nil {
		t.Error("api backend without a client should fail")
	}

	cfg.Storage.Backend = "ftp"
	if _, err := NewUploader(context.Background(), cfg, nil, nil); err == nil {
		t.Error("unknown backend should fail")
	}
}

func TestNewAzureUploader(t *testing.T) {
	cfg := testConfig("https://files.example.com")
	cfg.Storage.Backend = config.BackendAzure
	cfg.Storage.AzureContainerURL = "https://acct.blob.core.windows.net/attachments?sv=2024&sig=abc"

	uploader, err := NewUploader(context.Background(), cfg, nil, nil)
	if err != nil {
		t.Fatalf("NewUploader() error = %v", err)
	}
	if uploader.Backend() != config.BackendAzure {
		t.Errorf("Backend() = %q", uploader.Backend())
	}
}
