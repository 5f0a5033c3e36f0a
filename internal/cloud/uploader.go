// Package cloud uploads local files to the storage behind a record: the
// gateway's multipart endpoint, an S3 bucket or an Azure container. Every
// backend returns the descriptor that the file manager's UploadFinished
// consumes.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rescale/record-files/internal/api"
	"github.com/rescale/record-files/internal/config"
	"github.com/rescale/record-files/internal/logging"
	"github.com/rescale/record-files/internal/models"
	"github.com/rescale/record-files/internal/progress"
)

// UploadParams describes one file upload.
type UploadParams struct {
	LocalPath string
	RecordID  string

	// Name overrides the remote file name; empty uses the base name
	Name string

	// Tracker receives the running byte count. Optional.
	Tracker progress.Tracker

	// OnRetry is called before each retry with the attempt number. Optional.
	OnRetry func(attempt int, err error)
}

// RemoteName returns the name the file is stored under.
func (p UploadParams) RemoteName() string {
	if p.Name != "" {
		return p.Name
	}
	return filepath.Base(p.LocalPath)
}

// Uploader sends one local file to a storage backend.
type Uploader interface {
	Upload(ctx context.Context, params UploadParams) (models.UploadedFile, error)
	Backend() string
}

// ErrEmptyUploadResponse is returned when the gateway accepts an upload but
// describes no file.
var ErrEmptyUploadResponse = errors.New("upload response contained no files")

// NewUploader returns the uploader selected by cfg.Storage.Backend.
// apiClient is only required for the api backend.
func NewUploader(ctx context.Context, cfg *config.Config, apiClient *api.Client, logger *logging.Logger) (Uploader, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if err := cfg.Storage.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Storage.Backend {
	case config.BackendAPI, "":
		if apiClient == nil {
			return nil, fmt.Errorf("api backend requires a gateway client")
		}
		return NewGatewayUploader(apiClient, logger), nil
	case config.BackendS3:
		return NewS3Uploader(ctx, cfg, logger)
	case config.BackendAzure:
		return NewAzureUploader(cfg, logger)
	default:
		return nil, fmt.Errorf("%w: got %q", config.ErrUnknownBackend, cfg.Storage.Backend)
	}
}

// objectKey builds "<prefix>/<recordID>/<name>" with empty parts skipped.
func objectKey(prefix, recordID, name string) string {
	parts := make([]string, 0, 3)
	if p := strings.Trim(prefix, "/"); p != "" {
		parts = append(parts, p)
	}
	if recordID != "" {
		parts = append(parts, recordID)
	}
	parts = append(parts, name)
	return path.Join(parts...)
}

// trackedFile reports reads to a tracker and restarts the count on seek,
// so SDK request signing and retries do not overstate progress.
type trackedFile struct {
	*os.File
	tracker progress.Tracker
	read    int64
}

func openTracked(localPath string, tracker progress.Tracker) (*trackedFile, int64, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("failed to stat %s: %w", localPath, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, 0, fmt.Errorf("%s is a directory", localPath)
	}
	return &trackedFile{File: f, tracker: tracker}, info.Size(), nil
}

func (t *trackedFile) Read(p []byte) (int, error) {
	n, err := t.File.Read(p)
	if n > 0 && t.tracker != nil {
		t.read += int64(n)
		t.tracker.Update(t.read)
	}
	return n, err
}

func (t *trackedFile) Seek(offset int64, whence int) (int64, error) {
	pos, err := t.File.Seek(offset, whence)
	if err == nil {
		t.read = pos
	}
	return pos, err
}

var _ io.ReadSeekCloser = (*trackedFile)(nil)

// trimETag strips the quotes storage services put around ETags.
func trimETag(etag string) string {
	return strings.Trim(etag, `"`)
}
