package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/rescale/record-files/internal/api"
	"github.com/rescale/record-files/internal/diskspace"
	"github.com/rescale/record-files/internal/logging"
	"github.com/rescale/record-files/internal/notify"
	"github.com/rescale/record-files/internal/progress"
	"github.com/rescale/record-files/internal/state"
	"github.com/rescale/record-files/internal/validation"
)

// Downloader opens the download link for a set of file ids.
type Downloader interface {
	Download(ctx context.Context, fileIDs []string) (*api.Download, error)
}

// DownloadService saves the selected files of a record to disk.
type DownloadService struct {
	client   Downloader
	notifier *notify.Notifier
	logger   *logging.Logger
}

// NewDownloadService creates a DownloadService. notifier and logger may be nil.
func NewDownloadService(client Downloader, notifier *notify.Notifier, logger *logging.Logger) *DownloadService {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &DownloadService{client: client, notifier: notifier, logger: logger}
}

// DownloadSelected downloads the file manager's current selection into
// destDir. It fails without a request when download is not enabled.
func (s *DownloadService) DownloadSelected(ctx context.Context, fm *state.FileManager, destDir string, reporter progress.Reporter) (string, error) {
	if !fm.IsActive() {
		return "", state.ErrNotActive
	}
	if !fm.Config().AllowDownload {
		return "", ErrDownloadDisabled
	}
	ids := fm.View().SelectedFileIDs
	if len(ids) == 0 {
		return "", ErrNothingSelected
	}
	return s.Download(ctx, ids, destDir, reporter)
}

// Download saves the gateway response for fileIDs into destDir and returns
// the written path. The file appears only once it is complete.
func (s *DownloadService) Download(ctx context.Context, fileIDs []string, destDir string, reporter progress.Reporter) (outPath string, err error) {
	if len(fileIDs) == 0 {
		return "", ErrNothingSelected
	}
	if reporter == nil {
		reporter = progress.NewNoOpProgress()
	}

	defer func() {
		if err != nil {
			reporter.Error(err)
			if s.notifier != nil {
				s.notifier.TransferFailed(string(TransferTypeDownload), strings.Join(fileIDs, ", "), err.Error())
			}
		}
	}()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", destDir, err)
	}

	dl, err := s.client.Download(ctx, fileIDs)
	if err != nil {
		return "", err
	}
	defer dl.Body.Close()

	name := downloadName(dl.FileName, fileIDs)
	outPath = filepath.Join(destDir, name)
	if err := validation.ValidatePathInDirectory(outPath, destDir); err != nil {
		return "", err
	}
	if err := diskspace.CheckAvailableSpace(outPath, dl.Size, diskspace.DefaultSafetyMargin); err != nil {
		return "", err
	}
	reporter.Start(dl.Size, name)

	tmp, err := os.CreateTemp(destDir, "."+name+".*.part")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmp, progress.NewProgressReader(dl.Body, reporter))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	if dl.Size >= 0 && written != dl.Size {
		return "", fmt.Errorf("short download of %s: got %d of %d bytes", name, written, dl.Size)
	}
	if err = os.Rename(tmpPath, outPath); err != nil {
		return "", fmt.Errorf("failed to move %s into place: %w", name, err)
	}

	reporter.Finish()
	s.logger.Info().
		Str("path", outPath).
		Int64("bytes", written).
		Int("files", len(fileIDs)).
		Msg("Download complete")
	if s.notifier != nil {
		s.notifier.DownloadComplete(name, outPath)
	}
	return outPath, nil
}

// downloadName picks the local file name: the base of the server's name
// when it is a safe file name, else the single id, else a generated archive
// name.
func downloadName(serverName string, fileIDs []string) string {
	if name := filepath.Base(filepath.Clean("/" + serverName)); validation.ValidateFilename(name) == nil {
		return name
	}
	if len(fileIDs) == 1 {
		return fileIDs[0]
	}
	return "files-" + uuid.NewString()[:8] + ".zip"
}
