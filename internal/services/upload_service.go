package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rescale/record-files/internal/cloud"
	"github.com/rescale/record-files/internal/constants"
	"github.com/rescale/record-files/internal/events"
	"github.com/rescale/record-files/internal/logging"
	"github.com/rescale/record-files/internal/progress"
	"github.com/rescale/record-files/internal/state"
)

// UploadServiceConfig configures the UploadService.
type UploadServiceConfig struct {
	// Workers is the number of concurrent uploads. Defaults to
	// constants.DefaultUploadWorkers, capped at constants.MaxUploadWorkers.
	Workers int
}

// UploadService pushes local files through a cloud.Uploader with bounded
// concurrency and publishes transfer events for each file.
type UploadService struct {
	uploader cloud.Uploader
	eventBus *events.EventBus
	logger   *logging.Logger

	semaphore   chan struct{}
	activeSlots atomic.Int32

	mu    sync.Mutex
	stats TransferStats
}

// NewUploadService creates an UploadService. eventBus and logger may be nil.
func NewUploadService(uploader cloud.Uploader, eventBus *events.EventBus, logger *logging.Logger, cfg UploadServiceConfig) *UploadService {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = constants.DefaultUploadWorkers
	}
	if workers > constants.MaxUploadWorkers {
		workers = constants.MaxUploadWorkers
	}

	return &UploadService{
		uploader:  uploader,
		eventBus:  eventBus,
		logger:    logger,
		semaphore: make(chan struct{}, workers),
	}
}

// Workers returns the concurrency limit.
func (s *UploadService) Workers() int {
	return cap(s.semaphore)
}

// Stats returns counts of finished uploads since creation.
func (s *UploadService) Stats() TransferStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// UploadFiles uploads every request into recordID and blocks until all have
// finished. Results are in request order. ui may be nil.
func (s *UploadService) UploadFiles(ctx context.Context, recordID string, requests []UploadRequest, ui progress.ProgressUI) []TransferResult {
	results := make([]TransferResult, len(requests))

	s.logger.Info().
		Str("recordId", recordID).
		Str("backend", s.uploader.Backend()).
		Int("files", len(requests)).
		Int("workers", s.Workers()).
		Msg("Starting upload batch")

	var wg sync.WaitGroup
	for i, req := range requests {
		wg.Add(1)
		go func(i int, req UploadRequest) {
			defer wg.Done()
			results[i] = s.uploadOne(ctx, recordID, req, ui)
		}(i, req)
	}
	wg.Wait()

	if ui != nil {
		ui.Wait()
	}

	stats := s.Stats()
	s.logger.Info().
		Int("completed", stats.Completed).
		Int("failed", stats.Failed).
		Msg("Upload batch complete")
	return results
}

// UploadToRecord uploads into the file manager's record and, when at least
// one file succeeded, reports the finished upload so the list reloads. The
// returned error joins every upload failure.
func (s *UploadService) UploadToRecord(ctx context.Context, fm *state.FileManager, requests []UploadRequest, ui progress.ProgressUI) ([]TransferResult, error) {
	if len(requests) == 0 {
		return nil, ErrNoFiles
	}
	if !fm.IsActive() {
		return nil, state.ErrNotActive
	}
	if !fm.Config().AllowUpload {
		return nil, ErrUploadUnavailable
	}

	results := s.UploadFiles(ctx, fm.Config().RecordID, requests, ui)
	uploadErr := Failures(results)

	if files := Succeeded(results); len(files) > 0 {
		if err := fm.UploadFinished(ctx, files); err != nil {
			return results, errors.Join(uploadErr, err)
		}
	}
	return results, uploadErr
}

func (s *UploadService) uploadOne(ctx context.Context, recordID string, req UploadRequest, ui progress.ProgressUI) (result TransferResult) {
	name := req.Name
	if name == "" {
		name = filepath.Base(req.LocalPath)
	}
	result = TransferResult{TaskID: uuid.NewString(), Request: req}
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Msgf("PANIC in upload for %s: %v", name, r)
			result.State = TransferStateFailed
			result.Err = fmt.Errorf("panic: %v", r)
		}
		result.Duration = time.Since(start)
		s.record(result.State)
	}()

	info, err := os.Stat(req.LocalPath)
	if err != nil {
		result.State = TransferStateFailed
		result.Err = fmt.Errorf("failed to stat %s: %w", req.LocalPath, err)
		return result
	}
	result.Size = info.Size()

	var reporter progress.Reporter = progress.NewNoOpProgress()
	if s.eventBus != nil {
		reporter = progress.NewGUIProgress(s.eventBus, result.TaskID, string(TransferTypeUpload))
	}
	var bar progress.FileBarHandle
	if ui != nil {
		bar = ui.AddFileBar(req.LocalPath, result.Size)
	}

	select {
	case s.semaphore <- struct{}{}:
	case <-ctx.Done():
		result.State = TransferStateCancelled
		result.Err = ctx.Err()
		if bar != nil {
			bar.Complete("", ctx.Err())
		}
		return result
	}
	slots := s.activeSlots.Add(1)
	s.logger.Debug().Str("file", name).Int32("active", slots).Int("max", s.Workers()).Msg("Upload slot acquired")
	defer func() {
		<-s.semaphore
		s.activeSlots.Add(-1)
	}()

	reporter.Start(result.Size, name)
	trackers := fanout{reporter}
	if bar != nil {
		trackers = append(trackers, bar)
	}

	file, err := s.uploader.Upload(ctx, cloud.UploadParams{
		LocalPath: req.LocalPath,
		RecordID:  recordID,
		Name:      req.Name,
		Tracker:   trackers,
		OnRetry: func(attempt int, err error) {
			if bar != nil {
				bar.SetRetry(attempt)
			}
		},
	})
	if bar != nil {
		bar.Complete(file.DocumentID, err)
	}

	if err != nil {
		reporter.Error(err)
		result.Err = err
		result.State = TransferStateFailed
		if errors.Is(err, context.Canceled) {
			result.State = TransferStateCancelled
		}
		s.logger.Error().Err(err).Str("path", req.LocalPath).Msg("Upload failed")
		return result
	}

	reporter.Finish()
	result.File = file
	result.State = TransferStateCompleted
	s.logger.Info().
		Str("path", req.LocalPath).
		Str("documentId", file.DocumentID).
		Msg("File uploaded")
	return result
}

func (s *UploadService) record(st TransferState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch st {
	case TransferStateCompleted:
		s.stats.Completed++
	case TransferStateFailed:
		s.stats.Failed++
	case TransferStateCancelled:
		s.stats.Cancelled++
	}
}

// fanout forwards byte counts to several trackers.
type fanout []progress.Tracker

func (f fanout) Update(current int64) {
	for _, t := range f {
		t.Update(current)
	}
}
