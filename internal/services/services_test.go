package services

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rescale/record-files/internal/api"
	"github.com/rescale/record-files/internal/cloud"
	"github.com/rescale/record-files/internal/config"
	"github.com/rescale/record-files/internal/constants"
	"github.com/rescale/record-files/internal/events"
	"github.com/rescale/record-files/internal/models"
	"github.com/rescale/record-files/internal/state"
)

type fakeUploader struct {
	delay   time.Duration
	failFor string

	active    atomic.Int32
	maxActive atomic.Int32
	calls     atomic.Int32
}

func (f *fakeUploader) Backend() string { return "fake" }

func (f *fakeUploader) Upload(ctx context.Context, params cloud.UploadParams) (models.UploadedFile, error) {
	f.calls.Add(1)
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		m := f.maxActive.Load()
		if n <= m || f.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(f.delay)

	name := params.RemoteName()
	if name == f.failFor {
		return models.UploadedFile{}, errors.New("gateway unavailable")
	}
	if params.Tracker != nil {
		params.Tracker.Update(1)
	}
	return models.UploadedFile{Name: name, DocumentID: "doc-" + name, ContentVersionID: "ver-" + name}, nil
}

type fakeGateway struct {
	mu      sync.Mutex
	fetches int
}

func (g *fakeGateway) GetFileInfos(ctx context.Context, recordID string) ([]models.FileInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetches++
	return []models.FileInfo{
		{FileID: "068A", ContentDocumentID: "069A", FileName: "report.pdf", ContentSize: 2048},
		{FileID: "068B", ContentDocumentID: "069B", FileName: "logo.png", ContentSize: 512},
	}, nil
}

func (g *fakeGateway) DeleteSelectedFiles(ctx context.Context, ids []string) error { return nil }

func (g *fakeGateway) RemoveFileFromRecord(ctx context.Context, fileID, recordID string) error {
	return nil
}

func (g *fakeGateway) fetchCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fetches
}

type spyNotifier struct {
	messages []string
}

func (n *spyNotifier) NotifySuccess(message string) { n.messages = append(n.messages, message) }

func activeManager(t *testing.T, gw *fakeGateway, notifier state.Notifier, mutate func(*config.ViewConfig)) *state.FileManager {
	t.Helper()
	fm := state.NewFileManager(gw, nil, state.Options{Notifier: notifier})
	cfg := config.NewViewConfig()
	cfg.RecordID = "001R"
	cfg.AllowUpload = true
	cfg.AllowDownload = true
	if mutate != nil {
		mutate(&cfg)
	}
	if err := fm.Activate(context.Background(), cfg); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	return fm
}

func tempFiles(t *testing.T, names ...string) []UploadRequest {
	t.Helper()
	dir := t.TempDir()
	reqs := make([]UploadRequest, 0, len(names))
	for _, name := range names {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte("content of "+name), 0o600); err != nil {
			t.Fatal(err)
		}
		reqs = append(reqs, UploadRequest{LocalPath: p})
	}
	return reqs
}

func TestNewUploadServiceWorkers(t *testing.T) {
	tests := []struct {
		requested int
		want      int
	}{
		{0, constants.DefaultUploadWorkers},
		{-3, constants.DefaultUploadWorkers},
		{2, 2},
		{constants.MaxUploadWorkers + 10, constants.MaxUploadWorkers},
	}
	for _, tt := range tests {
		s := NewUploadService(&fakeUploader{}, nil, nil, UploadServiceConfig{Workers: tt.requested})
		if s.Workers() != tt.want {
			t.Errorf("Workers(%d) = %d, want %d", tt.requested, s.Workers(), tt.want)
		}
	}
}

func TestUploadFilesKeepsRequestOrder(t *testing.T) {
	uploader := &fakeUploader{failFor: "b.pdf"}
	s := NewUploadService(uploader, nil, nil, UploadServiceConfig{Workers: 2})

	reqs := tempFiles(t, "a.pdf", "b.pdf", "c.pdf")
	reqs = append(reqs, UploadRequest{LocalPath: filepath.Join(t.TempDir(), "missing.pdf")})

	results := s.UploadFiles(context.Background(), "001R", reqs, nil)
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}

	wantStates := []TransferState{TransferStateCompleted, TransferStateFailed, TransferStateCompleted, TransferStateFailed}
	for i, r := range results {
		if r.State != wantStates[i] {
			t.Errorf("result %d state = %s, want %s", i, r.State, wantStates[i])
		}
		if r.TaskID == "" {
			t.Errorf("result %d has no task id", i)
		}
	}
	if results[0].File.DocumentID != "doc-a.pdf" || results[2].File.DocumentID != "doc-c.pdf" {
		t.Errorf("unexpected descriptors %+v %+v", results[0].File, results[2].File)
	}
	if uploader.calls.Load() != 3 {
		t.Errorf("missing file should not reach the uploader, calls = %d", uploader.calls.Load())
	}

	succeeded := Succeeded(results)
	if len(succeeded) != 2 || succeeded[0].Name != "a.pdf" || succeeded[1].Name != "c.pdf" {
		t.Errorf("Succeeded() = %+v", succeeded)
	}
	if err := Failures(results); err == nil || !strings.Contains(err.Error(), "gateway unavailable") {
		t.Errorf("Failures() = %v", err)
	}

	stats := s.Stats()
	if stats.Completed != 2 || stats.Failed != 2 || stats.Total() != 4 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestUploadFilesRespectsWorkerLimit(t *testing.T) {
	uploader := &fakeUploader{delay: 20 * time.Millisecond}
	s := NewUploadService(uploader, nil, nil, UploadServiceConfig{Workers: 2})

	results := s.UploadFiles(context.Background(), "001R", tempFiles(t, "1", "2", "3", "4", "5", "6"), nil)

	if err := Failures(results); err != nil {
		t.Fatalf("unexpected failures: %v", err)
	}
	if max := uploader.maxActive.Load(); max > 2 {
		t.Errorf("max concurrent uploads = %d, want <= 2", max)
	}
}

func TestUploadFilesCancelled(t *testing.T) {
	s := NewUploadService(&fakeUploader{}, nil, nil, UploadServiceConfig{Workers: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The single slot is free, so a cancelled context may still win the
	// select for the first file; fill the slot to force the cancel path.
	s.semaphore <- struct{}{}
	results := s.UploadFiles(ctx, "001R", tempFiles(t, "a.pdf"), nil)
	<-s.semaphore

	if results[0].State != TransferStateCancelled || !errors.Is(results[0].Err, context.Canceled) {
		t.Errorf("unexpected result %+v", results[0])
	}
}

func TestUploadPublishesTransferEvents(t *testing.T) {
	bus := events.NewEventBus(50)
	defer bus.Close()
	started := bus.Subscribe(events.EventTransferStarted)
	completed := bus.Subscribe(events.EventTransferCompleted)

	s := NewUploadService(&fakeUploader{}, bus, nil, UploadServiceConfig{})
	results := s.UploadFiles(context.Background(), "001R", tempFiles(t, "a.pdf"), nil)

	for _, ch := range []<-chan events.Event{started, completed} {
		select {
		case e := <-ch:
			te := e.(*events.TransferEvent)
			if te.TaskID != results[0].TaskID || te.TaskType != "upload" || te.Name != "a.pdf" {
				t.Errorf("unexpected event %+v", te)
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for transfer event")
		}
	}
}

func TestUploadToRecordReloadsList(t *testing.T) {
	gw := &fakeGateway{}
	notifier := &spyNotifier{}
	fm := activeManager(t, gw, notifier, nil)
	if err := fm.OpenUploadModal(); err != nil {
		t.Fatal(err)
	}

	s := NewUploadService(&fakeUploader{}, nil, nil, UploadServiceConfig{})
	results, err := s.UploadToRecord(context.Background(), fm, tempFiles(t, "a.pdf"), nil)
	if err != nil {
		t.Fatalf("UploadToRecord() error = %v", err)
	}
	if len(results) != 1 || results[0].State != TransferStateCompleted {
		t.Fatalf("unexpected results %+v", results)
	}
	if gw.fetchCount() != 2 {
		t.Errorf("expected a refetch after upload, fetches = %d", gw.fetchCount())
	}
	if len(notifier.messages) != 1 || notifier.messages[0] != constants.SuccessMessage {
		t.Errorf("unexpected notifications %v", notifier.messages)
	}
	if fm.View().ShowFileModal {
		t.Error("upload modal should close")
	}
}

func TestUploadToRecordAllFailedSkipsReload(t *testing.T) {
	gw := &fakeGateway{}
	fm := activeManager(t, gw, nil, nil)

	s := NewUploadService(&fakeUploader{failFor: "a.pdf"}, nil, nil, UploadServiceConfig{})
	_, err := s.UploadToRecord(context.Background(), fm, tempFiles(t, "a.pdf"), nil)
	if err == nil {
		t.Fatal("expected upload error")
	}
	if gw.fetchCount() != 1 {
		t.Errorf("no file succeeded, fetches = %d, want 1", gw.fetchCount())
	}
}

func TestUploadToRecordPreconditions(t *testing.T) {
	s := NewUploadService(&fakeUploader{}, nil, nil, UploadServiceConfig{})
	gw := &fakeGateway{}

	fm := activeManager(t, gw, nil, func(c *config.ViewConfig) { c.AllowUpload = false })
	if _, err := s.UploadToRecord(context.Background(), fm, tempFiles(t, "a.pdf"), nil); !errors.Is(err, ErrUploadUnavailable) {
		t.Errorf("expected ErrUploadUnavailable, got %v", err)
	}
	if _, err := s.UploadToRecord(context.Background(), fm, nil, nil); !errors.Is(err, ErrNoFiles) {
		t.Errorf("expected ErrNoFiles, got %v", err)
	}

	fm.Deactivate()
	if _, err := s.UploadToRecord(context.Background(), fm, tempFiles(t, "a.pdf"), nil); !errors.Is(err, state.ErrNotActive) {
		t.Errorf("expected ErrNotActive, got %v", err)
	}
}

type fakeDownloader struct {
	body     string
	size     int64
	fileName string
	err      error
	gotIDs   []string
}

func (d *fakeDownloader) Download(ctx context.Context, fileIDs []string) (*api.Download, error) {
	d.gotIDs = fileIDs
	if d.err != nil {
		return nil, d.err
	}
	return &api.Download{
		Body:     io.NopCloser(strings.NewReader(d.body)),
		Size:     d.size,
		FileName: d.fileName,
	}, nil
}

type countingReporter struct {
	started, finished bool
	last              int64
	err               error
}

func (r *countingReporter) Start(total int64, description string) { r.started = true }
func (r *countingReporter) Update(current int64)                  { r.last = current }
func (r *countingReporter) Finish()                               { r.finished = true }
func (r *countingReporter) Error(err error)                       { r.err = err }
func (r *countingReporter) SetDescription(desc string)            {}

func TestDownloadWritesFile(t *testing.T) {
	dl := &fakeDownloader{body: "zipdata", size: 7, fileName: "files.zip"}
	s := NewDownloadService(dl, nil, nil)
	dir := t.TempDir()
	reporter := &countingReporter{}

	out, err := s.Download(context.Background(), []string{"068A", "068B"}, dir, reporter)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if out != filepath.Join(dir, "files.zip") {
		t.Errorf("path = %q", out)
	}
	data, err := os.ReadFile(out)
	if err != nil || string(data) != "zipdata" {
		t.Errorf("file content %q, err %v", data, err)
	}
	if !reporter.started || !reporter.finished || reporter.last != 7 {
		t.Errorf("unexpected reporter state %+v", reporter)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestDownloadShortBodyLeavesNothing(t *testing.T) {
	dl := &fakeDownloader{body: "zip", size: 7, fileName: "files.zip"}
	s := NewDownloadService(dl, nil, nil)
	dir := t.TempDir()
	reporter := &countingReporter{}

	if _, err := s.Download(context.Background(), []string{"068A"}, dir, reporter); err == nil {
		t.Fatal("expected short download error")
	}
	if reporter.err == nil {
		t.Error("reporter should see the error")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("expected empty dir, got %v", entries)
	}
}

func TestDownloadSelected(t *testing.T) {
	dl := &fakeDownloader{body: "x", size: -1}
	s := NewDownloadService(dl, nil, nil)
	fm := activeManager(t, &fakeGateway{}, nil, nil)

	if _, err := s.DownloadSelected(context.Background(), fm, t.TempDir(), nil); !errors.Is(err, ErrNothingSelected) {
		t.Errorf("expected ErrNothingSelected, got %v", err)
	}

	rows := []models.RowRef{{FileID: "068B", ContentDocumentID: "069B"}}
	if err := fm.SelectRows(rows); err != nil {
		t.Fatal(err)
	}
	out, err := s.DownloadSelected(context.Background(), fm, t.TempDir(), nil)
	if err != nil {
		t.Fatalf("DownloadSelected() error = %v", err)
	}
	if filepath.Base(out) != "068B" || len(dl.gotIDs) != 1 || dl.gotIDs[0] != "068B" {
		t.Errorf("unexpected download %q of %v", out, dl.gotIDs)
	}

	disabled := activeManager(t, &fakeGateway{}, nil, func(c *config.ViewConfig) { c.AllowDownload = false })
	if _, err := s.DownloadSelected(context.Background(), disabled, t.TempDir(), nil); !errors.Is(err, ErrDownloadDisabled) {
		t.Errorf("expected ErrDownloadDisabled, got %v", err)
	}
}

func TestDownloadName(t *testing.T) {
	if got := downloadName("../../etc/passwd", []string{"a"}); got != "passwd" {
		t.Errorf("traversal not stripped: %q", got)
	}
	if got := downloadName("", []string{"068A"}); got != "068A" {
		t.Errorf("single id = %q", got)
	}
	if got := downloadName("", []string{"068A", "068B"}); !strings.HasPrefix(got, "files-") || !strings.HasSuffix(got, ".zip") {
		t.Errorf("archive name = %q", got)
	}
}
