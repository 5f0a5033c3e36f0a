// Package services runs uploads and downloads for a record's file list.
// It is frontend-agnostic: the CLI passes terminal progress, the GUI and
// server follow transfer events on the bus.
package services

import (
	"errors"
	"time"

	"github.com/rescale/record-files/internal/models"
)

// TransferType identifies whether a transfer is an upload or download.
type TransferType string

const (
	TransferTypeUpload   TransferType = "upload"
	TransferTypeDownload TransferType = "download"
)

// TransferState is the outcome of one transfer.
type TransferState string

const (
	TransferStateCompleted TransferState = "completed"
	TransferStateFailed    TransferState = "failed"
	TransferStateCancelled TransferState = "cancelled"
)

// UploadRequest names one local file to upload.
type UploadRequest struct {
	LocalPath string

	// Name overrides the remote name; empty uses the base name
	Name string
}

// TransferResult is the outcome of one upload.
type TransferResult struct {
	TaskID   string
	Request  UploadRequest
	State    TransferState
	File     models.UploadedFile
	Size     int64
	Err      error
	Duration time.Duration
}

// TransferStats counts finished transfers.
type TransferStats struct {
	Completed int
	Failed    int
	Cancelled int
}

// Total returns the number of finished transfers.
func (s TransferStats) Total() int {
	return s.Completed + s.Failed + s.Cancelled
}

// Errors returned before any transfer starts
var (
	ErrNoFiles           = errors.New("no files to upload")
	ErrNothingSelected   = errors.New("no files selected for download")
	ErrDownloadDisabled  = errors.New("download is not enabled for this view")
	ErrUploadUnavailable = errors.New("upload is not enabled for this view")
)

// Succeeded returns the descriptors of the completed uploads, in order.
func Succeeded(results []TransferResult) []models.UploadedFile {
	files := make([]models.UploadedFile, 0, len(results))
	for _, r := range results {
		if r.State == TransferStateCompleted {
			files = append(files, r.File)
		}
	}
	return files
}

// Failures joins the errors of failed uploads. Nil when all succeeded.
func Failures(results []TransferResult) error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errors.Join(errs...)
}
