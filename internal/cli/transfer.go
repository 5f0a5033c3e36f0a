package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rescale/record-files/internal/cloud"
	"github.com/rescale/record-files/internal/constants"
	"github.com/rescale/record-files/internal/format"
	"github.com/rescale/record-files/internal/progress"
	"github.com/rescale/record-files/internal/services"
)

// newUploadCmd creates the 'upload' command.
func newUploadCmd() *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "upload <file> [file...]",
		Short: "Upload files and attach them to the record",
		Long: `Upload local files into the record through the configured storage
backend (api, s3 or azure), then reload the file list.

Examples:
  record-files upload report.pdf
  record-files upload *.png --workers 8`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := GetContext()
			logger := GetLogger()

			for _, path := range args {
				info, err := os.Stat(path)
				if err != nil {
					return fmt.Errorf("cannot upload %s: %w", path, err)
				}
				if info.IsDir() {
					return fmt.Errorf("cannot upload %s: is a directory", path)
				}
			}

			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			view := s.fm.View()
			if !view.IsFileUploadEnabled {
				return services.ErrUploadUnavailable
			}
			if !view.Multiple && len(args) > 1 {
				return fmt.Errorf("this view accepts one file per upload, got %d", len(args))
			}

			uploader, err := cloud.NewUploader(ctx, s.cfg, s.client, logger)
			if err != nil {
				return err
			}
			if workers <= 0 {
				workers = s.cfg.Storage.UploadWorkers
			}
			svc := services.NewUploadService(uploader, s.bus, logger, services.UploadServiceConfig{Workers: workers})

			if err := s.fm.OpenUploadModal(); err != nil {
				return err
			}

			requests := make([]services.UploadRequest, len(args))
			for i, path := range args {
				requests[i] = services.UploadRequest{LocalPath: path, Name: filepath.Base(path)}
			}

			target := fmt.Sprintf("record %s (%s)", s.cfg.View.RecordID, uploader.Backend())
			ui := progress.NewUploadUI(len(requests), target)

			start := time.Now()
			results, err := svc.UploadToRecord(ctx, s.fm, requests, ui)
			printUploadSummary(cmd, results, time.Since(start))
			if err != nil {
				return userError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), constants.SuccessMessage+" "+s.fm.Title())
			return nil
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0, fmt.Sprintf("Concurrent uploads (default from config, max %d)", constants.MaxUploadWorkers))
	return cmd
}

func printUploadSummary(cmd *cobra.Command, results []services.TransferResult, elapsed time.Duration) {
	var ok, failed int
	var bytes int64
	for _, r := range results {
		if r.State == services.TransferStateCompleted {
			ok++
			bytes += r.Size
		} else {
			failed++
		}
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nUploaded %d file(s), %s in %s (%s)",
		ok, format.FormatContentSize(bytes), elapsed.Round(time.Millisecond), cloud.FormatSpeed(bytes, elapsed))
	if failed > 0 {
		fmt.Fprintf(out, ", %d failed", failed)
	}
	fmt.Fprintln(out)
}

// newDownloadCmd creates the 'download' command.
func newDownloadCmd() *cobra.Command {
	var outputDir string
	var linkOnly bool

	cmd := &cobra.Command{
		Use:   "download <id> [id...]",
		Short: "Download files from the record",
		Long: `Select files and download them through the gateway's download link.
Several files arrive as one archive.

Examples:
  record-files download 069xx0000001AbC
  record-files download 069xx0000001AbC 069xx0000001AbD --outdir ./out
  record-files download 069xx0000001AbC --link`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := GetContext()
			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			rows, err := resolveRows(s.fm, args)
			if err != nil {
				return err
			}
			if err := s.fm.SelectRows(rows); err != nil {
				return err
			}
			if !s.fm.IsDownloadEnabled() {
				return services.ErrDownloadDisabled
			}

			out := cmd.OutOrStdout()
			if linkOnly {
				fmt.Fprintln(out, strings.TrimSuffix(s.cfg.APIBaseURL, "/")+s.fm.DownloadLink())
				return nil
			}

			svc := services.NewDownloadService(s.client, s.notifier, GetLogger())
			path, err := svc.DownloadSelected(ctx, s.fm, outputDir, progress.NewCLIProgressTo(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Saved %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "outdir", "o", ".", "Directory to save downloads into")
	cmd.Flags().BoolVar(&linkOnly, "link", false, "Print the download URL instead of downloading")
	return cmd
}
