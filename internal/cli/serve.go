package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rescale/record-files/internal/cloud"
	"github.com/rescale/record-files/internal/constants"
	"github.com/rescale/record-files/internal/server"
	"github.com/rescale/record-files/internal/services"
)

// newServeCmd creates the 'serve' command.
func newServeCmd() *cobra.Command {
	var addr string
	var downloadDir string
	var maxUploadMB int64

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the file list over HTTP",
		Long: `Serve the record's file list as a JSON API with a server-sent event
stream of view changes.

Endpoints:
  GET  /api/v1/view             current view snapshot
  GET  /api/v1/events           server-sent events (view, transfer, toast, navigate)
  POST /api/v1/refresh          reload the file list
  PUT  /api/v1/selection        {"rows":[{"fileId","contentDocumentId"}]}
  POST /api/v1/rows/{id}/actions/{VIEW|EDIT|REMOVE_FROM_RECORD}
  POST /api/v1/remove/confirm   POST /api/v1/remove/cancel
  POST /api/v1/delete/open      POST /api/v1/delete/confirm   POST /api/v1/delete/cancel
  POST /api/v1/upload/open      POST /api/v1/upload           POST /api/v1/upload/cancel
  POST /api/v1/download         download the selection on the server host
  GET  /metrics                 Prometheus metrics
  GET  /health                  liveness`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := GetContext()
			logger := GetLogger()

			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			var uploads *services.UploadService
			uploader, err := cloud.NewUploader(ctx, s.cfg, s.client, logger)
			if err != nil {
				logger.Warn().Err(err).Msg("Upload endpoint disabled")
			} else {
				uploads = services.NewUploadService(uploader, s.bus, logger, services.UploadServiceConfig{
					Workers: s.cfg.Storage.UploadWorkers,
				})
			}
			downloads := services.NewDownloadService(s.client, s.notifier, logger)

			if addr == "" {
				addr = s.cfg.Server.Addr
			}
			if downloadDir == "" {
				downloadDir = filepath.Join(os.TempDir(), "record-files-downloads")
			}

			srv := server.New(s.fm, s.bus, uploads, downloads, logger, server.Config{
				Addr:           addr,
				DownloadDir:    downloadDir,
				MaxUploadBytes: maxUploadMB * constants.MiB,
			})
			fmt.Fprintf(cmd.OutOrStdout(), "Serving record %s on http://%s\n", s.cfg.View.RecordID, srv.Addr())
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, "+constants.DefaultServerAddr+")")
	cmd.Flags().StringVar(&downloadDir, "download-dir", "", "Where the download endpoint saves files")
	cmd.Flags().Int64Var(&maxUploadMB, "max-upload-mb", 0, "Largest accepted upload body in MiB (0 = unlimited)")
	return cmd
}
