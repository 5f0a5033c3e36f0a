package cloud

import (
	"context"
	"fmt"

	"github.com/rescale/record-files/internal/api"
	"github.com/rescale/record-files/internal/http"
	"github.com/rescale/record-files/internal/logging"
	"github.com/rescale/record-files/internal/models"
)

// GatewayUploader posts files to the gateway's multipart upload endpoint.
type GatewayUploader struct {
	client *api.Client
	policy http.RetryPolicy
	logger *logging.Logger
}

func NewGatewayUploader(client *api.Client, logger *logging.Logger) *GatewayUploader {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &GatewayUploader{
		client: client,
		policy: http.DefaultRetryPolicy(),
		logger: logger,
	}
}

func (u *GatewayUploader) Backend() string { return "api" }

// Upload streams the file to the gateway. The file is reopened for every
// attempt because the multipart body cannot be rewound.
func (u *GatewayUploader) Upload(ctx context.Context, params UploadParams) (models.UploadedFile, error) {
	name := params.RemoteName()
	timer := StartTimer(nil, "Gateway upload "+name)

	policy := u.policy
	policy.OnRetry = func(attempt int, err error, errType http.ErrorType) {
		u.logger.Warn().Err(err).
			Str("file", name).
			Int("attempt", attempt).
			Str("errorType", http.ErrorTypeName(errType)).
			Msg("Retrying upload")
		if params.OnRetry != nil {
			params.OnRetry(attempt, err)
		}
	}

	var uploaded []models.UploadedFile
	var size int64
	err := http.ExecuteWithRetry(ctx, policy, func() error {
		f, n, err := openTracked(params.LocalPath, params.Tracker)
		if err != nil {
			return err
		}
		defer f.Close()
		size = n

		uploaded, err = u.client.UploadFile(ctx, params.RecordID, name, f)
		return err
	})
	if err != nil {
		return models.UploadedFile{}, err
	}
	timer.StopWithThroughput(size)

	if len(uploaded) == 0 {
		return models.UploadedFile{}, fmt.Errorf("%s: %w", name, ErrEmptyUploadResponse)
	}
	result := uploaded[0]
	if result.Name == "" {
		result.Name = name
	}
	return result, nil
}
