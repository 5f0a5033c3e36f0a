package cloud

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"

	"github.com/rescale/record-files/internal/config"
	"github.com/rescale/record-files/internal/http"
	"github.com/rescale/record-files/internal/logging"
	"github.com/rescale/record-files/internal/models"
)

const azureBlockSize = 8 * 1024 * 1024

// AzureUploader writes block blobs into a container addressed by a SAS URL.
// The blob name becomes the document id and the blob version id, or the
// ETag when versioning is off, becomes the content version id.
type AzureUploader struct {
	client *container.Client
	prefix string
	policy http.RetryPolicy
	logger *logging.Logger
}

// NewAzureUploader builds a container client on the shared transfer
// transport. The SAS token in the URL is the only credential.
func NewAzureUploader(cfg *config.Config, logger *logging.Logger) (*AzureUploader, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cfg.Storage.AzureContainerURL == "" {
		return nil, config.ErrMissingAzureURL
	}

	httpClient, err := http.CreateTransferClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	client, err := container.NewClientWithNoCredential(cfg.Storage.AzureContainerURL, &container.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Transport: httpClient,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}

	return &AzureUploader{
		client: client,
		prefix: cfg.Storage.AzurePrefix,
		policy: http.DefaultRetryPolicy(),
		logger: logger,
	}, nil
}

func (u *AzureUploader) Backend() string { return config.BackendAzure }

// Upload writes the file to <prefix>/<recordID>/<name>.
func (u *AzureUploader) Upload(ctx context.Context, params UploadParams) (models.UploadedFile, error) {
	name := params.RemoteName()
	blobName := objectKey(u.prefix, params.RecordID, name)
	timer := StartTimer(nil, "Azure upload "+blobName)

	policy := u.policy
	policy.OnRetry = func(attempt int, err error, errType http.ErrorType) {
		u.logger.Warn().Err(err).
			Str("blob", blobName).
			Int("attempt", attempt).
			Str("errorType", http.ErrorTypeName(errType)).
			Msg("Retrying Azure upload")
		if params.OnRetry != nil {
			params.OnRetry(attempt, err)
		}
	}

	var resp blockblob.UploadFileResponse
	var size int64
	err := http.ExecuteWithRetry(ctx, policy, func() error {
		f, n, err := openTracked(params.LocalPath, nil)
		if err != nil {
			return err
		}
		defer f.Close()
		size = n

		opts := &blockblob.UploadFileOptions{
			BlockSize: azureBlockSize,
			Metadata:  map[string]*string{"recordid": &params.RecordID},
		}
		if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
			opts.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: &ct}
		}
		if params.Tracker != nil {
			opts.Progress = params.Tracker.Update
		}

		resp, err = u.client.NewBlockBlobClient(blobName).UploadFile(ctx, f.File, opts)
		return err
	})
	if err != nil {
		return models.UploadedFile{}, fmt.Errorf("failed to upload %s to blob %s: %w", name, blobName, err)
	}
	timer.StopWithThroughput(size)

	version := ""
	if resp.VersionID != nil {
		version = *resp.VersionID
	} else if resp.ETag != nil {
		version = trimETag(string(*resp.ETag))
	}
	return models.UploadedFile{
		Name:             name,
		DocumentID:       blobName,
		ContentVersionID: version,
	}, nil
}
