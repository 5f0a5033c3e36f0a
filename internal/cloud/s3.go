package cloud

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/rescale/record-files/internal/config"
	"github.com/rescale/record-files/internal/http"
	"github.com/rescale/record-files/internal/logging"
	"github.com/rescale/record-files/internal/models"
)

const defaultS3Region = "us-east-1"

// S3Uploader puts files into an S3 bucket (or an S3-compatible endpoint).
// The object key becomes the document id and the version id, or the ETag
// on unversioned buckets, becomes the content version id.
type S3Uploader struct {
	client *s3.Client
	bucket string
	prefix string
	policy http.RetryPolicy
	logger *logging.Logger
}

// NewS3Uploader builds an S3 client that shares the proxy-aware transfer
// transport. Static keys from the config take precedence over the default
// AWS credential chain.
func NewS3Uploader(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*S3Uploader, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	storage := cfg.Storage
	if storage.S3Bucket == "" {
		return nil, config.ErrMissingS3Bucket
	}

	httpClient, err := http.CreateTransferClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	region := storage.S3Region
	if region == "" {
		region = defaultS3Region
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
		awsconfig.WithHTTPClient(httpClient),
	}
	if storage.S3AccessKey != "" && storage.S3SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(storage.S3AccessKey, storage.S3SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if storage.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(storage.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	logger.Debug().
		Str("bucket", storage.S3Bucket).
		Str("region", region).
		Str("endpoint", storage.S3Endpoint).
		Msg("S3 uploader ready")

	return &S3Uploader{
		client: client,
		bucket: storage.S3Bucket,
		prefix: storage.S3Prefix,
		policy: http.DefaultRetryPolicy(),
		logger: logger,
	}, nil
}

func (u *S3Uploader) Backend() string { return config.BackendS3 }

// Upload puts the file under <prefix>/<recordID>/<name>.
func (u *S3Uploader) Upload(ctx context.Context, params UploadParams) (models.UploadedFile, error) {
	name := params.RemoteName()
	key := objectKey(u.prefix, params.RecordID, name)
	timer := StartTimer(nil, "S3 upload "+key)

	policy := u.policy
	policy.OnRetry = func(attempt int, err error, errType http.ErrorType) {
		u.logger.Warn().Err(err).
			Str("key", key).
			Int("attempt", attempt).
			Str("errorType", http.ErrorTypeName(errType)).
			Msg("Retrying S3 upload")
		if params.OnRetry != nil {
			params.OnRetry(attempt, err)
		}
	}

	var out *s3.PutObjectOutput
	var size int64
	err := http.ExecuteWithRetry(ctx, policy, func() error {
		f, n, err := openTracked(params.LocalPath, params.Tracker)
		if err != nil {
			return err
		}
		defer f.Close()
		size = n

		input := &s3.PutObjectInput{
			Bucket:        aws.String(u.bucket),
			Key:           aws.String(key),
			Body:          f,
			ContentLength: aws.Int64(n),
			Metadata:      map[string]string{"record-id": params.RecordID},
		}
		if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
			input.ContentType = aws.String(ct)
		}

		out, err = u.client.PutObject(ctx, input)
		return err
	})
	if err != nil {
		return models.UploadedFile{}, fmt.Errorf("failed to upload %s to s3://%s/%s: %w", name, u.bucket, key, err)
	}
	timer.StopWithThroughput(size)

	version := aws.ToString(out.VersionId)
	if version == "" {
		version = trimETag(aws.ToString(out.ETag))
	}
	return models.UploadedFile{
		Name:             name,
		DocumentID:       key,
		ContentVersionID: version,
	}, nil
}
