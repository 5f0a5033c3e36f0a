// Package api is the HTTP client for the remote file gateway.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net"
	nethttp "net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/rescale/record-files/internal/config"
	"github.com/rescale/record-files/internal/constants"
	"github.com/rescale/record-files/internal/http"
	"github.com/rescale/record-files/internal/logging"
	"github.com/rescale/record-files/internal/models"
	"github.com/rescale/record-files/internal/navigation"
	"github.com/rescale/record-files/internal/ratelimit"
)

// Gateway endpoints
const (
	PathGetFileInfos         = "/api/v1/files/getFileInfos"
	PathDeleteSelectedFiles  = "/api/v1/files/deleteSelectedFiles"
	PathRemoveFileFromRecord = "/api/v1/files/removeFileFromRecord"
	PathUpload               = "/api/v1/files/upload"
)

// RequestIDHeader carries a per-call id for correlating gateway logs
const RequestIDHeader = "X-Request-ID"

// retryLogger adapts zerolog to retryablehttp.LeveledLogger. Only warnings
// and errors are kept.
type retryLogger struct {
	logger *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}

// Client implements the file gateway over HTTP.
type Client struct {
	httpClient     *nethttp.Client
	transferClient *nethttp.Client
	config         *config.Config
	baseURL        string
	token          string
	limiter        *ratelimit.RateLimiter
	logger         *logging.Logger
}

// NewClient creates a gateway client. A nil logger discards output.
func NewClient(cfg *config.Config, logger *logging.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		return nil, ErrEmptyBaseURL
	}
	if strings.TrimSpace(cfg.APIToken) == "" {
		return nil, ErrEmptyToken
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	httpClient, err := http.ConfigureHTTPClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}
	transferClient, err := http.CreateTransferClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure transfer client: %w", err)
	}

	c := &Client{
		transferClient: transferClient,
		config:         cfg,
		baseURL:        strings.TrimSuffix(cfg.APIBaseURL, "/"),
		token:          cfg.APIToken,
		limiter:        ratelimit.NewGatewayRateLimiter(),
		logger:         logger,
	}

	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = constants.MaxRetries
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = httpClient
	retryClient.RetryMax = retries
	retryClient.RetryWaitMin = constants.RetryInitialDelay
	retryClient.RetryWaitMax = constants.RetryMaxDelay
	retryClient.Logger = &retryLogger{logger: logger}
	retryClient.CheckRetry = c.checkRetry
	// Hand the final response back so callers can build a StatusError
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	c.httpClient = retryClient.StandardClient()
	return c, nil
}

// GetConfig returns the configuration used by this client.
func (c *Client) GetConfig() *config.Config {
	return c.config
}

// checkRetry never re-sends a request the gateway may have received. Only
// failures to connect are retried. A 429 arms the limiter cooldown so the
// next call the user triggers waits it out.
func (c *Client) checkRetry(ctx context.Context, resp *nethttp.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if resp != nil && resp.StatusCode == nethttp.StatusTooManyRequests {
		gatewayThrottledTotal.Inc()
		cooldown := retryAfter(resp.Header.Get("Retry-After"))
		c.limiter.SetCooldown(cooldown)
		c.logger.Warn().
			Str("path", resp.Request.URL.Path).
			Dur("cooldown", cooldown).
			Msg("Gateway throttled request")
	}
	return isDialError(err), nil
}

// isDialError reports whether err happened before a connection was made.
func isDialError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

// retryAfter parses a Retry-After seconds value, defaulting to one second.
func retryAfter(value string) time.Duration {
	if secs, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return time.Second
}

// doRequest performs an authenticated, rate limited call. Non-2xx
// responses are returned as *StatusError with the body consumed.
func (c *Client) doRequest(ctx context.Context, client *nethttp.Client, operation, method, path string, body io.Reader, contentType string) (*nethttp.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter cancelled: %w", err)
	}

	req, err := nethttp.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set(RequestIDHeader, requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := client.Do(req)
	gatewayRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	if err != nil {
		gatewayRequestsTotal.WithLabelValues(operation, "error").Inc()
		c.logger.Error().Err(err).
			Str("operation", operation).
			Str("requestId", requestID).
			Msg("Gateway call failed")
		return nil, fmt.Errorf("%s request failed: %w", operation, err)
	}
	gatewayRequestsTotal.WithLabelValues(operation, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Debug().
			Str("operation", operation).
			Str("requestId", requestID).
			Int("status", resp.StatusCode).
			Msg("Gateway returned error status")
		return nil, &StatusError{Operation: operation, StatusCode: resp.StatusCode, Body: string(data)}
	}

	c.logger.Debug().
		Str("operation", operation).
		Str("requestId", requestID).
		Dur("elapsed", time.Since(start)).
		Msg("Gateway call completed")
	return resp, nil
}

// postJSON sends payload and decodes the response into out when out is not nil.
func (c *Client) postJSON(ctx context.Context, operation, path string, payload, out interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", operation, err)
	}

	resp, err := c.doRequest(ctx, c.httpClient, operation, nethttp.MethodPost, path, bytes.NewReader(data), "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", operation, err)
	}
	return nil
}

// GetFileInfos lists the files attached to recordID.
func (c *Client) GetFileInfos(ctx context.Context, recordID string) ([]models.FileInfo, error) {
	var files []models.FileInfo
	if err := c.postJSON(ctx, "getFileInfos", PathGetFileInfos, models.RecordRequest{RecordID: recordID}, &files); err != nil {
		return nil, err
	}
	if files == nil {
		files = []models.FileInfo{}
	}
	return files, nil
}

// DeleteSelectedFiles deletes the given content documents.
func (c *Client) DeleteSelectedFiles(ctx context.Context, contentDocumentIDs []string) error {
	ids := contentDocumentIDs
	if ids == nil {
		ids = []string{}
	}
	return c.postJSON(ctx, "deleteSelectedFiles", PathDeleteSelectedFiles, models.FileIDsRequest{FileIDs: ids}, nil)
}

// RemoveFileFromRecord unlinks fileID from recordID without deleting it.
func (c *Client) RemoveFileFromRecord(ctx context.Context, fileID, recordID string) error {
	return c.postJSON(ctx, "removeFileFromRecord", PathRemoveFileFromRecord,
		models.RemoveFileRequest{FileID: fileID, RecordID: recordID}, nil)
}

// UploadFile streams body as a multipart upload attached to recordID. The
// body is not retried; callers reopen the source and call again.
func (c *Client) UploadFile(ctx context.Context, recordID, name string, body io.Reader) ([]models.UploadedFile, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeMultipart(mw, recordID, name, body))
	}()

	resp, err := c.doRequest(ctx, c.transferClient, "upload", nethttp.MethodPost, PathUpload, pr, mw.FormDataContentType())
	// Unblock the writer if the request ended before draining the pipe
	_ = pr.Close()
	if err != nil {
		if StatusCode(err) == nethttp.StatusConflict {
			return nil, fmt.Errorf("%s: %w", name, ErrFileAlreadyExists)
		}
		return nil, err
	}
	defer resp.Body.Close()

	var uploaded []models.UploadedFile
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		return nil, fmt.Errorf("failed to decode upload response: %w", err)
	}
	return uploaded, nil
}

func writeMultipart(mw *multipart.Writer, recordID, name string, body io.Reader) error {
	if err := mw.WriteField("recordId", recordID); err != nil {
		return err
	}
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return err
	}
	n, err := io.Copy(part, body)
	gatewayTransferBytes.WithLabelValues("upload").Add(float64(n))
	if err != nil {
		return err
	}
	return mw.Close()
}

// Download is an open download response. Size is -1 when unknown.
type Download struct {
	Body     io.ReadCloser
	Size     int64
	FileName string
}

// Download opens the download link for fileIDs. The caller closes Body.
func (c *Client) Download(ctx context.Context, fileIDs []string) (*Download, error) {
	if len(fileIDs) == 0 {
		return nil, fmt.Errorf("download: no files selected")
	}

	resp, err := c.doRequest(ctx, c.transferClient, "download", nethttp.MethodGet, navigation.DownloadPath(fileIDs), nil, "")
	if err != nil {
		return nil, err
	}

	name := ""
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		name = params["filename"]
	}

	return &Download{
		Body:     &countingBody{ReadCloser: resp.Body},
		Size:     resp.ContentLength,
		FileName: name,
	}, nil
}

// countingBody records downloaded bytes as they are read.
type countingBody struct {
	io.ReadCloser
}

func (b *countingBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	gatewayTransferBytes.WithLabelValues("download").Add(float64(n))
	return n, err
}
