package constants

import (
	"time"
)

// User-facing messages. Each gateway failure maps to exactly one of these.
const (
	SuccessMessage     = "All files uploaded successfully!"
	ErrorMessageFetch  = "An error occurred while fetching the file information. Please try again later."
	ErrorMessageDelete = "An error occurred while deleting the file(s). Please try again later."
	ErrorMessageRemove = "An error occurred while removing the file. Please try again later."

	// SuccessTitle is the toast title shown with SuccessMessage
	SuccessTitle = "Success!"
)

// Row action names carried by the action column.
const (
	ActionView             = "VIEW"
	ActionEdit             = "EDIT"
	ActionRemoveFromRecord = "REMOVE_FROM_RECORD"
)

// Host URL layout
const (
	// ContentDocumentViewPrefix - record page of a file's metadata record
	ContentDocumentViewPrefix = "/lightning/r/ContentDocument/"

	// RecordPagePrefix - generic record page prefix (owner links, edit navigation)
	RecordPagePrefix = "/lightning/r/"

	// RelatedFilesListName - related list that holds a record's attached files
	RelatedFilesListName = "AttachedContentDocuments"

	// DownloadPathPrefix - selected file ids are appended, separated by "/"
	DownloadPathPrefix = "/download/"

	// FilePreviewPageName - named host page used for file preview
	FilePreviewPageName = "filePreview"
)

// View defaults
const (
	DefaultTitle               = "Files"
	DefaultShowNumberOfRecords = 5
	DefaultAcceptedFormats     = "pdf,png"
)

// Size units used by the content size formatter
const (
	KiB = 1024
	MiB = 1024 * KiB
	GiB = 1024 * MiB
)

// Event bus buffers
const (
	// EventBusDefaultBuffer - default buffer size for event channels (1000)
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer - maximum buffer size for high-throughput scenarios (5000)
	EventBusMaxBuffer = 5000
)

// Retry configuration
const (
	// MaxRetries - maximum number of retries for transient errors
	MaxRetries = 5

	// RetryInitialDelay - initial delay before first retry (200ms)
	RetryInitialDelay = 200 * time.Millisecond

	// RetryMaxDelay - maximum delay between retries (15s)
	RetryMaxDelay = 15 * time.Second
)

// API and Context Timeouts
const (
	// APIContextTimeout - default timeout for gateway calls (30 seconds)
	APIContextTimeout = 30 * time.Second

	// TransferTimeout - timeout for upload/download operations (30 minutes)
	TransferTimeout = 30 * time.Minute
)

// HTTP Client Timeouts
const (
	// HTTPIdleConnTimeout - how long to keep idle connections open (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake (60 seconds)
	HTTPTLSHandshakeTimeout = 60 * time.Second

	// HTTPExpectContinueTimeout - timeout for 100-continue response (1 second)
	HTTPExpectContinueTimeout = 1 * time.Second

	// HTTPDialTimeout - timeout for establishing connection (30 seconds)
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - keep-alive period for dialer (30 seconds)
	HTTPDialKeepAlive = 30 * time.Second

	// HTTPClientTimeout - overall timeout for non-transfer requests (300 seconds)
	HTTPClientTimeout = 300 * time.Second
)

// Upload concurrency
const (
	// DefaultUploadWorkers - concurrent uploads per UploadService call
	DefaultUploadWorkers = 4

	// MaxUploadWorkers - hard cap on concurrent uploads
	MaxUploadWorkers = 16
)

// Server defaults
const (
	DefaultServerAddr     = "127.0.0.1:8089"
	ServerShutdownTimeout = 10 * time.Second
	ServerReadTimeout     = 15 * time.Second
)
