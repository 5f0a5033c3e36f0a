// Package state provides the observable file manager state machine.
// Every mutation publishes a ViewChangedEvent carrying a full snapshot, so
// any frontend can subscribe and re-render without reaching into the machine.
package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/rescale/record-files/internal/columns"
	"github.com/rescale/record-files/internal/constants"
	"github.com/rescale/record-files/internal/events"
	"github.com/rescale/record-files/internal/models"
)

// State event types
const (
	EventViewChanged    events.EventType = "file_manager_view_changed"
	EventOperationError events.EventType = "file_manager_operation_error"
)

// Phase is the load state of the file list.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseLoaded  Phase = "loaded"
	PhaseErrored Phase = "errored"
)

// Gateway is the remote data service behind the file manager.
type Gateway interface {
	GetFileInfos(ctx context.Context, recordID string) ([]models.FileInfo, error)
	DeleteSelectedFiles(ctx context.Context, contentDocumentIDs []string) error
	RemoveFileFromRecord(ctx context.Context, fileID, recordID string) error
}

// Navigator sends the host to another page. Calls are fire-and-forget.
type Navigator interface {
	NavigateToPreview(contentDocumentID string)
	NavigateToRecordPage(recordID string)
}

// Notifier shows transient success messages. Calls are fire-and-forget.
type Notifier interface {
	NotifySuccess(message string)
}

// Errors returned without a state transition
var (
	ErrNotActive     = errors.New("file manager is not active")
	ErrNoRowSelected = errors.New("no row selected")
)

// ErrorKind identifies which gateway operation failed.
type ErrorKind string

const (
	ErrorKindFetch  ErrorKind = "fetch"
	ErrorKindDelete ErrorKind = "delete"
	ErrorKindRemove ErrorKind = "remove"
)

// UserMessage is the fixed text shown for kind.
func (k ErrorKind) UserMessage() string {
	switch k {
	case ErrorKindFetch:
		return constants.ErrorMessageFetch
	case ErrorKindDelete:
		return constants.ErrorMessageDelete
	case ErrorKindRemove:
		return constants.ErrorMessageRemove
	default:
		return ""
	}
}

// OperationError wraps a gateway failure. Only UserMessage reaches the view.
type OperationError struct {
	Kind ErrorKind
	Err  error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Kind, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// UserMessage returns the fixed user-facing message.
func (e *OperationError) UserMessage() string { return e.Kind.UserMessage() }

// View is an immutable snapshot of everything a renderer needs.
type View struct {
	Phase    Phase               `json:"phase"`
	Title    string              `json:"title"`
	TitleURL string              `json:"titleUrl"`
	Columns  []columns.Column    `json:"columns"`
	Files    []models.FileRecord `json:"files"`

	// VisibleRows is how many leading rows the compact list shows
	VisibleRows int `json:"visibleRows"`

	SelectedFileIDs            []string `json:"selectedFileIds"`
	SelectedContentDocumentIDs []string `json:"selectedContentDocumentIds"`
	SelectedRowID              string   `json:"selectedRowId"`

	Error       string `json:"error,omitempty"`
	FilesLoaded bool   `json:"filesLoaded"`
	ShowSpinner bool   `json:"showSpinner"`

	ShowFileModal       bool `json:"showFileModal"`
	ShowDeleteModal     bool `json:"showDeleteModal"`
	ShowRemoveFileModal bool `json:"showRemoveFileModal"`

	IsDownloadEnabled   bool `json:"isDownloadEnabled"`
	IsDeleteEnabled     bool `json:"isDeleteEnabled"`
	IsDeleteDisabled    bool `json:"isDeleteDisabled"`
	ShowTableCheckbox   bool `json:"showTableCheckbox"`
	IsFileUploadEnabled bool `json:"isFileUploadEnabled"`
	ShowViewAll         bool `json:"showViewAll"`
	ShowRefreshIcon     bool `json:"showRefreshIcon"`
	Multiple            bool `json:"multiple"`
	IsCommunity         bool `json:"isCommunity"`

	DownloadLink    string   `json:"downloadLink"`
	AcceptedFormats []string `json:"acceptedFormats"`
}

// ViewChangedEvent is published after every state mutation.
type ViewChangedEvent struct {
	events.BaseEvent
	// Reason names the operation that caused the change, e.g. "fetch"
	Reason string
	View   View
}

// OperationErrorEvent is published when a gateway call fails.
type OperationErrorEvent struct {
	events.BaseEvent
	Kind    ErrorKind
	Message string
	Error   error
}

// NewViewChangedEvent creates a ViewChangedEvent.
func NewViewChangedEvent(reason string, view View) *ViewChangedEvent {
	return &ViewChangedEvent{
		BaseEvent: events.NewBaseEvent(EventViewChanged),
		Reason:    reason,
		View:      view,
	}
}

// NewOperationErrorEvent creates an OperationErrorEvent.
func NewOperationErrorEvent(err *OperationError) *OperationErrorEvent {
	return &OperationErrorEvent{
		BaseEvent: events.NewBaseEvent(EventOperationError),
		Kind:      err.Kind,
		Message:   err.UserMessage(),
		Error:     err.Err,
	}
}
