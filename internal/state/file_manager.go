package state

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rescale/record-files/internal/columns"
	"github.com/rescale/record-files/internal/config"
	"github.com/rescale/record-files/internal/constants"
	"github.com/rescale/record-files/internal/events"
	"github.com/rescale/record-files/internal/format"
	"github.com/rescale/record-files/internal/logging"
	"github.com/rescale/record-files/internal/models"
	"github.com/rescale/record-files/internal/navigation"
)

// Options carries the optional collaborators of a FileManager.
type Options struct {
	Navigator Navigator
	Notifier  Notifier
	Logger    *logging.Logger

	// Location renders modification dates; nil means local time
	Location *time.Location
}

// FileManager is the observable state machine behind a record's file list.
// It moves Idle -> Loading -> Loaded|Errored and back to Loading on every
// refresh. Modal flags are independent of the load phase.
//
// Gateway calls run without holding the lock. A response that arrives after
// Deactivate (or after a later Activate) is dropped without touching state.
// Thread-safe for concurrent access.
type FileManager struct {
	gateway   Gateway
	eventBus  *events.EventBus
	navigator Navigator
	notifier  Notifier
	logger    *logging.Logger
	location  *time.Location

	cfg     config.ViewConfig
	columns []columns.Column

	phase         Phase
	files         []models.FileRecord
	selection     []models.RowRef
	selectedRowID string
	errMsg        string
	filesLoaded   bool
	showSpinner   bool

	showFileModal       bool
	showDeleteModal     bool
	showRemoveFileModal bool

	active     bool
	generation uint64

	mu sync.RWMutex
}

// NewFileManager creates an inactive FileManager.
func NewFileManager(gateway Gateway, eventBus *events.EventBus, opts Options) *FileManager {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	return &FileManager{
		gateway:   gateway,
		eventBus:  eventBus,
		navigator: opts.Navigator,
		notifier:  opts.Notifier,
		logger:    logger,
		location:  loc,
		phase:     PhaseIdle,
	}
}

// Activate fixes the view configuration, builds the columns and loads the
// file list. Activating an active manager starts over with the new config.
func (m *FileManager) Activate(ctx context.Context, cfg config.ViewConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("activate: %w", err)
	}
	cfg = cfg.Normalized()

	m.mu.Lock()
	m.cfg = cfg
	m.columns = columns.Build(cfg)
	m.resetLocked()
	m.showSpinner = true
	m.active = true
	m.generation++
	m.publishLocked("activate")
	ncols := len(m.columns)
	m.mu.Unlock()

	m.logger.Debug().
		Str("recordId", cfg.RecordID).
		Int("columns", ncols).
		Msg("File manager activated")

	return m.Fetch(ctx)
}

// Deactivate tears the state down. Outstanding gateway calls complete into
// nothing.
func (m *FileManager) Deactivate() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return
	}
	m.active = false
	m.generation++
	m.resetLocked()
}

// IsActive reports whether Activate has run and Deactivate has not.
func (m *FileManager) IsActive() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// Fetch reloads the file list. On success files are replaced and the
// selection and error are cleared; on failure the fetch message is set.
// filesLoaded and the spinner are settled on both paths.
func (m *FileManager) Fetch(ctx context.Context) error {
	gen, cfg, err := m.begin("fetch_started", func() error {
		m.phase = PhaseLoading
		m.showSpinner = true
		return nil
	})
	if err != nil {
		return err
	}

	infos, callErr := m.gateway.GetFileInfos(ctx, cfg.RecordID)
	opErr := wrapOperation(ErrorKindFetch, callErr)

	var records []models.FileRecord
	if callErr == nil {
		records = m.decorate(infos, cfg.IsCommunity)
	}

	applied := m.settle("fetch", gen, callErr,
		func() {
			m.files = records
			m.selection = nil
			m.errMsg = ""
			m.phase = PhaseLoaded
		},
		func() {
			m.errMsg = opErr.UserMessage()
			m.phase = PhaseErrored
		},
		m.finishLocked,
	)

	if applied && callErr == nil {
		m.logger.Debug().Str("recordId", cfg.RecordID).Int("files", len(records)).Msg("Files loaded")
	}
	return m.report(opErr, applied)
}

// Refresh re-runs Fetch.
func (m *FileManager) Refresh(ctx context.Context) error {
	return m.Fetch(ctx)
}

// SelectRows replaces the selection with rows, in the given order.
func (m *FileManager) SelectRows(rows []models.RowRef) error {
	selection := make([]models.RowRef, len(rows))
	copy(selection, rows)

	return m.mutate("select_rows", func() {
		m.selection = selection
	})
}

// TriggerRowAction runs a row menu action. Unknown action names are ignored.
func (m *FileManager) TriggerRowAction(row models.RowRef, action string) error {
	switch action {
	case constants.ActionView, constants.ActionEdit, constants.ActionRemoveFromRecord:
	default:
		m.logger.Debug().Str("action", action).Msg("Ignoring unknown row action")
		return nil
	}

	var rowID string
	err := m.mutate("row_action", func() {
		m.selectedRowID = row.ContentDocumentID
		rowID = m.selectedRowID
		if action == constants.ActionRemoveFromRecord {
			m.showRemoveFileModal = true
		}
	})
	if err != nil {
		return err
	}

	if m.navigator == nil {
		return nil
	}
	switch action {
	case constants.ActionView:
		m.navigator.NavigateToPreview(rowID)
	case constants.ActionEdit:
		m.navigator.NavigateToRecordPage(rowID)
	}
	return nil
}

// ConfirmRemove unlinks the row under the remove modal from the record.
// The file list is not reloaded afterwards.
func (m *FileManager) ConfirmRemove(ctx context.Context) error {
	var rowID string
	gen, cfg, err := m.begin("remove_started", func() error {
		if m.selectedRowID == "" {
			return ErrNoRowSelected
		}
		rowID = m.selectedRowID
		m.showSpinner = true
		return nil
	})
	if err != nil {
		return err
	}

	callErr := m.gateway.RemoveFileFromRecord(ctx, rowID, cfg.RecordID)
	opErr := wrapOperation(ErrorKindRemove, callErr)

	applied := m.settle("remove", gen, callErr,
		func() { m.errMsg = "" },
		func() { m.errMsg = opErr.UserMessage() },
		func() {
			m.finishLocked()
			m.closeRemoveModalLocked()
		},
	)

	if applied && callErr == nil {
		m.logger.Info().Str("contentDocumentId", rowID).Str("recordId", cfg.RecordID).Msg("File removed from record")
	}
	return m.report(opErr, applied)
}

// ConfirmDelete deletes every selected file and reloads the list on success.
func (m *FileManager) ConfirmDelete(ctx context.Context) error {
	var ids []string
	gen, _, err := m.begin("delete_started", func() error {
		ids = m.selectedContentDocumentIDsLocked()
		m.showSpinner = true
		return nil
	})
	if err != nil {
		return err
	}

	callErr := m.gateway.DeleteSelectedFiles(ctx, ids)
	opErr := wrapOperation(ErrorKindDelete, callErr)

	applied := m.settle("delete", gen, callErr,
		func() { m.errMsg = "" },
		func() { m.errMsg = opErr.UserMessage() },
		func() {
			m.finishLocked()
			m.showDeleteModal = false
		},
	)

	if !applied || callErr != nil {
		return m.report(opErr, applied)
	}
	m.logger.Info().Int("count", len(ids)).Msg("Files deleted")
	return m.Fetch(ctx)
}

// UploadFinished reports a completed upload, closes the upload modal and
// reloads the list.
func (m *FileManager) UploadFinished(ctx context.Context, files []models.UploadedFile) error {
	if !m.IsActive() {
		return ErrNotActive
	}

	m.logger.Info().Int("files", len(files)).Msg("Upload finished")
	if m.notifier != nil {
		m.notifier.NotifySuccess(constants.SuccessMessage)
	}

	if err := m.mutate("upload_finished", func() { m.showFileModal = false }); err != nil {
		return err
	}
	return m.Fetch(ctx)
}

// OpenUploadModal shows the upload dialog.
func (m *FileManager) OpenUploadModal() error {
	return m.mutate("open_upload_modal", func() { m.showFileModal = true })
}

// CloseUploadModal hides the upload dialog.
func (m *FileManager) CloseUploadModal() error {
	return m.mutate("close_upload_modal", func() { m.showFileModal = false })
}

// OpenDeleteModal shows the delete confirmation.
func (m *FileManager) OpenDeleteModal() error {
	return m.mutate("open_delete_modal", func() { m.showDeleteModal = true })
}

// CloseDeleteModal hides the delete confirmation.
func (m *FileManager) CloseDeleteModal() error {
	return m.mutate("close_delete_modal", func() { m.showDeleteModal = false })
}

// CloseRemoveModal hides the remove confirmation and forgets its row.
func (m *FileManager) CloseRemoveModal() error {
	return m.mutate("close_remove_modal", m.closeRemoveModalLocked)
}

// View returns a snapshot of the current state.
func (m *FileManager) View() View {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.viewLocked()
}

// Config returns the active view configuration.
func (m *FileManager) Config() config.ViewConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.Normalized()
}

// Files returns a copy of the decorated file list.
func (m *FileManager) Files() []models.FileRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.FileRecord(nil), m.files...)
}

// FindFile looks a record up by content document id.
func (m *FileManager) FindFile(contentDocumentID string) (models.FileRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, f := range m.files {
		if f.ContentDocumentID == contentDocumentID {
			return f, true
		}
	}
	return models.FileRecord{}, false
}

// IsDownloadEnabled reports allowDownload with a non-empty selection.
func (m *FileManager) IsDownloadEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isDownloadEnabledLocked()
}

// IsDeleteEnabled reports allowDelete with a non-empty selection.
func (m *FileManager) IsDeleteEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isDeleteEnabledLocked()
}

// DownloadLink addresses the selected files.
func (m *FileManager) DownloadLink() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return navigation.DownloadPath(m.selectedFileIDsLocked())
}

// Title is the configured title, with the file count when files are present.
func (m *FileManager) Title() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.titleLocked()
}

// VisibleFiles returns the leading rows shown by the compact list.
func (m *FileManager) VisibleFiles() []models.FileRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.FileRecord(nil), m.files[:m.visibleRowsLocked()]...)
}

// begin runs fn under the lock if the manager is active, publishes the
// resulting view and returns the generation the caller must settle against.
// An error from fn aborts without a transition.
func (m *FileManager) begin(reason string, fn func() error) (uint64, config.ViewConfig, error) {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return 0, config.ViewConfig{}, ErrNotActive
	}
	if err := fn(); err != nil {
		m.mu.Unlock()
		return 0, config.ViewConfig{}, err
	}
	gen := m.generation
	cfg := m.cfg
	m.publishLocked(reason)
	m.mu.Unlock()

	return gen, cfg, nil
}

// settle applies a gateway outcome: onSuccess or onFailure, then cleanup,
// which runs on both paths. Outcomes from an older generation are dropped.
func (m *FileManager) settle(reason string, gen uint64, err error, onSuccess, onFailure, cleanup func()) bool {
	m.mu.Lock()
	if !m.active || gen != m.generation {
		m.mu.Unlock()
		m.logger.Debug().Str("operation", reason).Msg("Dropping late gateway response")
		return false
	}

	func() {
		defer cleanup()
		if err != nil {
			onFailure()
			return
		}
		onSuccess()
	}()

	m.publishLocked(reason)
	m.mu.Unlock()

	return true
}

// mutate applies fn under the lock and publishes the result.
func (m *FileManager) mutate(reason string, fn func()) error {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return ErrNotActive
	}
	fn()
	m.publishLocked(reason)
	m.mu.Unlock()

	return nil
}

// report logs the cause of a failed operation and publishes it when the
// outcome was applied. It returns nil for a nil opErr.
func (m *FileManager) report(opErr *OperationError, applied bool) error {
	if opErr == nil {
		return nil
	}
	m.logger.Error().Err(opErr.Err).Str("operation", string(opErr.Kind)).Msg(opErr.UserMessage())
	if applied && m.eventBus != nil {
		m.eventBus.Publish(NewOperationErrorEvent(opErr))
	}
	return opErr
}

// publishLocked snapshots the view and publishes it before the lock is
// released, so subscribers see snapshots in transition order. Publish never
// blocks.
func (m *FileManager) publishLocked(reason string) {
	if m.eventBus != nil {
		m.eventBus.Publish(NewViewChangedEvent(reason, m.viewLocked()))
	}
}

func wrapOperation(kind ErrorKind, err error) *OperationError {
	if err == nil {
		return nil
	}
	return &OperationError{Kind: kind, Err: err}
}

// decorate adds display fields. Records repeating a content document id
// are dropped so ids stay unique.
func (m *FileManager) decorate(infos []models.FileInfo, community bool) []models.FileRecord {
	records := make([]models.FileRecord, 0, len(infos))
	seen := make(map[string]bool, len(infos))

	for _, info := range infos {
		if seen[info.ContentDocumentID] {
			m.logger.Warn().Str("contentDocumentId", info.ContentDocumentID).Msg("Skipping duplicate file record")
			continue
		}
		seen[info.ContentDocumentID] = true

		records = append(records, models.FileRecord{
			FileInfo:                  info,
			FileSize:                  format.FormatContentSize(info.ContentSize),
			FormattedLastModifiedDate: format.FormatDateIn(info.LastModifiedDate, m.location),
			ViewURL:                   navigation.ViewURL(info.ContentDocumentID),
			OwnerURL:                  navigation.OwnerURL(info.OwnerID, community),
		})
	}
	return records
}

func (m *FileManager) resetLocked() {
	m.phase = PhaseIdle
	m.files = nil
	m.selection = nil
	m.selectedRowID = ""
	m.errMsg = ""
	m.filesLoaded = false
	m.showSpinner = false
	m.showFileModal = false
	m.showDeleteModal = false
	m.showRemoveFileModal = false
}

func (m *FileManager) finishLocked() {
	m.filesLoaded = true
	m.showSpinner = false
}

func (m *FileManager) closeRemoveModalLocked() {
	m.selectedRowID = ""
	m.showRemoveFileModal = false
}

func (m *FileManager) selectedFileIDsLocked() []string {
	ids := make([]string, len(m.selection))
	for i, row := range m.selection {
		ids[i] = row.FileID
	}
	return ids
}

func (m *FileManager) selectedContentDocumentIDsLocked() []string {
	ids := make([]string, len(m.selection))
	for i, row := range m.selection {
		ids[i] = row.ContentDocumentID
	}
	return ids
}

func (m *FileManager) isDownloadEnabledLocked() bool {
	return m.cfg.AllowDownload && len(m.selection) > 0
}

func (m *FileManager) isDeleteEnabledLocked() bool {
	return m.cfg.AllowDelete && len(m.selection) > 0
}

func (m *FileManager) titleLocked() string {
	title := m.cfg.Title
	if title == "" {
		title = constants.DefaultTitle
	}
	if len(m.files) > 0 {
		return title + " (" + strconv.Itoa(len(m.files)) + ")"
	}
	return title
}

func (m *FileManager) titleURLLocked() string {
	if m.cfg.IsCommunity {
		return ""
	}
	return navigation.RecordRelatedListURL(m.cfg.ObjectAPIName, m.cfg.RecordID)
}

func (m *FileManager) visibleRowsLocked() int {
	n := len(m.files)
	if limit := m.cfg.ShowNumberOfRecords; limit > 0 && limit < n {
		return limit
	}
	return n
}

func (m *FileManager) viewLocked() View {
	return View{
		Phase:    m.phase,
		Title:    m.titleLocked(),
		TitleURL: m.titleURLLocked(),
		Columns:  columns.Clone(m.columns),
		Files:    append([]models.FileRecord(nil), m.files...),

		VisibleRows: m.visibleRowsLocked(),

		SelectedFileIDs:            m.selectedFileIDsLocked(),
		SelectedContentDocumentIDs: m.selectedContentDocumentIDsLocked(),
		SelectedRowID:              m.selectedRowID,

		Error:       m.errMsg,
		FilesLoaded: m.filesLoaded,
		ShowSpinner: m.showSpinner,

		ShowFileModal:       m.showFileModal,
		ShowDeleteModal:     m.showDeleteModal,
		ShowRemoveFileModal: m.showRemoveFileModal,

		IsDownloadEnabled:   m.isDownloadEnabledLocked(),
		IsDeleteEnabled:     m.isDeleteEnabledLocked(),
		IsDeleteDisabled:    !m.isDeleteEnabledLocked(),
		ShowTableCheckbox:   m.cfg.AllowDownload || m.cfg.AllowDelete,
		IsFileUploadEnabled: m.cfg.AllowUpload,
		ShowViewAll:         !m.cfg.IsCommunity && len(m.files) > 0,
		ShowRefreshIcon:     m.cfg.ShowRefreshIcon,
		Multiple:            m.cfg.Multiple,
		IsCommunity:         m.cfg.IsCommunity,

		DownloadLink:    navigation.DownloadPath(m.selectedFileIDsLocked()),
		AcceptedFormats: append([]string(nil), m.cfg.AcceptedFormats...),
	}
}
