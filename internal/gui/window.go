package gui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/google/uuid"

	"github.com/rescale/record-files/internal/constants"
	"github.com/rescale/record-files/internal/events"
	"github.com/rescale/record-files/internal/models"
	"github.com/rescale/record-files/internal/navigation"
	"github.com/rescale/record-files/internal/notify"
	"github.com/rescale/record-files/internal/progress"
	"github.com/rescale/record-files/internal/services"
	"github.com/rescale/record-files/internal/state"
)

// Deps are the collaborators the window drives.
type Deps struct {
	App     fyne.App
	Window  fyne.Window
	Manager *state.FileManager
	Bus     *events.EventBus

	// Uploads is nil when no storage backend could be set up
	Uploads   *services.UploadService
	Downloads *services.DownloadService

	// APIBaseURL resolves host paths into links
	APIBaseURL string
}

// UI renders one file manager. Fields below the widgets are touched only on
// the fyne goroutine.
type UI struct {
	Deps
	ctx    context.Context
	cancel context.CancelFunc

	title       *widget.Hyperlink
	table       *widget.Table
	errorLabel  *widget.Label
	footer      *widget.Label
	viewAllBtn  *widget.Button
	viewAllLink *widget.Hyperlink
	spinner     *widget.Activity
	transfer    *widget.ProgressBar
	statusBar   *StatusBar

	refreshBtn  *widget.Button
	uploadBtn   *widget.Button
	downloadBtn *widget.Button
	deleteBtn   *widget.Button

	view     state.View
	cols     []tableColumn
	rows     []models.FileRecord
	expanded bool
}

// NewUI creates a UI bound to ctx. Stop cancels in-flight gateway calls.
func NewUI(ctx context.Context, deps Deps) *UI {
	ctx, cancel := context.WithCancel(ctx)
	return &UI{Deps: deps, ctx: ctx, cancel: cancel}
}

// Build creates the window content.
func (ui *UI) Build() fyne.CanvasObject {
	ui.title = widget.NewHyperlink("Files", nil)
	ui.title.TextStyle = fyne.TextStyle{Bold: true}

	ui.refreshBtn = widget.NewButtonWithIcon("", theme.ViewRefreshIcon(), ui.onRefresh)
	ui.uploadBtn = NewPrimaryButtonWithIcon("Upload", theme.UploadIcon(), ui.onUpload)
	ui.downloadBtn = widget.NewButtonWithIcon("Download", theme.DownloadIcon(), ui.onDownload)
	ui.deleteBtn = widget.NewButtonWithIcon("Delete", theme.DeleteIcon(), ui.onDelete)
	ui.deleteBtn.Importance = widget.DangerImportance
	ui.spinner = widget.NewActivity()
	ui.spinner.Hide()

	header := container.NewBorder(nil, nil,
		container.NewHBox(ui.title, ui.spinner),
		container.NewHBox(ui.refreshBtn, ui.uploadBtn, ui.downloadBtn, ui.deleteBtn),
	)

	ui.errorLabel = widget.NewLabel("")
	ui.errorLabel.Importance = widget.DangerImportance
	ui.errorLabel.Wrapping = fyne.TextWrapWord
	ui.errorLabel.Hide()

	ui.table = ui.buildTable()

	ui.footer = widget.NewLabel("")
	ui.viewAllBtn = widget.NewButton("Show all", func() {
		ui.expanded = true
		ui.applyView(ui.view)
	})
	ui.viewAllBtn.Hide()
	ui.viewAllLink = widget.NewHyperlink("View all", nil)
	ui.viewAllLink.Hide()

	ui.transfer = widget.NewProgressBar()
	ui.transfer.Hide()
	ui.statusBar = NewStatusBar()

	footer := container.NewVBox(
		container.NewHBox(ui.footer, ui.viewAllBtn, ui.viewAllLink),
		ui.transfer,
		ui.statusBar,
	)

	ui.applyView(ui.Manager.View())

	return container.NewBorder(
		container.NewVBox(header, ui.errorLabel, VerticalSpacer(4)),
		container.NewPadded(footer),
		nil, nil,
		ui.table,
	)
}

func (ui *UI) buildTable() *widget.Table {
	table := widget.NewTableWithHeaders(
		func() (int, int) { return len(ui.rows), len(ui.cols) },
		newCellTemplate,
		ui.updateCell,
	)
	table.ShowHeaderColumn = false
	table.CreateHeader = func() fyne.CanvasObject {
		l := widget.NewLabel("")
		l.TextStyle = fyne.TextStyle{Bold: true}
		return l
	}
	table.UpdateHeader = func(id widget.TableCellID, o fyne.CanvasObject) {
		l := o.(*widget.Label)
		if id.Row >= 0 || id.Col < 0 || id.Col >= len(ui.cols) {
			l.SetText("")
			return
		}
		l.SetText(ui.cols[id.Col].header)
	}
	// Cells carry their own controls; table selection is not used.
	table.OnSelected = func(id widget.TableCellID) { table.UnselectAll() }
	return table
}

// Cell template children, in order.
const (
	cellCheckIndex = iota
	cellLabelIndex
	cellLinkIndex
	cellMenuIndex
)

func newCellTemplate() fyne.CanvasObject {
	label := widget.NewLabel("")
	label.Truncation = fyne.TextTruncateEllipsis
	link := widget.NewButton("", nil)
	link.Importance = widget.LowImportance
	link.Alignment = widget.ButtonAlignLeading
	return container.NewStack(
		widget.NewCheck("", nil),
		label,
		link,
		widget.NewButtonWithIcon("", theme.MoreVerticalIcon(), nil),
	)
}

func (ui *UI) updateCell(id widget.TableCellID, o fyne.CanvasObject) {
	cell := o.(*fyne.Container)
	check := cell.Objects[cellCheckIndex].(*widget.Check)
	label := cell.Objects[cellLabelIndex].(*widget.Label)
	link := cell.Objects[cellLinkIndex].(*widget.Button)
	menu := cell.Objects[cellMenuIndex].(*widget.Button)
	for _, obj := range cell.Objects {
		obj.Hide()
	}
	if id.Row >= len(ui.rows) || id.Col >= len(ui.cols) {
		return
	}

	rec := ui.rows[id.Row]
	col := ui.cols[id.Col]
	switch col.kind {
	case cellCheck:
		check.OnChanged = nil
		check.SetChecked(isSelected(ui.view, rec))
		check.OnChanged = func(on bool) { ui.onSelect(rec, on) }
		check.Show()
	case cellLink:
		link.SetText(cellText(rec, col.column))
		link.OnTapped = func() { ui.triggerRowAction(rec, constants.ActionView) }
		link.Show()
	case cellMenu:
		menu.OnTapped = func() { ui.showRowMenu(rec, col, menu) }
		menu.Show()
	default:
		label.SetText(cellText(rec, col.column))
		label.Show()
	}
}

// applyView redraws everything from v and opens the dialogs v asks for.
func (ui *UI) applyView(v state.View) {
	requests := modalTransitions(ui.view, v)
	ui.view = v
	ui.cols = tableColumns(v)
	ui.rows = rowsShown(v, ui.expanded)

	ui.title.SetText(v.Title)
	ui.title.SetURL(resolveLink(ui.APIBaseURL, v.TitleURL))

	if v.ShowSpinner {
		ui.spinner.Show()
		ui.spinner.Start()
	} else {
		ui.spinner.Stop()
		ui.spinner.Hide()
	}

	ui.statusBar.SetView(v)

	if v.Error != "" {
		ui.errorLabel.SetText(v.Error)
		ui.errorLabel.Show()
	} else {
		ui.errorLabel.Hide()
	}

	setVisible(ui.refreshBtn, v.ShowRefreshIcon)
	setVisible(ui.uploadBtn, v.IsFileUploadEnabled && ui.Uploads != nil)
	setVisible(ui.downloadBtn, v.ShowTableCheckbox)
	setVisible(ui.deleteBtn, v.ShowTableCheckbox)
	setEnabled(ui.downloadBtn, v.IsDownloadEnabled)
	setEnabled(ui.deleteBtn, v.IsDeleteEnabled)

	for i, c := range ui.cols {
		ui.table.SetColumnWidth(i, c.width)
	}
	ui.table.Refresh()

	ui.footer.SetText(footerText(v, ui.expanded))
	setVisible(ui.viewAllBtn, !ui.expanded && v.VisibleRows < len(v.Files))
	if link := resolveLink(ui.APIBaseURL, v.TitleURL); v.ShowViewAll && link != nil {
		ui.viewAllLink.SetURL(link)
		ui.viewAllLink.Show()
	} else {
		ui.viewAllLink.Hide()
	}

	if requests.delete {
		ui.confirmDelete(v)
	}
	if requests.remove {
		ui.confirmRemove(v)
	}
	if requests.upload {
		ui.showUploadDialog(v)
	}
}

func (ui *UI) onRefresh() {
	ui.run("Refreshing...", func() error { return ui.Manager.Refresh(ui.ctx) })
}

func (ui *UI) onSelect(rec models.FileRecord, on bool) {
	refs := toggleSelection(ui.view, rec, on)
	ui.run("", func() error { return ui.Manager.SelectRows(refs) })
}

func (ui *UI) onDelete() {
	ui.run("", ui.Manager.OpenDeleteModal)
}

func (ui *UI) onUpload() {
	ui.run("", ui.Manager.OpenUploadModal)
}

func (ui *UI) onDownload() {
	if ui.Downloads == nil || !ui.view.IsDownloadEnabled {
		return
	}
	dialog.ShowFolderOpen(func(dir fyne.ListableURI, err error) {
		if err != nil {
			ui.showError(err)
			return
		}
		if dir == nil {
			return
		}
		reporter := progress.NewGUIProgress(ui.Bus, uuid.NewString(), string(services.TransferTypeDownload))
		ui.run("Downloading...", func() error {
			path, err := ui.Downloads.DownloadSelected(ui.ctx, ui.Manager, dir.Path(), reporter)
			if err == nil {
				ui.statusBar.Show("Saved "+path, StatusSuccess)
			}
			return err
		})
	}, ui.Window)
}

func (ui *UI) showRowMenu(rec models.FileRecord, col tableColumn, anchor fyne.CanvasObject) {
	if col.column.TypeAttributes == nil {
		return
	}
	items := make([]*fyne.MenuItem, 0, len(col.column.TypeAttributes.RowActions))
	for _, a := range col.column.TypeAttributes.RowActions {
		name := a.Name
		items = append(items, fyne.NewMenuItem(a.Label, func() { ui.triggerRowAction(rec, name) }))
	}
	canvas := ui.Window.Canvas()
	pos := fyne.CurrentApp().Driver().AbsolutePositionForObject(anchor)
	widget.ShowPopUpMenuAtPosition(fyne.NewMenu("", items...), canvas, pos.AddXY(0, anchor.Size().Height))
}

func (ui *UI) triggerRowAction(rec models.FileRecord, action string) {
	ref := rec.Ref()
	ui.run("", func() error { return ui.Manager.TriggerRowAction(ref, action) })
}

func (ui *UI) confirmDelete(v state.View) {
	msg := fmt.Sprintf("Delete %d selected file(s)? This cannot be undone.", len(v.SelectedFileIDs))
	dialog.ShowConfirm("Delete Files", msg, func(ok bool) {
		if !ok {
			ui.run("", ui.Manager.CloseDeleteModal)
			return
		}
		ui.run("Deleting...", func() error { return ui.Manager.ConfirmDelete(ui.ctx) })
	}, ui.Window)
}

func (ui *UI) confirmRemove(v state.View) {
	msg := fmt.Sprintf("Remove %s from this record? The file itself is kept.", fileName(v, v.SelectedRowID))
	dialog.ShowConfirm("Remove File", msg, func(ok bool) {
		if !ok {
			ui.run("", ui.Manager.CloseRemoveModal)
			return
		}
		ui.run("Removing...", func() error { return ui.Manager.ConfirmRemove(ui.ctx) })
	}, ui.Window)
}

// showUploadDialog collects local files and uploads them into the record.
func (ui *UI) showUploadDialog(v state.View) {
	if ui.Uploads == nil {
		ui.run("", ui.Manager.CloseUploadModal)
		return
	}

	var paths []string
	list := widget.NewList(
		func() int { return len(paths) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(i widget.ListItemID, o fyne.CanvasObject) { o.(*widget.Label).SetText(filepath.Base(paths[i])) },
	)
	addBtn := widget.NewButtonWithIcon("Add File...", theme.ContentAddIcon(), func() {
		picker := dialog.NewFileOpen(func(r fyne.URIReadCloser, err error) {
			if err != nil {
				ui.showError(err)
				return
			}
			if r == nil {
				return
			}
			path := r.URI().Path()
			r.Close()
			if v.Multiple {
				paths = append(paths, path)
			} else {
				paths = []string{path}
			}
			list.Refresh()
		}, ui.Window)
		if len(v.AcceptedFormats) > 0 {
			picker.SetFilter(storage.NewExtensionFileFilter(v.AcceptedFormats))
		}
		picker.Show()
	})

	content := container.NewBorder(addBtn, nil, nil, nil, list)
	d := dialog.NewCustomConfirm("Upload Files", "Upload", "Cancel", content, func(ok bool) {
		if !ok || len(paths) == 0 {
			ui.run("", ui.Manager.CloseUploadModal)
			return
		}
		requests := make([]services.UploadRequest, len(paths))
		for i, p := range paths {
			requests[i] = services.UploadRequest{LocalPath: p, Name: filepath.Base(p)}
		}
		ui.run("Uploading...", func() error { return ui.upload(requests) })
	}, ui.Window)
	d.Resize(fyne.NewSize(420, 300))
	d.Show()
}

// upload runs off the fyne goroutine. The modal closes on success through
// the file manager; a batch where nothing succeeded closes it here.
func (ui *UI) upload(requests []services.UploadRequest) error {
	_, err := ui.Uploads.UploadToRecord(ui.ctx, ui.Manager, requests, nil)
	if ui.Manager.View().ShowFileModal {
		if closeErr := ui.Manager.CloseUploadModal(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}
	return err
}

// run calls fn off the fyne goroutine and reports its error in a dialog.
func (ui *UI) run(status string, fn func() error) {
	if status != "" {
		ui.statusBar.ShowProgress(status)
	}
	go func() {
		if err := fn(); err != nil {
			ui.showError(err)
			return
		}
		if status != "" {
			ui.statusBar.ClearProgress()
		}
	}()
}

// showError is safe to call from any goroutine.
func (ui *UI) showError(err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	guiLogger.Debug().Err(err).Msg("Operation failed")
	msg := userMessage(err)
	if ui.statusBar != nil {
		ui.statusBar.ShowError(msg)
	}
	fyne.Do(func() {
		dialog.ShowError(errors.New(msg), ui.Window)
	})
}

// Start begins event monitoring.
func (ui *UI) Start() {
	go ui.monitorEvents()
}

// Stop stops event monitoring and cancels in-flight calls.
func (ui *UI) Stop() {
	ui.cancel()
}

func (ui *UI) monitorEvents() {
	ch := ui.Bus.SubscribeAll()
	defer ui.Bus.UnsubscribeAll(ch)

	for {
		select {
		case <-ui.ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			ui.handleEvent(event)
		}
	}
}

// handleEvent runs on the monitor goroutine and hands UI work to fyne.Do.
func (ui *UI) handleEvent(event events.Event) {
	switch e := event.(type) {
	case *state.ViewChangedEvent:
		v := e.View
		fyne.Do(func() { ui.applyView(v) })
	case *state.OperationErrorEvent:
		ui.statusBar.ShowError(e.Message)
	case *notify.ToastEvent:
		ui.statusBar.Show(e.Message, toastLevel(e.Variant))
	case *navigation.NavigateEvent:
		ui.openLink(e.URL)
	case *events.TransferEvent:
		msg, level := transferStatus(e)
		ui.statusBar.Show(msg, level)
		fraction := e.Progress
		done := e.Type() == events.EventTransferCompleted || e.Type() == events.EventTransferFailed
		fyne.Do(func() {
			if done {
				ui.transfer.Hide()
				return
			}
			ui.transfer.SetValue(fraction)
			ui.transfer.Show()
		})
	}
}

func (ui *UI) openLink(link string) {
	u := resolveLink(ui.APIBaseURL, link)
	if u == nil {
		ui.statusBar.ShowWarning("No browser link for " + link)
		return
	}
	if err := ui.App.OpenURL(u); err != nil {
		guiLogger.Warn().Err(err).Str("url", u.String()).Msg("Failed to open link")
		ui.statusBar.ShowWarning("Open " + u.String())
	}
}
