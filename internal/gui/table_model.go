package gui

import (
	"fmt"
	"net/url"

	"github.com/rescale/record-files/internal/columns"
	"github.com/rescale/record-files/internal/events"
	"github.com/rescale/record-files/internal/models"
	"github.com/rescale/record-files/internal/notify"
	"github.com/rescale/record-files/internal/state"
)

// cellKind tells the table which widget a cell shows.
type cellKind int

const (
	cellCheck cellKind = iota
	cellText
	cellLink
	cellMenu
)

// tableColumn is one rendered table column.
type tableColumn struct {
	kind   cellKind
	header string
	width  float32
	column columns.Column
}

const (
	checkColumnWidth   float32 = 36
	defaultColumnWidth float32 = 160
	fileNameMinWidth   float32 = 240
)

// tableColumns lays out the table for view: an optional selection column,
// the data columns in order, and the action menu last.
func tableColumns(view state.View) []tableColumn {
	cols := make([]tableColumn, 0, len(view.Columns)+1)
	if view.ShowTableCheckbox {
		cols = append(cols, tableColumn{kind: cellCheck, width: checkColumnWidth})
	}
	for _, c := range view.Columns {
		tc := tableColumn{kind: cellText, header: c.Label, width: float32(c.InitialWidth), column: c}
		switch c.Type {
		case columns.TypeAction:
			tc.kind = cellMenu
		case columns.TypeFilePreview:
			tc.kind = cellLink
		}
		if tc.width <= 0 {
			tc.width = defaultColumnWidth
		}
		if c.FieldName == "fileName" && tc.width < fileNameMinWidth {
			tc.width = fileNameMinWidth
		}
		cols = append(cols, tc)
	}
	return cols
}

// cellText returns the text rec shows under col. URL columns show their
// label field.
func cellText(rec models.FileRecord, col columns.Column) string {
	switch col.Type {
	case columns.TypeAction:
		return ""
	case columns.TypeURL, columns.TypeFilePreview:
		if col.TypeAttributes != nil && col.TypeAttributes.LabelField != "" {
			return rec.Field(col.TypeAttributes.LabelField)
		}
	}
	return rec.Field(col.FieldName)
}

// rowsShown returns the rows the table lists. The compact list is capped at
// the view's visible row count until the user expands it.
func rowsShown(view state.View, expanded bool) []models.FileRecord {
	if expanded || view.VisibleRows >= len(view.Files) {
		return view.Files
	}
	return view.Files[:view.VisibleRows]
}

// isSelected reports whether rec is part of the view's selection.
func isSelected(view state.View, rec models.FileRecord) bool {
	for _, id := range view.SelectedFileIDs {
		if id == rec.FileID {
			return true
		}
	}
	return false
}

// toggleSelection returns the row refs selected after checking or
// unchecking rec. Order follows the file list.
func toggleSelection(view state.View, rec models.FileRecord, checked bool) []models.RowRef {
	refs := make([]models.RowRef, 0, len(view.SelectedFileIDs)+1)
	for _, f := range view.Files {
		on := isSelected(view, f)
		if f.FileID == rec.FileID {
			on = checked
		}
		if on {
			refs = append(refs, f.Ref())
		}
	}
	return refs
}

// modalRequests reports which dialogs next asks for that prev did not.
type modalRequests struct {
	upload bool
	delete bool
	remove bool
}

func modalTransitions(prev, next state.View) modalRequests {
	return modalRequests{
		upload: next.ShowFileModal && !prev.ShowFileModal,
		delete: next.ShowDeleteModal && !prev.ShowDeleteModal,
		remove: next.ShowRemoveFileModal && !prev.ShowRemoveFileModal,
	}
}

// fileName returns the display name of the row under contentDocumentID.
func fileName(view state.View, contentDocumentID string) string {
	for _, f := range view.Files {
		if f.ContentDocumentID == contentDocumentID {
			return f.FileName
		}
	}
	return contentDocumentID
}

// footerText summarizes how much of the list is shown.
func footerText(view state.View, expanded bool) string {
	switch {
	case !view.FilesLoaded:
		return ""
	case len(view.Files) == 0:
		return "No files attached"
	case expanded || view.VisibleRows >= len(view.Files):
		return fmt.Sprintf("%d file(s)", len(view.Files))
	default:
		return fmt.Sprintf("Showing %d of %d", view.VisibleRows, len(view.Files))
	}
}

// toastLevel maps a toast variant onto a status bar level.
func toastLevel(variant string) StatusLevel {
	switch variant {
	case notify.VariantSuccess:
		return StatusSuccess
	case notify.VariantError:
		return StatusError
	default:
		return StatusInfo
	}
}

// transferStatus renders a transfer event for the status bar.
func transferStatus(ev *events.TransferEvent) (string, StatusLevel) {
	noun, verb := "Upload", "Uploading"
	if ev.TaskType == "download" {
		noun, verb = "Download", "Downloading"
	}
	switch ev.Type() {
	case events.EventTransferCompleted:
		return fmt.Sprintf("%s finished: %s", noun, ev.Name), StatusSuccess
	case events.EventTransferFailed:
		msg := fmt.Sprintf("%s %s failed", verb, ev.Name)
		if ev.Error != nil {
			msg += ": " + ev.Error.Error()
		}
		return msg, StatusError
	default:
		return fmt.Sprintf("%s %s (%.0f%%)", verb, ev.Name, ev.Progress*100), StatusProgress
	}
}

// resolveLink turns a host path into an absolute URL against base. It
// returns nil when no absolute URL can be formed.
func resolveLink(base, link string) *url.URL {
	if link == "" {
		return nil
	}
	u, err := url.Parse(link)
	if err != nil {
		return nil
	}
	if u.IsAbs() {
		return u
	}
	b, err := url.Parse(base)
	if err != nil || !b.IsAbs() {
		return nil
	}
	return b.ResolveReference(u)
}
