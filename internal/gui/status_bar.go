package gui

import (
	"fmt"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/rescale/record-files/internal/state"
)

// StatusLevel picks the icon next to a status message.
type StatusLevel int

const (
	StatusInfo StatusLevel = iota
	StatusSuccess
	StatusWarning
	StatusError
	// StatusProgress swaps the icon for a spinner
	StatusProgress
)

// StatusBar is the line under the file table. It follows the file manager's
// view and also shows short-lived messages from toasts, transfers and
// dialogs. A view update only replaces the message when the view's own
// status changed, so a toast stays up until the list does something new.
type StatusBar struct {
	widget.BaseWidget

	mu         sync.RWMutex
	level      StatusLevel
	message    string
	viewStatus string

	icon    *widget.Icon
	label   *widget.Label
	spinner *widget.Activity
}

// NewStatusBar creates a status bar showing "Ready".
func NewStatusBar() *StatusBar {
	sb := &StatusBar{level: StatusInfo, message: statusReady}
	sb.label = widget.NewLabel(statusReady)
	sb.label.TextStyle = fyne.TextStyle{Italic: true}
	sb.icon = widget.NewIcon(levelIcon(StatusInfo))
	sb.spinner = widget.NewActivity()
	sb.spinner.Hide()
	sb.ExtendBaseWidget(sb)
	return sb
}

const statusReady = "Ready"

// viewStatus summarizes what the file list is doing. An error wins over the
// spinner.
func viewStatus(v state.View) (string, StatusLevel) {
	switch {
	case v.Error != "":
		return v.Error, StatusError
	case v.ShowSpinner && v.Phase == state.PhaseLoading:
		return "Loading files...", StatusProgress
	case v.ShowSpinner:
		return "Updating files...", StatusProgress
	case v.Phase != state.PhaseLoaded:
		return statusReady, StatusInfo
	case len(v.Files) == 0:
		return "No files attached", StatusInfo
	default:
		return fmt.Sprintf("%d file(s) attached", len(v.Files)), StatusInfo
	}
}

// SetView follows v. It must run on the fyne goroutine.
func (sb *StatusBar) SetView(v state.View) {
	msg, level := viewStatus(v)

	sb.mu.Lock()
	if msg == sb.viewStatus {
		sb.mu.Unlock()
		return
	}
	sb.viewStatus = msg
	sb.level = level
	sb.message = msg
	sb.mu.Unlock()

	sb.render(msg, level)
}

// Show replaces the message. It is safe to call from any goroutine.
func (sb *StatusBar) Show(message string, level StatusLevel) {
	sb.mu.Lock()
	sb.level = level
	sb.message = message
	sb.mu.Unlock()

	fyne.Do(func() { sb.render(message, level) })
}

func (sb *StatusBar) ShowError(message string)    { sb.Show(message, StatusError) }
func (sb *StatusBar) ShowWarning(message string)  { sb.Show(message, StatusWarning) }
func (sb *StatusBar) ShowProgress(message string) { sb.Show(message, StatusProgress) }

// ClearProgress puts "Ready" back if a progress message is still showing.
func (sb *StatusBar) ClearProgress() {
	if sb.Level() == StatusProgress {
		sb.Show(statusReady, StatusInfo)
	}
}

func (sb *StatusBar) Message() string {
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	return sb.message
}

func (sb *StatusBar) Level() StatusLevel {
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	return sb.level
}

func (sb *StatusBar) render(message string, level StatusLevel) {
	sb.label.SetText(message)
	if level == StatusProgress {
		sb.icon.Hide()
		sb.spinner.Show()
		sb.spinner.Start()
		return
	}
	sb.spinner.Stop()
	sb.spinner.Hide()
	sb.icon.SetResource(levelIcon(level))
	sb.icon.Show()
}

func levelIcon(level StatusLevel) fyne.Resource {
	switch level {
	case StatusSuccess:
		return theme.ConfirmIcon()
	case StatusWarning:
		return theme.WarningIcon()
	case StatusError:
		return theme.ErrorIcon()
	default:
		return theme.InfoIcon()
	}
}

// CreateRenderer implements fyne.Widget
func (sb *StatusBar) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(container.NewHBox(sb.icon, sb.spinner, sb.label))
}
