// Package notify shows success and failure toasts for file operations. It
// uses github.com/gen2brain/beeep for desktop notifications and mirrors
// every toast onto the event bus for GUI and SSE consumers.
package notify

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gen2brain/beeep"

	"github.com/rescale/record-files/internal/constants"
	"github.com/rescale/record-files/internal/events"
	"github.com/rescale/record-files/internal/logging"
)

// EventToast is published for every notification, sent to the desktop or not
const EventToast events.EventType = "toast"

// Toast variants
const (
	VariantSuccess = "success"
	VariantError   = "error"
)

// ToastEvent carries one notification.
type ToastEvent struct {
	events.BaseEvent
	Title   string
	Message string
	Variant string
}

// Notifier handles desktop notifications.
type Notifier struct {
	logger   *logging.Logger
	eventBus *events.EventBus
	enabled  bool
	cfg      Config
	mu       sync.RWMutex

	// send delivers a desktop notification
	send func(title, message string) error
}

// Config holds notification configuration.
type Config struct {
	// Enabled determines if desktop notifications are sent. Toast events
	// are published either way.
	Enabled bool

	// ShowDownloadComplete shows notifications for finished downloads.
	ShowDownloadComplete bool

	// ShowFailures shows notifications for failed transfers.
	ShowFailures bool
}

// DefaultConfig returns the default notification configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:              true,
		ShowDownloadComplete: true,
		ShowFailures:         true,
	}
}

// NewNotifier creates a notifier. cfg, eventBus and logger may be nil.
func NewNotifier(cfg *Config, eventBus *events.EventBus, logger *logging.Logger) *Notifier {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &Notifier{
		logger:   logger,
		eventBus: eventBus,
		enabled:  cfg.Enabled,
		cfg:      *cfg,
		send:     sendDesktop,
	}
}

// SetEnabled enables or disables desktop notifications.
func (n *Notifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// IsEnabled returns whether desktop notifications are enabled.
func (n *Notifier) IsEnabled() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.enabled
}

// NotifySuccess shows a success toast with the standard title.
func (n *Notifier) NotifySuccess(message string) {
	n.toast(constants.SuccessTitle, message, VariantSuccess, true)
}

// DownloadComplete reports a finished download.
func (n *Notifier) DownloadComplete(name, outputPath string) {
	message := fmt.Sprintf("\"%s\" downloaded to:\n%s", truncate(name, 40), shortenPath(outputPath))
	n.toast("Download Complete", message, VariantSuccess, n.cfg.ShowDownloadComplete)
}

// TransferFailed reports a failed upload or download.
func (n *Notifier) TransferFailed(operation, name, errorMsg string) {
	title := "Transfer Failed"
	if operation != "" {
		title = strings.ToUpper(operation[:1]) + operation[1:] + " Failed"
	}
	message := fmt.Sprintf("\"%s\" failed:\n%s", truncate(name, 40), truncate(errorMsg, 100))
	n.toast(title, message, VariantError, n.cfg.ShowFailures)
}

// Alert sends a prominent error notification.
func (n *Notifier) Alert(message string) {
	const title = "Record Files Alert"
	n.publish(title, message, VariantError)
	if !n.IsEnabled() {
		return
	}

	if err := beeep.Alert(title, message, ""); err != nil {
		if err := n.send(title, message); err != nil {
			n.logger.Error().Err(err).Str("message", message).Msg("Failed to send alert notification")
		}
	}
}

func (n *Notifier) toast(title, message, variant string, desktop bool) {
	n.publish(title, message, variant)
	if !desktop || !n.IsEnabled() {
		return
	}
	if err := n.send(title, message); err != nil {
		n.logger.Warn().Err(err).Str("title", title).Msg("Failed to send desktop notification")
	}
}

func (n *Notifier) publish(title, message, variant string) {
	if n.eventBus == nil {
		return
	}
	n.eventBus.Publish(&ToastEvent{
		BaseEvent: events.NewBaseEvent(EventToast),
		Title:     title,
		Message:   message,
		Variant:   variant,
	})
}

func sendDesktop(title, message string) error {
	return beeep.Notify(title, message, "")
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// shortenPath abbreviates a long path for display in notifications.
func shortenPath(path string) string {
	const maxLen = 60

	if len(path) <= maxLen {
		return path
	}

	_, file := filepath.Split(path)
	parentDir := filepath.Base(filepath.Dir(path))
	short := filepath.Join("...", parentDir, file)

	vol := filepath.VolumeName(path)
	if vol != "" && len(vol)+len(short)+1 <= maxLen {
		short = vol + string(filepath.Separator) + short
	}

	if len(short) > maxLen {
		return "..." + path[len(path)-(maxLen-3):]
	}
	return short
}
