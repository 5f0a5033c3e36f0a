package notify

import (
	"errors"
	"testing"
	"time"

	"github.com/rescale/record-files/internal/events"
)

type sentToast struct {
	title   string
	message string
}

func newTestNotifier(cfg *Config, bus *events.EventBus) (*Notifier, *[]sentToast) {
	var sent []sentToast
	n := NewNotifier(cfg, bus, nil)
	n.send = func(title, message string) error {
		sent = append(sent, sentToast{title, message})
		return nil
	}
	return n, &sent
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if !cfg.Enabled {
		t.Error("Expected Enabled to be true by default")
	}
	if !cfg.ShowDownloadComplete || !cfg.ShowFailures {
		t.Error("Expected download and failure notifications by default")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"exactly10c", 10, "exactly10c"},
		{"this is a long string", 10, "this is..."},
		{"", 10, ""},
		{"abcd", 3, "..."},
	}

	for _, tt := range tests {
		if result := truncate(tt.input, tt.maxLen); result != tt.expected {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, result, tt.expected)
		}
	}
}

func TestShortenPath(t *testing.T) {
	short := "/short/path"
	if got := shortenPath(short); got != short {
		t.Errorf("shortenPath(%q) = %q, want unchanged", short, got)
	}

	long := "/a/very/long/path/that/exceeds/the/maximum/length/for/notification/display/file.txt"
	if got := shortenPath(long); len(got) >= len(long) || len(got) > 60 {
		t.Errorf("shortenPath(%q) was not shortened: %q", long, got)
	}
}

func TestNotifySuccess(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()
	ch := bus.Subscribe(EventToast)

	n, sent := newTestNotifier(nil, bus)
	n.NotifySuccess("All files uploaded successfully!")

	if len(*sent) != 1 || (*sent)[0].title != "Success!" {
		t.Fatalf("unexpected desktop toasts %+v", *sent)
	}

	select {
	case ev := <-ch:
		toast := ev.(*ToastEvent)
		if toast.Variant != VariantSuccess || toast.Message != "All files uploaded successfully!" {
			t.Errorf("unexpected toast event %+v", toast)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("no toast event published")
	}
}

func TestDisabledStillPublishes(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()
	ch := bus.Subscribe(EventToast)

	n, sent := newTestNotifier(&Config{Enabled: false}, bus)
	n.NotifySuccess("done")
	n.DownloadComplete("files.zip", "/tmp/files.zip")
	n.TransferFailed("upload", "a.pdf", "boom")

	if len(*sent) != 0 {
		t.Errorf("disabled notifier sent %d desktop toasts", len(*sent))
	}
	if got := len(ch); got != 3 {
		t.Errorf("expected 3 toast events, got %d", got)
	}
}

func TestTransferFailed(t *testing.T) {
	n, sent := newTestNotifier(DefaultConfig(), nil)
	n.TransferFailed("download", "files.zip", "status 404")
	n.TransferFailed("", "x", "y")

	if len(*sent) != 2 {
		t.Fatalf("expected 2 toasts, got %d", len(*sent))
	}
	if (*sent)[0].title != "Download Failed" || (*sent)[1].title != "Transfer Failed" {
		t.Errorf("unexpected titles %+v", *sent)
	}
}

func TestSendErrorIsLoggedNotReturned(t *testing.T) {
	n := NewNotifier(nil, nil, nil)
	n.send = func(string, string) error { return errors.New("no dbus") }

	// Must not panic
	n.NotifySuccess("ok")
}

func TestSetEnabled(t *testing.T) {
	n := NewNotifier(nil, nil, nil)
	n.SetEnabled(false)
	if n.IsEnabled() {
		t.Error("Expected disabled after SetEnabled(false)")
	}
	n.SetEnabled(true)
	if !n.IsEnabled() {
		t.Error("Expected enabled after SetEnabled(true)")
	}
}
