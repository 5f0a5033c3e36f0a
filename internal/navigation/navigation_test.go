package navigation

import (
	"testing"
	"time"

	"github.com/rescale/record-files/internal/events"
)

func TestURLBuilders(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"view url", ViewURL("069A"), "/lightning/r/ContentDocument/069A/view"},
		{"record url", RecordURL("005B"), "/lightning/r/005B/view"},
		{"owner url", OwnerURL("005B", false), "/lightning/r/005B/view"},
		{"owner url in community", OwnerURL("005B", true), ""},
		{"owner url without owner", OwnerURL("", false), ""},
		{"related list", RecordRelatedListURL("Account", "001C"), "/lightning/r/Account/001C/related/AttachedContentDocuments/view"},
		{"related list without object", RecordRelatedListURL("", "001C"), ""},
		{"download one", DownloadPath([]string{"068A"}), "/download/068A"},
		{"download many", DownloadPath([]string{"068A", "068B", "068C"}), "/download/068A/068B/068C"},
		{"download none", DownloadPath(nil), "/download/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestPageReferencePath(t *testing.T) {
	if got := PreviewPage("069A").Path(); got != "/lightning/r/ContentDocument/069A/view" {
		t.Errorf("preview path = %q", got)
	}
	if got := RecordPage("069A").Path(); got != "/lightning/r/069A/view" {
		t.Errorf("record path = %q", got)
	}
	if got := (PageReference{Type: "unknown"}).Path(); got != "" {
		t.Errorf("unknown path = %q, want empty", got)
	}
}

func TestBusNavigatorPublishes(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()
	ch := bus.Subscribe(EventNavigate)

	nav := NewBusNavigator(bus, "https://host.example.com/base/")
	nav.NavigateToPreview("069A")
	nav.NavigateToRecordPage("069B")

	want := []struct {
		pageType string
		url      string
	}{
		{PageTypeNamedPage, "https://host.example.com/lightning/r/ContentDocument/069A/view"},
		{PageTypeRecordPage, "https://host.example.com/lightning/r/069B/view"},
	}

	for i, w := range want {
		select {
		case ev := <-ch:
			nav := ev.(*NavigateEvent)
			if nav.Page.Type != w.pageType {
				t.Errorf("event %d: type %q, want %q", i, nav.Page.Type, w.pageType)
			}
			if nav.URL != w.url {
				t.Errorf("event %d: url %q, want %q", i, nav.URL, w.url)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("event %d not published", i)
		}
	}
}

func TestBusNavigatorWithoutBus(t *testing.T) {
	// Must not panic
	NewBusNavigator(nil, "").NavigateToPreview("069A")
}
