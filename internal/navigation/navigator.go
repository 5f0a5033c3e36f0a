package navigation

import (
	"net/url"

	"github.com/rescale/record-files/internal/constants"
	"github.com/rescale/record-files/internal/events"
)

// EventNavigate is published for every navigation request.
const EventNavigate events.EventType = "navigate"

// Page reference types
const (
	PageTypeNamedPage  = "standard__namedPage"
	PageTypeRecordPage = "standard__recordPage"
)

// PageReference describes a navigation target without resolving it.
type PageReference struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	State      map[string]string `json:"state,omitempty"`
}

// PreviewPage is the file preview target for a content document.
func PreviewPage(contentDocumentID string) PageReference {
	return PageReference{
		Type:       PageTypeNamedPage,
		Attributes: map[string]string{"pageName": constants.FilePreviewPageName},
		State:      map[string]string{"selectedRecordId": contentDocumentID},
	}
}

// RecordPage is the view page of a record.
func RecordPage(recordID string) PageReference {
	return PageReference{
		Type:       PageTypeRecordPage,
		Attributes: map[string]string{"recordId": recordID, "actionName": "view"},
	}
}

// Path returns a best-effort host path for ref. The preview page has no
// route of its own and falls back to the content document's record page.
func (ref PageReference) Path() string {
	switch ref.Type {
	case PageTypeNamedPage:
		if ref.Attributes["pageName"] == constants.FilePreviewPageName {
			return ViewURL(ref.State["selectedRecordId"])
		}
		return "/lightning/n/" + url.PathEscape(ref.Attributes["pageName"])
	case PageTypeRecordPage:
		return RecordURL(ref.Attributes["recordId"])
	default:
		return ""
	}
}

// NavigateEvent carries a navigation request to renderers.
type NavigateEvent struct {
	events.BaseEvent
	Page PageReference
	// URL is Path resolved against the navigator's host base URL
	URL string
}

// BusNavigator publishes navigation requests on an event bus. Renderers
// subscribe to EventNavigate and open the URL in whatever way they can.
type BusNavigator struct {
	eventBus *events.EventBus
	baseURL  string
}

// NewBusNavigator creates a navigator. baseURL may be empty.
func NewBusNavigator(eventBus *events.EventBus, baseURL string) *BusNavigator {
	return &BusNavigator{eventBus: eventBus, baseURL: baseURL}
}

// NavigateToPreview requests the preview page of a file.
func (n *BusNavigator) NavigateToPreview(contentDocumentID string) {
	n.publish(PreviewPage(contentDocumentID))
}

// NavigateToRecordPage requests the view page of a record.
func (n *BusNavigator) NavigateToRecordPage(recordID string) {
	n.publish(RecordPage(recordID))
}

// Resolve joins ref's path onto the base URL.
func (n *BusNavigator) Resolve(ref PageReference) string {
	path := ref.Path()
	if n.baseURL == "" {
		return path
	}
	base, err := url.Parse(n.baseURL)
	if err != nil {
		return path
	}
	rel, err := url.Parse(path)
	if err != nil {
		return path
	}
	return base.ResolveReference(rel).String()
}

func (n *BusNavigator) publish(ref PageReference) {
	if n.eventBus == nil {
		return
	}
	n.eventBus.Publish(&NavigateEvent{
		BaseEvent: events.NewBaseEvent(EventNavigate),
		Page:      ref,
		URL:       n.Resolve(ref),
	})
}
