package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rescale/record-files/internal/events"
	"github.com/rescale/record-files/internal/navigation"
	"github.com/rescale/record-files/internal/notify"
	"github.com/rescale/record-files/internal/state"
)

type viewFrame struct {
	Reason string     `json:"reason"`
	View   state.View `json:"view"`
}

type operationErrorFrame struct {
	Kind    state.ErrorKind `json:"kind"`
	Message string          `json:"message"`
}

type transferFrame struct {
	Event    events.EventType `json:"event"`
	TaskID   string           `json:"taskId"`
	TaskType string           `json:"taskType"`
	Name     string           `json:"name"`
	Size     int64            `json:"size"`
	Progress float64          `json:"progress"`
	Error    string           `json:"error,omitempty"`
}

type navigateFrame struct {
	Page navigation.PageReference `json:"page"`
	URL  string                   `json:"url"`
}

type toastFrame struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Variant string `json:"variant"`
}

// frame converts a bus event to an SSE event name and payload. Events
// without a frame, such as log lines, are not streamed.
func frame(e events.Event) (string, any, bool) {
	switch ev := e.(type) {
	case *state.ViewChangedEvent:
		return "view", viewFrame{Reason: ev.Reason, View: ev.View}, true
	case *state.OperationErrorEvent:
		return "operation_error", operationErrorFrame{Kind: ev.Kind, Message: ev.Message}, true
	case *events.TransferEvent:
		f := transferFrame{
			Event:    ev.Type(),
			TaskID:   ev.TaskID,
			TaskType: ev.TaskType,
			Name:     ev.Name,
			Size:     ev.Size,
			Progress: ev.Progress,
		}
		if ev.Error != nil {
			f.Error = ev.Error.Error()
		}
		return "transfer", f, true
	case *navigation.NavigateEvent:
		return "navigate", navigateFrame{Page: ev.Page, URL: ev.URL}, true
	case *notify.ToastEvent:
		return "toast", toastFrame{Title: ev.Title, Message: ev.Message, Variant: ev.Variant}, true
	default:
		return "", nil, false
	}
}

func writeFrame(w http.ResponseWriter, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}

// handleEvents streams view changes and transfer progress as server-sent
// events. The first frame is the current view.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "event stream is not available"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	rc := http.NewResponseController(w)
	ch := s.bus.SubscribeAll()
	defer s.bus.UnsubscribeAll(ch)

	if err := writeFrame(w, "view", viewFrame{Reason: "snapshot", View: s.fm.View()}); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		s.logger.Warn().Err(err).Msg("Event stream does not support flushing")
		return
	}

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		case e, ok := <-ch:
			if !ok {
				return
			}
			name, payload, ok := frame(e)
			if !ok {
				continue
			}
			if err := writeFrame(w, name, payload); err != nil {
				s.logger.Debug().Err(err).Msg("Event stream closed")
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
