package server

import (
	"github.com/psykit/psykit/pkg/psylib"
)

// Event notification payloads pushed to observers.
type (
	BatchStartedEvent struct {
		Count int `json:"count"`
	}
	ResourceStartedEvent struct {
		Resource string `json:"resource"`
	}
	ResourceDownloadedEvent struct {
		Resource  string `json:"resource"`
		Completed int    `json:"completed"`
	}
	BatchCompletedEvent struct {
		Count int `json:"count"`
	}
	ResourceErrorEvent struct {
		Resource string `json:"resource"`
		Message  string `json:"message"`
	}
)

// BindHandlers returns pipeline handlers that forward every event to
// connected observers before delegating to base. base may be nil.
func (s *EventServer) BindHandlers(base *psylib.Handlers) *psylib.Handlers {
	if base == nil {
		base = &psylib.Handlers{}
	}
	inner := *base
	return &psylib.Handlers{
		DownloadingResourcesHandler: func(count int) {
			s.notifier.Broadcast("event.downloadingResources", &BatchStartedEvent{Count: count})
			if inner.DownloadingResourcesHandler != nil {
				inner.DownloadingResourcesHandler(count)
			}
		},
		DownloadingResourceHandler: func(name string) {
			s.notifier.Broadcast("event.downloadingResource", &ResourceStartedEvent{Resource: name})
			if inner.DownloadingResourceHandler != nil {
				inner.DownloadingResourceHandler(name)
			}
		},
		ResourceDownloadedHandler: func(name string, completed int) {
			s.notifier.Broadcast("event.resourceDownloaded", &ResourceDownloadedEvent{
				Resource:  name,
				Completed: completed,
			})
			if inner.ResourceDownloadedHandler != nil {
				inner.ResourceDownloadedHandler(name, completed)
			}
		},
		DownloadCompletedHandler: func(count int) {
			s.notifier.Broadcast("event.downloadCompleted", &BatchCompletedEvent{Count: count})
			if inner.DownloadCompletedHandler != nil {
				inner.DownloadCompletedHandler(count)
			}
		},
		ErrorHandler: func(name string, err error) {
			msg := ""
			if err != nil {
				msg = err.Error()
			}
			s.notifier.Broadcast("event.error", &ResourceErrorEvent{Resource: name, Message: msg})
			if inner.ErrorHandler != nil {
				inner.ErrorHandler(name, err)
			}
		},
	}
}
