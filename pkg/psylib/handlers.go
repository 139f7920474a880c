package psylib

import "log"

type (
	// DownloadingResourcesHandlerFunc fires once per batch when the
	// pipeline starts downloading. count is the batch size.
	DownloadingResourcesHandlerFunc func(count int)
	// DownloadingResourceHandlerFunc fires when a single resource
	// enters DOWNLOADING.
	DownloadingResourceHandlerFunc func(name string)
	// ResourceDownloadedHandlerFunc fires when a single resource
	// reaches DOWNLOADED. completed is the running batch counter.
	ResourceDownloadedHandlerFunc func(name string, completed int)
	// DownloadCompletedHandlerFunc fires exactly once per batch, when
	// the completed counter reaches the batch size.
	DownloadCompletedHandlerFunc func(count int)
	// ResourceErrorHandlerFunc fires when a loader fails a resource.
	ResourceErrorHandlerFunc func(name string, err error)
)

// Handlers is the pipeline's event sink: a progress display or GUI
// collaborator installs callbacks here. Unset callbacks default to
// no-ops; the error callback always logs before delegating.
type Handlers struct {
	DownloadingResourcesHandler DownloadingResourcesHandlerFunc
	DownloadingResourceHandler  DownloadingResourceHandlerFunc
	ResourceDownloadedHandler   ResourceDownloadedHandlerFunc
	DownloadCompletedHandler    DownloadCompletedHandlerFunc
	ErrorHandler                ResourceErrorHandlerFunc
}

func (h *Handlers) setDefault(l *log.Logger) {
	if h.DownloadingResourcesHandler == nil {
		h.DownloadingResourcesHandler = func(count int) {}
	}
	if h.DownloadingResourceHandler == nil {
		h.DownloadingResourceHandler = func(name string) {}
	}
	if h.ResourceDownloadedHandler == nil {
		h.ResourceDownloadedHandler = func(name string, completed int) {}
	}
	if h.DownloadCompletedHandler == nil {
		h.DownloadCompletedHandler = func(count int) {}
	}
	if h.ErrorHandler == nil {
		h.ErrorHandler = func(name string, err error) {
			plog(l, "%s: Error: %s", name, err.Error())
		}
	} else {
		errHandler := h.ErrorHandler
		h.ErrorHandler = func(name string, err error) {
			plog(l, "%s: Error: %s", name, err.Error())
			errHandler(name, err)
		}
	}
}

func plog(l *log.Logger, format string, args ...any) {
	if l == nil {
		return
	}
	l.Printf(format, args...)
}
