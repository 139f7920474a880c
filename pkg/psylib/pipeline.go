package psylib

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/spf13/afero"
)

// ManagerStatus is the pipeline-level state of a ResourceManager.
type ManagerStatus int

const (
	// ManagerReady means no batch is in flight.
	ManagerReady ManagerStatus = iota
	// ManagerBusy means a download batch is in flight.
	ManagerBusy
	// ManagerError means a loader failed; ResetStatus clears it.
	ManagerError
)

// String returns the status name.
func (s ManagerStatus) String() string {
	switch s {
	case ManagerBusy:
		return "BUSY"
	case ManagerError:
		return "ERROR"
	default:
		return "READY"
	}
}

// ResourceManagerOpts contains optional parameters for
// NewResourceManager.
type ResourceManagerOpts struct {
	// Handlers receives pipeline lifecycle events.
	Handlers *Handlers
	// Resolver rewrites registered paths (proxy routes, base URL).
	Resolver *PathResolver
	// Client is the HTTP client used by the http(s) fetcher.
	Client *http.Client
	// FS backs file:// and scheme-less locations.
	FS afero.Fs
	// Survey resolves questionnaire definitions.
	Survey SurveyClient
	// Cache short-circuits fetches of previously downloaded assets.
	Cache AssetCache
	// Router overrides the default scheme router when set.
	Router *FetcherRouter
	// Logger receives pipeline diagnostics.
	Logger *log.Logger
}

// ResourceManager is the resource acquisition pipeline: it registers
// per-asset records, classifies them by content kind, dispatches each
// class to its backend loader, tracks completion, and raises lifecycle
// events. It is created once per session and is the sole mutator of
// record status and payload; schedulers and experiment logic observe
// through GetResource and GetResourceStatus.
type ResourceManager struct {
	mu        sync.RWMutex
	records   VMap[string, *ResourceRecord]
	status    ManagerStatus
	batchSize int
	completed int
	lastErr   error

	handlers *Handlers
	loaders  map[ResourceKind]Loader
	resolver *PathResolver
	l        *log.Logger
}

// NewResourceManager creates a pipeline ready for registrations.
func NewResourceManager(opts *ResourceManagerOpts) *ResourceManager {
	if opts == nil {
		opts = &ResourceManagerOpts{}
	}
	handlers := opts.Handlers
	if handlers == nil {
		handlers = &Handlers{}
	}
	handlers.setDefault(opts.Logger)

	router := opts.Router
	if router == nil {
		router = NewFetcherRouter(opts.Client, opts.FS)
	}

	return &ResourceManager{
		records:  NewVMap[string, *ResourceRecord](),
		status:   ManagerReady,
		handlers: handlers,
		resolver: opts.Resolver,
		l:        opts.Logger,
		loaders: map[ResourceKind]Loader{
			KindGeneric: &byteLoader{origin: "generic-loader", router: router, cache: opts.Cache},
			KindAudio:   &byteLoader{origin: "audio-loader", router: router, cache: opts.Cache},
			KindFont:    &byteLoader{origin: "font-loader", router: router, cache: opts.Cache},
			KindTabular: &tabularLoader{router: router},
			KindSurvey:  &surveyLoader{client: opts.Survey},
		},
	}
}

// Status returns the pipeline-level state.
func (m *ResourceManager) Status() ManagerStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// LastError returns the most recent loader error, if any.
func (m *ResourceManager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// ResetStatus clears a pipeline-level ERROR back to READY. Records
// already in ERROR stay there; release and re-register them to retry.
func (m *ResourceManager) ResetStatus() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == ManagerError {
		m.status = ManagerReady
		m.lastErr = nil
	}
}

// RegisterResources creates a REGISTERED record for every entry whose
// name is not already known, resolving paths through the configured
// resolver. Registration is idempotent per name: a known name is left
// untouched and never re-downloaded. It returns the names of entries
// marked for immediate download.
func (m *ResourceManager) RegisterResources(entries ...ResourceEntry) (toDownload []string, err error) {
	for _, entry := range entries {
		if entry.Name == "" {
			return nil, newResourceError("RegisterResources", "registering "+entry.Path, ErrResourceNameEmpty)
		}
		if _, known := m.records.Get(entry.Name); known {
			continue
		}
		resolved := m.resolver.Resolve(entry.Path)
		m.records.Set(entry.Name, &ResourceRecord{
			Name:   entry.Name,
			Path:   resolved,
			Kind:   classifyResource(entry.Name, resolved),
			Status: StatusRegistered,
		})
		if entry.Download {
			toDownload = append(toDownload, entry.Name)
		}
	}
	return toDownload, nil
}

// DownloadResources dispatches the given previously REGISTERED names
// to their backend loaders and returns without waiting for them.
// Completion is observed through GetResourceStatus, WaitForResources,
// or the download-completed event. Requesting a name that is already
// DOWNLOADING or DOWNLOADED is a caller bug and fails the whole call.
func (m *ResourceManager) DownloadResources(ctx context.Context, names ...string) error {
	m.mu.Lock()
	if m.status == ManagerError {
		m.mu.Unlock()
		return newResourceError("DownloadResources", "starting batch", ErrManagerErrored)
	}
	batches := make(map[ResourceKind][]*ResourceRecord)
	for _, name := range names {
		rec, ok := m.records.Get(name)
		if !ok {
			m.mu.Unlock()
			return newResourceError("DownloadResources", "unknown resource "+name, ErrResourceNotFound)
		}
		if rec.Status != StatusRegistered {
			m.mu.Unlock()
			return newResourceError("DownloadResources", "resource "+name, ErrResourceWrongState)
		}
		batches[rec.Kind] = append(batches[rec.Kind], rec)
	}
	m.status = ManagerBusy
	m.batchSize = len(names)
	m.completed = 0
	m.mu.Unlock()

	m.handlers.DownloadingResourcesHandler(len(names))

	if len(names) == 0 {
		m.mu.Lock()
		m.status = ManagerReady
		m.mu.Unlock()
		m.handlers.DownloadCompletedHandler(0)
		return nil
	}

	cb := m.loaderCallbacks()
	for kind, batch := range batches {
		loader := m.loaders[kind]
		safeGo(m.l, nil, "loader:"+kind.String(), func(r any) {
			m.mu.Lock()
			m.status = ManagerError
			m.lastErr = fmt.Errorf("%s loader panic: %v", kind, r)
			m.mu.Unlock()
		}, func() {
			loader.Start(ctx, batch, cb)
		})
	}
	return nil
}

// loaderCallbacks adapts backend loader callbacks into record
// transitions and pipeline events. It is shared by every loader of a
// batch so the completed counter spans backends.
func (m *ResourceManager) loaderCallbacks() *LoaderCallbacks {
	return &LoaderCallbacks{
		Started: func(name string) {
			m.mu.Lock()
			if rec, ok := m.records.Get(name); ok && rec.Status == StatusRegistered {
				rec.Status = StatusDownloading
			}
			m.mu.Unlock()
			m.handlers.DownloadingResourceHandler(name)
		},
		Completed: func(name string, data any) {
			m.mu.Lock()
			rec, ok := m.records.Get(name)
			if !ok {
				m.mu.Unlock()
				return
			}
			rec.Status = StatusDownloaded
			rec.Data = data
			m.completed++
			completed := m.completed
			done := m.batchSize > 0 && completed == m.batchSize
			if done {
				m.status = ManagerReady
			}
			m.mu.Unlock()
			m.handlers.ResourceDownloadedHandler(name, completed)
			if done {
				m.handlers.DownloadCompletedHandler(completed)
			}
		},
		Errored: func(name string, err error) {
			m.mu.Lock()
			if rec, ok := m.records.Get(name); ok {
				rec.Status = StatusError
			}
			m.status = ManagerError
			m.lastErr = err
			m.mu.Unlock()
			m.handlers.ErrorHandler(name, err)
		},
	}
}

// GetResource returns the payload of a named resource. Unknown names
// always fail. When errorIfNotDownloaded is set, a record that is not
// yet DOWNLOADED fails too; otherwise its nil payload is returned.
func (m *ResourceManager) GetResource(name string, errorIfNotDownloaded bool) (any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records.Get(name)
	if !ok {
		return nil, newResourceError("GetResource", "resource "+name, ErrResourceNotFound)
	}
	if errorIfNotDownloaded && rec.Status != StatusDownloaded {
		return nil, newResourceError("GetResource", "resource "+name, ErrResourceNotReady)
	}
	return rec.Data, nil
}

// GetResourceStatus reduces the statuses of the given names into one
// using the total order ERROR < REGISTERED < DOWNLOADING < DOWNLOADED,
// so a single call answers "are all of these ready". No names reduces
// to DOWNLOADED.
func (m *ResourceManager) GetResourceStatus(names ...string) (ResourceStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	statuses := make([]ResourceStatus, 0, len(names))
	for _, name := range names {
		rec, ok := m.records.Get(name)
		if !ok {
			return StatusError, newResourceError("GetResourceStatus", "resource "+name, ErrResourceNotFound)
		}
		statuses = append(statuses, rec.Status)
	}
	return reduceStatus(statuses), nil
}

// ReleaseResource removes a record, reporting whether it existed. The
// caller must not release a resource that is still DOWNLOADING; this
// is not enforced.
func (m *ResourceManager) ReleaseResource(name string) bool {
	return m.records.Delete(name)
}

// Snapshot returns a copy of every record, payloads excluded. It backs
// status reporting to external observers.
func (m *ResourceManager) Snapshot() []ResourceRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ResourceRecord, 0, m.records.Len())
	m.records.Range(func(_ string, rec *ResourceRecord) bool {
		c := *rec
		c.Data = nil
		out = append(out, c)
		return true
	})
	return out
}

// WaitForResources returns a scheduler task that blocks, one frame at
// a time, until every named resource is DOWNLOADED. The first
// invocation registers unknown names (using the name as its path) and
// starts downloads for anything still REGISTERED; every later
// invocation polls and returns FLIP_REPEAT until the watched set is
// ready, then NEXT. A loader error fails the task with the recorded
// cause instead of polling forever.
//
// This is the coupling point between pipeline and scheduler: the
// pipeline never calls into the scheduler, it only exposes state the
// returned task polls.
func (m *ResourceManager) WaitForResources(ctx context.Context, names ...string) TaskFunc {
	watched := make([]string, len(names))
	copy(watched, names)
	var started bool

	return func(...any) (ControlSignal, error) {
		if !started {
			started = true
			var entries []ResourceEntry
			for _, name := range watched {
				if _, known := m.records.Get(name); !known {
					entries = append(entries, ResourceEntry{Name: name, Path: name})
				}
			}
			if len(entries) > 0 {
				if _, err := m.RegisterResources(entries...); err != nil {
					return SignalQuit, err
				}
			}
			var pending []string
			m.mu.RLock()
			for _, name := range watched {
				if rec, ok := m.records.Get(name); ok && rec.Status == StatusRegistered {
					pending = append(pending, name)
				}
			}
			m.mu.RUnlock()
			if len(pending) > 0 {
				if err := m.DownloadResources(ctx, pending...); err != nil {
					return SignalQuit, err
				}
			}
		}

		status, err := m.GetResourceStatus(watched...)
		if err != nil {
			return SignalQuit, err
		}
		switch status {
		case StatusDownloaded:
			return SignalNext, nil
		case StatusError:
			if err := m.LastError(); err != nil {
				return SignalQuit, err
			}
			return SignalQuit, newResourceError("WaitForResources", "watched set", ErrManagerErrored)
		default:
			return SignalFlipRepeat, nil
		}
	}
}
