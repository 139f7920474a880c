package psylib

import "context"

// LoaderCallbacks is how a backend loader reports per-item progress
// back to the pipeline, which adapts the calls into ResourceRecord
// transitions and its own events.
type LoaderCallbacks struct {
	// Started fires when the loader begins fetching a resource.
	Started func(name string)
	// Completed fires with the decoded payload on success.
	Completed func(name string, data any)
	// Errored fires on failure; the loader does not retry.
	Errored func(name string, err error)
	// BatchComplete fires once all items handed to this loader have
	// either completed or errored.
	BatchComplete func()
}

func (cb *LoaderCallbacks) setDefault() {
	if cb.Started == nil {
		cb.Started = func(string) {}
	}
	if cb.Completed == nil {
		cb.Completed = func(string, any) {}
	}
	if cb.Errored == nil {
		cb.Errored = func(string, error) {}
	}
	if cb.BatchComplete == nil {
		cb.BatchComplete = func() {}
	}
}

// Loader is a backend that acquires one class of resources. Start
// processes the batch synchronously; the pipeline runs each loader in
// its own goroutine, so different backends complete in no guaranteed
// order relative to each other.
type Loader interface {
	Start(ctx context.Context, batch []*ResourceRecord, cb *LoaderCallbacks)
}

// AssetCache stores payloads of previously fetched assets keyed by
// resolved location, letting a session re-run skip the network.
type AssetCache interface {
	Get(key string) ([]byte, bool)
	Put(key string, data []byte) error
}

// byteLoader fetches raw bytes through the scheme router. It backs the
// generic, audio and font classes, which differ only in how the player
// later interprets the payload.
type byteLoader struct {
	origin string
	router *FetcherRouter
	cache  AssetCache
}

func (l *byteLoader) Start(ctx context.Context, batch []*ResourceRecord, cb *LoaderCallbacks) {
	cb.setDefault()
	for _, rec := range batch {
		cb.Started(rec.Name)
		if l.cache != nil {
			if data, ok := l.cache.Get(rec.Path); ok {
				cb.Completed(rec.Name, data)
				continue
			}
		}
		data, err := l.router.Fetch(ctx, rec.Path)
		if err != nil {
			cb.Errored(rec.Name, newResourceError(l.origin, "fetching "+rec.Path, err))
			continue
		}
		if l.cache != nil {
			_ = l.cache.Put(rec.Path, data)
		}
		cb.Completed(rec.Name, data)
	}
	cb.BatchComplete()
}
