package psylib

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// Fetcher retrieves the whole payload of a resource location. Backend
// loaders build on fetchers; they never stream, because experiment
// assets are held in memory for the session.
type Fetcher interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// FetcherRouter maps location schemes to Fetcher implementations. It is
// the dispatch point between the generic loader and the transport a
// resource actually lives behind. The zero value is not usable; use
// NewFetcherRouter.
type FetcherRouter struct {
	routes map[string]Fetcher
}

// NewFetcherRouter creates a router pre-configured for http(s), ftp(s),
// sftp, file and scheme-less local paths. A nil client falls back to
// http.DefaultClient; a nil fs falls back to the OS filesystem.
func NewFetcherRouter(client *http.Client, fs afero.Fs) *FetcherRouter {
	if client == nil {
		client = http.DefaultClient
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	r := &FetcherRouter{routes: make(map[string]Fetcher)}
	httpF := &httpFetcher{client: client}
	r.routes["http"] = httpF
	r.routes["https"] = httpF
	ftpF := &ftpFetcher{}
	r.routes["ftp"] = ftpF
	r.routes["ftps"] = ftpF
	r.routes["sftp"] = newSFTPFetcher()
	fileF := &fileFetcher{fs: fs}
	r.routes["file"] = fileF
	r.routes[""] = fileF
	return r
}

// Register adds or replaces the fetcher for a scheme. scheme must be
// lowercase; "" handles scheme-less paths.
func (r *FetcherRouter) Register(scheme string, f Fetcher) {
	r.routes[strings.ToLower(scheme)] = f
}

// Fetch routes the location to the fetcher registered for its scheme.
func (r *FetcherRouter) Fetch(ctx context.Context, location string) ([]byte, error) {
	if location == "" {
		return nil, fmt.Errorf("%w: empty location", ErrUnsupportedResourceScheme)
	}
	parsed, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("invalid location %q: %w", location, err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	f, ok := r.routes[scheme]
	if !ok {
		return nil, fmt.Errorf(
			"%w %q, supported: %s",
			ErrUnsupportedResourceScheme,
			scheme,
			strings.Join(r.Schemes(), ", "),
		)
	}
	return f.Fetch(ctx, location)
}

// Schemes returns a sorted list of registered non-empty schemes.
func (r *FetcherRouter) Schemes() []string {
	schemes := make([]string, 0, len(r.routes))
	for s := range r.routes {
		if s == "" {
			continue
		}
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)
	return schemes
}
