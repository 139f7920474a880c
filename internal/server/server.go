// Package server exposes a running experiment to observers: a
// WebSocket endpoint speaking JSON-RPC 2.0 with query methods for
// resource state and push notifications for pipeline events.
package server

import (
	"context"
	"log"
	"net/http"

	cws "github.com/coder/websocket"
	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"

	"github.com/psykit/psykit/pkg/psylib"
)

const codeResourceNotFound = jrpc2.Code(-32001)

// Config carries the event server's identity and auth settings.
type Config struct {
	// Secret is the bearer token observers must present.
	Secret  string
	Version string
	Commit  string
}

// EventServer serves experiment state over /events/ws.
type EventServer struct {
	cfg      *Config
	manager  *psylib.ResourceManager
	notifier *Notifier
	l        *log.Logger
}

// NewEventServer wires an event server to a resource manager.
func NewEventServer(cfg *Config, m *psylib.ResourceManager, l *log.Logger) *EventServer {
	if l == nil {
		l = log.Default()
	}
	return &EventServer{
		cfg:      cfg,
		manager:  m,
		notifier: NewNotifier(l),
		l:        l,
	}
}

// Notifier returns the broadcast set, for wiring pipeline handlers.
func (s *EventServer) Notifier() *Notifier {
	return s.notifier
}

// Handler returns the HTTP handler serving the observer endpoint.
func (s *EventServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/events/ws", requireToken(s.cfg.Secret, http.HandlerFunc(s.handleWS)))
	return mux
}

// handleWS upgrades the connection and runs a per-observer jrpc2
// server over it until the observer disconnects.
func (s *EventServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := cws.Accept(w, r, nil)
	if err != nil {
		s.l.Printf("websocket accept failed: %v", err)
		return
	}

	ch := &wsChannel{conn: conn, ctx: r.Context()}
	srv := jrpc2.NewServer(s.methods(), nil)
	srv.Start(ch)
	s.notifier.Register(srv)
	defer s.notifier.Unregister(srv)

	if err := srv.Wait(); err != nil {
		s.l.Printf("observer session ended: %v", err)
	}
	ch.Close()
}

// VersionResult is the response for system.getVersion.
type VersionResult struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
}

// StatusParams selects resources for resource.getStatus. Empty names
// means all registered resources.
type StatusParams struct {
	Names []string `json:"names"`
}

// StatusResult is the response for resource.getStatus.
type StatusResult struct {
	Status string `json:"status"`
}

// ListItem is one resource in a resource.list response.
type ListItem struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Kind   string `json:"kind"`
	Status string `json:"status"`
}

// ListResult is the response for resource.list.
type ListResult struct {
	Resources []*ListItem `json:"resources"`
}

func (s *EventServer) methods() handler.Map {
	return handler.Map{
		"system.getVersion":  handler.New(s.systemGetVersion),
		"resource.getStatus": handler.New(s.resourceGetStatus),
		"resource.list":      handler.New(s.resourceList),
	}
}

func (s *EventServer) systemGetVersion(_ context.Context) (*VersionResult, error) {
	return &VersionResult{Version: s.cfg.Version, Commit: s.cfg.Commit}, nil
}

// resourceGetStatus reports the reduced status over the named
// resources, or over everything registered when no names are given.
func (s *EventServer) resourceGetStatus(_ context.Context, p *StatusParams) (*StatusResult, error) {
	names := p.Names
	if len(names) == 0 {
		for _, rec := range s.manager.Snapshot() {
			names = append(names, rec.Name)
		}
	}
	if len(names) == 0 {
		return &StatusResult{Status: psylib.StatusDownloaded.String()}, nil
	}
	status, err := s.manager.GetResourceStatus(names...)
	if err != nil {
		return nil, &jrpc2.Error{Code: codeResourceNotFound, Message: err.Error()}
	}
	return &StatusResult{Status: status.String()}, nil
}

func (s *EventServer) resourceList(_ context.Context) (*ListResult, error) {
	records := s.manager.Snapshot()
	resources := make([]*ListItem, 0, len(records))
	for _, rec := range records {
		resources = append(resources, &ListItem{
			Name:   rec.Name,
			Path:   rec.Path,
			Kind:   rec.Kind.String(),
			Status: rec.Status.String(),
		})
	}
	return &ListResult{Resources: resources}, nil
}
