package psylib

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"path"
	"strings"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
)

// SurveyClient fetches questionnaire definitions from the experiment
// server. Survey models are not generic assets; they are served by a
// dedicated remote call.
type SurveyClient interface {
	GetSurvey(ctx context.Context, surveyID string) (json.RawMessage, error)
}

// RPCSurveyClient is a SurveyClient speaking JSON-RPC 2.0 over a
// stream connection.
type RPCSurveyClient struct {
	cli *jrpc2.Client
}

// NewRPCSurveyClient wraps an established connection. The caller keeps
// ownership of nothing; Close tears the connection down.
func NewRPCSurveyClient(conn io.ReadWriteCloser) *RPCSurveyClient {
	return &RPCSurveyClient{
		cli: jrpc2.NewClient(channel.Line(conn, conn), nil),
	}
}

// DialSurveyServer connects to a survey server over TCP.
func DialSurveyServer(addr string) (*RPCSurveyClient, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewRPCSurveyClient(conn), nil
}

// GetSurvey calls survey.get and returns the raw model document.
func (c *RPCSurveyClient) GetSurvey(ctx context.Context, surveyID string) (json.RawMessage, error) {
	var model json.RawMessage
	err := c.cli.CallResult(ctx, "survey.get", map[string]string{
		"surveyId": surveyID,
	}, &model)
	if err != nil {
		return nil, err
	}
	return model, nil
}

// Close shuts the underlying connection down.
func (c *RPCSurveyClient) Close() error {
	return c.cli.Close()
}

// surveyLoader resolves .sid resources through a SurveyClient.
type surveyLoader struct {
	client SurveyClient
}

// surveyID derives the model identifier from a resource location:
// the base name with the .sid extension stripped.
func surveyID(location string) string {
	base := path.Base(location)
	return strings.TrimSuffix(base, path.Ext(base))
}

func (l *surveyLoader) Start(ctx context.Context, batch []*ResourceRecord, cb *LoaderCallbacks) {
	cb.setDefault()
	for _, rec := range batch {
		cb.Started(rec.Name)
		if l.client == nil {
			cb.Errored(rec.Name, newResourceError("survey-loader", "fetching "+rec.Name, ErrNoSurveyClient))
			continue
		}
		model, err := l.client.GetSurvey(ctx, surveyID(rec.Path))
		if err != nil {
			cb.Errored(rec.Name, newResourceError("survey-loader", "fetching survey "+surveyID(rec.Path), err))
			continue
		}
		cb.Completed(rec.Name, model)
	}
	cb.BatchComplete()
}
