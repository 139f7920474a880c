package psylib

import (
	"context"
	"encoding/json"
	"net"
	"testing"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/creachadair/jrpc2/handler"
)

// startSurveyServer serves survey.get over one end of a pipe and
// returns the client end.
func startSurveyServer(t *testing.T, models map[string]string) net.Conn {
	t.Helper()
	clientEnd, serverEnd := net.Pipe()

	srv := jrpc2.NewServer(handler.Map{
		"survey.get": handler.New(func(ctx context.Context, params struct {
			SurveyID string `json:"surveyId"`
		}) (json.RawMessage, error) {
			model, ok := models[params.SurveyID]
			if !ok {
				return nil, jrpc2.Errorf(404, "unknown survey %q", params.SurveyID)
			}
			return json.RawMessage(model), nil
		}),
	}, nil)
	srv.Start(channel.Line(serverEnd, serverEnd))
	t.Cleanup(func() { srv.Stop() })
	return clientEnd
}

func TestRPCSurveyClient(t *testing.T) {
	conn := startSurveyServer(t, map[string]string{
		"intro": `{"pages":[{"name":"welcome"}]}`,
	})
	client := NewRPCSurveyClient(conn)
	defer client.Close()

	model, err := client.GetSurvey(context.Background(), "intro")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var parsed struct {
		Pages []struct {
			Name string `json:"name"`
		} `json:"pages"`
	}
	if err := json.Unmarshal(model, &parsed); err != nil {
		t.Fatalf("model is not valid JSON: %v", err)
	}
	if len(parsed.Pages) != 1 || parsed.Pages[0].Name != "welcome" {
		t.Errorf("model = %s", model)
	}

	if _, err := client.GetSurvey(context.Background(), "missing"); err == nil {
		t.Error("expected error for unknown survey")
	}
}

func TestSurveyIDFromLocation(t *testing.T) {
	cases := []struct {
		location string
		want     string
	}{
		{"intro.sid", "intro"},
		{"models/consent.sid", "consent"},
		{"https://lab.example.org/s/debrief.sid", "debrief"},
	}
	for _, tc := range cases {
		if got := surveyID(tc.location); got != tc.want {
			t.Errorf("surveyID(%s) = %q, want %q", tc.location, got, tc.want)
		}
	}
}
