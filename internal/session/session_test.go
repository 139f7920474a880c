package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/psykit/psykit/internal/exprs"
	"github.com/psykit/psykit/pkg/psylib"
)

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(`{
      "name": "demo",
      "resources": [{"name": "a.png", "path": "res/a.png"}],
      "blocks": [{"name": "b1", "resources": ["a.png"]}]
    }`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Name != "demo" || len(m.Blocks) != 1 {
		t.Errorf("manifest = %+v", m)
	}
	if names := m.ResourceNames(); len(names) != 1 || names[0] != "a.png" {
		t.Errorf("ResourceNames = %v", names)
	}
}

func TestParseManifestRejectsBadReferences(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"missing name", `{"blocks":[]}`},
		{"duplicate block", `{"name":"x","blocks":[{"name":"b"},{"name":"b"}]}`},
		{"duplicate resource", `{"name":"x","resources":[{"name":"a","path":"p"},{"name":"a","path":"q"}]}`},
		{"unknown block resource", `{"name":"x","blocks":[{"name":"b","resources":["ghost"]}]}`},
		{"unknown conditions", `{"name":"x","blocks":[{"name":"b","conditions":"ghost"}]}`},
		{"not json", `{`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseManifest([]byte(tc.raw)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadManifest(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/exp/manifest.json", []byte(`{"name":"demo"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := LoadManifest(fs, "/exp/manifest.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Name != "demo" {
		t.Errorf("name = %q", m.Name)
	}
	if _, err := LoadManifest(fs, "/exp/missing.json"); err == nil {
		t.Error("expected error for missing file")
	}
}

func runSession(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sched, err := s.Build(ctx)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := sched.Start(ctx); err != nil {
		t.Fatalf("session run failed: %v", err)
	}
}

func TestSessionRunsBlocksInOrder(t *testing.T) {
	m := &Manifest{
		Name: "order",
		Blocks: []Block{
			{Name: "first"},
			{Name: "second"},
		},
	}
	var order []string
	routine := func(name string) RoutineFactory {
		return func(_ Block, _ int, _ map[string]string) []psylib.Task {
			return []psylib.Task{psylib.FuncTask(func(...any) (psylib.ControlSignal, error) {
				order = append(order, name)
				return psylib.SignalNext, nil
			})}
		}
	}
	s, err := New(m, &Opts{
		Manager: psylib.NewResourceManager(nil),
		Clock:   psylib.NewTickerClock(500),
		Routines: map[string]RoutineFactory{
			"first":  routine("first"),
			"second": routine("second"),
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	runSession(t, s)

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("order = %v, want [first second]", order)
	}
}

func TestSessionRunIfGatesBlock(t *testing.T) {
	m := &Manifest{
		Name: "gated",
		Blocks: []Block{
			{Name: "always"},
			{Name: "skipped", RunIf: "false"},
			{Name: "taken", RunIf: "1 + 1 === 2"},
		},
	}
	ran := map[string]int{}
	factory := func(block Block, _ int, _ map[string]string) []psylib.Task {
		return []psylib.Task{psylib.FuncTask(func(...any) (psylib.ControlSignal, error) {
			ran[block.Name]++
			return psylib.SignalNext, nil
		})}
	}
	s, err := New(m, &Opts{
		Manager: psylib.NewResourceManager(nil),
		Clock:   psylib.NewTickerClock(500),
		Routines: map[string]RoutineFactory{
			"always":  factory,
			"skipped": factory,
			"taken":   factory,
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	runSession(t, s)

	if ran["always"] != 1 || ran["skipped"] != 0 || ran["taken"] != 1 {
		t.Errorf("ran = %v", ran)
	}
}

func TestSessionLoopWhile(t *testing.T) {
	m := &Manifest{
		Name:   "looped",
		Blocks: []Block{{Name: "practice", LoopWhile: "iteration < 3"}},
	}
	var iterations []int
	s, err := New(m, &Opts{
		Manager: psylib.NewResourceManager(nil),
		Engine:  exprs.New(nil),
		Clock:   psylib.NewTickerClock(500),
		Routines: map[string]RoutineFactory{
			"practice": func(_ Block, i int, _ map[string]string) []psylib.Task {
				return []psylib.Task{psylib.FuncTask(func(...any) (psylib.ControlSignal, error) {
					iterations = append(iterations, i)
					return psylib.SignalNext, nil
				})}
			},
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	runSession(t, s)

	if len(iterations) != 3 || iterations[2] != 2 {
		t.Errorf("iterations = %v, want [0 1 2]", iterations)
	}
}

func TestSessionConditionRowsDriveIterations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/conds.csv":
			w.Write([]byte("word,ink\nred,blue\nblue,red\n"))
		case "/stim.png":
			w.Write([]byte("pixels"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	m := &Manifest{
		Name: "stroop",
		Resources: []psylib.ResourceEntry{
			{Name: "conds.csv", Path: srv.URL + "/conds.csv"},
			{Name: "stim.png", Path: srv.URL + "/stim.png"},
		},
		Blocks: []Block{{Name: "trials", Conditions: "conds.csv"}},
	}

	var words []string
	s, err := New(m, &Opts{
		Manager: psylib.NewResourceManager(nil),
		Clock:   psylib.NewTickerClock(500),
		Routines: map[string]RoutineFactory{
			"trials": func(_ Block, _ int, row map[string]string) []psylib.Task {
				return []psylib.Task{psylib.FuncTask(func(...any) (psylib.ControlSignal, error) {
					words = append(words, row["word"])
					return psylib.SignalFlipNext, nil
				})}
			},
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	runSession(t, s)

	if len(words) != 2 || words[0] != "red" || words[1] != "blue" {
		t.Errorf("words = %v, want [red blue]", words)
	}
}

func TestSessionEndStopsRemainingBlocks(t *testing.T) {
	m := &Manifest{
		Name: "abort",
		Blocks: []Block{
			{Name: "first"},
			{Name: "never"},
		},
	}
	ran := map[string]int{}
	var s *Session
	s, err := New(m, &Opts{
		Manager: psylib.NewResourceManager(nil),
		Clock:   psylib.NewTickerClock(500),
		Routines: map[string]RoutineFactory{
			"first": func(_ Block, _ int, _ map[string]string) []psylib.Task {
				return []psylib.Task{psylib.FuncTask(func(...any) (psylib.ControlSignal, error) {
					ran["first"]++
					s.End()
					return psylib.SignalQuit, nil
				})}
			},
			"never": func(_ Block, _ int, _ map[string]string) []psylib.Task {
				return []psylib.Task{psylib.FuncTask(func(...any) (psylib.ControlSignal, error) {
					ran["never"]++
					return psylib.SignalNext, nil
				})}
			},
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	runSession(t, s)

	if ran["first"] != 1 {
		t.Errorf("first ran %d times, want 1", ran["first"])
	}
	if ran["never"] != 0 {
		t.Errorf("block after End ran %d times, want 0", ran["never"])
	}
	if !s.Ended() {
		t.Error("Ended() = false after End()")
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(nil, &Opts{Manager: psylib.NewResourceManager(nil)}); err == nil {
		t.Error("expected error for nil manifest")
	}
	if _, err := New(&Manifest{Name: "x"}, nil); err == nil {
		t.Error("expected error for nil opts")
	}
}
