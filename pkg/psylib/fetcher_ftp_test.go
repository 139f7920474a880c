package psylib

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"testing"
	"time"

	ftpserver "github.com/fclairamb/ftpserverlib"
	"github.com/spf13/afero"
)

// testFTPDriver implements ftpserver.MainDriver over an in-memory fs.
type testFTPDriver struct {
	fs       afero.Fs
	listener net.Listener
}

func (d *testFTPDriver) GetSettings() (*ftpserver.Settings, error) {
	return &ftpserver.Settings{
		Listener:    d.listener,
		IdleTimeout: 30,
	}, nil
}

func (d *testFTPDriver) ClientConnected(_ ftpserver.ClientContext) (string, error) {
	return "test ftp server", nil
}

func (d *testFTPDriver) ClientDisconnected(_ ftpserver.ClientContext) {}

func (d *testFTPDriver) AuthUser(_ ftpserver.ClientContext, user, pass string) (ftpserver.ClientDriver, error) {
	if user == "anonymous" && pass == "anonymous" {
		return afero.NewBasePathFs(d.fs, "/"), nil
	}
	if user == "lab" && pass == "secret" {
		return afero.NewBasePathFs(d.fs, "/"), nil
	}
	return nil, fmt.Errorf("invalid credentials")
}

func (d *testFTPDriver) GetTLSConfig() (*tls.Config, error) {
	return nil, nil
}

// startTestFTPServer serves files from an in-memory fs on a random port.
func startTestFTPServer(t *testing.T, files map[string][]byte) (addr string) {
	t.Helper()

	memFs := afero.NewMemMapFs()
	for name, body := range files {
		if err := afero.WriteFile(memFs, name, body, 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}
	server := ftpserver.NewFtpServer(&testFTPDriver{fs: memFs, listener: listener})
	go func() {
		server.ListenAndServe()
	}()
	t.Cleanup(func() { server.Stop() })

	time.Sleep(100 * time.Millisecond)
	return listener.Addr().String()
}

func TestFTPFetcher(t *testing.T) {
	body := bytes.Repeat([]byte{0xAB}, 2048)
	addr := startTestFTPServer(t, map[string][]byte{
		"/stim/movie.mp4": body,
	})

	f := &ftpFetcher{DialTimeout: 5 * time.Second}
	data, err := f.Fetch(context.Background(), "ftp://"+addr+"/stim/movie.mp4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(data, body) {
		t.Errorf("fetched %d bytes, want %d", len(data), len(body))
	}
}

func TestFTPFetcherCredentialsFromURL(t *testing.T) {
	addr := startTestFTPServer(t, map[string][]byte{
		"/private/conds.csv": []byte("trial\n1\n"),
	})

	f := &ftpFetcher{DialTimeout: 5 * time.Second}
	data, err := f.Fetch(context.Background(), "ftp://lab:secret@"+addr+"/private/conds.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "trial\n1\n" {
		t.Errorf("body = %q", data)
	}

	if _, err := f.Fetch(context.Background(), "ftp://lab:wrong@"+addr+"/private/conds.csv"); err == nil {
		t.Error("expected login error for bad credentials")
	}
}

func TestFTPFetcherRejectsEmptyPath(t *testing.T) {
	f := &ftpFetcher{}
	if _, err := f.Fetch(context.Background(), "ftp://host/"); err == nil {
		t.Error("expected error for root path")
	}
}

func TestFTPFetcherViaRouter(t *testing.T) {
	addr := startTestFTPServer(t, map[string][]byte{
		"/pub/beep.wav": []byte("riff"),
	})

	router := NewFetcherRouter(nil, afero.NewMemMapFs())
	data, err := router.Fetch(context.Background(), "ftp://"+addr+"/pub/beep.wav")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "riff" {
		t.Errorf("body = %q, want riff", data)
	}
}
