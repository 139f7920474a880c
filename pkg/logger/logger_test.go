package logger

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"testing"
)

func TestStandardLoggerPrefixes(t *testing.T) {
	buf := &bytes.Buffer{}
	l := NewStandardLogger(log.New(buf, "", 0))

	l.Info("session %s started", "demo")
	l.Warning("frame deadline missed by %dms", 4)
	l.Error("fetch failed: %v", "timeout")

	out := buf.String()
	for _, want := range []string{
		"[INFO] session demo started",
		"[WARNING] frame deadline missed by 4ms",
		"[ERROR] fetch failed: timeout",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if err := l.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Info("discarded")
	l.Warning("discarded")
	l.Error("discarded")
	if err := l.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestMockLoggerRecordsCalls(t *testing.T) {
	m := NewMockLogger()
	m.Info("info %d", 1)
	m.Warning("warn %s", "x")
	m.Error("err %v", "fail")

	if len(m.InfoCalls) != 1 || m.InfoCalls[0] != "info 1" {
		t.Errorf("InfoCalls = %v", m.InfoCalls)
	}
	if len(m.WarningCalls) != 1 || m.WarningCalls[0] != "warn x" {
		t.Errorf("WarningCalls = %v", m.WarningCalls)
	}
	if len(m.ErrorCalls) != 1 || m.ErrorCalls[0] != "err fail" {
		t.Errorf("ErrorCalls = %v", m.ErrorCalls)
	}
	if m.CloseCalled {
		t.Error("CloseCalled before Close")
	}
	if err := m.Close(); err != nil || !m.CloseCalled {
		t.Errorf("Close = %v, CloseCalled = %v", err, m.CloseCalled)
	}
}

func TestMultiLoggerBroadcasts(t *testing.T) {
	m1, m2 := NewMockLogger(), NewMockLogger()
	multi := NewMultiLogger(m1, m2)

	multi.Info("info msg")
	multi.Error("error msg")

	for i, m := range []*MockLogger{m1, m2} {
		if len(m.InfoCalls) != 1 || m.InfoCalls[0] != "info msg" {
			t.Errorf("backend %d InfoCalls = %v", i, m.InfoCalls)
		}
		if len(m.ErrorCalls) != 1 || m.ErrorCalls[0] != "error msg" {
			t.Errorf("backend %d ErrorCalls = %v", i, m.ErrorCalls)
		}
	}
}

// failingCloseLogger returns a fixed error from Close.
type failingCloseLogger struct {
	NopLogger
	closeErr error
}

func (f *failingCloseLogger) Close() error {
	return f.closeErr
}

func TestMultiLoggerCloseReturnsFirstError(t *testing.T) {
	err1 := errors.New("first close failed")
	err2 := errors.New("second close failed")
	mock := NewMockLogger()
	multi := NewMultiLogger(&failingCloseLogger{closeErr: err1}, mock, &failingCloseLogger{closeErr: err2})

	if err := multi.Close(); !errors.Is(err, err1) {
		t.Errorf("Close = %v, want %v", err, err1)
	}
	// Later backends are still closed after an earlier failure.
	if !mock.CloseCalled {
		t.Error("middle backend was not closed")
	}
}

func TestMultiLoggerEmpty(t *testing.T) {
	multi := NewMultiLogger()
	multi.Info("no backends")
	if err := multi.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
