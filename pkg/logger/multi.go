package logger

// MultiLogger fans every message out to a set of backends, e.g. the
// console plus a session log file. A backend that fails to write does
// not stop the others from receiving the message.
type MultiLogger struct {
	backends []Logger
}

// NewMultiLogger creates a logger that forwards to every given backend
// in order.
func NewMultiLogger(backends ...Logger) *MultiLogger {
	return &MultiLogger{backends: backends}
}

func (m *MultiLogger) each(fn func(Logger)) {
	for _, b := range m.backends {
		fn(b)
	}
}

// Info forwards an informational message to every backend.
func (m *MultiLogger) Info(format string, args ...interface{}) {
	m.each(func(b Logger) { b.Info(format, args...) })
}

// Warning forwards a warning message to every backend.
func (m *MultiLogger) Warning(format string, args ...interface{}) {
	m.each(func(b Logger) { b.Warning(format, args...) })
}

// Error forwards an error message to every backend.
func (m *MultiLogger) Error(format string, args ...interface{}) {
	m.each(func(b Logger) { b.Error(format, args...) })
}

// Close closes every backend and returns the first error seen.
func (m *MultiLogger) Close() error {
	var firstErr error
	m.each(func(b Logger) {
		if err := b.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	})
	return firstErr
}

var _ Logger = (*MultiLogger)(nil)
