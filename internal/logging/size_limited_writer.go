package logging

import (
	"os"
	"sync"
)

const defaultMaxMB = 10

// capFileWriter is an append-only log sink with a hard size cap: a write
// that would push the file past the cap truncates it first. The daemons
// run unattended for long stretches, so a bounded file beats rotation
// machinery.
type capFileWriter struct {
	mu   sync.Mutex
	path string
	cap  int64
	f    *os.File
	n    int64
}

func newSizeLimitedWriter(path string, maxMB int) (*capFileWriter, error) {
	if maxMB <= 0 {
		maxMB = defaultMaxMB
	}
	w := &capFileWriter{path: path, cap: int64(maxMB) << 20}
	if err := w.open(os.O_APPEND); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *capFileWriter) open(mode int) error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|mode, 0o644)
	if err != nil {
		return err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.n = st.Size()
	return nil
}

func (w *capFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		if err := w.open(os.O_APPEND); err != nil {
			return 0, err
		}
	}
	if w.n+int64(len(p)) > w.cap {
		_ = w.f.Close()
		w.f = nil
		if err := w.open(os.O_TRUNC); err != nil {
			return 0, err
		}
	}
	n, err := w.f.Write(p)
	w.n += int64(n)
	return n, err
}

func (w *capFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}
