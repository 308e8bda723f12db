// Package logging mirrors the daemon's log stream into a size-capped file so
// a headless host keeps something to read after a crash.
package logging

import (
	"io"
	"log"
	"os"
	"sync"
)

const defaultMaxSize = 2 << 20 // 2MB

// RotatingWriter appends to one log file and swaps it for a fresh one once
// it grows past maxSize, keeping a single rotated-out copy at path+".1".
type RotatingWriter struct {
	mu      sync.Mutex
	f       *os.File
	path    string
	written int64
	maxSize int64
}

// Setup routes the stdlib logger to stdout plus the given file. An oversized
// leftover from a previous run is emptied up front instead of rotated.
func Setup(logPath string) (*RotatingWriter, error) {
	if info, err := os.Stat(logPath); err == nil && info.Size() > defaultMaxSize {
		os.Truncate(logPath, 0)
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	rw := &RotatingWriter{
		f:       f,
		path:    logPath,
		written: size,
		maxSize: defaultMaxSize,
	}

	log.SetOutput(io.MultiWriter(os.Stdout, rw))
	return rw, nil
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.f.Write(p)
	w.written += int64(n)
	if w.written > w.maxSize {
		w.rotate()
	}
	return n, err
}

// rotate is called with the lock held. A failed reopen leaves the old handle
// closed; subsequent writes error until the next successful rotation.
func (w *RotatingWriter) rotate() {
	w.f.Close()
	os.Rename(w.path, w.path+".1")

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return
	}
	w.f = f
	w.written = 0
}

func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}
