// Package eventlog appends run progress events to date-organized JSONL files.
package eventlog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/docsmoke/internal/smoke"
)

const (
	defaultBufferSize = 256
	defaultMaxSizeMB  = 10
	closeTimeout      = 5 * time.Second
)

// Writer queues events and writes them from one goroutine so observers
// never block a running check. Files live at <dir>/<YYYY-MM-DD>/events.jsonl
// (UTC) and rotate by size.
type Writer struct {
	dir       string
	maxSizeMB int
	now       func() time.Time

	writeCh chan smoke.Event
	done    chan struct{}
	wg      sync.WaitGroup

	mu          sync.Mutex
	currentDate string
	logger      *lumberjack.Logger
	closed      bool
	dropped     int
}

// NewWriter starts a writer rooted at dir.
func NewWriter(dir string) *Writer {
	w := &Writer{
		dir:       dir,
		maxSizeMB: defaultMaxSizeMB,
		now:       time.Now,
		writeCh:   make(chan smoke.Event, defaultBufferSize),
		done:      make(chan struct{}),
	}
	w.wg.Add(1)
	go w.writeLoop()
	return w
}

// Observer returns a smoke.Observer that queues every event. Events arriving
// while the buffer is full are dropped and counted.
func (w *Writer) Observer() smoke.Observer {
	return func(evt smoke.Event) {
		if err := w.Write(evt); err != nil {
			slog.Debug("event log write skipped", "type", evt.Type, "run_id", evt.RunID, "error", err)
		}
	}
}

// Write queues evt without blocking.
func (w *Writer) Write(evt smoke.Event) error {
	select {
	case <-w.done:
		return fmt.Errorf("event log is closed")
	default:
	}
	select {
	case w.writeCh <- evt:
		return nil
	default:
		w.mu.Lock()
		w.dropped++
		w.mu.Unlock()
		return fmt.Errorf("event log buffer full")
	}
}

// Dropped reports how many events were discarded because the buffer was full.
func (w *Writer) Dropped() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropped
}

// Close flushes queued events and closes the current file.
func (w *Writer) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	close(w.done)
	w.wg.Wait()

	timeout := time.After(closeTimeout)
drain:
	for {
		select {
		case evt := <-w.writeCh:
			w.writeEvent(evt)
		case <-timeout:
			slog.Warn("event log close timeout, some events may be lost", "dir", w.dir)
			break drain
		default:
			break drain
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.logger != nil {
		return w.logger.Close()
	}
	return nil
}

func (w *Writer) writeLoop() {
	defer w.wg.Done()
	for {
		select {
		case evt := <-w.writeCh:
			w.writeEvent(evt)
		case <-w.done:
			return
		}
	}
}

func (w *Writer) writeEvent(evt smoke.Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		slog.Error("event log marshal failed", "type", evt.Type, "error", err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	date := w.now().UTC().Format("2006-01-02")
	if w.logger == nil || date != w.currentDate {
		if err := w.openForDate(date); err != nil {
			slog.Error("event log open failed", "dir", w.dir, "error", err)
			return
		}
	}
	if _, err := w.logger.Write(append(data, '\n')); err != nil {
		slog.Error("event log write failed", "error", err)
	}
}

func (w *Writer) openForDate(date string) error {
	if w.logger != nil {
		_ = w.logger.Close()
		w.logger = nil
	}
	dir := filepath.Join(w.dir, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	w.logger = &lumberjack.Logger{
		Filename:   filepath.Join(dir, "events.jsonl"),
		MaxSize:    w.maxSizeMB,
		MaxBackups: 20,
		MaxAge:     30,
	}
	w.currentDate = date
	slog.Debug("event log file opened", "file", w.logger.Filename)
	return nil
}
