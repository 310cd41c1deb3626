// Package audit provides the append-only JSONL audit trail. The logger is
// an injected instance with an explicit lifecycle, not a package singleton,
// so concurrent benchmark runs can each own their trail.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/caldarium/qa-bench/internal/model"
)

const queueDepth = 256

// stageEvent marks the boundary of a pipeline stage.
type stageEvent struct {
	Stage     model.Stage `json:"stage"`
	Event     string      `json:"event"`
	RunID     string      `json:"run_id"`
	Timestamp time.Time   `json:"ts"`
}

// Logger serializes audit events to one JSONL file. Submissions go through
// a buffered channel consumed by a single writer goroutine, so appends never
// interleave. Close drains the queue before returning.
type Logger struct {
	runID string
	file  *os.File
	enc   *json.Encoder

	events chan any
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewRunID mints a sortable run identifier.
func NewRunID(now time.Time) string {
	return fmt.Sprintf("run-%s-%s", now.UTC().Format("20060102-150405"), uuid.NewString()[:8])
}

// Open creates the audit file and starts the writer goroutine. The file is
// truncated: one file per run.
func Open(path, runID string) (*Logger, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, eris.Wrap(err, "audit: open log")
	}
	l := &Logger{
		runID:  runID,
		file:   f,
		enc:    json.NewEncoder(f),
		events: make(chan any, queueDepth),
		done:   make(chan struct{}),
	}
	go l.write()
	return l, nil
}

// RunID returns the identifier events are stamped with.
func (l *Logger) RunID() string { return l.runID }

func (l *Logger) write() {
	defer close(l.done)
	for ev := range l.events {
		if m, ok := ev.(flushMarker); ok {
			close(m.done)
			continue
		}
		if err := l.enc.Encode(ev); err != nil {
			zap.L().Error("audit: encode event", zap.Error(err))
		}
	}
}

type flushMarker struct{ done chan struct{} }

func (l *Logger) submit(ev any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		zap.L().Warn("audit: event after close dropped")
		return
	}
	l.events <- ev
}

// StageStart records entry into a pipeline stage.
func (l *Logger) StageStart(stage model.Stage) {
	l.submit(stageEvent{Stage: stage, Event: "start", RunID: l.runID, Timestamp: time.Now().UTC()})
}

// StageEnd records completion of a pipeline stage.
func (l *Logger) StageEnd(stage model.Stage) {
	l.submit(stageEvent{Stage: stage, Event: "end", RunID: l.runID, Timestamp: time.Now().UTC()})
}

// Classification records one taxonomy outcome for one document.
func (l *Logger) Classification(ev model.ErrorEvent) {
	l.submit(ev)
}

// Flush blocks until every event submitted so far has been written, then
// syncs the file.
func (l *Logger) Flush() error {
	flushed := make(chan struct{})
	l.submit(flushMarker{done: flushed})
	select {
	case <-flushed:
	case <-l.done:
	}
	if err := l.file.Sync(); err != nil {
		return eris.Wrap(err, "audit: sync log")
	}
	return nil
}

// Close drains the queue, stops the writer, and closes the file. The logger
// accepts no events afterwards.
func (l *Logger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.events)
	l.mu.Unlock()

	<-l.done
	if err := l.file.Close(); err != nil {
		return eris.Wrap(err, "audit: close log")
	}
	return nil
}
