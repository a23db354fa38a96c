// Package progress carries fire-and-forget events from the assembler to an
// observer. Emitting never blocks and never fails the request.
package progress

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"ctxasm/internal/slogutil"
)

// EventType names a progress event.
type EventType string

const (
	// EventAnalyzing is emitted for each file considered.
	EventAnalyzing EventType = "analyzing"
	// EventSelected is emitted for each provisional or final candidate.
	EventSelected EventType = "selected"
	// EventReading is emitted for each file included in the bundle.
	EventReading EventType = "reading"
	// EventContextReady is emitted once the bundle is complete.
	EventContextReady EventType = "context_ready"
)

// Event is a single progress event.
type Event struct {
	Type EventType `json:"type"`
	Data Data      `json:"data"`
}

// Data is the event payload. Fields not relevant to a type are zero.
type Data struct {
	Path       string  `json:"path,omitempty"`
	Relevance  float64 `json:"relevance,omitempty"`
	FileCount  int     `json:"fileCount,omitempty"`
	TokenCount int     `json:"tokenCount,omitempty"`
}

func Analyzing(path string) Event {
	return Event{Type: EventAnalyzing, Data: Data{Path: path}}
}

func Selected(path string, relevance float64) Event {
	return Event{Type: EventSelected, Data: Data{Path: path, Relevance: relevance}}
}

func Reading(path string) Event {
	return Event{Type: EventReading, Data: Data{Path: path}}
}

func ContextReady(fileCount, tokenCount int) Event {
	return Event{Type: EventContextReady, Data: Data{FileCount: fileCount, TokenCount: tokenCount}}
}

// Sink receives events.
type Sink interface {
	Emit(Event)
}

// Func adapts a function to Sink.
type Func func(Event)

func (f Func) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = Func(func(Event) {})

// LogSink writes events to a logger at debug level.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Emit(e Event) {
	logger := slogutil.OrDiscard(s.Logger)
	logger.Debug("progress", "event", string(e.Type), "path", e.Data.Path,
		"relevance", e.Data.Relevance, "files", e.Data.FileCount, "tokens", e.Data.TokenCount)
}

// Collector records events in memory.
type Collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *Collector) Emit(e Event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

// OfType returns recorded events of type t.
func (c *Collector) OfType(t EventType) []Event {
	var out []Event
	for _, e := range c.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// DefaultBuffer is the Async queue size.
const DefaultBuffer = 256

// Async delivers events to a downstream sink on its own goroutine. When the
// queue is full, events are dropped and counted.
type Async struct {
	sink    Sink
	logger  *slog.Logger
	events  chan Event
	dropped atomic.Int64

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewAsync starts delivering to sink. Call Close to drain and stop.
func NewAsync(sink Sink, buffer int, logger *slog.Logger) *Async {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	a := &Async{
		sink:   sink,
		logger: slogutil.OrDiscard(logger),
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

// Emit enqueues e without blocking.
func (a *Async) Emit(e Event) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.dropped.Add(1)
		return
	}
	select {
	case a.events <- e:
	default:
		a.dropped.Add(1)
	}
}

// Dropped returns how many events were discarded.
func (a *Async) Dropped() int64 {
	return a.dropped.Load()
}

// Close stops accepting events and waits for queued ones to be delivered.
func (a *Async) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		<-a.done
		return
	}
	a.closed = true
	close(a.events)
	a.mu.Unlock()
	<-a.done
}

func (a *Async) run() {
	defer close(a.done)
	for e := range a.events {
		a.deliver(e)
	}
}

func (a *Async) deliver(e Event) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Warn("Progress sink panicked", "event", string(e.Type), "panic", r)
		}
	}()
	a.sink.Emit(e)
}
