// Package diagnostics provides fire-and-forget notifications about query
// compilation and execution. Sinks never alter control flow: recording an
// event cannot fail and never blocks on delivery.
package diagnostics

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/satishbabariya/relquery/internal/debug"
)

// Kind classifies an event
type Kind string

const (
	QueryCompiled   Kind = "query_compiled"
	CommandExecuted Kind = "command_executed"
	CommandFailed   Kind = "command_failed"
	// IterationFailed is recorded when enumerating results fails after the
	// command was executed
	IterationFailed Kind = "iteration_failed"
	// MultipleCollectionInclude advises that a single query loads several
	// collections of one owner
	MultipleCollectionInclude Kind = "multiple_collection_include"
)

// Event is one diagnostics notification
type Event struct {
	ID        uuid.UUID      `json:"id" yaml:"id"`
	Kind      Kind           `json:"kind" yaml:"kind"`
	QueryID   uuid.UUID      `json:"query_id,omitempty" yaml:"query_id,omitempty"`
	Command   string         `json:"command,omitempty" yaml:"command,omitempty"`
	Message   string         `json:"message,omitempty" yaml:"message,omitempty"`
	Duration  time.Duration  `json:"duration,omitempty" yaml:"duration,omitempty"`
	Error     string         `json:"error,omitempty" yaml:"error,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp" yaml:"timestamp"`
}

// NewEvent creates an event of kind with a fresh id and timestamp
func NewEvent(kind Kind, queryID uuid.UUID) Event {
	return Event{ID: newID(), Kind: kind, QueryID: queryID, Timestamp: time.Now()}
}

// WithError sets the error message of the event
func (e Event) WithError(err error) Event {
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

func newID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}

// Sink receives events
type Sink interface {
	Record(Event)
}

// SinkFunc adapts a function to a Sink
type SinkFunc func(Event)

// Record implements Sink
func (f SinkFunc) Record(e Event) { f(e) }

// Discard drops every event
var Discard Sink = SinkFunc(func(Event) {})

// Log records events through the debug logger
var Log Sink = SinkFunc(func(e Event) {
	args := []any{"kind", string(e.Kind), "query", e.QueryID.String()}
	if e.Command != "" {
		args = append(args, "command", e.Command)
	}
	if e.Duration > 0 {
		args = append(args, "duration", e.Duration)
	}
	if e.Error != "" {
		debug.Warn("Diagnostics event", append(args, "error", e.Error)...)
		return
	}
	debug.Debug("Diagnostics event", args...)
})

// Multi fans events out to several sinks
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(e Event) {
		for _, s := range sinks {
			s.Record(e)
		}
	})
}

// Collector batches events in memory and hands them to a handler from its
// background goroutine, either when a batch fills up or on every flush
// interval. The handler is never called concurrently. Events recorded after
// Close are dropped.
type Collector struct {
	handler       func([]Event)
	events        []Event
	closed        bool
	mu            sync.Mutex
	batchSize     int
	flushInterval time.Duration
	flushChan     chan struct{}
	stopChan      chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
}

// CollectorOption configures a Collector
type CollectorOption func(*Collector)

// WithBatchSize sets the number of events that triggers a flush
func WithBatchSize(n int) CollectorOption {
	return func(c *Collector) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithFlushInterval sets the periodic flush interval
func WithFlushInterval(d time.Duration) CollectorOption {
	return func(c *Collector) {
		if d > 0 {
			c.flushInterval = d
		}
	}
}

// NewCollector starts a collector delivering batches to handler
func NewCollector(handler func([]Event), opts ...CollectorOption) *Collector {
	c := &Collector{
		handler:       handler,
		events:        make([]Event, 0, 100),
		batchSize:     10,
		flushInterval: 30 * time.Second,
		flushChan:     make(chan struct{}, 1),
		stopChan:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.startBackgroundFlush()
	return c
}

// Record implements Sink
func (c *Collector) Record(e Event) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		debug.Debug("Diagnostics event dropped after close", "kind", string(e.Kind))
		return
	}
	c.events = append(c.events, e)
	full := len(c.events) >= c.batchSize
	c.mu.Unlock()

	if full {
		select {
		case c.flushChan <- struct{}{}:
		default:
		}
	}
}

// flush hands the collected events to the handler
func (c *Collector) flush() {
	c.mu.Lock()
	if len(c.events) == 0 {
		c.mu.Unlock()
		return
	}
	events := make([]Event, len(c.events))
	copy(events, c.events)
	c.events = c.events[:0]
	c.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			debug.Error("Diagnostics handler panicked", "panic", r)
		}
	}()
	c.handler(events)
}

// startBackgroundFlush starts a background goroutine to flush events periodically
func (c *Collector) startBackgroundFlush() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.flush()
			case <-c.flushChan:
				c.flush()
			case <-c.stopChan:
				c.flush()
				return
			}
		}
	}()
}

// Close stops the collector and delivers the remaining events
func (c *Collector) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
	c.wg.Wait()
}
