package diagnostics_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/relquery/diagnostics"
)

func TestCollectorDeliversOnClose(t *testing.T) {
	var mu sync.Mutex
	var got []diagnostics.Event
	c := diagnostics.NewCollector(func(events []diagnostics.Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, events...)
	}, diagnostics.WithBatchSize(100), diagnostics.WithFlushInterval(time.Hour))

	query := uuid.New()
	c.Record(diagnostics.NewEvent(diagnostics.QueryCompiled, query))
	c.Record(diagnostics.NewEvent(diagnostics.CommandFailed, query).WithError(errors.New("boom")))
	c.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.Equal(t, diagnostics.QueryCompiled, got[0].Kind)
	assert.Equal(t, "boom", got[1].Error)
	assert.Equal(t, query, got[1].QueryID)
	assert.NotEqual(t, got[0].ID, got[1].ID)
}

func TestCollectorFlushesFullBatches(t *testing.T) {
	delivered := make(chan int, 4)
	c := diagnostics.NewCollector(func(events []diagnostics.Event) {
		delivered <- len(events)
	}, diagnostics.WithBatchSize(2), diagnostics.WithFlushInterval(time.Hour))
	defer c.Close()

	c.Record(diagnostics.NewEvent(diagnostics.CommandExecuted, uuid.Nil))
	c.Record(diagnostics.NewEvent(diagnostics.CommandExecuted, uuid.Nil))

	select {
	case n := <-delivered:
		assert.Equal(t, 2, n)
	case <-time.After(5 * time.Second):
		t.Fatal("batch was not delivered")
	}
}

func TestCollectorHandlerRunsOneAtATime(t *testing.T) {
	var running, overlaps, total atomic.Int32
	c := diagnostics.NewCollector(func(events []diagnostics.Event) {
		if running.Add(1) > 1 {
			overlaps.Add(1)
		}
		time.Sleep(time.Millisecond)
		total.Add(int32(len(events)))
		running.Add(-1)
	}, diagnostics.WithBatchSize(1), diagnostics.WithFlushInterval(time.Hour))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				c.Record(diagnostics.NewEvent(diagnostics.CommandExecuted, uuid.Nil))
			}
		}()
	}
	wg.Wait()
	c.Close()

	assert.Zero(t, overlaps.Load())
	assert.Equal(t, int32(80), total.Load())
}

func TestCollectorDropsEventsAfterClose(t *testing.T) {
	var delivered atomic.Int32
	c := diagnostics.NewCollector(func(events []diagnostics.Event) {
		delivered.Add(int32(len(events)))
	}, diagnostics.WithBatchSize(1), diagnostics.WithFlushInterval(time.Hour))
	c.Record(diagnostics.NewEvent(diagnostics.CommandExecuted, uuid.Nil))
	c.Close()

	assert.NotPanics(t, func() {
		c.Record(diagnostics.NewEvent(diagnostics.CommandExecuted, uuid.Nil))
		c.Close()
	})
	assert.Equal(t, int32(1), delivered.Load())
}

func TestCollectorSurvivesPanickingHandler(t *testing.T) {
	c := diagnostics.NewCollector(func([]diagnostics.Event) { panic("handler") }, diagnostics.WithFlushInterval(time.Hour))
	c.Record(diagnostics.NewEvent(diagnostics.IterationFailed, uuid.Nil))
	assert.NotPanics(t, c.Close)
}

func TestMulti(t *testing.T) {
	var a, b int
	sink := diagnostics.Multi(
		diagnostics.SinkFunc(func(diagnostics.Event) { a++ }),
		diagnostics.SinkFunc(func(diagnostics.Event) { b++ }),
		diagnostics.Discard,
		diagnostics.Log,
	)
	sink.Record(diagnostics.NewEvent(diagnostics.MultipleCollectionInclude, uuid.Nil))
	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)
}
