package progress

import (
	"testing"
	"time"
)

func TestAsync_DeliversInOrder(t *testing.T) {
	var c Collector
	a := NewAsync(&c, 16, nil)
	a.Emit(Analyzing("a.ts"))
	a.Emit(Selected("a.ts", 1))
	a.Emit(ContextReady(1, 10))
	a.Close()

	events := c.Events()
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if events[0].Type != EventAnalyzing || events[2].Data.TokenCount != 10 {
		t.Errorf("events = %+v", events)
	}
}

func TestAsync_DropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	blocking := Func(func(Event) { <-release })
	a := NewAsync(blocking, 1, nil)

	start := time.Now()
	for i := 0; i < 10; i++ {
		a.Emit(Reading("x"))
	}
	if time.Since(start) > time.Second {
		t.Error("Emit blocked on a slow sink")
	}
	close(release)
	a.Close()

	// One in flight plus one queued at most.
	if a.Dropped() < 8 {
		t.Errorf("Dropped = %d, want >= 8", a.Dropped())
	}
}

func TestAsync_RecoversPanics(t *testing.T) {
	var c Collector
	calls := 0
	sink := Func(func(e Event) {
		calls++
		if calls == 1 {
			panic("boom")
		}
		c.Emit(e)
	})
	a := NewAsync(sink, 4, nil)
	a.Emit(Reading("first"))
	a.Emit(Reading("second"))
	a.Close()

	if got := c.Events(); len(got) != 1 || got[0].Data.Path != "second" {
		t.Errorf("events after panic = %+v", got)
	}
}

func TestAsync_EmitAfterClose(t *testing.T) {
	a := NewAsync(Discard, 1, nil)
	a.Close()
	a.Emit(Reading("late"))
	a.Close()
	if a.Dropped() != 1 {
		t.Errorf("Dropped = %d, want 1", a.Dropped())
	}
}

func TestCollector_OfType(t *testing.T) {
	var c Collector
	c.Emit(Reading("a"))
	c.Emit(Selected("a", 0.5))
	c.Emit(Reading("b"))
	if got := len(c.OfType(EventReading)); got != 2 {
		t.Errorf("OfType(reading) = %d, want 2", got)
	}
	LogSink{}.Emit(Reading("a"))
}
