package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type blockingSink struct {
	release chan struct{}
	mu      sync.Mutex
	seen    []Event
}

func (s *blockingSink) Emit(_ context.Context, e Event) {
	<-s.release
	s.mu.Lock()
	s.seen = append(s.seen, e)
	s.mu.Unlock()
}

func TestDispatcherDisabledIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{EventType: "x"})
	d.Close()
	if d.Dropped() != 0 || d.Delivered() != 0 {
		t.Fatal("expected nil dispatcher counters to be zero")
	}
}

func TestDispatcherDeliversAndDrainsOnClose(t *testing.T) {
	sink := NewChannelSink(16)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink)
	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{EventType: "login_success"})
	}
	d.Close()

	if got := len(sink.Events()); got != 5 {
		t.Fatalf("expected 5 events delivered, got %d", got)
	}
	if d.Delivered() != 5 {
		t.Fatalf("expected delivered counter 5, got %d", d.Delivered())
	}

	d.Emit(context.Background(), Event{EventType: "after_close"})
	if len(sink.Events()) != 5 {
		t.Fatal("expected emit after close to be ignored")
	}
}

func TestDispatcherDropIfFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	for i := 0; i < 20; i++ {
		d.Emit(context.Background(), Event{EventType: "e"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops with a blocked sink and tiny buffer")
	}
	close(sink.release)
	d.Close()
}

func TestDispatcherBlockingRespectsContext(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)
	defer func() {
		close(sink.release)
		d.Close()
	}()

	// One event is picked up by the goroutine, one fills the buffer.
	d.Emit(context.Background(), Event{EventType: "a"})
	d.Emit(context.Background(), Event{EventType: "b"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	d.Emit(ctx, Event{EventType: "c"})
	if time.Since(start) > time.Second {
		t.Fatal("expected emit to return once ctx expired")
	}
}

type panicSink struct{}

func (panicSink) Emit(context.Context, Event) { panic("sink failure") }

type deadlineSink struct {
	got chan bool
}

func (s deadlineSink) Emit(ctx context.Context, _ Event) {
	_, ok := ctx.Deadline()
	s.got <- ok
}

func TestDispatcherSurvivesPanickingSink(t *testing.T) {
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, panicSink{})
	d.Emit(context.Background(), Event{EventType: "a"})
	d.Emit(context.Background(), Event{EventType: "b"})
	d.Close()

	st := d.Stats()
	if st.Failed != 2 || st.Delivered != 0 {
		t.Fatalf("expected 2 failed deliveries, got %+v", st)
	}
}

func TestDispatcherDeliverTimeout(t *testing.T) {
	sink := deadlineSink{got: make(chan bool, 1)}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DeliverTimeout: time.Second}, sink)
	defer d.Close()

	d.Emit(context.Background(), Event{EventType: "a"})
	select {
	case ok := <-sink.got:
		if !ok {
			t.Fatal("expected sink context to carry a deadline")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestNilDispatcherStats(t *testing.T) {
	var d *Dispatcher
	if d.Stats() != (Stats{}) {
		t.Fatal("expected zero stats")
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), Event{EventType: "logout", PrincipalID: "7", Success: true})

	line := strings.TrimSpace(buf.String())
	var decoded map[string]any
	if err := json.Unmarshal([]byte(line), &decoded); err != nil {
		t.Fatalf("invalid json line %q: %v", line, err)
	}
	if decoded["user_id"] != "7" || decoded["event_type"] != "logout" {
		t.Fatalf("unexpected payload %v", decoded)
	}
}

func TestZapSinkLevels(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	sink := NewZapSink(zap.New(core))

	sink.Emit(context.Background(), Event{EventType: "login_success", PrincipalID: "1", Success: true})
	sink.Emit(context.Background(), Event{EventType: "login_failure", Error: "invalid_credentials", Metadata: map[string]string{"identifier": "bob"}})

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Level != zap.InfoLevel || entries[0].LoggerName != "audit" {
		t.Fatalf("unexpected first entry %+v", entries[0])
	}
	if entries[1].Level != zap.WarnLevel {
		t.Fatalf("expected failure at warn, got %v", entries[1].Level)
	}
	ctx := entries[1].ContextMap()
	if ctx["error_code"] != "invalid_credentials" || ctx["meta.identifier"] != "bob" {
		t.Fatalf("unexpected fields %v", ctx)
	}
}
