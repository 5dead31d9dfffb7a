package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bft-labs/stamper/internal/annotator"
	"github.com/bft-labs/stamper/internal/domain"
	"github.com/bft-labs/stamper/internal/ports"
)

// sliceSource yields a fixed list of results, then either ErrEndOfStream or blocks
// until the context is canceled.
type sliceSource struct {
	mu      sync.Mutex
	results []readResult
	block   bool
	closed  bool
}

func newSliceSource(events ...*domain.Event) *sliceSource {
	s := &sliceSource{}
	for _, e := range events {
		s.results = append(s.results, readResult{event: e})
	}
	return s
}

func (s *sliceSource) Next(ctx context.Context) (*domain.Event, error) {
	s.mu.Lock()
	if len(s.results) > 0 {
		r := s.results[0]
		s.results = s.results[1:]
		s.mu.Unlock()
		return r.event, r.err
	}
	block := s.block
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return nil, ports.ErrEndOfStream
}

func (s *sliceSource) Close() error {
	s.closed = true
	return nil
}

// memorySink records every batch it receives.
type memorySink struct {
	mu      sync.Mutex
	batches [][]*domain.Event
	err     error
}

func (m *memorySink) Write(ctx context.Context, events []*domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.batches = append(m.batches, events)
	return nil
}

func (m *memorySink) Close() error { return nil }

func (m *memorySink) Batches() [][]*domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]*domain.Event{}, m.batches...)
}

func (m *memorySink) Events() []*domain.Event {
	var all []*domain.Event
	for _, b := range m.Batches() {
		all = append(all, b...)
	}
	return all
}

// memoryStatusRepo keeps the last saved status.
type memoryStatusRepo struct {
	mu     sync.Mutex
	status domain.Status
	saves  int
}

func (r *memoryStatusRepo) Load(ctx context.Context) (domain.Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status, nil
}

func (r *memoryStatusRepo) Save(ctx context.Context, st domain.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = st
	r.saves++
	return nil
}

func numberedEvents(n int) []*domain.Event {
	events := make([]*domain.Event, n)
	for i := range events {
		events[i] = domain.NewEvent([]byte(fmt.Sprintf("event-%d", i)))
	}
	return events
}

func kafkaProd(preserve bool) *annotator.Annotator {
	return annotator.New(annotator.Config{Source: "kafka", Env: "prod", PreserveExisting: preserve}, nil)
}

func TestPipeline_RunToEOF(t *testing.T) {
	in := numberedEvents(5)
	in[1].Headers["source"] = "legacy"
	sink := &memorySink{}
	repo := &memoryStatusRepo{}

	p := NewPipeline(PipelineConfig{BatchSize: 2, FlushInterval: time.Hour},
		kafkaProd(true), newSliceSource(in...), sink, repo, nil, nil)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := len(sink.Batches()); got != 3 {
		t.Errorf("got %d batches, want 3 (2+2+1)", got)
	}
	out := sink.Events()
	if len(out) != len(in) {
		t.Fatalf("got %d events, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("event %d out of order or copied", i)
		}
		if out[i].Headers["env"] != "prod" {
			t.Errorf("event %d env = %q", i, out[i].Headers["env"])
		}
	}
	if in[1].Headers["source"] != "legacy" {
		t.Errorf("preserved source overwritten: %q", in[1].Headers["source"])
	}
	if in[0].Headers["source"] != "kafka" {
		t.Errorf("source = %q, want kafka", in[0].Headers["source"])
	}

	if p.State() != StateStopped {
		t.Errorf("state = %v, want Stopped", p.State())
	}
	st := repo.status
	if st.EventsAnnotated != 5 || st.Batches != 3 || st.Source != "kafka" || !st.Preserve {
		t.Errorf("saved status = %+v", st)
	}
}

func TestPipeline_StatusResumesFromRepository(t *testing.T) {
	repo := &memoryStatusRepo{status: domain.Status{EventsAnnotated: 10, Batches: 4}}
	p := NewPipeline(PipelineConfig{BatchSize: 10, FlushInterval: time.Hour},
		kafkaProd(false), newSliceSource(numberedEvents(2)...), &memorySink{}, repo, nil, nil)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if st := p.Status(); st.EventsAnnotated != 12 || st.Batches != 5 {
		t.Errorf("status = %+v, want 12 events in 5 batches", st)
	}
}

func TestPipeline_EmptyInput(t *testing.T) {
	sink := &memorySink{}
	p := NewPipeline(PipelineConfig{BatchSize: 10}, kafkaProd(true), newSliceSource(), sink, nil, nil, nil)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(sink.Batches()) != 0 {
		t.Errorf("empty input produced %d batches", len(sink.Batches()))
	}
}

func TestPipeline_SkipInvalid(t *testing.T) {
	src := newSliceSource(numberedEvents(1)...)
	src.results = append(src.results, readResult{err: fmt.Errorf("line 2: %w", domain.ErrInvalidEvent)})
	src.results = append(src.results, readResult{event: domain.NewEvent([]byte("after"))})
	sink := &memorySink{}

	p := NewPipeline(PipelineConfig{BatchSize: 10, SkipInvalid: true}, kafkaProd(true), src, sink, nil, nil, nil)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := len(sink.Events()); got != 2 {
		t.Errorf("got %d events, want 2", got)
	}
}

func TestPipeline_InvalidEventFails(t *testing.T) {
	src := newSliceSource(numberedEvents(1)...)
	src.results = append(src.results, readResult{err: fmt.Errorf("line 2: %w", domain.ErrInvalidEvent)})
	sink := &memorySink{}
	obs := &mockObserver{}

	p := NewPipeline(PipelineConfig{BatchSize: 10}, kafkaProd(true), src, sink, nil, nil, obs)

	err := p.Run(context.Background())
	if !errors.Is(err, domain.ErrInvalidEvent) {
		t.Fatalf("Run() error = %v, want ErrInvalidEvent", err)
	}
	if p.State() != StateFailed {
		t.Errorf("state = %v, want Failed", p.State())
	}
	if got := len(sink.Events()); got != 1 {
		t.Errorf("events read before the failure: got %d written, want 1", got)
	}
	events := obs.Events()
	if last := events[len(events)-1]; last.current != StateFailed {
		t.Errorf("last observed state = %v, want Failed", last.current)
	}
}

func TestPipeline_WriteErrorFails(t *testing.T) {
	sinkErr := errors.New("broken pipe")
	p := NewPipeline(PipelineConfig{BatchSize: 1}, kafkaProd(true),
		newSliceSource(numberedEvents(3)...), &memorySink{err: sinkErr}, nil, nil, nil)

	err := p.Run(context.Background())
	if !errors.Is(err, sinkErr) {
		t.Fatalf("Run() error = %v, want %v", err, sinkErr)
	}
	if p.State() != StateFailed {
		t.Errorf("state = %v, want Failed", p.State())
	}
}

func TestPipeline_CancelFlushesPending(t *testing.T) {
	src := newSliceSource(numberedEvents(3)...)
	src.block = true
	sink := &memorySink{}

	p := NewPipeline(PipelineConfig{BatchSize: 100, FlushInterval: time.Hour}, kafkaProd(true), src, sink, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	// Give the reader time to hand over the buffered events.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	if got := len(sink.Events()); got != 3 {
		t.Errorf("got %d events flushed on cancel, want 3", got)
	}
	if p.State() != StateStopped {
		t.Errorf("state = %v, want Stopped", p.State())
	}
}

func TestPipeline_FlushInterval(t *testing.T) {
	src := newSliceSource(numberedEvents(1)...)
	src.block = true
	sink := &memorySink{}

	p := NewPipeline(PipelineConfig{BatchSize: 100, FlushInterval: 10 * time.Millisecond}, kafkaProd(true), src, sink, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for len(sink.Batches()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if len(sink.Batches()) != 1 {
		t.Fatalf("got %d batches before cancel, want 1 from the interval trigger", len(sink.Batches()))
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}
}

func TestPipeline_SwapAnnotator(t *testing.T) {
	first := numberedEvents(1)
	second := numberedEvents(1)
	sink := &memorySink{}

	p := NewPipeline(PipelineConfig{BatchSize: 1}, kafkaProd(false), newSliceSource(first...), sink, nil, nil, nil)
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() #1 error = %v", err)
	}

	p.SwapAnnotator(annotator.New(annotator.Config{Source: "file", Env: "qa"}, nil))
	if got := p.Annotator().Config().Env; got != "qa" {
		t.Errorf("Annotator().Config().Env = %q, want qa", got)
	}

	p.source = newSliceSource(second...)
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() #2 error = %v", err)
	}

	if first[0].Headers["env"] != "prod" {
		t.Errorf("first run env = %q, want prod", first[0].Headers["env"])
	}
	if second[0].Headers["env"] != "qa" || second[0].Headers["source"] != "file" {
		t.Errorf("second run headers = %v", second[0].Headers)
	}
	if st := p.Status(); st.Env != "qa" {
		t.Errorf("status env = %q, want qa", st.Env)
	}
}

func TestPipeline_RunWhileRunning(t *testing.T) {
	src := newSliceSource()
	src.block = true
	p := NewPipeline(PipelineConfig{BatchSize: 1}, kafkaProd(true), src, &memorySink{}, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for p.State() != StateRunning && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if err := p.Run(ctx); !errors.Is(err, domain.ErrAlreadyRunning) {
		t.Errorf("second Run() error = %v, want ErrAlreadyRunning", err)
	}
	cancel()
	<-done
}

// endlessSource always has another event and ignores cancellation.
type endlessSource struct {
	taken atomic.Int64
}

func (s *endlessSource) Next(ctx context.Context) (*domain.Event, error) {
	n := s.taken.Add(1)
	return domain.NewEvent([]byte(fmt.Sprintf("event-%d", n))), nil
}

func (s *endlessSource) Close() error { return nil }

// cancelingSink cancels the run after its first successful write.
type cancelingSink struct {
	memorySink
	cancel context.CancelFunc
}

func (c *cancelingSink) Write(ctx context.Context, events []*domain.Event) error {
	if err := c.memorySink.Write(ctx, events); err != nil {
		return err
	}
	c.cancel()
	return nil
}

func TestPipeline_CancelMidStreamWritesEveryTakenEvent(t *testing.T) {
	for i := 0; i < 20; i++ {
		src := &endlessSource{}
		ctx, cancel := context.WithCancel(context.Background())
		sink := &cancelingSink{cancel: cancel}

		p := NewPipeline(PipelineConfig{BatchSize: 5, FlushInterval: time.Hour}, kafkaProd(true), src, sink, nil, nil, nil)

		if err := p.Run(ctx); err != nil {
			t.Fatalf("run %d: Run() error = %v", i, err)
		}
		cancel()

		written := sink.Events()
		if taken := int(src.taken.Load()); taken != len(written) {
			t.Fatalf("run %d: took %d events from the source, wrote %d", i, taken, len(written))
		}
		for j, e := range written {
			if want := fmt.Sprintf("event-%d", j+1); string(e.Body) != want {
				t.Fatalf("run %d: event %d body = %q, want %q", i, j, e.Body, want)
			}
		}
		if p.State() != StateStopped {
			t.Errorf("run %d: state = %v, want Stopped", i, p.State())
		}
	}
}

// stuckSource returns its events, then blocks until release is closed
// regardless of the context.
type stuckSource struct {
	events  []*domain.Event
	release chan struct{}
}

func (s *stuckSource) Next(ctx context.Context) (*domain.Event, error) {
	if len(s.events) > 0 {
		e := s.events[0]
		s.events = s.events[1:]
		return e, nil
	}
	<-s.release
	return nil, ports.ErrEndOfStream
}

func (s *stuckSource) Close() error { return nil }

func TestPipeline_DrainTimeout(t *testing.T) {
	src := &stuckSource{events: numberedEvents(2), release: make(chan struct{})}
	defer close(src.release)
	sink := &memorySink{}

	p := NewPipeline(PipelineConfig{BatchSize: 100, FlushInterval: time.Hour, DrainTimeout: 20 * time.Millisecond},
		kafkaProd(true), src, sink, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, domain.ErrShutdownTimeout) {
			t.Fatalf("Run() error = %v, want ErrShutdownTimeout", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after the drain timeout")
	}

	if got := len(sink.Events()); got != 2 {
		t.Errorf("got %d events written, want 2", got)
	}
	if p.State() != StateFailed {
		t.Errorf("state = %v, want Failed", p.State())
	}
}
