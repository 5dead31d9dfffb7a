package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bft-labs/stamper/internal/annotator"
	"github.com/bft-labs/stamper/internal/domain"
	"github.com/bft-labs/stamper/internal/ports"
	"github.com/bft-labs/stamper/pkg/log"
)

// PipelineConfig contains configuration for the pipeline loop.
type PipelineConfig struct {
	BatchSize     int
	MaxBatchBytes int
	FlushInterval time.Duration

	// DrainTimeout bounds how long a canceled run waits for the source to
	// stop. Default: 5 seconds
	DrainTimeout time.Duration

	// SkipInvalid logs and drops undecodable input instead of failing.
	SkipInvalid bool
}

// Pipeline reads events, annotates them in batches and writes them downstream.
type Pipeline struct {
	config     PipelineConfig
	source     ports.EventSource
	sink       ports.EventSink
	statusRepo ports.StatusRepository
	logger     log.Logger
	lifecycle  *Lifecycle

	annotator atomic.Pointer[annotator.Annotator]

	mu     sync.Mutex
	status domain.Status
}

type readResult struct {
	event *domain.Event
	err   error
}

// NewPipeline wires a pipeline. statusRepo and observer may be nil.
func NewPipeline(
	config PipelineConfig,
	a *annotator.Annotator,
	source ports.EventSource,
	sink ports.EventSink,
	statusRepo ports.StatusRepository,
	logger log.Logger,
	observer Observer,
) *Pipeline {
	if config.FlushInterval <= 0 {
		config.FlushInterval = time.Second
	}
	if config.DrainTimeout <= 0 {
		config.DrainTimeout = 5 * time.Second
	}
	logger = log.OrNoop(logger)

	p := &Pipeline{
		config:     config,
		source:     source,
		sink:       sink,
		statusRepo: statusRepo,
		logger:     logger,
		lifecycle:  NewLifecycle(logger, observer),
	}
	p.annotator.Store(a)
	return p
}

// Annotator returns the annotator currently in use.
func (p *Pipeline) Annotator() *annotator.Annotator {
	return p.annotator.Load()
}

// SwapAnnotator installs a and closes the previous annotator.
// Batches already being annotated finish with the previous instance.
func (p *Pipeline) SwapAnnotator(a *annotator.Annotator) {
	a.Initialize()
	old := p.annotator.Swap(a)
	if old != nil {
		old.Close()
	}

	cfg := a.Config()
	p.logger.Info("annotator replaced",
		log.String("source", cfg.Source),
		log.String("env", cfg.Env),
		log.Bool("preserve", cfg.PreserveExisting),
	)
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	return p.lifecycle.State()
}

// Status returns a copy of the progress counters.
func (p *Pipeline) Status() domain.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Run executes the pipeline until the source is exhausted or ctx is
// canceled. Pending events are flushed in both cases and nil is returned.
// A read or write failure stops the pipeline in StateFailed.
//
// After cancellation every event already taken from the source is still
// written. If the source does not stop within DrainTimeout, Run returns an
// error wrapping domain.ErrShutdownTimeout.
func (p *Pipeline) Run(ctx context.Context) error {
	if !p.lifecycle.CanRun() {
		return domain.ErrAlreadyRunning
	}
	if err := p.lifecycle.TransitionTo(StateRunning, "run"); err != nil {
		return err
	}

	p.loadStatus(ctx)

	p.Annotator().Initialize()
	defer func() { p.Annotator().Close() }()

	readCtx, cancelRead := context.WithCancel(ctx)
	defer cancelRead()
	done := make(chan struct{})
	defer close(done)
	results := p.startReader(readCtx, done)

	// Writes are not interrupted by cancellation so that pending events
	// are always flushed.
	writeCtx := context.WithoutCancel(ctx)

	batcher := NewBatcher(p.config.BatchSize, p.config.MaxBatchBytes, p.config.FlushInterval)
	timer := time.NewTimer(batcher.NextFlushIn())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return p.stopReader(writeCtx, cancelRead, results, batcher)

		case <-timer.C:
			if batcher.ShouldFlush() {
				if err := p.flush(writeCtx, batcher); err != nil {
					return p.fail(err)
				}
			}
			timer.Reset(batcher.NextFlushIn())

		case res, ok := <-results:
			if !ok {
				return p.drain(writeCtx, batcher, "end of input")
			}
			if res.err != nil {
				if errors.Is(res.err, ports.ErrEndOfStream) {
					return p.drain(writeCtx, batcher, "end of input")
				}
				if errors.Is(res.err, context.Canceled) && ctx.Err() != nil {
					return p.stopReader(writeCtx, cancelRead, results, batcher)
				}
				if p.skippable(res.err) {
					continue
				}
				// Events read before the failure still go downstream.
				if err := p.flush(writeCtx, batcher); err != nil {
					p.logger.Error("flush after read failure", log.Err(err))
				}
				return p.fail(fmt.Errorf("read: %w", res.err))
			}

			if batcher.Add(res.event) {
				if err := p.flush(writeCtx, batcher); err != nil {
					return p.fail(err)
				}
				resetTimer(timer, batcher.NextFlushIn())
			}
		}
	}
}

// startReader pulls events on its own goroutine so that a blocking source
// does not hold up time-based flushes. Every result it takes from the source
// is delivered unless Run has already returned (done is closed). The channel
// is closed when the reader stops.
func (p *Pipeline) startReader(ctx context.Context, done <-chan struct{}) <-chan readResult {
	results := make(chan readResult)
	go func() {
		defer close(results)
		for {
			var e *domain.Event
			err := ctx.Err()
			if err == nil {
				e, err = p.source.Next(ctx)
			}
			select {
			case results <- readResult{event: e, err: err}:
			case <-done:
				return
			}
			if err != nil && !errors.Is(err, domain.ErrInvalidEvent) {
				return
			}
		}
	}()
	return results
}

// stopReader cancels the reader and collects whatever it still hands over
// before flushing. The reader checks for cancellation before each read, so
// at most one read is in flight.
func (p *Pipeline) stopReader(ctx context.Context, cancelRead context.CancelFunc, results <-chan readResult, batcher *Batcher) error {
	const reason = "context canceled"
	cancelRead()
	if err := p.lifecycle.TransitionTo(StateDraining, reason); err != nil {
		return err
	}

	timeout := time.NewTimer(p.config.DrainTimeout)
	defer timeout.Stop()

	for {
		select {
		case res, ok := <-results:
			if !ok {
				return p.finish(ctx, batcher, reason)
			}
			if res.err != nil {
				if p.skippable(res.err) {
					continue
				}
				if !errors.Is(res.err, context.Canceled) && !errors.Is(res.err, ports.ErrEndOfStream) {
					p.logger.Warn("read error while stopping", log.Err(res.err))
				}
				return p.finish(ctx, batcher, reason)
			}
			if batcher.Add(res.event) {
				if err := p.flush(ctx, batcher); err != nil {
					return p.fail(err)
				}
			}

		case <-timeout.C:
			if err := p.flush(ctx, batcher); err != nil {
				p.logger.Error("flush after drain timeout", log.Err(err))
			}
			return p.fail(fmt.Errorf("%w: source did not stop within %s", domain.ErrShutdownTimeout, p.config.DrainTimeout))
		}
	}
}

func (p *Pipeline) skippable(err error) bool {
	if !p.config.SkipInvalid || !errors.Is(err, domain.ErrInvalidEvent) {
		return false
	}
	p.logger.Warn("skipping invalid event", log.Err(err))
	return true
}

// resetTimer rearms a timer whose channel has not been received from.
func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

func (p *Pipeline) flush(ctx context.Context, batcher *Batcher) error {
	if !batcher.HasPending() {
		return nil
	}

	a := p.Annotator()
	events := a.AnnotateBatch(batcher.Take())

	start := time.Now()
	if err := p.sink.Write(ctx, events); err != nil {
		return fmt.Errorf("write batch of %d events: %w", len(events), err)
	}

	cfg := a.Config()
	p.mu.Lock()
	p.status.RecordBatch(len(events), time.Now())
	p.status.Source = cfg.Source
	p.status.Env = cfg.Env
	p.status.Preserve = cfg.PreserveExisting
	status := p.status
	p.mu.Unlock()

	p.logger.Debug("wrote batch",
		log.Int("events", len(events)),
		log.Duration("duration", time.Since(start)),
	)

	if p.statusRepo != nil {
		if err := p.statusRepo.Save(ctx, status); err != nil {
			p.logger.Error("failed to save status", log.Err(err))
		}
	}
	return nil
}

func (p *Pipeline) drain(ctx context.Context, batcher *Batcher, reason string) error {
	if err := p.lifecycle.TransitionTo(StateDraining, reason); err != nil {
		return err
	}
	return p.finish(ctx, batcher, reason)
}

// finish flushes what is left and stops. The lifecycle must be draining.
func (p *Pipeline) finish(ctx context.Context, batcher *Batcher, reason string) error {
	if err := p.flush(ctx, batcher); err != nil {
		return p.fail(err)
	}

	st := p.Status()
	p.logger.Info("pipeline finished",
		log.Uint64("events", st.EventsAnnotated),
		log.Uint64("batches", st.Batches),
	)
	return p.lifecycle.TransitionTo(StateStopped, reason)
}

func (p *Pipeline) fail(err error) error {
	p.logger.Error("pipeline failed", log.Err(err))
	if terr := p.lifecycle.TransitionTo(StateFailed, err.Error()); terr != nil {
		p.logger.Warn("state transition rejected", log.Err(terr))
	}
	return err
}

func (p *Pipeline) loadStatus(ctx context.Context) {
	if p.statusRepo == nil {
		return
	}
	st, err := p.statusRepo.Load(ctx)
	if err != nil {
		// Counters restart from zero.
		p.logger.Error("failed to load status", log.Err(err))
		return
	}
	p.mu.Lock()
	p.status = st
	p.mu.Unlock()
}
