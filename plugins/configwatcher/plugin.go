// Package configwatcher reloads the annotator configuration when the config
// file changes on disk.
//
// The watcher never mutates a running annotator. Each accepted change is
// handed to a callback as a new annotator.Config; the pipeline builds a fresh
// annotator from it and swaps it in.
package configwatcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/stamper/internal/annotator"
	"github.com/bft-labs/stamper/pkg/log"
)

// LoadFunc resolves the annotator configuration from scratch.
type LoadFunc func() (annotator.Config, error)

// ReloadFunc receives a configuration that differs from the active one.
type ReloadFunc func(annotator.Config)

// Config holds configuration options for the config watcher plugin.
type Config struct {
	// Path is the config file to watch.
	Path string

	// DebounceDelay is the delay to wait after a file change before reloading.
	// Default: 100 milliseconds
	DebounceDelay time.Duration
}

// DefaultConfig returns a Config for path with default settings.
func DefaultConfig(path string) Config {
	return Config{
		Path:          path,
		DebounceDelay: 100 * time.Millisecond,
	}
}

// Plugin watches a config file and reports configuration changes.
type Plugin struct {
	mu sync.Mutex

	path          string
	debounceDelay time.Duration
	load          LoadFunc
	onReload      ReloadFunc
	logger        log.Logger

	current  annotator.Config
	debounce *time.Timer
	cancel   context.CancelFunc
	closed   bool

	// wg tracks the watch loop and any scheduled reload.
	wg sync.WaitGroup
}

// New creates a config watcher. current is the configuration in effect;
// reloads that resolve to the same triple are not reported.
func New(cfg Config, current annotator.Config, load LoadFunc, onReload ReloadFunc, logger log.Logger) *Plugin {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 100 * time.Millisecond
	}
	return &Plugin{
		path:          filepath.Clean(cfg.Path),
		debounceDelay: cfg.DebounceDelay,
		load:          load,
		onReload:      onReload,
		logger:        log.OrNoop(logger).With(log.String("plugin", "configwatcher")),
		current:       current,
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "configwatcher"
}

// Initialize starts watching the directory that holds the config file.
// The directory is watched rather than the file so that editors that
// replace the file on save are still observed.
func (p *Plugin) Initialize(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("configwatcher: create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("configwatcher: watch %s: %w", filepath.Dir(p.path), err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()

	p.logger.Info("watching config file", log.String("path", p.path))

	p.wg.Add(1)
	go p.watchLoop(watchCtx, watcher)
	return nil
}

// Shutdown stops the watcher and waits for the loop and any reload in
// progress to exit. No reload is reported once Shutdown returns.
func (p *Plugin) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	if p.cancel != nil {
		p.cancel()
	}
	p.stopDebounce()
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}

// Current returns the last configuration reported (or the initial one).
func (p *Plugin) Current() annotator.Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *Plugin) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer p.wg.Done()
	defer watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != p.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			p.scheduleReload(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("watcher error", log.Err(err))
		}
	}
}

// scheduleReload coalesces bursts of file events into one reload.
func (p *Plugin) scheduleReload(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.stopDebounce()
	p.wg.Add(1)
	p.debounce = time.AfterFunc(p.debounceDelay, func() {
		defer p.wg.Done()
		if ctx.Err() != nil {
			return
		}
		p.reload()
	})
}

// stopDebounce cancels a pending reload. Callers hold p.mu.
func (p *Plugin) stopDebounce() {
	if p.debounce != nil && p.debounce.Stop() {
		// The callback will never run.
		p.wg.Done()
	}
	p.debounce = nil
}

func (p *Plugin) reload() {
	cfg, err := p.load()
	if err != nil {
		p.logger.Error("config reload failed, keeping current annotator", log.Err(err))
		return
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	if cfg == p.current {
		p.mu.Unlock()
		p.logger.Debug("config file changed, annotator settings unchanged")
		return
	}
	p.current = cfg
	p.mu.Unlock()

	p.onReload(cfg)
}
