package webhooks

import (
	"context"
	"strings"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

const (
	DefaultDebounceWindow = 500 * time.Millisecond
	DefaultActionTimeout  = 30 * time.Second
)

// Action is the deferred work a debounced key runs once its window elapses.
type Action func(ctx context.Context) error

type DebounceOptions struct {
	Window  time.Duration
	Timeout time.Duration
	Logger  glog.Logger
	// OnComplete observes every finished action. Optional.
	OnComplete func(key string, err error)
}

// Debouncer delays actions by key and runs only the last one scheduled in a
// window. Each trigger restarts the key's timer.
type Debouncer struct {
	window     time.Duration
	timeout    time.Duration
	logger     glog.Logger
	onComplete func(key string, err error)

	mu      sync.Mutex
	entries map[string]*debounceEntry
	wg      sync.WaitGroup
	closed  bool
}

type debounceEntry struct {
	timer     *time.Timer
	action    Action
	coalesced int
}

func NewDebouncer(opts DebounceOptions) *Debouncer {
	window := opts.Window
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultActionTimeout
	}
	_, logger := glog.Resolve("ghapp.webhooks.debounce", nil, opts.Logger)
	return &Debouncer{
		window:     window,
		timeout:    timeout,
		logger:     logger,
		onComplete: opts.OnComplete,
		entries:    map[string]*debounceEntry{},
	}
}

func (d *Debouncer) Window() time.Duration {
	if d == nil {
		return 0
	}
	return d.window
}

// Trigger schedules action under key. It reports false when the debouncer
// is closed.
func (d *Debouncer) Trigger(key string, action Action) bool {
	if d == nil || action == nil {
		return false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "default"
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}

	if entry, exists := d.entries[key]; exists {
		entry.action = action
		entry.coalesced++
		// A timer that already fired picks up the new action when it runs.
		if entry.timer.Stop() {
			entry.timer.Reset(d.window)
		}
		return true
	}

	entry := &debounceEntry{action: action}
	d.entries[key] = entry
	d.wg.Add(1)
	entry.timer = time.AfterFunc(d.window, func() {
		d.fire(key)
	})
	return true
}

// Pending reports how many keys are waiting for their window to elapse.
func (d *Debouncer) Pending() int {
	if d == nil {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// Close drops scheduled actions and waits for running ones to finish or for
// ctx to end.
func (d *Debouncer) Close(ctx context.Context) error {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	d.closed = true
	for key, entry := range d.entries {
		if entry.timer.Stop() {
			d.wg.Done()
		}
		delete(d.entries, key)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Debouncer) fire(key string) {
	defer d.wg.Done()

	d.mu.Lock()
	entry, exists := d.entries[key]
	if !exists {
		d.mu.Unlock()
		return
	}
	delete(d.entries, key)
	action := entry.action
	coalesced := entry.coalesced
	d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	startedAt := time.Now()
	err := action(ctx)
	fields := []any{
		"debounce_key", key,
		"coalesced", coalesced,
		"window_ms", d.window.Milliseconds(),
		"duration_ms", time.Since(startedAt).Milliseconds(),
	}
	if err != nil {
		d.logger.Error("debounced action failed", append(fields, "error", err)...)
	} else {
		d.logger.Debug("debounced action completed", fields...)
	}
	if d.onComplete != nil {
		d.onComplete(key, err)
	}
}
