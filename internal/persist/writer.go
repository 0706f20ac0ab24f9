package persist

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// writer coalesces change notifications into one save per quiet period.
type writer struct {
	save     func(context.Context) error
	debounce time.Duration
	log      *zap.Logger

	mu      sync.Mutex
	timer   *time.Timer
	pending bool
	running bool
	paused  bool
}

func newWriter(debounce time.Duration, log *zap.Logger, save func(context.Context) error) *writer {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &writer{save: save, debounce: debounce, log: log}
}

func (w *writer) Notify() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = true
	if w.paused {
		return
	}
	if w.timer == nil {
		w.timer = time.AfterFunc(w.debounce, w.onTimer)
		return
	}
	w.timer.Reset(w.debounce)
}

func (w *writer) onTimer() {
	w.mu.Lock()
	if w.running {
		// A save is in flight; try again once it has had time to finish.
		w.timer.Reset(w.debounce)
		w.mu.Unlock()
		return
	}
	if !w.pending || w.paused {
		w.mu.Unlock()
		return
	}
	w.pending = false
	w.running = true
	w.mu.Unlock()

	if err := w.save(context.Background()); err != nil {
		w.log.Warn("persist failed", zap.Error(err))
	}

	w.mu.Lock()
	w.running = false
	if w.pending && !w.paused && w.timer != nil {
		w.timer.Reset(w.debounce)
	}
	w.mu.Unlock()
}

// Flush saves now if anything is pending.
func (w *writer) Flush(ctx context.Context) error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	pending := w.pending
	w.pending = false
	w.mu.Unlock()
	if !pending {
		return nil
	}
	return w.save(ctx)
}

// Pause stops scheduled saves. Notifications while paused are remembered.
func (w *writer) Pause() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.paused = true
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *writer) Resume() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.paused = false
	if !w.pending {
		return
	}
	if w.timer == nil {
		w.timer = time.AfterFunc(w.debounce, w.onTimer)
		return
	}
	w.timer.Reset(w.debounce)
}

func (w *writer) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.paused = true
	if w.timer != nil {
		w.timer.Stop()
	}
}
