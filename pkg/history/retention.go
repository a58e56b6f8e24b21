package history

import (
	"context"
	"log"
	"sync"
	"time"
)

// RetentionConfig controls the background sweep. Generalizes the teacher's
// engine.RetentionConfig (pkg/engine/prune.go) to history's single
// retentionDays knob instead of a per-event-type TTL map.
type RetentionConfig struct {
	Enabled       bool
	RetentionDays int
	CheckInterval time.Duration
}

// RetentionWorker periodically calls Backend.Cleanup, grounded on the
// teacher's PruneWorker: a ticker loop that runs once immediately, then on
// each tick, and stops on context cancellation.
type RetentionWorker struct {
	backend Backend
	mu      sync.RWMutex
	config  RetentionConfig
}

func NewRetentionWorker(backend Backend, cfg RetentionConfig) *RetentionWorker {
	return &RetentionWorker{backend: backend, config: cfg}
}

func (w *RetentionWorker) UpdateConfig(cfg RetentionConfig) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.config = cfg
}

func (w *RetentionWorker) Run(ctx context.Context) {
	w.mu.RLock()
	cfg := w.config
	w.mu.RUnlock()

	if !cfg.Enabled {
		log.Println("history retention sweep disabled")
		return
	}
	interval := cfg.CheckInterval
	if interval <= 0 {
		interval = time.Hour
	}

	log.Printf("starting history retention sweep (interval: %v, retentionDays: %d)", interval, cfg.RetentionDays)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.sweep()
	for {
		select {
		case <-ctx.Done():
			log.Println("history retention sweep stopping")
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *RetentionWorker) sweep() {
	w.mu.RLock()
	cfg := w.config
	w.mu.RUnlock()
	if !cfg.Enabled || cfg.RetentionDays <= 0 {
		return
	}
	deleted, err := w.backend.Cleanup(cfg.RetentionDays)
	if err != nil {
		log.Printf("history retention sweep error: %v", err)
		return
	}
	if deleted > 0 {
		log.Printf("history retention sweep deleted %d records older than %d days", deleted, cfg.RetentionDays)
	}
}
