// Package worker runs the background jobs of the discussions service.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/academvault/discussions/internal/metrics"
	"github.com/academvault/discussions/internal/model"
	"github.com/academvault/discussions/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// OutboxConfig tunes the dispatcher
type OutboxConfig struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	Lease       time.Duration // how long a claimed event is hidden from other dispatchers
	Backoff     time.Duration // first retry delay, doubled per attempt
	Retention   time.Duration // done events older than this are purged; 0 keeps them
}

func (c OutboxConfig) withDefaults() OutboxConfig {
	if c.Interval <= 0 {
		c.Interval = 2 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.Lease <= 0 {
		c.Lease = time.Minute
	}
	if c.Backoff <= 0 {
		c.Backoff = 5 * time.Second
	}
	return c
}

// OutboxDispatcher is a background worker that delivers pending outbox
// events to the notification sinks.
type OutboxDispatcher struct {
	outbox *repository.OutboxRepository
	sinks  []Sink
	log    *zap.Logger
	cfg    OutboxConfig
	now    func() time.Time
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewOutboxDispatcher creates the dispatcher. Sinks run concurrently for
// each event; wrap optional channels with BestEffort.
func NewOutboxDispatcher(outbox *repository.OutboxRepository, sinks []Sink, logger *zap.Logger, cfg OutboxConfig) *OutboxDispatcher {
	return &OutboxDispatcher{
		outbox: outbox,
		sinks:  sinks,
		log:    logger,
		cfg:    cfg.withDefaults(),
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
}

// Start begins the background dispatch loop.
func (w *OutboxDispatcher) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("outbox dispatcher started",
		zap.Duration("interval", w.cfg.Interval),
		zap.Int("batch_size", w.cfg.BatchSize),
		zap.Int("sinks", len(w.sinks)))
}

// Stop signals the worker to stop and waits for it to finish.
func (w *OutboxDispatcher) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("outbox dispatcher stopped")
}

func (w *OutboxDispatcher) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if _, err := w.Process(ctx); err != nil {
				w.log.Error("outbox dispatch failed", zap.Error(err))
			}
			cancel()
		}
	}
}

// Process delivers one batch of due events and returns how many were
// delivered successfully.
func (w *OutboxDispatcher) Process(ctx context.Context) (int, error) {
	now := w.now()
	events, err := w.outbox.FetchDue(ctx, now, w.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch due events: %w", err)
	}

	delivered := 0
	for i := range events {
		ev := &events[i]
		ok, err := w.outbox.Claim(ctx, ev, now.Add(w.cfg.Lease))
		if err != nil {
			return delivered, fmt.Errorf("claim event %d: %w", ev.ID, err)
		}
		if !ok {
			continue // another dispatcher has it
		}
		if w.dispatch(ctx, ev) {
			delivered++
		}
	}

	if w.cfg.Retention > 0 {
		purged, err := w.outbox.PurgeProcessed(ctx, now.Add(-w.cfg.Retention))
		if err != nil {
			w.log.Warn("failed to purge processed outbox events", zap.Error(err))
		} else if purged > 0 {
			w.log.Debug("purged processed outbox events", zap.Int64("count", purged))
		}
	}
	return delivered, nil
}

func (w *OutboxDispatcher) dispatch(ctx context.Context, ev *model.OutboxEvent) bool {
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range w.sinks {
		g.Go(func() error {
			if err := s.Deliver(gctx, ev); err != nil {
				return fmt.Errorf("%s: %w", s.Name(), err)
			}
			return nil
		})
	}
	err := g.Wait()
	now := w.now()

	if err == nil {
		metrics.OutboxEventsTotal.WithLabelValues(string(ev.Type), "done").Inc()
		if merr := w.outbox.MarkDone(ctx, ev.ID, now); merr != nil {
			w.log.Error("failed to mark outbox event done", zap.Uint("event_id", ev.ID), zap.Error(merr))
		}
		return true
	}

	if ev.Attempts >= w.cfg.MaxAttempts {
		metrics.OutboxEventsTotal.WithLabelValues(string(ev.Type), "failed").Inc()
		w.log.Error("outbox event failed permanently",
			zap.Uint("event_id", ev.ID),
			zap.String("type", string(ev.Type)),
			zap.Int("attempts", ev.Attempts),
			zap.Error(err))
		if merr := w.outbox.MarkFailed(ctx, ev.ID, err.Error(), now); merr != nil {
			w.log.Error("failed to mark outbox event failed", zap.Uint("event_id", ev.ID), zap.Error(merr))
		}
		return false
	}

	metrics.OutboxEventsTotal.WithLabelValues(string(ev.Type), "retry").Inc()
	next := now.Add(w.backoff(ev.Attempts))
	w.log.Warn("outbox event delivery failed, will retry",
		zap.Uint("event_id", ev.ID),
		zap.Int("attempts", ev.Attempts),
		zap.Time("next_attempt", next),
		zap.Error(err))
	if merr := w.outbox.MarkRetry(ctx, ev.ID, err.Error(), next); merr != nil {
		w.log.Error("failed to reschedule outbox event", zap.Uint("event_id", ev.ID), zap.Error(merr))
	}
	return false
}

// backoff doubles the base delay per attempt, capped at one hour
func (w *OutboxDispatcher) backoff(attempts int) time.Duration {
	d := w.cfg.Backoff
	for i := 1; i < attempts && d < time.Hour; i++ {
		d *= 2
	}
	if d > time.Hour {
		d = time.Hour
	}
	return d
}
