package anagram

import (
	"context"
	"time"

	"anagrambot/internal/anagram/service"
	"anagrambot/internal/config"
	"anagrambot/internal/logger"
)

type taskScheduler struct {
	name     string
	interval time.Duration
	task     func(ctx context.Context)
	cancel   context.CancelFunc
	done     chan struct{}
}

func newTaskScheduler(name string, interval time.Duration, task func(ctx context.Context)) *taskScheduler {
	return &taskScheduler{
		name:     name,
		interval: interval,
		task:     task,
	}
}

func (s *taskScheduler) start() {
	if s == nil {
		return
	}
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(ctx)
	logger.L().Infof("%s scheduler started, interval=%s", s.name, s.interval)
}

func (s *taskScheduler) stop() {
	if s == nil {
		return
	}
	if s.cancel == nil {
		return
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
	logger.L().Infof("%s scheduler stopped", s.name)
}

func (s *taskScheduler) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.task(ctx)
		}
	}
}

// Schedulers owns the periodic background work: draining the posting queue,
// pruning deleted tweets and reconciling the timeline.
type Schedulers struct {
	drain     *taskScheduler
	prune     *taskScheduler
	reconcile *taskScheduler
}

func NewSchedulers(svc *service.Service, cfg config.TasksConfig) *Schedulers {
	return &Schedulers{
		drain: newTaskScheduler("Queue drain", cfg.QueueDrainInterval, func(ctx context.Context) {
			runCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
			defer cancel()
			if _, err := svc.DrainOnePendingEntry(runCtx); err != nil {
				logger.L().Errorf("Queue drain cycle failed: %v", err)
			}
		}),
		prune: newTaskScheduler("Tweet prune", cfg.PruneInterval, func(ctx context.Context) {
			runCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
			defer cancel()
			if err := svc.PruneStaleTweets(runCtx, cfg.PruneBatchSize); err != nil {
				logger.Reconciliation().Errorf("Tweet prune cycle failed: %v", err)
			}
		}),
		reconcile: newTaskScheduler("Timeline reconcile", cfg.ReconcileInterval, func(ctx context.Context) {
			runCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
			defer cancel()
			if err := svc.ReconcileTimelineDesync(runCtx); err != nil {
				logger.Reconciliation().Errorf("Timeline reconcile cycle failed: %v", err)
			}
		}),
	}
}

func (s *Schedulers) Start() {
	s.drain.start()
	s.prune.start()
	s.reconcile.start()
}

func (s *Schedulers) Stop() {
	s.drain.stop()
	s.prune.stop()
	s.reconcile.stop()
}
