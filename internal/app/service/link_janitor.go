package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sifan077/ShortLife/internal/app/model"
	"github.com/sifan077/ShortLife/internal/app/repository"
	infraprom "github.com/sifan077/ShortLife/internal/infra/prometheus"
	"go.uber.org/zap"
)

const defaultJanitorInterval = time.Hour

// JanitorDeps groups dependencies required by the janitor.
type JanitorDeps struct {
	Logger   *zap.Logger
	Links    repository.LinkRepository
	Metrics  *infraprom.Metrics
	Now      func() time.Time
	Interval time.Duration
}

// LinkJanitor periodically removes expired and exhausted links, independent of any read.
// It does nothing until Start is called; the owning process must call Stop.
type LinkJanitor struct {
	logger   *zap.Logger
	links    repository.LinkRepository
	metrics  *infraprom.Metrics
	now      func() time.Time
	interval time.Duration

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewLinkJanitor creates a stopped janitor.
func NewLinkJanitor(deps JanitorDeps) *LinkJanitor {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	interval := deps.Interval
	if interval <= 0 {
		interval = defaultJanitorInterval
	}
	return &LinkJanitor{
		logger:   logger.Named("janitor"),
		links:    deps.Links,
		metrics:  deps.Metrics,
		now:      now,
		interval: interval,
	}
}

// Start begins the periodic sweep. Calling Start on a running janitor is a no-op.
func (j *LinkJanitor) Start(ctx context.Context) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.stop != nil {
		return
	}

	j.stop = make(chan struct{})
	j.done = make(chan struct{})
	go j.run(ctx, j.stop, j.done)
	j.logger.Info("link janitor started", zap.Duration("interval", j.interval))
}

// Stop halts the periodic sweep and waits for an in-flight sweep to finish.
func (j *LinkJanitor) Stop() {
	j.mu.Lock()
	stop, done := j.stop, j.done
	j.stop, j.done = nil, nil
	j.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (j *LinkJanitor) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.Sweep()
		case <-stop:
			j.logger.Info("link janitor stopped")
			return
		case <-ctx.Done():
			j.logger.Info("link janitor stopped", zap.Error(ctx.Err()))
			return
		}
	}
}

// Sweep runs one pass and returns how many links it removed.
// Links created during the pass may or may not be examined.
func (j *LinkJanitor) Sweep() int {
	started := time.Now()
	now := j.now()
	evicted := 0

	j.links.ForEach(func(link model.Link) bool {
		if !link.IsDead(now) {
			return true
		}
		// Re-check under the record lock: the owner may have raised the limit meanwhile.
		_, err := j.links.Mutate(link.Token, evictIfDead(now))
		if reason := evictionReason(err); reason != "" {
			evicted++
			j.metrics.LinkEvicted(reason, infraprom.PathJanitor)
			j.logger.Debug("link evicted", zap.String("token", link.Token), zap.String("reason", reason))
		} else if err != nil && !errors.Is(err, ErrLinkNotFound) {
			j.logger.Error("failed to evict link", zap.String("token", link.Token), zap.Error(err))
		}
		return true
	})

	elapsed := time.Since(started)
	j.metrics.SweepFinished(elapsed)
	if evicted > 0 {
		j.logger.Info("removed dead links",
			zap.Int("count", evicted),
			zap.Duration("elapsed", elapsed),
		)
	}
	return evicted
}
