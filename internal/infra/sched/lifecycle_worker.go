package sched

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"billing-reconciler/internal/config"
	"billing-reconciler/internal/domain"
	"billing-reconciler/internal/domain/model"
	uc "billing-reconciler/internal/domain/ports/usecase"
	red "billing-reconciler/internal/infra/redis"
)

const lifecycleLockKey = "lock:subscription-lifecycle"

// LifecycleWorker runs the subscription lifecycle on a cron schedule. A tick
// that fires while the previous run is still going is skipped, and a Redis
// lock keeps two instances from running at the same time.
type LifecycleWorker struct {
	runner   uc.LifecycleRunner
	locker   red.Locker
	lockTTL  time.Duration
	schedule string
	cron     *cron.Cron
	log      *zerolog.Logger

	stopOnce sync.Once
	cancel   context.CancelFunc
}

func NewLifecycleWorker(runner uc.LifecycleRunner, locker red.Locker, cfg config.LifecycleConfig, logger *zerolog.Logger) (*LifecycleWorker, error) {
	l := logger.With().Str("component", "LifecycleWorker").Logger()
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("lifecycle schedule %q: %w", cfg.Schedule, err)
	}
	cl := cronLogger{log: &l}
	return &LifecycleWorker{
		runner:   runner,
		locker:   locker,
		lockTTL:  cfg.LockTTL,
		schedule: cfg.Schedule,
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		log: &l,
	}, nil
}

// Start schedules the job and returns; the worker stops when ctx is done or Stop is called.
func (w *LifecycleWorker) Start(ctx context.Context) error {
	jobCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	if _, err := w.cron.AddFunc(w.schedule, func() {
		if _, err := w.RunOnce(jobCtx); err != nil && !errors.Is(err, domain.ErrLockNotAcquired) {
			w.log.Error().Err(err).Msg("lifecycle run failed")
		}
	}); err != nil {
		cancel()
		return err
	}
	w.cron.Start()
	w.log.Info().Str("schedule", w.schedule).Msg("lifecycle worker started")
	go func() {
		<-jobCtx.Done()
		w.Stop()
	}()
	return nil
}

// Stop cancels a running pass and waits for it to return.
func (w *LifecycleWorker) Stop() {
	w.stopOnce.Do(func() {
		if w.cancel != nil {
			w.cancel()
		}
		<-w.cron.Stop().Done()
		w.log.Info().Msg("lifecycle worker stopped")
	})
}

// RunOnce runs one lifecycle pass under the cross-instance lock.
func (w *LifecycleWorker) RunOnce(ctx context.Context) (model.LifecycleReport, error) {
	if w.locker != nil {
		token, err := w.locker.TryLock(ctx, lifecycleLockKey, w.lockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockNotAcquired) {
				w.log.Info().Msg("lifecycle run skipped, another instance holds the lock")
			}
			return model.LifecycleReport{}, err
		}
		defer func() {
			unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := w.locker.Unlock(unlockCtx, lifecycleLockKey, token); err != nil {
				w.log.Warn().Err(err).Msg("lifecycle lock release failed")
			}
		}()
	}
	return w.runner.Run(ctx)
}

// cronLogger routes cron's own messages into zerolog.
type cronLogger struct {
	log *zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
