// Package scheduler drives the monthly batch calendar: volume reset, rank
// sweep, pool calculation and distribution, and end-of-month snapshots.
// Jobs are day-of-month gated and guarded twice: an in-process per-month
// marker stops same-process reruns, and the database-side uniqueness
// guards make replays across processes no-ops.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/uplinehq/upline/internal/clock"
	"github.com/uplinehq/upline/internal/config"
	globalpooldomain "github.com/uplinehq/upline/internal/globalpool/domain"
	obsmetrics "github.com/uplinehq/upline/internal/observability/metrics"
	rankdomain "github.com/uplinehq/upline/internal/rank/domain"
	volumedomain "github.com/uplinehq/upline/internal/volume/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler_invalid_config")

// errJobNotReady marks a job whose precondition has not happened yet, such
// as distributing a pool that is still uncalculated. The month claim must
// be released so the job retries once the precondition holds.
var errJobNotReady = errors.New("scheduler_job_not_ready")

const (
	jobVolumeReset      = "volume_reset"
	jobRankCheck        = "rank_check"
	jobPoolCalculation  = "pool_calculation"
	jobPoolDistribution = "pool_distribution"
	jobMonthlySnapshot  = "monthly_snapshot"

	runInterval = time.Minute
	jobTimeout  = 10 * time.Minute
	lockTTL     = time.Hour
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Holder  *config.ScheduleConfigHolder
	Volumes volumedomain.Service
	Ranks   rankdomain.Service
	Pools   globalpooldomain.Service
	Locker  *Locker `optional:"true"`
}

type Scheduler struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	holder  *config.ScheduleConfigHolder
	volumes volumedomain.Service
	ranks   rankdomain.Service
	pools   globalpooldomain.Service
	locker  *Locker

	mu      sync.Mutex
	lastRun map[string]string // job name -> month it last ran
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.Holder == nil || p.Volumes == nil || p.Ranks == nil || p.Pools == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:      p.DB,
		log:     p.Log.Named("scheduler"),
		clock:   p.Clock,
		holder:  p.Holder,
		volumes: p.Volumes,
		ranks:   p.Ranks,
		pools:   p.Pools,
		locker:  p.Locker,
		lastRun: make(map[string]string),
	}, nil
}

// RunOnce evaluates the calendar against the clock and runs every job
// whose day has come. Job failures are joined, never fatal to the loop.
func (s *Scheduler) RunOnce(parent context.Context) error {
	cfg := s.holder.Get()
	now := s.clock.Now()
	day := now.Day()

	var err error
	if day == cfg.VolumeResetDay {
		err = errors.Join(err, s.runJob(parent, jobVolumeReset, func(ctx context.Context) error {
			_, jobErr := s.volumes.ResetMonthlyVolumes(ctx)
			return jobErr
		}))
	}
	if day >= cfg.RankCheckDay {
		err = errors.Join(err, s.runJob(parent, jobRankCheck, func(ctx context.Context) error {
			_, jobErr := s.ranks.CheckAllRanks(ctx)
			return jobErr
		}))
	}
	if day >= cfg.PoolCalculationDay {
		err = errors.Join(err, s.runJob(parent, jobPoolCalculation, func(ctx context.Context) error {
			_, jobErr := s.pools.CalculateMonthlyPool(ctx)
			if errors.Is(jobErr, globalpooldomain.ErrPoolAlreadyCalculated) {
				return nil
			}
			return jobErr
		}))
	}
	if day >= cfg.PoolDistributionDay {
		err = errors.Join(err, s.runJob(parent, jobPoolDistribution, func(ctx context.Context) error {
			_, jobErr := s.pools.DistributeGlobalPool(ctx)
			if errors.Is(jobErr, globalpooldomain.ErrPoolAlreadyDistributed) {
				return nil
			}
			if errors.Is(jobErr, globalpooldomain.ErrPoolNotCalculated) {
				return errJobNotReady
			}
			return jobErr
		}))
	}
	if cfg.SnapshotOnMonthEnd && clock.IsMonthEnd(now) {
		err = errors.Join(err, s.runJob(parent, jobMonthlySnapshot, func(ctx context.Context) error {
			_, jobErr := s.ranks.SaveAllMonthlyStats(ctx)
			return jobErr
		}))
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(runInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) error) error {
	month := clock.Month(s.clock.Now())
	schedMetrics := obsmetrics.Scheduler()

	if !s.claimMonth(name, month) {
		return nil
	}

	ctx, cancel := context.WithTimeout(parent, jobTimeout)
	defer cancel()

	released := func() {}
	if s.locker != nil {
		key := monthLockKey(name, month)
		token, ok, err := s.locker.TryLock(ctx, key, lockTTL)
		if err != nil {
			s.log.Warn("scheduler lock unavailable, proceeding on db guards",
				zap.String("job", name), zap.Error(err))
		} else if !ok {
			schedMetrics.IncJobSkipped(name, "lock_held")
			s.releaseMonth(name, month)
			return nil
		} else {
			released = func() { _ = s.locker.Release(context.Background(), key, token) }
		}
	}
	defer released()

	start := time.Now()
	schedMetrics.IncJobRun(name)
	s.log.Info("job started", zap.String("job", name), zap.String("month", month))

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	if errors.Is(err, errJobNotReady) {
		schedMetrics.IncJobSkipped(name, "not_ready")
		s.releaseMonth(name, month)
		s.log.Info("job precondition not met, will retry", zap.String("job", name), zap.String("month", month))
		return nil
	}
	if err != nil {
		schedMetrics.IncJobError(name)
		s.releaseMonth(name, month)
		s.log.Error("job failed", zap.String("job", name), zap.Error(err))
		return fmt.Errorf("%s: %w", name, err)
	}

	s.log.Info("job finished", zap.String("job", name), zap.Duration("took", time.Since(start)))
	return nil
}

// claimMonth marks a job as run for the month. Returns false when the job
// already ran this month in this process.
func (s *Scheduler) claimMonth(name, month string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRun[name] == month {
		return false
	}
	s.lastRun[name] = month
	return true
}

// releaseMonth forgets a claim so a failed job retries on the next tick.
func (s *Scheduler) releaseMonth(name, month string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRun[name] == month {
		delete(s.lastRun, name)
	}
}
