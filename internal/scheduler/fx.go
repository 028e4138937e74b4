package scheduler

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"github.com/uplinehq/upline/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideLocker),
	fx.Provide(New),
	fx.Invoke(RunScheduler),
)

func ProvideLocker(cfg config.Config) *Locker {
	if cfg.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	return NewLocker(client)
}

func RunScheduler(lc fx.Lifecycle, sched *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			runCtx, cancel := context.WithCancel(context.Background())

			go sched.RunForever(runCtx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}
