package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ScheduleConfig controls the calendar of the monthly batches. The rank
// table itself is fixed; only the operational schedule is tunable.
type ScheduleConfig struct {
	// Day of month each phase runs on.
	VolumeResetDay      int `mapstructure:"volumeResetDay"`
	RankCheckDay        int `mapstructure:"rankCheckDay"`
	PoolCalculationDay  int `mapstructure:"poolCalculationDay"`
	PoolDistributionDay int `mapstructure:"poolDistributionDay"`

	// SnapshotOnMonthEnd writes monthly stats on the last day of the month.
	SnapshotOnMonthEnd bool `mapstructure:"snapshotOnMonthEnd"`

	BatchSize int `mapstructure:"batchSize"`
}

func DefaultScheduleConfig() ScheduleConfig {
	return ScheduleConfig{
		VolumeResetDay:      1,
		RankCheckDay:        1,
		PoolCalculationDay:  3,
		PoolDistributionDay: 5,
		SnapshotOnMonthEnd:  true,
		BatchSize:           200,
	}
}

// ScheduleConfigHolder keeps the live schedule and hot-reloads it when the
// config file changes.
type ScheduleConfigHolder struct {
	current atomic.Value // holds ScheduleConfig
}

func NewScheduleConfigHolder() (*ScheduleConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("schedule")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/upline/config") // Volume-mounted config
	v.AddConfigPath("/etc/upline")            // System config
	v.AddConfigPath(".")                      // Current directory (dev mode)

	v.SetEnvPrefix("UPLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultScheduleConfig()
	v.SetDefault("schedule.volumeResetDay", defaults.VolumeResetDay)
	v.SetDefault("schedule.rankCheckDay", defaults.RankCheckDay)
	v.SetDefault("schedule.poolCalculationDay", defaults.PoolCalculationDay)
	v.SetDefault("schedule.poolDistributionDay", defaults.PoolDistributionDay)
	v.SetDefault("schedule.snapshotOnMonthEnd", defaults.SnapshotOnMonthEnd)
	v.SetDefault("schedule.batchSize", defaults.BatchSize)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg ScheduleConfig
	if err := v.UnmarshalKey("schedule", &cfg); err != nil {
		return nil, err
	}
	if err := validateScheduleConfig(cfg); err != nil {
		return nil, err
	}

	holder := &ScheduleConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated ScheduleConfig
		if err := v.UnmarshalKey("schedule", &updated); err != nil {
			log.Printf("[schedule-config] reload failed: %v", err)
			return
		}
		if err := validateScheduleConfig(updated); err != nil {
			log.Printf("[schedule-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[schedule-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *ScheduleConfigHolder) Get() ScheduleConfig {
	return h.current.Load().(ScheduleConfig)
}

// StaticScheduleHolder wraps a fixed schedule with no file watching. Used
// by tests and one-off tooling.
func StaticScheduleHolder(cfg ScheduleConfig) *ScheduleConfigHolder {
	h := &ScheduleConfigHolder{}
	h.current.Store(cfg)
	return h
}

func validateScheduleConfig(cfg ScheduleConfig) error {
	days := []int{cfg.VolumeResetDay, cfg.RankCheckDay, cfg.PoolCalculationDay, cfg.PoolDistributionDay}
	for _, d := range days {
		if d < 1 || d > 28 {
			return errors.New("schedule days must fall between 1 and 28")
		}
	}
	if cfg.PoolDistributionDay <= cfg.PoolCalculationDay {
		return errors.New("schedule.poolDistributionDay must come after poolCalculationDay")
	}
	if cfg.BatchSize <= 0 {
		return errors.New("schedule.batchSize must be positive")
	}
	return nil
}
