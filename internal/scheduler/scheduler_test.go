package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uplinehq/upline/internal/clock"
	commissiondomain "github.com/uplinehq/upline/internal/commission/domain"
	"github.com/uplinehq/upline/internal/config"
	globalpooldomain "github.com/uplinehq/upline/internal/globalpool/domain"
	globalpoolservice "github.com/uplinehq/upline/internal/globalpool/service"
	memberdomain "github.com/uplinehq/upline/internal/member/domain"
	memberrepo "github.com/uplinehq/upline/internal/member/repository"
	rankdomain "github.com/uplinehq/upline/internal/rank/domain"
	rankservice "github.com/uplinehq/upline/internal/rank/service"
	"github.com/uplinehq/upline/internal/rankplan"
	volumeservice "github.com/uplinehq/upline/internal/volume/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupSchedulerTest(t *testing.T, start time.Time) (*gorm.DB, *Scheduler, *snowflake.Node, *clock.FakeClock) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&memberdomain.Member{},
		&commissiondomain.Bonus{},
		&rankdomain.RankHistory{},
		&rankdomain.MonthlyStats{},
		&globalpooldomain.GlobalPool{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(start)
	log := zap.NewNop()
	members := memberrepo.Provide()

	volumes := volumeservice.New(volumeservice.Params{
		DB: db, Log: log, Clock: clk, Members: members,
	})
	ranks := rankservice.New(rankservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Members: members,
	})
	pools := globalpoolservice.New(globalpoolservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Members: members, Volumes: volumes,
	})

	sched, err := New(Params{
		DB:      db,
		Log:     log,
		Clock:   clk,
		Holder:  config.StaticScheduleHolder(config.DefaultScheduleConfig()),
		Volumes: volumes,
		Ranks:   ranks,
		Pools:   pools,
	})
	require.NoError(t, err)
	return db, sched, node, clk
}

func seedSchedMember(t *testing.T, db *gorm.DB, node *snowflake.Node, chatID int64, monthlyPV int64, active bool) *memberdomain.Member {
	t.Helper()
	m := &memberdomain.Member{
		ID:        node.Generate(),
		ChatID:    chatID,
		Rank:      rankplan.RankStart,
		MonthlyPV: decimal.NewFromInt(monthlyPV),
		IsActive:  active,
	}
	require.NoError(t, db.Create(m).Error)
	return m
}

func TestRunOnce_MidMonthRunsNothingDestructive(t *testing.T) {
	db, sched, node, _ := setupSchedulerTest(t, time.Date(2026, 8, 15, 3, 0, 0, 0, time.UTC))

	m := seedSchedMember(t, db, node, 1, 500, true)

	require.NoError(t, sched.RunOnce(context.Background()))

	// Day 15 is past the reset day, not on it: volumes survive.
	var got memberdomain.Member
	require.NoError(t, db.First(&got, "id = ?", m.ID).Error)
	assert.True(t, got.MonthlyPV.Equal(decimal.NewFromInt(500)))
	assert.True(t, got.IsActive)

	// Pool catch-up did run for the month.
	var pools int64
	require.NoError(t, db.Model(&globalpooldomain.GlobalPool{}).Count(&pools).Error)
	assert.EqualValues(t, 1, pools)
}

func TestRunOnce_ResetDayClearsVolumes(t *testing.T) {
	db, sched, node, _ := setupSchedulerTest(t, time.Date(2026, 8, 1, 0, 5, 0, 0, time.UTC))

	m := seedSchedMember(t, db, node, 1, 500, true)

	require.NoError(t, sched.RunOnce(context.Background()))

	var got memberdomain.Member
	require.NoError(t, db.First(&got, "id = ?", m.ID).Error)
	assert.True(t, got.MonthlyPV.IsZero())
	assert.False(t, got.IsActive)
}

func TestRunOnce_SameMonthRerunIsNoOp(t *testing.T) {
	db, sched, node, clk := setupSchedulerTest(t, time.Date(2026, 8, 5, 1, 0, 0, 0, time.UTC))

	seedSchedMember(t, db, node, 1, 1000, true)
	ctx := context.Background()

	require.NoError(t, sched.RunOnce(ctx))
	var pools int64
	require.NoError(t, db.Model(&globalpooldomain.GlobalPool{}).Count(&pools).Error)
	require.EqualValues(t, 1, pools)

	// Later tick in the same month claims nothing new.
	clk.Advance(24 * time.Hour)
	require.NoError(t, sched.RunOnce(ctx))
	require.NoError(t, db.Model(&globalpooldomain.GlobalPool{}).Count(&pools).Error)
	assert.EqualValues(t, 1, pools)
}

func TestRunOnce_NextMonthRunsAgain(t *testing.T) {
	db, sched, node, clk := setupSchedulerTest(t, time.Date(2026, 8, 5, 1, 0, 0, 0, time.UTC))

	seedSchedMember(t, db, node, 1, 1000, true)
	ctx := context.Background()

	require.NoError(t, sched.RunOnce(ctx))
	clk.SetTime(time.Date(2026, 9, 5, 1, 0, 0, 0, time.UTC))
	require.NoError(t, sched.RunOnce(ctx))

	var pools int64
	require.NoError(t, db.Model(&globalpooldomain.GlobalPool{}).Count(&pools).Error)
	assert.EqualValues(t, 2, pools)
}

func TestRunOnce_MonthEndWritesSnapshots(t *testing.T) {
	db, sched, node, _ := setupSchedulerTest(t, time.Date(2026, 8, 31, 23, 0, 0, 0, time.UTC))

	seedSchedMember(t, db, node, 1, 300, true)
	seedSchedMember(t, db, node, 2, 0, false)

	require.NoError(t, sched.RunOnce(context.Background()))

	var snapshots int64
	require.NoError(t, db.Model(&rankdomain.MonthlyStats{}).Count(&snapshots).Error)
	assert.EqualValues(t, 2, snapshots)
}

func TestRunOnce_PoolDistributionFollowsCalculation(t *testing.T) {
	db, sched, node, _ := setupSchedulerTest(t, time.Date(2026, 8, 10, 2, 0, 0, 0, time.UTC))

	// Leader with two director branches qualifies for the pool.
	leader := seedSchedMember(t, db, node, 1, 10_000, true)
	require.NoError(t, db.Model(leader).Update("rank", rankplan.RankLeadership).Error)
	for _, chat := range []int64{11, 12} {
		d := seedSchedMember(t, db, node, chat, 0, true)
		require.NoError(t, db.Model(d).Updates(map[string]any{
			"rank":           rankplan.RankDirector,
			"upline_chat_id": int64(1),
		}).Error)
	}

	require.NoError(t, sched.RunOnce(context.Background()))

	var pool globalpooldomain.GlobalPool
	require.NoError(t, db.First(&pool).Error)
	assert.Equal(t, globalpooldomain.PoolStatusDistributed, pool.Status)

	var got memberdomain.Member
	require.NoError(t, db.First(&got, "id = ?", leader.ID).Error)
	// 2% of 10,000 paid to the single qualifier.
	assert.True(t, got.BalancePassive.Equal(decimal.NewFromInt(200)))
}

func TestRunOnce_DistributionRetriesAfterCalculationFailure(t *testing.T) {
	db, sched, node, clk := setupSchedulerTest(t, time.Date(2026, 8, 6, 1, 0, 0, 0, time.UTC))
	ctx := context.Background()

	seedSchedMember(t, db, node, 1, 1000, true)

	// First tick: the members table is unreachable, so pool calculation
	// fails and distribution finds no pool row for the month. Both must
	// give their month claims back.
	require.NoError(t, db.Migrator().RenameTable("members", "members_offline"))
	err := sched.RunOnce(ctx)
	require.Error(t, err)

	var pools int64
	require.NoError(t, db.Model(&globalpooldomain.GlobalPool{}).Count(&pools).Error)
	require.EqualValues(t, 0, pools)

	// Next tick after recovery: calculation retries, and distribution must
	// follow in the same month instead of staying stuck on its old claim.
	require.NoError(t, db.Migrator().RenameTable("members_offline", "members"))
	clk.Advance(time.Minute)
	require.NoError(t, sched.RunOnce(ctx))

	var pool globalpooldomain.GlobalPool
	require.NoError(t, db.First(&pool).Error)
	assert.Equal(t, globalpooldomain.PoolStatusDistributed, pool.Status)
}

func TestNew_RejectsMissingDeps(t *testing.T) {
	_, err := New(Params{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
