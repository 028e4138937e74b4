package service

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
	"github.com/uplinehq/upline/internal/globalpool/domain"
	memberdomain "github.com/uplinehq/upline/internal/member/domain"
	memberrepo "github.com/uplinehq/upline/internal/member/repository"
	"github.com/uplinehq/upline/internal/rankplan"
	volumeservice "github.com/uplinehq/upline/internal/volume/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupPoolTest(t *testing.T) (*gorm.DB, domain.Service, *snowflake.Node, *clock.FakeClock) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&memberdomain.Member{},
		&commissiondomain.Bonus{},
		&domain.GlobalPool{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 7, 31, 22, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	members := memberrepo.Provide()

	volumes := volumeservice.New(volumeservice.Params{
		DB:      db,
		Log:     log,
		Clock:   clk,
		Members: members,
	})
	svc := New(Params{
		DB:      db,
		Log:     log,
		GenID:   node,
		Clock:   clk,
		Members: members,
		Volumes: volumes,
	})
	return db, svc, node, clk
}

func seedPoolMember(t *testing.T, db *gorm.DB, node *snowflake.Node, chatID int64, upline *int64, rank rankplan.Rank, monthlyPV int64, active bool) *memberdomain.Member {
	t.Helper()
	m := &memberdomain.Member{
		ID:           node.Generate(),
		ChatID:       chatID,
		UplineChatID: upline,
		Rank:         rank,
		MonthlyPV:    decimal.NewFromInt(monthlyPV),
		IsActive:     active,
	}
	require.NoError(t, db.Create(m).Error)
	return m
}

func poolChat(id int64) *int64 { return &id }

// seedQualifiedLeader builds a member with two branches that each hold a
// director, the shape pool qualification requires.
func seedQualifiedLeader(t *testing.T, db *gorm.DB, node *snowflake.Node, chatID int64, monthlyPV int64) *memberdomain.Member {
	t.Helper()
	leader := seedPoolMember(t, db, node, chatID, nil, rankplan.RankLeadership, monthlyPV, true)
	seedPoolMember(t, db, node, chatID*10+1, poolChat(chatID), rankplan.RankDirector, 0, true)
	seedPoolMember(t, db, node, chatID*10+2, poolChat(chatID), rankplan.RankDirector, 0, true)
	return leader
}

func TestCalculateMonthlyPool_SizesAndFreezesQualifiers(t *testing.T) {
	db, svc, node, clk := setupPoolTest(t)

	leader := seedQualifiedLeader(t, db, node, 1, 10_000)
	// Active volume contributor with no director branches.
	seedPoolMember(t, db, node, 5, nil, rankplan.RankBuilder, 40_000, true)
	// Inactive volume never funds the pool.
	seedPoolMember(t, db, node, 6, nil, rankplan.RankBuilder, 99_999, false)

	pool, err := svc.CalculateMonthlyPool(context.Background())
	require.NoError(t, err)
	assert.Equal(t, clock.Month(clk.Now()), pool.Month)
	assert.Equal(t, domain.PoolStatusCalculated, pool.Status)
	assert.True(t, pool.TotalCompanyVolume.Equal(decimal.NewFromInt(50_000)))
	// 2% of 50,000.
	assert.True(t, pool.PoolSize.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, 1, pool.QualifiedCount)
	assert.True(t, pool.PerMemberAmount.Equal(decimal.NewFromInt(1000)))
	assert.Contains(t, string(pool.QualifiedMemberIDs), leader.ID.String())
}

func TestCalculateMonthlyPool_OncePerMonth(t *testing.T) {
	db, svc, node, _ := setupPoolTest(t)

	seedPoolMember(t, db, node, 1, nil, rankplan.RankBuilder, 1000, true)

	_, err := svc.CalculateMonthlyPool(context.Background())
	require.NoError(t, err)

	_, err = svc.CalculateMonthlyPool(context.Background())
	assert.ErrorIs(t, err, domain.ErrPoolAlreadyCalculated)
}

func TestDistributeGlobalPool_PaysEachQualifier(t *testing.T) {
	db, svc, node, _ := setupPoolTest(t)
	ctx := context.Background()

	a := seedQualifiedLeader(t, db, node, 1, 30_000)
	b := seedQualifiedLeader(t, db, node, 2, 20_000)

	_, err := svc.CalculateMonthlyPool(ctx)
	require.NoError(t, err)

	result, err := svc.DistributeGlobalPool(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Recipients)
	// Pool is 2% of 50,000 split two ways.
	assert.True(t, result.PerMemberAmount.Equal(decimal.NewFromInt(500)))
	assert.True(t, result.TotalDistributed.Equal(decimal.NewFromInt(1000)))

	for _, m := range []*memberdomain.Member{a, b} {
		var got memberdomain.Member
		require.NoError(t, db.First(&got, "id = ?", m.ID).Error)
		assert.True(t, got.BalancePassive.Equal(decimal.NewFromInt(500)))

		var row commissiondomain.Bonus
		require.NoError(t, db.First(&row, "member_id = ? AND commission_type = ?",
			m.ID, commissiondomain.CommissionTypeGlobalPool).Error)
		assert.True(t, row.Amount.Equal(decimal.NewFromInt(500)))
		assert.Nil(t, row.PurchaseID)
	}

	var pool domain.GlobalPool
	require.NoError(t, db.First(&pool).Error)
	assert.Equal(t, domain.PoolStatusDistributed, pool.Status)
	require.NotNil(t, pool.DistributedAt)
}

func TestDistributeGlobalPool_RequiresCalculation(t *testing.T) {
	_, svc, _, _ := setupPoolTest(t)

	_, err := svc.DistributeGlobalPool(context.Background())
	assert.ErrorIs(t, err, domain.ErrPoolNotCalculated)
}

func TestDistributeGlobalPool_OnlyOnce(t *testing.T) {
	db, svc, node, _ := setupPoolTest(t)
	ctx := context.Background()

	seedQualifiedLeader(t, db, node, 1, 10_000)
	_, err := svc.CalculateMonthlyPool(ctx)
	require.NoError(t, err)
	_, err = svc.DistributeGlobalPool(ctx)
	require.NoError(t, err)

	_, err = svc.DistributeGlobalPool(ctx)
	assert.ErrorIs(t, err, domain.ErrPoolAlreadyDistributed)
}

func TestDistributeGlobalPool_ZeroQualifiersIsTerminal(t *testing.T) {
	db, svc, node, _ := setupPoolTest(t)
	ctx := context.Background()

	seedPoolMember(t, db, node, 1, nil, rankplan.RankBuilder, 5000, true)

	pool, err := svc.CalculateMonthlyPool(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, pool.QualifiedCount)
	assert.True(t, pool.PerMemberAmount.IsZero())

	result, err := svc.DistributeGlobalPool(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Recipients)
	assert.True(t, result.TotalDistributed.IsZero())

	var got domain.GlobalPool
	require.NoError(t, db.First(&got).Error)
	assert.Equal(t, domain.PoolStatusDistributed, got.Status)
}

func TestCheckMemberQualification_Reasons(t *testing.T) {
	db, svc, node, _ := setupPoolTest(t)
	ctx := context.Background()

	inactive := seedPoolMember(t, db, node, 1, nil, rankplan.RankLeadership, 0, false)
	check, err := svc.CheckMemberQualification(ctx, inactive.ID)
	require.NoError(t, err)
	assert.False(t, check.Qualified)
	assert.Equal(t, "member is not active this month", check.Reason)

	// One branch only.
	single := seedPoolMember(t, db, node, 2, nil, rankplan.RankLeadership, 0, true)
	seedPoolMember(t, db, node, 21, poolChat(2), rankplan.RankDirector, 0, true)
	check, err = svc.CheckMemberQualification(ctx, single.ID)
	require.NoError(t, err)
	assert.False(t, check.Qualified)
	assert.Equal(t, "fewer than two downline branches", check.Reason)

	// Two branches, one without a director.
	half := seedPoolMember(t, db, node, 3, nil, rankplan.RankLeadership, 0, true)
	seedPoolMember(t, db, node, 31, poolChat(3), rankplan.RankDirector, 0, true)
	seedPoolMember(t, db, node, 32, poolChat(3), rankplan.RankStart, 0, true)
	check, err = svc.CheckMemberQualification(ctx, half.ID)
	require.NoError(t, err)
	assert.False(t, check.Qualified)
	assert.Equal(t, "two strongest branches must each contain a director", check.Reason)

	full := seedQualifiedLeader(t, db, node, 4, 0)
	check, err = svc.CheckMemberQualification(ctx, full.ID)
	require.NoError(t, err)
	assert.True(t, check.Qualified)
	assert.True(t, check.DirectorBranch1)
	assert.True(t, check.DirectorBranch2)
}
