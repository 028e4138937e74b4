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
	memberdomain "github.com/uplinehq/upline/internal/member/domain"
	memberrepo "github.com/uplinehq/upline/internal/member/repository"
	"github.com/uplinehq/upline/internal/rank/domain"
	"github.com/uplinehq/upline/internal/rankplan"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupRankTest(t *testing.T) (*gorm.DB, domain.Service, *snowflake.Node, *clock.FakeClock) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&memberdomain.Member{},
		&commissiondomain.Bonus{},
		&domain.RankHistory{},
		&domain.MonthlyStats{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 6, 30, 20, 0, 0, 0, time.UTC))

	svc := New(Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   clk,
		Members: memberrepo.Provide(),
	})
	return db, svc, node, clk
}

func seedRankMember(t *testing.T, db *gorm.DB, node *snowflake.Node, chatID int64, upline *int64, rank rankplan.Rank, teamVolume int64, active bool) *memberdomain.Member {
	t.Helper()
	m := &memberdomain.Member{
		ID:              node.Generate(),
		ChatID:          chatID,
		UplineChatID:    upline,
		Rank:            rank,
		TeamVolumeTotal: decimal.NewFromInt(teamVolume),
		IsActive:        active,
	}
	require.NoError(t, db.Create(m).Error)
	return m
}

func chatPtr(id int64) *int64 { return &id }

func seedActivePartners(t *testing.T, db *gorm.DB, node *snowflake.Node, uplineChat int64, firstChat int64, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		seedRankMember(t, db, node, firstChat+int64(i), chatPtr(uplineChat), rankplan.RankStart, 0, true)
	}
}

func TestCheckQualification_PicksHighestRankHeld(t *testing.T) {
	db, svc, node, _ := setupRankTest(t)

	// Volume and partners clear growth and builder; growth must win.
	m := seedRankMember(t, db, node, 1, nil, rankplan.RankStart, 300_000, true)
	seedActivePartners(t, db, node, 1, 100, 5)

	result, err := svc.CheckQualification(context.Background(), m.ID)
	require.NoError(t, err)
	assert.True(t, result.Qualified)
	assert.Equal(t, rankplan.RankGrowth, result.QualifiedRank)
	assert.Equal(t, 5, result.ActivePartners)
}

func TestCheckQualification_NotQualified(t *testing.T) {
	db, svc, node, _ := setupRankTest(t)

	m := seedRankMember(t, db, node, 1, nil, rankplan.RankStart, 10_000, true)
	seedActivePartners(t, db, node, 1, 100, 1)

	result, err := svc.CheckQualification(context.Background(), m.ID)
	require.NoError(t, err)
	assert.False(t, result.Qualified)
	assert.Equal(t, rankplan.RankStart, result.CurrentRank)
}

func TestPromoteIfQualified_WritesHistory(t *testing.T) {
	db, svc, node, _ := setupRankTest(t)

	m := seedRankMember(t, db, node, 1, nil, rankplan.RankStart, 60_000, true)
	seedActivePartners(t, db, node, 1, 100, 2)

	result, err := svc.PromoteIfQualified(context.Background(), m.ID)
	require.NoError(t, err)
	require.True(t, result.Qualified)
	assert.Equal(t, rankplan.RankBuilder, result.QualifiedRank)

	var got memberdomain.Member
	require.NoError(t, db.First(&got, "id = ?", m.ID).Error)
	assert.Equal(t, rankplan.RankBuilder, got.Rank)
	require.NotNil(t, got.RankQualifiedAt)

	var history domain.RankHistory
	require.NoError(t, db.First(&history, "member_id = ?", m.ID).Error)
	assert.Equal(t, rankplan.RankStart, history.PreviousRank)
	assert.Equal(t, rankplan.RankBuilder, history.NewRank)
	assert.Equal(t, domain.MethodNatural, history.QualificationMethod)
	assert.Nil(t, history.AssignedBy)
}

func TestPromoteIfQualified_NoChangeWhenUnqualified(t *testing.T) {
	db, svc, node, _ := setupRankTest(t)

	m := seedRankMember(t, db, node, 1, nil, rankplan.RankBuilder, 60_000, true)

	result, err := svc.PromoteIfQualified(context.Background(), m.ID)
	require.NoError(t, err)
	assert.False(t, result.Qualified)

	var count int64
	require.NoError(t, db.Model(&domain.RankHistory{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestAssignRank_FounderOnly(t *testing.T) {
	db, svc, node, _ := setupRankTest(t)
	ctx := context.Background()

	founder := seedRankMember(t, db, node, 1, nil, rankplan.RankDirector, 0, true)
	require.NoError(t, db.Model(founder).Update("is_founder", true).Error)
	target := seedRankMember(t, db, node, 2, nil, rankplan.RankStart, 0, true)
	outsider := seedRankMember(t, db, node, 3, nil, rankplan.RankStart, 0, true)

	err := svc.AssignRank(ctx, outsider.ID, target.ID, rankplan.RankGrowth)
	assert.ErrorIs(t, err, domain.ErrNotFounder)

	require.NoError(t, svc.AssignRank(ctx, founder.ID, target.ID, rankplan.RankGrowth))

	var got memberdomain.Member
	require.NoError(t, db.First(&got, "id = ?", target.ID).Error)
	assert.Equal(t, rankplan.RankGrowth, got.Rank)
	require.NotNil(t, got.AssignedRank)
	assert.Equal(t, rankplan.RankGrowth, *got.AssignedRank)

	var history domain.RankHistory
	require.NoError(t, db.First(&history, "member_id = ?", target.ID).Error)
	assert.Equal(t, domain.MethodAssigned, history.QualificationMethod)
	require.NotNil(t, history.AssignedBy)
	assert.Equal(t, founder.ID, *history.AssignedBy)
}

func TestAssignRank_UnknownRank(t *testing.T) {
	_, svc, node, _ := setupRankTest(t)

	err := svc.AssignRank(context.Background(), node.Generate(), node.Generate(), rankplan.Rank("emperor"))
	assert.ErrorIs(t, err, domain.ErrUnknownRank)
}

func TestActiveRank_DegradesWhenInactive(t *testing.T) {
	db, svc, node, _ := setupRankTest(t)

	m := seedRankMember(t, db, node, 1, nil, rankplan.RankLeadership, 0, false)

	rank, err := svc.ActiveRank(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, rankplan.RankStart, rank)

	require.NoError(t, db.Model(m).Update("is_active", true).Error)
	rank, err = svc.ActiveRank(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, rankplan.RankLeadership, rank)
}

func TestCheckAllRanks_CountsUpdates(t *testing.T) {
	db, svc, node, _ := setupRankTest(t)

	seedRankMember(t, db, node, 1, nil, rankplan.RankStart, 60_000, true)
	seedActivePartners(t, db, node, 1, 100, 2)
	seedRankMember(t, db, node, 2, nil, rankplan.RankStart, 0, true)

	result, err := svc.CheckAllRanks(context.Background())
	require.NoError(t, err)
	// One promotion plus the seeded partners and the idle member checked.
	assert.Equal(t, 4, result.Checked)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 0, result.Errors)
}

func TestSaveMonthlyStats_SnapshotAndIdempotence(t *testing.T) {
	db, svc, node, clk := setupRankTest(t)
	ctx := context.Background()

	m := seedRankMember(t, db, node, 1, nil, rankplan.RankBuilder, 70_000, true)
	require.NoError(t, db.Model(m).Update("monthly_pv", decimal.NewFromInt(500)).Error)
	seedActivePartners(t, db, node, 1, 100, 2)

	// Ledger rows inside and outside the snapshot month.
	inMonth := clk.Now().Add(-48 * time.Hour)
	require.NoError(t, db.Create(&commissiondomain.Bonus{
		ID:             node.Generate(),
		MemberID:       m.ID,
		CommissionType: commissiondomain.CommissionTypeDifferential,
		FromRank:       rankplan.RankBuilder,
		Rate:           decimal.RequireFromString("0.08"),
		Amount:         decimal.NewFromInt(120),
		CreatedAt:      inMonth,
	}).Error)
	require.NoError(t, db.Create(&commissiondomain.Bonus{
		ID:             node.Generate(),
		MemberID:       m.ID,
		CommissionType: commissiondomain.CommissionTypeGlobalPool,
		FromRank:       rankplan.RankBuilder,
		Rate:           rankplan.GlobalPoolPercentage,
		Amount:         decimal.NewFromInt(40),
		CreatedAt:      inMonth,
	}).Error)
	require.NoError(t, db.Create(&commissiondomain.Bonus{
		ID:             node.Generate(),
		MemberID:       m.ID,
		CommissionType: commissiondomain.CommissionTypeDifferential,
		FromRank:       rankplan.RankBuilder,
		Rate:           decimal.RequireFromString("0.08"),
		Amount:         decimal.NewFromInt(999),
		CreatedAt:      clk.Now().AddDate(0, -1, 0),
	}).Error)

	created, err := svc.SaveMonthlyStats(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, created)

	var stats domain.MonthlyStats
	require.NoError(t, db.First(&stats, "member_id = ?", m.ID).Error)
	assert.Equal(t, clock.Month(clk.Now()), stats.Month)
	assert.True(t, stats.PersonalVolume.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, 2, stats.ActivePartnersCount)
	assert.Equal(t, 2, stats.DirectReferralsCount)
	assert.Equal(t, 2, stats.TotalTeamSize)
	assert.Equal(t, rankplan.RankBuilder, stats.ActiveRank)
	assert.True(t, stats.WasActive)
	assert.True(t, stats.CommissionsEarned.Equal(decimal.NewFromInt(120)))
	assert.True(t, stats.GlobalPoolEarned.Equal(decimal.NewFromInt(40)))

	// Second run for the same month is a no-op.
	created, err = svc.SaveMonthlyStats(ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, created)
	var count int64
	require.NoError(t, db.Model(&domain.MonthlyStats{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestSaveAllMonthlyStats_SkipsExisting(t *testing.T) {
	db, svc, node, _ := setupRankTest(t)
	ctx := context.Background()

	a := seedRankMember(t, db, node, 1, nil, rankplan.RankStart, 0, true)
	seedRankMember(t, db, node, 2, nil, rankplan.RankStart, 0, false)

	created, err := svc.SaveMonthlyStats(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, created)

	result, err := svc.SaveAllMonthlyStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Snapshots)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Errors)
}
