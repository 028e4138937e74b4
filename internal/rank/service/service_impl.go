package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/uplinehq/upline/internal/clock"
	commissiondomain "github.com/uplinehq/upline/internal/commission/domain"
	"github.com/uplinehq/upline/internal/events"
	memberdomain "github.com/uplinehq/upline/internal/member/domain"
	"github.com/uplinehq/upline/internal/rank/domain"
	"github.com/uplinehq/upline/internal/rankplan"
	volumedomain "github.com/uplinehq/upline/internal/volume/domain"
	"github.com/uplinehq/upline/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Members memberdomain.Repository
	Bus     *events.Bus `optional:"true"`
}

type rankService struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	members memberdomain.Repository
	bus     *events.Bus
}

func New(p Params) domain.Service {
	return &rankService{
		db:      p.DB,
		log:     p.Log.Named("rank"),
		genID:   p.GenID,
		clock:   p.Clock,
		members: p.Members,
		bus:     p.Bus,
	}
}

func (s *rankService) CheckQualification(ctx context.Context, memberID snowflake.ID) (*domain.QualificationResult, error) {
	dbx := s.db.WithContext(ctx)
	member, err := s.members.FindByID(ctx, dbx, memberID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, memberdomain.ErrMemberNotFound
	}
	return s.qualify(ctx, dbx, member)
}

// qualify probes candidate ranks highest first so a member skips straight
// to the best rank they hold requirements for.
func (s *rankService) qualify(ctx context.Context, dbx *gorm.DB, member *memberdomain.Member) (*domain.QualificationResult, error) {
	activePartners, err := s.members.CountActiveDirectReferrals(ctx, dbx, member.ChatID)
	if err != nil {
		return nil, err
	}

	result := &domain.QualificationResult{
		MemberID:       member.ID,
		CurrentRank:    rankplan.Normalize(member.Rank),
		TeamVolume:     member.TeamVolumeTotal.String(),
		ActivePartners: int(activePartners),
	}
	for _, rank := range rankplan.Above(member.Rank) {
		req := rankplan.RequirementsFor(rank)
		if member.TeamVolumeTotal.GreaterThanOrEqual(req.TeamVolume) && int(activePartners) >= req.ActivePartners {
			result.Qualified = true
			result.QualifiedRank = rank
			return result, nil
		}
	}
	return result, nil
}

func (s *rankService) PromoteIfQualified(ctx context.Context, memberID snowflake.ID) (*domain.QualificationResult, error) {
	var result *domain.QualificationResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		member, err := s.members.FindByIDForUpdate(ctx, tx, memberID)
		if err != nil {
			return err
		}
		if member == nil {
			return memberdomain.ErrMemberNotFound
		}
		result, err = s.qualify(ctx, tx, member)
		if err != nil {
			return err
		}
		if !result.Qualified {
			return nil
		}

		previous := rankplan.Normalize(member.Rank)
		now := s.clock.Now()
		member.Rank = result.QualifiedRank
		member.RankQualifiedAt = &now
		if err := s.members.Save(ctx, tx, member); err != nil {
			return err
		}
		history := &domain.RankHistory{
			ID:                  s.genID.Generate(),
			MemberID:            member.ID,
			PreviousRank:        previous,
			NewRank:             result.QualifiedRank,
			TeamVolume:          member.TeamVolumeTotal,
			ActivePartners:      result.ActivePartners,
			QualificationMethod: domain.MethodNatural,
			CreatedAt:           now,
		}
		return tx.Create(history).Error
	})
	if err != nil {
		return nil, err
	}

	if result.Qualified {
		s.log.Info("member promoted",
			zap.String("member_id", memberID.String()),
			zap.String("from", string(result.CurrentRank)),
			zap.String("to", string(result.QualifiedRank)))
		if s.bus != nil {
			s.bus.Publish(ctx, events.Event{
				Type: events.EventRankAchieved,
				Payload: map[string]any{
					"member_id": memberID.String(),
					"from":      string(result.CurrentRank),
					"to":        string(result.QualifiedRank),
				},
			})
		}
	}
	return result, nil
}

func (s *rankService) AssignRank(ctx context.Context, founderID, memberID snowflake.ID, rank rankplan.Rank) error {
	if !rankplan.Valid(rank) {
		return domain.ErrUnknownRank
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		founder, err := s.members.FindByID(ctx, tx, founderID)
		if err != nil {
			return err
		}
		if founder == nil {
			return memberdomain.ErrMemberNotFound
		}
		if !founder.IsFounder {
			return domain.ErrNotFounder
		}

		member, err := s.members.FindByIDForUpdate(ctx, tx, memberID)
		if err != nil {
			return err
		}
		if member == nil {
			return memberdomain.ErrMemberNotFound
		}

		previous := rankplan.Normalize(member.Rank)
		now := s.clock.Now()
		assigned := rank
		member.Rank = rank
		member.AssignedRank = &assigned
		member.RankQualifiedAt = &now
		if err := s.members.Save(ctx, tx, member); err != nil {
			return err
		}

		activePartners, err := s.members.CountActiveDirectReferrals(ctx, tx, member.ChatID)
		if err != nil {
			return err
		}
		history := &domain.RankHistory{
			ID:                  s.genID.Generate(),
			MemberID:            member.ID,
			PreviousRank:        previous,
			NewRank:             rank,
			TeamVolume:          member.TeamVolumeTotal,
			ActivePartners:      int(activePartners),
			QualificationMethod: domain.MethodAssigned,
			AssignedBy:          &founderID,
			CreatedAt:           now,
		}
		return tx.Create(history).Error
	})
	if err != nil {
		return err
	}

	s.log.Info("rank assigned",
		zap.String("member_id", memberID.String()),
		zap.String("rank", string(rank)),
		zap.String("assigned_by", founderID.String()))
	if s.bus != nil {
		s.bus.Publish(ctx, events.Event{
			Type: events.EventRankAssigned,
			Payload: map[string]any{
				"member_id":   memberID.String(),
				"rank":        string(rank),
				"assigned_by": founderID.String(),
			},
		})
	}
	return nil
}

func (s *rankService) ActiveRank(ctx context.Context, memberID snowflake.ID) (rankplan.Rank, error) {
	member, err := s.members.FindByID(ctx, s.db.WithContext(ctx), memberID)
	if err != nil {
		return "", err
	}
	if member == nil {
		return "", memberdomain.ErrMemberNotFound
	}
	return member.EffectiveRank(), nil
}

func (s *rankService) CheckAllRanks(ctx context.Context) (*domain.BatchResult, error) {
	members, err := s.members.ListAll(ctx, s.db.WithContext(ctx))
	if err != nil {
		return nil, err
	}

	result := &domain.BatchResult{}
	for i := range members {
		result.Checked++
		probe, err := s.PromoteIfQualified(ctx, members[i].ID)
		if err != nil {
			result.Errors++
			s.log.Error("rank check failed",
				zap.String("member_id", members[i].ID.String()),
				zap.Error(err))
			continue
		}
		if probe.Qualified {
			result.Updated++
		}
	}
	s.log.Info("rank sweep finished",
		zap.Int("checked", result.Checked),
		zap.Int("updated", result.Updated),
		zap.Int("errors", result.Errors))
	return result, nil
}

func (s *rankService) SaveMonthlyStats(ctx context.Context, memberID snowflake.ID) (bool, error) {
	dbx := s.db.WithContext(ctx)
	member, err := s.members.FindByID(ctx, dbx, memberID)
	if err != nil {
		return false, err
	}
	if member == nil {
		return false, memberdomain.ErrMemberNotFound
	}

	month := clock.Month(s.clock.Now())
	var count int64
	if err := dbx.Model(&domain.MonthlyStats{}).
		Where("member_id = ? AND month = ?", member.ID, month).
		Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	directReferrals, err := s.members.CountDirectReferrals(ctx, dbx, member.ChatID)
	if err != nil {
		return false, err
	}
	activePartners, err := s.members.CountActiveDirectReferrals(ctx, dbx, member.ChatID)
	if err != nil {
		return false, err
	}
	teamSize, err := s.countTeamSize(ctx, dbx, member.ChatID)
	if err != nil {
		return false, err
	}
	commissions, pool, err := s.monthEarnings(dbx, member.ID)
	if err != nil {
		return false, err
	}

	stats := &domain.MonthlyStats{
		ID:                   s.genID.Generate(),
		MemberID:             member.ID,
		Month:                month,
		PersonalVolume:       member.MonthlyPV,
		TeamVolume:           member.TeamVolumeTotal,
		ActivePartnersCount:  int(activePartners),
		DirectReferralsCount: int(directReferrals),
		TotalTeamSize:        teamSize,
		ActiveRank:           member.EffectiveRank(),
		WasActive:            member.IsActive,
		CommissionsEarned:    commissions,
		GlobalPoolEarned:     pool,
		CreatedAt:            s.clock.Now(),
	}
	if err := dbx.Create(stats).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *rankService) SaveAllMonthlyStats(ctx context.Context) (*domain.SnapshotResult, error) {
	members, err := s.members.ListAll(ctx, s.db.WithContext(ctx))
	if err != nil {
		return nil, err
	}

	result := &domain.SnapshotResult{}
	for i := range members {
		created, err := s.SaveMonthlyStats(ctx, members[i].ID)
		switch {
		case err != nil:
			result.Errors++
			s.log.Error("monthly snapshot failed",
				zap.String("member_id", members[i].ID.String()),
				zap.Error(err))
		case created:
			result.Snapshots++
		default:
			result.Skipped++
		}
	}
	s.log.Info("monthly snapshot sweep finished",
		zap.Int("snapshots", result.Snapshots),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", result.Errors))
	return result, nil
}

// monthEarnings sums the member's ledger for the clock's current month,
// split by origin. A half-open created_at range keeps the query portable
// across dialects.
func (s *rankService) monthEarnings(dbx *gorm.DB, memberID snowflake.ID) (commissions, pool decimal.Decimal, err error) {
	start, end := clock.MonthBounds(s.clock.Now())

	var rows []struct {
		CommissionType commissiondomain.CommissionType
		Total          decimal.Decimal
	}
	err = dbx.Model(&commissiondomain.Bonus{}).
		Select("commission_type, COALESCE(SUM(amount), 0) AS total").
		Where("member_id = ? AND created_at >= ? AND created_at < ?", memberID, start, end).
		Group("commission_type").
		Scan(&rows).Error
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	commissions, pool = decimal.Zero, decimal.Zero
	for _, r := range rows {
		if r.CommissionType == commissiondomain.CommissionTypeGlobalPool {
			pool = pool.Add(r.Total)
		} else {
			commissions = commissions.Add(r.Total)
		}
	}
	return commissions, pool, nil
}

func (s *rankService) countTeamSize(ctx context.Context, dbx *gorm.DB, chatID int64) (int, error) {
	return s.countDownline(ctx, dbx, chatID, map[int64]bool{chatID: true}, 0)
}

func (s *rankService) countDownline(ctx context.Context, dbx *gorm.DB, chatID int64, visited map[int64]bool, depth int) (int, error) {
	if depth > volumedomain.MaxUplineDepth {
		return 0, memberdomain.ErrUplineCycle
	}
	referrals, err := s.members.ListDirectReferrals(ctx, dbx, chatID)
	if err != nil {
		return 0, err
	}
	total := 0
	for i := range referrals {
		if visited[referrals[i].ChatID] {
			continue
		}
		visited[referrals[i].ChatID] = true
		total++
		sub, err := s.countDownline(ctx, dbx, referrals[i].ChatID, visited, depth+1)
		if err != nil {
			return 0, err
		}
		total += sub
	}
	return total, nil
}
