package service

import (
	"context"
	"sort"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/uplinehq/upline/internal/clock"
	"github.com/uplinehq/upline/internal/events"
	memberdomain "github.com/uplinehq/upline/internal/member/domain"
	"github.com/uplinehq/upline/internal/observability/metrics"
	purchasedomain "github.com/uplinehq/upline/internal/purchase/domain"
	"github.com/uplinehq/upline/internal/rankplan"
	"github.com/uplinehq/upline/internal/volume/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Members memberdomain.Repository
	Bus     *events.Bus `optional:"true"`
}

type volumeService struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	members memberdomain.Repository
	bus     *events.Bus
	metrics *metrics.EngineMetrics
}

func New(p Params) domain.Service {
	return &volumeService{
		db:      p.DB,
		log:     p.Log.Named("volume"),
		clock:   p.Clock,
		members: p.Members,
		bus:     p.Bus,
		metrics: metrics.Engine(),
	}
}

func (s *volumeService) RecordPurchaseVolumes(ctx context.Context, tx *gorm.DB, purchase *purchasedomain.Purchase) error {
	buyer, err := s.members.FindByIDForUpdate(ctx, tx, purchase.MemberID)
	if err != nil {
		return err
	}
	if buyer == nil {
		return memberdomain.ErrMemberNotFound
	}

	amount := purchase.PackPrice
	buyer.PersonalVolumeTotal = buyer.PersonalVolumeTotal.Add(amount)
	buyer.MonthlyPV = buyer.MonthlyPV.Add(amount)

	activated := false
	if !buyer.IsActive && buyer.MonthlyPV.GreaterThanOrEqual(rankplan.MinimumPV) {
		month := clock.Month(s.clock.Now())
		buyer.IsActive = true
		buyer.LastActiveMonth = &month
		activated = true
	}
	if err := s.members.Save(ctx, tx, buyer); err != nil {
		return err
	}

	// Roll team volume up the chain. Ancestors are locked buyer-first so
	// concurrent purchases in the same subtree acquire locks in a
	// consistent order.
	visited := map[int64]bool{buyer.ChatID: true}
	current := buyer
	depth := 0
	for current.UplineChatID != nil {
		depth++
		if depth > domain.MaxUplineDepth {
			s.metrics.IncUplineCycle()
			return memberdomain.ErrUplineCycle
		}
		upline, err := s.members.FindByChatIDForUpdate(ctx, tx, *current.UplineChatID)
		if err != nil {
			return err
		}
		if upline == nil {
			break
		}
		if visited[upline.ChatID] {
			s.metrics.IncUplineCycle()
			s.log.Error("upline cycle detected",
				zap.Int64("chat_id", upline.ChatID),
				zap.Int64("buyer_chat_id", buyer.ChatID))
			return memberdomain.ErrUplineCycle
		}
		visited[upline.ChatID] = true

		upline.TeamVolumeTotal = upline.TeamVolumeTotal.Add(amount)
		if err := s.members.Save(ctx, tx, upline); err != nil {
			return err
		}
		current = upline
	}

	if activated && s.bus != nil {
		s.bus.Publish(ctx, events.Event{
			Type: events.EventMemberActivated,
			Payload: map[string]any{
				"member_id": buyer.ID.String(),
				"chat_id":   buyer.ChatID,
			},
		})
	}
	return nil
}

func (s *volumeService) BestBranches(ctx context.Context, memberID snowflake.ID, count int) ([]domain.BranchInfo, error) {
	db := s.db.WithContext(ctx)
	member, err := s.members.FindByID(ctx, db, memberID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, memberdomain.ErrMemberNotFound
	}

	referrals, err := s.members.ListDirectReferrals(ctx, db, member.ChatID)
	if err != nil {
		return nil, err
	}

	branches := make([]domain.BranchInfo, 0, len(referrals))
	for i := range referrals {
		ref := &referrals[i]
		hasDirector, err := s.branchHasDirector(ctx, db, ref, map[int64]bool{member.ChatID: true}, 0)
		if err != nil {
			return nil, err
		}
		branches = append(branches, domain.BranchInfo{
			RootMemberID: ref.ID,
			RootChatID:   ref.ChatID,
			Volume:       ref.PersonalVolumeTotal.Add(ref.TeamVolumeTotal),
			HasDirector:  hasDirector,
		})
	}

	sort.Slice(branches, func(i, j int) bool {
		return branches[i].Volume.GreaterThan(branches[j].Volume)
	})
	if count > 0 && len(branches) > count {
		branches = branches[:count]
	}
	return branches, nil
}

func (s *volumeService) branchHasDirector(ctx context.Context, db *gorm.DB, member *memberdomain.Member, visited map[int64]bool, depth int) (bool, error) {
	if visited[member.ChatID] || depth > domain.MaxUplineDepth {
		return false, nil
	}
	visited[member.ChatID] = true

	if rankplan.Normalize(member.Rank) == rankplan.RankDirector {
		return true, nil
	}
	referrals, err := s.members.ListDirectReferrals(ctx, db, member.ChatID)
	if err != nil {
		return false, err
	}
	for i := range referrals {
		found, err := s.branchHasDirector(ctx, db, &referrals[i], visited, depth+1)
		if err != nil {
			return false, err
		}
		if found {
			return true, nil
		}
	}
	return false, nil
}

func (s *volumeService) ResetMonthlyVolumes(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&memberdomain.Member{}).
		Where("monthly_pv > ? OR is_active = ?", decimal.Zero, true).
		Updates(map[string]any{
			"monthly_pv": decimal.Zero,
			"is_active":  false,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	s.log.Info("monthly volumes reset", zap.Int64("members", res.RowsAffected))
	return res.RowsAffected, nil
}
