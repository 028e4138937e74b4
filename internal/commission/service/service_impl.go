package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/uplinehq/upline/internal/clock"
	"github.com/uplinehq/upline/internal/commission/domain"
	"github.com/uplinehq/upline/internal/events"
	memberdomain "github.com/uplinehq/upline/internal/member/domain"
	"github.com/uplinehq/upline/internal/observability/metrics"
	purchasedomain "github.com/uplinehq/upline/internal/purchase/domain"
	"github.com/uplinehq/upline/internal/rankplan"
	volumedomain "github.com/uplinehq/upline/internal/volume/domain"
	"github.com/uplinehq/upline/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Members   memberdomain.Repository
	Purchases purchasedomain.Repository
	Bus       *events.Bus `optional:"true"`
}

type commissionService struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	members   memberdomain.Repository
	purchases purchasedomain.Repository
	bus       *events.Bus
	metrics   *metrics.EngineMetrics
}

func New(p Params) domain.Service {
	return &commissionService{
		db:        p.DB,
		log:       p.Log.Named("commission"),
		genID:     p.GenID,
		clock:     p.Clock,
		members:   p.Members,
		purchases: p.Purchases,
		bus:       p.Bus,
		metrics:   metrics.Engine(),
	}
}

// candidate is one ancestor visited by the differential walk, before
// compression. Inactive ancestors carry their full rank percentage; active
// ancestors carry only the differential over the last paid percentage.
type candidate struct {
	member *memberdomain.Member
	level  int
	rate   decimal.Decimal
	active bool
}

func (s *commissionService) ProcessPurchase(ctx context.Context, purchaseID snowflake.ID) (*domain.ProcessResult, error) {
	var result *domain.ProcessResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		purchase, err := s.purchases.FindByID(ctx, tx, purchaseID)
		if err != nil {
			return err
		}
		if purchase == nil {
			return domain.ErrPurchaseNotFound
		}

		existing, err := s.loadExisting(tx, purchaseID)
		if err != nil {
			return err
		}
		if existing != nil {
			result = existing
			return nil
		}

		buyer, err := s.members.FindByIDForUpdate(ctx, tx, purchase.MemberID)
		if err != nil {
			return err
		}
		if buyer == nil {
			return memberdomain.ErrMemberNotFound
		}

		candidates, sponsor, err := s.walkUpline(ctx, tx, buyer)
		if err != nil {
			return err
		}

		entries := compress(candidates, purchase.PackPrice)
		for i := range entries {
			if entries[i].member.HasPioneerBonus {
				entries[i].pioneer = purchase.PackPrice.Mul(rankplan.PioneerBonusPercentage).Round(2)
			}
		}

		result = &domain.ProcessResult{PurchaseID: purchaseID, TotalDistributed: decimal.Zero}
		now := s.clock.Now()
		for _, e := range entries {
			amount := e.amount.Add(e.pioneer)
			note := "differential commission"
			if e.pioneer.IsPositive() {
				note = "differential commission with pioneer bonus"
			}
			row := &domain.Bonus{
				ID:                 s.genID.Generate(),
				MemberID:           e.member.ID,
				PurchaseID:         &purchase.ID,
				DownlineID:         &buyer.ID,
				CommissionType:     domain.CommissionTypeDifferential,
				UplineLevel:        e.level,
				FromRank:           rankplan.Normalize(e.member.Rank),
				Rate:               e.rate,
				Amount:             amount,
				CompressionApplied: e.compressed,
				Note:               note,
				CreatedAt:          now,
			}
			if err := tx.Create(row).Error; err != nil {
				return err
			}
			e.member.BalancePassive = e.member.BalancePassive.Add(amount)
			if err := s.members.Save(ctx, tx, e.member); err != nil {
				return err
			}

			result.Commissions = append(result.Commissions, domain.CommissionEntry{
				MemberID:           e.member.ID,
				Level:              e.level,
				Rank:               rankplan.Normalize(e.member.Rank),
				Rate:               e.rate,
				Amount:             amount,
				CompressionApplied: e.compressed,
				PioneerBonus:       e.pioneer,
				Type:               domain.CommissionTypeDifferential,
			})
			result.TotalDistributed = result.TotalDistributed.Add(amount)
		}

		referral, err := s.payReferralBonus(ctx, tx, purchase, buyer, sponsor, now)
		if err != nil {
			return err
		}
		if referral != nil {
			result.Commissions = append(result.Commissions, *referral)
			result.TotalDistributed = result.TotalDistributed.Add(referral.Amount)
		}
		return nil
	})
	if err != nil {
		// A concurrent run won the unique index on (purchase, member,
		// type). Report what that run persisted.
		if db.IsDuplicateKeyErr(err) {
			return s.reportExisting(ctx, purchaseID)
		}
		return nil, err
	}

	if !result.AlreadyProcessed {
		s.metrics.IncPurchaseProcessed()
		for _, c := range result.Commissions {
			s.metrics.RecordBonus(string(c.Type), c.Amount.InexactFloat64())
			if c.CompressionApplied {
				s.metrics.IncCompressionApplied()
			}
		}
		if s.bus != nil {
			s.bus.Publish(ctx, events.Event{
				Type: events.EventCommissionCalculated,
				Payload: map[string]any{
					"purchase_id":       purchaseID.String(),
					"payouts":           len(result.Commissions),
					"total_distributed": result.TotalDistributed.String(),
				},
			})
		}
		s.log.Info("purchase processed",
			zap.String("purchase_id", purchaseID.String()),
			zap.Int("payouts", len(result.Commissions)),
			zap.String("total_distributed", result.TotalDistributed.String()))
	}
	return result, nil
}

// walkUpline collects differential candidates from the buyer's ancestors.
// Every visited row is locked so balance credits cannot race a concurrent
// volume roll-up. Returns the direct sponsor separately for the referral
// bonus, which applies whether or not the sponsor earned a differential.
func (s *commissionService) walkUpline(ctx context.Context, tx *gorm.DB, buyer *memberdomain.Member) ([]candidate, *memberdomain.Member, error) {
	var (
		candidates []candidate
		sponsor    *memberdomain.Member
	)
	lastPct := decimal.Zero
	maxPct := rankplan.MaxPercentage()
	visited := map[int64]bool{buyer.ChatID: true}
	current := buyer
	level := 1

	for current.UplineChatID != nil {
		if level > volumedomain.MaxUplineDepth {
			s.metrics.IncUplineCycle()
			return nil, nil, memberdomain.ErrUplineCycle
		}
		upline, err := s.members.FindByChatIDForUpdate(ctx, tx, *current.UplineChatID)
		if err != nil {
			return nil, nil, err
		}
		if upline == nil {
			break
		}
		if visited[upline.ChatID] {
			s.metrics.IncUplineCycle()
			s.log.Error("upline cycle detected",
				zap.Int64("chat_id", upline.ChatID),
				zap.Int64("buyer_chat_id", buyer.ChatID))
			return nil, nil, memberdomain.ErrUplineCycle
		}
		visited[upline.ChatID] = true
		if level == 1 {
			sponsor = upline
		}

		if !upline.IsActive {
			// The held rank's percentage rides along until an active
			// ancestor absorbs it.
			candidates = append(candidates, candidate{
				member: upline,
				level:  level,
				rate:   rankplan.PercentageFor(upline.Rank),
				active: false,
			})
		} else {
			pct := rankplan.PercentageFor(upline.EffectiveRank())
			if diff := pct.Sub(lastPct); diff.IsPositive() {
				candidates = append(candidates, candidate{
					member: upline,
					level:  level,
					rate:   diff,
					active: true,
				})
				lastPct = pct
			}
		}

		if lastPct.GreaterThanOrEqual(maxPct) {
			break
		}
		current = upline
		level++
	}
	return candidates, sponsor, nil
}

// entry is one payable commission after compression.
type entry struct {
	member     *memberdomain.Member
	level      int
	rate       decimal.Decimal
	amount     decimal.Decimal
	compressed bool
	pioneer    decimal.Decimal
}

// compress folds inactive candidates' percentages into the next active
// ancestor above them. Inactive members receive nothing; their carried
// rates accumulate and pay out with the first active payee encountered.
func compress(candidates []candidate, price decimal.Decimal) []*entry {
	var out []*entry
	pending := decimal.Zero
	for _, c := range candidates {
		if !c.active {
			pending = pending.Add(c.rate)
			continue
		}
		rate := c.rate.Add(pending)
		out = append(out, &entry{
			member:     c.member,
			level:      c.level,
			rate:       rate,
			amount:     price.Mul(rate).Round(2),
			compressed: pending.IsPositive(),
		})
		pending = decimal.Zero
	}
	return out
}

func (s *commissionService) payReferralBonus(ctx context.Context, tx *gorm.DB, purchase *purchasedomain.Purchase, buyer *memberdomain.Member, sponsor *memberdomain.Member, now time.Time) (*domain.CommissionEntry, error) {
	if sponsor == nil || !sponsor.IsActive {
		return nil, nil
	}
	if purchase.PackPrice.LessThan(rankplan.ReferralBonusMinAmount) {
		return nil, nil
	}

	amount := purchase.PackPrice.Mul(rankplan.ReferralBonusPercentage).Round(2)
	row := &domain.Bonus{
		ID:             s.genID.Generate(),
		MemberID:       sponsor.ID,
		PurchaseID:     &purchase.ID,
		DownlineID:     &buyer.ID,
		CommissionType: domain.CommissionTypeReferral,
		UplineLevel:    1,
		FromRank:       rankplan.Normalize(sponsor.Rank),
		Rate:           rankplan.ReferralBonusPercentage,
		Amount:         amount,
		Note:           "referral bonus",
		CreatedAt:      now,
	}
	if err := tx.Create(row).Error; err != nil {
		return nil, err
	}
	sponsor.BalancePassive = sponsor.BalancePassive.Add(amount)
	if err := s.members.Save(ctx, tx, sponsor); err != nil {
		return nil, err
	}
	return &domain.CommissionEntry{
		MemberID: sponsor.ID,
		Level:    1,
		Rank:     rankplan.Normalize(sponsor.Rank),
		Rate:     rankplan.ReferralBonusPercentage,
		Amount:   amount,
		Type:     domain.CommissionTypeReferral,
	}, nil
}

// loadExisting rebuilds a ProcessResult from persisted ledger rows, or
// returns nil when the purchase has never been processed.
func (s *commissionService) loadExisting(tx *gorm.DB, purchaseID snowflake.ID) (*domain.ProcessResult, error) {
	var rows []domain.Bonus
	err := tx.
		Where("purchase_id = ?", purchaseID).
		Order("upline_level asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	result := &domain.ProcessResult{
		PurchaseID:       purchaseID,
		AlreadyProcessed: true,
		TotalDistributed: decimal.Zero,
	}
	for _, r := range rows {
		result.Commissions = append(result.Commissions, domain.CommissionEntry{
			MemberID:           r.MemberID,
			Level:              r.UplineLevel,
			Rank:               r.FromRank,
			Rate:               r.Rate,
			Amount:             r.Amount,
			CompressionApplied: r.CompressionApplied,
			Type:               r.CommissionType,
		})
		result.TotalDistributed = result.TotalDistributed.Add(r.Amount)
	}
	return result, nil
}

func (s *commissionService) reportExisting(ctx context.Context, purchaseID snowflake.ID) (*domain.ProcessResult, error) {
	result, err := s.loadExisting(s.db.WithContext(ctx), purchaseID)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, domain.ErrPurchaseNotFound
	}
	return result, nil
}
