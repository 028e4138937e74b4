package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/uplinehq/upline/internal/clock"
	commissiondomain "github.com/uplinehq/upline/internal/commission/domain"
	memberdomain "github.com/uplinehq/upline/internal/member/domain"
	"github.com/uplinehq/upline/internal/purchase/domain"
	volumedomain "github.com/uplinehq/upline/internal/volume/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Members     memberdomain.Repository
	Purchases   domain.Repository
	Volumes     volumedomain.Service
	Commissions commissiondomain.Service
}

type purchaseService struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	members     memberdomain.Repository
	purchases   domain.Repository
	volumes     volumedomain.Service
	commissions commissiondomain.Service
}

func New(p Params) domain.Service {
	return &purchaseService{
		db:          p.DB,
		log:         p.Log.Named("purchase"),
		genID:       p.GenID,
		clock:       p.Clock,
		members:     p.Members,
		purchases:   p.Purchases,
		volumes:     p.Volumes,
		commissions: p.Commissions,
	}
}

// RecordPurchase runs in two transactions. The first debits the buyer,
// persists the purchase and rolls the volumes; the second pays commissions.
// A commission failure leaves the purchase recorded and the payout
// recoverable by re-running ProcessPurchase, so it is reported but does not
// fail the call.
func (s *purchaseService) RecordPurchase(ctx context.Context, req domain.CreatePurchaseRequest) (*domain.Purchase, *commissiondomain.ProcessResult, error) {
	if !req.PackPrice.IsPositive() {
		return nil, nil, domain.ErrInvalidPrice
	}
	if req.PackQty < 1 {
		return nil, nil, domain.ErrInvalidQty
	}

	var purchase *domain.Purchase
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		buyer, err := s.members.FindByChatIDForUpdate(ctx, tx, req.ChatID)
		if err != nil {
			return err
		}
		if buyer == nil {
			return memberdomain.ErrMemberNotFound
		}
		if buyer.BalanceActive.LessThan(req.PackPrice) {
			return memberdomain.ErrInsufficientBalance
		}
		buyer.BalanceActive = buyer.BalanceActive.Sub(req.PackPrice)
		if err := s.members.Save(ctx, tx, buyer); err != nil {
			return err
		}

		purchase = &domain.Purchase{
			ID:        s.genID.Generate(),
			MemberID:  buyer.ID,
			ProjectID: req.ProjectID,
			OptionID:  req.OptionID,
			PackQty:   req.PackQty,
			PackPrice: req.PackPrice,
			CreatedAt: s.clock.Now(),
		}
		if err := s.purchases.Insert(ctx, tx, purchase); err != nil {
			return err
		}
		return s.volumes.RecordPurchaseVolumes(ctx, tx, purchase)
	})
	if err != nil {
		return nil, nil, err
	}

	result, err := s.commissions.ProcessPurchase(ctx, purchase.ID)
	if err != nil {
		s.log.Error("commission processing failed, purchase recorded",
			zap.String("purchase_id", purchase.ID.String()),
			zap.Error(err))
		return purchase, nil, nil
	}
	return purchase, result, nil
}
