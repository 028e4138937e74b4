package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/uplinehq/upline/internal/clock"
	commissiondomain "github.com/uplinehq/upline/internal/commission/domain"
	"github.com/uplinehq/upline/internal/member/domain"
	"github.com/uplinehq/upline/internal/rankplan"
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
	Members domain.Repository
}

type memberService struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	members domain.Repository
}

func New(p Params) domain.Service {
	return &memberService{
		db:      p.DB,
		log:     p.Log.Named("member"),
		genID:   p.GenID,
		clock:   p.Clock,
		members: p.Members,
	}
}

func (s *memberService) Register(ctx context.Context, req domain.RegisterRequest) (*domain.Member, error) {
	var member *domain.Member
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.members.FindByChatID(ctx, tx, req.ChatID)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrChatIDTaken
		}
		if req.UplineChatID != nil {
			upline, err := s.members.FindByChatID(ctx, tx, *req.UplineChatID)
			if err != nil {
				return err
			}
			if upline == nil {
				return domain.ErrUplineNotFound
			}
		}
		member = &domain.Member{
			ID:           s.genID.Generate(),
			ChatID:       req.ChatID,
			UplineChatID: req.UplineChatID,
			Rank:         rankplan.RankStart,
			CreatedAt:    s.clock.Now(),
			UpdatedAt:    s.clock.Now(),
		}
		return s.members.Insert(ctx, tx, member)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("member registered",
		zap.String("member_id", member.ID.String()),
		zap.Int64("chat_id", member.ChatID))
	return member, nil
}

func (s *memberService) GetByID(ctx context.Context, id snowflake.ID) (*domain.Member, error) {
	member, err := s.members.FindByID(ctx, s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, domain.ErrMemberNotFound
	}
	return member, nil
}

func (s *memberService) GetByChatID(ctx context.Context, chatID int64) (*domain.Member, error) {
	member, err := s.members.FindByChatID(ctx, s.db.WithContext(ctx), chatID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, domain.ErrMemberNotFound
	}
	return member, nil
}

// TransferPassiveToActive moves earned commissions into spendable balance.
// The incentive for reinvesting is a flat bonus on top of the moved amount,
// credited straight to the active balance and recorded in the ledger.
func (s *memberService) TransferPassiveToActive(ctx context.Context, memberID snowflake.ID, amount decimal.Decimal) (*domain.TransferResult, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	var result *domain.TransferResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		member, err := s.members.FindByIDForUpdate(ctx, tx, memberID)
		if err != nil {
			return err
		}
		if member == nil {
			return domain.ErrMemberNotFound
		}
		if member.BalancePassive.LessThan(amount) {
			return domain.ErrInsufficientBalance
		}

		bonus := amount.Mul(rankplan.TransferBonusPercentage).Round(2)
		member.BalancePassive = member.BalancePassive.Sub(amount)
		member.BalanceActive = member.BalanceActive.Add(amount).Add(bonus)
		if err := s.members.Save(ctx, tx, member); err != nil {
			return err
		}

		row := &commissiondomain.Bonus{
			ID:             s.genID.Generate(),
			MemberID:       member.ID,
			CommissionType: commissiondomain.CommissionTypeTransfer,
			FromRank:       rankplan.Normalize(member.Rank),
			Rate:           rankplan.TransferBonusPercentage,
			Amount:         bonus,
			Note:           "transfer bonus",
			CreatedAt:      s.clock.Now(),
		}
		if err := tx.Create(row).Error; err != nil {
			return err
		}

		result = &domain.TransferResult{
			MemberID:    member.ID,
			Amount:      amount,
			BonusAmount: bonus,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("passive balance transferred",
		zap.String("member_id", memberID.String()),
		zap.String("amount", amount.String()),
		zap.String("bonus", result.BonusAmount.String()))
	return result, nil
}
