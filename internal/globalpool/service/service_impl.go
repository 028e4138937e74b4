package service

import (
	"context"
	"encoding/json"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/uplinehq/upline/internal/clock"
	commissiondomain "github.com/uplinehq/upline/internal/commission/domain"
	"github.com/uplinehq/upline/internal/events"
	"github.com/uplinehq/upline/internal/globalpool/domain"
	memberdomain "github.com/uplinehq/upline/internal/member/domain"
	"github.com/uplinehq/upline/internal/observability/metrics"
	"github.com/uplinehq/upline/internal/rankplan"
	volumedomain "github.com/uplinehq/upline/internal/volume/domain"
	"github.com/uplinehq/upline/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// poolBranchCount is how many distinct Director branches pool
// qualification requires.
const poolBranchCount = 2

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Members memberdomain.Repository
	Volumes volumedomain.Service
	Bus     *events.Bus `optional:"true"`
}

type poolService struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	members memberdomain.Repository
	volumes volumedomain.Service
	bus     *events.Bus
	metrics *metrics.EngineMetrics
}

func New(p Params) domain.Service {
	return &poolService{
		db:      p.DB,
		log:     p.Log.Named("globalpool"),
		genID:   p.GenID,
		clock:   p.Clock,
		members: p.Members,
		volumes: p.Volumes,
		bus:     p.Bus,
		metrics: metrics.Engine(),
	}
}

func (s *poolService) CalculateMonthlyPool(ctx context.Context) (*domain.GlobalPool, error) {
	dbx := s.db.WithContext(ctx)
	month := clock.Month(s.clock.Now())

	existing, err := s.findByMonth(dbx, month)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrPoolAlreadyCalculated
	}

	var totalVolume decimal.Decimal
	err = dbx.Model(&memberdomain.Member{}).
		Select("COALESCE(SUM(monthly_pv), 0)").
		Where("is_active = ?", true).
		Scan(&totalVolume).Error
	if err != nil {
		return nil, err
	}
	poolSize := totalVolume.Mul(rankplan.GlobalPoolPercentage).Round(2)

	qualified, err := s.qualifiedMembers(ctx, dbx)
	if err != nil {
		return nil, err
	}

	perMember := decimal.Zero
	if len(qualified) > 0 {
		perMember = poolSize.Div(decimal.NewFromInt(int64(len(qualified)))).Round(2)
	}
	ids, err := json.Marshal(qualified)
	if err != nil {
		return nil, err
	}

	pool := &domain.GlobalPool{
		ID:                 s.genID.Generate(),
		Month:              month,
		TotalCompanyVolume: totalVolume,
		PoolPercentage:     rankplan.GlobalPoolPercentage,
		PoolSize:           poolSize,
		QualifiedCount:     len(qualified),
		PerMemberAmount:    perMember,
		QualifiedMemberIDs: ids,
		Status:             domain.PoolStatusCalculated,
		CreatedAt:          s.clock.Now(),
	}
	if err := dbx.Create(pool).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrPoolAlreadyCalculated
		}
		return nil, err
	}

	s.log.Info("global pool calculated",
		zap.String("month", month),
		zap.String("pool_size", poolSize.String()),
		zap.Int("qualified", len(qualified)))
	if s.bus != nil {
		s.bus.Publish(ctx, events.Event{
			Type: events.EventPoolCalculated,
			Payload: map[string]any{
				"month":     month,
				"pool_size": poolSize.String(),
				"qualified": len(qualified),
			},
		})
	}
	return pool, nil
}

func (s *poolService) DistributeGlobalPool(ctx context.Context) (*domain.DistributionResult, error) {
	month := clock.Month(s.clock.Now())
	var result *domain.DistributionResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pool, err := s.findByMonthForUpdate(tx, month)
		if err != nil {
			return err
		}
		if pool == nil {
			return domain.ErrPoolNotCalculated
		}
		if pool.Status != domain.PoolStatusCalculated {
			return domain.ErrPoolAlreadyDistributed
		}

		now := s.clock.Now()
		result = &domain.DistributionResult{
			Month:            month,
			PerMemberAmount:  pool.PerMemberAmount,
			TotalDistributed: decimal.Zero,
		}

		if pool.QualifiedCount > 0 {
			var memberIDs []snowflake.ID
			if err := json.Unmarshal(pool.QualifiedMemberIDs, &memberIDs); err != nil {
				return err
			}
			for _, id := range memberIDs {
				member, err := s.members.FindByIDForUpdate(ctx, tx, id)
				if err != nil {
					return err
				}
				if member == nil {
					s.log.Error("pool qualifier vanished",
						zap.String("member_id", id.String()),
						zap.String("month", month))
					continue
				}

				row := &commissiondomain.Bonus{
					ID:             s.genID.Generate(),
					MemberID:       member.ID,
					CommissionType: commissiondomain.CommissionTypeGlobalPool,
					FromRank:       rankplan.Normalize(member.Rank),
					Rate:           pool.PoolPercentage,
					Amount:         pool.PerMemberAmount,
					Note:           "global pool share " + month,
					CreatedAt:      now,
				}
				if err := tx.Create(row).Error; err != nil {
					return err
				}
				member.BalancePassive = member.BalancePassive.Add(pool.PerMemberAmount)
				if err := s.members.Save(ctx, tx, member); err != nil {
					return err
				}
				result.Recipients++
				result.TotalDistributed = result.TotalDistributed.Add(pool.PerMemberAmount)
			}
		}

		pool.Status = domain.PoolStatusDistributed
		pool.DistributedAt = &now
		return tx.Save(pool).Error
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordBonus(string(commissiondomain.CommissionTypeGlobalPool), result.TotalDistributed.InexactFloat64())
	s.log.Info("global pool distributed",
		zap.String("month", month),
		zap.Int("recipients", result.Recipients),
		zap.String("total", result.TotalDistributed.String()))
	if s.bus != nil {
		s.bus.Publish(ctx, events.Event{
			Type: events.EventPoolDistributed,
			Payload: map[string]any{
				"month":      month,
				"recipients": result.Recipients,
				"total":      result.TotalDistributed.String(),
			},
		})
	}
	return result, nil
}

func (s *poolService) PoolHistory(ctx context.Context, limit int) ([]domain.GlobalPool, error) {
	if limit <= 0 {
		limit = 12
	}
	var pools []domain.GlobalPool
	err := s.db.WithContext(ctx).
		Order("month desc").
		Limit(limit).
		Find(&pools).Error
	if err != nil {
		return nil, err
	}
	return pools, nil
}

func (s *poolService) CheckMemberQualification(ctx context.Context, memberID snowflake.ID) (*domain.QualificationCheck, error) {
	member, err := s.members.FindByID(ctx, s.db.WithContext(ctx), memberID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, memberdomain.ErrMemberNotFound
	}

	check := &domain.QualificationCheck{MemberID: memberID}
	if !member.IsActive {
		check.Reason = "member is not active this month"
		return check, nil
	}

	branches, err := s.volumes.BestBranches(ctx, memberID, poolBranchCount)
	if err != nil {
		return nil, err
	}
	if len(branches) >= 1 {
		check.DirectorBranch1 = branches[0].HasDirector
	}
	if len(branches) >= 2 {
		check.DirectorBranch2 = branches[1].HasDirector
	}

	switch {
	case len(branches) < poolBranchCount:
		check.Reason = "fewer than two downline branches"
	case !check.DirectorBranch1 || !check.DirectorBranch2:
		check.Reason = "two strongest branches must each contain a director"
	default:
		check.Qualified = true
	}
	return check, nil
}

func (s *poolService) qualifiedMembers(ctx context.Context, dbx *gorm.DB) ([]snowflake.ID, error) {
	active, err := s.members.ListActive(ctx, dbx)
	if err != nil {
		return nil, err
	}
	var qualified []snowflake.ID
	for i := range active {
		check, err := s.CheckMemberQualification(ctx, active[i].ID)
		if err != nil {
			s.log.Error("pool qualification check failed",
				zap.String("member_id", active[i].ID.String()),
				zap.Error(err))
			continue
		}
		if check.Qualified {
			qualified = append(qualified, active[i].ID)
		}
	}
	return qualified, nil
}

func (s *poolService) findByMonth(dbx *gorm.DB, month string) (*domain.GlobalPool, error) {
	var pool domain.GlobalPool
	err := dbx.Where("month = ?", month).First(&pool).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &pool, nil
}

func (s *poolService) findByMonthForUpdate(tx *gorm.DB, month string) (*domain.GlobalPool, error) {
	var pool domain.GlobalPool
	err := db.ForUpdate(tx).Where("month = ?", month).First(&pool).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &pool, nil
}
