// Package domain defines the monthly global pool record and its
// two-phase lifecycle: a pool is calculated once per month, then
// distributed once. The month column's unique index is the guard.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type PoolStatus string

const (
	PoolStatusCalculated  PoolStatus = "calculated"
	PoolStatusDistributed PoolStatus = "distributed"
)

var (
	ErrPoolAlreadyCalculated  = errors.New("pool_already_calculated")
	ErrPoolNotCalculated      = errors.New("pool_not_calculated")
	ErrPoolAlreadyDistributed = errors.New("pool_already_distributed")
)

// GlobalPool is one month's pool. QualifiedMemberIDs freezes the qualifier
// set at calculation time so distribution pays exactly that set even if
// ranks shift in between.
type GlobalPool struct {
	ID    snowflake.ID `gorm:"primaryKey"`
	Month string       `gorm:"type:text;not null;uniqueIndex"`

	TotalCompanyVolume decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0"`
	PoolPercentage     decimal.Decimal `gorm:"type:decimal(5,4);not null"`
	PoolSize           decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`

	QualifiedCount     int             `gorm:"not null;default:0"`
	PerMemberAmount    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	QualifiedMemberIDs datatypes.JSON  `gorm:"type:json"`

	Status        PoolStatus `gorm:"type:text;not null;default:calculated"`
	DistributedAt *time.Time `gorm:""`
	CreatedAt     time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (GlobalPool) TableName() string { return "global_pools" }

// QualificationCheck explains whether a member currently qualifies for the
// pool and which requirement blocks them if not.
type QualificationCheck struct {
	MemberID        snowflake.ID `json:"member_id"`
	Qualified       bool         `json:"qualified"`
	DirectorBranch1 bool         `json:"director_branch_1"`
	DirectorBranch2 bool         `json:"director_branch_2"`
	Reason          string       `json:"reason,omitempty"`
}

// DistributionResult summarizes one distribution run.
type DistributionResult struct {
	Month            string          `json:"month"`
	Recipients       int             `json:"recipients"`
	PerMemberAmount  decimal.Decimal `json:"per_member_amount"`
	TotalDistributed decimal.Decimal `json:"total_distributed"`
}

type Service interface {
	// CalculateMonthlyPool freezes this month's pool: company volume,
	// pool size and the qualifier set. Fails if already calculated.
	CalculateMonthlyPool(ctx context.Context) (*GlobalPool, error)

	// DistributeGlobalPool pays the frozen qualifier set and marks the
	// pool distributed. Requires a calculated, undistributed pool.
	DistributeGlobalPool(ctx context.Context) (*DistributionResult, error)

	// PoolHistory returns the most recent pools, newest first.
	PoolHistory(ctx context.Context, limit int) ([]GlobalPool, error)

	// CheckMemberQualification probes one member's pool eligibility.
	CheckMemberQualification(ctx context.Context, memberID snowflake.ID) (*QualificationCheck, error)
}
