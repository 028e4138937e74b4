// Package domain holds rank progression records, monthly member snapshots
// and the rank-management contract.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/uplinehq/upline/internal/rankplan"
)

// QualificationMethod records how a rank change came about.
type QualificationMethod string

const (
	MethodNatural  QualificationMethod = "natural"
	MethodAssigned QualificationMethod = "assigned"
	// MethodPromotion is reserved for operator-driven promotions that
	// bypass the qualification probe without setting an override.
	MethodPromotion QualificationMethod = "promotion"
)

// RankHistory is one rank transition, append-only.
type RankHistory struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	MemberID snowflake.ID `gorm:"not null;index"`

	PreviousRank rankplan.Rank `gorm:"type:text;not null"`
	NewRank      rankplan.Rank `gorm:"type:text;not null"`

	TeamVolume     decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0"`
	ActivePartners int             `gorm:"not null;default:0"`

	QualificationMethod QualificationMethod `gorm:"type:text;not null"`
	AssignedBy          *snowflake.ID       `gorm:""`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (RankHistory) TableName() string { return "rank_history" }

// MonthlyStats is a member's frozen end-of-month snapshot. One row per
// member per month; the snapshot job is idempotent on the unique index.
type MonthlyStats struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	MemberID snowflake.ID `gorm:"not null;uniqueIndex:ux_monthly_stats_member_month,priority:1"`
	Month    string       `gorm:"type:text;not null;uniqueIndex:ux_monthly_stats_member_month,priority:2;index"`

	PersonalVolume decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0"`
	TeamVolume     decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0"`

	ActivePartnersCount  int `gorm:"not null;default:0"`
	DirectReferralsCount int `gorm:"not null;default:0"`
	TotalTeamSize        int `gorm:"not null;default:0"`

	ActiveRank rankplan.Rank `gorm:"type:text;not null"`
	WasActive  bool          `gorm:"not null;default:false"`

	CommissionsEarned decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	GlobalPoolEarned  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (MonthlyStats) TableName() string { return "monthly_stats" }
