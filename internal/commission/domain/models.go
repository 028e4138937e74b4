// Package domain defines the bonus ledger and the commission computation
// contract. Bonus rows are append-only: one row per payee per
// purchase-triggered payout, never updated or deleted.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/uplinehq/upline/internal/rankplan"
)

// CommissionType tags the origin of a bonus ledger row.
type CommissionType string

const (
	CommissionTypeDifferential CommissionType = "differential"
	CommissionTypeReferral     CommissionType = "referral"
	CommissionTypeGlobalPool   CommissionType = "global_pool"
	CommissionTypeTransfer     CommissionType = "transfer"
)

// Bonus is one ledger entry. PurchaseID and DownlineID are nil for
// global-pool and transfer payouts, which derive from no single purchase.
// The unique index makes commission processing idempotent per purchase.
type Bonus struct {
	ID         snowflake.ID  `gorm:"primaryKey"`
	MemberID   snowflake.ID  `gorm:"not null;index;uniqueIndex:ux_bonuses_purchase_member_type,priority:2"`
	PurchaseID *snowflake.ID `gorm:"uniqueIndex:ux_bonuses_purchase_member_type,priority:1"`
	DownlineID *snowflake.ID `gorm:"index"`

	CommissionType CommissionType `gorm:"type:text;not null;uniqueIndex:ux_bonuses_purchase_member_type,priority:3"`
	UplineLevel    int            `gorm:"not null;default:0"`
	FromRank       rankplan.Rank  `gorm:"type:text"`

	Rate               decimal.Decimal `gorm:"type:decimal(6,4);not null"`
	Amount             decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CompressionApplied bool            `gorm:"not null;default:false"`

	Note      string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Bonus) TableName() string { return "bonuses" }
