// Package domain contains the purchase record and the purchase intake
// contract. A purchase is immutable once created; creating one triggers
// the volume-update and commission pipelines exactly once.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	commissiondomain "github.com/uplinehq/upline/internal/commission/domain"
	"gorm.io/gorm"
)

// Purchase is one completed equity-pack purchase.
type Purchase struct {
	ID        snowflake.ID    `gorm:"primaryKey"`
	MemberID  snowflake.ID    `gorm:"not null;index"`
	ProjectID int64           `gorm:"not null;default:0"`
	OptionID  int64           `gorm:"not null;default:0"`
	PackQty   int             `gorm:"not null;default:1"`
	PackPrice decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CreatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Purchase) TableName() string { return "purchases" }

var (
	ErrInvalidPrice = errors.New("invalid_pack_price")
	ErrInvalidQty   = errors.New("invalid_pack_qty")
)

type CreatePurchaseRequest struct {
	ChatID    int64           `json:"chat_id"`
	ProjectID int64           `json:"project_id"`
	OptionID  int64           `json:"option_id"`
	PackQty   int             `json:"pack_qty"`
	PackPrice decimal.Decimal `json:"pack_price"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, purchase *Purchase) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Purchase, error)
}

type Service interface {
	// RecordPurchase debits the buyer, persists the purchase, rolls the
	// volumes up the chain and then runs commission processing. A
	// commission failure leaves the purchase recorded but unpaid-out.
	RecordPurchase(ctx context.Context, req CreatePurchaseRequest) (*Purchase, *commissiondomain.ProcessResult, error)
}
