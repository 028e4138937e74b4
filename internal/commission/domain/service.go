package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/uplinehq/upline/internal/rankplan"
)

var ErrPurchaseNotFound = errors.New("purchase_not_found")

// CommissionEntry is one payout computed for a purchase.
type CommissionEntry struct {
	MemberID           snowflake.ID    `json:"member_id"`
	Level              int             `json:"level"`
	Rank               rankplan.Rank   `json:"rank"`
	Rate               decimal.Decimal `json:"rate"`
	Amount             decimal.Decimal `json:"amount"`
	CompressionApplied bool            `json:"compression_applied"`
	PioneerBonus       decimal.Decimal `json:"pioneer_bonus"`
	Type               CommissionType  `json:"type"`
}

// ProcessResult summarizes one purchase's commission run for reporting.
type ProcessResult struct {
	PurchaseID       snowflake.ID      `json:"purchase_id"`
	AlreadyProcessed bool              `json:"already_processed"`
	Commissions      []CommissionEntry `json:"commissions"`
	TotalDistributed decimal.Decimal   `json:"total_distributed"`
}

type Service interface {
	// ProcessPurchase computes and persists every payout a completed
	// purchase generates. Idempotent per purchase; all-or-nothing on
	// persistence errors.
	ProcessPurchase(ctx context.Context, purchaseID snowflake.ID) (*ProcessResult, error)
}
