// Package domain defines the volume-tracking contract: personal and team
// volume aggregation up the referral chain and branch analysis for global
// pool qualification.
package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	purchasedomain "github.com/uplinehq/upline/internal/purchase/domain"
	"gorm.io/gorm"
)

// MaxUplineDepth bounds every chain walk. The referral tree is a
// parent-pointer table; a corrupted reference would otherwise loop forever.
const MaxUplineDepth = 200

// BranchInfo describes one direct-downline branch of a member.
type BranchInfo struct {
	RootMemberID snowflake.ID    `json:"root_member_id"`
	RootChatID   int64           `json:"root_chat_id"`
	Volume       decimal.Decimal `json:"volume"`
	HasDirector  bool            `json:"has_director"`
}

type Service interface {
	// RecordPurchaseVolumes adds the purchase amount to the buyer's
	// personal volumes, flips monthly activation when the threshold is
	// crossed, and rolls team volume up every ancestor. Runs inside the
	// caller's transaction.
	RecordPurchaseVolumes(ctx context.Context, tx *gorm.DB, purchase *purchasedomain.Purchase) error

	// BestBranches returns the member's top direct branches by volume,
	// flagging whether each contains a Director anywhere in its subtree.
	BestBranches(ctx context.Context, memberID snowflake.ID, count int) ([]BranchInfo, error)

	// ResetMonthlyVolumes zeroes every member's monthly PV and clears
	// activity. Runs on the first day of the month.
	ResetMonthlyVolumes(ctx context.Context) (int64, error)
}
