package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/uplinehq/upline/internal/rankplan"
)

var (
	ErrNotFounder  = errors.New("not_founder")
	ErrUnknownRank = errors.New("unknown_rank")
)

// QualificationResult reports the outcome of a qualification probe.
type QualificationResult struct {
	MemberID       snowflake.ID  `json:"member_id"`
	CurrentRank    rankplan.Rank `json:"current_rank"`
	QualifiedRank  rankplan.Rank `json:"qualified_rank,omitempty"`
	Qualified      bool          `json:"qualified"`
	TeamVolume     string        `json:"team_volume"`
	ActivePartners int           `json:"active_partners"`
}

// BatchResult summarizes one full-population rank sweep.
type BatchResult struct {
	Checked int `json:"checked"`
	Updated int `json:"updated"`
	Errors  int `json:"errors"`
}

// SnapshotResult summarizes one monthly stats sweep.
type SnapshotResult struct {
	Snapshots int `json:"snapshots"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

type Service interface {
	// CheckQualification probes the highest rank strictly above the
	// member's current rank whose requirements the member meets.
	CheckQualification(ctx context.Context, memberID snowflake.ID) (*QualificationResult, error)

	// PromoteIfQualified applies the qualification probe's outcome,
	// recording a history row on promotion.
	PromoteIfQualified(ctx context.Context, memberID snowflake.ID) (*QualificationResult, error)

	// AssignRank lets a founder override a member's rank out-of-band.
	AssignRank(ctx context.Context, founderID, memberID snowflake.ID, rank rankplan.Rank) error

	// ActiveRank resolves the rank a member's payouts run at right now.
	ActiveRank(ctx context.Context, memberID snowflake.ID) (rankplan.Rank, error)

	// CheckAllRanks sweeps every member through PromoteIfQualified.
	// Per-member failures are counted and the sweep continues.
	CheckAllRanks(ctx context.Context) (*BatchResult, error)

	// SaveMonthlyStats freezes one member's snapshot for the clock's
	// current month. Returns false when the snapshot already exists.
	SaveMonthlyStats(ctx context.Context, memberID snowflake.ID) (bool, error)

	// SaveAllMonthlyStats sweeps every member through SaveMonthlyStats.
	SaveAllMonthlyStats(ctx context.Context) (*SnapshotResult, error)
}
