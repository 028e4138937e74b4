// Package domain contains the member aggregate and its persistence
// contract. A member is one participant in the referral tree; the record
// is mutated continuously by the volume, rank and balance pipelines and is
// never deleted.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/uplinehq/upline/internal/rankplan"
)

// Member is one participant in the referral tree. UplineChatID points at
// the sponsor's external chat id and is nil only at a chain root.
type Member struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	ChatID       int64        `gorm:"not null;uniqueIndex"`
	UplineChatID *int64       `gorm:"index"`

	Rank         rankplan.Rank  `gorm:"type:text;not null;default:start"`
	AssignedRank *rankplan.Rank `gorm:"type:text"`

	IsActive        bool `gorm:"not null;default:false"`
	IsFounder       bool `gorm:"not null;default:false"`
	HasPioneerBonus bool `gorm:"not null;default:false"`

	PersonalVolumeTotal decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0"`
	TeamVolumeTotal     decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0"`
	MonthlyPV           decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	LastActiveMonth     *string         `gorm:"type:text"`
	RankQualifiedAt     *time.Time      `gorm:""`

	BalanceActive  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	BalancePassive decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Member) TableName() string { return "members" }

// EffectiveRank resolves the rank used for commission-percentage lookups.
// Ranks are use-it-or-lose-it per month: an inactive member degrades to the
// lowest rank regardless of what they hold. An assigned override beats the
// qualified rank while active.
func (m *Member) EffectiveRank() rankplan.Rank {
	if !m.IsActive {
		return rankplan.RankStart
	}
	if m.AssignedRank != nil {
		return rankplan.Normalize(*m.AssignedRank)
	}
	return rankplan.Normalize(m.Rank)
}
