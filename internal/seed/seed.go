// Package seed bootstraps a founder account so a fresh deployment has a
// referral-tree root to hang registrations off.
package seed

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	memberdomain "github.com/uplinehq/upline/internal/member/domain"
	"github.com/uplinehq/upline/internal/rankplan"
	"gorm.io/gorm"
)

// EnsureFounder creates the founder member for chatID if it does not
// exist. Idempotent across restarts.
func EnsureFounder(db *gorm.DB, node *snowflake.Node, chatID int64) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if chatID == 0 {
		return nil
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing memberdomain.Member
		err := tx.Where("chat_id = ?", chatID).First(&existing).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		founder := &memberdomain.Member{
			ID:        node.Generate(),
			ChatID:    chatID,
			Rank:      rankplan.RankStart,
			IsFounder: true,
		}
		return tx.Create(founder).Error
	})
}
