package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, member *Member) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Member, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Member, error)
	FindByChatID(ctx context.Context, db *gorm.DB, chatID int64) (*Member, error)
	FindByChatIDForUpdate(ctx context.Context, db *gorm.DB, chatID int64) (*Member, error)
	ListAll(ctx context.Context, db *gorm.DB) ([]Member, error)
	ListActive(ctx context.Context, db *gorm.DB) ([]Member, error)
	ListDirectReferrals(ctx context.Context, db *gorm.DB, uplineChatID int64) ([]Member, error)
	CountDirectReferrals(ctx context.Context, db *gorm.DB, uplineChatID int64) (int64, error)
	CountActiveDirectReferrals(ctx context.Context, db *gorm.DB, uplineChatID int64) (int64, error)
	Save(ctx context.Context, db *gorm.DB, member *Member) error
}
