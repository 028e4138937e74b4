package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	memberdomain "github.com/uplinehq/upline/internal/member/domain"
	"github.com/uplinehq/upline/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() memberdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, member *memberdomain.Member) error {
	return conn.WithContext(ctx).Create(member).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*memberdomain.Member, error) {
	return r.findOne(ctx, conn, "id = ?", id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*memberdomain.Member, error) {
	return r.findOne(ctx, db.ForUpdate(conn), "id = ?", id)
}

func (r *repo) FindByChatID(ctx context.Context, conn *gorm.DB, chatID int64) (*memberdomain.Member, error) {
	return r.findOne(ctx, conn, "chat_id = ?", chatID)
}

func (r *repo) FindByChatIDForUpdate(ctx context.Context, conn *gorm.DB, chatID int64) (*memberdomain.Member, error) {
	return r.findOne(ctx, db.ForUpdate(conn), "chat_id = ?", chatID)
}

func (r *repo) findOne(ctx context.Context, conn *gorm.DB, query string, arg any) (*memberdomain.Member, error) {
	var member memberdomain.Member
	err := conn.WithContext(ctx).Where(query, arg).First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

func (r *repo) ListAll(ctx context.Context, conn *gorm.DB) ([]memberdomain.Member, error) {
	var members []memberdomain.Member
	err := conn.WithContext(ctx).Order("id").Find(&members).Error
	return members, err
}

func (r *repo) ListActive(ctx context.Context, conn *gorm.DB) ([]memberdomain.Member, error) {
	var members []memberdomain.Member
	err := conn.WithContext(ctx).Where("is_active = ?", true).Order("id").Find(&members).Error
	return members, err
}

func (r *repo) ListDirectReferrals(ctx context.Context, conn *gorm.DB, uplineChatID int64) ([]memberdomain.Member, error) {
	var members []memberdomain.Member
	err := conn.WithContext(ctx).Where("upline_chat_id = ?", uplineChatID).Order("id").Find(&members).Error
	return members, err
}

func (r *repo) CountDirectReferrals(ctx context.Context, conn *gorm.DB, uplineChatID int64) (int64, error) {
	var count int64
	err := conn.WithContext(ctx).Model(&memberdomain.Member{}).
		Where("upline_chat_id = ?", uplineChatID).
		Count(&count).Error
	return count, err
}

func (r *repo) CountActiveDirectReferrals(ctx context.Context, conn *gorm.DB, uplineChatID int64) (int64, error) {
	var count int64
	err := conn.WithContext(ctx).Model(&memberdomain.Member{}).
		Where("upline_chat_id = ? AND is_active = ?", uplineChatID, true).
		Count(&count).Error
	return count, err
}

func (r *repo) Save(ctx context.Context, conn *gorm.DB, member *memberdomain.Member) error {
	return conn.WithContext(ctx).Save(member).Error
}
