package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	purchasedomain "github.com/uplinehq/upline/internal/purchase/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() purchasedomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, purchase *purchasedomain.Purchase) error {
	return conn.WithContext(ctx).Create(purchase).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*purchasedomain.Purchase, error) {
	var purchase purchasedomain.Purchase
	err := conn.WithContext(ctx).Where("id = ?", id).First(&purchase).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &purchase, nil
}
