package repository

import (
	"context"

	"golang-options/internal/model"
	"golang-options/pkg/utils"

	"gorm.io/gorm"
)

type PriceRejectionRepository interface {
	Create(ctx context.Context, rejection *model.PriceRejection, opts ...utils.DBOption) error
	Latest(ctx context.Context, limit int, opts ...utils.DBOption) ([]model.PriceRejection, error)
}

type priceRejectionRepository struct {
	db *gorm.DB
}

func NewPriceRejectionRepository(db *gorm.DB) PriceRejectionRepository {
	return &priceRejectionRepository{db: db}
}

func (r *priceRejectionRepository) Create(ctx context.Context, rejection *model.PriceRejection, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).Create(rejection).Error
}

func (r *priceRejectionRepository) Latest(ctx context.Context, limit int, opts ...utils.DBOption) ([]model.PriceRejection, error) {
	var rejections []model.PriceRejection
	err := utils.ApplyOptions(r.db.WithContext(ctx), opts...).
		Order("occurred_at DESC").
		Limit(limit).
		Find(&rejections).Error
	return rejections, err
}
