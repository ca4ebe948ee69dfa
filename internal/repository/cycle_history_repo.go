package repository

import (
	"context"
	"time"

	"golang-options/internal/model"
	"golang-options/pkg/utils"

	"gorm.io/gorm"
)

type CycleHistoryRepository interface {
	Create(ctx context.Context, history *model.CycleHistory, opts ...utils.DBOption) error
	Update(ctx context.Context, history *model.CycleHistory, opts ...utils.DBOption) error
	Latest(ctx context.Context, limit int, opts ...utils.DBOption) ([]model.CycleHistory, error)
	DeleteOlderThan(ctx context.Context, date time.Time, opts ...utils.DBOption) (int64, error)
}

type cycleHistoryRepository struct {
	db *gorm.DB
}

func NewCycleHistoryRepository(db *gorm.DB) CycleHistoryRepository {
	return &cycleHistoryRepository{db: db}
}

func (r *cycleHistoryRepository) Create(ctx context.Context, history *model.CycleHistory, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).Create(history).Error
}

func (r *cycleHistoryRepository) Update(ctx context.Context, history *model.CycleHistory, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).Updates(history).Error
}

func (r *cycleHistoryRepository) Latest(ctx context.Context, limit int, opts ...utils.DBOption) ([]model.CycleHistory, error) {
	var histories []model.CycleHistory
	err := utils.ApplyOptions(r.db.WithContext(ctx), opts...).
		Order("started_at DESC").
		Limit(limit).
		Find(&histories).Error
	return histories, err
}

func (r *cycleHistoryRepository) DeleteOlderThan(ctx context.Context, date time.Time, opts ...utils.DBOption) (int64, error) {
	res := utils.ApplyOptions(r.db.WithContext(ctx), opts...).Where("started_at < ?", date).Delete(&model.CycleHistory{})
	return res.RowsAffected, res.Error
}
