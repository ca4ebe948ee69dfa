package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang-options/internal/dto"
	"golang-options/internal/model"
	"golang-options/pkg/utils"

	"gorm.io/gorm"
)

type PositionRepository interface {
	Get(ctx context.Context, param model.GetPositionsParam, opts ...utils.DBOption) ([]model.Position, error)
	FindByID(ctx context.Context, id uint, opts ...utils.DBOption) (*model.Position, error)
	Create(ctx context.Context, position *model.Position, opts ...utils.DBOption) error
	Update(ctx context.Context, position *model.Position, opts ...utils.DBOption) error
	// UpdateIfOpen persists the monitor's refresh fields only while the row
	// is not closed. It reports whether a row was updated.
	UpdateIfOpen(ctx context.Context, position *model.Position, opts ...utils.DBOption) (bool, error)
}

type positionRepository struct {
	db *gorm.DB
}

func NewPositionRepository(db *gorm.DB) PositionRepository {
	return &positionRepository{db: db}
}

func (r *positionRepository) Get(ctx context.Context, param model.GetPositionsParam, opts ...utils.DBOption) ([]model.Position, error) {
	var positions []model.Position

	qFilter := []string{}
	qFilterParam := []interface{}{}

	if len(param.IDs) > 0 {
		qFilter = append(qFilter, "id IN (?)")
		qFilterParam = append(qFilterParam, param.IDs)
	}
	if param.AccountID != nil {
		qFilter = append(qFilter, "account_id = ?")
		qFilterParam = append(qFilterParam, *param.AccountID)
	}
	if param.AutomationID != nil {
		qFilter = append(qFilter, "automation_id = ?")
		qFilterParam = append(qFilterParam, *param.AutomationID)
	}
	if len(param.Statuses) > 0 {
		qFilter = append(qFilter, "status IN (?)")
		qFilterParam = append(qFilterParam, param.Statuses)
	}
	if param.OpenOnly {
		qFilter = append(qFilter, "status <> ?")
		qFilterParam = append(qFilterParam, model.PositionStatusClosed)
	}

	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	if len(qFilter) > 0 {
		db = db.Where(strings.Join(qFilter, " AND "), qFilterParam...)
	}
	if err := db.Order("id ASC").Find(&positions).Error; err != nil {
		return nil, err
	}
	return positions, nil
}

func (r *positionRepository) FindByID(ctx context.Context, id uint, opts ...utils.DBOption) (*model.Position, error) {
	var position model.Position
	if err := utils.ApplyOptions(r.db.WithContext(ctx), opts...).First(&position, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("position %d: %w", id, dto.ErrNotFound)
		}
		return nil, err
	}
	return &position, nil
}

func (r *positionRepository) Create(ctx context.Context, position *model.Position, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).Create(position).Error
}

func (r *positionRepository) Update(ctx context.Context, position *model.Position, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).Save(position).Error
}

func (r *positionRepository) UpdateIfOpen(ctx context.Context, position *model.Position, opts ...utils.DBOption) (bool, error) {
	res := utils.ApplyOptions(r.db.WithContext(ctx), opts...).
		Model(&model.Position{}).
		Where("id = ? AND status <> ?", position.ID, model.PositionStatusClosed).
		Updates(map[string]interface{}{
			"status":            position.Status,
			"current_price":     position.CurrentPrice,
			"unrealized_pnl":    position.UnrealizedPnL,
			"last_refreshed_at": position.LastRefreshedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
