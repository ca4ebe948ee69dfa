package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang-options/internal/dto"
	"golang-options/internal/model"
	"golang-options/pkg/utils"

	"gorm.io/gorm"
)

type AutomationRepository interface {
	Get(ctx context.Context, param model.GetAutomationsParam, opts ...utils.DBOption) ([]model.Automation, error)
	FindByID(ctx context.Context, id uint, opts ...utils.DBOption) (*model.Automation, error)
	Create(ctx context.Context, automation *model.Automation, opts ...utils.DBOption) error
	Update(ctx context.Context, automation *model.Automation, opts ...utils.DBOption) error
	RecordEvaluation(ctx context.Context, id uint, failures int, lastError *string, evaluatedAt time.Time, opts ...utils.DBOption) error
}

type automationRepository struct {
	db *gorm.DB
}

func NewAutomationRepository(db *gorm.DB) AutomationRepository {
	return &automationRepository{db: db}
}

func (r *automationRepository) Get(ctx context.Context, param model.GetAutomationsParam, opts ...utils.DBOption) ([]model.Automation, error) {
	var automations []model.Automation

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
	if param.IsActive != nil {
		qFilter = append(qFilter, "is_active = ?")
		qFilterParam = append(qFilterParam, *param.IsActive)
	}

	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	if len(qFilter) > 0 {
		db = db.Where(strings.Join(qFilter, " AND "), qFilterParam...)
	}
	if err := db.Order("id ASC").Find(&automations).Error; err != nil {
		return nil, err
	}
	return automations, nil
}

func (r *automationRepository) FindByID(ctx context.Context, id uint, opts ...utils.DBOption) (*model.Automation, error) {
	var automation model.Automation
	if err := utils.ApplyOptions(r.db.WithContext(ctx), opts...).First(&automation, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("automation %d: %w", id, dto.ErrNotFound)
		}
		return nil, err
	}
	return &automation, nil
}

func (r *automationRepository) Create(ctx context.Context, automation *model.Automation, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).Create(automation).Error
}

func (r *automationRepository) Update(ctx context.Context, automation *model.Automation, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).Save(automation).Error
}

func (r *automationRepository) RecordEvaluation(ctx context.Context, id uint, failures int, lastError *string, evaluatedAt time.Time, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).
		Model(&model.Automation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"consecutive_failures": failures,
			"last_error":           lastError,
			"last_evaluated_at":    evaluatedAt,
		}).Error
}
