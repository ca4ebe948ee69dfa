package repository

import (
	"context"
	"errors"
	"fmt"

	"golang-options/internal/dto"
	"golang-options/internal/model"
	"golang-options/pkg/utils"

	"gorm.io/gorm"
)

type AccountRepository interface {
	FindByID(ctx context.Context, id uint, opts ...utils.DBOption) (*model.Account, error)
	Create(ctx context.Context, account *model.Account, opts ...utils.DBOption) error
	Update(ctx context.Context, account *model.Account, opts ...utils.DBOption) error
}

type accountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) FindByID(ctx context.Context, id uint, opts ...utils.DBOption) (*model.Account, error) {
	var account model.Account
	if err := utils.ApplyOptions(r.db.WithContext(ctx), opts...).First(&account, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("account %d: %w", id, dto.ErrNotFound)
		}
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) Create(ctx context.Context, account *model.Account, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).Create(account).Error
}

func (r *accountRepository) Update(ctx context.Context, account *model.Account, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).Save(account).Error
}
