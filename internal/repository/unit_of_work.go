package repository

import (
	"context"

	"golang-options/pkg/utils"

	"gorm.io/gorm"
)

type UnitOfWork interface {
	// Run executes fn in one transaction bound to ctx. Repositories called
	// inside fn must receive the options passed to it. Any error or panic
	// from fn rolls everything back.
	Run(ctx context.Context, fn func(ctx context.Context, opts ...utils.DBOption) error) error
}

type unitOfWork struct {
	db *gorm.DB
}

func NewUnitOfWork(db *gorm.DB) UnitOfWork {
	return &unitOfWork{
		db: db,
	}
}

func (u *unitOfWork) Run(ctx context.Context, fn func(ctx context.Context, opts ...utils.DBOption) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, utils.WithTx(tx))
	})
}
