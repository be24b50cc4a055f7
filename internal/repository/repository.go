package repository

import (
	"context"
	"errors"
	"fmt"

	"agent-ledger/internal/apperr"

	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Transaction runs fn as one unit of work. The *Repository handed to fn is
// bound to the transaction; fn must not use the outer repository. The
// transaction commits when fn returns nil and rolls back on error or panic.
func (r *Repository) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
	return translate("transaction", err)
}

// Ping checks the underlying connection.
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// translate maps storage errors onto the apperr taxonomy so no gorm error
// shape leaves this package.
func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case apperr.KindOf(err) != nil:
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.Wrap(apperr.ErrNotFound, op, err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperr.Wrap(apperr.ErrConflict, op, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
