package vouchers

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/tmnhat/platterly-backend/pkg/db/models"
)

// Repository loads vouchers by code and performs the conditional usage
// decrement inside the order-creation transaction.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByCode(ctx context.Context, code string) (*models.Voucher, error)
	// DecrementUsage consumes one use. The update is guarded so a finite
	// limit can never go negative; it reports whether a row was consumed.
	DecrementUsage(ctx context.Context, code string) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a voucher repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByCode(ctx context.Context, code string) (*models.Voucher, error) {
	var voucher models.Voucher
	err := r.db.WithContext(ctx).
		Where("code = ?", normalizeCode(code)).
		First(&voucher).Error
	if err != nil {
		return nil, err
	}
	return &voucher, nil
}

func (r *repository) DecrementUsage(ctx context.Context, code string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Voucher{}).
		Where("code = ? AND status = ? AND (usage_limit IS NULL OR usage_limit > 0)",
			normalizeCode(code), "active").
		UpdateColumn("usage_limit", gorm.Expr("CASE WHEN usage_limit IS NULL THEN NULL ELSE usage_limit - 1 END"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
