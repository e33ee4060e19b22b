package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tmnhat/platterly-backend/pkg/db/models"
	"github.com/tmnhat/platterly-backend/pkg/enums"
)

// Repository owns the payment columns of an order. Status moves are
// conditional updates so a replayed callback can never overwrite a
// settled payment.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	// MarkPending flips unpaid/failed to pending when a payment URL is
	// issued. Reports whether the row changed.
	MarkPending(ctx context.Context, orderID uuid.UUID) (bool, error)
	// SettlePayment applies the callback outcome only while the payment
	// is not already in a terminal paid state.
	SettlePayment(ctx context.Context, orderID uuid.UUID, updates map[string]any) (bool, error)
	// FindStalePendingPayments lists orders whose payment has sat in
	// pending since before the cutoff and carries a gateway reference.
	FindStalePendingPayments(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) MarkPending(ctx context.Context, orderID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND payment_status IN ?", orderID,
			[]enums.PaymentStatus{enums.PaymentStatusUnpaid, enums.PaymentStatusFailed}).
		UpdateColumn("payment_status", enums.PaymentStatusPending)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) FindStalePendingPayments(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("payment_status = ? AND payment_ref IS NOT NULL AND updated_at < ?",
			enums.PaymentStatusPending, cutoff).
		Order("updated_at ASC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) SettlePayment(ctx context.Context, orderID uuid.UUID, updates map[string]any) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND payment_status <> ?", orderID, enums.PaymentStatusPaid).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
