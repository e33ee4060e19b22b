package delivery

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tmnhat/platterly-backend/pkg/db/models"
	"github.com/tmnhat/platterly-backend/pkg/enums"
)

// Repository owns the courier-assignment write path. The claim is a single
// compare-and-swap update; whoever flips the row first wins.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	// ClaimOrder assigns courierID only if the order is still ready for
	// delivery and unassigned. It reports whether this call won the row.
	ClaimOrder(ctx context.Context, orderID, courierID uuid.UUID, claimedAt time.Time) (bool, error)
	CreatePing(ctx context.Context, ping *models.DeliveryTrackingPing) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a delivery repository bound to the provided DB.
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

func (r *repository) ClaimOrder(ctx context.Context, orderID, courierID uuid.UUID, claimedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ? AND courier_id IS NULL", orderID, enums.OrderStatusReadyForDelivery).
		Updates(map[string]any{
			"courier_id": courierID,
			"status":     enums.OrderStatusInDelivery,
			"claimed_at": claimedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) CreatePing(ctx context.Context, ping *models.DeliveryTrackingPing) error {
	return r.db.WithContext(ctx).Create(ping).Error
}
