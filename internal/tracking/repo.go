package tracking

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tmnhat/platterly-backend/pkg/db/models"
	"github.com/tmnhat/platterly-backend/pkg/enums"
)

// Repository reads and appends the tracking history of an order.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindRestaurant(ctx context.Context, restaurantID uuid.UUID) (*models.Restaurant, error)
	FindPings(ctx context.Context, orderID uuid.UUID) ([]models.DeliveryTrackingPing, error)
	CountPingsOfKind(ctx context.Context, orderID uuid.UUID, kind enums.PingKind) (int64, error)
	CreatePing(ctx context.Context, ping *models.DeliveryTrackingPing) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a tracking repository bound to the provided DB.
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

func (r *repository) FindRestaurant(ctx context.Context, restaurantID uuid.UUID) (*models.Restaurant, error) {
	var restaurant models.Restaurant
	err := r.db.WithContext(ctx).
		Where("id = ?", restaurantID).
		First(&restaurant).Error
	if err != nil {
		return nil, err
	}
	return &restaurant, nil
}

func (r *repository) FindPings(ctx context.Context, orderID uuid.UUID) ([]models.DeliveryTrackingPing, error) {
	var pings []models.DeliveryTrackingPing
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("recorded_at ASC, created_at ASC").
		Find(&pings).Error
	if err != nil {
		return nil, err
	}
	return pings, nil
}

func (r *repository) CountPingsOfKind(ctx context.Context, orderID uuid.UUID, kind enums.PingKind) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.DeliveryTrackingPing{}).
		Where("order_id = ? AND kind = ?", orderID, kind).
		Count(&count).Error
	return count, err
}

func (r *repository) CreatePing(ctx context.Context, ping *models.DeliveryTrackingPing) error {
	return r.db.WithContext(ctx).Create(ping).Error
}
