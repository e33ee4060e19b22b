package payments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tmnhat/platterly-backend/pkg/db/models"
	"github.com/tmnhat/platterly-backend/pkg/enums"
)

func setupPaymentsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:paytest?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	ddl := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL,
  restaurant_id TEXT NOT NULL,
  courier_id TEXT,
  status TEXT NOT NULL,
  delivery_address TEXT NOT NULL DEFAULT '',
  delivery_lat REAL NOT NULL DEFAULT 0,
  delivery_lng REAL NOT NULL DEFAULT 0,
  distance_km REAL NOT NULL DEFAULT 0,
  product_subtotal INTEGER NOT NULL DEFAULT 0,
  shipping_fee INTEGER NOT NULL DEFAULT 0,
  discount_amount INTEGER NOT NULL DEFAULT 0,
  total_amount INTEGER NOT NULL DEFAULT 0,
  voucher_code TEXT,
  payment_method TEXT NOT NULL DEFAULT 'cash_on_delivery',
  payment_status TEXT NOT NULL DEFAULT 'unpaid',
  payment_ref TEXT,
  paid_at DATETIME,
  dispute_reason TEXT,
  confirmed_at DATETIME,
  claimed_at DATETIME,
  delivered_at DATETIME,
  completed_at DATETIME,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(ddl).Error)
	require.NoError(t, db.Exec("DELETE FROM orders").Error)
	return db
}

func seedPaymentOrder(t *testing.T, db *gorm.DB, status enums.PaymentStatus, ref *string, updatedAt time.Time) uuid.UUID {
	t.Helper()
	order := models.Order{
		ID:            uuid.New(),
		CustomerID:    uuid.New(),
		RestaurantID:  uuid.New(),
		Status:        enums.OrderStatusPending,
		PaymentMethod: enums.PaymentMethodGateway,
		PaymentStatus: status,
		PaymentRef:    ref,
	}
	require.NoError(t, db.Create(&order).Error)
	require.NoError(t, db.Model(&models.Order{}).
		Where("id = ?", order.ID).
		UpdateColumn("updated_at", updatedAt).Error)
	return order.ID
}

func TestFindStalePendingPaymentsFiltersAndOrders(t *testing.T) {
	db := setupPaymentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	ref := "TXN-1"
	oldest := seedPaymentOrder(t, db, enums.PaymentStatusPending, &ref, now.Add(-2*time.Hour))
	newer := seedPaymentOrder(t, db, enums.PaymentStatusPending, &ref, now.Add(-time.Hour))
	seedPaymentOrder(t, db, enums.PaymentStatusPending, nil, now.Add(-2*time.Hour))
	seedPaymentOrder(t, db, enums.PaymentStatusPaid, &ref, now.Add(-2*time.Hour))
	seedPaymentOrder(t, db, enums.PaymentStatusPending, &ref, now)

	stale, err := repo.FindStalePendingPayments(ctx, now.Add(-30*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, stale, 2)
	require.Equal(t, oldest, stale[0].ID)
	require.Equal(t, newer, stale[1].ID)
}

func TestFindStalePendingPaymentsHonorsLimit(t *testing.T) {
	db := setupPaymentsTestDB(t)
	repo := NewRepository(db)

	now := time.Now().UTC()
	ref := "TXN-2"
	for i := 0; i < 3; i++ {
		seedPaymentOrder(t, db, enums.PaymentStatusPending, &ref, now.Add(-time.Duration(i+1)*time.Hour))
	}

	stale, err := repo.FindStalePendingPayments(context.Background(), now, 2)
	require.NoError(t, err)
	require.Len(t, stale, 2)
}
