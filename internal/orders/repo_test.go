package orders

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

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:orderstest?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	pings := `
CREATE TABLE IF NOT EXISTS delivery_tracking_pings (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  courier_id TEXT NOT NULL,
  lat REAL NOT NULL,
  lng REAL NOT NULL,
  kind TEXT NOT NULL,
  recorded_at DATETIME NOT NULL,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(pings).Error)

	t.Cleanup(func() {
		db.Exec("DELETE FROM delivery_tracking_pings")
	})
	return db
}

func TestRecordDeliveredPingWritesOnce(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	orderID := uuid.New()
	courierID := uuid.New()
	ping := func() *models.DeliveryTrackingPing {
		return &models.DeliveryTrackingPing{
			ID:         uuid.New(),
			OrderID:    orderID,
			CourierID:  courierID,
			Lat:        10.77,
			Lng:        106.69,
			Kind:       enums.PingKindDelivered,
			RecordedAt: time.Now(),
		}
	}

	written, err := repo.RecordDeliveredPing(context.Background(), ping())
	require.NoError(t, err)
	require.True(t, written)

	written, err = repo.RecordDeliveredPing(context.Background(), ping())
	require.NoError(t, err)
	require.False(t, written)

	var count int64
	err = db.Model(&models.DeliveryTrackingPing{}).
		Where("order_id = ? AND kind = ?", orderID, enums.PingKindDelivered).
		Count(&count).Error
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestRecordDeliveredPingIgnoresOtherKinds(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	orderID := uuid.New()
	require.NoError(t, db.Create(&models.DeliveryTrackingPing{
		ID:         uuid.New(),
		OrderID:    orderID,
		CourierID:  uuid.New(),
		Lat:        10.80,
		Lng:        106.72,
		Kind:       enums.PingKindStart,
		RecordedAt: time.Now(),
	}).Error)

	written, err := repo.RecordDeliveredPing(context.Background(), &models.DeliveryTrackingPing{
		ID:         uuid.New(),
		OrderID:    orderID,
		CourierID:  uuid.New(),
		Lat:        10.77,
		Lng:        106.69,
		Kind:       enums.PingKindDelivered,
		RecordedAt: time.Now(),
	})
	require.NoError(t, err)
	require.True(t, written)
}
