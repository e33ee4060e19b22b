package notifications

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

func setupNotificationsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:notiftest?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	ddl := `
CREATE TABLE IF NOT EXISTS notifications (
  id TEXT PRIMARY KEY,
  recipient_user_id TEXT NOT NULL,
  order_id TEXT,
  type TEXT NOT NULL,
  title TEXT NOT NULL,
  message TEXT NOT NULL,
  read_at DATETIME,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(ddl).Error)
	require.NoError(t, db.Exec("DELETE FROM notifications").Error)
	return db
}

func seedNotification(t *testing.T, db *gorm.DB, createdAt time.Time, readAt *time.Time) uuid.UUID {
	t.Helper()
	n := models.Notification{
		ID:              uuid.New(),
		RecipientUserID: uuid.New(),
		Type:            enums.NotificationOrderConfirmed,
		Title:           "t",
		Message:         "m",
		ReadAt:          readAt,
		CreatedAt:       createdAt,
	}
	require.NoError(t, db.Create(&n).Error)
	return n.ID
}

func TestDeleteOlderThanOnlyPrunesReadRows(t *testing.T) {
	db := setupNotificationsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	old := now.Add(-60 * 24 * time.Hour)
	read := old.Add(time.Hour)

	staleRead := seedNotification(t, db, old, &read)
	staleUnread := seedNotification(t, db, old, nil)
	freshRead := seedNotification(t, db, now.Add(-time.Hour), &now)

	deleted, err := repo.DeleteOlderThan(ctx, db, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)

	var remaining []models.Notification
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 2)
	ids := []uuid.UUID{remaining[0].ID, remaining[1].ID}
	require.NotContains(t, ids, staleRead)
	require.Contains(t, ids, staleUnread)
	require.Contains(t, ids, freshRead)
}

func TestDeleteOlderThanFallsBackToBoundDB(t *testing.T) {
	db := setupNotificationsTestDB(t)
	repo := NewRepository(db)

	now := time.Now().UTC()
	read := now.Add(-40 * 24 * time.Hour)
	seedNotification(t, db, now.Add(-40*24*time.Hour), &read)

	deleted, err := repo.DeleteOlderThan(context.Background(), nil, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)
}
