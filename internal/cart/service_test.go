package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tmnhat/platterly-backend/pkg/db/models"
	pkgerrors "github.com/tmnhat/platterly-backend/pkg/errors"
)

type stubRepo struct {
	items      []models.CartItem
	itemsErr   error
	restaurant *models.Restaurant
	cleared    []uuid.UUID
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepo) FindItemsByUser(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	return s.items, s.itemsErr
}

func (s *stubRepo) FindRestaurant(ctx context.Context, restaurantID uuid.UUID) (*models.Restaurant, error) {
	if s.restaurant == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.restaurant, nil
}

func (s *stubRepo) ClearForUser(ctx context.Context, userID uuid.UUID) error {
	s.cleared = append(s.cleared, userID)
	return nil
}

func cartItem(restaurantID uuid.UUID, qty int, price int64) models.CartItem {
	productID := uuid.New()
	return models.CartItem{
		ID:        uuid.New(),
		ProductID: productID,
		Quantity:  qty,
		Product: &models.Product{
			ID:           productID,
			RestaurantID: restaurantID,
			Name:         "banh mi",
			Price:        price,
			Available:    true,
		},
	}
}

func TestResolveBuildsSnapshot(t *testing.T) {
	restaurantID := uuid.New()
	repo := &stubRepo{
		items: []models.CartItem{
			cartItem(restaurantID, 2, 45000),
			cartItem(restaurantID, 1, 30000),
		},
		restaurant: &models.Restaurant{ID: restaurantID, Name: "Quan Ngon"},
	}
	svc, err := NewService(repo)
	require.NoError(t, err)

	snapshot, err := svc.Resolve(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Len(t, snapshot.Lines, 2)
	require.Equal(t, int64(120000), snapshot.ProductSubtotal)
	require.Equal(t, 3, snapshot.TotalQuantity)
	require.Equal(t, restaurantID, snapshot.Restaurant.ID)
	require.Equal(t, int64(90000), snapshot.Lines[0].LineTotal)
}

func TestResolveRejectsMultipleRestaurants(t *testing.T) {
	repo := &stubRepo{
		items: []models.CartItem{
			cartItem(uuid.New(), 1, 20000),
			cartItem(uuid.New(), 1, 20000),
		},
	}
	svc, err := NewService(repo)
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), uuid.New())
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestResolveRejectsEmptyCart(t *testing.T) {
	svc, err := NewService(&stubRepo{})
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), uuid.New())
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestResolveRejectsUnavailableProduct(t *testing.T) {
	restaurantID := uuid.New()
	item := cartItem(restaurantID, 1, 20000)
	item.Product.Available = false
	svc, err := NewService(&stubRepo{items: []models.CartItem{item}})
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), uuid.New())
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestResolveRequiresIdentity(t *testing.T) {
	svc, err := NewService(&stubRepo{})
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), uuid.Nil)
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.As(err).Code())
}

func TestClearTx(t *testing.T) {
	repo := &stubRepo{}
	svc, err := NewService(repo)
	require.NoError(t, err)

	userID := uuid.New()
	require.NoError(t, svc.ClearTx(context.Background(), nil, userID))
	require.Equal(t, []uuid.UUID{userID}, repo.cleared)
}
