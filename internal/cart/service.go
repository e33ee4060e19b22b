// Package cart resolves a customer's cart into the immutable snapshot an
// order is created from. The snapshot freezes product names and prices at
// resolution time so later catalog edits cannot change a placed order.
package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tmnhat/platterly-backend/pkg/db/models"
	pkgerrors "github.com/tmnhat/platterly-backend/pkg/errors"
)

// SnapshotLine is one frozen basket line.
type SnapshotLine struct {
	ProductID   uuid.UUID
	ProductName string
	Quantity    int
	UnitPrice   int64
	LineTotal   int64
}

// Snapshot is the resolved cart: all lines belong to a single restaurant.
type Snapshot struct {
	Restaurant      *models.Restaurant
	Lines           []SnapshotLine
	ProductSubtotal int64
	TotalQuantity   int
}

type Service interface {
	Resolve(ctx context.Context, userID uuid.UUID) (*Snapshot, error)
	ResolveTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*Snapshot, error)
	ClearTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error
}

type service struct {
	repo Repository
}

// NewService builds the cart snapshot resolver.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Resolve(ctx context.Context, userID uuid.UUID) (*Snapshot, error) {
	return s.resolve(ctx, s.repo, userID)
}

// ResolveTx resolves inside the caller's transaction so the snapshot and
// the order insert see the same cart rows.
func (s *service) ResolveTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*Snapshot, error) {
	return s.resolve(ctx, s.repo.WithTx(tx), userID)
}

func (s *service) ClearTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
	if err := s.repo.WithTx(tx).ClearForUser(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

func (s *service) resolve(ctx context.Context, repo Repository, userID uuid.UUID) (*Snapshot, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	items, err := repo.FindItemsByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart items")
	}
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	var restaurantID uuid.UUID
	snapshot := &Snapshot{Lines: make([]SnapshotLine, 0, len(items))}
	for _, item := range items {
		if item.Product == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart references a product that no longer exists").
				WithDetails(map[string]any{"productId": item.ProductID})
		}
		if !item.Product.Available {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is no longer available").
				WithDetails(map[string]any{"productId": item.ProductID, "productName": item.Product.Name})
		}
		if restaurantID == uuid.Nil {
			restaurantID = item.Product.RestaurantID
		} else if item.Product.RestaurantID != restaurantID {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart spans multiple restaurants").
				WithDetails(map[string]any{
					"restaurantIds": []string{restaurantID.String(), item.Product.RestaurantID.String()},
				})
		}

		lineTotal := int64(item.Quantity) * item.Product.Price
		snapshot.Lines = append(snapshot.Lines, SnapshotLine{
			ProductID:   item.ProductID,
			ProductName: item.Product.Name,
			Quantity:    item.Quantity,
			UnitPrice:   item.Product.Price,
			LineTotal:   lineTotal,
		})
		snapshot.ProductSubtotal += lineTotal
		snapshot.TotalQuantity += item.Quantity
	}

	restaurant, err := repo.FindRestaurant(ctx, restaurantID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "restaurant no longer exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load restaurant")
	}
	snapshot.Restaurant = restaurant
	return snapshot, nil
}
