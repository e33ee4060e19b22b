package models

import (
	"time"

	"github.com/google/uuid"
)

// The catalog and cart tables below are owned by collaborating subsystems.
// This core only reads them (and clears cart rows when an order is created).

// Restaurant is the seller-side location an order is fulfilled from.
type Restaurant struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerUserID uuid.UUID `gorm:"column:seller_user_id;type:uuid;not null"`
	Name         string    `gorm:"column:name;not null"`
	Address      string    `gorm:"column:address;not null"`
	Lat          float64   `gorm:"column:lat;not null"`
	Lng          float64   `gorm:"column:lng;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

// Product is a menu item offered by a restaurant.
type Product struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RestaurantID uuid.UUID `gorm:"column:restaurant_id;type:uuid;not null"`
	Name         string    `gorm:"column:name;not null"`
	Price        int64     `gorm:"column:price;not null"`
	Available    bool      `gorm:"column:available;not null;default:true"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

// CartItem is one selected line in a customer's cart, snapshotted into an
// order by the cart resolver.
type CartItem struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Quantity  int       `gorm:"column:quantity;not null"`
	Product   *Product  `gorm:"foreignKey:ProductID"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
