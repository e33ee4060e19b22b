package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tmnhat/platterly-backend/pkg/enums"
)

// VoucherCondition is one declared rule evaluated against order context.
// Conditions are ordered and must all hold for the voucher to apply.
type VoucherCondition struct {
	Field    string                  `json:"field"`
	Operator enums.ConditionOperator `json:"operator"`
	Value    string                  `json:"value"`
}

// Voucher is a redeemable discount code. UsageLimit == nil means unlimited;
// a finite limit is decremented atomically in the order-creation transaction.
type Voucher struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code              string              `gorm:"column:code;uniqueIndex;not null"`
	Type              enums.VoucherType   `gorm:"column:type;type:voucher_type;not null"`
	Status            enums.VoucherStatus `gorm:"column:status;type:voucher_status;not null;default:'active'"`
	DiscountAmount    int64               `gorm:"column:discount_amount;not null;default:0"`
	PercentOff        int                 `gorm:"column:percent_off;not null;default:0"`
	MinimumOrderAmount int64              `gorm:"column:minimum_order_amount;not null;default:0"`
	MaximumDiscount   *int64              `gorm:"column:maximum_discount"`
	UsageLimit        *int                `gorm:"column:usage_limit"`
	ExpiresAt         time.Time           `gorm:"column:expires_at;not null"`
	RestaurantID      *uuid.UUID          `gorm:"column:restaurant_id;type:uuid"`
	ProductID         *uuid.UUID          `gorm:"column:product_id;type:uuid"`
	UserID            *uuid.UUID          `gorm:"column:user_id;type:uuid"`
	Conditions        []VoucherCondition  `gorm:"column:conditions;type:jsonb;serializer:json"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
