// Package vouchers validates discount codes against an order context and
// computes the discount they grant. Validation runs as an ordered chain of
// checks; the first failing check rejects the code with its own message so
// the customer knows exactly why it did not apply.
package vouchers

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tmnhat/platterly-backend/pkg/db/models"
	"github.com/tmnhat/platterly-backend/pkg/enums"
	pkgerrors "github.com/tmnhat/platterly-backend/pkg/errors"
)

// OrderContext is what the validator knows about the order being priced.
type OrderContext struct {
	CustomerID      uuid.UUID
	RestaurantID    uuid.UUID
	ProductIDs      []uuid.UUID
	ProductSubtotal int64
	TotalQuantity   int
	PaymentMethod   enums.PaymentMethod
}

// Applied is the outcome of a successful validation.
type Applied struct {
	Voucher        *models.Voucher
	DiscountAmount int64
}

type Service interface {
	// Validate runs the full check chain and computes the discount.
	// It never mutates the voucher.
	Validate(ctx context.Context, code string, order OrderContext) (*Applied, error)
	// RedeemTx consumes one use inside the caller's transaction. A false
	// return means a concurrent order exhausted the limit first.
	RedeemTx(ctx context.Context, tx *gorm.DB, code string) error
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds the voucher validator.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("voucher repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) Validate(ctx context.Context, code string, order OrderContext) (*Applied, error) {
	voucher, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, rejection("voucher code does not exist")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load voucher")
	}

	// Checks run in declared order and short-circuit on the first failure.
	checks := []func(*models.Voucher, OrderContext) error{
		s.checkActive,
		s.checkExpiry,
		s.checkUsageLimit,
		s.checkMinimumOrder,
		s.checkScope,
		s.checkConditions,
	}
	for _, check := range checks {
		if err := check(voucher, order); err != nil {
			return nil, err
		}
	}

	return &Applied{
		Voucher:        voucher,
		DiscountAmount: computeDiscount(voucher, order.ProductSubtotal),
	}, nil
}

func (s *service) RedeemTx(ctx context.Context, tx *gorm.DB, code string) error {
	consumed, err := s.repo.WithTx(tx).DecrementUsage(ctx, code)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redeem voucher")
	}
	if !consumed {
		return pkgerrors.New(pkgerrors.CodeConflict, "voucher usage limit has been reached")
	}
	return nil
}

func (s *service) checkActive(v *models.Voucher, _ OrderContext) error {
	if v.Status != enums.VoucherStatusActive {
		return rejection("voucher is not active")
	}
	return nil
}

func (s *service) checkExpiry(v *models.Voucher, _ OrderContext) error {
	if !s.now().Before(v.ExpiresAt) {
		return rejection("voucher has expired")
	}
	return nil
}

func (s *service) checkUsageLimit(v *models.Voucher, _ OrderContext) error {
	if v.UsageLimit != nil && *v.UsageLimit <= 0 {
		return rejection("voucher usage limit has been reached")
	}
	return nil
}

func (s *service) checkMinimumOrder(v *models.Voucher, order OrderContext) error {
	if order.ProductSubtotal < v.MinimumOrderAmount {
		return rejection(fmt.Sprintf("order subtotal is below the voucher minimum of %d", v.MinimumOrderAmount))
	}
	return nil
}

func (s *service) checkScope(v *models.Voucher, order OrderContext) error {
	if v.RestaurantID != nil && *v.RestaurantID != order.RestaurantID {
		return rejection("voucher is limited to another restaurant")
	}
	if v.ProductID != nil && !containsProduct(order.ProductIDs, *v.ProductID) {
		return rejection("voucher requires a product that is not in the order")
	}
	if v.UserID != nil && *v.UserID != order.CustomerID {
		return rejection("voucher is reserved for another customer")
	}
	return nil
}

func (s *service) checkConditions(v *models.Voucher, order OrderContext) error {
	for _, condition := range v.Conditions {
		ok, err := evaluateCondition(condition, order)
		if err != nil {
			return err
		}
		if !ok {
			return rejection("voucher conditions are not met")
		}
	}
	return nil
}

func computeDiscount(v *models.Voucher, subtotal int64) int64 {
	var discount int64
	switch v.Type {
	case enums.VoucherTypePercentage:
		discount = decimal.NewFromInt(subtotal).
			Mul(decimal.NewFromInt(int64(v.PercentOff))).
			Div(decimal.NewFromInt(100)).
			Floor().IntPart()
	default:
		discount = v.DiscountAmount
	}
	if v.MaximumDiscount != nil && discount > *v.MaximumDiscount {
		discount = *v.MaximumDiscount
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}

func evaluateCondition(condition models.VoucherCondition, order OrderContext) (bool, error) {
	var actual int64
	switch condition.Field {
	case "subtotal":
		actual = order.ProductSubtotal
	case "total_quantity":
		actual = int64(order.TotalQuantity)
	case "payment_method":
		// String equality only for payment method conditions.
		switch condition.Operator {
		case enums.ConditionOpEq:
			return string(order.PaymentMethod) == condition.Value, nil
		case enums.ConditionOpNeq:
			return string(order.PaymentMethod) != condition.Value, nil
		default:
			return false, rejection("voucher condition uses an unsupported operator")
		}
	default:
		return false, rejection("voucher condition references an unknown field")
	}

	expected, err := strconv.ParseInt(condition.Value, 10, 64)
	if err != nil {
		return false, rejection("voucher condition value is malformed")
	}

	switch condition.Operator {
	case enums.ConditionOpEq:
		return actual == expected, nil
	case enums.ConditionOpNeq:
		return actual != expected, nil
	case enums.ConditionOpGt:
		return actual > expected, nil
	case enums.ConditionOpGte:
		return actual >= expected, nil
	case enums.ConditionOpLt:
		return actual < expected, nil
	case enums.ConditionOpLte:
		return actual <= expected, nil
	default:
		return false, rejection("voucher condition uses an unsupported operator")
	}
}

func containsProduct(ids []uuid.UUID, target uuid.UUID) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}

func rejection(message string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, message)
}
