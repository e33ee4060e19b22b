// Package pricing computes shipping fees, quantity surcharges and order
// totals. All amounts are VND and all computation is deterministic so
// quotes can be recomputed for audit.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tmnhat/platterly-backend/pkg/config"
	"github.com/tmnhat/platterly-backend/pkg/errors"
)

// Line is the quantity/price pair pricing needs from an order line.
type Line struct {
	ProductID string
	Quantity  int
	UnitPrice int64
}

// Quote is the full price breakdown for an order.
type Quote struct {
	ProductSubtotal int64
	ShippingFee     int64
	DiscountAmount  int64
	TotalAmount     int64
}

// Surcharge tiers keyed by the single line with the highest quantity.
// Only one tier applies per order, never a sum across lines.
var surchargeTiers = []struct {
	minExclusive int
	multiplier   decimal.Decimal
}{
	{30, decimal.NewFromFloat(1.40)},
	{20, decimal.NewFromFloat(1.25)},
	{10, decimal.NewFromFloat(1.15)},
}

type Calculator interface {
	ValidateQuantities(lines []Line) error
	ShippingFee(distanceKm int, lines []Line) int64
	Subtotal(lines []Line) int64
	BuildQuote(distanceKm int, lines []Line, discount int64) (*Quote, error)
}

type calculator struct {
	cfg config.PricingConfig
}

func NewCalculator(cfg config.PricingConfig) (Calculator, error) {
	if cfg.BaseShippingFee <= 0 {
		return nil, fmt.Errorf("pricing: base shipping fee must be positive")
	}
	if cfg.PerKmRate < 0 {
		return nil, fmt.Errorf("pricing: per-km rate must not be negative")
	}
	if cfg.MaxLineQuantity <= 0 || cfg.MaxOrderQuantity <= 0 {
		return nil, fmt.Errorf("pricing: quantity limits must be positive")
	}
	return &calculator{cfg: cfg}, nil
}

// ValidateQuantities rejects an order before anything is persisted when
// any single line, or the order as a whole, exceeds the quantity limits.
func (c *calculator) ValidateQuantities(lines []Line) error {
	if len(lines) == 0 {
		return errors.New(errors.CodeValidation, "order has no lines")
	}
	total := 0
	for _, line := range lines {
		if line.Quantity <= 0 {
			return errors.New(errors.CodeValidation, "line quantity must be positive").
				WithDetails(map[string]any{"productId": line.ProductID})
		}
		if line.Quantity > c.cfg.MaxLineQuantity {
			return errors.New(errors.CodeValidation,
				fmt.Sprintf("line quantity exceeds the limit of %d", c.cfg.MaxLineQuantity)).
				WithDetails(map[string]any{"productId": line.ProductID, "quantity": line.Quantity})
		}
		total += line.Quantity
	}
	if total > c.cfg.MaxOrderQuantity {
		return errors.New(errors.CodeValidation,
			fmt.Sprintf("order quantity exceeds the limit of %d", c.cfg.MaxOrderQuantity)).
			WithDetails(map[string]any{"totalQuantity": total})
	}
	return nil
}

// ShippingFee charges the base fee up to the included distance and a
// per-km rate beyond it, then applies the quantity surcharge of the
// single highest-quantity line to the distance fee only.
func (c *calculator) ShippingFee(distanceKm int, lines []Line) int64 {
	fee := decimal.NewFromInt(c.cfg.BaseShippingFee)
	extra := decimal.NewFromInt(int64(distanceKm)).Sub(decimal.NewFromFloat(c.cfg.BaseDistanceKm))
	if extra.IsPositive() {
		fee = fee.Add(extra.Mul(decimal.NewFromInt(c.cfg.PerKmRate)))
	}
	if multiplier, ok := surchargeFor(maxLineQuantity(lines)); ok {
		fee = fee.Mul(multiplier)
	}
	return fee.Ceil().IntPart()
}

func (c *calculator) Subtotal(lines []Line) int64 {
	var subtotal int64
	for _, line := range lines {
		subtotal += int64(line.Quantity) * line.UnitPrice
	}
	return subtotal
}

// BuildQuote validates quantities first so an over-limit order never
// produces a quote, then clamps the total at zero.
func (c *calculator) BuildQuote(distanceKm int, lines []Line, discount int64) (*Quote, error) {
	if err := c.ValidateQuantities(lines); err != nil {
		return nil, err
	}
	if distanceKm < 0 {
		return nil, errors.New(errors.CodeValidation, "distance must not be negative")
	}
	if discount < 0 {
		return nil, errors.New(errors.CodeValidation, "discount must not be negative")
	}

	subtotal := c.Subtotal(lines)
	fee := c.ShippingFee(distanceKm, lines)
	total := subtotal + fee - discount
	if total < 0 {
		total = 0
	}
	return &Quote{
		ProductSubtotal: subtotal,
		ShippingFee:     fee,
		DiscountAmount:  discount,
		TotalAmount:     total,
	}, nil
}

func maxLineQuantity(lines []Line) int {
	max := 0
	for _, line := range lines {
		if line.Quantity > max {
			max = line.Quantity
		}
	}
	return max
}

func surchargeFor(quantity int) (decimal.Decimal, bool) {
	for _, tier := range surchargeTiers {
		if quantity > tier.minExclusive {
			return tier.multiplier, true
		}
	}
	return decimal.Decimal{}, false
}
