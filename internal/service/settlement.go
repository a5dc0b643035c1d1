package service

import (
	"errors"

	"agrimart-orders/internal/models"

	"github.com/shopspring/decimal"
)

// Money is kept at two decimal places, rounded half away from zero
const moneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// ErrCommissionOutOfRange is returned for a commission percent outside [0, 100]
var ErrCommissionOutOfRange = errors.New("commission percent out of range")

func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyPlaces)
}

// Settlement is the one-time split of a delivered order's payment
type Settlement struct {
	// Base is the amount commission applies to: the full total for a purchase,
	// the rent portion for a rental.
	Base          decimal.Decimal
	Percent       decimal.Decimal
	AdminCut      decimal.Decimal
	SellerEarning decimal.Decimal
	// Deposit moves into platform escrow; it is never part of Base.
	Deposit decimal.Decimal
}

// ComputeSettlement splits order's payment. AdminCut is rounded and
// SellerEarning takes the remainder, so AdminCut + SellerEarning == Base exactly.
func ComputeSettlement(order *models.Order, percent decimal.Decimal) (Settlement, error) {
	if percent.IsNegative() || percent.GreaterThan(hundred) {
		return Settlement{}, ErrCommissionOutOfRange
	}
	base := order.TotalAmount
	deposit := decimal.Zero
	if order.OrderType == models.OrderTypeRental {
		deposit = order.Deposit
		base = order.RentPart()
	}

	adminCut := roundMoney(base.Mul(percent).Div(hundred))
	return Settlement{
		Base:          base,
		Percent:       percent,
		AdminCut:      adminCut,
		SellerEarning: base.Sub(adminCut),
		Deposit:       deposit,
	}, nil
}

// commissionPercent returns the product's commission, or fallback when the
// product has none or it is zero.
func commissionPercent(p *models.Product, fallback decimal.Decimal) decimal.Decimal {
	if !p.AdminCommissionPercent.Valid || p.AdminCommissionPercent.Decimal.IsZero() {
		return fallback
	}
	return p.AdminCommissionPercent.Decimal
}

func purchaseTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return roundMoney(unitPrice.Mul(decimal.NewFromInt(int64(quantity))))
}

func rentalCharge(ratePerDay decimal.Decimal, days int) decimal.Decimal {
	return roundMoney(ratePerDay.Mul(decimal.NewFromInt(int64(days))))
}
