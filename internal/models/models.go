package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderType distinguishes outright purchases from time-boxed rentals
type OrderType string

const (
	OrderTypePurchase OrderType = "purchase"
	OrderTypeRental   OrderType = "rental"
)

// Valid reports whether t is a known order type
func (t OrderType) Valid() bool {
	return t == OrderTypePurchase || t == OrderTypeRental
}

// Payment statuses
const (
	PaymentStatusPending = "PENDING"
	PaymentStatusPaid    = "PAID"
)

// Product is the listing an order is placed against
type Product struct {
	ID                     string              `db:"id" json:"id"`
	SellerID               string              `db:"seller_id" json:"sellerId"`
	Title                  string              `db:"title" json:"title"`
	Price                  decimal.Decimal     `db:"price" json:"price"`
	Stock                  int                 `db:"stock" json:"stock"`
	RentalAvailable        bool                `db:"rental_available" json:"rentalAvailable"`
	RentalPricePerDay      decimal.Decimal     `db:"rental_price_per_day" json:"rentalPricePerDay"`
	RentalDeposit          decimal.Decimal     `db:"rental_deposit" json:"rentalDeposit"`
	AdminCommissionPercent decimal.NullDecimal `db:"admin_commission_percent" json:"adminCommissionPercent"`
	CreatedAt              time.Time           `db:"created_at" json:"createdAt"`
	UpdatedAt              time.Time           `db:"updated_at" json:"updatedAt"`
}

// Account is a marketplace user. Seller and admin counters live on the same
// record; only the platform account accumulates the admin ones.
type Account struct {
	ID            string          `db:"id" json:"id"`
	Name          string          `db:"name" json:"name"`
	Mobile        string          `db:"mobile" json:"mobile"`
	Role          string          `db:"role" json:"role"`
	WalletBalance decimal.Decimal `db:"wallet_balance" json:"walletBalance"`

	TotalSales          decimal.Decimal `db:"total_sales" json:"totalSales"`
	TotalCommissionPaid decimal.Decimal `db:"total_commission_paid" json:"totalCommissionPaid"`

	TotalRevenueCollected decimal.Decimal `db:"total_revenue_collected" json:"totalRevenueCollected"`
	HeldDeposit           decimal.Decimal `db:"held_deposit" json:"heldDeposit"`
	TotalDepositsReturned decimal.Decimal `db:"total_deposits_returned" json:"totalDepositsReturned"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Order represents a purchase or rental between a buyer and a seller
type Order struct {
	ID        string    `db:"id" json:"id"`
	BuyerID   *string   `db:"buyer_id" json:"buyerId"`
	SellerID  string    `db:"seller_id" json:"sellerId"`
	ProductID string    `db:"product_id" json:"productId"`
	OrderType OrderType `db:"order_type" json:"orderType"`
	Quantity  int       `db:"quantity" json:"quantity"`

	RentDays    int             `db:"rent_days" json:"rentDays"`
	RentalStart *time.Time      `db:"rental_start" json:"rentalStart,omitempty"`
	RentalEnd   *time.Time      `db:"rental_end" json:"rentalEnd,omitempty"`
	Deposit     decimal.Decimal `db:"deposit" json:"deposit"`

	TotalAmount decimal.Decimal `db:"total_amount" json:"totalAmount"`
	Status      OrderStatus     `db:"status" json:"orderStatus"`

	ShippedAt   *time.Time `db:"shipped_at" json:"shippedAt,omitempty"`
	DeliveredAt *time.Time `db:"delivered_at" json:"deliveredAt,omitempty"`

	DeliveryOTP          *string `db:"delivery_otp" json:"deliveryOtp,omitempty"`
	PaymentStatus        string  `db:"payment_status" json:"paymentStatus"`
	PaymentTransactionID *string `db:"payment_transaction_id" json:"paymentTransactionId,omitempty"`

	AdminCommission decimal.Decimal `db:"admin_commission" json:"adminCommission"`
	SellerEarnings  decimal.Decimal `db:"seller_earnings" json:"sellerEarnings"`

	ReturnRequestedAt *time.Time `db:"return_requested_at" json:"returnRequestedAt,omitempty"`
	ReturnRequestedBy *string    `db:"return_requested_by" json:"returnRequestedBy,omitempty"`
	ReturnConfirmedAt *time.Time `db:"return_confirmed_at" json:"returnConfirmedAt,omitempty"`

	SellerViewed bool      `db:"seller_viewed" json:"sellerViewed"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// IsBuyer reports whether accountID placed the order. Orders whose buyer
// account was deleted have no buyer.
func (o *Order) IsBuyer(accountID string) bool {
	return o.BuyerID != nil && *o.BuyerID == accountID
}

// Buyer returns the buyer id, or "" when the buyer account was deleted
func (o *Order) Buyer() string {
	if o.BuyerID == nil {
		return ""
	}
	return *o.BuyerID
}

// OrderListing is an order with the product and the other party resolved for display
type OrderListing struct {
	Order
	ProductTitle       string          `db:"product_title" json:"productTitle"`
	ProductPrice       decimal.Decimal `db:"product_price" json:"productPrice"`
	CounterpartyName   string          `db:"counterparty_name" json:"counterpartyName"`
	CounterpartyMobile string          `db:"counterparty_mobile" json:"counterpartyMobile"`
}

// RentPart is the earned portion of a rental total, excluding the held deposit
func (o *Order) RentPart() decimal.Decimal {
	return o.TotalAmount.Sub(o.Deposit)
}

// Payment records the buyer-supplied transaction reference captured at delivery
type Payment struct {
	ID           string          `db:"id" json:"id"`
	OrderID      string          `db:"order_id" json:"orderId"`
	Status       string          `db:"status" json:"status"`
	ProviderTxID string          `db:"provider_tx_id" json:"providerTxId"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
}

// Ledger entry types
const (
	LedgerSellerEarning   = "SELLER_EARNING"
	LedgerCommission      = "COMMISSION"
	LedgerDepositHeld     = "DEPOSIT_HELD"
	LedgerDepositReleased = "DEPOSIT_RELEASED"
	LedgerDepositRefund   = "DEPOSIT_REFUND"
)

// LedgerEntry is an append-only record of a single balance movement.
// Amount is positive for credits and negative for debits. AccountID is nil
// once the account has been deleted.
type LedgerEntry struct {
	ID        string          `db:"id" json:"id"`
	AccountID *string         `db:"account_id" json:"accountId"`
	OrderID   string          `db:"order_id" json:"orderId"`
	EntryType string          `db:"entry_type" json:"entryType"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
}
