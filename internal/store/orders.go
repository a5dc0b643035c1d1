package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"agrimart-orders/internal/models"

	"github.com/lib/pq"
)

func activeStatuses() pq.StringArray {
	out := make(pq.StringArray, 0, len(models.ActiveStatuses))
	for _, s := range models.ActiveStatuses {
		out = append(out, string(s))
	}
	return out
}

// HasActiveOrder checks whether the buyer already holds a non-terminal order for the product
func (t *sqlTx) HasActiveOrder(ctx context.Context, buyerID, productID string) (bool, error) {
	var exists bool
	err := t.tx.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM orders WHERE buyer_id = $1 AND product_id = $2 AND status = ANY($3))",
		buyerID, productID, activeStatuses())
	return exists, err
}

// CreateOrder creates a new order
func (t *sqlTx) CreateOrder(ctx context.Context, o *models.Order) error {
	query := `
		INSERT INTO orders (
			id, buyer_id, seller_id, product_id, order_type, quantity,
			rent_days, rental_start, rental_end, deposit, total_amount, status,
			delivery_otp, payment_status, seller_viewed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at`

	err := t.tx.QueryRowxContext(ctx, query,
		o.ID, o.BuyerID, o.SellerID, o.ProductID, o.OrderType, o.Quantity,
		o.RentDays, o.RentalStart, o.RentalEnd, o.Deposit, o.TotalAmount, o.Status,
		o.DeliveryOTP, o.PaymentStatus, o.SellerViewed,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrActiveOrderExists
	}
	return err
}

// GetOrderForUpdate retrieves and locks an order row
func (t *sqlTx) GetOrderForUpdate(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := t.tx.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1 FOR UPDATE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateOrder persists every mutable column of an order
func (t *sqlTx) UpdateOrder(ctx context.Context, o *models.Order) error {
	query := `
		UPDATE orders SET
			rent_days = $1,
			rental_end = $2,
			total_amount = $3,
			status = $4,
			shipped_at = $5,
			delivered_at = $6,
			delivery_otp = $7,
			payment_status = $8,
			payment_transaction_id = $9,
			admin_commission = $10,
			seller_earnings = $11,
			return_requested_at = $12,
			return_requested_by = $13,
			return_confirmed_at = $14,
			seller_viewed = $15,
			updated_at = NOW()
		WHERE id = $16
		RETURNING updated_at`

	return t.tx.QueryRowxContext(ctx, query,
		o.RentDays, o.RentalEnd, o.TotalAmount, o.Status,
		o.ShippedAt, o.DeliveredAt, o.DeliveryOTP, o.PaymentStatus, o.PaymentTransactionID,
		o.AdminCommission, o.SellerEarnings,
		o.ReturnRequestedAt, o.ReturnRequestedBy, o.ReturnConfirmedAt,
		o.SellerViewed, o.ID,
	).Scan(&o.UpdatedAt)
}

// CreatePayment creates a new payment record
func (t *sqlTx) CreatePayment(ctx context.Context, p *models.Payment) error {
	query := `
		INSERT INTO payments (id, order_id, status, provider_tx_id, amount)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	return t.tx.QueryRowxContext(ctx, query,
		p.ID, p.OrderID, p.Status, p.ProviderTxID, p.Amount).Scan(&p.CreatedAt)
}

// CreateLedgerEntry appends a balance movement
func (t *sqlTx) CreateLedgerEntry(ctx context.Context, e *models.LedgerEntry) error {
	query := `
		INSERT INTO ledger_entries (id, account_id, order_id, entry_type, amount)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	return t.tx.QueryRowxContext(ctx, query,
		e.ID, e.AccountID, e.OrderID, e.EntryType, e.Amount).Scan(&e.CreatedAt)
}

// listingQuery selects orders with the product and the counterparty joined.
// %s is the counterparty column and %s the owner column filtered on.
const listingQuery = `
	SELECT o.*,
		p.title AS product_title,
		p.price AS product_price,
		COALESCE(a.name, '') AS counterparty_name,
		COALESCE(a.mobile, '') AS counterparty_mobile
	FROM orders o
	JOIN products p ON p.id = o.product_id
	LEFT JOIN accounts a ON a.id = o.%s
	WHERE o.%s = $1
	ORDER BY o.created_at DESC`

// ListOrdersByBuyer retrieves orders placed by a buyer with the seller resolved, newest first
func (s *Store) ListOrdersByBuyer(ctx context.Context, buyerID string) ([]models.OrderListing, error) {
	orders := []models.OrderListing{}
	err := s.db.SelectContext(ctx, &orders, fmt.Sprintf(listingQuery, "seller_id", "buyer_id"), buyerID)
	return orders, err
}

// ListOrdersBySeller retrieves orders received by a seller with the buyer resolved, newest first
func (s *Store) ListOrdersBySeller(ctx context.Context, sellerID string) ([]models.OrderListing, error) {
	orders := []models.OrderListing{}
	err := s.db.SelectContext(ctx, &orders, fmt.Sprintf(listingQuery, "buyer_id", "seller_id"), sellerID)
	return orders, err
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
