package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"agrimart-orders/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist
	ErrNotFound = errors.New("not found")
	// ErrActiveOrderExists is returned when the active-order unique index rejects an insert
	ErrActiveOrderExists = errors.New("active order already exists for buyer and product")
)

const uniqueViolation = "23505"

// Tx is the set of row operations available inside a transaction.
// Reads ending in ForUpdate take a row lock held until commit or rollback.
type Tx interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	GetProductForUpdate(ctx context.Context, id string) (*models.Product, error)
	UpdateProductStock(ctx context.Context, id string, stock int) error

	GetAccount(ctx context.Context, id string) (*models.Account, error)
	GetAccountForUpdate(ctx context.Context, id string) (*models.Account, error)
	UpdateAccountBalances(ctx context.Context, account *models.Account) error

	HasActiveOrder(ctx context.Context, buyerID, productID string) (bool, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderForUpdate(ctx context.Context, id string) (*models.Order, error)
	UpdateOrder(ctx context.Context, order *models.Order) error

	CreatePayment(ctx context.Context, payment *models.Payment) error
	CreateLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error
}

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection
func NewWithDB(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InTx runs fn inside a single database transaction. The transaction is
// committed only if fn returns nil; otherwise every write is rolled back.
func (s *Store) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqlTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type sqlTx struct {
	tx *sqlx.Tx
}

// GetProduct retrieves a product without locking it
func (t *sqlTx) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	return t.getProduct(ctx, "SELECT * FROM products WHERE id = $1", id)
}

// GetProductForUpdate retrieves and locks a product row
func (t *sqlTx) GetProductForUpdate(ctx context.Context, id string) (*models.Product, error) {
	return t.getProduct(ctx, "SELECT * FROM products WHERE id = $1 FOR UPDATE", id)
}

func (t *sqlTx) getProduct(ctx context.Context, query, id string) (*models.Product, error) {
	var product models.Product
	err := t.tx.GetContext(ctx, &product, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// UpdateProductStock sets the stock of a product
func (t *sqlTx) UpdateProductStock(ctx context.Context, id string, stock int) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE products SET stock = $1, updated_at = NOW() WHERE id = $2",
		stock, id)
	return err
}

// GetAccount retrieves an account without locking it
func (t *sqlTx) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	return t.getAccount(ctx, "SELECT * FROM accounts WHERE id = $1", id)
}

// GetAccountForUpdate retrieves and locks an account row
func (t *sqlTx) GetAccountForUpdate(ctx context.Context, id string) (*models.Account, error) {
	return t.getAccount(ctx, "SELECT * FROM accounts WHERE id = $1 FOR UPDATE", id)
}

func (t *sqlTx) getAccount(ctx context.Context, query, id string) (*models.Account, error) {
	var account models.Account
	err := t.tx.GetContext(ctx, &account, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// UpdateAccountBalances persists wallet and stat counters of an account
func (t *sqlTx) UpdateAccountBalances(ctx context.Context, a *models.Account) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE accounts SET
			wallet_balance = $1,
			total_sales = $2,
			total_commission_paid = $3,
			total_revenue_collected = $4,
			held_deposit = $5,
			total_deposits_returned = $6,
			updated_at = NOW()
		WHERE id = $7`,
		a.WalletBalance, a.TotalSales, a.TotalCommissionPaid,
		a.TotalRevenueCollected, a.HeldDeposit, a.TotalDepositsReturned, a.ID)
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
