package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"agrimart-orders/internal/models"
	"agrimart-orders/internal/store"
	"agrimart-orders/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MaxRentalDays bounds a rental's total length, including extensions
const MaxRentalDays = 36500

// OrderStore is the persistence the engine needs. *store.Store satisfies it.
type OrderStore interface {
	InTx(ctx context.Context, fn func(tx store.Tx) error) error
	ListOrdersByBuyer(ctx context.Context, buyerID string) ([]models.OrderListing, error)
	ListOrdersBySeller(ctx context.Context, sellerID string) ([]models.OrderListing, error)
}

// Cooldown is a shared last-action cache keyed by actor.
// *redisclient.Client satisfies it.
type Cooldown interface {
	TryCooldown(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Options carries business configuration
type Options struct {
	PlatformAccountID        string
	DefaultCommissionPercent decimal.Decimal
	OrderCooldown            time.Duration
	LowStockThreshold        int
}

// OrderService is the order lifecycle engine
type OrderService struct {
	store    OrderStore
	cooldown Cooldown
	notifier Notifier
	events   EventPublisher
	otp      OTPGenerator
	opts     Options
	now      func() time.Time
	logger   *zap.Logger
	pending  sync.WaitGroup
}

// NewOrderService creates a new order service
func NewOrderService(
	store OrderStore,
	cooldown Cooldown,
	notifier Notifier,
	events EventPublisher,
	otp OTPGenerator,
	opts Options,
) *OrderService {
	return &OrderService{
		store:    store,
		cooldown: cooldown,
		notifier: notifier,
		events:   events,
		otp:      otp,
		opts:     opts,
		now:      time.Now,
		logger:   util.ComponentLogger("order-service"),
	}
}

// PlaceOrderRequest represents a request to place an order
type PlaceOrderRequest struct {
	ProductID string           `json:"productId" binding:"required"`
	Quantity  int              `json:"quantity"`
	OrderType models.OrderType `json:"orderType"`
	RentDays  int              `json:"rentDays"`
}

// PlaceOrder creates a purchase or rental order in the pending state.
// Purchase stock is reserved immediately.
func (s *OrderService) PlaceOrder(ctx context.Context, buyerID string, req *PlaceOrderRequest) (*models.Order, error) {
	ctx, span := util.StartOrderSpan(ctx, "OrderService.PlaceOrder", "", buyerID)
	defer span.End()

	start := time.Now()
	order, out, err := s.placeOrder(ctx, buyerID, req)
	util.TransitionLatency.WithLabelValues("place").Observe(time.Since(start).Seconds())
	if err != nil {
		s.reject("place", err)
		util.RecordError(span, err)
		return nil, err
	}

	util.OrdersPlacedTotal.WithLabelValues(string(order.OrderType)).Inc()
	s.logger.Info("Order placed",
		zap.String("order_id", order.ID),
		zap.String("buyer_id", buyerID),
		zap.String("order_type", string(order.OrderType)),
		zap.String("total_amount", order.TotalAmount.String()))

	s.dispatch(ctx, models.EventTypeOrderPlaced, order, out)
	return order, nil
}

func (s *OrderService) placeOrder(ctx context.Context, buyerID string, req *PlaceOrderRequest) (*models.Order, *outbox, error) {
	if err := s.checkCooldown(ctx, buyerID); err != nil {
		return nil, nil, err
	}

	orderType := req.OrderType
	if orderType == "" {
		orderType = models.OrderTypePurchase
	}
	if !orderType.Valid() {
		return nil, nil, newError(KindValidation, "Invalid orderType")
	}

	quantity := req.Quantity
	if quantity == 0 {
		quantity = 1
	}
	switch orderType {
	case models.OrderTypePurchase:
		if quantity < 0 {
			return nil, nil, newError(KindValidation, "Invalid quantity")
		}
	case models.OrderTypeRental:
		if req.RentDays <= 0 || req.RentDays > MaxRentalDays {
			return nil, nil, newError(KindValidation, "Invalid rentDays")
		}
		quantity = 1
	}

	otp, err := s.otp.Generate()
	if err != nil {
		return nil, nil, err
	}

	out := &outbox{}
	var order *models.Order

	err = s.store.InTx(ctx, func(tx store.Tx) error {
		product, err := tx.GetProductForUpdate(ctx, req.ProductID)
		if err != nil {
			return notFound(err, "Product not found")
		}
		if product.SellerID == buyerID {
			return newError(KindForbidden, "You cannot purchase your own product")
		}

		active, err := tx.HasActiveOrder(ctx, buyerID, product.ID)
		if err != nil {
			return fmt.Errorf("failed to check active orders: %w", err)
		}
		if active {
			return newError(KindState, "You already have an active order for this product")
		}

		seller, err := tx.GetAccount(ctx, product.SellerID)
		if err != nil {
			return notFound(err, "Buyer or seller not found")
		}
		buyer, err := tx.GetAccount(ctx, buyerID)
		if err != nil {
			return notFound(err, "Buyer or seller not found")
		}

		now := s.now().UTC()
		order = &models.Order{
			ID:            uuid.New().String(),
			BuyerID:       &buyerID,
			SellerID:      product.SellerID,
			ProductID:     product.ID,
			OrderType:     orderType,
			Quantity:      quantity,
			Deposit:       decimal.Zero,
			Status:        models.StatusPending,
			DeliveryOTP:   &otp,
			PaymentStatus: models.PaymentStatusPending,
			SellerViewed:  false,
		}

		switch orderType {
		case models.OrderTypePurchase:
			if product.Stock < quantity {
				return newError(KindState, "Not enough stock")
			}
			order.TotalAmount = purchaseTotal(product.Price, quantity)
			product.Stock -= quantity
			if err := tx.UpdateProductStock(ctx, product.ID, product.Stock); err != nil {
				return fmt.Errorf("failed to reserve stock: %w", err)
			}

		case models.OrderTypeRental:
			if !product.RentalAvailable {
				return newError(KindState, "Product not available for rent")
			}
			end := now.AddDate(0, 0, req.RentDays)
			order.RentDays = req.RentDays
			order.RentalStart = &now
			order.RentalEnd = &end
			order.Deposit = roundMoney(product.RentalDeposit)
			order.TotalAmount = rentalCharge(product.RentalPricePerDay, req.RentDays).Add(order.Deposit)
		}

		if err := tx.CreateOrder(ctx, order); err != nil {
			if errors.Is(err, store.ErrActiveOrderExists) {
				return newError(KindState, "You already have an active order for this product")
			}
			return fmt.Errorf("failed to create order: %w", err)
		}

		out.notify(buyer.Mobile, msgOrderPlacedBuyer(product.Title, quantity, order.TotalAmount, otp))
		out.notify(seller.Mobile, msgOrderPlacedSeller(product.Title, quantity, order.TotalAmount))
		if orderType == models.OrderTypePurchase && product.Stock <= s.opts.LowStockThreshold {
			out.notify(seller.Mobile, msgLowStock(product.Title, product.Stock))
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return order, out, nil
}

// checkCooldown enforces one placement attempt per buyer per cooldown window.
// The cache is a soft guard: if it is unreachable the attempt is allowed.
func (s *OrderService) checkCooldown(ctx context.Context, buyerID string) error {
	if s.opts.OrderCooldown <= 0 {
		return nil
	}

	ok, err := s.cooldown.TryCooldown(ctx, "place-order:"+buyerID, s.opts.OrderCooldown)
	if err != nil {
		s.logger.Warn("Cooldown cache unavailable, allowing order",
			zap.String("buyer_id", buyerID),
			zap.Error(err))
		return nil
	}
	if !ok {
		return newError(KindRateLimited,
			fmt.Sprintf("Please wait %d seconds before placing another order.", int(s.opts.OrderCooldown.Seconds())))
	}
	return nil
}

// ListBuyerOrders returns the orders placed by buyerID
func (s *OrderService) ListBuyerOrders(ctx context.Context, buyerID string) ([]models.OrderListing, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListBuyerOrders")
	defer span.End()

	orders, err := s.store.ListOrdersByBuyer(ctx, buyerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list buyer orders: %w", err)
	}
	return orders, nil
}

// ListSellerOrders returns the orders received by sellerID. Delivery codes
// are withheld since only the buyer may present them.
func (s *OrderService) ListSellerOrders(ctx context.Context, sellerID string) ([]models.OrderListing, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListSellerOrders")
	defer span.End()

	orders, err := s.store.ListOrdersBySeller(ctx, sellerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list seller orders: %w", err)
	}
	for i := range orders {
		withoutOTP(&orders[i].Order)
	}
	return orders, nil
}

func (s *OrderService) reject(operation string, err error) {
	e, ok := AsError(err)
	if !ok {
		util.OrderRejectionsTotal.WithLabelValues(operation, "internal").Inc()
		s.logger.Error("Order operation failed", zap.String("operation", operation), zap.Error(err))
		return
	}
	util.OrderRejectionsTotal.WithLabelValues(operation, string(e.Kind)).Inc()
	s.logger.Info("Order operation rejected",
		zap.String("operation", operation),
		zap.String("kind", string(e.Kind)),
		zap.String("reason", e.Message))
}
