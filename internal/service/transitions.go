package service

import (
	"context"
	"fmt"
	"time"

	"agrimart-orders/internal/models"
	"agrimart-orders/internal/store"
	"agrimart-orders/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ConfirmDeliveryRequest carries the buyer's proof of delivery and payment reference
type ConfirmDeliveryRequest struct {
	OrderID              string `json:"orderId" binding:"required"`
	OTP                  string `json:"otp"`
	PaymentTransactionID string `json:"paymentTransactionId"`
}

// RequestReturnRequest opens the return workflow
type RequestReturnRequest struct {
	OrderID string `json:"orderId" binding:"required"`
	Reason  string `json:"reason"`
}

// ExtendRentalRequest adds days to an active rental
type ExtendRentalRequest struct {
	OrderID   string `json:"orderId" binding:"required"`
	ExtraDays int    `json:"extraDays"`
}

type mutation func(ctx context.Context, tx store.Tx, order *models.Order, out *outbox) error

// transition locks the order, applies mutate and persists the order in one
// transaction. Side effects queued on the outbox run only after commit.
func (s *OrderService) transition(ctx context.Context, name, eventType, actorID, orderID string, mutate mutation) (*models.Order, error) {
	ctx, span := util.StartOrderSpan(ctx, "OrderService."+name, orderID, actorID)
	defer span.End()

	start := time.Now()
	out := &outbox{}
	var result *models.Order

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return notFound(err, "Order not found")
		}
		if err := mutate(ctx, tx, order, out); err != nil {
			return err
		}
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return fmt.Errorf("failed to update order: %w", err)
		}
		result = order
		return nil
	})
	util.TransitionLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		s.reject(name, err)
		util.RecordError(span, err)
		return nil, err
	}

	util.OrderTransitionsTotal.WithLabelValues(name).Inc()
	s.logger.Info("Order transition committed",
		zap.String("transition", name),
		zap.String("order_id", result.ID),
		zap.String("status", string(result.Status)))

	s.dispatch(ctx, eventType, result, out)
	return result, nil
}

func (s *OrderService) moveTo(order *models.Order, to models.OrderStatus) error {
	if !models.CanTransition(order.Status, to) {
		return newError(KindState, fmt.Sprintf("Cannot move order from %s to %s", order.Status, to))
	}
	order.Status = to
	return nil
}

// ConfirmShipment is called by the seller once the goods are dispatched
func (s *OrderService) ConfirmShipment(ctx context.Context, sellerID, orderID string) (*models.Order, error) {
	order, err := s.transition(ctx, "confirm_shipment", models.EventTypeOrderShipped, sellerID, orderID,
		func(ctx context.Context, tx store.Tx, order *models.Order, out *outbox) error {
			if order.SellerID != sellerID {
				return errNotAuthorized
			}
			if order.Status != models.StatusPending {
				return newError(KindState, "Only pending orders can be shipped")
			}
			if err := s.moveTo(order, models.StatusShipped); err != nil {
				return err
			}
			now := s.now().UTC()
			order.ShippedAt = &now

			if order.BuyerID == nil {
				return nil
			}
			product, err := tx.GetProduct(ctx, order.ProductID)
			if err != nil {
				return notFound(err, "Product not found")
			}
			buyer, err := tx.GetAccount(ctx, *order.BuyerID)
			if err != nil {
				return notFound(err, "Buyer not found")
			}
			otp := ""
			if order.DeliveryOTP != nil {
				otp = *order.DeliveryOTP
			}
			out.notify(buyer.Mobile, msgShipped(product.Title, otp))
			return nil
		})
	return withoutOTP(order), err
}

// withoutOTP strips the delivery code from an order returned to its seller
func withoutOTP(order *models.Order) *models.Order {
	if order != nil {
		order.DeliveryOTP = nil
	}
	return order
}

// ConfirmDelivery is called by the buyer with the delivery OTP. It records the
// payment reference and performs settlement exactly once.
func (s *OrderService) ConfirmDelivery(ctx context.Context, buyerID string, req *ConfirmDeliveryRequest) (*models.Order, error) {
	if req.PaymentTransactionID == "" {
		err := newError(KindValidation, "paymentTransactionId required")
		s.reject("confirm_delivery", err)
		return nil, err
	}

	return s.transition(ctx, "confirm_delivery", models.EventTypeOrderDelivered, buyerID, req.OrderID,
		func(ctx context.Context, tx store.Tx, order *models.Order, out *outbox) error {
			if !order.IsBuyer(buyerID) {
				return errNotAuthorized
			}
			if order.Status != models.StatusPending && order.Status != models.StatusShipped {
				return newError(KindState, "Order not in confirmable state")
			}
			if !otpMatches(order.DeliveryOTP, req.OTP) {
				return newError(KindState, "Invalid OTP")
			}
			if err := s.moveTo(order, models.DeliveredStatus(order.OrderType)); err != nil {
				return err
			}

			now := s.now().UTC()
			txID := req.PaymentTransactionID
			order.DeliveredAt = &now
			order.DeliveryOTP = nil
			order.PaymentStatus = models.PaymentStatusPaid
			order.PaymentTransactionID = &txID

			settlement, err := s.settle(ctx, tx, order)
			if err != nil {
				return err
			}

			payment := &models.Payment{
				ID:           uuid.New().String(),
				OrderID:      order.ID,
				Status:       models.PaymentStatusPaid,
				ProviderTxID: txID,
				Amount:       order.TotalAmount,
			}
			if err := tx.CreatePayment(ctx, payment); err != nil {
				return fmt.Errorf("failed to record payment: %w", err)
			}

			buyer, err := tx.GetAccount(ctx, buyerID)
			if err != nil {
				return notFound(err, "Buyer not found")
			}
			seller, err := tx.GetAccount(ctx, order.SellerID)
			if err != nil {
				return notFound(err, "Seller not found")
			}
			out.notify(buyer.Mobile, msgDeliveredBuyer(txID))
			out.notify(seller.Mobile, msgDeliveredSeller(settlement.SellerEarning, txID))
			return nil
		})
}

// settle computes the split for order and credits the seller and the
// platform account inside tx.
func (s *OrderService) settle(ctx context.Context, tx store.Tx, order *models.Order) (Settlement, error) {
	product, err := tx.GetProduct(ctx, order.ProductID)
	if err != nil {
		return Settlement{}, notFound(err, "Product not found")
	}

	seller, err := tx.GetAccountForUpdate(ctx, order.SellerID)
	if err != nil {
		return Settlement{}, notFound(err, "Seller not found")
	}
	platform, err := s.lockPlatform(ctx, tx, seller)
	if err != nil {
		return Settlement{}, err
	}

	st, err := ComputeSettlement(order, commissionPercent(product, s.opts.DefaultCommissionPercent))
	if err != nil {
		return Settlement{}, fmt.Errorf("product %s: %w", product.ID, err)
	}

	seller.WalletBalance = seller.WalletBalance.Add(st.SellerEarning)
	seller.TotalSales = seller.TotalSales.Add(order.TotalAmount)
	seller.TotalCommissionPaid = seller.TotalCommissionPaid.Add(st.AdminCut)

	platform.TotalRevenueCollected = platform.TotalRevenueCollected.Add(st.AdminCut)
	if order.OrderType == models.OrderTypeRental {
		platform.HeldDeposit = platform.HeldDeposit.Add(st.Deposit)
	}

	if err := tx.UpdateAccountBalances(ctx, seller); err != nil {
		return Settlement{}, fmt.Errorf("failed to credit seller: %w", err)
	}
	if platform != seller {
		if err := tx.UpdateAccountBalances(ctx, platform); err != nil {
			return Settlement{}, fmt.Errorf("failed to credit platform: %w", err)
		}
	}

	entries := []*models.LedgerEntry{
		newLedgerEntry(seller.ID, order.ID, models.LedgerSellerEarning, st.SellerEarning),
		newLedgerEntry(platform.ID, order.ID, models.LedgerCommission, st.AdminCut),
	}
	if st.Deposit.IsPositive() {
		entries = append(entries, newLedgerEntry(platform.ID, order.ID, models.LedgerDepositHeld, st.Deposit))
	}
	if err := writeLedger(ctx, tx, entries); err != nil {
		return Settlement{}, err
	}

	order.AdminCommission = st.AdminCut
	order.SellerEarnings = st.SellerEarning
	order.SellerViewed = false

	commission, _ := st.AdminCut.Float64()
	util.CommissionCollectedTotal.Add(commission)
	if st.Deposit.IsPositive() {
		held, _ := st.Deposit.Float64()
		util.DepositsHeldTotal.Add(held)
	}
	return st, nil
}

// lockPlatform locks the configured platform account. If it is the same
// account as already, that record is reused so both updates land on one row.
func (s *OrderService) lockPlatform(ctx context.Context, tx store.Tx, already *models.Account) (*models.Account, error) {
	if s.opts.PlatformAccountID == "" {
		return nil, newError(KindNotFound, "Platform account not configured")
	}
	if already != nil && already.ID == s.opts.PlatformAccountID {
		return already, nil
	}
	platform, err := tx.GetAccountForUpdate(ctx, s.opts.PlatformAccountID)
	if err != nil {
		return nil, notFound(err, "Platform account not found")
	}
	return platform, nil
}

func newLedgerEntry(accountID, orderID, entryType string, amount decimal.Decimal) *models.LedgerEntry {
	return &models.LedgerEntry{
		ID:        uuid.New().String(),
		AccountID: &accountID,
		OrderID:   orderID,
		EntryType: entryType,
		Amount:    amount,
	}
}

func writeLedger(ctx context.Context, tx store.Tx, entries []*models.LedgerEntry) error {
	for _, e := range entries {
		if err := tx.CreateLedgerEntry(ctx, e); err != nil {
			return fmt.Errorf("failed to write ledger entry %s: %w", e.EntryType, err)
		}
	}
	return nil
}

// RequestReturn is called by the buyer on an in-use rental or a delivered purchase
func (s *OrderService) RequestReturn(ctx context.Context, buyerID string, req *RequestReturnRequest) (*models.Order, error) {
	return s.transition(ctx, "request_return", models.EventTypeReturnRequested, buyerID, req.OrderID,
		func(ctx context.Context, tx store.Tx, order *models.Order, out *outbox) error {
			if !order.IsBuyer(buyerID) {
				return errNotAuthorized
			}
			allowed := (order.OrderType == models.OrderTypeRental && order.Status == models.StatusInUse) ||
				(order.OrderType == models.OrderTypePurchase && order.Status == models.StatusDelivered)
			if !allowed {
				return newError(KindState, "Return not allowed at this stage")
			}
			if err := s.moveTo(order, models.StatusReturnRequested); err != nil {
				return err
			}

			now := s.now().UTC()
			requester := buyerID
			order.ReturnRequestedAt = &now
			order.ReturnRequestedBy = &requester
			order.SellerViewed = false

			product, err := tx.GetProduct(ctx, order.ProductID)
			if err != nil {
				return notFound(err, "Product not found")
			}
			seller, err := tx.GetAccount(ctx, order.SellerID)
			if err != nil {
				return notFound(err, "Seller not found")
			}
			out.notify(seller.Mobile, msgReturnRequested(order.ID, product.Title, req.Reason))
			return nil
		})
}

// ConfirmReturn is called by the seller once the item is back. For rentals
// the deposit leaves escrow and is credited to the buyer. Purchase returns
// are not reversed automatically.
func (s *OrderService) ConfirmReturn(ctx context.Context, sellerID, orderID string) (*models.Order, error) {
	order, err := s.transition(ctx, "confirm_return", models.EventTypeOrderReturned, sellerID, orderID,
		func(ctx context.Context, tx store.Tx, order *models.Order, out *outbox) error {
			if order.SellerID != sellerID {
				return errNotAuthorized
			}
			if order.Status != models.StatusReturnRequested {
				return newError(KindState, "Return not requested")
			}
			if err := s.moveTo(order, models.StatusReturned); err != nil {
				return err
			}
			now := s.now().UTC()
			order.ReturnConfirmedAt = &now

			var buyer *models.Account
			var err error
			if order.OrderType == models.OrderTypeRental {
				if buyer, err = s.releaseDeposit(ctx, tx, order); err != nil {
					return err
				}
			} else {
				s.logger.Info("Purchase return confirmed without automatic refund",
					zap.String("order_id", order.ID))
				if order.BuyerID != nil {
					if buyer, err = tx.GetAccount(ctx, *order.BuyerID); err != nil {
						return notFound(err, "Buyer not found")
					}
				}
			}

			product, err := tx.GetProduct(ctx, order.ProductID)
			if err != nil {
				return notFound(err, "Product not found")
			}
			seller, err := tx.GetAccount(ctx, order.SellerID)
			if err != nil {
				return notFound(err, "Seller not found")
			}
			if buyer != nil {
				out.notify(buyer.Mobile, msgReturnAcceptedBuyer(product.Title, order.ID))
			}
			out.notify(seller.Mobile, msgReturnConfirmedSeller(order.ID))
			return nil
		})
	return withoutOTP(order), err
}

// releaseDeposit moves a rental deposit from platform escrow to the buyer wallet
func (s *OrderService) releaseDeposit(ctx context.Context, tx store.Tx, order *models.Order) (*models.Account, error) {
	if order.BuyerID == nil {
		return nil, newError(KindNotFound, "Buyer not found")
	}
	buyer, err := tx.GetAccountForUpdate(ctx, *order.BuyerID)
	if err != nil {
		return nil, notFound(err, "Buyer not found")
	}
	platform, err := s.lockPlatform(ctx, tx, buyer)
	if err != nil {
		return nil, err
	}

	deposit := order.Deposit
	platform.HeldDeposit = platform.HeldDeposit.Sub(deposit)
	platform.TotalDepositsReturned = platform.TotalDepositsReturned.Add(deposit)
	buyer.WalletBalance = buyer.WalletBalance.Add(deposit)

	if err := tx.UpdateAccountBalances(ctx, platform); err != nil {
		return nil, fmt.Errorf("failed to release escrow: %w", err)
	}
	if platform != buyer {
		if err := tx.UpdateAccountBalances(ctx, buyer); err != nil {
			return nil, fmt.Errorf("failed to refund buyer: %w", err)
		}
	}

	if deposit.IsPositive() {
		if err := writeLedger(ctx, tx, []*models.LedgerEntry{
			newLedgerEntry(platform.ID, order.ID, models.LedgerDepositReleased, deposit.Neg()),
			newLedgerEntry(buyer.ID, order.ID, models.LedgerDepositRefund, deposit),
		}); err != nil {
			return nil, err
		}
		released, _ := deposit.Float64()
		util.DepositsReleasedTotal.Add(released)
	}
	return buyer, nil
}

// ExtendRental adds extraDays to an in-use rental at the product's current daily rate
func (s *OrderService) ExtendRental(ctx context.Context, buyerID string, req *ExtendRentalRequest) (*models.Order, error) {
	if req.ExtraDays <= 0 || req.ExtraDays > MaxRentalDays {
		err := newError(KindValidation, "Invalid extraDays")
		s.reject("extend_rental", err)
		return nil, err
	}

	return s.transition(ctx, "extend_rental", models.EventTypeRentalExtended, buyerID, req.OrderID,
		func(ctx context.Context, tx store.Tx, order *models.Order, out *outbox) error {
			if !order.IsBuyer(buyerID) {
				return errNotAuthorized
			}
			if order.OrderType != models.OrderTypeRental || order.Status != models.StatusInUse {
				return newError(KindState, "Only active rentals can be extended")
			}
			if order.RentDays+req.ExtraDays > MaxRentalDays {
				return newError(KindValidation, "Invalid extraDays")
			}

			product, err := tx.GetProduct(ctx, order.ProductID)
			if err != nil {
				return notFound(err, "Product not found")
			}

			extraCost := rentalCharge(product.RentalPricePerDay, req.ExtraDays)
			end := s.now().UTC()
			if order.RentalEnd != nil {
				end = *order.RentalEnd
			}
			end = end.AddDate(0, 0, req.ExtraDays)

			order.RentDays += req.ExtraDays
			order.RentalEnd = &end
			order.TotalAmount = order.TotalAmount.Add(extraCost)
			order.SellerViewed = false

			buyer, err := tx.GetAccount(ctx, buyerID)
			if err != nil {
				return notFound(err, "Buyer not found")
			}
			seller, err := tx.GetAccount(ctx, order.SellerID)
			if err != nil {
				return notFound(err, "Seller not found")
			}
			out.notify(buyer.Mobile, msgRentalExtendedBuyer(req.ExtraDays, extraCost))
			out.notify(seller.Mobile, msgRentalExtendedSeller(order.ID, req.ExtraDays))
			return nil
		})
}

// CancelOrder is called by the buyer while the order is still pending.
// Reserved purchase stock is restored.
func (s *OrderService) CancelOrder(ctx context.Context, buyerID, orderID string) (*models.Order, error) {
	return s.transition(ctx, "cancel", models.EventTypeOrderCancelled, buyerID, orderID,
		func(ctx context.Context, tx store.Tx, order *models.Order, out *outbox) error {
			if !order.IsBuyer(buyerID) {
				return errNotAuthorized
			}
			if order.Status != models.StatusPending {
				return newError(KindState, "Only pending orders can be cancelled")
			}
			if err := s.moveTo(order, models.StatusCancelled); err != nil {
				return err
			}

			if order.OrderType == models.OrderTypePurchase {
				product, err := tx.GetProductForUpdate(ctx, order.ProductID)
				if err != nil {
					return notFound(err, "Product not found")
				}
				if err := tx.UpdateProductStock(ctx, product.ID, product.Stock+order.Quantity); err != nil {
					return fmt.Errorf("failed to restore stock: %w", err)
				}
			}
			order.DeliveryOTP = nil
			order.SellerViewed = false

			buyer, err := tx.GetAccount(ctx, buyerID)
			if err != nil {
				return notFound(err, "Buyer not found")
			}
			seller, err := tx.GetAccount(ctx, order.SellerID)
			if err != nil {
				return notFound(err, "Seller not found")
			}
			out.notify(buyer.Mobile, msgCancelledBuyer(order.ID))
			out.notify(seller.Mobile, msgCancelledSeller(order.ID))
			return nil
		})
}

// MarkSellerViewed clears the seller's attention flag
func (s *OrderService) MarkSellerViewed(ctx context.Context, sellerID, orderID string) (*models.Order, error) {
	order, err := s.transition(ctx, "seller_viewed", "", sellerID, orderID,
		func(ctx context.Context, tx store.Tx, order *models.Order, out *outbox) error {
			if order.SellerID != sellerID {
				return errNotAuthorized
			}
			order.SellerViewed = true
			return nil
		})
	return withoutOTP(order), err
}
