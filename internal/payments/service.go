package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/alxgalache/kuadrat-backend/internal/inventory"
	"github.com/alxgalache/kuadrat-backend/internal/orders"
	"github.com/alxgalache/kuadrat-backend/internal/pricing"
	"github.com/alxgalache/kuadrat-backend/pkg/db/models"
	"github.com/alxgalache/kuadrat-backend/pkg/enums"
	pkgerrors "github.com/alxgalache/kuadrat-backend/pkg/errors"
	"github.com/alxgalache/kuadrat-backend/pkg/logger"
	"github.com/alxgalache/kuadrat-backend/pkg/metrics"
	"github.com/alxgalache/kuadrat-backend/pkg/revolut"
)

const confirmMaxRetries = 3

type txRunner interface {
	WithTxRetry(ctx context.Context, maxRetries int, fn func(tx *gorm.DB) error) error
}

// Notifier is told about every order this service moved to paid.
type Notifier interface {
	OrderPaid(ctx context.Context, detail *orders.OrderDetail, sellers []models.Seller) error
}

// Service reconciles gateway payments with local orders.
type Service interface {
	ConfirmPayment(ctx context.Context, orderID uuid.UUID, paymentID string) (*Confirmation, error)
	CreateGatewayOrder(ctx context.Context, entries []pricing.CartEntry) (*GatewayOrder, error)
	LatestPayment(ctx context.Context, gatewayOrderID string) (*revolut.Payment, error)
}

// Confirmation describes the outcome of a ConfirmPayment call.
type Confirmation struct {
	OrderID   uuid.UUID
	PaymentID string
	Status    enums.OrderStatus
	// Result is one of the metrics.Confirm* values.
	Result string
}

// Transitioned reports whether this call moved the order to paid.
func (c *Confirmation) Transitioned() bool {
	return c != nil && c.Result == metrics.ConfirmTransitioned
}

// GatewayOrder is the minimal remote order a client pays against before the
// local order exists.
type GatewayOrder struct {
	ID       string
	Token    string
	Amount   int64
	Currency string
}

// ServiceParams groups the collaborators of the payment service.
type ServiceParams struct {
	Orders    orders.Repository
	Tx        txRunner
	Inventory inventory.Mutator
	Gateway   revolut.Gateway
	Pricing   pricing.Builder
	Notifier  Notifier
	Logger    *logger.Logger
	Metrics   *metrics.PaymentMetrics
	Now       func() time.Time
}

type service struct {
	orders    orders.Repository
	tx        txRunner
	inventory inventory.Mutator
	gateway   revolut.Gateway
	pricing   pricing.Builder
	notifier  Notifier
	logg      *logger.Logger
	metrics   *metrics.PaymentMetrics
	now       func() time.Time
}

// NewService builds the payment service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory mutator required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Pricing == nil {
		return nil, fmt.Errorf("pricing builder required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{
		orders:    params.Orders,
		tx:        params.Tx,
		inventory: params.Inventory,
		gateway:   params.Gateway,
		pricing:   params.Pricing,
		notifier:  params.Notifier,
		logg:      params.Logger,
		metrics:   params.Metrics,
		now:       params.Now,
	}, nil
}

// ConfirmPayment moves the order to paid exactly once. Inventory effects run in
// the same transaction and only for the call that performed the transition.
// The payment id is trusted as received.
func (s *service) ConfirmPayment(ctx context.Context, orderID uuid.UUID, paymentID string) (*Confirmation, error) {
	paymentID = strings.TrimSpace(paymentID)
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if paymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"order_id":   orderID.String(),
		"payment_id": paymentID,
	})

	var confirmation *Confirmation
	err := s.tx.WithTxRetry(ctx, confirmMaxRetries, func(tx *gorm.DB) error {
		confirmation = nil
		repo := s.orders.WithTx(tx)

		moved, err := repo.MarkPaid(ctx, orderID, paymentID, s.now().UTC())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
		}
		if moved {
			items, err := repo.ListItems(ctx, orderID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
			}
			if err := s.inventory.ApplySale(ctx, tx, saleFromItems(items)); err != nil {
				return err
			}
			confirmation = &Confirmation{
				OrderID:   orderID,
				PaymentID: paymentID,
				Status:    enums.OrderStatusPaid,
				Result:    metrics.ConfirmTransitioned,
			}
			return nil
		}

		current, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		confirmation, err = s.resolveExisting(ctx, repo, current, paymentID)
		return err
	})
	if err != nil {
		s.metrics.IncConfirmation(resultForError(err))
		if !pkgerrors.Is(err, pkgerrors.CodeNotFound) && !pkgerrors.Is(err, pkgerrors.CodeValidation) {
			s.logg.Error(ctx, "payment confirmation failed", err)
		}
		return nil, err
	}

	s.metrics.IncConfirmation(confirmation.Result)
	if confirmation.Transitioned() {
		s.logg.Info(ctx, "order paid")
		s.notifyPaid(ctx, orderID)
	} else {
		s.logg.Info(s.logg.WithField(ctx, "result", confirmation.Result), "payment confirmation replayed")
	}
	return confirmation, nil
}

// resolveExisting decides the outcome for an order the CAS did not move.
func (s *service) resolveExisting(ctx context.Context, repo orders.Repository, order *models.Order, paymentID string) (*Confirmation, error) {
	stored := ""
	if order.GatewayPaymentID != nil {
		stored = *order.GatewayPaymentID
	}
	result := &Confirmation{OrderID: order.ID, PaymentID: paymentID, Status: order.Status}

	switch {
	case order.Status.IsSettled():
		if stored != "" && stored != paymentID {
			return nil, conflict(order, paymentID)
		}
		if stored == "" {
			if _, err := repo.BackfillPaymentID(ctx, order.ID, paymentID); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "backfill payment id")
			}
			result.Result = metrics.ConfirmBackfilled
			return result, nil
		}
		result.Result = metrics.ConfirmIdempotent
		return result, nil
	case order.Status == enums.OrderStatusCancelled || order.Status == enums.OrderStatusReimbursed:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order is %s", order.Status)).
			WithDetails(map[string]any{"status": order.Status.String()})
	default:
		return nil, conflict(order, paymentID)
	}
}

func conflict(order *models.Order, paymentID string) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "order already bound to a different payment").
		WithDetails(map[string]any{
			"order_id":   order.ID.String(),
			"payment_id": paymentID,
			"status":     order.Status.String(),
		})
}

func (s *service) notifyPaid(ctx context.Context, orderID uuid.UUID) {
	if s.notifier == nil {
		return
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		s.logg.Error(ctx, "reload paid order for notification", err)
		return
	}
	if strings.TrimSpace(order.BuyerEmail) == "" {
		s.logg.Warn(ctx, "paid order has no buyer email, skipping notification")
		return
	}
	items, err := s.orders.ListItems(ctx, orderID)
	if err != nil {
		s.logg.Error(ctx, "load paid order items for notification", err)
		return
	}
	detail := &orders.OrderDetail{Order: *order, Items: items}
	sellers, err := s.orders.FindSellers(ctx, detail.SellerIDs())
	if err != nil {
		s.logg.Error(ctx, "load sellers for notification", err)
		return
	}
	if err := s.notifier.OrderPaid(ctx, detail, sellers); err != nil {
		s.logg.Error(ctx, "order paid notification failed", err)
	}
}

// CreateGatewayOrder prices the cart and opens a gateway order carrying only
// the amount and currency. The full payload is pushed later by PlaceOrder.
func (s *service) CreateGatewayOrder(ctx context.Context, entries []pricing.CartEntry) (*GatewayOrder, error) {
	quote, err := s.pricing.Price(ctx, entries)
	if err != nil {
		return nil, err
	}
	gw, err := s.gateway.CreateOrder(ctx, revolut.OrderRequest{
		Amount:   quote.GrandMinor,
		Currency: quote.Currency.String(),
	})
	if err != nil {
		s.logg.Error(ctx, "create minimal gateway order failed", err)
		return nil, err
	}
	return &GatewayOrder{
		ID:       gw.ID,
		Token:    gw.Token,
		Amount:   quote.GrandMinor,
		Currency: quote.Currency.String(),
	}, nil
}

// LatestPayment returns the most recent payment attempt on a gateway order.
func (s *service) LatestPayment(ctx context.Context, gatewayOrderID string) (*revolut.Payment, error) {
	gatewayOrderID = strings.TrimSpace(gatewayOrderID)
	if gatewayOrderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order id required")
	}
	payments, err := s.gateway.ListOrderPayments(ctx, gatewayOrderID)
	if err != nil {
		return nil, err
	}
	latest := revolut.LatestPayment(payments)
	if latest == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no payments for order")
	}
	return latest, nil
}

func saleFromItems(items []orders.ItemView) inventory.Sale {
	var sale inventory.Sale
	for _, item := range items {
		switch item.ProductType {
		case enums.ProductKindArt:
			sale.ArtIDs = append(sale.ArtIDs, item.ProductID)
		case enums.ProductKindOther:
			if item.VariantID == nil {
				continue
			}
			sale.Variants = append(sale.Variants, inventory.VariantSale{
				OtherID:   item.ProductID,
				VariantID: *item.VariantID,
				Qty:       1,
			})
		}
	}
	return sale
}

func resultForError(err error) string {
	if pkgerrors.Is(err, pkgerrors.CodeConflict) || pkgerrors.Is(err, pkgerrors.CodeStateConflict) {
		return metrics.ConfirmConflict
	}
	return metrics.ConfirmFailed
}
