package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/alxgalache/kuadrat-backend/internal/pricing"
	"github.com/alxgalache/kuadrat-backend/pkg/db"
	"github.com/alxgalache/kuadrat-backend/pkg/db/models"
	"github.com/alxgalache/kuadrat-backend/pkg/enums"
	pkgerrors "github.com/alxgalache/kuadrat-backend/pkg/errors"
	"github.com/alxgalache/kuadrat-backend/pkg/logger"
	"github.com/alxgalache/kuadrat-backend/pkg/metrics"
	"github.com/alxgalache/kuadrat-backend/pkg/revolut"
	"github.com/alxgalache/kuadrat-backend/pkg/security"
	"github.com/alxgalache/kuadrat-backend/pkg/types"
)

const (
	gatewayOrderUniqueIndex = "ux_orders_gateway_order_id"
	gatewayOrderColumn      = "orders.gateway_order_id"
	orderDescription        = "Kuadrat order"
	cancelTimeout           = 10 * time.Second
)

var validate = validator.New()

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service creates orders and serves the public read shape.
type Service interface {
	CreateHostedOrder(ctx context.Context, input CheckoutInput) (*CheckoutResult, error)
	PlaceOrder(ctx context.Context, input CheckoutInput) (*CheckoutResult, error)
	GetByToken(ctx context.Context, token string) (*OrderDetail, error)
}

// ServiceParams groups the collaborators of the order service.
type ServiceParams struct {
	Repo        Repository
	Tx          txRunner
	Pricing     pricing.Builder
	Gateway     revolut.Gateway
	Logger      *logger.Logger
	Metrics     *metrics.PaymentMetrics
	RedirectURL string
	FrontendURL string
	NewToken    func() (string, error)
}

type service struct {
	repo        Repository
	tx          txRunner
	pricing     pricing.Builder
	gateway     revolut.Gateway
	logg        *logger.Logger
	metrics     *metrics.PaymentMetrics
	redirectURL string
	frontendURL string
	newToken    func() (string, error)
}

// NewService builds the order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Pricing == nil {
		return nil, fmt.Errorf("pricing builder required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.NewToken == nil {
		params.NewToken = security.NewOrderToken
	}
	return &service{
		repo:        params.Repo,
		tx:          params.Tx,
		pricing:     params.Pricing,
		gateway:     params.Gateway,
		logg:        params.Logger,
		metrics:     params.Metrics,
		redirectURL: params.RedirectURL,
		frontendURL: strings.TrimRight(params.FrontendURL, "/"),
		newToken:    params.NewToken,
	}, nil
}

// CreateHostedOrder prices the cart, creates the gateway order and only then
// persists the local order. A local failure after the gateway call cancels the
// remote order on a best-effort basis.
func (s *service) CreateHostedOrder(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	input, err := normalizeInput(input)
	if err != nil {
		return nil, err
	}

	quote, err := s.pricing.Price(ctx, input.Items)
	if err != nil {
		return nil, err
	}
	if err := requireContact(input, quote.AllPickup()); err != nil {
		return nil, err
	}

	order, err := s.newOrder(input, quote, enums.OrderStatusPendingPayment)
	if err != nil {
		return nil, err
	}

	gwOrder, err := s.gateway.CreateOrder(ctx, s.gatewayRequest(order, input, quote, true))
	if err != nil {
		s.logg.Error(s.logg.WithOrderID(ctx, order.ID.String()), "gateway order creation failed", err)
		return nil, err
	}

	gwID := gwOrder.ID
	order.GatewayOrderID = &gwID
	if err := s.persist(ctx, order); err != nil {
		s.handleOrphan(ctx, order, gwID, err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "order could not be saved after payment was initiated").
			WithDetails(map[string]any{"gateway_order_id": gwID})
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":         order.ID.String(),
		"gateway_order_id": gwID,
		"amount":           quote.GrandMinor,
	})
	s.logg.Info(logCtx, "hosted order created")

	return &CheckoutResult{Order: order, Quote: quote, GatewayOrder: gwOrder}, nil
}

// PlaceOrder persists the order against an existing gateway order and then
// pushes the full payload to it. A failed update leaves the order pending.
func (s *service) PlaceOrder(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	input, err := normalizeInput(input)
	if err != nil {
		return nil, err
	}
	if input.GatewayOrderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order id required")
	}

	quote, err := s.pricing.Price(ctx, input.Items)
	if err != nil {
		return nil, err
	}
	if err := requireContact(input, quote.AllPickup()); err != nil {
		return nil, err
	}

	order, err := s.newOrder(input, quote, enums.OrderStatusPending)
	if err != nil {
		return nil, err
	}
	gwID := input.GatewayOrderID
	order.GatewayOrderID = &gwID

	if err := s.persist(ctx, order); err != nil {
		if db.IsUniqueViolation(err, gatewayOrderUniqueIndex, gatewayOrderColumn) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "gateway order already used")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist order")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":         order.ID.String(),
		"gateway_order_id": gwID,
	})

	gwOrder, err := s.gateway.UpdateOrder(ctx, gwID, s.gatewayRequest(order, input, quote, false))
	if err != nil {
		s.logg.Error(logCtx, "gateway order update failed, order left pending", err)
		if pkgerrors.Is(err, pkgerrors.CodeGateway) {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "update gateway order")
	}

	s.logg.Info(logCtx, "order placed")
	return &CheckoutResult{Order: order, Quote: quote, GatewayOrder: gwOrder}, nil
}

// GetByToken serves the public order view. Malformed and unknown tokens are
// indistinguishable to the caller.
func (s *service) GetByToken(ctx context.Context, token string) (*OrderDetail, error) {
	token = strings.TrimSpace(token)
	if !security.ValidOrderToken(token) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}

	order, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	items, err := s.repo.ListItems(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
	}
	return &OrderDetail{Order: *order, Items: items}, nil
}

func (s *service) persist(ctx context.Context, order *models.Order) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).CreateOrder(ctx, order)
	})
}

func (s *service) handleOrphan(ctx context.Context, order *models.Order, gwID string, cause error) {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":         order.ID.String(),
		"gateway_order_id": gwID,
		"total_price":      order.TotalPrice.String(),
	})
	s.metrics.IncOrphan()
	s.logg.Error(logCtx, "orphaned gateway order: local order not persisted", cause)

	cancelCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelTimeout)
	defer cancel()
	if _, err := s.gateway.CancelOrder(cancelCtx, gwID); err != nil {
		s.logg.Error(logCtx, "cancel orphaned gateway order failed", err)
		return
	}
	s.logg.Warn(logCtx, "orphaned gateway order cancelled")
}

func (s *service) newOrder(input CheckoutInput, quote *pricing.Quote, status enums.OrderStatus) (*models.Order, error) {
	token, err := s.newToken()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order token")
	}

	order := &models.Order{
		ID:         uuid.New(),
		BuyerEmail: input.Email,
		TotalPrice: quote.TotalPrice,
		Currency:   quote.Currency,
		Status:     status,
		Token:      token,
	}
	if input.Buyer != nil {
		buyerID := input.Buyer.ID
		order.BuyerID = &buyerID
	}
	if input.Phone != "" {
		phone := input.Phone
		order.BuyerPhone = &phone
	}
	if input.FullName != "" {
		name := input.FullName
		order.BuyerName = &name
	}
	if input.Delivery != nil {
		order.Delivery = *input.Delivery
	}
	if input.Invoicing != nil {
		order.Invoicing = *input.Invoicing
	}

	for _, item := range quote.Items {
		snapshot := models.ShippingSnapshot{
			MethodID:   item.Shipping.MethodID,
			MethodName: item.Shipping.MethodName,
			MethodType: item.Shipping.MethodType,
			Cost:       item.ShippingCost,
		}
		switch item.Kind {
		case enums.ProductKindArt:
			order.ArtItems = append(order.ArtItems, models.ArtOrderItem{
				ArtID:           item.ProductID,
				PriceAtPurchase: item.PriceAtPurchase,
				Shipping:        snapshot,
			})
		case enums.ProductKindOther:
			order.OtherItems = append(order.OtherItems, models.OtherOrderItem{
				OtherID:         item.ProductID,
				OtherVarID:      *item.VariantID,
				PriceAtPurchase: item.PriceAtPurchase,
				Shipping:        snapshot,
			})
		}
	}
	return order, nil
}

func (s *service) gatewayRequest(order *models.Order, input CheckoutInput, quote *pricing.Quote, create bool) revolut.OrderRequest {
	req := revolut.OrderRequest{
		Amount:      quote.GrandMinor,
		Currency:    quote.Currency.String(),
		Description: orderDescription,
		LineItems:   quote.LineItems,
		MerchantOrderData: &revolut.MerchantOrderData{
			Reference: order.ID.String(),
		},
		Customer: &revolut.Customer{
			FullName: input.FullName,
			Email:    input.Email,
			Phone:    input.Phone,
		},
		Shipping: ShippingBlock(input, quote.AllPickup()),
	}
	if s.frontendURL != "" {
		req.MerchantOrderData.URL = fmt.Sprintf("%s/pedido/%s", s.frontendURL, order.Token)
	}
	if create {
		req.RedirectURL = s.redirectURL
	}
	return req
}

// ShippingBlock picks the address sent to the gateway: the invoicing address
// (falling back to delivery) when every line is picked up, the delivery
// address otherwise. Buyer contact is always attached.
func ShippingBlock(input CheckoutInput, allPickup bool) *revolut.Shipping {
	address := shippingAddress(input, allPickup)
	block := &revolut.Shipping{
		Contact: &revolut.ShippingContact{
			Name:  input.FullName,
			Email: input.Email,
			Phone: input.Phone,
		},
	}
	if address != nil {
		block.Address = &revolut.ShippingAddress{
			StreetLine1: address.Line1,
			StreetLine2: address.Line2,
			Region:      address.Province,
			City:        address.City,
			CountryCode: address.Country,
			Postcode:    address.PostalCode,
		}
	}
	return block
}

// shippingAddress picks the address sent to the gateway: invoicing first when
// nothing ships, the delivery address otherwise.
func shippingAddress(input CheckoutInput, allPickup bool) *types.AddressSnapshot {
	if allPickup {
		return firstPresent(input.Invoicing, input.Delivery)
	}
	return firstPresent(input.Delivery)
}

// requireContact rejects orders that send an address without a phone.
func requireContact(input CheckoutInput, allPickup bool) error {
	if shippingAddress(input, allPickup) != nil && input.Phone == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "phone and email are required with a shipping address")
	}
	return nil
}

func firstPresent(addresses ...*types.AddressSnapshot) *types.AddressSnapshot {
	for _, addr := range addresses {
		if addr != nil && !addr.IsZero() {
			return addr
		}
	}
	return nil
}

func normalizeInput(input CheckoutInput) (CheckoutInput, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Phone = strings.TrimSpace(input.Phone)
	input.FullName = strings.TrimSpace(input.FullName)
	input.GatewayOrderID = strings.TrimSpace(input.GatewayOrderID)
	if input.Email == "" && input.Buyer != nil {
		input.Email = strings.ToLower(strings.TrimSpace(input.Buyer.Email))
	}

	if input.Email == "" {
		return input, pkgerrors.New(pkgerrors.CodeValidation, "email required")
	}
	if err := validate.Var(input.Email, "email"); err != nil {
		return input, pkgerrors.New(pkgerrors.CodeValidation, "email is invalid")
	}
	if len(input.Items) == 0 {
		return input, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	for i, item := range input.Items {
		if item.Shipping == nil {
			return input, pkgerrors.New(pkgerrors.CodeValidation, "shipping selection required for every item").
				WithDetails(map[string]any{"index": i})
		}
	}

	if input.Delivery != nil {
		normalized := input.Delivery.Normalize()
		input.Delivery = &normalized
	}
	if input.Invoicing != nil {
		normalized := input.Invoicing.Normalize()
		input.Invoicing = &normalized
	}
	return input, nil
}
