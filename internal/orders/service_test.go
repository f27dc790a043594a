package orders

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/alxgalache/kuadrat-backend/internal/pricing"
	"github.com/alxgalache/kuadrat-backend/internal/shipping"
	"github.com/alxgalache/kuadrat-backend/pkg/auth"
	"github.com/alxgalache/kuadrat-backend/pkg/db"
	"github.com/alxgalache/kuadrat-backend/pkg/db/dbtest"
	"github.com/alxgalache/kuadrat-backend/pkg/db/models"
	"github.com/alxgalache/kuadrat-backend/pkg/enums"
	pkgerrors "github.com/alxgalache/kuadrat-backend/pkg/errors"
	"github.com/alxgalache/kuadrat-backend/pkg/logger"
	"github.com/alxgalache/kuadrat-backend/pkg/metrics"
	"github.com/alxgalache/kuadrat-backend/pkg/revolut/revoluttest"
	"github.com/alxgalache/kuadrat-backend/pkg/security"
	"github.com/alxgalache/kuadrat-backend/pkg/types"
)

type fixture struct {
	conn     *gorm.DB
	gateway  *revoluttest.Gateway
	registry *prometheus.Registry
	svc      Service
	sellerID uuid.UUID
	art      models.Art
	other    models.Other
	delivery models.ShippingMethod
	pickup   models.ShippingMethod
}

func newFixture(t *testing.T, repo func(Repository) Repository) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	f := &fixture{
		conn:     conn,
		gateway:  revoluttest.New(),
		registry: prometheus.NewRegistry(),
		sellerID: uuid.New(),
	}
	f.art = dbtest.SeedArt(t, conn, f.sellerID, "Blue Horizon", "120.00")
	f.other = dbtest.SeedOther(t, conn, f.sellerID, "Tote Bag", "15.00", 3)
	f.delivery = dbtest.SeedShippingMethod(t, conn, f.sellerID, enums.ShippingMethodDelivery, "5.00")
	f.pickup = dbtest.SeedShippingMethod(t, conn, f.sellerID, enums.ShippingMethodPickup, "0.00")

	catalog, err := pricing.NewCatalog(conn)
	require.NoError(t, err)
	resolver, err := shipping.NewResolver(conn)
	require.NoError(t, err)
	builder, err := pricing.NewBuilder(catalog, resolver, pricing.Options{FrontendURL: "https://kuadrat.test"})
	require.NoError(t, err)

	var ordersRepo Repository = NewRepository(conn)
	if repo != nil {
		ordersRepo = repo(ordersRepo)
	}

	svc, err := NewService(ServiceParams{
		Repo:        ordersRepo,
		Tx:          db.NewFromConn(conn),
		Pricing:     builder,
		Gateway:     f.gateway,
		Logger:      logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Metrics:     metrics.NewPaymentMetrics(f.registry),
		RedirectURL: "https://kuadrat.test/checkout/done",
		FrontendURL: "https://kuadrat.test",
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) artInput(method uuid.UUID) CheckoutInput {
	return CheckoutInput{
		Email:    "Buyer@Example.com ",
		Phone:    "+34600000000",
		FullName: "Ana Buyer",
		Delivery: &types.AddressSnapshot{Line1: "Calle Mayor 1", City: "Madrid", PostalCode: "28013", Country: "es"},
		Items: []pricing.CartEntry{{
			Kind:      enums.ProductKindArt,
			ProductID: f.art.ID,
			Shipping:  &shipping.Selection{MethodID: method},
		}},
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		var total float64
		for _, m := range family.GetMetric() {
			total += m.GetCounter().GetValue()
		}
		return total
	}
	return 0
}

func TestCreateHostedOrderPersistsAfterGateway(t *testing.T) {
	f := newFixture(t, nil)

	result, err := f.svc.CreateHostedOrder(context.Background(), f.artInput(f.delivery.ID))
	require.NoError(t, err)

	require.Len(t, f.gateway.Created, 1)
	req := f.gateway.Created[0]
	assert.Equal(t, int64(12500), req.Amount)
	assert.Equal(t, "EUR", req.Currency)
	assert.Equal(t, "https://kuadrat.test/checkout/done", req.RedirectURL)
	assert.Equal(t, result.Order.ID.String(), req.MerchantOrderData.Reference)
	assert.Equal(t, "buyer@example.com", req.Customer.Email)
	require.NotNil(t, req.Shipping.Address)
	assert.Equal(t, "ES", req.Shipping.Address.CountryCode)

	var stored models.Order
	require.NoError(t, f.conn.First(&stored, "id = ?", result.Order.ID).Error)
	assert.Equal(t, enums.OrderStatusPendingPayment, stored.Status)
	require.NotNil(t, stored.GatewayOrderID)
	assert.Equal(t, result.GatewayOrder.ID, *stored.GatewayOrderID)
	assert.Nil(t, stored.GatewayPaymentID)
	assert.Nil(t, stored.BuyerID)
	assert.True(t, security.ValidOrderToken(stored.Token))
	assert.Equal(t, "120", stored.TotalPrice.String())

	var items []models.ArtOrderItem
	require.NoError(t, f.conn.Where("order_id = ?", stored.ID).Find(&items).Error)
	require.Len(t, items, 1)
	assert.Equal(t, "5", items[0].Shipping.Cost.String())
	assert.Equal(t, f.delivery.ID, items[0].Shipping.MethodID)
}

func TestCreateHostedOrderGatewayFailureWritesNothing(t *testing.T) {
	f := newFixture(t, nil)
	f.gateway.CreateErr = pkgerrors.New(pkgerrors.CodeGateway, "revolut create_order failed")

	_, err := f.svc.CreateHostedOrder(context.Background(), f.artInput(f.delivery.ID))
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeGateway))

	var count int64
	require.NoError(t, f.conn.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

type failingRepo struct {
	Repository
}

func (r failingRepo) WithTx(*gorm.DB) Repository { return r }

func (failingRepo) CreateOrder(context.Context, *models.Order) error {
	return errors.New("disk full")
}

func TestCreateHostedOrderLocalFailureCancelsGatewayOrder(t *testing.T) {
	f := newFixture(t, func(r Repository) Repository { return failingRepo{Repository: r} })

	_, err := f.svc.CreateHostedOrder(context.Background(), f.artInput(f.delivery.ID))
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInternal, typed.Code())

	assert.Equal(t, []string{"gw-order-1"}, f.gateway.Cancelled)
	assert.Equal(t, float64(1), counterValue(t, f.registry, "orphaned_gateway_orders_total"))
}

func TestCreateHostedOrderValidation(t *testing.T) {
	f := newFixture(t, nil)

	input := f.artInput(f.delivery.ID)
	input.Email = "not-an-email"
	_, err := f.svc.CreateHostedOrder(context.Background(), input)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	input = f.artInput(f.delivery.ID)
	input.Phone = ""
	_, err = f.svc.CreateHostedOrder(context.Background(), input)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	input = f.artInput(f.delivery.ID)
	input.Items[0].Shipping = nil
	_, err = f.svc.CreateHostedOrder(context.Background(), input)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	assert.Zero(t, f.gateway.CreatedCount())
}

func TestPickupOrderSendingInvoicingAddressRequiresPhone(t *testing.T) {
	f := newFixture(t, nil)

	input := f.artInput(f.pickup.ID)
	input.Delivery = nil
	input.Invoicing = &types.AddressSnapshot{Line1: "Calle 1", City: "Madrid", PostalCode: "28001", Country: "ES"}
	input.Phone = ""
	_, err := f.svc.CreateHostedOrder(context.Background(), input)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	input.GatewayOrderID = "gw-existing"
	_, err = f.svc.PlaceOrder(context.Background(), input)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	assert.Zero(t, f.gateway.CreatedCount())
	assert.Empty(t, f.gateway.Updated)
	var count int64
	require.NoError(t, f.conn.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestPickupOrderWithoutAddressNeedsNoPhone(t *testing.T) {
	f := newFixture(t, nil)

	input := f.artInput(f.pickup.ID)
	input.Delivery = nil
	input.Phone = ""
	result, err := f.svc.CreateHostedOrder(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, f.gateway.Created, 1)
	assert.Nil(t, f.gateway.Created[0].Shipping.Address)
	assert.Equal(t, enums.OrderStatusPendingPayment, result.Order.Status)
}

func TestCreateHostedOrderRecordsAuthenticatedBuyer(t *testing.T) {
	f := newFixture(t, nil)
	buyer := &auth.Buyer{ID: uuid.New(), Email: "member@example.com", Role: enums.RoleBuyer}

	input := f.artInput(f.delivery.ID)
	input.Buyer = buyer
	input.Email = ""
	result, err := f.svc.CreateHostedOrder(context.Background(), input)
	require.NoError(t, err)
	require.NotNil(t, result.Order.BuyerID)
	assert.Equal(t, buyer.ID, *result.Order.BuyerID)
	assert.Equal(t, "member@example.com", result.Order.BuyerEmail)
}

func TestPlaceOrderPersistsThenPatchesGateway(t *testing.T) {
	f := newFixture(t, nil)
	variantID := f.other.Variants[0].ID

	input := f.artInput(f.delivery.ID)
	input.GatewayOrderID = "gw-existing"
	input.Items = append(input.Items,
		pricing.CartEntry{Kind: enums.ProductKindOther, ProductID: f.other.ID, VariantID: &variantID, Shipping: &shipping.Selection{MethodID: f.delivery.ID}},
		pricing.CartEntry{Kind: enums.ProductKindOther, ProductID: f.other.ID, VariantID: &variantID, Shipping: &shipping.Selection{MethodID: f.delivery.ID}},
	)

	result, err := f.svc.PlaceOrder(context.Background(), input)
	require.NoError(t, err)

	require.Len(t, f.gateway.Updated, 1)
	assert.Equal(t, "gw-existing", f.gateway.Updated[0].OrderID)
	assert.Equal(t, int64(12000+3000+500+500), f.gateway.Updated[0].Request.Amount)
	assert.Empty(t, f.gateway.Updated[0].Request.RedirectURL)

	var stored models.Order
	require.NoError(t, f.conn.First(&stored, "id = ?", result.Order.ID).Error)
	assert.Equal(t, enums.OrderStatusPending, stored.Status)
	assert.Equal(t, "150", stored.TotalPrice.String())

	var otherItems []models.OtherOrderItem
	require.NoError(t, f.conn.Where("order_id = ?", stored.ID).Order("created_at").Find(&otherItems).Error)
	require.Len(t, otherItems, 2)
}

func TestPlaceOrderRequiresGatewayOrderID(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.PlaceOrder(context.Background(), f.artInput(f.delivery.ID))
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestPlaceOrderRejectsReusedGatewayOrder(t *testing.T) {
	f := newFixture(t, nil)

	input := f.artInput(f.delivery.ID)
	input.GatewayOrderID = "gw-existing"
	_, err := f.svc.PlaceOrder(context.Background(), input)
	require.NoError(t, err)

	_, err = f.svc.PlaceOrder(context.Background(), input)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict), "got %v", err)
	assert.Len(t, f.gateway.Updated, 1)
}

func TestPlaceOrderGatewayFailureLeavesOrderPending(t *testing.T) {
	f := newFixture(t, nil)
	f.gateway.UpdateErr = errors.New("connection reset")

	input := f.artInput(f.delivery.ID)
	input.GatewayOrderID = "gw-existing"
	_, err := f.svc.PlaceOrder(context.Background(), input)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeGateway))

	var stored models.Order
	require.NoError(t, f.conn.First(&stored, "gateway_order_id = ?", "gw-existing").Error)
	assert.Equal(t, enums.OrderStatusPending, stored.Status)
}

func TestGetByTokenReturnsUnionOfItems(t *testing.T) {
	f := newFixture(t, nil)
	variantID := f.other.Variants[0].ID

	input := f.artInput(f.delivery.ID)
	input.Items = append(input.Items, pricing.CartEntry{
		Kind:      enums.ProductKindOther,
		ProductID: f.other.ID,
		VariantID: &variantID,
		Shipping:  &shipping.Selection{MethodID: f.pickup.ID},
	})
	result, err := f.svc.CreateHostedOrder(context.Background(), input)
	require.NoError(t, err)

	detail, err := f.svc.GetByToken(context.Background(), result.Order.Token)
	require.NoError(t, err)
	assert.Equal(t, result.Order.ID, detail.Order.ID)
	require.Len(t, detail.Items, 2)

	kinds := map[enums.ProductKind]ItemView{}
	for _, item := range detail.Items {
		kinds[item.ProductType] = item
	}
	require.Contains(t, kinds, enums.ProductKindArt)
	require.Contains(t, kinds, enums.ProductKindOther)
	assert.Nil(t, kinds[enums.ProductKindArt].VariantID)
	require.NotNil(t, kinds[enums.ProductKindOther].VariantID)
	assert.Equal(t, variantID, *kinds[enums.ProductKindOther].VariantID)
	assert.Equal(t, enums.ShippingMethodPickup, kinds[enums.ProductKindOther].ShippingMethodType)
	assert.Equal(t, "5", detail.ShippingTotal().String())
	assert.Equal(t, []uuid.UUID{f.sellerID}, detail.SellerIDs())
}

func TestGetByTokenUnknownOrMalformed(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.GetByToken(context.Background(), "short")
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	token, err := security.NewOrderToken()
	require.NoError(t, err)
	_, err = f.svc.GetByToken(context.Background(), token)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestShippingBlock(t *testing.T) {
	delivery := &types.AddressSnapshot{Line1: "Delivery 1", City: "Madrid", PostalCode: "28001", Country: "ES"}
	invoicing := &types.AddressSnapshot{Line1: "Invoice 9", City: "Sevilla", PostalCode: "41001", Country: "ES"}
	input := CheckoutInput{Email: "a@b.co", Phone: "1", FullName: "A", Delivery: delivery, Invoicing: invoicing}

	block := ShippingBlock(input, true)
	require.NotNil(t, block.Address)
	assert.Equal(t, "Invoice 9", block.Address.StreetLine1)
	assert.Equal(t, "a@b.co", block.Contact.Email)

	input.Invoicing = nil
	block = ShippingBlock(input, true)
	assert.Equal(t, "Delivery 1", block.Address.StreetLine1)

	input.Invoicing = invoicing
	block = ShippingBlock(input, false)
	assert.Equal(t, "Delivery 1", block.Address.StreetLine1)

	input.Delivery = nil
	block = ShippingBlock(input, false)
	assert.Nil(t, block.Address)
	assert.Equal(t, "1", block.Contact.Phone)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}
