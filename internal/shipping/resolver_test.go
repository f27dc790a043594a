package shipping

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/alxgalache/kuadrat-backend/pkg/db/dbtest"
	"github.com/alxgalache/kuadrat-backend/pkg/enums"
	pkgerrors "github.com/alxgalache/kuadrat-backend/pkg/errors"
)

func TestResolveUsesSellerConfiguredCost(t *testing.T) {
	db := dbtest.Open(t)
	sellerID := uuid.New()
	method := dbtest.SeedShippingMethod(t, db, sellerID, enums.ShippingMethodDelivery, "5.00")

	resolver, err := NewResolver(db)
	require.NoError(t, err)

	quote, err := resolver.Resolve(context.Background(), sellerID, Selection{
		MethodID:   method.ID,
		MethodName: "client supplied name",
		MethodType: enums.ShippingMethodDelivery,
	})
	require.NoError(t, err)
	require.Equal(t, method.ID, quote.MethodID)
	require.Equal(t, method.Name, quote.MethodName)
	require.Equal(t, "5", quote.Cost.String())
}

func TestResolvePickupIsFree(t *testing.T) {
	db := dbtest.Open(t)
	sellerID := uuid.New()
	method := dbtest.SeedShippingMethod(t, db, sellerID, enums.ShippingMethodPickup, "3.50")

	resolver, err := NewResolver(db)
	require.NoError(t, err)

	quote, err := resolver.Resolve(context.Background(), sellerID, Selection{MethodID: method.ID})
	require.NoError(t, err)
	require.True(t, quote.Cost.IsZero())
	require.Equal(t, enums.ShippingMethodPickup, quote.MethodType)
}

func TestResolveRejectsOtherSellersMethod(t *testing.T) {
	db := dbtest.Open(t)
	method := dbtest.SeedShippingMethod(t, db, uuid.New(), enums.ShippingMethodDelivery, "5.00")

	resolver, err := NewResolver(db)
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), uuid.New(), Selection{MethodID: method.ID})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestResolveRejectsTypeMismatch(t *testing.T) {
	db := dbtest.Open(t)
	sellerID := uuid.New()
	method := dbtest.SeedShippingMethod(t, db, sellerID, enums.ShippingMethodDelivery, "5.00")

	resolver, err := NewResolver(db)
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), sellerID, Selection{
		MethodID:   method.ID,
		MethodType: enums.ShippingMethodPickup,
	})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestResolveRequiresMethodID(t *testing.T) {
	db := dbtest.Open(t)
	resolver, err := NewResolver(db)
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), uuid.New(), Selection{})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}
