package shipping

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/alxgalache/kuadrat-backend/pkg/db/models"
	"github.com/alxgalache/kuadrat-backend/pkg/enums"
	pkgerrors "github.com/alxgalache/kuadrat-backend/pkg/errors"
)

// Selection is the shipping choice a buyer attached to a cart line.
type Selection struct {
	MethodID   uuid.UUID
	MethodName string
	MethodType enums.ShippingMethodType
}

// Quote is the seller's configured method as it stands at pricing time.
type Quote struct {
	MethodID   uuid.UUID
	MethodName string
	MethodType enums.ShippingMethodType
	Cost       decimal.Decimal
}

// Resolver maps a buyer selection onto the seller's active shipping method.
type Resolver interface {
	Resolve(ctx context.Context, sellerID uuid.UUID, selection Selection) (Quote, error)
}

type repository struct {
	db *gorm.DB
}

// NewResolver returns a resolver reading the shipping_methods table.
func NewResolver(db *gorm.DB) (Resolver, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	return &repository{db: db}, nil
}

func (r *repository) Resolve(ctx context.Context, sellerID uuid.UUID, selection Selection) (Quote, error) {
	if selection.MethodID == uuid.Nil {
		return Quote{}, pkgerrors.New(pkgerrors.CodeValidation, "shipping method required")
	}

	var method models.ShippingMethod
	err := r.db.WithContext(ctx).
		Where("id = ? AND seller_id = ? AND active = ?", selection.MethodID, sellerID, true).
		Take(&method).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Quote{}, pkgerrors.New(pkgerrors.CodeValidation, "shipping method unavailable for seller").
				WithDetails(map[string]any{
					"shipping_method_id": selection.MethodID.String(),
					"seller_id":          sellerID.String(),
				})
		}
		return Quote{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipping method")
	}

	if selection.MethodType != "" && selection.MethodType != method.Type {
		return Quote{}, pkgerrors.New(pkgerrors.CodeValidation, "shipping method type mismatch").
			WithDetails(map[string]any{
				"shipping_method_id": method.ID.String(),
				"expected":           method.Type.String(),
				"got":                selection.MethodType.String(),
			})
	}

	name := strings.TrimSpace(method.Name)
	if name == "" {
		name = strings.TrimSpace(selection.MethodName)
	}
	cost := method.Cost
	if method.Type == enums.ShippingMethodPickup {
		cost = decimal.Zero
	}

	return Quote{
		MethodID:   method.ID,
		MethodName: name,
		MethodType: method.Type,
		Cost:       cost.Round(2),
	}, nil
}
