package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/alxgalache/kuadrat-backend/pkg/enums"
	pkgerrors "github.com/alxgalache/kuadrat-backend/pkg/errors"
)

// Sales are attributed to the payment time, falling back to order creation.
const (
	kindTotalsSQL = `
SELECT 'art' AS kind,
  COUNT(*) AS items_sold,
  COALESCE(SUM(i.price_at_purchase), 0) AS revenue,
  COALESCE(SUM(i.shipping_cost), 0) AS shipping
FROM art_order_items i
JOIN arts a ON a.id = i.art_id
JOIN orders o ON o.id = i.order_id
WHERE a.seller_id = ?
  AND o.status IN ?
  AND COALESCE(o.paid_at, o.created_at) >= ?
  AND COALESCE(o.paid_at, o.created_at) < ?
UNION ALL
SELECT 'other' AS kind,
  COUNT(*) AS items_sold,
  COALESCE(SUM(i.price_at_purchase), 0) AS revenue,
  COALESCE(SUM(i.shipping_cost), 0) AS shipping
FROM other_order_items i
JOIN others p ON p.id = i.other_id
JOIN orders o ON o.id = i.order_id
WHERE p.seller_id = ?
  AND o.status IN ?
  AND COALESCE(o.paid_at, o.created_at) >= ?
  AND COALESCE(o.paid_at, o.created_at) < ?
`

	distinctOrdersSQL = `
SELECT COUNT(DISTINCT order_id) FROM (
  SELECT i.order_id
  FROM art_order_items i
  JOIN arts a ON a.id = i.art_id
  JOIN orders o ON o.id = i.order_id
  WHERE a.seller_id = ?
    AND o.status IN ?
    AND COALESCE(o.paid_at, o.created_at) >= ?
    AND COALESCE(o.paid_at, o.created_at) < ?
  UNION
  SELECT i.order_id
  FROM other_order_items i
  JOIN others p ON p.id = i.other_id
  JOIN orders o ON o.id = i.order_id
  WHERE p.seller_id = ?
    AND o.status IN ?
    AND COALESCE(o.paid_at, o.created_at) >= ?
    AND COALESCE(o.paid_at, o.created_at) < ?
) seller_orders
`
)

var (
	rangeFloor   = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	rangeCeiling = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
)

// Range bounds the sale time. Zero values leave that side open. To is exclusive.
type Range struct {
	From time.Time
	To   time.Time
}

// KindTotals aggregates one product kind.
type KindTotals struct {
	ItemsSold int64           `json:"items_sold"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// SellerStats is the rollup served to a seller dashboard.
type SellerStats struct {
	SellerID          uuid.UUID       `json:"seller_id"`
	From              *time.Time      `json:"from,omitempty"`
	To                *time.Time      `json:"to,omitempty"`
	Art               KindTotals      `json:"art"`
	Other             KindTotals      `json:"other"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	ShippingCollected decimal.Decimal `json:"shipping_collected"`
	Orders            int64           `json:"orders"`
}

// Service computes seller sales rollups over settled orders.
type Service interface {
	SellerStats(ctx context.Context, sellerID uuid.UUID, window Range) (*SellerStats, error)
}

type service struct {
	db *gorm.DB
}

// NewService builds a stats service reading from db.
func NewService(db *gorm.DB) (Service, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	return &service{db: db}, nil
}

type kindRow struct {
	Kind      string          `gorm:"column:kind"`
	ItemsSold int64           `gorm:"column:items_sold"`
	Revenue   decimal.Decimal `gorm:"column:revenue"`
	Shipping  decimal.Decimal `gorm:"column:shipping"`
}

func (s *service) SellerStats(ctx context.Context, sellerID uuid.UUID, window Range) (*SellerStats, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	if !window.From.IsZero() && !window.To.IsZero() && !window.From.Before(window.To) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "from must be before to")
	}

	from, to := rangeFloor, rangeCeiling
	result := &SellerStats{
		SellerID:          sellerID,
		Art:               KindTotals{Revenue: decimal.Zero},
		Other:             KindTotals{Revenue: decimal.Zero},
		ShippingCollected: decimal.Zero,
	}
	if !window.From.IsZero() {
		from = window.From.UTC()
		result.From = &from
	}
	if !window.To.IsZero() {
		to = window.To.UTC()
		result.To = &to
	}

	args := []any{sellerID, enums.SettledStatuses, from, to}
	var rows []kindRow
	if err := s.db.WithContext(ctx).Raw(kindTotalsSQL, append(args, args...)...).Scan(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate seller sales")
	}
	for _, row := range rows {
		totals := KindTotals{ItemsSold: row.ItemsSold, Revenue: row.Revenue}
		switch enums.ProductKind(row.Kind) {
		case enums.ProductKindArt:
			result.Art = totals
		case enums.ProductKindOther:
			result.Other = totals
		}
		result.ShippingCollected = result.ShippingCollected.Add(row.Shipping)
	}
	result.TotalRevenue = result.Art.Revenue.Add(result.Other.Revenue)

	if err := s.db.WithContext(ctx).Raw(distinctOrdersSQL, append(args, args...)...).Scan(&result.Orders).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count seller orders")
	}
	return result, nil
}
