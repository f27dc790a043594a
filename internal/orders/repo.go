package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/alxgalache/kuadrat-backend/pkg/db/models"
	"github.com/alxgalache/kuadrat-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// CreateOrder inserts the order row, then its art and other items.
func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	db := r.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Create(order).Error; err != nil {
		return err
	}
	for i := range order.ArtItems {
		order.ArtItems[i].OrderID = order.ID
	}
	for i := range order.OtherItems {
		order.OtherItems[i].OrderID = order.ID
	}
	if len(order.ArtItems) > 0 {
		if err := db.Create(&order.ArtItems).Error; err != nil {
			return err
		}
	}
	if len(order.OtherItems) > 0 {
		if err := db.Create(&order.OtherItems).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByToken(ctx context.Context, token string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("token = ?", token).Take(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

const listItemsQuery = `
SELECT i.id AS id, 'art' AS product_type, i.art_id AS product_id, NULL AS variant_id,
	a.seller_id, a.name, a.basename, i.price_at_purchase,
	i.shipping_method_id, i.shipping_method_name, i.shipping_method_type, i.shipping_cost,
	i.created_at AS created_at
FROM art_order_items i
JOIN arts a ON a.id = i.art_id
WHERE i.order_id = ?
UNION ALL
SELECT i.id AS id, 'other' AS product_type, i.other_id AS product_id, i.other_var_id AS variant_id,
	o.seller_id, o.name, o.basename, i.price_at_purchase,
	i.shipping_method_id, i.shipping_method_name, i.shipping_method_type, i.shipping_cost,
	i.created_at AS created_at
FROM other_order_items i
JOIN others o ON o.id = i.other_id
WHERE i.order_id = ?
ORDER BY created_at ASC, id ASC
`

// ListItems returns every item of the order, both kinds, ordered by creation.
func (r *repository) ListItems(ctx context.Context, orderID uuid.UUID) ([]ItemView, error) {
	var items []ItemView
	if err := r.db.WithContext(ctx).Raw(listItemsQuery, orderID, orderID).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) FindSellers(ctx context.Context, ids []uuid.UUID) ([]models.Seller, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var sellers []models.Seller
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&sellers).Error; err != nil {
		return nil, err
	}
	return sellers, nil
}

// FindAwaitingPayment lists unpaid orders with a gateway order whose creation
// falls inside the window, oldest first.
func (r *repository) FindAwaitingPayment(ctx context.Context, createdAfter, createdBefore time.Time, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("status IN ?", enums.AwaitingPaymentStatuses).
		Where("gateway_order_id IS NOT NULL AND gateway_order_id <> ''").
		Where("created_at > ? AND created_at <= ?", createdAfter, createdBefore).
		Order("created_at ASC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// MarkPaid moves an unpaid order to paid. It reports true only when this call
// performed the transition; a stored payment id different from paymentID
// blocks it.
func (r *repository) MarkPaid(ctx context.Context, orderID uuid.UUID, paymentID string, paidAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE orders
		SET status = ?,
			gateway_payment_id = ?,
			paid_at = ?,
			updated_at = ?
		WHERE id = ?
			AND status IN ?
			AND (gateway_payment_id IS NULL OR gateway_payment_id = ?)
	`, enums.OrderStatusPaid, paymentID, paidAt, paidAt, orderID, enums.AwaitingPaymentStatuses, paymentID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// BackfillPaymentID records the payment id on an order that has none.
func (r *repository) BackfillPaymentID(ctx context.Context, orderID uuid.UUID, paymentID string) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE orders
		SET gateway_payment_id = COALESCE(gateway_payment_id, ?),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND gateway_payment_id IS NULL
	`, paymentID, orderID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
