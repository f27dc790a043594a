package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/alxgalache/kuadrat-backend/pkg/enums"
	"github.com/alxgalache/kuadrat-backend/pkg/types"
)

// Order is a guest checkout. BuyerID is informational and only set when the
// request carried a valid buyer token.
type Order struct {
	ID               uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	BuyerID          *uuid.UUID            `gorm:"column:buyer_id;type:uuid"`
	BuyerEmail       string                `gorm:"column:buyer_email;not null"`
	BuyerPhone       *string               `gorm:"column:buyer_phone"`
	BuyerName        *string               `gorm:"column:buyer_name"`
	TotalPrice       decimal.Decimal       `gorm:"column:total_price;type:numeric(10,2);not null"`
	Currency         enums.Currency        `gorm:"column:currency;type:text;not null;default:'EUR'"`
	Status           enums.OrderStatus     `gorm:"column:status;type:text;not null"`
	Token            string                `gorm:"column:token;not null;uniqueIndex"`
	Delivery         types.AddressSnapshot `gorm:"embedded;embeddedPrefix:delivery_"`
	Invoicing        types.AddressSnapshot `gorm:"embedded;embeddedPrefix:invoicing_"`
	GatewayOrderID   *string               `gorm:"column:gateway_order_id;uniqueIndex:ux_orders_gateway_order_id"`
	GatewayPaymentID *string               `gorm:"column:gateway_payment_id"`
	PaidAt           *time.Time            `gorm:"column:paid_at"`
	ArtItems         []ArtOrderItem        `gorm:"foreignKey:OrderID"`
	OtherItems       []OtherOrderItem      `gorm:"foreignKey:OrderID"`
	CreatedAt        time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
