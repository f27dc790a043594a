package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/alxgalache/kuadrat-backend/pkg/enums"
)

// ShippingSnapshot freezes the shipping method a line was bought with.
type ShippingSnapshot struct {
	MethodID   uuid.UUID                `gorm:"column:method_id;type:uuid"`
	MethodName string                   `gorm:"column:method_name"`
	MethodType enums.ShippingMethodType `gorm:"column:method_type;type:text"`
	Cost       decimal.Decimal          `gorm:"column:cost;type:numeric(10,2);not null;default:0"`
}

// ArtOrderItem is one purchased artwork. Price and shipping are write-once.
type ArtOrderItem struct {
	ID              uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	OrderID         uuid.UUID        `gorm:"column:order_id;type:uuid;not null;index"`
	ArtID           uuid.UUID        `gorm:"column:art_id;type:uuid;not null"`
	PriceAtPurchase decimal.Decimal  `gorm:"column:price_at_purchase;type:numeric(10,2);not null"`
	Shipping        ShippingSnapshot `gorm:"embedded;embeddedPrefix:shipping_"`
	CreatedAt       time.Time        `gorm:"column:created_at;autoCreateTime"`
}

func (ArtOrderItem) TableName() string { return "art_order_items" }

func (i *ArtOrderItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// OtherOrderItem is one purchased unit of a product variant.
type OtherOrderItem struct {
	ID              uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	OrderID         uuid.UUID        `gorm:"column:order_id;type:uuid;not null;index"`
	OtherID         uuid.UUID        `gorm:"column:other_id;type:uuid;not null"`
	OtherVarID      uuid.UUID        `gorm:"column:other_var_id;type:uuid;not null"`
	PriceAtPurchase decimal.Decimal  `gorm:"column:price_at_purchase;type:numeric(10,2);not null"`
	Shipping        ShippingSnapshot `gorm:"embedded;embeddedPrefix:shipping_"`
	CreatedAt       time.Time        `gorm:"column:created_at;autoCreateTime"`
}

func (OtherOrderItem) TableName() string { return "other_order_items" }

func (i *OtherOrderItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
