package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alxgalache/kuadrat-backend/pkg/enums"
)

// ShippingMethod is a seller-configured delivery or pickup option. It is
// managed elsewhere and only read during pricing.
type ShippingMethod struct {
	ID        uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	SellerID  uuid.UUID                `gorm:"column:seller_id;type:uuid;not null"`
	Name      string                   `gorm:"column:name;not null"`
	Type      enums.ShippingMethodType `gorm:"column:type;type:text;not null"`
	Cost      decimal.Decimal          `gorm:"column:cost;type:numeric(10,2);not null;default:0"`
	Active    bool                     `gorm:"column:active;not null"`
	CreatedAt time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (ShippingMethod) TableName() string { return "shipping_methods" }
