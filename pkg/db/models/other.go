package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/alxgalache/kuadrat-backend/pkg/enums"
)

// Other is a variant-stocked product; inventory lives on its OtherVar rows.
type Other struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	SellerID    uuid.UUID           `gorm:"column:seller_id;type:uuid;not null"`
	Name        string              `gorm:"column:name;not null"`
	Description string              `gorm:"column:description"`
	Price       decimal.Decimal     `gorm:"column:price;type:numeric(10,2);not null"`
	IsSold      bool                `gorm:"column:is_sold;not null;default:false"`
	Visible     bool                `gorm:"column:visible;not null"`
	Status      enums.ProductStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	Basename    string              `gorm:"column:basename"`
	Slug        string              `gorm:"column:slug"`
	Variants    []OtherVar          `gorm:"foreignKey:OtherID"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (Other) TableName() string { return "others" }

func (o *Other) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// OtherVar is a purchasable option (size, colour, ...) with its own stock.
type OtherVar struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OtherID   uuid.UUID `gorm:"column:other_id;type:uuid;not null"`
	Key       string    `gorm:"column:key"`
	Stock     int       `gorm:"column:stock;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (OtherVar) TableName() string { return "other_vars" }

func (v *OtherVar) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
