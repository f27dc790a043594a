package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/alxgalache/kuadrat-backend/pkg/enums"
)

// Art is a unique artwork: one unit of inventory, sold at most once.
type Art struct {
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
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (Art) TableName() string { return "arts" }

func (a *Art) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
