package models

import (
	"time"

	"github.com/google/uuid"
)

// Seller is the read-only projection of a seller profile used for notifications.
type Seller struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	FullName  string    `gorm:"column:full_name"`
	Email     string    `gorm:"column:email;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Seller) TableName() string { return "sellers" }
