// Package dbtest opens throwaway SQLite databases carrying the service schema.
package dbtest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/alxgalache/kuadrat-backend/pkg/db/models"
	"github.com/alxgalache/kuadrat-backend/pkg/enums"
)

// Open returns an isolated in-memory database migrated with every model.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, uuid.NewString()[:8])
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(
		&models.Art{},
		&models.Other{},
		&models.OtherVar{},
		&models.Order{},
		&models.ArtOrderItem{},
		&models.OtherOrderItem{},
		&models.ShippingMethod{},
		&models.Seller{},
		&models.OutboxEvent{},
		&models.OutboxDLQ{},
	); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return conn
}

// SeedArt inserts an approved, visible artwork.
func SeedArt(t *testing.T, db *gorm.DB, sellerID uuid.UUID, name, price string) models.Art {
	t.Helper()
	art := models.Art{
		SellerID:    sellerID,
		Name:        name,
		Description: "<p>" + name + "</p>",
		Price:       decimal.RequireFromString(price),
		Visible:     true,
		Status:      enums.ProductStatusApproved,
		Basename:    strings.ToLower(strings.ReplaceAll(name, " ", "-")) + ".jpg",
		Slug:        strings.ToLower(strings.ReplaceAll(name, " ", "-")),
	}
	if err := db.Create(&art).Error; err != nil {
		t.Fatalf("seed art: %v", err)
	}
	return art
}

// SeedOther inserts an approved product with one variant per stock value.
func SeedOther(t *testing.T, db *gorm.DB, sellerID uuid.UUID, name, price string, stocks ...int) models.Other {
	t.Helper()
	other := models.Other{
		SellerID: sellerID,
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Visible:  true,
		Status:   enums.ProductStatusApproved,
		Basename: strings.ToLower(strings.ReplaceAll(name, " ", "-")) + ".jpg",
	}
	if err := db.Create(&other).Error; err != nil {
		t.Fatalf("seed other: %v", err)
	}
	for i, stock := range stocks {
		variant := models.OtherVar{OtherID: other.ID, Key: fmt.Sprintf("v%d", i+1), Stock: stock}
		if err := db.Create(&variant).Error; err != nil {
			t.Fatalf("seed variant: %v", err)
		}
		other.Variants = append(other.Variants, variant)
	}
	return other
}

// SeedShippingMethod inserts an active shipping option for a seller.
func SeedShippingMethod(t *testing.T, db *gorm.DB, sellerID uuid.UUID, methodType enums.ShippingMethodType, cost string) models.ShippingMethod {
	t.Helper()
	method := models.ShippingMethod{
		ID:       uuid.New(),
		SellerID: sellerID,
		Name:     string(methodType) + " standard",
		Type:     methodType,
		Cost:     decimal.RequireFromString(cost),
		Active:   true,
	}
	if err := db.Create(&method).Error; err != nil {
		t.Fatalf("seed shipping method: %v", err)
	}
	return method
}

// SeedSeller inserts a seller profile.
func SeedSeller(t *testing.T, db *gorm.DB, fullName, email string) models.Seller {
	t.Helper()
	seller := models.Seller{ID: uuid.New(), FullName: fullName, Email: email}
	if err := db.Create(&seller).Error; err != nil {
		t.Fatalf("seed seller: %v", err)
	}
	return seller
}
