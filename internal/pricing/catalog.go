package pricing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/alxgalache/kuadrat-backend/pkg/db/models"
)

// Catalog loads products in batches, one query per product kind.
type Catalog interface {
	FindArts(ctx context.Context, ids []uuid.UUID) ([]models.Art, error)
	FindOthers(ctx context.Context, ids []uuid.UUID) ([]models.Other, error)
}

type catalog struct {
	db *gorm.DB
}

// NewCatalog builds a catalog over the arts and others tables.
func NewCatalog(db *gorm.DB) (Catalog, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	return &catalog{db: db}, nil
}

func (c *catalog) FindArts(ctx context.Context, ids []uuid.UUID) ([]models.Art, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var arts []models.Art
	if err := c.db.WithContext(ctx).Where("id IN ?", ids).Find(&arts).Error; err != nil {
		return nil, err
	}
	return arts, nil
}

func (c *catalog) FindOthers(ctx context.Context, ids []uuid.UUID) ([]models.Other, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var others []models.Other
	err := c.db.WithContext(ctx).
		Preload("Variants").
		Where("id IN ?", ids).
		Find(&others).Error
	if err != nil {
		return nil, err
	}
	return others, nil
}
