package inventory

import (
	"bytes"
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/alxgalache/kuadrat-backend/pkg/db/models"
	pkgerrors "github.com/alxgalache/kuadrat-backend/pkg/errors"
	"github.com/alxgalache/kuadrat-backend/pkg/logger"
)

// Mutator applies sale effects to product inventory. Every operation runs on
// the caller's transaction and is safe to repeat.
type Mutator interface {
	MarkUniqueSold(ctx context.Context, tx *gorm.DB, artID uuid.UUID) (bool, error)
	DecrementVariantStock(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) (int, error)
	RecomputeParentSoldFlag(ctx context.Context, tx *gorm.DB, otherID uuid.UUID) (bool, error)
	ApplySale(ctx context.Context, tx *gorm.DB, sale Sale) error
}

// VariantSale is the number of units sold of one variant.
type VariantSale struct {
	OtherID   uuid.UUID
	VariantID uuid.UUID
	Qty       int
}

// Sale is the inventory footprint of one paid order.
type Sale struct {
	ArtIDs   []uuid.UUID
	Variants []VariantSale
}

type mutator struct {
	logg *logger.Logger
}

// NewMutator builds the SQL-backed inventory mutator.
func NewMutator(logg *logger.Logger) Mutator {
	return &mutator{logg: logg}
}

var errTxRequired = pkgerrors.New(pkgerrors.CodeInternal, "transaction required for inventory mutation")

// MarkUniqueSold flips the artwork to sold. It reports false when the row was
// already sold (or does not exist).
func (m *mutator) MarkUniqueSold(ctx context.Context, tx *gorm.DB, artID uuid.UUID) (bool, error) {
	if tx == nil {
		return false, errTxRequired
	}
	res := tx.WithContext(ctx).Exec(`
		UPDATE arts
		SET is_sold = true,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND is_sold = false
	`, artID)
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "mark art sold")
	}
	return res.RowsAffected == 1, nil
}

// DecrementVariantStock removes qty units from the variant, never going below
// zero. It returns the number of units actually removed.
func (m *mutator) DecrementVariantStock(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) (int, error) {
	if tx == nil {
		return 0, errTxRequired
	}
	if qty <= 0 {
		return 0, nil
	}

	var variant models.OtherVar
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "other_id", "stock").
		Where("id = ?", variantID).
		Take(&variant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant stock")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE other_vars
		SET stock = CASE WHEN stock > ? THEN stock - ? ELSE 0 END,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, qty, qty, variantID)
	if res.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrement variant stock")
	}

	removed := qty
	if variant.Stock < qty {
		removed = variant.Stock
		if removed < 0 {
			removed = 0
		}
		if m.logg != nil {
			logCtx := m.logg.WithFields(ctx, map[string]any{
				"variant_id": variantID.String(),
				"stock":      variant.Stock,
				"requested":  qty,
			})
			m.logg.Warn(logCtx, "variant stock clamped at zero")
		}
	}
	return removed, nil
}

// RecomputeParentSoldFlag marks the product sold once none of its variants has
// stock left. The flag is never cleared here.
func (m *mutator) RecomputeParentSoldFlag(ctx context.Context, tx *gorm.DB, otherID uuid.UUID) (bool, error) {
	if tx == nil {
		return false, errTxRequired
	}
	res := tx.WithContext(ctx).Exec(`
		UPDATE others
		SET is_sold = true,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
			AND is_sold = false
			AND (SELECT COALESCE(SUM(stock), 0) FROM other_vars WHERE other_id = ?) = 0
	`, otherID, otherID)
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "recompute product sold flag")
	}
	return res.RowsAffected == 1, nil
}

// ApplySale runs every effect of a paid order. Rows are touched in id order so
// concurrent confirmations lock them in the same sequence.
func (m *mutator) ApplySale(ctx context.Context, tx *gorm.DB, sale Sale) error {
	artIDs := dedupe(sale.ArtIDs)
	sortIDs(artIDs)
	for _, id := range artIDs {
		if _, err := m.MarkUniqueSold(ctx, tx, id); err != nil {
			return err
		}
	}

	variants := mergeVariants(sale.Variants)
	parents := make([]uuid.UUID, 0, len(variants))
	for _, v := range variants {
		if _, err := m.DecrementVariantStock(ctx, tx, v.VariantID, v.Qty); err != nil {
			return err
		}
		parents = append(parents, v.OtherID)
	}

	parents = dedupe(parents)
	sortIDs(parents)
	for _, id := range parents {
		if _, err := m.RecomputeParentSoldFlag(ctx, tx, id); err != nil {
			return err
		}
	}
	return nil
}

func mergeVariants(in []VariantSale) []VariantSale {
	index := make(map[uuid.UUID]int, len(in))
	out := make([]VariantSale, 0, len(in))
	for _, v := range in {
		if v.Qty <= 0 {
			continue
		}
		if pos, ok := index[v.VariantID]; ok {
			out[pos].Qty += v.Qty
			continue
		}
		index[v.VariantID] = len(out)
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].VariantID[:], out[j].VariantID[:]) < 0
	})
	return out
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func sortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})
}
