package pricing

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alxgalache/kuadrat-backend/internal/shipping"
	"github.com/alxgalache/kuadrat-backend/pkg/db/models"
	"github.com/alxgalache/kuadrat-backend/pkg/enums"
	pkgerrors "github.com/alxgalache/kuadrat-backend/pkg/errors"
	"github.com/alxgalache/kuadrat-backend/pkg/revolut"
)

const shippingLineName = "Shipping"

// CartEntry is one unit the buyer wants to purchase. Repeating an entry
// increases the requested quantity.
type CartEntry struct {
	Kind      enums.ProductKind
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Shipping  *shipping.Selection
}

// Line groups identical cart entries (same kind, product and variant).
type Line struct {
	Kind        enums.ProductKind
	ProductID   uuid.UUID
	VariantID   *uuid.UUID
	SellerID    uuid.UUID
	Name        string
	Description string
	Slug        string
	Basename    string
	UnitPrice   decimal.Decimal
	Quantity    int
	Shipping    shipping.Quote
}

// Item is a single purchased unit as it will be persisted. The line's shipping
// cost is carried by the first unit only.
type Item struct {
	Kind            enums.ProductKind
	ProductID       uuid.UUID
	VariantID       *uuid.UUID
	SellerID        uuid.UUID
	Name            string
	PriceAtPurchase decimal.Decimal
	Shipping        shipping.Quote
	ShippingCost    decimal.Decimal
}

// Quote is the priced cart.
type Quote struct {
	Currency      enums.Currency
	Lines         []Line
	Items         []Item
	LineItems     []revolut.LineItem
	TotalPrice    decimal.Decimal
	ShippingTotal decimal.Decimal
	ProductsMinor int64
	ShippingMinor int64
	GrandMinor    int64
}

// AllPickup reports whether no line needs to be shipped.
func (q *Quote) AllPickup() bool {
	if q == nil || len(q.Lines) == 0 {
		return false
	}
	for _, line := range q.Lines {
		if line.Shipping.MethodType != enums.ShippingMethodPickup {
			return false
		}
	}
	return true
}

// Builder prices carts against the live catalog.
type Builder interface {
	Price(ctx context.Context, entries []CartEntry) (*Quote, error)
}

// Options carries presentation settings for gateway line items.
type Options struct {
	FrontendURL string
	Currency    enums.Currency
}

type builder struct {
	catalog  Catalog
	resolver shipping.Resolver
	opts     Options
}

// NewBuilder wires a pricing builder.
func NewBuilder(catalog Catalog, resolver shipping.Resolver, opts Options) (Builder, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("shipping resolver required")
	}
	if opts.Currency == "" {
		opts.Currency = enums.CurrencyEUR
	}
	if !opts.Currency.IsValid() {
		return nil, fmt.Errorf("unsupported currency %q", opts.Currency)
	}
	opts.FrontendURL = strings.TrimRight(strings.TrimSpace(opts.FrontendURL), "/")
	return &builder{catalog: catalog, resolver: resolver, opts: opts}, nil
}

type lineKey struct {
	kind      enums.ProductKind
	productID uuid.UUID
	variantID uuid.UUID
}

func keyOf(entry CartEntry) lineKey {
	key := lineKey{kind: entry.Kind, productID: entry.ProductID}
	if entry.Kind == enums.ProductKindOther && entry.VariantID != nil {
		key.variantID = *entry.VariantID
	}
	return key
}

func (b *builder) Price(ctx context.Context, entries []CartEntry) (*Quote, error) {
	if err := validateEntries(entries); err != nil {
		return nil, err
	}

	lines := compact(entries)
	if err := b.hydrate(ctx, lines); err != nil {
		return nil, err
	}

	for i := range lines {
		sel := *lines[i].selection
		quote, err := b.resolver.Resolve(ctx, lines[i].SellerID, sel)
		if err != nil {
			return nil, err
		}
		lines[i].Shipping = quote
	}

	return b.assemble(lines)
}

func validateEntries(entries []CartEntry) error {
	if len(entries) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	for i, entry := range entries {
		if !entry.Kind.IsValid() {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid product type").
				WithDetails(map[string]any{"index": i, "product_type": entry.Kind.String()})
		}
		if entry.ProductID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "product id required").
				WithDetails(map[string]any{"index": i})
		}
		if entry.Kind == enums.ProductKindOther && (entry.VariantID == nil || *entry.VariantID == uuid.Nil) {
			return pkgerrors.New(pkgerrors.CodeValidation, "variant id required").
				WithDetails(map[string]any{"index": i, "product_id": entry.ProductID.String()})
		}
		if entry.Shipping == nil || entry.Shipping.MethodID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "shipping selection required for every item").
				WithDetails(map[string]any{"index": i, "product_id": entry.ProductID.String()})
		}
	}
	return nil
}

type pendingLine struct {
	Line
	selection *shipping.Selection
}

func compact(entries []CartEntry) []pendingLine {
	index := make(map[lineKey]int, len(entries))
	lines := make([]pendingLine, 0, len(entries))
	for _, entry := range entries {
		key := keyOf(entry)
		if pos, ok := index[key]; ok {
			lines[pos].Quantity++
			if lines[pos].selection == nil && entry.Shipping != nil {
				lines[pos].selection = entry.Shipping
			}
			continue
		}
		line := pendingLine{
			Line: Line{
				Kind:      entry.Kind,
				ProductID: entry.ProductID,
				Quantity:  1,
			},
			selection: entry.Shipping,
		}
		if entry.Kind == enums.ProductKindOther {
			variantID := *entry.VariantID
			line.VariantID = &variantID
		}
		index[key] = len(lines)
		lines = append(lines, line)
	}
	return lines
}

// hydrate loads every product in one query per kind and enforces
// availability and stock for each compact line.
func (b *builder) hydrate(ctx context.Context, lines []pendingLine) error {
	var artIDs, otherIDs []uuid.UUID
	for _, line := range lines {
		switch line.Kind {
		case enums.ProductKindArt:
			artIDs = append(artIDs, line.ProductID)
		case enums.ProductKindOther:
			otherIDs = append(otherIDs, line.ProductID)
		}
	}

	arts, err := b.catalog.FindArts(ctx, uniqueIDs(artIDs))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load arts")
	}
	others, err := b.catalog.FindOthers(ctx, uniqueIDs(otherIDs))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load others")
	}

	artByID := make(map[uuid.UUID]int, len(arts))
	for i := range arts {
		artByID[arts[i].ID] = i
	}
	otherByID := make(map[uuid.UUID]int, len(others))
	for i := range others {
		otherByID[others[i].ID] = i
	}

	var missing []string
	for _, line := range lines {
		switch line.Kind {
		case enums.ProductKindArt:
			if _, ok := artByID[line.ProductID]; !ok {
				missing = append(missing, line.ProductID.String())
			}
		case enums.ProductKindOther:
			if _, ok := otherByID[line.ProductID]; !ok {
				missing = append(missing, line.ProductID.String())
			}
		}
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
			WithDetails(map[string]any{"product_ids": missing})
	}

	for i := range lines {
		line := &lines[i]
		switch line.Kind {
		case enums.ProductKindArt:
			art := arts[artByID[line.ProductID]]
			if art.IsSold || !purchasable(art.Visible, art.Status) {
				return unavailable(art.Name, line.ProductID)
			}
			if line.Quantity > 1 {
				return shortfall(art.Name, line.ProductID, 1, line.Quantity)
			}
			line.SellerID = art.SellerID
			line.Name = art.Name
			line.Description = art.Description
			line.Slug = art.Slug
			line.Basename = art.Basename
			line.UnitPrice = art.Price
		case enums.ProductKindOther:
			other := others[otherByID[line.ProductID]]
			if other.IsSold || !purchasable(other.Visible, other.Status) {
				return unavailable(other.Name, line.ProductID)
			}
			stock, ok := variantStock(other, *line.VariantID)
			if !ok {
				return pkgerrors.New(pkgerrors.CodeValidation, "variant does not belong to product").
					WithDetails(map[string]any{
						"product_id": line.ProductID.String(),
						"variant_id": line.VariantID.String(),
					})
			}
			if stock < line.Quantity {
				return shortfall(other.Name, line.ProductID, stock, line.Quantity)
			}
			line.SellerID = other.SellerID
			line.Name = other.Name
			line.Description = other.Description
			line.Slug = other.Slug
			line.Basename = other.Basename
			line.UnitPrice = other.Price
		}
	}
	return nil
}

func (b *builder) assemble(lines []pendingLine) (*Quote, error) {
	quote := &Quote{
		Currency:      b.opts.Currency,
		TotalPrice:    decimal.Zero,
		ShippingTotal: decimal.Zero,
	}
	for _, pending := range lines {
		line := pending.Line
		quote.Lines = append(quote.Lines, line)

		unitMinor := b.opts.Currency.ToMinor(line.UnitPrice)
		shippingMinor := b.opts.Currency.ToMinor(line.Shipping.Cost)
		quote.ProductsMinor += unitMinor * int64(line.Quantity)
		quote.ShippingMinor += shippingMinor
		quote.ShippingTotal = quote.ShippingTotal.Add(line.Shipping.Cost)

		for unit := 0; unit < line.Quantity; unit++ {
			cost := decimal.Zero
			if unit == 0 {
				cost = line.Shipping.Cost
			}
			quote.Items = append(quote.Items, Item{
				Kind:            line.Kind,
				ProductID:       line.ProductID,
				VariantID:       line.VariantID,
				SellerID:        line.SellerID,
				Name:            line.Name,
				PriceAtPurchase: line.UnitPrice,
				Shipping:        line.Shipping,
				ShippingCost:    cost,
			})
			quote.TotalPrice = quote.TotalPrice.Add(line.UnitPrice)
		}

		quote.LineItems = append(quote.LineItems, b.lineItem(line, unitMinor))
	}

	if quote.ShippingMinor > 0 {
		quote.LineItems = append(quote.LineItems, revolut.LineItem{
			Name:            shippingLineName,
			Type:            revolut.LineItemTypeService,
			Quantity:        revolut.Quantity{Value: 1},
			UnitPriceAmount: quote.ShippingMinor,
			TotalAmount:     quote.ShippingMinor,
		})
	}

	quote.GrandMinor = quote.ProductsMinor + quote.ShippingMinor
	if quote.GrandMinor <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order total must be greater than zero")
	}
	return quote, nil
}

func (b *builder) lineItem(line Line, unitMinor int64) revolut.LineItem {
	externalID := line.ProductID.String()
	if line.VariantID != nil {
		externalID = externalID + ":" + line.VariantID.String()
	}
	item := revolut.LineItem{
		Name:            line.Name,
		Type:            revolut.LineItemTypePhysical,
		Quantity:        revolut.Quantity{Value: line.Quantity},
		UnitPriceAmount: unitMinor,
		TotalAmount:     unitMinor * int64(line.Quantity),
		ExternalID:      externalID,
		Description:     PlainText(line.Description),
		URL:             ProductURL(b.opts.FrontendURL, line.Kind, line.Slug, line.ProductID),
	}
	if image := ImageURL(b.opts.FrontendURL, line.Kind, line.Basename); image != "" {
		item.ImageURLs = []string{image}
	}
	return item
}

// ProductURL is the canonical storefront page for a product.
func ProductURL(frontendURL string, kind enums.ProductKind, slug string, id uuid.UUID) string {
	ref := strings.TrimSpace(slug)
	if ref == "" {
		ref = id.String()
	}
	section := "tienda"
	if kind == enums.ProductKindArt {
		section = "galeria"
	}
	return fmt.Sprintf("%s/%s/p/%s", frontendURL, section, ref)
}

// ImageURL points at the image endpoint for a content-addressed basename.
func ImageURL(frontendURL string, kind enums.ProductKind, basename string) string {
	basename = strings.TrimSpace(basename)
	if basename == "" {
		return ""
	}
	return fmt.Sprintf("%s/api/%s/images/%s", frontendURL, kind.String(), basename)
}

func purchasable(visible bool, status enums.ProductStatus) bool {
	return visible && status == enums.ProductStatusApproved
}

func variantStock(other models.Other, variantID uuid.UUID) (int, bool) {
	for _, variant := range other.Variants {
		if variant.ID == variantID {
			if variant.OtherID != other.ID {
				return 0, false
			}
			return variant.Stock, true
		}
	}
	return 0, false
}

func unavailable(name string, productID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s is unavailable", name)).
		WithDetails(map[string]any{"product_id": productID.String(), "reason": "unavailable"})
}

func shortfall(name string, productID uuid.UUID, available, requested int) error {
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s: %d available, %d requested", name, available, requested)).
		WithDetails(map[string]any{
			"product_id": productID.String(),
			"available":  available,
			"requested":  requested,
		})
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	if len(ids) == 0 {
		return nil
	}
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
