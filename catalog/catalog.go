// Package catalog is the read-only gateway to item, price and availability
// data. Every command that changes quantities or confirms an order resolves
// prices here; prices supplied by clients are discarded.
package catalog

import (
	"context"

	"github.com/google/uuid"
)

// PriceQuote is the authoritative price and availability of an item at a
// location, as of the moment of the lookup.
type PriceQuote struct {
	Price     float64 `json:"price"`
	Available bool    `json:"available"`
}

// Gateway resolves authoritative prices. Implementations must enforce a
// bounded timeout; a failed lookup aborts the calling command.
type Gateway interface {
	GetPrice(ctx context.Context, itemID, locationID uuid.UUID, variantID string) (PriceQuote, error)
	GetModifierPriceImpact(ctx context.Context, modifierIDs []uuid.UUID) (float64, error)
}
