// ABOUTME: Cart manager: line-item mutation and total computation for order sessions
// ABOUTME: Snapshots unit prices at add time via the business catalog

package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/chatfront/waba-gateway/internal/registry"
	"github.com/chatfront/waba-gateway/internal/session"
)

// Cart errors
var (
	// ErrCatalogUnavailable means the upstream catalog could not be reached.
	// Recoverable: the customer is re-prompted, the session survives.
	ErrCatalogUnavailable = errors.New("catalog unavailable")

	// ErrInvalidQuantity is returned for zero or negative quantities
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")

	// ErrNotInCart is returned when mutating a line that doesn't exist
	ErrNotInCart = errors.New("item not in cart")
)

// Catalog resolves product references for a business. Satisfied by
// registry implementations.
type Catalog interface {
	GetCatalogItem(ctx context.Context, businessID, ref string) (*registry.CatalogItem, error)
	ListCatalogItems(ctx context.Context, businessID string) ([]*registry.CatalogItem, error)
}

// Manager applies line-item operations against a catalog.
type Manager struct {
	catalog Catalog
}

// NewManager creates a cart manager over the given catalog
func NewManager(catalog Catalog) *Manager {
	return &Manager{catalog: catalog}
}

// Add appends a line for ref with the catalog price snapshotted now.
// Adding a ref already in the cart increases its quantity instead; the
// original price snapshot is kept so later catalog changes never silently
// reprice a line.
// Returns registry.ErrItemNotFound when the ref doesn't resolve, and
// ErrCatalogUnavailable when the catalog itself cannot be reached.
func (m *Manager) Add(ctx context.Context, items []session.CartItem, businessID, ref string, quantity int) ([]session.CartItem, error) {
	if quantity <= 0 {
		return items, ErrInvalidQuantity
	}

	for i := range items {
		if items[i].ProductRef == ref {
			items[i].Quantity += quantity
			return items, nil
		}
	}

	item, err := m.catalog.GetCatalogItem(ctx, businessID, ref)
	if errors.Is(err, registry.ErrItemNotFound) {
		return items, err
	}
	if err != nil {
		return items, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	return append(items, session.CartItem{
		ProductRef:     item.Ref,
		Name:           item.Name,
		Quantity:       quantity,
		UnitPriceMinor: item.PriceMinor,
	}), nil
}

// SetQuantity changes the quantity of an existing line
func (m *Manager) SetQuantity(items []session.CartItem, ref string, quantity int) ([]session.CartItem, error) {
	if quantity <= 0 {
		return items, ErrInvalidQuantity
	}
	for i := range items {
		if items[i].ProductRef == ref {
			items[i].Quantity = quantity
			return items, nil
		}
	}
	return items, ErrNotInCart
}

// Remove deletes a line from the cart
func (m *Manager) Remove(items []session.CartItem, ref string) ([]session.CartItem, error) {
	for i := range items {
		if items[i].ProductRef == ref {
			return append(items[:i], items[i+1:]...), nil
		}
	}
	return items, ErrNotInCart
}

// Total returns the cart total in minor units: sum of quantity times the
// unit price snapshot for every line.
func Total(items []session.CartItem) int64 {
	var total int64
	for _, item := range items {
		total += int64(item.Quantity) * item.UnitPriceMinor
	}
	return total
}
