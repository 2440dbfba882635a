// ABOUTME: In-memory Registry implementation for tests and development
// ABOUTME: Backed by maps, safe for concurrent reads after setup

package registry

import (
	"context"
	"sort"
	"sync"
)

// MemoryRegistry implements Registry with in-memory maps. Writes are only
// expected during setup; lookups are safe for concurrent use.
type MemoryRegistry struct {
	mu         sync.RWMutex
	apps       map[string]*AppConfig
	businesses map[string]*BusinessProfile // keyed by phone number ID
	catalog    map[string]map[string]*CatalogItem
}

// Ensure MemoryRegistry implements the interface.
var _ Registry = (*MemoryRegistry)(nil)

// NewMemoryRegistry creates an empty in-memory registry
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		apps:       make(map[string]*AppConfig),
		businesses: make(map[string]*BusinessProfile),
		catalog:    make(map[string]map[string]*CatalogItem),
	}
}

// AddApp registers an app config
func (r *MemoryRegistry) AddApp(app *AppConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apps[app.AppID] = app
}

// AddBusiness registers a business profile
func (r *MemoryRegistry) AddBusiness(b *BusinessProfile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.businesses[b.PhoneNumberID] = b
}

// AddCatalogItem registers a catalog item for a business
func (r *MemoryRegistry) AddCatalogItem(item *CatalogItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.catalog[item.BusinessID] == nil {
		r.catalog[item.BusinessID] = make(map[string]*CatalogItem)
	}
	r.catalog[item.BusinessID][item.Ref] = item
}

func (r *MemoryRegistry) GetApp(ctx context.Context, appID string) (*AppConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	app, ok := r.apps[appID]
	if !ok {
		return nil, ErrAppNotFound
	}
	return app, nil
}

func (r *MemoryRegistry) GetBusinessByPhoneNumberID(ctx context.Context, phoneNumberID string) (*BusinessProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.businesses[phoneNumberID]
	if !ok {
		return nil, ErrBusinessNotFound
	}
	return b, nil
}

func (r *MemoryRegistry) GetCatalogItem(ctx context.Context, businessID, ref string) (*CatalogItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.catalog[businessID][ref]
	if !ok {
		return nil, ErrItemNotFound
	}
	return item, nil
}

func (r *MemoryRegistry) ListCatalogItems(ctx context.Context, businessID string) ([]*CatalogItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]*CatalogItem, 0, len(r.catalog[businessID]))
	for _, item := range r.catalog[businessID] {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Ref < items[j].Ref })
	return items, nil
}
