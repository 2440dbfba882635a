// ABOUTME: Registry interface and data types for app and business lookups
// ABOUTME: Defines AppConfig, BusinessProfile, CatalogItem and the read-only Registry interface

package registry

import (
	"context"
	"errors"
)

// Registry errors
var (
	// ErrAppNotFound is returned when no app is registered under an app ID
	ErrAppNotFound = errors.New("app not found")

	// ErrBusinessNotFound is returned when no business owns a phone number ID
	ErrBusinessNotFound = errors.New("business not found")

	// ErrItemNotFound is returned when a catalog item reference does not resolve
	ErrItemNotFound = errors.New("catalog item not found")
)

// BusinessType identifies the vertical a business operates in
type BusinessType string

// Known business types
const (
	BusinessTypeRestaurant BusinessType = "restaurant"
	BusinessTypeCinema     BusinessType = "cinema"
)

// AppConfig identifies one webhook-registered app. Immutable after
// provisioning; the router only ever reads it.
type AppConfig struct {
	AppID       string
	VerifyToken string
	AppSecret   string
}

// BusinessProfile is one onboarded merchant. PhoneNumberID is the routing
// key the provider includes in every delivery.
type BusinessProfile struct {
	BusinessID    string
	PhoneNumberID string
	BusinessType  BusinessType
	DisplayName   string
	Currency      string
	HelpEmail     string
	HelpPhone     string
}

// CatalogItem is one orderable product (dish, showtime) for a business.
// Prices are in minor currency units.
type CatalogItem struct {
	BusinessID string
	Ref        string
	Name       string
	PriceMinor int64
}

// Registry provides read-only lookups of apps, businesses, and their
// catalogs. Provisioning and admin CRUD live outside the gateway.
type Registry interface {
	GetApp(ctx context.Context, appID string) (*AppConfig, error)
	GetBusinessByPhoneNumberID(ctx context.Context, phoneNumberID string) (*BusinessProfile, error)

	// Catalog
	GetCatalogItem(ctx context.Context, businessID, ref string) (*CatalogItem, error)
	ListCatalogItems(ctx context.Context, businessID string) ([]*CatalogItem, error)
}
