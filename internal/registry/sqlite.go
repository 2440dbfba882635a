// ABOUTME: SQLite implementation of the Registry interface using modernc.org/sqlite
// ABOUTME: Provides app/business/catalog lookups with automatic schema creation

package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteRegistry implements the Registry interface using SQLite
type SQLiteRegistry struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteRegistry opens (or creates) a registry database at the given
// path. The schema is created if it doesn't exist, and parent directories
// are created if needed.
func NewSQLiteRegistry(path string) (*SQLiteRegistry, error) {
	logger := slog.Default().With("component", "registry")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL mode for concurrent webhook reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	r := &SQLiteRegistry{
		db:     db,
		logger: logger,
	}

	if err := r.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite registry initialized", "path", path)
	return r, nil
}

// createSchema creates the registry tables if they don't exist
func (r *SQLiteRegistry) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS apps (
			app_id TEXT PRIMARY KEY,
			verify_token TEXT NOT NULL,
			app_secret TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS businesses (
			business_id TEXT PRIMARY KEY,
			phone_number_id TEXT NOT NULL UNIQUE,
			business_type TEXT NOT NULL,
			display_name TEXT NOT NULL,
			currency TEXT NOT NULL DEFAULT 'USD',
			help_email TEXT NOT NULL DEFAULT '',
			help_phone TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS catalog_items (
			business_id TEXT NOT NULL REFERENCES businesses(business_id),
			ref TEXT NOT NULL,
			name TEXT NOT NULL,
			price_minor INTEGER NOT NULL,
			PRIMARY KEY (business_id, ref)
		);

		CREATE INDEX IF NOT EXISTS idx_businesses_phone
			ON businesses(phone_number_id);
	`

	_, err := r.db.Exec(schema)
	return err
}

// GetApp looks up an app by its webhook app ID
func (r *SQLiteRegistry) GetApp(ctx context.Context, appID string) (*AppConfig, error) {
	var app AppConfig
	err := r.db.QueryRowContext(ctx,
		"SELECT app_id, verify_token, app_secret FROM apps WHERE app_id = ?",
		appID,
	).Scan(&app.AppID, &app.VerifyToken, &app.AppSecret)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAppNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying app: %w", err)
	}
	return &app, nil
}

// GetBusinessByPhoneNumberID looks up a business by the provider's routing key
func (r *SQLiteRegistry) GetBusinessByPhoneNumberID(ctx context.Context, phoneNumberID string) (*BusinessProfile, error) {
	var b BusinessProfile
	err := r.db.QueryRowContext(ctx, `
		SELECT business_id, phone_number_id, business_type, display_name, currency, help_email, help_phone
		FROM businesses WHERE phone_number_id = ?`,
		phoneNumberID,
	).Scan(&b.BusinessID, &b.PhoneNumberID, &b.BusinessType, &b.DisplayName, &b.Currency, &b.HelpEmail, &b.HelpPhone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBusinessNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying business: %w", err)
	}
	return &b, nil
}

// GetCatalogItem resolves a single catalog item by reference
func (r *SQLiteRegistry) GetCatalogItem(ctx context.Context, businessID, ref string) (*CatalogItem, error) {
	var item CatalogItem
	err := r.db.QueryRowContext(ctx, `
		SELECT business_id, ref, name, price_minor
		FROM catalog_items WHERE business_id = ? AND ref = ?`,
		businessID, ref,
	).Scan(&item.BusinessID, &item.Ref, &item.Name, &item.PriceMinor)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying catalog item: %w", err)
	}
	return &item, nil
}

// ListCatalogItems returns all catalog items for a business in ref order
func (r *SQLiteRegistry) ListCatalogItems(ctx context.Context, businessID string) ([]*CatalogItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT business_id, ref, name, price_minor
		FROM catalog_items WHERE business_id = ? ORDER BY ref`,
		businessID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying catalog items: %w", err)
	}
	defer rows.Close()

	var items []*CatalogItem
	for rows.Next() {
		var item CatalogItem
		if err := rows.Scan(&item.BusinessID, &item.Ref, &item.Name, &item.PriceMinor); err != nil {
			return nil, fmt.Errorf("scanning catalog item: %w", err)
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

// SeedDemo loads a demo app with a restaurant and a cinema so a fresh
// gateway can process conversations without external provisioning.
// Existing rows are left untouched.
func (r *SQLiteRegistry) SeedDemo(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning seed transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO apps (app_id, verify_token, app_secret)
		VALUES ('demo-app', 'demo-verify-token', 'demo-app-secret')`); err != nil {
		return fmt.Errorf("seeding app: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO businesses
			(business_id, phone_number_id, business_type, display_name, currency, help_email, help_phone)
		VALUES
			('demo-restaurant', '15550001111', 'restaurant', 'Mama Rosa''s Kitchen', 'USD', 'help@mamarosas.example', '+15550009999'),
			('demo-cinema', '15550002222', 'cinema', 'Star Screen Cinema', 'USD', '', '+15550008888')`); err != nil {
		return fmt.Errorf("seeding businesses: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO catalog_items (business_id, ref, name, price_minor)
		VALUES
			('demo-restaurant', 'margherita', 'Margherita Pizza', 1250),
			('demo-restaurant', 'pasta', 'Penne Arrabbiata', 1100),
			('demo-restaurant', 'tiramisu', 'Tiramisu', 650),
			('demo-cinema', 'galaxy-7pm', 'Galaxy Quest II - 7:00 PM', 1500),
			('demo-cinema', 'galaxy-9pm', 'Galaxy Quest II - 9:30 PM', 1500),
			('demo-cinema', 'noir-8pm', 'Midnight Noir - 8:00 PM', 1400)`); err != nil {
		return fmt.Errorf("seeding catalog: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing seed: %w", err)
	}

	r.logger.Info("demo registry data seeded")
	return nil
}

// Close releases the underlying database handle
func (r *SQLiteRegistry) Close() error {
	return r.db.Close()
}
