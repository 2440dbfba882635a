// Package registry provides read-only lookups of webhook apps, onboarded
// businesses, and their catalogs.
//
// The gateway never writes here outside of demo seeding; provisioning and
// admin CRUD are owned by the onboarding service. Two implementations are
// provided: SQLiteRegistry for production and MemoryRegistry for tests.
package registry
