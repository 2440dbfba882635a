// ABOUTME: SQLite implementation of the session Store using modernc.org/sqlite
// ABOUTME: One row per conversation key with JSON cart/dedupe columns and a version guard

package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite. Leases are held in-process;
// the persisted version counter makes writes from a crashed-but-held lease
// detectable as conflicts.
type SQLiteStore struct {
	db     *sql.DB
	leases *leaseTable
	logger *slog.Logger
}

// Ensure SQLiteStore implements the interface.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a session store at the given path. The schema is
// created if it doesn't exist, and parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "session-store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		leases: newLeaseTable(),
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite session store initialized", "path", path)
	return s, nil
}

// createSchema creates the sessions table if it doesn't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			business_id TEXT NOT NULL,
			customer TEXT NOT NULL,
			id TEXT NOT NULL,
			state TEXT NOT NULL,
			cart TEXT NOT NULL,
			pending_ref TEXT NOT NULL DEFAULT '',
			pending_name TEXT NOT NULL DEFAULT '',
			presented TEXT NOT NULL,
			details TEXT NOT NULL DEFAULT '',
			instructions TEXT NOT NULL DEFAULT '',
			recent TEXT NOT NULL,
			last_activity_at TEXT NOT NULL,
			version INTEGER NOT NULL,
			PRIMARY KEY (business_id, customer)
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Load(ctx context.Context, key Key) (*Session, error) {
	var (
		sess             Session
		cartJSON         string
		presentedJSON    string
		recentJSON       string
		lastActivityText string
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT id, state, cart, pending_ref, pending_name, presented, details, instructions, recent, last_activity_at, version
		FROM sessions WHERE business_id = ? AND customer = ?`,
		key.BusinessID, key.Customer,
	).Scan(&sess.ID, &sess.State, &cartJSON, &sess.PendingRef, &sess.PendingName, &presentedJSON,
		&sess.Details, &sess.Instructions, &recentJSON, &lastActivityText, &sess.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	sess.Key = key

	if err := json.Unmarshal([]byte(cartJSON), &sess.Cart); err != nil {
		return nil, fmt.Errorf("decoding cart: %w", err)
	}
	if err := json.Unmarshal([]byte(presentedJSON), &sess.Presented); err != nil {
		return nil, fmt.Errorf("decoding presented choices: %w", err)
	}
	if err := json.Unmarshal([]byte(recentJSON), &sess.Recent); err != nil {
		return nil, fmt.Errorf("decoding dedupe window: %w", err)
	}
	sess.LastActivityAt, err = time.Parse(time.RFC3339Nano, lastActivityText)
	if err != nil {
		return nil, fmt.Errorf("decoding last activity time: %w", err)
	}

	return &sess, nil
}

func (s *SQLiteStore) Acquire(ctx context.Context, key Key, timeout time.Duration) (func(), error) {
	return s.leases.acquire(ctx, key.String(), timeout)
}

func (s *SQLiteStore) Save(ctx context.Context, sess *Session, expectedVersion int64) error {
	cartJSON, err := json.Marshal(sess.Cart)
	if err != nil {
		return fmt.Errorf("encoding cart: %w", err)
	}
	presentedJSON, err := json.Marshal(sess.Presented)
	if err != nil {
		return fmt.Errorf("encoding presented choices: %w", err)
	}
	recentJSON, err := json.Marshal(sess.Recent)
	if err != nil {
		return fmt.Errorf("encoding dedupe window: %w", err)
	}
	lastActivity := sess.LastActivityAt.UTC().Format(time.RFC3339Nano)

	if expectedVersion == 0 {
		// Create: the primary key enforces one session per key
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO sessions
				(business_id, customer, id, state, cart, pending_ref, pending_name, presented, details, instructions, recent, last_activity_at, version)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
			sess.Key.BusinessID, sess.Key.Customer, sess.ID, sess.State,
			string(cartJSON), sess.PendingRef, sess.PendingName, string(presentedJSON),
			sess.Details, sess.Instructions, string(recentJSON), lastActivity)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrVersionConflict
			}
			return fmt.Errorf("inserting session: %w", err)
		}
		sess.Version = 1
		return nil
	}

	// Replace, guarded by the stored version. The id is written too so a
	// fresh session can take over an expired one's row.
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET id = ?, state = ?, cart = ?, pending_ref = ?, pending_name = ?, presented = ?, details = ?, instructions = ?, recent = ?, last_activity_at = ?, version = version + 1
		WHERE business_id = ? AND customer = ? AND version = ?`,
		sess.ID, sess.State, string(cartJSON), sess.PendingRef, sess.PendingName, string(presentedJSON),
		sess.Details, sess.Instructions, string(recentJSON), lastActivity,
		sess.Key.BusinessID, sess.Key.Customer, expectedVersion)
	if err != nil {
		return fmt.Errorf("updating session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if affected == 0 {
		return ErrVersionConflict
	}

	sess.Version = expectedVersion + 1
	return nil
}

// isUniqueViolation reports whether err is a primary-key conflict
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}

// Close releases the underlying database handle
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
