package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/meur/dexforge/internal/models"
)

// Store handles all database operations
type Store struct {
	db *sql.DB
}

// New creates a new Store with SQLite
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate runs database migrations
func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS catalog_items (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			image TEXT,
			types TEXT,
			stats TEXT,
			synced_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_catalog_items_name ON catalog_items(name)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// --- Key/value ---

// GetItem returns the value stored under key. ok is false when the key is absent.
func (s *Store) GetItem(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SetItem stores value under key, replacing any prior value
func (s *Store) SetItem(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now())
	return err
}

// RemoveItem deletes key if present
func (s *Store) RemoveItem(key string) error {
	_, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key)
	return err
}

// --- Catalog snapshot ---

// BulkUpsertCatalogItems writes items in a transaction, replacing rows with the same id
func (s *Store) BulkUpsertCatalogItems(items []models.CatalogItem) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO catalog_items (id, name, image, types, stats, synced_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, item := range items {
		types, err := json.Marshal(item.Categories)
		if err != nil {
			return fmt.Errorf("encode types for %d: %w", item.ID, err)
		}
		stats, err := json.Marshal(item.Metrics)
		if err != nil {
			return fmt.Errorf("encode stats for %d: %w", item.ID, err)
		}
		if _, err := stmt.Exec(item.ID, item.Name, item.Image, types, stats, now); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetCatalogItems returns cached items ordered by id. A limit <= 0 returns everything from offset.
func (s *Store) GetCatalogItems(offset, limit int) ([]models.CatalogItem, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`
		SELECT id, name, image, types, stats
		FROM catalog_items ORDER BY id LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.CatalogItem{}
	for rows.Next() {
		item, err := scanCatalogItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// GetCatalogItem returns a cached item by id, or nil when it is not cached
func (s *Store) GetCatalogItem(id int) (*models.CatalogItem, error) {
	row := s.db.QueryRow(`
		SELECT id, name, image, types, stats
		FROM catalog_items WHERE id = ?
	`, id)
	item, err := scanCatalogItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// CountCatalogItems returns the number of cached items
func (s *Store) CountCatalogItems() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM catalog_items`).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCatalogItem(row scanner) (*models.CatalogItem, error) {
	var item models.CatalogItem
	var image sql.NullString
	var types, stats sql.NullString
	if err := row.Scan(&item.ID, &item.Name, &image, &types, &stats); err != nil {
		return nil, err
	}
	item.Image = image.String
	item.Categories = []string{}
	if types.Valid && strings.TrimSpace(types.String) != "" {
		if err := json.Unmarshal([]byte(types.String), &item.Categories); err != nil {
			return nil, fmt.Errorf("decode types for %d: %w", item.ID, err)
		}
	}
	if stats.Valid && strings.TrimSpace(stats.String) != "" {
		if err := json.Unmarshal([]byte(stats.String), &item.Metrics); err != nil {
			return nil, fmt.Errorf("decode stats for %d: %w", item.ID, err)
		}
	}
	return &item, nil
}
