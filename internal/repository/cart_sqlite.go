package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"

	"wpcom-shopping-cart/internal/logging"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// SQLiteCartRepository stores carts in SQLite. It is the default store and
// backs the repository tests with an in-memory database.
type SQLiteCartRepository struct {
	*sqlCartStore
}

var sqliteSchema = []string{`
	CREATE TABLE IF NOT EXISTS shopping_carts (
		cart_key TEXT PRIMARY KEY,
		cart_json TEXT NOT NULL,
		product_count INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_shopping_carts_updated_at ON shopping_carts(updated_at)`,
}

// upsertOnConflict is shared by SQLite and PostgreSQL.
const upsertOnConflict = `
	INSERT INTO shopping_carts (cart_key, cart_json, product_count, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(cart_key) DO UPDATE SET
		cart_json = excluded.cart_json,
		product_count = excluded.product_count,
		updated_at = excluded.updated_at`

// NewSQLiteCartRepository opens (or creates) the database at dbPath.
// Use ":memory:" for a throwaway database.
func NewSQLiteCartRepository(dbPath string) (*SQLiteCartRepository, error) {
	dsn := dbPath
	if dbPath != ":memory:" && !strings.Contains(dbPath, "?") {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		dsn = dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite only supports 1 writer; a single connection also keeps
	// ":memory:" databases alive and shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	log := logging.New("SQLiteCartRepository")
	store, err := newSQLCartStore(db, "sqlite", sqliteSchema, upsertOnConflict, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	log.WithField("path", dbPath).Info("Initialized")
	return &SQLiteCartRepository{sqlCartStore: store}, nil
}

var _ CartRepository = (*SQLiteCartRepository)(nil)
