package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"wpcom-shopping-cart/internal/model"
)

// cartRow is the stored form of a cart.
type cartRow struct {
	CartKey      string `db:"cart_key"`
	CartJSON     string `db:"cart_json"`
	ProductCount int    `db:"product_count"`
	UpdatedAt    int64  `db:"updated_at"`
}

// sqlCartStore implements CartRepository over any sqlx driver. The dialect
// specific parts are the schema and the upsert statement; everything else
// is written with ? placeholders and rebound for the driver.
type sqlCartStore struct {
	db     *sqlx.DB
	kind   string
	upsert string
	log    *logrus.Entry
	now    func() time.Time
}

func newSQLCartStore(db *sqlx.DB, kind string, schema []string, upsert string, log *logrus.Entry) (*sqlCartStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping %s: %w", kind, err)
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to create tables: %w", err)
		}
	}

	return &sqlCartStore{
		db:     db,
		kind:   kind,
		upsert: db.Rebind(upsert),
		log:    log,
		now:    time.Now,
	}, nil
}

// Get returns the stored cart, or nil if the key has never been saved.
func (s *sqlCartStore) Get(ctx context.Context, key model.CartKey) (*model.ResponseCart, error) {
	var row cartRow
	query := s.db.Rebind(`SELECT cart_key, cart_json, product_count, updated_at FROM shopping_carts WHERE cart_key = ?`)
	if err := s.db.GetContext(ctx, &row, query, string(key)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	var cart model.ResponseCart
	if err := json.Unmarshal([]byte(row.CartJSON), &cart); err != nil {
		return nil, fmt.Errorf("failed to decode cart %s: %w", row.CartKey, err)
	}
	return &cart, nil
}

// Save inserts or replaces a cart. The row's update time is the cart's
// generated timestamp when set.
func (s *sqlCartStore) Save(ctx context.Context, cart *model.ResponseCart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}

	updatedAt := cart.GeneratedAtTimestamp
	if updatedAt == 0 {
		updatedAt = s.now().Unix()
	}

	if _, err := s.db.ExecContext(ctx, s.upsert, string(cart.CartKey), string(data), len(cart.Products), updatedAt); err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

// DeleteInactive removes the oldest carts saved before the cutoff.
func (s *sqlCartStore) DeleteInactive(ctx context.Context, before time.Time, limit int) ([]model.CartKey, error) {
	if limit <= 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var keys []string
	query := tx.Rebind(`SELECT cart_key FROM shopping_carts WHERE updated_at < ? ORDER BY updated_at LIMIT ?`)
	if err := tx.SelectContext(ctx, &keys, query, before.Unix(), limit); err != nil {
		return nil, fmt.Errorf("failed to select inactive carts: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	del, args, err := sqlx.In(`DELETE FROM shopping_carts WHERE cart_key IN (?)`, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to build delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(del), args...); err != nil {
		return nil, fmt.Errorf("failed to delete inactive carts: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	out := make([]model.CartKey, len(keys))
	for i, k := range keys {
		out[i] = model.CartKey(k)
	}
	s.log.WithField("count", len(out)).Info("Deleted inactive carts")
	return out, nil
}

// GetStats returns statistics about the cart store.
func (s *sqlCartStore) GetStats(ctx context.Context) (*CartStats, error) {
	stats := CartStats{Type: s.kind}
	query := `
		SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN product_count > 0 THEN 1 ELSE 0 END), 0) AS with_products,
			COALESCE(MIN(updated_at), 0) AS oldest,
			COALESCE(MAX(updated_at), 0) AS newest
		FROM shopping_carts`
	if err := s.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return &stats, nil
}

// Close closes the database connection.
func (s *sqlCartStore) Close() error {
	return s.db.Close()
}
