package repository

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"wpcom-shopping-cart/internal/logging"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLCartRepository stores carts in MySQL.
type MySQLCartRepository struct {
	*sqlCartStore
}

var mysqlSchema = []string{`
	CREATE TABLE IF NOT EXISTS shopping_carts (
		cart_key VARCHAR(191) NOT NULL PRIMARY KEY,
		cart_json LONGTEXT NOT NULL,
		product_count INT NOT NULL DEFAULT 0,
		updated_at BIGINT NOT NULL,
		INDEX idx_shopping_carts_updated_at (updated_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

const mysqlUpsert = `
	INSERT INTO shopping_carts (cart_key, cart_json, product_count, updated_at)
	VALUES (?, ?, ?, ?)
	ON DUPLICATE KEY UPDATE
		cart_json = VALUES(cart_json),
		product_count = VALUES(product_count),
		updated_at = VALUES(updated_at)`

// NewMySQLCartRepository connects to MySQL with a DSN such as
// user:pass@tcp(host:3306)/dbname?parseTime=true.
func NewMySQLCartRepository(dsn string) (*MySQLCartRepository, error) {
	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	log := logging.New("MySQLCartRepository")
	store, err := newSQLCartStore(db, "mysql", mysqlSchema, mysqlUpsert, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	log.Info("Connected to MySQL")
	return &MySQLCartRepository{sqlCartStore: store}, nil
}

var _ CartRepository = (*MySQLCartRepository)(nil)
