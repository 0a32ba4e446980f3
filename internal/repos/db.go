package repos

import (
	"context"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

// DriverName maps the configured DB_DRIVER onto a registered database/sql driver.
func DriverName(driver string) (string, error) {
	switch driver {
	case "", "sqlite", "sqlite3":
		return "sqlite", nil
	case "pgx", "postgres", "postgresql":
		return "pgx", nil
	case "mysql":
		return "mysql", nil
	}
	return "", fmt.Errorf("unsupported DB_DRIVER %q", driver)
}

// NormalizeDSN adjusts dsn for the driver. MySQL must hand DATETIME columns
// back as UTC time.Time, so parseTime and loc are forced on.
func NormalizeDSN(name, dsn string) (string, error) {
	if name != "mysql" {
		return dsn, nil
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

func OpenDB(driver, dsn string) (*sqlx.DB, error) {
	name, err := DriverName(driver)
	if err != nil {
		return nil, err
	}
	if dsn, err = NormalizeDSN(name, dsn); err != nil {
		return nil, err
	}
	db, err := sqlx.Open(name, dsn)
	if err != nil {
		return nil, err
	}
	if name == "sqlite" {
		// One connection: keeps ":memory:" databases alive and serialises writers.
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
	}
	if err = db.Ping(); err != nil {
		return nil, err
	}

	if err := ensureSchema(db); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	// Seed baseline catalog if DB is empty (products/variants)
	if err := seedIfEmpty(db); err != nil {
		return nil, fmt.Errorf("seed catalog: %w", err)
	}
	if err := seedUsers(db); err != nil {
		return nil, fmt.Errorf("seed users: %w", err)
	}

	return db, nil
}

func ensureSchema(db *sqlx.DB) error {
	for _, stmt := range schemas[db.DriverName()] {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

var schemas = map[string][]string{
	"sqlite": {
		`PRAGMA foreign_keys = ON`,
		`CREATE TABLE IF NOT EXISTS products(
  id INTEGER PRIMARY KEY,
  price NUMERIC NOT NULL CHECK (price >= 0),
  original_price NUMERIC NOT NULL DEFAULT 0,
  created_at DATETIME,
  deleted_at DATETIME
)`,
		`CREATE TABLE IF NOT EXISTS product_translations(
  product_id INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
  locale TEXT NOT NULL,
  name TEXT NOT NULL,
  description TEXT,
  PRIMARY KEY(product_id, locale)
)`,
		`CREATE TABLE IF NOT EXISTS colors(id INTEGER PRIMARY KEY, hex_code TEXT NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS color_translations(
  color_id INTEGER NOT NULL REFERENCES colors(id) ON DELETE CASCADE,
  locale TEXT NOT NULL,
  name TEXT NOT NULL,
  PRIMARY KEY(color_id, locale)
)`,
		`CREATE TABLE IF NOT EXISTS sizes(id INTEGER PRIMARY KEY, name TEXT NOT NULL, sort_order INTEGER NOT NULL DEFAULT 0)`,
		`CREATE TABLE IF NOT EXISTS variants(
  id INTEGER PRIMARY KEY,
  product_id INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
  color_id INTEGER NOT NULL REFERENCES colors(id) ON DELETE RESTRICT,
  size_id INTEGER NOT NULL REFERENCES sizes(id) ON DELETE RESTRICT,
  quantity INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
  reserved INTEGER NOT NULL DEFAULT 0 CHECK (reserved >= 0 AND reserved <= quantity)
)`,
		`CREATE INDEX IF NOT EXISTS idx_variants_product ON variants(product_id)`,
		`CREATE TABLE IF NOT EXISTS variant_images(
  id INTEGER PRIMARY KEY,
  variant_id INTEGER NOT NULL REFERENCES variants(id) ON DELETE CASCADE,
  url TEXT NOT NULL,
  sort_order INTEGER NOT NULL DEFAULT 0
)`,
		`CREATE TABLE IF NOT EXISTS user_carts(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  owner_id TEXT NOT NULL,
  variant_id INTEGER NOT NULL REFERENCES variants(id) ON DELETE CASCADE,
  quantity INTEGER NOT NULL CHECK (quantity >= 1),
  created_at DATETIME NOT NULL,
  updated_at DATETIME NOT NULL,
  UNIQUE(owner_id, variant_id)
)`,
		`CREATE TABLE IF NOT EXISTS guest_carts(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  owner_id TEXT NOT NULL,
  variant_id INTEGER NOT NULL REFERENCES variants(id) ON DELETE CASCADE,
  quantity INTEGER NOT NULL CHECK (quantity >= 1),
  created_at DATETIME NOT NULL,
  updated_at DATETIME NOT NULL,
  expire_at DATETIME NOT NULL,
  UNIQUE(owner_id, variant_id)
)`,
		`CREATE INDEX IF NOT EXISTS idx_guest_carts_expire ON guest_carts(expire_at)`,
		`CREATE TABLE IF NOT EXISTS reservation_journal(
  id TEXT PRIMARY KEY,
  variant_id INTEGER NOT NULL,
  owner_kind TEXT NOT NULL,
  owner_id TEXT NOT NULL,
  delta INTEGER NOT NULL,
  reason TEXT NOT NULL,
  created_at DATETIME NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_journal_variant ON reservation_journal(variant_id)`,
		`CREATE TABLE IF NOT EXISTS users(
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL CHECK (role IN ('USER','ADMIN'))
)`,
		`CREATE TABLE IF NOT EXISTS sessions(
  id TEXT PRIMARY KEY,
  user_id TEXT NULL REFERENCES users(id) ON DELETE SET NULL,
  last_seen DATETIME
)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id)`,
	},
	"pgx": {
		`CREATE TABLE IF NOT EXISTS products(
  id BIGINT PRIMARY KEY,
  price NUMERIC(12,2) NOT NULL CHECK (price >= 0),
  original_price NUMERIC(12,2) NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ,
  deleted_at TIMESTAMPTZ
)`,
		`CREATE TABLE IF NOT EXISTS product_translations(
  product_id BIGINT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
  locale TEXT NOT NULL,
  name TEXT NOT NULL,
  description TEXT,
  PRIMARY KEY(product_id, locale)
)`,
		`CREATE TABLE IF NOT EXISTS colors(id BIGINT PRIMARY KEY, hex_code TEXT NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS color_translations(
  color_id BIGINT NOT NULL REFERENCES colors(id) ON DELETE CASCADE,
  locale TEXT NOT NULL,
  name TEXT NOT NULL,
  PRIMARY KEY(color_id, locale)
)`,
		`CREATE TABLE IF NOT EXISTS sizes(id BIGINT PRIMARY KEY, name TEXT NOT NULL, sort_order INTEGER NOT NULL DEFAULT 0)`,
		`CREATE TABLE IF NOT EXISTS variants(
  id BIGINT PRIMARY KEY,
  product_id BIGINT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
  color_id BIGINT NOT NULL REFERENCES colors(id) ON DELETE RESTRICT,
  size_id BIGINT NOT NULL REFERENCES sizes(id) ON DELETE RESTRICT,
  quantity INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
  reserved INTEGER NOT NULL DEFAULT 0 CHECK (reserved >= 0 AND reserved <= quantity)
)`,
		`CREATE INDEX IF NOT EXISTS idx_variants_product ON variants(product_id)`,
		`CREATE TABLE IF NOT EXISTS variant_images(
  id BIGSERIAL PRIMARY KEY,
  variant_id BIGINT NOT NULL REFERENCES variants(id) ON DELETE CASCADE,
  url TEXT NOT NULL,
  sort_order INTEGER NOT NULL DEFAULT 0
)`,
		`CREATE TABLE IF NOT EXISTS user_carts(
  id BIGSERIAL PRIMARY KEY,
  owner_id TEXT NOT NULL,
  variant_id BIGINT NOT NULL REFERENCES variants(id) ON DELETE CASCADE,
  quantity INTEGER NOT NULL CHECK (quantity >= 1),
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  UNIQUE(owner_id, variant_id)
)`,
		`CREATE TABLE IF NOT EXISTS guest_carts(
  id BIGSERIAL PRIMARY KEY,
  owner_id TEXT NOT NULL,
  variant_id BIGINT NOT NULL REFERENCES variants(id) ON DELETE CASCADE,
  quantity INTEGER NOT NULL CHECK (quantity >= 1),
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  expire_at TIMESTAMPTZ NOT NULL,
  UNIQUE(owner_id, variant_id)
)`,
		`CREATE INDEX IF NOT EXISTS idx_guest_carts_expire ON guest_carts(expire_at)`,
		`CREATE TABLE IF NOT EXISTS reservation_journal(
  id TEXT PRIMARY KEY,
  variant_id BIGINT NOT NULL,
  owner_kind TEXT NOT NULL,
  owner_id TEXT NOT NULL,
  delta INTEGER NOT NULL,
  reason TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_journal_variant ON reservation_journal(variant_id)`,
		`CREATE TABLE IF NOT EXISTS users(
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL CHECK (role IN ('USER','ADMIN'))
)`,
		`CREATE TABLE IF NOT EXISTS sessions(
  id TEXT PRIMARY KEY,
  user_id TEXT NULL REFERENCES users(id) ON DELETE SET NULL,
  last_seen TIMESTAMPTZ
)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id)`,
	},
	// MySQL has no CREATE INDEX IF NOT EXISTS, so indexes live inside the table definitions.
	"mysql": {
		`CREATE TABLE IF NOT EXISTS products(
  id BIGINT PRIMARY KEY,
  price DECIMAL(12,2) NOT NULL CHECK (price >= 0),
  original_price DECIMAL(12,2) NOT NULL DEFAULT 0,
  created_at DATETIME(6),
  deleted_at DATETIME(6)
)`,
		`CREATE TABLE IF NOT EXISTS product_translations(
  product_id BIGINT NOT NULL,
  locale VARCHAR(8) NOT NULL,
  name VARCHAR(255) NOT NULL,
  description TEXT,
  PRIMARY KEY(product_id, locale),
  FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE
)`,
		`CREATE TABLE IF NOT EXISTS colors(id BIGINT PRIMARY KEY, hex_code VARCHAR(16) NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS color_translations(
  color_id BIGINT NOT NULL,
  locale VARCHAR(8) NOT NULL,
  name VARCHAR(64) NOT NULL,
  PRIMARY KEY(color_id, locale),
  FOREIGN KEY (color_id) REFERENCES colors(id) ON DELETE CASCADE
)`,
		`CREATE TABLE IF NOT EXISTS sizes(id BIGINT PRIMARY KEY, name VARCHAR(32) NOT NULL, sort_order INT NOT NULL DEFAULT 0)`,
		`CREATE TABLE IF NOT EXISTS variants(
  id BIGINT PRIMARY KEY,
  product_id BIGINT NOT NULL,
  color_id BIGINT NOT NULL,
  size_id BIGINT NOT NULL,
  quantity INT NOT NULL DEFAULT 0,
  reserved INT NOT NULL DEFAULT 0,
  INDEX idx_variants_product (product_id),
  CONSTRAINT chk_variants_quantity CHECK (quantity >= 0),
  CONSTRAINT chk_variants_reserved CHECK (reserved >= 0 AND reserved <= quantity),
  FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE,
  FOREIGN KEY (color_id) REFERENCES colors(id),
  FOREIGN KEY (size_id) REFERENCES sizes(id)
)`,
		`CREATE TABLE IF NOT EXISTS variant_images(
  id BIGINT AUTO_INCREMENT PRIMARY KEY,
  variant_id BIGINT NOT NULL,
  url VARCHAR(512) NOT NULL,
  sort_order INT NOT NULL DEFAULT 0,
  FOREIGN KEY (variant_id) REFERENCES variants(id) ON DELETE CASCADE
)`,
		`CREATE TABLE IF NOT EXISTS user_carts(
  id BIGINT AUTO_INCREMENT PRIMARY KEY,
  owner_id VARCHAR(64) NOT NULL,
  variant_id BIGINT NOT NULL,
  quantity INT NOT NULL,
  created_at DATETIME(6) NOT NULL,
  updated_at DATETIME(6) NOT NULL,
  UNIQUE KEY uq_user_carts_owner_variant (owner_id, variant_id),
  CONSTRAINT chk_user_carts_quantity CHECK (quantity >= 1),
  FOREIGN KEY (variant_id) REFERENCES variants(id) ON DELETE CASCADE
)`,
		`CREATE TABLE IF NOT EXISTS guest_carts(
  id BIGINT AUTO_INCREMENT PRIMARY KEY,
  owner_id VARCHAR(64) NOT NULL,
  variant_id BIGINT NOT NULL,
  quantity INT NOT NULL,
  created_at DATETIME(6) NOT NULL,
  updated_at DATETIME(6) NOT NULL,
  expire_at DATETIME(6) NOT NULL,
  UNIQUE KEY uq_guest_carts_owner_variant (owner_id, variant_id),
  INDEX idx_guest_carts_expire (expire_at),
  CONSTRAINT chk_guest_carts_quantity CHECK (quantity >= 1),
  FOREIGN KEY (variant_id) REFERENCES variants(id) ON DELETE CASCADE
)`,
		`CREATE TABLE IF NOT EXISTS reservation_journal(
  id VARCHAR(36) PRIMARY KEY,
  variant_id BIGINT NOT NULL,
  owner_kind VARCHAR(8) NOT NULL,
  owner_id VARCHAR(64) NOT NULL,
  delta INT NOT NULL,
  reason VARCHAR(16) NOT NULL,
  created_at DATETIME(6) NOT NULL,
  INDEX idx_journal_variant (variant_id)
)`,
		`CREATE TABLE IF NOT EXISTS users(
  id VARCHAR(64) PRIMARY KEY,
  email VARCHAR(255) NOT NULL UNIQUE,
  name VARCHAR(255) NOT NULL,
  password_hash VARCHAR(255) NOT NULL,
  role VARCHAR(8) NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS sessions(
  id VARCHAR(64) PRIMARY KEY,
  user_id VARCHAR(64) NULL,
  last_seen DATETIME(6),
  INDEX idx_sessions_user (user_id),
  FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE SET NULL
)`,
	},
}

func seedIfEmpty(db *sqlx.DB) error {
	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM products`); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	stmts := []struct {
		query string
		args  []any
	}{
		{`INSERT INTO products(id, price, original_price, created_at) VALUES (?, ?, ?, ?), (?, ?, ?, ?), (?, ?, ?, ?)`,
			[]any{1, 24.99, 29.99, now, 2, 59.00, 59.00, now, 3, 15.50, 19.00, now}},
		{`INSERT INTO product_translations(product_id, locale, name, description) VALUES
		  (?, 'en', 'Classic Tee', 'Heavyweight cotton t-shirt'),
		  (?, 'ar', 'تيشيرت كلاسيك', 'تيشيرت قطن ثقيل'),
		  (?, 'en', 'Denim Jacket', 'Washed denim jacket'),
		  (?, 'ar', 'جاكيت جينز', 'جاكيت جينز مغسول'),
		  (?, 'en', 'Canvas Cap', 'Six panel canvas cap')`, []any{1, 1, 2, 2, 3}},
		{`INSERT INTO colors(id, hex_code) VALUES (?, '#000000'), (?, '#FFFFFF'), (?, '#1F3A93')`, []any{1, 2, 3}},
		{`INSERT INTO color_translations(color_id, locale, name) VALUES
		  (?, 'en', 'Black'), (?, 'ar', 'أسود'), (?, 'en', 'White'), (?, 'ar', 'أبيض'), (?, 'en', 'Navy')`,
			[]any{1, 1, 2, 2, 3}},
		{`INSERT INTO sizes(id, name, sort_order) VALUES (?, 'S', 1), (?, 'M', 2), (?, 'L', 3)`, []any{1, 2, 3}},
		{`INSERT INTO variants(id, product_id, color_id, size_id, quantity, reserved) VALUES
		  (?, 1, 1, 1, 10, 0), (?, 1, 1, 2, 8, 0), (?, 1, 2, 3, 3, 0), (?, 2, 3, 2, 5, 0), (?, 3, 1, 1, 0, 0)`,
			[]any{1, 2, 3, 4, 5}},
		{`INSERT INTO variant_images(variant_id, url, sort_order) VALUES
		  (?, 'products/1/black.jpg', 0), (?, 'products/1/black.jpg', 0), (?, 'products/1/white.jpg', 0), (?, 'products/2/navy.jpg', 0)`,
			[]any{1, 2, 3, 4}},
	}
	for _, s := range stmts {
		if _, err := tx.Exec(tx.Rebind(s.query), s.args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// seedUsers ensures two USERs and one ADMIN exist (idempotent).
func seedUsers(db *sqlx.DB) error {
	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM users`); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	type u struct {
		ID, Email, Name, Role, Hash string
	}
	mk := func(id, email, name, role, raw string) (u, error) {
		h, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
		return u{ID: id, Email: email, Name: name, Role: role, Hash: string(h)}, err
	}

	tx, err := db.BeginTxx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, spec := range [][4]string{
		{"u-alice", "alice@storefront.test", "Alice", "USER"},
		{"u-bob", "bob@storefront.test", "Bob", "USER"},
		{"u-admin", "admin@storefront.test", "Admin", "ADMIN"},
	} {
		x, err := mk(spec[0], spec[1], spec[2], spec[3], "Passw0rd!")
		if err != nil {
			return err
		}
		if _, err := tx.Exec(tx.Rebind(`INSERT INTO users(id,email,name,password_hash,role) VALUES(?,?,?,?,?)`),
			x.ID, x.Email, x.Name, x.Hash, x.Role); err != nil {
			return err
		}
	}

	return tx.Commit()
}
