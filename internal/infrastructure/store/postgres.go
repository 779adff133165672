package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/ec-order-service/internal/domain/order"
	"github.com/example/ec-order-service/internal/domain/product"
	_ "github.com/lib/pq"
)

// PostgresStore implements the product, order and user stores on PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Connect establishes a connection to PostgreSQL
func Connect(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, err
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// EnsureSchema creates the tables this service owns if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			price      INTEGER NOT NULL,
			stock      INTEGER NOT NULL CHECK (stock >= 0),
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id              TEXT PRIMARY KEY,
			user_id         TEXT NOT NULL,
			items           JSONB NOT NULL,
			shipping        JSONB NOT NULL,
			payment         JSONB NOT NULL,
			pricing         JSONB NOT NULL,
			status          TEXT NOT NULL,
			paid_at         TIMESTAMPTZ,
			delivered_at    TIMESTAMPTZ,
			stock_committed BOOLEAN NOT NULL DEFAULT FALSE,
			idempotency_key TEXT UNIQUE,
			created_at      TIMESTAMPTZ NOT NULL,
			updated_at      TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders (user_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			name          TEXT NOT NULL,
			role          TEXT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

// Product operations

func (s *PostgresStore) CreateProduct(ctx context.Context, p *product.Product) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, price, stock, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			stock = EXCLUDED.stock,
			updated_at = EXCLUDED.updated_at
	`, p.ID, p.Name, p.Price, p.Stock, p.CreatedAt, p.UpdatedAt)
	return err
}

func (s *PostgresStore) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	var p product.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, price, stock, created_at, updated_at
		FROM products WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, product.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// DecrementStock is the single atomic check-then-write: the row only changes
// when it still covers the quantity, so two concurrent decrements can never
// both pass a stale read.
func (s *PostgresStore) DecrementStock(ctx context.Context, id string, qty int) (int, error) {
	var newStock int
	err := s.db.QueryRowContext(ctx, `
		UPDATE products
		SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND stock >= $2
		RETURNING stock
	`, id, qty).Scan(&newStock)
	if err == sql.ErrNoRows {
		// Either the product is gone or the condition failed; disambiguate.
		var exists bool
		if checkErr := s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)`, id).Scan(&exists); checkErr != nil {
			return 0, checkErr
		}
		if !exists {
			return 0, product.ErrProductNotFound
		}
		return 0, &product.InsufficientStockError{ProductID: id, Requested: qty}
	}
	if err != nil {
		return 0, err
	}
	return newStock, nil
}

func (s *PostgresStore) IncrementStock(ctx context.Context, id string, qty int) (int, error) {
	var newStock int
	err := s.db.QueryRowContext(ctx, `
		UPDATE products
		SET stock = stock + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING stock
	`, id, qty).Scan(&newStock)
	if err == sql.ErrNoRows {
		return 0, product.ErrProductNotFound
	}
	if err != nil {
		return 0, err
	}
	return newStock, nil
}

// Order operations

func (s *PostgresStore) CreateOrder(ctx context.Context, o *order.Order) error {
	items, shipping, payment, pricing, err := marshalOrderParts(o)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, items, shipping, payment, pricing, status,
			paid_at, delivered_at, stock_committed, idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, o.ID, o.UserID, items, shipping, payment, pricing, string(o.Status),
		o.PaidAt, o.DeliveredAt, o.StockCommitted, nullString(o.IdempotencyKey), o.CreatedAt, o.UpdatedAt)
	return err
}

func (s *PostgresStore) UpdateOrder(ctx context.Context, o *order.Order) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, paid_at = $3, delivered_at = $4, stock_committed = $5, updated_at = $6
		WHERE id = $1
	`, o.ID, string(o.Status), o.PaidAt, o.DeliveredAt, o.StockCommitted, o.UpdatedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}

func (s *PostgresStore) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	return s.scanOrder(s.db.QueryRowContext(ctx, `
		SELECT id, user_id, items, shipping, payment, pricing, status,
			paid_at, delivered_at, stock_committed, idempotency_key, created_at, updated_at
		FROM orders WHERE id = $1
	`, id))
}

func (s *PostgresStore) GetOrderByIdempotencyKey(ctx context.Context, key string) (*order.Order, error) {
	return s.scanOrder(s.db.QueryRowContext(ctx, `
		SELECT id, user_id, items, shipping, payment, pricing, status,
			paid_at, delivered_at, stock_committed, idempotency_key, created_at, updated_at
		FROM orders WHERE idempotency_key = $1
	`, key))
}

func (s *PostgresStore) DeleteOrder(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}

func (s *PostgresStore) ListOrdersByUser(ctx context.Context, userID string) ([]*order.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, items, shipping, payment, pricing, status,
			paid_at, delivered_at, stock_committed, idempotency_key, created_at, updated_at
		FROM orders WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

func (s *PostgresStore) ListOrders(ctx context.Context) ([]*order.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, items, shipping, payment, pricing, status,
			paid_at, delivered_at, stock_committed, idempotency_key, created_at, updated_at
		FROM orders ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *PostgresStore) scanOrder(row rowScanner) (*order.Order, error) {
	o, err := scanOrderRow(row)
	if err == sql.ErrNoRows {
		return nil, order.ErrOrderNotFound
	}
	return o, err
}

func scanOrderRow(row rowScanner) (*order.Order, error) {
	var (
		o                                 order.Order
		items, shipping, payment, pricing []byte
		status                            string
		paidAt, deliveredAt               sql.NullTime
		idempotencyKey                    sql.NullString
	)
	err := row.Scan(&o.ID, &o.UserID, &items, &shipping, &payment, &pricing, &status,
		&paidAt, &deliveredAt, &o.StockCommitted, &idempotencyKey, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(shipping, &o.Shipping); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payment, &o.Payment); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(pricing, &o.Pricing); err != nil {
		return nil, err
	}
	o.Status = order.Status(status)
	if paidAt.Valid {
		o.PaidAt = &paidAt.Time
	}
	if deliveredAt.Valid {
		o.DeliveredAt = &deliveredAt.Time
	}
	o.IdempotencyKey = idempotencyKey.String
	return &o, nil
}

func scanOrders(rows *sql.Rows) ([]*order.Order, error) {
	var out []*order.Order
	for rows.Next() {
		o, err := scanOrderRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func marshalOrderParts(o *order.Order) (items, shipping, payment, pricing []byte, err error) {
	if items, err = json.Marshal(o.Items); err != nil {
		return
	}
	if shipping, err = json.Marshal(o.Shipping); err != nil {
		return
	}
	if payment, err = json.Marshal(o.Payment); err != nil {
		return
	}
	pricing, err = json.Marshal(o.Pricing)
	return
}

// User operations

func (s *PostgresStore) CreateUser(ctx context.Context, u *User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, name, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (email) DO NOTHING
	`, u.ID, u.Email, u.PasswordHash, u.Name, u.Role, u.CreatedAt)
	return err
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, name, role, created_at
		FROM users WHERE email = $1
	`, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Helper function
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
