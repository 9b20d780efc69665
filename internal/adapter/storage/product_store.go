package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rl1809/marketplace/internal/core/domain"
)

const productColumns = `id, seller_id, name, description, category, price_cents, stock, status, version, created_at, updated_at`

func scanProduct(row scanner) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.SellerID, &p.Name, &p.Description, &p.Category, &p.PriceCents,
		&p.Stock, &p.Status, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQLStore) CreateProduct(ctx context.Context, p domain.Product) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.SellerID, p.Name, p.Description, p.Category, p.PriceCents, p.Stock,
		p.Status, p.Version, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (s *SQLStore) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return p, nil
}

func (s *SQLStore) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE 1=1`
	var args []any
	if filter.SellerID != "" {
		query += ` AND seller_id = ?`
		args = append(args, filter.SellerID)
	}
	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, filter.Category)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.Query != "" {
		query += ` AND (name LIKE ? OR description LIKE ?)`
		like := "%" + filter.Query + "%"
		args = append(args, like, like)
	}
	limit, offset := limitOffset(filter.Limit, filter.Offset)
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// UpdateProduct writes seller-editable fields. Stock is left alone: it only
// moves through AdjustStock and order placement.
func (s *SQLStore) UpdateProduct(ctx context.Context, p domain.Product) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = ?, description = ?, category = ?, price_cents = ?, status = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		p.Name, p.Description, p.Category, p.PriceCents, p.Status, p.UpdatedAt,
		p.ID, p.Version,
	)
	if err := expectOneRow(result, err, ErrOptimisticLock); err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

// AdjustStock adds delta to the product stock, refusing to go below zero.
func (s *SQLStore) AdjustStock(ctx context.Context, productID string, delta int) (int, error) {
	var stock int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock + ?, updated_at = ?
			WHERE id = ? AND stock + ? >= 0`,
			delta, time.Now().UTC(), productID, delta,
		)
		if err := expectOneRow(result, err, domain.ErrInsufficientStock); err != nil {
			return fmt.Errorf("adjust stock: %w", err)
		}
		return tx.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = ?`, productID).Scan(&stock)
	})
	if err != nil {
		return 0, err
	}
	return stock, nil
}
