package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"shop-svc/models"

	"github.com/lib/pq"
)

const productColumns = "id, name, description, price, stock, category, seller_id, image_url, created_at, updated_at"

type ProductRepository struct {
	uow connProvider
}

func scanProduct(row interface{ Scan(dest ...any) error }) (*models.Product, error) {
	var p models.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Category,
		&p.SellerID, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProductRepository) Get(ctx context.Context, id int) (*models.Product, error) {
	p, err := scanProduct(r.uow.Conn().QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch product: %w", err)
	}
	return p, nil
}

// LockMany row-locks the given products in ascending id order. Missing ids are
// simply absent from the result.
func (r *ProductRepository) LockMany(ctx context.Context, ids []int) ([]*models.Product, error) {
	rows, err := r.uow.Conn().QueryContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE",
		pq.Array(toInt64s(ids)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to lock products: %w", err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *ProductRepository) UpdateStock(ctx context.Context, id, stock int) error {
	result, err := r.uow.Conn().ExecContext(ctx,
		"UPDATE products SET stock = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2",
		stock, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update stock: %w", err)
	}
	return requireAffected(result)
}

func (r *ProductRepository) List(ctx context.Context) ([]models.Product, error) {
	rows, err := r.uow.Conn().QueryContext(ctx, "SELECT "+productColumns+" FROM products ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (r *ProductRepository) Create(ctx context.Context, p *models.Product) error {
	err := r.uow.Conn().QueryRowContext(ctx,
		`INSERT INTO products (name, description, price, stock, category, seller_id, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at, updated_at`,
		p.Name, p.Description, p.Price, p.Stock, p.Category, p.SellerID, p.ImageURL,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

func (r *ProductRepository) Update(ctx context.Context, id int, req models.UpdateProductRequest) (*models.Product, error) {
	query := "UPDATE products SET updated_at = CURRENT_TIMESTAMP"
	args := []any{}
	argPos := 1

	set := func(column string, value any) {
		query += ", " + column + " = $" + strconv.Itoa(argPos)
		args = append(args, value)
		argPos++
	}

	if req.Name != nil {
		set("name", *req.Name)
	}
	if req.Description != nil {
		set("description", *req.Description)
	}
	if req.Price != nil {
		set("price", *req.Price)
	}
	if req.Stock != nil {
		set("stock", *req.Stock)
	}
	if req.Category != nil {
		set("category", *req.Category)
	}
	if req.ImageURL != nil {
		set("image_url", *req.ImageURL)
	}

	query += " WHERE id = $" + strconv.Itoa(argPos) + " RETURNING " + productColumns
	args = append(args, id)

	p, err := scanProduct(r.uow.Conn().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return p, nil
}

func (r *ProductRepository) Delete(ctx context.Context, id int) error {
	result, err := r.uow.Conn().ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return requireAffected(result)
}

func toInt64s(ids []int) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}
