package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"shop-svc/models"

	"github.com/shopspring/decimal"
)

const itemSelect = `SELECT oi.id, oi.order_id, oi.product_id, p.name, p.seller_id, oi.quantity, oi.unit_price
	FROM order_items oi JOIN products p ON p.id = oi.product_id`

type OrderItemRepository struct {
	uow connProvider
}

func scanItem(row interface{ Scan(dest ...any) error }) (*models.OrderItem, error) {
	var i models.OrderItem
	err := row.Scan(&i.ID, &i.OrderID, &i.ProductID, &i.ProductName, &i.SellerID, &i.Quantity, &i.UnitPrice)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func (r *OrderItemRepository) ListByOrder(ctx context.Context, orderID int) ([]models.OrderItem, error) {
	rows, err := r.uow.Conn().QueryContext(ctx, itemSelect+" WHERE oi.order_id = $1 ORDER BY oi.id", orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list order items: %w", err)
	}
	defer rows.Close()

	items := []models.OrderItem{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// Find returns the first line for the product in the order.
func (r *OrderItemRepository) Find(ctx context.Context, orderID, productID int) (*models.OrderItem, error) {
	return r.queryOne(ctx,
		itemSelect+" WHERE oi.order_id = $1 AND oi.product_id = $2 ORDER BY oi.id LIMIT 1",
		orderID, productID)
}

// FindLine returns the line for the product that was added at unitPrice.
func (r *OrderItemRepository) FindLine(ctx context.Context, orderID, productID int, unitPrice decimal.Decimal) (*models.OrderItem, error) {
	return r.queryOne(ctx,
		itemSelect+" WHERE oi.order_id = $1 AND oi.product_id = $2 AND oi.unit_price = $3 ORDER BY oi.id LIMIT 1",
		orderID, productID, unitPrice)
}

func (r *OrderItemRepository) queryOne(ctx context.Context, query string, args ...any) (*models.OrderItem, error) {
	item, err := scanItem(r.uow.Conn().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch order item: %w", err)
	}
	return item, nil
}

func (r *OrderItemRepository) Add(ctx context.Context, item *models.OrderItem) error {
	err := r.uow.Conn().QueryRowContext(ctx,
		"INSERT INTO order_items (order_id, product_id, quantity, unit_price) VALUES ($1, $2, $3, $4) RETURNING id",
		item.OrderID, item.ProductID, item.Quantity, item.UnitPrice,
	).Scan(&item.ID)
	if err != nil {
		return fmt.Errorf("failed to add order item: %w", err)
	}
	return nil
}

func (r *OrderItemRepository) UpdateQuantity(ctx context.Context, id, quantity int) error {
	result, err := r.uow.Conn().ExecContext(ctx, "UPDATE order_items SET quantity = $1 WHERE id = $2", quantity, id)
	if err != nil {
		return fmt.Errorf("failed to update order item: %w", err)
	}
	return requireAffected(result)
}

// DeleteByProduct removes every line for the product and reports how many were removed.
func (r *OrderItemRepository) DeleteByProduct(ctx context.Context, orderID, productID int) (int64, error) {
	result, err := r.uow.Conn().ExecContext(ctx,
		"DELETE FROM order_items WHERE order_id = $1 AND product_id = $2",
		orderID, productID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete order item: %w", err)
	}
	return result.RowsAffected()
}
