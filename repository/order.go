package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shop-svc/models"

	"github.com/lib/pq"
)

const orderColumns = "id, user_id, status, created_at, updated_at"

const uniqueViolation = "23505"

type OrderRepository struct {
	uow connProvider
}

func scanOrder(row interface{ Scan(dest ...any) error }) (*models.Order, error) {
	var o models.Order
	if err := row.Scan(&o.ID, &o.UserID, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) queryOne(ctx context.Context, query string, args ...any) (*models.Order, error) {
	o, err := scanOrder(r.uow.Conn().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch order: %w", err)
	}
	return o, nil
}

func (r *OrderRepository) FindCart(ctx context.Context, userID int) (*models.Order, error) {
	return r.queryOne(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE user_id = $1 AND status = $2",
		userID, models.OrderStatusCart)
}

// LockCart takes a row lock on the user's cart for the rest of the transaction.
func (r *OrderRepository) LockCart(ctx context.Context, userID int) (*models.Order, error) {
	return r.queryOne(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE user_id = $1 AND status = $2 FOR UPDATE",
		userID, models.OrderStatusCart)
}

func (r *OrderRepository) Get(ctx context.Context, id int) (*models.Order, error) {
	return r.queryOne(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
}

func (r *OrderRepository) Lock(ctx context.Context, id int) (*models.Order, error) {
	return r.queryOne(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1 FOR UPDATE", id)
}

func (r *OrderRepository) CreateCart(ctx context.Context, userID int) (*models.Order, error) {
	o, err := scanOrder(r.uow.Conn().QueryRowContext(ctx,
		"INSERT INTO orders (user_id, status) VALUES ($1, $2) RETURNING "+orderColumns,
		userID, models.OrderStatusCart,
	))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, models.ErrCartExists
		}
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}
	return o, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id int, status models.OrderStatus, at time.Time) error {
	result, err := r.uow.Conn().ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3",
		status, at, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	return requireAffected(result)
}

func (r *OrderRepository) Touch(ctx context.Context, id int, at time.Time) error {
	result, err := r.uow.Conn().ExecContext(ctx, "UPDATE orders SET updated_at = $1 WHERE id = $2", at, id)
	if err != nil {
		return fmt.Errorf("failed to touch order: %w", err)
	}
	return requireAffected(result)
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID int) ([]models.Order, error) {
	rows, err := r.uow.Conn().QueryContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE user_id = $1 ORDER BY id DESC",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}
