package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"shop-svc/models"
)

type PaymentRepository struct {
	uow connProvider
}

// Create persists the payment. The total is not stored; it is derived from the
// order's lines whenever the payment is read back.
func (r *PaymentRepository) Create(ctx context.Context, p *models.Payment) error {
	err := r.uow.Conn().QueryRowContext(ctx,
		"INSERT INTO payments (order_id, status, transaction_id, created_at) VALUES ($1, $2, $3, $4) RETURNING id",
		p.OrderID, p.Status, p.TransactionID, p.CreatedAt,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *PaymentRepository) GetByOrder(ctx context.Context, orderID int) (*models.Payment, error) {
	var p models.Payment
	err := r.uow.Conn().QueryRowContext(ctx,
		`SELECT p.id, p.order_id, p.status, p.transaction_id, p.created_at,
			COALESCE(SUM(oi.quantity * oi.unit_price), 0)
		FROM payments p LEFT JOIN order_items oi ON oi.order_id = p.order_id
		WHERE p.order_id = $1
		GROUP BY p.id, p.order_id, p.status, p.transaction_id, p.created_at`,
		orderID,
	).Scan(&p.ID, &p.OrderID, &p.Status, &p.TransactionID, &p.CreatedAt, &p.TotalAmount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payment: %w", err)
	}
	return &p, nil
}
