package repository

import (
	"context"
	"fmt"

	"shop-svc/models"

	"github.com/shopspring/decimal"
)

// ReportRepository runs raw aggregate queries through the unit of work's
// current connection, so inside a transaction they see its writes.
type ReportRepository struct {
	uow connProvider
}

const boardStatsQuery = `SELECT
	(SELECT COUNT(*) FROM users),
	(SELECT COUNT(*) FROM users WHERE COALESCE(balance, 0) > 100),
	(SELECT COUNT(*) FROM products),
	(SELECT COUNT(*) FROM products WHERE stock = 0),
	(SELECT COUNT(*) FROM orders),
	(SELECT COUNT(*) FROM orders WHERE status = 'Paid'),
	(SELECT COUNT(*) FROM orders WHERE status = 'Cart'),
	(SELECT COALESCE(SUM(oi.quantity * oi.unit_price), 0)
		FROM order_items oi JOIN orders o ON o.id = oi.order_id WHERE o.status = 'Paid'),
	(SELECT COALESCE(SUM(balance), 0) FROM users)`

func (r *ReportRepository) BoardStats(ctx context.Context) (*models.BoardStats, error) {
	var s models.BoardStats
	err := r.uow.Conn().QueryRowContext(ctx, boardStatsQuery).Scan(
		&s.TotalUsers, &s.UsersWithBalance, &s.TotalProducts, &s.OutOfStock,
		&s.TotalOrders, &s.PaidOrders, &s.ActiveCarts, &s.TotalRevenue, &s.TotalUserBalances,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute board stats: %w", err)
	}

	s.AverageTicket = decimal.Zero
	if s.PaidOrders > 0 {
		s.AverageTicket = s.TotalRevenue.Div(decimal.NewFromInt(int64(s.PaidOrders))).Round(2)
	}
	return &s, nil
}

func (r *ReportRepository) MonthlySales(ctx context.Context) ([]models.MonthlySales, error) {
	rows, err := r.uow.Conn().QueryContext(ctx,
		`SELECT EXTRACT(YEAR FROM o.updated_at)::int, EXTRACT(MONTH FROM o.updated_at)::int,
			COUNT(DISTINCT o.id), COUNT(oi.id), COALESCE(SUM(oi.quantity * oi.unit_price), 0)
		FROM orders o JOIN order_items oi ON oi.order_id = o.id
		WHERE o.status = $1
		GROUP BY 1, 2 ORDER BY 1, 2`,
		models.OrderStatusPaid,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute monthly sales: %w", err)
	}
	defer rows.Close()

	sales := []models.MonthlySales{}
	for rows.Next() {
		var m models.MonthlySales
		if err := rows.Scan(&m.Year, &m.Month, &m.Orders, &m.ItemsSold, &m.Revenue); err != nil {
			return nil, fmt.Errorf("failed to scan monthly sales: %w", err)
		}
		m.Summarize()
		sales = append(sales, m)
	}
	return sales, rows.Err()
}

func (r *ReportRepository) TopProducts(ctx context.Context, limit int) ([]models.TopProduct, error) {
	rows, err := r.uow.Conn().QueryContext(ctx,
		`SELECT p.id, p.name, p.category, SUM(oi.quantity), SUM(oi.quantity * oi.unit_price)
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		JOIN products p ON p.id = oi.product_id
		WHERE o.status = $1
		GROUP BY p.id, p.name, p.category
		ORDER BY 4 DESC, p.id
		LIMIT $2`,
		models.OrderStatusPaid, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute top products: %w", err)
	}
	defer rows.Close()

	products := []models.TopProduct{}
	for rows.Next() {
		var p models.TopProduct
		if err := rows.Scan(&p.ProductID, &p.ProductName, &p.Category, &p.Quantity, &p.Revenue); err != nil {
			return nil, fmt.Errorf("failed to scan top product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *ReportRepository) LowStock(ctx context.Context, threshold int) ([]models.LowStockProduct, error) {
	rows, err := r.uow.Conn().QueryContext(ctx,
		"SELECT id, name, category, price, stock FROM products WHERE stock <= $1 ORDER BY stock ASC, id",
		threshold,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute low stock: %w", err)
	}
	defer rows.Close()

	products := []models.LowStockProduct{}
	for rows.Next() {
		var p models.LowStockProduct
		if err := rows.Scan(&p.ProductID, &p.ProductName, &p.Category, &p.Price, &p.Stock); err != nil {
			return nil, fmt.Errorf("failed to scan low stock product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *ReportRepository) TopSpenders(ctx context.Context, limit int) ([]models.TopSpender, error) {
	rows, err := r.uow.Conn().QueryContext(ctx,
		`SELECT u.id, u.name, u.email, COUNT(DISTINCT o.id), SUM(oi.quantity * oi.unit_price)
		FROM users u
		JOIN orders o ON o.user_id = u.id
		JOIN order_items oi ON oi.order_id = o.id
		WHERE o.status = $1
		GROUP BY u.id, u.name, u.email
		ORDER BY 5 DESC, u.id
		LIMIT $2`,
		models.OrderStatusPaid, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute top spenders: %w", err)
	}
	defer rows.Close()

	spenders := []models.TopSpender{}
	for rows.Next() {
		var s models.TopSpender
		if err := rows.Scan(&s.UserID, &s.Name, &s.Email, &s.Orders, &s.TotalSpent); err != nil {
			return nil, fmt.Errorf("failed to scan top spender: %w", err)
		}
		spenders = append(spenders, s)
	}
	return spenders, rows.Err()
}
