package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type BoardStats struct {
	TotalUsers        int             `json:"total_users"`
	UsersWithBalance  int             `json:"users_with_balance_over_100"`
	TotalProducts     int             `json:"total_products"`
	OutOfStock        int             `json:"out_of_stock_products"`
	TotalOrders       int             `json:"total_orders"`
	PaidOrders        int             `json:"paid_orders"`
	ActiveCarts       int             `json:"active_carts"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	AverageTicket     decimal.Decimal `json:"average_ticket"`
	TotalUserBalances decimal.Decimal `json:"total_user_balances"`
}

type MonthlySales struct {
	Year          int             `json:"year"`
	Month         int             `json:"month"`
	MonthName     string          `json:"month_name"`
	Orders        int             `json:"orders"`
	ItemsSold     int             `json:"items_sold"`
	Revenue       decimal.Decimal `json:"revenue"`
	AverageTicket decimal.Decimal `json:"average_ticket"`
}

// Summarize fills the fields derived from the aggregated columns.
func (m *MonthlySales) Summarize() {
	m.MonthName = time.Month(m.Month).String()
	m.AverageTicket = decimal.Zero
	if m.Orders > 0 {
		m.AverageTicket = m.Revenue.Div(decimal.NewFromInt(int64(m.Orders))).Round(2)
	}
}

type TopProduct struct {
	ProductID   int             `json:"product_id"`
	ProductName string          `json:"product_name"`
	Category    string          `json:"category"`
	Quantity    int             `json:"quantity_sold"`
	Revenue     decimal.Decimal `json:"revenue"`
}

type LowStockProduct struct {
	ProductID   int             `json:"product_id"`
	ProductName string          `json:"product_name"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
}

type TopSpender struct {
	UserID     int             `json:"user_id"`
	Name       string          `json:"name"`
	Email      string          `json:"email"`
	Orders     int             `json:"orders"`
	TotalSpent decimal.Decimal `json:"total_spent"`
}
