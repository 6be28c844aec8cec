package repotest

import (
	"context"
	"sort"

	"shop-svc/models"

	"github.com/shopspring/decimal"
)

type reportStore struct{ s *Session }

func (r *reportStore) BoardStats(ctx context.Context) (*models.BoardStats, error) {
	var out models.BoardStats
	err := r.s.do(ctx, "reports.board_stats", func(d *state) error {
		out.TotalUsers = len(d.users)
		for _, u := range d.users {
			out.TotalUserBalances = out.TotalUserBalances.Add(u.Balance)
			if u.Balance.GreaterThan(decimal.NewFromInt(100)) {
				out.UsersWithBalance++
			}
		}
		out.TotalProducts = len(d.products)
		for _, p := range d.products {
			if p.Stock == 0 {
				out.OutOfStock++
			}
		}
		out.TotalOrders = len(d.orders)
		for _, o := range d.orders {
			switch o.Status {
			case models.OrderStatusPaid:
				out.PaidOrders++
				for _, item := range d.itemsOf(o.ID) {
					out.TotalRevenue = out.TotalRevenue.Add(item.Subtotal())
				}
			case models.OrderStatusCart:
				out.ActiveCarts++
			}
		}
		if out.PaidOrders > 0 {
			out.AverageTicket = out.TotalRevenue.Div(decimal.NewFromInt(int64(out.PaidOrders))).Round(2)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *reportStore) MonthlySales(ctx context.Context) ([]models.MonthlySales, error) {
	out := []models.MonthlySales{}
	err := r.s.do(ctx, "reports.monthly_sales", func(d *state) error {
		byMonth := map[[2]int]*models.MonthlySales{}
		for _, o := range d.orders {
			if o.Status != models.OrderStatusPaid {
				continue
			}
			key := [2]int{o.UpdatedAt.Year(), int(o.UpdatedAt.Month())}
			m, ok := byMonth[key]
			if !ok {
				m = &models.MonthlySales{Year: key[0], Month: key[1]}
				byMonth[key] = m
			}
			m.Orders++
			for _, item := range d.itemsOf(o.ID) {
				m.ItemsSold++
				m.Revenue = m.Revenue.Add(item.Subtotal())
			}
		}
		for _, m := range byMonth {
			m.Summarize()
			out = append(out, *m)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out, err
}

func (r *reportStore) TopProducts(ctx context.Context, limit int) ([]models.TopProduct, error) {
	out := []models.TopProduct{}
	err := r.s.do(ctx, "reports.top_products", func(d *state) error {
		byProduct := map[int]*models.TopProduct{}
		for _, o := range d.orders {
			if o.Status != models.OrderStatusPaid {
				continue
			}
			for _, item := range d.itemsOf(o.ID) {
				p, ok := byProduct[item.ProductID]
				if !ok {
					p = &models.TopProduct{
						ProductID:   item.ProductID,
						ProductName: item.ProductName,
						Category:    d.products[item.ProductID].Category,
					}
					byProduct[item.ProductID] = p
				}
				p.Quantity += item.Quantity
				p.Revenue = p.Revenue.Add(item.Subtotal())
			}
		}
		for _, p := range byProduct {
			out = append(out, *p)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Quantity != out[j].Quantity {
			return out[i].Quantity > out[j].Quantity
		}
		return out[i].ProductID < out[j].ProductID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (r *reportStore) LowStock(ctx context.Context, threshold int) ([]models.LowStockProduct, error) {
	out := []models.LowStockProduct{}
	err := r.s.do(ctx, "reports.low_stock", func(d *state) error {
		for _, p := range d.products {
			if p.Stock <= threshold {
				out = append(out, models.LowStockProduct{
					ProductID:   p.ID,
					ProductName: p.Name,
					Category:    p.Category,
					Price:       p.Price,
					Stock:       p.Stock,
				})
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Stock != out[j].Stock {
			return out[i].Stock < out[j].Stock
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out, err
}

func (r *reportStore) TopSpenders(ctx context.Context, limit int) ([]models.TopSpender, error) {
	out := []models.TopSpender{}
	err := r.s.do(ctx, "reports.top_spenders", func(d *state) error {
		byUser := map[int]*models.TopSpender{}
		for _, o := range d.orders {
			if o.Status != models.OrderStatusPaid {
				continue
			}
			s, ok := byUser[o.UserID]
			if !ok {
				u := d.users[o.UserID]
				s = &models.TopSpender{UserID: u.ID, Name: u.Name, Email: u.Email}
				byUser[o.UserID] = s
			}
			s.Orders++
			for _, item := range d.itemsOf(o.ID) {
				s.TotalSpent = s.TotalSpent.Add(item.Subtotal())
			}
		}
		for _, s := range byUser {
			out = append(out, *s)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TotalSpent.Equal(out[j].TotalSpent) {
			return out[i].TotalSpent.GreaterThan(out[j].TotalSpent)
		}
		return out[i].UserID < out[j].UserID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, err
}
