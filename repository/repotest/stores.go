package repotest

import (
	"context"
	"errors"
	"sort"
	"time"

	"shop-svc/models"

	"github.com/shopspring/decimal"
)

type orderStore struct{ s *Session }

func (r *orderStore) findCart(ctx context.Context, op string, userID int) (*models.Order, error) {
	var out *models.Order
	err := r.s.do(ctx, op, func(d *state) error {
		for _, o := range d.orders {
			if o.UserID == userID && o.Status == models.OrderStatusCart {
				out = &o
				return nil
			}
		}
		return models.ErrNotFound
	})
	return out, err
}

func (r *orderStore) FindCart(ctx context.Context, userID int) (*models.Order, error) {
	return r.findCart(ctx, "orders.find_cart", userID)
}

func (r *orderStore) LockCart(ctx context.Context, userID int) (*models.Order, error) {
	return r.findCart(ctx, "orders.lock_cart", userID)
}

func (r *orderStore) get(ctx context.Context, op string, id int) (*models.Order, error) {
	var out *models.Order
	err := r.s.do(ctx, op, func(d *state) error {
		o, ok := d.orders[id]
		if !ok {
			return models.ErrNotFound
		}
		out = &o
		return nil
	})
	return out, err
}

func (r *orderStore) Get(ctx context.Context, id int) (*models.Order, error) {
	return r.get(ctx, "orders.get", id)
}

func (r *orderStore) Lock(ctx context.Context, id int) (*models.Order, error) {
	return r.get(ctx, "orders.lock", id)
}

func (r *orderStore) CreateCart(ctx context.Context, userID int) (*models.Order, error) {
	var out *models.Order
	err := r.s.do(ctx, "orders.create_cart", func(d *state) error {
		for _, o := range d.orders {
			if o.UserID == userID && o.Status == models.OrderStatusCart {
				return models.ErrCartExists
			}
		}
		now := time.Now()
		o := models.Order{ID: d.id(), UserID: userID, Status: models.OrderStatusCart, CreatedAt: now, UpdatedAt: now}
		d.orders[o.ID] = o
		out = &o
		return nil
	})
	return out, err
}

func (r *orderStore) UpdateStatus(ctx context.Context, id int, status models.OrderStatus, at time.Time) error {
	return r.s.do(ctx, "orders.update_status", func(d *state) error {
		o, ok := d.orders[id]
		if !ok {
			return models.ErrNotFound
		}
		o.Status = status
		o.UpdatedAt = at
		d.orders[id] = o
		return nil
	})
}

func (r *orderStore) Touch(ctx context.Context, id int, at time.Time) error {
	return r.s.do(ctx, "orders.touch", func(d *state) error {
		o, ok := d.orders[id]
		if !ok {
			return models.ErrNotFound
		}
		o.UpdatedAt = at
		d.orders[id] = o
		return nil
	})
}

func (r *orderStore) ListByUser(ctx context.Context, userID int) ([]models.Order, error) {
	orders := []models.Order{}
	err := r.s.do(ctx, "orders.list_by_user", func(d *state) error {
		for _, o := range d.orders {
			if o.UserID == userID {
				orders = append(orders, o)
			}
		}
		return nil
	})
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID > orders[j].ID })
	return orders, err
}

type itemStore struct{ s *Session }

func (r *itemStore) ListByOrder(ctx context.Context, orderID int) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := r.s.do(ctx, "items.list_by_order", func(d *state) error {
		items = d.itemsOf(orderID)
		return nil
	})
	return items, err
}

func (r *itemStore) find(ctx context.Context, op string, orderID int, match func(models.OrderItem) bool) (*models.OrderItem, error) {
	var out *models.OrderItem
	err := r.s.do(ctx, op, func(d *state) error {
		for _, item := range d.itemsOf(orderID) {
			if match(item) {
				out = &item
				return nil
			}
		}
		return models.ErrNotFound
	})
	return out, err
}

func (r *itemStore) Find(ctx context.Context, orderID, productID int) (*models.OrderItem, error) {
	return r.find(ctx, "items.find", orderID, func(i models.OrderItem) bool {
		return i.ProductID == productID
	})
}

func (r *itemStore) FindLine(ctx context.Context, orderID, productID int, unitPrice decimal.Decimal) (*models.OrderItem, error) {
	return r.find(ctx, "items.find_line", orderID, func(i models.OrderItem) bool {
		return i.ProductID == productID && i.UnitPrice.Equal(unitPrice)
	})
}

func (r *itemStore) Add(ctx context.Context, item *models.OrderItem) error {
	return r.s.do(ctx, "items.add", func(d *state) error {
		item.ID = d.id()
		stored := *item
		stored.ProductName = ""
		stored.SellerID = 0
		d.items[item.ID] = stored
		return nil
	})
}

func (r *itemStore) UpdateQuantity(ctx context.Context, id, quantity int) error {
	return r.s.do(ctx, "items.update_quantity", func(d *state) error {
		item, ok := d.items[id]
		if !ok {
			return models.ErrNotFound
		}
		item.Quantity = quantity
		d.items[id] = item
		return nil
	})
}

func (r *itemStore) DeleteByProduct(ctx context.Context, orderID, productID int) (int64, error) {
	var n int64
	err := r.s.do(ctx, "items.delete_by_product", func(d *state) error {
		for id, item := range d.items {
			if item.OrderID == orderID && item.ProductID == productID {
				delete(d.items, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

type productStore struct{ s *Session }

func (r *productStore) Get(ctx context.Context, id int) (*models.Product, error) {
	var out *models.Product
	err := r.s.do(ctx, "products.get", func(d *state) error {
		p, ok := d.products[id]
		if !ok {
			return models.ErrNotFound
		}
		out = &p
		return nil
	})
	return out, err
}

func (r *productStore) LockMany(ctx context.Context, ids []int) ([]*models.Product, error) {
	var out []*models.Product
	err := r.s.do(ctx, "products.lock_many", func(d *state) error {
		for _, id := range ids {
			if p, ok := d.products[id]; ok {
				out = append(out, &p)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (r *productStore) UpdateStock(ctx context.Context, id, stock int) error {
	return r.s.do(ctx, "products.update_stock", func(d *state) error {
		p, ok := d.products[id]
		if !ok {
			return models.ErrNotFound
		}
		p.Stock = stock
		p.UpdatedAt = time.Now()
		d.products[id] = p
		return nil
	})
}

func (r *productStore) List(ctx context.Context) ([]models.Product, error) {
	products := []models.Product{}
	err := r.s.do(ctx, "products.list", func(d *state) error {
		for _, p := range d.products {
			products = append(products, p)
		}
		return nil
	})
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, err
}

func (r *productStore) Create(ctx context.Context, p *models.Product) error {
	return r.s.do(ctx, "products.create", func(d *state) error {
		p.ID = d.id()
		p.CreatedAt = time.Now()
		p.UpdatedAt = p.CreatedAt
		d.products[p.ID] = *p
		return nil
	})
}

func (r *productStore) Update(ctx context.Context, id int, req models.UpdateProductRequest) (*models.Product, error) {
	var out *models.Product
	err := r.s.do(ctx, "products.update", func(d *state) error {
		p, ok := d.products[id]
		if !ok {
			return models.ErrNotFound
		}
		if req.Name != nil {
			p.Name = *req.Name
		}
		if req.Description != nil {
			p.Description = *req.Description
		}
		if req.Price != nil {
			p.Price = *req.Price
		}
		if req.Stock != nil {
			p.Stock = *req.Stock
		}
		if req.Category != nil {
			p.Category = *req.Category
		}
		if req.ImageURL != nil {
			p.ImageURL = *req.ImageURL
		}
		p.UpdatedAt = time.Now()
		d.products[id] = p
		out = &p
		return nil
	})
	return out, err
}

func (r *productStore) Delete(ctx context.Context, id int) error {
	return r.s.do(ctx, "products.delete", func(d *state) error {
		if _, ok := d.products[id]; !ok {
			return models.ErrNotFound
		}
		delete(d.products, id)
		return nil
	})
}

type userStore struct{ s *Session }

func (r *userStore) Get(ctx context.Context, id int) (*models.User, error) {
	var out *models.User
	err := r.s.do(ctx, "users.get", func(d *state) error {
		u, ok := d.users[id]
		if !ok {
			return models.ErrNotFound
		}
		out = &u
		return nil
	})
	return out, err
}

func (r *userStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var out *models.User
	err := r.s.do(ctx, "users.find_by_email", func(d *state) error {
		for _, u := range d.users {
			if u.Email == email {
				out = &u
				return nil
			}
		}
		return models.ErrNotFound
	})
	return out, err
}

func (r *userStore) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := r.FindByEmail(ctx, email)
	if err == models.ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (r *userStore) Create(ctx context.Context, u *models.User) error {
	return r.s.do(ctx, "users.create", func(d *state) error {
		u.ID = d.id()
		u.CreatedAt = time.Now()
		d.users[u.ID] = *u
		return nil
	})
}

func (r *userStore) LockMany(ctx context.Context, ids []int) ([]*models.User, error) {
	var out []*models.User
	err := r.s.do(ctx, "users.lock_many", func(d *state) error {
		for _, id := range ids {
			if u, ok := d.users[id]; ok {
				out = append(out, &u)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (r *userStore) UpdateBalance(ctx context.Context, id int, balance decimal.Decimal) error {
	return r.s.do(ctx, "users.update_balance", func(d *state) error {
		u, ok := d.users[id]
		if !ok {
			return models.ErrNotFound
		}
		u.Balance = balance
		d.users[id] = u
		return nil
	})
}

var errDuplicatePayment = errors.New("payment already exists for order")

type paymentStore struct{ s *Session }

func (r *paymentStore) Create(ctx context.Context, p *models.Payment) error {
	return r.s.do(ctx, "payments.create", func(d *state) error {
		for _, existing := range d.payments {
			if existing.OrderID == p.OrderID {
				return errDuplicatePayment
			}
		}
		p.ID = d.id()
		stored := *p
		stored.TotalAmount = decimal.Zero
		d.payments[p.ID] = stored
		return nil
	})
}

func (r *paymentStore) GetByOrder(ctx context.Context, orderID int) (*models.Payment, error) {
	var out *models.Payment
	err := r.s.do(ctx, "payments.get_by_order", func(d *state) error {
		for _, p := range d.payments {
			if p.OrderID == orderID {
				total := decimal.Zero
				for _, item := range d.itemsOf(orderID) {
					total = total.Add(item.Subtotal())
				}
				p.TotalAmount = total
				out = &p
				return nil
			}
		}
		return models.ErrNotFound
	})
	return out, err
}
