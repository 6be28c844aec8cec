// Package repotest provides an in-memory repository.Session for tests.
//
// A transaction holds the DB lock from Begin until Commit or Rollback, so
// concurrent sessions serialize the way row-locked Postgres transactions do
// for the rows the service touches. Rollback restores a snapshot taken at Begin.
package repotest

import (
	"context"
	"database/sql"
	"errors"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"shop-svc/models"
	"shop-svc/repository"

	"github.com/shopspring/decimal"
)

type state struct {
	users    map[int]models.User
	products map[int]models.Product
	orders   map[int]models.Order
	items    map[int]models.OrderItem
	payments map[int]models.Payment
	nextID   int
}

func (s *state) clone() *state {
	return &state{
		users:    maps.Clone(s.users),
		products: maps.Clone(s.products),
		orders:   maps.Clone(s.orders),
		items:    maps.Clone(s.items),
		payments: maps.Clone(s.payments),
		nextID:   s.nextID,
	}
}

func (s *state) id() int {
	s.nextID++
	return s.nextID
}

type DB struct {
	mu       sync.Mutex
	data     *state
	failures map[string]error
	commits  int
	rollback int
}

func NewDB() *DB {
	return &DB{
		data: &state{
			users:    map[int]models.User{},
			products: map[int]models.Product{},
			orders:   map[int]models.Order{},
			items:    map[int]models.OrderItem{},
			payments: map[int]models.Payment{},
		},
		failures: map[string]error{},
	}
}

// Fail makes the named operation (for example "payments.create") return err.
func (db *DB) Fail(op string, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.failures[op] = err
}

func (db *DB) Sessions() repository.SessionFactory {
	return func() repository.Session {
		return db.NewSession()
	}
}

func (db *DB) NewSession() *Session {
	s := &Session{db: db}
	s.orders = &orderStore{s}
	s.items = &itemStore{s}
	s.products = &productStore{s}
	s.users = &userStore{s}
	s.payments = &paymentStore{s}
	s.reports = &reportStore{s}
	return s
}

func (db *DB) Commits() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.commits
}

func (db *DB) Rollbacks() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.rollback
}

func (db *DB) AddUser(u models.User) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	if u.ID == 0 {
		u.ID = db.data.id()
	}
	if u.Role == "" {
		u.Role = models.RoleCustomer
	}
	db.data.users[u.ID] = u
	return u.ID
}

func (db *DB) AddProduct(p models.Product) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	if p.ID == 0 {
		p.ID = db.data.id()
	}
	db.data.products[p.ID] = p
	return p.ID
}

func (db *DB) AddOrder(userID int, status models.OrderStatus) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	id := db.data.id()
	db.data.orders[id] = models.Order{ID: id, UserID: userID, Status: status, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	return id
}

func (db *DB) AddItem(orderID, productID, quantity int, unitPrice decimal.Decimal) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	id := db.data.id()
	db.data.items[id] = models.OrderItem{ID: id, OrderID: orderID, ProductID: productID, Quantity: quantity, UnitPrice: unitPrice}
	return id
}

func (db *DB) SetPrice(productID int, price decimal.Decimal) {
	db.mu.Lock()
	defer db.mu.Unlock()
	p := db.data.products[productID]
	p.Price = price
	db.data.products[productID] = p
}

func (db *DB) User(id int) models.User {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.data.users[id]
}

func (db *DB) Product(id int) models.Product {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.data.products[id]
}

func (db *DB) Order(id int) models.Order {
	db.mu.Lock()
	defer db.mu.Unlock()
	o := db.data.orders[id]
	o.Items = db.data.itemsOf(id)
	return o
}

func (db *DB) Payments() []models.Payment {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := slices.Collect(maps.Values(db.data.payments))
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *state) itemsOf(orderID int) []models.OrderItem {
	items := []models.OrderItem{}
	for _, item := range s.items {
		if item.OrderID == orderID {
			if p, ok := s.products[item.ProductID]; ok {
				item.ProductName = p.Name
				item.SellerID = p.SellerID
			}
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

type Session struct {
	db       *DB
	snapshot *state
	inTx     bool
	disposed bool

	orders   *orderStore
	items    *itemStore
	products *productStore
	users    *userStore
	payments *paymentStore
	reports  *reportStore
}

func (s *Session) Begin(ctx context.Context) error {
	return s.BeginTx(ctx, nil)
}

func (s *Session) BeginTx(ctx context.Context, _ *sql.TxOptions) error {
	if s.disposed {
		return errors.New("session disposed")
	}
	if s.inTx {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.db.mu.Lock()
	if err := s.db.failures["begin"]; err != nil {
		s.db.mu.Unlock()
		return err
	}
	s.snapshot = s.db.data.clone()
	s.inTx = true
	return nil
}

func (s *Session) Commit() error {
	if !s.inTx {
		return errors.New("no active transaction to commit")
	}
	s.inTx = false
	s.snapshot = nil
	s.db.commits++
	s.db.mu.Unlock()
	return nil
}

func (s *Session) Rollback() error {
	if !s.inTx {
		return nil
	}
	s.db.data = s.snapshot
	s.snapshot = nil
	s.inTx = false
	s.db.rollback++
	s.db.mu.Unlock()
	return nil
}

func (s *Session) Dispose() error {
	if s.disposed {
		return nil
	}
	s.disposed = true
	return s.Rollback()
}

func (s *Session) Orders() repository.OrderStore     { return s.orders }
func (s *Session) Items() repository.OrderItemStore  { return s.items }
func (s *Session) Products() repository.ProductStore { return s.products }
func (s *Session) Users() repository.UserStore       { return s.users }
func (s *Session) Payments() repository.PaymentStore { return s.payments }
func (s *Session) Reports() repository.ReportStore   { return s.reports }

// do runs fn against the shared state, taking the DB lock unless this
// session already holds it through an open transaction.
func (s *Session) do(ctx context.Context, op string, fn func(d *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.inTx {
		s.db.mu.Lock()
		defer s.db.mu.Unlock()
	}
	if err := s.db.failures[op]; err != nil {
		return err
	}
	return fn(s.db.data)
}
