package repository

import (
	"context"
	"database/sql"
	"time"

	"shop-svc/database"
	"shop-svc/models"

	"github.com/shopspring/decimal"
)

type OrderStore interface {
	FindCart(ctx context.Context, userID int) (*models.Order, error)
	LockCart(ctx context.Context, userID int) (*models.Order, error)
	Get(ctx context.Context, id int) (*models.Order, error)
	Lock(ctx context.Context, id int) (*models.Order, error)
	CreateCart(ctx context.Context, userID int) (*models.Order, error)
	UpdateStatus(ctx context.Context, id int, status models.OrderStatus, at time.Time) error
	Touch(ctx context.Context, id int, at time.Time) error
	ListByUser(ctx context.Context, userID int) ([]models.Order, error)
}

type OrderItemStore interface {
	ListByOrder(ctx context.Context, orderID int) ([]models.OrderItem, error)
	Find(ctx context.Context, orderID, productID int) (*models.OrderItem, error)
	FindLine(ctx context.Context, orderID, productID int, unitPrice decimal.Decimal) (*models.OrderItem, error)
	Add(ctx context.Context, item *models.OrderItem) error
	UpdateQuantity(ctx context.Context, id, quantity int) error
	DeleteByProduct(ctx context.Context, orderID, productID int) (int64, error)
}

type ProductStore interface {
	Get(ctx context.Context, id int) (*models.Product, error)
	LockMany(ctx context.Context, ids []int) ([]*models.Product, error)
	UpdateStock(ctx context.Context, id, stock int) error
	List(ctx context.Context) ([]models.Product, error)
	Create(ctx context.Context, p *models.Product) error
	Update(ctx context.Context, id int, req models.UpdateProductRequest) (*models.Product, error)
	Delete(ctx context.Context, id int) error
}

type UserStore interface {
	Get(ctx context.Context, id int) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, u *models.User) error
	LockMany(ctx context.Context, ids []int) ([]*models.User, error)
	UpdateBalance(ctx context.Context, id int, balance decimal.Decimal) error
}

type PaymentStore interface {
	Create(ctx context.Context, p *models.Payment) error
	GetByOrder(ctx context.Context, orderID int) (*models.Payment, error)
}

type ReportStore interface {
	BoardStats(ctx context.Context) (*models.BoardStats, error)
	MonthlySales(ctx context.Context) ([]models.MonthlySales, error)
	TopProducts(ctx context.Context, limit int) ([]models.TopProduct, error)
	LowStock(ctx context.Context, threshold int) ([]models.LowStockProduct, error)
	TopSpenders(ctx context.Context, limit int) ([]models.TopSpender, error)
}

// Session is one request's unit of work together with the repositories bound to it.
type Session interface {
	Begin(ctx context.Context) error
	BeginTx(ctx context.Context, opts *sql.TxOptions) error
	Commit() error
	Rollback() error
	Dispose() error

	Orders() OrderStore
	Items() OrderItemStore
	Products() ProductStore
	Users() UserStore
	Payments() PaymentStore
	Reports() ReportStore
}

type SessionFactory func() Session

type connProvider interface {
	Conn() database.DBTX
}

// Store wires every repository to a single UnitOfWork up front.
type Store struct {
	*database.UnitOfWork

	orders   *OrderRepository
	items    *OrderItemRepository
	products *ProductRepository
	users    *UserRepository
	payments *PaymentRepository
	reports  *ReportRepository
}

func NewStore(db *sql.DB) *Store {
	uow := database.NewUnitOfWork(db)
	return &Store{
		UnitOfWork: uow,
		orders:     &OrderRepository{uow: uow},
		items:      &OrderItemRepository{uow: uow},
		products:   &ProductRepository{uow: uow},
		users:      &UserRepository{uow: uow},
		payments:   &PaymentRepository{uow: uow},
		reports:    &ReportRepository{uow: uow},
	}
}

// NewSessionFactory returns a factory producing one Store per call.
func NewSessionFactory(db *sql.DB) SessionFactory {
	return func() Session {
		return NewStore(db)
	}
}

func (s *Store) Orders() OrderStore     { return s.orders }
func (s *Store) Items() OrderItemStore  { return s.items }
func (s *Store) Products() ProductStore { return s.products }
func (s *Store) Users() UserStore       { return s.users }
func (s *Store) Payments() PaymentStore { return s.payments }
func (s *Store) Reports() ReportStore   { return s.reports }
