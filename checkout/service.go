package checkout

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"shop-svc/inventory"
	"shop-svc/ledger"
	"shop-svc/middleware"
	"shop-svc/models"
	"shop-svc/repository"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ProcessingError wraps whatever made a checkout fail. The transaction has
// already been rolled back when it is returned.
type ProcessingError struct {
	Err error
}

func (e *ProcessingError) Error() string {
	return "payment processing failed: " + e.Err.Error()
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

type Publisher interface {
	PublishPayment(ctx context.Context, event models.PaymentEvent) error
}

type ProductCache interface {
	Invalidate(ctx context.Context, productIDs ...int) error
}

type Option func(*Service)

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithProductCache(c ProductCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

type Service struct {
	sessions  repository.SessionFactory
	ledger    *ledger.Ledger
	guard     *inventory.Guard
	timeout   time.Duration
	publisher Publisher
	cache     ProductCache
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(
	sessions repository.SessionFactory,
	l *ledger.Ledger,
	guard *inventory.Guard,
	timeout time.Duration,
	logger *zap.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		sessions: sessions,
		ledger:   l,
		guard:    guard,
		timeout:  timeout,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type settlement struct {
	order      *models.Order
	payment    *models.Payment
	productIDs []int
}

// ProcessPayment turns the user's cart into a paid order in one transaction:
// the buyer is debited the order total, every line's seller is credited the
// line subtotal, stock is decremented and a completed Payment is recorded.
// Nothing is written unless every check passes.
func (s *Service) ProcessPayment(ctx context.Context, userID int) (*models.Payment, error) {
	ctx, span := otel.Tracer("shop-service").Start(ctx, "ProcessPayment")
	defer span.End()
	span.SetAttributes(attribute.Int("user_id", userID))

	start := time.Now()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	sess := s.sessions()
	defer sess.Dispose()

	res, err := s.run(ctx, sess, userID)
	if err != nil {
		span.RecordError(err)
		middleware.RecordCheckout("failed", time.Since(start))
		s.logger.Warn("Payment processing failed", zap.Int("user_id", userID), zap.Error(err))
		return nil, &ProcessingError{Err: err}
	}

	middleware.RecordCheckout("completed", time.Since(start))
	span.SetAttributes(
		attribute.Int("order.id", res.order.ID),
		attribute.String("payment.transaction_id", res.payment.TransactionID),
	)
	s.afterCommit(ctx, userID, res)

	s.logger.Info("Payment processed",
		zap.Int("user_id", userID),
		zap.Int("order_id", res.order.ID),
		zap.Int("payment_id", res.payment.ID),
		zap.String("total", res.payment.TotalAmount.StringFixed(2)),
	)
	return res.payment, nil
}

func (s *Service) run(ctx context.Context, sess repository.Session, userID int) (*settlement, error) {
	if err := sess.Begin(ctx); err != nil {
		return nil, err
	}

	res, err := s.settle(ctx, sess, userID)
	if err != nil {
		if rbErr := sess.Rollback(); rbErr != nil {
			s.logger.Error("Failed to rollback checkout", zap.Int("user_id", userID), zap.Error(rbErr))
		}
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		return nil, err
	}

	if err := sess.Commit(); err != nil {
		return nil, err
	}
	return res, nil
}

// settle locks rows in a fixed order (cart, products by id, users by id) so
// concurrent checkouts touching the same rows serialize instead of deadlocking.
func (s *Service) settle(ctx context.Context, sess repository.Session, userID int) (*settlement, error) {
	order, err := sess.Orders().LockCart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("cart for user %d: %w", userID, err)
	}

	items, err := sess.Items().ListByOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, models.ErrEmptyCart
	}
	order.Items = items
	total := order.Total()

	productIDs := uniqueSorted(items, func(i models.OrderItem) int { return i.ProductID })
	locked, err := sess.Products().LockMany(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	products := make(map[int]*models.Product, len(locked))
	for _, p := range locked {
		products[p.ID] = p
	}
	if err := s.guard.Validate(items, products); err != nil {
		return nil, err
	}

	partyIDs := []int{userID}
	for _, p := range products {
		partyIDs = append(partyIDs, p.SellerID)
	}
	lockedUsers, err := sess.Users().LockMany(ctx, dedupeSorted(partyIDs))
	if err != nil {
		return nil, err
	}
	users := make(map[int]*models.User, len(lockedUsers))
	for _, u := range lockedUsers {
		users[u.ID] = u
	}

	for _, item := range items {
		sellerID := products[item.ProductID].SellerID
		seller, ok := users[sellerID]
		if !ok {
			return nil, fmt.Errorf("seller %d: %w", sellerID, models.ErrNotFound)
		}
		if err := s.ledger.Credit(seller, item.Subtotal()); err != nil {
			return nil, err
		}
	}

	buyer, ok := users[userID]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", userID, models.ErrNotFound)
	}
	if err := s.ledger.Debit(buyer, total); err != nil {
		return nil, err
	}

	now := s.now()
	payment := &models.Payment{
		OrderID:       order.ID,
		Status:        models.PaymentStatusCompleted,
		TotalAmount:   total,
		TransactionID: uuid.NewString(),
		CreatedAt:     now,
	}
	if err := sess.Payments().Create(ctx, payment); err != nil {
		return nil, err
	}

	for _, id := range slices.Sorted(maps.Keys(users)) {
		if err := sess.Users().UpdateBalance(ctx, id, users[id].Balance); err != nil {
			return nil, err
		}
	}

	if err := s.guard.Decrement(items, products); err != nil {
		return nil, err
	}
	for _, id := range productIDs {
		if err := sess.Products().UpdateStock(ctx, id, products[id].Stock); err != nil {
			return nil, err
		}
	}

	if err := sess.Orders().UpdateStatus(ctx, order.ID, models.OrderStatusPaid, now); err != nil {
		return nil, err
	}
	order.Status = models.OrderStatusPaid
	order.UpdatedAt = now

	return &settlement{order: order, payment: payment, productIDs: productIDs}, nil
}

// afterCommit runs side effects that must not change the outcome of a
// committed checkout; failures are only logged.
func (s *Service) afterCommit(ctx context.Context, userID int, res *settlement) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, res.productIDs...); err != nil {
			s.logger.Warn("Failed to invalidate product cache", zap.Error(err))
		}
	}

	if s.publisher == nil {
		return
	}
	event := models.PaymentEvent{
		PaymentID:     res.payment.ID,
		OrderID:       res.order.ID,
		UserID:        userID,
		Amount:        res.payment.TotalAmount,
		Status:        res.payment.Status,
		EventType:     models.EventPaymentCompleted,
		TransactionID: res.payment.TransactionID,
	}
	if err := s.publisher.PublishPayment(ctx, event); err != nil {
		s.logger.Error("Failed to publish payment_completed event",
			zap.Int("order_id", res.order.ID),
			zap.Error(err),
		)
	}
}

func uniqueSorted(items []models.OrderItem, key func(models.OrderItem) int) []int {
	ids := make([]int, 0, len(items))
	for _, item := range items {
		ids = append(ids, key(item))
	}
	return dedupeSorted(ids)
}

func dedupeSorted(ids []int) []int {
	ids = slices.Clone(ids)
	slices.Sort(ids)
	return slices.Compact(ids)
}
