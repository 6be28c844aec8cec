package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shop-svc/models"
	"shop-svc/repository"

	"go.uber.org/zap"
)

// Service owns the cart side of the order aggregate: creating carts and
// adding or removing lines while the order is still a cart.
type Service struct {
	sessions repository.SessionFactory
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(sessions repository.SessionFactory, logger *zap.Logger) *Service {
	return &Service{
		sessions: sessions,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GetOrCreateCart returns the user's cart with its lines, creating an empty
// cart when the user has none.
func (s *Service) GetOrCreateCart(ctx context.Context, userID int) (*models.Order, error) {
	sess := s.sessions()
	defer sess.Dispose()

	order, err := getOrCreate(ctx, sess, userID)
	if err != nil {
		return nil, err
	}

	items, err := sess.Items().ListByOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

func getOrCreate(ctx context.Context, sess repository.Session, userID int) (*models.Order, error) {
	order, err := sess.Orders().FindCart(ctx, userID)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	if _, err := sess.Users().Get(ctx, userID); err != nil {
		return nil, fmt.Errorf("user %d: %w", userID, err)
	}

	order, err = sess.Orders().CreateCart(ctx, userID)
	if errors.Is(err, models.ErrCartExists) {
		// Lost a race with a concurrent creator; its cart is the one to use.
		return sess.Orders().FindCart(ctx, userID)
	}
	return order, err
}

// AddItem puts quantity units of the product into the cart order. The unit
// price is snapshotted from the product now. A line already holding the
// product at the same price grows, up to MaxQuantity; a different price
// starts a new line.
func (s *Service) AddItem(ctx context.Context, orderID, productID, quantity int) (*models.OrderItem, error) {
	if !models.ValidQuantity(quantity) {
		return nil, models.ErrInvalidQuantity
	}

	sess := s.sessions()
	defer sess.Dispose()

	if err := sess.Begin(ctx); err != nil {
		return nil, err
	}

	item, err := s.addItem(ctx, sess, orderID, productID, quantity)
	if err != nil {
		sess.Rollback()
		return nil, err
	}

	if err := sess.Commit(); err != nil {
		return nil, err
	}

	s.logger.Info("Item added to cart",
		zap.Int("order_id", orderID),
		zap.Int("product_id", productID),
		zap.Int("quantity", quantity),
	)
	return item, nil
}

func (s *Service) addItem(ctx context.Context, sess repository.Session, orderID, productID, quantity int) (*models.OrderItem, error) {
	order, err := sess.Orders().Lock(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("order %d: %w", orderID, err)
	}
	if !order.IsCart() {
		return nil, models.ErrOrderNotCart
	}

	product, err := sess.Products().Get(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("product %d: %w", productID, err)
	}

	item, err := sess.Items().FindLine(ctx, orderID, productID, product.Price)
	switch {
	case err == nil:
		if !models.ValidQuantity(item.Quantity + quantity) {
			return nil, fmt.Errorf("line holds %d: %w", item.Quantity, models.ErrInvalidQuantity)
		}
		item.Quantity += quantity
		if err := sess.Items().UpdateQuantity(ctx, item.ID, item.Quantity); err != nil {
			return nil, err
		}
	case errors.Is(err, models.ErrNotFound):
		item = &models.OrderItem{
			OrderID:   orderID,
			ProductID: productID,
			Quantity:  quantity,
			UnitPrice: product.Price,
		}
		if err := sess.Items().Add(ctx, item); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	item.ProductName = product.Name
	item.SellerID = product.SellerID

	if err := sess.Orders().Touch(ctx, orderID, s.now()); err != nil {
		return nil, err
	}
	return item, nil
}

// AddItemForUser adds to the user's cart, creating the cart if needed.
func (s *Service) AddItemForUser(ctx context.Context, userID, productID, quantity int) (*models.OrderItem, error) {
	if !models.ValidQuantity(quantity) {
		return nil, models.ErrInvalidQuantity
	}

	order, err := s.cartFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.AddItem(ctx, order.ID, productID, quantity)
}

func (s *Service) cartFor(ctx context.Context, userID int) (*models.Order, error) {
	sess := s.sessions()
	defer sess.Dispose()
	return getOrCreate(ctx, sess, userID)
}

// RemoveItem deletes every line for the product from the user's cart.
func (s *Service) RemoveItem(ctx context.Context, userID, productID int) error {
	sess := s.sessions()
	defer sess.Dispose()

	if err := sess.Begin(ctx); err != nil {
		return err
	}

	if err := s.removeItem(ctx, sess, userID, productID); err != nil {
		sess.Rollback()
		return err
	}

	if err := sess.Commit(); err != nil {
		return err
	}

	s.logger.Info("Item removed from cart",
		zap.Int("user_id", userID),
		zap.Int("product_id", productID),
	)
	return nil
}

func (s *Service) removeItem(ctx context.Context, sess repository.Session, userID, productID int) error {
	order, err := sess.Orders().LockCart(ctx, userID)
	if err != nil {
		return fmt.Errorf("cart for user %d: %w", userID, err)
	}

	removed, err := sess.Items().DeleteByProduct(ctx, order.ID, productID)
	if err != nil {
		return err
	}
	if removed == 0 {
		return fmt.Errorf("product %d in cart: %w", productID, models.ErrNotFound)
	}

	return sess.Orders().Touch(ctx, order.ID, s.now())
}

func (s *Service) GetItem(ctx context.Context, orderID, productID int) (*models.OrderItem, error) {
	sess := s.sessions()
	defer sess.Dispose()
	return sess.Items().Find(ctx, orderID, productID)
}

// Order loads an order with its lines and, once paid, its payment.
func (s *Service) Order(ctx context.Context, orderID int) (*models.Order, error) {
	sess := s.sessions()
	defer sess.Dispose()

	order, err := sess.Orders().Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := loadDetails(ctx, sess, order); err != nil {
		return nil, err
	}
	return order, nil
}

// History lists every order of the user, newest first.
func (s *Service) History(ctx context.Context, userID int) ([]models.Order, error) {
	sess := s.sessions()
	defer sess.Dispose()

	orders, err := sess.Orders().ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		if err := loadDetails(ctx, sess, &orders[i]); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (s *Service) Payment(ctx context.Context, orderID int) (*models.Payment, error) {
	sess := s.sessions()
	defer sess.Dispose()
	return sess.Payments().GetByOrder(ctx, orderID)
}

func loadDetails(ctx context.Context, sess repository.Session, order *models.Order) error {
	items, err := sess.Items().ListByOrder(ctx, order.ID)
	if err != nil {
		return err
	}
	order.Items = items

	if order.Status != models.OrderStatusPaid {
		return nil
	}
	payment, err := sess.Payments().GetByOrder(ctx, order.ID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return err
	}
	order.Payment = payment
	return nil
}
