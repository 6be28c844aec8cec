package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInvalidQuantity   = fmt.Errorf("quantity must be between 1 and %d", MaxQuantity)
	ErrInvalidAmount     = errors.New("amount must be a non-negative value with at most two decimal places")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrOrderNotCart      = errors.New("order is not a cart")
	ErrCartExists        = errors.New("user already has an active cart")
)

type InsufficientStockError struct {
	ProductID   int
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d",
		e.ProductName, e.Available, e.Requested)
}
