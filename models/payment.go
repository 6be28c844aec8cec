package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "Pending"
	PaymentStatusCompleted PaymentStatus = "Completed"
	PaymentStatusFailed    PaymentStatus = "Failed"
)

type Payment struct {
	ID            int             `json:"id"`
	OrderID       int             `json:"order_id"`
	Status        PaymentStatus   `json:"status"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	TransactionID string          `json:"transaction_id"`
	CreatedAt     time.Time       `json:"created_at"`
}

type PaymentEvent struct {
	PaymentID     int             `json:"payment_id"`
	OrderID       int             `json:"order_id"`
	UserID        int             `json:"user_id"`
	Amount        decimal.Decimal `json:"amount"`
	Status        PaymentStatus   `json:"status"`
	EventType     string          `json:"event_type"` // payment_completed
	TransactionID string          `json:"transaction_id"`
}

const EventPaymentCompleted = "payment_completed"
