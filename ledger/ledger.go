package ledger

import (
	"fmt"

	"shop-svc/models"

	"github.com/shopspring/decimal"
)

// Ledger is the only place user balances are changed. It mutates the in-memory
// user; persisting the result is the caller's job, inside its transaction.
type Ledger struct {
	allowOverdraft bool
}

func New(allowOverdraft bool) *Ledger {
	return &Ledger{allowOverdraft: allowOverdraft}
}

func (l *Ledger) Credit(user *models.User, amount decimal.Decimal) error {
	if amount.IsNegative() || !models.IsMoney(amount) {
		return models.ErrInvalidAmount
	}
	user.Balance = user.Balance.Add(amount)
	return nil
}

func (l *Ledger) Debit(user *models.User, amount decimal.Decimal) error {
	if amount.IsNegative() || !models.IsMoney(amount) {
		return models.ErrInvalidAmount
	}
	if !l.allowOverdraft && user.Balance.LessThan(amount) {
		return fmt.Errorf("%w: user %d has %s, needs %s",
			models.ErrInsufficientFunds, user.ID, user.Balance.StringFixed(2), amount.StringFixed(2))
	}
	user.Balance = user.Balance.Sub(amount)
	return nil
}
