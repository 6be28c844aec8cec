package models

import "github.com/shopspring/decimal"

// MaxQuantity caps the units of one product on a single order line.
const MaxQuantity = 10000

// maxMoney is the first value a DECIMAL(12,2) column cannot hold.
var maxMoney = decimal.New(1, 10)

// IsMoney reports whether d is storable in the money columns: at most two
// decimal places and within DECIMAL(12,2) range.
func IsMoney(d decimal.Decimal) bool {
	return d.Equal(d.Round(2)) && d.Abs().LessThan(maxMoney)
}

func ValidQuantity(quantity int) bool {
	return quantity > 0 && quantity <= MaxQuantity
}
