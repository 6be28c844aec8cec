package inventory

import (
	"fmt"
	"maps"
	"slices"

	"shop-svc/models"
)

// Guard checks and applies stock changes for a set of order lines.
type Guard struct{}

func NewGuard() *Guard {
	return &Guard{}
}

// Validate checks every line before anything is mutated. Quantities for the
// same product on several lines are summed.
func (g *Guard) Validate(items []models.OrderItem, products map[int]*models.Product) error {
	d := demand(items)
	for _, productID := range slices.Sorted(maps.Keys(d)) {
		requested := d[productID]
		p, ok := products[productID]
		if !ok {
			return fmt.Errorf("product %d: %w", productID, models.ErrNotFound)
		}
		if p.Stock < requested {
			return &models.InsufficientStockError{
				ProductID:   p.ID,
				ProductName: p.Name,
				Available:   p.Stock,
				Requested:   requested,
			}
		}
	}
	return nil
}

// Decrement subtracts each line's quantity from its product.
func (g *Guard) Decrement(items []models.OrderItem, products map[int]*models.Product) error {
	if err := g.Validate(items, products); err != nil {
		return err
	}
	for _, item := range items {
		products[item.ProductID].Stock -= item.Quantity
	}
	return nil
}

func demand(items []models.OrderItem) map[int]int {
	d := make(map[int]int, len(items))
	for _, item := range items {
		d[item.ProductID] += item.Quantity
	}
	return d
}
