// Package cart models kiosk cart lines and order totals.
package cart

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tablekiosk/api/internal/topping"
)

// DefaultTaxRate applies when a restaurant has not configured one.
var DefaultTaxRate = decimal.RequireFromString("0.10")

var (
	ErrLineNotFound    = errors.New("cart line not found")
	ErrInvalidQuantity = errors.New("quantity must be > 0")
)

// Product is the menu item snapshot carried by a cart line.
type Product struct {
	ID    uuid.UUID       `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// Line is one product instance in the cart with its own quantity and toppings.
type Line struct {
	ID       uuid.UUID      `json:"id"`
	Product  Product        `json:"product"`
	Quantity int            `json:"quantity"`
	Toppings []topping.Item `json:"selected_toppings,omitempty"`
	Notes    string         `json:"notes,omitempty"`
}

// UnitPrice is the product price plus the already quantity-priced toppings.
func (l Line) UnitPrice() decimal.Decimal {
	return l.Product.Price.Add(topping.Total(l.Toppings))
}

// Total is UnitPrice times the line quantity.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice().Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is a kiosk cart.
type Cart struct {
	ID           uuid.UUID `json:"id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
	OrderType    string    `json:"order_type,omitempty"`
	TableNumber  *int32    `json:"table_number,omitempty"`
	Lines        []Line    `json:"lines"`
}

// New creates an empty cart for a restaurant.
func New(restaurantID uuid.UUID) *Cart {
	return &Cart{ID: uuid.New(), RestaurantID: restaurantID, Lines: []Line{}}
}

// Add appends a line and returns it with its assigned ID.
func (c *Cart) Add(l Line) (Line, error) {
	if l.Quantity <= 0 {
		return Line{}, ErrInvalidQuantity
	}
	l.ID = uuid.New()
	c.Lines = append(c.Lines, l)
	return l, nil
}

func (c *Cart) find(lineID uuid.UUID) (int, error) {
	for i := range c.Lines {
		if c.Lines[i].ID == lineID {
			return i, nil
		}
	}
	return -1, ErrLineNotFound
}

// Increment adds one to the line quantity.
func (c *Cart) Increment(lineID uuid.UUID) error {
	i, err := c.find(lineID)
	if err != nil {
		return err
	}
	c.Lines[i].Quantity++
	return nil
}

// Decrement removes one from the line quantity. A line never drops below 1;
// use Remove to take it out of the cart.
func (c *Cart) Decrement(lineID uuid.UUID) error {
	i, err := c.find(lineID)
	if err != nil {
		return err
	}
	if c.Lines[i].Quantity > 1 {
		c.Lines[i].Quantity--
	}
	return nil
}

// Remove deletes a line.
func (c *Cart) Remove(lineID uuid.UUID) error {
	i, err := c.find(lineID)
	if err != nil {
		return err
	}
	c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
	return nil
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.Lines = []Line{}
}

// Totals are the money figures of an order.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// ComputeTotals sums the lines and adds tax on top. Prices are treated as
// tax-exclusive everywhere; tax is rounded to cents.
func ComputeTotals(lines []Line, taxRate decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Total())
	}
	tax := subtotal.Mul(taxRate).Round(2)
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax),
	}
}

// Totals computes the cart totals at the given tax rate.
func (c *Cart) Totals(taxRate decimal.Decimal) Totals {
	return ComputeTotals(c.Lines, taxRate)
}
