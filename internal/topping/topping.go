// Package topping implements the selection rules for customizing a menu item
// with toppings: per-category selection bounds, per-topping quantity caps,
// and the required-category check performed before a cart line is created.
//
// The package is pure: it does no I/O and holds no global state. The kiosk
// validation endpoint, the cart and order submission all share it.
package topping

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrUnknownTopping is returned when an operation names a topping that is not
// part of the selection.
var ErrUnknownTopping = errors.New("topping is not available for this item")

// ErrInvalidCategory is returned by Category.Validate.
var ErrInvalidCategory = errors.New("invalid topping category")

// Category groups toppings that share selection-count constraints.
type Category struct {
	ID           uuid.UUID
	Name         string
	MinSelection int
	MaxSelection int
	Required     bool
}

// CategoryError describes a misconfigured category. It matches
// ErrInvalidCategory with errors.Is.
type CategoryError struct {
	Reason string
}

func (e *CategoryError) Error() string { return e.Reason }

func (e *CategoryError) Is(target error) bool { return target == ErrInvalidCategory }

// Validate checks the configuration constraints of a category.
func (c Category) Validate() error {
	switch {
	case c.MinSelection < 0:
		return &CategoryError{Reason: "min_selection must be >= 0"}
	case c.MaxSelection < 1:
		return &CategoryError{Reason: "max_selection must be >= 1"}
	case c.MinSelection > c.MaxSelection:
		return &CategoryError{Reason: "min_selection must be <= max_selection"}
	}
	return nil
}

// Topping is a single selectable topping with its unit price.
type Topping struct {
	ID          uuid.UUID
	Name        string
	Price       decimal.Decimal
	CategoryID  uuid.UUID
	MaxQuantity int
}

// Item is a submitted topping. Price is the unit price multiplied by Quantity.
type Item struct {
	ID         uuid.UUID       `json:"id"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	CategoryID uuid.UUID       `json:"category_id"`
	Quantity   int             `json:"quantity"`
}

// UnitPrice returns the per-unit price of the item.
func (i Item) UnitPrice() decimal.Decimal {
	if i.Quantity == 0 {
		return decimal.Zero
	}
	return i.Price.Div(decimal.NewFromInt(int64(i.Quantity)))
}

// Total sums the prices of the given items.
func Total(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Price)
	}
	return sum
}

// MaxSelectionError reports an attempt to select one topping too many in a category.
type MaxSelectionError struct {
	Category     string
	MaxSelection int
}

func (e *MaxSelectionError) Error() string {
	return fmt.Sprintf("You can select up to %d items from %s", e.MaxSelection, e.Category)
}

// MinSelectionError reports a required category that has too few selected toppings.
type MinSelectionError struct {
	Category     string
	MinSelection int
}

func (e *MinSelectionError) Error() string {
	return fmt.Sprintf("You must select at least %d items from %s", e.MinSelection, e.Category)
}

// MaxQuantityError reports a requested quantity above a topping's cap.
type MaxQuantityError struct {
	Topping     string
	MaxQuantity int
}

func (e *MaxQuantityError) Error() string {
	return fmt.Sprintf("%s can be added at most %d times", e.Topping, e.MaxQuantity)
}

// ValidationErrors collects every violated category of a rejected submission.
type ValidationErrors []error

func (v ValidationErrors) Error() string {
	if len(v) == 1 {
		return v[0].Error()
	}
	return fmt.Sprintf("%s (and %d more)", v[0].Error(), len(v)-1)
}

// Messages returns one user-facing message per violation.
func (v ValidationErrors) Messages() []string {
	out := make([]string, len(v))
	for i, err := range v {
		out[i] = err.Error()
	}
	return out
}

// Unwrap lets errors.As find the individual violations.
func (v ValidationErrors) Unwrap() []error {
	return v
}
