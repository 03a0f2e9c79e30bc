package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/tablekiosk/api/internal/database"
	"github.com/tablekiosk/api/internal/topping"
)

// SelectionStore loads the topping configuration of a menu item.
// Satisfied by *database.Queries.
type SelectionStore interface {
	ListToppingCategoriesByMenuItem(ctx context.Context, menuItemID uuid.UUID) ([]database.ToppingCategory, error)
	ListToppingsByMenuItem(ctx context.Context, menuItemID uuid.UUID) ([]database.Topping, error)
}

// LoadSelection builds an empty topping selection for a menu item.
func LoadSelection(ctx context.Context, store SelectionStore, menuItemID uuid.UUID) (*topping.Selection, error) {
	cats, err := store.ListToppingCategoriesByMenuItem(ctx, menuItemID)
	if err != nil {
		return nil, fmt.Errorf("list topping categories: %w", err)
	}
	tops, err := store.ListToppingsByMenuItem(ctx, menuItemID)
	if err != nil {
		return nil, fmt.Errorf("list toppings: %w", err)
	}

	categories := make([]topping.Category, len(cats))
	for i, c := range cats {
		categories[i] = ToppingCategory(c)
	}
	toppings := make([]topping.Topping, len(tops))
	for i, t := range tops {
		toppings[i] = Topping(t)
	}
	return topping.NewSelection(categories, toppings), nil
}

// ToppingCategory converts a database row to the selection model.
func ToppingCategory(c database.ToppingCategory) topping.Category {
	return topping.Category{
		ID:           c.ID,
		Name:         c.Name,
		MinSelection: int(c.MinSelection),
		MaxSelection: int(c.MaxSelection),
		Required:     c.IsRequired,
	}
}

// Topping converts a database row to the selection model.
func Topping(t database.Topping) topping.Topping {
	return topping.Topping{
		ID:          t.ID,
		Name:        t.Name,
		Price:       NumericToDecimal(t.Price),
		CategoryID:  t.ToppingCategoryID,
		MaxQuantity: int(t.MaxQuantity),
	}
}

// NumericToDecimal converts a Postgres numeric, treating NULL as zero.
func NumericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// DecimalToNumeric converts a money amount, rounded to cents.
func DecimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}

// RateToNumeric converts a tax rate, kept at four places.
func RateToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(4))
	return n
}
