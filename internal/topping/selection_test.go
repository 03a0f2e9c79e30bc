package topping_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablekiosk/api/internal/topping"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	sauces   topping.Category
	extras   topping.Category
	ketchup  topping.Topping
	mayo     topping.Topping
	garlic   topping.Topping
	cheese   topping.Topping
	jalapeno topping.Topping
}

func newFixture() fixture {
	f := fixture{
		sauces: topping.Category{ID: uuid.New(), Name: "Sauces", MinSelection: 1, MaxSelection: 2, Required: true},
		extras: topping.Category{ID: uuid.New(), Name: "Extras", MinSelection: 1, MaxSelection: 3, Required: false},
	}
	f.ketchup = topping.Topping{ID: uuid.New(), Name: "Ketchup", Price: dec("0.50"), CategoryID: f.sauces.ID, MaxQuantity: 2}
	f.mayo = topping.Topping{ID: uuid.New(), Name: "Mayo", Price: dec("0.50"), CategoryID: f.sauces.ID, MaxQuantity: 1}
	f.garlic = topping.Topping{ID: uuid.New(), Name: "Garlic", Price: dec("0.75"), CategoryID: f.sauces.ID, MaxQuantity: 1}
	f.cheese = topping.Topping{ID: uuid.New(), Name: "Cheese", Price: dec("1.20"), CategoryID: f.extras.ID, MaxQuantity: 3}
	f.jalapeno = topping.Topping{ID: uuid.New(), Name: "Jalapeno", Price: dec("0.80"), CategoryID: f.extras.ID, MaxQuantity: 1}
	return f
}

func (f fixture) selection() *topping.Selection {
	return topping.NewSelection(
		[]topping.Category{f.sauces, f.extras},
		[]topping.Topping{f.ketchup, f.mayo, f.garlic, f.cheese, f.jalapeno},
	)
}

func TestIncrement_StopsAtMaxQuantity(t *testing.T) {
	f := newFixture()
	s := f.selection()

	for i := 0; i < f.cheese.MaxQuantity; i++ {
		require.NoError(t, s.Increment(f.cheese.ID))
	}
	require.NoError(t, s.Increment(f.cheese.ID), "increment at the cap is a silent no-op")
	assert.Equal(t, f.cheese.MaxQuantity, s.Quantity(f.cheese.ID))
}

func TestIncrement_RejectsSelectionBeyondCategoryMax(t *testing.T) {
	f := newFixture()
	s := f.selection()

	require.NoError(t, s.Increment(f.ketchup.ID))
	require.NoError(t, s.Increment(f.mayo.ID))

	err := s.Increment(f.garlic.ID)
	var maxErr *topping.MaxSelectionError
	require.ErrorAs(t, err, &maxErr)
	assert.Equal(t, "Sauces", maxErr.Category)
	assert.Equal(t, 2, maxErr.MaxSelection)
	assert.Contains(t, err.Error(), "Sauces")
	assert.Contains(t, err.Error(), "2")

	assert.Equal(t, 0, s.Quantity(f.garlic.ID))
	assert.Equal(t, 1, s.Quantity(f.ketchup.ID))
	assert.Equal(t, 1, s.Quantity(f.mayo.ID))
}

func TestIncrement_AlreadySelectedToppingIgnoresCategoryMax(t *testing.T) {
	f := newFixture()
	s := f.selection()

	require.NoError(t, s.Increment(f.ketchup.ID))
	require.NoError(t, s.Increment(f.mayo.ID))
	// Category is full, but ketchup is already selected so its quantity may grow.
	require.NoError(t, s.Increment(f.ketchup.ID))
	assert.Equal(t, 2, s.Quantity(f.ketchup.ID))
}

func TestIncrement_UnknownTopping(t *testing.T) {
	s := newFixture().selection()
	assert.ErrorIs(t, s.Increment(uuid.New()), topping.ErrUnknownTopping)
	assert.ErrorIs(t, s.Decrement(uuid.New()), topping.ErrUnknownTopping)
}

func TestDecrement_AtZeroIsNoop(t *testing.T) {
	f := newFixture()
	s := f.selection()

	require.NoError(t, s.Decrement(f.mayo.ID))
	assert.Equal(t, 0, s.Quantity(f.mayo.ID))

	require.NoError(t, s.Increment(f.mayo.ID))
	require.NoError(t, s.Decrement(f.mayo.ID))
	require.NoError(t, s.Decrement(f.mayo.ID))
	assert.Equal(t, 0, s.Quantity(f.mayo.ID))
}

func TestDecrement_FreesCategorySlot(t *testing.T) {
	f := newFixture()
	s := f.selection()

	require.NoError(t, s.Increment(f.ketchup.ID))
	require.NoError(t, s.Increment(f.mayo.ID))
	require.NoError(t, s.Decrement(f.mayo.ID))
	require.NoError(t, s.Increment(f.garlic.ID))
	assert.Equal(t, 2, s.SelectedCount(f.sauces.ID))
}

func TestSubmit_RequiredCategoryBelowMinimum(t *testing.T) {
	f := newFixture()
	s := f.selection()
	require.NoError(t, s.Increment(f.cheese.ID))

	items, err := s.Submit()
	assert.Nil(t, items)

	var verrs topping.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	require.Len(t, verrs, 1, "exactly one message per violated category")
	assert.Equal(t, "You must select at least 1 items from Sauces", verrs[0].Error())

	var minErr *topping.MinSelectionError
	require.ErrorAs(t, err, &minErr)
	assert.Equal(t, 1, minErr.MinSelection)

	// State is left untouched for correction.
	assert.Equal(t, 1, s.Quantity(f.cheese.ID))
}

func TestSubmit_OneMessagePerViolatedCategory(t *testing.T) {
	a := topping.Category{ID: uuid.New(), Name: "Bread", MinSelection: 1, MaxSelection: 1, Required: true}
	b := topping.Category{ID: uuid.New(), Name: "Protein", MinSelection: 2, MaxSelection: 3, Required: true}
	s := topping.NewSelection([]topping.Category{a, b}, []topping.Topping{
		{ID: uuid.New(), Name: "White", Price: dec("0"), CategoryID: a.ID, MaxQuantity: 1},
		{ID: uuid.New(), Name: "Chicken", Price: dec("2"), CategoryID: b.ID, MaxQuantity: 1},
	})

	_, err := s.Submit()
	var verrs topping.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, []string{
		"You must select at least 1 items from Bread",
		"You must select at least 2 items from Protein",
	}, verrs.Messages())
}

func TestSubmit_NonRequiredCategoryWithNoSelection(t *testing.T) {
	f := newFixture()
	s := f.selection()
	require.NoError(t, s.Increment(f.ketchup.ID))

	items, err := s.Submit()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, s.IsCategoryValid(f.extras.ID))
}

func TestSubmit_PricesByQuantityAndDropsUnselected(t *testing.T) {
	f := newFixture()
	s := f.selection()
	require.NoError(t, s.Increment(f.ketchup.ID))
	require.NoError(t, s.Increment(f.ketchup.ID))
	require.NoError(t, s.Increment(f.cheese.ID))
	require.NoError(t, s.Increment(f.cheese.ID))
	require.NoError(t, s.Increment(f.cheese.ID))
	require.NoError(t, s.Increment(f.jalapeno.ID))
	require.NoError(t, s.Decrement(f.jalapeno.ID))

	items, err := s.Submit()
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, f.ketchup.ID, items[0].ID)
	assert.True(t, items[0].Price.Equal(dec("1.00")))
	assert.Equal(t, 2, items[0].Quantity)
	assert.True(t, items[0].UnitPrice().Equal(dec("0.50")))

	assert.Equal(t, f.cheese.ID, items[1].ID)
	assert.True(t, items[1].Price.Equal(dec("3.60")))
	assert.Equal(t, f.extras.ID, items[1].CategoryID)

	assert.True(t, topping.Total(items).Equal(dec("4.60")))
}

func TestSubmit_RoundTrip(t *testing.T) {
	cat := topping.Category{ID: uuid.New(), Name: "Toppings", MinSelection: 1, MaxSelection: 2, Required: true}
	a := topping.Topping{ID: uuid.New(), Name: "A", Price: dec("1.00"), CategoryID: cat.ID, MaxQuantity: 3}
	b := topping.Topping{ID: uuid.New(), Name: "B", Price: dec("2.00"), CategoryID: cat.ID, MaxQuantity: 1}
	s := topping.NewSelection([]topping.Category{cat}, []topping.Topping{a, b})

	require.NoError(t, s.Increment(a.ID))
	require.NoError(t, s.Increment(a.ID))
	require.NoError(t, s.Increment(b.ID))

	items, err := s.Submit()
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "A", items[0].Name)
	assert.True(t, items[0].Price.Equal(dec("2.00")))
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, "B", items[1].Name)
	assert.True(t, items[1].Price.Equal(dec("2.00")))
	assert.Equal(t, 1, items[1].Quantity)
	assert.Equal(t, 2, s.SelectedCount(cat.ID))
}

func TestSubmit_RequiredCategoryNothingSelected(t *testing.T) {
	cat := topping.Category{ID: uuid.New(), Name: "Base", MinSelection: 1, MaxSelection: 1, Required: true}
	s := topping.NewSelection([]topping.Category{cat}, []topping.Topping{
		{ID: uuid.New(), Name: "Rice", Price: dec("0"), CategoryID: cat.ID, MaxQuantity: 1},
	})

	items, err := s.Submit()
	assert.Nil(t, items)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Base")
	assert.Contains(t, err.Error(), "1")
}

func TestIsCategoryValid(t *testing.T) {
	f := newFixture()
	s := f.selection()

	assert.False(t, s.IsCategoryValid(f.sauces.ID))
	assert.True(t, s.IsCategoryValid(f.extras.ID))
	assert.False(t, s.IsCategoryValid(uuid.New()))

	require.NoError(t, s.Increment(f.garlic.ID))
	assert.True(t, s.IsCategoryValid(f.sauces.ID))

	status := s.Status()
	require.Len(t, status, 2)
	assert.Equal(t, 1, status[0].Selected)
	assert.True(t, status[0].Valid)
	assert.Equal(t, "Extras", status[1].Category.Name)
}

func TestApply(t *testing.T) {
	f := newFixture()

	t.Run("sets quantity", func(t *testing.T) {
		s := f.selection()
		require.NoError(t, s.Apply(f.cheese.ID, 3))
		assert.Equal(t, 3, s.Quantity(f.cheese.ID))
	})

	t.Run("rejects quantity above cap", func(t *testing.T) {
		s := f.selection()
		var qErr *topping.MaxQuantityError
		require.ErrorAs(t, s.Apply(f.mayo.ID, 2), &qErr)
		assert.Equal(t, 1, qErr.MaxQuantity)
		assert.Equal(t, 0, s.Quantity(f.mayo.ID))
	})

	t.Run("enforces category max", func(t *testing.T) {
		s := f.selection()
		require.NoError(t, s.Apply(f.ketchup.ID, 1))
		require.NoError(t, s.Apply(f.mayo.ID, 1))
		var maxErr *topping.MaxSelectionError
		require.ErrorAs(t, s.Apply(f.garlic.ID, 1), &maxErr)
	})

	t.Run("unknown topping", func(t *testing.T) {
		s := f.selection()
		assert.ErrorIs(t, s.Apply(uuid.New(), 1), topping.ErrUnknownTopping)
	})
}

func TestNewSelection_IgnoresToppingsOutsideCategories(t *testing.T) {
	f := newFixture()
	stray := topping.Topping{ID: uuid.New(), Name: "Stray", Price: dec("1"), CategoryID: uuid.New(), MaxQuantity: 1}
	s := topping.NewSelection([]topping.Category{f.sauces}, []topping.Topping{f.ketchup, stray, f.cheese})

	assert.Len(t, s.Toppings(), 1)
	assert.ErrorIs(t, s.Increment(stray.ID), topping.ErrUnknownTopping)
}

func TestCategoryValidate(t *testing.T) {
	tests := []struct {
		name    string
		cat     topping.Category
		wantErr string
	}{
		{"valid", topping.Category{MinSelection: 0, MaxSelection: 2}, ""},
		{"min equals max", topping.Category{MinSelection: 2, MaxSelection: 2}, ""},
		{"negative min", topping.Category{MinSelection: -1, MaxSelection: 2}, "min_selection must be >= 0"},
		{"zero max", topping.Category{MinSelection: 0, MaxSelection: 0}, "max_selection must be >= 1"},
		{"min above max", topping.Category{MinSelection: 3, MaxSelection: 2}, "min_selection must be <= max_selection"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cat.Validate()
			if tt.wantErr != "" {
				assert.ErrorIs(t, err, topping.ErrInvalidCategory)
				assert.EqualError(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
