package topping

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type selectable struct {
	Topping
	quantity int
}

// Selection is the working state of one customization session. It starts
// with every topping of every configured category at quantity zero.
//
// A Selection is not safe for concurrent use.
type Selection struct {
	categories []Category
	catIndex   map[uuid.UUID]int
	toppings   []selectable
	index      map[uuid.UUID]int
}

// NewSelection builds a selection for the given categories. Toppings whose
// category is not among categories are ignored.
func NewSelection(categories []Category, toppings []Topping) *Selection {
	s := &Selection{
		categories: categories,
		catIndex:   make(map[uuid.UUID]int, len(categories)),
		index:      make(map[uuid.UUID]int, len(toppings)),
	}
	for i, c := range categories {
		s.catIndex[c.ID] = i
	}
	// Keep toppings grouped in category order so Submit output is stable.
	for _, c := range categories {
		for _, t := range toppings {
			if t.CategoryID != c.ID {
				continue
			}
			if _, dup := s.index[t.ID]; dup {
				continue
			}
			s.index[t.ID] = len(s.toppings)
			s.toppings = append(s.toppings, selectable{Topping: t})
		}
	}
	return s
}

// Toppings returns the configured toppings in selection order.
func (s *Selection) Toppings() []Topping {
	out := make([]Topping, len(s.toppings))
	for i, t := range s.toppings {
		out[i] = t.Topping
	}
	return out
}

// Quantity returns the current quantity of a topping, or 0 if unknown.
func (s *Selection) Quantity(id uuid.UUID) int {
	i, ok := s.index[id]
	if !ok {
		return 0
	}
	return s.toppings[i].quantity
}

// SelectedCount returns the number of distinct toppings in the category with
// a non-zero quantity.
func (s *Selection) SelectedCount(categoryID uuid.UUID) int {
	n := 0
	for _, t := range s.toppings {
		if t.CategoryID == categoryID && t.quantity > 0 {
			n++
		}
	}
	return n
}

// Increment adds one unit of the topping.
//
// At the topping's MaxQuantity the call is a silent no-op. Selecting a new
// topping in a category that already has MaxSelection selected toppings
// returns a *MaxSelectionError and leaves the state unchanged.
func (s *Selection) Increment(id uuid.UUID) error {
	i, ok := s.index[id]
	if !ok {
		return ErrUnknownTopping
	}
	t := &s.toppings[i]
	if t.quantity >= t.MaxQuantity {
		return nil
	}
	if t.quantity == 0 {
		c := s.categories[s.catIndex[t.CategoryID]]
		if s.SelectedCount(c.ID) >= c.MaxSelection {
			return &MaxSelectionError{Category: c.Name, MaxSelection: c.MaxSelection}
		}
	}
	t.quantity++
	return nil
}

// Decrement removes one unit of the topping. At zero it is a no-op.
func (s *Selection) Decrement(id uuid.UUID) error {
	i, ok := s.index[id]
	if !ok {
		return ErrUnknownTopping
	}
	if s.toppings[i].quantity > 0 {
		s.toppings[i].quantity--
	}
	return nil
}

// Apply replays a requested quantity for a topping that is currently
// unselected. A quantity above the cap is an error here rather than being
// clamped, since the caller is asking for an exact amount.
func (s *Selection) Apply(id uuid.UUID, quantity int) error {
	i, ok := s.index[id]
	if !ok {
		return ErrUnknownTopping
	}
	t := s.toppings[i]
	if quantity > t.MaxQuantity-t.quantity {
		return &MaxQuantityError{Topping: t.Name, MaxQuantity: t.MaxQuantity}
	}
	for n := 0; n < quantity; n++ {
		if err := s.Increment(id); err != nil {
			return err
		}
	}
	return nil
}

// IsCategoryValid reports whether the category currently satisfies its
// minimum. Non-required categories are always valid.
func (s *Selection) IsCategoryValid(categoryID uuid.UUID) bool {
	ci, ok := s.catIndex[categoryID]
	if !ok {
		return false
	}
	c := s.categories[ci]
	return !c.Required || s.SelectedCount(categoryID) >= c.MinSelection
}

// CategoryStatus is live feedback for one category.
type CategoryStatus struct {
	Category Category
	Selected int
	Valid    bool
}

// Status returns the feedback for every category in configuration order.
func (s *Selection) Status() []CategoryStatus {
	out := make([]CategoryStatus, len(s.categories))
	for i, c := range s.categories {
		out[i] = CategoryStatus{
			Category: c,
			Selected: s.SelectedCount(c.ID),
			Valid:    s.IsCategoryValid(c.ID),
		}
	}
	return out
}

// Submit returns the selected toppings priced by quantity. If a required
// category is below its minimum, it returns ValidationErrors with one entry
// per violated category and no items. The selection is never modified.
func (s *Selection) Submit() ([]Item, error) {
	var errs ValidationErrors
	for _, c := range s.categories {
		if c.Required && s.SelectedCount(c.ID) < c.MinSelection {
			errs = append(errs, &MinSelectionError{Category: c.Name, MinSelection: c.MinSelection})
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	items := make([]Item, 0, len(s.toppings))
	for _, t := range s.toppings {
		if t.quantity == 0 {
			continue
		}
		items = append(items, Item{
			ID:         t.ID,
			Name:       t.Name,
			Price:      t.Price.Mul(decimal.NewFromInt(int64(t.quantity))),
			CategoryID: t.CategoryID,
			Quantity:   t.quantity,
		})
	}
	return items, nil
}
