package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/tablekiosk/api/internal/cart"
	"github.com/tablekiosk/api/internal/database"
	"github.com/tablekiosk/api/internal/service"
	"github.com/tablekiosk/api/internal/topping"
	"go.uber.org/zap"
)

// KioskStore defines the database methods needed by the public kiosk.
// Satisfied by *database.Queries; narrow interface for testability.
type KioskStore interface {
	OrderReader
	service.SelectionStore
	GetRestaurant(ctx context.Context, id uuid.UUID) (database.Restaurant, error)
	ListCategoriesByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]database.Category, error)
	ListMenuItemsByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]database.MenuItem, error)
	GetMenuItemForOrder(ctx context.Context, arg database.GetMenuItemParams) (database.MenuItem, error)
}

// OrderCreator submits orders. Satisfied by *service.OrderService.
type OrderCreator interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error)
}

// KioskHandler serves the unauthenticated customer kiosk.
type KioskHandler struct {
	store  KioskStore
	orders OrderCreator
	carts  cart.Store
	logger *zap.Logger
}

// NewKioskHandler creates a new KioskHandler.
func NewKioskHandler(store KioskStore, orders OrderCreator, carts cart.Store, logger *zap.Logger) *KioskHandler {
	if logger == nil {
		logger = zap.L()
	}
	return &KioskHandler{store: store, orders: orders, carts: carts, logger: logger.Named("kiosk")}
}

// RegisterRoutes registers kiosk endpoints.
// Expected to be mounted at /restaurants/{rid}/kiosk
func (h *KioskHandler) RegisterRoutes(r chi.Router) {
	r.Get("/menu", h.Menu)
	r.Post("/menu-items/{id}/selection", h.ValidateSelection)

	r.Post("/carts", h.CreateCart)
	r.Route("/carts/{cid}", func(r chi.Router) {
		r.Get("/", h.GetCart)
		r.Delete("/", h.DeleteCart)
		r.Post("/lines", h.AddLine)
		r.Delete("/lines", h.ClearLines)
		r.Post("/lines/{lid}/increment", h.IncrementLine)
		r.Post("/lines/{lid}/decrement", h.DecrementLine)
		r.Delete("/lines/{lid}", h.RemoveLine)
		r.Post("/checkout", h.Checkout)
	})

	r.Post("/orders", h.CreateOrder)
	r.Get("/orders/{id}", h.GetOrder)
}

// --- Request / Response types ---

type kioskMenuCategory struct {
	ID    uuid.UUID       `json:"id"`
	Name  string          `json:"name"`
	Items []kioskMenuItem `json:"items"`
}

type kioskMenuItem struct {
	menuItemResponse
	ToppingCategories []kioskToppingCategory `json:"topping_categories"`
}

type kioskToppingCategory struct {
	toppingCategoryResponse
	Toppings []toppingResponse `json:"toppings"`
}

type toppingQuantity struct {
	ToppingID string `json:"topping_id" validate:"required,uuid"`
	Quantity  int32  `json:"quantity" validate:"gte=1"`
}

type selectionRequest struct {
	Toppings []toppingQuantity `json:"toppings" validate:"dive"`
}

type categoryStatusResponse struct {
	ToppingCategoryID uuid.UUID `json:"topping_category_id"`
	Name              string    `json:"name"`
	Selected          int       `json:"selected"`
	MinSelection      int       `json:"min_selection"`
	MaxSelection      int       `json:"max_selection"`
	Required          bool      `json:"required"`
	Valid             bool      `json:"valid"`
}

type selectionResponse struct {
	Valid         bool                     `json:"valid"`
	Categories    []categoryStatusResponse `json:"categories"`
	Toppings      []topping.Item           `json:"toppings,omitempty"`
	ToppingsTotal *decimal.Decimal         `json:"toppings_total,omitempty"`
	Messages      []string                 `json:"messages,omitempty"`
}

type cartRequest struct {
	OrderType   string `json:"order_type" validate:"omitempty,oneof=TAKEAWAY EAT_IN"`
	TableNumber *int32 `json:"table_number" validate:"omitempty,gte=1"`
}

type addLineRequest struct {
	MenuItemID string            `json:"menu_item_id" validate:"required,uuid"`
	Quantity   int               `json:"quantity" validate:"gte=1,lte=99"`
	Notes      string            `json:"notes" validate:"max=200"`
	Toppings   []toppingQuantity `json:"toppings" validate:"dive"`
}

type checkoutRequest struct {
	OrderType   string `json:"order_type" validate:"omitempty,oneof=TAKEAWAY EAT_IN"`
	TableNumber *int32 `json:"table_number"`
	Notes       string `json:"notes" validate:"max=500"`
}

type kioskOrderItemRequest struct {
	MenuItemID string            `json:"menu_item_id" validate:"required,uuid"`
	Quantity   int32             `json:"quantity" validate:"gte=1,lte=99"`
	Notes      string            `json:"notes" validate:"max=200"`
	Toppings   []toppingQuantity `json:"toppings" validate:"dive"`
}

type kioskOrderRequest struct {
	OrderType   string                  `json:"order_type" validate:"required,oneof=TAKEAWAY EAT_IN"`
	TableNumber *int32                  `json:"table_number"`
	Notes       string                  `json:"notes" validate:"max=500"`
	Items       []kioskOrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type cartLineResponse struct {
	cart.Line
	UnitPrice decimal.Decimal `json:"unit_price"`
	Total     decimal.Decimal `json:"total"`
}

type cartResponse struct {
	ID          uuid.UUID          `json:"id"`
	OrderType   string             `json:"order_type,omitempty"`
	TableNumber *int32             `json:"table_number,omitempty"`
	Lines       []cartLineResponse `json:"lines"`
	cart.Totals
}

func toCartResponse(c *cart.Cart, taxRate decimal.Decimal) cartResponse {
	lines := make([]cartLineResponse, len(c.Lines))
	for i, l := range c.Lines {
		lines[i] = cartLineResponse{Line: l, UnitPrice: l.UnitPrice(), Total: l.Total()}
	}
	return cartResponse{
		ID:          c.ID,
		OrderType:   c.OrderType,
		TableNumber: c.TableNumber,
		Lines:       lines,
		Totals:      c.Totals(taxRate),
	}
}

// --- Menu ---

// Menu returns the active categories with their available items, each
// carrying its topping categories and toppings.
func (h *KioskHandler) Menu(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := urlUUID(w, r, "rid", "restaurant")
	if !ok {
		return
	}

	ctx := r.Context()
	cats, err := h.store.ListCategoriesByRestaurant(ctx, restaurantID)
	if err != nil {
		h.logger.Error("list categories", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	items, err := h.store.ListMenuItemsByRestaurant(ctx, restaurantID)
	if err != nil {
		h.logger.Error("list menu items", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	byCategory := make(map[uuid.UUID][]kioskMenuItem)
	for _, m := range items {
		if !m.IsAvailable {
			continue
		}
		item, err := h.menuItem(ctx, m)
		if err != nil {
			h.logger.Error("load menu item toppings", zap.String("menu_item_id", m.ID.String()), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		byCategory[m.CategoryID] = append(byCategory[m.CategoryID], item)
	}

	resp := make([]kioskMenuCategory, 0, len(cats))
	for _, c := range cats {
		if !c.IsActive || len(byCategory[c.ID]) == 0 {
			continue
		}
		resp = append(resp, kioskMenuCategory{ID: c.ID, Name: c.Name, Items: byCategory[c.ID]})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *KioskHandler) menuItem(ctx context.Context, m database.MenuItem) (kioskMenuItem, error) {
	cats, err := h.store.ListToppingCategoriesByMenuItem(ctx, m.ID)
	if err != nil {
		return kioskMenuItem{}, err
	}
	tops, err := h.store.ListToppingsByMenuItem(ctx, m.ID)
	if err != nil {
		return kioskMenuItem{}, err
	}

	item := kioskMenuItem{
		menuItemResponse:  toMenuItemResponse(m),
		ToppingCategories: make([]kioskToppingCategory, len(cats)),
	}
	for i, c := range cats {
		tc := kioskToppingCategory{toppingCategoryResponse: toToppingCategoryResponse(c), Toppings: []toppingResponse{}}
		for _, t := range tops {
			if t.ToppingCategoryID == c.ID {
				tc.Toppings = append(tc.Toppings, toToppingResponse(t))
			}
		}
		item.ToppingCategories[i] = tc
	}
	return item, nil
}

// --- Selection ---

// loadSelection loads an orderable menu item and replays the requested
// topping quantities onto a fresh selection. Replay errors are returned in
// order; the selection keeps every quantity that could be applied.
func (h *KioskHandler) loadSelection(ctx context.Context, restaurantID, menuItemID uuid.UUID, toppings []toppingQuantity) (database.MenuItem, *topping.Selection, []error, error) {
	item, err := h.store.GetMenuItemForOrder(ctx, database.GetMenuItemParams{ID: menuItemID, RestaurantID: restaurantID})
	if err != nil {
		return database.MenuItem{}, nil, nil, err
	}
	sel, err := service.LoadSelection(ctx, h.store, item.ID)
	if err != nil {
		return database.MenuItem{}, nil, nil, err
	}

	var applyErrs []error
	for _, t := range toppings {
		if err := sel.Apply(uuid.MustParse(t.ToppingID), int(t.Quantity)); err != nil {
			applyErrs = append(applyErrs, err)
		}
	}
	return item, sel, applyErrs, nil
}

func (h *KioskHandler) writeMenuItemError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, pgx.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
		return
	}
	h.logger.Error(op, zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}

func errorMessages(errs []error) []string {
	out := make([]string, 0, len(errs))
	for _, err := range errs {
		var verrs topping.ValidationErrors
		if errors.As(err, &verrs) {
			out = append(out, verrs.Messages()...)
			continue
		}
		out = append(out, err.Error())
	}
	return out
}

// ValidateSelection checks a proposed topping selection for a menu item
// without creating anything. The response is 200 whether or not the
// selection is valid.
func (h *KioskHandler) ValidateSelection(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := urlUUID(w, r, "rid", "restaurant")
	if !ok {
		return
	}
	menuItemID, ok := urlUUID(w, r, "id", "menu item")
	if !ok {
		return
	}

	var req selectionRequest
	if !decodeValid(w, r, &req) {
		return
	}

	_, sel, errs, err := h.loadSelection(r.Context(), restaurantID, menuItemID, req.Toppings)
	if err != nil {
		h.writeMenuItemError(w, "load selection", err)
		return
	}

	status := sel.Status()
	resp := selectionResponse{Categories: make([]categoryStatusResponse, len(status))}
	for i, s := range status {
		resp.Categories[i] = categoryStatusResponse{
			ToppingCategoryID: s.Category.ID,
			Name:              s.Category.Name,
			Selected:          s.Selected,
			MinSelection:      s.Category.MinSelection,
			MaxSelection:      s.Category.MaxSelection,
			Required:          s.Category.Required,
			Valid:             s.Valid,
		}
	}

	items, err := sel.Submit()
	if err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		resp.Messages = errorMessages(errs)
		writeJSON(w, http.StatusOK, resp)
		return
	}

	total := topping.Total(items)
	resp.Valid = true
	resp.Toppings = items
	resp.ToppingsTotal = &total
	writeJSON(w, http.StatusOK, resp)
}

// --- Carts ---

func (h *KioskHandler) taxRate(ctx context.Context, restaurantID uuid.UUID) (decimal.Decimal, error) {
	rest, err := h.store.GetRestaurant(ctx, restaurantID)
	if err != nil {
		return decimal.Zero, err
	}
	if !rest.TaxRate.Valid {
		return cart.DefaultTaxRate, nil
	}
	return service.NumericToDecimal(rest.TaxRate), nil
}

// writeCart responds with the cart priced at the restaurant's tax rate.
func (h *KioskHandler) writeCart(w http.ResponseWriter, r *http.Request, status int, c *cart.Cart) {
	rate, err := h.taxRate(r.Context(), c.RestaurantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "restaurant not found"})
			return
		}
		h.logger.Error("get restaurant", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, status, toCartResponse(c, rate))
}

// loadCart reads the cart in the URL or writes an error response.
func (h *KioskHandler) loadCart(w http.ResponseWriter, r *http.Request) (*cart.Cart, bool) {
	restaurantID, ok := urlUUID(w, r, "rid", "restaurant")
	if !ok {
		return nil, false
	}
	cartID, ok := urlUUID(w, r, "cid", "cart")
	if !ok {
		return nil, false
	}

	c, err := h.carts.Get(r.Context(), restaurantID, cartID)
	if err != nil {
		h.writeCartError(w, "get cart", err)
		return nil, false
	}
	return c, true
}

func (h *KioskHandler) writeCartError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, cart.ErrCartNotFound), errors.Is(err, cart.ErrLineNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, cart.ErrInvalidQuantity):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		h.logger.Error(op, zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

// CreateCart starts an empty cart.
func (h *KioskHandler) CreateCart(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := urlUUID(w, r, "rid", "restaurant")
	if !ok {
		return
	}

	var req cartRequest
	if r.ContentLength != 0 {
		if !decodeValid(w, r, &req) {
			return
		}
	}

	c := cart.New(restaurantID)
	c.OrderType = req.OrderType
	c.TableNumber = req.TableNumber
	if err := h.carts.Save(r.Context(), c); err != nil {
		h.writeCartError(w, "save cart", err)
		return
	}
	h.writeCart(w, r, http.StatusCreated, c)
}

// GetCart returns the cart with its totals.
func (h *KioskHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadCart(w, r)
	if !ok {
		return
	}
	h.writeCart(w, r, http.StatusOK, c)
}

// DeleteCart abandons the cart.
func (h *KioskHandler) DeleteCart(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadCart(w, r)
	if !ok {
		return
	}
	if err := h.carts.Delete(r.Context(), c.RestaurantID, c.ID); err != nil {
		h.writeCartError(w, "delete cart", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddLine validates a customized menu item and appends it as a new line.
// Identical customizations are kept as separate lines.
func (h *KioskHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadCart(w, r)
	if !ok {
		return
	}

	var req addLineRequest
	if !decodeValid(w, r, &req) {
		return
	}

	ctx := r.Context()
	item, sel, errs, err := h.loadSelection(ctx, c.RestaurantID, uuid.MustParse(req.MenuItemID), req.Toppings)
	if err != nil {
		h.writeMenuItemError(w, "load selection", err)
		return
	}
	selected, err := sel.Submit()
	if err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":    fmt.Sprintf("invalid selection for %s", item.Name),
			"messages": errorMessages(errs),
		})
		return
	}

	if _, err := c.Add(cart.Line{
		Product: cart.Product{
			ID:    item.ID,
			Name:  item.Name,
			Price: service.NumericToDecimal(item.Price),
		},
		Quantity: req.Quantity,
		Toppings: selected,
		Notes:    req.Notes,
	}); err != nil {
		h.writeCartError(w, "add line", err)
		return
	}
	if err := h.carts.Save(ctx, c); err != nil {
		h.writeCartError(w, "save cart", err)
		return
	}
	h.writeCart(w, r, http.StatusCreated, c)
}

// updateLine applies fn to the line in the URL and saves the cart.
func (h *KioskHandler) updateLine(w http.ResponseWriter, r *http.Request, op string, fn func(c *cart.Cart, lineID uuid.UUID) error) {
	c, ok := h.loadCart(w, r)
	if !ok {
		return
	}
	lineID, ok := urlUUID(w, r, "lid", "line")
	if !ok {
		return
	}

	if err := fn(c, lineID); err != nil {
		h.writeCartError(w, op, err)
		return
	}
	if err := h.carts.Save(r.Context(), c); err != nil {
		h.writeCartError(w, "save cart", err)
		return
	}
	h.writeCart(w, r, http.StatusOK, c)
}

// IncrementLine adds one to a line's quantity.
func (h *KioskHandler) IncrementLine(w http.ResponseWriter, r *http.Request) {
	h.updateLine(w, r, "increment line", (*cart.Cart).Increment)
}

// DecrementLine removes one from a line's quantity, stopping at 1.
func (h *KioskHandler) DecrementLine(w http.ResponseWriter, r *http.Request) {
	h.updateLine(w, r, "decrement line", (*cart.Cart).Decrement)
}

// RemoveLine deletes a line.
func (h *KioskHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	h.updateLine(w, r, "remove line", (*cart.Cart).Remove)
}

// ClearLines empties the cart but keeps its order type and table.
func (h *KioskHandler) ClearLines(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadCart(w, r)
	if !ok {
		return
	}
	c.Clear()
	if err := h.carts.Save(r.Context(), c); err != nil {
		h.writeCartError(w, "save cart", err)
		return
	}
	h.writeCart(w, r, http.StatusOK, c)
}

// Checkout submits the cart as an order and deletes the cart. The server
// re-prices every line; cart prices are display only.
func (h *KioskHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadCart(w, r)
	if !ok {
		return
	}

	var req checkoutRequest
	if r.ContentLength != 0 {
		if !decodeValid(w, r, &req) {
			return
		}
	}

	orderType := req.OrderType
	if orderType == "" {
		orderType = c.OrderType
	}
	tableNumber := req.TableNumber
	if tableNumber == nil {
		tableNumber = c.TableNumber
	}

	items := make([]service.CreateOrderItemRequest, len(c.Lines))
	for i, l := range c.Lines {
		toppings := make([]service.CreateOrderItemToppingRequest, len(l.Toppings))
		for j, t := range l.Toppings {
			toppings[j] = service.CreateOrderItemToppingRequest{ToppingID: t.ID.String(), Quantity: int32(t.Quantity)}
		}
		items[i] = service.CreateOrderItemRequest{
			MenuItemID: l.Product.ID.String(),
			Quantity:   int32(l.Quantity),
			Notes:      l.Notes,
			Toppings:   toppings,
		}
	}

	ctx := r.Context()
	result, err := h.orders.CreateOrder(ctx, service.CreateOrderRequest{
		RestaurantID: c.RestaurantID,
		OrderType:    orderType,
		TableNumber:  tableNumber,
		Notes:        req.Notes,
		Items:        items,
	})
	if err != nil {
		writeOrderError(w, h.logger, "checkout", err)
		return
	}

	if err := h.carts.Delete(ctx, c.RestaurantID, c.ID); err != nil {
		// The order exists; an orphaned cart expires on its own.
		h.logger.Warn("delete checked out cart", zap.String("cart_id", c.ID.String()), zap.Error(err))
	}
	writeJSON(w, http.StatusCreated, toCreatedOrderResponse(result))
}

// --- Orders ---

// CreateOrder submits an order without a server-side cart.
func (h *KioskHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := urlUUID(w, r, "rid", "restaurant")
	if !ok {
		return
	}

	var req kioskOrderRequest
	if !decodeValid(w, r, &req) {
		return
	}

	items := make([]service.CreateOrderItemRequest, len(req.Items))
	for i, it := range req.Items {
		toppings := make([]service.CreateOrderItemToppingRequest, len(it.Toppings))
		for j, t := range it.Toppings {
			toppings[j] = service.CreateOrderItemToppingRequest{ToppingID: t.ToppingID, Quantity: t.Quantity}
		}
		items[i] = service.CreateOrderItemRequest{
			MenuItemID: it.MenuItemID,
			Quantity:   it.Quantity,
			Notes:      it.Notes,
			Toppings:   toppings,
		}
	}

	result, err := h.orders.CreateOrder(r.Context(), service.CreateOrderRequest{
		RestaurantID: restaurantID,
		OrderType:    req.OrderType,
		TableNumber:  req.TableNumber,
		Notes:        req.Notes,
		Items:        items,
	})
	if err != nil {
		writeOrderError(w, h.logger, "create order", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCreatedOrderResponse(result))
}

// GetOrder returns the confirmation view of a submitted order.
func (h *KioskHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := urlUUID(w, r, "rid", "restaurant")
	if !ok {
		return
	}
	orderID, ok := urlUUID(w, r, "id", "order")
	if !ok {
		return
	}

	resp, err := loadOrderDetail(r.Context(), h.store, restaurantID, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		h.logger.Error("get order", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
