package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tablekiosk/api/internal/database"
	"github.com/tablekiosk/api/internal/enum"
	"github.com/tablekiosk/api/internal/service"
	"github.com/tealeg/xlsx"
	"go.uber.org/zap"
)

const maxExportRows = 5000

// OrderServicer defines the service methods needed by staff order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	MoveOrder(ctx context.Context, req service.MoveOrderRequest) (database.Order, error)
	CancelOrder(ctx context.Context, restaurantID, orderID uuid.UUID) (database.Order, error)
}

// OrderPrinter prints order receipts. Satisfied by *service.PrintService.
type OrderPrinter interface {
	PrintOrder(ctx context.Context, restaurantID, orderID uuid.UUID) (service.PrintResult, error)
}

// OrderReader loads an order with its lines.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderReader interface {
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	ListOrderItemToppingsByOrderItem(ctx context.Context, orderItemID uuid.UUID) ([]database.OrderItemTopping, error)
}

// OrderStore defines the database methods needed by staff order handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	OrderReader
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
}

// OrderHandler handles staff order endpoints.
type OrderHandler struct {
	svc     OrderServicer
	store   OrderStore
	printer OrderPrinter
	loc     *time.Location
	logger  *zap.Logger
}

// NewOrderHandler creates a new OrderHandler. Date filters and export
// timestamps use loc, the same zone as the reports; nil means UTC.
func NewOrderHandler(svc OrderServicer, store OrderStore, printer OrderPrinter, loc *time.Location, logger *zap.Logger) *OrderHandler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.L()
	}
	return &OrderHandler{svc: svc, store: store, printer: printer, loc: loc, logger: logger.Named("orders")}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted at /restaurants/{rid}/orders
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/export.xlsx", h.Export)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Delete("/{id}", h.Cancel)
	r.Post("/{id}/print", h.Print)
}

// --- Request / Response types ---

type orderResponse struct {
	ID            uuid.UUID           `json:"id"`
	RestaurantID  uuid.UUID           `json:"restaurant_id"`
	OrderNumber   string              `json:"order_number"`
	OrderType     string              `json:"order_type"`
	TableNumber   *int32              `json:"table_number"`
	Status        string              `json:"status"`
	BoardPosition int32               `json:"board_position"`
	Notes         *string             `json:"notes"`
	Subtotal      string              `json:"subtotal"`
	TaxRate       string              `json:"tax_rate"`
	TaxAmount     string              `json:"tax_amount"`
	TotalAmount   string              `json:"total_amount"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
	Items         []orderItemResponse `json:"items,omitempty"`
}

type orderItemResponse struct {
	ID            uuid.UUID                  `json:"id"`
	MenuItemID    uuid.UUID                  `json:"menu_item_id"`
	Name          string                     `json:"name"`
	Quantity      int32                      `json:"quantity"`
	UnitPrice     string                     `json:"unit_price"`
	ToppingsTotal string                     `json:"toppings_total"`
	Subtotal      string                     `json:"subtotal"`
	Notes         *string                    `json:"notes"`
	Toppings      []orderItemToppingResponse `json:"toppings"`
}

type orderItemToppingResponse struct {
	ID        uuid.UUID `json:"id"`
	ToppingID uuid.UUID `json:"topping_id"`
	Name      string    `json:"name"`
	Quantity  int32     `json:"quantity"`
	UnitPrice string    `json:"unit_price"`
	Price     string    `json:"price"`
}

// orderListResponse wraps a list of orders with pagination metadata.
type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type updateStatusRequest struct {
	Status   string `json:"status" validate:"required"`
	Position *int32 `json:"position"`
}

func toOrderResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:            o.ID,
		RestaurantID:  o.RestaurantID,
		OrderNumber:   o.OrderNumber,
		OrderType:     o.OrderType,
		Status:        o.Status,
		BoardPosition: o.BoardPosition,
		Notes:         textPtr(o.Notes),
		Subtotal:      numericToString(o.Subtotal),
		TaxRate:       service.NumericToDecimal(o.TaxRate).StringFixed(4),
		TaxAmount:     numericToString(o.TaxAmount),
		TotalAmount:   numericToString(o.TotalAmount),
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	if o.TableNumber.Valid {
		n := o.TableNumber.Int32
		resp.TableNumber = &n
	}
	return resp
}

func toOrderItemResponse(item database.OrderItem, toppings []database.OrderItemTopping) orderItemResponse {
	resp := orderItemResponse{
		ID:            item.ID,
		MenuItemID:    item.MenuItemID,
		Name:          item.Name,
		Quantity:      item.Quantity,
		UnitPrice:     numericToString(item.UnitPrice),
		ToppingsTotal: numericToString(item.ToppingsTotal),
		Subtotal:      numericToString(item.Subtotal),
		Notes:         textPtr(item.Notes),
		Toppings:      make([]orderItemToppingResponse, len(toppings)),
	}
	for i, t := range toppings {
		resp.Toppings[i] = orderItemToppingResponse{
			ID:        t.ID,
			ToppingID: t.ToppingID,
			Name:      t.Name,
			Quantity:  t.Quantity,
			UnitPrice: numericToString(t.UnitPrice),
			Price:     numericToString(t.Price),
		}
	}
	return resp
}

// toCreatedOrderResponse converts the result of a submission.
func toCreatedOrderResponse(result *service.CreateOrderResult) orderResponse {
	resp := toOrderResponse(result.Order)
	resp.Items = make([]orderItemResponse, len(result.Items))
	for i, it := range result.Items {
		resp.Items[i] = toOrderItemResponse(it.Item, it.Toppings)
	}
	return resp
}

// loadOrderDetail reads the order with every line and topping.
func loadOrderDetail(ctx context.Context, store OrderReader, restaurantID, orderID uuid.UUID) (orderResponse, error) {
	order, err := store.GetOrder(ctx, database.GetOrderParams{ID: orderID, RestaurantID: restaurantID})
	if err != nil {
		return orderResponse{}, err
	}
	items, err := store.ListOrderItemsByOrder(ctx, order.ID)
	if err != nil {
		return orderResponse{}, fmt.Errorf("list order items: %w", err)
	}

	resp := toOrderResponse(order)
	resp.Items = make([]orderItemResponse, len(items))
	for i, item := range items {
		toppings, err := store.ListOrderItemToppingsByOrderItem(ctx, item.ID)
		if err != nil {
			return orderResponse{}, fmt.Errorf("list order item toppings: %w", err)
		}
		resp.Items[i] = toOrderItemResponse(item, toppings)
	}
	return resp, nil
}

// writeOrderError maps order service errors to HTTP responses.
func writeOrderError(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	var lineErr *service.LineError
	switch {
	case errors.As(err, &lineErr):
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":      lineErr.Error(),
			"item_index": lineErr.Index,
			"messages":   lineErr.Messages(),
		})
	case errors.Is(err, service.ErrOrderNotFound), errors.Is(err, service.ErrRestaurantNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrStatusConflict),
		errors.Is(err, service.ErrOrderCancelled),
		errors.Is(err, service.ErrOrderCompleted),
		errors.Is(err, service.ErrAlreadyCanceled):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrEmptyItems),
		errors.Is(err, service.ErrInvalidOrderType),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidMenuItemID),
		errors.Is(err, service.ErrInvalidToppingID),
		errors.Is(err, service.ErrMenuItemNotFound),
		errors.Is(err, service.ErrTableRequired),
		errors.Is(err, service.ErrInvalidTable),
		errors.Is(err, service.ErrNoTables),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrInvalidPosition):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		logger.Error(op, zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

// parseOrderFilters reads status, type and date range query parameters.
// Dates are YYYY-MM-DD days in loc; end_date is inclusive.
func parseOrderFilters(r *http.Request, loc *time.Location, params *database.ListOrdersParams) error {
	q := r.URL.Query()
	if s := q.Get("status"); s != "" {
		if !slices.Contains(append(slices.Clone(enum.BoardStatuses), enum.OrderStatusCancelled), s) {
			return errors.New("invalid status filter")
		}
		params.Status = pgtype.Text{String: s, Valid: true}
	}
	if s := q.Get("type"); s != "" {
		if s != enum.OrderTypeTakeaway && s != enum.OrderTypeEatIn {
			return errors.New("invalid type filter")
		}
		params.OrderType = pgtype.Text{String: s, Valid: true}
	}
	if s := q.Get("start_date"); s != "" {
		t, err := time.ParseInLocation(time.DateOnly, s, loc)
		if err != nil {
			return errors.New("invalid start_date format, use YYYY-MM-DD")
		}
		params.StartDate = pgtype.Timestamptz{Time: t, Valid: true}
	}
	if s := q.Get("end_date"); s != "" {
		t, err := time.ParseInLocation(time.DateOnly, s, loc)
		if err != nil {
			return errors.New("invalid end_date format, use YYYY-MM-DD")
		}
		params.EndDate = pgtype.Timestamptz{Time: t.AddDate(0, 0, 1), Valid: true}
	}
	return nil
}

// --- Handlers ---

// List handles GET /restaurants/{rid}/orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := urlUUID(w, r, "rid", "restaurant")
	if !ok {
		return
	}

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}
	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	params := database.ListOrdersParams{
		RestaurantID: restaurantID,
		Limit:        int32(limit),
		Offset:       int32(offset),
	}
	if err := parseOrderFilters(r, h.loc, &params); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	orders, err := h.store.ListOrders(r.Context(), params)
	if err != nil {
		h.logger.Error("list orders", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := orderListResponse{Orders: make([]orderResponse, len(orders)), Limit: limit, Offset: offset}
	for i, o := range orders {
		resp.Orders[i] = toOrderResponse(o)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /restaurants/{rid}/orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
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

// UpdateStatus handles PATCH /restaurants/{rid}/orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := urlUUID(w, r, "rid", "restaurant")
	if !ok {
		return
	}
	orderID, ok := urlUUID(w, r, "id", "order")
	if !ok {
		return
	}

	var req updateStatusRequest
	if !decodeValid(w, r, &req) {
		return
	}

	order, err := h.svc.MoveOrder(r.Context(), service.MoveOrderRequest{
		RestaurantID: restaurantID,
		OrderID:      orderID,
		Status:       req.Status,
		Position:     req.Position,
	})
	if err != nil {
		writeOrderError(w, h.logger, "update order status", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// Cancel handles DELETE /restaurants/{rid}/orders/{id}.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := urlUUID(w, r, "rid", "restaurant")
	if !ok {
		return
	}
	orderID, ok := urlUUID(w, r, "id", "order")
	if !ok {
		return
	}

	order, err := h.svc.CancelOrder(r.Context(), restaurantID, orderID)
	if err != nil {
		writeOrderError(w, h.logger, "cancel order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// Print handles POST /restaurants/{rid}/orders/{id}/print (manual reprint).
func (h *OrderHandler) Print(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := urlUUID(w, r, "rid", "restaurant")
	if !ok {
		return
	}
	orderID, ok := urlUUID(w, r, "id", "order")
	if !ok {
		return
	}

	result, err := h.printer.PrintOrder(r.Context(), restaurantID, orderID)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		h.logger.Error("print order", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Export handles GET /restaurants/{rid}/orders/export.xlsx. It accepts the
// same filters as List and writes one row per order line.
func (h *OrderHandler) Export(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := urlUUID(w, r, "rid", "restaurant")
	if !ok {
		return
	}

	params := database.ListOrdersParams{RestaurantID: restaurantID, Limit: maxExportRows}
	if err := parseOrderFilters(r, h.loc, &params); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	ctx := r.Context()
	orders, err := h.store.ListOrders(ctx, params)
	if err != nil {
		h.logger.Error("export orders: list", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Orders")
	if err != nil {
		h.logger.Error("export orders: add sheet", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	headerRow := sheet.AddRow()
	for _, title := range []string{
		"Order", "Created", "Type", "Table", "Status", "Item", "Toppings",
		"Quantity", "Line Total", "Subtotal", "Tax", "Total",
	} {
		headerRow.AddCell().SetString(title)
	}

	for _, o := range orders {
		detail, err := loadOrderDetail(ctx, h.store, restaurantID, o.ID)
		if err != nil {
			h.logger.Error("export orders: load detail", zap.String("order_id", o.ID.String()), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		for _, item := range detail.Items {
			row := sheet.AddRow()
			row.AddCell().SetString(detail.OrderNumber)
			row.AddCell().SetString(detail.CreatedAt.In(h.loc).Format(time.DateTime))
			row.AddCell().SetString(detail.OrderType)
			table := row.AddCell()
			if detail.TableNumber != nil {
				table.SetInt(int(*detail.TableNumber))
			}
			row.AddCell().SetString(detail.Status)
			row.AddCell().SetString(item.Name)
			row.AddCell().SetString(toppingSummary(item.Toppings))
			row.AddCell().SetInt(int(item.Quantity))
			row.AddCell().SetString(item.Subtotal)
			row.AddCell().SetString(detail.Subtotal)
			row.AddCell().SetString(detail.TaxAmount)
			row.AddCell().SetString(detail.TotalAmount)
		}
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=orders-%s.xlsx", time.Now().Format("20060102")))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := file.Write(w); err != nil {
		h.logger.Error("export orders: write", zap.Error(err))
	}
}

func toppingSummary(toppings []orderItemToppingResponse) string {
	s := ""
	for i, t := range toppings {
		if i > 0 {
			s += ", "
		}
		if t.Quantity > 1 {
			s += fmt.Sprintf("%dx ", t.Quantity)
		}
		s += t.Name
	}
	return s
}
