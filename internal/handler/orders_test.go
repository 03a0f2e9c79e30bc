package handler_test

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tablekiosk/api/internal/database"
	"github.com/tablekiosk/api/internal/handler"
	"github.com/tablekiosk/api/internal/service"
	"github.com/tealeg/xlsx"
	"go.uber.org/zap"
)

// --- Mock OrderServicer ---

type mockOrderService struct {
	moveFn   func(ctx context.Context, req service.MoveOrderRequest) (database.Order, error)
	cancelFn func(ctx context.Context, restaurantID, orderID uuid.UUID) (database.Order, error)
}

func (m *mockOrderService) MoveOrder(ctx context.Context, req service.MoveOrderRequest) (database.Order, error) {
	return m.moveFn(ctx, req)
}

func (m *mockOrderService) CancelOrder(ctx context.Context, restaurantID, orderID uuid.UUID) (database.Order, error) {
	return m.cancelFn(ctx, restaurantID, orderID)
}

// --- Mock OrderStore ---

type mockOrderStore struct {
	orders   map[uuid.UUID]database.Order
	items    map[uuid.UUID][]database.OrderItem        // keyed by order ID
	toppings map[uuid.UUID][]database.OrderItemTopping // keyed by order item ID
	lastList database.ListOrdersParams
}

func newMockOrderStore() *mockOrderStore {
	return &mockOrderStore{
		orders:   make(map[uuid.UUID]database.Order),
		items:    make(map[uuid.UUID][]database.OrderItem),
		toppings: make(map[uuid.UUID][]database.OrderItemTopping),
	}
}

func (m *mockOrderStore) GetOrder(_ context.Context, arg database.GetOrderParams) (database.Order, error) {
	o, ok := m.orders[arg.ID]
	if !ok || o.RestaurantID != arg.RestaurantID {
		return database.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (m *mockOrderStore) ListOrders(_ context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
	m.lastList = arg
	var result []database.Order
	for _, o := range m.orders {
		if o.RestaurantID == arg.RestaurantID {
			result = append(result, o)
		}
	}
	return result, nil
}

func (m *mockOrderStore) ListOrderItemsByOrder(_ context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
	return m.items[orderID], nil
}

func (m *mockOrderStore) ListOrderItemToppingsByOrderItem(_ context.Context, orderItemID uuid.UUID) ([]database.OrderItemTopping, error) {
	return m.toppings[orderItemID], nil
}

// seed adds an eat-in order with one burger line carrying two cheddar.
func (m *mockOrderStore) seed(restaurantID uuid.UUID, number string) database.Order {
	o := database.Order{
		ID:           uuid.New(),
		RestaurantID: restaurantID,
		OrderNumber:  number,
		OrderType:    "EAT_IN",
		TableNumber:  pgtype.Int4{Int32: 4, Valid: true},
		Status:       "NEW",
		Subtotal:     makeNumeric("10.50"),
		TaxRate:      makeNumeric("0.1000"),
		TaxAmount:    makeNumeric("1.05"),
		TotalAmount:  makeNumeric("11.55"),
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	m.orders[o.ID] = o
	item := database.OrderItem{
		ID: uuid.New(), OrderID: o.ID, MenuItemID: uuid.New(), Name: "Burger", Quantity: 1,
		UnitPrice: makeNumeric("8.50"), ToppingsTotal: makeNumeric("2.00"), Subtotal: makeNumeric("10.50"),
	}
	m.items[o.ID] = []database.OrderItem{item}
	m.toppings[item.ID] = []database.OrderItemTopping{{
		ID: uuid.New(), OrderItemID: item.ID, ToppingID: uuid.New(), Name: "Cheddar", Quantity: 2,
		UnitPrice: makeNumeric("1.00"), Price: makeNumeric("2.00"),
	}}
	return o
}

// --- Mock printer ---

type mockPrinter struct {
	result service.PrintResult
	err    error
	calls  int
}

func (m *mockPrinter) PrintOrder(context.Context, uuid.UUID, uuid.UUID) (service.PrintResult, error) {
	m.calls++
	return m.result, m.err
}

// --- Helpers ---

func setupOrderRouter(svc *mockOrderService, store *mockOrderStore, printer *mockPrinter) *chi.Mux {
	return setupOrderRouterIn(nil, svc, store, printer)
}

func setupOrderRouterIn(loc *time.Location, svc *mockOrderService, store *mockOrderStore, printer *mockPrinter) *chi.Mux {
	if svc == nil {
		svc = &mockOrderService{}
	}
	if printer == nil {
		printer = &mockPrinter{}
	}
	h := handler.NewOrderHandler(svc, store, printer, loc, zap.NewNop())
	r := chi.NewRouter()
	r.Route("/restaurants/{rid}/orders", h.RegisterRoutes)
	return r
}

func ordersPath(rid uuid.UUID) string {
	return "/restaurants/" + rid.String() + "/orders"
}

// --- List tests ---

func TestOrderList_HappyPath(t *testing.T) {
	store := newMockOrderStore()
	rid := uuid.New()
	store.seed(rid, "K-001")
	store.seed(uuid.New(), "K-001")
	router := setupOrderRouter(nil, store, nil)

	rr := doRequest(t, router, "GET", ordersPath(rid), nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	orders, _ := resp["orders"].([]interface{})
	if len(orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(orders))
	}
	first := orders[0].(map[string]interface{})
	if first["total_amount"] != "11.55" || first["table_number"] != float64(4) {
		t.Errorf("order: %v", first)
	}
	if resp["limit"] != float64(20) {
		t.Errorf("default limit: got %v", resp["limit"])
	}
}

func TestOrderList_Filters(t *testing.T) {
	store := newMockOrderStore()
	rid := uuid.New()
	router := setupOrderRouter(nil, store, nil)

	rr := doRequest(t, router, "GET", ordersPath(rid)+"?status=COMPLETED&type=TAKEAWAY&start_date=2026-01-01&end_date=2026-01-31&limit=500", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	p := store.lastList
	if p.Status.String != "COMPLETED" || p.OrderType.String != "TAKEAWAY" {
		t.Errorf("filters: %+v", p)
	}
	if p.Limit != 100 {
		t.Errorf("limit: got %d, want capped 100", p.Limit)
	}
	if want := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC); !p.EndDate.Time.Equal(want) {
		t.Errorf("end_date: got %v, want exclusive %v", p.EndDate.Time, want)
	}
}

func TestOrderList_DateFiltersUseReportZone(t *testing.T) {
	store := newMockOrderStore()
	loc := time.FixedZone("UTC+7", 7*3600)
	router := setupOrderRouterIn(loc, nil, store, nil)

	rr := doRequest(t, router, "GET", ordersPath(uuid.New())+"?start_date=2026-01-01&end_date=2026-01-01", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	p := store.lastList
	if want := time.Date(2025, 12, 31, 17, 0, 0, 0, time.UTC); !p.StartDate.Time.Equal(want) {
		t.Errorf("start_date: got %v, want %v", p.StartDate.Time.UTC(), want)
	}
	if want := time.Date(2026, 1, 1, 17, 0, 0, 0, time.UTC); !p.EndDate.Time.Equal(want) {
		t.Errorf("end_date: got %v, want %v", p.EndDate.Time.UTC(), want)
	}
}

func TestOrderList_BadFilters(t *testing.T) {
	for _, q := range []string{"?status=READY", "?type=DELIVERY", "?start_date=01-01-2026"} {
		t.Run(q, func(t *testing.T) {
			router := setupOrderRouter(nil, newMockOrderStore(), nil)
			rr := doRequest(t, router, "GET", ordersPath(uuid.New())+q, nil)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
			}
		})
	}
}

// --- Get tests ---

func TestOrderGet_WithItemsAndToppings(t *testing.T) {
	store := newMockOrderStore()
	rid := uuid.New()
	o := store.seed(rid, "K-007")
	router := setupOrderRouter(nil, store, nil)

	rr := doRequest(t, router, "GET", ordersPath(rid)+"/"+o.ID.String(), nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	resp := decodeResponse(t, rr)
	items := resp["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	item := items[0].(map[string]interface{})
	toppings := item["toppings"].([]interface{})
	if item["toppings_total"] != "2.00" || len(toppings) != 1 {
		t.Errorf("item: %v", item)
	}
	if toppings[0].(map[string]interface{})["quantity"] != float64(2) {
		t.Errorf("topping: %v", toppings[0])
	}
}

func TestOrderGet_OtherRestaurant(t *testing.T) {
	store := newMockOrderStore()
	o := store.seed(uuid.New(), "K-001")
	router := setupOrderRouter(nil, store, nil)

	rr := doRequest(t, router, "GET", ordersPath(uuid.New())+"/"+o.ID.String(), nil)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

// --- Status / cancel tests ---

func TestOrderUpdateStatus_PassesPosition(t *testing.T) {
	rid, oid := uuid.New(), uuid.New()
	var got service.MoveOrderRequest
	svc := &mockOrderService{moveFn: func(_ context.Context, req service.MoveOrderRequest) (database.Order, error) {
		got = req
		return database.Order{ID: req.OrderID, RestaurantID: req.RestaurantID, Status: req.Status, BoardPosition: *req.Position}, nil
	}}
	router := setupOrderRouter(svc, newMockOrderStore(), nil)

	rr := doRequest(t, router, "PATCH", ordersPath(rid)+"/"+oid.String()+"/status", map[string]interface{}{
		"status":   "IN_PROGRESS",
		"position": 2,
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	if got.RestaurantID != rid || got.OrderID != oid || got.Status != "IN_PROGRESS" || *got.Position != 2 {
		t.Errorf("request: %+v", got)
	}
}

func TestOrderUpdateStatus_ErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{service.ErrInvalidStatus, http.StatusBadRequest},
		{service.ErrOrderNotFound, http.StatusNotFound},
		{service.ErrOrderCancelled, http.StatusConflict},
		{service.ErrStatusConflict, http.StatusConflict},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			svc := &mockOrderService{moveFn: func(context.Context, service.MoveOrderRequest) (database.Order, error) {
				return database.Order{}, tt.err
			}}
			router := setupOrderRouter(svc, newMockOrderStore(), nil)

			rr := doRequest(t, router, "PATCH", ordersPath(uuid.New())+"/"+uuid.NewString()+"/status", map[string]string{"status": "NEW"})
			if rr.Code != tt.want {
				t.Errorf("status: got %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestOrderUpdateStatus_MissingStatus(t *testing.T) {
	router := setupOrderRouter(nil, newMockOrderStore(), nil)

	rr := doRequest(t, router, "PATCH", ordersPath(uuid.New())+"/"+uuid.NewString()+"/status", map[string]string{})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestOrderCancel(t *testing.T) {
	svc := &mockOrderService{cancelFn: func(_ context.Context, rid, oid uuid.UUID) (database.Order, error) {
		return database.Order{ID: oid, RestaurantID: rid, Status: "CANCELLED"}, nil
	}}
	router := setupOrderRouter(svc, newMockOrderStore(), nil)

	rr := doRequest(t, router, "DELETE", ordersPath(uuid.New())+"/"+uuid.NewString(), nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if resp := decodeResponse(t, rr); resp["status"] != "CANCELLED" {
		t.Errorf("status field: got %v", resp["status"])
	}
}

func TestOrderCancel_Completed(t *testing.T) {
	svc := &mockOrderService{cancelFn: func(context.Context, uuid.UUID, uuid.UUID) (database.Order, error) {
		return database.Order{}, service.ErrOrderCompleted
	}}
	router := setupOrderRouter(svc, newMockOrderStore(), nil)

	rr := doRequest(t, router, "DELETE", ordersPath(uuid.New())+"/"+uuid.NewString(), nil)

	if rr.Code != http.StatusConflict {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

// --- Print tests ---

func TestOrderPrint(t *testing.T) {
	printer := &mockPrinter{result: service.PrintResult{Status: "FALLBACK", Receipt: "ORDER K-001"}}
	router := setupOrderRouter(nil, newMockOrderStore(), printer)

	rr := doRequest(t, router, "POST", ordersPath(uuid.New())+"/"+uuid.NewString()+"/print", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if resp := decodeResponse(t, rr); resp["status"] != "FALLBACK" {
		t.Errorf("status field: got %v", resp["status"])
	}
	if printer.calls != 1 {
		t.Errorf("calls: got %d", printer.calls)
	}
}

func TestOrderPrint_NotFound(t *testing.T) {
	router := setupOrderRouter(nil, newMockOrderStore(), &mockPrinter{err: service.ErrOrderNotFound})

	rr := doRequest(t, router, "POST", ordersPath(uuid.New())+"/"+uuid.NewString()+"/print", nil)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

// --- Export tests ---

func TestOrderExport_Workbook(t *testing.T) {
	store := newMockOrderStore()
	rid := uuid.New()
	store.seed(rid, "K-001")
	store.seed(rid, "K-002")
	router := setupOrderRouter(nil, store, nil)

	rr := doRequest(t, router, "GET", ordersPath(rid)+"/export.xlsx", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Errorf("content type: %q", ct)
	}

	file, err := xlsx.OpenBinary(rr.Body.Bytes())
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	sheet := file.Sheet["Orders"]
	if sheet == nil {
		t.Fatal("missing Orders sheet")
	}
	if got := len(sheet.Rows); got != 3 {
		t.Fatalf("rows: got %d, want header + 2", got)
	}
	if v := sheet.Rows[1].Cells[6].String(); v != "2x Cheddar" {
		t.Errorf("toppings cell: got %q", v)
	}
	if v := sheet.Rows[1].Cells[3].String(); v != strconv.Itoa(4) {
		t.Errorf("table cell: got %q", v)
	}
	if store.lastList.Limit != 5000 {
		t.Errorf("export limit: got %d", store.lastList.Limit)
	}
}
