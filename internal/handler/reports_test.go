package handler_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tablekiosk/api/internal/database"
	"github.com/tablekiosk/api/internal/handler"
	"go.uber.org/zap"
)

// --- Mock Store ---

type mockReportsStore struct {
	dailySales    []database.GetDailySalesRow
	menuItemSales []database.GetMenuItemSalesRow
	toppingSales  []database.GetToppingSalesRow
	hourlySales   []database.GetHourlySalesRow
	err           error

	lastDaily   database.GetDailySalesParams
	lastTopping database.GetToppingSalesParams
	lastLimit   int32
}

func (m *mockReportsStore) GetDailySales(_ context.Context, arg database.GetDailySalesParams) ([]database.GetDailySalesRow, error) {
	m.lastDaily = arg
	return m.dailySales, m.err
}

func (m *mockReportsStore) GetMenuItemSales(_ context.Context, arg database.GetMenuItemSalesParams) ([]database.GetMenuItemSalesRow, error) {
	m.lastLimit = arg.Limit
	return m.menuItemSales, m.err
}

func (m *mockReportsStore) GetToppingSales(_ context.Context, arg database.GetToppingSalesParams) ([]database.GetToppingSalesRow, error) {
	m.lastTopping = arg
	m.lastLimit = arg.Limit
	return m.toppingSales, m.err
}

func (m *mockReportsStore) GetHourlySales(_ context.Context, arg database.GetHourlySalesParams) ([]database.GetHourlySalesRow, error) {
	return m.hourlySales, m.err
}

// --- Helpers ---

func toDate(s string) pgtype.Date {
	t, _ := time.Parse(time.DateOnly, s)
	return pgtype.Date{Time: t, Valid: true}
}

func setupReportsRouter(store handler.ReportsStore, loc *time.Location) http.Handler {
	h := handler.NewReportsHandler(store, loc, zap.NewNop())
	r := chi.NewRouter()
	r.Route("/restaurants/{rid}/admin/reports", h.RegisterRoutes)
	return r
}

func reportsPath(rid uuid.UUID, report string) string {
	return "/restaurants/" + rid.String() + "/admin/reports/" + report
}

// --- Tests ---

func TestDailySales(t *testing.T) {
	rid := uuid.New()
	store := &mockReportsStore{
		dailySales: []database.GetDailySalesRow{
			{SaleDate: toDate("2026-02-01"), OrderCount: 10, Subtotal: makeNumeric("200.00"), TaxAmount: makeNumeric("20.00"), TotalAmount: makeNumeric("220.00")},
			{SaleDate: toDate("2026-02-02"), OrderCount: 15, Subtotal: makeNumeric("300.00"), TaxAmount: makeNumeric("30.00"), TotalAmount: makeNumeric("330.00")},
		},
	}
	router := setupReportsRouter(store, nil)

	rr := doRequest(t, router, "GET", reportsPath(rid, "daily-sales")+"?start_date=2026-02-01&end_date=2026-02-02", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	list := decodeList(t, rr)
	if len(list) != 2 {
		t.Fatalf("rows: got %d, want 2", len(list))
	}
	if list[0]["date"] != "2026-02-01" || list[0]["order_count"] != float64(10) || list[0]["total_amount"] != "220.00" {
		t.Errorf("first row: %v", list[0])
	}

	// end_date is inclusive: the query end is the following midnight.
	want := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	if !store.lastDaily.EndDate.Equal(want) {
		t.Errorf("end: got %v, want %v", store.lastDaily.EndDate, want)
	}
	if store.lastDaily.RestaurantID != rid || store.lastDaily.TimeZone != "UTC" {
		t.Errorf("params: %+v", store.lastDaily)
	}
}

func TestDailySales_Timezone(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	store := &mockReportsStore{}
	router := setupReportsRouter(store, loc)

	rr := doRequest(t, router, "GET", reportsPath(uuid.New(), "daily-sales")+"?start_date=2026-02-01&end_date=2026-02-01", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	want := time.Date(2026, 1, 31, 17, 0, 0, 0, time.UTC)
	if !store.lastDaily.StartDate.Equal(want) {
		t.Errorf("start: got %v, want %v", store.lastDaily.StartDate.UTC(), want)
	}
	if store.lastDaily.TimeZone != "UTC+7" {
		t.Errorf("time zone: got %q", store.lastDaily.TimeZone)
	}
}

func TestDailySales_DefaultDateRange(t *testing.T) {
	store := &mockReportsStore{dailySales: []database.GetDailySalesRow{}}
	router := setupReportsRouter(store, nil)

	rr := doRequest(t, router, "GET", reportsPath(uuid.New(), "daily-sales"), nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if got := store.lastDaily.EndDate.Sub(store.lastDaily.StartDate); got != 31*24*time.Hour {
		t.Errorf("default span: got %v, want 31 days", got)
	}
	if list := decodeList(t, rr); len(list) != 0 {
		t.Errorf("expected empty list, got %v", list)
	}
}

func TestReports_InvalidDateRange(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"bad start", "?start_date=invalid"},
		{"bad end", "?end_date=02-03-2026"},
		{"start after end", "?start_date=2026-02-05&end_date=2026-02-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupReportsRouter(&mockReportsStore{}, nil)
			for _, report := range []string{"daily-sales", "menu-item-sales", "topping-sales", "hourly-sales"} {
				rr := doRequest(t, router, "GET", reportsPath(uuid.New(), report)+tt.query, nil)
				if rr.Code != http.StatusBadRequest {
					t.Errorf("%s: got %d, want %d", report, rr.Code, http.StatusBadRequest)
				}
			}
		})
	}
}

func TestReports_InvalidRestaurantID(t *testing.T) {
	router := setupReportsRouter(&mockReportsStore{}, nil)

	rr := doRequest(t, router, "GET", "/restaurants/not-a-uuid/admin/reports/daily-sales", nil)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestReports_StoreError(t *testing.T) {
	router := setupReportsRouter(&mockReportsStore{err: errors.New("db down")}, nil)

	for _, report := range []string{"daily-sales", "menu-item-sales", "topping-sales", "hourly-sales"} {
		rr := doRequest(t, router, "GET", reportsPath(uuid.New(), report), nil)
		if rr.Code != http.StatusInternalServerError {
			t.Errorf("%s: got %d, want %d", report, rr.Code, http.StatusInternalServerError)
		}
	}
}

func TestMenuItemSales(t *testing.T) {
	burgerID := uuid.New()
	store := &mockReportsStore{
		menuItemSales: []database.GetMenuItemSalesRow{
			{MenuItemID: burgerID, MenuItemName: "Classic Burger", QuantitySold: 42, TotalRevenue: makeNumeric("441.00")},
		},
	}
	router := setupReportsRouter(store, nil)

	rr := doRequest(t, router, "GET", reportsPath(uuid.New(), "menu-item-sales"), nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	list := decodeList(t, rr)
	if len(list) != 1 || list[0]["menu_item_id"] != burgerID.String() || list[0]["quantity_sold"] != float64(42) || list[0]["total_revenue"] != "441.00" {
		t.Errorf("rows: %v", list)
	}
	if store.lastLimit != 20 {
		t.Errorf("default limit: got %d, want 20", store.lastLimit)
	}
}

func TestMenuItemSales_Limit(t *testing.T) {
	tests := []struct {
		query string
		want  int32
	}{
		{"?limit=5", 5},
		{"?limit=500", 100},
		{"?limit=-3", 20},
		{"?limit=abc", 20},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			store := &mockReportsStore{}
			router := setupReportsRouter(store, nil)
			doRequest(t, router, "GET", reportsPath(uuid.New(), "menu-item-sales")+tt.query, nil)
			if store.lastLimit != tt.want {
				t.Errorf("limit: got %d, want %d", store.lastLimit, tt.want)
			}
		})
	}
}

func TestToppingSales(t *testing.T) {
	cheddarID := uuid.New()
	rid := uuid.New()
	store := &mockReportsStore{
		toppingSales: []database.GetToppingSalesRow{
			{ToppingID: cheddarID, ToppingName: "Cheddar", ToppingCategoryName: "Cheese", QuantitySold: 64, TotalRevenue: makeNumeric("64.00")},
		},
	}
	router := setupReportsRouter(store, nil)

	rr := doRequest(t, router, "GET", reportsPath(rid, "topping-sales")+"?limit=10", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	list := decodeList(t, rr)
	if len(list) != 1 || list[0]["topping_name"] != "Cheddar" || list[0]["topping_category_name"] != "Cheese" || list[0]["quantity_sold"] != float64(64) {
		t.Errorf("rows: %v", list)
	}
	if store.lastTopping.RestaurantID != rid || store.lastTopping.Limit != 10 {
		t.Errorf("params: %+v", store.lastTopping)
	}
}

func TestHourlySales(t *testing.T) {
	store := &mockReportsStore{
		hourlySales: []database.GetHourlySalesRow{
			{Hour: 12, OrderCount: 30, TotalRevenue: makeNumeric("346.50")},
			{Hour: 19, OrderCount: 25, TotalRevenue: makeNumeric("288.75")},
		},
	}
	router := setupReportsRouter(store, nil)

	rr := doRequest(t, router, "GET", reportsPath(uuid.New(), "hourly-sales"), nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	list := decodeList(t, rr)
	if len(list) != 2 || list[1]["hour"] != float64(19) || list[1]["total_revenue"] != "288.75" {
		t.Errorf("rows: %v", list)
	}
}

func TestHourlySales_NullRevenue(t *testing.T) {
	store := &mockReportsStore{
		hourlySales: []database.GetHourlySalesRow{
			{Hour: 9, OrderCount: 0, TotalRevenue: pgtype.Numeric{}},
			{Hour: 10, OrderCount: 1, TotalRevenue: makeNumeric("7.5")},
		},
	}
	router := setupReportsRouter(store, nil)

	rr := doRequest(t, router, "GET", reportsPath(uuid.New(), "hourly-sales"), nil)

	list := decodeList(t, rr)
	if len(list) != 2 || list[0]["total_revenue"] != "0.00" || list[1]["total_revenue"] != "7.50" {
		t.Errorf("rows: %v", list)
	}
}
