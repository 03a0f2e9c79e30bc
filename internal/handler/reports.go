package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tablekiosk/api/internal/database"
	"go.uber.org/zap"
)

// ReportsStore defines the database methods needed by report handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ReportsStore interface {
	GetDailySales(ctx context.Context, arg database.GetDailySalesParams) ([]database.GetDailySalesRow, error)
	GetMenuItemSales(ctx context.Context, arg database.GetMenuItemSalesParams) ([]database.GetMenuItemSalesRow, error)
	GetToppingSales(ctx context.Context, arg database.GetToppingSalesParams) ([]database.GetToppingSalesRow, error)
	GetHourlySales(ctx context.Context, arg database.GetHourlySalesParams) ([]database.GetHourlySalesRow, error)
}

// ReportsHandler handles sales report endpoints. Cancelled orders are
// excluded from every report.
type ReportsHandler struct {
	store  ReportsStore
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

// NewReportsHandler creates a new ReportsHandler. Days and hours are bucketed
// in loc; a nil loc means UTC.
func NewReportsHandler(store ReportsStore, loc *time.Location, logger *zap.Logger) *ReportsHandler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.L()
	}
	return &ReportsHandler{store: store, loc: loc, now: time.Now, logger: logger.Named("reports")}
}

// RegisterRoutes registers report endpoints.
// Expected to be mounted at /restaurants/{rid}/admin/reports
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/daily-sales", h.DailySales)
	r.Get("/menu-item-sales", h.MenuItemSales)
	r.Get("/topping-sales", h.ToppingSales)
	r.Get("/hourly-sales", h.HourlySales)
}

// --- Response types ---

type dailySalesResponse struct {
	Date        string `json:"date"`
	OrderCount  int64  `json:"order_count"`
	Subtotal    string `json:"subtotal"`
	TaxAmount   string `json:"tax_amount"`
	TotalAmount string `json:"total_amount"`
}

type menuItemSalesResponse struct {
	MenuItemID   uuid.UUID `json:"menu_item_id"`
	MenuItemName string    `json:"menu_item_name"`
	QuantitySold int64     `json:"quantity_sold"`
	TotalRevenue string    `json:"total_revenue"`
}

type toppingSalesResponse struct {
	ToppingID           uuid.UUID `json:"topping_id"`
	ToppingName         string    `json:"topping_name"`
	ToppingCategoryName string    `json:"topping_category_name"`
	QuantitySold        int64     `json:"quantity_sold"`
	TotalRevenue        string    `json:"total_revenue"`
}

type hourlySalesResponse struct {
	Hour         int32  `json:"hour"`
	OrderCount   int64  `json:"order_count"`
	TotalRevenue string `json:"total_revenue"`
}

// --- Handlers ---

// DailySales returns per-day order totals for a date range.
func (h *ReportsHandler) DailySales(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := urlUUID(w, r, "rid", "restaurant")
	if !ok {
		return
	}
	startDate, endDate, err := parseDateRange(r, h.loc, h.now())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	rows, err := h.store.GetDailySales(r.Context(), database.GetDailySalesParams{
		RestaurantID: restaurantID,
		StartDate:    startDate,
		EndDate:      endDate,
		TimeZone:     h.loc.String(),
	})
	if err != nil {
		h.logger.Error("get daily sales", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]dailySalesResponse, len(rows))
	for i, row := range rows {
		date := "N/A"
		if row.SaleDate.Valid {
			date = row.SaleDate.Time.Format(time.DateOnly)
		}
		resp[i] = dailySalesResponse{
			Date:        date,
			OrderCount:  row.OrderCount,
			Subtotal:    numericToString(row.Subtotal),
			TaxAmount:   numericToString(row.TaxAmount),
			TotalAmount: numericToString(row.TotalAmount),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// MenuItemSales returns the best selling menu items by quantity.
func (h *ReportsHandler) MenuItemSales(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := urlUUID(w, r, "rid", "restaurant")
	if !ok {
		return
	}
	startDate, endDate, err := parseDateRange(r, h.loc, h.now())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	rows, err := h.store.GetMenuItemSales(r.Context(), database.GetMenuItemSalesParams{
		RestaurantID: restaurantID,
		StartDate:    startDate,
		EndDate:      endDate,
		Limit:        parseReportLimit(r),
	})
	if err != nil {
		h.logger.Error("get menu item sales", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]menuItemSalesResponse, len(rows))
	for i, row := range rows {
		resp[i] = menuItemSalesResponse{
			MenuItemID:   row.MenuItemID,
			MenuItemName: row.MenuItemName,
			QuantitySold: row.QuantitySold,
			TotalRevenue: numericToString(row.TotalRevenue),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ToppingSales returns the most chosen toppings. Quantities count every unit
// served, so a line of 2 burgers with double cheddar counts 4 cheddar.
func (h *ReportsHandler) ToppingSales(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := urlUUID(w, r, "rid", "restaurant")
	if !ok {
		return
	}
	startDate, endDate, err := parseDateRange(r, h.loc, h.now())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	rows, err := h.store.GetToppingSales(r.Context(), database.GetToppingSalesParams{
		RestaurantID: restaurantID,
		StartDate:    startDate,
		EndDate:      endDate,
		Limit:        parseReportLimit(r),
	})
	if err != nil {
		h.logger.Error("get topping sales", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]toppingSalesResponse, len(rows))
	for i, row := range rows {
		resp[i] = toppingSalesResponse{
			ToppingID:           row.ToppingID,
			ToppingName:         row.ToppingName,
			ToppingCategoryName: row.ToppingCategoryName,
			QuantitySold:        row.QuantitySold,
			TotalRevenue:        numericToString(row.TotalRevenue),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HourlySales returns order counts per hour of day for peak hour analysis.
func (h *ReportsHandler) HourlySales(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := urlUUID(w, r, "rid", "restaurant")
	if !ok {
		return
	}
	startDate, endDate, err := parseDateRange(r, h.loc, h.now())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	rows, err := h.store.GetHourlySales(r.Context(), database.GetHourlySalesParams{
		RestaurantID: restaurantID,
		StartDate:    startDate,
		EndDate:      endDate,
		TimeZone:     h.loc.String(),
	})
	if err != nil {
		h.logger.Error("get hourly sales", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]hourlySalesResponse, len(rows))
	for i, row := range rows {
		resp[i] = hourlySalesResponse{
			Hour:         row.Hour,
			OrderCount:   row.OrderCount,
			TotalRevenue: numericToString(row.TotalRevenue),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

// parseDateRange parses start_date and end_date (YYYY-MM-DD) in loc.
// Defaults to the last 30 days. The returned end is exclusive (midnight
// after end_date).
func parseDateRange(r *http.Request, loc *time.Location, now time.Time) (time.Time, time.Time, error) {
	now = now.In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	startDate := today.AddDate(0, 0, -30)
	endDate := today.AddDate(0, 0, 1)

	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.ParseInLocation(time.DateOnly, s, loc)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid start_date format, use YYYY-MM-DD")
		}
		startDate = t
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.ParseInLocation(time.DateOnly, s, loc)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid end_date format, use YYYY-MM-DD")
		}
		endDate = t.AddDate(0, 0, 1)
	}

	if !startDate.Before(endDate) {
		return time.Time{}, time.Time{}, errors.New("start_date must not be after end_date")
	}
	return startDate, endDate, nil
}

// parseReportLimit reads ?limit, defaulting to 20 and capped at 100.
func parseReportLimit(r *http.Request) int32 {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}
	return int32(limit)
}
