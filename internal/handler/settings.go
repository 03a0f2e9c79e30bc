package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/tablekiosk/api/internal/database"
	"github.com/tablekiosk/api/internal/printing"
	"github.com/tablekiosk/api/internal/service"
	"github.com/tablekiosk/api/internal/ws"
	"go.uber.org/zap"
)

// SettingsStore defines the database methods needed by the settings handler.
// Satisfied by *database.Queries; narrow interface for testability.
type SettingsStore interface {
	GetRestaurant(ctx context.Context, id uuid.UUID) (database.Restaurant, error)
	UpdateRestaurantSettings(ctx context.Context, arg database.UpdateRestaurantSettingsParams) (database.Restaurant, error)
	GetPrintSettings(ctx context.Context, restaurantID uuid.UUID) (database.PrintSetting, error)
	UpsertPrintSettings(ctx context.Context, arg database.UpsertPrintSettingsParams) (database.PrintSetting, error)
}

// PrinterAdmin lists printers and sends test pages. Satisfied by
// *service.PrintService.
type PrinterAdmin interface {
	Printers(ctx context.Context, restaurantID uuid.UUID) ([]printing.Printer, error)
	TestPrint(ctx context.Context, restaurantID uuid.UUID) (int64, error)
}

// SettingsHandler manages restaurant and print settings.
type SettingsHandler struct {
	store   SettingsStore
	printer PrinterAdmin
	pub     ws.Publisher
	logger  *zap.Logger
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(store SettingsStore, printer PrinterAdmin, pub ws.Publisher, logger *zap.Logger) *SettingsHandler {
	if logger == nil {
		logger = zap.L()
	}
	return &SettingsHandler{store: store, printer: printer, pub: pub, logger: logger.Named("settings")}
}

// RegisterRoutes registers settings endpoints.
// Expected to be mounted at /restaurants/{rid}/admin
func (h *SettingsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/settings", h.GetSettings)
	r.Put("/settings", h.UpdateSettings)
	r.Get("/print-settings", h.GetPrintSettings)
	r.Put("/print-settings", h.UpdatePrintSettings)
	r.Get("/print-settings/printers", h.ListPrinters)
	r.Post("/print-settings/test", h.TestPrint)
}

// --- Request / Response types ---

type settingsRequest struct {
	Name       string `json:"name" validate:"required,max=120"`
	Currency   string `json:"currency" validate:"required,len=3,alpha"`
	TaxRate    string `json:"tax_rate" validate:"required"`
	TableCount int32  `json:"table_count" validate:"gte=0,lte=500"`
}

type settingsResponse struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Currency   string    `json:"currency"`
	TaxRate    string    `json:"tax_rate"`
	TableCount int32     `json:"table_count"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toSettingsResponse(r database.Restaurant) settingsResponse {
	return settingsResponse{
		ID:         r.ID,
		Name:       r.Name,
		Currency:   r.Currency,
		TaxRate:    service.NumericToDecimal(r.TaxRate).StringFixed(4),
		TableCount: r.TableCount,
		UpdatedAt:  r.UpdatedAt,
	}
}

// printSettingsRequest updates print settings. A nil APIKey keeps the stored
// key; an empty string clears it.
type printSettingsRequest struct {
	Enabled   bool    `json:"enabled"`
	AutoPrint bool    `json:"auto_print"`
	APIKey    *string `json:"printnode_api_key" validate:"omitempty,max=200"`
	PrinterID *int64  `json:"printer_id" validate:"omitempty,gte=1"`
	Copies    int32   `json:"copies" validate:"gte=1,lte=5"`
}

type printSettingsResponse struct {
	Enabled   bool    `json:"enabled"`
	AutoPrint bool    `json:"auto_print"`
	APIKey    *string `json:"printnode_api_key"`
	PrinterID *int64  `json:"printer_id"`
	Copies    int32   `json:"copies"`
}

// maskKey keeps the last four characters of a secret.
func maskKey(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}

func toPrintSettingsResponse(ps database.PrintSetting) printSettingsResponse {
	resp := printSettingsResponse{
		Enabled:   ps.Enabled,
		AutoPrint: ps.AutoPrint,
		Copies:    ps.Copies,
	}
	if ps.PrintnodeApiKey.Valid && ps.PrintnodeApiKey.String != "" {
		masked := maskKey(ps.PrintnodeApiKey.String)
		resp.APIKey = &masked
	}
	if ps.PrinterID.Valid {
		id := ps.PrinterID.Int64
		resp.PrinterID = &id
	}
	return resp
}

// --- Restaurant settings ---

// GetSettings returns the restaurant settings.
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := urlUUID(w, r, "rid", "restaurant")
	if !ok {
		return
	}

	rest, err := h.store.GetRestaurant(r.Context(), restaurantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "restaurant not found"})
			return
		}
		h.logger.Error("get restaurant", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toSettingsResponse(rest))
}

// UpdateSettings replaces the restaurant settings. Kiosks are notified so
// they pick up the new currency and tax rate.
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := urlUUID(w, r, "rid", "restaurant")
	if !ok {
		return
	}

	var req settingsRequest
	if !decodeValid(w, r, &req) {
		return
	}

	rate, err := decimal.NewFromString(req.TaxRate)
	if err != nil || rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "tax_rate must be a decimal between 0 and 1"})
		return
	}

	rest, err := h.store.UpdateRestaurantSettings(r.Context(), database.UpdateRestaurantSettingsParams{
		ID:         restaurantID,
		Name:       req.Name,
		Currency:   strings.ToUpper(req.Currency),
		TaxRate:    service.RateToNumeric(rate),
		TableCount: req.TableCount,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "restaurant not found"})
			return
		}
		h.logger.Error("update restaurant settings", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	publishMenuUpdated(r.Context(), h.pub, h.logger, restaurantID, "restaurant", restaurantID, "updated")
	writeJSON(w, http.StatusOK, toSettingsResponse(rest))
}

// --- Print settings ---

func (h *SettingsHandler) printSettings(ctx context.Context, restaurantID uuid.UUID) (database.PrintSetting, error) {
	ps, err := h.store.GetPrintSettings(ctx, restaurantID)
	if errors.Is(err, pgx.ErrNoRows) {
		return database.PrintSetting{RestaurantID: restaurantID, Copies: 1}, nil
	}
	return ps, err
}

// GetPrintSettings returns the print settings with the API key masked.
func (h *SettingsHandler) GetPrintSettings(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := urlUUID(w, r, "rid", "restaurant")
	if !ok {
		return
	}

	ps, err := h.printSettings(r.Context(), restaurantID)
	if err != nil {
		h.logger.Error("get print settings", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toPrintSettingsResponse(ps))
}

// UpdatePrintSettings creates or replaces the print settings.
func (h *SettingsHandler) UpdatePrintSettings(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := urlUUID(w, r, "rid", "restaurant")
	if !ok {
		return
	}

	var req printSettingsRequest
	if !decodeValid(w, r, &req) {
		return
	}

	ctx := r.Context()
	current, err := h.printSettings(ctx, restaurantID)
	if err != nil {
		h.logger.Error("get print settings", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	apiKey := current.PrintnodeApiKey
	if req.APIKey != nil {
		apiKey = optionalText(strings.TrimSpace(*req.APIKey))
	}
	var printerID pgtype.Int8
	if req.PrinterID != nil {
		printerID = pgtype.Int8{Int64: *req.PrinterID, Valid: true}
	}

	ps, err := h.store.UpsertPrintSettings(ctx, database.UpsertPrintSettingsParams{
		RestaurantID:    restaurantID,
		Enabled:         req.Enabled,
		AutoPrint:       req.AutoPrint,
		PrintnodeApiKey: apiKey,
		PrinterID:       printerID,
		Copies:          req.Copies,
	})
	if err != nil {
		h.logger.Error("upsert print settings", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toPrintSettingsResponse(ps))
}

func (h *SettingsHandler) writePrintError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, service.ErrPrintNotConfigured) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	h.logger.Warn(op, zap.Error(err))
	writeJSON(w, http.StatusBadGateway, map[string]string{"error": "print provider error"})
}

// ListPrinters lists the printers visible to the stored PrintNode key.
func (h *SettingsHandler) ListPrinters(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := urlUUID(w, r, "rid", "restaurant")
	if !ok {
		return
	}

	printers, err := h.printer.Printers(r.Context(), restaurantID)
	if err != nil {
		h.writePrintError(w, "list printers", err)
		return
	}
	if printers == nil {
		printers = []printing.Printer{}
	}
	writeJSON(w, http.StatusOK, printers)
}

// TestPrint sends a test page to the configured printer.
func (h *SettingsHandler) TestPrint(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := urlUUID(w, r, "rid", "restaurant")
	if !ok {
		return
	}

	jobID, err := h.printer.TestPrint(r.Context(), restaurantID)
	if err != nil {
		h.writePrintError(w, "test print", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"job_id": jobID})
}
