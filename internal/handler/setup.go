package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/tablekiosk/api/internal/cart"
	"github.com/tablekiosk/api/internal/database"
	"github.com/tablekiosk/api/internal/enum"
	"github.com/tablekiosk/api/internal/service"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// SetupStore defines the database methods needed for first-run setup.
// Satisfied by *database.Queries; narrow interface for testability.
type SetupStore interface {
	CountUsers(ctx context.Context) (int64, error)
	CreateRestaurant(ctx context.Context, arg database.CreateRestaurantParams) (database.Restaurant, error)
	CreateUser(ctx context.Context, arg database.CreateUserParams) (database.User, error)
}

// NewSetupStore creates a SetupStore from a DBTX (pool or tx).
type NewSetupStore func(db database.DBTX) SetupStore

// SetupHandler creates the first restaurant and its admin.
type SetupHandler struct {
	pool      service.TxBeginner
	newStore  NewSetupStore
	jwtSecret string
	logger    *zap.Logger
}

func NewSetupHandler(pool service.TxBeginner, newStore NewSetupStore, jwtSecret string, logger *zap.Logger) *SetupHandler {
	if logger == nil {
		logger = zap.L()
	}
	return &SetupHandler{pool: pool, newStore: newStore, jwtSecret: jwtSecret, logger: logger.Named("setup")}
}

func (h *SetupHandler) RegisterRoutes(r chi.Router) {
	r.Post("/setup", h.Setup)
}

type setupRequest struct {
	RestaurantName string `json:"restaurant_name" validate:"required,max=120"`
	Currency       string `json:"currency" validate:"omitempty,len=3"`
	TaxRate        string `json:"tax_rate"`
	TableCount     int32  `json:"table_count" validate:"gte=0,lte=500"`
	FullName       string `json:"full_name" validate:"required"`
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required,min=8"`
}

// Setup is only allowed while no user exists. It responds with tokens for
// the new admin.
func (h *SetupHandler) Setup(w http.ResponseWriter, r *http.Request) {
	var req setupRequest
	if !decodeValid(w, r, &req) {
		return
	}

	taxRate := cart.DefaultTaxRate
	if req.TaxRate != "" {
		d, err := decimal.NewFromString(req.TaxRate)
		if err != nil || d.IsNegative() || d.GreaterThan(decimal.NewFromInt(1)) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "tax_rate must be between 0 and 1"})
			return
		}
		taxRate = d
	}
	currency := req.Currency
	if currency == "" {
		currency = "EUR"
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("hash password", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	ctx := r.Context()
	tx, err := h.pool.Begin(ctx)
	if err != nil {
		h.logger.Error("begin tx", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := h.newStore(tx)

	count, err := store.CountUsers(ctx)
	if err != nil {
		h.logger.Error("count users", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if count > 0 {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "setup already completed"})
		return
	}

	var rate pgtype.Numeric
	_ = rate.Scan(taxRate.StringFixed(4))

	restaurant, err := store.CreateRestaurant(ctx, database.CreateRestaurantParams{
		Name:       req.RestaurantName,
		Currency:   currency,
		TaxRate:    rate,
		TableCount: req.TableCount,
	})
	if err != nil {
		h.logger.Error("create restaurant", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	user, err := store.CreateUser(ctx, database.CreateUserParams{
		RestaurantID:   restaurant.ID,
		Email:          req.Email,
		HashedPassword: string(hashed),
		FullName:       req.FullName,
		Role:           enum.UserRoleAdmin,
	})
	if err != nil {
		h.logger.Error("create admin", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := tx.Commit(ctx); err != nil {
		h.logger.Error("commit setup", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.logger.Info("first-run setup completed", zap.String("restaurant_id", restaurant.ID.String()))
	status, resp := issueTokens(h.jwtSecret, user)
	if status == http.StatusOK {
		status = http.StatusCreated
	}
	writeJSON(w, status, resp)
}
