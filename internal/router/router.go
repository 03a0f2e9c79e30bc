package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tablekiosk/api/internal/cart"
	"github.com/tablekiosk/api/internal/config"
	"github.com/tablekiosk/api/internal/database"
	"github.com/tablekiosk/api/internal/enum"
	"github.com/tablekiosk/api/internal/handler"
	mw "github.com/tablekiosk/api/internal/middleware"
	"github.com/tablekiosk/api/internal/service"
	"github.com/tablekiosk/api/internal/storage"
	"github.com/tablekiosk/api/internal/ws"
	"go.uber.org/zap"
)

// Deps are the long-lived collaborators the routes are built from.
type Deps struct {
	Config    *config.Config
	Queries   *database.Queries
	Pool      *pgxpool.Pool
	Hub       *ws.Hub
	Publisher ws.Publisher
	Carts     cart.Store
	// Idempotency may be nil, which disables Idempotency-Key handling.
	Idempotency  mw.IdempotencyKV
	KioskLimiter *mw.RateLimiter
	Images       storage.ImageStore
	Printer      *service.PrintService
	Logger       *zap.Logger
}

// New creates a Chi router with all application routes wired up.
// Kiosk routes are public and rate limited; staff routes require a token
// scoped to the restaurant in the URL.
func New(d Deps) chi.Router {
	cfg := d.Config
	queries := d.Queries
	loc := reportLocation(cfg.ReportTimezone, d.Logger)

	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", mw.IdempotencyHeader},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	orderService := service.NewOrderService(d.Pool, func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}, d.Publisher, d.Logger)

	// Auth and first-run setup (public)
	handler.NewAuthHandler(queries, cfg.JWTSecret).RegisterRoutes(r)
	handler.NewSetupHandler(d.Pool, func(db database.DBTX) handler.SetupStore {
		return database.New(db)
	}, cfg.JWTSecret, d.Logger).RegisterRoutes(r)

	// WebSockets (staff auth via ?token=, kiosks anonymous)
	r.Route("/ws/restaurants/{rid}", ws.NewHandler(d.Hub, cfg.JWTSecret, d.Logger).RegisterRoutes)

	r.Route("/restaurants/{rid}", func(r chi.Router) {
		// Kiosk (public)
		r.Route("/kiosk", func(r chi.Router) {
			if d.KioskLimiter != nil {
				r.Use(d.KioskLimiter.Handler)
			}
			r.Use(mw.Idempotency(d.Idempotency, d.Logger))
			handler.NewKioskHandler(queries, orderService, d.Carts, d.Logger).RegisterRoutes(r)
		})

		// Staff
		r.Group(func(r chi.Router) {
			r.Use(mw.Authenticate(cfg.JWTSecret))
			r.Use(mw.RequireRestaurant)

			r.Route("/admin", func(r chi.Router) {
				r.Use(mw.RequireRole(enum.UserRoleAdmin))

				r.Route("/users", handler.NewUserHandler(queries).RegisterRoutes)
				r.Route("/categories", handler.NewCategoryHandler(queries, d.Publisher, d.Logger).RegisterRoutes)
				r.Route("/menu-items", handler.NewMenuItemHandler(queries, d.Pool, func(db database.DBTX) handler.MenuItemStore {
					return database.New(db)
				}, d.Images, d.Publisher, d.Logger).RegisterRoutes)
				r.Route("/topping-categories", handler.NewToppingHandler(queries, d.Publisher, d.Logger).RegisterRoutes)
				handler.NewSettingsHandler(queries, d.Printer, d.Publisher, d.Logger).RegisterRoutes(r)
				r.Route("/reports", handler.NewReportsHandler(queries, loc, d.Logger).RegisterRoutes)
			})

			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(enum.UserRoleAdmin, enum.UserRoleKitchen))

				r.Route("/kitchen", handler.NewKitchenHandler(orderService, queries, d.Logger).RegisterRoutes)
				r.Route("/orders", handler.NewOrderHandler(orderService, queries, d.Printer, loc, d.Logger).RegisterRoutes)
			})
		})
	})

	return r
}

// reportLocation resolves the reporting time zone, falling back to UTC.
func reportLocation(name string, logger *zap.Logger) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		if logger != nil {
			logger.Warn("unknown REPORT_TIMEZONE, using UTC", zap.String("zone", name), zap.Error(err))
		}
		return time.UTC
	}
	return loc
}
