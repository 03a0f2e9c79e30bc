package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/tablekiosk/api/internal/config"
	"github.com/tablekiosk/api/internal/database"
	"github.com/tablekiosk/api/internal/enum"
	"github.com/tablekiosk/api/internal/logger"
	"github.com/tablekiosk/api/internal/service"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type seedTopping struct {
	name   string
	price  string
	maxQty int32
}

type seedToppingCategory struct {
	name     string
	min, max int32
	required bool
	toppings []seedTopping
}

type seedItem struct {
	name     string
	price    string
	toppings []string // topping category names
}

type seedCategory struct {
	name  string
	items []seedItem
}

var demoToppings = []seedToppingCategory{
	{name: "Cheese", min: 1, max: 2, required: true, toppings: []seedTopping{
		{"Cheddar", "1.00", 3}, {"Swiss", "1.20", 2}, {"Blue cheese", "1.50", 1},
	}},
	{name: "Sauce", min: 0, max: 2, toppings: []seedTopping{
		{"Ketchup", "0.00", 1}, {"Mayo", "0.00", 1}, {"BBQ", "0.30", 1},
	}},
	{name: "Extras", min: 0, max: 3, toppings: []seedTopping{
		{"Bacon", "1.80", 2}, {"Fried egg", "1.20", 1}, {"Jalapeños", "0.60", 1},
	}},
}

var demoMenu = []seedCategory{
	{name: "Burgers", items: []seedItem{
		{"Classic Burger", "8.50", []string{"Cheese", "Sauce", "Extras"}},
		{"Veggie Burger", "9.00", []string{"Cheese", "Sauce"}},
	}},
	{name: "Sides", items: []seedItem{
		{"Fries", "3.20", []string{"Sauce"}},
	}},
	{name: "Drinks", items: []seedItem{
		{"Lemonade", "2.80", nil},
		{"Iced Tea", "2.60", nil},
	}},
}

func main() {
	// CLI flags
	email := flag.String("email", "", "Admin email address")
	password := flag.String("password", "", "Admin password")
	restaurant := flag.String("restaurant", "", "Restaurant name")
	flag.Parse()

	// Fall back to environment variables, then defaults
	if *email == "" {
		*email = envOr("SEED_EMAIL", "admin@kiosk.local")
	}
	if *restaurant == "" {
		*restaurant = envOr("SEED_RESTAURANT", "Demo Diner")
	}

	cfg := config.Load()
	log, err := logger.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if *password == "" {
		*password = os.Getenv("SEED_PASSWORD")
	}
	if *password == "" {
		*password = "password123"
		log.Warn("using default password 'password123'; change it immediately in production")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("connect database", zap.Error(err))
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatal("ping database", zap.Error(err))
	}

	// The seed mirrors POST /setup: it only runs on an empty database.
	n, err := database.New(pool).CountUsers(ctx)
	if err != nil {
		log.Fatal("count users", zap.Error(err))
	}
	if n > 0 {
		log.Info("database already has users, skipping seed")
		return
	}

	// Seed in a transaction (restaurant, users and menu or nothing)
	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatal("begin transaction", zap.Error(err))
	}
	defer tx.Rollback(ctx)
	q := database.New(tx)

	rest, err := q.CreateRestaurant(ctx, database.CreateRestaurantParams{
		Name:       *restaurant,
		Currency:   "EUR",
		TaxRate:    service.RateToNumeric(decimal.RequireFromString("0.10")),
		TableCount: 12,
	})
	if err != nil {
		log.Fatal("create restaurant", zap.Error(err))
	}

	for _, u := range []struct{ email, name, role string }{
		{*email, "Admin", enum.UserRoleAdmin},
		{"kitchen@kiosk.local", "Kitchen", enum.UserRoleKitchen},
	} {
		hashed, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatal("hash password", zap.Error(err))
		}
		if _, err := q.CreateUser(ctx, database.CreateUserParams{
			RestaurantID:   rest.ID,
			Email:          u.email,
			HashedPassword: string(hashed),
			FullName:       u.name,
			Role:           u.role,
		}); err != nil {
			log.Fatal("create user", zap.String("email", u.email), zap.Error(err))
		}
	}

	if err := seedMenu(ctx, q, rest); err != nil {
		log.Fatal("seed menu", zap.Error(err))
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatal("commit", zap.Error(err))
	}
	log.Info("seed completed",
		zap.String("restaurant_id", rest.ID.String()),
		zap.String("admin_email", *email),
	)
}

func seedMenu(ctx context.Context, q *database.Queries, rest database.Restaurant) error {
	toppingCats := make(map[string]database.ToppingCategory, len(demoToppings))
	for i, tc := range demoToppings {
		cat, err := q.CreateToppingCategory(ctx, database.CreateToppingCategoryParams{
			RestaurantID: rest.ID,
			Name:         tc.name,
			MinSelection: tc.min,
			MaxSelection: tc.max,
			IsRequired:   tc.required,
			SortOrder:    int32(i),
		})
		if err != nil {
			return fmt.Errorf("create topping category %s: %w", tc.name, err)
		}
		toppingCats[tc.name] = cat

		for j, t := range tc.toppings {
			if _, err := q.CreateTopping(ctx, database.CreateToppingParams{
				ToppingCategoryID: cat.ID,
				Name:              t.name,
				Price:             price(t.price),
				MaxQuantity:       t.maxQty,
				SortOrder:         int32(j),
			}); err != nil {
				return fmt.Errorf("create topping %s: %w", t.name, err)
			}
		}
	}

	for i, c := range demoMenu {
		cat, err := q.CreateCategory(ctx, database.CreateCategoryParams{
			RestaurantID: rest.ID,
			Name:         c.name,
			SortOrder:    int32(i),
		})
		if err != nil {
			return fmt.Errorf("create category %s: %w", c.name, err)
		}

		for j, it := range c.items {
			item, err := q.CreateMenuItem(ctx, database.CreateMenuItemParams{
				RestaurantID: rest.ID,
				CategoryID:   cat.ID,
				Name:         it.name,
				Description:  pgtype.Text{},
				Price:        price(it.price),
				IsAvailable:  true,
				SortOrder:    int32(j),
			})
			if err != nil {
				return fmt.Errorf("create menu item %s: %w", it.name, err)
			}
			for k, name := range it.toppings {
				if err := q.AddMenuItemToppingCategory(ctx, database.AddMenuItemToppingCategoryParams{
					MenuItemID:        item.ID,
					ToppingCategoryID: toppingCats[name].ID,
					SortOrder:         int32(k),
				}); err != nil {
					return fmt.Errorf("link %s to %s: %w", it.name, name, err)
				}
			}
		}
	}
	return nil
}

func price(s string) pgtype.Numeric {
	return service.DecimalToNumeric(decimal.RequireFromString(s))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
