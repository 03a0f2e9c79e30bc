package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5"
	"github.com/tablekiosk/api/internal/auth"
	"github.com/tablekiosk/api/internal/database"
	"github.com/tablekiosk/api/internal/handler"
	"github.com/tablekiosk/api/internal/middleware"
)

// --- Mock store ---

type mockUserStore struct {
	users          map[uuid.UUID]database.User
	passwordResets int
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{users: make(map[uuid.UUID]database.User)}
}

func (m *mockUserStore) ListUsersByRestaurant(_ context.Context, restaurantID uuid.UUID) ([]database.User, error) {
	var result []database.User
	for _, u := range m.users {
		if u.RestaurantID == restaurantID && u.IsActive {
			result = append(result, u)
		}
	}
	return result, nil
}

func (m *mockUserStore) CreateUser(_ context.Context, arg database.CreateUserParams) (database.User, error) {
	for _, u := range m.users {
		if u.Email == arg.Email {
			return database.User{}, &pgconn.PgError{Code: "23505"}
		}
	}
	u := database.User{
		ID:             uuid.New(),
		RestaurantID:   arg.RestaurantID,
		Email:          arg.Email,
		HashedPassword: arg.HashedPassword,
		FullName:       arg.FullName,
		Role:           arg.Role,
		IsActive:       true,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *mockUserStore) UpdateUser(_ context.Context, arg database.UpdateUserParams) (database.User, error) {
	u, ok := m.users[arg.ID]
	if !ok || u.RestaurantID != arg.RestaurantID || !u.IsActive {
		return database.User{}, pgx.ErrNoRows
	}
	u.Email = arg.Email
	u.FullName = arg.FullName
	u.Role = arg.Role
	m.users[u.ID] = u
	return u, nil
}

func (m *mockUserStore) UpdateUserPassword(_ context.Context, arg database.UpdateUserPasswordParams) error {
	m.passwordResets++
	u := m.users[arg.ID]
	u.HashedPassword = arg.HashedPassword
	m.users[arg.ID] = u
	return nil
}

func (m *mockUserStore) SoftDeleteUser(_ context.Context, arg database.SoftDeleteUserParams) (uuid.UUID, error) {
	u, ok := m.users[arg.ID]
	if !ok || u.RestaurantID != arg.RestaurantID || !u.IsActive {
		return uuid.Nil, pgx.ErrNoRows
	}
	u.IsActive = false
	m.users[u.ID] = u
	return u.ID, nil
}

// --- Helpers ---

// setupUserRouter mounts the handler behind a fake admin identity.
func setupUserRouter(store *mockUserStore, adminID uuid.UUID) *chi.Mux {
	h := handler.NewUserHandler(store)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := middleware.WithClaims(req.Context(), &auth.Claims{UserID: adminID, Role: "ADMIN"})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Route("/restaurants/{rid}/admin/users", h.RegisterRoutes)
	return r
}

func usersPath(rid uuid.UUID) string {
	return "/restaurants/" + rid.String() + "/admin/users"
}

// --- Tests ---

func TestUserCreate_Valid(t *testing.T) {
	store := newMockUserStore()
	rid := uuid.New()
	router := setupUserRouter(store, uuid.New())

	rr := doRequest(t, router, "POST", usersPath(rid), map[string]string{
		"email":     "cook@test.com",
		"password":  "password123",
		"full_name": "Cook",
		"role":      "KITCHEN",
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["role"] != "KITCHEN" || resp["restaurant_id"] != rid.String() {
		t.Errorf("response: %v", resp)
	}
	if _, leaked := resp["hashed_password"]; leaked {
		t.Error("password hash must not be returned")
	}
}

func TestUserCreate_InvalidRole(t *testing.T) {
	router := setupUserRouter(newMockUserStore(), uuid.New())

	rr := doRequest(t, router, "POST", usersPath(uuid.New()), map[string]string{
		"email":     "cook@test.com",
		"password":  "password123",
		"full_name": "Cook",
		"role":      "CASHIER",
	})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestUserCreate_DuplicateEmail(t *testing.T) {
	store := newMockUserStore()
	rid := uuid.New()
	router := setupUserRouter(store, uuid.New())
	body := map[string]string{"email": "cook@test.com", "password": "password123", "full_name": "Cook", "role": "KITCHEN"}

	doRequest(t, router, "POST", usersPath(rid), body)
	rr := doRequest(t, router, "POST", usersPath(rid), body)

	if rr.Code != http.StatusConflict {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestUserList_ScopedToRestaurant(t *testing.T) {
	store := newMockUserStore()
	rid := uuid.New()
	router := setupUserRouter(store, uuid.New())
	doRequest(t, router, "POST", usersPath(rid), map[string]string{"email": "a@test.com", "password": "password123", "full_name": "A", "role": "KITCHEN"})
	doRequest(t, router, "POST", usersPath(uuid.New()), map[string]string{"email": "b@test.com", "password": "password123", "full_name": "B", "role": "KITCHEN"})

	rr := doRequest(t, router, "GET", usersPath(rid), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if list := decodeList(t, rr); len(list) != 1 {
		t.Errorf("expected 1 user, got %d", len(list))
	}
}

func TestUserUpdate_ResetsPassword(t *testing.T) {
	store := newMockUserStore()
	rid := uuid.New()
	router := setupUserRouter(store, uuid.New())
	created := decodeResponse(t, doRequest(t, router, "POST", usersPath(rid), map[string]string{
		"email": "cook@test.com", "password": "password123", "full_name": "Cook", "role": "KITCHEN",
	}))

	rr := doRequest(t, router, "PUT", usersPath(rid)+"/"+created["id"].(string), map[string]string{
		"email": "cook@test.com", "full_name": "Head Cook", "role": "ADMIN", "password": "new-password",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	if store.passwordResets != 1 {
		t.Errorf("password resets: got %d, want 1", store.passwordResets)
	}
	if resp := decodeResponse(t, rr); resp["full_name"] != "Head Cook" {
		t.Errorf("full_name: got %v", resp["full_name"])
	}
}

func TestUserUpdate_NotFound(t *testing.T) {
	router := setupUserRouter(newMockUserStore(), uuid.New())

	rr := doRequest(t, router, "PUT", usersPath(uuid.New())+"/"+uuid.New().String(), map[string]string{
		"email": "x@test.com", "full_name": "X", "role": "KITCHEN",
	})

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestUserDelete_Self(t *testing.T) {
	adminID := uuid.New()
	router := setupUserRouter(newMockUserStore(), adminID)

	rr := doRequest(t, router, "DELETE", usersPath(uuid.New())+"/"+adminID.String(), nil)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestUserDelete_SoftDeletes(t *testing.T) {
	store := newMockUserStore()
	rid := uuid.New()
	router := setupUserRouter(store, uuid.New())
	created := decodeResponse(t, doRequest(t, router, "POST", usersPath(rid), map[string]string{
		"email": "cook@test.com", "password": "password123", "full_name": "Cook", "role": "KITCHEN",
	}))

	rr := doRequest(t, router, "DELETE", usersPath(rid)+"/"+created["id"].(string), nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNoContent)
	}
	if list := decodeList(t, doRequest(t, router, "GET", usersPath(rid), nil)); len(list) != 0 {
		t.Errorf("expected no active users, got %d", len(list))
	}
}
