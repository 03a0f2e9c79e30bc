package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/tablekiosk/api/internal/enum"
	"github.com/tablekiosk/api/internal/events"
	"github.com/tablekiosk/api/internal/service"
	"github.com/tablekiosk/api/internal/ws"
	"go.uber.org/zap"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// decodeValid decodes the JSON body into dst and runs struct validation.
// On failure it writes a 400 and returns false.
func decodeValid(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": validationMessage(err)})
		return false
	}
	return true
}

// validationMessage turns validator errors into "field: rule" text.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request body"
	}
	parts := make([]string, len(verrs))
	for i, fe := range verrs {
		field := toSnake(fe.Field())
		switch fe.Tag() {
		case "required":
			parts[i] = field + " is required"
		case "email":
			parts[i] = field + " must be a valid email"
		case "oneof":
			parts[i] = fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
		case "min", "gte":
			parts[i] = fmt.Sprintf("%s must be >= %s", field, fe.Param())
		case "max", "lte":
			parts[i] = fmt.Sprintf("%s must be <= %s", field, fe.Param())
		default:
			parts[i] = field + " is invalid"
		}
	}
	return strings.Join(parts, "; ")
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// urlUUID parses a UUID route parameter, writing a 400 on failure.
func urlUUID(w http.ResponseWriter, r *http.Request, key, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, key))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + label + " ID"})
		return uuid.Nil, false
	}
	return id, true
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

var errNegativePrice = errors.New("negative price")

// parsePrice parses a non-negative decimal money string.
func parsePrice(s string) (pgtype.Numeric, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return pgtype.Numeric{}, err
	}
	if d.IsNegative() {
		return pgtype.Numeric{}, errNegativePrice
	}
	var n pgtype.Numeric
	if err := n.Scan(d.StringFixed(2)); err != nil {
		return pgtype.Numeric{}, err
	}
	return n, nil
}

// numericToString formats a money column with two decimals; NULL is "0.00".
func numericToString(n pgtype.Numeric) string {
	return service.NumericToDecimal(n).StringFixed(2)
}

func optionalText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

// publishMenuUpdated tells kiosks and staff screens to refetch the menu.
// Failures are logged only; the write is already committed.
func publishMenuUpdated(ctx context.Context, pub ws.Publisher, logger *zap.Logger, restaurantID uuid.UUID, entity string, entityID uuid.UUID, action string) {
	if pub == nil {
		return
	}
	ev, err := ws.NewEvent(enum.EventMenuUpdated, events.MenuEvent{
		RestaurantID: restaurantID,
		Entity:       entity,
		EntityID:     entityID,
		Action:       action,
	})
	if err == nil {
		err = pub.Publish(ctx, restaurantID, ev)
	}
	if err != nil {
		logger.Warn("publish menu.updated", zap.String("entity", entity), zap.Error(err))
	}
}
