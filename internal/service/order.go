package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tablekiosk/api/internal/cart"
	"github.com/tablekiosk/api/internal/database"
	"github.com/tablekiosk/api/internal/enum"
	"github.com/tablekiosk/api/internal/events"
	"github.com/tablekiosk/api/internal/topping"
	"github.com/tablekiosk/api/internal/ws"
	"go.uber.org/zap"
)

const (
	maxOrderNumberRetries = 3
	orderNumberConstraint = "orders_restaurant_id_order_number_key"
)

// Errors returned by the order service.
var (
	ErrEmptyItems         = errors.New("items are required")
	ErrInvalidOrderType   = errors.New("invalid order_type")
	ErrInvalidQuantity    = errors.New("quantity must be > 0")
	ErrInvalidMenuItemID  = errors.New("invalid menu_item_id")
	ErrInvalidToppingID   = errors.New("invalid topping_id")
	ErrMenuItemNotFound   = errors.New("menu item not available")
	ErrTableRequired      = errors.New("table_number is required for EAT_IN orders")
	ErrInvalidTable       = errors.New("table_number is out of range")
	ErrNoTables           = errors.New("restaurant has no tables for EAT_IN orders")
	ErrRestaurantNotFound = errors.New("restaurant not found")
)

// LineError reports a line whose topping selection was rejected.
type LineError struct {
	Index    int
	MenuItem string
	Err      error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("items[%d] %s: %v", e.Index, e.MenuItem, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// Messages returns every user-facing message of the rejected selection.
func (e *LineError) Messages() []string {
	var verrs topping.ValidationErrors
	if errors.As(e.Err, &verrs) {
		return verrs.Messages()
	}
	return []string{e.Err.Error()}
}

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed to create and move orders.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	SelectionStore
	GetRestaurant(ctx context.Context, id uuid.UUID) (database.Restaurant, error)
	GetNextOrderNumber(ctx context.Context, restaurantID uuid.UUID) (int32, error)
	GetNextBoardPosition(ctx context.Context, arg database.GetNextBoardPositionParams) (int32, error)
	GetMenuItemForOrder(ctx context.Context, arg database.GetMenuItemParams) (database.MenuItem, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	CreateOrderItemTopping(ctx context.Context, arg database.CreateOrderItemToppingParams) (database.OrderItemTopping, error)
	CreateOutboxEvent(ctx context.Context, arg database.CreateOutboxEventParams) (database.OutboxEvent, error)
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	MoveOrder(ctx context.Context, arg database.MoveOrderParams) (database.Order, error)
	ShiftBoardPositions(ctx context.Context, arg database.ShiftBoardPositionsParams) error
	CancelOrder(ctx context.Context, arg database.CancelOrderParams) (database.Order, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// CreateOrderRequest is the input for submitting an order.
type CreateOrderRequest struct {
	RestaurantID uuid.UUID
	OrderType    string
	TableNumber  *int32
	Notes        string
	Items        []CreateOrderItemRequest
}

// CreateOrderItemRequest is a single line of the order.
type CreateOrderItemRequest struct {
	MenuItemID string
	Quantity   int32
	Notes      string
	Toppings   []CreateOrderItemToppingRequest
}

// CreateOrderItemToppingRequest is a topping quantity on a line.
type CreateOrderItemToppingRequest struct {
	ToppingID string
	Quantity  int32
}

// CreateOrderResult is the full created order with items.
type CreateOrderResult struct {
	Order database.Order
	Items []OrderItemResult
}

// OrderItemResult is an item with its toppings.
type OrderItemResult struct {
	Item     database.OrderItem
	Toppings []database.OrderItemTopping
}

// OrderService handles order business logic.
type OrderService struct {
	pool      TxBeginner
	newStore  NewOrderStore
	publisher ws.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewOrderService creates a new OrderService. publisher may be nil.
func NewOrderService(pool TxBeginner, newStore NewOrderStore, publisher ws.Publisher, logger *zap.Logger) *OrderService {
	if logger == nil {
		logger = zap.L()
	}
	return &OrderService{
		pool:      pool,
		newStore:  newStore,
		publisher: publisher,
		logger:    logger.Named("order.service"),
		now:       time.Now,
	}
}

// processedItem holds a priced line ready to insert.
type processedItem struct {
	line     cart.Line
	menuItem database.MenuItem
	notes    pgtype.Text
}

// CreateOrder re-prices every line from the database, validates the topping
// selections and writes the order, its lines and an outbox event in one
// transaction. Retries up to maxOrderNumberRetries times when a concurrent
// order took the same number.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	switch req.OrderType {
	case enum.OrderTypeTakeaway, enum.OrderTypeEatIn:
	default:
		return nil, ErrInvalidOrderType
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	if req.OrderType == enum.OrderTypeEatIn && req.TableNumber == nil {
		return nil, ErrTableRequired
	}

	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		result, err := s.createOrderTx(ctx, req)
		if err == nil {
			s.publishOrder(ctx, enum.EventOrderCreated, result.Order)
			return result, nil
		}
		if isOrderNumberConflict(err) {
			s.logger.Debug("order number taken, retrying", zap.Int("attempt", attempt+1))
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

func isOrderNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == orderNumberConstraint
	}
	return false
}

func (s *OrderService) createOrderTx(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	restaurant, err := store.GetRestaurant(ctx, req.RestaurantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRestaurantNotFound
		}
		return nil, fmt.Errorf("get restaurant: %w", err)
	}

	tableNumber := pgtype.Int4{}
	if req.OrderType == enum.OrderTypeEatIn {
		if restaurant.TableCount == 0 {
			return nil, ErrNoTables
		}
		n := *req.TableNumber
		if n < 1 || n > restaurant.TableCount {
			return nil, ErrInvalidTable
		}
		tableNumber = pgtype.Int4{Int32: n, Valid: true}
	}

	items := make([]processedItem, 0, len(req.Items))
	for i, item := range req.Items {
		pi, err := s.priceItem(ctx, store, req.RestaurantID, i, item)
		if err != nil {
			return nil, err
		}
		items = append(items, pi)
	}

	lines := make([]cart.Line, len(items))
	for i, pi := range items {
		lines[i] = pi.line
	}
	taxRate := NumericToDecimal(restaurant.TaxRate)
	if !restaurant.TaxRate.Valid {
		taxRate = cart.DefaultTaxRate
	}
	totals := cart.ComputeTotals(lines, taxRate)

	nextNum, err := store.GetNextOrderNumber(ctx, req.RestaurantID)
	if err != nil {
		return nil, fmt.Errorf("get next order number: %w", err)
	}
	position, err := store.GetNextBoardPosition(ctx, database.GetNextBoardPositionParams{
		RestaurantID: req.RestaurantID,
		Status:       enum.OrderStatusNew,
	})
	if err != nil {
		return nil, fmt.Errorf("get next board position: %w", err)
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		RestaurantID:  req.RestaurantID,
		OrderNumber:   fmt.Sprintf("K-%03d", nextNum),
		OrderType:     req.OrderType,
		TableNumber:   tableNumber,
		BoardPosition: position,
		Notes:         optionalText(req.Notes),
		Subtotal:      DecimalToNumeric(totals.Subtotal),
		TaxRate:       RateToNumeric(taxRate),
		TaxAmount:     DecimalToNumeric(totals.Tax),
		TotalAmount:   DecimalToNumeric(totals.Total),
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	itemResults := make([]OrderItemResult, 0, len(items))
	for _, pi := range items {
		item, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:       order.ID,
			MenuItemID:    pi.menuItem.ID,
			Name:          pi.menuItem.Name,
			Quantity:      int32(pi.line.Quantity),
			UnitPrice:     DecimalToNumeric(pi.line.Product.Price),
			ToppingsTotal: DecimalToNumeric(topping.Total(pi.line.Toppings)),
			Subtotal:      DecimalToNumeric(pi.line.Total()),
			Notes:         pi.notes,
		})
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}

		toppings := make([]database.OrderItemTopping, 0, len(pi.line.Toppings))
		for _, t := range pi.line.Toppings {
			oit, err := store.CreateOrderItemTopping(ctx, database.CreateOrderItemToppingParams{
				OrderItemID: item.ID,
				ToppingID:   t.ID,
				Name:        t.Name,
				Quantity:    int32(t.Quantity),
				UnitPrice:   DecimalToNumeric(t.UnitPrice()),
				Price:       DecimalToNumeric(t.Price),
			})
			if err != nil {
				return nil, fmt.Errorf("create order item topping: %w", err)
			}
			toppings = append(toppings, oit)
		}
		itemResults = append(itemResults, OrderItemResult{Item: item, Toppings: toppings})
	}

	payload, err := json.Marshal(s.orderEvent(order))
	if err != nil {
		return nil, fmt.Errorf("marshal outbox payload: %w", err)
	}
	if _, err := store.CreateOutboxEvent(ctx, database.CreateOutboxEventParams{
		AggregateType: events.AggregateOrder,
		AggregateID:   order.ID,
		EventType:     enum.EventOrderCreated,
		Payload:       payload,
	}); err != nil {
		return nil, fmt.Errorf("create outbox event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &CreateOrderResult{Order: order, Items: itemResults}, nil
}

// priceItem loads the menu item and replays the requested toppings through
// a fresh selection, so the client never supplies a price.
func (s *OrderService) priceItem(ctx context.Context, store OrderStore, restaurantID uuid.UUID, i int, item CreateOrderItemRequest) (processedItem, error) {
	if item.Quantity <= 0 {
		return processedItem{}, fmt.Errorf("items[%d]: %w", i, ErrInvalidQuantity)
	}
	menuItemID, err := uuid.Parse(item.MenuItemID)
	if err != nil {
		return processedItem{}, fmt.Errorf("items[%d]: %w", i, ErrInvalidMenuItemID)
	}

	menuItem, err := store.GetMenuItemForOrder(ctx, database.GetMenuItemParams{
		ID:           menuItemID,
		RestaurantID: restaurantID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return processedItem{}, fmt.Errorf("items[%d]: %w", i, ErrMenuItemNotFound)
		}
		return processedItem{}, fmt.Errorf("items[%d]: get menu item: %w", i, err)
	}

	sel, err := LoadSelection(ctx, store, menuItemID)
	if err != nil {
		return processedItem{}, fmt.Errorf("items[%d]: %w", i, err)
	}
	for j, t := range item.Toppings {
		if t.Quantity <= 0 {
			return processedItem{}, fmt.Errorf("items[%d].toppings[%d]: %w", i, j, ErrInvalidQuantity)
		}
		tid, err := uuid.Parse(t.ToppingID)
		if err != nil {
			return processedItem{}, fmt.Errorf("items[%d].toppings[%d]: %w", i, j, ErrInvalidToppingID)
		}
		if err := sel.Apply(tid, int(t.Quantity)); err != nil {
			return processedItem{}, &LineError{Index: i, MenuItem: menuItem.Name, Err: err}
		}
	}
	selected, err := sel.Submit()
	if err != nil {
		return processedItem{}, &LineError{Index: i, MenuItem: menuItem.Name, Err: err}
	}

	return processedItem{
		line: cart.Line{
			Product: cart.Product{
				ID:    menuItem.ID,
				Name:  menuItem.Name,
				Price: NumericToDecimal(menuItem.Price),
			},
			Quantity: int(item.Quantity),
			Toppings: selected,
			Notes:    item.Notes,
		},
		menuItem: menuItem,
		notes:    optionalText(item.Notes),
	}, nil
}

func (s *OrderService) orderEvent(o database.Order) events.OrderEvent {
	ev := events.OrderEvent{
		OrderID:       o.ID,
		RestaurantID:  o.RestaurantID,
		OrderNumber:   o.OrderNumber,
		OrderType:     o.OrderType,
		Status:        o.Status,
		BoardPosition: o.BoardPosition,
		TotalAmount:   NumericToDecimal(o.TotalAmount).StringFixed(2),
		OccurredAt:    s.now().UTC(),
	}
	if o.TableNumber.Valid {
		n := o.TableNumber.Int32
		ev.TableNumber = &n
	}
	return ev
}

// publishOrder notifies connected screens. Failures are logged only: the
// order is already committed and screens resync on their next fetch.
func (s *OrderService) publishOrder(ctx context.Context, eventType string, o database.Order) {
	if s.publisher == nil {
		return
	}
	ev, err := ws.NewEvent(eventType, s.orderEvent(o))
	if err != nil {
		s.logger.Error("build realtime event", zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, o.RestaurantID, ev); err != nil {
		s.logger.Warn("publish realtime event",
			zap.String("event", eventType),
			zap.String("order_id", o.ID.String()),
			zap.Error(err),
		)
	}
}

func optionalText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
