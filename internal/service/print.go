package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tablekiosk/api/internal/database"
	"github.com/tablekiosk/api/internal/enum"
	"github.com/tablekiosk/api/internal/events"
	"github.com/tablekiosk/api/internal/printing"
	"github.com/tablekiosk/api/internal/ws"
	"go.uber.org/zap"
)

// ErrPrintNotConfigured is returned when an operation needs a PrintNode key
// and printer but the restaurant has none.
var ErrPrintNotConfigured = errors.New("printnode is not configured")

// PrintStore defines the DB methods needed for printing.
// Satisfied by *database.Queries.
type PrintStore interface {
	GetRestaurant(ctx context.Context, id uuid.UUID) (database.Restaurant, error)
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	ListOrderItemToppingsByOrderItem(ctx context.Context, orderItemID uuid.UUID) ([]database.OrderItemTopping, error)
	GetPrintSettings(ctx context.Context, restaurantID uuid.UUID) (database.PrintSetting, error)
	CreatePrintJob(ctx context.Context, arg database.CreatePrintJobParams) (database.PrintJob, error)
}

// PrintProvider submits jobs to a cloud print service.
// Satisfied by *printing.Client.
type PrintProvider interface {
	Submit(ctx context.Context, apiKey string, job printing.Job) (int64, error)
	Printers(ctx context.Context, apiKey string) ([]printing.Printer, error)
}

// PrintResult describes how an order was printed.
type PrintResult struct {
	Status        string `json:"status"`
	ProviderJobID int64  `json:"provider_job_id,omitempty"`
	Receipt       string `json:"receipt"`
}

// PrintService prints order receipts through PrintNode and falls back to
// the staff browser when PrintNode is unavailable.
type PrintService struct {
	store     PrintStore
	provider  PrintProvider
	publisher ws.Publisher
	logger    *zap.Logger
}

// NewPrintService creates a PrintService. publisher may be nil, in which
// case fallbacks are only recorded.
func NewPrintService(store PrintStore, provider PrintProvider, publisher ws.Publisher, logger *zap.Logger) *PrintService {
	if logger == nil {
		logger = zap.L()
	}
	return &PrintService{
		store:     store,
		provider:  provider,
		publisher: publisher,
		logger:    logger.Named("print.service"),
	}
}

// settings returns the restaurant's print settings, or disabled defaults.
func (s *PrintService) settings(ctx context.Context, restaurantID uuid.UUID) (database.PrintSetting, error) {
	ps, err := s.store.GetPrintSettings(ctx, restaurantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.PrintSetting{RestaurantID: restaurantID, Copies: 1}, nil
		}
		return database.PrintSetting{}, fmt.Errorf("get print settings: %w", err)
	}
	return ps, nil
}

func configured(ps database.PrintSetting) bool {
	return ps.Enabled && ps.PrintnodeApiKey.Valid && ps.PrintnodeApiKey.String != "" && ps.PrinterID.Valid
}

// PrintOrder prints an order's receipt. Every attempt is recorded as a
// print job.
func (s *PrintService) PrintOrder(ctx context.Context, restaurantID, orderID uuid.UUID) (PrintResult, error) {
	order, err := s.store.GetOrder(ctx, database.GetOrderParams{ID: orderID, RestaurantID: restaurantID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PrintResult{}, ErrOrderNotFound
		}
		return PrintResult{}, fmt.Errorf("get order: %w", err)
	}
	ps, err := s.settings(ctx, restaurantID)
	if err != nil {
		return PrintResult{}, err
	}
	receipt, err := s.buildReceipt(ctx, order)
	if err != nil {
		return PrintResult{}, err
	}
	text := printing.Render(receipt)

	if !configured(ps) {
		return s.fallback(ctx, order, text, "printing is not configured")
	}

	copies := int(ps.Copies)
	if copies < 1 {
		copies = 1
	}
	jobID, err := s.provider.Submit(ctx, ps.PrintnodeApiKey.String, printing.Job{
		PrinterID: ps.PrinterID.Int64,
		Title:     "Order " + order.OrderNumber,
		Content:   text,
		Copies:    copies,
	})
	if err != nil {
		s.logger.Warn("printnode submit failed, falling back to browser",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		s.record(ctx, order, enum.PrintJobFailed, pgtype.Int8{}, err.Error())
		return s.fallback(ctx, order, text, "printer unavailable")
	}

	s.record(ctx, order, enum.PrintJobSent, pgtype.Int8{Int64: jobID, Valid: true}, "")
	return PrintResult{Status: enum.PrintJobSent, ProviderJobID: jobID, Receipt: text}, nil
}

// AutoPrint prints a newly created order when the restaurant turned on
// automatic printing. It is the print worker's order.created handler.
func (s *PrintService) AutoPrint(ctx context.Context, payload []byte) error {
	var ev events.OrderEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		// A malformed payload will never succeed; log and drop it.
		s.logger.Error("decode order event", zap.Error(err))
		return nil
	}
	ps, err := s.settings(ctx, ev.RestaurantID)
	if err != nil {
		return err
	}
	if !ps.Enabled || !ps.AutoPrint {
		return nil
	}
	if _, err := s.PrintOrder(ctx, ev.RestaurantID, ev.OrderID); err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil
		}
		return err
	}
	return nil
}

// TestPrint sends a short test page to the configured printer.
func (s *PrintService) TestPrint(ctx context.Context, restaurantID uuid.UUID) (int64, error) {
	ps, err := s.settings(ctx, restaurantID)
	if err != nil {
		return 0, err
	}
	if !configured(ps) {
		return 0, ErrPrintNotConfigured
	}
	restaurant, err := s.store.GetRestaurant(ctx, restaurantID)
	if err != nil {
		return 0, fmt.Errorf("get restaurant: %w", err)
	}
	text := printing.Render(printing.Receipt{
		RestaurantName: restaurant.Name,
		Currency:       restaurant.Currency,
		OrderNumber:    "TEST",
		OrderType:      enum.OrderTypeTakeaway,
		TaxRate:        NumericToDecimal(restaurant.TaxRate),
	})
	jobID, err := s.provider.Submit(ctx, ps.PrintnodeApiKey.String, printing.Job{
		PrinterID: ps.PrinterID.Int64,
		Title:     "Test page",
		Content:   text,
		Copies:    1,
	})
	if err != nil {
		return 0, err
	}
	s.record(ctx, database.Order{RestaurantID: restaurantID}, enum.PrintJobSent, pgtype.Int8{Int64: jobID, Valid: true}, "")
	return jobID, nil
}

// Printers lists the printers of the restaurant's PrintNode account.
func (s *PrintService) Printers(ctx context.Context, restaurantID uuid.UUID) ([]printing.Printer, error) {
	ps, err := s.settings(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	if !ps.PrintnodeApiKey.Valid || ps.PrintnodeApiKey.String == "" {
		return nil, ErrPrintNotConfigured
	}
	return s.provider.Printers(ctx, ps.PrintnodeApiKey.String)
}

// fallback asks connected staff browsers to print the receipt themselves.
func (s *PrintService) fallback(ctx context.Context, order database.Order, text, reason string) (PrintResult, error) {
	if s.publisher != nil {
		ev, err := ws.NewEvent(enum.EventPrintFallback, events.PrintFallbackEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			Receipt:     text,
			Reason:      reason,
		})
		if err == nil {
			err = s.publisher.Publish(ctx, order.RestaurantID, ev)
		}
		if err != nil {
			s.logger.Warn("publish print fallback", zap.String("order_id", order.ID.String()), zap.Error(err))
		}
	}
	s.record(ctx, order, enum.PrintJobFallback, pgtype.Int8{}, reason)
	return PrintResult{Status: enum.PrintJobFallback, Receipt: text}, nil
}

// record stores a print attempt. Failures are logged only; the print
// itself already happened or was handed to the browser.
func (s *PrintService) record(ctx context.Context, order database.Order, status string, jobID pgtype.Int8, msg string) {
	orderID := pgtype.UUID{}
	if order.ID != uuid.Nil {
		orderID = pgtype.UUID{Bytes: order.ID, Valid: true}
	}
	if _, err := s.store.CreatePrintJob(ctx, database.CreatePrintJobParams{
		RestaurantID:  order.RestaurantID,
		OrderID:       orderID,
		Status:        status,
		ProviderJobID: jobID,
		Error:         optionalText(msg),
	}); err != nil {
		s.logger.Error("record print job", zap.String("status", status), zap.Error(err))
	}
}

func (s *PrintService) buildReceipt(ctx context.Context, order database.Order) (printing.Receipt, error) {
	restaurant, err := s.store.GetRestaurant(ctx, order.RestaurantID)
	if err != nil {
		return printing.Receipt{}, fmt.Errorf("get restaurant: %w", err)
	}
	items, err := s.store.ListOrderItemsByOrder(ctx, order.ID)
	if err != nil {
		return printing.Receipt{}, fmt.Errorf("list order items: %w", err)
	}

	lines := make([]printing.ReceiptLine, 0, len(items))
	for _, item := range items {
		toppings, err := s.store.ListOrderItemToppingsByOrderItem(ctx, item.ID)
		if err != nil {
			return printing.Receipt{}, fmt.Errorf("list order item toppings: %w", err)
		}
		rt := make([]printing.ReceiptTopping, len(toppings))
		for i, t := range toppings {
			rt[i] = printing.ReceiptTopping{Name: t.Name, Quantity: t.Quantity, Price: NumericToDecimal(t.Price)}
		}
		lines = append(lines, printing.ReceiptLine{
			Name:     item.Name,
			Quantity: item.Quantity,
			Total:    NumericToDecimal(item.Subtotal),
			Toppings: rt,
			Notes:    item.Notes.String,
		})
	}

	r := printing.Receipt{
		RestaurantName: restaurant.Name,
		Currency:       restaurant.Currency,
		OrderNumber:    order.OrderNumber,
		OrderType:      order.OrderType,
		CreatedAt:      order.CreatedAt,
		Lines:          lines,
		Notes:          order.Notes.String,
		Subtotal:       NumericToDecimal(order.Subtotal),
		TaxRate:        NumericToDecimal(order.TaxRate),
		Tax:            NumericToDecimal(order.TaxAmount),
		Total:          NumericToDecimal(order.TotalAmount),
	}
	if order.TableNumber.Valid {
		n := order.TableNumber.Int32
		r.TableNumber = &n
	}
	return r, nil
}
