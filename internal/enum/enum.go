package enum

// ── Order lifecycle (CHECK constrained in DB) ──

const (
	OrderStatusNew        = "NEW"
	OrderStatusInProgress = "IN_PROGRESS"
	OrderStatusCompleted  = "COMPLETED"
	OrderStatusCancelled  = "CANCELLED"
)

// BoardStatuses are the KDS columns, in display order.
var BoardStatuses = []string{OrderStatusNew, OrderStatusInProgress, OrderStatusCompleted}

const (
	OrderTypeTakeaway = "TAKEAWAY"
	OrderTypeEatIn    = "EAT_IN"
)

// ── Staff roles ──

const (
	UserRoleAdmin   = "ADMIN"
	UserRoleKitchen = "KITCHEN"
)

// ── Printing ──

const (
	PrintJobSent     = "SENT"
	PrintJobFallback = "FALLBACK"
	PrintJobFailed   = "FAILED"
)

// ── Outbox ──

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

const (
	EventOrderCreated  = "order.created"
	EventOrderUpdated  = "order.updated"
	EventMenuUpdated   = "menu.updated"
	EventPrintFallback = "print.fallback"
)
