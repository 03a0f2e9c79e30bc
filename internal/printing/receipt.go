// Package printing renders kitchen receipts and submits them to PrintNode.
package printing

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Width is the character width of an 80mm thermal receipt.
const Width = 42

// Receipt is everything printed on an order ticket.
type Receipt struct {
	RestaurantName string
	Currency       string
	OrderNumber    string
	OrderType      string
	TableNumber    *int32
	CreatedAt      time.Time
	Lines          []ReceiptLine
	Notes          string
	Subtotal       decimal.Decimal
	TaxRate        decimal.Decimal
	Tax            decimal.Decimal
	Total          decimal.Decimal
}

type ReceiptLine struct {
	Name     string
	Quantity int32
	Total    decimal.Decimal
	Toppings []ReceiptTopping
	Notes    string
}

type ReceiptTopping struct {
	Name     string
	Quantity int32
	Price    decimal.Decimal
}

// Render formats the receipt as fixed-width text ending in a newline.
func Render(r Receipt) string {
	var b strings.Builder
	rule := strings.Repeat("-", Width)

	writeCentered(&b, r.RestaurantName)
	writeCentered(&b, "ORDER "+r.OrderNumber)
	switch {
	case r.TableNumber != nil:
		writeCentered(&b, fmt.Sprintf("EAT IN - TABLE %d", *r.TableNumber))
	case r.OrderType == "EAT_IN":
		writeCentered(&b, "EAT IN")
	default:
		writeCentered(&b, "TAKEAWAY")
	}
	if !r.CreatedAt.IsZero() {
		writeCentered(&b, r.CreatedAt.Format("2006-01-02 15:04"))
	}
	b.WriteString(rule + "\n")

	for _, l := range r.Lines {
		writeRow(&b, fmt.Sprintf("%dx %s", l.Quantity, l.Name), money(r.Currency, l.Total))
		for _, t := range l.Toppings {
			label := "   + " + t.Name
			if t.Quantity > 1 {
				label = fmt.Sprintf("   + %dx %s", t.Quantity, t.Name)
			}
			writeRow(&b, label, money(r.Currency, t.Price))
		}
		if l.Notes != "" {
			b.WriteString(truncate("   * "+l.Notes, Width) + "\n")
		}
	}
	if r.Notes != "" {
		b.WriteString(rule + "\n")
		b.WriteString(truncate("NOTE: "+r.Notes, Width) + "\n")
	}

	b.WriteString(rule + "\n")
	writeRow(&b, "Subtotal", money(r.Currency, r.Subtotal))
	writeRow(&b, fmt.Sprintf("Tax (%s%%)", r.TaxRate.Mul(decimal.NewFromInt(100)).String()), money(r.Currency, r.Tax))
	writeRow(&b, "TOTAL", money(r.Currency, r.Total))
	b.WriteString(rule + "\n")
	return b.String()
}

func money(currency string, d decimal.Decimal) string {
	if currency == "" {
		return d.StringFixed(2)
	}
	return currency + " " + d.StringFixed(2)
}

// writeRow left-aligns label and right-aligns value, truncating the label
// so the row never exceeds Width.
func writeRow(b *strings.Builder, label, value string) {
	room := Width - utf8.RuneCountInString(value) - 1
	label = truncate(label, room)
	pad := Width - utf8.RuneCountInString(label) - utf8.RuneCountInString(value)
	b.WriteString(label + strings.Repeat(" ", pad) + value + "\n")
}

func writeCentered(b *strings.Builder, s string) {
	s = truncate(s, Width)
	pad := (Width - utf8.RuneCountInString(s)) / 2
	b.WriteString(strings.Repeat(" ", pad) + s + "\n")
}

func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
