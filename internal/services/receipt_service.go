package services

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"kasir/internal/models"
	"kasir/pkg/money"
)

const receiptWidth = 40

// ReceiptService renders a committed transaction into a fixed-width textual
// receipt. Rendering is a pure function of its inputs: the same transaction
// and metadata always produce byte-identical output, so a receipt can be
// reprinted or resent at any time. A receipt is never a source of truth.
type ReceiptService struct{}

// NewReceiptService creates a new ReceiptService.
func NewReceiptService() *ReceiptService {
	return &ReceiptService{}
}

// Render produces the receipt document for a completed transaction. Order is
// fixed: header, transaction metadata, one line per item, subtotal, discount
// (only when greater than zero), tax, total.
func (s *ReceiptService) Render(txn *models.Transaction, storeName, storeAddress, cashierName string) (string, error) {
	if txn.Status != models.StatusCompleted {
		return "", models.ErrReceiptNotAvailable
	}

	var b strings.Builder

	writeCentered(&b, storeName)
	writeCentered(&b, storeAddress)
	writeRule(&b)

	fmt.Fprintf(&b, "Date    : %s\n", txn.TransactionDate.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Cashier : %s\n", cashierName)
	fmt.Fprintf(&b, "Trx     : %s\n", txn.ID)
	writeRule(&b)

	for _, item := range txn.Items {
		b.WriteString(item.Name)
		b.WriteByte('\n')
		qty := fmt.Sprintf("  %d x %s", item.Quantity, money.Format(item.Price))
		writeAmountLine(&b, qty, money.LineTotal(item.Price, item.Quantity))
	}
	writeRule(&b)

	writeAmountLine(&b, "Subtotal", txn.Subtotal)
	if txn.Discount.IsPositive() {
		b.WriteString(padAmountLine("Discount", "-"+money.Format(txn.Discount)))
	}
	writeAmountLine(&b, "Tax", txn.Tax)
	writeAmountLine(&b, "TOTAL", txn.TotalAmount)
	writeRule(&b)

	fmt.Fprintf(&b, "Paid by %s\n", txn.PaymentMethod)

	return b.String(), nil
}

func writeRule(b *strings.Builder) {
	b.WriteString(strings.Repeat("-", receiptWidth))
	b.WriteByte('\n')
}

func writeCentered(b *strings.Builder, text string) {
	// Width is counted in runes so non-ASCII store names line up.
	width := utf8.RuneCountInString(text)
	if width >= receiptWidth {
		b.WriteString(text)
	} else {
		b.WriteString(strings.Repeat(" ", (receiptWidth-width)/2))
		b.WriteString(text)
	}
	b.WriteByte('\n')
}

func writeAmountLine(b *strings.Builder, label string, amount decimal.Decimal) {
	b.WriteString(padAmountLine(label, money.Format(amount)))
}

// padAmountLine right-aligns the amount at the receipt width, counting
// label runes rather than bytes.
func padAmountLine(label, amount string) string {
	pad := receiptWidth - utf8.RuneCountInString(label) - len(amount)
	if pad < 1 {
		pad = 1
	}
	return label + strings.Repeat(" ", pad) + amount + "\n"
}
