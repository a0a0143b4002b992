package invoice

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusViewed    Status = "viewed"
	StatusPaid      Status = "paid"
	StatusOverdue   Status = "overdue"
	StatusCancelled Status = "cancelled"
)

// Invoice is a billing document distinct from a payment. The total is
// always amount + tax_amount.
type Invoice struct {
	ID            uuid.UUID     `db:"id" json:"id"`
	InvoiceNumber string        `db:"invoice_number" json:"invoice_number"`
	ProjectID     uuid.NullUUID `db:"project_id" json:"project_id,omitempty"`
	ClientID      uuid.UUID     `db:"client_id" json:"client_id"`
	ArtisanID     uuid.UUID     `db:"artisan_id" json:"artisan_id"`
	Amount        int64         `db:"amount" json:"amount"`
	TaxAmount     int64         `db:"tax_amount" json:"tax_amount"`
	TotalAmount   int64         `db:"total_amount" json:"total_amount"`
	Description   string        `db:"description" json:"description"`
	DueDate       *time.Time    `db:"due_date" json:"due_date,omitempty"`
	Status        Status        `db:"status" json:"status"`
	PaymentRef    string        `db:"payment_ref" json:"payment_ref,omitempty"`
	SentAt        *time.Time    `db:"sent_at" json:"sent_at,omitempty"`
	PaidAt        *time.Time    `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// NewInvoiceNumber builds an INV-YYYYMMDD-XXXXXXXX business identifier
func NewInvoiceNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:8]
	return fmt.Sprintf("INV-%s-%s", time.Now().Format("20060102"), suffix)
}
