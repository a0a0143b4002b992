package payment

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRefunded   Status = "refunded"
	StatusDisputed   Status = "disputed"
	StatusCancelled  Status = "cancelled"
)

type Method string

const (
	MethodMobileMoney  Method = "mobile_money"
	MethodBankTransfer Method = "bank_transfer"
	MethodCash         Method = "cash"
	MethodCard         Method = "card"
	MethodOther        Method = "other"
)

type Type string

const (
	TypeMilestone  Type = "milestone"
	TypeDeposit    Type = "deposit"
	TypeFinal      Type = "final"
	TypeRefund     Type = "refund"
	TypeServiceFee Type = "service_fee"
	TypeOther      Type = "other"
)

// Payment is a transfer attempt between a payer and a recipient, optionally
// scoped to a project milestone. Amounts are KES cents. Rows are never
// deleted; the table is the financial audit trail.
type Payment struct {
	ID            uuid.UUID     `db:"id" json:"id"`
	TransactionID string        `db:"transaction_id" json:"transaction_id"`
	PayerID       uuid.UUID     `db:"payer_id" json:"payer_id"`
	RecipientID   uuid.UUID     `db:"recipient_id" json:"recipient_id"`
	ProjectID     uuid.NullUUID `db:"project_id" json:"project_id"`
	MilestoneID   uuid.NullUUID `db:"milestone_id" json:"milestone_id"`
	Amount        int64         `db:"amount" json:"amount"`
	ServiceFee    int64         `db:"service_fee" json:"service_fee"`
	NetAmount     int64         `db:"net_amount" json:"net_amount"`
	Method        Method        `db:"method" json:"method"`
	Type          Type          `db:"type" json:"type"`
	Status        Status        `db:"status" json:"status"`
	Description   string        `db:"description" json:"description"`

	GatewayCode    string `db:"gateway_code" json:"gateway_code,omitempty"`
	GatewayReceipt string `db:"gateway_receipt" json:"gateway_receipt,omitempty"`
	FailureReason  string `db:"failure_reason" json:"failure_reason,omitempty"`
	RetryCount     int    `db:"retry_count" json:"retry_count"`

	ProcessedAt *time.Time `db:"processed_at" json:"processed_at,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// IsTerminal reports whether the status admits no further reconciliation
func (p *Payment) IsTerminal() bool {
	switch p.Status {
	case StatusCompleted, StatusFailed, StatusRefunded, StatusCancelled:
		return true
	}
	return false
}

// NewTransactionID generates a globally unique external payment id,
// e.g. MJL-20250831-A1B2C3D4
func NewTransactionID() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return "MJL-" + time.Now().Format("20060102") + "-" + suffix
}
