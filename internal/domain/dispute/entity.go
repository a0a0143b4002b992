package dispute

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusOpen             Status = "open"
	StatusUnderReview      Status = "under_review"
	StatusAwaitingResponse Status = "awaiting_response"
	StatusResolved         Status = "resolved"
	StatusClosed           Status = "closed"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type Resolution string

const (
	ResolutionPending         Resolution = "pending"
	ResolutionRefundFull      Resolution = "refund_full"
	ResolutionRefundPartial   Resolution = "refund_partial"
	ResolutionPaymentReleased Resolution = "payment_released"
	ResolutionProjectRestart  Resolution = "project_restart"
	ResolutionMediation       Resolution = "mediation"
	ResolutionEscalated       Resolution = "escalated"
)

// PaymentDispute is a contested payment. Opening one freezes any pending
// payout; only an explicit resolution moves money afterwards.
type PaymentDispute struct {
	ID             uuid.UUID     `db:"id" json:"id"`
	DisputeID      string        `db:"dispute_id" json:"dispute_id"`
	PaymentID      uuid.UUID     `db:"payment_id" json:"payment_id"`
	ProjectID      uuid.NullUUID `db:"project_id" json:"project_id,omitempty"`
	RaisedBy       uuid.UUID     `db:"raised_by" json:"raised_by"`
	RaisedAgainst  uuid.UUID     `db:"raised_against" json:"raised_against"`
	Category       string        `db:"category" json:"category"`
	Severity       Severity      `db:"severity" json:"severity"`
	Status         Status        `db:"status" json:"status"`
	Resolution     Resolution    `db:"resolution" json:"resolution"`
	Description    string        `db:"description" json:"description"`
	ResolvedAmount int64         `db:"resolved_amount" json:"resolved_amount"`
	ResolvedBy     uuid.NullUUID `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time    `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

// Evidence is an opaque file attached to a dispute by one of its parties
type Evidence struct {
	ID          uuid.UUID `db:"id" json:"id"`
	DisputeID   uuid.UUID `db:"dispute_id" json:"dispute_id"`
	UploadedBy  uuid.UUID `db:"uploaded_by" json:"uploaded_by"`
	FileKey     string    `db:"file_key" json:"file_key"`
	ContentType string    `db:"content_type" json:"content_type"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// NewDisputeID builds a DSP-YYYYMMDD-XXXXXXXX business identifier
func NewDisputeID() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:8]
	return fmt.Sprintf("DSP-%s-%s", time.Now().Format("20060102"), suffix)
}
