package project

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusDraft         Status = "draft"
	StatusPosted        Status = "posted"
	StatusBiddingClosed Status = "bidding_closed"
	StatusAssigned      Status = "assigned"
	StatusInProgress    Status = "in_progress"
	StatusOnHold        Status = "on_hold"
	StatusCompleted     Status = "completed"
	StatusCancelled     Status = "cancelled"
	StatusDisputed      Status = "disputed"
)

type BidStatus string

const (
	BidStatusPending   BidStatus = "pending"
	BidStatusAccepted  BidStatus = "accepted"
	BidStatusRejected  BidStatus = "rejected"
	BidStatusWithdrawn BidStatus = "withdrawn"
	BidStatusExpired   BidStatus = "expired"
)

type MilestoneStatus string

const (
	MilestoneStatusPending    MilestoneStatus = "pending"
	MilestoneStatusInProgress MilestoneStatus = "in_progress"
	MilestoneStatusCompleted  MilestoneStatus = "completed"
	MilestoneStatusApproved   MilestoneStatus = "approved"
	MilestoneStatusPaid       MilestoneStatus = "paid"
)

// Project is a job posted by a homeowner. Budget and final price are in
// KES cents.
type Project struct {
	ID          uuid.UUID     `db:"id" json:"id"`
	HomeownerID uuid.UUID     `db:"homeowner_id" json:"homeowner_id"`
	Title       string        `db:"title" json:"title"`
	Description string        `db:"description" json:"description"`
	Category    string        `db:"category" json:"category"`
	Location    string        `db:"location" json:"location"`
	BudgetMin   int64         `db:"budget_min" json:"budget_min"`
	BudgetMax   int64         `db:"budget_max" json:"budget_max"`
	Status      Status        `db:"status" json:"status"`
	AssignedTo  uuid.NullUUID `db:"assigned_to" json:"assigned_to"`
	FinalPrice  int64         `db:"final_price" json:"final_price"`
	BidCount    int           `db:"bid_count" json:"bid_count"`
	PostedAt    *time.Time    `db:"posted_at" json:"posted_at,omitempty"`
	AssignedAt  *time.Time    `db:"assigned_at" json:"assigned_at,omitempty"`
	StartedAt   *time.Time    `db:"started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time    `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// Bid is an artisan's offer on a posted project. At most one bid per
// (project, artisan) pair.
type Bid struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	ProjectID    uuid.UUID  `db:"project_id" json:"project_id"`
	ArtisanID    uuid.UUID  `db:"artisan_id" json:"artisan_id"`
	Amount       int64      `db:"amount" json:"amount"`
	TimelineDays int        `db:"timeline_days" json:"timeline_days"`
	Proposal     string     `db:"proposal" json:"proposal"`
	Status       BidStatus  `db:"status" json:"status"`
	AcceptedAt   *time.Time `db:"accepted_at" json:"accepted_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Milestone is a priced checkpoint within a project. Reaching paid is
// driven only by a matching completed payment.
type Milestone struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	ProjectID   uuid.UUID       `db:"project_id" json:"project_id"`
	Title       string          `db:"title" json:"title"`
	Amount      int64           `db:"amount" json:"amount"`
	DueDate     *time.Time      `db:"due_date" json:"due_date,omitempty"`
	Status      MilestoneStatus `db:"status" json:"status"`
	CompletedAt *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	ApprovedAt  *time.Time      `db:"approved_at" json:"approved_at,omitempty"`
	PaidAt      *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}
