package project

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

type CreateProjectInput struct {
	Title       string
	Description string
	Category    string
	Location    string
	BudgetMin   int64
	BudgetMax   int64
}

func (s *Service) Create(ctx context.Context, homeownerID uuid.UUID, in CreateProjectInput) (*Project, error) {
	if in.BudgetMin <= 0 || in.BudgetMax < in.BudgetMin {
		return nil, ErrInvalidBudget
	}

	p := &Project{
		ID:          uuid.New(),
		HomeownerID: homeownerID,
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		Location:    in.Location,
		BudgetMin:   in.BudgetMin,
		BudgetMax:   in.BudgetMax,
		Status:      StatusDraft,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	log.Info().Str("project_id", p.ID.String()).Str("homeowner_id", homeownerID.String()).Msg("Project created")
	return s.repo.GetByID(ctx, p.ID)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Project, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]Project, int, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.repo.List(ctx, f)
}

// transition moves the project between states under the project row lock
func (s *Service) transition(ctx context.Context, projectID, actorID uuid.UUID, ownerOnly bool, from []Status, to Status, stampColumn string) (*Project, error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	p, err := s.repo.LockProject(ctx, tx, projectID)
	if err != nil {
		return nil, err
	}
	if ownerOnly && p.HomeownerID != actorID {
		return nil, ErrNotOwner
	}

	allowed := false
	for _, st := range from {
		if p.Status == st {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, ErrInvalidStateTransition
	}

	if err := s.repo.UpdateStatusTx(ctx, tx, projectID, to, stampColumn); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Info().Str("project_id", projectID.String()).Str("from", string(p.Status)).Str("to", string(to)).Msg("Project transitioned")
	return s.repo.GetByID(ctx, projectID)
}

func (s *Service) Post(ctx context.Context, projectID, homeownerID uuid.UUID) (*Project, error) {
	return s.transition(ctx, projectID, homeownerID, true, []Status{StatusDraft}, StatusPosted, "posted_at")
}

func (s *Service) Cancel(ctx context.Context, projectID, homeownerID uuid.UUID) (*Project, error) {
	return s.transition(ctx, projectID, homeownerID, true, []Status{StatusDraft, StatusPosted}, StatusCancelled, "")
}

func (s *Service) CloseBidding(ctx context.Context, projectID, homeownerID uuid.UUID) (*Project, error) {
	return s.transition(ctx, projectID, homeownerID, true, []Status{StatusPosted}, StatusBiddingClosed, "")
}

// StartWork moves assigned work into progress; only the assigned artisan
// may start
func (s *Service) StartWork(ctx context.Context, projectID, artisanID uuid.UUID) (*Project, error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	p, err := s.repo.LockProject(ctx, tx, projectID)
	if err != nil {
		return nil, err
	}
	if !p.AssignedTo.Valid || p.AssignedTo.UUID != artisanID {
		return nil, ErrNotAssignedArtisan
	}
	if p.Status != StatusAssigned {
		return nil, ErrInvalidStateTransition
	}

	if err := s.repo.UpdateStatusTx(ctx, tx, projectID, StatusInProgress, "started_at"); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, projectID)
}

func (s *Service) HoldWork(ctx context.Context, projectID, actorID uuid.UUID) (*Project, error) {
	return s.workPause(ctx, projectID, actorID, StatusInProgress, StatusOnHold)
}

func (s *Service) ResumeWork(ctx context.Context, projectID, actorID uuid.UUID) (*Project, error) {
	return s.workPause(ctx, projectID, actorID, StatusOnHold, StatusInProgress)
}

// workPause toggles in_progress/on_hold; either party may pause or resume
func (s *Service) workPause(ctx context.Context, projectID, actorID uuid.UUID, from, to Status) (*Project, error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	p, err := s.repo.LockProject(ctx, tx, projectID)
	if err != nil {
		return nil, err
	}
	isParty := p.HomeownerID == actorID || (p.AssignedTo.Valid && p.AssignedTo.UUID == actorID)
	if !isParty {
		return nil, ErrNotOwner
	}
	if p.Status != from {
		return nil, ErrInvalidStateTransition
	}

	if err := s.repo.UpdateStatusTx(ctx, tx, projectID, to, ""); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, projectID)
}

// MarkDisputedTx flags the project inside the dispute engine's opening
// transaction. Valid only from post-assignment states.
func (s *Service) MarkDisputedTx(ctx context.Context, tx *sqlx.Tx, projectID uuid.UUID) error {
	p, err := s.repo.LockProject(ctx, tx, projectID)
	if err != nil {
		return err
	}
	switch p.Status {
	case StatusAssigned, StatusInProgress, StatusOnHold:
		return s.repo.UpdateStatusTx(ctx, tx, projectID, StatusDisputed, "")
	default:
		return ErrInvalidStateTransition
	}
}

type SubmitBidInput struct {
	Amount       int64
	TimelineDays int
	Proposal     string
}

func (s *Service) SubmitBid(ctx context.Context, projectID, artisanID uuid.UUID, in SubmitBidInput) (*Bid, error) {
	if in.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	p, err := s.repo.LockProject(ctx, tx, projectID)
	if err != nil {
		return nil, err
	}
	if p.Status != StatusPosted {
		return nil, ErrInvalidStateTransition
	}
	if p.HomeownerID == artisanID {
		return nil, ErrOwnProjectBid
	}

	b := &Bid{
		ID:           uuid.New(),
		ProjectID:    projectID,
		ArtisanID:    artisanID,
		Amount:       in.Amount,
		TimelineDays: in.TimelineDays,
		Proposal:     in.Proposal,
		Status:       BidStatusPending,
	}
	if err := s.repo.InsertBidTx(ctx, tx, b); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Info().Str("bid_id", b.ID.String()).Str("project_id", projectID.String()).Int64("amount", in.Amount).Msg("Bid submitted")
	return s.repo.GetBid(ctx, b.ID)
}

func (s *Service) WithdrawBid(ctx context.Context, bidID, artisanID uuid.UUID) (*Bid, error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	b, err := s.repo.LockBid(ctx, tx, bidID)
	if err != nil {
		return nil, err
	}
	if b.ArtisanID != artisanID {
		return nil, ErrNotAssignedArtisan
	}
	if b.Status != BidStatusPending {
		return nil, ErrInvalidStateTransition
	}

	if err := s.repo.WithdrawBidTx(ctx, tx, bidID, b.ProjectID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.repo.GetBid(ctx, bidID)
}

// AcceptBid assigns the project, fixes the final price, accepts the bid
// and rejects every sibling in one transaction. Partial assignment is
// never observable.
func (s *Service) AcceptBid(ctx context.Context, bidID, homeownerID uuid.UUID) (*Project, error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	b, err := s.repo.LockBid(ctx, tx, bidID)
	if err != nil {
		return nil, err
	}

	p, err := s.repo.LockProject(ctx, tx, b.ProjectID)
	if err != nil {
		return nil, err
	}
	if p.HomeownerID != homeownerID {
		return nil, ErrNotOwner
	}
	if p.Status != StatusPosted && p.Status != StatusBiddingClosed {
		return nil, ErrInvalidStateTransition
	}
	if b.Status != BidStatusPending {
		return nil, ErrInvalidStateTransition
	}

	if err := s.repo.AssignTx(ctx, tx, p.ID, b.ArtisanID, b.Amount); err != nil {
		return nil, err
	}
	if err := s.repo.AcceptBidTx(ctx, tx, bidID); err != nil {
		return nil, err
	}
	if err := s.repo.RejectSiblingsTx(ctx, tx, p.ID, bidID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Info().
		Str("project_id", p.ID.String()).
		Str("bid_id", bidID.String()).
		Str("artisan_id", b.ArtisanID.String()).
		Int64("final_price", b.Amount).
		Msg("Bid accepted")
	return s.repo.GetByID(ctx, p.ID)
}

func (s *Service) ListBids(ctx context.Context, projectID, homeownerID uuid.UUID) ([]Bid, error) {
	p, err := s.repo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p.HomeownerID != homeownerID {
		return nil, ErrNotOwner
	}
	return s.repo.ListBids(ctx, projectID)
}

type AddMilestoneInput struct {
	Title   string
	Amount  int64
	DueDate *time.Time
}

func (s *Service) AddMilestone(ctx context.Context, projectID, homeownerID uuid.UUID, in AddMilestoneInput) (*Milestone, error) {
	if in.Amount < 0 {
		return nil, ErrInvalidAmount
	}

	p, err := s.repo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p.HomeownerID != homeownerID {
		return nil, ErrNotOwner
	}
	if p.Status != StatusAssigned && p.Status != StatusInProgress {
		return nil, ErrInvalidStateTransition
	}

	m := &Milestone{
		ID:        uuid.New(),
		ProjectID: projectID,
		Title:     in.Title,
		Amount:    in.Amount,
		DueDate:   in.DueDate,
		Status:    MilestoneStatusPending,
	}
	if err := s.repo.InsertMilestone(ctx, m); err != nil {
		return nil, err
	}
	return s.repo.GetMilestone(ctx, m.ID)
}

func (s *Service) ListMilestones(ctx context.Context, projectID uuid.UUID) ([]Milestone, error) {
	return s.repo.ListMilestones(ctx, projectID)
}

func (s *Service) GetMilestone(ctx context.Context, id uuid.UUID) (*Milestone, error) {
	return s.repo.GetMilestone(ctx, id)
}

// CompleteMilestone is the assigned artisan reporting the work done.
// completed_at is stamped exactly once, on this transition.
func (s *Service) CompleteMilestone(ctx context.Context, milestoneID, artisanID uuid.UUID) (*Milestone, error) {
	return s.transitionMilestone(ctx, milestoneID, MilestoneStatusCompleted, "completed_at",
		func(p *Project, m *Milestone) error {
			if !p.AssignedTo.Valid || p.AssignedTo.UUID != artisanID {
				return ErrNotAssignedArtisan
			}
			if m.Status != MilestoneStatusPending && m.Status != MilestoneStatusInProgress {
				return ErrInvalidStateTransition
			}
			return nil
		})
}

func (s *Service) ApproveMilestone(ctx context.Context, milestoneID, homeownerID uuid.UUID) (*Milestone, error) {
	return s.transitionMilestone(ctx, milestoneID, MilestoneStatusApproved, "approved_at",
		func(p *Project, m *Milestone) error {
			if p.HomeownerID != homeownerID {
				return ErrNotOwner
			}
			if m.Status != MilestoneStatusCompleted {
				return ErrInvalidStateTransition
			}
			return nil
		})
}

// transitionMilestone re-checks the guard under row locks, project before
// milestone like MarkMilestonePaidTx, so concurrent transitions serialize
// and the timestamp column is stamped exactly once
func (s *Service) transitionMilestone(ctx context.Context, milestoneID uuid.UUID, to MilestoneStatus, stampColumn string, guard func(*Project, *Milestone) error) (*Milestone, error) {
	m, err := s.repo.GetMilestone(ctx, milestoneID)
	if err != nil {
		return nil, err
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	p, err := s.repo.LockProject(ctx, tx, m.ProjectID)
	if err != nil {
		return nil, err
	}
	m, err = s.repo.LockMilestone(ctx, tx, milestoneID)
	if err != nil {
		return nil, err
	}
	if err := guard(p, m); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateMilestoneStatusTx(ctx, tx, milestoneID, to, stampColumn); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.repo.GetMilestone(ctx, milestoneID)
}

// ValidateMilestonePayment checks a (project, milestone, recipient) triple
// before a payment is created against it
func (s *Service) ValidateMilestonePayment(ctx context.Context, projectID, milestoneID, recipientID uuid.UUID) error {
	p, err := s.repo.GetByID(ctx, projectID)
	if err != nil {
		return err
	}
	if p.AssignedTo.Valid && p.AssignedTo.UUID != recipientID {
		return ErrRecipientMismatch
	}

	if milestoneID != uuid.Nil {
		m, err := s.repo.GetMilestone(ctx, milestoneID)
		if err != nil {
			return err
		}
		if m.ProjectID != projectID {
			return ErrMilestoneMismatch
		}
		if m.Status == MilestoneStatusPaid {
			return ErrMilestoneAlreadyPaid
		}
	}
	return nil
}

// MarkMilestonePaidTx records a milestone payment inside the payment
// reconciliation transaction. The project row is locked before the
// milestone row, and the all-paid check runs against the same transaction,
// so two milestones paid concurrently still complete the project exactly
// once.
func (s *Service) MarkMilestonePaidTx(ctx context.Context, tx *sqlx.Tx, projectID, milestoneID uuid.UUID) error {
	p, err := s.repo.LockProject(ctx, tx, projectID)
	if err != nil {
		return err
	}

	m, err := s.repo.LockMilestone(ctx, tx, milestoneID)
	if err != nil {
		return err
	}
	if m.ProjectID != projectID {
		return ErrMilestoneMismatch
	}
	if m.Status == MilestoneStatusPaid {
		return ErrMilestoneAlreadyPaid
	}

	if err := s.repo.MarkMilestonePaidTx(ctx, tx, milestoneID, time.Now()); err != nil {
		return err
	}

	unpaid, err := s.repo.CountUnpaidTx(ctx, tx, projectID)
	if err != nil {
		return err
	}
	if unpaid == 0 && p.Status != StatusCompleted {
		if err := s.repo.UpdateStatusTx(ctx, tx, projectID, StatusCompleted, "completed_at"); err != nil {
			return err
		}
		log.Info().Str("project_id", projectID.String()).Msg("All milestones paid, project completed")
	}
	return nil
}
