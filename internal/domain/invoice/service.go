package invoice

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/starpro23/MjengoLink-Constructors/internal/domain/project"
)

type Service struct {
	repo     *Repository
	projects *project.Service
}

func NewService(repo *Repository, projects *project.Service) *Service {
	return &Service{repo: repo, projects: projects}
}

type IssueInput struct {
	ClientID    uuid.UUID
	ProjectID   uuid.UUID
	Amount      int64
	TaxAmount   int64
	Description string
	DueDate     *time.Time
}

// Issue creates a draft invoice from an artisan to a client. When a project
// is referenced the artisan must be its assigned worker and the client its
// owner.
func (s *Service) Issue(ctx context.Context, artisanID uuid.UUID, in IssueInput) (*Invoice, error) {
	if in.Amount <= 0 || in.TaxAmount < 0 {
		return nil, ErrInvalidAmount
	}
	if in.ClientID == artisanID {
		return nil, ErrNotParty
	}

	inv := &Invoice{
		ID:            uuid.New(),
		InvoiceNumber: NewInvoiceNumber(),
		ClientID:      in.ClientID,
		ArtisanID:     artisanID,
		Amount:        in.Amount,
		TaxAmount:     in.TaxAmount,
		TotalAmount:   in.Amount + in.TaxAmount,
		Description:   in.Description,
		DueDate:       in.DueDate,
		Status:        StatusDraft,
	}

	if in.ProjectID != uuid.Nil {
		p, err := s.projects.Get(ctx, in.ProjectID)
		if err != nil {
			return nil, err
		}
		if !p.AssignedTo.Valid || p.AssignedTo.UUID != artisanID {
			return nil, project.ErrNotAssignedArtisan
		}
		if p.HomeownerID != in.ClientID {
			return nil, ErrNotParty
		}
		inv.ProjectID = uuid.NullUUID{UUID: in.ProjectID, Valid: true}
	}

	if err := s.repo.Create(ctx, inv); err != nil {
		return nil, err
	}

	log.Info().
		Str("invoice_number", inv.InvoiceNumber).
		Str("artisan_id", artisanID.String()).
		Str("client_id", in.ClientID.String()).
		Int64("total_amount", inv.TotalAmount).
		Msg("Invoice issued")
	return s.repo.GetByID(ctx, inv.ID)
}

// transition locks the invoice, checks the actor and the allowed source
// states, then applies the move
func (s *Service) transition(ctx context.Context, invoiceID, actorID uuid.UUID, artisanOnly bool, from []Status, to Status, stampColumn string) (*Invoice, error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	inv, err := s.repo.Lock(ctx, tx, invoiceID)
	if err != nil {
		return nil, err
	}
	if artisanOnly {
		if inv.ArtisanID != actorID {
			return nil, ErrNotIssuer
		}
	} else if inv.ArtisanID != actorID && inv.ClientID != actorID {
		return nil, ErrNotParty
	}

	allowed := false
	for _, f := range from {
		if inv.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, ErrInvalidStateTransition
	}

	if err := s.repo.UpdateStatusTx(ctx, tx, invoiceID, to, stampColumn); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Info().
		Str("invoice_number", inv.InvoiceNumber).
		Str("from", string(inv.Status)).
		Str("to", string(to)).
		Msg("Invoice transition")
	return s.repo.GetByID(ctx, invoiceID)
}

func (s *Service) Send(ctx context.Context, invoiceID, artisanID uuid.UUID) (*Invoice, error) {
	return s.transition(ctx, invoiceID, artisanID, true, []Status{StatusDraft}, StatusSent, "sent_at")
}

// MarkViewed records that the client opened the invoice
func (s *Service) MarkViewed(ctx context.Context, invoiceID, clientID uuid.UUID) (*Invoice, error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	inv, err := s.repo.Lock(ctx, tx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.ClientID != clientID {
		return nil, ErrNotParty
	}
	if inv.Status != StatusSent {
		return nil, ErrInvalidStateTransition
	}

	if err := s.repo.UpdateStatusTx(ctx, tx, invoiceID, StatusViewed, ""); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, invoiceID)
}

// MarkPaid settles the invoice against a completed payment's transaction id
func (s *Service) MarkPaid(ctx context.Context, invoiceID, actorID uuid.UUID, paymentRef string) (*Invoice, error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	inv, err := s.repo.Lock(ctx, tx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.ArtisanID != actorID && inv.ClientID != actorID {
		return nil, ErrNotParty
	}
	switch inv.Status {
	case StatusSent, StatusViewed, StatusOverdue:
	default:
		return nil, ErrInvalidStateTransition
	}

	if err := s.repo.MarkPaidTx(ctx, tx, invoiceID, paymentRef, time.Now()); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Info().
		Str("invoice_number", inv.InvoiceNumber).
		Str("payment_ref", paymentRef).
		Msg("Invoice paid")
	return s.repo.GetByID(ctx, invoiceID)
}

func (s *Service) Cancel(ctx context.Context, invoiceID, artisanID uuid.UUID) (*Invoice, error) {
	return s.transition(ctx, invoiceID, artisanID, true,
		[]Status{StatusDraft, StatusSent, StatusViewed, StatusOverdue}, StatusCancelled, "")
}

// MarkOverdueBatch is the time-driven sweep. It is invoked by an external
// scheduler; asOf is injectable for tests.
func (s *Service) MarkOverdueBatch(ctx context.Context, asOf time.Time) (int64, error) {
	moved, err := s.repo.MarkOverdueBatch(ctx, asOf)
	if err != nil {
		return 0, err
	}
	if moved > 0 {
		log.Info().Int64("count", moved).Time("as_of", asOf).Msg("Invoices marked overdue")
	}
	return moved, nil
}

func (s *Service) Get(ctx context.Context, invoiceID, actorID uuid.UUID) (*Invoice, error) {
	inv, err := s.repo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.ArtisanID != actorID && inv.ClientID != actorID {
		return nil, ErrNotParty
	}
	return inv, nil
}

func (s *Service) List(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]Invoice, int, error) {
	invoices, err := s.repo.ListByAccount(ctx, accountID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.CountByAccount(ctx, accountID)
	if err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}
