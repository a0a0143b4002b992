package dispute

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/starpro23/MjengoLink-Constructors/internal/domain/payment"
	"github.com/starpro23/MjengoLink-Constructors/internal/domain/project"
	"github.com/starpro23/MjengoLink-Constructors/internal/domain/wallet"
	"github.com/starpro23/MjengoLink-Constructors/internal/pkg/storage"
)

type Service struct {
	repo     *Repository
	payments *payment.Repository
	wallets  *wallet.Service
	projects *project.Service
	files    storage.Storage
}

func NewService(repo *Repository, payments *payment.Repository, wallets *wallet.Service, projects *project.Service, files storage.Storage) *Service {
	return &Service{repo: repo, payments: payments, wallets: wallets, projects: projects, files: files}
}

type OpenInput struct {
	RaisedAgainst uuid.UUID
	Category      string
	Severity      Severity
	Description   string
}

// Open raises a dispute over a payment. A payment still in flight is frozen:
// the payer's ledger takes a hold for the full amount and the payment moves
// to disputed, all in the opening transaction. A payment already settled
// keeps its ledger credit until an explicit resolution moves it.
func (s *Service) Open(ctx context.Context, paymentID, raisedBy uuid.UUID, in OpenInput) (*PaymentDispute, error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	p, err := s.payments.LockByID(ctx, tx, paymentID)
	if err != nil {
		return nil, err
	}
	if raisedBy != p.PayerID && raisedBy != p.RecipientID {
		return nil, ErrNotParty
	}
	if in.RaisedAgainst != p.PayerID && in.RaisedAgainst != p.RecipientID {
		return nil, ErrInvalidParty
	}
	if in.RaisedAgainst == raisedBy {
		return nil, ErrInvalidParty
	}

	open, err := s.repo.HasOpenDisputeTx(ctx, tx, paymentID)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, ErrDisputeAlreadyOpen
	}

	severity := in.Severity
	if severity == "" {
		severity = SeverityMedium
	}

	d := &PaymentDispute{
		ID:            uuid.New(),
		DisputeID:     NewDisputeID(),
		PaymentID:     paymentID,
		ProjectID:     p.ProjectID,
		RaisedBy:      raisedBy,
		RaisedAgainst: in.RaisedAgainst,
		Category:      in.Category,
		Severity:      severity,
		Status:        StatusOpen,
		Resolution:    ResolutionPending,
		Description:   in.Description,
	}
	if err := s.repo.CreateTx(ctx, tx, d); err != nil {
		return nil, err
	}

	if p.Status == payment.StatusPending || p.Status == payment.StatusProcessing {
		if _, err := s.wallets.HoldTx(ctx, tx, p.PayerID, p.Amount, d.DisputeID, "Dispute hold on in-flight payment"); err != nil {
			return nil, err
		}
		if err := s.payments.MarkDisputedTx(ctx, tx, p.ID); err != nil {
			return nil, err
		}
		if p.ProjectID.Valid {
			err := s.projects.MarkDisputedTx(ctx, tx, p.ProjectID.UUID)
			if errors.Is(err, project.ErrInvalidStateTransition) {
				// Project already past the disputable states; the payment
				// freeze alone carries the dispute
				log.Warn().Str("dispute_id", d.DisputeID).Msg("Project not moved to disputed")
			} else if err != nil {
				return nil, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Info().
		Str("dispute_id", d.DisputeID).
		Str("transaction_id", p.TransactionID).
		Str("raised_by", raisedBy.String()).
		Str("severity", string(severity)).
		Msg("Dispute opened")
	return s.repo.GetByID(ctx, d.ID)
}

// Review moves an open dispute into review
func (s *Service) Review(ctx context.Context, disputeID uuid.UUID) (*PaymentDispute, error) {
	return s.moveStatus(ctx, disputeID, []Status{StatusOpen}, StatusUnderReview)
}

// AwaitResponse asks the counterparty for input
func (s *Service) AwaitResponse(ctx context.Context, disputeID uuid.UUID) (*PaymentDispute, error) {
	return s.moveStatus(ctx, disputeID, []Status{StatusUnderReview}, StatusAwaitingResponse)
}

func (s *Service) moveStatus(ctx context.Context, disputeID uuid.UUID, from []Status, to Status) (*PaymentDispute, error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	d, err := s.repo.Lock(ctx, tx, disputeID)
	if err != nil {
		return nil, err
	}
	allowed := false
	for _, f := range from {
		if d.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, ErrInvalidStateTransition
	}
	if err := s.repo.UpdateStatusTx(ctx, tx, disputeID, to); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, disputeID)
}

// Close withdraws a dispute before resolution. Any freeze placed at open is
// lifted: an in-flight payment returns to pending, a settled one completes.
func (s *Service) Close(ctx context.Context, disputeID, actorID uuid.UUID) (*PaymentDispute, error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	d, err := s.repo.Lock(ctx, tx, disputeID)
	if err != nil {
		return nil, err
	}
	if actorID != d.RaisedBy && actorID != d.RaisedAgainst {
		return nil, ErrNotParty
	}
	if d.Status == StatusResolved || d.Status == StatusClosed {
		return nil, ErrInvalidStateTransition
	}

	p, err := s.payments.LockByID(ctx, tx, d.PaymentID)
	if err != nil {
		return nil, err
	}
	if err := s.unfreezeTx(ctx, tx, d, p); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatusTx(ctx, tx, disputeID, StatusClosed); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Info().Str("dispute_id", d.DisputeID).Msg("Dispute closed")
	return s.repo.GetByID(ctx, disputeID)
}

// unfreezeTx lifts whatever freeze the dispute placed on the payment,
// without moving money between the parties
func (s *Service) unfreezeTx(ctx context.Context, tx *sqlx.Tx, d *PaymentDispute, p *payment.Payment) error {
	if p.Status != payment.StatusDisputed {
		return nil
	}
	if p.GatewayReceipt == "" {
		// Still in flight: lift the payer hold and let the payment resume.
		// A payment with a gateway code has an STK push awaiting its
		// callback and must stay uncancellable.
		if _, err := s.wallets.ReleaseHoldTx(ctx, tx, p.PayerID, p.Amount, d.DisputeID, "Dispute hold released"); err != nil {
			return err
		}
		resumed := payment.StatusPending
		if p.GatewayCode != "" {
			resumed = payment.StatusProcessing
		}
		return s.payments.UpdateStatusTx(ctx, tx, p.ID, resumed)
	}
	// Settled while disputed: lift the payout hold and complete
	if _, err := s.wallets.ReleaseHoldTx(ctx, tx, p.RecipientID, p.NetAmount, d.DisputeID, "Dispute payout hold released"); err != nil {
		return err
	}
	return s.payments.UpdateStatusTx(ctx, tx, p.ID, payment.StatusCompleted)
}

// Resolve applies a terminal resolution and its ledger effect. The ledger
// effect happens exactly once: a dispute already resolved refuses a second
// resolution.
func (s *Service) Resolve(ctx context.Context, disputeID, resolvedBy uuid.UUID, resolution Resolution, partialAmount int64) (*PaymentDispute, error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	d, err := s.repo.Lock(ctx, tx, disputeID)
	if err != nil {
		return nil, err
	}
	if d.Status == StatusResolved {
		return nil, ErrAlreadyResolved
	}
	if d.Status == StatusClosed {
		return nil, ErrInvalidStateTransition
	}

	p, err := s.payments.LockByID(ctx, tx, d.PaymentID)
	if err != nil {
		return nil, err
	}

	var resolvedAmount int64
	switch resolution {
	case ResolutionRefundFull:
		resolvedAmount = p.Amount
		if err := s.refundTx(ctx, tx, d, p, p.Amount); err != nil {
			return nil, err
		}
	case ResolutionRefundPartial:
		if partialAmount <= 0 || partialAmount > p.Amount {
			return nil, ErrInvalidRefundAmount
		}
		resolvedAmount = partialAmount
		if err := s.refundTx(ctx, tx, d, p, partialAmount); err != nil {
			return nil, err
		}
	case ResolutionPaymentReleased:
		if err := s.unfreezeTx(ctx, tx, d, p); err != nil {
			return nil, err
		}
	case ResolutionProjectRestart, ResolutionMediation, ResolutionEscalated:
		// Recorded for manual follow-up, no ledger effect
	default:
		return nil, ErrInvalidResolution
	}

	if err := s.repo.ResolveTx(ctx, tx, disputeID, resolution, resolvedBy, resolvedAmount, time.Now()); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Info().
		Str("dispute_id", d.DisputeID).
		Str("resolution", string(resolution)).
		Int64("resolved_amount", resolvedAmount).
		Str("resolved_by", resolvedBy.String()).
		Msg("Dispute resolved")
	return s.repo.GetByID(ctx, disputeID)
}

// refundTx moves money back to the payer. A payment still held never left
// the payer, so the hold is simply lifted and the payout cancelled. A
// settled payment reverses the recipient's credit (capped at what they
// actually received) and refunds the payer from the platform.
func (s *Service) refundTx(ctx context.Context, tx *sqlx.Tx, d *PaymentDispute, p *payment.Payment, amount int64) error {
	if p.Status == payment.StatusDisputed && p.GatewayReceipt == "" {
		if _, err := s.wallets.ReleaseHoldTx(ctx, tx, p.PayerID, p.Amount, d.DisputeID, "Dispute refund, payout cancelled"); err != nil {
			return err
		}
		return s.payments.UpdateStatusTx(ctx, tx, p.ID, payment.StatusCancelled)
	}

	credited := p.GatewayReceipt != ""
	if !credited {
		// Payment never settled and carries no freeze: nothing to reverse
		return nil
	}

	if p.Status == payment.StatusDisputed {
		if _, err := s.wallets.ReleaseHoldTx(ctx, tx, p.RecipientID, p.NetAmount, d.DisputeID, "Dispute payout hold released for refund"); err != nil {
			return err
		}
	}

	reversal := amount
	if reversal > p.NetAmount {
		reversal = p.NetAmount
	}
	if _, err := s.wallets.DebitTx(ctx, tx, p.RecipientID, reversal, wallet.TransactionTypeRefund, d.DisputeID, "Dispute refund reversal"); err != nil {
		return err
	}
	if _, err := s.wallets.CreditTx(ctx, tx, p.PayerID, amount, wallet.TransactionTypeRefund, d.DisputeID, "Dispute refund"); err != nil {
		return err
	}
	return s.payments.UpdateStatusTx(ctx, tx, p.ID, payment.StatusRefunded)
}

// Escalate raises the severity to critical without changing the status
func (s *Service) Escalate(ctx context.Context, disputeID uuid.UUID) (*PaymentDispute, error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	d, err := s.repo.Lock(ctx, tx, disputeID)
	if err != nil {
		return nil, err
	}
	if d.Status == StatusResolved || d.Status == StatusClosed {
		return nil, ErrInvalidStateTransition
	}
	if err := s.repo.UpdateSeverityTx(ctx, tx, disputeID, SeverityCritical); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Info().Str("dispute_id", d.DisputeID).Msg("Dispute escalated")
	return s.repo.GetByID(ctx, disputeID)
}

// AddEvidence validates and stores an evidence file for a dispute party
func (s *Service) AddEvidence(ctx context.Context, disputeID, uploaderID uuid.UUID, file io.Reader, description string) (*Evidence, error) {
	d, err := s.repo.GetByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if uploaderID != d.RaisedBy && uploaderID != d.RaisedAgainst {
		return nil, ErrNotParty
	}
	if d.Status == StatusClosed {
		return nil, ErrInvalidStateTransition
	}

	buf, mimeType, err := storage.ValidateEvidence(file)
	if err != nil {
		return nil, err
	}

	key := storage.EvidenceKey(d.DisputeID, mimeType)
	if err := s.files.Put(ctx, key, buf, mimeType); err != nil {
		return nil, err
	}

	e := &Evidence{
		ID:          uuid.New(),
		DisputeID:   d.ID,
		UploadedBy:  uploaderID,
		FileKey:     key,
		ContentType: mimeType,
		Description: description,
	}
	if err := s.repo.CreateEvidence(ctx, e); err != nil {
		// Orphaned object; removal is best effort
		if delErr := s.files.Delete(ctx, key); delErr != nil {
			log.Warn().Err(delErr).Str("key", key).Msg("Failed to remove orphaned evidence object")
		}
		return nil, err
	}

	log.Info().
		Str("dispute_id", d.DisputeID).
		Str("file_key", key).
		Str("content_type", mimeType).
		Msg("Evidence attached")
	return e, nil
}

func (s *Service) Get(ctx context.Context, disputeID, actorID uuid.UUID, isAdmin bool) (*PaymentDispute, []Evidence, error) {
	d, err := s.repo.GetByID(ctx, disputeID)
	if err != nil {
		return nil, nil, err
	}
	if !isAdmin && actorID != d.RaisedBy && actorID != d.RaisedAgainst {
		return nil, nil, ErrNotParty
	}
	evidence, err := s.repo.ListEvidence(ctx, disputeID)
	if err != nil {
		return nil, nil, err
	}
	return d, evidence, nil
}

func (s *Service) List(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]PaymentDispute, int, error) {
	disputes, err := s.repo.ListByAccount(ctx, accountID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.CountByAccount(ctx, accountID)
	if err != nil {
		return nil, 0, err
	}
	return disputes, total, nil
}
