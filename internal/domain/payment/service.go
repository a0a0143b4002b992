package payment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/starpro23/MjengoLink-Constructors/internal/domain/account"
	"github.com/starpro23/MjengoLink-Constructors/internal/domain/project"
	"github.com/starpro23/MjengoLink-Constructors/internal/domain/wallet"
	"github.com/starpro23/MjengoLink-Constructors/internal/pkg/mpesa"
)

// ReconcileOutcome classifies what a gateway callback did. Every outcome is
// acknowledged to the gateway; only the applied ones have side effects.
type ReconcileOutcome string

const (
	OutcomeCompleted       ReconcileOutcome = "completed"
	OutcomeFailed          ReconcileOutcome = "failed"
	OutcomeUnknownPayment  ReconcileOutcome = "unknown_payment"
	OutcomeAlreadyTerminal ReconcileOutcome = "already_terminal"
	OutcomeStillProcessing ReconcileOutcome = "still_processing"
)

type Service struct {
	repo     *Repository
	wallet   *wallet.Service
	projects *project.Service
	accounts *account.Repository
	gateway  Gateway
	feed     *Feed

	feeRateBP int64
	maxAmount int64
}

func NewService(repo *Repository, walletSvc *wallet.Service, projectSvc *project.Service, accounts *account.Repository, gateway Gateway, feed *Feed, feeRateBP, maxAmount int64) *Service {
	return &Service{
		repo:      repo,
		wallet:    walletSvc,
		projects:  projectSvc,
		accounts:  accounts,
		gateway:   gateway,
		feed:      feed,
		feeRateBP: feeRateBP,
		maxAmount: maxAmount,
	}
}

type CreateInput struct {
	RecipientID uuid.UUID
	Amount      int64
	Method      Method
	Type        Type
	ProjectID   uuid.UUID
	MilestoneID uuid.UUID
	Description string
}

// Create validates a payment request and persists it in pending state
func (s *Service) Create(ctx context.Context, payerID uuid.UUID, in CreateInput) (*Payment, error) {
	if in.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if in.Amount > s.maxAmount {
		return nil, ErrAmountTooLarge
	}
	if payerID == in.RecipientID {
		return nil, ErrSelfPayment
	}

	if in.MilestoneID != uuid.Nil && in.ProjectID == uuid.Nil {
		return nil, project.ErrMilestoneMismatch
	}
	if in.ProjectID != uuid.Nil {
		if err := s.projects.ValidateMilestonePayment(ctx, in.ProjectID, in.MilestoneID, in.RecipientID); err != nil {
			return nil, err
		}
	}

	fee := in.Amount * s.feeRateBP / 10000
	p := &Payment{
		ID:            uuid.New(),
		TransactionID: NewTransactionID(),
		PayerID:       payerID,
		RecipientID:   in.RecipientID,
		Amount:        in.Amount,
		ServiceFee:    fee,
		NetAmount:     in.Amount - fee,
		Method:        in.Method,
		Type:          in.Type,
		Status:        StatusPending,
		Description:   in.Description,
	}
	if in.ProjectID != uuid.Nil {
		p.ProjectID = uuid.NullUUID{UUID: in.ProjectID, Valid: true}
	}
	if in.MilestoneID != uuid.Nil {
		p.MilestoneID = uuid.NullUUID{UUID: in.MilestoneID, Valid: true}
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	log.Info().
		Str("transaction_id", p.TransactionID).
		Str("payer_id", payerID.String()).
		Str("recipient_id", in.RecipientID.String()).
		Int64("amount", in.Amount).
		Int64("service_fee", fee).
		Msg("Payment created")
	return s.repo.GetByID(ctx, p.ID)
}

// Dispatch sends a pending mobile-money payment to the gateway. Transient
// gateway failures leave the payment pending and retryable; permanent ones
// move it to failed. Non-mobile methods stay pending for manual
// reconciliation.
func (s *Service) Dispatch(ctx context.Context, p *Payment) (*Payment, error) {
	if p.Status != StatusPending {
		return nil, ErrInvalidStateTransition
	}
	if p.Method != MethodMobileMoney {
		return p, nil
	}

	rawPhone, err := s.accounts.Phone(ctx, p.PayerID)
	if err != nil {
		return nil, err
	}
	if rawPhone == "" {
		if err := s.repo.MarkFailed(ctx, p.ID, "payer has no registered phone number"); err != nil {
			return nil, err
		}
		return nil, ErrMissingPhoneNumber
	}

	phone, err := mpesa.NormalizePhone(rawPhone)
	if err != nil {
		if err := s.repo.MarkFailed(ctx, p.ID, "invalid payer phone number"); err != nil {
			return nil, err
		}
		return nil, mpesa.ErrInvalidPhone
	}

	desc := p.Description
	if desc == "" {
		desc = "MjengoLink payment " + p.TransactionID
	}

	result, err := s.gateway.STKPush(ctx, phone, p.Amount, p.TransactionID, desc)
	if err != nil {
		if mpesa.IsTransient(err) {
			// Payment stays pending; the payer can retry once the
			// gateway recovers
			log.Warn().Err(err).Str("transaction_id", p.TransactionID).Msg("Gateway unavailable, payment left pending")
			return nil, ErrGatewayUnavailable
		}
		if markErr := s.repo.MarkFailed(ctx, p.ID, err.Error()); markErr != nil {
			return nil, markErr
		}
		return nil, err
	}

	if !result.Accepted {
		if err := s.repo.MarkFailed(ctx, p.ID, result.Message); err != nil {
			return nil, err
		}
		log.Warn().Str("transaction_id", p.TransactionID).Str("reason", result.Message).Msg("Gateway rejected push")
		return s.repo.GetByID(ctx, p.ID)
	}

	if err := s.repo.MarkProcessing(ctx, p.ID, result.CheckoutRequestID); err != nil {
		return nil, err
	}
	log.Info().
		Str("transaction_id", p.TransactionID).
		Str("gateway_code", result.CheckoutRequestID).
		Msg("STK push dispatched")
	return s.repo.GetByID(ctx, p.ID)
}

// CreateAndDispatch is the single entry point behind POST /payments
func (s *Service) CreateAndDispatch(ctx context.Context, payerID uuid.UUID, in CreateInput) (*Payment, error) {
	p, err := s.Create(ctx, payerID, in)
	if err != nil {
		return nil, err
	}
	dispatched, err := s.Dispatch(ctx, p)
	if errors.Is(err, ErrGatewayUnavailable) {
		// Created but not yet sent; surface the pending payment
		return s.repo.GetByID(ctx, p.ID)
	}
	if err != nil {
		return nil, err
	}
	return dispatched, nil
}

// Reconcile applies an asynchronous gateway confirmation. It is idempotent
// under at-least-once delivery: the first reconciliation to observe a
// non-terminal payment wins, every repeat is acknowledged as a no-op.
func (s *Service) Reconcile(ctx context.Context, cb *mpesa.Callback) (ReconcileOutcome, error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	p, err := s.repo.LockByGatewayCode(ctx, tx, cb.CheckoutRequestID)
	if errors.Is(err, ErrPaymentNotFound) {
		log.Warn().Str("gateway_code", cb.CheckoutRequestID).Msg("Callback for unknown payment acknowledged")
		return OutcomeUnknownPayment, nil
	}
	if err != nil {
		return "", err
	}

	if p.IsTerminal() {
		log.Info().Str("transaction_id", p.TransactionID).Str("status", string(p.Status)).Msg("Callback for terminal payment acknowledged")
		return OutcomeAlreadyTerminal, nil
	}
	if p.Status == StatusDisputed && p.GatewayReceipt != "" {
		// Disputed payment already settled by an earlier callback
		return OutcomeAlreadyTerminal, nil
	}

	if !cb.Success() {
		if p.Status == StatusDisputed {
			// The dispute froze payer funds against a settlement that will
			// now never arrive; lift the hold alongside the failure
			if _, err := s.wallet.ReleaseHoldTx(ctx, tx, p.PayerID, p.Amount, p.TransactionID, "Dispute hold released on gateway failure"); err != nil {
				return "", err
			}
		}
		if err := s.repo.MarkFailedTx(ctx, tx, p.ID, cb.ResultDesc); err != nil {
			return "", err
		}
		if err := tx.Commit(); err != nil {
			return "", err
		}
		log.Info().Str("transaction_id", p.TransactionID).Int("result_code", cb.ResultCode).Str("reason", cb.ResultDesc).Msg("Payment failed at gateway")
		s.notify(p.PayerID, p.TransactionID, StatusFailed)
		return OutcomeFailed, nil
	}

	now := time.Now()
	disputed := p.Status == StatusDisputed
	if disputed {
		if err := s.repo.RecordDisputedSettlementTx(ctx, tx, p.ID, cb.ReceiptNumber, now); err != nil {
			return "", err
		}
	} else {
		if err := s.repo.MarkCompletedTx(ctx, tx, p.ID, cb.ReceiptNumber, now); err != nil {
			return "", err
		}
	}

	// Credit the recipient net of the platform fee, in the same transaction
	// as the status change: the ledger effect and the payment update land
	// together or not at all
	if _, err := s.wallet.CreditTx(ctx, tx, p.RecipientID, p.NetAmount, wallet.TransactionTypePayment, p.TransactionID, "Payment received"); err != nil {
		return "", err
	}
	if disputed {
		// Payout frozen until the dispute resolves
		if _, err := s.wallet.HoldTx(ctx, tx, p.RecipientID, p.NetAmount, p.TransactionID, "Dispute payout hold"); err != nil {
			return "", err
		}
		// The payer-side hold placed when the dispute opened guarded an
		// in-flight payment; the gateway settlement supersedes it
		if _, err := s.wallet.ReleaseHoldTx(ctx, tx, p.PayerID, p.Amount, p.TransactionID, "Dispute hold released on settlement"); err != nil {
			return "", err
		}
	}

	if p.MilestoneID.Valid && p.ProjectID.Valid {
		err := s.projects.MarkMilestonePaidTx(ctx, tx, p.ProjectID.UUID, p.MilestoneID.UUID)
		if errors.Is(err, project.ErrMilestoneAlreadyPaid) {
			log.Warn().Str("transaction_id", p.TransactionID).Msg("Milestone already paid, continuing reconciliation")
		} else if err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}

	log.Info().
		Str("transaction_id", p.TransactionID).
		Str("gateway_receipt", cb.ReceiptNumber).
		Int64("net_amount", p.NetAmount).
		Bool("disputed", disputed).
		Msg("Payment reconciled")
	if !disputed {
		s.notify(p.PayerID, p.TransactionID, StatusCompleted)
	}
	return OutcomeCompleted, nil
}

// Retry re-arms a failed or cancelled payment and dispatches it with a
// fresh gateway correlation id
func (s *Service) Retry(ctx context.Context, paymentID, actorID uuid.UUID) (*Payment, error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	p, err := s.repo.LockByID(ctx, tx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.PayerID != actorID {
		return nil, ErrNotPayer
	}
	if p.Status != StatusFailed && p.Status != StatusCancelled {
		return nil, ErrRetryNotAllowed
	}

	if err := s.repo.ResetForRetry(ctx, tx, paymentID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	p, err = s.repo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	log.Info().Str("transaction_id", p.TransactionID).Int("retry_count", p.RetryCount).Msg("Payment retry")
	return s.Dispatch(ctx, p)
}

// Cancel aborts a payment the gateway has not yet been asked about
func (s *Service) Cancel(ctx context.Context, paymentID, actorID uuid.UUID) (*Payment, error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	p, err := s.repo.LockByID(ctx, tx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.PayerID != actorID {
		return nil, ErrNotPayer
	}
	if p.Status != StatusPending {
		return nil, ErrInvalidStateTransition
	}

	if err := s.repo.MarkCancelled(ctx, tx, paymentID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, paymentID)
}

// finalFailureCodes are gateway result codes that definitively end an STK
// push: cancelled by user, timeout, insufficient funds, invalid initiator.
var finalFailureCodes = map[int]bool{
	1: true, 1019: true, 1025: true, 1032: true, 1037: true, 2001: true,
}

// QueryStatus asks the gateway about a processing payment and runs the
// normal reconciliation on a definitive answer
func (s *Service) QueryStatus(ctx context.Context, paymentID, actorID uuid.UUID) (*Payment, ReconcileOutcome, error) {
	p, err := s.repo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, "", err
	}
	if p.PayerID != actorID && p.RecipientID != actorID {
		return nil, "", ErrNotParty
	}
	if p.GatewayCode == "" {
		return nil, "", ErrNotQueryable
	}
	if p.IsTerminal() {
		return p, OutcomeAlreadyTerminal, nil
	}

	status, err := s.gateway.QueryStatus(ctx, p.GatewayCode)
	if err != nil {
		if mpesa.IsTransient(err) {
			return nil, "", ErrGatewayUnavailable
		}
		return nil, "", err
	}

	if status.ResultCode != 0 && !finalFailureCodes[status.ResultCode] {
		// Still in flight at the gateway; nothing to reconcile
		return p, OutcomeStillProcessing, nil
	}

	outcome, err := s.Reconcile(ctx, &mpesa.Callback{
		CheckoutRequestID: p.GatewayCode,
		ResultCode:        status.ResultCode,
		ResultDesc:        status.ResultDesc,
	})
	if err != nil {
		return nil, "", err
	}
	p, err = s.repo.GetByID(ctx, paymentID)
	return p, outcome, err
}

func (s *Service) Get(ctx context.Context, paymentID, actorID uuid.UUID) (*Payment, error) {
	p, err := s.repo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.PayerID != actorID && p.RecipientID != actorID {
		return nil, ErrNotParty
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]Payment, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByAccount(ctx, accountID, limit, offset)
}

func (s *Service) notify(accountID uuid.UUID, transactionID string, status Status) {
	if s.feed == nil {
		return
	}
	s.feed.Broadcast(accountID, StatusEvent{TransactionID: transactionID, Status: string(status)})
}
