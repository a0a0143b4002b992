package payment

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

func (r *Repository) Create(ctx context.Context, p *Payment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (id, transaction_id, payer_id, recipient_id, project_id, milestone_id,
			amount, service_fee, net_amount, method, type, status, description, retry_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 0)
	`, p.ID, p.TransactionID, p.PayerID, p.RecipientID, p.ProjectID, p.MilestoneID,
		p.Amount, p.ServiceFee, p.NetAmount, string(p.Method), string(p.Type), string(p.Status), p.Description)
	return err
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Payment, error) {
	var p Payment
	err := r.db.GetContext(ctx, &p, `SELECT * FROM payments WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repository) GetByTransactionID(ctx context.Context, transactionID string) (*Payment, error) {
	var p Payment
	err := r.db.GetContext(ctx, &p, `SELECT * FROM payments WHERE transaction_id = $1`, transactionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// LockByID takes the payment row lock that serializes status transitions
func (r *Repository) LockByID(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Payment, error) {
	var p Payment
	err := tx.GetContext(ctx, &p, `SELECT * FROM payments WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// LockByGatewayCode resolves a gateway correlation id to its payment,
// locked for reconciliation
func (r *Repository) LockByGatewayCode(ctx context.Context, tx *sqlx.Tx, gatewayCode string) (*Payment, error) {
	var p Payment
	err := tx.GetContext(ctx, &p, `SELECT * FROM payments WHERE gateway_code = $1 FOR UPDATE`, gatewayCode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repository) ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]Payment, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `
		SELECT COUNT(*) FROM payments WHERE payer_id = $1 OR recipient_id = $1
	`, accountID); err != nil {
		return nil, 0, err
	}

	payments := []Payment{}
	err := r.db.SelectContext(ctx, &payments, `
		SELECT * FROM payments
		WHERE payer_id = $1 OR recipient_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, accountID, limit, offset)
	return payments, total, err
}

func (r *Repository) MarkProcessing(ctx context.Context, id uuid.UUID, gatewayCode string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE payments
		SET status = $1, gateway_code = $2, processed_at = now(), updated_at = now()
		WHERE id = $3
	`, string(StatusProcessing), gatewayCode, id)
	return err
}

func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE payments SET status = $1, failure_reason = $2, updated_at = now() WHERE id = $3
	`, string(StatusFailed), reason, id)
	return err
}

func (r *Repository) MarkCancelled(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE payments SET status = $1, updated_at = now() WHERE id = $2
	`, string(StatusCancelled), id)
	return err
}

// ResetForRetry re-arms a failed or cancelled payment for a fresh dispatch
func (r *Repository) ResetForRetry(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET status = $1, gateway_code = '', gateway_receipt = '', failure_reason = '',
			retry_count = retry_count + 1, processed_at = NULL, updated_at = now()
		WHERE id = $2
	`, string(StatusPending), id)
	return err
}

func (r *Repository) MarkCompletedTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, receipt string, completedAt time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET status = $1, gateway_receipt = $2, completed_at = $3, updated_at = now()
		WHERE id = $4
	`, string(StatusCompleted), receipt, completedAt, id)
	return err
}

// RecordDisputedSettlementTx records a successful gateway settlement on a
// payment whose payout is frozen by an open dispute. The status stays
// disputed; the receipt marks the callback as consumed.
func (r *Repository) RecordDisputedSettlementTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, receipt string, completedAt time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET gateway_receipt = $1, completed_at = $2, updated_at = now()
		WHERE id = $3
	`, receipt, completedAt, id)
	return err
}

func (r *Repository) MarkFailedTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, reason string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE payments SET status = $1, failure_reason = $2, updated_at = now() WHERE id = $3
	`, string(StatusFailed), reason, id)
	return err
}

// MarkDisputedTx freezes a payment inside the dispute engine's opening
// transaction
func (r *Repository) MarkDisputedTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE payments SET status = $1, updated_at = now() WHERE id = $2
	`, string(StatusDisputed), id)
	return err
}

// UpdateStatusTx moves a payment to an explicit status from dispute
// resolution
func (r *Repository) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status Status) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE payments SET status = $1, updated_at = now() WHERE id = $2
	`, string(status), id)
	return err
}
